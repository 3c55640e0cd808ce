package att

import (
	"testing"
	"time"

	"github.com/pkg/errors"
)

func TestRequestTracker_SingleRequest(t *testing.T) {
	tracker := NewRequestTracker(time.Second)

	if err := tracker.StartRequest(OpReadByTypeRequest, 0x0010, "characteristics"); err != nil {
		t.Fatalf("StartRequest failed: %v", err)
	}
	if !tracker.HasPending() {
		t.Fatal("Expected pending request")
	}

	req, err := tracker.CompleteRequest(OpReadByTypeResponse)
	if err != nil {
		t.Fatalf("CompleteRequest failed: %v", err)
	}
	if req.Opcode != OpReadByTypeRequest || req.Handle != 0x0010 {
		t.Errorf("completed %+v", req)
	}
	if req.Tag != "characteristics" {
		t.Errorf("Tag = %v, want characteristics", req.Tag)
	}
	if tracker.HasPending() {
		t.Error("Expected no pending request after completion")
	}
}

func TestRequestTracker_OnlyOneRequestAtTime(t *testing.T) {
	tracker := NewRequestTracker(time.Second)

	if err := tracker.StartRequest(OpReadByGroupTypeRequest, 0x0001, nil); err != nil {
		t.Fatalf("StartRequest failed: %v", err)
	}
	err := tracker.StartRequest(OpFindInformationRequest, 0x0005, nil)
	if errors.Cause(err) != ErrRequestPending {
		t.Fatalf("second StartRequest = %v, want ErrRequestPending", err)
	}

	if _, err := tracker.CompleteRequest(OpErrorResponse); err != nil {
		t.Fatalf("an error response completes any request: %v", err)
	}
	if err := tracker.StartRequest(OpFindInformationRequest, 0x0005, nil); err != nil {
		t.Errorf("StartRequest after completion failed: %v", err)
	}
}

func TestRequestTracker_TimeoutCallback(t *testing.T) {
	tracker := NewRequestTracker(20 * time.Millisecond)

	expired := make(chan PendingRequest, 1)
	tracker.SetTimeoutCallback(func(req PendingRequest) { expired <- req })

	if err := tracker.StartRequest(OpFindInformationRequest, 0x0042, nil); err != nil {
		t.Fatalf("StartRequest failed: %v", err)
	}

	select {
	case req := <-expired:
		if req.Opcode != OpFindInformationRequest || req.Handle != 0x0042 {
			t.Errorf("expired %+v", req)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout callback not invoked")
	}

	if tracker.HasPending() {
		t.Error("expired request should be cleared")
	}
	if _, err := tracker.CompleteRequest(OpFindInformationResponse); err == nil {
		t.Error("late response should not complete anything")
	}
}

func TestRequestTracker_CancelPending(t *testing.T) {
	tracker := NewRequestTracker(20 * time.Millisecond)

	called := make(chan struct{}, 1)
	tracker.SetTimeoutCallback(func(PendingRequest) { called <- struct{}{} })

	if err := tracker.StartRequest(OpReadByTypeRequest, 0x0001, nil); err != nil {
		t.Fatalf("StartRequest failed: %v", err)
	}
	tracker.CancelPending()
	if tracker.HasPending() {
		t.Fatal("Expected no pending request after cancel")
	}

	select {
	case <-called:
		t.Error("timeout callback should not fire after cancel")
	case <-time.After(60 * time.Millisecond):
	}
}

func TestRequestTracker_WrongResponseOpcode(t *testing.T) {
	tracker := NewRequestTracker(time.Second)
	if err := tracker.StartRequest(OpReadByTypeRequest, 0x0001, nil); err != nil {
		t.Fatalf("StartRequest failed: %v", err)
	}

	if _, err := tracker.CompleteRequest(OpFindInformationResponse); err == nil {
		t.Error("Expected error for mismatched response opcode")
	}
	if !tracker.HasPending() {
		t.Error("mismatched response should leave the request pending")
	}
	tracker.CancelPending()
}

func TestGetResponseOpcode(t *testing.T) {
	tests := []struct {
		request  uint8
		response uint8
	}{
		{OpExchangeMTURequest, OpExchangeMTUResponse},
		{OpFindInformationRequest, OpFindInformationResponse},
		{OpReadByTypeRequest, OpReadByTypeResponse},
		{OpReadRequest, OpReadResponse},
		{OpReadByGroupTypeRequest, OpReadByGroupTypeResponse},
		{OpErrorResponse, 0},
	}
	for _, tt := range tests {
		if got := GetResponseOpcode(tt.request); got != tt.response {
			t.Errorf("GetResponseOpcode(0x%02X) = 0x%02X, want 0x%02X", tt.request, got, tt.response)
		}
		if IsRequest(tt.request) != (tt.response != 0) {
			t.Errorf("IsRequest(0x%02X) mismatch", tt.request)
		}
	}
	if !IsResponse(OpErrorResponse) || IsResponse(OpReadRequest) {
		t.Error("IsResponse mismatch")
	}
}
