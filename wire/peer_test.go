package wire

import (
	"testing"

	"github.com/ARMmbed/mbed-os-sub118/ble"
	"github.com/ARMmbed/mbed-os-sub118/wire/att"
)

func expectError(t *testing.T, resp interface{}, opcode, code uint8) {
	t.Helper()
	e, ok := resp.(*att.ErrorResponse)
	if !ok {
		t.Fatalf("expected error response, got %T", resp)
	}
	if e.RequestOpcode != opcode || e.ErrorCode != code {
		t.Errorf("error response = %+v, want opcode 0x%02X code 0x%02X", e, opcode, code)
	}
}

func TestPeerExchangeMTU(t *testing.T) {
	p := newTestPeer(t, WithPeerMTU(100))

	tests := []struct {
		client uint16
		want   int
	}{
		{10, DefaultMTU},
		{64, 64},
		{247, 100},
	}
	for _, tt := range tests {
		s := &peerSession{mtu: DefaultMTU}
		resp := p.handleRequest(s, &att.ExchangeMTURequest{ClientRxMTU: tt.client})
		r, ok := resp.(*att.ExchangeMTUResponse)
		if !ok {
			t.Fatalf("expected ExchangeMTUResponse, got %T", resp)
		}
		if r.ServerRxMTU != 100 {
			t.Errorf("ServerRxMTU = %d, want 100", r.ServerRxMTU)
		}
		if s.mtu != tt.want {
			t.Errorf("client %d: session MTU = %d, want %d", tt.client, s.mtu, tt.want)
		}
	}
}

func TestPeerReadByGroupType(t *testing.T) {
	p := newTestPeer(t)
	s := &peerSession{mtu: DefaultMTU}
	primary := ble.UUID16(ble.UUIDPrimaryService).Bytes()

	resp := p.handleRequest(s, &att.ReadByGroupTypeRequest{StartHandle: 1, EndHandle: 0xFFFF, Type: primary})
	r, ok := resp.(*att.ReadByGroupTypeResponse)
	if !ok {
		t.Fatalf("expected ReadByGroupTypeResponse, got %T", resp)
	}
	// GAP and GATT, then the size change to the 128-bit UART service.
	if r.Length != 6 || len(r.AttributeData) != 12 {
		t.Errorf("Length=%d data=%x", r.Length, r.AttributeData)
	}

	resp = p.handleRequest(s, &att.ReadByGroupTypeRequest{StartHandle: 0x13, EndHandle: 0xFFFF, Type: primary})
	expectError(t, resp, att.OpReadByGroupTypeRequest, att.ErrAttributeNotFound)

	resp = p.handleRequest(s, &att.ReadByGroupTypeRequest{StartHandle: 1, EndHandle: 0xFFFF, Type: ble.UUID16(0x2803).Bytes()})
	expectError(t, resp, att.OpReadByGroupTypeRequest, att.ErrUnsupportedGroupType)

	resp = p.handleRequest(s, &att.ReadByGroupTypeRequest{StartHandle: 5, EndHandle: 4, Type: primary})
	expectError(t, resp, att.OpReadByGroupTypeRequest, att.ErrInvalidHandle)
}

func TestPeerReadByType(t *testing.T) {
	p := newTestPeer(t)
	s := &peerSession{mtu: DefaultMTU}

	resp := p.handleRequest(s, &att.ReadByTypeRequest{StartHandle: 0x0B, EndHandle: 0x0C, Type: ble.UUID16(ble.UUIDCharacteristic).Bytes()})
	r, ok := resp.(*att.ReadByTypeResponse)
	if !ok {
		t.Fatalf("expected ReadByTypeResponse, got %T", resp)
	}
	if r.Length != 21 || len(r.AttributeData) != 21 {
		t.Errorf("Length=%d data=%x", r.Length, r.AttributeData)
	}

	resp = p.handleRequest(s, &att.ReadByTypeRequest{StartHandle: 0x0C, EndHandle: 0x0C, Type: ble.UUID16(ble.UUIDCharacteristic).Bytes()})
	expectError(t, resp, att.OpReadByTypeRequest, att.ErrAttributeNotFound)

	resp = p.handleRequest(s, &att.ReadByTypeRequest{StartHandle: 0, EndHandle: 0x0C, Type: ble.UUID16(ble.UUIDCharacteristic).Bytes()})
	expectError(t, resp, att.OpReadByTypeRequest, att.ErrInvalidHandle)
}

func TestPeerFindInformation(t *testing.T) {
	p := newTestPeer(t)
	s := &peerSession{mtu: DefaultMTU}

	resp := p.handleRequest(s, &att.FindInformationRequest{StartHandle: 0x0F, EndHandle: 0x0F})
	r, ok := resp.(*att.FindInformationResponse)
	if !ok {
		t.Fatalf("expected FindInformationResponse, got %T", resp)
	}
	if r.Format != 0x01 || len(r.Data) != 4 || r.Data[0] != 0x0F || r.Data[2] != 0x02 || r.Data[3] != 0x29 {
		t.Errorf("Format=%d data=%x", r.Format, r.Data)
	}

	resp = p.handleRequest(s, &att.FindInformationRequest{StartHandle: 0x13, EndHandle: 0xFFFF})
	expectError(t, resp, att.OpFindInformationRequest, att.ErrAttributeNotFound)
}

func TestPeerRead(t *testing.T) {
	p := newTestPeer(t)
	s := &peerSession{mtu: DefaultMTU}

	resp := p.handleRequest(s, &att.ReadRequest{Handle: 0x12})
	r, ok := resp.(*att.ReadResponse)
	if !ok {
		t.Fatalf("expected ReadResponse, got %T", resp)
	}
	if len(r.Value) != 1 || r.Value[0] != 87 {
		t.Errorf("battery level = %x", r.Value)
	}

	// UART RX is write only.
	resp = p.handleRequest(s, &att.ReadRequest{Handle: 0x0C})
	expectError(t, resp, att.OpReadRequest, att.ErrReadNotPermitted)

	resp = p.handleRequest(s, &att.ReadRequest{Handle: 0x40})
	expectError(t, resp, att.OpReadRequest, att.ErrInvalidHandle)
}

func TestPeerUnsupportedRequest(t *testing.T) {
	p := newTestPeer(t)
	resp := p.handleRequest(&peerSession{mtu: DefaultMTU}, &att.ExchangeMTUResponse{ServerRxMTU: 23})
	expectError(t, resp, att.OpExchangeMTUResponse, att.ErrRequestNotSupported)
}
