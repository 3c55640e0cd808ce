package att

import (
	"sync"
	"time"

	"github.com/pkg/errors"
)

// DefaultTimeout is the ATT transaction timeout.
const DefaultTimeout = 30 * time.Second

// ErrRequestPending is returned by StartRequest while another request is
// outstanding.
var ErrRequestPending = errors.New("att: request already pending")

// RequestTracker enforces the one-outstanding-request rule of an ATT bearer
// and reports requests that never get a response.
type RequestTracker struct {
	mu              sync.Mutex
	pending         *PendingRequest
	timer           *time.Timer
	defaultTimeout  time.Duration
	timeoutCallback func(req PendingRequest)
}

// PendingRequest is the single outstanding ATT request
type PendingRequest struct {
	Opcode byte        // Request opcode
	Handle uint16      // First handle the request refers to
	Tag    interface{} // Caller context returned with the response
	SentAt time.Time
}

// NewRequestTracker creates a new request tracker
func NewRequestTracker(timeout time.Duration) *RequestTracker {
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	return &RequestTracker{
		defaultTimeout: timeout,
	}
}

// SetTimeoutCallback sets the callback invoked, from a timer goroutine, when
// a request times out
func (rt *RequestTracker) SetTimeoutCallback(cb func(req PendingRequest)) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	rt.timeoutCallback = cb
}

// StartRequest registers a new request.
func (rt *RequestTracker) StartRequest(opcode byte, handle uint16, tag interface{}) error {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	if rt.pending != nil {
		return errors.Wrapf(ErrRequestPending, "opcode 0x%02X on handle 0x%04X", rt.pending.Opcode, rt.pending.Handle)
	}

	req := &PendingRequest{
		Opcode: opcode,
		Handle: handle,
		Tag:    tag,
		SentAt: time.Now(),
	}
	rt.pending = req
	rt.timer = time.AfterFunc(rt.defaultTimeout, func() { rt.expire(req) })
	return nil
}

func (rt *RequestTracker) expire(req *PendingRequest) {
	rt.mu.Lock()
	if rt.pending != req {
		rt.mu.Unlock()
		return
	}
	rt.pending = nil
	rt.timer = nil
	cb := rt.timeoutCallback
	rt.mu.Unlock()

	if cb != nil {
		cb(*req)
	}
}

// CompleteRequest matches a response opcode with the pending request and
// clears it.
func (rt *RequestTracker) CompleteRequest(responseOpcode byte) (PendingRequest, error) {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	if rt.pending == nil {
		return PendingRequest{}, errors.Errorf("att: no pending request for response opcode 0x%02X", responseOpcode)
	}

	expected := GetResponseOpcode(rt.pending.Opcode)
	if responseOpcode != expected && responseOpcode != OpErrorResponse {
		return PendingRequest{}, errors.Errorf("att: unexpected response opcode 0x%02X for request 0x%02X (expected 0x%02X)",
			responseOpcode, rt.pending.Opcode, expected)
	}

	req := *rt.pending
	rt.clear()
	return req, nil
}

// HasPending returns true if there is a pending request
func (rt *RequestTracker) HasPending() bool {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return rt.pending != nil
}

// CancelPending drops any pending request without invoking the timeout
// callback (used during disconnection)
func (rt *RequestTracker) CancelPending() {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	rt.clear()
}

func (rt *RequestTracker) clear() {
	if rt.timer != nil {
		rt.timer.Stop()
		rt.timer = nil
	}
	rt.pending = nil
}
