package gattc

import (
	"github.com/ARMmbed/mbed-os-sub118/ble"
)

type requestKind string

const (
	reqServices        requestKind = "services"
	reqCharacteristics requestKind = "characteristics"
	reqReadByUUID      requestKind = "read-by-uuid"
	reqDescriptors     requestKind = "descriptors"
)

type request struct {
	kind  requestKind
	conn  ble.ConnHandle
	start ble.Handle
	rng   ble.HandleRange
	uuid  ble.UUID
}

// fakeTransport records every request and fails the ones queued with fail.
type fakeTransport struct {
	requests []request
	failures map[requestKind][]error
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{failures: make(map[requestKind][]error)}
}

func (f *fakeTransport) fail(kind requestKind, errs ...error) {
	f.failures[kind] = append(f.failures[kind], errs...)
}

func (f *fakeTransport) issue(r request) error {
	if q := f.failures[r.kind]; len(q) > 0 {
		f.failures[r.kind] = q[1:]
		return q[0]
	}
	f.requests = append(f.requests, r)
	return nil
}

func (f *fakeTransport) last() request {
	if len(f.requests) == 0 {
		return request{}
	}
	return f.requests[len(f.requests)-1]
}

func (f *fakeTransport) count(kind requestKind) int {
	n := 0
	for _, r := range f.requests {
		if r.kind == kind {
			n++
		}
	}
	return n
}

func (f *fakeTransport) DiscoverPrimaryServices(conn ble.ConnHandle, start ble.Handle) error {
	return f.issue(request{kind: reqServices, conn: conn, start: start})
}

func (f *fakeTransport) DiscoverCharacteristics(conn ble.ConnHandle, r ble.HandleRange) error {
	return f.issue(request{kind: reqCharacteristics, conn: conn, rng: r})
}

func (f *fakeTransport) ReadByUUID(conn ble.ConnHandle, u ble.UUID, r ble.HandleRange) error {
	return f.issue(request{kind: reqReadByUUID, conn: conn, rng: r, uuid: u})
}

func (f *fakeTransport) DiscoverDescriptors(conn ble.ConnHandle, r ble.HandleRange) error {
	return f.issue(request{kind: reqDescriptors, conn: conn, rng: r})
}

// recorder collects discovery callbacks.
type recorder struct {
	services        []DiscoveredService
	characteristics []DiscoveredCharacteristic
	terminations    []error
	terminatedConns []ble.ConnHandle
}

func (r *recorder) onService(s *DiscoveredService) {
	r.services = append(r.services, *s)
}

func (r *recorder) onCharacteristic(c *DiscoveredCharacteristic) {
	r.characteristics = append(r.characteristics, *c)
}

func (r *recorder) onTermination(conn ble.ConnHandle, err error) {
	r.terminations = append(r.terminations, err)
	r.terminatedConns = append(r.terminatedConns, conn)
}

func newTestClient(opts ...Option) (*Client, *fakeTransport, *recorder) {
	t := newFakeTransport()
	c := NewClient(t, opts...)
	rec := &recorder{}
	c.OnServiceDiscoveryTermination(rec.onTermination)
	return c, t, rec
}

func svc(u ble.UUID, start, end ble.Handle) ServiceRecord {
	return ServiceRecord{UUID: u, Range: ble.HandleRange{Start: start, End: end}}
}

func chr(u ble.UUID, decl, value ble.Handle) CharacteristicRecord {
	return CharacteristicRecord{UUID: u, Properties: ble.PropRead, DeclHandle: decl, ValueHandle: value}
}

func servicesEvent(records ...ServiceRecord) *PrimaryServiceDiscoveryResponse {
	return &PrimaryServiceDiscoveryResponse{Status: StatusSuccess, Services: records}
}

func characteristicsEvent(records ...CharacteristicRecord) *CharacteristicDiscoveryResponse {
	return &CharacteristicDiscoveryResponse{Status: StatusSuccess, Characteristics: records}
}

func uuidEvent(values ...byte) *ReadByUUIDResponse {
	return &ReadByUUIDResponse{Status: StatusSuccess, Count: 1, ValueLen: len(values), Values: values}
}
