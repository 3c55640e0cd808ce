package gattc

import (
	"github.com/ARMmbed/mbed-os-sub118/ble"
	"github.com/ARMmbed/mbed-os-sub118/logger"
)

// DescriptorCallback receives each descriptor found for a characteristic.
type DescriptorCallback func(c *DiscoveredCharacteristic, d DiscoveredDescriptor)

// DescriptorTerminationCallback is invoked once a descriptor discovery
// ends. err is nil on normal completion.
type DescriptorTerminationCallback func(c *DiscoveredCharacteristic, err error)

type descriptorDiscovery struct {
	characteristic DiscoveredCharacteristic
	onDescriptor   DescriptorCallback
	onTermination  DescriptorTerminationCallback
}

func (d *descriptorDiscovery) terminate(err error) {
	if d.onTermination != nil {
		d.onTermination(&d.characteristic, err)
	}
}

// DescriptorDiscoverer runs descriptor discoveries, at most one per
// connection, from a fixed pool of slots. A nil slot is free.
type DescriptorDiscoverer struct {
	transport Transport
	slots     []*descriptorDiscovery
}

// NewDescriptorDiscoverer returns a discoverer able to serve maxConnections
// discoveries at once.
func NewDescriptorDiscoverer(t Transport, maxConnections int) *DescriptorDiscoverer {
	if maxConnections < 1 {
		maxConnections = 1
	}
	return &DescriptorDiscoverer{
		transport: t,
		slots:     make([]*descriptorDiscovery, maxConnections),
	}
}

// Launch discovers the descriptors of c. When c has no room for
// descriptors onTermination is called with a nil error before Launch
// returns. Launch fails with ble.ErrStackBusy when the connection already
// runs a discovery or no slot is free. The slot is only taken once the
// first request has been issued.
func (dd *DescriptorDiscoverer) Launch(c *DiscoveredCharacteristic, onDescriptor DescriptorCallback, onTermination DescriptorTerminationCallback) error {
	r := c.DescriptorsRange()
	if r.Empty() {
		logger.Trace(logPrefix, "conn %d: no descriptors possible for %s", c.conn, c)
		if onTermination != nil {
			onTermination(c, nil)
		}
		return nil
	}

	if dd.findByConn(c.conn) >= 0 {
		return ble.ErrStackBusy
	}
	slot := dd.freeSlot()
	if slot < 0 {
		return ble.ErrStackBusy
	}

	if err := dd.transport.DiscoverDescriptors(c.conn, r); err != nil {
		return ble.TranslateStatus(err)
	}
	dd.slots[slot] = &descriptorDiscovery{
		characteristic: *c,
		onDescriptor:   onDescriptor,
		onTermination:  onTermination,
	}
	logger.Debug(logPrefix, "conn %d: descriptor discovery over %s launched", c.conn, r)
	return nil
}

// IsActive reports whether a discovery runs for c.
func (dd *DescriptorDiscoverer) IsActive(c *DiscoveredCharacteristic) bool {
	return dd.findByCharacteristic(c) >= 0
}

// RequestTerminate ends the discovery running for c, if any.
func (dd *DescriptorDiscoverer) RequestTerminate(c *DiscoveredCharacteristic) {
	dd.terminateSlot(dd.findByCharacteristic(c), nil)
}

// Terminate ends the discovery running on conn, if any.
func (dd *DescriptorDiscoverer) Terminate(conn ble.ConnHandle, err error) {
	dd.terminateSlot(dd.findByConn(conn), err)
}

// process hands a batch of descriptors to the discovery on conn and asks
// for the rest of the range.
func (dd *DescriptorDiscoverer) process(conn ble.ConnHandle, descriptors []DiscoveredDescriptor) {
	slot := dd.findByConn(conn)
	if slot < 0 {
		return
	}
	d := dd.slots[slot]

	for _, desc := range descriptors {
		if d.onDescriptor != nil {
			d.onDescriptor(&d.characteristic, desc)
		}
		// Terminated, and possibly relaunched, from the callback.
		if dd.slots[slot] != d {
			return
		}
	}

	if len(descriptors) == 0 {
		dd.terminateSlot(slot, nil)
		return
	}

	start := uint32(descriptors[len(descriptors)-1].Handle) + 1
	end := d.characteristic.lastHandle
	if start > uint32(end) {
		dd.terminateSlot(slot, nil)
		return
	}

	r := ble.HandleRange{Start: ble.Handle(start), End: end}
	if err := dd.transport.DiscoverDescriptors(conn, r); err != nil {
		err = ble.TranslateStatus(err)
		logger.Warn(logPrefix, "conn %d: descriptor discovery over %s not issued: %v", conn, r, err)
		dd.terminateSlot(slot, err)
	}
}

// terminateSlot frees the slot before running the callback so that the
// callback can launch a new discovery on the same connection.
func (dd *DescriptorDiscoverer) terminateSlot(slot int, err error) {
	if slot < 0 {
		return
	}
	d := dd.slots[slot]
	dd.slots[slot] = nil
	logger.Debug(logPrefix, "conn %d: descriptor discovery terminated (err=%v)", d.characteristic.conn, err)
	d.terminate(err)
}

func (dd *DescriptorDiscoverer) findByConn(conn ble.ConnHandle) int {
	for i, d := range dd.slots {
		if d != nil && d.characteristic.conn == conn {
			return i
		}
	}
	return -1
}

func (dd *DescriptorDiscoverer) findByCharacteristic(c *DiscoveredCharacteristic) int {
	for i, d := range dd.slots {
		if d != nil && d.characteristic.Equal(c) {
			return i
		}
	}
	return -1
}

func (dd *DescriptorDiscoverer) freeSlot() int {
	for i, d := range dd.slots {
		if d == nil {
			return i
		}
	}
	return -1
}
