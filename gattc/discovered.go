package gattc

import (
	"fmt"

	"github.com/ARMmbed/mbed-os-sub118/ble"
)

// DiscoveredService is a primary service found during discovery.
type DiscoveredService struct {
	UUID        ble.UUID
	StartHandle ble.Handle
	EndHandle   ble.Handle
}

func (s *DiscoveredService) setup(u ble.UUID, start, end ble.Handle) {
	s.UUID = u
	s.StartHandle = start
	s.EndHandle = end
}

// Range returns the handle range spanned by the service.
func (s *DiscoveredService) Range() ble.HandleRange {
	return ble.HandleRange{Start: s.StartHandle, End: s.EndHandle}
}

func (s *DiscoveredService) String() string {
	return fmt.Sprintf("service %s [%s]", s.UUID, s.Range())
}

// DiscoveredCharacteristic is a characteristic found while scanning a
// service. Its last handle is only meaningful once the characteristic has
// been handed to a callback; until then the engine may still be waiting
// for the next declaration or the end of the service.
//
// The zero value is the "none" characteristic.
type DiscoveredCharacteristic struct {
	client      *Client
	conn        ble.ConnHandle
	uuid        ble.UUID
	props       ble.Properties
	declHandle  ble.Handle
	valueHandle ble.Handle
	lastHandle  ble.Handle
}

func (c *DiscoveredCharacteristic) setup(client *Client, conn ble.ConnHandle, u ble.UUID, props ble.Properties, decl, value ble.Handle) {
	c.client = client
	c.conn = conn
	c.uuid = u
	c.props = props
	c.declHandle = decl
	c.valueHandle = value
	c.lastHandle = 0
}

func (c *DiscoveredCharacteristic) setUUID(u ble.UUID)         { c.uuid = u }
func (c *DiscoveredCharacteristic) setLastHandle(h ble.Handle) { c.lastHandle = h }

// UUID returns the characteristic type.
func (c *DiscoveredCharacteristic) UUID() ble.UUID { return c.uuid }

// Properties returns the declared property bits.
func (c *DiscoveredCharacteristic) Properties() ble.Properties { return c.props }

// DeclHandle returns the handle of the characteristic declaration.
func (c *DiscoveredCharacteristic) DeclHandle() ble.Handle { return c.declHandle }

// ValueHandle returns the handle of the characteristic value.
func (c *DiscoveredCharacteristic) ValueHandle() ble.Handle { return c.valueHandle }

// LastHandle returns the last handle belonging to the characteristic.
func (c *DiscoveredCharacteristic) LastHandle() ble.Handle { return c.lastHandle }

// ConnHandle returns the connection the characteristic was discovered on.
func (c *DiscoveredCharacteristic) ConnHandle() ble.ConnHandle { return c.conn }

// Client returns the client that discovered the characteristic.
func (c *DiscoveredCharacteristic) Client() *Client { return c.client }

// Equal compares connection handle, value handle and UUID.
func (c *DiscoveredCharacteristic) Equal(o *DiscoveredCharacteristic) bool {
	if c == nil || o == nil {
		return c == o
	}
	return c.conn == o.conn && c.valueHandle == o.valueHandle && c.uuid == o.uuid
}

// IsZero reports whether c is the "none" characteristic.
func (c *DiscoveredCharacteristic) IsZero() bool {
	return *c == DiscoveredCharacteristic{}
}

// DescriptorsRange returns the handles that may hold descriptors: everything
// after the declaration and value attributes up to the last handle. The
// range is empty when there is no room for descriptors.
func (c *DiscoveredCharacteristic) DescriptorsRange() ble.HandleRange {
	start := uint32(c.declHandle) + 2
	if start > uint32(ble.LastHandle) {
		return ble.HandleRange{Start: ble.LastHandle, End: 0}
	}
	return ble.HandleRange{Start: ble.Handle(start), End: c.lastHandle}
}

// DiscoverDescriptors runs descriptor discovery for c on the client that
// found it.
func (c *DiscoveredCharacteristic) DiscoverDescriptors(onDescriptor DescriptorCallback, onTermination DescriptorTerminationCallback) error {
	if c.client == nil {
		return ble.ErrOperationNotPermitted
	}
	return c.client.DiscoverCharacteristicDescriptors(c, onDescriptor, onTermination)
}

func (c *DiscoveredCharacteristic) String() string {
	return fmt.Sprintf("characteristic %s decl=0x%04X value=0x%04X last=0x%04X props=%v",
		c.uuid, uint16(c.declHandle), uint16(c.valueHandle), uint16(c.lastHandle), c.props.Names())
}

// DiscoveredDescriptor is one entry of a descriptor discovery batch.
type DiscoveredDescriptor struct {
	Handle ble.Handle
	UUID   ble.UUID
}
