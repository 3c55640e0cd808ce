package gatt

import (
	"sync"

	"github.com/pkg/errors"

	"github.com/ARMmbed/mbed-os-sub118/ble"
)

// Attribute permissions (not transmitted over the air, server-side only)
const (
	PermReadable     = 0x01
	PermWritable     = 0x02
	PermReadEncrypt  = 0x04
	PermWriteEncrypt = 0x08
)

// Attribute represents a single GATT attribute with a handle
type Attribute struct {
	Handle      ble.Handle
	Type        ble.UUID
	Value       []byte
	Permissions uint8
}

// IsServiceDeclaration reports whether the attribute opens a service group.
func (a *Attribute) IsServiceDeclaration() bool {
	return a.Type == ble.UUID16(ble.UUIDPrimaryService) || a.Type == ble.UUID16(ble.UUIDSecondaryService)
}

// AttributeDatabase manages the GATT attribute table with handle-based access
type AttributeDatabase struct {
	mu         sync.RWMutex
	attributes map[ble.Handle]*Attribute
	nextHandle uint32 // uint32 so a full table does not wrap to 0x0000
}

// NewAttributeDatabase creates an empty attribute database
func NewAttributeDatabase() *AttributeDatabase {
	return &AttributeDatabase{
		attributes: make(map[ble.Handle]*Attribute),
		nextHandle: uint32(ble.FirstHandle),
	}
}

// AddAttribute adds an attribute and assigns it the next free handle
func (db *AttributeDatabase) AddAttribute(typ ble.UUID, value []byte, permissions uint8) (ble.Handle, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	if db.nextHandle > uint32(ble.LastHandle) {
		return 0, errors.New("gatt: attribute table is full")
	}
	handle := ble.Handle(db.nextHandle)
	db.nextHandle++

	db.attributes[handle] = &Attribute{
		Handle:      handle,
		Type:        typ,
		Value:       append([]byte{}, value...),
		Permissions: permissions,
	}
	return handle, nil
}

// peekNextHandle returns the handle AddAttribute will assign next.
func (db *AttributeDatabase) peekNextHandle() ble.Handle {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return ble.Handle(db.nextHandle)
}

// GetAttribute retrieves a copy of an attribute by handle
func (db *AttributeDatabase) GetAttribute(handle ble.Handle) (*Attribute, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	attr, ok := db.attributes[handle]
	if !ok {
		return nil, errors.Errorf("gatt: invalid handle 0x%04X", uint16(handle))
	}
	return copyAttribute(attr), nil
}

// SetAttributeValue updates an attribute's value
func (db *AttributeDatabase) SetAttributeValue(handle ble.Handle, value []byte) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	attr, ok := db.attributes[handle]
	if !ok {
		return errors.Errorf("gatt: invalid handle 0x%04X", uint16(handle))
	}
	attr.Value = append([]byte{}, value...)
	return nil
}

// Attributes returns copies of the attributes in r, in handle order.
func (db *AttributeDatabase) Attributes(r ble.HandleRange) []*Attribute {
	db.mu.RLock()
	defer db.mu.RUnlock()

	var attrs []*Attribute
	for h := uint32(r.Start); h <= uint32(r.End) && h < db.nextHandle; h++ {
		if attr, ok := db.attributes[ble.Handle(h)]; ok {
			attrs = append(attrs, copyAttribute(attr))
		}
	}
	return attrs
}

// FindAttributesByType returns all handles in r whose type is typ
func (db *AttributeDatabase) FindAttributesByType(r ble.HandleRange, typ ble.UUID) []ble.Handle {
	var handles []ble.Handle
	for _, attr := range db.Attributes(r) {
		if attr.Type == typ {
			handles = append(handles, attr.Handle)
		}
	}
	return handles
}

// LastHandle returns the highest assigned handle, or 0 for an empty table
func (db *AttributeDatabase) LastHandle() ble.Handle {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return ble.Handle(db.nextHandle - 1)
}

// Count returns the number of attributes in the database
func (db *AttributeDatabase) Count() int {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return len(db.attributes)
}

// Clear removes all attributes from the database
func (db *AttributeDatabase) Clear() {
	db.mu.Lock()
	defer db.mu.Unlock()

	db.attributes = make(map[ble.Handle]*Attribute)
	db.nextHandle = uint32(ble.FirstHandle)
}

func copyAttribute(attr *Attribute) *Attribute {
	return &Attribute{
		Handle:      attr.Handle,
		Type:        attr.Type,
		Value:       append([]byte{}, attr.Value...),
		Permissions: attr.Permissions,
	}
}
