package gattc

import (
	"fmt"

	"github.com/ARMmbed/mbed-os-sub118/ble"
)

// Batch limits of the stack. Entries beyond these are dropped.
const (
	MaxServicesPerBatch        = 4
	MaxCharacteristicsPerBatch = 4
)

// GattStatus is the status carried by a GATT client response event.
type GattStatus uint16

const (
	StatusSuccess GattStatus = 0x0000
	StatusUnknown GattStatus = 0x0001

	// ATT error codes returned by the peer are reported as
	// statusATTErrorBase + code.
	statusATTErrorBase GattStatus = 0x0100

	StatusInvalidHandle     GattStatus = statusATTErrorBase + 0x01
	StatusAttributeNotFound GattStatus = statusATTErrorBase + 0x0A
	StatusUnlikelyError     GattStatus = statusATTErrorBase + 0x0E
)

// StatusFromATTError returns the status reported for an ATT error code.
func StatusFromATTError(code uint8) GattStatus {
	return statusATTErrorBase + GattStatus(code)
}

// ATTError returns the ATT error code behind s, if any.
func (s GattStatus) ATTError() (uint8, bool) {
	if s <= statusATTErrorBase || s > statusATTErrorBase+0xFF {
		return 0, false
	}
	return uint8(s - statusATTErrorBase), true
}

func (s GattStatus) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusUnknown:
		return "unknown"
	case StatusAttributeNotFound:
		return "attribute not found"
	}
	if code, ok := s.ATTError(); ok {
		return fmt.Sprintf("att error 0x%02X", code)
	}
	return fmt.Sprintf("status 0x%04X", uint16(s))
}

// Event is a GATT client response delivered by the transport.
type Event interface {
	eventStatus() GattStatus
}

// ServiceRecord is one service of a primary service discovery response.
type ServiceRecord struct {
	UUID  ble.UUID
	Range ble.HandleRange
}

// PrimaryServiceDiscoveryResponse answers DiscoverPrimaryServices.
type PrimaryServiceDiscoveryResponse struct {
	Status   GattStatus
	Services []ServiceRecord
}

// CharacteristicRecord is one characteristic of a characteristic
// discovery response.
type CharacteristicRecord struct {
	UUID        ble.UUID
	Properties  ble.Properties
	DeclHandle  ble.Handle
	ValueHandle ble.Handle
}

// CharacteristicDiscoveryResponse answers DiscoverCharacteristics.
type CharacteristicDiscoveryResponse struct {
	Status          GattStatus
	Characteristics []CharacteristicRecord
}

// ReadByUUIDResponse answers ReadByUUID. Values holds Count values of
// ValueLen bytes each, back to back.
type ReadByUUIDResponse struct {
	Status   GattStatus
	Count    int
	ValueLen int
	Values   []byte
}

// Value returns the i-th value of the response.
func (r *ReadByUUIDResponse) Value(i int) []byte {
	lo, hi := i*r.ValueLen, (i+1)*r.ValueLen
	if i < 0 || i >= r.Count || hi > len(r.Values) {
		return nil
	}
	return r.Values[lo:hi]
}

// DescriptorDiscoveryResponse answers DiscoverDescriptors.
type DescriptorDiscoveryResponse struct {
	Status      GattStatus
	Descriptors []DiscoveredDescriptor
}

func (e *PrimaryServiceDiscoveryResponse) eventStatus() GattStatus { return e.Status }
func (e *CharacteristicDiscoveryResponse) eventStatus() GattStatus { return e.Status }
func (e *ReadByUUIDResponse) eventStatus() GattStatus              { return e.Status }
func (e *DescriptorDiscoveryResponse) eventStatus() GattStatus     { return e.Status }
