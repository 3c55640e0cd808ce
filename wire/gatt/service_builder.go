package gatt

import (
	"encoding/binary"

	"github.com/pkg/errors"

	"github.com/ARMmbed/mbed-os-sub118/ble"
)

// Service represents a high-level GATT service definition
type Service struct {
	UUID            ble.UUID
	Primary         bool // false declares a secondary service
	Characteristics []Characteristic
}

// Characteristic represents a high-level GATT characteristic definition
type Characteristic struct {
	UUID        ble.UUID
	Properties  ble.Properties
	Value       []byte
	Descriptors []Descriptor
}

// Descriptor represents a GATT descriptor
type Descriptor struct {
	UUID  ble.UUID
	Value []byte
}

// ServiceHandleInfo stores the handle ranges for a built service
type ServiceHandleInfo struct {
	UUID            ble.UUID
	Range           ble.HandleRange
	Characteristics []CharacteristicHandleInfo
}

// CharacteristicHandleInfo stores the handles assigned to one characteristic
type CharacteristicHandleInfo struct {
	UUID              ble.UUID
	DeclHandle        ble.Handle
	ValueHandle       ble.Handle
	DescriptorHandles []ble.Handle
}

// BuildAttributeDatabase converts high-level service definitions into an attribute database
func BuildAttributeDatabase(services []Service) (*AttributeDatabase, []ServiceHandleInfo, error) {
	db := NewAttributeDatabase()
	infos := make([]ServiceHandleInfo, 0, len(services))

	for idx, service := range services {
		info, err := buildService(db, service)
		if err != nil {
			return nil, nil, errors.Wrapf(err, "gatt: service %d (%s)", idx, service.UUID)
		}
		infos = append(infos, info)
	}
	return db, infos, nil
}

func buildService(db *AttributeDatabase, service Service) (ServiceHandleInfo, error) {
	info := ServiceHandleInfo{UUID: service.UUID}

	declType := ble.UUID16(ble.UUIDSecondaryService)
	if service.Primary {
		declType = ble.UUID16(ble.UUIDPrimaryService)
	}

	start, err := db.AddAttribute(declType, service.UUID.Bytes(), PermReadable)
	if err != nil {
		return info, err
	}

	for _, char := range service.Characteristics {
		charInfo, err := buildCharacteristic(db, char)
		if err != nil {
			return info, err
		}
		info.Characteristics = append(info.Characteristics, charInfo)
	}

	info.Range = ble.HandleRange{Start: start, End: db.LastHandle()}
	return info, nil
}

// buildCharacteristic adds a characteristic and its descriptors to the database
func buildCharacteristic(db *AttributeDatabase, char Characteristic) (CharacteristicHandleInfo, error) {
	info := CharacteristicHandleInfo{UUID: char.UUID}

	// Declaration value: [Properties: 1][Value Handle: 2][UUID: 2 or 16]
	uuidBytes := char.UUID.Bytes()
	declValue := make([]byte, 3+len(uuidBytes))
	declValue[0] = byte(char.Properties)
	binary.LittleEndian.PutUint16(declValue[1:3], uint16(db.peekNextHandle()+1))
	copy(declValue[3:], uuidBytes)

	var err error
	if info.DeclHandle, err = db.AddAttribute(ble.UUID16(ble.UUIDCharacteristic), declValue, PermReadable); err != nil {
		return info, err
	}
	if info.ValueHandle, err = db.AddAttribute(char.UUID, char.Value, determinePermissions(char.Properties)); err != nil {
		return info, err
	}

	hasCCCD := false
	for _, desc := range char.Descriptors {
		h, err := db.AddAttribute(desc.UUID, desc.Value, PermReadable|PermWritable)
		if err != nil {
			return info, err
		}
		info.DescriptorHandles = append(info.DescriptorHandles, h)
		if desc.UUID == ble.UUID16(ble.UUIDClientCharacteristicConfig) {
			hasCCCD = true
		}
	}

	// Notify and indicate need a CCCD; start with both disabled.
	if !hasCCCD && char.Properties&(ble.PropNotify|ble.PropIndicate) != 0 {
		h, err := db.AddAttribute(ble.UUID16(ble.UUIDClientCharacteristicConfig), []byte{0x00, 0x00}, PermReadable|PermWritable)
		if err != nil {
			return info, err
		}
		info.DescriptorHandles = append(info.DescriptorHandles, h)
	}

	return info, nil
}

// determinePermissions converts characteristic properties to attribute permissions
func determinePermissions(properties ble.Properties) uint8 {
	var perms uint8

	if properties&ble.PropRead != 0 {
		perms |= PermReadable
	}
	if properties&(ble.PropWrite|ble.PropWriteWithoutResponse) != 0 {
		perms |= PermWritable
	}
	return perms
}

// NewGenericAccessService creates the mandatory Generic Access service (0x1800)
func NewGenericAccessService(deviceName string, appearance uint16) Service {
	return Service{
		UUID:    ble.UUID16(0x1800),
		Primary: true,
		Characteristics: []Characteristic{
			{
				UUID:       ble.UUID16(0x2A00), // Device Name
				Properties: ble.PropRead,
				Value:      []byte(deviceName),
			},
			{
				UUID:       ble.UUID16(0x2A01), // Appearance
				Properties: ble.PropRead,
				Value:      []byte{byte(appearance), byte(appearance >> 8)},
			},
		},
	}
}

// NewGenericAttributeService creates the mandatory Generic Attribute service (0x1801)
func NewGenericAttributeService() Service {
	return Service{
		UUID:    ble.UUID16(0x1801),
		Primary: true,
		Characteristics: []Characteristic{
			{
				UUID:       ble.UUID16(0x2A05), // Service Changed
				Properties: ble.PropIndicate,
				Value:      []byte{0x00, 0x00, 0x00, 0x00},
			},
		},
	}
}
