package gatt

import (
	"encoding/binary"

	"github.com/pkg/errors"

	"github.com/ARMmbed/mbed-os-sub118/ble"
	"github.com/ARMmbed/mbed-os-sub118/wire/att"
)

// Find Information response formats
const (
	FormatUUID16  = 0x01
	FormatUUID128 = 0x02
)

// maxAttributeValue is the largest value a Read By Type entry may carry.
const maxAttributeValue = 253

// ServiceGroup is one entry of a Read By Group Type response
type ServiceGroup struct {
	Range ble.HandleRange
	UUID  ble.UUID
}

// CharacteristicDeclaration is a decoded 0x2803 attribute
type CharacteristicDeclaration struct {
	DeclHandle  ble.Handle
	Properties  ble.Properties
	ValueHandle ble.Handle
	UUID        ble.UUID
}

// HandleValue is one entry of a Read By Type response
type HandleValue struct {
	Handle ble.Handle
	Value  []byte
}

// DescriptorInfo is one entry of a Find Information response
type DescriptorInfo struct {
	Handle ble.Handle
	UUID   ble.UUID
}

// ParseReadByGroupTypeResponse parses a Read By Group Type Response (service discovery)
// Each entry: [StartHandle: 2][EndHandle: 2][UUID: 2 or 16]
func ParseReadByGroupTypeResponse(resp *att.ReadByGroupTypeResponse) ([]ServiceGroup, error) {
	length := int(resp.Length)
	if length != 6 && length != 20 {
		return nil, errors.Errorf("gatt: invalid group entry length %d", length)
	}
	if len(resp.AttributeData)%length != 0 {
		return nil, errors.Errorf("gatt: incomplete service data, %d trailing bytes", len(resp.AttributeData)%length)
	}

	var services []ServiceGroup
	for data := resp.AttributeData; len(data) >= length; data = data[length:] {
		u, err := ble.UUIDFromBytes(data[4:length])
		if err != nil {
			return nil, err
		}
		services = append(services, ServiceGroup{
			Range: ble.HandleRange{
				Start: ble.Handle(binary.LittleEndian.Uint16(data[0:2])),
				End:   ble.Handle(binary.LittleEndian.Uint16(data[2:4])),
			},
			UUID: u,
		})
	}
	return services, nil
}

// ParseReadByTypeResponse splits a Read By Type Response into its entries
func ParseReadByTypeResponse(resp *att.ReadByTypeResponse) ([]HandleValue, error) {
	length := int(resp.Length)
	if length < 2 {
		return nil, errors.Errorf("gatt: invalid attribute entry length %d", length)
	}
	if len(resp.AttributeData)%length != 0 {
		return nil, errors.Errorf("gatt: incomplete attribute data, %d trailing bytes", len(resp.AttributeData)%length)
	}

	var values []HandleValue
	for data := resp.AttributeData; len(data) >= length; data = data[length:] {
		values = append(values, HandleValue{
			Handle: ble.Handle(binary.LittleEndian.Uint16(data[0:2])),
			Value:  append([]byte{}, data[2:length]...),
		})
	}
	return values, nil
}

// ParseCharacteristicDeclaration decodes the value of a characteristic declaration
// Format: [Properties: 1][ValueHandle: 2][UUID: 2 or 16]
func ParseCharacteristicDeclaration(hv HandleValue) (CharacteristicDeclaration, error) {
	if len(hv.Value) != 5 && len(hv.Value) != 19 {
		return CharacteristicDeclaration{}, errors.Errorf("gatt: characteristic declaration at 0x%04X has %d bytes", uint16(hv.Handle), len(hv.Value))
	}
	u, err := ble.UUIDFromBytes(hv.Value[3:])
	if err != nil {
		return CharacteristicDeclaration{}, err
	}
	return CharacteristicDeclaration{
		DeclHandle:  hv.Handle,
		Properties:  ble.Properties(hv.Value[0]),
		ValueHandle: ble.Handle(binary.LittleEndian.Uint16(hv.Value[1:3])),
		UUID:        u,
	}, nil
}

// ParseFindInformationResponse parses a Find Information Response (descriptor discovery)
// Format 0x01: entries are [Handle: 2][UUID: 2]
// Format 0x02: entries are [Handle: 2][UUID: 16]
func ParseFindInformationResponse(resp *att.FindInformationResponse) ([]DescriptorInfo, error) {
	var entrySize int
	switch resp.Format {
	case FormatUUID16:
		entrySize = 4
	case FormatUUID128:
		entrySize = 18
	default:
		return nil, errors.Errorf("gatt: invalid Find Information format 0x%02X", resp.Format)
	}
	if len(resp.Data)%entrySize != 0 {
		return nil, errors.Errorf("gatt: incomplete descriptor data, %d trailing bytes", len(resp.Data)%entrySize)
	}

	var descriptors []DescriptorInfo
	for data := resp.Data; len(data) >= entrySize; data = data[entrySize:] {
		u, err := ble.UUIDFromBytes(data[2:entrySize])
		if err != nil {
			return nil, err
		}
		descriptors = append(descriptors, DescriptorInfo{
			Handle: ble.Handle(binary.LittleEndian.Uint16(data[0:2])),
			UUID:   u,
		})
	}
	return descriptors, nil
}

// BuildReadByGroupTypeResponse packs as many services as fit in one PDU of
// the given MTU. Only entries whose UUID has the size of the first one are
// included.
func BuildReadByGroupTypeResponse(services []ServiceGroup, mtu int) (*att.ReadByGroupTypeResponse, error) {
	if len(services) == 0 {
		return nil, errors.New("gatt: no services to encode")
	}

	uuidLen := len(services[0].UUID.Bytes())
	length := 4 + uuidLen
	resp := &att.ReadByGroupTypeResponse{Length: uint8(length)}

	for _, service := range services {
		if len(service.UUID.Bytes()) != uuidLen || 2+len(resp.AttributeData)+length > mtu {
			break
		}
		entry := make([]byte, length)
		binary.LittleEndian.PutUint16(entry[0:2], uint16(service.Range.Start))
		binary.LittleEndian.PutUint16(entry[2:4], uint16(service.Range.End))
		copy(entry[4:], service.UUID.Bytes())
		resp.AttributeData = append(resp.AttributeData, entry...)
	}

	if len(resp.AttributeData) == 0 {
		return nil, errors.Errorf("gatt: MTU %d too small for a service entry", mtu)
	}
	return resp, nil
}

// BuildReadByTypeResponse packs attribute values into one PDU of the given
// MTU. Every entry takes the length of the first; longer values are
// truncated and entries of another length end the response.
func BuildReadByTypeResponse(values []HandleValue, mtu int) (*att.ReadByTypeResponse, error) {
	if len(values) == 0 {
		return nil, errors.New("gatt: no attributes to encode")
	}

	valueLen := len(values[0].Value)
	if valueLen > maxAttributeValue {
		valueLen = maxAttributeValue
	}
	if valueLen > mtu-4 {
		valueLen = mtu - 4
	}
	if valueLen < 0 {
		return nil, errors.Errorf("gatt: MTU %d too small for an attribute entry", mtu)
	}

	length := 2 + valueLen
	resp := &att.ReadByTypeResponse{Length: uint8(length)}

	for i, hv := range values {
		if i > 0 && (len(hv.Value) != len(values[0].Value) || 2+len(resp.AttributeData)+length > mtu) {
			break
		}
		entry := make([]byte, length)
		binary.LittleEndian.PutUint16(entry[0:2], uint16(hv.Handle))
		copy(entry[2:], hv.Value[:valueLen])
		resp.AttributeData = append(resp.AttributeData, entry...)
	}
	return resp, nil
}

// BuildFindInformationResponse packs descriptor handles and types into one
// PDU of the given MTU, using the UUID size of the first entry.
func BuildFindInformationResponse(descriptors []DescriptorInfo, mtu int) (*att.FindInformationResponse, error) {
	if len(descriptors) == 0 {
		return nil, errors.New("gatt: no descriptors to encode")
	}

	uuidLen := len(descriptors[0].UUID.Bytes())
	resp := &att.FindInformationResponse{Format: FormatUUID16}
	if uuidLen == ble.LongUUIDLength {
		resp.Format = FormatUUID128
	}

	entrySize := 2 + uuidLen
	for _, desc := range descriptors {
		if len(desc.UUID.Bytes()) != uuidLen || 2+len(resp.Data)+entrySize > mtu {
			break
		}
		entry := make([]byte, entrySize)
		binary.LittleEndian.PutUint16(entry[0:2], uint16(desc.Handle))
		copy(entry[2:], desc.UUID.Bytes())
		resp.Data = append(resp.Data, entry...)
	}

	if len(resp.Data) == 0 {
		return nil, errors.Errorf("gatt: MTU %d too small for a descriptor entry", mtu)
	}
	return resp, nil
}

// PrimaryServices lists the primary services declared in r. A service ends
// just before the next service declaration, or at the last handle of the
// database.
func (db *AttributeDatabase) PrimaryServices(r ble.HandleRange) []ServiceGroup {
	all := db.Attributes(ble.HandleRange{Start: ble.FirstHandle, End: ble.LastHandle})
	last := db.LastHandle()

	var services []ServiceGroup
	for i, attr := range all {
		if attr.Type != ble.UUID16(ble.UUIDPrimaryService) || attr.Handle < r.Start || attr.Handle > r.End {
			continue
		}
		u, err := ble.UUIDFromBytes(attr.Value)
		if err != nil {
			continue
		}

		end := last
		for _, next := range all[i+1:] {
			if next.IsServiceDeclaration() {
				end = next.Handle - 1
				break
			}
		}
		services = append(services, ServiceGroup{
			Range: ble.HandleRange{Start: attr.Handle, End: end},
			UUID:  u,
		})
	}
	return services
}

// ReadByType returns the handle and value of every attribute of type typ in r
func (db *AttributeDatabase) ReadByType(r ble.HandleRange, typ ble.UUID) []HandleValue {
	var values []HandleValue
	for _, attr := range db.Attributes(r) {
		if attr.Type == typ {
			values = append(values, HandleValue{Handle: attr.Handle, Value: attr.Value})
		}
	}
	return values
}

// FindInformation returns the handle and type of every attribute in r
func (db *AttributeDatabase) FindInformation(r ble.HandleRange) []DescriptorInfo {
	var infos []DescriptorInfo
	for _, attr := range db.Attributes(r) {
		infos = append(infos, DescriptorInfo{Handle: attr.Handle, UUID: attr.Type})
	}
	return infos
}
