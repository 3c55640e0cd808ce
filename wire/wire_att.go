package wire

import (
	"github.com/ARMmbed/mbed-os-sub118/gattc"
	"github.com/ARMmbed/mbed-os-sub118/logger"
	"github.com/ARMmbed/mbed-os-sub118/wire/att"
	"github.com/ARMmbed/mbed-os-sub118/wire/gatt"
)

// requestKind records which GATT client procedure an ATT request serves.
type requestKind uint8

const (
	requestPrimaryServices requestKind = iota + 1
	requestCharacteristics
	requestReadByUUID
	requestDescriptors
)

func (k requestKind) String() string {
	switch k {
	case requestPrimaryServices:
		return "primary services"
	case requestCharacteristics:
		return "characteristics"
	case requestReadByUUID:
		return "read by UUID"
	case requestDescriptors:
		return "descriptors"
	default:
		return "unknown"
	}
}

// toEvent reshapes an ATT response into the event the stack reports for
// the procedure that issued the request.
func (l *Link) toEvent(kind requestKind, resp interface{}) gattc.Event {
	status := gattc.StatusSuccess
	if e, ok := resp.(*att.ErrorResponse); ok {
		status = gattc.StatusFromATTError(e.ErrorCode)
		resp = nil
	}

	switch kind {
	case requestPrimaryServices:
		evt := &gattc.PrimaryServiceDiscoveryResponse{Status: status}
		if r, ok := resp.(*att.ReadByGroupTypeResponse); ok {
			evt.Services, evt.Status = l.serviceRecords(r)
		} else if resp != nil {
			evt.Status = gattc.StatusUnknown
		}
		return evt

	case requestCharacteristics:
		evt := &gattc.CharacteristicDiscoveryResponse{Status: status}
		if r, ok := resp.(*att.ReadByTypeResponse); ok {
			evt.Characteristics, evt.Status = l.characteristicRecords(r)
		} else if resp != nil {
			evt.Status = gattc.StatusUnknown
		}
		return evt

	case requestReadByUUID:
		evt := &gattc.ReadByUUIDResponse{Status: status}
		if r, ok := resp.(*att.ReadByTypeResponse); ok {
			values, err := gatt.ParseReadByTypeResponse(r)
			if err != nil {
				logger.Warn(logPrefix, "read by UUID: %v", err)
				evt.Status = gattc.StatusUnknown
				return evt
			}
			evt.Count = len(values)
			evt.ValueLen = int(r.Length) - 2
			for _, v := range values {
				evt.Values = append(evt.Values, v.Value...)
			}
		} else if resp != nil {
			evt.Status = gattc.StatusUnknown
		}
		return evt

	default:
		evt := &gattc.DescriptorDiscoveryResponse{Status: status}
		if r, ok := resp.(*att.FindInformationResponse); ok {
			evt.Descriptors, evt.Status = l.descriptorRecords(r)
		} else if resp != nil {
			evt.Status = gattc.StatusUnknown
		}
		return evt
	}
}

func (l *Link) serviceRecords(r *att.ReadByGroupTypeResponse) ([]gattc.ServiceRecord, gattc.GattStatus) {
	services, err := gatt.ParseReadByGroupTypeResponse(r)
	if err != nil {
		logger.Warn(logPrefix, "primary services: %v", err)
		return nil, gattc.StatusUnknown
	}

	records := make([]gattc.ServiceRecord, 0, len(services))
	for _, s := range services {
		records = append(records, gattc.ServiceRecord{UUID: l.vendor.Resolve(s.UUID), Range: s.Range})
	}
	return records, gattc.StatusSuccess
}

func (l *Link) characteristicRecords(r *att.ReadByTypeResponse) ([]gattc.CharacteristicRecord, gattc.GattStatus) {
	values, err := gatt.ParseReadByTypeResponse(r)
	if err != nil {
		logger.Warn(logPrefix, "characteristics: %v", err)
		return nil, gattc.StatusUnknown
	}

	records := make([]gattc.CharacteristicRecord, 0, len(values))
	for _, v := range values {
		decl, err := gatt.ParseCharacteristicDeclaration(v)
		if err != nil {
			logger.Warn(logPrefix, "characteristics: %v", err)
			return nil, gattc.StatusUnknown
		}
		records = append(records, gattc.CharacteristicRecord{
			UUID:        l.vendor.Resolve(decl.UUID),
			Properties:  decl.Properties,
			DeclHandle:  decl.DeclHandle,
			ValueHandle: decl.ValueHandle,
		})
	}
	return records, gattc.StatusSuccess
}

func (l *Link) descriptorRecords(r *att.FindInformationResponse) ([]gattc.DiscoveredDescriptor, gattc.GattStatus) {
	infos, err := gatt.ParseFindInformationResponse(r)
	if err != nil {
		logger.Warn(logPrefix, "descriptors: %v", err)
		return nil, gattc.StatusUnknown
	}

	descriptors := make([]gattc.DiscoveredDescriptor, 0, len(infos))
	for _, info := range infos {
		descriptors = append(descriptors, gattc.DiscoveredDescriptor{Handle: info.Handle, UUID: l.vendor.Resolve(info.UUID)})
	}
	return descriptors, gattc.StatusSuccess
}
