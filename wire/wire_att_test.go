package wire

import (
	"bytes"
	"testing"

	"github.com/ARMmbed/mbed-os-sub118/ble"
	"github.com/ARMmbed/mbed-os-sub118/gattc"
	"github.com/ARMmbed/mbed-os-sub118/wire/att"
)

func TestToEventErrorResponse(t *testing.T) {
	l := NewLink()
	notFound := att.NewError(att.ErrAttributeNotFound, att.OpReadByTypeRequest, 1).Response()

	tests := []struct {
		kind requestKind
		want gattc.Event
	}{
		{requestPrimaryServices, &gattc.PrimaryServiceDiscoveryResponse{Status: gattc.StatusAttributeNotFound}},
		{requestCharacteristics, &gattc.CharacteristicDiscoveryResponse{Status: gattc.StatusAttributeNotFound}},
		{requestReadByUUID, &gattc.ReadByUUIDResponse{Status: gattc.StatusAttributeNotFound}},
		{requestDescriptors, &gattc.DescriptorDiscoveryResponse{Status: gattc.StatusAttributeNotFound}},
	}
	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			got := l.toEvent(tt.kind, notFound)
			switch want := tt.want.(type) {
			case *gattc.PrimaryServiceDiscoveryResponse:
				g, ok := got.(*gattc.PrimaryServiceDiscoveryResponse)
				if !ok || g.Status != want.Status || len(g.Services) != 0 {
					t.Errorf("got %+v", got)
				}
			case *gattc.CharacteristicDiscoveryResponse:
				g, ok := got.(*gattc.CharacteristicDiscoveryResponse)
				if !ok || g.Status != want.Status || len(g.Characteristics) != 0 {
					t.Errorf("got %+v", got)
				}
			case *gattc.ReadByUUIDResponse:
				g, ok := got.(*gattc.ReadByUUIDResponse)
				if !ok || g.Status != want.Status || g.Count != 0 {
					t.Errorf("got %+v", got)
				}
			case *gattc.DescriptorDiscoveryResponse:
				g, ok := got.(*gattc.DescriptorDiscoveryResponse)
				if !ok || g.Status != want.Status || len(g.Descriptors) != 0 {
					t.Errorf("got %+v", got)
				}
			}
		})
	}
}

func TestToEventWrongResponse(t *testing.T) {
	l := NewLink()
	evt := l.toEvent(requestPrimaryServices, &att.ReadResponse{Value: []byte{1}})
	if e := evt.(*gattc.PrimaryServiceDiscoveryResponse); e.Status != gattc.StatusUnknown {
		t.Errorf("status = %s, want unknown", e.Status)
	}

	// Entries must be 6 or 20 bytes long.
	evt = l.toEvent(requestPrimaryServices, &att.ReadByGroupTypeResponse{Length: 5, AttributeData: make([]byte, 5)})
	if e := evt.(*gattc.PrimaryServiceDiscoveryResponse); e.Status != gattc.StatusUnknown {
		t.Errorf("status = %s, want unknown", e.Status)
	}
}

func TestToEventServicesResolveVendorBase(t *testing.T) {
	data := []byte{0x0A, 0x00, 0x0F, 0x00}
	data = append(data, uartService.Bytes()...)
	resp := &att.ReadByGroupTypeResponse{Length: 20, AttributeData: data}

	l := NewLink()
	evt := l.toEvent(requestPrimaryServices, resp).(*gattc.PrimaryServiceDiscoveryResponse)
	want := gattc.ServiceRecord{UUID: ble.UUIDUnknown, Range: ble.HandleRange{Start: 0x0A, End: 0x0F}}
	if evt.Status != gattc.StatusSuccess || len(evt.Services) != 1 || evt.Services[0] != want {
		t.Errorf("unregistered base: %+v", evt)
	}

	vendor, _ := NewVendorUUIDs(uartService)
	l = NewLink(WithVendorUUIDs(vendor))
	evt = l.toEvent(requestPrimaryServices, resp).(*gattc.PrimaryServiceDiscoveryResponse)
	want.UUID = uartService
	if evt.Status != gattc.StatusSuccess || len(evt.Services) != 1 || evt.Services[0] != want {
		t.Errorf("registered base: %+v", evt)
	}
}

func TestToEventCharacteristics(t *testing.T) {
	// 0x0011: read, value 0x0012, battery level
	resp := &att.ReadByTypeResponse{Length: 7, AttributeData: []byte{0x11, 0x00, 0x02, 0x12, 0x00, 0x19, 0x2A}}

	evt := NewLink().toEvent(requestCharacteristics, resp).(*gattc.CharacteristicDiscoveryResponse)
	want := gattc.CharacteristicRecord{
		UUID:        ble.UUID16(0x2A19),
		Properties:  ble.PropRead,
		DeclHandle:  0x11,
		ValueHandle: 0x12,
	}
	if evt.Status != gattc.StatusSuccess || len(evt.Characteristics) != 1 || evt.Characteristics[0] != want {
		t.Errorf("got %+v", evt)
	}
}

func TestToEventReadByUUID(t *testing.T) {
	data := []byte{0x0D, 0x00, 0x10, 0x0E, 0x00}
	data = append(data, uartTX.Bytes()...)
	resp := &att.ReadByTypeResponse{Length: 21, AttributeData: data}

	evt := NewLink().toEvent(requestReadByUUID, resp).(*gattc.ReadByUUIDResponse)
	if evt.Status != gattc.StatusSuccess || evt.Count != 1 || evt.ValueLen != 19 {
		t.Fatalf("got %+v", evt)
	}
	if !bytes.Equal(evt.Value(0), data[2:]) {
		t.Errorf("value = %x, want %x", evt.Value(0), data[2:])
	}
}

func TestToEventDescriptors(t *testing.T) {
	resp := &att.FindInformationResponse{Format: 0x01, Data: []byte{0x0E, 0x00, 0x03, 0x00, 0x0F, 0x00, 0x02, 0x29}}

	evt := NewLink().toEvent(requestDescriptors, resp).(*gattc.DescriptorDiscoveryResponse)
	want := []gattc.DiscoveredDescriptor{
		{Handle: 0x0E, UUID: ble.UUID16(0x0003)},
		{Handle: 0x0F, UUID: ble.UUID16(ble.UUIDClientCharacteristicConfig)},
	}
	if evt.Status != gattc.StatusSuccess || len(evt.Descriptors) != 2 || evt.Descriptors[0] != want[0] || evt.Descriptors[1] != want[1] {
		t.Errorf("got %+v", evt)
	}
}
