package gatt

import (
	"bytes"
	"testing"

	"github.com/ARMmbed/mbed-os-sub118/ble"
)

var testVendorService = ble.MustParseUUID("6e400001-b5a3-f393-e0a9-e50e24dcca9e")

func TestBuildSimpleService(t *testing.T) {
	db, infos, err := BuildAttributeDatabase([]Service{NewGenericAccessService("Test Device", 0x0340)})
	if err != nil {
		t.Fatalf("BuildAttributeDatabase failed: %v", err)
	}

	// declaration + 2 * (declaration + value)
	if db.Count() != 5 {
		t.Fatalf("Count() = %d, want 5", db.Count())
	}

	info := infos[0]
	if info.Range != (ble.HandleRange{Start: 1, End: 5}) {
		t.Errorf("Range = %s, want 0x0001-0x0005", info.Range)
	}

	name := info.Characteristics[0]
	if name.DeclHandle != 2 || name.ValueHandle != 3 {
		t.Errorf("Device Name handles = %d/%d, want 2/3", name.DeclHandle, name.ValueHandle)
	}

	attr, err := db.GetAttribute(name.ValueHandle)
	if err != nil {
		t.Fatalf("GetAttribute failed: %v", err)
	}
	if string(attr.Value) != "Test Device" {
		t.Errorf("Device Name = %q", attr.Value)
	}
	if attr.Permissions != PermReadable {
		t.Errorf("Permissions = 0x%02X, want readable", attr.Permissions)
	}

	decl, _ := db.GetAttribute(name.DeclHandle)
	want := []byte{byte(ble.PropRead), 0x03, 0x00, 0x00, 0x2A}
	if !bytes.Equal(decl.Value, want) {
		t.Errorf("declaration = % x, want % x", decl.Value, want)
	}
}

func TestBuildAddsCCCD(t *testing.T) {
	t.Run("notify gets a CCCD", func(t *testing.T) {
		db, infos, err := BuildAttributeDatabase([]Service{NewGenericAttributeService()})
		if err != nil {
			t.Fatalf("BuildAttributeDatabase failed: %v", err)
		}

		descs := infos[0].Characteristics[0].DescriptorHandles
		if len(descs) != 1 {
			t.Fatalf("descriptors = %v, want one CCCD", descs)
		}
		attr, _ := db.GetAttribute(descs[0])
		if attr.Type != ble.UUID16(ble.UUIDClientCharacteristicConfig) {
			t.Errorf("descriptor type = %s, want 2902", attr.Type)
		}
		if !bytes.Equal(attr.Value, []byte{0x00, 0x00}) {
			t.Errorf("CCCD value = % x, want 00 00", attr.Value)
		}
	})

	t.Run("explicit CCCD is not duplicated", func(t *testing.T) {
		_, infos, err := BuildAttributeDatabase([]Service{{
			UUID:    testVendorService,
			Primary: true,
			Characteristics: []Characteristic{{
				UUID:       ble.UUID16(0x2A37),
				Properties: ble.PropNotify,
				Descriptors: []Descriptor{
					{UUID: ble.UUID16(0x2901), Value: []byte("rate")},
					{UUID: ble.UUID16(ble.UUIDClientCharacteristicConfig), Value: []byte{0x01, 0x00}},
				},
			}},
		}})
		if err != nil {
			t.Fatalf("BuildAttributeDatabase failed: %v", err)
		}
		if got := len(infos[0].Characteristics[0].DescriptorHandles); got != 2 {
			t.Errorf("descriptor count = %d, want 2", got)
		}
	})
}

func TestBuildVendorService(t *testing.T) {
	rx := ble.MustParseUUID("6e400002-b5a3-f393-e0a9-e50e24dcca9e")

	db, infos, err := BuildAttributeDatabase([]Service{
		NewGenericAccessService("nrf", 0),
		{
			UUID:    testVendorService,
			Primary: true,
			Characteristics: []Characteristic{
				{UUID: rx, Properties: ble.PropWrite | ble.PropWriteWithoutResponse},
			},
		},
		{UUID: ble.UUID16(0x180F), Primary: false},
	})
	if err != nil {
		t.Fatalf("BuildAttributeDatabase failed: %v", err)
	}

	vendor := infos[1]
	if vendor.Range.Start != 6 || vendor.Range.End != 8 {
		t.Errorf("vendor Range = %s, want 0x0006-0x0008", vendor.Range)
	}

	svc, _ := db.GetAttribute(vendor.Range.Start)
	if !bytes.Equal(svc.Value, testVendorService.Bytes()) {
		t.Errorf("service declaration value = % x", svc.Value)
	}

	decl, _ := db.GetAttribute(vendor.Characteristics[0].DeclHandle)
	if len(decl.Value) != 19 {
		t.Fatalf("128-bit declaration is %d bytes, want 19", len(decl.Value))
	}
	if !bytes.Equal(decl.Value[3:], rx.Bytes()) {
		t.Errorf("declaration UUID = % x", decl.Value[3:])
	}

	value, _ := db.GetAttribute(vendor.Characteristics[0].ValueHandle)
	if value.Permissions != PermWritable {
		t.Errorf("Permissions = 0x%02X, want writable", value.Permissions)
	}

	secondary, _ := db.GetAttribute(infos[2].Range.Start)
	if secondary.Type != ble.UUID16(ble.UUIDSecondaryService) {
		t.Errorf("secondary declaration type = %s", secondary.Type)
	}
}
