package report

import (
	"context"
	"encoding/json"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ARMmbed/mbed-os-sub118/ble"
	"github.com/ARMmbed/mbed-os-sub118/gattc"
	"github.com/ARMmbed/mbed-os-sub118/wire"
	"github.com/ARMmbed/mbed-os-sub118/wire/gatt"
)

var battery = ble.UUID16(0x180F)

// discoverBattery fills a report from a peer holding GAP, GATT and a
// battery service at 0x000A-0x000D.
func discoverBattery(t *testing.T) *Report {
	t.Helper()
	db, _, err := gatt.BuildAttributeDatabase([]gatt.Service{
		gatt.NewGenericAccessService("Battery", 0),
		gatt.NewGenericAttributeService(),
		{UUID: battery, Primary: true, Characteristics: []gatt.Characteristic{
			{UUID: ble.UUID16(0x2A19), Properties: ble.PropRead | ble.PropNotify, Value: []byte{42}},
		}},
	})
	require.NoError(t, err)

	link := wire.NewLink()
	defer link.Close()
	conn, err := link.Connect(wire.NewPeer(db))
	require.NoError(t, err)
	client := gattc.NewClient(link)

	r := New("Battery", conn, link.MTU(conn))
	var level *gattc.DiscoveredCharacteristic

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	client.OnServiceDiscoveryTermination(func(_ ble.ConnHandle, err error) {
		r.Finish(err)
		if level == nil {
			cancel()
			return
		}
		err = level.DiscoverDescriptors(r.AddDescriptor, func(c *gattc.DiscoveredCharacteristic, err error) {
			r.DescriptorsDone(c, err)
			cancel()
		})
		if err != nil {
			cancel()
		}
	})
	require.NoError(t, client.LaunchServiceDiscovery(conn, r.AddService, func(c *gattc.DiscoveredCharacteristic) {
		r.AddCharacteristic(c)
		if c.UUID() == ble.UUID16(0x2A19) {
			cp := *c
			level = &cp
		}
	}, ble.UUIDUnknown, ble.UUIDUnknown))

	link.Run(ctx, client)
	return r
}

func TestCollect(t *testing.T) {
	r := discoverBattery(t)

	require.NoError(t, r.Err)
	require.Len(t, r.Services, 3)
	assert.Equal(t, battery, r.Services[2].UUID)
	assert.Equal(t, ble.HandleRange{Start: 0x0A, End: 0x0D}, r.Services[2].Range)
	assert.Empty(t, r.Unassigned)

	chars := r.Characteristics()
	require.Len(t, chars, 4)
	level := chars[3]
	assert.Equal(t, ble.UUID16(0x2A19), level.UUID)
	assert.Equal(t, ble.Handle(0x0B), level.DeclHandle)
	assert.Equal(t, ble.Handle(0x0D), level.LastHandle)
	assert.True(t, level.DescriptorsDone)
	assert.NoError(t, level.DescriptorsErr)
	assert.Equal(t, []Descriptor{{Handle: 0x0D, UUID: ble.UUID16(ble.UUIDClientCharacteristicConfig)}}, level.Descriptors)
}

func TestStructAndJSON(t *testing.T) {
	r := discoverBattery(t)

	s, err := r.Struct()
	require.NoError(t, err)
	assert.Equal(t, "ok", s.Fields["status"].GetStringValue())
	assert.Equal(t, "Battery", s.Fields["device"].GetStringValue())
	require.Len(t, s.Fields["services"].GetListValue().GetValues(), 3)

	data, err := r.JSON()
	require.NoError(t, err)

	var decoded struct {
		Services []struct {
			UUID            string `json:"uuid"`
			StartHandle     string `json:"start_handle"`
			Characteristics []struct {
				UUID        string   `json:"uuid"`
				Properties  []string `json:"properties"`
				Descriptors []struct {
					Handle string `json:"handle"`
					UUID   string `json:"uuid"`
				} `json:"descriptors"`
			} `json:"characteristics"`
		} `json:"services"`
	}
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Len(t, decoded.Services, 3)

	svc := decoded.Services[2]
	assert.Equal(t, "180f", svc.UUID)
	assert.Equal(t, "0x000A", svc.StartHandle)
	require.Len(t, svc.Characteristics, 1)
	assert.Equal(t, []string{"read", "notify"}, svc.Characteristics[0].Properties)
	require.Len(t, svc.Characteristics[0].Descriptors, 1)
	assert.Equal(t, "2902", svc.Characteristics[0].Descriptors[0].UUID)
}

func TestUnassignedCharacteristics(t *testing.T) {
	r := New("peer", 0, 23)
	r.Unassigned = append(r.Unassigned, &Characteristic{UUID: ble.UUID16(0x2A37), DeclHandle: 5, ValueHandle: 6, LastHandle: 7})
	r.Finish(ble.ErrUnspecified)

	s, err := r.Struct()
	require.NoError(t, err)
	assert.Equal(t, ble.ErrUnspecified.Error(), s.Fields["status"].GetStringValue())
	assert.Len(t, s.Fields["unassigned"].GetListValue().GetValues(), 1)
	assert.Contains(t, r.Markdown(), "Characteristics outside discovered services")
}

func TestMarkdownAndSave(t *testing.T) {
	r := discoverBattery(t)

	md := r.Markdown()
	assert.Contains(t, md, "# Discovery Report: Battery")
	assert.Contains(t, md, "## Service 180f [0x000A-0x000D]")
	assert.Contains(t, md, "| 2a19 | read,notify | 0x000B | 0x000C | 0x000D | 2902@0x000D |")
	assert.Contains(t, md, "- **Characteristics:** 4")

	dir := t.TempDir()
	path, err := r.Save(dir)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(path, ".json"))

	_, err = os.Stat(strings.TrimSuffix(path, ".json") + ".md")
	assert.NoError(t, err)
}
