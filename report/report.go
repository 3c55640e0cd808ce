package report

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/ARMmbed/mbed-os-sub118/ble"
	"github.com/ARMmbed/mbed-os-sub118/gattc"
	"github.com/ARMmbed/mbed-os-sub118/logger"
)

// Descriptor is one discovered descriptor
type Descriptor struct {
	Handle ble.Handle
	UUID   ble.UUID
}

// Characteristic is one discovered characteristic and its descriptors
type Characteristic struct {
	UUID        ble.UUID
	Properties  ble.Properties
	DeclHandle  ble.Handle
	ValueHandle ble.Handle
	LastHandle  ble.Handle
	Descriptors []Descriptor
	// DescriptorsDone is set once descriptor discovery ended
	DescriptorsDone bool
	DescriptorsErr  error
}

// Service is one discovered service
type Service struct {
	UUID            ble.UUID
	Range           ble.HandleRange
	Characteristics []*Characteristic
}

// Report collects the results of a discovery session on one connection.
// Feed it from the discovery callbacks.
type Report struct {
	Device     string
	Conn       ble.ConnHandle
	MTU        int
	Services   []*Service
	Unassigned []*Characteristic // characteristics found without their service
	Err        error
	StartedAt  time.Time
	FinishedAt time.Time
}

// New starts a report for conn.
func New(device string, conn ble.ConnHandle, mtu int) *Report {
	return &Report{
		Device:    device,
		Conn:      conn,
		MTU:       mtu,
		StartedAt: time.Now(),
	}
}

// AddService records a discovered service.
func (r *Report) AddService(s *gattc.DiscoveredService) {
	r.Services = append(r.Services, &Service{UUID: s.UUID, Range: s.Range()})
}

// AddCharacteristic records a characteristic under the service whose range
// holds its declaration.
func (r *Report) AddCharacteristic(c *gattc.DiscoveredCharacteristic) *Characteristic {
	ch := &Characteristic{
		UUID:        c.UUID(),
		Properties:  c.Properties(),
		DeclHandle:  c.DeclHandle(),
		ValueHandle: c.ValueHandle(),
		LastHandle:  c.LastHandle(),
	}
	if s := r.serviceOf(ch.DeclHandle); s != nil {
		s.Characteristics = append(s.Characteristics, ch)
	} else {
		r.Unassigned = append(r.Unassigned, ch)
	}
	return ch
}

// AddDescriptor records a descriptor of c.
func (r *Report) AddDescriptor(c *gattc.DiscoveredCharacteristic, d gattc.DiscoveredDescriptor) {
	if ch := r.characteristic(c.DeclHandle()); ch != nil {
		ch.Descriptors = append(ch.Descriptors, Descriptor{Handle: d.Handle, UUID: d.UUID})
	}
}

// DescriptorsDone marks the end of descriptor discovery for c.
func (r *Report) DescriptorsDone(c *gattc.DiscoveredCharacteristic, err error) {
	if ch := r.characteristic(c.DeclHandle()); ch != nil {
		ch.DescriptorsDone = true
		ch.DescriptorsErr = err
	}
}

// Finish closes the report with the termination error of the session.
func (r *Report) Finish(err error) {
	r.Err = err
	r.FinishedAt = time.Now()
}

// Characteristics returns every recorded characteristic in discovery order.
func (r *Report) Characteristics() []*Characteristic {
	var all []*Characteristic
	for _, s := range r.Services {
		all = append(all, s.Characteristics...)
	}
	return append(all, r.Unassigned...)
}

func (r *Report) serviceOf(h ble.Handle) *Service {
	for _, s := range r.Services {
		if h >= s.Range.Start && h <= s.Range.End {
			return s
		}
	}
	return nil
}

func (r *Report) characteristic(decl ble.Handle) *Characteristic {
	for _, ch := range r.Characteristics() {
		if ch.DeclHandle == decl {
			return ch
		}
	}
	return nil
}

// Struct renders the report as a protobuf Struct.
func (r *Report) Struct() (*structpb.Struct, error) {
	services := make([]interface{}, 0, len(r.Services))
	for _, s := range r.Services {
		services = append(services, map[string]interface{}{
			"uuid":            s.UUID.String(),
			"start_handle":    formatHandle(s.Range.Start),
			"end_handle":      formatHandle(s.Range.End),
			"characteristics": characteristicValues(s.Characteristics),
		})
	}

	fields := map[string]interface{}{
		"device":   r.Device,
		"conn":     int(r.Conn),
		"mtu":      r.MTU,
		"services": services,
		"status":   statusOf(r.Err),
	}
	if len(r.Unassigned) > 0 {
		fields["unassigned"] = characteristicValues(r.Unassigned)
	}
	if !r.FinishedAt.IsZero() {
		fields["duration_ms"] = r.FinishedAt.Sub(r.StartedAt).Milliseconds()
	}

	s, err := structpb.NewStruct(fields)
	return s, errors.Wrap(err, "report: build struct")
}

func characteristicValues(chars []*Characteristic) []interface{} {
	values := make([]interface{}, 0, len(chars))
	for _, ch := range chars {
		props := make([]interface{}, 0, 8)
		for _, name := range ch.Properties.Names() {
			props = append(props, name)
		}
		v := map[string]interface{}{
			"uuid":         ch.UUID.String(),
			"properties":   props,
			"decl_handle":  formatHandle(ch.DeclHandle),
			"value_handle": formatHandle(ch.ValueHandle),
			"last_handle":  formatHandle(ch.LastHandle),
		}
		if ch.DescriptorsDone {
			descs := make([]interface{}, 0, len(ch.Descriptors))
			for _, d := range ch.Descriptors {
				descs = append(descs, map[string]interface{}{
					"handle": formatHandle(d.Handle),
					"uuid":   d.UUID.String(),
				})
			}
			v["descriptors"] = descs
			v["descriptors_status"] = statusOf(ch.DescriptorsErr)
		}
		values = append(values, v)
	}
	return values
}

func formatHandle(h ble.Handle) string {
	return fmt.Sprintf("0x%04X", uint16(h))
}

func statusOf(err error) string {
	if err == nil {
		return "ok"
	}
	return err.Error()
}

// JSON renders the report with protojson in the logger layout.
func (r *Report) JSON() ([]byte, error) {
	s, err := r.Struct()
	if err != nil {
		return nil, err
	}
	return logger.JSONOptions.Marshal(s)
}

// Markdown renders the report as a markdown document.
func (r *Report) Markdown() string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("# Discovery Report: %s\n\n", r.Device))
	sb.WriteString(fmt.Sprintf("- **Connection:** %d\n", r.Conn))
	sb.WriteString(fmt.Sprintf("- **MTU:** %d\n", r.MTU))
	if r.Err != nil {
		sb.WriteString(fmt.Sprintf("- **Status:** ❌ %v\n", r.Err))
	} else {
		sb.WriteString("- **Status:** ✅ complete\n")
	}
	sb.WriteString("\n")

	for _, s := range r.Services {
		sb.WriteString(fmt.Sprintf("## Service %s [0x%04X-0x%04X]\n\n", s.UUID, uint16(s.Range.Start), uint16(s.Range.End)))
		writeCharacteristicTable(&sb, s.Characteristics)
	}
	if len(r.Unassigned) > 0 {
		sb.WriteString("## Characteristics outside discovered services\n\n")
		writeCharacteristicTable(&sb, r.Unassigned)
	}

	// Statistics section
	chars := r.Characteristics()
	descriptors := 0
	for _, ch := range chars {
		descriptors += len(ch.Descriptors)
	}
	sb.WriteString("## Statistics\n\n")
	sb.WriteString(fmt.Sprintf("- **Services:** %d\n", len(r.Services)))
	sb.WriteString(fmt.Sprintf("- **Characteristics:** %d\n", len(chars)))
	sb.WriteString(fmt.Sprintf("- **Descriptors:** %d\n", descriptors))
	if !r.FinishedAt.IsZero() {
		sb.WriteString(fmt.Sprintf("- **Duration:** %s\n", r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond)))
	}
	return sb.String()
}

func writeCharacteristicTable(sb *strings.Builder, chars []*Characteristic) {
	if len(chars) == 0 {
		sb.WriteString("No characteristics\n\n")
		return
	}
	sb.WriteString("| UUID | Properties | Decl | Value | Last | Descriptors |\n")
	sb.WriteString("|------|------------|------|-------|------|-------------|\n")
	for _, ch := range chars {
		descs := "-"
		if len(ch.Descriptors) > 0 {
			parts := make([]string, 0, len(ch.Descriptors))
			for _, d := range ch.Descriptors {
				parts = append(parts, fmt.Sprintf("%s@0x%04X", d.UUID, uint16(d.Handle)))
			}
			descs = strings.Join(parts, ", ")
		}
		sb.WriteString(fmt.Sprintf("| %s | %s | 0x%04X | 0x%04X | 0x%04X | %s |\n",
			ch.UUID, strings.Join(ch.Properties.Names(), ","),
			uint16(ch.DeclHandle), uint16(ch.ValueHandle), uint16(ch.LastHandle), descs))
	}
	sb.WriteString("\n")
}

// Save writes the report as JSON and markdown into dir and returns the
// path of the JSON file.
func (r *Report) Save(dir string) (string, error) {
	timestamp := r.StartedAt.Format("2006-01-02_15-04-05")
	base := filepath.Join(dir, fmt.Sprintf("discovery_%d_%s", r.Conn, timestamp))

	data, err := r.JSON()
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(base+".json", data, 0644); err != nil {
		return "", errors.Wrap(err, "report: write json")
	}
	if err := os.WriteFile(base+".md", []byte(r.Markdown()), 0644); err != nil {
		return "", errors.Wrap(err, "report: write markdown")
	}
	return base + ".json", nil
}
