package debug

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/ARMmbed/mbed-os-sub118/wire/att"
)

func TestLogATTPacket(t *testing.T) {
	var buf bytes.Buffer
	d := NewDebugLogger(&buf)

	req := &att.ReadByGroupTypeRequest{StartHandle: 0x0001, EndHandle: 0xFFFF, Type: []byte{0x00, 0x28}}
	raw, _ := att.EncodePacket(req)
	d.LogATTPacket("tx", "client", 0, req, raw)
	d.LogATTPacket("rx", "client", 0, att.NewError(att.ErrAttributeNotFound, att.OpReadByGroupTypeRequest, 0x0001).Response(), nil)

	scanner := bufio.NewScanner(&buf)
	var logs []ATTPacketLog
	for scanner.Scan() {
		var entry ATTPacketLog
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			t.Fatalf("line %q is not JSON: %v", scanner.Text(), err)
		}
		logs = append(logs, entry)
	}

	if len(logs) != 2 {
		t.Fatalf("got %d lines, want 2", len(logs))
	}
	if logs[0].Opcode != "0x10" || logs[0].OpcodeName != "Read By Group Type Request" {
		t.Errorf("first entry = %+v", logs[0])
	}
	if logs[0].Data["range"] != "0x0001-0xFFFF" {
		t.Errorf("range = %v", logs[0].Data["range"])
	}
	if logs[0].RawHex != "100100ffff0028" {
		t.Errorf("RawHex = %s", logs[0].RawHex)
	}
	if logs[1].Data["error_name"] != "Attribute Not Found" {
		t.Errorf("error_name = %v", logs[1].Data["error_name"])
	}
}

func TestLogLinkEvent(t *testing.T) {
	var buf bytes.Buffer
	d := NewDebugLogger(&buf)

	d.LogLinkEvent("disconnected", 2, errors.New("request timeout"), map[string]string{"reason": "timeout"})

	var entry LinkEventLog
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if entry.Event != "disconnected" || entry.Conn != 2 || entry.Error != "request timeout" || entry.Details["reason"] != "timeout" {
		t.Errorf("entry = %+v", entry)
	}
}

func TestDisabledLogger(t *testing.T) {
	d := NewDebugLogger(nil)
	if d.Enabled() {
		t.Fatal("nil writer should disable the logger")
	}
	// Must not panic.
	d.LogATTPacket("tx", "client", 0, &att.ReadRequest{Handle: 1}, nil)
	d.LogLinkEvent("connected", 0, nil, nil)

	var nilLogger *DebugLogger
	nilLogger.LogLinkEvent("connected", 0, nil, nil)
}
