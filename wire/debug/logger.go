package debug

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/ARMmbed/mbed-os-sub118/wire/att"
)

// DebugLogger writes one JSON line per ATT packet or link event.
// Logging is best-effort: write errors are dropped.
type DebugLogger struct {
	w       io.Writer
	enabled bool
	mu      sync.Mutex
}

// ATTPacketLog represents a logged ATT packet
type ATTPacketLog struct {
	Timestamp  string                 `json:"timestamp"`
	Direction  string                 `json:"direction"` // "tx" or "rx"
	Side       string                 `json:"side"`      // "client" or "peer"
	Conn       uint16                 `json:"conn"`
	Opcode     string                 `json:"opcode"`
	OpcodeName string                 `json:"opcode_name"`
	Data       map[string]interface{} `json:"data,omitempty"`
	RawHex     string                 `json:"raw_hex"`
}

// LinkEventLog represents a connection lifecycle event
type LinkEventLog struct {
	Timestamp string            `json:"timestamp"`
	Event     string            `json:"event"` // connected, mtu_negotiated, request_timeout, disconnected
	Conn      uint16            `json:"conn"`
	Error     string            `json:"error,omitempty"`
	Details   map[string]string `json:"details,omitempty"`
}

// NewDebugLogger creates a logger writing to w. A nil writer disables it.
func NewDebugLogger(w io.Writer) *DebugLogger {
	return &DebugLogger{w: w, enabled: w != nil}
}

// Enabled reports whether anything is written
func (d *DebugLogger) Enabled() bool {
	return d != nil && d.enabled
}

// LogATTPacket logs a decoded ATT packet with its raw bytes
func (d *DebugLogger) LogATTPacket(direction, side string, conn uint16, packet interface{}, rawBytes []byte) {
	if !d.Enabled() {
		return
	}

	opcode, data := describeATTPacket(packet)
	d.appendJSONL(ATTPacketLog{
		Timestamp:  time.Now().Format(time.RFC3339Nano),
		Direction:  direction,
		Side:       side,
		Conn:       conn,
		Opcode:     fmt.Sprintf("0x%02X", opcode),
		OpcodeName: opcodeName(opcode),
		Data:       data,
		RawHex:     hex.EncodeToString(rawBytes),
	})
}

// LogLinkEvent logs a connection lifecycle event
func (d *DebugLogger) LogLinkEvent(event string, conn uint16, err error, details map[string]string) {
	if !d.Enabled() {
		return
	}

	entry := LinkEventLog{
		Timestamp: time.Now().Format(time.RFC3339Nano),
		Event:     event,
		Conn:      conn,
		Details:   details,
	}
	if err != nil {
		entry.Error = err.Error()
	}
	d.appendJSONL(entry)
}

func (d *DebugLogger) appendJSONL(v interface{}) {
	line, err := json.Marshal(v)
	if err != nil {
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.w.Write(append(line, '\n'))
}

func opcodeName(opcode uint8) string {
	if name, ok := att.OpcodeNames[opcode]; ok {
		return name
	}
	return "Unknown"
}

func handleRange(start, end uint16) string {
	return fmt.Sprintf("0x%04X-0x%04X", start, end)
}

// describeATTPacket extracts the opcode and the interesting fields of a packet
func describeATTPacket(packet interface{}) (uint8, map[string]interface{}) {
	data := make(map[string]interface{})

	switch p := packet.(type) {
	case *att.ExchangeMTURequest:
		data["client_rx_mtu"] = p.ClientRxMTU

	case *att.ExchangeMTUResponse:
		data["server_rx_mtu"] = p.ServerRxMTU

	case *att.ReadByGroupTypeRequest:
		data["range"] = handleRange(p.StartHandle, p.EndHandle)
		data["type_hex"] = hex.EncodeToString(p.Type)

	case *att.ReadByGroupTypeResponse:
		data["entry_len"] = p.Length
		data["data_len"] = len(p.AttributeData)

	case *att.ReadByTypeRequest:
		data["range"] = handleRange(p.StartHandle, p.EndHandle)
		data["type_hex"] = hex.EncodeToString(p.Type)

	case *att.ReadByTypeResponse:
		data["entry_len"] = p.Length
		data["data_len"] = len(p.AttributeData)

	case *att.FindInformationRequest:
		data["range"] = handleRange(p.StartHandle, p.EndHandle)

	case *att.FindInformationResponse:
		data["format"] = p.Format
		data["data_len"] = len(p.Data)

	case *att.ReadRequest:
		data["handle"] = fmt.Sprintf("0x%04X", p.Handle)

	case *att.ReadResponse:
		data["value_len"] = len(p.Value)
		data["value_hex"] = hex.EncodeToString(p.Value)

	case *att.ErrorResponse:
		data["request_opcode"] = fmt.Sprintf("0x%02X", p.RequestOpcode)
		data["request_opcode_name"] = att.OpcodeNames[p.RequestOpcode]
		data["handle"] = fmt.Sprintf("0x%04X", p.Handle)
		data["error_code"] = fmt.Sprintf("0x%02X", p.ErrorCode)
		data["error_name"] = att.ErrorNames[p.ErrorCode]

	default:
		return 0xFF, data
	}

	return att.Opcode(packet), data
}
