package l2cap

import (
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
)

// L2CAP fixed channel IDs on an LE link
const (
	ChannelNULL     uint16 = 0x0000
	ChannelATT      uint16 = 0x0004 // Attribute Protocol
	ChannelLESignal uint16 = 0x0005 // LE L2CAP Signaling
	ChannelSMP      uint16 = 0x0006 // Security Manager Protocol
)

// ATT MTU bounds
const (
	DefaultMTU     = 23
	MinMTU         = 23
	MaxMTU         = 517
	L2CAPHeaderLen = 4 // Length (2 bytes) + Channel ID (2 bytes)
)

// Packet represents an L2CAP basic frame
// Format: [Length: 2 bytes] [Channel ID: 2 bytes] [Payload: N bytes]
type Packet struct {
	ChannelID uint16
	Payload   []byte
}

// NewATTPacket creates an L2CAP packet for the ATT channel
func NewATTPacket(payload []byte) *Packet {
	return &Packet{ChannelID: ChannelATT, Payload: payload}
}

// Encode serializes an L2CAP packet to binary format
func (p *Packet) Encode() []byte {
	buf := make([]byte, L2CAPHeaderLen+len(p.Payload))
	binary.LittleEndian.PutUint16(buf[0:2], uint16(len(p.Payload)))
	binary.LittleEndian.PutUint16(buf[2:4], p.ChannelID)
	copy(buf[4:], p.Payload)
	return buf
}

// Decode parses one complete frame
func Decode(data []byte) (*Packet, error) {
	if len(data) < L2CAPHeaderLen {
		return nil, errors.Errorf("l2cap: packet too short (need at least %d bytes, got %d)", L2CAPHeaderLen, len(data))
	}

	length := int(binary.LittleEndian.Uint16(data[0:2]))
	if len(data) < L2CAPHeaderLen+length {
		return nil, errors.Errorf("l2cap: incomplete packet (claimed length %d, got %d)", length, len(data)-L2CAPHeaderLen)
	}

	return &Packet{
		ChannelID: binary.LittleEndian.Uint16(data[2:4]),
		Payload:   append([]byte{}, data[4:4+length]...),
	}, nil
}

// WritePacket writes one frame to a byte stream
func WritePacket(w io.Writer, p *Packet) error {
	if len(p.Payload) > 0xFFFF {
		return errors.Errorf("l2cap: payload of %d bytes does not fit a frame", len(p.Payload))
	}
	_, err := w.Write(p.Encode())
	return errors.Wrap(err, "l2cap: write")
}

// ReadPacket reads one frame from a byte stream. io.EOF is returned
// unwrapped when the stream ends between frames.
func ReadPacket(r io.Reader) (*Packet, error) {
	var header [L2CAPHeaderLen]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		if err == io.EOF {
			return nil, err
		}
		return nil, errors.Wrap(err, "l2cap: read header")
	}

	p := &Packet{
		ChannelID: binary.LittleEndian.Uint16(header[2:4]),
		Payload:   make([]byte, binary.LittleEndian.Uint16(header[0:2])),
	}
	if _, err := io.ReadFull(r, p.Payload); err != nil {
		return nil, errors.Wrap(err, "l2cap: read payload")
	}
	return p, nil
}
