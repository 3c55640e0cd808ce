package ble

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// Well-known 16-bit attribute types used by discovery.
const (
	UUIDPrimaryService             uint16 = 0x2800
	UUIDSecondaryService           uint16 = 0x2801
	UUIDCharacteristic             uint16 = 0x2803
	UUIDClientCharacteristicConfig uint16 = 0x2902
)

// LongUUIDLength is the length in bytes of a 128-bit UUID.
const LongUUIDLength = 16

// UUID is a BLE UUID, either a 16-bit alias or a full 128-bit value.
// Long UUIDs are stored least-significant byte first, as they travel on
// the wire.
//
// The zero value is the short UUID 0x0000. Discovery uses it both as the
// "match anything" filter and as the placeholder for 128-bit UUIDs the
// stack could not shorten.
type UUID struct {
	long  bool
	short uint16
	lsb   [LongUUIDLength]byte
}

// UUIDUnknown is the placeholder / wildcard UUID.
var UUIDUnknown = UUID{}

// UUID16 returns a short UUID.
func UUID16(v uint16) UUID {
	return UUID{short: v}
}

// UUID128LSB returns a long UUID from 16 bytes in wire (LSB-first) order.
func UUID128LSB(b []byte) (UUID, error) {
	if len(b) != LongUUIDLength {
		return UUIDUnknown, fmt.Errorf("ble: long UUID must be %d bytes, got %d", LongUUIDLength, len(b))
	}
	u := UUID{long: true}
	copy(u.lsb[:], b)
	return u, nil
}

// UUID128 returns a long UUID from its canonical (MSB-first) bytes.
func UUID128(u uuid.UUID) UUID {
	out := UUID{long: true}
	for i := 0; i < LongUUIDLength; i++ {
		out.lsb[i] = u[LongUUIDLength-1-i]
	}
	return out
}

// UUIDFromBytes builds a UUID from 2 or 16 wire bytes.
func UUIDFromBytes(b []byte) (UUID, error) {
	switch len(b) {
	case 2:
		return UUID16(binary.LittleEndian.Uint16(b)), nil
	case LongUUIDLength:
		return UUID128LSB(b)
	}
	return UUIDUnknown, fmt.Errorf("ble: UUIDs must have length 2 or 16, got %d", len(b))
}

// ParseUUID parses "180d", "0x180D" or the canonical 36 character form.
func ParseUUID(s string) (UUID, error) {
	s = strings.TrimSpace(s)
	trimmed := strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if len(trimmed) == 4 {
		v, err := strconv.ParseUint(trimmed, 16, 16)
		if err != nil {
			return UUIDUnknown, fmt.Errorf("ble: invalid short UUID %q: %w", s, err)
		}
		return UUID16(uint16(v)), nil
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return UUIDUnknown, fmt.Errorf("ble: invalid UUID %q: %w", s, err)
	}
	return UUID128(u), nil
}

// MustParseUUID is like ParseUUID but panics on error.
func MustParseUUID(s string) UUID {
	u, err := ParseUUID(s)
	if err != nil {
		panic(err)
	}
	return u
}

// Is16Bit reports whether u is a short UUID.
func (u UUID) Is16Bit() bool { return !u.long }

// IsUnknown reports whether u is the 0x0000 placeholder.
func (u UUID) IsUnknown() bool { return u == UUIDUnknown }

// IsWildcard reports whether u matches any UUID when used as a filter.
func (u UUID) IsWildcard() bool { return u == UUIDUnknown }

// Short returns the 16-bit value of a short UUID.
func (u UUID) Short() uint16 { return u.short }

// Bytes returns the wire representation, LSB first.
func (u UUID) Bytes() []byte {
	if u.long {
		b := make([]byte, LongUUIDLength)
		copy(b, u.lsb[:])
		return b
	}
	b := make([]byte, 2)
	binary.LittleEndian.PutUint16(b, u.short)
	return b
}

// Canonical returns the MSB-first google/uuid form of a long UUID.
func (u UUID) Canonical() uuid.UUID {
	var out uuid.UUID
	for i := 0; i < LongUUIDLength; i++ {
		out[i] = u.lsb[LongUUIDLength-1-i]
	}
	return out
}

// Equal reports whether u and v are the same UUID.
func (u UUID) Equal(v UUID) bool { return u == v }

func (u UUID) String() string {
	if u.long {
		return u.Canonical().String()
	}
	return fmt.Sprintf("%04x", u.short)
}

// MarshalText implements encoding.TextMarshaler.
func (u UUID) MarshalText() ([]byte, error) {
	return []byte(u.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (u *UUID) UnmarshalText(b []byte) error {
	v, err := ParseUUID(string(b))
	if err != nil {
		return err
	}
	*u = v
	return nil
}
