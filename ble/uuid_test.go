package ble

import (
	"errors"
	"testing"

	"github.com/google/uuid"
)

func TestParseUUIDShort(t *testing.T) {
	for _, s := range []string{"180d", "180D", "0x180d"} {
		u, err := ParseUUID(s)
		if err != nil {
			t.Fatalf("ParseUUID(%q) failed: %v", s, err)
		}
		if u != UUID16(0x180D) {
			t.Errorf("ParseUUID(%q) = %s, want 180d", s, u)
		}
		if !u.Is16Bit() {
			t.Errorf("ParseUUID(%q) should be 16-bit", s)
		}
	}
}

func TestParseUUIDLong(t *testing.T) {
	s := "6e400001-b5a3-f393-e0a9-e50e24dcca9e"
	u, err := ParseUUID(s)
	if err != nil {
		t.Fatalf("ParseUUID failed: %v", err)
	}
	if u.Is16Bit() {
		t.Fatalf("expected a long UUID")
	}
	if u.String() != s {
		t.Errorf("String() = %s, want %s", u.String(), s)
	}

	// Wire order is LSB first.
	b := u.Bytes()
	if b[0] != 0x9e || b[15] != 0x6e {
		t.Errorf("Bytes() = % x, want LSB-first", b)
	}

	again, err := UUID128LSB(b)
	if err != nil {
		t.Fatalf("UUID128LSB failed: %v", err)
	}
	if again != u {
		t.Errorf("UUID128LSB(Bytes()) = %s, want %s", again, u)
	}
	if again.Canonical() != uuid.MustParse(s) {
		t.Errorf("Canonical() = %s, want %s", again.Canonical(), s)
	}
}

func TestParseUUIDInvalid(t *testing.T) {
	for _, s := range []string{"", "18", "zzzz", "6e400001-b5a3-f393-e0a9-e50e24dcca9"} {
		if _, err := ParseUUID(s); err == nil {
			t.Errorf("ParseUUID(%q) should fail", s)
		}
	}
}

func TestUUIDUnknownIsWildcard(t *testing.T) {
	var u UUID
	if !u.IsUnknown() || !u.IsWildcard() {
		t.Errorf("zero UUID should be both unknown and wildcard")
	}
	if UUID16(0x2800).IsWildcard() {
		t.Errorf("0x2800 should not be a wildcard")
	}
}

func TestUUIDFromBytes(t *testing.T) {
	u, err := UUIDFromBytes([]byte{0x0d, 0x18})
	if err != nil || u != UUID16(0x180d) {
		t.Errorf("UUIDFromBytes short = %v, %v", u, err)
	}
	if _, err := UUIDFromBytes([]byte{1, 2, 3}); err == nil {
		t.Errorf("UUIDFromBytes should reject 3 bytes")
	}
}

func TestTranslateStatus(t *testing.T) {
	tests := []struct {
		in   error
		want error
	}{
		{nil, nil},
		{StatusSuccess, nil},
		{StatusInvalidConnHandle, ErrInvalidParameter},
		{StatusInvalidAddr, ErrInvalidParameter},
		{StatusNoMemory, ErrNoMemory},
		{StatusNoResources, ErrNoMemory},
		{StatusBusy, ErrStackBusy},
		{StatusInvalidState, ErrInvalidState},
		{Status(0x3001), ErrUnspecified},
		{errors.New("boom"), ErrUnspecified},
		{ErrParameterOutOfRange, ErrParameterOutOfRange},
	}
	for _, tc := range tests {
		if got := TranslateStatus(tc.in); got != tc.want {
			t.Errorf("TranslateStatus(%v) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestPropertiesNames(t *testing.T) {
	p := PropRead | PropNotify
	names := p.Names()
	if len(names) != 2 || names[0] != "read" || names[1] != "notify" {
		t.Errorf("Names() = %v", names)
	}
	for _, n := range names {
		bit, err := ParseProperty(n)
		if err != nil || !p.Has(bit) {
			t.Errorf("ParseProperty(%q) = %v, %v", n, bit, err)
		}
	}
	if _, err := ParseProperty("fly"); err == nil {
		t.Errorf("ParseProperty should reject unknown names")
	}
}
