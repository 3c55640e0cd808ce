package wire

import (
	"sync"

	"github.com/pkg/errors"

	"github.com/ARMmbed/mbed-os-sub118/ble"
)

// MaxVendorUUIDs is the number of 128-bit bases the stack can register.
const MaxVendorUUIDs = 10

// Bytes 12 and 13 (wire order) of a vendor base carry the 16-bit alias.
const (
	aliasLow  = 12
	aliasHigh = 13
)

// VendorUUIDs is the stack's table of registered 128-bit UUID bases. A
// discovered long UUID sharing a registered base is reported in full;
// any other long UUID is reported as ble.UUIDUnknown and has to be read
// back by the client.
type VendorUUIDs struct {
	mu    sync.RWMutex
	bases [][ble.LongUUIDLength]byte
}

// NewVendorUUIDs returns a table holding bases.
func NewVendorUUIDs(bases ...ble.UUID) (*VendorUUIDs, error) {
	v := &VendorUUIDs{}
	for _, base := range bases {
		if err := v.Add(base); err != nil {
			return nil, err
		}
	}
	return v, nil
}

// Add registers the base of u. Registering the same base twice is a no-op.
func (v *VendorUUIDs) Add(u ble.UUID) error {
	if u.Is16Bit() {
		return errors.Errorf("wire: vendor base %s is not a 128-bit UUID", u)
	}
	base := baseOf(u)

	v.mu.Lock()
	defer v.mu.Unlock()

	for _, b := range v.bases {
		if b == base {
			return nil
		}
	}
	if len(v.bases) >= MaxVendorUUIDs {
		return errors.Wrapf(ble.StatusNoMemory, "wire: vendor table full, cannot add %s", u)
	}
	v.bases = append(v.bases, base)
	return nil
}

// Len returns the number of registered bases.
func (v *VendorUUIDs) Len() int {
	if v == nil {
		return 0
	}
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.bases)
}

// Resolve returns the UUID the stack reports for a discovered UUID.
func (v *VendorUUIDs) Resolve(u ble.UUID) ble.UUID {
	if u.Is16Bit() {
		return u
	}
	if v == nil {
		return ble.UUIDUnknown
	}

	base := baseOf(u)
	v.mu.RLock()
	defer v.mu.RUnlock()
	for _, b := range v.bases {
		if b == base {
			return u
		}
	}
	return ble.UUIDUnknown
}

func baseOf(u ble.UUID) [ble.LongUUIDLength]byte {
	var base [ble.LongUUIDLength]byte
	copy(base[:], u.Bytes())
	base[aliasLow], base[aliasHigh] = 0, 0
	return base
}
