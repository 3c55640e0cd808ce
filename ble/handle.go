package ble

import "fmt"

// Handle is an attribute handle in a peer's GATT database.
type Handle uint16

// Attribute handle bounds. 0x0000 is reserved.
const (
	FirstHandle Handle = 0x0001
	LastHandle  Handle = 0xFFFF
)

// HandleRange is an inclusive range of attribute handles.
type HandleRange struct {
	Start Handle
	End   Handle
}

// Empty reports whether the range holds no handles.
func (r HandleRange) Empty() bool { return r.End < r.Start }

func (r HandleRange) String() string {
	return fmt.Sprintf("0x%04X-0x%04X", uint16(r.Start), uint16(r.End))
}

// ConnHandle identifies a connection.
type ConnHandle uint16

// InvalidConnHandle marks the absence of a connection.
const InvalidConnHandle ConnHandle = 0xFFFF

// Properties are the characteristic property bits (Vol 3, Part G, 3.3.1.1).
type Properties uint8

const (
	PropBroadcast                 Properties = 0x01
	PropRead                      Properties = 0x02
	PropWriteWithoutResponse      Properties = 0x04
	PropWrite                     Properties = 0x08
	PropNotify                    Properties = 0x10
	PropIndicate                  Properties = 0x20
	PropAuthenticatedSignedWrites Properties = 0x40
	PropExtendedProperties        Properties = 0x80
)

var propertyNames = []struct {
	bit  Properties
	name string
}{
	{PropBroadcast, "broadcast"},
	{PropRead, "read"},
	{PropWriteWithoutResponse, "write-without-response"},
	{PropWrite, "write"},
	{PropNotify, "notify"},
	{PropIndicate, "indicate"},
	{PropAuthenticatedSignedWrites, "authenticated-signed-writes"},
	{PropExtendedProperties, "extended-properties"},
}

// Has reports whether all bits of q are set.
func (p Properties) Has(q Properties) bool { return p&q == q }

// Names lists the set properties.
func (p Properties) Names() []string {
	var names []string
	for _, pn := range propertyNames {
		if p&pn.bit != 0 {
			names = append(names, pn.name)
		}
	}
	return names
}

// ParseProperty returns the bit for a property name as listed by Names.
func ParseProperty(name string) (Properties, error) {
	for _, pn := range propertyNames {
		if pn.name == name {
			return pn.bit, nil
		}
	}
	return 0, fmt.Errorf("ble: unknown characteristic property %q", name)
}
