package gattc

import "github.com/ARMmbed/mbed-os-sub118/ble"

// Transport issues GATT client requests. Each call only queues the request:
// the response is delivered later through Client.HandleEvent. A non-nil
// error means the request was not issued; it is translated with
// ble.TranslateStatus.
type Transport interface {
	DiscoverPrimaryServices(conn ble.ConnHandle, start ble.Handle) error
	DiscoverCharacteristics(conn ble.ConnHandle, r ble.HandleRange) error
	ReadByUUID(conn ble.ConnHandle, u ble.UUID, r ble.HandleRange) error
	DiscoverDescriptors(conn ble.ConnHandle, r ble.HandleRange) error
}
