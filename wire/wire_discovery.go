package wire

import (
	"github.com/pkg/errors"

	"github.com/ARMmbed/mbed-os-sub118/ble"
	"github.com/ARMmbed/mbed-os-sub118/gattc"
	"github.com/ARMmbed/mbed-os-sub118/logger"
	"github.com/ARMmbed/mbed-os-sub118/wire/att"
)

var _ gattc.Transport = (*Link)(nil)

// DiscoverPrimaryServices sends a Read By Group Type Request for primary
// services from start to the end of the handle space.
func (l *Link) DiscoverPrimaryServices(conn ble.ConnHandle, start ble.Handle) error {
	return l.request(conn, requestPrimaryServices, &att.ReadByGroupTypeRequest{
		StartHandle: uint16(start),
		EndHandle:   uint16(ble.LastHandle),
		Type:        ble.UUID16(ble.UUIDPrimaryService).Bytes(),
	})
}

// DiscoverCharacteristics sends a Read By Type Request for characteristic
// declarations in r.
func (l *Link) DiscoverCharacteristics(conn ble.ConnHandle, r ble.HandleRange) error {
	return l.request(conn, requestCharacteristics, &att.ReadByTypeRequest{
		StartHandle: uint16(r.Start),
		EndHandle:   uint16(r.End),
		Type:        ble.UUID16(ble.UUIDCharacteristic).Bytes(),
	})
}

// ReadByUUID sends a Read By Type Request for attributes of type u in r.
func (l *Link) ReadByUUID(conn ble.ConnHandle, u ble.UUID, r ble.HandleRange) error {
	return l.request(conn, requestReadByUUID, &att.ReadByTypeRequest{
		StartHandle: uint16(r.Start),
		EndHandle:   uint16(r.End),
		Type:        u.Bytes(),
	})
}

// DiscoverDescriptors sends a Find Information Request for r.
func (l *Link) DiscoverDescriptors(conn ble.ConnHandle, r ble.HandleRange) error {
	return l.request(conn, requestDescriptors, &att.FindInformationRequest{
		StartHandle: uint16(r.Start),
		EndHandle:   uint16(r.End),
	})
}

// request issues one ATT request. Like the stack, it refuses a second
// request while one is outstanding on the connection.
func (l *Link) request(conn ble.ConnHandle, kind requestKind, pkt interface{}) error {
	connection, ok := l.connection(conn)
	if !ok {
		return ble.StatusInvalidConnHandle
	}

	opcode := att.Opcode(pkt)
	if err := connection.tracker.StartRequest(opcode, firstHandle(pkt), kind); err != nil {
		logger.Debug(logPrefix, "conn %d: %s refused: %v", conn, kind, err)
		return ble.StatusBusy
	}

	logger.Trace(logPrefix, "conn %d: %s (%s)", conn, att.OpcodeNames[opcode], kind)
	if err := l.sendATTPacket(connection, pkt); err != nil {
		connection.tracker.CancelPending()
		return errors.Wrapf(err, "wire: conn %d: %s", conn, kind)
	}
	return nil
}

func firstHandle(pkt interface{}) uint16 {
	switch p := pkt.(type) {
	case *att.ReadByGroupTypeRequest:
		return p.StartHandle
	case *att.ReadByTypeRequest:
		return p.StartHandle
	case *att.FindInformationRequest:
		return p.StartHandle
	case *att.ReadRequest:
		return p.Handle
	}
	return 0
}
