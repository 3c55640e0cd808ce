package wire

import (
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/ARMmbed/mbed-os-sub118/ble"
	"github.com/ARMmbed/mbed-os-sub118/logger"
	"github.com/ARMmbed/mbed-os-sub118/wire/att"
	"github.com/ARMmbed/mbed-os-sub118/wire/l2cap"
)

// Connection is the client side of one link to a peer
type Connection struct {
	handle    ble.ConnHandle
	conn      net.Conn
	sendMutex sync.Mutex // protects writes to conn
	tracker   *att.RequestTracker
	closeOnce sync.Once

	mu  sync.RWMutex
	mtu int
}

func newConnection(handle ble.ConnHandle, conn net.Conn, timeout time.Duration) *Connection {
	return &Connection{
		handle:  handle,
		conn:    conn,
		tracker: att.NewRequestTracker(timeout),
		mtu:     DefaultMTU,
	}
}

// MTU returns the negotiated ATT MTU
func (c *Connection) MTU() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.mtu
}

func (c *Connection) setMTU(mtu int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mtu = mtu
}

// close ends the connection; the read loop notices and reports it
func (c *Connection) close() {
	c.closeOnce.Do(func() {
		c.tracker.CancelPending()
		c.conn.Close()
	})
}

// sendATTPacket encodes and writes one ATT PDU
func (l *Link) sendATTPacket(c *Connection, pkt interface{}) error {
	raw, err := att.EncodePacket(pkt)
	if err != nil {
		return err
	}
	if len(raw) > c.MTU() {
		return errors.Errorf("wire: %s is %d bytes, MTU is %d", att.OpcodeNames[raw[0]], len(raw), c.MTU())
	}

	l.debugLogger.LogATTPacket("tx", "client", uint16(c.handle), pkt, raw)

	c.sendMutex.Lock()
	defer c.sendMutex.Unlock()
	return l2cap.WritePacket(c.conn, l2cap.NewATTPacket(raw))
}

// exchangeMTU runs the MTU exchange before the read loop owns the stream
func (l *Link) exchangeMTU(c *Connection) error {
	if err := c.conn.SetDeadline(time.Now().Add(mtuExchangeTimeout)); err != nil {
		return errors.Wrap(err, "wire: set deadline")
	}
	defer c.conn.SetDeadline(time.Time{})

	if err := l.sendATTPacket(c, &att.ExchangeMTURequest{ClientRxMTU: uint16(l.mtu)}); err != nil {
		return err
	}

	pkt, err := l2cap.ReadPacket(c.conn)
	if err != nil {
		return errors.Wrap(err, "wire: MTU exchange")
	}
	resp, err := att.DecodePacket(pkt.Payload)
	if err != nil {
		return err
	}
	l.debugLogger.LogATTPacket("rx", "client", uint16(c.handle), resp, pkt.Payload)

	switch r := resp.(type) {
	case *att.ExchangeMTUResponse:
		mtu := int(r.ServerRxMTU)
		if mtu > l.mtu {
			mtu = l.mtu
		}
		c.setMTU(clampMTU(mtu))
	case *att.ErrorResponse:
		// Peers without MTU exchange stay at the default.
		logger.Debug(logPrefix, "conn %d: MTU exchange refused: %s", c.handle, att.ErrorNames[r.ErrorCode])
	default:
		return errors.Errorf("wire: unexpected %T during MTU exchange", resp)
	}

	l.debugLogger.LogLinkEvent("mtu_negotiated", uint16(c.handle), nil, map[string]string{"mtu": strconv.Itoa(c.MTU())})
	return nil
}
