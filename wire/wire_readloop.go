package wire

import (
	"io"

	"github.com/pkg/errors"

	"github.com/ARMmbed/mbed-os-sub118/logger"
	"github.com/ARMmbed/mbed-os-sub118/wire/att"
	"github.com/ARMmbed/mbed-os-sub118/wire/l2cap"
)

// readMessages reads responses from a connection until it closes, then
// reports the disconnection.
// Note: Must be called with wg.Add(1) already done by caller
func (l *Link) readMessages(c *Connection) {
	var reason error
	defer func() {
		l.wg.Done()
		c.close()

		l.mu.Lock()
		delete(l.connections, c.handle)
		l.mu.Unlock()

		l.debugLogger.LogLinkEvent("disconnected", uint16(c.handle), reason, nil)
		logger.Info(logPrefix, "conn %d: disconnected", c.handle)
		l.post(linkEvent{conn: c.handle})
	}()

	for {
		pkt, err := l2cap.ReadPacket(c.conn)
		if err != nil {
			if errors.Cause(err) != io.EOF && errors.Cause(err) != io.ErrClosedPipe {
				reason = err
			}
			return
		}

		if pkt.ChannelID != l2cap.ChannelATT {
			logger.Warn(logPrefix, "conn %d: unsupported L2CAP channel 0x%04X", c.handle, pkt.ChannelID)
			continue
		}

		resp, err := att.DecodePacket(pkt.Payload)
		if err != nil {
			logger.Warn(logPrefix, "conn %d: failed to decode ATT packet: %v", c.handle, err)
			continue
		}
		l.debugLogger.LogATTPacket("rx", "client", uint16(c.handle), resp, pkt.Payload)

		req, err := c.tracker.CompleteRequest(att.Opcode(resp))
		if err != nil {
			logger.Warn(logPrefix, "conn %d: %v", c.handle, err)
			continue
		}

		evt := l.toEvent(req.Tag.(requestKind), resp)
		logger.Trace(logPrefix, "conn %d: %s -> %T", c.handle, att.OpcodeNames[att.Opcode(resp)], evt)
		l.post(linkEvent{conn: c.handle, evt: evt})
	}
}
