package wire

import (
	"io"
	"net"
	"time"

	"github.com/pkg/errors"

	"github.com/ARMmbed/mbed-os-sub118/ble"
	"github.com/ARMmbed/mbed-os-sub118/logger"
	"github.com/ARMmbed/mbed-os-sub118/wire/att"
	"github.com/ARMmbed/mbed-os-sub118/wire/debug"
	"github.com/ARMmbed/mbed-os-sub118/wire/gatt"
	"github.com/ARMmbed/mbed-os-sub118/wire/l2cap"
)

const peerLogPrefix = "peer"

// Peer is a simulated GATT server answering discovery requests from an
// attribute database.
type Peer struct {
	db          *gatt.AttributeDatabase
	maxMTU      int
	minLatency  time.Duration
	maxLatency  time.Duration
	debugLogger *debug.DebugLogger
}

// PeerOption configures a Peer.
type PeerOption func(*Peer)

// WithPeerMTU sets the largest MTU the peer accepts.
func WithPeerMTU(mtu int) PeerOption {
	return func(p *Peer) { p.maxMTU = clampMTU(mtu) }
}

// WithLatency delays every response by a random duration in [min, max].
func WithLatency(min, max time.Duration) PeerOption {
	return func(p *Peer) { p.minLatency, p.maxLatency = min, max }
}

// WithPeerDebugLogger traces every packet the peer sends or receives.
func WithPeerDebugLogger(d *debug.DebugLogger) PeerOption {
	return func(p *Peer) { p.debugLogger = d }
}

// NewPeer returns a peer serving db.
func NewPeer(db *gatt.AttributeDatabase, opts ...PeerOption) *Peer {
	p := &Peer{db: db, maxMTU: MaxMTU}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Database returns the attribute database the peer serves.
func (p *Peer) Database() *gatt.AttributeDatabase {
	return p.db
}

// peerSession is the server side state of one connection.
type peerSession struct {
	conn ble.ConnHandle
	mtu  int
}

// Serve answers requests read from c until the stream closes.
func (p *Peer) Serve(conn ble.ConnHandle, c net.Conn) error {
	defer c.Close()
	s := &peerSession{conn: conn, mtu: DefaultMTU}

	for {
		pkt, err := l2cap.ReadPacket(c)
		if err != nil {
			if errors.Cause(err) == io.EOF || errors.Cause(err) == io.ErrClosedPipe {
				return nil
			}
			return err
		}
		if pkt.ChannelID != l2cap.ChannelATT {
			logger.Warn(peerLogPrefix, "conn %d: ignoring L2CAP channel 0x%04X", conn, pkt.ChannelID)
			continue
		}

		if len(pkt.Payload) == 0 {
			continue
		}

		req, err := att.DecodePacket(pkt.Payload)
		var resp interface{}
		if err != nil {
			logger.Warn(peerLogPrefix, "conn %d: %v", conn, err)
			resp = att.NewError(att.ErrInvalidPDU, pkt.Payload[0], 0).Response()
		} else {
			p.debugLogger.LogATTPacket("rx", "peer", uint16(conn), req, pkt.Payload)
			resp = p.handleRequest(s, req)
		}

		if p.maxLatency > 0 {
			time.Sleep(randomDelay(p.minLatency, p.maxLatency))
		}

		raw, err := att.EncodePacket(resp)
		if err != nil {
			return errors.Wrap(err, "peer: encode response")
		}
		p.debugLogger.LogATTPacket("tx", "peer", uint16(conn), resp, raw)
		if err := l2cap.WritePacket(c, l2cap.NewATTPacket(raw)); err != nil {
			if errors.Cause(err) == io.ErrClosedPipe {
				return nil
			}
			return err
		}
	}
}

// handleRequest returns the response to one ATT request
func (p *Peer) handleRequest(s *peerSession, req interface{}) interface{} {
	switch r := req.(type) {
	case *att.ExchangeMTURequest:
		s.mtu = clampMTU(int(r.ClientRxMTU))
		if s.mtu > p.maxMTU {
			s.mtu = p.maxMTU
		}
		logger.Debug(peerLogPrefix, "conn %d: MTU %d", s.conn, s.mtu)
		return &att.ExchangeMTUResponse{ServerRxMTU: uint16(p.maxMTU)}

	case *att.ReadByGroupTypeRequest:
		rng, errResp := checkRange(att.OpReadByGroupTypeRequest, r.StartHandle, r.EndHandle)
		if errResp != nil {
			return errResp
		}
		typ, err := ble.UUIDFromBytes(r.Type)
		if err != nil || typ != ble.UUID16(ble.UUIDPrimaryService) {
			return att.NewError(att.ErrUnsupportedGroupType, att.OpReadByGroupTypeRequest, r.StartHandle).Response()
		}
		services := p.db.PrimaryServices(rng)
		if len(services) == 0 {
			return att.NewError(att.ErrAttributeNotFound, att.OpReadByGroupTypeRequest, r.StartHandle).Response()
		}
		resp, err := gatt.BuildReadByGroupTypeResponse(services, s.mtu)
		if err != nil {
			return att.NewError(att.ErrUnlikelyError, att.OpReadByGroupTypeRequest, r.StartHandle).Response()
		}
		return resp

	case *att.ReadByTypeRequest:
		rng, errResp := checkRange(att.OpReadByTypeRequest, r.StartHandle, r.EndHandle)
		if errResp != nil {
			return errResp
		}
		typ, err := ble.UUIDFromBytes(r.Type)
		if err != nil {
			return att.NewError(att.ErrInvalidPDU, att.OpReadByTypeRequest, r.StartHandle).Response()
		}
		values := p.db.ReadByType(rng, typ)
		if len(values) == 0 {
			return att.NewError(att.ErrAttributeNotFound, att.OpReadByTypeRequest, r.StartHandle).Response()
		}
		resp, err := gatt.BuildReadByTypeResponse(values, s.mtu)
		if err != nil {
			return att.NewError(att.ErrUnlikelyError, att.OpReadByTypeRequest, r.StartHandle).Response()
		}
		return resp

	case *att.FindInformationRequest:
		rng, errResp := checkRange(att.OpFindInformationRequest, r.StartHandle, r.EndHandle)
		if errResp != nil {
			return errResp
		}
		infos := p.db.FindInformation(rng)
		if len(infos) == 0 {
			return att.NewError(att.ErrAttributeNotFound, att.OpFindInformationRequest, r.StartHandle).Response()
		}
		resp, err := gatt.BuildFindInformationResponse(infos, s.mtu)
		if err != nil {
			return att.NewError(att.ErrUnlikelyError, att.OpFindInformationRequest, r.StartHandle).Response()
		}
		return resp

	case *att.ReadRequest:
		attr, err := p.db.GetAttribute(ble.Handle(r.Handle))
		if err != nil {
			return att.NewError(att.ErrInvalidHandle, att.OpReadRequest, r.Handle).Response()
		}
		if attr.Permissions&gatt.PermReadable == 0 {
			return att.NewError(att.ErrReadNotPermitted, att.OpReadRequest, r.Handle).Response()
		}
		value := attr.Value
		if len(value) > s.mtu-1 {
			value = value[:s.mtu-1]
		}
		return &att.ReadResponse{Value: value}

	default:
		opcode := att.Opcode(req)
		logger.Warn(peerLogPrefix, "conn %d: unsupported request %s", s.conn, att.OpcodeNames[opcode])
		return att.NewError(att.ErrRequestNotSupported, opcode, 0).Response()
	}
}

// checkRange validates the handle range of a discovery request
func checkRange(opcode uint8, start, end uint16) (ble.HandleRange, *att.ErrorResponse) {
	if start == 0 || start > end {
		return ble.HandleRange{}, att.NewError(att.ErrInvalidHandle, opcode, start).Response()
	}
	return ble.HandleRange{Start: ble.Handle(start), End: ble.Handle(end)}, nil
}
