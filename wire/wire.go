package wire

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/ARMmbed/mbed-os-sub118/ble"
	"github.com/ARMmbed/mbed-os-sub118/gattc"
	"github.com/ARMmbed/mbed-os-sub118/logger"
	"github.com/ARMmbed/mbed-os-sub118/wire/att"
	"github.com/ARMmbed/mbed-os-sub118/wire/debug"
)

// EventHandler consumes the events of a Link. *gattc.Client implements it.
type EventHandler interface {
	HandleEvent(conn ble.ConnHandle, evt gattc.Event)
	OnDisconnection(conn ble.ConnHandle)
}

// linkEvent is a response event, or a disconnection when evt is nil.
type linkEvent struct {
	conn ble.ConnHandle
	evt  gattc.Event
}

// Link is the client side of a simulated SoftDevice. It issues GATT client
// requests as ATT PDUs over in-memory connections to Peers and turns the
// responses into gattc events, delivered by Run.
//
// Transport methods must be called from the goroutine running Run, or
// before Run starts.
type Link struct {
	mtu            int
	requestTimeout time.Duration
	vendor         *VendorUUIDs
	debugLogger    *debug.DebugLogger

	mu          sync.RWMutex
	connections map[ble.ConnHandle]*Connection
	nextConn    ble.ConnHandle

	events    chan linkEvent
	closed    chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// LinkOption configures a Link.
type LinkOption func(*Link)

// WithMTU sets the MTU the client asks for during connection.
func WithMTU(mtu int) LinkOption {
	return func(l *Link) { l.mtu = clampMTU(mtu) }
}

// WithRequestTimeout sets the ATT transaction timeout.
func WithRequestTimeout(d time.Duration) LinkOption {
	return func(l *Link) { l.requestTimeout = d }
}

// WithVendorUUIDs sets the registered 128-bit bases.
func WithVendorUUIDs(v *VendorUUIDs) LinkOption {
	return func(l *Link) { l.vendor = v }
}

// WithDebugLogger traces every packet and link event.
func WithDebugLogger(d *debug.DebugLogger) LinkOption {
	return func(l *Link) { l.debugLogger = d }
}

// NewLink creates a link with no connections.
func NewLink(opts ...LinkOption) *Link {
	l := &Link{
		mtu:            DefaultClientMTU,
		requestTimeout: att.DefaultTimeout,
		connections:    make(map[ble.ConnHandle]*Connection),
		events:         make(chan linkEvent, eventQueueSize),
		closed:         make(chan struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Connect opens a connection to peer, exchanges MTUs and starts reading
// responses. The returned handle identifies the connection in every
// Transport call and event.
func (l *Link) Connect(peer *Peer) (ble.ConnHandle, error) {
	select {
	case <-l.closed:
		return ble.InvalidConnHandle, errors.New("wire: link closed")
	default:
	}

	l.mu.Lock()
	handle := l.nextConn
	l.nextConn++
	l.mu.Unlock()

	clientSide, peerSide := net.Pipe()

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		if err := peer.Serve(handle, peerSide); err != nil {
			logger.Warn(peerLogPrefix, "conn %d: %v", handle, err)
		}
	}()

	connection := newConnection(handle, clientSide, l.requestTimeout)
	if err := l.exchangeMTU(connection); err != nil {
		clientSide.Close()
		return ble.InvalidConnHandle, errors.Wrapf(err, "wire: connect %d", handle)
	}
	connection.tracker.SetTimeoutCallback(func(req att.PendingRequest) {
		logger.Warn(logPrefix, "conn %d: %s timed out", handle, att.OpcodeNames[req.Opcode])
		l.debugLogger.LogLinkEvent("request_timeout", uint16(handle), nil, map[string]string{"opcode": att.OpcodeNames[req.Opcode]})
		connection.close()
	})

	l.mu.Lock()
	l.connections[handle] = connection
	l.mu.Unlock()

	l.debugLogger.LogLinkEvent("connected", uint16(handle), nil, nil)
	logger.Info(logPrefix, "conn %d: connected, MTU %d", handle, connection.MTU())

	l.wg.Add(1)
	go l.readMessages(connection)
	return handle, nil
}

// Disconnect closes a connection. The handler's OnDisconnection runs from
// Run once the read loop has stopped.
func (l *Link) Disconnect(conn ble.ConnHandle) error {
	connection, ok := l.connection(conn)
	if !ok {
		return ble.StatusInvalidConnHandle
	}
	connection.close()
	return nil
}

// MTU returns the negotiated MTU of a connection, or 0 if unknown.
func (l *Link) MTU(conn ble.ConnHandle) int {
	connection, ok := l.connection(conn)
	if !ok {
		return 0
	}
	return connection.MTU()
}

// Run delivers events to h until ctx is done or the link is closed.
func (l *Link) Run(ctx context.Context, h EventHandler) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.closed:
			return nil
		case e := <-l.events:
			if e.evt == nil {
				h.OnDisconnection(e.conn)
				continue
			}
			h.HandleEvent(e.conn, e.evt)
		}
	}
}

// Close disconnects everything and waits for the connection goroutines.
func (l *Link) Close() error {
	l.closeOnce.Do(func() {
		close(l.closed)
		l.mu.RLock()
		for _, connection := range l.connections {
			connection.close()
		}
		l.mu.RUnlock()
	})
	l.wg.Wait()
	return nil
}

func (l *Link) connection(conn ble.ConnHandle) (*Connection, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	connection, ok := l.connections[conn]
	return connection, ok
}

// post queues an event for Run. Events are dropped once the link is closed.
func (l *Link) post(e linkEvent) {
	select {
	case l.events <- e:
	case <-l.closed:
	}
}
