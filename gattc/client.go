package gattc

import (
	"github.com/ARMmbed/mbed-os-sub118/ble"
	"github.com/ARMmbed/mbed-os-sub118/logger"
)

// DefaultMaxConnections is the number of concurrent descriptor
// discoveries supported when no option says otherwise.
const DefaultMaxConnections = 3

// Options configures a Client.
type Options struct {
	MaxConnections int
}

// Option mutates Options.
type Option func(*Options)

// WithMaxConnections sizes the descriptor discovery slot pool.
func WithMaxConnections(n int) Option {
	return func(o *Options) { o.MaxConnections = n }
}

// Client is the GATT client layer: it owns one service discovery engine
// and one descriptor discoverer and routes transport events to them.
//
// Client is not safe for concurrent use. Drive it, and deliver events to
// it, from a single goroutine.
type Client struct {
	discovery   *ServiceDiscovery
	descriptors *DescriptorDiscoverer
}

// NewClient returns a client issuing requests through t.
func NewClient(t Transport, opts ...Option) *Client {
	o := Options{MaxConnections: DefaultMaxConnections}
	for _, opt := range opts {
		opt(&o)
	}
	c := &Client{}
	c.discovery = newServiceDiscovery(c, t)
	c.descriptors = NewDescriptorDiscoverer(t, o.MaxConnections)
	return c
}

// LaunchServiceDiscovery starts service and characteristic discovery on
// conn. See ServiceDiscovery.Launch.
func (c *Client) LaunchServiceDiscovery(conn ble.ConnHandle, sc ServiceCallback, cc CharacteristicCallback, matchService, matchCharacteristic ble.UUID) error {
	return c.discovery.Launch(conn, sc, cc, matchService, matchCharacteristic)
}

// DiscoverServices enumerates the services of conn matching u, which may
// be the wildcard.
func (c *Client) DiscoverServices(conn ble.ConnHandle, sc ServiceCallback, u ble.UUID) error {
	return c.discovery.Launch(conn, sc, nil, u, ble.UUIDUnknown)
}

// IsServiceDiscoveryActive reports whether a service discovery runs.
func (c *Client) IsServiceDiscoveryActive() bool {
	return c.discovery.IsActive()
}

// TerminateServiceDiscovery ends the running service discovery.
func (c *Client) TerminateServiceDiscovery() {
	c.discovery.Terminate()
}

// OnServiceDiscoveryTermination registers the service discovery
// termination callback.
func (c *Client) OnServiceDiscoveryTermination(cb TerminationCallback) {
	c.discovery.OnTermination(cb)
}

// DiscoverCharacteristicDescriptors launches descriptor discovery for ch.
func (c *Client) DiscoverCharacteristicDescriptors(ch *DiscoveredCharacteristic, onDescriptor DescriptorCallback, onTermination DescriptorTerminationCallback) error {
	return c.descriptors.Launch(ch, onDescriptor, onTermination)
}

// IsCharacteristicDescriptorDiscoveryActive reports whether descriptor
// discovery runs for ch.
func (c *Client) IsCharacteristicDescriptorDiscoveryActive(ch *DiscoveredCharacteristic) bool {
	return c.descriptors.IsActive(ch)
}

// TerminateCharacteristicDescriptorDiscovery ends descriptor discovery for ch.
func (c *Client) TerminateCharacteristicDescriptorDiscovery(ch *DiscoveredCharacteristic) {
	c.descriptors.RequestTerminate(ch)
}

// Reset clears the service discovery engine.
func (c *Client) Reset() error {
	return c.discovery.Reset()
}

// OnDisconnection ends every discovery bound to conn.
func (c *Client) OnDisconnection(conn ble.ConnHandle) {
	logger.Debug(logPrefix, "conn %d: disconnected", conn)
	c.discovery.TerminateConnection(conn, ble.ErrUnspecified)
	c.descriptors.Terminate(conn, ble.ErrUnspecified)
}

// HandleEvent processes one transport event received on conn. Service
// discovery events for another connection, or arriving after the session
// ended, are dropped.
func (c *Client) HandleEvent(conn ble.ConnHandle, evt Event) {
	sd := c.discovery

	switch e := evt.(type) {
	case *DescriptorDiscoveryResponse:
		switch e.Status {
		case StatusSuccess:
			c.descriptors.process(conn, e.Descriptors)
		case StatusAttributeNotFound:
			c.descriptors.Terminate(conn, nil)
		default:
			logger.Warn(logPrefix, "conn %d: descriptor discovery failed: %s", conn, e.Status)
			c.descriptors.Terminate(conn, ble.ErrUnspecified)
		}
		return

	case *PrimaryServiceDiscoveryResponse:
		if !c.accepts(conn, evt, stateServiceDiscoveryActive) {
			return
		}
		sd.onPrimaryServices(e)

	case *CharacteristicDiscoveryResponse:
		if !c.accepts(conn, evt, stateCharacteristicDiscoveryActive) {
			return
		}
		sd.onCharacteristics(e)

	case *ReadByUUIDResponse:
		if !c.accepts(conn, evt, stateDiscoverServiceUUIDs, stateDiscoverCharacteristicUUIDs) {
			return
		}
		sd.onReadByUUID(e)

	default:
		logger.Warn(logPrefix, "conn %d: unexpected event %T", conn, evt)
		return
	}

	sd.progressCharacteristicDiscovery()
	sd.progressServiceDiscovery()
}

func (c *Client) accepts(conn ble.ConnHandle, evt Event, states ...discoveryState) bool {
	sd := c.discovery
	if sd.conn == conn {
		for _, s := range states {
			if sd.state == s {
				return true
			}
		}
	}
	logger.Trace(logPrefix, "conn %d: dropping %T in state %s", conn, evt, sd.state)
	return false
}
