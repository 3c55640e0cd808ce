package main

import (
	"context"

	"github.com/pkg/errors"

	"github.com/ARMmbed/mbed-os-sub118/ble"
	"github.com/ARMmbed/mbed-os-sub118/config"
	"github.com/ARMmbed/mbed-os-sub118/gattc"
	"github.com/ARMmbed/mbed-os-sub118/logger"
	"github.com/ARMmbed/mbed-os-sub118/report"
	"github.com/ARMmbed/mbed-os-sub118/wire"
	"github.com/ARMmbed/mbed-os-sub118/wire/debug"
	"github.com/ARMmbed/mbed-os-sub118/wire/gatt"
)

// session is one connection to the simulated peer. Every callback runs on
// the goroutine inside run.
type session struct {
	link   *wire.Link
	client *gattc.Client
	conn   ble.ConnHandle
	report *report.Report

	// descriptor discovery after the service discovery
	descriptors bool
	only        ble.UUID
	pending     []gattc.DiscoveredCharacteristic

	done   bool
	cancel context.CancelFunc
}

// buildPeer returns the simulated peer described by cfg.
func buildPeer(cfg *config.Config, trace *debug.DebugLogger) (*wire.Peer, error) {
	services, err := cfg.Services()
	if err != nil {
		return nil, err
	}
	db, _, err := gatt.BuildAttributeDatabase(services)
	if err != nil {
		return nil, err
	}

	opts := []wire.PeerOption{wire.WithPeerDebugLogger(trace)}
	if cfg.Peer.MTU != 0 {
		opts = append(opts, wire.WithPeerMTU(cfg.Peer.MTU))
	}
	if cfg.Peer.Latency > 0 {
		opts = append(opts, wire.WithLatency(cfg.Peer.Latency/2, cfg.Peer.Latency))
	}
	return wire.NewPeer(db, opts...), nil
}

func newSession(cfg *config.Config, trace *debug.DebugLogger) (*session, error) {
	vendor, err := cfg.Vendor()
	if err != nil {
		return nil, err
	}
	peer, err := buildPeer(cfg, trace)
	if err != nil {
		return nil, err
	}

	link := wire.NewLink(
		wire.WithMTU(cfg.MTU),
		wire.WithRequestTimeout(cfg.RequestTimeout),
		wire.WithVendorUUIDs(vendor),
		wire.WithDebugLogger(trace),
	)
	conn, err := link.Connect(peer)
	if err != nil {
		link.Close()
		return nil, errors.Wrap(err, "can't connect to peer")
	}

	return &session{
		link:   link,
		client: gattc.NewClient(link, gattc.WithMaxConnections(cfg.MaxConnections)),
		conn:   conn,
		report: report.New(cfg.Peer.DeviceName, conn, link.MTU(conn)),
	}, nil
}

func (s *session) close() {
	s.link.Close()
}

// run discovers the peer's services, and the descriptors when asked to,
// and returns once everything has terminated.
func (s *session) run(ctx context.Context, service, characteristic ble.UUID) (*report.Report, error) {
	ctx, s.cancel = context.WithCancel(ctx)
	defer s.cancel()

	s.client.OnServiceDiscoveryTermination(s.onServiceDiscoveryDone)
	if err := s.client.LaunchServiceDiscovery(s.conn, s.report.AddService, s.onCharacteristic, service, characteristic); err != nil {
		return nil, errors.Wrap(err, "can't launch discovery")
	}

	err := s.link.Run(ctx, s.client)
	if !s.done {
		if err == nil {
			err = errors.New("link closed")
		}
		return s.report, errors.Wrap(err, "discovery did not finish")
	}
	return s.report, nil
}

func (s *session) onCharacteristic(c *gattc.DiscoveredCharacteristic) {
	s.report.AddCharacteristic(c)
	if s.descriptors && (s.only.IsWildcard() || s.only == c.UUID()) {
		s.pending = append(s.pending, *c)
	}
}

func (s *session) onServiceDiscoveryDone(conn ble.ConnHandle, err error) {
	s.report.Finish(err)
	logger.Info(logPrefix, "conn %d: %d services, %d characteristics (err=%v)",
		conn, len(s.report.Services), len(s.report.Characteristics()), err)
	if err != nil || !s.descriptors {
		s.finish()
		return
	}
	s.nextDescriptors()
}

// nextDescriptors launches descriptor discovery for the next pending
// characteristic. Launch may terminate synchronously, in which case the
// termination callback has already moved on.
func (s *session) nextDescriptors() {
	for len(s.pending) > 0 {
		c := s.pending[0]
		s.pending = s.pending[1:]

		err := c.DiscoverDescriptors(s.report.AddDescriptor, s.onDescriptorsDone)
		if err == nil {
			return
		}
		logger.Warn(logPrefix, "conn %d: descriptors of %s: %v", s.conn, c.UUID(), err)
		s.report.DescriptorsDone(&c, err)
	}
	s.finish()
}

func (s *session) onDescriptorsDone(c *gattc.DiscoveredCharacteristic, err error) {
	s.report.DescriptorsDone(c, err)
	s.nextDescriptors()
}

func (s *session) finish() {
	if s.done {
		return
	}
	s.done = true
	if st, err := s.report.Struct(); err == nil {
		logger.DebugJSON(logPrefix, "report", st)
	}
	s.cancel()
}
