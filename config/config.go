package config

import (
	"encoding/hex"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/ARMmbed/mbed-os-sub118/ble"
	"github.com/ARMmbed/mbed-os-sub118/gattc"
	"github.com/ARMmbed/mbed-os-sub118/util"
	"github.com/ARMmbed/mbed-os-sub118/wire"
	"github.com/ARMmbed/mbed-os-sub118/wire/att"
	"github.com/ARMmbed/mbed-os-sub118/wire/gatt"
)

// Config holds all gattdisc configuration.
type Config struct {
	LogLevel       string        `yaml:"log_level"`
	MaxConnections int           `yaml:"max_connections"`
	MTU            int           `yaml:"mtu"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	VendorUUIDs    []string      `yaml:"vendor_uuids"`
	Filter         FilterConfig  `yaml:"filter"`
	Peer           PeerConfig    `yaml:"peer"`
}

// FilterConfig narrows discovery. Empty fields match everything.
type FilterConfig struct {
	Service        string `yaml:"service"`
	Characteristic string `yaml:"characteristic"`
}

// PeerConfig describes the simulated GATT server.
type PeerConfig struct {
	DeviceName string          `yaml:"device_name"`
	MTU        int             `yaml:"mtu"`
	Latency    time.Duration   `yaml:"latency"`
	Services   []ServiceConfig `yaml:"services"`
}

// ServiceConfig is one service of the peer database.
type ServiceConfig struct {
	UUID            string                 `yaml:"uuid"`
	Secondary       bool                   `yaml:"secondary"`
	Characteristics []CharacteristicConfig `yaml:"characteristics"`
}

// CharacteristicConfig is one characteristic. Value is hex encoded.
type CharacteristicConfig struct {
	UUID        string             `yaml:"uuid"`
	Properties  []string           `yaml:"properties"` // "read", "write", "notify", ...
	Value       string             `yaml:"value"`
	Descriptors []DescriptorConfig `yaml:"descriptors"`
}

// DescriptorConfig is one descriptor. Value is hex encoded.
type DescriptorConfig struct {
	UUID  string `yaml:"uuid"`
	Value string `yaml:"value"`
}

// DefaultConfigPath returns the default config file path.
func DefaultConfigPath() string {
	return util.GetConfigPath()
}

// Default returns a Config describing a heart rate sensor with a Nordic
// UART service.
func Default() *Config {
	return &Config{
		LogLevel:       "info",
		MaxConnections: gattc.DefaultMaxConnections,
		MTU:            wire.DefaultClientMTU,
		RequestTimeout: att.DefaultTimeout,
		Peer: PeerConfig{
			DeviceName: "gattdisc",
			MTU:        wire.DefaultClientMTU,
			Services: []ServiceConfig{
				{
					UUID: "180d",
					Characteristics: []CharacteristicConfig{
						{UUID: "2a37", Properties: []string{"notify"}},
						{UUID: "2a38", Properties: []string{"read"}, Value: "01"},
					},
				},
				{
					UUID: "6e400001-b5a3-f393-e0a9-e50e24dcca9e",
					Characteristics: []CharacteristicConfig{
						{UUID: "6e400002-b5a3-f393-e0a9-e50e24dcca9e", Properties: []string{"write", "write-without-response"}},
						{UUID: "6e400003-b5a3-f393-e0a9-e50e24dcca9e", Properties: []string{"notify"}},
					},
				},
				{
					UUID: "180f",
					Characteristics: []CharacteristicConfig{
						{UUID: "2a19", Properties: []string{"read", "notify"}, Value: "64"},
					},
				},
			},
		},
	}
}

// Load reads and parses a YAML config file. Missing fields are filled
// with defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "reading config file")
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrap(err, "parsing config file")
	}
	return cfg, nil
}

// LoadOrDefault loads path, or the default path when path is empty. A
// missing default file yields the defaults.
func LoadOrDefault(path string) (*Config, error) {
	if path != "" {
		return Load(path)
	}
	cfg, err := Load(DefaultConfigPath())
	if os.IsNotExist(errors.Cause(err)) {
		return Default(), nil
	}
	return cfg, err
}

// Validate checks the config for invalid values.
func (c *Config) Validate() error {
	switch strings.ToLower(c.LogLevel) {
	case "trace", "debug", "info", "warn", "error":
	default:
		return errors.Errorf("log_level must be trace, debug, info, warn, or error, got %q", c.LogLevel)
	}

	if c.MaxConnections < 1 {
		return errors.Errorf("max_connections must be > 0, got %d", c.MaxConnections)
	}
	if c.MTU < wire.DefaultMTU || c.MTU > wire.MaxMTU {
		return errors.Errorf("mtu must be between %d and %d, got %d", wire.DefaultMTU, wire.MaxMTU, c.MTU)
	}
	if c.Peer.MTU != 0 && (c.Peer.MTU < wire.DefaultMTU || c.Peer.MTU > wire.MaxMTU) {
		return errors.Errorf("peer.mtu must be between %d and %d, got %d", wire.DefaultMTU, wire.MaxMTU, c.Peer.MTU)
	}
	if c.RequestTimeout <= 0 {
		return errors.Errorf("request_timeout must be > 0, got %s", c.RequestTimeout)
	}
	if c.Peer.Latency < 0 {
		return errors.Errorf("peer.latency must not be negative, got %s", c.Peer.Latency)
	}

	if _, err := c.Vendor(); err != nil {
		return err
	}
	if _, err := c.ServiceFilter(); err != nil {
		return err
	}
	if _, err := c.CharacteristicFilter(); err != nil {
		return err
	}
	if _, err := c.Services(); err != nil {
		return err
	}
	return nil
}

// Vendor builds the vendor UUID table from vendor_uuids.
func (c *Config) Vendor() (*wire.VendorUUIDs, error) {
	if len(c.VendorUUIDs) > wire.MaxVendorUUIDs {
		return nil, errors.Errorf("vendor_uuids holds at most %d bases, got %d", wire.MaxVendorUUIDs, len(c.VendorUUIDs))
	}
	bases := make([]ble.UUID, 0, len(c.VendorUUIDs))
	for i, s := range c.VendorUUIDs {
		u, err := ble.ParseUUID(s)
		if err != nil {
			return nil, errors.Wrapf(err, "vendor_uuids[%d]", i)
		}
		bases = append(bases, u)
	}
	v, err := wire.NewVendorUUIDs(bases...)
	return v, errors.Wrap(err, "vendor_uuids")
}

// ServiceFilter returns the service UUID to discover, or the wildcard.
func (c *Config) ServiceFilter() (ble.UUID, error) {
	return parseFilter("filter.service", c.Filter.Service)
}

// CharacteristicFilter returns the characteristic UUID to discover, or
// the wildcard.
func (c *Config) CharacteristicFilter() (ble.UUID, error) {
	return parseFilter("filter.characteristic", c.Filter.Characteristic)
}

func parseFilter(field, s string) (ble.UUID, error) {
	if s == "" {
		return ble.UUIDUnknown, nil
	}
	u, err := ble.ParseUUID(s)
	if err != nil {
		return ble.UUIDUnknown, errors.Wrap(err, field)
	}
	return u, nil
}

// Services converts the peer description into service definitions,
// preceded by the mandatory GAP and GATT services.
func (c *Config) Services() ([]gatt.Service, error) {
	services := []gatt.Service{
		gatt.NewGenericAccessService(c.Peer.DeviceName, 0),
		gatt.NewGenericAttributeService(),
	}
	for i, sc := range c.Peer.Services {
		s, err := sc.service()
		if err != nil {
			return nil, errors.Wrapf(err, "peer.services[%d]", i)
		}
		services = append(services, s)
	}
	return services, nil
}

func (sc ServiceConfig) service() (gatt.Service, error) {
	u, err := ble.ParseUUID(sc.UUID)
	if err != nil {
		return gatt.Service{}, err
	}
	s := gatt.Service{UUID: u, Primary: !sc.Secondary}
	for i, cc := range sc.Characteristics {
		ch, err := cc.characteristic()
		if err != nil {
			return gatt.Service{}, errors.Wrapf(err, "characteristics[%d]", i)
		}
		s.Characteristics = append(s.Characteristics, ch)
	}
	return s, nil
}

func (cc CharacteristicConfig) characteristic() (gatt.Characteristic, error) {
	u, err := ble.ParseUUID(cc.UUID)
	if err != nil {
		return gatt.Characteristic{}, err
	}
	ch := gatt.Characteristic{UUID: u}
	for _, name := range cc.Properties {
		p, err := ble.ParseProperty(strings.ToLower(name))
		if err != nil {
			return gatt.Characteristic{}, err
		}
		ch.Properties |= p
	}
	if ch.Value, err = decodeValue(cc.Value); err != nil {
		return gatt.Characteristic{}, err
	}

	for i, dc := range cc.Descriptors {
		du, err := ble.ParseUUID(dc.UUID)
		if err != nil {
			return gatt.Characteristic{}, errors.Wrapf(err, "descriptors[%d]", i)
		}
		value, err := decodeValue(dc.Value)
		if err != nil {
			return gatt.Characteristic{}, errors.Wrapf(err, "descriptors[%d]", i)
		}
		ch.Descriptors = append(ch.Descriptors, gatt.Descriptor{UUID: du, Value: value})
	}
	return ch, nil
}

func decodeValue(s string) ([]byte, error) {
	if s == "" {
		return nil, nil
	}
	b, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil {
		return nil, errors.Wrapf(err, "value %q", s)
	}
	return b, nil
}
