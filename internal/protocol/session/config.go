package session

import (
	"errors"
	"fmt"
	"net/netip"
	"time"
)

// BackoffConfig defines retransmission timing.
type BackoffConfig struct {
	AckTimeout      time.Duration
	AckRandomFactor float64
	MaxRetransmit   int
}

// CorrelationMode selects how inbound datagrams are matched to the request.
type CorrelationMode string

const (
	CorrelationAny   CorrelationMode = "any"
	CorrelationToken CorrelationMode = "token"
)

// Config defines the exchange defaults for one configured peer.
type Config struct {
	Peer         netip.AddrPort
	LocalAddr    string
	BufferSize   int
	PollInterval time.Duration
	Correlation  CorrelationMode
	Backoff      BackoffConfig
}

const (
	DefaultPort       = 5683
	DefaultBufferSize = 2048
)

// DefaultConfig returns RFC 7252 transmission parameters.
func DefaultConfig() Config {
	return Config{
		LocalAddr:    ":0",
		BufferSize:   DefaultBufferSize,
		PollInterval: time.Millisecond,
		Correlation:  CorrelationAny,
		Backoff: BackoffConfig{
			AckTimeout:      2 * time.Second,
			AckRandomFactor: 1.5,
			MaxRetransmit:   4,
		},
	}
}

// WithDefaults fills zero-valued fields from DefaultConfig.
func (c Config) WithDefaults() Config {
	def := DefaultConfig()
	if c.LocalAddr == "" {
		c.LocalAddr = def.LocalAddr
	}
	if c.BufferSize <= 0 {
		c.BufferSize = def.BufferSize
	}
	if c.PollInterval <= 0 {
		c.PollInterval = def.PollInterval
	}
	if c.Correlation == "" {
		c.Correlation = def.Correlation
	}
	if c.Backoff.AckTimeout <= 0 {
		c.Backoff.AckTimeout = def.Backoff.AckTimeout
	}
	if c.Backoff.AckRandomFactor < 1.0 {
		c.Backoff.AckRandomFactor = def.Backoff.AckRandomFactor
	}
	if c.Backoff.MaxRetransmit <= 0 {
		c.Backoff.MaxRetransmit = def.Backoff.MaxRetransmit
	}
	return c
}

var ErrPeerRequired = errors.New("session: peer address required")

// Validate checks fields WithDefaults cannot repair.
func (c Config) Validate() error {
	if !c.Peer.IsValid() {
		return ErrPeerRequired
	}
	switch c.Correlation {
	case CorrelationAny, CorrelationToken:
	default:
		return fmt.Errorf("session: unknown correlation mode %q", c.Correlation)
	}
	if c.BufferSize < 4 {
		return fmt.Errorf("session: buffer size %d too small", c.BufferSize)
	}
	return nil
}
