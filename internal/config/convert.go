package config

import (
	"fmt"
	"net"
	"net/netip"
	"strconv"
	"strings"
	"time"

	"github.com/danmuck/edgecoap/internal/protocol"
	"github.com/danmuck/edgecoap/internal/protocol/session"
	"github.com/danmuck/edgecoap/internal/server"
)

// RequestSpec is the resolved request a client sends every tick.
type RequestSpec struct {
	Method        protocol.Code
	Path          string
	Payload       []byte
	ContentFormat protocol.ContentFormat
}

// ClientSession converts the file schema into engine settings.
func ClientSession(cfg ClientConfig) (session.Config, error) {
	out := session.DefaultConfig()
	peer, err := ResolvePeer(cfg.Peer)
	if err != nil {
		return session.Config{}, err
	}
	out.Peer = peer
	if v := strings.TrimSpace(cfg.LocalAddr); v != "" {
		out.LocalAddr = v
	}
	if v := strings.TrimSpace(cfg.Correlation); v != "" {
		out.Correlation = session.CorrelationMode(strings.ToLower(v))
	}

	tx := cfg.Transmission
	if tx.AckTimeout != "" {
		d, err := parseDuration("ack_timeout", tx.AckTimeout)
		if err != nil {
			return session.Config{}, err
		}
		out.Backoff.AckTimeout = d
	}
	if tx.PollInterval != "" {
		d, err := parseDuration("poll_interval", tx.PollInterval)
		if err != nil {
			return session.Config{}, err
		}
		out.PollInterval = d
	}
	if tx.AckRandomFactor != 0 {
		if tx.AckRandomFactor < 1.0 {
			return session.Config{}, fmt.Errorf("ack_random_factor %.2f below 1.0", tx.AckRandomFactor)
		}
		out.Backoff.AckRandomFactor = tx.AckRandomFactor
	}
	if tx.MaxRetransmit != 0 {
		if tx.MaxRetransmit < 1 {
			return session.Config{}, fmt.Errorf("max_retransmit %d below 1", tx.MaxRetransmit)
		}
		out.Backoff.MaxRetransmit = tx.MaxRetransmit
	}

	out = out.WithDefaults()
	if err := out.Validate(); err != nil {
		return session.Config{}, err
	}
	return out, nil
}

// ResolvePeer accepts an address literal or host:port, defaulting the port
// to 5683 when omitted.
func ResolvePeer(raw string) (netip.AddrPort, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return netip.AddrPort{}, session.ErrPeerRequired
	}
	if ap, err := netip.ParseAddrPort(raw); err == nil {
		return ap, nil
	}
	if addr, err := netip.ParseAddr(raw); err == nil {
		return netip.AddrPortFrom(addr, session.DefaultPort), nil
	}
	if _, _, err := net.SplitHostPort(raw); err != nil {
		raw = net.JoinHostPort(raw, strconv.Itoa(session.DefaultPort))
	}
	udpAddr, err := net.ResolveUDPAddr("udp", raw)
	if err != nil {
		return netip.AddrPort{}, fmt.Errorf("resolve peer %q: %w", raw, err)
	}
	ap := udpAddr.AddrPort()
	return netip.AddrPortFrom(ap.Addr().Unmap(), ap.Port()), nil
}

func ClientRequest(cfg RequestConfig) (RequestSpec, error) {
	method, err := ParseMethod(cfg.Method)
	if err != nil {
		return RequestSpec{}, err
	}
	ct, err := ParseContentFormat(cfg.ContentFormat)
	if err != nil {
		return RequestSpec{}, err
	}
	spec := RequestSpec{
		Method:        method,
		Path:          cfg.Path,
		ContentFormat: ct,
	}
	if cfg.Payload != "" {
		spec.Payload = []byte(cfg.Payload)
	}
	return spec, nil
}

func ParseMethod(raw string) (protocol.Code, error) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "", "GET":
		return protocol.GET, nil
	case "POST":
		return protocol.POST, nil
	case "PUT":
		return protocol.PUT, nil
	case "DELETE":
		return protocol.DELETE, nil
	default:
		return 0, fmt.Errorf("unknown method %q", raw)
	}
}

var contentFormatNames = map[string]protocol.ContentFormat{
	"none":                     protocol.ContentFormatNone,
	"text/plain":               protocol.TextPlain,
	"text":                     protocol.TextPlain,
	"application/link-format":  protocol.AppLinkFormat,
	"application/xml":          protocol.AppXML,
	"application/octet-stream": protocol.AppOctets,
	"application/exi":          protocol.AppExi,
	"application/json":         protocol.AppJSON,
	"application/cbor":         protocol.AppCBOR,
}

// ParseContentFormat accepts a media type name or a numeric identifier.
func ParseContentFormat(raw string) (protocol.ContentFormat, error) {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if raw == "" {
		return protocol.ContentFormatNone, nil
	}
	if ct, ok := contentFormatNames[raw]; ok {
		return ct, nil
	}
	n, err := strconv.ParseUint(raw, 10, 16)
	if err != nil {
		return 0, fmt.Errorf("unknown content_format %q", raw)
	}
	return protocol.ContentFormat(n), nil
}

func ServerRuntime(cfg ServerConfig) server.Config {
	return server.Config{
		Addr:       cfg.Addr,
		BufferSize: cfg.BufferSize,
	}.WithDefaults()
}

// IntervalDuration returns the driver tick period, one second when unset.
func (c ClientConfig) IntervalDuration() (time.Duration, error) {
	if strings.TrimSpace(c.Interval) == "" {
		return time.Second, nil
	}
	return parseDuration("interval", c.Interval)
}

func parseDuration(key, raw string) (time.Duration, error) {
	d, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive", key)
	}
	return d, nil
}
