package main

import (
	"net/netip"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/danmuck/edgecoap/internal/protocol"
	"github.com/danmuck/edgecoap/internal/protocol/session"
	"github.com/danmuck/edgecoap/internal/testutil/testlog"
)

func TestLoadRuntimeConfigDefaultsAndOverrides(t *testing.T) {
	testlog.Start(t)
	cfg, err := loadRuntimeConfig("ex.config.toml")
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Name != "coapclient.local" {
		t.Fatalf("unexpected name: %q", cfg.Name)
	}
	if cfg.Interval != 5*time.Second {
		t.Fatalf("unexpected interval: %v", cfg.Interval)
	}
	if cfg.AdminAddr != "127.0.0.1:9200" {
		t.Fatalf("unexpected admin addr: %q", cfg.AdminAddr)
	}
	if cfg.Session.Peer != netip.MustParseAddrPort("127.0.0.1:5683") {
		t.Fatalf("unexpected peer: %v", cfg.Session.Peer)
	}
	if cfg.Session.Correlation != session.CorrelationToken {
		t.Fatalf("unexpected correlation: %q", cfg.Session.Correlation)
	}
	if cfg.Session.Backoff.AckTimeout != time.Second {
		t.Fatalf("unexpected ack timeout: %v", cfg.Session.Backoff.AckTimeout)
	}
	if cfg.Session.Backoff.MaxRetransmit != 3 {
		t.Fatalf("unexpected max retransmit: %d", cfg.Session.Backoff.MaxRetransmit)
	}
	if cfg.Session.Backoff.AckRandomFactor != 1.5 {
		t.Fatalf("unexpected random factor: %v", cfg.Session.Backoff.AckRandomFactor)
	}
	if cfg.Request.Method != protocol.PUT || cfg.Request.Path != "/example_data" {
		t.Fatalf("unexpected request: %+v", cfg.Request)
	}
	if string(cfg.Request.Payload) != "1" || cfg.Request.ContentFormat != protocol.TextPlain {
		t.Fatalf("unexpected request body: %+v", cfg.Request)
	}
}

func TestLoadRuntimeConfigMissingFileUsesDefaults(t *testing.T) {
	testlog.Start(t)
	cfg, err := loadRuntimeConfig(filepath.Join(t.TempDir(), "absent.toml"))
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Name != "coapclient" || cfg.Interval != time.Second {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.Request.Method != protocol.GET || cfg.Request.Path != "/.well-known/core" {
		t.Fatalf("unexpected default request: %+v", cfg.Request)
	}
	if cfg.Session.Backoff.MaxRetransmit != 4 {
		t.Fatalf("unexpected default retransmit: %d", cfg.Session.Backoff.MaxRetransmit)
	}
}

func TestLoadRuntimeConfigEnvWinsOverFile(t *testing.T) {
	testlog.Start(t)
	t.Setenv("EDGECOAP_CLIENT_PEER", "198.51.100.4:5683")
	cfg, err := loadRuntimeConfig("ex.config.toml")
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Session.Peer.String() != "198.51.100.4:5683" {
		t.Fatalf("unexpected peer: %v", cfg.Session.Peer)
	}
}

func TestLoadRuntimeConfigRejectsBadDuration(t *testing.T) {
	testlog.Start(t)
	path := filepath.Join(t.TempDir(), "bad.toml")
	if err := os.WriteFile(path, []byte("interval = \"often\"\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := loadRuntimeConfig(path); err == nil {
		t.Fatalf("expected interval parse error")
	}
}
