package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/danmuck/edgecoap/internal/admin"
	"github.com/danmuck/edgecoap/internal/config"
	"github.com/danmuck/edgecoap/internal/observability"
	"github.com/danmuck/edgecoap/internal/protocol/session"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

func main() {
	configPath := flag.String("config", "cmd/coapclient/config.toml", "client config path")
	flag.Parse()

	observability.InitLogger("coapclient")
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("no .env file found, using environment variables")
	}

	cfg, err := loadRuntimeConfig(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load client config")
	}
	log.Info().
		Str("path", *configPath).
		Str("peer", cfg.Session.Peer.String()).
		Str("correlation", string(cfg.Session.Correlation)).
		Dur("interval", cfg.Interval).
		Dur("max_transmit_span", session.MaxTransmitSpan(cfg.Session.Backoff)).
		Msg("loaded client config")

	transport := session.NewUDPTransport(cfg.Session.LocalAddr)
	client, err := session.NewClient(cfg.Session, transport)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create client")
	}

	d := &driver{client: client, request: cfg.Request}
	adminSrv := admin.New(cfg.Name, cfg.AdminAddr, cfg.CorsOrigins, d.status, d.ready, admin.WithToken(cfg.AdminToken))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return d.run(ctx, cfg.Interval)
	})
	g.Go(func() error {
		return adminSrv.ListenAndServe(ctx)
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("coapclient terminated with error")
	} else {
		log.Info().Msg("coapclient stopped")
	}
	_ = transport.Close()
}

// driver calls RunOnce once per interval and keeps a snapshot for /status.
type driver struct {
	client  *session.Client
	request config.RequestSpec

	mu       sync.Mutex
	snapshot status
}

type status struct {
	Ticks     int       `json:"ticks"`
	Opened    bool      `json:"opened"`
	State     string    `json:"state"`
	Attempts  int       `json:"attempts"`
	Code      string    `json:"code,omitempty"`
	Payload   string    `json:"payload,omitempty"`
	LastError string    `json:"last_error,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (d *driver) run(ctx context.Context, interval time.Duration) error {
	if err := d.client.NewRequest(d.request.Method, d.request.Path, d.request.Payload, d.request.ContentFormat); err != nil {
		return err
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		res, err := d.client.RunOnce(ctx)
		if err != nil && ctx.Err() != nil {
			return nil
		}
		d.record(res, err)
		switch {
		case res.Opened:
		case err == nil, res.Acknowledged:
			log.Info().
				Str("code", res.Response.Code.String()).
				Int("attempts", res.Attempts).
				Bytes("payload", res.Response.Payload).
				Msg("response")
		case errors.Is(err, session.ErrGiveUp):
			log.Warn().Int("attempts", res.Attempts).Msg("no response")
		default:
			log.Error().Err(err).Msg("exchange failed")
		}

		// A fresh message id and token per exchange.
		if res.Opened {
			continue
		}
		if err := d.client.NewRequest(d.request.Method, d.request.Path, d.request.Payload, d.request.ContentFormat); err != nil {
			return err
		}
	}
}

func (d *driver) record(res session.Result, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.snapshot.Ticks++
	d.snapshot.Opened = d.snapshot.Opened || res.Opened
	d.snapshot.State = d.client.State().String()
	d.snapshot.Attempts = res.Attempts
	d.snapshot.Code = ""
	d.snapshot.Payload = ""
	if res.Acknowledged {
		d.snapshot.Code = res.Response.Code.String()
		d.snapshot.Payload = string(res.Response.Payload)
	}
	d.snapshot.LastError = ""
	if err != nil {
		d.snapshot.LastError = err.Error()
	}
	d.snapshot.UpdatedAt = time.Now()
}

func (d *driver) status() any {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.snapshot
}

func (d *driver) ready() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.snapshot.Opened
}
