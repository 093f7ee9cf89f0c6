package main

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/danmuck/edgecoap/internal/config"
	"github.com/danmuck/edgecoap/internal/protocol/session"
	"github.com/rs/zerolog/log"
)

type runtimeConfig struct {
	Name        string
	AdminAddr   string
	AdminToken  string
	CorsOrigins []string
	Interval    time.Duration
	Session     session.Config
	Request     config.RequestSpec
}

// loadRuntimeConfig overlays the keys present in path onto the defaults,
// then applies EDGECOAP_CLIENT_* overrides. A missing file runs on defaults.
func loadRuntimeConfig(path string) (runtimeConfig, error) {
	file := config.DefaultClientConfig()

	var raw config.ClientConfig
	meta, err := toml.DecodeFile(path, &raw)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		log.Warn().Str("path", path).Msg("client config not found, using defaults")
	case err != nil:
		return runtimeConfig{}, fmt.Errorf("load client config: %w", err)
	default:
		overlay(&file, raw, meta)
		for _, key := range meta.Undecoded() {
			log.Warn().Str("key", key.String()).Msg("ignoring unknown client config key")
		}
	}

	if err := config.ApplyClientEnv(&file); err != nil {
		return runtimeConfig{}, err
	}

	sess, err := config.ClientSession(file)
	if err != nil {
		return runtimeConfig{}, err
	}
	req, err := config.ClientRequest(file.Request)
	if err != nil {
		return runtimeConfig{}, err
	}
	interval, err := file.IntervalDuration()
	if err != nil {
		return runtimeConfig{}, err
	}
	return runtimeConfig{
		Name:        file.Name,
		AdminAddr:   file.AdminAddr,
		AdminToken:  file.AdminToken,
		CorsOrigins: file.CorsOrigins,
		Interval:    interval,
		Session:     sess,
		Request:     req,
	}, nil
}

func overlay(cfg *config.ClientConfig, raw config.ClientConfig, meta toml.MetaData) {
	set := func(dst *string, src string, key ...string) {
		if meta.IsDefined(key...) {
			*dst = strings.TrimSpace(src)
		}
	}
	set(&cfg.Name, raw.Name, "name")
	set(&cfg.Peer, raw.Peer, "peer")
	set(&cfg.LocalAddr, raw.LocalAddr, "local_addr")
	set(&cfg.Interval, raw.Interval, "interval")
	set(&cfg.Correlation, raw.Correlation, "correlation")
	set(&cfg.AdminAddr, raw.AdminAddr, "admin_addr")
	set(&cfg.AdminToken, raw.AdminToken, "admin_token")
	if meta.IsDefined("cors_origins") {
		cfg.CorsOrigins = raw.CorsOrigins
	}

	set(&cfg.Request.Method, raw.Request.Method, "request", "method")
	set(&cfg.Request.Path, raw.Request.Path, "request", "path")
	set(&cfg.Request.ContentFormat, raw.Request.ContentFormat, "request", "content_format")
	if meta.IsDefined("request", "payload") {
		cfg.Request.Payload = raw.Request.Payload
	}

	set(&cfg.Transmission.AckTimeout, raw.Transmission.AckTimeout, "transmission", "ack_timeout")
	set(&cfg.Transmission.PollInterval, raw.Transmission.PollInterval, "transmission", "poll_interval")
	if meta.IsDefined("transmission", "ack_random_factor") {
		cfg.Transmission.AckRandomFactor = raw.Transmission.AckRandomFactor
	}
	if meta.IsDefined("transmission", "max_retransmit") {
		cfg.Transmission.MaxRetransmit = raw.Transmission.MaxRetransmit
	}
}
