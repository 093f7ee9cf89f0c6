package main

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/danmuck/edgecoap/internal/config"
	"github.com/rs/zerolog/log"
)

// loadFileConfig overlays the keys present in path onto the defaults, then
// applies EDGECOAP_SERVER_* overrides and validates.
func loadFileConfig(path string) (config.ServerConfig, error) {
	cfg := config.DefaultServerConfig()

	var raw config.ServerConfig
	meta, err := toml.DecodeFile(path, &raw)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		log.Warn().Str("path", path).Msg("server config not found, using defaults")
	case err != nil:
		return config.ServerConfig{}, fmt.Errorf("load server config: %w", err)
	default:
		if meta.IsDefined("name") {
			cfg.Name = strings.TrimSpace(raw.Name)
		}
		if meta.IsDefined("addr") {
			cfg.Addr = strings.TrimSpace(raw.Addr)
		}
		if meta.IsDefined("buffer_size") {
			cfg.BufferSize = raw.BufferSize
		}
		if meta.IsDefined("example_data") {
			cfg.ExampleData = raw.ExampleData
		}
		if meta.IsDefined("admin_addr") {
			cfg.AdminAddr = strings.TrimSpace(raw.AdminAddr)
		}
		if meta.IsDefined("admin_token") {
			cfg.AdminToken = strings.TrimSpace(raw.AdminToken)
		}
		if meta.IsDefined("cors_origins") {
			cfg.CorsOrigins = raw.CorsOrigins
		}
		for _, key := range meta.Undecoded() {
			log.Warn().Str("key", key.String()).Msg("ignoring unknown server config key")
		}
	}

	if err := config.ApplyServerEnv(&cfg); err != nil {
		return config.ServerConfig{}, err
	}
	if err := config.ValidateServerConfig(cfg); err != nil {
		return config.ServerConfig{}, err
	}
	return cfg, nil
}
