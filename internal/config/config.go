package config

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/pelletier/go-toml/v2"
)

const (
	ClientEnvPrefix = "EDGECOAP_CLIENT_"
	ServerEnvPrefix = "EDGECOAP_SERVER_"
)

// ClientConfig is the coapclient file schema.
type ClientConfig struct {
	Name         string             `toml:"name" env:"NAME"`
	Peer         string             `toml:"peer" env:"PEER"`
	LocalAddr    string             `toml:"local_addr" env:"LOCAL_ADDR"`
	Interval     string             `toml:"interval" env:"INTERVAL"`
	Correlation  string             `toml:"correlation" env:"CORRELATION"`
	AdminAddr    string             `toml:"admin_addr" env:"ADMIN_ADDR"`
	AdminToken   string             `toml:"admin_token" env:"ADMIN_TOKEN"`
	CorsOrigins  []string           `toml:"cors_origins" env:"CORS_ORIGINS" envSeparator:","`
	Request      RequestConfig      `toml:"request" envPrefix:"REQUEST_"`
	Transmission TransmissionConfig `toml:"transmission" envPrefix:"TX_"`
}

type RequestConfig struct {
	Method        string `toml:"method" env:"METHOD"`
	Path          string `toml:"path" env:"PATH"`
	Payload       string `toml:"payload" env:"PAYLOAD"`
	ContentFormat string `toml:"content_format" env:"CONTENT_FORMAT"`
}

type TransmissionConfig struct {
	AckTimeout      string  `toml:"ack_timeout" env:"ACK_TIMEOUT"`
	AckRandomFactor float64 `toml:"ack_random_factor" env:"ACK_RANDOM_FACTOR"`
	MaxRetransmit   int     `toml:"max_retransmit" env:"MAX_RETRANSMIT"`
	PollInterval    string  `toml:"poll_interval" env:"POLL_INTERVAL"`
}

// ServerConfig is the coapserver file schema.
type ServerConfig struct {
	Name        string   `toml:"name" env:"NAME"`
	Addr        string   `toml:"addr" env:"ADDR"`
	BufferSize  int      `toml:"buffer_size" env:"BUFFER_SIZE"`
	ExampleData string   `toml:"example_data" env:"EXAMPLE_DATA"`
	AdminAddr   string   `toml:"admin_addr" env:"ADMIN_ADDR"`
	AdminToken  string   `toml:"admin_token" env:"ADMIN_TOKEN"`
	CorsOrigins []string `toml:"cors_origins" env:"CORS_ORIGINS" envSeparator:","`
}

func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		Name:        "coapclient",
		Peer:        "127.0.0.1:5683",
		LocalAddr:   ":0",
		Interval:    "1s",
		Correlation: "any",
		AdminAddr:   ":9200",
		Request: RequestConfig{
			Method:        "GET",
			Path:          "/.well-known/core",
			ContentFormat: "none",
		},
		Transmission: TransmissionConfig{
			AckTimeout:      "2s",
			AckRandomFactor: 1.5,
			MaxRetransmit:   4,
			PollInterval:    "1ms",
		},
	}
}

func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Name:        "coapserver",
		Addr:        ":5683",
		BufferSize:  2048,
		ExampleData: "0",
		AdminAddr:   ":9201",
	}
}

// LoadClientConfig decodes path over the defaults, applies environment
// overrides and validates the result. Unknown keys are rejected.
func LoadClientConfig(path string) (ClientConfig, error) {
	cfg := DefaultClientConfig()
	if err := loadToml(path, &cfg); err != nil {
		return ClientConfig{}, err
	}
	if err := ApplyClientEnv(&cfg); err != nil {
		return ClientConfig{}, err
	}
	if err := ValidateClientConfig(cfg); err != nil {
		return ClientConfig{}, err
	}
	return cfg, nil
}

func LoadServerConfig(path string) (ServerConfig, error) {
	cfg := DefaultServerConfig()
	if err := loadToml(path, &cfg); err != nil {
		return ServerConfig{}, err
	}
	if err := ApplyServerEnv(&cfg); err != nil {
		return ServerConfig{}, err
	}
	if err := ValidateServerConfig(cfg); err != nil {
		return ServerConfig{}, err
	}
	return cfg, nil
}

func loadToml(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config load failed (%s): %w", path, err)
	}
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	return nil
}

// ApplyClientEnv overrides fields from EDGECOAP_CLIENT_* variables that are
// set; unset variables leave the field alone.
func ApplyClientEnv(cfg *ClientConfig) error {
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: ClientEnvPrefix}); err != nil {
		return fmt.Errorf("client env overrides: %w", err)
	}
	return nil
}

func ApplyServerEnv(cfg *ServerConfig) error {
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: ServerEnvPrefix}); err != nil {
		return fmt.Errorf("server env overrides: %w", err)
	}
	return nil
}

func ValidateClientConfig(cfg ClientConfig) error {
	if strings.TrimSpace(cfg.Name) == "" {
		return fmt.Errorf("client config missing name")
	}
	if strings.TrimSpace(cfg.Peer) == "" {
		return fmt.Errorf("client config missing peer")
	}
	if _, err := ClientSession(cfg); err != nil {
		return fmt.Errorf("client config invalid: %w", err)
	}
	if _, err := ClientRequest(cfg.Request); err != nil {
		return fmt.Errorf("client request invalid: %w", err)
	}
	if _, err := cfg.IntervalDuration(); err != nil {
		return err
	}
	return nil
}

func ValidateServerConfig(cfg ServerConfig) error {
	if strings.TrimSpace(cfg.Name) == "" {
		return fmt.Errorf("server config missing name")
	}
	if strings.TrimSpace(cfg.Addr) == "" {
		return fmt.Errorf("server config missing addr")
	}
	if cfg.BufferSize < 64 {
		return fmt.Errorf("server buffer_size %d too small", cfg.BufferSize)
	}
	if len(cfg.ExampleData) > 256 {
		return fmt.Errorf("server example_data longer than 256 bytes")
	}
	return nil
}
