package config

import (
	"fmt"
	"os"
	"strings"
)

func Template(kind string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "client":
		return clientTemplate, nil
	case "server":
		return serverTemplate, nil
	default:
		return "", fmt.Errorf("unknown config kind: %s", kind)
	}
}

func WriteTemplate(path, kind string, overwrite bool) error {
	template, err := Template(kind)
	if err != nil {
		return err
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(template), 0o600)
}

// Validate loads path as the given kind.
func Validate(path, kind string) error {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "client":
		_, err := LoadClientConfig(path)
		return err
	case "server":
		_, err := LoadServerConfig(path)
		return err
	default:
		return fmt.Errorf("unknown config kind: %s", kind)
	}
}

const clientTemplate = `name = "coapclient"
peer = "127.0.0.1:5683"
local_addr = ":0"
interval = "1s"
correlation = "any"
admin_addr = ":9200"
cors_origins = ["http://localhost:3000"]

[request]
method = "GET"
path = "/example_data"
payload = ""
content_format = "none"

[transmission]
ack_timeout = "2s"
ack_random_factor = 1.5
max_retransmit = 4
poll_interval = "1ms"
`

const serverTemplate = `name = "coapserver"
addr = ":5683"
buffer_size = 2048
example_data = "0"
admin_addr = ":9201"
cors_origins = ["http://localhost:3000"]
`
