// Package resources holds the resources served by coapserver.
package resources

import (
	"sync"

	"github.com/danmuck/edgecoap/internal/protocol"
	"github.com/danmuck/edgecoap/internal/server"
)

// ExampleDataSize is the capacity of the example_data resource.
const ExampleDataSize = 256

var ExampleDataPath = []string{"example_data"}

// ExampleData is a fixed-size text value readable with GET and replaced
// with PUT. Oversized writes are truncated to ExampleDataSize.
type ExampleData struct {
	mu   sync.Mutex
	data [ExampleDataSize]byte
	n    int
}

func NewExampleData(initial string) *ExampleData {
	d := &ExampleData{}
	d.Set([]byte(initial))
	return d
}

// Get copies the current value into dst and returns the filled prefix.
func (d *ExampleData) Get(dst []byte) []byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := copy(dst, d.data[:d.n])
	return dst[:n]
}

// Set replaces the value and reports how many bytes were kept.
func (d *ExampleData) Set(b []byte) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.data = [ExampleDataSize]byte{}
	d.n = copy(d.data[:], b)
	return d.n
}

func (d *ExampleData) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.n
}

// Endpoints returns the GET and PUT endpoints for example_data. Only GET is
// advertised in discovery.
func (d *ExampleData) Endpoints() []server.Endpoint {
	return []server.Endpoint{
		{
			Method:   protocol.GET,
			Path:     ExampleDataPath,
			Handler:  d.handleGet,
			CoreAttr: "ct=0",
		},
		{
			Method:  protocol.PUT,
			Path:    ExampleDataPath,
			Handler: d.handlePut,
		},
	}
}

func (d *ExampleData) handleGet(scratch []byte, req, resp *protocol.Packet, msgID uint16) error {
	// The first two scratch bytes hold the Content-Format value.
	if len(scratch) < 2 {
		return protocol.ErrBufferTooSmall
	}
	payload := d.Get(scratch[2:])
	return protocol.MakeResponse(scratch[:2], resp, payload, msgID, req.Token, protocol.Content, protocol.TextPlain)
}

func (d *ExampleData) handlePut(scratch []byte, req, resp *protocol.Packet, msgID uint16) error {
	if len(req.Payload) == 0 {
		return protocol.MakeResponse(scratch, resp, nil, msgID, req.Token, protocol.BadRequest, protocol.TextPlain)
	}
	d.Set(req.Payload)
	return protocol.MakeResponse(scratch, resp, nil, msgID, req.Token, protocol.Changed, protocol.TextPlain)
}
