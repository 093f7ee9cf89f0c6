package server

import (
	"slices"
	"strings"
	"sync"

	"github.com/danmuck/edgecoap/internal/protocol"
)

// HandlerFunc fills resp for req. scratch is owned by the handler for the
// duration of the call and is released after resp is encoded.
type HandlerFunc func(scratch []byte, req, resp *protocol.Packet, msgID uint16) error

// Endpoint binds a method and an exact Uri-Path to a handler. Endpoints with
// an empty CoreAttr are served but left out of discovery.
type Endpoint struct {
	Method   protocol.Code
	Path     []string
	Handler  HandlerFunc
	CoreAttr string
}

// DiscoveryMaxLen caps the link-format listing.
const DiscoveryMaxLen = 1499

type Router struct {
	endpoints []Endpoint

	discoveryOnce sync.Once
	discovery     []byte
}

func NewRouter(endpoints ...Endpoint) *Router {
	r := &Router{}
	for _, ep := range endpoints {
		r.Register(ep)
	}
	return r
}

// Register appends ep. Dispatch order is registration order.
func (r *Router) Register(ep Endpoint) {
	r.endpoints = append(r.endpoints, ep)
}

func (r *Router) Endpoints() []Endpoint {
	return r.endpoints
}

// Dispatch runs the first endpoint whose path and method both match. A path
// match under another method answers 4.05, no path match answers 4.04; both
// echo the request token.
func (r *Router) Dispatch(scratch []byte, req, resp *protocol.Packet) error {
	path := req.URIPath()
	msgID := req.Header.MessageID
	pathMatched := false
	for _, ep := range r.endpoints {
		if !slices.Equal(ep.Path, path) {
			continue
		}
		if ep.Method != req.Header.Code {
			pathMatched = true
			continue
		}
		return ep.Handler(scratch, req, resp, msgID)
	}

	code := protocol.NotFound
	if pathMatched {
		code = protocol.MethodNotAllowed
	}
	return protocol.MakeResponse(scratch, resp, nil, msgID, req.Token, code, protocol.ContentFormatNone)
}

// Discovery returns the link-format listing of every endpoint with a
// CoreAttr. It is assembled on first use; later registrations are not
// reflected.
func (r *Router) Discovery() []byte {
	r.discoveryOnce.Do(func() {
		r.discovery = buildDiscovery(r.endpoints)
	})
	return r.discovery
}

func buildDiscovery(endpoints []Endpoint) []byte {
	var b strings.Builder
	for _, ep := range endpoints {
		if ep.CoreAttr == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteByte('<')
		for _, segment := range ep.Path {
			b.WriteByte('/')
			b.WriteString(segment)
		}
		b.WriteString(">;")
		b.WriteString(ep.CoreAttr)
	}
	out := b.String()
	if len(out) > DiscoveryMaxLen {
		out = out[:DiscoveryMaxLen]
	}
	return []byte(out)
}

// DiscoveryEndpoint serves r's listing at GET /.well-known/core.
func DiscoveryEndpoint(r *Router) Endpoint {
	return Endpoint{
		Method:   protocol.GET,
		Path:     []string{".well-known", "core"},
		CoreAttr: "ct=40",
		Handler: func(scratch []byte, req, resp *protocol.Packet, msgID uint16) error {
			return protocol.MakeResponse(scratch, resp, r.Discovery(), msgID, req.Token, protocol.Content, protocol.AppLinkFormat)
		},
	}
}
