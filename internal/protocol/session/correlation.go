package session

import (
	"bytes"

	"github.com/danmuck/edgecoap/internal/protocol"
)

// Correlator decides whether a decoded datagram answers the outstanding
// request. Datagrams that do not match are dropped and the wait continues.
type Correlator interface {
	Match(req, resp *protocol.Packet) bool
}

// CorrelatorFunc adapts a function to Correlator.
type CorrelatorFunc func(req, resp *protocol.Packet) bool

func (f CorrelatorFunc) Match(req, resp *protocol.Packet) bool {
	return f(req, resp)
}

// AcceptAny treats any datagram received while waiting as the response.
// Token and message id are not compared.
type AcceptAny struct{}

func (AcceptAny) Match(_, _ *protocol.Packet) bool {
	return true
}

// MatchToken requires the request token to be echoed. Acknowledgement and
// Reset messages must also carry the request's message id.
type MatchToken struct{}

func (MatchToken) Match(req, resp *protocol.Packet) bool {
	if !bytes.Equal(req.Token, resp.Token) {
		return false
	}
	switch resp.Header.Type {
	case protocol.Acknowledgement, protocol.Reset:
		return resp.Header.MessageID == req.Header.MessageID
	}
	return true
}

// NewCorrelator maps a configured mode onto its strategy.
func NewCorrelator(mode CorrelationMode) Correlator {
	if mode == CorrelationToken {
		return MatchToken{}
	}
	return AcceptAny{}
}
