package server

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net"
	"net/netip"
	"sync"
	"sync/atomic"
	"time"

	"github.com/danmuck/edgecoap/internal/observability"
	"github.com/danmuck/edgecoap/internal/protocol"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	DefaultAddr        = ":5683"
	DefaultBufferSize  = 2048
	DefaultScratchSize = 1536
)

type Config struct {
	Addr        string
	BufferSize  int
	ScratchSize int
}

func DefaultConfig() Config {
	return Config{
		Addr:        DefaultAddr,
		BufferSize:  DefaultBufferSize,
		ScratchSize: DefaultScratchSize,
	}
}

func (c Config) WithDefaults() Config {
	def := DefaultConfig()
	if c.Addr == "" {
		c.Addr = def.Addr
	}
	if c.BufferSize <= 0 {
		c.BufferSize = def.BufferSize
	}
	if c.ScratchSize <= 0 {
		c.ScratchSize = def.ScratchSize
	}
	return c
}

var ErrServerClosed = errors.New("server: closed")

// Stats counts datagrams seen by a Server.
type Stats struct {
	Received uint64 `json:"received"`
	Replied  uint64 `json:"replied"`
	Dropped  uint64 `json:"dropped"`
}

// Server is a single-socket CoAP responder. Datagrams are handled in
// arrival order on the serving goroutine.
type Server struct {
	cfg    Config
	router *Router
	logger zerolog.Logger

	rx      []byte
	tx      []byte
	scratch []byte

	mu   sync.Mutex
	conn *net.UDPConn

	nextMID atomic.Uint32

	received atomic.Uint64
	replied  atomic.Uint64
	dropped  atomic.Uint64
}

func New(cfg Config, router *Router) *Server {
	cfg = cfg.WithDefaults()
	if router == nil {
		router = NewRouter()
	}
	s := &Server{
		cfg:     cfg,
		router:  router,
		logger:  log.With().Str("component", "coap_server").Logger(),
		rx:      make([]byte, cfg.BufferSize),
		tx:      make([]byte, cfg.BufferSize),
		scratch: make([]byte, cfg.ScratchSize),
	}
	s.nextMID.Store(rand.Uint32())
	return s
}

func (s *Server) Router() *Router {
	return s.router
}

func (s *Server) Stats() Stats {
	return Stats{
		Received: s.received.Load(),
		Replied:  s.replied.Load(),
		Dropped:  s.dropped.Load(),
	}
}

// LocalAddr returns the bound address once serving.
func (s *Server) LocalAddr() netip.AddrPort {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return netip.AddrPort{}
	}
	return s.conn.LocalAddr().(*net.UDPAddr).AddrPort()
}

// ListenAndServe binds cfg.Addr and serves until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context) error {
	laddr, err := net.ResolveUDPAddr("udp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", s.cfg.Addr, err)
	}
	conn, err := net.ListenUDP("udp", laddr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.cfg.Addr, err)
	}
	return s.Serve(ctx, conn)
}

// Serve takes ownership of conn and closes it when ctx is done. It returns
// nil on a context shutdown.
func (s *Server) Serve(ctx context.Context, conn *net.UDPConn) error {
	s.mu.Lock()
	if s.conn != nil {
		s.mu.Unlock()
		return errors.New("server: already serving")
	}
	s.conn = conn
	s.mu.Unlock()

	stop := context.AfterFunc(ctx, func() {
		_ = conn.Close()
	})
	defer func() {
		stop()
		_ = conn.Close()
		s.mu.Lock()
		s.conn = nil
		s.mu.Unlock()
	}()

	s.logger.Info().Str("addr", conn.LocalAddr().String()).Msg("coap server listening")
	for {
		n, src, err := conn.ReadFromUDPAddrPort(s.rx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				return ErrServerClosed
			}
			return fmt.Errorf("read: %w", err)
		}
		s.received.Add(1)

		out, ok := s.HandleDatagram(s.rx[:n], s.tx, src)
		if !ok {
			s.dropped.Add(1)
			continue
		}
		if _, err := conn.WriteToUDPAddrPort(out, src); err != nil {
			s.logger.Warn().Err(err).Str("src", src.String()).Msg("reply write failed")
			continue
		}
		s.replied.Add(1)
	}
}

// HandleDatagram decodes in, dispatches it and encodes the reply into out.
// ok is false when nothing should be sent back.
func (s *Server) HandleDatagram(in, out []byte, src netip.AddrPort) ([]byte, bool) {
	start := time.Now()
	logger := s.logger.With().
		Str("request_id", uuid.NewString()).
		Str("src", src.String()).
		Logger()

	var req protocol.Packet
	if err := protocol.ParseInto(&req, in); err != nil {
		logger.Debug().Err(err).Int("bytes", len(in)).Msg("dropped malformed datagram")
		return nil, false
	}

	if req.Header.Code == protocol.Empty {
		if req.Header.Type != protocol.Confirmable {
			return nil, false
		}
		// Empty CON is a ping: answer with RST.
		n, err := protocol.Build(&protocol.Packet{Header: protocol.Header{
			Version:   protocol.Version,
			Type:      protocol.Reset,
			MessageID: req.Header.MessageID,
		}}, out)
		if err != nil {
			logger.Warn().Err(err).Msg("reset encode failed")
			return nil, false
		}
		logger.Debug().Uint16("mid", req.Header.MessageID).Msg("ping answered with reset")
		return out[:n], true
	}
	if !req.Header.Code.IsRequest() {
		logger.Debug().Str("code", req.Header.Code.String()).Msg("ignored non-request message")
		return nil, false
	}
	switch req.Header.Type {
	case protocol.Acknowledgement, protocol.Reset:
		return nil, false
	}

	var resp protocol.Packet
	if err := s.router.Dispatch(s.scratch, &req, &resp); err != nil {
		logger.Warn().Err(err).Str("path", req.Path()).Msg("handler failed")
		if err := protocol.MakeResponse(s.scratch, &resp, nil, req.Header.MessageID, req.Token, protocol.InternalServerError, protocol.ContentFormatNone); err != nil {
			return nil, false
		}
	}
	if req.Header.Type == protocol.NonConfirmable {
		resp.Header.Type = protocol.NonConfirmable
		resp.Header.MessageID = s.freshMessageID(req.Header.MessageID)
	}

	n, err := protocol.Build(&resp, out)
	if err != nil {
		logger.Warn().Err(err).Str("path", req.Path()).Msg("response encode failed")
		return nil, false
	}

	observability.RecordServerRequest(methodLabel(req.Header.Code), resp.Header.Code.Dotted(), time.Since(start))
	logger.Info().
		Str("method", methodLabel(req.Header.Code)).
		Str("path", req.Path()).
		Uint16("mid", req.Header.MessageID).
		Str("code", resp.Header.Code.String()).
		Msg("coap request")
	return out[:n], true
}

// freshMessageID returns the next message id for a non-confirmable reply,
// skipping the request's own id so peers that de-duplicate by id keep it.
func (s *Server) freshMessageID(reqID uint16) uint16 {
	id := uint16(s.nextMID.Add(1))
	if id == reqID {
		id = uint16(s.nextMID.Add(1))
	}
	return id
}

func methodLabel(c protocol.Code) string {
	switch c {
	case protocol.GET:
		return "GET"
	case protocol.POST:
		return "POST"
	case protocol.PUT:
		return "PUT"
	case protocol.DELETE:
		return "DELETE"
	default:
		return c.Dotted()
	}
}
