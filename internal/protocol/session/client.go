package session

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/danmuck/edgecoap/internal/observability"
	"github.com/danmuck/edgecoap/internal/protocol"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	ErrNoRequest   = errors.New("session: no request queued")
	ErrGiveUp      = errors.New("session: no response after max retransmissions")
	ErrSocketError = errors.New("session: transport in error state")
)

// State is the exchange state of the last RunOnce.
type State int

const (
	StateIdle State = iota
	StateSent
	StateWaiting
	StateAcked
	StateTimedOut
	StateGaveUp
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSent:
		return "sent"
	case StateWaiting:
		return "waiting"
	case StateAcked:
		return "acked"
	case StateTimedOut:
		return "timed_out"
	case StateGaveUp:
		return "gave_up"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Result reports one RunOnce. Packet is detached from the receive buffer
// and Response borrows from Packet.
type Result struct {
	Opened       bool
	Acknowledged bool
	Attempts     int
	Timeouts     []time.Duration
	Packet       protocol.Packet
	Response     protocol.Response
	Elapsed      time.Duration
}

// Client drives one outstanding request at a time over a single Transport.
// It is not safe for concurrent use.
type Client struct {
	cfg        Config
	transport  Transport
	clock      Clock
	rng        *rand.Rand
	correlator Correlator
	logger     zerolog.Logger
	peer       string

	request    protocol.Packet
	hasRequest bool
	nextID     uint16

	scratch []byte
	tx      []byte
	rx      []byte

	state State
	last  Result
}

type ClientOption func(*Client)

func WithClock(clock Clock) ClientOption {
	return func(c *Client) {
		if clock != nil {
			c.clock = clock
		}
	}
}

// WithRand sets the jitter source. A nil rng disables jitter.
func WithRand(rng *rand.Rand) ClientOption {
	return func(c *Client) {
		c.rng = rng
	}
}

func WithCorrelator(correlator Correlator) ClientOption {
	return func(c *Client) {
		if correlator != nil {
			c.correlator = correlator
		}
	}
}

func WithLogger(logger zerolog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

func NewClient(cfg Config, transport Transport, opts ...ClientOption) (*Client, error) {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if transport == nil {
		return nil, errors.New("session: transport required")
	}
	seed := time.Now().UnixNano()
	c := &Client{
		cfg:        cfg,
		transport:  transport,
		clock:      NewSystemClock(),
		rng:        rand.New(rand.NewSource(seed)),
		correlator: NewCorrelator(cfg.Correlation),
		logger:     log.Logger,
		peer:       cfg.Peer.String(),
		nextID:     uint16(seed),
		scratch:    make([]byte, cfg.BufferSize),
		tx:         make([]byte, cfg.BufferSize),
		rx:         make([]byte, cfg.BufferSize),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With().Str("peer", c.peer).Logger()
	return c, nil
}

func (c *Client) Config() Config {
	return c.cfg
}

func (c *Client) State() State {
	return c.state
}

func (c *Client) LastResult() Result {
	return c.last
}

// SetRequest queues a copy of pkt as the request sent by every later
// RunOnce until replaced.
func (c *Client) SetRequest(pkt *protocol.Packet) {
	c.request = pkt.Detach()
	c.hasRequest = true
}

// NewRequest builds and queues a request with the next message id and a
// random four byte token.
func (c *Client) NewRequest(method protocol.Code, path string, payload []byte, ct protocol.ContentFormat) error {
	var token [4]byte
	c.fillToken(token[:])
	var pkt protocol.Packet
	if err := protocol.MakeRequest(c.scratch, &pkt, path, payload, c.nextID, token[:], method, ct); err != nil {
		return err
	}
	c.nextID++
	c.SetRequest(&pkt)
	return nil
}

func (c *Client) fillToken(b []byte) {
	if c.rng != nil {
		c.rng.Read(b)
		return
	}
	for i := range b {
		b[i] = byte(c.nextID >> (8 * (i % 2)))
	}
}

// RunOnce advances the client by one driver tick. A closed transport is
// opened and nothing is sent. An open transport sends the queued request
// and blocks until a correlated datagram arrives or every transmission has
// timed out. An acknowledged error status returns the populated Result
// together with the classification error from protocol.HandleResponse.
func (c *Client) RunOnce(ctx context.Context) (Result, error) {
	switch c.transport.State() {
	case SocketClosed:
		if err := c.transport.Open(c.cfg.Peer); err != nil {
			c.logger.Warn().Err(err).Msg("transport open failed")
			return Result{}, fmt.Errorf("open transport: %w", err)
		}
		c.logger.Info().Msg("transport opened")
		c.state = StateIdle
		c.last = Result{Opened: true}
		return c.last, nil
	case SocketError:
		if err := c.transport.Close(); err != nil {
			c.logger.Debug().Err(err).Msg("close after socket error")
		}
		c.logger.Warn().Msg("transport in error state; closed for reopen")
		return Result{}, ErrSocketError
	}

	if !c.hasRequest {
		return Result{}, ErrNoRequest
	}
	n, err := protocol.Build(&c.request, c.tx)
	if err != nil {
		return Result{}, fmt.Errorf("build request: %w", err)
	}
	frame := c.tx[:n]

	start := c.clock.Millis()
	res := Result{}
	timer := NewTimer(c.clock)
	c.state = StateIdle

	for attempt := 1; attempt <= c.cfg.Backoff.MaxRetransmit; attempt++ {
		if err := ctx.Err(); err != nil {
			return c.finish(res, start, observability.OutcomeError, err)
		}
		if _, err := c.transport.Send(frame, c.cfg.Peer); err != nil {
			return c.finish(res, start, observability.OutcomeError, fmt.Errorf("send: %w", err))
		}
		c.state = StateSent
		res.Attempts = attempt
		observability.RecordTransmission(c.peer)

		timeout := RetransmitTimeout(c.cfg.Backoff, attempt, c.rng)
		res.Timeouts = append(res.Timeouts, timeout)
		timer.Countdown(timeout)
		c.state = StateWaiting
		c.logger.Debug().
			Int("attempt", attempt).
			Dur("timeout", timeout).
			Uint16("msg_id", c.request.Header.MessageID).
			Msg("request sent")

		pkt, ok, err := c.await(ctx, timer)
		if err != nil {
			return c.finish(res, start, observability.OutcomeError, err)
		}
		if ok {
			c.state = StateAcked
			res.Acknowledged = true
			res.Packet = pkt
			resp, classErr := protocol.HandleResponse(&res.Packet)
			res.Response = resp
			return c.finish(res, start, observability.OutcomeAcked, classErr)
		}
		c.state = StateTimedOut
	}

	c.state = StateGaveUp
	return c.finish(res, start, observability.OutcomeGaveUp, ErrGiveUp)
}

// await polls the transport until the timer expires. Datagrams the
// correlator rejects are dropped; receive and parse failures abort. Expiry
// and cancellation are checked after every poll, including one that
// delivered a dropped datagram.
func (c *Client) await(ctx context.Context, timer *Timer) (protocol.Packet, bool, error) {
	for {
		n, src, ok, err := c.transport.ReceiveIfAvailable(c.rx)
		if err != nil {
			return protocol.Packet{}, false, fmt.Errorf("receive: %w", err)
		}
		if ok {
			pkt, err := protocol.Parse(c.rx[:n])
			if err != nil {
				return protocol.Packet{}, false, fmt.Errorf("parse response: %w", err)
			}
			if c.correlator.Match(&c.request, &pkt) {
				return pkt.Detach(), true, nil
			}
			c.logger.Debug().
				Str("src", src.String()).
				Uint16("msg_id", pkt.Header.MessageID).
				Msg("dropped uncorrelated datagram")
		}
		if timer.Expired() {
			return protocol.Packet{}, false, nil
		}
		if err := ctx.Err(); err != nil {
			return protocol.Packet{}, false, err
		}
		if !ok {
			c.clock.Sleep(c.cfg.PollInterval)
		}
	}
}

func (c *Client) finish(res Result, start uint64, outcome string, err error) (Result, error) {
	res.Elapsed = time.Duration(c.clock.Millis()-start) * time.Millisecond
	c.last = res
	observability.RecordExchange(c.peer, outcome, res.Elapsed)

	event := c.logger.Info()
	if err != nil {
		event = c.logger.Warn().Err(err)
	}
	event.
		Str("state", c.state.String()).
		Int("attempts", res.Attempts).
		Dur("elapsed", res.Elapsed).
		Msg("exchange finished")
	return res, err
}
