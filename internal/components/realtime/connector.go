// Package realtime keeps one STOMP subscription open over WebSocket and
// delivers every inbound announcement payload to a callback.
//
// Delivery is at-least-once and unordered. After any drop the connector waits
// a fixed delay and reconnects, forever, until the handle is closed.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/go-stomp/stomp/v3"
	"github.com/go-stomp/stomp/v3/frame"
	"github.com/google/uuid"

	"github.com/staybook/frontdesk/internal/platform/logutil"
)

// State is the connection state.
type State string

const (
	StateConnecting      State = "connecting"
	StateOpen            State = "open"
	StateClosedWillRetry State = "closed-will-retry"
	StateClosedFinal     State = "closed-final"
)

// Defaults.
const (
	DefaultReconnectDelay   = 5 * time.Second
	DefaultHandshakeTimeout = 10 * time.Second
)

// Dialer opens a transport connection.
type Dialer interface {
	Dial(ctx context.Context, endpoint string, header http.Header) (Conn, error)
}

// Conn is a message-oriented connection; each Read returns one whole message.
type Conn interface {
	Read(ctx context.Context) ([]byte, error)
	Write(ctx context.Context, data []byte) error
	Close() error
}

// TokenSource returns the current bearer token, if any.
type TokenSource func(ctx context.Context) (string, bool)

// Config configures a Connector.
type Config struct {
	Endpoint         string
	Topic            string
	ReconnectDelay   time.Duration
	HandshakeTimeout time.Duration

	// HeartBeat is offered for both directions. Zero disables heart-beating.
	HeartBeat time.Duration

	// Token, when set, is sent as the Authorization header of CONNECT.
	Token TokenSource

	// Dialer defaults to a WebSocket dialer.
	Dialer Dialer

	// OnState is called after every state change, outside internal locks.
	OnState func(State)

	// After replaces time.After for the reconnect wait (tests).
	After func(time.Duration) <-chan time.Time

	Log *slog.Logger
}

// Connector opens subscriptions to one endpoint and topic.
type Connector struct {
	cfg Config
	log *slog.Logger
}

// New creates a Connector, filling defaults.
func New(cfg Config) *Connector {
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = DefaultReconnectDelay
	}
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if cfg.Dialer == nil {
		cfg.Dialer = NewWebSocketDialer(nil)
	}
	if cfg.After == nil {
		cfg.After = time.After
	}
	return &Connector{cfg: cfg, log: logutil.NoopIfNil(cfg.Log)}
}

// Handle controls one running subscription.
type Handle struct {
	c         *Connector
	onMessage func([]byte)
	cancel    context.CancelFunc
	done      chan struct{}

	mu     sync.Mutex
	state  State
	closed bool

	// deliverMu serializes deliveries with Close.
	deliverMu sync.Mutex

	reconnects atomic.Int64
}

// Connect starts the connection loop in a goroutine and returns immediately.
// onMessage receives each MESSAGE body that is valid JSON. It is never called
// concurrently, and never after Close has returned. It must not call Close.
func (c *Connector) Connect(onMessage func(raw []byte)) *Handle {
	ctx, cancel := context.WithCancel(context.Background())
	h := &Handle{
		c:         c,
		onMessage: onMessage,
		cancel:    cancel,
		done:      make(chan struct{}),
		state:     StateConnecting,
	}
	go h.run(ctx)
	return h
}

// Close stops the connection permanently. It is safe to call repeatedly and
// from any state.
func (h *Handle) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	h.state = StateClosedFinal
	h.mu.Unlock()

	h.cancel()

	// Wait out an in-flight delivery.
	h.deliverMu.Lock()
	h.deliverMu.Unlock()

	h.notify(StateClosedFinal)
}

// State returns the current connection state.
func (h *Handle) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// Reconnects returns how many reconnect attempts have started.
func (h *Handle) Reconnects() int64 {
	return h.reconnects.Load()
}

// Done is closed when the connection loop has exited.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

func (h *Handle) setState(s State) {
	h.mu.Lock()
	if h.closed || h.state == s {
		h.mu.Unlock()
		return
	}
	h.state = s
	h.mu.Unlock()
	h.notify(s)
}

func (h *Handle) notify(s State) {
	if h.c.cfg.OnState != nil {
		h.c.cfg.OnState(s)
	}
}

func (h *Handle) deliver(body []byte) {
	h.deliverMu.Lock()
	defer h.deliverMu.Unlock()

	h.mu.Lock()
	closed := h.closed
	h.mu.Unlock()
	if closed || h.onMessage == nil {
		return
	}
	h.onMessage(body)
}

func (h *Handle) run(ctx context.Context) {
	defer close(h.done)

	cfg := h.c.cfg
	log := h.c.log.With("endpoint", cfg.Endpoint, "topic", cfg.Topic)
	delay := backoff.NewConstantBackOff(cfg.ReconnectDelay)

	for attempt := 0; ; attempt++ {
		if attempt > 0 {
			h.reconnects.Add(1)
		}
		h.setState(StateConnecting)

		err := h.session(ctx, log)
		if ctx.Err() != nil {
			return
		}

		wait := delay.NextBackOff()
		h.setState(StateClosedWillRetry)
		log.Warn("stream disconnected", "error", err, "retry_in", wait.String())

		select {
		case <-ctx.Done():
			return
		case <-cfg.After(wait):
		}
	}
}

// session runs one connection until it fails. It always returns a non-nil error.
func (h *Handle) session(ctx context.Context, log *slog.Logger) error {
	cfg := h.c.cfg

	hsCtx, cancel := context.WithTimeout(ctx, cfg.HandshakeTimeout)
	defer cancel()

	var token string
	if cfg.Token != nil {
		token, _ = cfg.Token(ctx)
	}

	header := http.Header{}
	if token != "" {
		header.Set("Authorization", "Bearer "+token)
	}

	conn, err := cfg.Dialer.Dial(hsCtx, cfg.Endpoint, header)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()

	stream := newFrameStream(ctx, conn, log)

	// stomp.Connect has no context; closing the transport bounds the handshake.
	timer := time.AfterFunc(cfg.HandshakeTimeout, func() { conn.Close() })
	sc, sub, err := h.handshake(stream, token)
	if !timer.Stop() && err == nil {
		err = errHandshakeTimeout
	}
	if err != nil {
		if sc != nil {
			sc.MustDisconnect()
		}
		return err
	}
	defer sc.MustDisconnect()

	h.setState(StateOpen)
	log.Info("stream open", "session", sc.Session(), "server", sc.Server())

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stream.Dead():
			return fmt.Errorf("read: %w", stream.Err())
		case msg, ok := <-sub.C:
			if !ok {
				return errSubscriptionEnded
			}
			if msg.Err != nil {
				return fmt.Errorf("server error frame: %w", msg.Err)
			}
			if !json.Valid(msg.Body) {
				log.Warn("dropping message with non-JSON body", "bytes", len(msg.Body))
				continue
			}
			h.deliver(msg.Body)
		}
	}
}

var (
	errHandshakeRejected = errors.New("stomp handshake rejected")
	errHandshakeTimeout  = errors.New("stomp handshake timed out")
	errSubscriptionEnded = errors.New("subscription ended")
)

// handshake sends CONNECT, waits for CONNECTED and subscribes to the topic.
// Frames the broker sends right after CONNECTED stay buffered in the stream
// and reach the subscription through the stomp read loop.
func (h *Handle) handshake(stream *frameStream, token string) (*stomp.Conn, *stomp.Subscription, error) {
	cfg := h.c.cfg

	opts := []func(*stomp.Conn) error{
		stomp.ConnOpt.Host(hostOf(cfg.Endpoint)),
		stomp.ConnOpt.HeartBeat(cfg.HeartBeat, cfg.HeartBeat),
	}
	if token != "" {
		opts = append(opts, stomp.ConnOpt.Header("Authorization", "Bearer "+token))
	}

	sc, err := stomp.Connect(stream, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", errHandshakeRejected, err)
	}

	subID := "sub-" + uuid.NewString()
	sub, err := sc.Subscribe(cfg.Topic, stomp.AckAuto, func(f *frame.Frame) error {
		f.Header.Set("id", subID)
		return nil
	})
	if err != nil {
		return sc, nil, fmt.Errorf("subscribe: %w", err)
	}
	return sc, sub, nil
}

func hostOf(endpoint string) string {
	u, err := url.Parse(endpoint)
	if err != nil || u.Hostname() == "" {
		return "localhost"
	}
	return u.Hostname()
}
