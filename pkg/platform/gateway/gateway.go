// Package gateway connects to the platform's websocket event stream and REST
// API, implementing the platform boundary for live deployments.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/foyer-project/foyer/pkg/platform"
)

// Options tunes the event stream connection.
type Options struct {
	HandshakeTimeout time.Duration
	ReadTimeout      time.Duration
	WriteTimeout     time.Duration

	// ReconnectMin and ReconnectMax bound the backoff between connection
	// attempts.
	ReconnectMin time.Duration
	ReconnectMax time.Duration
}

func (o Options) withDefaults() Options {
	if o.HandshakeTimeout <= 0 {
		o.HandshakeTimeout = 10 * time.Second
	}
	if o.ReadTimeout <= 0 {
		o.ReadTimeout = 90 * time.Second
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 10 * time.Second
	}
	if o.ReconnectMin <= 0 {
		o.ReconnectMin = time.Second
	}
	if o.ReconnectMax <= 0 {
		o.ReconnectMax = time.Minute
	}
	return o
}

// frame is the wire shape of one event stream message.
type frame struct {
	Op   string          `json:"op"`
	Data json.RawMessage `json:"d"`
}

// memberEvent carries the fields shared by membership ops.
type memberEvent struct {
	SpaceID       string `json:"space_id"`
	ChannelID     string `json:"channel_id"`
	FromChannelID string `json:"from_channel_id"`
	ToChannelID   string `json:"to_channel_id"`
	MemberID      string `json:"member_id"`
}

// Stream reads membership events from the platform's websocket endpoint and
// dispatches them to a Handler. Handler errors are logged, not fatal.
type Stream struct {
	url     string
	token   string
	handler platform.Handler
	opts    Options
	logger  *slog.Logger
}

// NewStream creates an event stream dispatcher.
func NewStream(url, token string, handler platform.Handler, opts Options, logger *slog.Logger) (*Stream, error) {
	if strings.TrimSpace(url) == "" {
		return nil, fmt.Errorf("gateway url is required")
	}
	if handler == nil {
		return nil, fmt.Errorf("handler is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Stream{
		url:     url,
		token:   token,
		handler: handler,
		opts:    opts.withDefaults(),
		logger:  logger,
	}, nil
}

// Run connects and dispatches events until ctx is cancelled, reconnecting
// with capped exponential backoff on read failure.
func (s *Stream) Run(ctx context.Context) error {
	opts := s.opts
	backoff := opts.ReconnectMin

	for {
		err := s.runOnce(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.logger.Warn("gateway connection lost, reconnecting", "error", err, "backoff", backoff)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}

		backoff *= 2
		if backoff > opts.ReconnectMax {
			backoff = opts.ReconnectMax
		}
	}
}

// runOnce holds one connection until it fails or ctx is cancelled.
func (s *Stream) runOnce(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: s.opts.HandshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return err
	}
	defer func() { _ = conn.Close() }()

	var writeMu sync.Mutex
	sendText := func(payload string) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		_ = conn.SetWriteDeadline(time.Now().Add(s.opts.WriteTimeout))
		return conn.WriteMessage(websocket.TextMessage, []byte(payload))
	}

	// Identify before the server starts streaming.
	ident, _ := json.Marshal(map[string]string{"op": "identify", "token": s.token})
	if err := sendText(string(ident)); err != nil {
		return err
	}

	conn.SetPingHandler(func(appData string) error {
		_ = conn.SetReadDeadline(time.Now().Add(s.opts.ReadTimeout))
		writeMu.Lock()
		defer writeMu.Unlock()
		return conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(s.opts.WriteTimeout))
	})

	stop := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, "shutdown"),
				time.Now().Add(2*time.Second))
			_ = conn.Close()
		case <-stop:
		}
	}()
	defer close(stop)

	for {
		_ = conn.SetReadDeadline(time.Now().Add(s.opts.ReadTimeout))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		s.dispatch(ctx, msg)
	}
}

// dispatch decodes one frame and invokes the handler. Unknown ops and
// malformed frames are logged and skipped.
func (s *Stream) dispatch(ctx context.Context, msg []byte) {
	var f frame
	if err := json.Unmarshal(msg, &f); err != nil {
		s.logger.Warn("gateway frame decode failed", "error", err)
		return
	}

	var ev memberEvent
	if len(f.Data) > 0 {
		if err := json.Unmarshal(f.Data, &ev); err != nil {
			s.logger.Warn("gateway event decode failed", "op", f.Op, "error", err)
			return
		}
	}

	var err error
	switch f.Op {
	case "member_joined":
		err = s.handler.MemberJoined(ctx, ev.SpaceID, ev.ChannelID, ev.MemberID)
	case "member_left":
		err = s.handler.MemberLeft(ctx, ev.SpaceID, ev.ChannelID, ev.MemberID)
	case "member_moved":
		err = s.handler.MemberMoved(ctx, ev.SpaceID, ev.FromChannelID, ev.ToChannelID, ev.MemberID)
	case "channel_deleted":
		err = s.handler.ChannelDeleted(ctx, ev.SpaceID, ev.ChannelID)
	default:
		return
	}
	if err != nil {
		s.logger.Warn("event handler failed", "op", f.Op, "space", ev.SpaceID, "error", err)
	}
}
