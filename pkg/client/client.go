package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws/retry"
	"github.com/chess-vn/courtsync/internal/domains/dtos"
	"github.com/chess-vn/courtsync/internal/domains/entities"
	"github.com/chess-vn/courtsync/pkg/logging"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var ErrOutboxFull = errors.New("outbox full")

type Config struct {
	// Url of the match socket, e.g. ws://localhost:8080/match/court-1.
	Url              string
	SyncInterval     time.Duration
	MaxBackoff       time.Duration
	HandshakeTimeout time.Duration
	OutboxSize       int
}

func DefaultConfig(url string) Config {
	return Config{
		Url:              url,
		SyncInterval:     10 * time.Second,
		MaxBackoff:       10 * time.Second,
		HandshakeTimeout: 10 * time.Second,
		OutboxSize:       32,
	}
}

// Client keeps one match socket open, reconnecting with backoff, and feeds
// every snapshot it receives to its Projector and Synchronizer.
type Client struct {
	cfg       Config
	clock     clockwork.Clock
	dialer    *websocket.Dialer
	backoff   *retry.ExponentialJitterBackoff
	sync      *Synchronizer
	projector *Projector
	outbox    chan dtos.ActionRequest

	// OnError receives the message of every error frame.
	OnError func(message string)
	// OnState receives every snapshot after it has been applied.
	OnState func(state entities.MatchState)
}

func New(cfg Config, clock clockwork.Clock) *Client {
	if cfg.OutboxSize < 1 {
		cfg.OutboxSize = 1
	}
	return &Client{
		cfg:   cfg,
		clock: clock,
		dialer: &websocket.Dialer{
			HandshakeTimeout: cfg.HandshakeTimeout,
		},
		backoff:   retry.NewExponentialJitterBackoff(cfg.MaxBackoff),
		sync:      NewSynchronizer(clock),
		projector: NewProjector(clock),
		outbox:    make(chan dtos.ActionRequest, cfg.OutboxSize),
	}
}

func (c *Client) Projector() *Projector {
	return c.projector
}

func (c *Client) Synchronizer() *Synchronizer {
	return c.sync
}

// Dispatch queues an action for the authority. Actions queued while
// disconnected are sent after the next successful dial.
func (c *Client) Dispatch(kind string, payload interface{}) error {
	req, err := dtos.NewActionRequest(kind, payload)
	if err != nil {
		return err
	}
	select {
	case c.outbox <- req:
		return nil
	default:
		return ErrOutboxFull
	}
}

// Run keeps the connection alive until ctx is done.
func (c *Client) Run(ctx context.Context) error {
	attempt := 0
	for {
		conn, _, err := c.dialer.DialContext(ctx, c.cfg.Url, nil)
		if err == nil {
			attempt = 0
			logging.Info("connected", zap.String("url", c.cfg.Url))
			err = c.serve(ctx, conn)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		attempt++
		delay, derr := c.backoff.BackoffDelay(attempt, err)
		if derr != nil {
			delay = c.cfg.MaxBackoff
		}
		logging.Warn("connection lost, retrying",
			zap.String("url", c.cfg.Url),
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err),
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.clock.After(delay):
		}
	}
}

func (c *Client) serve(ctx context.Context, conn *websocket.Conn) error {
	c.sync.Forget()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		<-gctx.Done()
		return conn.Close()
	})
	g.Go(func() error {
		for {
			_, message, err := conn.ReadMessage()
			if err != nil {
				return fmt.Errorf("failed to read: %w", err)
			}
			c.handleFrame(message)
		}
	})
	g.Go(func() error {
		ticker := c.clock.NewTicker(c.cfg.SyncInterval)
		defer ticker.Stop()
		if err := c.writeSync(conn); err != nil {
			return err
		}
		for {
			select {
			case <-gctx.Done():
				return nil
			case req := <-c.outbox:
				if err := conn.WriteJSON(dtos.ActionFrame{Action: req}); err != nil {
					return fmt.Errorf("failed to write: %w", err)
				}
			case <-ticker.Chan():
				if err := c.writeSync(conn); err != nil {
					return err
				}
			}
		}
	})
	return g.Wait()
}

func (c *Client) writeSync(conn *websocket.Conn) error {
	req := dtos.ActionRequest{
		Type:      dtos.ActionGetGameState,
		RequestId: c.sync.Begin(),
	}
	if err := conn.WriteJSON(dtos.ActionFrame{Action: req}); err != nil {
		return fmt.Errorf("failed to write sync: %w", err)
	}
	return nil
}

func (c *Client) handleFrame(message []byte) {
	var frame dtos.Frame
	if err := json.Unmarshal(message, &frame); err != nil {
		logging.Warn("failed to parse frame", zap.Error(err))
		return
	}
	switch frame.Type {
	case dtos.FrameTypeGameState:
		var state entities.MatchState
		if err := json.Unmarshal(frame.Data, &state); err != nil {
			logging.Warn("failed to parse game state", zap.Error(err))
			return
		}
		if frame.RequestId != "" {
			if sample, ok := c.sync.Complete(frame.RequestId, state.ServerTime); ok {
				logging.Debug("clock synchronized",
					zap.Duration("rtt", sample.Rtt),
					zap.Duration("offset", sample.Offset),
					zap.String("quality", Classify(sample).String()),
				)
			}
		}
		c.projector.Apply(state)
		if c.OnState != nil {
			c.OnState(state)
		}
	case dtos.FrameTypeError:
		var data dtos.ErrorData
		if err := json.Unmarshal(frame.Data, &data); err != nil {
			logging.Warn("failed to parse error frame", zap.Error(err))
			return
		}
		logging.Warn("server rejected message", zap.String("error", data.Error))
		if c.OnError != nil {
			c.OnError(data.Error)
		}
	default:
		logging.Debug("ignoring frame", zap.String("type", frame.Type))
	}
}
