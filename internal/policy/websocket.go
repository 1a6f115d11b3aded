package policy

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/vmihailenco/msgpack/v5"
	"go.uber.org/zap"

	"github.com/san-kum/vlasim/internal/robot"
)

type Option func(*WebsocketClient)

func WithLogger(log *zap.SugaredLogger) Option {
	return func(c *WebsocketClient) { c.log = log }
}

// WithRetryInterval sets the wait between connection attempts.
func WithRetryInterval(d time.Duration) Option {
	return func(c *WebsocketClient) { c.retry = d }
}

func WithImageSize(n int) Option {
	return func(c *WebsocketClient) { c.size = n }
}

func WithGripperClosed(angle float64) Option {
	return func(c *WebsocketClient) { c.gripperClosed = angle }
}

// WebsocketClient is a Client for an openpi policy server.
type WebsocketClient struct {
	url           string
	dialer        *websocket.Dialer
	log           *zap.SugaredLogger
	retry         time.Duration
	size          int
	gripperClosed float64

	mu       sync.Mutex
	conn     *websocket.Conn
	metadata map[string]interface{}
	closed   bool
}

var _ Client = (*WebsocketClient)(nil)

// Dial connects to url, retrying until the server answers or ctx ends.
func Dial(ctx context.Context, url string, opts ...Option) (*WebsocketClient, error) {
	c := &WebsocketClient{
		url:           url,
		dialer:        &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		log:           zap.NewNop().Sugar(),
		retry:         5 * time.Second,
		size:          DefaultImageSize,
		gripperClosed: math.Pi / 4,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.connect(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

// Metadata is what the server sent on the most recent connect.
func (c *WebsocketClient) Metadata() map[string]interface{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.metadata
}

func (c *WebsocketClient) connect(ctx context.Context) error {
	for attempt := 1; ; attempt++ {
		conn, _, err := c.dialer.DialContext(ctx, c.url, nil)
		if err == nil {
			meta, err := readMetadata(ctx, conn)
			if err != nil {
				conn.Close()
				return fmt.Errorf("read server metadata: %w", err)
			}
			c.conn, c.metadata = conn, meta
			c.log.Infow("connected to policy server", "url", c.url, "attempt", attempt, "metadata", meta)
			return nil
		}
		if ctx.Err() != nil {
			return fmt.Errorf("dial %s: %w", c.url, ctx.Err())
		}
		c.log.Infow("still waiting for policy server", "url", c.url, "attempt", attempt, "error", err)

		t := time.NewTimer(c.retry)
		select {
		case <-ctx.Done():
			t.Stop()
			return fmt.Errorf("dial %s: %w", c.url, ctx.Err())
		case <-t.C:
		}
	}
}

func readMetadata(ctx context.Context, conn *websocket.Conn) (map[string]interface{}, error) {
	stop := watch(ctx, conn)
	defer stop()
	kind, data, err := conn.ReadMessage()
	if err != nil {
		return nil, err
	}
	if kind == websocket.TextMessage {
		return nil, fmt.Errorf("%w: %s", ErrServer, data)
	}
	var meta map[string]interface{}
	if err := msgpack.Unmarshal(data, &meta); err != nil {
		return nil, err
	}
	return meta, nil
}

// watch applies ctx's deadline to conn and unblocks pending I/O when ctx is
// cancelled. The returned func clears both.
func watch(ctx context.Context, conn *websocket.Conn) func() {
	deadline, _ := ctx.Deadline()
	_ = conn.SetReadDeadline(deadline)
	_ = conn.SetWriteDeadline(deadline)
	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetReadDeadline(time.Now())
		_ = conn.SetWriteDeadline(time.Now())
	})
	return func() {
		stop()
		_ = conn.SetReadDeadline(time.Time{})
		_ = conn.SetWriteDeadline(time.Time{})
	}
}

type inferResponse struct {
	Actions *ndarray `msgpack:"actions"`
}

// Infer sends one observation and returns at most req.Actions actions. A
// failed call drops the connection; the next call redials.
func (c *WebsocketClient) Infer(ctx context.Context, req Request) (robot.ActionChunk, error) {
	payload, err := Payload(req, c.size, c.gripperClosed)
	if err != nil {
		return nil, err
	}
	body, err := msgpack.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrClosed
	}
	if c.conn == nil {
		if err := c.connect(ctx); err != nil {
			return nil, err
		}
	}

	start := time.Now()
	chunk, err := c.roundTrip(ctx, body, req.Actions)
	if err != nil {
		var ne net.Error
		switch {
		case ctx.Err() != nil:
			err = fmt.Errorf("%w: %w", ctx.Err(), err)
		case errors.As(err, &ne) && ne.Timeout():
			err = fmt.Errorf("%w: %w", context.DeadlineExceeded, err)
		}
		c.log.Errorw("policy call failed", "error", err)
		c.drop()
		return nil, err
	}
	c.log.Debugw("policy call", "actions", len(chunk), "elapsed", time.Since(start))
	return chunk, nil
}

func (c *WebsocketClient) roundTrip(ctx context.Context, body []byte, limit int) (robot.ActionChunk, error) {
	stop := watch(ctx, c.conn)
	defer stop()

	if err := c.conn.WriteMessage(websocket.BinaryMessage, body); err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	kind, data, err := c.conn.ReadMessage()
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if kind == websocket.TextMessage {
		return nil, fmt.Errorf("%w: %s", ErrServer, data)
	}

	var resp inferResponse
	if err := msgpack.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBadResponse, err)
	}
	if resp.Actions == nil {
		return nil, fmt.Errorf("%w: no %q in response", ErrBadResponse, KeyActions)
	}
	return chunkFromArray(resp.Actions, limit)
}

func (c *WebsocketClient) drop() {
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
}

func (c *WebsocketClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	if c.conn == nil {
		return nil
	}
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	werr := c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	err := c.conn.Close()
	c.conn = nil
	if werr != nil && !errors.Is(werr, websocket.ErrCloseSent) {
		return werr
	}
	return err
}
