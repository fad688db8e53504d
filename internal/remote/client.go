package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/daftuyda/umamusume-auto-train/internal/career"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// ErrClosed is returned for requests on a closed or dropped connection.
var ErrClosed = errors.New("agent connection closed")

// Options configures a Client.
type Options struct {
	DialTimeout    time.Duration
	RequestTimeout time.Duration
	Logger         *log.Logger
}

// Client is a capture agent connection. It implements the loop's Reader and
// Executor and is safe for concurrent use.
type Client struct {
	conn           *websocket.Conn
	logger         *log.Logger
	requestTimeout time.Duration

	writeMu sync.Mutex
	mu      sync.Mutex
	pending map[string]chan *Message
	closed  chan struct{}
	err     error

	closeOnce sync.Once
}

// Dial connects to the agent at serverURL.
func Dial(ctx context.Context, serverURL string, opts Options) (*Client, error) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return nil, fmt.Errorf("invalid agent URL: %w", err)
	}

	// Ensure WebSocket scheme
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		u.Scheme = "ws"
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	logger = logger.WithPrefix("agent")

	dialer := websocket.Dialer{HandshakeTimeout: opts.DialTimeout}
	if dialer.HandshakeTimeout <= 0 {
		dialer.HandshakeTimeout = 5 * time.Second
	}

	logger.Info("Connecting to capture agent", "url", u.String())
	conn, _, err := dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}

	c := &Client{
		conn:           conn,
		logger:         logger,
		requestTimeout: opts.RequestTimeout,
		pending:        make(map[string]chan *Message),
		closed:         make(chan struct{}),
	}
	go c.readMessages()
	return c, nil
}

// Capture asks the agent for a screen reading.
func (c *Client) Capture(ctx context.Context) (career.Snapshot, error) {
	reply, err := c.request(ctx, MessageTypeCapture, nil)
	if err != nil {
		return career.Snapshot{}, err
	}

	switch reply.Type {
	case MessageTypeSnapshot:
		var data SnapshotData
		if err := json.Unmarshal(reply.Data, &data); err != nil {
			return career.Snapshot{}, fmt.Errorf("decode snapshot: %w", err)
		}
		return data.ToSnapshot(reply.Timestamp), nil
	case MessageTypeReadFailure:
		return career.Snapshot{}, fmt.Errorf("agent could not read screen: %s", failureReason(reply))
	default:
		return career.Snapshot{}, fmt.Errorf("unexpected reply %q to capture", reply.Type)
	}
}

// Execute asks the agent to perform action and waits for its acknowledgement.
func (c *Client) Execute(ctx context.Context, action career.Action) error {
	reply, err := c.request(ctx, MessageTypeExecute, FromAction(action))
	if err != nil {
		return err
	}

	switch reply.Type {
	case MessageTypeAck:
		return nil
	case MessageTypeExecutionFailure:
		return fmt.Errorf("agent could not %s: %s", action, failureReason(reply))
	default:
		return fmt.Errorf("unexpected reply %q to execute", reply.Type)
	}
}

// Close closes the connection. Pending requests fail with ErrClosed.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.writeMu.Lock()
		_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.writeMu.Unlock()
		err = c.conn.Close()
	})
	return err
}

func (c *Client) request(ctx context.Context, msgType MessageType, data any) (*Message, error) {
	id := uuid.NewString()
	msg, err := NewMessage(msgType, id, data)
	if err != nil {
		return nil, err
	}

	if c.requestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.requestTimeout)
		defer cancel()
	}

	ch := make(chan *Message, 1)
	c.mu.Lock()
	if c.err != nil {
		c.mu.Unlock()
		return nil, c.err
	}
	c.pending[id] = ch
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
	}()

	c.writeMu.Lock()
	if deadline, ok := ctx.Deadline(); ok {
		_ = c.conn.SetWriteDeadline(deadline)
	}
	err = c.conn.WriteJSON(msg)
	c.writeMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("send %s: %w", msgType, err)
	}

	select {
	case reply := <-ch:
		if reply.Type == MessageTypeError {
			return nil, fmt.Errorf("agent rejected %s: %s", msgType, failureReason(reply))
		}
		return reply, nil
	case <-c.closed:
		return nil, c.closeErr()
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", msgType, ctx.Err())
	}
}

// readMessages routes replies to waiting requests until the connection drops
func (c *Client) readMessages() {
	var readErr error
	defer func() {
		c.mu.Lock()
		c.err = fmt.Errorf("%w: %v", ErrClosed, readErr)
		c.mu.Unlock()
		close(c.closed)
	}()

	for {
		var msg Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Error("WebSocket error", "error", err)
			}
			readErr = err
			return
		}

		c.mu.Lock()
		ch, ok := c.pending[msg.ID]
		c.mu.Unlock()
		if !ok {
			c.logger.Debug("Dropping reply with no pending request", "type", msg.Type, "id", msg.ID)
			continue
		}
		select {
		case ch <- &msg:
		default:
			c.logger.Warn("Dropping duplicate reply", "type", msg.Type, "id", msg.ID)
		}
	}
}

func (c *Client) closeErr() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	return ErrClosed
}

func failureReason(msg *Message) string {
	var f FailureData
	if err := json.Unmarshal(msg.Data, &f); err != nil || f.Error == "" {
		return "no reason given"
	}
	return f.Error
}
