// Package client speaks the relay's wire protocol from Go. It plays the part
// of the mobile app: it emits location and share events and reacts to what
// other peers send.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"locshare-relay/domain"
)

type Callback func(payload json.RawMessage)

type Client struct {
	conn      *websocket.Conn
	id        string
	handlers  map[domain.Kind][]Callback
	mu        sync.RWMutex
	writeMu   sync.Mutex
	ready     chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// BuildURL turns an http(s) or ws(s) base address into the relay endpoint.
func BuildURL(base string) string {
	u := strings.TrimRight(base, "/")
	switch {
	case strings.HasPrefix(u, "https://"):
		u = "wss://" + strings.TrimPrefix(u, "https://")
	case strings.HasPrefix(u, "http://"):
		u = "ws://" + strings.TrimPrefix(u, "http://")
	case !strings.HasPrefix(u, "ws://") && !strings.HasPrefix(u, "wss://"):
		u = "ws://" + u
	}
	if !strings.HasSuffix(u, "/ws") {
		u += "/ws"
	}
	return u
}

// Dial connects to the relay and waits until it has announced this client's id.
func Dial(ctx context.Context, base string) (*Client, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, BuildURL(base), nil)
	if err != nil {
		return nil, fmt.Errorf("websocket dial failed: %w", err)
	}

	c := &Client{
		conn:     conn,
		handlers: make(map[domain.Kind][]Callback),
		ready:    make(chan struct{}),
		done:     make(chan struct{}),
	}
	go c.readLoop()

	select {
	case <-c.ready:
		return c, nil
	case <-c.done:
		return nil, errors.New("connection closed before handshake")
	case <-ctx.Done():
		c.Close()
		return nil, ctx.Err()
	}
}

func (c *Client) ID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.id
}

// On registers fn for every event of kind. Callbacks run on the read goroutine.
func (c *Client) On(kind domain.Kind, fn Callback) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[kind] = append(c.handlers[kind], fn)
}

// Done is closed when the connection ends.
func (c *Client) Done() <-chan struct{} { return c.done }

// Emit sends one event. A nil payload is omitted from the frame.
func (c *Client) Emit(kind domain.Kind, payload any) error {
	env := domain.Envelope{Kind: kind}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode %s payload: %w", kind, err)
		}
		env.Payload = data
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	if err := c.conn.WriteJSON(env); err != nil {
		return fmt.Errorf("send %s: %w", kind, err)
	}
	return nil
}

func (c *Client) RequestScreenShare() error {
	return c.Emit(domain.KindRequestScreenShare, nil)
}

func (c *Client) AcceptScreenShare(requesterID string) error {
	return c.Emit(domain.KindAcceptScreenShare, requesterID)
}

func (c *Client) DeclineScreenShare(requesterID string) error {
	return c.Emit(domain.KindDeclineScreenShare, requesterID)
}

func (c *Client) SendLocation(loc domain.Location) error {
	return c.Emit(domain.KindLocationUpdate, loc)
}

func (c *Client) SendTextAndLocation(text string, loc domain.Location) error {
	return c.Emit(domain.KindTextAndLocationUpdate, domain.TextAndLocation{
		Text:      text,
		Latitude:  loc.Latitude,
		Longitude: loc.Longitude,
	})
}

// SendScreenData sends the simulated screen frame: a timestamp and a location.
func (c *Client) SendScreenData(at time.Time, loc domain.Location) error {
	return c.Emit(domain.KindScreenData, domain.ScreenData{
		Timestamp: at.UTC().Format(time.RFC3339Nano),
		Location:  loc,
	})
}

func (c *Client) Ping(n int64) error {
	return c.Emit(domain.KindPing, n)
}

func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.writeMu.Lock()
		c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		c.writeMu.Unlock()
		err = c.conn.Close()
	})
	return err
}

func (c *Client) readLoop() {
	defer close(c.done)
	defer c.Close()

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Debug("relay read error", "error", err)
			}
			return
		}

		var env domain.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			slog.Warn("invalid frame from relay", "error", err)
			continue
		}

		if env.Kind == domain.KindConnected {
			c.handshake(env.Payload)
		}
		c.mu.RLock()
		handlers := c.handlers[env.Kind]
		c.mu.RUnlock()
		for _, fn := range handlers {
			fn(env.Payload)
		}
	}
}

func (c *Client) handshake(payload json.RawMessage) {
	var id string
	if err := json.Unmarshal(payload, &id); err != nil {
		slog.Warn("invalid connected frame", "error", err)
		return
	}
	c.mu.Lock()
	first := c.id == ""
	c.id = id
	c.mu.Unlock()
	if first {
		close(c.ready)
	}
}
