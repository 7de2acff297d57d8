package websocket

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"locshare-relay/domain"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

type Options struct {
	MaxMessageSize int64
	SendBuffer     int
	// RateLimit is inbound events per second; zero, the default, disables limiting.
	RateLimit float64
	RateBurst int
}

func DefaultOptions() Options {
	return Options{
		MaxMessageSize: 4096,
		SendBuffer:     256,
		RateLimit:      0,
		RateBurst:      100,
	}
}

type Conn struct {
	id        string
	ws        *websocket.Conn
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
	registry  domain.Registry
	handler   domain.MessageHandler
	limiter   *rate.Limiter
	opts      Options
}

func NewConn(ws *websocket.Conn, r domain.Registry, h domain.MessageHandler, opts Options) *Conn {
	c := &Conn{
		ws:       ws,
		send:     make(chan []byte, opts.SendBuffer),
		done:     make(chan struct{}),
		registry: r,
		handler:  h,
		opts:     opts,
	}
	if opts.RateLimit > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), opts.RateBurst)
	}
	return c
}

func (c *Conn) ID() string { return c.id }

// Send queues data for the write pump without blocking.
func (c *Conn) Send(data []byte) error {
	select {
	case <-c.done:
		return domain.ErrConnClosed
	default:
	}
	select {
	case c.send <- data:
		return nil
	default:
		return domain.ErrSendBufferFull
	}
}

func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		if c.ws == nil {
			return
		}
		c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, ""), time.Now().Add(writeWait))
		err = c.ws.Close()
	})
	return err
}

// Greet records the assigned id and queues the connected frame. The registry
// calls it while registering, ahead of any relayed event.
func (c *Conn) Greet(id string) {
	c.id = id
	hello, err := json.Marshal(domain.Envelope{Kind: domain.KindConnected, Payload: quoteID(id)})
	if err != nil {
		return
	}
	if err := c.Send(hello); err != nil {
		slog.Warn("greeting not queued", "clientId", id, "error", err)
	}
}

// Start registers the connection and runs the pumps.
func (c *Conn) Start() {
	c.id = c.registry.Register(c)

	go c.writePump()
	go c.readPump()
}

func (c *Conn) readPump() {
	defer func() {
		c.registry.Unregister(c.id)
		c.Close()
	}()

	if c.opts.MaxMessageSize > 0 {
		c.ws.SetReadLimit(c.opts.MaxMessageSize)
	}
	c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				slog.Error("read error", "clientId", c.id, "error", err)
			}
			return
		}

		if c.limiter != nil && !c.limiter.Allow() {
			slog.Debug("rate limited", "clientId", c.id)
			continue
		}

		c.handler.Handle(c.id, data)
	}
}

func (c *Conn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case message := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}

func quoteID(id string) json.RawMessage {
	data, _ := json.Marshal(id)
	return data
}
