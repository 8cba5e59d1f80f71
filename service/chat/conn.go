package chat

import (
	"context"
	"encoding/json"
	"net"
	"sync"
	"time"

	"github.com/affanraza84/Chatting-App/logger"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// ===== config =====

type WSConf struct {
	ReadLimit    int64         // max inbound frame size
	PingInterval time.Duration // server ping period
	PongWait     time.Duration // read deadline, extended on every pong
	WriteWait    time.Duration // per frame write deadline
	PushTimeout  time.Duration // upper bound for one Push
	SendQueue    int           // per connection outbound queue
	InboundRate  float64       // frames/sec, <=0 disables the limiter
	InboundBurst int
}

func (c *WSConf) norm() {
	if c.ReadLimit <= 0 {
		c.ReadLimit = 64 << 10
	}
	if c.PingInterval <= 0 {
		c.PingInterval = 25 * time.Second
	}
	if c.PongWait <= c.PingInterval {
		c.PongWait = c.PingInterval * 12 / 5
	}
	if c.WriteWait <= 0 {
		c.WriteWait = 10 * time.Second
	}
	if c.PushTimeout <= 0 {
		c.PushTimeout = 5 * time.Second
	}
	if c.SendQueue <= 0 {
		c.SendQueue = 256
	}
	if c.InboundBurst <= 0 {
		c.InboundBurst = 1
	}
}

// ===== connection =====

// WsConn is a Handle over a gorilla websocket. All writes of data frames go
// through writePump; gorilla allows one concurrent writer.
type WsConn struct {
	id        string
	userID    string
	remote    net.Addr
	createdAt time.Time

	ws      *websocket.Conn
	conf    WSConf
	send    chan []byte
	done    chan struct{}
	once    sync.Once
	limiter *rate.Limiter
}

func NewWsConn(ws *websocket.Conn, userID string, conf WSConf) *WsConn {
	conf.norm()
	c := &WsConn{
		id:        uuid.NewString(),
		userID:    userID,
		remote:    ws.RemoteAddr(),
		createdAt: time.Now(),
		ws:        ws,
		conf:      conf,
		send:      make(chan []byte, conf.SendQueue),
		done:      make(chan struct{}),
	}
	if conf.InboundRate > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(conf.InboundRate), conf.InboundBurst)
	}
	return c
}

func (c *WsConn) ID() string            { return c.id }
func (c *WsConn) UserID() string        { return c.userID }
func (c *WsConn) Done() <-chan struct{} { return c.done }

func (c *WsConn) Closed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

func (c *WsConn) Push(ctx context.Context, ev Event) error {
	if c.Closed() {
		return ErrConnClosed
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return errors.Wrap(err, "encode event")
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.conf.PushTimeout)
		defer cancel()
	}
	select {
	case c.send <- data:
		return nil
	case <-c.done:
		return ErrConnClosed
	case <-ctx.Done():
		return errors.Wrap(ctx.Err(), "send queue full")
	}
}

// Close sends a close frame best effort and closes the transport.
func (c *WsConn) Close() {
	c.once.Do(func() {
		close(c.done)
		_ = c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(c.conf.WriteWait))
		_ = c.ws.Close()
	})
}

// writePump drains the send queue and pings until the connection closes.
func (c *WsConn) writePump() {
	ticker := time.NewTicker(c.conf.PingInterval)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case payload := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(c.conf.WriteWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, payload); err != nil {
				logger.Debug("[WS] write failed", zap.String("conn", c.id), zap.String("user", c.userID), zap.Error(err))
				return
			}
		case <-ticker.C:
			if err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.conf.WriteWait)); err != nil {
				logger.Debug("[WS] ping failed", zap.String("conn", c.id), zap.Error(err))
				return
			}
		case <-c.done:
			return
		}
	}
}

// readPump reads until the transport fails and hands each text frame to fn.
func (c *WsConn) readPump(fn func(data []byte)) error {
	c.ws.SetReadLimit(c.conf.ReadLimit)
	_ = c.ws.SetReadDeadline(time.Now().Add(c.conf.PongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(c.conf.PongWait))
	})

	for {
		mt, data, err := c.ws.ReadMessage()
		if err != nil {
			return err
		}
		if mt != websocket.TextMessage && mt != websocket.BinaryMessage {
			continue
		}
		fn(data)
	}
}

// allow reports whether another inbound frame fits the rate budget.
func (c *WsConn) allow() bool {
	return c.limiter == nil || c.limiter.Allow()
}
