package chat

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"time"

	"github.com/affanraza84/Chatting-App/logger"
	"github.com/affanraza84/Chatting-App/tools/safe"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// HandshakeParam is the query parameter carrying the claimed user id.
const HandshakeParam = "userId"

type GatewayConf struct {
	WS          WSConf
	CheckOrigin func(r *http.Request) bool // nil allows every origin
	SinkTimeout time.Duration
}

// Gateway admits websocket connections, keeps the registry in step with
// them and triggers presence broadcasts.
//
// The handshake trusts the userId query parameter as sent: it is not
// checked against the session credential. Any client can claim any id.
type Gateway struct {
	reg      *Registry
	conns    *ConnManager
	bc       *Broadcaster
	sink     EventSink
	metrics  *Metrics
	conf     GatewayConf
	upgrader websocket.Upgrader
}

func NewGateway(reg *Registry, conns *ConnManager, bc *Broadcaster, sink EventSink, conf GatewayConf, metrics *Metrics) *Gateway {
	conf.WS.norm()
	if conf.SinkTimeout <= 0 {
		conf.SinkTimeout = 2 * time.Second
	}
	if sink == nil {
		sink = NopSink{}
	}
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	check := conf.CheckOrigin
	if check == nil {
		check = func(*http.Request) bool { return true }
	}
	g := &Gateway{
		reg:     reg,
		conns:   conns,
		bc:      bc,
		sink:    sink,
		metrics: metrics,
		conf:    conf,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     check,
		},
	}
	reg.OnEvict(g.onEvict)
	return g
}

// HandleWS upgrades the request and serves the connection until it closes.
func (g *Gateway) HandleWS(c *gin.Context) {
	user := c.Query(HandshakeParam)
	ws, err := g.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// the upgrader has already written the error response
		logger.Info("[WS] upgrade failed", zap.String("remote", c.ClientIP()), zap.Error(err))
		return
	}
	if !IsRegistrable(user) {
		user = ""
	}
	conn := NewWsConn(ws, user, g.conf.WS)
	g.Serve(c.Request.Context(), conn)
}

// Serve runs one connection: admit, pumps, then cleanup in the same order
// as the transport events.
func (g *Gateway) Serve(ctx context.Context, conn *WsConn) {
	ctx = context.WithoutCancel(ctx)
	safe.Go("ws.write", conn.writePump)

	g.Attach(ctx, conn)
	logger.Info("[WS] connected", zap.String("conn", conn.ID()), zap.String("user", conn.UserID()), zap.Stringer("remote", conn.remote))

	err := conn.readPump(func(data []byte) { g.onFrame(ctx, conn, data) })
	logReadErr(conn, err)

	g.Detach(ctx, conn)
}

// Attach records h. A registrable user replaces any previous handle, which
// is closed, and a broadcast follows. An anonymous handle gets the current
// snapshot for itself and changes nothing else.
func (g *Gateway) Attach(ctx context.Context, h Handle) {
	g.conns.Add(h)
	g.metrics.Connections.Set(float64(g.conns.Count()))

	user := h.UserID()
	if !IsRegistrable(user) {
		if err := g.bc.Unicast(ctx, h); err != nil {
			logger.Debug("[WS] initial snapshot failed", zap.String("conn", h.ID()), zap.Error(err))
		}
		return
	}

	if prev := g.reg.Register(user, h); prev != nil {
		g.metrics.Superseded.Inc()
		logger.Info("[WS] superseded connection closed",
			zap.String("user", user), zap.String("old", prev.ID()), zap.String("new", h.ID()))
		g.conns.Remove(prev)
		prev.Close()
	}
	g.bc.Notify()
	g.emit(ctx, user, true)
}

// Detach forgets h. The registry entry is only removed while it still names
// h; only an actual removal triggers a broadcast. Calling it twice is a no-op.
func (g *Gateway) Detach(ctx context.Context, h Handle) {
	g.conns.Remove(h)
	g.metrics.Connections.Set(float64(g.conns.Count()))
	h.Close()

	user := h.UserID()
	if !IsRegistrable(user) {
		return
	}
	if g.reg.UnregisterHandle(user, h) {
		logger.Info("[WS] user offline", zap.String("user", user), zap.String("conn", h.ID()))
		g.bc.Notify()
		g.emit(ctx, user, false)
	}
}

func (g *Gateway) onEvict(user string, h Handle) {
	g.metrics.StaleEvicted.Inc()
	logger.Warn("[WS] stale registry entry dropped", zap.String("user", user), zap.String("conn", h.ID()))
	g.conns.Remove(h)
	g.bc.Notify()
	g.emit(context.Background(), user, false)
}

func (g *Gateway) emit(ctx context.Context, user string, online bool) {
	sctx, cancel := context.WithTimeout(ctx, g.conf.SinkTimeout)
	defer cancel()
	err := callSink(sctx, "sink.presence", func(ctx context.Context) error {
		if online {
			return g.sink.UserOnline(ctx, user)
		}
		return g.sink.UserOffline(ctx, user)
	})
	if err != nil {
		logger.Warn("[WS] presence sink failed", zap.String("user", user), zap.Bool("online", online), zap.Error(err))
	}
}

func (g *Gateway) onFrame(ctx context.Context, conn *WsConn, data []byte) {
	if !conn.allow() {
		g.metrics.DroppedFrames.Inc()
		logger.Warn("[WS] inbound frame dropped by rate limit", zap.String("conn", conn.ID()), zap.String("user", conn.UserID()))
		return
	}
	var in inbound
	if err := json.Unmarshal(data, &in); err != nil {
		sample := data
		if len(sample) > 128 {
			sample = sample[:128]
		}
		logger.Debug("[WS] bad frame", zap.String("conn", conn.ID()), zap.ByteString("sample", sample), zap.Error(err))
		return
	}
	if in.Name == inboundPing {
		if err := conn.Push(ctx, Event{Name: EventPong, Data: time.Now().UnixMilli()}); err != nil {
			logger.Debug("[WS] pong failed", zap.String("conn", conn.ID()), zap.Error(err))
		}
	}
}

func logReadErr(conn *WsConn, err error) {
	fields := []zap.Field{zap.String("conn", conn.ID()), zap.String("user", conn.UserID())}
	switch {
	case err == nil:
	case websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived):
		logger.Info("[WS] peer closed", fields...)
	case isTimeout(err):
		logger.Info("[WS] read timeout", append(fields, zap.Error(err))...)
	case conn.Closed():
		logger.Info("[WS] closed by server", fields...)
	default:
		logger.Info("[WS] read error", append(fields, zap.Error(err))...)
	}
}

func isTimeout(err error) bool {
	ne, ok := err.(net.Error)
	return ok && ne.Timeout()
}
