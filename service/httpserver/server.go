package httpserver

import (
	"context"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/affanraza84/Chatting-App/logger"
	mid "github.com/affanraza84/Chatting-App/middleware"
	"github.com/affanraza84/Chatting-App/module/message/handler"
	"github.com/affanraza84/Chatting-App/service/chat"
	"github.com/affanraza84/Chatting-App/tools/errs"
	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

type Options struct {
	Addr            string
	Mode            string // gin mode
	BodyLimit       int64
	ShutdownTimeout time.Duration
	SendRate        float64
	SendBurst       int
}

// Deps are the parts the routes are served by.
type Deps struct {
	Gateway     *chat.Gateway
	Coordinator *chat.Coordinator
	Auth        gin.HandlerFunc
	Origins     *mid.OriginPolicy   // nil disables CORS handling
	Gatherer    prometheus.Gatherer // nil => prometheus.DefaultGatherer
	Now         func() time.Time
}

type Server struct {
	opts   Options
	engine *gin.Engine
	srv    *http.Server
}

func New(opts Options, d Deps) *Server {
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = 10 * time.Second
	}
	e := NewEngine(opts, d)
	return &Server{
		opts:   opts,
		engine: e,
		srv: &http.Server{
			Addr:              opts.Addr,
			Handler:           e,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

func (s *Server) Handler() http.Handler { return s.engine }

// NewEngine builds the gin engine with every route mounted.
func NewEngine(opts Options, d Deps) *gin.Engine {
	if opts.Mode != "" {
		gin.SetMode(opts.Mode)
	}
	if d.Gatherer == nil {
		d.Gatherer = prometheus.DefaultGatherer
	}
	if d.Now == nil {
		d.Now = time.Now
	}

	mids := mid.NewManager()
	mids.Add(mid.Recovery(), mid.RequestLog())
	if d.Origins != nil {
		mids.Add(mid.Origin(d.Origins))
	}
	mids.Add(mid.BodyLimit(opts.BodyLimit))

	e := gin.New()
	e.Use(mids.Use())

	e.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "OK",
			"message":   "Server is running",
			"timestamp": d.Now().UTC().Format(time.RFC3339),
		})
	})
	e.GET("/metrics", gin.WrapH(promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{})))
	e.GET("/ws", d.Gateway.HandleWS)

	var sendLimit gin.HandlerFunc
	if opts.SendRate > 0 {
		sendLimit = mid.RateLimit(opts.SendRate, opts.SendBurst, nil)
	}
	handler.NewMessageHandler(d.Coordinator).Register(mid.NewRouter(e, d.Auth), sendLimit)

	e.NoRoute(func(c *gin.Context) {
		if strings.HasPrefix(c.Request.URL.Path, "/api/") {
			mid.Fail(c, errs.ErrNotFound.WrapMsg("API endpoint not found"))
			return
		}
		c.AbortWithStatus(http.StatusNotFound)
	})
	return e
}

// Run serves until ctx is done, then shuts down gracefully. Hijacked
// websocket connections are not tracked by Shutdown; the caller closes them.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		return errs.WrapMsg(err, "listen", "addr", s.opts.Addr)
	}
	return s.Serve(ctx, ln)
}

func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info("[HTTP] listening", zap.String("addr", ln.Addr().String()))
		errCh <- s.srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errs.WrapMsg(err, "http serve")
	case <-ctx.Done():
	}

	sctx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
	defer cancel()
	logger.Info("[HTTP] shutting down", zap.Duration("timeout", s.opts.ShutdownTimeout))
	if err := s.srv.Shutdown(sctx); err != nil {
		return errs.WrapMsg(err, "http shutdown")
	}
	<-errCh
	return nil
}
