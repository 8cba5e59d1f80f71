package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/affanraza84/Chatting-App/data/database/mgo"
	"github.com/affanraza84/Chatting-App/data/database/mgo/mongoutil"
	"github.com/affanraza84/Chatting-App/data/database/pg"
	"github.com/affanraza84/Chatting-App/global/config"
	"github.com/affanraza84/Chatting-App/logger"
	mid "github.com/affanraza84/Chatting-App/middleware"
	midsec "github.com/affanraza84/Chatting-App/middleware/security"
	"github.com/affanraza84/Chatting-App/module/message"
	"github.com/affanraza84/Chatting-App/service/chat"
	"github.com/affanraza84/Chatting-App/service/httpserver"
	"github.com/affanraza84/Chatting-App/service/kafka"
	"github.com/affanraza84/Chatting-App/service/natsx"
	"github.com/affanraza84/Chatting-App/service/storage"
	chatredis "github.com/affanraza84/Chatting-App/service/storage/redis"
	"github.com/affanraza84/Chatting-App/tools"
	"github.com/affanraza84/Chatting-App/tools/ids"
	"github.com/affanraza84/Chatting-App/tools/safe"
	"github.com/affanraza84/Chatting-App/tools/security"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

func main() {
	cfgPath := flag.String("config", tools.GetEnv("CHAT_CONFIG", ""), "path to the YAML config")
	envFile := flag.String("env", ".env", "dotenv file, skipped when missing")
	flag.Parse()

	if err := run(*cfgPath, *envFile); err != nil {
		fmt.Fprintf(os.Stderr, "chat-server: %+v\n", err)
		os.Exit(1)
	}
}

// closer is something released on shutdown, in reverse order of creation.
type closer struct {
	name string
	fn   func(ctx context.Context) error
}

func run(cfgPath, envFile string) error {
	cfg, err := config.Load(cfgPath, envFile)
	if err != nil {
		return err
	}
	if err := logger.Setup(logger.Options{Level: cfg.Log.Level, Format: cfg.Log.Format}); err != nil {
		return err
	}
	defer logger.Sync()
	ids.SetNodeID(cfg.NodeID)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var closers []closer
	defer func() {
		cctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i].fn(cctx); err != nil {
				logger.Warn("[Main] close failed", zap.String("what", closers[i].name), zap.Error(err))
			}
		}
	}()

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	closers = append(closers, closer{"store", store.Close})

	sinks, sinkClosers, mirror, err := buildSinks(cfg)
	closers = append(closers, sinkClosers...)
	if err != nil {
		return err
	}

	metrics := chat.NewMetrics(prometheus.DefaultRegisterer)
	reg := chat.NewRegistry()
	conns := chat.NewConnManager(chat.ManagerConf{SweepEvery: cfg.WS.PingInterval})
	bc := chat.NewBroadcaster(reg, conns, chat.BroadcasterConf{
		PushTimeout: cfg.WS.PushTimeout,
		Coalesce:    cfg.WS.BroadcastWait,
	}, metrics)
	coord := chat.NewCoordinator(store, reg, sinks, chat.CoordinatorConf{
		PushTimeout: cfg.WS.PushTimeout,
		IDs:         ids.NewGenerator(cfg.NodeID),
	}, metrics)

	origins, err := mid.NewOriginPolicy(cfg.Server.AllowedOrigins, cfg.Server.OriginPatterns)
	if err != nil {
		return err
	}
	gw := chat.NewGateway(reg, conns, bc, sinks, chat.GatewayConf{
		WS: chat.WSConf{
			ReadLimit:    cfg.WS.ReadLimit,
			PingInterval: cfg.WS.PingInterval,
			PongWait:     cfg.WS.PongWait,
			WriteWait:    cfg.WS.WriteWait,
			PushTimeout:  cfg.WS.PushTimeout,
			SendQueue:    cfg.WS.SendQueue,
			InboundRate:  cfg.WS.InboundRate,
			InboundBurst: cfg.WS.InboundBurst,
		},
		CheckOrigin: origins.CheckOrigin,
	}, metrics)

	jwtOpts := security.DefaultOptions([]byte(cfg.Auth.JWTSecret))
	jwtOpts.Alg, jwtOpts.TTL = cfg.Auth.Alg, cfg.Auth.TTL
	authOpts := midsec.DefaultOptions(security.NewJWTAuthenticator(jwtOpts))
	authOpts.CookieName = cfg.Auth.CookieName

	srv := httpserver.New(httpserver.Options{
		Addr:            cfg.Server.Addr,
		Mode:            cfg.Server.Mode,
		BodyLimit:       cfg.Server.BodyLimit,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
		SendRate:        cfg.Server.SendRate,
		SendBurst:       cfg.Server.SendBurst,
	}, httpserver.Deps{
		Gateway:     gw,
		Coordinator: coord,
		Auth:        midsec.Middleware(authOpts),
		Origins:     origins,
	})

	bcDone := make(chan struct{})
	safe.Go("presence.broadcaster", func() {
		defer close(bcDone)
		bc.Run(ctx)
	})
	if mirror != nil {
		safe.Go("presence.mirror", func() { refreshMirror(ctx, mirror, reg) })
	}

	logger.Info("[Main] chat server starting",
		zap.String("addr", cfg.Server.Addr), zap.String("store", cfg.Storage.Driver), zap.Int64("node", cfg.NodeID))
	err = srv.Run(ctx)
	stop()

	// hijacked websockets outlive http.Server.Shutdown
	conns.CloseAll()
	bc.Stop()
	<-bcDone
	logger.Info("[Main] stopped")
	return err
}

func openStore(ctx context.Context, cfg *config.AppConfig) (message.Store, error) {
	switch cfg.Storage.Driver {
	case config.DriverMongo:
		mc := cfg.Storage.Mongo
		cli, err := mongoutil.NewMongoDB(ctx, &mongoutil.Config{
			Uri:         mc.URI,
			Database:    mc.Database,
			Username:    mc.Username,
			Password:    mc.Password,
			MaxPoolSize: mc.MaxPoolSize,
			MaxRetry:    mc.MaxRetry,
		})
		if err != nil {
			return nil, err
		}
		s, err := mgo.NewMessageStore(ctx, cli, mc.Collection)
		if err != nil {
			_ = cli.Close(ctx)
			return nil, err
		}
		return s, nil
	case config.DriverPostgres:
		return pg.Open(ctx, pg.Config{DSN: cfg.Storage.Postgres.DSN, MaxConns: cfg.Storage.Postgres.MaxConns})
	case config.DriverRedis:
		rdb, err := chatredis.NewClient(redisConfig(cfg.Storage.Redis))
		if err != nil {
			return nil, err
		}
		return storage.NewStreamStore(rdb), nil
	default:
		logger.Warn("[Main] in-memory store: messages are lost on restart")
		return message.NewMemoryStore(), nil
	}
}

func buildSinks(cfg *config.AppConfig) (chat.MultiSink, []closer, *storage.PresenceMirror, error) {
	var (
		sinks   chat.MultiSink
		closers []closer
		mirror  *storage.PresenceMirror
	)
	node := strconv.FormatInt(cfg.NodeID, 10)

	if cfg.Presence.RedisMirror {
		rdb, err := chatredis.NewClient(redisConfig(cfg.Presence.Redis))
		if err != nil {
			return nil, closers, nil, err
		}
		closers = append(closers, closer{"presence redis", func(context.Context) error { return rdb.Close() }})
		mirror = storage.NewPresenceMirror(rdb, node, cfg.Presence.TTL)
		sinks = append(sinks, mirror)
	}

	if nc := cfg.Events.NATS; nc.Enabled {
		cli, err := natsx.NewNatsxClient(natsx.NatsxConfig{
			Servers:       tools.SplitCSV(nc.Servers),
			Name:          nc.Name,
			User:          nc.User,
			Password:      nc.Password,
			ReconnectWait: nc.ReconnectWait,
			Timeout:       nc.Timeout,
		})
		if err != nil {
			return nil, closers, nil, err
		}
		closers = append(closers, closer{"nats", func(context.Context) error { return cli.Close() }})
		sinks = append(sinks, natsx.NewSink(cli, nc.SubjectPrefix, node))
	}

	if kc := cfg.Events.Kafka; kc.Enabled {
		p, err := kafka.NewSyncProducer(kafka.Config{
			Brokers:           kc.Brokers,
			ClientID:          kc.ClientID,
			Version:           kc.Version,
			TopicPrefix:       kc.TopicPrefix,
			Compression:       kc.Compression,
			Retries:           kc.Retries,
			Partitions:        kc.Partitions,
			ReplicationFactor: kc.Replication,
			EnsureTopics:      kc.EnsureTopic,
		})
		if err != nil {
			return nil, closers, nil, err
		}
		ks := kafka.NewSink(p, kc.TopicPrefix, node)
		closers = append(closers, closer{"kafka", func(context.Context) error { return ks.Close() }})
		sinks = append(sinks, ks)
	}
	return sinks, closers, mirror, nil
}

func redisConfig(c config.RedisConfig) chatredis.Config {
	return chatredis.Config{Addr: c.Addr, Password: c.Password, DB: c.DB, PoolSize: c.PoolSize}
}

// refreshMirror renews the redis presence keys well inside their TTL.
func refreshMirror(ctx context.Context, m *storage.PresenceMirror, reg *chat.Registry) {
	t := time.NewTicker(m.TTL() / 3)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			rctx, cancel := context.WithTimeout(ctx, 5*time.Second)
			if err := m.Refresh(rctx, reg.SnapshotKeys()); err != nil {
				logger.Warn("[Main] presence refresh failed", zap.Error(err))
			}
			cancel()
		}
	}
}
