package main

import (
	"context"
	"database/sql"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"pairsignal/internal/config"
	"pairsignal/internal/database/db_client"
	"pairsignal/internal/http/http_server"
	"pairsignal/internal/http/statushandler"
	"pairsignal/internal/presence"
	"pairsignal/internal/redis/redis_client"
	"pairsignal/internal/roomhistory"
	"pairsignal/internal/session"
	"pairsignal/internal/ws"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	Log, _ = zap.NewDevelopment()
)

func main() {
	zap.ReplaceGlobals(Log)

	var err error
	var cfg *config.Config
	var redisClient *redis.Client
	var pgDb *sql.DB
	var statsProvider presence.Provider
	var storeOpts []session.Option
	var background sync.WaitGroup

	// 1. Load configuration
	cfg, err = config.LoadConfig()
	if err != nil {
		Log.Fatal("Failed to load configuration", zap.Error(err))
	}
	logger, err := newLogger(cfg)
	if err != nil {
		Log.Fatal("Failed to build logger", zap.Error(err))
	}
	Log = logger
	defer Log.Sync()
	zap.ReplaceGlobals(Log)
	Log.Debug("Configuration loaded successfully",
		zap.Uint16("http_port", cfg.HttpServerPort),
		zap.Bool("presence", cfg.PresenceEnabled()),
		zap.Bool("history", cfg.HistoryEnabled()),
		zap.Int("ice_servers", len(cfg.ICEServers())),
	)

	// 2. Context with signal handling
	ctx, stop := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGINT, syscall.SIGTERM,
	)
	defer stop()

	// 3. Postgres room history (optional)
	if cfg.HistoryEnabled() {
		pgDb, err = db_client.Open(ctx, cfg.PostgresHost, cfg.PostgresPort, cfg.PostgresUser, cfg.PostgresPassword, cfg.PostgresDb)
		if err != nil {
			Log.Fatal("pg-open", zap.Error(err))
		}
		defer pgDb.Close()

		if err := roomhistory.EnsureSchema(ctx, pgDb); err != nil {
			Log.Fatal("pg-schema", zap.Error(err))
		}
		recorder := roomhistory.NewRecorder(pgDb, 0)
		storeOpts = append(storeOpts, session.WithRecorder(recorder))

		background.Add(1)
		go func() {
			defer background.Done()
			recorder.Run(ctx)
		}()
		Log.Info("Room history enabled", zap.String("postgres_host", cfg.PostgresHost))
	}

	// 4. Session store: registry, waiting queue, room table
	store := session.NewStore(storeOpts...)
	statsProvider = presence.Local{Source: store}

	// 5. Redis presence (optional)
	if cfg.PresenceEnabled() {
		redisClient, err = redis_client.NewRedisClient(ctx, cfg.RedisPresenceHost, int(cfg.RedisPresencePort))
		if err != nil {
			Log.Fatal("Failed to create Redis client", zap.Error(err))
		}
		defer redisClient.Close()

		publisher := presence.NewPublisher(redisClient, store, cfg.InstanceName, cfg.PresenceInterval)
		background.Add(1)
		go func() {
			defer background.Done()
			publisher.Run(ctx, cfg.PresenceInterval)
		}()
		statsProvider = presence.NewAggregator(redisClient)
		Log.Info("Presence enabled", zap.String("instance", cfg.InstanceName))
	}

	// 6. WebSocket transport
	wsSrv := ws.NewWsServer(store, ws.Options{
		SendBuffer:      cfg.WsSendBuffer,
		ReadLimit:       cfg.WsReadLimit,
		PongWait:        cfg.WsPongWait,
		EventsPerSecond: cfg.WsEventsPerSecond,
		EventBurst:      cfg.WsEventBurst,
		AllowedOrigins:  cfg.AllowedOrigins,
	})

	// 7. HTTP + WS server
	httpServer := http_server.NewHttpServer(ctx, cfg.HttpServerPort, wsSrv,
		statushandler.New(statsProvider, cfg.ICEServers()))

	serveErr := make(chan error, 1)
	go func() { serveErr <- httpServer.Start() }()

	select {
	case err := <-serveErr:
		if err != nil {
			Log.Fatal("Failed to start HTTP server", zap.Error(err))
		}
	case <-ctx.Done():
		Log.Info("Shutting down")
		_ = httpServer.Dispose()
	}

	stop()
	background.Wait()
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	zcfg := zap.NewProductionConfig()
	if cfg.LogDevelopment {
		zcfg = zap.NewDevelopmentConfig()
	}
	zcfg.Level = zap.NewAtomicLevelAt(level)
	return zcfg.Build()
}
