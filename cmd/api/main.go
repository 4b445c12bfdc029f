package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/zhouzirui/moodchat/backend/internal/config"
	"github.com/zhouzirui/moodchat/backend/internal/handler"
	"github.com/zhouzirui/moodchat/backend/internal/service/account"
	"github.com/zhouzirui/moodchat/backend/internal/service/ai"
	"github.com/zhouzirui/moodchat/backend/internal/service/chat"
	"github.com/zhouzirui/moodchat/backend/internal/service/pipeline"
	logx "github.com/zhouzirui/moodchat/backend/pkg/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// .env is optional
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logx.Init()
		logx.Fatal().Err(err).Msg("failed to load configuration")
	}

	logx.Init(logx.LoggerOpts{Environment: cfg.Environment(), Level: cfg.LogLevel})
	if envErr != nil {
		logx.Debug().Err(envErr).Msg("no .env file, using process environment only")
	}

	cheapModel, strongModel, err := cfg.AI.NewChatModels(ctx)
	if err != nil {
		logx.Fatal().Err(err).Str("provider", cfg.AI.Provider).Msg("failed to create chat models")
	}

	client, err := ai.NewClient(ctx, ai.Config{
		Cheap:      cheapModel,
		CheapName:  cfg.AI.CheapModel,
		Strong:     strongModel,
		StrongName: cfg.AI.StrongModel,
		Timeout:    cfg.AI.Timeout,
	})
	if err != nil {
		logx.Fatal().Err(err).Msg("failed to initialize completion client")
	}
	logx.Info().
		Str("provider", cfg.AI.Provider).
		Str("cheap", cfg.AI.CheapModel).
		Str("strong", cfg.AI.StrongModel).
		Msg("completion client initialized")

	store, closeStore, err := newStore(ctx, cfg)
	if err != nil {
		logx.Fatal().Err(err).Str("backend", cfg.Store.Backend).Msg("failed to initialize session store")
	}
	defer closeStore()

	accounts, err := account.NewService(account.DemoUsers)
	if err != nil {
		logx.Fatal().Err(err).Msg("failed to seed accounts")
	}

	router := handler.NewRouter(handler.Deps{
		Pipeline:      pipeline.NewService(client, store),
		Store:         store,
		Accounts:      accounts,
		AllowedOrigin: cfg.Server.AllowedOrigin,
	})

	if err := startServer(ctx, cfg.Server, router); err != nil {
		logx.Error().Err(err).Msg("server error")
		closeStore()
		os.Exit(1)
	}
}

func newStore(ctx context.Context, cfg *config.Config) (chat.Store, func(), error) {
	if cfg.Store.Backend != config.StoreRedis {
		logx.Info().Msg("using in-memory session store")
		return chat.NewMemoryStore(), func() {}, nil
	}

	rdb, err := cfg.Redis.New(ctx)
	if err != nil {
		return nil, nil, err
	}
	logx.Info().Str("prefix", cfg.Redis.KeyPrefix).Msg("using redis session store")

	closeFn := func() {
		if err := rdb.Close(); err != nil && !errors.Is(err, redis.ErrClosed) {
			logx.Warn().Err(err).Msg("failed to close redis client")
		}
	}
	return chat.NewRedisStore(rdb, cfg.Redis.KeyPrefix), closeFn, nil
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) error {
	srv := &http.Server{
		Addr:              serverCfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	logx.Info().Str("addr", srv.Addr).Msg("moodchat backend listening")
	return runServer(ctx, srv, serverCfg.ShutdownTimeout)
}

func runServer(ctx context.Context, srv *http.Server, shutdownTimeout time.Duration) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		logx.Info().Msg("shutting down")
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
