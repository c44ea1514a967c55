package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lealre/natours-backend/internal/config"
	"github.com/lealre/natours-backend/internal/logx"
	"github.com/lealre/natours-backend/internal/mongodb"
	"github.com/lealre/natours-backend/internal/server"
	"github.com/rs/zerolog/log"
)

const connectTimeout = 10 * time.Second

func main() {
	os.Exit(run())
}

// run owns every deferred cleanup, so main exits only after they ran.
func run() int {
	cfg, err := config.Load()
	if err != nil {
		log.Error().Err(err).Msg("failed to load config")
		return 1
	}

	logger := logx.New(cfg.LogLevel, cfg.LogFormat)
	log.Logger = logger

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logx.WithLogger(ctx, logger)

	connectCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	client, err := mongodb.Connect(connectCtx, cfg.MongoURI)
	cancel()
	if err != nil {
		logger.Error().Err(err).Msg("failed to connect to mongodb")
		return 1
	}

	db := mongodb.NewDB(client, cfg.MongoDB)
	defer func() {
		disconnectCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := db.Disconnect(disconnectCtx); err != nil {
			logger.Error().Err(err).Msg("failed to disconnect from mongodb")
		}
	}()
	logger.Info().Str("database", db.GetDatabaseName()).Msg("connected to mongodb")

	srv := server.New(cfg.Addr(), server.NewHandler(ctx, db, cfg, logger))
	if err := server.ListenAndServe(ctx, srv, cfg.ShutdownTimeout); err != nil {
		logger.Error().Err(err).Msg("server stopped with error")
		return 1
	}

	logger.Info().Msg("server stopped")
	return 0
}
