package main

import (
	"context"

	"github.com/spark-dating/spark-server/internal/app"
	"github.com/spark-dating/spark-server/internal/cache"
	"github.com/spark-dating/spark-server/internal/config"
	"github.com/spark-dating/spark-server/internal/db"
	"github.com/spark-dating/spark-server/internal/logger"
	"github.com/spark-dating/spark-server/internal/notify"
	"github.com/spark-dating/spark-server/internal/presence"
	"github.com/spark-dating/spark-server/internal/server"
	"github.com/spark-dating/spark-server/internal/service/chat"
	"github.com/spark-dating/spark-server/internal/service/swipe"
	"github.com/spark-dating/spark-server/internal/service/unread"
	"github.com/spark-dating/spark-server/internal/storage"
)

func main() {
	cfg := config.New()

	// Init logger (global singleton)
	logger.InitFromConfig(cfg)
	log := logger.L()

	// Init DB
	database, err := db.NewDB(cfg)
	if err != nil {
		log.Error("failed to init db", "err", err)
		return
	}

	// Init Redis
	redisCache := cache.NewRedisCache(cfg)
	if err := redisCache.Ping(context.Background()); err != nil {
		log.Error("failed to connect to redis", "err", err)
		return
	}

	appCtx := app.New(database, redisCache, log)

	// Attachment store is optional; the chat service degrades without it.
	var objects storage.ObjectStore
	if s3, err := storage.NewS3Store(context.Background(), cfg); err != nil {
		log.Warn("object store unavailable, attachments disabled", "err", err)
	} else {
		objects = s3
	}

	// Presence and fanout are process-local; they rebuild from empty on restart.
	registry := presence.NewRegistry()
	notifier := notify.NewNotifier(registry, log)

	unreadSvc := unread.NewService(appCtx, notifier)
	swipeSvc := swipe.NewService(appCtx, notifier)
	chatSvc := chat.NewService(appCtx, notifier, unreadSvc, objects)

	if cfg.App.ENV == "development" {
		if err := db.SeedTestData(database); err != nil {
			log.Error("failed to seed", "err", err)
		}
	}

	registrars := []server.Registrar{
		server.New(appCtx, cfg, registry, swipeSvc, chatSvc, unreadSvc, objects),
	}

	addr := cfg.HTTP.Host + ":" + cfg.HTTP.Port
	log.Info("starting HTTP server", "addr", addr)

	if err := server.StartHTTPServer(cfg, registrars...); err != nil {
		log.Error("failed to start HTTP server", "err", err)
	}
}
