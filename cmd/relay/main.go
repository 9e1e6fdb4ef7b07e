package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/onuvuti/resonance/config"
	"github.com/onuvuti/resonance/internal/registry"
	"github.com/onuvuti/resonance/internal/relay"
)

func main() {
	log := slog.New(slog.NewTextHandler(os.Stderr, nil))

	cfg, err := config.Load()
	if err != nil {
		log.Error("failed to load config", "error", err)
		os.Exit(2)
	}

	client, err := registry.Dial(context.Background(), cfg.Redis)
	if err != nil {
		log.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	defer client.Close()
	log.Info("redis connection established", "addr", cfg.Redis.Addr())

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.Default()
	router.Use(relay.OriginFilter(cfg.AllowedOrigins()))

	service := relay.NewService(log, registry.NewRedis(log, client, cfg.RoomTTL))
	service.Routes(router)

	log.Info("starting resonance relay", "port", cfg.Port)
	if err := router.Run(":" + cfg.Port); err != nil {
		log.Error("server stopped", "error", err)
		os.Exit(1)
	}
}
