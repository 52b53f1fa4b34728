package main

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/Alp4ka/queryengine"
	"github.com/Alp4ka/queryengine/internal/catalog"
	"github.com/Alp4ka/queryengine/internal/config"
	"github.com/Alp4ka/queryengine/internal/logging"
	"github.com/Alp4ka/queryengine/rediscache"
)

func main() {
	cfg := config.LoadConfig()

	log, err := logging.New(cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	ctx := context.Background()

	// ---------------- DB ----------------
	db, err := catalog.OpenDB(cfg.DBDriver, cfg.DatabaseDSN)
	if err != nil {
		log.Fatal("failed to open database", zap.Error(err))
	}

	if err := catalog.Migrate(db); err != nil {
		log.Fatal("failed to migrate database", zap.Error(err))
	}

	if cfg.SeedDemoData {
		if err := catalog.Seed(ctx, db); err != nil {
			log.Fatal("failed to seed demo data", zap.Error(err))
		}
	}

	// ---------------- Engine options ----------------
	opts := []queryengine.Option{
		queryengine.WithLogger(log),
		queryengine.WithCursorReset(),
	}

	if cfg.StrictFilters {
		opts = append(opts, queryengine.WithStrictFilters())
	}

	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Warn("redis unavailable, counts are not cached", zap.Error(err))
		} else {
			opts = append(opts, queryengine.WithCountCache(rediscache.New(rdb), cfg.CountCacheTTL))
			log.Info("count cache enabled", zap.String("addr", cfg.RedisAddr))
		}
	}

	// ---------------- HTTP ----------------
	handler, err := catalog.NewHandler(db, log, opts...)
	if err != nil {
		log.Fatal("failed to build handler", zap.Error(err))
	}

	router := gin.New()
	router.Use(gin.Recovery())
	catalog.RegisterRoutes(router, handler)

	log.Info("server running", zap.String("url", "http://localhost:"+cfg.HTTPPort))
	if err := router.Run(":" + cfg.HTTPPort); err != nil {
		log.Fatal("failed to start server", zap.Error(err))
	}
}
