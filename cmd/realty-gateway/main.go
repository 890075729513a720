package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/Sternrassler/realty-gateway/internal/config"
	"github.com/Sternrassler/realty-gateway/pkg/auth"
	"github.com/Sternrassler/realty-gateway/pkg/cache"
	"github.com/Sternrassler/realty-gateway/pkg/client"
	"github.com/Sternrassler/realty-gateway/pkg/gateway"
	"github.com/Sternrassler/realty-gateway/pkg/logging"
	"github.com/Sternrassler/realty-gateway/pkg/metrics"
	"github.com/Sternrassler/realty-gateway/pkg/ratelimit"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logger := logging.Setup(logging.Config{
		Level:   logging.LogLevel(cfg.LogLevel),
		Pretty:  cfg.LogPretty,
		Output:  os.Stderr,
		Service: "realty-gateway",
	})

	metrics.SetBuildInfo(version)

	var (
		redisClient   *redis.Client
		cacheStore    cache.Store = cache.NewMemoryStore()
		cooldownStore ratelimit.CooldownStore
		tokenStore    auth.TokenStore
	)
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			opts = &redis.Options{Addr: cfg.RedisURL}
		}
		redisClient = redis.NewClient(opts)

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err = redisClient.Ping(ctx).Err()
		cancel()
		if err != nil {
			log.Fatal().Err(err).Str("redis", opts.Addr).Msg("Failed to connect to Redis")
		}
		logger.Info().Str("redis", opts.Addr).Msg("Connected to Redis")

		cacheStore = cache.NewRedisStore(redisClient)
		cooldownStore = ratelimit.NewRedisStore(redisClient)
		tokenStore = auth.NewRedisTokenStore(redisClient)
		defer redisClient.Close()
	}

	transportCfg := client.DefaultConfig(cfg.UserAgent)
	transportCfg.Timeout = cfg.RequestTimeout
	transportCfg.Logger = &logger
	transport, err := client.New(transportCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create transport")
	}

	retryCfg := client.DefaultRetryConfig()
	retryCfg.MaxAttempts = cfg.MaxAttempts
	retryCfg.Jitter = 0.1
	retryCfg.Logger = &logger

	ssoCfg := cfg.SSO
	ssoCfg.Logger = &logger

	svc, err := gateway.New(gateway.Config{
		Transport:   transport,
		Hosts:       cfg.Hosts,
		Tokens:      auth.NewManager(ssoCfg, transport, tokenStore),
		Retrier:     client.NewRetrier(retryCfg),
		Limiter:     ratelimit.NewLimiter(cfg.MaxConcurrencyPerHost, cooldownStore, logger),
		Cache:       cache.NewManager(cacheStore, logger),
		Lang:        cfg.DefaultLang,
		DefaultCity: cfg.DefaultCity,
		Logger:      &logger,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create gateway")
	}

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           newRouter(svc, redisClient),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", server.Addr).Str("user_agent", cfg.UserAgent).Msg("Starting realty gateway")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("Graceful shutdown failed")
	}
	logger.Info().Msg("Server stopped")
}
