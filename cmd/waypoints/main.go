package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/holocons/waypoints/internal/activation"
	"github.com/holocons/waypoints/internal/config"
	"github.com/holocons/waypoints/internal/discovery"
	"github.com/holocons/waypoints/internal/dispatch"
	"github.com/holocons/waypoints/internal/hub"
	"github.com/holocons/waypoints/internal/label"
	"github.com/holocons/waypoints/internal/logger"
	"github.com/holocons/waypoints/internal/relay"
	"github.com/holocons/waypoints/internal/storage/bolt"
	"github.com/holocons/waypoints/internal/storage/postgres"
	redisstore "github.com/holocons/waypoints/internal/storage/redis"
	"github.com/holocons/waypoints/internal/storage/sqlite"
	"github.com/holocons/waypoints/internal/traveler"
	"github.com/holocons/waypoints/internal/world"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		config.Exitf("waypoints: %v", err)
	}
	log, err := logger.New(cfg.Log)
	if err != nil {
		config.Exitf("waypoints: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStore(ctx, cfg.Store, log)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.Store.Driver).Msg("could not open traveler store")
	}
	defer closeStore()

	loop := dispatch.New(cfg.QueueSize, log.With().Str("component", "dispatch").Logger())
	loopCtx, stopLoop := context.WithCancel(context.Background())
	loopDone := make(chan struct{})
	go func() {
		loop.Run(loopCtx)
		close(loopDone)
	}()

	h := hub.New(loop, log.With().Str("component", "hub").Logger())
	travelers := traveler.NewRegistry(traveler.Settings{
		StartingTokens: cfg.Economy.StartingTokens,
		MaxTokens:      cfg.Economy.MaxTokens,
		RegenInterval:  cfg.Economy.RegenInterval,
		RegenAmount:    cfg.Economy.RegenAmount,
		TaskTimeout:    cfg.Economy.TaskTimeout,
	}, store, loop, h, log.With().Str("component", "travelers").Logger())
	labels := label.NewManager(h, h, log.With().Str("component", "labels").Logger())

	var announcer activation.Announcer = h.LocalAnnouncer()
	if cfg.Relay.RedisURL != "" {
		rdb, err := connectRedis(ctx, cfg.Relay.RedisURL, log)
		if err != nil {
			log.Fatal().Err(err).Msg("could not connect to relay redis")
		}
		defer rdb.Close()
		origin := cfg.Relay.Origin
		if origin == "" {
			origin = cfg.Addr
		}
		r := relay.New(rdb, origin, log.With().Str("component", "relay").Logger())
		announcer = r
		go r.Subscribe(ctx, h.Deliver)
	}

	rules := activation.NewRules(cfg.Economy.TokenRequirement, cfg.Worlds.Waypoint, cfg.Worlds.Home, cfg.Worlds.Camp)
	h.Attach(activation.NewController(rules, world.NewIndex(), travelers, labels, h, h, announcer,
		log.With().Str("component", "activation").Logger()))

	var loadErr error
	if err := loop.Do(ctx, func() { loadErr = travelers.LoadAll(ctx) }); err != nil {
		log.Fatal().Err(err).Msg("dispatch loop unavailable at startup")
	}
	if loadErr != nil {
		log.Fatal().Err(loadErr).Msg("could not load travelers")
	}

	if cfg.SaveInterval > 0 {
		loop.Post(func() {
			loop.Every(cfg.SaveInterval, func() {
				if err := travelers.SaveAll(ctx); err != nil {
					log.Error().Err(err).Msg("autosave failed")
				}
			})
		})
	}

	if cfg.Discovery.Enabled {
		go func() {
			if err := discovery.Announce(ctx, cfg.Discovery.Service, portOf(cfg.Addr), log); err != nil {
				log.Warn().Err(err).Msg("mDNS disabled")
			}
		}()
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           hub.NewRouter(h, loop, travelers),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Info().Str("addr", cfg.Addr).Msg("waypoints server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("http shutdown")
	}
	var saveErr error
	if err := loop.Do(shutdownCtx, func() {
		saveErr = travelers.SaveAll(shutdownCtx)
		travelers.ClearAll()
	}); err != nil {
		log.Error().Err(err).Msg("dispatch loop unavailable at shutdown")
	}
	if saveErr != nil {
		log.Error().Err(saveErr).Msg("could not save travelers")
	}
	stopLoop()
	<-loopDone
}

func openStore(ctx context.Context, cfg config.Store, log zerolog.Logger) (traveler.Store, func(), error) {
	switch cfg.Driver {
	case "memory":
		return traveler.NewMemoryStore(), func() {}, nil
	case "bolt", "sqlite":
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
			return nil, nil, err
		}
	}

	switch cfg.Driver {
	case "sqlite":
		s, err := sqlite.Open(cfg.Path)
		if err != nil {
			return nil, nil, err
		}
		return s, func() { _ = s.Close() }, nil
	case "postgres":
		var s *postgres.Store
		err := retry(ctx, log, "postgres", func() error {
			var err error
			s, err = postgres.Open(ctx, cfg.DatabaseURL)
			return err
		})
		if err != nil {
			return nil, nil, err
		}
		log.Info().Msg("Connected to PostgreSQL successfully.")
		return s, s.Close, nil
	case "redis":
		rdb, err := connectRedis(ctx, cfg.RedisURL, log)
		if err != nil {
			return nil, nil, err
		}
		return redisstore.New(rdb, cfg.RedisKey), func() { _ = rdb.Close() }, nil
	default:
		s, err := bolt.Open(cfg.Path)
		if err != nil {
			return nil, nil, err
		}
		return s, func() { _ = s.Close() }, nil
	}
}

func connectRedis(ctx context.Context, url string, log zerolog.Logger) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opts)
	if err := retry(ctx, log, "redis", func() error { return rdb.Ping(ctx).Err() }); err != nil {
		_ = rdb.Close()
		return nil, err
	}
	log.Info().Str("addr", opts.Addr).Msg("Connected to Redis successfully.")
	return rdb, nil
}

func retry(ctx context.Context, log zerolog.Logger, what string, op func() error) error {
	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = 30 * time.Second
	return backoff.RetryNotify(op, backoff.WithContext(b, ctx), func(err error, next time.Duration) {
		log.Warn().Err(err).Str("backend", what).Dur("retry_in", next).Msg("connection failed")
	})
}

func portOf(addr string) int {
	_, port, err := net.SplitHostPort(addr)
	if err != nil {
		return 0
	}
	n, _ := strconv.Atoi(port)
	return n
}
