package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/ukydev/fleetflow/internal/auth"
	"github.com/ukydev/fleetflow/internal/cache"
	"github.com/ukydev/fleetflow/internal/config"
	"github.com/ukydev/fleetflow/internal/db"
	"github.com/ukydev/fleetflow/internal/events"
	"github.com/ukydev/fleetflow/internal/fleet"
	"github.com/ukydev/fleetflow/internal/handlers"
	"github.com/ukydev/fleetflow/internal/logger"
)

func main() {
	cfg := config.Load()
	logger.Setup(logger.Options{Level: cfg.LogLevel, Format: cfg.LogFormat, File: cfg.LogFile})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		logrus.WithError(err).Fatal("server failed")
	}
}

// run wires the dependencies and serves until ctx is cancelled.
func run(ctx context.Context, cfg *config.Config) error {
	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(context.Background()); err != nil {
			logrus.WithError(err).Warn("failed to close store")
		}
	}()

	c := openCache(ctx, cfg)
	if rc, ok := c.(*cache.RedisCache); ok {
		defer rc.Close()
	}
	pub := openEvents(cfg)
	if mp, ok := pub.(*events.MQTTPublisher); ok {
		defer mp.Close()
	}

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: newHandler(cfg, store, c, pub),
	}
	ln, err := net.Listen("tcp", srv.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", srv.Addr, err)
	}
	return serve(ctx, srv, ln, cfg)
}

func newHandler(cfg *config.Config, store db.Store, c cache.Cache, pub events.Publisher) http.Handler {
	tokens := auth.NewService(cfg.JWTSecret, cfg.JWTExpiry)
	return handlers.NewRouter(handlers.RouterConfig{
		Tokens:         tokens,
		Accounts:       auth.NewAccounts(store, tokens),
		Fleet:          fleet.NewService(store, c, pub),
		CORSOrigins:    cfg.CORSOrigins,
		RequestTimeout: cfg.RequestTimeout,
		AuthRateLimit:  cfg.AuthRateLimit,
		AuthRateWindow: cfg.AuthRateWindow,
	})
}

// serve runs srv on ln and shuts it down gracefully once ctx is done.
func serve(ctx context.Context, srv *http.Server, ln net.Listener, cfg *config.Config) error {
	errCh := make(chan error, 1)
	go func() {
		logrus.WithField("addr", ln.Addr().String()).Info("HTTP server listening")
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logrus.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logrus.Info("Server exited")
	return nil
}

func openStore(ctx context.Context, cfg *config.Config) (db.Store, error) {
	switch cfg.Store {
	case config.StoreMongo:
		client, err := db.ConnectMongo(ctx, cfg.MongoURI, cfg.DBTimeout)
		if err != nil {
			return nil, err
		}
		s := db.NewMongoStore(client, cfg.MongoDatabase, cfg.DBTimeout)
		if err := s.EnsureIndexes(ctx); err != nil {
			_ = s.Close(context.Background())
			return nil, err
		}
		logrus.WithField("database", cfg.MongoDatabase).Info("Connected to MongoDB")
		return s, nil
	case config.StorePostgres:
		s, err := db.OpenPostgres(cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		logrus.Info("Connected to Postgres")
		return s, nil
	case config.StoreMemory:
		logrus.Warn("Using in-memory store; data is lost on restart")
		return db.NewMemoryStore(), nil
	}
	return nil, fmt.Errorf("unknown STORE %q (want %s, %s or %s)", cfg.Store, config.StoreMongo, config.StorePostgres, config.StoreMemory)
}

// openCache connects to Redis when configured. The cache only speeds up
// analytics, so an unreachable server degrades to no caching.
func openCache(ctx context.Context, cfg *config.Config) cache.Cache {
	if cfg.RedisAddr == "" {
		return cache.Nop{}
	}
	rc, err := cache.NewRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.CacheTTL)
	if err != nil {
		logrus.WithError(err).WithField("addr", cfg.RedisAddr).Warn("Redis unavailable, analytics cache disabled")
		return cache.Nop{}
	}
	logrus.WithField("addr", cfg.RedisAddr).Info("Connected to Redis")
	return rc
}

func openEvents(cfg *config.Config) events.Publisher {
	if cfg.MQTTBroker == "" {
		return events.Nop{}
	}
	p, err := events.ConnectMQTT(cfg.MQTTBroker, cfg.MQTTClientID, cfg.MQTTTopicPrefix)
	if err != nil {
		logrus.WithError(err).WithField("broker", cfg.MQTTBroker).Warn("MQTT unavailable, fleet events disabled")
		return events.Nop{}
	}
	logrus.WithField("broker", cfg.MQTTBroker).Info("Connected to MQTT broker")
	return p
}
