package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"firstview-tracker/internal/auth"
	"firstview-tracker/internal/config"
	"firstview-tracker/internal/credstore"
	"firstview-tracker/internal/db"
	"firstview-tracker/internal/firstview"
	"firstview-tracker/internal/httpapi"
	"firstview-tracker/internal/mapview"
	"firstview-tracker/internal/metrics"
	"firstview-tracker/internal/publisher"
	"firstview-tracker/internal/tracker"
	"firstview-tracker/internal/transport"
	"firstview-tracker/internal/viewport"
)

func main() {
	// Load configuration from .env and environment
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	// Root context with cancellation on SIGINT/SIGTERM
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg); err != nil {
		cancel()
		log.Fatalf("tracker error: %v", err)
	}
	log.Println("shutdown complete")
}

// run wires every component and blocks until ctx is done. Resources opened before a
// failing step are released before it returns.
func run(ctx context.Context, cfg *config.Config) error {
	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("credential store: %w", err)
	}
	defer closeStore()
	log.Printf("using %s credential store", cfg.CredentialStore)

	mcol := metrics.NewCollector(cfg.PollInterval)
	if cfg.MetricsAddr != "" {
		srv := mcol.Serve(cfg.MetricsAddr)
		defer shutdown(srv)
	}

	authClient, err := firstview.NewAuthClient(cfg.BaseURL, cfg.HTTPTimeout)
	if err != nil {
		return fmt.Errorf("auth client: %w", err)
	}
	manager := auth.NewManager(store, authClient, auth.WithMetrics(mcol))
	session := auth.NewSession(store, authClient, auth.SessionConfig{
		DeviceName: cfg.DeviceName,
		DeviceUID:  cfg.DeviceUID,
	})
	if err := session.Restore(ctx); err != nil {
		return fmt.Errorf("restore session: %w", err)
	}
	if session.SignedIn() {
		log.Printf("restored session for %s", session.Account())
	} else if cfg.Account != "" {
		if err := session.SignIn(ctx, cfg.Account, cfg.Password); err != nil {
			log.Printf("sign-in for %s failed: %v", cfg.Account, err)
		}
	}

	trackingClient, err := firstview.NewTrackingClient(cfg.BaseURL, cfg.HTTPTimeout, nil,
		transport.Logging(cfg.LogHTTP),
		transport.BearerAuth(manager),
	)
	if err != nil {
		return fmt.Errorf("tracking client: %w", err)
	}

	hub := mapview.NewHub(viewport.NewCamera(cfg.ScreenWidth, cfg.ScreenHeight), mcol)
	defer hub.Close()

	opts := []tracker.Option{
		tracker.WithInterval(cfg.PollInterval),
		tracker.WithTimeout(cfg.HTTPTimeout),
		tracker.WithMetrics(mcol),
	}
	if cfg.NATSURL != "" {
		pub, err := publisher.NewNATSPublisher(cfg.NATSURL, cfg.NATSSubjectPrefix, cfg.LogNATSSubjects, mcol)
		if err != nil {
			return fmt.Errorf("nats: %w", err)
		}
		defer pub.Close()
		opts = append(opts, tracker.WithPublisher(pub))
	}
	poller := tracker.NewPoller(trackingClient, hub, opts...)
	poller.OnSnapshot(func(s tracker.Snapshot) { hub.BroadcastSnapshot(s) })

	if cfg.HTTPAddr != "" {
		srv := httpapi.Serve(cfg.HTTPAddr, httpapi.NewRouter(httpapi.Deps{
			Session:       session,
			Tracker:       poller,
			Notifications: trackingClient,
			Viewport:      hub,
			Map:           hub,
			Metrics:       mcol.Handler(),
		}))
		defer shutdown(srv)
	}

	poller.Start(ctx)

	// Block until context cancelled
	<-ctx.Done()
	poller.Stop()
	return nil
}

func openStore(ctx context.Context, cfg *config.Config) (credstore.Store, func(), error) {
	switch cfg.CredentialStore {
	case config.StorePostgres:
		dsn := cfg.DatabaseURL
		if cfg.CredentialDB != "" {
			var err error
			if dsn, err = db.WithDBName(dsn, cfg.CredentialDB); err != nil {
				return nil, nil, fmt.Errorf("compose DSN: %w", err)
			}
		}
		sqlDB, err := db.Open(dsn)
		if err != nil {
			return nil, nil, fmt.Errorf("db open: %w", err)
		}
		if err := db.Ping(ctx, sqlDB); err != nil {
			sqlDB.Close()
			return nil, nil, fmt.Errorf("db ping: %w", err)
		}
		store := credstore.NewSQL(sqlDB, db.DriverName)
		if err := store.EnsureSchema(ctx); err != nil {
			sqlDB.Close()
			return nil, nil, err
		}
		return store, func() { sqlDB.Close() }, nil
	case config.StoreRedis:
		client, err := credstore.OpenRedis(ctx, cfg.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		return credstore.NewRedis(client, cfg.RedisKeyPrefix), func() { client.Close() }, nil
	default:
		return credstore.NewMemory(), func() {}, nil
	}
}

func shutdown(srv *http.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
}
