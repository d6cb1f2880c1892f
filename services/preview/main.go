package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	embeddedpostgres "github.com/fergusstrange/embedded-postgres"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/chatwidget/internal/config"
	"github.com/chatwidget/internal/handler"
	"github.com/chatwidget/internal/logger"
	"github.com/chatwidget/internal/middleware"
	"github.com/chatwidget/internal/repository"
	"github.com/chatwidget/internal/service"
	"github.com/chatwidget/internal/startup"
	"github.com/chatwidget/internal/storage"
	"github.com/chatwidget/internal/storage/memory"
	"github.com/chatwidget/internal/storage/tiered"
	"github.com/chatwidget/internal/transport"
	"github.com/chatwidget/internal/ws"
	"github.com/chatwidget/migrations"
)

func main() {
	logger.SetPrefix("preview")
	migrate := flag.Bool("migrate", false, "run database migrations and exit")
	dev := flag.Bool("dev", false, "start with embedded PostgreSQL (store_backend=postgres, no external DB required)")
	flag.Parse()

	logger.Info("starting preview service")
	cfg := config.Load()
	logger.SetLevel(logger.ParseLevel(cfg.LogLevel))
	defer logger.Flush(2 * time.Second)

	if *dev {
		cfg.StoreBackend = config.StorePostgres
		embeddedDB, err := startEmbeddedPostgres(cfg)
		if err != nil {
			logger.Errorf("embedded postgres: %v", err)
			logger.Flush(time.Second)
			os.Exit(1)
		}
		defer func() {
			logger.Info("stopping embedded postgres...")
			if err := embeddedDB.Stop(); err != nil {
				logger.Errorf("embedded postgres stop: %v", err)
			}
		}()
	}

	store, closeStore, err := openStore(cfg, *migrate)
	if err != nil {
		logger.Errorf("config store: %v", err)
		logger.Flush(time.Second)
		os.Exit(1)
	}
	defer closeStore()
	if *migrate {
		return
	}

	hubCtx, hubCancel := context.WithCancel(context.Background())
	hub := ws.NewHub(nil, cfg.MaxSessions*4)
	configs := service.NewConfigService(store)
	previews := service.NewPreviewService(configs, hub, service.PreviewOptions{
		Runtime:     cfg.Widget,
		MaxSessions: cfg.MaxSessions,
		HTTPClient:  &http.Client{Timeout: cfg.Widget.SendTimeout},
		Socket: transport.SocketOptions{
			WriteWait:      cfg.WSWriteTimeout,
			PongWait:       cfg.WSPongTimeout,
			MaxMessageSize: cfg.WSMaxMessageSize,
		},
	})
	hub.SetController(previews)

	var hubWg sync.WaitGroup
	hubWg.Add(1)
	go func() {
		defer hubWg.Done()
		hub.Run(hubCtx)
	}()

	cfgH := handler.NewConfigHandler(configs, cfg.EmbedScriptURL, cfg.Widget.APIBaseURL)
	prevH := handler.NewPreviewHandler(previews)
	evH := handler.NewEventsHandler(hub, previews, cfg.CORSAllowedOrigins, ws.ClientOptions{
		WriteWait:      cfg.WSWriteTimeout,
		PongWait:       cfg.WSPongTimeout,
		MaxMessageSize: cfg.WSMaxMessageSize,
	})

	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(chimw.RequestID)
	r.Use(middleware.RecoverJSON)
	r.Use(middleware.RequestLog)
	r.Use(middleware.RateLimitAPI)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{cfg.CORSAllowedOrigins},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	handler.Routes(r, cfgH, prevH, evH, cfg.SendsPerMinute)

	srv := &http.Server{
		Addr:         cfg.ServerAddr,
		Handler:      r,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	var srvWg sync.WaitGroup
	errCh := make(chan error, 1)
	srvWg.Add(1)
	go func() {
		defer srvWg.Done()
		logger.Infof("server listening on %s (store=%s)", cfg.ServerAddr, cfg.StoreBackend)
		errCh <- srv.ListenAndServe()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			logger.Errorf("server error: %v", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("server shutdown: %v", err)
	}
	logger.Info("server stopped accepting connections")
	previews.Shutdown()
	logger.Info("preview sessions destroyed")
	hubCancel()
	hubWg.Wait()
	logger.Info("hub stopped")
	srvWg.Wait()
}

// openStore picks the saved-config backend. Durable backends sit behind the memory tier.
func openStore(cfg *config.Config, migrateOnly bool) (storage.ConfigStore, func(), error) {
	switch cfg.StoreBackend {
	case config.StoreRedis:
		if migrateOnly {
			return nil, nil, fmt.Errorf("-migrate needs store_backend=%s", config.StorePostgres)
		}
		rc, err := startup.ConnectRedis(cfg.RedisURL, 60*time.Second)
		if err != nil {
			return nil, nil, err
		}
		store := tiered.New(rc)
		return store, func() { store.Close() }, nil

	case config.StorePostgres:
		poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL())
		if err != nil {
			return nil, nil, fmt.Errorf("parse db config: %w", err)
		}
		poolCfg.MaxConns = int32(cfg.DBMaxConnections())
		pool, err := startup.ConnectDB(poolCfg, 60*time.Second)
		if err != nil {
			return nil, nil, err
		}
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := startup.Migrate(ctx, pool, migrations.Files); err != nil {
			pool.Close()
			return nil, nil, err
		}
		logger.Info("database connected, migrations applied")
		store := tiered.New(repository.NewWidgetConfigRepository(pool))
		return store, func() {
			store.Close()
			pool.Close()
		}, nil

	default:
		if migrateOnly {
			return nil, nil, fmt.Errorf("-migrate needs store_backend=%s", config.StorePostgres)
		}
		store := memory.New()
		return store, func() {}, nil
	}
}

func startEmbeddedPostgres(cfg *config.Config) (*embeddedpostgres.EmbeddedPostgres, error) {
	const (
		port     = 5433
		user     = "chatwidget"
		password = "chatwidget_secret"
		database = "chatwidget"
	)

	dataDir := filepath.Join(".", ".pgdata")
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create pgdata dir: %w", err)
	}

	db := embeddedpostgres.NewDatabase(
		embeddedpostgres.DefaultConfig().
			Port(port).
			Username(user).
			Password(password).
			Database(database).
			DataPath(dataDir).
			RuntimePath(filepath.Join(os.TempDir(), "chatwidget-pg-runtime")),
	)

	logger.Info("starting embedded PostgreSQL...")
	if err := db.Start(); err != nil {
		return nil, fmt.Errorf("start: %w", err)
	}

	cfg.Database.URL = fmt.Sprintf(
		"postgres://%s:%s@localhost:%d/%s?sslmode=disable",
		user, password, port, database,
	)
	logger.Infof("embedded PostgreSQL running on port %d", port)
	return db, nil
}
