package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/mmynk/circles/internal/auth"
	"github.com/mmynk/circles/internal/config"
	"github.com/mmynk/circles/internal/directory"
	"github.com/mmynk/circles/internal/directory/postgres"
	"github.com/mmynk/circles/internal/directory/sqlite"
	"github.com/mmynk/circles/internal/middleware"
	"github.com/mmynk/circles/internal/passcode"
	"github.com/mmynk/circles/internal/rpc"
	"github.com/mmynk/circles/internal/service"
	"github.com/mmynk/circles/internal/session"
	"github.com/mmynk/circles/pkg/logging"
)

func main() {
	// A missing .env is fine; the environment may already be set.
	_ = godotenv.Load()

	cfg := config.Load()
	logger := logging.Setup(cfg.LogLevel)

	if err := run(cfg, logger); err != nil {
		slog.Error("Server failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.AppConfig, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx, cfg.DB)
	if err != nil {
		return fmt.Errorf("failed to initialize directory: %w", err)
	}
	defer store.Close()
	slog.Info("Directory initialized", "driver", cfg.DB.Driver)

	revoker, closeRevoker, err := openRevoker(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeRevoker()

	users := service.NewUserService(store, auth.NewBcryptHasher(0), logger)
	if err := users.Init(ctx); err != nil {
		return err
	}
	groups := service.NewGroupService(store, passcode.NewGenerator()).WithPasscodeAttempts(cfg.PasscodeRetries)
	if err := groups.Init(ctx); err != nil {
		return err
	}

	if cfg.InsecureJWTSecret() {
		slog.Warn("JWT_SECRET is not set, signing tokens with the development secret")
	}
	jwtManager := auth.NewJWTManager(cfg.JWTSecret, cfg.TokenTTL)

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLogger)
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Connect-Protocol-Version", "Connect-Timeout-Ms"},
		ExposedHeaders:   []string{"Connect-Protocol-Version", "Connect-Timeout-Ms"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	rpc.Mount(r,
		rpc.NewAccountHandler(users, jwtManager, revoker, logger),
		rpc.NewCircleHandler(groups),
		middleware.RequireAuth(jwtManager, revoker),
	)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	// Wrap with h2c for HTTP/2 without TLS (required for Connect)
	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           h2c.NewHandler(r, &http2.Server{}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Connect server starting", "address", cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func openStore(ctx context.Context, db config.DBConfig) (directory.Store, error) {
	switch db.Driver {
	case "sqlite":
		store, err := sqlite.New(db.Path)
		if err != nil {
			return nil, err
		}
		return store, nil
	case "postgres":
		if db.URL == "" {
			return nil, errors.New("DATABASE_URL is required for the postgres driver")
		}
		store, err := postgres.Open(ctx, db.URL)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown DB_DRIVER %q", db.Driver)
	}
}

// openRevoker uses Redis when configured so revocations are shared across
// instances, and an in-process list otherwise.
func openRevoker(ctx context.Context, cfg config.AppConfig) (session.Revoker, func(), error) {
	if cfg.RedisAddr == "" {
		slog.Info("Token revocations kept in memory")
		return session.NewMemoryRevoker(), func() {}, nil
	}

	rr := session.NewRedisRevoker(cfg.RedisAddr, cfg.RedisPass)
	if err := rr.Ping(ctx); err != nil {
		rr.Close()
		return nil, nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.RedisAddr, err)
	}
	slog.Info("Token revocations kept in redis", "address", cfg.RedisAddr)
	return rr, func() { rr.Close() }, nil
}
