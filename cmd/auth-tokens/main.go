package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/pribylovaa/auth-tokens/internal/config"
	httpapi "github.com/pribylovaa/auth-tokens/internal/http"
	"github.com/pribylovaa/auth-tokens/internal/metrics"
	"github.com/pribylovaa/auth-tokens/internal/notify"
	"github.com/pribylovaa/auth-tokens/internal/service"
	"github.com/pribylovaa/auth-tokens/internal/storage"
	"github.com/pribylovaa/auth-tokens/internal/storage/postgres"
	"github.com/pribylovaa/auth-tokens/internal/storage/redis"
)

// Константы для определения окружения.
const (
	envLocal = "local"
	envDev   = "dev"
	envProd  = "prod"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "path to config file")
	flag.Parse()

	cfg := config.MustLoad(configPath)

	log := setupLogger(cfg.Env)
	slog.SetDefault(log)
	log.Info("starting application", "env", cfg.Env, "tokens_backend", cfg.Tokens.Backend)

	// Корневой контекст по сигналам.
	rootCtx, rootCancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer rootCancel()

	// Подключение к БД c таймаутом.
	dbCtx, dbCancel := context.WithTimeout(rootCtx, 10*time.Second)
	pg, err := postgres.New(dbCtx, cfg.DB.DatabaseURL)
	dbCancel()
	if err != nil {
		log.Error("postgres_connect_failed", slog.String("err", err.Error()))
		os.Exit(1)
	}
	log.Info("postgres_connected")

	if !cfg.DB.SkipMigrations {
		if err := pg.Migrate(rootCtx); err != nil {
			log.Error("migrations_failed", slog.String("err", err.Error()))
			pg.Close()
			os.Exit(1)
		}
		log.Info("migrations_applied")
	}

	tokens, err := openTokenStore(rootCtx, cfg.Tokens, pg)
	if err != nil {
		log.Error("token_store_open_failed", slog.String("err", err.Error()))
		pg.Close()
		os.Exit(1)
	}

	// Сервис.
	m := metrics.New(prometheus.DefaultRegisterer)

	srvc := service.New(pg, tokens, cfg.Auth)
	srvc.SetSender(notify.NewLogSender(cfg.HTTP.PublicURL, cfg.HTTP.BasePath))
	srvc.SetMetrics(m)
	log.Info("service_initialized")

	var ready atomic.Bool

	handler := httpapi.NewRouter(srvc, httpapi.Options{
		Logger:   log,
		Timeout:  cfg.Timeouts.Service,
		BasePath: cfg.HTTP.BasePath,
		Metrics:  m,
		Ready: func(ctx context.Context) error {
			if !ready.Load() {
				return errNotReady
			}
			return pingStores(ctx, pg, tokens)
		},
	})

	httpAddr := cfg.HTTP.Addr()
	httpSrv := &http.Server{
		Addr:              httpAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	// Фоновая очистка просроченных токенов.
	startTokenJanitor(rootCtx, tokens, log, cfg.Tokens.JanitorPeriod)

	serveErrCh := make(chan error, 1)
	go func() {
		log.Info("http_listen_start", slog.String("addr", httpAddr))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErrCh <- err
		}
		close(serveErrCh)
	}()

	ready.Store(true)

	// Ожидание сигнала завершения или фатальной ошибки сервера.
	select {
	case <-rootCtx.Done():
		log.Info("shutdown_requested")
	case err := <-serveErrCh:
		if err != nil {
			log.Error("http_serve_failed", slog.String("err", err.Error()))
		}
	}

	ready.Store(false)

	// Graceful stop с таймаутом.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Warn("http_force_stop", slog.String("err", err.Error()))
		_ = httpSrv.Close()
	}
	shutdownCancel()

	// Явная очистка перед выходом.
	rootCancel()
	if cfg.Tokens.Backend != config.TokensBackendPostgres {
		tokens.Close()
	}
	pg.Close()

	log.Info("service_stopped")
}

var errNotReady = errors.New("not ready")

// pinger — хранилище, умеющее проверять соединение.
type pinger interface {
	Ping(ctx context.Context) error
}

// pingStores проверяет postgres и, если он отдельный, хранилище токенов.
func pingStores(ctx context.Context, pg *postgres.Storage, tokens storage.TokenStorage) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := pg.Ping(ctx); err != nil {
		return err
	}
	if p, ok := tokens.(pinger); ok && p != pinger(pg) {
		return p.Ping(ctx)
	}
	return nil
}

// openTokenStore выбирает хранилище токенов по конфигурации.
// Для postgres используется тот же пул, что и для пользователей.
func openTokenStore(ctx context.Context, cfg config.TokensConfig, pg *postgres.Storage) (storage.TokenStorage, error) {
	switch cfg.Backend {
	case config.TokensBackendRedis:
		rctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()

		st, err := redis.New(rctx, cfg.RedisURL, cfg.RedisPrefix)
		if err != nil {
			return nil, err
		}
		slog.Info("redis_connected")
		return st, nil
	default:
		return pg, nil
	}
}

// setupLogger настраивает slog по окружению.
func setupLogger(env string) *slog.Logger {
	var log *slog.Logger

	switch env {
	case envLocal:
		log = slog.New(
			slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case envDev:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case envProd:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	default:
		log = slog.New(
			slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	}

	return log
}

// startTokenJanitor запускает фоновую задачу, которая периодически удаляет
// просроченные токены из хранилища с помощью DeleteExpiredTokens.
func startTokenJanitor(ctx context.Context, tokens storage.TokenStorage, log *slog.Logger, period time.Duration) {
	if period <= 0 {
		return
	}

	go func() {
		t := time.NewTicker(period)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				if err := tokens.DeleteExpiredTokens(ctx, time.Now().UTC()); err != nil {
					log.Error("token_janitor_failed", slog.String("err", err.Error()))
				}
			}
		}
	}()
}
