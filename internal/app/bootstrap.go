package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Gunvolt24/batchflow/config"
	cachemem "github.com/Gunvolt24/batchflow/internal/cache/memory"
	"github.com/Gunvolt24/batchflow/internal/domain"
	"github.com/Gunvolt24/batchflow/internal/kafka"
	"github.com/Gunvolt24/batchflow/internal/ports"
	"github.com/Gunvolt24/batchflow/internal/repo/postgres"
	rest "github.com/Gunvolt24/batchflow/internal/transport/http"
	"github.com/Gunvolt24/batchflow/internal/usecase"
	"github.com/Gunvolt24/batchflow/pkg/logger"
	"github.com/Gunvolt24/batchflow/pkg/metrics"
	"github.com/Gunvolt24/batchflow/pkg/telemetry"
	"github.com/Gunvolt24/batchflow/pkg/validate"
	"github.com/gin-gonic/gin"
)

// App — собранное приложение и его внешние интерфейсы (HTTP, брокер).
type App struct {
	Logger     ports.Logger     // логгер
	HTTPServer *http.Server     // HTTP-сервер
	Bus        ports.MessageBus // движок сообщений
	// Subscribe — регистрирует подписки после подключения движка.
	Subscribe       func(ctx context.Context)
	gracefulTimeout time.Duration // время ожидания завершения HTTP-сервера и движка
}

// Cleanup — функция освобождения ресурсов.
type Cleanup func()

// applyGinMode — устанавливает режим Gin по строке;
// неизвестное значение → debug и предупреждение в лог.
func applyGinMode(ctx context.Context, mode string, log ports.Logger) {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "release":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	case "", "debug":
		gin.SetMode(gin.DebugMode)
	default:
		gin.SetMode(gin.DebugMode)
		log.Warnf(ctx, "unknown GIN_MODE=%q, fallback to debug", mode)
	}
}

// EngineConfig — конфигурация движка из секции Engine.
func EngineConfig(c config.Engine) kafka.Config {
	return kafka.Config{
		Enabled:          c.Enabled,
		ConsumersEnabled: c.ConsumersEnabled,
		Broker: kafka.BrokerConfig{
			Brokers:        c.Brokers,
			ClientID:       c.ClientID,
			ConnectTimeout: c.ConnectTimeout,
			Retry: kafka.RetryPolicy{
				Initial:    c.RetryInitial,
				MaxRetries: c.MaxRetries,
			},
		},
	}
}

// ConsumerConfig — параметры подписки сервиса; адреса брокеров берутся из движка.
func ConsumerConfig(c config.Consumer) kafka.ConsumerConfig {
	return kafka.ConsumerConfig{
		GroupID:         c.GroupID,
		BatchSize:       c.BatchSize,
		FlushIntervalMs: c.FlushIntervalMs,
		FromBeginning:   c.FromBeginning,
		FlushRemainder:  c.FlushRemainder,
		MaxFetchBatch:   c.MaxFetchBatch,
		FetchBatchWait:  c.FetchBatchWait,
	}
}

// Bootstrap — собирает зависимости и возвращает приложение, функцию очистки и ошибку.
func Bootstrap(ctx context.Context, cfg *config.Config) (*App, Cleanup, error) {
	// Логгер (dev/prod режим задаётся конфигурацией).
	logg, cleanupLogger, err := logger.NewZapLogger(cfg.Logger.IsProd)
	if err != nil {
		return nil, func() {}, err
	}

	// Регистрация метрик (Prometheus).
	metrics.MustRegister()

	// Пул подключений Postgres
	pool, err := postgres.NewPool(ctx, postgres.PoolConfig{
		DSN:             cfg.Postgres.DSN,
		MaxConns:        cfg.Postgres.MaxConns,
		MaxConnLifetime: cfg.Postgres.MaxConnLifetime,
		MaxConnIdleTime: cfg.Postgres.MaxConnIdleTime,
	})
	if err != nil {
		if cErr := cleanupLogger(); cErr != nil {
			logg.Warnf(ctx, "cleanup logger: %v", cErr)
		}
		return nil, func() {}, fmt.Errorf("postgres: %w", err)
	}

	// Трейсинг OTEL (при включённой конфигурации); по умолчанию — no-op.
	shutdownTrace, err := telemetry.Setup(ctx, telemetry.Config{
		Enabled:     cfg.Tracing.Enabled,
		ServiceName: cfg.Tracing.ServiceName,
		Endpoint:    cfg.Tracing.Endpoint,
		SampleRatio: cfg.Tracing.SampleRatio,
	})
	if err != nil {
		logg.Warnf(ctx, "failed to setup tracing: %v", err)
		shutdownTrace = func(context.Context) error { return nil }
	} else if cfg.Tracing.Enabled {
		logg.Infof(ctx, "otel tracing enabled service=%s endpoint=%s sample=%.2f",
			cfg.Tracing.ServiceName, cfg.Tracing.Endpoint, cfg.Tracing.SampleRatio)
	}

	// Сборка зависимостей доменного слоя.
	seen := cachemem.NewSeenCache(cfg.Cache.Capacity, cfg.Cache.TTL)
	repo := postgres.NewWatchHistoryRepository(pool)
	service := usecase.NewWatchHistoryService(repo, seen, logg, validate.NewEventValidator(), cfg.Consumer.SaveTimeout)

	// Движок сообщений: выключенный режим выбирается внутри New.
	engine := kafka.New(EngineConfig(cfg.Engine), logg)

	// Режим Gin.
	applyGinMode(ctx, cfg.HTTP.GinMode, logg)

	// Имя сервиса для otelgin (только при включённом трейсинге).
	otelServiceName := ""
	if cfg.Tracing.Enabled {
		otelServiceName = cfg.Tracing.ServiceName
	}

	// Роутер и HTTP-сервер.
	httpHandler := rest.NewHandler(service, engine, logg, cfg.HTTP.HandlerTimeout, cfg.Health.StaleAfter)
	router := rest.NewRouter(httpHandler, otelServiceName)

	httpSrv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           router,
		ReadTimeout:       cfg.HTTP.ReadTimeout,
		WriteTimeout:      cfg.HTTP.WriteTimeout,
		ReadHeaderTimeout: cfg.HTTP.ReadHeaderTimeout,
		IdleTimeout:       cfg.HTTP.IdleTimeout,
	}

	topic, consumerCfg := cfg.Consumer.Topic, ConsumerConfig(cfg.Consumer)
	app := &App{
		Logger:     logg,
		HTTPServer: httpSrv,
		Bus:        engine,
		Subscribe: func(ctx context.Context) {
			kafka.Subscribe[domain.WatchEvent](ctx, engine, topic, consumerCfg, service)
		},
		gracefulTimeout: cfg.HTTP.GracefulTimeout,
	}

	// Очистка ресурсов (в обратном порядке).
	cleanup := func() {
		if terr := shutdownTrace(context.Background()); terr != nil {
			logg.Warnf(ctx, "shutdown tracing: %v", terr)
		}
		pool.Close()
		if cerr := cleanupLogger(); cerr != nil {
			logg.Warnf(ctx, "cleanup logger: %v", cerr)
		}
	}

	return app, cleanup, nil
}

// Run — запускает HTTP-сервер, подключает движок и подписки; ждёт отмены контекста
// или ошибки HTTP и останавливает всё.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	// Запуск HTTP-сервера: /healthz доступен и во время подписки.
	go func() {
		a.Logger.Infof(ctx, "http server starting (addr=%s)", a.HTTPServer.Addr)
		if err := a.HTTPServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Недоступный брокер не останавливает сервис: продюсер переподключится
	// при публикации, а упавшая подписка будет видна в /healthz.
	if err := a.Bus.Connect(ctx); err != nil {
		a.Logger.Errorf(ctx, "connect message bus: %v", err)
	}
	if a.Subscribe != nil {
		a.Subscribe(ctx)
	}

	// Ожидание сигнала остановки или фоновой ошибки HTTP.
	var runErr error
	select {
	case <-ctx.Done():
		a.Logger.Infof(ctx, "shutdown requested, starting graceful shutdown")
	case err := <-errCh:
		a.Logger.Warnf(ctx, "background error: %v", err)
		runErr = err
	}

	gt := a.gracefulTimeout
	if gt <= 0 {
		gt = 5 * time.Second
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), gt)
	defer cancel()

	// Сначала HTTP: новые публикации не принимаются.
	if err := a.HTTPServer.Shutdown(shutdownCtx); err != nil {
		a.Logger.Warnf(ctx, "http server shutdown failed: %v", err)
	} else {
		a.Logger.Infof(ctx, "http server stopped gracefully")
	}

	// Остановка движка: таймеры, буферы, продюсер и консьюмеры.
	if err := a.Bus.Disconnect(shutdownCtx); err != nil {
		a.Logger.Warnf(ctx, "message bus disconnect error: %v", err)
	}

	a.Logger.Infof(ctx, "service stopped")
	return runErr
}
