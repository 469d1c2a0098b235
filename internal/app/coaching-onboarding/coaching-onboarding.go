package coachingonboarding

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/magabrotheeeer/coaching-onboarding/internal/cache"
	"github.com/magabrotheeeer/coaching-onboarding/internal/config"
	"github.com/magabrotheeeer/coaching-onboarding/internal/http/handlers/health"
	"github.com/magabrotheeeer/coaching-onboarding/internal/lib/jwt"
	"github.com/magabrotheeeer/coaching-onboarding/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/coaching-onboarding/internal/lib/sl"
	"github.com/magabrotheeeer/coaching-onboarding/internal/metrics"
	"github.com/magabrotheeeer/coaching-onboarding/internal/migrations"
	enrollmentservice "github.com/magabrotheeeer/coaching-onboarding/internal/services/enrollment"
	gatewayservice "github.com/magabrotheeeer/coaching-onboarding/internal/services/gateway"
	lifecycleservice "github.com/magabrotheeeer/coaching-onboarding/internal/services/lifecycle"
	"github.com/magabrotheeeer/coaching-onboarding/internal/storage/memory"
	"github.com/magabrotheeeer/coaching-onboarding/internal/storage/repository"
)

// Storage — хранилище зачислений: PostgreSQL или память процесса.
type Storage interface {
	enrollmentservice.Repository
	gatewayservice.Repository
	lifecycleservice.ClientRepository
	health.Pinger
}

// App — HTTP-сервер сервиса зачислений вместе с фоновым планировщиком статусов.
type App struct {
	server    *http.Server
	logger    *slog.Logger
	lifecycle *lifecycleservice.LifecycleService
	closers   []func() error
}

// Deps — собранные зависимости приложения. Используется App и тестами сценариев.
type Deps struct {
	Storage   Storage
	Cache     *cache.Cache
	Publisher enrollmentservice.Publisher
	Metrics   *metrics.Metrics
	Now       func() time.Time
}

// NewServices создаёт сервисы поверх готовых зависимостей.
func NewServices(cfg *config.Config, logger *slog.Logger, d Deps) (Services, *lifecycleservice.LifecycleService) {
	enrollment := enrollmentservice.NewEnrollmentService(d.Storage, d.Cache, d.Publisher, d.Metrics, logger, enrollmentservice.Options{
		AllowAnyTransition: cfg.Enrollment.AllowAnyTransition,
		PlanDurationWeeks:  cfg.Enrollment.PlanDurationWeeks,
		Location:           cfg.Enrollment.Location(),
		ClaimBaseURL:       cfg.Enrollment.ClaimBaseURL,
		ClaimTTL:           cfg.Enrollment.ClaimTTL,
		Now:                d.Now,
	})
	gateway := gatewayservice.NewGatewayService(
		d.Storage,
		cache.NewSessionStore(d.Cache),
		d.Cache,
		enrollment,
		jwt.NewJWTMaker(cfg.JWTSecretKey, cfg.TokenTTL),
		d.Metrics,
		logger,
		cfg.Redis.PlanCacheTTL,
	)
	lifecycle := lifecycleservice.NewLifecycleService(d.Storage, enrollment, logger, d.Now)

	return Services{
		Gateway:    gateway,
		Enrollment: enrollment,
		Checks: map[string]health.Pinger{
			"storage": d.Storage,
			"redis":   d.Cache,
		},
	}, lifecycle
}

// New подключает хранилище, Redis и RabbitMQ и собирает HTTP-сервер.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	const op = "app.coaching.New"
	app := &App{logger: logger}

	storage, err := app.openStorage(cfg)
	if err != nil {
		app.close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	cacheRedis, err := cache.InitServer(ctx, cfg.Redis)
	if err != nil {
		app.close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	app.closers = append(app.closers, cacheRedis.Close)

	publisher, err := app.openPublisher(cfg)
	if err != nil {
		app.close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	svc, lifecycle := NewServices(cfg, logger, Deps{
		Storage:   storage,
		Cache:     cacheRedis,
		Publisher: publisher,
		Metrics:   metrics.New(prometheus.DefaultRegisterer),
	})
	if err := svc.Enrollment.EnsureAdmin(ctx, cfg.Admin.Email, cfg.Admin.Password); err != nil {
		app.close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := lifecycle.Schedule(ctx, cfg.Enrollment.LifecycleSchedule); err != nil {
		app.close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	app.lifecycle = lifecycle

	router := chi.NewRouter()
	RegisterRoutes(router, logger, svc, cfg.RateLimit)

	app.server = &http.Server{
		Addr:         cfg.AddressHTTP,
		Handler:      router,
		ReadTimeout:  cfg.TimeoutHTTP,
		WriteTimeout: cfg.TimeoutHTTP,
		IdleTimeout:  cfg.IdleTimeout,
	}
	return app, nil
}

func (a *App) openStorage(cfg *config.Config) (Storage, error) {
	if cfg.StorageConnectionString == "" {
		a.logger.Warn("storage_connection_string is empty, using in-memory storage")
		return memory.New(), nil
	}
	db, err := repository.New(cfg.StorageConnectionString)
	if err != nil {
		return nil, err
	}
	if err := migrations.Run(db.DB, cfg.MigrationsPath); err != nil {
		if cerr := db.Close(); cerr != nil {
			a.logger.Error("failed to close storage", sl.Err(cerr))
		}
		return nil, err
	}
	a.closers = append(a.closers, db.Close)
	return db, nil
}

func (a *App) openPublisher(cfg *config.Config) (enrollmentservice.Publisher, error) {
	if cfg.RabbitMQ.URL == "" {
		a.logger.Warn("rabbitmq url is empty, events are not published")
		return rabbitmq.NopPublisher{}, nil
	}
	conn, err := rabbitmq.Connect(cfg.RabbitMQ.URL, cfg.RabbitMQ.MaxRetries, cfg.RabbitMQ.RetryDelay)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, conn.Close)
	ch, err := rabbitmq.SetupChannel(conn, cfg.RabbitMQ.Exchange, rabbitmq.CoachingQueues())
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, ch.Close)
	return rabbitmq.NewPublisher(ch, cfg.RabbitMQ.Exchange), nil
}

// close освобождает ресурсы в обратном порядке открытия.
func (a *App) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Error("failed to close resource", sl.Err(err))
		}
	}
	a.closers = nil
}

// Run запускает HTTP-сервер и планировщик и блокируется до отмены ctx.
func (a *App) Run(ctx context.Context) error {
	a.lifecycle.Start()

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("HTTP server starting on", slog.String("address", a.server.Addr))
		err := a.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			errCh <- nil
		} else {
			errCh <- err
		}
	}()

	var err error
	select {
	case err = <-errCh:
	case <-ctx.Done():
		timeoutCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		a.logger.Info("shutting down HTTP server gracefully")
		err = a.server.Shutdown(timeoutCtx)
		a.lifecycle.Stop(timeoutCtx)
	}
	a.close()
	return err
}
