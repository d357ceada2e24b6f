package questgen

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/streadway/amqp"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/magabrotheeeer/questgen/internal/config"
	"github.com/magabrotheeeer/questgen/internal/lib/jwt"
	"github.com/magabrotheeeer/questgen/internal/lib/metrics"
	"github.com/magabrotheeeer/questgen/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/questgen/internal/lib/sl"
	"github.com/magabrotheeeer/questgen/internal/services/auth"
	"github.com/magabrotheeeer/questgen/internal/services/generator"
	"github.com/magabrotheeeer/questgen/internal/services/notification"
	"github.com/magabrotheeeer/questgen/internal/services/papers"
	"github.com/magabrotheeeer/questgen/internal/services/subscription"
	"github.com/magabrotheeeer/questgen/internal/services/usage"
	"github.com/magabrotheeeer/questgen/internal/session"
	"github.com/magabrotheeeer/questgen/internal/storage/repository"
)

// App представляет HTTP-приложение и gRPC health-сервер.
type App struct {
	server     *http.Server
	grpcServer *grpc.Server
	health     *health.Server
	listener   net.Listener
	logger     *slog.Logger
	store      kvStore
	conn       *amqp.Connection
	ch         *amqp.Channel
}

// New собирает зависимости приложения по конфигу.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	app := &App{logger: logger, store: store}

	m := metrics.New(prometheus.DefaultRegisterer)

	var notifier subscription.Notifier
	if cfg.RabbitMQURL != "" {
		conn, err := rabbitmq.Connect(ctx, cfg.RabbitMQ, logger)
		if err != nil {
			app.close()
			return nil, fmt.Errorf("failed to connect RabbitMQ: %w", err)
		}
		app.conn = conn
		ch, err := rabbitmq.OpenChannel(conn, cfg.RabbitMQPrefetch, rabbitmq.GetNotificationQueues())
		if err != nil {
			app.close()
			return nil, fmt.Errorf("failed to setup RabbitMQ channel: %w", err)
		}
		app.ch = ch
		notifier = notification.NewPublisher(ch, logger, m)
	} else {
		logger.Warn("rabbitmq is not configured, notifications are only logged")
		notifier = notification.NewLogNotifier(logger, m)
	}

	gen, err := generator.New(ctx, cfg.Generator, logger)
	if err != nil {
		app.close()
		return nil, err
	}

	repo := repository.New(store, logger)
	router := chi.NewRouter()
	RegisterRoutes(router, logger, buildServices(cfg, repo, gen, notifier, m, logger))

	app.server = &http.Server{
		Addr:         cfg.AddressHTTP,
		Handler:      router,
		ReadTimeout:  cfg.TimeoutHTTP,
		WriteTimeout: cfg.TimeoutHTTP,
		IdleTimeout:  cfg.IdleTimeout,
	}

	if cfg.AddressGRPC != "" {
		lis, err := net.Listen("tcp", cfg.AddressGRPC)
		if err != nil {
			app.close()
			return nil, err
		}
		app.listener = lis
		app.health = health.NewServer()
		app.grpcServer = grpc.NewServer()
		healthpb.RegisterHealthServer(app.grpcServer, app.health)
	}

	return app, nil
}

func buildServices(cfg *config.Config, repo *repository.Storage, gen generator.Generator, notifier subscription.Notifier, m *metrics.Metrics, logger *slog.Logger) Services {
	sessions := session.NewManager()
	subscriptionService := subscription.New(repo, notifier, sessions, m, logger)
	papersService := papers.New(repo, gen, usage.NewCounter(repo, logger), sessions, m, logger)
	jwtMaker := jwt.NewJWTMaker(cfg.JWTSecretKey, cfg.TokenTTL)

	return Services{
		Auth:         auth.New(repo, jwtMaker, subscriptionService, sessions, cfg.AdminEmails, logger),
		Subscription: subscriptionService,
		Papers:       papersService,
		Repository:   repo,
		RateLimit:    cfg.RateLimit,
	}
}

// Run запускает серверы и останавливает их по отмене ctx.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 2)
	go func() {
		a.logger.Info("HTTP server starting on", slog.String("address", a.server.Addr))
		err := a.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			errCh <- nil
		} else {
			errCh <- err
		}
	}()

	if a.grpcServer != nil {
		go func() {
			a.logger.Info("gRPC health service listening on", slog.String("address", a.listener.Addr().String()))
			errCh <- a.grpcServer.Serve(a.listener)
		}()
		a.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	}

	select {
	case err := <-errCh:
		if a.grpcServer != nil {
			a.grpcServer.Stop()
		}
		a.close()
		return err
	case <-ctx.Done():
		timeoutCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		a.logger.Info("shutting down HTTP server gracefully")
		if a.grpcServer != nil {
			a.health.Shutdown()
			a.grpcServer.GracefulStop()
		}
		err := a.server.Shutdown(timeoutCtx)
		a.close()
		return err
	}
}

func (a *App) close() {
	if a.ch != nil {
		if err := a.ch.Close(); err != nil {
			a.logger.Error("failed to close channel", sl.Err(err))
		}
	}
	if a.conn != nil {
		if err := a.conn.Close(); err != nil {
			a.logger.Error("failed to close connection", sl.Err(err))
		}
	}
	if err := a.store.Close(); err != nil {
		a.logger.Error("failed to close storage", sl.Err(err))
	}
}
