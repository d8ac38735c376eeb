// Package main is the entry point for the AjouNICE board gateway.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/nailerHeum/AjouNICE/internal/config"
	"github.com/nailerHeum/AjouNICE/internal/database"
	"github.com/nailerHeum/AjouNICE/internal/graph"
	"github.com/nailerHeum/AjouNICE/internal/handlers"
	"github.com/nailerHeum/AjouNICE/internal/mailer"
	"github.com/nailerHeum/AjouNICE/internal/metrics"
	"github.com/nailerHeum/AjouNICE/internal/middleware"
	"github.com/nailerHeum/AjouNICE/internal/pubsub"
	"github.com/nailerHeum/AjouNICE/internal/repository"
	"github.com/nailerHeum/AjouNICE/internal/resolver"
	"github.com/nailerHeum/AjouNICE/internal/routes"
	"github.com/nailerHeum/AjouNICE/internal/service"
	"github.com/nailerHeum/AjouNICE/internal/storage"
	"github.com/nailerHeum/AjouNICE/internal/upstream"
	"github.com/nailerHeum/AjouNICE/pkg/redis"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg := config.Load()
	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	if len(os.Args) > 1 && os.Args[1] == "token" {
		if err := runToken(cfg, os.Args[2:], os.Stdout); err != nil {
			logger.Error("token command failed", "error", err)
			os.Exit(1)
		}
		return
	}

	if err := run(cfg, logger); err != nil {
		logger.Error("gateway failed", "error", err)
		os.Exit(1)
	}
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}

func run(cfg *config.Config, logger *slog.Logger) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	// Initialize database
	db, err := database.Connect(cfg)
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql handle: %w", err)
	}
	defer sqlDB.Close()

	// Initialize Redis
	redisClient, err := redis.NewClient(ctx, cfg)
	if err != nil {
		return err
	}
	defer redisClient.Close()

	// Initialize object storage
	nc, err := nats.Connect(cfg.NATSURL, nats.Name("ajounice-gateway"), nats.MaxReconnects(-1))
	if err != nil {
		return fmt.Errorf("failed to connect to nats: %w", err)
	}
	defer nc.Drain()

	objects, err := storage.NewNATSObjectStore(ctx, nc, cfg.ObjectBucket)
	if err != nil {
		return err
	}
	uploader := storage.NewUploader(objects, cfg.PublicBaseURL, cfg.UploadMaxBytes, logger, m)

	// Initialize mail delivery
	sender, err := newSender(cfg, logger)
	if err != nil {
		return err
	}
	dispatcher := mailer.NewDispatcher(sender, cfg.MailWorkers, cfg.MailQueueSize, logger, m)
	// Workers outlive the signal context so Stop can drain the queue.
	dispatcher.Start(context.WithoutCancel(ctx))

	// Initialize services
	jwtService := service.NewJWTService(cfg.JWTSecret, cfg.JWTExpiry)
	authService := service.NewAuthService(jwtService)

	bus := pubsub.New(pubsub.WithBuffer(cfg.BusBuffer), pubsub.WithLogger(logger), pubsub.WithMetrics(m))

	r := resolver.New(resolver.Deps{
		Stores:   repository.NewStores(db),
		Bus:      bus,
		Uploads:  uploader,
		Mail:     dispatcher,
		Composer: mailer.NewComposer(cfg.MailSiteURL, cfg.MailAdmin),
		Lookup: upstream.NewClient(upstream.Config{
			BaseURL:     cfg.UpstreamBaseURL,
			Timeout:     cfg.UpstreamTimeout,
			MaxAttempts: cfg.UpstreamMaxAttempts,
			RateLimit:   cfg.UpstreamRateLimit,
		}, logger, m),
		Auth:              authService,
		Logger:            logger,
		CompensateOrphans: cfg.UploadCompensateOrphans,
	})

	schema, err := graph.LoadSchema()
	if err != nil {
		return err
	}
	gqlServer := graph.NewServer(graph.NewExecutableSchema(schema, r, logger, m), graph.ServerConfig{
		MaxDepth:            cfg.MaxQueryDepth,
		MaxComplexity:       cfg.MaxQueryComplexity,
		MaxUploadBytes:      cfg.UploadMaxBytes,
		EnableIntrospection: cfg.EnableIntrospection,
		APQCache:            redis.NewQueryCache(redisClient, cfg.APQTTL, logger),
		CheckOrigin:         middleware.OriginChecker(cfg.AllowedOrigins),
	}, authService, logger)

	// Setup router
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.Default()

	routes.Setup(router, routes.Handlers{
		GraphQL: handlers.NewGraphQLHandler(gqlServer, cfg.GraphQLPath),
		Files:   handlers.NewFileHandler(uploader, logger),
		Health: handlers.NewHealthHandler(map[string]handlers.Check{
			"database": sqlDB.PingContext,
			"redis": func(ctx context.Context) error {
				return redisClient.Ping(ctx).Err()
			},
			"nats": func(context.Context) error {
				if !nc.IsConnected() {
					return errors.New("not connected")
				}
				return nil
			},
		}),
	}, cfg, authService, m, reg, logger)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       cfg.IdleTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting board gateway", "port", cfg.Port, "graphql", cfg.GraphQLPath, "environment", cfg.Environment)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)

		bus.Close()
		if stopErr := dispatcher.Stop(shutdownTimeout); stopErr != nil {
			logger.Warn("mail queue not drained", "error", stopErr)
		}
		return err
	})

	return g.Wait()
}

func newSender(cfg *config.Config, logger *slog.Logger) (mailer.Sender, error) {
	if cfg.SMTPHost == "" {
		logger.Warn("SMTP_HOST not set, mail is logged instead of sent")
		return mailer.NewLogSender(logger), nil
	}
	return mailer.NewSMTPSender(mailer.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.MailFrom,
	})
}
