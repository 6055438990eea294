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

	"github.com/nats-io/nats.go"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/MarioTrazzi/portal-moncoes-sub000/internal/client"
	"github.com/MarioTrazzi/portal-moncoes-sub000/internal/config"
	"github.com/MarioTrazzi/portal-moncoes-sub000/internal/handler"
	"github.com/MarioTrazzi/portal-moncoes-sub000/internal/platform/database"
	"github.com/MarioTrazzi/portal-moncoes-sub000/internal/platform/logger"
	"github.com/MarioTrazzi/portal-moncoes-sub000/internal/platform/tracing"
	"github.com/MarioTrazzi/portal-moncoes-sub000/internal/repository"
	"github.com/MarioTrazzi/portal-moncoes-sub000/internal/repository/memory"
	"github.com/MarioTrazzi/portal-moncoes-sub000/internal/service"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New(logger.Config{
		Level:       cfg.Service.LogLevel,
		Environment: cfg.Service.Environment,
		ServiceName: cfg.Service.Name,
		Version:     cfg.Service.Version,
	})

	log.Info().
		Str("service", cfg.Service.Name).
		Str("version", cfg.Service.Version).
		Str("environment", cfg.Service.Environment).
		Str("store", cfg.Database.Driver).
		Msg("Starting Portal de Monções service")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracing, err := tracing.Init(ctx, tracing.Config{
		Endpoint:    cfg.Tracing.Endpoint,
		ServiceName: cfg.Service.Name,
		Version:     cfg.Service.Version,
		Environment: cfg.Service.Environment,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize tracing")
	}
	if cfg.Tracing.Enabled() {
		log.Info().Str("endpoint", cfg.Tracing.Endpoint).Msg("Tracing enabled")
	}

	// Initialize store
	var store repository.Store
	switch cfg.Database.Driver {
	case "memory":
		mem := memory.NewStore()
		seedDemoDirectory(mem)
		store = mem
		log.Warn().Msg("Using in-memory store; data is lost on restart")
	default:
		db, err := database.New(ctx, database.Config{
			Host:        cfg.Database.Host,
			Port:        cfg.Database.Port,
			User:        cfg.Database.User,
			Password:    cfg.Database.Password,
			Database:    cfg.Database.Database,
			SSLMode:     cfg.Database.SSLMode,
			MaxConns:    cfg.Database.MaxConns,
			MinConns:    cfg.Database.MinConns,
			MaxConnTime: cfg.Database.MaxConnTime,
			MaxIdleTime: cfg.Database.MaxIdleTime,
			HealthCheck: cfg.Database.HealthCheck,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to database")
		}
		defer db.Close()
		log.Info().Msg("Database connection established")

		if cfg.Database.AutoMigrate {
			if err := database.Migrate(ctx, db); err != nil {
				log.Fatal().Err(err).Msg("Failed to apply migrations")
			}
			log.Info().Msg("Database migrations applied")
		}
		store = repository.NewPostgresStore(db)
	}

	// Notification events
	var nc *nats.Conn
	if cfg.NATS.URL != "" {
		nc, err = nats.Connect(cfg.NATS.URL, nats.Name(cfg.Service.Name))
		if err != nil {
			log.Warn().Err(err).Str("url", cfg.NATS.URL).Msg("NATS unavailable; notification events disabled")
			nc = nil
		} else {
			defer nc.Drain()
			log.Info().Str("url", cfg.NATS.URL).Msg("NATS connection established")
		}
	}
	publisher, err := client.NewNotificationPublisher(nc, log.Component("publisher").Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create notification publisher")
	}

	// E-mail
	var mailer client.Mailer
	if cfg.SMTP.Host != "" {
		mailer, err = client.NewSMTPMailer(client.SMTPConfig{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
			From:     cfg.SMTP.From,
		}, log.Component("mailer").Logger)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create SMTP mailer")
		}
	} else {
		mailer = client.NewLogMailer(log.Component("mailer").Logger)
		log.Warn().Msg("SMTP_HOST not set; e-mails are only logged")
	}

	// Attachment storage
	var blobs client.BlobStore
	if cfg.Storage.Endpoint != "" {
		blobs, err = client.NewMinioStorage(ctx, client.StorageConfig{
			Endpoint:  cfg.Storage.Endpoint,
			AccessKey: cfg.Storage.AccessKey,
			SecretKey: cfg.Storage.SecretKey,
			Bucket:    cfg.Storage.Bucket,
			UseSSL:    cfg.Storage.UseSSL,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to object storage")
		}
		log.Info().Str("endpoint", cfg.Storage.Endpoint).Str("bucket", cfg.Storage.Bucket).Msg("Object storage ready")
	} else {
		blobs = client.NewMemoryStorage()
		log.Warn().Msg("STORAGE_ENDPOINT not set; attachments are kept in memory")
	}

	// Initialize services
	services := service.New(service.Options{
		Store:                  store,
		Publisher:              publisher,
		Mailer:                 mailer,
		Blobs:                  blobs,
		Log:                    log,
		PublicBaseURL:          cfg.Service.PublicBaseURL,
		QuoteValidityDays:      cfg.Workflow.QuoteValidityDays,
		MaxSignedDocumentBytes: cfg.Workflow.MaxSignedDocumentBytes,
	})

	// HTTP server
	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      handler.NewHTTPHandler(services, log).Routes(cfg.Server.AllowedOrigins),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info().Int("port", cfg.Server.Port).Msg("Starting HTTP server")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("HTTP server failed")
		}
	}()

	// gRPC server
	grpcHandler := handler.NewGRPCHandler(services, log)
	grpcServer := grpc.NewServer(grpc.UnaryInterceptor(grpcHandler.UnaryInterceptor()))
	handler.RegisterServiceOrdersServer(grpcServer, grpcHandler)
	healthServer := health.NewServer()
	healthServer.SetServingStatus(handler.ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	reflection.Register(grpcServer)

	grpcListener, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Server.GRPCPort))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create gRPC listener")
	}

	go func() {
		log.Info().Int("port", cfg.Server.GRPCPort).Msg("Starting gRPC server")
		if err := grpcServer.Serve(grpcListener); err != nil {
			log.Error().Err(err).Msg("gRPC server failed")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	healthServer.Shutdown()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}
	grpcServer.GracefulStop()

	// Let queued e-mails finish before the process exits.
	services.Wait()

	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Tracing shutdown failed")
	}

	log.Info().Msg("Server stopped")
}
