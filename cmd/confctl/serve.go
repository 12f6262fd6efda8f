package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/confengine/internal/config"
	"github.com/alfredjeanlab/confengine/internal/events"
	"github.com/alfredjeanlab/confengine/internal/server"
	"github.com/alfredjeanlab/confengine/internal/store"
	"github.com/alfredjeanlab/confengine/internal/store/memory"
	"github.com/alfredjeanlab/confengine/internal/store/postgres"
	confsync "github.com/alfredjeanlab/confengine/internal/sync"
)

const healthInterval = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:     "serve",
	Short:   "Start the configuration server",
	GroupID: "system",
	Args:    cobra.NoArgs,
	// The server needs no client connection.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	RunE: func(cmd *cobra.Command, args []string) error {
		if inMemory, _ := cmd.Flags().GetBool("memory"); inMemory {
			os.Setenv("CONFENGINE_STORE", config.StoreMemory)
		}

		cfg, err := config.Load()
		if err != nil {
			return err
		}
		logger := newLogger(cfg)
		slog.SetDefault(logger)

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		logger.Info("store ready", "store", cfg.Store)

		publisher := newPublisher(cfg, logger)

		cs := server.NewConfigServer(st, publisher)
		grpcServer, healthServer := server.NewGRPCServer(cs, cfg.AuthToken)

		lis, err := net.Listen("tcp", cfg.GRPCAddr)
		if err != nil {
			publisher.Close()
			st.Close()
			return err
		}
		go func() {
			logger.Info("gRPC server listening", "addr", cfg.GRPCAddr)
			if err := grpcServer.Serve(lis); err != nil {
				logger.Error("gRPC server error", "err", err)
			}
		}()
		go cs.WatchHealth(ctx, healthServer, healthInterval)

		httpServer := &http.Server{
			Addr: cfg.HTTPAddr,
			Handler: cs.NewHTTPHandler(server.HTTPOptions{
				AuthToken:   cfg.AuthToken,
				CORSOrigins: cfg.CORSOrigins,
				Title:       cfg.APITitle,
				Version:     cfg.APIVersion,
			}),
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			logger.Info("HTTP server listening", "addr", cfg.HTTPAddr)
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("HTTP server error", "err", err)
			}
		}()

		scheduler := startSync(ctx, cfg, st, logger)

		if err := publisher.Publish(ctx, events.TopicSystemStarted, events.SystemStarted{
			Version:   cfg.APIVersion,
			StartedAt: time.Now().UTC(),
		}); err != nil {
			logger.Warn("failed to publish startup event", "err", err)
		}
		logger.Info("configuration server started",
			"grpc_addr", cfg.GRPCAddr,
			"http_addr", cfg.HTTPAddr,
			"environment", cfg.Environment,
		)

		<-ctx.Done()
		logger.Info("received signal, shutting down")

		if scheduler != nil {
			scheduler.Stop()
			logger.Info("sync scheduler stopped")
		}

		grpcServer.GracefulStop()
		logger.Info("gRPC server stopped")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", "err", err)
		}
		logger.Info("HTTP server stopped")

		if err := publisher.Publish(shutdownCtx, events.TopicSystemStopped, events.SystemStopped{
			StoppedAt: time.Now().UTC(),
		}); err != nil {
			logger.Warn("failed to publish shutdown event", "err", err)
		}
		if err := publisher.Close(); err != nil {
			logger.Error("error closing publisher", "err", err)
		}
		if err := st.Close(); err != nil {
			logger.Error("error closing store", "err", err)
		}

		logger.Info("shutdown complete")
		return nil
	},
}

// newLogger logs text in development and JSON everywhere else.
func newLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.LogLevel}
	if cfg.IsDevelopment() {
		return slog.New(slog.NewTextHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, opts))
}

func openStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	if cfg.Store == config.StoreMemory {
		return memory.New(), nil
	}
	pg, err := postgres.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	return pg, nil
}

// newPublisher fans events out to the audit log and to whichever buses are
// configured. Bus connection failures are logged and the bus is skipped.
func newPublisher(cfg *config.Config, logger *slog.Logger) events.Publisher {
	pubs := []events.Publisher{events.NewAuditPublisher(logger)}

	if cfg.NATSURL != "" {
		pub, err := events.NewNATSPublisher(cfg.NATSURL)
		if err != nil {
			logger.Error("NATS events disabled", "err", err)
		} else {
			pubs = append(pubs, pub)
			logger.Info("NATS events enabled", "nats_url", cfg.NATSURL)
		}
	} else {
		logger.Info("NATS events disabled (CONFENGINE_NATS_URL not set)")
	}

	if len(cfg.KafkaBrokers) > 0 {
		pubs = append(pubs, events.NewKafkaPublisher(cfg.KafkaBrokers))
		logger.Info("Kafka events enabled", "brokers", cfg.KafkaBrokers)
	}
	return events.NewMultiPublisher(pubs...)
}

// startSync starts the export scheduler when a schedule and at least one
// destination are configured. It returns nil otherwise.
func startSync(ctx context.Context, cfg *config.Config, st store.Store, logger *slog.Logger) *confsync.Scheduler {
	schedule := confsync.Schedule(cfg.SyncSchedule, cfg.SyncInterval)
	if schedule == "" {
		return nil
	}

	var dests []confsync.Destination
	if cfg.SyncS3Bucket != "" {
		s3Dest, err := confsync.NewS3Destination(ctx, confsync.S3Options{
			Bucket:   cfg.SyncS3Bucket,
			Key:      cfg.SyncS3Key,
			Region:   cfg.SyncS3Region,
			Endpoint: cfg.SyncS3Endpoint,
		})
		if err != nil {
			logger.Error("failed to create S3 sync destination", "err", err)
		} else {
			dests = append(dests, s3Dest)
			logger.Info("sync S3 destination enabled", "bucket", cfg.SyncS3Bucket, "key", cfg.SyncS3Key)
		}
	}
	if cfg.SyncGitRepo != "" {
		dests = append(dests, confsync.NewGitDestination(cfg.SyncGitRepo, cfg.SyncGitFile, cfg.SyncGitBranch, logger))
		logger.Info("sync git destination enabled", "repo", cfg.SyncGitRepo, "file", cfg.SyncGitFile)
	}
	if len(dests) == 0 {
		return nil
	}

	scheduler, err := confsync.NewScheduler(st, dests, schedule, logger)
	if err != nil {
		logger.Error("sync disabled", "err", err)
		return nil
	}
	scheduler.Start()
	logger.Info("sync scheduler started", "schedule", schedule)
	return scheduler
}

func init() {
	serveCmd.Flags().Bool("memory", false, "use the in-memory store (data is lost on exit)")
}
