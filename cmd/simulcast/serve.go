package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/narwhalmedia/simulcast/internal/ingestion"
	"github.com/narwhalmedia/simulcast/pkg/interfaces"
	"github.com/narwhalmedia/simulcast/pkg/logger"
)

const (
	healthService   = "simulcast"
	healthInterval  = 15 * time.Second
	shutdownTimeout = 30 * time.Second
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the scheduled ingestion loop and the gRPC health endpoint",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := ctx.ensureApp(cmd.Context())
			if err != nil {
				return err
			}
			if err := a.migrate(); err != nil {
				return err
			}
			return serve(cmd.Context(), a)
		},
	}
}

func serve(ctx context.Context, a *app) error {
	log := a.logger

	grpcServer := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			logger.UnaryRecoveryInterceptor(log),
			logger.UnaryServerInterceptor(log),
		),
		grpc.ChainStreamInterceptor(
			logger.StreamRecoveryInterceptor(log),
			logger.StreamServerInterceptor(log),
		),
	)
	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus(healthService, grpc_health_v1.HealthCheckResponse_SERVING)
	reflection.Register(grpcServer)

	addr := fmt.Sprintf(":%d", a.cfg.Service.GRPCPort)
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	scheduler := ingestion.NewScheduler(a.job, a.cfg.Ingestion.Interval, log)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("gRPC server starting", interfaces.String("address", addr))
		return grpcServer.Serve(lis)
	})
	g.Go(func() error {
		return scheduler.Run(gctx)
	})
	g.Go(func() error {
		watchHealth(gctx, a, healthServer)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down")
		stopped := make(chan struct{})
		go func() {
			grpcServer.GracefulStop()
			close(stopped)
		}()
		select {
		case <-stopped:
		case <-time.After(shutdownTimeout):
			grpcServer.Stop()
		}
		return nil
	})

	err = g.Wait()
	if errors.Is(err, context.Canceled) || errors.Is(err, grpc.ErrServerStopped) {
		err = nil
	}
	log.Info("Simulcast service stopped")
	return err
}

// watchHealth flips the serving status when the database or the NATS connection drops.
func watchHealth(ctx context.Context, a *app, hs *health.Server) {
	ticker := time.NewTicker(healthInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			hs.Shutdown()
			return
		case <-ticker.C:
			status := grpc_health_v1.HealthCheckResponse_SERVING
			if err := ping(ctx, a); err != nil {
				a.logger.Warn("Health check failed", interfaces.Error(err))
				status = grpc_health_v1.HealthCheckResponse_NOT_SERVING
			}
			hs.SetServingStatus(healthService, status)
		}
	}
}

func ping(ctx context.Context, a *app) error {
	sqlDB, err := a.db.DB()
	if err != nil {
		return err
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if a.nats != nil {
		if err := a.nats.Health(ctx); err != nil {
			return fmt.Errorf("nats: %w", err)
		}
	}
	return nil
}
