package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xavierca1/linkedin-outreach/internal/app"
	"github.com/xavierca1/linkedin-outreach/internal/config"
	"github.com/xavierca1/linkedin-outreach/internal/infra/queue"
	"github.com/xavierca1/linkedin-outreach/internal/infra/worker"
)

const shutdownTimeout = 15 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger, err := app.NewLogger(cfg.LogLevel, cfg.Environment)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.Build(ctx, cfg, logger, prometheus.DefaultRegisterer)
	if err != nil {
		return err
	}
	defer a.Close()

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           newRouter(a),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("outreach api listening", zap.String("addr", srv.Addr), zap.Bool("in_memory", cfg.InMemory()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	campaigns := worker.NewCampaignWorker(a.Campaigns, a.Schedule, a.Dispatch, cfg.TickInterval, cfg.WorkerParallel, logger.Named("campaign_worker"))
	g.Go(func() error {
		campaigns.Start(ctx)
		return nil
	})

	poller := worker.NewReconcilePoller(a.Reconcile, cfg.PollInterval, cfg.PollBatch, logger.Named("reconcile_poller"))
	g.Go(func() error {
		poller.Start(ctx)
		return nil
	})

	if a.RabbitMQ != nil {
		outcomes := queue.NewWorker(a.RabbitMQ.Ch, a.Reconcile, logger.Named("outcome_worker"))
		g.Go(func() error {
			return outcomes.Start(ctx, queue.QueueName)
		})
	}

	err = g.Wait()
	logger.Info("outreach api stopped", zap.Error(err))
	return err
}
