// Command worker runs ingestions submitted as Temporal workflows.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/JoaoPedroMBiofy/ingestor/internal/app"
	"github.com/JoaoPedroMBiofy/ingestor/internal/config"
	"github.com/JoaoPedroMBiofy/ingestor/internal/logging"
	"github.com/JoaoPedroMBiofy/ingestor/internal/server"
	temporalmod "github.com/JoaoPedroMBiofy/ingestor/internal/temporal"

	temporalclient "go.temporal.io/sdk/client"
)

func main() {
	configPath := flag.String("config", "ingestor.yaml", "Config file path")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintln(os.Stderr, "worker:", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	ctx := context.Background()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	logger, err := logging.FromConfig(cfg.Log.Level, cfg.Log.Format, os.Stderr)
	if err != nil {
		return err
	}

	a, err := app.New(ctx, cfg, logger, app.Options{})
	if err != nil {
		return err
	}

	c, err := temporalmod.Dial(cfg.Temporal.Host, cfg.Temporal.Namespace, logger)
	if err != nil {
		a.Close(ctx)
		return err
	}

	w, err := temporalmod.StartWorker(c, cfg.Temporal.TaskQueue, &temporalmod.Activities{
		Ingester: a.Pipeline,
		SpoolDir: cfg.Temporal.SpoolDir,
		Logger:   logger,
	})
	if err != nil {
		c.Close()
		a.Close(ctx)
		return err
	}

	gs := server.NewGracefulServer(&server.HealthConfig{Version: "1.0.0"}, &server.ShutdownConfig{Logger: logger})
	a.RegisterHealthChecks(gs.Health)
	gs.Health.RegisterCheck("temporal", server.TemporalHealthChecker(func(ctx context.Context) error {
		_, err := c.CheckHealth(ctx, &temporalclient.CheckHealthRequest{})
		return err
	}))

	gs.Shutdown.AddHook(server.TemporalWorkerShutdownHook(w.Stop))
	gs.RegisterHook("temporal-client", 25, func(context.Context) error {
		c.Close()
		return nil
	})
	a.RegisterShutdownHooks(gs.Shutdown)

	if err := gs.Start(cfg.Temporal.HealthAddr); err != nil {
		return err
	}
	logger.Info("worker started", "task_queue", cfg.Temporal.TaskQueue, "health", cfg.Temporal.HealthAddr)

	gs.Wait()
	logger.Info("worker stopped")
	return nil
}
