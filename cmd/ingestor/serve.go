package main

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/JoaoPedroMBiofy/ingestor/internal/api"
	"github.com/JoaoPedroMBiofy/ingestor/internal/server"
)

func newServeCmd(flags *rootFlags) *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP ingestion API",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := flags.build(cmd.Context())
			if err != nil {
				return err
			}
			if listen != "" {
				a.Config.Server.Listen = listen
			}

			health := a.HealthServer()
			srv := api.NewServer(api.Config{
				ListenAddr:    a.Config.Server.Listen,
				BodyLimitMB:   a.Config.Server.BodyLimitMB,
				MaxConcurrent: a.Config.Server.MaxWorkers,
				QueueTimeout:  a.Config.Server.QueueTimeout,
				UploadDir:     a.Config.Ingest.WorkDir,
				Health:        health.Handler(),
				Metrics:       a.Metrics.Handler(),
				Search:        a.Search,
			}, a.Pipeline, a.Logger)

			shutdown := server.NewShutdownHandler(&server.ShutdownConfig{Logger: a.Logger})
			shutdown.AddHook(server.HTTPServerShutdownHook("api", func(ctx context.Context) error {
				health.SetReady(false)
				return srv.Shutdown(ctx)
			}))
			a.RegisterShutdownHooks(shutdown)
			shutdown.Start()

			errCh := make(chan error, 1)
			go func() { errCh <- srv.Run() }()
			health.SetReady(true)

			select {
			case err := <-errCh:
				shutdown.Shutdown()
				shutdown.Wait()
				return err
			case <-shutdown.Done():
				if err := <-errCh; err != nil && !errors.Is(err, context.Canceled) {
					return err
				}
				return nil
			}
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "Listen address (overrides server.listen)")
	return cmd
}
