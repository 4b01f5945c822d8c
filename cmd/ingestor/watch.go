package main

import (
	"github.com/spf13/cobra"

	"github.com/JoaoPedroMBiofy/ingestor/internal/chunk"
	"github.com/JoaoPedroMBiofy/ingestor/internal/ingest"
	"github.com/JoaoPedroMBiofy/ingestor/internal/server"
	"github.com/JoaoPedroMBiofy/ingestor/internal/watch"
)

func newWatchCmd(flags *rootFlags) *cobra.Command {
	var f ingestFlags

	cmd := &cobra.Command{
		Use:   "watch <dir>",
		Short: "Ingest every PDF dropped into a directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := flags.build(cmd.Context())
			if err != nil {
				return err
			}

			w, err := watch.New(args[0], a.Pipeline, watch.Options{
				Request: ingest.Request{
					Collection: f.collection,
					Strategy:   chunk.Strategy(f.strategy),
					Mode:       ingest.Mode(f.mode),
				},
			}, a.Logger)
			if err != nil {
				a.Close(cmd.Context())
				return err
			}

			shutdown := server.NewShutdownHandler(&server.ShutdownConfig{Logger: a.Logger})
			shutdown.AddHook(server.WatcherShutdownHook(w.Close))
			a.RegisterShutdownHooks(shutdown)
			shutdown.Start()

			a.Logger.Info("watching inbox", "dir", args[0])
			runErr := w.Run(cmd.Context())

			shutdown.Shutdown()
			shutdown.Wait()
			return runErr
		},
	}
	f.register(cmd)
	return cmd
}
