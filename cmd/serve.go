package cmd

import (
	"context"

	"github.com/eisenwinter/mdqd/api"
	"github.com/eisenwinter/mdqd/mdq"
	"github.com/eisenwinter/mdqd/metadata"
	"github.com/eisenwinter/mdqd/signing"
	"github.com/eisenwinter/mdqd/telemetry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveCommand = cobra.Command{
	Use:   "serve",
	Short: "starts the http server",
	Long:  `Loads the client metadata, keeps it refreshed and serves the metadata query endpoint`,
	Run: func(cmd *cobra.Command, args []string) {
		//this is our composite root
		metrics := telemetry.New()

		store := metadata.NewStore()
		source := mustResolveSource()
		defer closeSource(source)
		refresher := metadata.NewRefresher(
			TopLevelLogger.Named("refresher"),
			source,
			store,
			LoadedConfig.Metadata.RefreshInterval,
			LoadedConfig.Metadata.LoadTimeout,
		).WithRecorder(metrics)

		signer := mustResolveSigner()
		validator := mustResolveValidator(signer)
		handler := mdq.NewHandler(
			TopLevelLogger.Named("mdq"),
			store,
			validator,
			signer,
			refresher.Interval(),
		).WithRecorder(metrics)

		deps := api.Dependencies{
			Handler:  handler,
			Snapshot: store,
			Recorder: metrics,
			Metrics:  metrics.Handler(),
		}
		if local, ok := signer.(*signing.LocalSigner); ok {
			deps.Keys = local
		}

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()
		started := make(chan struct{})
		go refresher.Run(ctx, started)
		<-started

		server, err := api.NewServer(LoadedConfig, TopLevelLogger.Named("server"), deps)
		if err != nil {
			TopLevelLogger.Fatal("Failed to create server", zap.Error(err))
		}
		if err := server.Start(ctx); err != nil {
			TopLevelLogger.Error("Server stopped with error", zap.Error(err))
		}
		TopLevelLogger.Info("Shutdown complete")
	},
}
