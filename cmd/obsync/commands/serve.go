package commands

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/obsync/obsync/internal/logger"
	"github.com/obsync/obsync/pkg/api"
	"github.com/obsync/obsync/pkg/auth"
	"github.com/obsync/obsync/pkg/blob"
	"github.com/obsync/obsync/pkg/chunkstore"
	fschunks "github.com/obsync/obsync/pkg/chunkstore/fs"
	memchunks "github.com/obsync/obsync/pkg/chunkstore/memory"
	s3chunks "github.com/obsync/obsync/pkg/chunkstore/s3"
	"github.com/obsync/obsync/pkg/config"
	"github.com/obsync/obsync/pkg/metrics"
	"github.com/obsync/obsync/pkg/realtime"
	"github.com/obsync/obsync/pkg/store"
	syncsvc "github.com/obsync/obsync/pkg/sync"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the Obsync server",
	Long: `Start the Obsync server with the specified configuration.

The server runs in the foreground; use a process supervisor for daemonization.

Examples:
  # Start with the default config location
  obsync serve

  # Start with a custom config file
  obsync serve --config /etc/obsync/config.yaml

  # Start with environment variable overrides
  OBSYNC_LOGGING_LEVEL=DEBUG obsync serve`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := store.New(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to open metadata store: %w", err)
	}
	defer func() {
		if err := st.Close(); err != nil {
			logger.Error("metadata store close error", "error", err)
		}
	}()

	chunks, err := openChunkStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to open blob store: %w", err)
	}
	defer func() {
		if err := chunks.Close(); err != nil {
			logger.Error("blob store close error", "error", err)
		}
	}()

	gate := auth.NewGate(st)
	bus := realtime.NewBus(
		realtime.WithBufferSize(cfg.Realtime.BufferSize),
		realtime.WithDropHook(func() { metrics.RealtimeDropped.Inc() }),
	)

	server, err := api.NewServer(cfg.API, api.Deps{
		Store:  st,
		Chunks: chunks,
		Gate:   gate,
		Sync:   syncsvc.NewService(st, bus, gate),
		Blobs:  blob.NewService(st, chunks, gate),
		Bus:    bus,
	})
	if err != nil {
		return err
	}

	logger.Info("obsync server starting",
		"version", Version,
		"database", cfg.Database.Type,
		"blobstore", cfg.BlobStore.Type,
		"port", cfg.API.Port,
	)

	return server.Start(ctx)
}

// openChunkStore builds the configured chunk store backend.
func openChunkStore(ctx context.Context, cfg *config.Config) (chunkstore.Store, error) {
	switch cfg.BlobStore.Type {
	case "fs":
		return fschunks.New(fschunks.Config{BasePath: cfg.BlobStore.Fs.Root})
	case "s3":
		return s3chunks.New(ctx, cfg.BlobStore.S3)
	case "memory":
		return memchunks.New(), nil
	default:
		return nil, fmt.Errorf("unsupported blobstore type: %s", cfg.BlobStore.Type)
	}
}
