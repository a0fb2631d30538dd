// Package serve implements the long-running service command: job queues,
// cron scheduler and the HTTP API.
package serve

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/soundscout/soundscout-go/internal/conf"
	"github.com/soundscout/soundscout-go/internal/logging"
	"github.com/soundscout/soundscout-go/internal/runtime"
)

const shutdownTimeout = 45 * time.Second

// Command creates the serve command.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the ingestion service",
		Long:  "Start the job queues, the workflow scheduler and the HTTP API, and run until interrupted.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(settings)
		},
	}

	cmd.Flags().StringVar(&settings.API.Host, "host", settings.API.Host, "HTTP listen host")
	cmd.Flags().IntVar(&settings.API.Port, "port", settings.API.Port, "HTTP listen port")

	return cmd
}

func runServe(settings *conf.Settings) error {
	logger := logging.ForService("serve")

	app, err := runtime.Bootstrap(settings)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app.StartQueues(ctx)
	if settings.Scheduler.Enabled {
		app.Scheduler.Start()
	}

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- app.API.Start()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-serverErr:
		logger.Error("http server exited", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	app.Shutdown(shutdownCtx)
	return nil
}
