// Package run implements the one-shot workflow runner, used for manual
// backfills and ad-hoc ingestion outside the cron schedule.
package run

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/soundscout/soundscout-go/internal/conf"
	"github.com/soundscout/soundscout-go/internal/errors"
	"github.com/soundscout/soundscout-go/internal/flow"
	"github.com/soundscout/soundscout-go/internal/logging"
	"github.com/soundscout/soundscout-go/internal/runtime"
)

const drainPollInterval = 2 * time.Second

// Command creates the run command.
func Command(settings *conf.Settings) *cobra.Command {
	var (
		skip       int
		limit      int
		artistID   string
		terms      []string
		maxRuntime time.Duration
	)

	cmd := &cobra.Command{
		Use:   "run <workflow>",
		Short: "Run one workflow and wait for it to drain",
		Long: "Dispatch a single workflow by name, for example flow_update_artists or " +
			"flow_search_playlists, then process jobs until the queues are empty.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kwargs := flow.Payload{"skip": skip, "limit": limit}
			if artistID != "" {
				kwargs["artist_id"] = artistID
			}
			if len(terms) > 0 {
				kwargs["terms"] = terms
			}
			return runWorkflow(settings, args[0], kwargs, maxRuntime)
		},
	}

	cmd.Flags().IntVar(&skip, "skip", 0, "Offset into the workflow's candidate set")
	cmd.Flags().IntVar(&limit, "limit", 1000, "Cap on the workflow's candidate set")
	cmd.Flags().StringVar(&artistID, "artist", "", "Artist id for flow_artist")
	cmd.Flags().StringSliceVar(&terms, "terms", nil, "Search terms for flow_search_playlists")
	cmd.Flags().DurationVar(&maxRuntime, "max-runtime", 2*time.Hour, "Abort if the queues have not drained by then")

	return cmd
}

func runWorkflow(settings *conf.Settings, workflow string, kwargs flow.Payload, maxRuntime time.Duration) error {
	logger := logging.ForService("run")

	app, err := runtime.Bootstrap(settings)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app.StartQueues(ctx)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		app.Shutdown(shutdownCtx)
	}()

	logger.Info("dispatching workflow", "workflow", workflow)
	if err := app.Service.DispatchWorkflow(workflow, kwargs); err != nil {
		return err
	}

	deadline := time.After(maxRuntime)
	ticker := time.NewTicker(drainPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("interrupted, shutting down")
			return nil
		case <-deadline:
			return errors.Newf("queues did not drain within %s", maxRuntime).
				Component("run").
				Category(errors.CategoryJobQueue).
				Context("workflow", workflow).
				Build()
		case <-ticker.C:
			active := app.Queues.ActiveJobs()
			if active == 0 {
				logger.Info("workflow drained", "workflow", workflow)
				return nil
			}
			logger.Debug("waiting for queues", "active_jobs", active)
		}
	}
}
