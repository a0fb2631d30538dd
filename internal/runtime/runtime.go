// Package runtime assembles the application from its parts. Commands call
// Bootstrap once and get back every wired component plus a teardown that
// releases them in reverse order.
package runtime

import (
	"context"
	"log/slog"
	"time"

	"github.com/soundscout/soundscout-go/internal/api"
	"github.com/soundscout/soundscout-go/internal/association"
	"github.com/soundscout/soundscout-go/internal/conf"
	"github.com/soundscout/soundscout-go/internal/datastore"
	"github.com/soundscout/soundscout-go/internal/errors"
	"github.com/soundscout/soundscout-go/internal/flow"
	"github.com/soundscout/soundscout-go/internal/jobqueue"
	"github.com/soundscout/soundscout-go/internal/logging"
	"github.com/soundscout/soundscout-go/internal/scheduler"
	"github.com/soundscout/soundscout-go/internal/scoring"
	"github.com/soundscout/soundscout-go/internal/spectrogram"
	"github.com/soundscout/soundscout-go/internal/spotify"
	"github.com/soundscout/soundscout-go/internal/tokenstore"
)

// queueDrainTimeout bounds how long shutdown waits for running jobs.
const queueDrainTimeout = 30 * time.Second

// App holds every long-lived component of a running process.
type App struct {
	Settings  *conf.Settings
	Store     datastore.Interface
	Client    *spotify.Client
	Queues    *jobqueue.Manager
	Service   *flow.Service
	Scheduler *scheduler.Scheduler
	API       *api.Controller

	logger      *slog.Logger
	cancelQueue context.CancelFunc
}

// Bootstrap constructs and connects every component. Nothing is started;
// callers start the queues, scheduler and HTTP server as they need them.
func Bootstrap(settings *conf.Settings) (*App, error) {
	store := datastore.New(settings)
	if store == nil {
		return nil, errors.Newf("no database backend enabled").
			Component("runtime").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if err := store.Open(); err != nil {
		return nil, err
	}

	refresher := spotify.NewTokenRefresher(&settings.Streaming)
	tokens := tokenstore.New(&settings.Streaming, refresher.Refresh)
	client := spotify.New(&settings.Streaming, tokens)

	model := scoring.NewSpectralModel(settings.Scoring.ModelID)
	params := datastore.SpectrogramParams{
		SpecType:   settings.Scoring.SpecType,
		HopSize:    settings.Scoring.HopSize,
		WindowSize: settings.Scoring.WindowSize,
		MelBands:   settings.Scoring.MelBands,
	}
	scorer, err := scoring.NewScorer(store, model, params, settings.Scoring.DistanceType)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	generator, err := spectrogram.NewGenerator(
		settings.Scoring.HopSize, settings.Scoring.WindowSize, settings.Scoring.MelBands)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	queues := jobqueue.NewManager(&settings.Queues)
	resolver := association.NewResolver(store)

	service, err := flow.NewService(settings, store, client, scorer, generator, resolver, queues)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	sched, err := scheduler.New(settings, service)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	return &App{
		Settings:  settings,
		Store:     store,
		Client:    client,
		Queues:    queues,
		Service:   service,
		Scheduler: sched,
		API:       api.New(settings, store, service, queues),
		logger:    logging.ForService("runtime"),
	}, nil
}

// StartQueues begins job dispatch on all queues.
func (a *App) StartQueues(ctx context.Context) {
	queueCtx, cancel := context.WithCancel(ctx)
	a.cancelQueue = cancel
	a.Queues.Start(queueCtx)
}

// Shutdown stops the moving parts in reverse dependency order: no new
// triggers, drain the queues, then close the store.
func (a *App) Shutdown(ctx context.Context) {
	if a.Settings.Scheduler.Enabled {
		a.Scheduler.Stop()
	}
	if err := a.API.Shutdown(ctx); err != nil {
		a.logger.Warn("http shutdown failed", "error", err)
	}
	if err := a.Queues.Stop(queueDrainTimeout); err != nil {
		a.logger.Warn("queue drain timed out", "error", err)
	}
	if a.cancelQueue != nil {
		a.cancelQueue()
	}
	if err := a.Store.Close(); err != nil {
		a.logger.Warn("closing datastore failed", "error", err)
	}
}
