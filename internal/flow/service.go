package flow

import (
	"log/slog"
	"time"

	"github.com/soundscout/soundscout-go/internal/association"
	"github.com/soundscout/soundscout-go/internal/conf"
	"github.com/soundscout/soundscout-go/internal/datastore"
	"github.com/soundscout/soundscout-go/internal/jobqueue"
	"github.com/soundscout/soundscout-go/internal/logging"
	"github.com/soundscout/soundscout-go/internal/scoring"
	"github.com/soundscout/soundscout-go/internal/spectrogram"
	"github.com/soundscout/soundscout-go/internal/spotify"
)

const (
	// dispatchJitter spaces out dispatches inside backfill loops so a burst
	// of child jobs does not land on the external API at once.
	dispatchJitter = 50 * time.Millisecond

	// fetchChunkSize is the batch size for multi-entity fetch endpoints.
	fetchChunkSize = 50
)

// Service wires the ingestion and scoring workflows over their dependencies
// and owns the task registry.
type Service struct {
	ds        datastore.Interface
	client    *spotify.Client
	scorer    *scoring.Scorer
	generator *spectrogram.Generator
	resolver  *association.Resolver
	settings  *conf.Settings
	registry  *Registry
	exec      *Executor
	logger    *slog.Logger
}

// NewService registers every task and workflow. A duplicate or malformed
// registration surfaces here, at startup.
func NewService(
	settings *conf.Settings,
	ds datastore.Interface,
	client *spotify.Client,
	scorer *scoring.Scorer,
	generator *spectrogram.Generator,
	resolver *association.Resolver,
	queues *jobqueue.Manager,
) (*Service, error) {
	registry := NewRegistry()
	s := &Service{
		ds:        ds,
		client:    client,
		scorer:    scorer,
		generator: generator,
		resolver:  resolver,
		settings:  settings,
		registry:  registry,
		exec:      NewExecutor(registry, queues),
		logger:    logging.ForService("flow"),
	}

	registrations := []func() error{
		s.registerArtistTasks,
		s.registerTrackTasks,
		s.registerAlbumTasks,
		s.registerPlaylistTasks,
		s.registerUserTasks,
		s.registerSpectrogramTasks,
		s.registerPredictionTasks,
		s.registerDistanceTasks,
	}
	for _, register := range registrations {
		if err := register(); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Registry exposes the task table, used by the scheduler to validate
// configured workflow names.
func (s *Service) Registry() *Registry { return s.registry }

// Executor exposes the descriptor interpreter.
func (s *Service) Executor() *Executor { return s.exec }

// DispatchWorkflow enqueues one registered workflow by name with the given
// arguments. Unknown names are configuration errors.
func (s *Service) DispatchWorkflow(name string, kwargs Payload) error {
	if _, err := s.registry.Get(name); err != nil {
		return err
	}
	return s.exec.Dispatch(Call{Task: name, Args: kwargs}, nil)
}
