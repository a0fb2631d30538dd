// Package scheduler triggers the recurring ingestion and scoring workflows
// from a static cron table loaded at process start.
package scheduler

import (
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/soundscout/soundscout-go/internal/conf"
	"github.com/soundscout/soundscout-go/internal/errors"
	"github.com/soundscout/soundscout-go/internal/flow"
	"github.com/soundscout/soundscout-go/internal/logging"
)

// Scheduler owns the cron runner. Entries only enqueue workflows, the heavy
// lifting happens on the job queues, so triggers stay cheap even when a
// previous run of the same workflow is still draining.
type Scheduler struct {
	cron    *cron.Cron
	service *flow.Service
	logger  *slog.Logger
}

// New builds the scheduler from the configured schedule table. Every entry
// is validated up front: an unknown workflow name, a bad cron expression or
// a bad timezone fails startup instead of silently never firing.
func New(settings *conf.Settings, service *flow.Service) (*Scheduler, error) {
	loc, err := settings.Scheduler.Location(settings.Main.Timezone)
	if err != nil {
		return nil, errors.New(err).
			Component("scheduler").
			Category(errors.CategoryConfiguration).
			Context("timezone", settings.Scheduler.Timezone).
			Build()
	}

	s := &Scheduler{
		cron:    cron.New(cron.WithLocation(loc)),
		service: service,
		logger:  logging.ForService("scheduler"),
	}

	entries := settings.Scheduler.Entries
	if len(entries) == 0 {
		entries = conf.DefaultScheduleEntries()
	}
	for _, entry := range entries {
		if err := s.add(entry); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *Scheduler) add(entry conf.ScheduleEntry) error {
	if _, err := s.service.Registry().Get(entry.Workflow); err != nil {
		return errors.New(err).
			Component("scheduler").
			Category(errors.CategoryConfiguration).
			Context("entry", entry.Name).
			Build()
	}

	spec := entry.Cron
	if entry.Timezone != "" {
		if _, err := time.LoadLocation(entry.Timezone); err != nil {
			return errors.New(err).
				Component("scheduler").
				Category(errors.CategoryConfiguration).
				Context("entry", entry.Name).
				Context("timezone", entry.Timezone).
				Build()
		}
		spec = "CRON_TZ=" + entry.Timezone + " " + spec
	}

	name, workflow := entry.Name, entry.Workflow
	kwargs := flow.Payload(entry.Kwargs)
	id, err := s.cron.AddFunc(spec, func() {
		s.logger.Info("schedule fired", "entry", name, "workflow", workflow)
		if err := s.service.DispatchWorkflow(workflow, kwargs.Clone()); err != nil {
			s.logger.Error("schedule dispatch failed",
				"entry", name, "workflow", workflow, "error", err)
		}
	})
	if err != nil {
		return errors.New(err).
			Component("scheduler").
			Category(errors.CategoryConfiguration).
			Context("entry", entry.Name).
			Context("cron", entry.Cron).
			Build()
	}
	s.logger.Debug("schedule registered", "entry", entry.Name, "cron", entry.Cron, "id", int(id))
	return nil
}

// Start begins firing schedule entries.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("scheduler started", "entries", len(s.cron.Entries()))
}

// Stop stops the cron runner and waits for in-flight trigger callbacks.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("scheduler stopped")
}
