package flow

import (
	"context"
	"time"

	"github.com/soundscout/soundscout-go/internal/datastore"
	"github.com/soundscout/soundscout-go/internal/jobqueue"
)

const (
	keyTrackID    = "track_id"
	keyPreviewURL = "preview_url"
	keyAudio      = "audio"

	// spectrogramLagDays restricts spectrogram generation to tracks that
	// appeared on playlists recently.
	spectrogramLagDays = 30
)

func (s *Service) registerSpectrogramTasks() error {
	tasks := []*Task{
		{
			Name: "fetch_preview", Queue: jobqueue.QueueDefault, TimeLimit: 10 * time.Second,
			Run:  s.fetchPreview,
		},
		{
			Name: "push_spectrogram", Queue: jobqueue.QueueDistance, TimeLimit: 30 * time.Second,
			Run:  s.pushSpectrogram,
		},
		{
			Name: "flow_spectrograms", Queue: jobqueue.QueueDefault, TimeLimit: 10 * time.Minute,
			Run:  s.flowSpectrograms,
		},
	}
	for _, task := range tasks {
		if err := s.registry.Register(task); err != nil {
			return err
		}
	}
	return nil
}

// fetchPreview downloads a track's preview audio clip.
func (s *Service) fetchPreview(ctx context.Context, args Payload) (Payload, error) {
	audio, err := s.client.DownloadPreview(ctx, args.String(keyPreviewURL))
	if err != nil {
		return nil, err
	}
	return Payload{keyAudio: audio}, nil
}

// pushSpectrogram renders the preview audio into a mel spectrogram and
// stores it under the configured analysis parameters. A missing preview is
// not an error, the track is simply skipped.
func (s *Service) pushSpectrogram(ctx context.Context, args Payload) (Payload, error) {
	trackID := args.String(keyTrackID)
	audio, _ := args[keyAudio].([]byte)
	if trackID == "" || len(audio) == 0 {
		s.logger.Debug("no preview audio, skipping spectrogram", "track_id", trackID)
		return Payload{"stored": false}, nil
	}

	data, err := s.generator.Generate(ctx, audio)
	if err != nil {
		return nil, err
	}
	spec := &datastore.Spectrogram{
		TrackID:    trackID,
		SpecType:   s.settings.Scoring.SpecType,
		HopSize:    s.settings.Scoring.HopSize,
		WindowSize: s.settings.Scoring.WindowSize,
		MelBands:   s.settings.Scoring.MelBands,
		Data:       data,
	}
	if err := s.ds.CreateSpectrogram(spec); err != nil {
		return nil, err
	}
	return Payload{"stored": true}, nil
}

// flowSpectrograms generates spectrograms for rising tracks that do not
// have one yet under the current analysis parameters.
func (s *Service) flowSpectrograms(ctx context.Context, args Payload) (Payload, error) {
	lagDays := args.Int("lag_days", spectrogramLagDays)
	skip := args.Int("skip", 0)
	limit := args.Int("limit", 1000)

	refs, err := s.ds.RisingTracksMissingSpectrograms(lagDays, skip, limit)
	if err != nil {
		return nil, err
	}
	s.logger.Info("generating spectrograms", "tracks", len(refs))

	dispatched := 0
	for _, ref := range refs {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if ref.PreviewURL == "" {
			continue
		}
		time.Sleep(dispatchJitter)
		workflow := NewChain(
			Call{Task: "fetch_preview", Args: Payload{keyPreviewURL: ref.PreviewURL}},
			Call{Task: "push_spectrogram", Args: Payload{keyTrackID: ref.ID}},
		)
		if err := s.exec.Dispatch(workflow, nil); err != nil {
			s.logger.Warn("spectrogram dispatch failed", "track_id", ref.ID, "error", err)
			continue
		}
		dispatched++
	}
	return Payload{"dispatched": dispatched}, nil
}
