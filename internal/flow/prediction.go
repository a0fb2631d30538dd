package flow

import (
	"context"
	"time"

	"github.com/soundscout/soundscout-go/internal/jobqueue"
)

// predictionLagDays restricts prediction scoring to recently active tracks.
const predictionLagDays = 30

func (s *Service) registerPredictionTasks() error {
	tasks := []*Task{
		{
			Name: "predict_tracks", Queue: jobqueue.QueueDistance, TimeLimit: 60 * time.Second,
			Run:  s.predictTracks,
		},
		{
			Name: "flow_track_predictions", Queue: jobqueue.QueueDefault, TimeLimit: 10 * time.Minute,
			Run:  s.flowTrackPredictions,
		},
	}
	for _, task := range tasks {
		if err := s.registry.Register(task); err != nil {
			return err
		}
	}
	return nil
}

// predictTracks scores a batch of tracks with the embedding model and
// records today's hit probabilities.
func (s *Service) predictTracks(ctx context.Context, args Payload) (Payload, error) {
	trackIDs := args.Strings(keyTrackIDs)
	if len(trackIDs) == 0 {
		return Payload{"predicted": 0}, nil
	}
	written, err := s.scorer.PredictTracks(trackIDs)
	if err != nil {
		return nil, err
	}
	return Payload{"predicted": written}, nil
}

// flowTrackPredictions scores every recently active track that has no
// prediction from the current model yet, in model-batch sized chunks.
func (s *Service) flowTrackPredictions(ctx context.Context, args Payload) (Payload, error) {
	lagDays := args.Int("lag_days", predictionLagDays)
	skip := args.Int("skip", 0)
	limit := args.Int("limit", 20000)

	trackIDs, err := s.ds.TracksMissingPredictions(s.settings.Scoring.ModelID, lagDays, skip, limit)
	if err != nil {
		return nil, err
	}
	batches := Chunk(trackIDs, s.settings.Scoring.MaxBatchSize)
	s.logger.Info("scoring tracks", "tracks", len(trackIDs), "batches", len(batches))

	for _, batch := range batches {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		time.Sleep(dispatchJitter)
		call := Call{Task: "predict_tracks", Args: Payload{keyTrackIDs: batch}}
		if err := s.exec.Dispatch(call, nil); err != nil {
			s.logger.Warn("prediction dispatch failed", "error", err)
		}
	}
	return Payload{"dispatched": len(batches)}, nil
}
