package flow

import (
	"context"
	"time"

	"github.com/soundscout/soundscout-go/internal/datastore"
	"github.com/soundscout/soundscout-go/internal/errors"
	"github.com/soundscout/soundscout-go/internal/jobqueue"
)

const (
	keyPairs   = "pairs"
	keyUserIDs = "user_ids"

	// distanceLagDays restricts candidate pairs to recently active tracks.
	distanceLagDays = 30
	// distanceReleaseDays restricts candidate targets to recent releases.
	distanceReleaseDays = 180
	// distanceHitLimit caps the hit tracks considered per run.
	distanceHitLimit = 2000
	// distancePairLimit caps the candidate pairs dispatched per run.
	distancePairLimit = 50000
	// distanceBatchSize is the pair count handed to one compute task.
	distanceBatchSize = 500
)

func (s *Service) registerDistanceTasks() error {
	tasks := []*Task{
		{
			Name: "compute_track_distances", Queue: jobqueue.QueueDistance, TimeLimit: 5 * time.Minute,
			Run:  s.computeTrackDistances,
		},
		{
			Name: "flow_track_distances", Queue: jobqueue.QueueDistance, TimeLimit: 10 * time.Minute,
			Run:  s.flowTrackDistances,
		},
	}
	for _, task := range tasks {
		if err := s.registry.Register(task); err != nil {
			return err
		}
	}
	return nil
}

// computeTrackDistances scores one batch of candidate pairs.
func (s *Service) computeTrackDistances(ctx context.Context, args Payload) (Payload, error) {
	pairs, ok := args[keyPairs].([]datastore.TrackPair)
	if !ok {
		return nil, errors.Newf("compute_track_distances: missing pair batch").
			Component("flow").
			Category(errors.CategoryValidation).
			Build()
	}
	written, err := s.scorer.ComputeDistances(pairs)
	if err != nil {
		return nil, err
	}
	return Payload{"distances": written}, nil
}

// candidatePairOpts builds the candidate query bounds from task arguments,
// falling back to the run defaults and the configured model.
func (s *Service) candidatePairOpts(args Payload) datastore.CandidatePairOpts {
	return datastore.CandidatePairOpts{
		UserIDs:          args.Strings(keyUserIDs),
		LagDays:          args.Int("lag_days", distanceLagDays),
		DaysSinceRelease: args.Int("days_since_release", distanceReleaseDays),
		HitLimit:         args.Int("candidate_hit_limit", distanceHitLimit),
		HitThreshold:     s.settings.Scoring.HitThreshold,
		ModelID:          s.settings.Scoring.ModelID,
		DistanceType:     s.settings.Scoring.DistanceType,
		Skip:             args.Int("skip", 0),
		Limit:            args.Int("limit", distancePairLimit),
	}
}

// flowTrackDistances queries the candidate pairs for every library user and
// dispatches them to the distance queue in batches.
func (s *Service) flowTrackDistances(ctx context.Context, args Payload) (Payload, error) {
	pairs, err := s.ds.CandidateDistancePairs(s.candidatePairOpts(args))
	if err != nil {
		return nil, err
	}
	batches := Chunk(pairs, distanceBatchSize)
	s.logger.Info("computing track distances", "pairs", len(pairs), "batches", len(batches))

	for _, batch := range batches {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		time.Sleep(dispatchJitter)
		call := Call{Task: "compute_track_distances", Args: Payload{keyPairs: batch}}
		if err := s.exec.Dispatch(call, nil); err != nil {
			s.logger.Warn("distance dispatch failed", "error", err)
		}
	}
	return Payload{"dispatched": len(batches)}, nil
}

// RecommendUser computes distances for one user's candidate pairs
// synchronously and returns the number of pairs scored. The HTTP API uses
// this for on-demand recommendations.
func (s *Service) RecommendUser(ctx context.Context, userID string, limit int) (int, error) {
	if userID == "" {
		return 0, errors.Newf("recommend: user id is required").
			Component("flow").
			Category(errors.CategoryValidation).
			Build()
	}
	if limit <= 0 {
		limit = distancePairLimit
	}
	opts := s.candidatePairOpts(Payload{keyUserIDs: []string{userID}, "limit": limit})
	pairs, err := s.ds.CandidateDistancePairs(opts)
	if err != nil {
		return 0, err
	}
	out, err := s.exec.RunSync(ctx, Call{
		Task: "compute_track_distances",
		Args: Payload{keyPairs: pairs},
	}, nil)
	if err != nil {
		return 0, err
	}
	return out.Int("distances", 0), nil
}
