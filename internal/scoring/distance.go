package scoring

import (
	"log/slog"
	"time"

	"github.com/soundscout/soundscout-go/internal/datastore"
	"github.com/soundscout/soundscout-go/internal/logging"
)

// Store is the slice of the datastore the scoring jobs need.
type Store interface {
	SpectrogramsByTrackIDs(trackIDs []string, params datastore.SpectrogramParams) ([]datastore.Spectrogram, error)
	MarkSpectrogramCorrupt(id uint) error
	CreateTrackDistance(t1, t2, modelID, distanceType string, distance float64) (*datastore.TrackDistance, error)
	CreateTrackPredictions(predictions []datastore.TrackPrediction) (int, error)
}

// Scorer runs distance and prediction batches against stored spectrograms.
type Scorer struct {
	store        Store
	model        Model
	params       datastore.SpectrogramParams
	distanceType string
	logger       *slog.Logger
}

// NewScorer validates the configured metric and builds a scorer.
func NewScorer(store Store, model Model, params datastore.SpectrogramParams, distanceType string) (*Scorer, error) {
	if err := ValidateDistanceType(distanceType); err != nil {
		return nil, err
	}
	return &Scorer{
		store:        store,
		model:        model,
		params:       params,
		distanceType: distanceType,
		logger:       logging.ForService("scoring"),
	}, nil
}

// embeddings loads and embeds the spectrograms of the given tracks. Rows
// that fail to decode are flagged corrupt and left out of the result.
func (s *Scorer) embeddings(trackIDs []string) (map[string][]float32, error) {
	specs, err := s.store.SpectrogramsByTrackIDs(trackIDs, s.params)
	if err != nil {
		return nil, err
	}

	embeddings := make(map[string][]float32, len(specs))
	for i := range specs {
		spec := &specs[i]
		decoded, err := DecodeSpectrogram(spec.Data)
		if err != nil {
			s.logger.Warn("corrupt spectrogram",
				"track_id", spec.TrackID, "spectrogram_id", spec.ID, "error", err)
			if markErr := s.store.MarkSpectrogramCorrupt(spec.ID); markErr != nil {
				s.logger.Error("failed to flag corrupt spectrogram",
					"spectrogram_id", spec.ID, "error", markErr)
			}
			continue
		}
		embeddings[spec.TrackID] = s.model.Features(decoded)
	}
	return embeddings, nil
}

// ComputeDistances embeds both sides of every candidate pair and persists
// the pairwise distances. Self pairs and pairs missing an embedding are
// skipped; per-pair failures are logged and the batch continues. Returns the
// number of distances written.
func (s *Scorer) ComputeDistances(pairs []datastore.TrackPair) (int, error) {
	if len(pairs) == 0 {
		return 0, nil
	}

	idSet := make(map[string]struct{}, 2*len(pairs))
	var trackIDs []string
	for _, pair := range pairs {
		for _, id := range []string{pair.SrcID, pair.TgtID} {
			if _, seen := idSet[id]; !seen {
				idSet[id] = struct{}{}
				trackIDs = append(trackIDs, id)
			}
		}
	}

	embeddings, err := s.embeddings(trackIDs)
	if err != nil {
		return 0, err
	}

	written := 0
	for _, pair := range pairs {
		if pair.SrcID == pair.TgtID {
			continue
		}
		srcEmb, srcOK := embeddings[pair.SrcID]
		tgtEmb, tgtOK := embeddings[pair.TgtID]
		if !srcOK || !tgtOK {
			continue
		}

		distance, err := EuclideanDistance(srcEmb, tgtEmb)
		if err != nil {
			s.logger.Warn("distance computation failed",
				"src_id", pair.SrcID, "tgt_id", pair.TgtID, "error", err)
			continue
		}
		if _, err := s.store.CreateTrackDistance(pair.SrcID, pair.TgtID, s.model.ID(), s.distanceType, distance); err != nil {
			s.logger.Warn("distance persist failed",
				"src_id", pair.SrcID, "tgt_id", pair.TgtID, "error", err)
			continue
		}
		written++
	}

	s.logger.Info("distance batch complete",
		"pairs", len(pairs), "written", written)
	return written, nil
}

// PredictTracks embeds the given tracks and persists hit predictions dated
// today. Returns the number of predictions written.
func (s *Scorer) PredictTracks(trackIDs []string) (int, error) {
	if len(trackIDs) == 0 {
		return 0, nil
	}

	embeddings, err := s.embeddings(trackIDs)
	if err != nil {
		return 0, err
	}

	today := time.Now().UTC().Truncate(24 * time.Hour)
	predictions := make([]datastore.TrackPrediction, 0, len(embeddings))
	for trackID, embedding := range embeddings {
		probability := s.model.Predict(embedding)
		prediction := 0.0
		if probability >= 0.5 {
			prediction = 1.0
		}
		predictions = append(predictions, datastore.TrackPrediction{
			TrackID:     trackID,
			ModelID:     s.model.ID(),
			Date:        today,
			Prediction:  prediction,
			Probability: probability,
		})
	}

	return s.store.CreateTrackPredictions(predictions)
}
