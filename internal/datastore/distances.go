package datastore

import (
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/soundscout/soundscout-go/internal/errors"
)

// canonicalPair orders two track ids so src is the lexicographically smaller.
func canonicalPair(t1, t2 string) (src, tgt string) {
	if t1 < t2 {
		return t1, t2
	}
	return t2, t1
}

// distanceID builds the composite row id <src>_<tgt>_<model>_<metric>.
func distanceID(src, tgt, modelID, distanceType string) string {
	return fmt.Sprintf("%s_%s_%s_%s", src, tgt, modelID, distanceType)
}

// GetTrackDistance returns the stored distance for a pair in either input
// order, or nil if absent.
func (ds *DataStore) GetTrackDistance(t1, t2, modelID, distanceType string) (*TrackDistance, error) {
	src, tgt := canonicalPair(t1, t2)
	var row TrackDistance
	err := ds.DB.First(&row, "id = ?", distanceID(src, tgt, modelID, distanceType)).Error
	switch {
	case err == nil:
		return &row, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, nil
	default:
		return nil, errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Build()
	}
}

// CreateTrackDistance persists a distance for a pair, canonicalizing the
// ordering so (A,B) and (B,A) produce the identical row. A duplicate insert
// from an overlapping batch is a benign skip.
func (ds *DataStore) CreateTrackDistance(t1, t2, modelID, distanceType string, distance float64) (*TrackDistance, error) {
	src, tgt := canonicalPair(t1, t2)
	row := &TrackDistance{
		ID:           distanceID(src, tgt, modelID, distanceType),
		SrcID:        src,
		TgtID:        tgt,
		ModelID:      modelID,
		DistanceType: distanceType,
		Distance:     distance,
	}
	if err := ds.createIdempotent("track_distances", row); err != nil {
		return nil, err
	}
	return row, nil
}

// CandidateDistancePairs returns user-library track vs candidate-hit track
// pairs that have no stored distance yet under the requested model and metric.
// Existing distances are checked in BOTH orderings: rows written before the
// ordering invariant was enforced may carry the larger id as src, and those
// must still exclude the pair. A distance stored under a different model or
// metric does not exclude it.
func (ds *DataStore) CandidateDistancePairs(opts CandidatePairOpts) ([]TrackPair, error) {
	releaseCutoff := time.Now().AddDate(0, 0, -opts.DaysSinceRelease)
	predictionCutoff := time.Now().AddDate(0, 0, -opts.LagDays)

	query := `
		WITH user_tracks AS (
			SELECT DISTINCT tu.track_id
			FROM track_users tu
			JOIN spectrograms s ON s.track_id = tu.track_id AND s.is_corrupt = ?`
	args := []any{false}
	if len(opts.UserIDs) > 0 {
		query += `
			WHERE tu.user_id IN ?`
		args = append(args, opts.UserIDs)
	}
	query += `
		), candidate_hits AS (
			SELECT pred.track_id
			FROM track_predictions pred
			JOIN tracks t ON t.id = pred.track_id
			JOIN albums al ON al.id = t.album_id AND al.release_date >= ?
			LEFT JOIN user_tracks ut ON ut.track_id = pred.track_id
			WHERE pred.model_id = ?
			  AND pred.date >= ?
			  AND pred.probability >= ?
			  AND ut.track_id IS NULL
			ORDER BY pred.probability DESC
			LIMIT ?
		), candidates AS (
			SELECT
				CASE WHEN ut.track_id < ch.track_id THEN ut.track_id ELSE ch.track_id END AS src_id,
				CASE WHEN ut.track_id < ch.track_id THEN ch.track_id ELSE ut.track_id END AS tgt_id
			FROM candidate_hits ch
			JOIN user_tracks ut ON ut.track_id <> ch.track_id
		)
		SELECT DISTINCT c.src_id, c.tgt_id
		FROM candidates c
		LEFT JOIN track_distances td1
			ON td1.src_id = c.src_id AND td1.tgt_id = c.tgt_id
			AND td1.model_id = ? AND td1.distance_type = ?
		LEFT JOIN track_distances td2
			ON td2.src_id = c.tgt_id AND td2.tgt_id = c.src_id
			AND td2.model_id = ? AND td2.distance_type = ?
		WHERE td1.id IS NULL AND td2.id IS NULL
		ORDER BY c.src_id, c.tgt_id
		LIMIT ? OFFSET ?`
	args = append(args, releaseCutoff, opts.ModelID, predictionCutoff,
		opts.HitThreshold, opts.HitLimit,
		opts.ModelID, opts.DistanceType, opts.ModelID, opts.DistanceType,
		opts.Limit, opts.Skip)

	var pairs []TrackPair
	if err := ds.DB.Raw(query, args...).Scan(&pairs).Error; err != nil {
		return nil, errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Build()
	}
	return pairs, nil
}
