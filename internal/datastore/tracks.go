package datastore

import (
	"time"

	"github.com/soundscout/soundscout-go/internal/errors"
)

// GetTrack returns the track with the given id, or nil if absent.
func (ds *DataStore) GetTrack(id string) (*Track, error) {
	return getByID[Track](ds, id)
}

// CreateTrack inserts a track, skipping silently if it already exists.
func (ds *DataStore) CreateTrack(track *Track) error {
	return ds.createIdempotent("tracks", track)
}

// CreateTracks bulk-inserts tracks, returning the number actually written.
func (ds *DataStore) CreateTracks(tracks []Track) (int, error) {
	return createMulti(ds, "tracks", tracks)
}

// UpdateTracks upserts tracks, overwriting stored metadata with the incoming
// rows.
func (ds *DataStore) UpdateTracks(tracks []Track) (int, error) {
	return upsertMulti(ds, "tracks", tracks)
}

// MissingTrackIDs returns the ids from the input that have no track row.
func (ds *DataStore) MissingTrackIDs(ids []string) ([]string, error) {
	return missingIDs[Track](ds, ids)
}

// TracksMissingPreviewURL returns ids of tracks with no preview URL, the
// candidate set for the track metadata update flow.
func (ds *DataStore) TracksMissingPreviewURL(skip, limit int) ([]string, error) {
	var ids []string
	err := ds.DB.Model(&Track{}).
		Where("preview_url = '' OR preview_url IS NULL").
		Order("id").
		Offset(skip).
		Limit(limit).
		Pluck("id", &ids).Error
	if err != nil {
		return nil, errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Build()
	}
	return ids, nil
}

// RisingTracksMissingSpectrograms returns tracks whose playcount grew within
// the lag window, that have a preview URL and no usable spectrogram yet,
// ordered by growth. This is the candidate set for spectrogram collection;
// it is not a frozen snapshot, eventual coverage is the guarantee.
func (ds *DataStore) RisingTracksMissingSpectrograms(lagDays, skip, limit int) ([]TrackRef, error) {
	cutoff := time.Now().AddDate(0, 0, -lagDays)
	var refs []TrackRef
	err := ds.DB.Raw(`
		SELECT t.id AS id, t.preview_url AS preview_url
		FROM tracks t
		JOIN (
			SELECT tp.track_id, MAX(tp.playcount) - MIN(tp.playcount) AS growth
			FROM track_playcounts tp
			WHERE tp.date >= ?
			GROUP BY tp.track_id
			HAVING COUNT(*) >= 2 AND MAX(tp.playcount) > MIN(tp.playcount)
		) r ON r.track_id = t.id
		LEFT JOIN spectrograms s ON s.track_id = t.id AND s.is_corrupt = ?
		WHERE t.preview_url <> '' AND t.preview_url IS NOT NULL AND s.id IS NULL
		ORDER BY r.growth DESC
		LIMIT ? OFFSET ?`, cutoff, false, limit, skip).Scan(&refs).Error
	if err != nil {
		return nil, errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Build()
	}
	return refs, nil
}

// TracksMissingPredictions returns ids of rising tracks that have a usable
// spectrogram but no prediction for the given model yet.
func (ds *DataStore) TracksMissingPredictions(modelID string, lagDays, skip, limit int) ([]string, error) {
	cutoff := time.Now().AddDate(0, 0, -lagDays)
	var ids []string
	err := ds.DB.Raw(`
		SELECT t.id
		FROM tracks t
		JOIN spectrograms s ON s.track_id = t.id AND s.is_corrupt = ?
		JOIN (
			SELECT tp.track_id
			FROM track_playcounts tp
			WHERE tp.date >= ?
			GROUP BY tp.track_id
			HAVING COUNT(*) >= 2 AND MAX(tp.playcount) > MIN(tp.playcount)
		) r ON r.track_id = t.id
		LEFT JOIN track_predictions pred
			ON pred.track_id = t.id AND pred.model_id = ?
		WHERE pred.track_id IS NULL
		ORDER BY t.id
		LIMIT ? OFFSET ?`, false, cutoff, modelID, limit, skip).Scan(&ids).Error
	if err != nil {
		return nil, errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Build()
	}
	return ids, nil
}

// CreateTrackPlaycounts bulk-inserts playcount observations.
func (ds *DataStore) CreateTrackPlaycounts(playcounts []TrackPlaycount) (int, error) {
	return createMulti(ds, "track_playcounts", playcounts)
}

// CreateTrackPredictions bulk-inserts model predictions.
func (ds *DataStore) CreateTrackPredictions(predictions []TrackPrediction) (int, error) {
	return createMulti(ds, "track_predictions", predictions)
}

// ListTracks pages through tracks for the read API.
func (ds *DataStore) ListTracks(skip, limit int) ([]Track, error) {
	return list[Track](ds, skip, limit)
}
