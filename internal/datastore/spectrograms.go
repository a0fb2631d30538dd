package datastore

import (
	"github.com/soundscout/soundscout-go/internal/errors"
)

// CreateSpectrogram inserts a spectrogram blob, skipping if the same
// track/parameter combination already exists.
func (ds *DataStore) CreateSpectrogram(spec *Spectrogram) error {
	return ds.createIdempotent("spectrograms", spec)
}

// SpectrogramsByTrackIDs loads the spectrograms matching the given parameter
// set for a batch of tracks. Corrupt rows are excluded; callers must tolerate
// tracks missing from the result.
func (ds *DataStore) SpectrogramsByTrackIDs(trackIDs []string, params SpectrogramParams) ([]Spectrogram, error) {
	if len(trackIDs) == 0 {
		return nil, nil
	}
	var specs []Spectrogram
	err := ds.DB.
		Where("track_id IN ?", trackIDs).
		Where("spec_type = ? AND hop_size = ? AND window_size = ? AND mel_bands = ?",
			params.SpecType, params.HopSize, params.WindowSize, params.MelBands).
		Where("is_corrupt = ?", false).
		Find(&specs).Error
	if err != nil {
		return nil, errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Build()
	}
	return specs, nil
}

// MarkSpectrogramCorrupt flags a spectrogram so it is never loaded again.
func (ds *DataStore) MarkSpectrogramCorrupt(id uint) error {
	if err := ds.DB.Model(&Spectrogram{}).Where("id = ?", id).
		Update("is_corrupt", true).Error; err != nil {
		return errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("spectrogram_id", id).
			Build()
	}
	return nil
}
