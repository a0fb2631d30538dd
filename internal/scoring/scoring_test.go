package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundscout/soundscout-go/internal/datastore"
)

func testSpectrogram(bands, frames int, fill float32) *Spectrogram {
	data := make([]float32, bands*frames)
	for i := range data {
		data[i] = fill
	}
	return &Spectrogram{Bands: bands, Frames: frames, Data: data}
}

func TestSpectrogramCodecRoundTrip(t *testing.T) {
	spec := &Spectrogram{
		Bands:  2,
		Frames: 3,
		Data:   []float32{0.1, 0.2, 0.3, 1.1, 1.2, 1.3},
	}

	encoded, err := EncodeSpectrogram(spec)
	require.NoError(t, err)

	decoded, err := DecodeSpectrogram(encoded)
	require.NoError(t, err)
	assert.Equal(t, spec.Bands, decoded.Bands)
	assert.Equal(t, spec.Frames, decoded.Frames)
	assert.Equal(t, spec.Data, decoded.Data)
	assert.InDelta(t, 1.2, decoded.At(1, 1), 1e-6)
}

func TestEncodeSpectrogramRejectsBadShape(t *testing.T) {
	_, err := EncodeSpectrogram(&Spectrogram{Bands: 0, Frames: 3})
	assert.Error(t, err)

	_, err = EncodeSpectrogram(&Spectrogram{Bands: 2, Frames: 2, Data: []float32{1}})
	assert.Error(t, err, "data length must match shape")
}

func TestDecodeSpectrogramRejectsCorruptInput(t *testing.T) {
	_, err := DecodeSpectrogram([]byte{1, 2, 3})
	assert.Error(t, err, "too short")

	_, err = DecodeSpectrogram([]byte("XXXX\x01\x00\x00\x00\x01\x00\x00\x00\x00\x00\x80\x3f"))
	assert.Error(t, err, "bad magic")

	valid, err := EncodeSpectrogram(testSpectrogram(2, 2, 1))
	require.NoError(t, err)
	_, err = DecodeSpectrogram(valid[:len(valid)-2])
	assert.Error(t, err, "truncated payload")
}

func TestClip(t *testing.T) {
	spec := &Spectrogram{Bands: 2, Frames: 3, Data: []float32{1, 2, 3, 4, 5, 6}}

	padded := Clip(spec, 5)
	assert.Equal(t, 5, padded.Frames)
	assert.Equal(t, []float32{1, 2, 3, 0, 0, 4, 5, 6, 0, 0}, padded.Data)

	truncated := Clip(spec, 2)
	assert.Equal(t, []float32{1, 2, 4, 5}, truncated.Data)

	assert.Same(t, spec, Clip(spec, 3), "exact frame count passes through")
}

func TestSpectralModelFeatures(t *testing.T) {
	model := NewSpectralModel("test-model")
	spec := testSpectrogram(4, modelFrames, 2.0)

	embedding := model.Features(spec)
	require.Len(t, embedding, 8, "mean and std per band")
	assert.InDelta(t, 2.0, embedding[0], 1e-5, "constant band mean")
	assert.InDelta(t, 0.0, embedding[4], 1e-5, "constant band std")
}

func TestSpectralModelPredictRange(t *testing.T) {
	model := NewSpectralModel("test-model")
	assert.InDelta(t, 0.5, model.Predict([]float32{0, 0}), 1e-9)
	assert.Greater(t, model.Predict([]float32{10, 10}), 0.99)
	assert.Less(t, model.Predict([]float32{-10, -10}), 0.01)
	assert.Zero(t, model.Predict(nil))
}

func TestEuclideanDistance(t *testing.T) {
	// Sum of squared differences, no root: (3-0)^2 + (4-0)^2 = 25.
	d, err := EuclideanDistance([]float32{0, 0}, []float32{3, 4})
	require.NoError(t, err)
	assert.InDelta(t, 25.0, d, 1e-9)

	d, err = EuclideanDistance([]float32{1, 2, 3}, []float32{1, 2, 3})
	require.NoError(t, err)
	assert.Zero(t, d)

	_, err = EuclideanDistance([]float32{1}, []float32{1, 2})
	assert.Error(t, err)
}

func TestValidateDistanceType(t *testing.T) {
	assert.NoError(t, ValidateDistanceType(DistanceTypeEuclidean))
	assert.Error(t, ValidateDistanceType("cosine"))
}

type fakeScoringStore struct {
	specs       []datastore.Spectrogram
	corrupt     []uint
	distances   []datastore.TrackDistance
	predictions []datastore.TrackPrediction
}

func (f *fakeScoringStore) SpectrogramsByTrackIDs(trackIDs []string, params datastore.SpectrogramParams) ([]datastore.Spectrogram, error) {
	return f.specs, nil
}

func (f *fakeScoringStore) MarkSpectrogramCorrupt(id uint) error {
	f.corrupt = append(f.corrupt, id)
	return nil
}

func (f *fakeScoringStore) CreateTrackDistance(t1, t2, modelID, distanceType string, distance float64) (*datastore.TrackDistance, error) {
	td := datastore.TrackDistance{
		SrcID: t1, TgtID: t2, ModelID: modelID,
		DistanceType: distanceType, Distance: distance,
	}
	f.distances = append(f.distances, td)
	return &td, nil
}

func (f *fakeScoringStore) CreateTrackPredictions(predictions []datastore.TrackPrediction) (int, error) {
	f.predictions = predictions
	return len(predictions), nil
}

func storedSpec(t *testing.T, trackID string, id uint, fill float32) datastore.Spectrogram {
	t.Helper()
	data, err := EncodeSpectrogram(testSpectrogram(4, 100, fill))
	require.NoError(t, err)
	return datastore.Spectrogram{ID: id, TrackID: trackID, Data: data}
}

func testScorer(t *testing.T, store Store) *Scorer {
	t.Helper()
	scorer, err := NewScorer(store, NewSpectralModel("m1"),
		datastore.SpectrogramParams{SpecType: "mel", HopSize: 512, WindowSize: 2048, MelBands: 4},
		DistanceTypeEuclidean)
	require.NoError(t, err)
	return scorer
}

func TestNewScorerRejectsUnknownMetric(t *testing.T) {
	_, err := NewScorer(&fakeScoringStore{}, NewSpectralModel("m1"),
		datastore.SpectrogramParams{}, "cosine")
	assert.Error(t, err)
}

func TestComputeDistances(t *testing.T) {
	store := &fakeScoringStore{specs: []datastore.Spectrogram{
		storedSpec(t, "t1", 1, 1.0),
		storedSpec(t, "t2", 2, 3.0),
	}}
	scorer := testScorer(t, store)

	written, err := scorer.ComputeDistances([]datastore.TrackPair{
		{SrcID: "t1", TgtID: "t2"},
		{SrcID: "t1", TgtID: "t1"},
		{SrcID: "t1", TgtID: "missing"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, written, "self pairs and missing embeddings are skipped")
	require.Len(t, store.distances, 1)
	assert.Equal(t, "t1", store.distances[0].SrcID)
	assert.Equal(t, "m1", store.distances[0].ModelID)
	assert.Greater(t, store.distances[0].Distance, 0.0)
}

func TestComputeDistancesFlagsCorruptRows(t *testing.T) {
	store := &fakeScoringStore{specs: []datastore.Spectrogram{
		{ID: 7, TrackID: "t1", Data: []byte("not a spectrogram")},
		storedSpec(t, "t2", 8, 1.0),
	}}
	scorer := testScorer(t, store)

	written, err := scorer.ComputeDistances([]datastore.TrackPair{{SrcID: "t1", TgtID: "t2"}})
	require.NoError(t, err)
	assert.Zero(t, written)
	assert.Equal(t, []uint{7}, store.corrupt)
}

func TestPredictTracks(t *testing.T) {
	store := &fakeScoringStore{specs: []datastore.Spectrogram{
		storedSpec(t, "t1", 1, 5.0),
	}}
	scorer := testScorer(t, store)

	written, err := scorer.PredictTracks([]string{"t1"})
	require.NoError(t, err)
	assert.Equal(t, 1, written)
	require.Len(t, store.predictions, 1)

	p := store.predictions[0]
	assert.Equal(t, "t1", p.TrackID)
	assert.Equal(t, "m1", p.ModelID)
	assert.GreaterOrEqual(t, p.Probability, 0.0)
	assert.LessOrEqual(t, p.Probability, 1.0)
	assert.Contains(t, []float64{0, 1}, p.Prediction)
}
