package scoring

import (
	"math"

	"github.com/soundscout/soundscout-go/internal/errors"
)

// Model maps spectrograms to embedding vectors and embeddings to hit
// probabilities.
type Model interface {
	// ID identifies the model version; predictions are stored against it.
	ID() string
	// Features computes the embedding vector of one spectrogram.
	Features(spec *Spectrogram) []float32
	// Predict scores an embedding as a hit probability in [0, 1].
	Predict(embedding []float32) float64
}

// SpectralModel embeds a spectrogram by per-band energy statistics: the mean
// and standard deviation of each mel band over the clipped frame window,
// giving a 2*bands dimensional vector. The hit head is a fixed logistic over
// the embedding mean.
type SpectralModel struct {
	modelID string
	frames  int
}

// NewSpectralModel builds the embedding model for the configured id.
func NewSpectralModel(modelID string) *SpectralModel {
	return &SpectralModel{modelID: modelID, frames: modelFrames}
}

func (m *SpectralModel) ID() string { return m.modelID }

// Features computes the per-band mean and standard deviation embedding.
func (m *SpectralModel) Features(spec *Spectrogram) []float32 {
	clipped := Clip(spec, m.frames)
	embedding := make([]float32, 2*clipped.Bands)

	for band := 0; band < clipped.Bands; band++ {
		row := clipped.Data[band*clipped.Frames : (band+1)*clipped.Frames]
		var sum float64
		for _, v := range row {
			sum += float64(v)
		}
		mean := sum / float64(len(row))

		var sqDiff float64
		for _, v := range row {
			d := float64(v) - mean
			sqDiff += d * d
		}
		std := math.Sqrt(sqDiff / float64(len(row)))

		embedding[band] = float32(mean)
		embedding[clipped.Bands+band] = float32(std)
	}
	return embedding
}

// Predict applies the logistic hit head to an embedding.
func (m *SpectralModel) Predict(embedding []float32) float64 {
	if len(embedding) == 0 {
		return 0
	}
	var sum float64
	for _, v := range embedding {
		sum += float64(v)
	}
	mean := sum / float64(len(embedding))
	return 1.0 / (1.0 + math.Exp(-mean))
}

// DistanceTypeEuclidean is the only supported distance metric.
const DistanceTypeEuclidean = "euclidean"

// ValidateDistanceType rejects any metric other than euclidean at
// configuration time rather than mid-batch.
func ValidateDistanceType(distanceType string) error {
	if distanceType != DistanceTypeEuclidean {
		return errors.Newf("unsupported distance type %q, only %q is implemented",
			distanceType, DistanceTypeEuclidean).
			Component("scoring").
			Category(errors.CategoryConfiguration).
			Build()
	}
	return nil
}

// EuclideanDistance computes the squared-error distance between two
// embeddings of equal length.
func EuclideanDistance(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, errors.Newf("embedding length mismatch: %d vs %d", len(a), len(b)).
			Component("scoring").
			Category(errors.CategoryScoring).
			Build()
	}
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return sum, nil
}
