// Package scoring turns stored spectrograms into embeddings, scores tracks
// against a hit model and computes pairwise distances between embeddings.
package scoring

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
)

// Spectrogram binary layout: magic, band and frame counts, then row-major
// little-endian float32 samples.
var specMagic = [4]byte{'S', 'S', 'P', 'C'}

// modelFrames is the fixed frame count the embedding model expects. Shorter
// spectrograms are zero padded, longer ones clipped.
const modelFrames = 1765

// Spectrogram is a decoded mel spectrogram, bands by frames.
type Spectrogram struct {
	Bands  int
	Frames int
	Data   []float32 // row-major, len = Bands*Frames
}

// At returns the sample for one band and frame.
func (s *Spectrogram) At(band, frame int) float32 {
	return s.Data[band*s.Frames+frame]
}

// EncodeSpectrogram serializes a spectrogram into the stored byte format.
func EncodeSpectrogram(spec *Spectrogram) ([]byte, error) {
	if spec.Bands <= 0 || spec.Frames <= 0 {
		return nil, fmt.Errorf("invalid spectrogram shape %dx%d", spec.Bands, spec.Frames)
	}
	if len(spec.Data) != spec.Bands*spec.Frames {
		return nil, fmt.Errorf("spectrogram data length %d does not match shape %dx%d",
			len(spec.Data), spec.Bands, spec.Frames)
	}

	buf := new(bytes.Buffer)
	buf.Write(specMagic[:])
	if err := binary.Write(buf, binary.LittleEndian, uint32(spec.Bands)); err != nil {
		return nil, err
	}
	if err := binary.Write(buf, binary.LittleEndian, uint32(spec.Frames)); err != nil {
		return nil, err
	}
	if err := binary.Write(buf, binary.LittleEndian, spec.Data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeSpectrogram parses stored spectrogram bytes. Any structural problem
// is an error; callers treat a decode failure as a corrupt row.
func DecodeSpectrogram(data []byte) (*Spectrogram, error) {
	if len(data) < 12 {
		return nil, fmt.Errorf("spectrogram blob too short (%d bytes)", len(data))
	}
	if !bytes.Equal(data[:4], specMagic[:]) {
		return nil, fmt.Errorf("bad spectrogram magic %q", data[:4])
	}

	bands := binary.LittleEndian.Uint32(data[4:8])
	frames := binary.LittleEndian.Uint32(data[8:12])
	if bands == 0 || frames == 0 || bands > 4096 || frames > 1<<20 {
		return nil, fmt.Errorf("implausible spectrogram shape %dx%d", bands, frames)
	}

	want := int(bands) * int(frames) * 4
	payload := data[12:]
	if len(payload) != want {
		return nil, fmt.Errorf("spectrogram payload %d bytes, want %d", len(payload), want)
	}

	samples := make([]float32, int(bands)*int(frames))
	for i := range samples {
		bits := binary.LittleEndian.Uint32(payload[i*4:])
		samples[i] = math.Float32frombits(bits)
	}
	return &Spectrogram{Bands: int(bands), Frames: int(frames), Data: samples}, nil
}

// Clip pads or truncates a spectrogram to the model's fixed frame count.
func Clip(spec *Spectrogram, frames int) *Spectrogram {
	if spec.Frames == frames {
		return spec
	}
	clipped := &Spectrogram{
		Bands:  spec.Bands,
		Frames: frames,
		Data:   make([]float32, spec.Bands*frames),
	}
	copyFrames := spec.Frames
	if copyFrames > frames {
		copyFrames = frames
	}
	for band := 0; band < spec.Bands; band++ {
		copy(clipped.Data[band*frames:band*frames+copyFrames],
			spec.Data[band*spec.Frames:band*spec.Frames+copyFrames])
	}
	return clipped
}
