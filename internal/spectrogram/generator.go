// Package spectrogram converts preview audio into the mel spectrograms the
// scoring layer consumes. FFmpeg handles codec decoding; the mel analysis
// runs in-process so the stored representation is identical on every
// platform.
package spectrogram

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"log/slog"
	"math"
	"os/exec"

	"github.com/soundscout/soundscout-go/internal/errors"
	"github.com/soundscout/soundscout-go/internal/logging"
	"github.com/soundscout/soundscout-go/internal/scoring"
)

const (
	// sampleRate is the analysis rate previews are resampled to.
	sampleRate = 22050
	// melMinHz and melMaxHz bound the filterbank.
	melMinHz = 0.0
	melMaxHz = sampleRate / 2.0
)

// Generator decodes audio and renders mel spectrograms.
type Generator struct {
	ffmpegPath string
	hopSize    int
	windowSize int
	melBands   int
	logger     *slog.Logger
}

// NewGenerator locates ffmpeg and builds a generator for the configured
// analysis parameters.
func NewGenerator(hopSize, windowSize, melBands int) (*Generator, error) {
	ffmpegPath, err := exec.LookPath("ffmpeg")
	if err != nil {
		return nil, errors.New(err).
			Component("spectrogram").
			Category(errors.CategoryConfiguration).
			Context("operation", "locate_ffmpeg").
			Build()
	}
	if hopSize <= 0 || windowSize <= 0 || melBands <= 0 {
		return nil, errors.Newf("invalid analysis parameters hop=%d window=%d bands=%d",
			hopSize, windowSize, melBands).
			Component("spectrogram").
			Category(errors.CategoryConfiguration).
			Build()
	}
	return &Generator{
		ffmpegPath: ffmpegPath,
		hopSize:    hopSize,
		windowSize: windowSize,
		melBands:   melBands,
		logger:     logging.ForService("spectrogram"),
	}, nil
}

// decodePCM pipes the encoded audio through ffmpeg and reads back mono
// 16-bit PCM at the analysis rate.
func (g *Generator) decodePCM(ctx context.Context, audio []byte) ([]float32, error) {
	cmd := exec.CommandContext(ctx, g.ffmpegPath,
		"-hide_banner", "-loglevel", "error",
		"-i", "pipe:0",
		"-f", "s16le",
		"-acodec", "pcm_s16le",
		"-ac", "1",
		"-ar", fmt.Sprintf("%d", sampleRate),
		"pipe:1",
	)
	cmd.Stdin = bytes.NewReader(audio)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffmpeg decode failed: %w (%s)", err, stderr.String())
	}

	raw := stdout.Bytes()
	samples := make([]float32, len(raw)/2)
	for i := range samples {
		samples[i] = float32(int16(binary.LittleEndian.Uint16(raw[i*2:]))) / 32768.0
	}
	if len(samples) == 0 {
		return nil, fmt.Errorf("ffmpeg produced no samples")
	}
	return samples, nil
}

// Generate decodes the audio bytes and returns the encoded mel spectrogram.
func (g *Generator) Generate(ctx context.Context, audio []byte) ([]byte, error) {
	samples, err := g.decodePCM(ctx, audio)
	if err != nil {
		return nil, errors.New(err).
			Component("spectrogram").
			Category(errors.CategoryGeneric).
			Context("operation", "decode_pcm").
			Build()
	}

	spec := g.melSpectrogram(samples)
	encoded, err := scoring.EncodeSpectrogram(spec)
	if err != nil {
		return nil, errors.New(err).
			Component("spectrogram").
			Category(errors.CategoryGeneric).
			Context("operation", "encode").
			Build()
	}
	return encoded, nil
}

// melSpectrogram renders a log-energy mel spectrogram via per-band Goertzel
// analysis of Hann-windowed frames.
func (g *Generator) melSpectrogram(samples []float32) *scoring.Spectrogram {
	frames := 0
	if len(samples) >= g.windowSize {
		frames = 1 + (len(samples)-g.windowSize)/g.hopSize
	}
	if frames == 0 {
		frames = 1
	}

	centers := melCenterFrequencies(g.melBands)
	hann := hannWindow(g.windowSize)
	data := make([]float32, g.melBands*frames)
	windowed := make([]float64, g.windowSize)

	for frame := 0; frame < frames; frame++ {
		offset := frame * g.hopSize
		for i := 0; i < g.windowSize; i++ {
			var sample float64
			if offset+i < len(samples) {
				sample = float64(samples[offset+i])
			}
			windowed[i] = sample * hann[i]
		}
		for band, freq := range centers {
			energy := goertzelPower(windowed, freq)
			data[band*frames+frame] = float32(math.Log1p(energy))
		}
	}

	return &scoring.Spectrogram{Bands: g.melBands, Frames: frames, Data: data}
}

func hannWindow(size int) []float64 {
	window := make([]float64, size)
	for i := range window {
		window[i] = 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(size-1)))
	}
	return window
}

func hzToMel(hz float64) float64 {
	return 2595.0 * math.Log10(1.0+hz/700.0)
}

func melToHz(mel float64) float64 {
	return 700.0 * (math.Pow(10.0, mel/2595.0) - 1.0)
}

// melCenterFrequencies spaces band centers evenly on the mel scale.
func melCenterFrequencies(bands int) []float64 {
	melMin := hzToMel(melMinHz)
	melMax := hzToMel(melMaxHz)
	centers := make([]float64, bands)
	for i := range centers {
		mel := melMin + (melMax-melMin)*float64(i+1)/float64(bands+1)
		centers[i] = melToHz(mel)
	}
	return centers
}

// goertzelPower evaluates the signal power at one frequency.
func goertzelPower(samples []float64, freq float64) float64 {
	omega := 2 * math.Pi * freq / sampleRate
	coeff := 2 * math.Cos(omega)
	var s0, s1, s2 float64
	for _, sample := range samples {
		s0 = sample + coeff*s1 - s2
		s2 = s1
		s1 = s0
	}
	power := s1*s1 + s2*s2 - coeff*s1*s2
	if power < 0 {
		power = 0
	}
	return power / float64(len(samples))
}
