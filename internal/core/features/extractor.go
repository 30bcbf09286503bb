package features

import (
	"errors"
	"fmt"
	"math"
	"os"

	"github.com/go-audio/wav"
	"gonum.org/v1/gonum/floats"

	"github.com/sumannaidur/extractor/internal/shared"
)

const DefaultSampleRate = 22050

var errEmptyAudio = errors.New("audio contains no samples")

// Extractor computes the feature vector of a WAV file.
type Extractor struct {
	sampleRate int
}

// NewExtractor creates an extractor that analyses audio at sampleRate.
func NewExtractor(sampleRate int) *Extractor {
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}
	return &Extractor{sampleRate: sampleRate}
}

// Extract decodes path and analyses it. Every failure, including a panic in
// the analysis, is reported as shared.ErrExtractionFailed.
func (e *Extractor) Extract(path string) (fv shared.FeatureVector, err error) {
	defer func() {
		if r := recover(); r != nil {
			fv = shared.FeatureVector{}
			err = fmt.Errorf("%w: %s: panic: %v", shared.ErrExtractionFailed, path, r)
		}
	}()

	samples, rate, err := decodeMono(path)
	if err != nil {
		return shared.FeatureVector{}, fmt.Errorf("%w: %s: %v", shared.ErrExtractionFailed, path, err)
	}
	samples = resampleLinear(samples, rate, e.sampleRate)

	fv, err = Analyze(samples, e.sampleRate)
	if err != nil {
		return shared.FeatureVector{}, fmt.Errorf("%w: %s: %v", shared.ErrExtractionFailed, path, err)
	}
	return fv, nil
}

// decodeMono reads a PCM WAV file and returns its downmixed samples in [-1, 1].
func decodeMono(path string) ([]float64, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()

	d := wav.NewDecoder(f)
	if !d.IsValidFile() {
		return nil, 0, errors.New("not a valid WAV file")
	}
	buf, err := d.FullPCMBuffer()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to decode PCM: %w", err)
	}
	if buf == nil || buf.Format == nil || len(buf.Data) == 0 {
		return nil, 0, errEmptyAudio
	}

	channels := buf.Format.NumChannels
	if channels <= 0 {
		channels = int(d.NumChans)
	}
	if channels <= 0 {
		channels = 1
	}
	bitDepth := buf.SourceBitDepth
	if bitDepth <= 0 {
		bitDepth = int(d.BitDepth)
	}
	if bitDepth <= 0 {
		bitDepth = 16
	}
	scale := math.Pow(2, float64(bitDepth-1))
	offset := 0.0
	if bitDepth == 8 {
		offset = 128 // 8-bit PCM is unsigned
	}

	frames := len(buf.Data) / channels
	if frames == 0 {
		return nil, 0, errEmptyAudio
	}
	mono := make([]float64, frames)
	for i := 0; i < frames; i++ {
		var sum float64
		for c := 0; c < channels; c++ {
			sum += (float64(buf.Data[i*channels+c]) - offset) / scale
		}
		mono[i] = sum / float64(channels)
	}

	rate := buf.Format.SampleRate
	if rate <= 0 {
		rate = int(d.SampleRate)
	}
	return mono, rate, nil
}

// Analyze computes the feature vector of mono samples at sampleRate.
func Analyze(samples []float64, sampleRate int) (shared.FeatureVector, error) {
	if len(samples) == 0 {
		return shared.FeatureVector{}, errEmptyAudio
	}

	bank := melFilterBank(sampleRate, FrameLength, NumMelBands)
	pitch := pitchClassBins(sampleRate, FrameLength)
	bands := contrastBandBins(sampleRate, FrameLength)
	dct0 := dctRow(0, NumMelBands)
	dct1 := dctRow(1, NumMelBands)

	var rmsSum, zcrSum, chromaSum, contrastSum float64
	var melDB [][]float64
	power := make([]float64, FrameLength/2+1)
	chroma := make([]float64, 12)
	scratch := make([]float64, 0, FrameLength/2+1)

	frames := spectrumFrames(samples, FrameLength, HopLength, func(mag, raw []float64) {
		rmsSum += rms(raw)
		zcrSum += zeroCrossingRate(raw)

		for k, m := range mag {
			power[k] = m * m
		}

		for i := range chroma {
			chroma[i] = 0
		}
		for k, pc := range pitch {
			if pc >= 0 {
				chroma[pc] += power[k]
			}
		}
		if peak := floats.Max(chroma); peak > 0 {
			floats.Scale(1/peak, chroma)
		}
		chromaSum += floats.Sum(chroma) / 12

		var contrast float64
		for _, r := range bands {
			contrast += bandContrast(mag[r[0]:r[1]], scratch)
		}
		contrastSum += contrast / float64(len(bands))

		row := make([]float64, len(bank))
		for b, filter := range bank {
			row[b] = powerToDB(filter.apply(power))
		}
		melDB = append(melDB, row)
	})

	// Clip the dB mel spectrogram to topDB below its global peak.
	peak := math.Inf(-1)
	for _, row := range melDB {
		peak = math.Max(peak, floats.Max(row))
	}
	var mfcc0, mfcc1 float64
	for _, row := range melDB {
		for b, v := range row {
			if v < peak-topDB {
				row[b] = peak - topDB
			}
		}
		mfcc0 += floats.Dot(dct0, row)
		mfcc1 += floats.Dot(dct1, row)
	}

	n := float64(frames)
	fv := shared.FeatureVector{
		Tempo:            estimateTempo(onsetEnvelope(melDB), sampleRate, HopLength),
		Loudness:         rmsSum / n,
		Key:              chromaSum / n,
		Danceability:     contrastSum / n,
		Energy:           mfcc0 / n,
		Speechiness:      mfcc1 / n,
		Instrumentalness: zcrSum / n,
	}
	for _, v := range fv.Values() {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return shared.FeatureVector{}, errors.New("analysis produced a non-finite value")
		}
	}
	return fv, nil
}
