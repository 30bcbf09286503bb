package features

import (
	"math"
	"math/cmplx"
	"sort"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

const (
	FrameLength = 2048
	HopLength   = 512
	NumMelBands = 128

	contrastBands    = 6
	contrastFMin     = 200.0
	contrastQuantile = 0.02
	topDB            = 80.0
	amin             = 1e-10
	startBPM         = 120.0
	maxBPM           = 320.0
	tempoWindowSecs  = 8.0
)

// hannWindow returns a periodic Hann window of length n.
func hannWindow(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/float64(n))
	}
	return w
}

// centerPad pads x with n/2 zeros on both sides so frame t is centred on sample t*hop.
func centerPad(x []float64, n int) []float64 {
	half := n / 2
	out := make([]float64, len(x)+2*half)
	copy(out[half:], x)
	return out
}

func frameCount(length, n, hop int) int {
	if length < n {
		return 1
	}
	return 1 + (length-n)/hop
}

// frame returns the n samples starting at start, zero-filled past the end.
func frame(x []float64, start, n int, dst []float64) []float64 {
	for k := 0; k < n; k++ {
		if start+k < len(x) {
			dst[k] = x[start+k]
		} else {
			dst[k] = 0
		}
	}
	return dst
}

func hzToMel(f float64) float64 {
	const (
		fSp       = 200.0 / 3
		minLogHz  = 1000.0
		minLogMel = minLogHz / fSp
	)
	logStep := math.Log(6.4) / 27
	if f < minLogHz {
		return f / fSp
	}
	return minLogMel + math.Log(f/minLogHz)/logStep
}

func melToHz(m float64) float64 {
	const (
		fSp       = 200.0 / 3
		minLogHz  = 1000.0
		minLogMel = minLogHz / fSp
	)
	logStep := math.Log(6.4) / 27
	if m < minLogMel {
		return m * fSp
	}
	return minLogHz * math.Exp(logStep*(m-minLogMel))
}

// melFilter is one triangular band stored sparsely over FFT bins [start, start+len(weights)).
type melFilter struct {
	start   int
	weights []float64
}

// melFilterBank builds area-normalised triangular filters on the Slaney mel scale.
func melFilterBank(sampleRate, n, bands int) []melFilter {
	nBins := n/2 + 1
	binHz := float64(sampleRate) / float64(n)
	maxMel := hzToMel(float64(sampleRate) / 2)

	edges := make([]float64, bands+2)
	for i := range edges {
		edges[i] = melToHz(maxMel * float64(i) / float64(bands+1))
	}

	bank := make([]melFilter, bands)
	for b := 0; b < bands; b++ {
		lower, center, upper := edges[b], edges[b+1], edges[b+2]
		norm := 2.0 / (upper - lower)
		f := melFilter{start: -1}
		for k := 0; k < nBins; k++ {
			hz := float64(k) * binHz
			w := math.Min((hz-lower)/(center-lower), (upper-hz)/(upper-center))
			if w <= 0 {
				if f.start >= 0 {
					break
				}
				continue
			}
			if f.start < 0 {
				f.start = k
			}
			f.weights = append(f.weights, w*norm)
		}
		if f.start < 0 {
			f.start = 0
		}
		bank[b] = f
	}
	return bank
}

func (f melFilter) apply(power []float64) float64 {
	var sum float64
	for i, w := range f.weights {
		sum += w * power[f.start+i]
	}
	return sum
}

// dctRow returns row k of the orthonormal DCT-II matrix of size n.
func dctRow(k, n int) []float64 {
	row := make([]float64, n)
	scale := math.Sqrt(2 / float64(n))
	if k == 0 {
		scale = math.Sqrt(1 / float64(n))
	}
	for i := range row {
		row[i] = scale * math.Cos(math.Pi*float64(k)*(2*float64(i)+1)/(2*float64(n)))
	}
	return row
}

func powerToDB(p float64) float64 {
	return 10 * math.Log10(math.Max(amin, p))
}

// pitchClassBins maps every FFT bin to a pitch class (C=0), or -1 below 20 Hz.
func pitchClassBins(sampleRate, n int) []int {
	nBins := n/2 + 1
	binHz := float64(sampleRate) / float64(n)
	classes := make([]int, nBins)
	for k := range classes {
		hz := float64(k) * binHz
		if hz < 20 {
			classes[k] = -1
			continue
		}
		midi := 69 + 12*math.Log2(hz/440)
		classes[k] = ((int(math.Round(midi)) % 12) + 12) % 12
	}
	return classes
}

// contrastBandBins returns the [lo, hi) FFT bin range of each octave band.
func contrastBandBins(sampleRate, n int) [][2]int {
	nBins := n/2 + 1
	binHz := float64(sampleRate) / float64(n)
	ranges := make([][2]int, contrastBands+1)
	low := 0.0
	for b := 0; b <= contrastBands; b++ {
		high := contrastFMin * math.Pow(2, float64(b))
		lo := int(math.Ceil(low / binHz))
		hi := int(math.Floor(high/binHz)) + 1
		if b == contrastBands || hi > nBins {
			hi = nBins
		}
		if lo >= hi {
			lo = hi - 1
		}
		ranges[b] = [2]int{lo, hi}
		low = high
	}
	return ranges
}

// bandContrast is the dB gap between the loudest and quietest quantile of mag.
func bandContrast(mag []float64, scratch []float64) float64 {
	sorted := append(scratch[:0], mag...)
	sort.Float64s(sorted)
	nq := int(math.Round(contrastQuantile * float64(len(sorted))))
	if nq < 1 {
		nq = 1
	}
	valley := stat.Mean(sorted[:nq], nil)
	peak := stat.Mean(sorted[len(sorted)-nq:], nil)
	return powerToDB(peak) - powerToDB(valley)
}

func zeroCrossingRate(x []float64) float64 {
	if len(x) < 2 {
		return 0
	}
	crossings := 0
	prev := math.Signbit(x[0]) && x[0] != 0
	for _, v := range x[1:] {
		neg := math.Signbit(v) && v != 0
		if neg != prev {
			crossings++
		}
		prev = neg
	}
	return float64(crossings) / float64(len(x))
}

func rms(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	return math.Sqrt(floats.Dot(x, x) / float64(len(x)))
}

// spectrumFrames runs a centred STFT and hands each frame's magnitude
// spectrum (n/2+1 bins) and raw samples to fn.
func spectrumFrames(x []float64, n, hop int, fn func(mag, samples []float64)) int {
	padded := centerPad(x, n)
	frames := frameCount(len(padded), n, hop)
	window := hannWindow(n)
	fft := fourier.NewFFT(n)

	raw := make([]float64, n)
	windowed := make([]float64, n)
	coeffs := make([]complex128, n/2+1)
	mag := make([]float64, n/2+1)
	for t := 0; t < frames; t++ {
		frame(padded, t*hop, n, raw)
		floats.MulTo(windowed, raw, window)
		coeffs = fft.Coefficients(coeffs, windowed)
		for k, c := range coeffs {
			mag[k] = cmplx.Abs(c)
		}
		fn(mag, raw)
	}
	return frames
}

// onsetEnvelope is the mean positive first difference of the dB mel spectrogram.
func onsetEnvelope(melDB [][]float64) []float64 {
	env := make([]float64, len(melDB))
	for t := 1; t < len(melDB); t++ {
		var sum float64
		for b, v := range melDB[t] {
			if d := v - melDB[t-1][b]; d > 0 {
				sum += d
			}
		}
		env[t] = sum / float64(len(melDB[t]))
	}
	return env
}

// estimateTempo picks the autocorrelation lag of the onset envelope that scores
// best under a log-normal prior centred on startBPM.
func estimateTempo(env []float64, sampleRate, hop int) float64 {
	maxLag := int(tempoWindowSecs * float64(sampleRate) / float64(hop))
	if maxLag >= len(env) {
		maxLag = len(env) - 1
	}
	if maxLag < 1 {
		return 0
	}

	centred := make([]float64, len(env))
	mean := stat.Mean(env, nil)
	for i, v := range env {
		centred[i] = v - mean
	}
	zero := floats.Dot(centred, centred)
	if zero <= 0 {
		return 0
	}

	framesPerMinute := 60 * float64(sampleRate) / float64(hop)
	best, bestScore := 0.0, math.Inf(-1)
	for lag := 1; lag <= maxLag; lag++ {
		bpm := framesPerMinute / float64(lag)
		if bpm > maxBPM {
			continue
		}
		ac := floats.Dot(centred[:len(centred)-lag], centred[lag:]) / zero
		if ac <= 0 {
			continue
		}
		prior := -0.5 * math.Pow(math.Log2(bpm)-math.Log2(startBPM), 2)
		score := math.Log1p(1e6*ac) + prior
		if score > bestScore {
			best, bestScore = bpm, score
		}
	}
	return best
}

// resampleLinear converts x from rate `from` to rate `to` by linear interpolation.
func resampleLinear(x []float64, from, to int) []float64 {
	if from == to || from <= 0 || to <= 0 || len(x) == 0 {
		return x
	}
	ratio := float64(from) / float64(to)
	n := int(math.Floor(float64(len(x)) / ratio))
	if n < 1 {
		n = 1
	}
	out := make([]float64, n)
	for i := range out {
		pos := float64(i) * ratio
		j := int(pos)
		if j >= len(x)-1 {
			out[i] = x[len(x)-1]
			continue
		}
		frac := pos - float64(j)
		out[i] = x[j]*(1-frac) + x[j+1]*frac
	}
	return out
}
