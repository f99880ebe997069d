package lfo

import "math"

// Waveforms.
const (
	WaveSine = iota
	WaveTriangle
	WaveSquare
	WaveSaw
)

// LFO is a low-frequency oscillator shared by every voice of an engine.
type LFO struct {
	depth    float64 // units depend on the consumer (semitones for vibrato)
	rateHz   float64
	waveform int
	phase    float64 // [0, 1)
}

// Set configures the oscillator. Unknown waveforms fall back to sine.
func (l *LFO) Set(depth, rateHz float64, waveform int) {
	l.depth = depth
	l.rateHz = rateHz
	if waveform < WaveSine || waveform > WaveSaw {
		waveform = WaveSine
	}
	l.waveform = waveform
}

// SetDepth changes the depth and keeps the phase running.
func (l *LFO) SetDepth(depth float64) {
	l.depth = depth
}

func (l *LFO) Depth() float64 { return l.depth }

// Sample advances one sample and returns a value in [-depth, +depth].
// Returns 0 while inactive.
func (l *LFO) Sample(sampleRate float64) float64 {
	if !l.Active() || sampleRate <= 0 {
		return 0
	}
	var v float64
	switch l.waveform {
	case WaveTriangle:
		if l.phase < 0.5 {
			v = 4*l.phase - 1
		} else {
			v = 3 - 4*l.phase
		}
	case WaveSquare:
		v = 1
		if l.phase >= 0.5 {
			v = -1
		}
	case WaveSaw:
		v = 1 - 2*l.phase
	default:
		v = math.Sin(2 * math.Pi * l.phase)
	}
	l.phase += l.rateHz / sampleRate
	l.phase -= math.Floor(l.phase)
	return v * l.depth
}

// Active reports whether both depth and rate are non-zero.
func (l *LFO) Active() bool {
	return l.depth != 0 && l.rateHz != 0
}

func (l *LFO) Reset() {
	l.phase = 0
}
