// Package tick converts musical time (MIDI ticks) into sample counts.
package tick

import (
	"errors"
	"fmt"
)

// DefaultTempo is the SMF default of 500000 µs per quarter note (120 BPM).
const DefaultTempo = 500000

var (
	ErrInvalidBPM        = errors.New("bpm must be positive")
	ErrInvalidPPQN       = errors.New("ppqn must be positive")
	ErrInvalidSampleRate = errors.New("sample rate must be positive")
	ErrInvalidTempo      = errors.New("tempo must be positive")
)

// BPMFromTempo converts a tempo in microseconds per beat into beats per minute.
func BPMFromTempo(microsPerBeat int) (float64, error) {
	if microsPerBeat <= 0 {
		return 0, fmt.Errorf("%w: %d µs/beat", ErrInvalidTempo, microsPerBeat)
	}
	// 1 min = 6e7 µs
	return 6e7 / float64(microsPerBeat), nil
}

// Converter maps ticks to samples for one fixed tempo, resolution and sample rate.
// The zero value converts everything to 0; use NewConverter.
type Converter struct {
	bpm            float64
	ppqn           int
	sampleRate     int
	samplesPerTick float64
}

func NewConverter(bpm float64, ppqn, sampleRate int) (Converter, error) {
	if err := validate(bpm, ppqn, sampleRate); err != nil {
		return Converter{}, err
	}
	return Converter{
		bpm:            bpm,
		ppqn:           ppqn,
		sampleRate:     sampleRate,
		samplesPerTick: 60 / (bpm * float64(ppqn)) * float64(sampleRate),
	}, nil
}

// Samples returns ticks × 60/(bpm×ppqn) × sampleRate, truncated toward zero.
// Negative tick counts yield 0.
func (c Converter) Samples(ticks int64) int64 {
	if ticks <= 0 {
		return 0
	}
	return int64(float64(ticks) * c.samplesPerTick)
}

func (c Converter) BPM() float64 { return c.bpm }

func (c Converter) PPQN() int { return c.ppqn }

func (c Converter) SampleRate() int { return c.sampleRate }

// Samples is the one-shot form of Converter.Samples.
func Samples(ticks int64, bpm float64, ppqn, sampleRate int) (int64, error) {
	c, err := NewConverter(bpm, ppqn, sampleRate)
	if err != nil {
		return 0, err
	}
	return c.Samples(ticks), nil
}

func validate(bpm float64, ppqn, sampleRate int) error {
	// !(bpm > 0) also rejects NaN
	if !(bpm > 0) {
		return fmt.Errorf("%w: %v", ErrInvalidBPM, bpm)
	}
	if ppqn <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidPPQN, ppqn)
	}
	if sampleRate <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidSampleRate, sampleRate)
	}
	return nil
}
