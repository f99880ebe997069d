package tick

import (
	"errors"
	"math"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestEighthNoteAt120BPM(t *testing.T) {
	got, err := Samples(48, 120, 96, 44100)
	if err != nil {
		t.Fatalf("samples: %v", err)
	}
	if got != 11025 {
		t.Fatalf("samples = %d, want 11025", got)
	}
}

func TestZeroTicksIsZeroSamples(t *testing.T) {
	c, err := NewConverter(93.5, 480, 48000)
	if err != nil {
		t.Fatalf("new converter: %v", err)
	}
	if got := c.Samples(0); got != 0 {
		t.Fatalf("Samples(0) = %d, want 0", got)
	}
	if got := c.Samples(-10); got != 0 {
		t.Fatalf("Samples(-10) = %d, want 0", got)
	}
}

func TestTruncatesTowardZero(t *testing.T) {
	// 1 tick at 120 bpm, 96 ppqn, 44100 Hz = 229.6875 samples
	got, err := Samples(1, 120, 96, 44100)
	if err != nil {
		t.Fatalf("samples: %v", err)
	}
	if got != 229 {
		t.Fatalf("samples = %d, want 229", got)
	}
}

func TestInvalidConfiguration(t *testing.T) {
	cases := []struct {
		name       string
		bpm        float64
		ppqn       int
		sampleRate int
		want       error
	}{
		{"zero bpm", 0, 96, 44100, ErrInvalidBPM},
		{"negative bpm", -120, 96, 44100, ErrInvalidBPM},
		{"nan bpm", math.NaN(), 96, 44100, ErrInvalidBPM},
		{"zero ppqn", 120, 0, 44100, ErrInvalidPPQN},
		{"negative ppqn", 120, -1, 44100, ErrInvalidPPQN},
		{"zero sample rate", 120, 96, 0, ErrInvalidSampleRate},
		{"negative sample rate", 120, 96, -48000, ErrInvalidSampleRate},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Samples(10, tc.bpm, tc.ppqn, tc.sampleRate)
			if !errors.Is(err, tc.want) {
				t.Fatalf("err = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestBPMFromTempo(t *testing.T) {
	bpm, err := BPMFromTempo(DefaultTempo)
	if err != nil {
		t.Fatalf("bpm: %v", err)
	}
	if bpm != 120 {
		t.Fatalf("bpm = %v, want 120", bpm)
	}
	if _, err := BPMFromTempo(0); !errors.Is(err, ErrInvalidTempo) {
		t.Fatalf("err = %v, want ErrInvalidTempo", err)
	}
}

func TestConverterProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("samples are non-negative and monotone in ticks", prop.ForAll(
		func(ticks int64, step int64, bpm float64, ppqn int, sampleRate int) bool {
			c, err := NewConverter(bpm, ppqn, sampleRate)
			if err != nil {
				return false
			}
			a := c.Samples(ticks)
			b := c.Samples(ticks + step)
			return a >= 0 && b >= a && c.Samples(0) == 0
		},
		gen.Int64Range(0, 1<<24),
		gen.Int64Range(0, 1<<16),
		gen.Float64Range(1, 400),
		gen.IntRange(1, 960),
		gen.IntRange(8000, 192000),
	))

	properties.Property("one-shot form matches converter", prop.ForAll(
		func(ticks int64, ppqn int) bool {
			c, err := NewConverter(120, ppqn, 44100)
			if err != nil {
				return false
			}
			got, err := Samples(ticks, 120, ppqn, 44100)
			return err == nil && got == c.Samples(ticks)
		},
		gen.Int64Range(0, 1<<20),
		gen.IntRange(1, 960),
	))

	properties.TestingRun(t)
}
