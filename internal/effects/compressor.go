package effects

import "math"

// Compressor is a stereo-linked bus compressor. Both channels share one
// envelope so loud notes on one side do not shift the stereo image.
type Compressor struct {
	threshold float32
	ratio     float32
	attack    float32 // coefficient
	release   float32 // coefficient
	makeup    float32
	env       float32
}

// NewCompressor creates a compressor.
// thresholdDB: threshold in dB (e.g., -12)
// ratio: compression ratio (e.g., 4 for 4:1)
// attackMs, releaseMs: envelope times in ms
// makeupDB: makeup gain in dB
func NewCompressor(sampleRate int, thresholdDB, ratio, attackMs, releaseMs, makeupDB float32) *Compressor {
	if ratio < 1 {
		ratio = 1
	}
	return &Compressor{
		threshold: dbToGain(thresholdDB),
		ratio:     ratio,
		attack:    coefficient(attackMs, sampleRate),
		release:   coefficient(releaseMs, sampleRate),
		makeup:    dbToGain(makeupDB),
	}
}

// NewMasterCompressor returns the settings used on the player's output bus.
func NewMasterCompressor(sampleRate int) *Compressor {
	return NewCompressor(sampleRate, -6, 4, 5, 120, 0)
}

func dbToGain(db float32) float32 {
	return float32(math.Pow(10, float64(db)/20))
}

func coefficient(ms float32, sampleRate int) float32 {
	samples := float64(ms) * float64(sampleRate) / 1000
	if samples < 1 {
		return 1
	}
	return float32(1 - math.Exp(-1/samples))
}

func (c *Compressor) Process(l, r float32) (float32, float32) {
	peak := float32(math.Max(math.Abs(float64(l)), math.Abs(float64(r))))
	if peak > c.env {
		c.env += c.attack * (peak - c.env)
	} else {
		c.env += c.release * (peak - c.env)
	}
	g := c.gain() * c.makeup
	return l * g, r * g
}

func (c *Compressor) gain() float32 {
	if c.env <= c.threshold || c.threshold <= 0 {
		return 1
	}
	over := c.env / c.threshold
	return float32(math.Pow(float64(over), float64(1/c.ratio-1)))
}

func (c *Compressor) Reset() {
	c.env = 0
}
