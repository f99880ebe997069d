package effects

// Reverb is a small stereo Schroeder reverb: four damped comb filters per
// side feeding two allpass stages. The right side uses slightly longer delays
// so the tail decorrelates.
type Reverb struct {
	left  reverbSide
	right reverbSide
	wet   float32
}

type reverbSide struct {
	combs   [4]combFilter
	allpass [2]allpassFilter
}

type combFilter struct {
	buf   []float32
	pos   int
	fb    float32
	damp  float32
	store float32
}

type allpassFilter struct {
	buf []float32
	pos int
}

const (
	allpassFeedback = 0.5
	stereoSpread    = 23 // extra samples on the right side at 44.1kHz
)

var (
	combTuning    = [4]int{1116, 1188, 1277, 1356}
	allpassTuning = [2]int{556, 441}
)

// NewReverb creates a reverb.
// roomSize 0..1 scales decay, damping 0..1 darkens the tail, wet 0..1 is the mix.
func NewReverb(sampleRate int, roomSize, damping, wet float32) *Reverb {
	scale := float32(sampleRate) / 44100
	fb := 0.7 + clamp(roomSize, 0, 1)*0.28
	damp := clamp(damping, 0, 1) * 0.4
	r := &Reverb{wet: clamp(wet, 0, 1)}
	r.left.init(scale, 0, fb, damp)
	r.right.init(scale, stereoSpread, fb, damp)
	return r
}

func (s *reverbSide) init(scale float32, spread int, fb, damp float32) {
	for i, n := range combTuning {
		s.combs[i] = combFilter{buf: make([]float32, scaled(n+spread, scale)), fb: fb, damp: damp}
	}
	for i, n := range allpassTuning {
		s.allpass[i] = allpassFilter{buf: make([]float32, scaled(n+spread, scale))}
	}
}

func scaled(n int, scale float32) int {
	if v := int(float32(n) * scale); v > 1 {
		return v
	}
	return 1
}

func (r *Reverb) Process(l, rt float32) (float32, float32) {
	in := (l + rt) * 0.015 // input gain keeps the comb sum near unity
	outL := r.left.process(in)
	outR := r.right.process(in)
	dry := 1 - r.wet
	return l*dry + outL*r.wet, rt*dry + outR*r.wet
}

func (s *reverbSide) process(in float32) float32 {
	var out float32
	for i := range s.combs {
		out += s.combs[i].process(in)
	}
	for i := range s.allpass {
		out = s.allpass[i].process(out)
	}
	return out
}

func (r *Reverb) Reset() {
	r.left.reset()
	r.right.reset()
}

func (s *reverbSide) reset() {
	for i := range s.combs {
		clear(s.combs[i].buf)
		s.combs[i].pos = 0
		s.combs[i].store = 0
	}
	for i := range s.allpass {
		clear(s.allpass[i].buf)
		s.allpass[i].pos = 0
	}
}

func (c *combFilter) process(in float32) float32 {
	out := c.buf[c.pos]
	c.store = out*(1-c.damp) + c.store*c.damp
	c.buf[c.pos] = in + c.store*c.fb
	c.pos++
	if c.pos >= len(c.buf) {
		c.pos = 0
	}
	return out
}

func (a *allpassFilter) process(in float32) float32 {
	bufOut := a.buf[a.pos]
	out := -in + bufOut
	a.buf[a.pos] = in + bufOut*allpassFeedback
	a.pos++
	if a.pos >= len(a.buf) {
		a.pos = 0
	}
	return out
}
