package fm

import (
	"math"
	"sync/atomic"

	"github.com/cbegin/midiplay-go/internal/lfo"
)

const twoPi = math.Pi * 2

// Percussion is added to a program number to request a percussive noise voice.
const Percussion = 128

type Params struct {
	Polyphony   int
	CarrierMul  float64
	ModMul      float64
	ModIndex    float64
	AttackSec   float64
	DecaySec    float64
	SustainLvl  float64
	ReleaseSec  float64
	MasterGain  float64
	VelocityAmp float64
	LPFCutoff   float64 // lowpass cutoff in Hz (0 = disabled)
	VibratoHz   float64 // pitch LFO rate driven by the modulation wheel
}

func DefaultParams() Params {
	return Params{
		Polyphony:   32,
		CarrierMul:  1.0,
		ModMul:      2.0,
		ModIndex:    1.6,
		AttackSec:   0.005,
		DecaySec:    0.12,
		SustainLvl:  0.75,
		ReleaseSec:  0.2,
		MasterGain:  0.20,
		VelocityAmp: 0.8,
		LPFCutoff:   12000,
		VibratoHz:   5.5,
	}
}

// Waveforms selected per General MIDI program family.
const (
	waveSine = iota
	waveSaw
	waveTriangle
	waveSquare
	wavePulse
	waveNoise
)

// familyWave maps the 16 GM program families (program/8) to a carrier waveform.
var familyWave = [16]int{
	waveSine,     // piano
	waveTriangle, // chromatic percussion
	waveSquare,   // organ
	waveTriangle, // guitar
	waveSine,     // bass
	waveSaw,      // strings
	waveSaw,      // ensemble
	waveSquare,   // brass
	wavePulse,    // reed
	waveTriangle, // pipe
	waveSaw,      // synth lead
	waveTriangle, // synth pad
	waveSaw,      // synth effects
	waveTriangle, // ethnic
	waveNoise,    // percussive
	waveNoise,    // sound effects
}

type envState int

const (
	envAttack envState = iota
	envDecay
	envSustain
	envRelease
	envOff
)

type operator struct {
	phase    float64
	env      float64
	envState envState
	mul      float64
	level    float64
	ar       float64
	dr       float64
	sl       float64
	rr       float64
}

type voice struct {
	active   bool
	id       int
	velocity float64
	freq     float64
	pan      float64
	waveform int
	carrier  operator
	mod      operator
}

// Engine is a polyphonic two-operator FM synthesizer. It is not safe for
// concurrent use except for SetMasterGain.
type Engine struct {
	sampleRate float64
	params     Params
	voices     []voice
	nextID     int
	masterGain uint64
	lpfL       float64
	lpfR       float64
	lpfAlpha   float64
	noise      uint32
	vibrato    lfo.LFO
}

func New(sampleRate int, params Params) *Engine {
	if params.Polyphony <= 0 {
		params.Polyphony = 32
	}
	e := &Engine{
		params:     params,
		voices:     make([]voice, params.Polyphony),
		masterGain: math.Float64bits(params.MasterGain),
		noise:      0x7FFF,
	}
	e.vibrato.Set(0, params.VibratoHz, lfo.WaveSine)
	e.SetSampleRate(sampleRate)
	return e
}

// SetSampleRate retunes the engine for a new output rate.
func (e *Engine) SetSampleRate(sampleRate int) {
	e.sampleRate = float64(sampleRate)
	e.lpfAlpha = 0
	if c := e.params.LPFCutoff; c > 0 && c < e.sampleRate/2 {
		rc := 1.0 / (twoPi * c)
		dt := 1.0 / e.sampleRate
		e.lpfAlpha = dt / (rc + dt)
	}
}

func (e *Engine) SampleRate() int { return int(e.sampleRate) }

// NoteOn starts a voice and returns its id. pan is -64..64; program is a GM
// program (0-127), or Percussion+key for a drum hit.
func (e *Engine) NoteOn(note int, velocity int, pan int, program int) int {
	slot := e.stealVoice()
	id := e.nextID
	e.nextID++
	v := &e.voices[slot]
	*v = voice{
		active:   true,
		id:       id,
		velocity: clamp(float64(velocity)/127.0, 0, 1),
		freq:     midiToFreq(note),
		pan:      clamp(float64(pan), -64, 64),
	}
	if program >= Percussion {
		v.waveform = waveNoise
		v.carrier = operator{envState: envAttack, mul: 1, level: 1, ar: 0.001, dr: 0.08, sl: 0, rr: 0.05}
		return id
	}
	v.waveform = familyWave[clampInt(program, 0, 127)/8]
	v.carrier = operator{
		envState: envAttack,
		mul:      e.params.CarrierMul,
		level:    1,
		ar:       e.params.AttackSec,
		dr:       e.params.DecaySec,
		sl:       e.params.SustainLvl,
		rr:       e.params.ReleaseSec,
	}
	v.mod = v.carrier
	v.mod.mul = e.params.ModMul
	v.mod.level = e.params.ModIndex / 8.0
	return id
}

func (e *Engine) NoteOff(id int) {
	for i := range e.voices {
		v := &e.voices[i]
		if v.active && v.id == id {
			release(&v.carrier)
			release(&v.mod)
		}
	}
}

// AllNotesOff releases every sounding voice.
func (e *Engine) AllNotesOff() {
	for i := range e.voices {
		if e.voices[i].active {
			release(&e.voices[i].carrier)
			release(&e.voices[i].mod)
		}
	}
}

func release(op *operator) {
	if op.envState != envOff {
		op.envState = envRelease
	}
}

// SetVibrato sets the modulation-wheel pitch depth in semitones.
func (e *Engine) SetVibrato(depth float64) {
	e.vibrato.SetDepth(depth)
}

func (e *Engine) RenderFrame() (float32, float32) {
	freqMul := 1.0
	if d := e.vibrato.Sample(e.sampleRate); d != 0 {
		freqMul = math.Pow(2, d/12.0)
	}
	gain := e.masterGainValue()
	var l, r float64
	for i := range e.voices {
		v := &e.voices[i]
		if !v.active {
			continue
		}
		advanceEnv(&v.carrier, e.sampleRate)
		advanceEnv(&v.mod, e.sampleRate)
		if v.carrier.envState == envOff {
			v.active = false
			continue
		}
		var sig float64
		if v.waveform == waveNoise {
			sig = e.nextNoise() * v.carrier.env
		} else {
			mod := math.Sin(v.mod.phase) * v.mod.env * v.mod.level * e.params.ModIndex
			sig = waveformSample(v.carrier.phase+mod, v.waveform) * v.carrier.env * v.carrier.level
		}
		sig *= gain * (0.2 + v.velocity*e.params.VelocityAmp)
		angle := ((v.pan + 64.0) / 128.0) * (math.Pi / 2.0)
		l += sig * math.Cos(angle)
		r += sig * math.Sin(angle)

		step := twoPi * v.freq * freqMul / e.sampleRate
		v.carrier.phase = wrapPhase(v.carrier.phase + step*v.carrier.mul)
		v.mod.phase = wrapPhase(v.mod.phase + step*v.mod.mul)
	}
	if e.lpfAlpha > 0 {
		e.lpfL += e.lpfAlpha * (l - e.lpfL)
		e.lpfR += e.lpfAlpha * (r - e.lpfR)
		l, r = e.lpfL, e.lpfR
	}
	return float32(clamp(l, -1, 1)), float32(clamp(r, -1, 1))
}

func (e *Engine) stealVoice() int {
	for i := range e.voices {
		if !e.voices[i].active {
			return i
		}
	}
	quiet := 0
	minEnv := e.voices[0].carrier.env
	for i := 1; i < len(e.voices); i++ {
		if e.voices[i].carrier.env < minEnv {
			minEnv = e.voices[i].carrier.env
			quiet = i
		}
	}
	return quiet
}

func advanceEnv(op *operator, sampleRate float64) {
	switch op.envState {
	case envAttack:
		op.env += 1.0 / math.Max(op.ar*sampleRate, 1)
		if op.env >= 1 {
			op.env = 1
			op.envState = envDecay
		}
	case envDecay:
		op.env -= (1 - op.sl) / math.Max(op.dr*sampleRate, 1)
		if op.env <= op.sl {
			op.env = op.sl
			op.envState = envSustain
			if op.sl <= 0 {
				op.envState = envOff
			}
		}
	case envRelease:
		op.env -= math.Max(op.sl, 0.05) / math.Max(op.rr*sampleRate, 1)
		if op.env <= 0.0001 {
			op.env = 0
			op.envState = envOff
		}
	case envOff:
		op.env = 0
	}
}

func (e *Engine) nextNoise() float64 {
	e.noise = (e.noise >> 1) ^ (-(e.noise & 1) & 0xB400)
	return float64(e.noise&0x7FFF)/float64(0x7FFF)*2.0 - 1.0
}

func waveformSample(phase float64, waveform int) float64 {
	p := math.Mod(phase, twoPi)
	if p < 0 {
		p += twoPi
	}
	switch waveform {
	case waveSaw:
		return 1.0 - 2.0*p/twoPi
	case waveTriangle:
		return 2.0*math.Abs(2.0*p/twoPi-1.0) - 1.0
	case waveSquare:
		if p < math.Pi {
			return 1.0
		}
		return -1.0
	case wavePulse:
		if p < math.Pi/2 {
			return 1.0
		}
		return -1.0
	default:
		return math.Sin(phase)
	}
}

func wrapPhase(p float64) float64 {
	if p > twoPi {
		p -= twoPi
	}
	return p
}

func midiToFreq(note int) float64 {
	return 440 * math.Pow(2, float64(note-69)/12)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// SetMasterGain is safe to call from any goroutine.
func (e *Engine) SetMasterGain(gain float64) {
	if gain < 0 {
		gain = 0
	}
	atomic.StoreUint64(&e.masterGain, math.Float64bits(gain))
}

func (e *Engine) MasterGain() float64 {
	return e.masterGainValue()
}

func (e *Engine) ActiveVoiceCount() int {
	n := 0
	for i := range e.voices {
		if e.voices[i].active {
			n++
		}
	}
	return n
}

func (e *Engine) masterGainValue() float64 {
	return math.Float64frombits(atomic.LoadUint64(&e.masterGain))
}
