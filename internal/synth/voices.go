package synth

import "github.com/cbegin/midiplay-go/internal/midifile"

const (
	noVoice = -1

	// maxVibrato is the pitch depth in semitones at full modulation wheel.
	maxVibrato = 0.5
)

// Percussion is added to the key number for notes on the drum channel.
// It matches fm.Percussion.
const Percussion = 128

type channelState struct {
	program int
	pan     int // -64..64
	voices  [128]int
}

// Voices drives a VoiceEngine from MIDI events on one channel, or all of them.
type Voices struct {
	engine   VoiceEngine
	channel  int
	baseGain float64
	channels [16]channelState
}

func NewVoices(engine VoiceEngine, channel int, gain float64) *Voices {
	v := &Voices{engine: engine, channel: channel, baseGain: gain}
	for i := range v.channels {
		c := &v.channels[i]
		for n := range c.voices {
			c.voices[n] = noVoice
		}
	}
	engine.SetMasterGain(gain)
	return v
}

func (v *Voices) Render(dst []float32, sampleRate int) {
	if e, ok := v.engine.(interface {
		SampleRate() int
		SetSampleRate(int)
	}); ok && e.SampleRate() != sampleRate {
		e.SetSampleRate(sampleRate)
	}
	for i := 0; i+1 < len(dst); i += 2 {
		dst[i], dst[i+1] = v.engine.RenderFrame()
	}
}

func (v *Voices) ApplyEvent(ev midifile.Event) {
	if ev.Channel > 15 || !Accepts(v.channel, ev.Channel) {
		return
	}
	c := &v.channels[ev.Channel]
	switch ev.Kind {
	case midifile.KindKey:
		v.key(ev.Channel, c, ev.Key)
	case midifile.KindOther:
		if len(ev.Data) == 0 {
			return
		}
		switch ev.Data[0] & 0xF0 {
		case 0xB0:
			if len(ev.Data) >= 3 {
				v.control(c, int(ev.Data[1]), int(ev.Data[2]))
			}
		case 0xC0:
			if len(ev.Data) >= 2 {
				c.program = int(ev.Data[1] & 0x7F)
			}
		}
	}
}

func (v *Voices) key(ch uint8, c *channelState, k midifile.KeyEvent) {
	note := int(k.Note & 0x7F)
	if id := c.voices[note]; id != noVoice {
		v.engine.NoteOff(id)
		c.voices[note] = noVoice
	}
	if k.Action != midifile.Press {
		return
	}
	program := c.program
	if ch == PercussionChannel {
		program = Percussion + note
	}
	c.voices[note] = v.engine.NoteOn(note, int(k.Velocity), c.pan, program)
}

func (v *Voices) control(c *channelState, cc, value int) {
	switch cc {
	case CCModWheel:
		if e, ok := v.engine.(interface{ SetVibrato(float64) }); ok {
			e.SetVibrato(maxVibrato * float64(value) / 127)
		}
	case CCVolume:
		// the engine has one gain stage, so the last volume change wins
		v.engine.SetMasterGain(v.baseGain * float64(value) / 127)
	case CCPan:
		c.pan = value - 64
	case CCAllSoundOff, CCAllNotesOff:
		for n, id := range c.voices {
			if id != noVoice {
				v.engine.NoteOff(id)
				c.voices[n] = noVoice
			}
		}
	}
}

// ActiveVoiceCount reports the engine's sounding voices.
func (v *Voices) ActiveVoiceCount() int {
	return v.engine.ActiveVoiceCount()
}
