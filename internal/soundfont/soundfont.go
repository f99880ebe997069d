// Package soundfont renders MIDI events through a SoundFont 2 bank.
package soundfont

import (
	"fmt"
	"io"
	"os"

	"github.com/sinshu/go-meltysynth/meltysynth"

	"github.com/cbegin/midiplay-go/internal/midifile"
	"github.com/cbegin/midiplay-go/internal/synth"
)

// silence is the peak level below which a rendered block counts as quiet.
const silence = 1e-5

// synthesizer is the subset of meltysynth.Synthesizer used here.
type synthesizer interface {
	ProcessMidiMessage(channel int32, command int32, data1, data2 int32)
	Render(left, right []float32)
}

// Synth adapts a meltysynth synthesizer to synth.Synth.
type Synth struct {
	syn        synthesizer
	sampleRate int
	channel    int
	gain       float32
	left       []float32
	right      []float32
	audible    bool
}

// Load reads a SoundFont file and builds a synthesizer for sampleRate.
func Load(path string, sampleRate, channel int, gain float64) (*Synth, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open soundfont: %w", err)
	}
	defer f.Close()
	return New(f, sampleRate, channel, gain)
}

func New(r io.Reader, sampleRate, channel int, gain float64) (*Synth, error) {
	sf, err := meltysynth.NewSoundFont(r)
	if err != nil {
		return nil, fmt.Errorf("parse soundfont: %w", err)
	}
	settings := meltysynth.NewSynthesizerSettings(int32(sampleRate))
	syn, err := meltysynth.NewSynthesizer(sf, settings)
	if err != nil {
		return nil, fmt.Errorf("create synthesizer: %w", err)
	}
	return newSynth(syn, sampleRate, channel, gain), nil
}

func newSynth(syn synthesizer, sampleRate, channel int, gain float64) *Synth {
	return &Synth{
		syn:        syn,
		sampleRate: sampleRate,
		channel:    channel,
		gain:       float32(gain),
	}
}

// Render fills dst, interleaved stereo. The synthesizer's rate is fixed when
// it is created, so sampleRate must match it.
func (s *Synth) Render(dst []float32, sampleRate int) {
	frames := len(dst) / 2
	if cap(s.left) < frames {
		s.left = make([]float32, frames)
		s.right = make([]float32, frames)
	}
	left, right := s.left[:frames], s.right[:frames]
	s.syn.Render(left, right)
	s.audible = false
	for i := 0; i < frames; i++ {
		l, r := left[i]*s.gain, right[i]*s.gain
		dst[2*i], dst[2*i+1] = l, r
		if l > silence || l < -silence || r > silence || r < -silence {
			s.audible = true
		}
	}
}

// ApplyEvent forwards key and channel messages on the selected channel(s).
func (s *Synth) ApplyEvent(ev midifile.Event) {
	if ev.Channel > 15 || !synth.Accepts(s.channel, ev.Channel) {
		return
	}
	ch := int32(ev.Channel)
	switch ev.Kind {
	case midifile.KindKey:
		if ev.Key.Action == midifile.Press && ev.Key.Velocity > 0 {
			s.syn.ProcessMidiMessage(ch, 0x90, int32(ev.Key.Note), int32(ev.Key.Velocity))
		} else {
			s.syn.ProcessMidiMessage(ch, 0x80, int32(ev.Key.Note), 0)
		}
	case midifile.KindOther:
		if len(ev.Data) == 0 || ev.Data[0] < 0x80 || ev.Data[0] >= 0xF0 {
			return
		}
		var d1, d2 int32
		if len(ev.Data) > 1 {
			d1 = int32(ev.Data[1])
		}
		if len(ev.Data) > 2 {
			d2 = int32(ev.Data[2])
		}
		s.syn.ProcessMidiMessage(ch, int32(ev.Data[0]&0xF0), d1, d2)
	}
}

// ActiveVoiceCount reports 1 while the last rendered block was audible.
func (s *Synth) ActiveVoiceCount() int {
	if s.audible {
		return 1
	}
	return 0
}

func (s *Synth) SampleRate() int { return s.sampleRate }
