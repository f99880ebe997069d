// Package synth defines what the scheduler needs from a synthesizer and
// adapts a polyphonic voice engine to it.
package synth

import "github.com/cbegin/midiplay-go/internal/midifile"

// Synth renders audio and accepts events between renders.
type Synth interface {
	// Render fills dst (interleaved stereo) with the current voice state.
	Render(dst []float32, sampleRate int)
	ApplyEvent(ev midifile.Event)
}

// VoiceEngine is a polyphonic generator addressed by voice id.
type VoiceEngine interface {
	NoteOn(note int, velocity int, pan int, program int) int
	NoteOff(id int)
	RenderFrame() (float32, float32)
	SetMasterGain(gain float64)
	// ActiveVoiceCount returns the number of voices still sounding, release included.
	ActiveVoiceCount() int
}

// AllChannels disables channel filtering.
const AllChannels = -1

// PercussionChannel is the General MIDI drum channel (10, zero based).
const PercussionChannel = 9

// Controller numbers handled by the adapters.
const (
	CCModWheel    = 1
	CCVolume      = 7
	CCPan         = 10
	CCAllSoundOff = 120
	CCAllNotesOff = 123
)

// Accepts reports whether channel ch passes the filter.
func Accepts(filter int, ch uint8) bool {
	return filter == AllChannels || filter == int(ch)
}
