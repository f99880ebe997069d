package synth

import (
	"testing"

	"github.com/cbegin/midiplay-go/internal/midifile"
)

type noteOnCall struct {
	note, velocity, pan, program int
}

type recordingEngine struct {
	ons     []noteOnCall
	offs    []int
	gain    float64
	vibrato float64
	rate    int
	frames  int
}

func (e *recordingEngine) NoteOn(note, velocity, pan, program int) int {
	e.ons = append(e.ons, noteOnCall{note, velocity, pan, program})
	return len(e.ons) - 1
}
func (e *recordingEngine) NoteOff(id int)             { e.offs = append(e.offs, id) }
func (e *recordingEngine) SetMasterGain(gain float64) { e.gain = gain }
func (e *recordingEngine) ActiveVoiceCount() int      { return len(e.ons) - len(e.offs) }
func (e *recordingEngine) SetVibrato(depth float64)   { e.vibrato = depth }
func (e *recordingEngine) SampleRate() int            { return e.rate }
func (e *recordingEngine) SetSampleRate(sr int)       { e.rate = sr }
func (e *recordingEngine) RenderFrame() (float32, float32) {
	e.frames++
	return 0.25, -0.25
}

func press(ch, note, vel uint8) midifile.Event {
	return midifile.Event{Channel: ch, Kind: midifile.KindKey, Key: midifile.KeyEvent{Action: midifile.Press, Note: note, Velocity: vel}}
}

func release(ch, note uint8) midifile.Event {
	return midifile.Event{Channel: ch, Kind: midifile.KindKey, Key: midifile.KeyEvent{Action: midifile.Release, Note: note}}
}

func raw(ch uint8, data ...byte) midifile.Event {
	return midifile.Event{Channel: ch, Kind: midifile.KindOther, Data: data}
}

func TestVoicesPressAndRelease(t *testing.T) {
	e := &recordingEngine{}
	v := NewVoices(e, 0, 0.5)
	v.ApplyEvent(press(0, 60, 100))
	v.ApplyEvent(release(0, 60))
	if len(e.ons) != 1 || e.ons[0].note != 60 || e.ons[0].velocity != 100 {
		t.Fatalf("note ons = %+v", e.ons)
	}
	if len(e.offs) != 1 || e.offs[0] != 0 {
		t.Fatalf("note offs = %v", e.offs)
	}
	if v.ActiveVoiceCount() != 0 {
		t.Fatalf("active = %d", v.ActiveVoiceCount())
	}
}

func TestVoicesChannelFilter(t *testing.T) {
	e := &recordingEngine{}
	v := NewVoices(e, 2, 0.5)
	v.ApplyEvent(press(0, 60, 100))
	v.ApplyEvent(press(2, 62, 100))
	if len(e.ons) != 1 || e.ons[0].note != 62 {
		t.Fatalf("note ons = %+v", e.ons)
	}

	e = &recordingEngine{}
	v = NewVoices(e, AllChannels, 0.5)
	v.ApplyEvent(press(0, 60, 100))
	v.ApplyEvent(press(5, 62, 100))
	if len(e.ons) != 2 {
		t.Fatalf("all channels: note ons = %+v", e.ons)
	}
}

func TestVoicesRetriggerReleasesPreviousVoice(t *testing.T) {
	e := &recordingEngine{}
	v := NewVoices(e, 0, 0.5)
	v.ApplyEvent(press(0, 60, 100))
	v.ApplyEvent(press(0, 60, 90))
	if len(e.offs) != 1 || e.offs[0] != 0 {
		t.Fatalf("offs = %v, want [0]", e.offs)
	}
	// A release for a note that is not sounding does nothing.
	v.ApplyEvent(release(0, 61))
	if len(e.offs) != 1 {
		t.Fatalf("offs = %v", e.offs)
	}
}

func TestVoicesControllersAndProgram(t *testing.T) {
	e := &recordingEngine{}
	v := NewVoices(e, 0, 0.5)
	v.ApplyEvent(raw(0, 0xC0, 40))
	v.ApplyEvent(raw(0, 0xB0, CCPan, 0))
	v.ApplyEvent(raw(0, 0xB0, CCVolume, 127))
	v.ApplyEvent(raw(0, 0xB0, CCModWheel, 127))
	v.ApplyEvent(press(0, 64, 80))

	if got := e.ons[0]; got.program != 40 || got.pan != -64 {
		t.Fatalf("note on = %+v", got)
	}
	if e.gain != 0.5 {
		t.Fatalf("gain = %f, want 0.5", e.gain)
	}
	if e.vibrato != maxVibrato {
		t.Fatalf("vibrato = %f", e.vibrato)
	}

	v.ApplyEvent(press(0, 65, 80))
	v.ApplyEvent(raw(0, 0xB0, CCAllNotesOff, 0))
	if len(e.offs) != 2 {
		t.Fatalf("all notes off released %d voices, want 2", len(e.offs))
	}
}

func TestVoicesPercussionChannel(t *testing.T) {
	e := &recordingEngine{}
	v := NewVoices(e, AllChannels, 0.5)
	v.ApplyEvent(press(PercussionChannel, 38, 120))
	if got := e.ons[0].program; got != Percussion+38 {
		t.Fatalf("program = %d, want %d", got, Percussion+38)
	}
}

func TestVoicesIgnoresMetaAndShortMessages(t *testing.T) {
	e := &recordingEngine{}
	v := NewVoices(e, AllChannels, 0.5)
	v.ApplyEvent(midifile.Event{Kind: midifile.KindMeta, MetaType: midifile.MetaTempo, Data: []byte{7, 0xA1, 0x20}})
	v.ApplyEvent(raw(0, 0xB0))
	v.ApplyEvent(raw(0))
	if len(e.ons) != 0 || e.gain != 0.5 {
		t.Fatalf("unexpected engine calls: %+v gain=%f", e.ons, e.gain)
	}
}

func TestVoicesRenderFillsInterleavedFrames(t *testing.T) {
	e := &recordingEngine{}
	v := NewVoices(e, 0, 0.5)
	dst := make([]float32, 8)
	v.Render(dst, 48000)
	if e.frames != 4 {
		t.Fatalf("frames = %d, want 4", e.frames)
	}
	if e.rate != 48000 {
		t.Fatalf("rate = %d, want 48000", e.rate)
	}
	for i := 0; i < len(dst); i += 2 {
		if dst[i] != 0.25 || dst[i+1] != -0.25 {
			t.Fatalf("frame %d = %f,%f", i/2, dst[i], dst[i+1])
		}
	}
}
