package fm

import (
	"math"
	"testing"
)

func peak(e *Engine, frames int) float64 {
	var maxAbs float64
	for i := 0; i < frames; i++ {
		l, r := e.RenderFrame()
		if a := math.Abs(float64(l)); a > maxAbs {
			maxAbs = a
		}
		if a := math.Abs(float64(r)); a > maxAbs {
			maxAbs = a
		}
	}
	return maxAbs
}

func TestEngineGeneratesSignal(t *testing.T) {
	e := New(48000, DefaultParams())
	id := e.NoteOn(60, 100, 0, 0)
	if id < 0 {
		t.Fatalf("invalid voice id")
	}
	if peak(e, 5000) == 0 {
		t.Fatalf("expected non-zero output")
	}
	e.NoteOff(id)
}

func TestPanExtremesBiasChannels(t *testing.T) {
	e := New(48000, DefaultParams())
	e.NoteOn(60, 127, -64, 0)
	var leftEnergy, rightEnergy float64
	for i := 0; i < 4096; i++ {
		l, r := e.RenderFrame()
		leftEnergy += math.Abs(float64(l))
		rightEnergy += math.Abs(float64(r))
	}
	if leftEnergy <= rightEnergy {
		t.Fatalf("expected left-biased signal, left=%f right=%f", leftEnergy, rightEnergy)
	}
}

func TestEveryProgramFamilySounds(t *testing.T) {
	for program := 0; program < 128; program += 8 {
		e := New(48000, DefaultParams())
		e.NoteOn(60, 100, 0, program)
		if peak(e, 1000) < 0.001 {
			t.Errorf("program %d produced no output", program)
		}
	}
}

func TestPercussionDecaysWithoutNoteOff(t *testing.T) {
	e := New(48000, DefaultParams())
	e.NoteOn(38, 120, 0, Percussion+38)
	if peak(e, 500) < 0.001 {
		t.Fatal("percussion hit produced no output")
	}
	for i := 0; i < 48000 && e.ActiveVoiceCount() > 0; i++ {
		e.RenderFrame()
	}
	if n := e.ActiveVoiceCount(); n != 0 {
		t.Fatalf("active voices = %d, want 0", n)
	}
}

func TestNoteOffReleasesVoice(t *testing.T) {
	e := New(48000, DefaultParams())
	id := e.NoteOn(64, 100, 0, 0)
	peak(e, 1000)
	if e.ActiveVoiceCount() != 1 {
		t.Fatalf("active voices = %d, want 1", e.ActiveVoiceCount())
	}
	e.NoteOff(id)
	peak(e, 48000)
	if e.ActiveVoiceCount() != 0 {
		t.Fatalf("voice still active after release")
	}
}

func TestAllNotesOff(t *testing.T) {
	e := New(48000, DefaultParams())
	for n := 60; n < 64; n++ {
		e.NoteOn(n, 100, 0, 0)
	}
	e.AllNotesOff()
	peak(e, 48000)
	if e.ActiveVoiceCount() != 0 {
		t.Fatalf("active voices = %d, want 0", e.ActiveVoiceCount())
	}
}

func TestVoiceStealingKeepsPolyphonyBound(t *testing.T) {
	p := DefaultParams()
	p.Polyphony = 4
	e := New(48000, p)
	for n := 0; n < 10; n++ {
		e.NoteOn(60+n, 100, 0, 0)
		e.RenderFrame()
	}
	if got := e.ActiveVoiceCount(); got != 4 {
		t.Fatalf("active voices = %d, want 4", got)
	}
}

func TestVibratoChangesOutput(t *testing.T) {
	render := func(depth float64) []float32 {
		e := New(48000, DefaultParams())
		e.SetVibrato(depth)
		e.NoteOn(69, 100, 0, 0)
		out := make([]float32, 4000)
		for i := range out {
			out[i], _ = e.RenderFrame()
		}
		return out
	}
	dry, wet := render(0), render(1)
	same := true
	for i := range dry {
		if dry[i] != wet[i] {
			same = false
			break
		}
	}
	if same {
		t.Error("vibrato should change the output")
	}
}

func TestMasterGain(t *testing.T) {
	e := New(48000, DefaultParams())
	e.SetMasterGain(-1)
	if e.MasterGain() != 0 {
		t.Fatalf("negative gain should clamp to 0, got %f", e.MasterGain())
	}
	e.NoteOn(60, 100, 0, 0)
	if peak(e, 1000) != 0 {
		t.Fatal("zero gain should be silent")
	}
}

func TestSetSampleRate(t *testing.T) {
	e := New(48000, DefaultParams())
	e.SetSampleRate(22050)
	if e.SampleRate() != 22050 {
		t.Fatalf("sample rate = %d", e.SampleRate())
	}
}
