package midiplay

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"testing"

	"github.com/cbegin/midiplay-go/internal/midifile"
	"github.com/cbegin/midiplay-go/internal/tick"
)

func TestNewPlayerValidatesOptions(t *testing.T) {
	cases := []struct {
		name string
		opt  PlayerOption
		want error
	}{
		{"track", WithTrack(-2), ErrInvalidTrack},
		{"channel high", WithChannel(16), ErrInvalidChannel},
		{"channel low", WithChannel(-2), ErrInvalidChannel},
		{"sample rate", WithSampleRate(-1), ErrInvalidOption},
		{"lookahead", WithLookahead(0), ErrInvalidOption},
		{"volume", WithVolume(-1), ErrInvalidOption},
		{"reverb", WithReverb(1.5), ErrInvalidOption},
		{"bpm", WithBPM(-120), ErrInvalidOption},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := NewPlayer(tc.opt); !errors.Is(err, tc.want) {
				t.Fatalf("err = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestNewPlayerDefaults(t *testing.T) {
	pl, err := NewPlayer()
	if err != nil {
		t.Fatal(err)
	}
	if pl.SampleRate() != DefaultSampleRate {
		t.Fatalf("sample rate = %d", pl.SampleRate())
	}
	if pl.cfg.track != 0 || pl.cfg.channel != 0 {
		t.Fatalf("track=%d channel=%d, want 0 0", pl.cfg.track, pl.cfg.channel)
	}
}

func TestPlayReturnsErrorsBeforeAudioStarts(t *testing.T) {
	path := writeSong(t, false)
	pl, err := NewPlayer(WithTrack(3))
	if err != nil {
		t.Fatal(err)
	}
	if err := pl.Play(context.Background(), path); !errors.Is(err, midifile.ErrTrackNotFound) {
		t.Fatalf("err = %v, want ErrTrackNotFound", err)
	}
	if err := pl.Play(context.Background(), filepath.Join(t.TempDir(), "nope.mid")); err == nil {
		t.Fatal("expected an error for a missing file")
	}

	if _, err := NewPlayer(WithSampleRate(0)); !errors.Is(err, ErrInvalidOption) {
		t.Fatalf("err = %v, want ErrInvalidOption", err)
	}
}

func TestPlayRejectsInvalidBPM(t *testing.T) {
	path := writeSong(t, false)
	pl, err := NewPlayer(WithBPM(math.NaN()))
	if err != nil {
		t.Fatal(err)
	}
	if err := pl.Play(context.Background(), path); !errors.Is(err, tick.ErrInvalidBPM) {
		t.Fatalf("err = %v, want ErrInvalidBPM", err)
	}
}

func TestIdlePlayer(t *testing.T) {
	pl, err := NewPlayer()
	if err != nil {
		t.Fatal(err)
	}
	if err := pl.Wait(); err != nil {
		t.Fatalf("wait: %v", err)
	}
	if err := pl.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if pl.Position() != 0 {
		t.Fatal("idle position should be 0")
	}
	if st := pl.Stats(); st.Frames != 0 {
		t.Fatalf("stats = %+v", st)
	}
	pl.Pause()
	pl.Resume()
}

func TestWatchDropsWhenFull(t *testing.T) {
	pl, err := NewPlayer()
	if err != nil {
		t.Fatal(err)
	}
	ch := pl.Watch()
	for i := 0; i < 20; i++ {
		pl.sendEvent(PlaybackEvent{Kind: EventStreamEnded})
	}
	if len(ch) != cap(ch) {
		t.Fatalf("len = %d, want %d", len(ch), cap(ch))
	}
}
