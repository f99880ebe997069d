package main

import (
	"errors"
	"flag"
	"io"
	"testing"
	"time"

	"github.com/cbegin/midiplay-go"
	"github.com/cbegin/midiplay-go/internal/feed"
)

func TestParseArgsDefaults(t *testing.T) {
	cfg, err := parseArgs([]string{"song.mid"}, io.Discard)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.path != "song.mid" || cfg.track != 0 || cfg.channel != 0 {
		t.Fatalf("cfg = %+v", cfg)
	}
	if cfg.sampleRate != midiplay.DefaultSampleRate || cfg.buffer != 20*time.Millisecond || cfg.lookahead != feed.DefaultLookahead {
		t.Fatalf("cfg = %+v", cfg)
	}
	if cfg.logLevel != "info" || cfg.wavPath != "" {
		t.Fatalf("cfg = %+v", cfg)
	}
}

func TestParseArgsFlagsAroundFile(t *testing.T) {
	cfg, err := parseArgs([]string{"-track", "2", "song.mid", "-channel", "-1", "-buffer", "40", "-wav", "out.wav"}, io.Discard)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.track != 2 || cfg.channel != -1 || cfg.buffer != 40*time.Millisecond || cfg.wavPath != "out.wav" {
		t.Fatalf("cfg = %+v", cfg)
	}
	if len(cfg.options()) == 0 {
		t.Fatal("no player options")
	}
}

func TestParseArgsErrors(t *testing.T) {
	cases := map[string][]string{
		"missing file": {"-track", "1"},
		"extra args":   {"a.mid", "b.mid"},
		"bad buffer":   {"-buffer", "0", "a.mid"},
		"bad level":    {"-log-level", "loud", "a.mid"},
		"bad flag":     {"-nope", "a.mid"},
	}
	for name, args := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := parseArgs(args, io.Discard); err == nil {
				t.Fatalf("expected an error for %v", args)
			}
		})
	}
}

func TestParseArgsHelp(t *testing.T) {
	if _, err := parseArgs([]string{"-h"}, io.Discard); !errors.Is(err, flag.ErrHelp) {
		t.Fatalf("err = %v, want flag.ErrHelp", err)
	}
}
