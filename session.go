package midiplay

import (
	"fmt"

	"github.com/cbegin/midiplay-go/internal/effects"
	"github.com/cbegin/midiplay-go/internal/feed"
	intfm "github.com/cbegin/midiplay-go/internal/fm"
	"github.com/cbegin/midiplay-go/internal/midifile"
	"github.com/cbegin/midiplay-go/internal/scheduler"
	"github.com/cbegin/midiplay-go/internal/soundfont"
	"github.com/cbegin/midiplay-go/internal/synth"
	"github.com/cbegin/midiplay-go/internal/tick"
)

// session is one file wired from producer to output: the event stream, the
// feed between the goroutines, the scheduler and the master effects.
type session struct {
	file   *midifile.File
	stream *midifile.Track
	feed   *feed.Feed
	sched  *scheduler.Scheduler
	chain  *effects.Chain
}

func (cfg playerConfig) openSession(path string, schedOpts scheduler.Options) (*session, error) {
	f, err := midifile.Open(path, midifile.Options{Charset: cfg.charset})
	if err != nil {
		return nil, err
	}
	bpm := cfg.bpm
	if bpm == 0 {
		if bpm, err = f.BPM(); err != nil {
			return nil, err
		}
	}
	conv, err := tick.NewConverter(bpm, f.PPQN(), cfg.sampleRate)
	if err != nil {
		return nil, err
	}
	stream, err := f.Stream(cfg.track)
	if err != nil {
		return nil, err
	}
	syn, err := cfg.newSynth()
	if err != nil {
		return nil, err
	}

	log := cfg.logger.With("file", path)
	log.Info("midi file opened",
		"tracks", f.NumTracks(),
		"track", cfg.track,
		"name", trackName(f, cfg.track),
		"ppqn", f.PPQN(),
		"bpm", conv.BPM(),
	)
	if n := f.TempoChanges(); n > 0 {
		log.Warn("tempo changes are not applied; playing at the initial tempo", "ignored", n)
	}

	fd := feed.New(cfg.lookahead)
	return &session{
		file:   f,
		stream: stream,
		feed:   fd,
		sched:  scheduler.New(syn, fd, conv, schedOpts),
		chain:  cfg.masterChain(),
	}, nil
}

func trackName(f *midifile.File, track int) string {
	if track == MergedTrack {
		return "(merged)"
	}
	return f.TrackName(track)
}

func (cfg playerConfig) newSynth() (synth.Synth, error) {
	if cfg.soundFont != "" {
		s, err := soundfont.Load(cfg.soundFont, cfg.sampleRate, cfg.channel, cfg.volume)
		if err != nil {
			return nil, fmt.Errorf("load soundfont %s: %w", cfg.soundFont, err)
		}
		return s, nil
	}
	params := intfm.DefaultParams()
	engine := intfm.New(cfg.sampleRate, params)
	return synth.NewVoices(engine, cfg.channel, params.MasterGain*cfg.volume), nil
}

func (cfg playerConfig) masterChain() *effects.Chain {
	chain := effects.NewChain(effects.NewMasterCompressor(cfg.sampleRate))
	if cfg.reverb > 0 {
		chain.Add(effects.NewReverb(cfg.sampleRate, 0.6, 0.4, float32(cfg.reverb)))
	}
	return chain
}

// Process implements audio.FinishingSource.
func (s *session) Process(dst []float32) {
	s.sched.Process(dst)
	if !s.sched.Finished() {
		s.chain.ProcessBuffer(dst)
	}
}

func (s *session) Finished() bool {
	return s.sched.Finished()
}
