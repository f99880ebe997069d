package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/cbegin/midiplay-go"
	"github.com/cbegin/midiplay-go/internal/feed"
	"github.com/cbegin/midiplay-go/internal/logger"
)

type config struct {
	path       string
	track      int
	channel    int
	sampleRate int
	buffer     time.Duration
	lookahead  int
	soundFont  string
	volume     float64
	reverb     float64
	bpm        float64
	charset    string
	wavPath    string
	logLevel   string
}

func (c config) options() []midiplay.PlayerOption {
	return []midiplay.PlayerOption{
		midiplay.WithTrack(c.track),
		midiplay.WithChannel(c.channel),
		midiplay.WithSampleRate(c.sampleRate),
		midiplay.WithBufferSize(c.buffer),
		midiplay.WithLookahead(c.lookahead),
		midiplay.WithSoundFont(c.soundFont),
		midiplay.WithVolume(c.volume),
		midiplay.WithReverb(c.reverb),
		midiplay.WithBPM(c.bpm),
		midiplay.WithCharset(c.charset),
		midiplay.WithLogger(logger.GetLogger()),
	}
}

// parseArgs accepts flags before or after the file argument.
func parseArgs(args []string, output io.Writer) (config, error) {
	var cfg config
	var bufferMs int
	fs := flag.NewFlagSet("midiplay", flag.ContinueOnError)
	fs.SetOutput(output)
	fs.Usage = func() {
		fmt.Fprintln(fs.Output(), "usage: midiplay [flags] file.mid")
		fs.PrintDefaults()
	}
	fs.IntVar(&cfg.track, "track", 0, "track to play (-1 = all tracks merged)")
	fs.IntVar(&cfg.channel, "channel", 0, "MIDI channel to sound, 0-15 (-1 = all)")
	fs.IntVar(&cfg.sampleRate, "sample-rate", midiplay.DefaultSampleRate, "output sample rate")
	fs.IntVar(&bufferMs, "buffer", int(midiplay.DefaultBufferSize/time.Millisecond), "audio buffer size in ms")
	fs.IntVar(&cfg.lookahead, "lookahead", feed.DefaultLookahead, "events read ahead of playback")
	fs.StringVar(&cfg.soundFont, "soundfont", "", "SoundFont 2 file (default: built-in FM synth)")
	fs.Float64Var(&cfg.volume, "volume", 1.0, "master volume scalar")
	fs.Float64Var(&cfg.reverb, "reverb", 0, "reverb mix 0..1")
	fs.Float64Var(&cfg.bpm, "bpm", 0, "override the file tempo")
	fs.StringVar(&cfg.charset, "charset", "", "track name encoding: sjis|eucjp")
	fs.StringVar(&cfg.wavPath, "wav", "", "render to a WAV file instead of playing")
	fs.StringVar(&cfg.logLevel, "log-level", "info", "log level: debug|info|warn|error")

	if err := fs.Parse(args); err != nil {
		return cfg, err
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return cfg, errors.New("missing MIDI file argument")
	}
	cfg.path = fs.Arg(0)
	if err := fs.Parse(fs.Args()[1:]); err != nil {
		return cfg, err
	}
	if fs.NArg() > 0 {
		return cfg, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}
	if bufferMs <= 0 {
		return cfg, fmt.Errorf("invalid -buffer %d (must be positive)", bufferMs)
	}
	cfg.buffer = time.Duration(bufferMs) * time.Millisecond
	if _, err := logger.ParseLevel(cfg.logLevel); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func main() {
	cfg, err := parseArgs(os.Args[1:], os.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if err := logger.InitLogger(cfg.logLevel); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	log := logger.GetLogger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if cfg.wavPath != "" {
		err = renderWAV(ctx, cfg)
	} else {
		err = play(ctx, cfg)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Error("midiplay failed", "file", cfg.path, "error", err)
		os.Exit(1)
	}
}

func play(ctx context.Context, cfg config) error {
	pl, err := midiplay.NewPlayer(cfg.options()...)
	if err != nil {
		return err
	}
	events := pl.Watch()
	if err := pl.Play(ctx, cfg.path); err != nil {
		return err
	}
	go func() {
		for ev := range events {
			logger.GetLogger().Debug("playback event", "kind", ev.Kind)
		}
	}()
	return pl.Wait()
}

func renderWAV(ctx context.Context, cfg config) error {
	samples, err := midiplay.RenderFile(ctx, cfg.path, cfg.options()...)
	if err != nil {
		return err
	}
	f, err := os.Create(cfg.wavPath)
	if err != nil {
		return err
	}
	if err := midiplay.WriteWAV(f, samples, cfg.sampleRate, 2); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	logger.GetLogger().Info("wrote wav", "path", cfg.wavPath, "seconds", float64(len(samples)/2)/float64(cfg.sampleRate))
	return nil
}
