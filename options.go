package midiplay

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cbegin/midiplay-go/internal/feed"
	"github.com/cbegin/midiplay-go/internal/logger"
	"github.com/cbegin/midiplay-go/internal/midifile"
	"github.com/cbegin/midiplay-go/internal/synth"
)

const (
	DefaultSampleRate = 44100
	DefaultBufferSize = 20 * time.Millisecond

	// MergedTrack plays every track of the file at once.
	MergedTrack = midifile.MergedTrack
	// AllChannels disables the channel filter.
	AllChannels = synth.AllChannels
)

var (
	ErrInvalidTrack   = errors.New("track must be >= -1")
	ErrInvalidChannel = errors.New("channel must be -1 or 0..15")
	ErrInvalidOption  = errors.New("invalid player option")
)

type PlayerOption func(*playerConfig)

type playerConfig struct {
	sampleRate  int
	track       int
	channel     int
	bufferSize  time.Duration
	lookahead   int
	soundFont   string
	volume      float64
	reverb      float64
	bpm         float64
	charset     string
	maxDuration time.Duration
	logger      *slog.Logger
}

func defaultPlayerConfig() playerConfig {
	return playerConfig{
		sampleRate:  DefaultSampleRate,
		bufferSize:  DefaultBufferSize,
		lookahead:   feed.DefaultLookahead,
		volume:      1,
		maxDuration: 10 * time.Minute,
	}
}

func WithSampleRate(sampleRate int) PlayerOption {
	return func(cfg *playerConfig) { cfg.sampleRate = sampleRate }
}

// WithTrack selects the track to play; MergedTrack plays all of them.
func WithTrack(track int) PlayerOption {
	return func(cfg *playerConfig) { cfg.track = track }
}

// WithChannel selects the MIDI channel (0-15) to sound; AllChannels sounds all.
func WithChannel(channel int) PlayerOption {
	return func(cfg *playerConfig) { cfg.channel = channel }
}

// WithBufferSize sets the audio device buffer duration.
func WithBufferSize(d time.Duration) PlayerOption {
	return func(cfg *playerConfig) { cfg.bufferSize = d }
}

// WithLookahead sets how many events are read ahead of playback.
func WithLookahead(events int) PlayerOption {
	return func(cfg *playerConfig) { cfg.lookahead = events }
}

// WithSoundFont renders through a SoundFont 2 bank instead of the FM engine.
func WithSoundFont(path string) PlayerOption {
	return func(cfg *playerConfig) { cfg.soundFont = path }
}

// WithVolume scales the synthesizer output. 1.0 is default.
func WithVolume(volume float64) PlayerOption {
	return func(cfg *playerConfig) { cfg.volume = volume }
}

// WithReverb sets the master reverb mix, 0 (off) to 1.
func WithReverb(wet float64) PlayerOption {
	return func(cfg *playerConfig) { cfg.reverb = wet }
}

// WithBPM overrides the tempo declared by the file.
func WithBPM(bpm float64) PlayerOption {
	return func(cfg *playerConfig) { cfg.bpm = bpm }
}

// WithCharset decodes track names, e.g. "sjis".
func WithCharset(charset string) PlayerOption {
	return func(cfg *playerConfig) { cfg.charset = charset }
}

// WithMaxDuration caps offline renders.
func WithMaxDuration(d time.Duration) PlayerOption {
	return func(cfg *playerConfig) { cfg.maxDuration = d }
}

func WithLogger(l *slog.Logger) PlayerOption {
	return func(cfg *playerConfig) { cfg.logger = l }
}

func newPlayerConfig(opts []PlayerOption) (playerConfig, error) {
	cfg := defaultPlayerConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = logger.GetLogger()
	}
	return cfg, cfg.validate()
}

func (cfg playerConfig) validate() error {
	switch {
	case cfg.track < MergedTrack:
		return fmt.Errorf("%w: %d", ErrInvalidTrack, cfg.track)
	case cfg.channel < AllChannels || cfg.channel > 15:
		return fmt.Errorf("%w: %d", ErrInvalidChannel, cfg.channel)
	case cfg.sampleRate <= 0:
		return fmt.Errorf("%w: sample rate %d", ErrInvalidOption, cfg.sampleRate)
	case cfg.bufferSize < 0:
		return fmt.Errorf("%w: buffer size %v", ErrInvalidOption, cfg.bufferSize)
	case cfg.lookahead <= 0:
		return fmt.Errorf("%w: lookahead %d", ErrInvalidOption, cfg.lookahead)
	case cfg.volume < 0:
		return fmt.Errorf("%w: volume %v", ErrInvalidOption, cfg.volume)
	case cfg.reverb < 0 || cfg.reverb > 1:
		return fmt.Errorf("%w: reverb %v", ErrInvalidOption, cfg.reverb)
	case cfg.bpm < 0:
		return fmt.Errorf("%w: bpm %v", ErrInvalidOption, cfg.bpm)
	}
	return nil
}
