// Package midifile reads Standard MIDI Files and exposes their tracks as lazy
// streams of timed events.
package midifile

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"gitlab.com/gomidi/midi/v2/smf"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/japanese"

	"github.com/cbegin/midiplay-go/internal/tick"
)

var (
	ErrTrackNotFound         = errors.New("track not found")
	ErrUnsupportedTimeFormat = errors.New("unsupported time format (SMPTE)")
	ErrUnknownCharset        = errors.New("unknown charset")
)

var endOfTrack = smf.Message{0xFF, MetaEndOfTrack, 0x00}

// MergedTrack selects the time-ordered merge of every track.
const MergedTrack = -1

type Options struct {
	// Charset decodes text meta events; "" keeps bytes as-is, "sjis" and "eucjp" are supported.
	Charset string
}

// File is a parsed SMF.
type File struct {
	smf          *smf.SMF
	ppqn         int
	tempo        int
	tempoChanges int
	decoder      *encoding.Decoder
}

// Open parses the file at path.
func Open(path string, opts Options) (*File, error) {
	s, err := smf.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to parse MIDI file %s: %w", path, err)
	}
	return newFile(s, opts)
}

// Read parses an SMF from r.
func Read(r io.Reader, opts Options) (*File, error) {
	s, err := smf.ReadFrom(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse MIDI data: %w", err)
	}
	return newFile(s, opts)
}

func newFile(s *smf.SMF, opts Options) (*File, error) {
	dec, err := charsetDecoder(opts.Charset)
	if err != nil {
		return nil, err
	}
	mt, ok := s.TimeFormat.(smf.MetricTicks)
	if !ok {
		return nil, ErrUnsupportedTimeFormat
	}
	f := &File{
		smf:     s,
		ppqn:    int(mt.Resolution()),
		tempo:   tick.DefaultTempo,
		decoder: dec,
	}
	f.scanTempo()
	return f, nil
}

// scanTempo records the first declared tempo and counts the later changes,
// which playback does not apply.
func (f *File) scanTempo() {
	found := false
	for _, tr := range f.smf.Tracks {
		for _, ev := range tr {
			e := convert(ev)
			us, ok := e.Tempo()
			if !ok {
				continue
			}
			if !found {
				f.tempo = us
				found = true
				continue
			}
			f.tempoChanges++
		}
	}
}

func charsetDecoder(name string) (*encoding.Decoder, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "":
		return nil, nil
	case "sjis", "shift_jis", "shift-jis":
		return japanese.ShiftJIS.NewDecoder(), nil
	case "eucjp", "euc-jp":
		return japanese.EUCJP.NewDecoder(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownCharset, name)
	}
}

// PPQN returns the file's pulses per quarter note.
func (f *File) PPQN() int { return f.ppqn }

// Tempo returns the first declared tempo in µs per beat, or the SMF default.
func (f *File) Tempo() int { return f.tempo }

// BPM returns the session tempo derived from Tempo.
func (f *File) BPM() (float64, error) { return tick.BPMFromTempo(f.tempo) }

// TempoChanges counts tempo events after the first one.
func (f *File) TempoChanges() int { return f.tempoChanges }

func (f *File) NumTracks() int { return len(f.smf.Tracks) }

// TrackName returns the first track-name meta text of track i, decoded with
// the configured charset.
func (f *File) TrackName(i int) string {
	if i < 0 || i >= len(f.smf.Tracks) {
		return ""
	}
	for _, ev := range f.smf.Tracks[i] {
		e := convert(ev)
		if e.Kind != KindMeta || e.MetaType != MetaTrackName {
			continue
		}
		if f.decoder == nil {
			return string(e.Data)
		}
		s, err := f.decoder.Bytes(e.Data)
		if err != nil {
			return string(e.Data)
		}
		return string(s)
	}
	return ""
}

// Stream returns the events of track i, or of all tracks merged when i is MergedTrack.
func (f *File) Stream(i int) (*Track, error) {
	if i == MergedTrack {
		return f.Merged(), nil
	}
	return f.Track(i)
}

// Track returns a lazy iterator over track i.
func (f *File) Track(i int) (*Track, error) {
	if i < 0 || i >= len(f.smf.Tracks) {
		return nil, fmt.Errorf("%w: %d (file has %d)", ErrTrackNotFound, i, len(f.smf.Tracks))
	}
	return &Track{next: sliceIter(f.smf.Tracks[i])}, nil
}

// Merged interleaves all tracks by absolute tick, earliest track first on ties.
// Per-track end-of-track markers are dropped and a single one closes the stream.
func (f *File) Merged() *Track {
	tracks := f.smf.Tracks
	pos := make([]int, len(tracks))
	last := make([]int64, len(tracks))
	var emitted int64
	done := false
	return &Track{next: func() (smf.Event, bool) {
		for {
			if done {
				return smf.Event{}, false
			}
			earliest := -1
			var at int64
			for i, tr := range tracks {
				if pos[i] >= len(tr) {
					continue
				}
				t := last[i] + int64(tr[pos[i]].Delta)
				if earliest < 0 || t < at {
					earliest, at = i, t
				}
			}
			if earliest < 0 {
				done = true
				delta := uint32(0)
				if latest := maxInt64(last); latest > emitted {
					delta = uint32(latest - emitted)
				}
				return smf.Event{Delta: delta, Message: endOfTrack}, true
			}
			ev := tracks[earliest][pos[earliest]]
			pos[earliest]++
			last[earliest] = at
			if ev.Message.Is(smf.MetaEndOfTrackMsg) {
				continue
			}
			delta := uint32(at - emitted)
			emitted = at
			return smf.Event{Delta: delta, Message: ev.Message}, true
		}
	}}
}

func maxInt64(vs []int64) int64 {
	var m int64
	for _, v := range vs {
		if v > m {
			m = v
		}
	}
	return m
}
