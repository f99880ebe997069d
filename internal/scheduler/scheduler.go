// Package scheduler places timed MIDI events at exact sample positions inside
// the fixed-size buffers requested by the audio device.
package scheduler

import (
	"sync/atomic"
	"time"

	"github.com/cbegin/midiplay-go/internal/feed"
	"github.com/cbegin/midiplay-go/internal/midifile"
	"github.com/cbegin/midiplay-go/internal/synth"
	"github.com/cbegin/midiplay-go/internal/tick"
)

// DefaultStallFraction is the share of a buffer's duration the audio goroutine
// may wait for a late event.
const DefaultStallFraction = 0.25

// Receiver is the consumer side of the event feed.
type Receiver interface {
	TryRecv() (midifile.Event, feed.Outcome)
	Recv(timeout time.Duration) (midifile.Event, feed.Outcome)
	Err() error
}

// EventKind identifies scheduler lifecycle events.
type EventKind int

const (
	EventStreamEnded EventKind = iota
	EventStreamFailed
	EventPlaybackEnded
)

func (k EventKind) String() string {
	switch k {
	case EventStreamEnded:
		return "stream-ended"
	case EventStreamFailed:
		return "stream-failed"
	default:
		return "playback-ended"
	}
}

type Options struct {
	StallFraction     float64 // 0 = DefaultStallFraction
	ReleaseTailFrames int     // frames rendered after the last voice went silent (0 = 0.1s)
	// OnEvent runs on the audio goroutine and must not block.
	OnEvent func(EventKind)
}

// Stats is a snapshot of the scheduler counters.
type Stats struct {
	Frames  int64
	Applied int64
	Stalls  int64
}

// Scheduler is driven by the audio goroutine through Process. Only Stats,
// Finished and Err may be called from other goroutines.
type Scheduler struct {
	synth      synth.Synth
	rx         Receiver
	conv       tick.Converter
	sampleRate int
	opts       Options

	cursor     int64
	next       int64
	current    midifile.Event
	hasCurrent bool
	ended      bool
	waited     bool
	tailLeft   int

	failed        atomic.Bool
	playbackEnded atomic.Bool
	err           atomic.Value

	frames  atomic.Int64
	applied atomic.Int64
	stalls  atomic.Int64
}

func New(s synth.Synth, rx Receiver, conv tick.Converter, opts Options) *Scheduler {
	if opts.StallFraction <= 0 {
		opts.StallFraction = DefaultStallFraction
	}
	if opts.ReleaseTailFrames <= 0 {
		opts.ReleaseTailFrames = conv.SampleRate() / 10
	}
	return &Scheduler{
		synth:      s,
		rx:         rx,
		conv:       conv,
		sampleRate: conv.SampleRate(),
		opts:       opts,
		tailLeft:   opts.ReleaseTailFrames,
	}
}

// Process fills dst, interleaved stereo, applying every event due inside it.
func (s *Scheduler) Process(dst []float32) {
	n := int64(len(dst) / 2)
	if n == 0 {
		return
	}
	if s.failed.Load() {
		clear(dst)
		s.cursor += n
		s.frames.Add(n)
		return
	}
	start := s.cursor
	end := start + n
	s.waited = false

	for !s.ended && s.next < end {
		if s.next > s.cursor {
			s.render(dst, start, s.next)
		}
		s.cursor = s.next

		ev, o := s.fetch(n)
		switch o {
		case feed.Ready:
			s.applyCurrent()
			s.current = ev
			s.hasCurrent = true
			s.next = s.cursor + s.conv.Samples(int64(ev.Delay))
		case feed.Ended:
			s.applyCurrent()
			s.ended = true
			s.emit(EventStreamEnded)
		case feed.Failed:
			s.fail(dst, start)
			return
		case feed.Empty:
			// The current event is due; its successor is late and
			// everything after it shifts by the stall.
			s.applyCurrent()
			s.stalls.Add(1)
			s.next = end
		}
	}

	if s.cursor < end {
		s.render(dst, start, end)
		s.cursor = end
	}
	if s.ended {
		s.releaseTail(n)
	}
}

// fetch tries the feed without blocking, then waits once per buffer for at
// most StallFraction of the buffer's duration.
func (s *Scheduler) fetch(frames int64) (midifile.Event, feed.Outcome) {
	ev, o := s.rx.TryRecv()
	if o != feed.Empty || s.waited {
		return ev, o
	}
	s.waited = true
	wait := time.Duration(float64(frames) * s.opts.StallFraction / float64(s.sampleRate) * float64(time.Second))
	return s.rx.Recv(wait)
}

func (s *Scheduler) render(dst []float32, start, to int64) {
	from := s.cursor
	s.synth.Render(dst[(from-start)*2:(to-start)*2], s.sampleRate)
	s.frames.Add(to - from)
}

func (s *Scheduler) applyCurrent() {
	if !s.hasCurrent {
		return
	}
	s.synth.ApplyEvent(s.current)
	s.current = midifile.Event{}
	s.hasCurrent = false
	s.applied.Add(1)
}

func (s *Scheduler) fail(dst []float32, start int64) {
	clear(dst[(s.cursor-start)*2:])
	end := start + int64(len(dst)/2)
	s.frames.Add(end - s.cursor)
	s.cursor = end
	s.hasCurrent = false
	if err := s.rx.Err(); err != nil {
		s.err.Store(err)
	}
	s.failed.Store(true)
	s.emit(EventStreamFailed)
}

func (s *Scheduler) releaseTail(n int64) {
	if s.playbackEnded.Load() {
		return
	}
	if vc, ok := s.synth.(interface{ ActiveVoiceCount() int }); ok && vc.ActiveVoiceCount() > 0 {
		s.tailLeft = s.opts.ReleaseTailFrames
		return
	}
	s.tailLeft -= int(n)
	if s.tailLeft <= 0 {
		s.playbackEnded.Store(true)
		s.emit(EventPlaybackEnded)
	}
}

func (s *Scheduler) emit(kind EventKind) {
	if s.opts.OnEvent != nil {
		s.opts.OnEvent(kind)
	}
}

// Finished reports whether playback is over: the stream failed, or it ended
// and the release tail has been rendered.
func (s *Scheduler) Finished() bool {
	return s.failed.Load() || s.playbackEnded.Load()
}

// Err returns the producer error once the stream failed.
func (s *Scheduler) Err() error {
	if err, ok := s.err.Load().(error); ok {
		return err
	}
	return nil
}

// Cursor returns the absolute frame position. Audio goroutine only.
func (s *Scheduler) Cursor() int64 { return s.cursor }

func (s *Scheduler) Stats() Stats {
	return Stats{
		Frames:  s.frames.Load(),
		Applied: s.applied.Load(),
		Stalls:  s.stalls.Load(),
	}
}
