// Package feed carries timed MIDI events from a producer goroutine to the
// real-time audio goroutine.
package feed

import (
	"context"
	"sync"
	"time"

	"github.com/cbegin/midiplay-go/internal/midifile"
)

// DefaultLookahead is the number of events buffered ahead of the audio goroutine.
const DefaultLookahead = 512

// Outcome is the result of a receive.
type Outcome int

const (
	Ready Outcome = iota
	Empty
	Ended
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Ready:
		return "ready"
	case Empty:
		return "empty"
	case Ended:
		return "ended"
	default:
		return "failed"
	}
}

type item struct {
	ev  midifile.Event
	err error
}

// Feed is a bounded single-producer/single-consumer event channel.
// Send and Close belong to the producer; TryRecv, Recv and Err to the consumer.
type Feed struct {
	ch     chan item
	primed chan struct{}
	prime  sync.Once
	closed bool
	err    error // consumer side, set once the error item is received
	timer  *time.Timer
}

// New returns a feed that buffers up to lookahead events.
func New(lookahead int) *Feed {
	if lookahead <= 0 {
		lookahead = DefaultLookahead
	}
	t := time.NewTimer(time.Hour)
	t.Stop()
	return &Feed{
		ch:     make(chan item, lookahead),
		primed: make(chan struct{}),
		timer:  t,
	}
}

// Cap returns the lookahead window size.
func (f *Feed) Cap() int { return cap(f.ch) }

// Len returns the number of buffered events.
func (f *Feed) Len() int { return len(f.ch) }

// Primed is closed once the lookahead window has filled or the producer closed the feed.
func (f *Feed) Primed() <-chan struct{} { return f.primed }

// Send hands ev to the consumer, blocking while the window is full.
func (f *Feed) Send(ctx context.Context, ev midifile.Event) error {
	select {
	case f.ch <- item{ev: ev}:
	case <-ctx.Done():
		return ctx.Err()
	}
	if len(f.ch) == cap(f.ch) {
		f.markPrimed()
	}
	return nil
}

// Close ends the stream. A nil err means a clean end; otherwise err is
// delivered to the consumer after every event already sent. With a full window
// Close blocks until the consumer makes room or ctx is done, in which case the
// error item is dropped.
func (f *Feed) Close(ctx context.Context, err error) {
	if f.closed {
		return
	}
	f.closed = true
	if err != nil {
		select {
		case f.ch <- item{err: err}:
		default:
			select {
			case f.ch <- item{err: err}:
			case <-ctx.Done():
			}
		}
	}
	close(f.ch)
	f.markPrimed()
}

func (f *Feed) markPrimed() {
	f.prime.Do(func() { close(f.primed) })
}

// TryRecv receives without blocking.
func (f *Feed) TryRecv() (midifile.Event, Outcome) {
	if f.err != nil {
		return midifile.Event{}, Failed
	}
	select {
	case it, ok := <-f.ch:
		return f.unpack(it, ok)
	default:
		return midifile.Event{}, Empty
	}
}

// Recv waits at most timeout for the next event. It never allocates.
func (f *Feed) Recv(timeout time.Duration) (midifile.Event, Outcome) {
	if ev, o := f.TryRecv(); o != Empty || timeout <= 0 {
		return ev, o
	}
	f.timer.Reset(timeout)
	select {
	case it, ok := <-f.ch:
		f.timer.Stop()
		return f.unpack(it, ok)
	case <-f.timer.C:
		return midifile.Event{}, Empty
	}
}

// Err returns the producer error after a Failed outcome.
func (f *Feed) Err() error { return f.err }

func (f *Feed) unpack(it item, ok bool) (midifile.Event, Outcome) {
	if !ok {
		return midifile.Event{}, Ended
	}
	if it.err != nil {
		f.err = it.err
		return midifile.Event{}, Failed
	}
	return it.ev, Ready
}
