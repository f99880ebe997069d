// Package midiplay plays Standard MIDI Files through a software synthesizer
// in real time.
package midiplay

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	intaudio "github.com/cbegin/midiplay-go/internal/audio"
	"github.com/cbegin/midiplay-go/internal/feed"
	"github.com/cbegin/midiplay-go/internal/scheduler"
)

// PlaybackEvent is delivered through Watch.
type PlaybackEvent struct {
	Kind scheduler.EventKind
}

const (
	EventStreamEnded   = scheduler.EventStreamEnded
	EventStreamFailed  = scheduler.EventStreamFailed
	EventPlaybackEnded = scheduler.EventPlaybackEnded
)

type Player struct {
	mu        sync.Mutex
	cfg       playerConfig
	current   *playback
	eventCh   chan PlaybackEvent
	eventChMu sync.Mutex
}

// playback is one Play call: the producer goroutine, the scheduler it feeds
// and the device pulling from it.
type playback struct {
	session *session
	audio   *intaudio.Player
	cancel  context.CancelFunc
	group   *errgroup.Group
	done    chan struct{}
	once    sync.Once
	finish  func() error

	reasonMu sync.Mutex
	reason   error // why playback was stopped early
}

func NewPlayer(opts ...PlayerOption) (*Player, error) {
	cfg, err := newPlayerConfig(opts)
	if err != nil {
		return nil, err
	}
	return &Player{cfg: cfg}, nil
}

func (p *Player) SampleRate() int { return p.cfg.sampleRate }

// Play opens path and starts playback once the lookahead window is primed.
// It replaces any playback in progress. Configuration, parse and audio
// backend errors are returned before any sound is made.
func (p *Player) Play(ctx context.Context, path string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.current != nil {
		p.current.stop(nil)
		_ = p.current.finish()
		p.current = nil
	}

	pb := &playback{done: make(chan struct{})}
	sess, err := p.cfg.openSession(path, scheduler.Options{OnEvent: func(kind scheduler.EventKind) {
		p.sendEvent(PlaybackEvent{Kind: kind})
		if kind != scheduler.EventStreamEnded {
			pb.signalDone()
		}
	}})
	if err != nil {
		return err
	}
	pb.session = sess

	prodCtx, cancel := context.WithCancel(context.Background())
	g, gctx := errgroup.WithContext(prodCtx)
	g.Go(func() error {
		return feed.Produce(gctx, sess.stream, sess.feed)
	})
	pb.cancel = cancel
	pb.group = g

	select {
	case <-sess.feed.Primed():
	case <-ctx.Done():
		cancel()
		_ = g.Wait()
		return ctx.Err()
	}

	backend, err := intaudio.NewPlayer(p.cfg.sampleRate, p.cfg.bufferSize, sess)
	if err != nil {
		cancel()
		_ = g.Wait()
		return err
	}
	pb.audio = backend
	pb.finish = sync.OnceValue(func() error { return pb.wait(p.cfg) })
	stopOnCancel := context.AfterFunc(ctx, func() { pb.stop(context.Cause(ctx)) })
	go func() {
		<-pb.done
		stopOnCancel()
	}()

	p.current = pb
	backend.Play()
	return nil
}

func (pb *playback) signalDone() {
	pb.once.Do(func() { close(pb.done) })
}

func (pb *playback) stop(reason error) {
	pb.reasonMu.Lock()
	if pb.reason == nil {
		pb.reason = reason
	}
	pb.reasonMu.Unlock()
	pb.signalDone()
}

// wait tears the playback down after done and reports why it ended.
func (pb *playback) wait(cfg playerConfig) error {
	<-pb.done
	audioErr := pb.audio.Stop()
	pb.cancel()
	err := pb.group.Wait()

	st := pb.session.sched.Stats()
	log := cfg.logger.With("frames", st.Frames, "events", st.Applied, "stalls", st.Stalls)
	if st.Stalls > 0 {
		log.Warn("playback finished with stalls", "lookahead", cfg.lookahead)
	} else {
		log.Info("playback finished")
	}

	pb.reasonMu.Lock()
	reason := pb.reason
	pb.reasonMu.Unlock()
	if reason != nil {
		return reason
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	if err := pb.session.sched.Err(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return audioErr
}

// Wait blocks until the current playback ends and returns the error that
// ended it, if any. It returns nil immediately when nothing is playing.
func (p *Player) Wait() error {
	p.mu.Lock()
	pb := p.current
	p.mu.Unlock()
	if pb == nil {
		return nil
	}
	return pb.finish()
}

// Stop ends playback immediately.
func (p *Player) Stop() error {
	p.mu.Lock()
	pb := p.current
	p.current = nil
	p.mu.Unlock()
	if pb == nil {
		return nil
	}
	pb.stop(nil)
	return pb.finish()
}

func (p *Player) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current != nil {
		p.current.audio.Pause()
	}
}

func (p *Player) Resume() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current != nil {
		p.current.audio.Play()
	}
}

// Position returns what the listener hears right now. Returns 0 if not playing.
func (p *Player) Position() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == nil {
		return 0
	}
	return p.current.audio.Position()
}

// Stats returns the scheduler counters of the current playback.
func (p *Player) Stats() scheduler.Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == nil {
		return scheduler.Stats{}
	}
	return p.current.session.sched.Stats()
}

// Watch returns a channel that receives playback events. The channel is
// buffered (cap 8) and events are dropped when it is full, since they are
// sent from the audio goroutine. Only the most recent Watch channel receives
// events; call Watch before Play.
func (p *Player) Watch() <-chan PlaybackEvent {
	ch := make(chan PlaybackEvent, 8)
	p.eventChMu.Lock()
	p.eventCh = ch
	p.eventChMu.Unlock()
	return ch
}

func (p *Player) sendEvent(ev PlaybackEvent) {
	p.eventChMu.Lock()
	ch := p.eventCh
	p.eventChMu.Unlock()
	if ch != nil {
		select {
		case ch <- ev:
		default:
		}
	}
}
