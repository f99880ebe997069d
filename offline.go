package midiplay

import (
	"context"
	"encoding/binary"
	"errors"
	"io"
	"math"

	"golang.org/x/sync/errgroup"

	"github.com/cbegin/midiplay-go/internal/feed"
	"github.com/cbegin/midiplay-go/internal/scheduler"
)

// offlineStallFraction lets offline renders wait for the producer instead of
// shifting the timeline; nothing is waiting on the output in real time.
const offlineStallFraction = 1000

// RenderFile renders path to interleaved stereo samples through the same
// scheduler used for playback, stopping once playback would have ended or at
// the configured maximum duration.
func RenderFile(ctx context.Context, path string, opts ...PlayerOption) ([]float32, error) {
	cfg, err := newPlayerConfig(opts)
	if err != nil {
		return nil, err
	}
	sess, err := cfg.openSession(path, scheduler.Options{StallFraction: offlineStallFraction})
	if err != nil {
		return nil, err
	}

	prodCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(prodCtx)
	g.Go(func() error {
		return feed.Produce(gctx, sess.stream, sess.feed)
	})

	frames := int(cfg.bufferSize.Seconds() * float64(cfg.sampleRate))
	if frames <= 0 {
		frames = 1024
	}
	limit := int(cfg.maxDuration.Seconds() * float64(cfg.sampleRate))
	buf := make([]float32, 2*frames)
	var out []float32
	rendered := 0
	for !sess.Finished() && rendered < limit && ctx.Err() == nil {
		sess.Process(buf)
		out = append(out, buf...)
		rendered += frames
	}
	if !sess.Finished() {
		cfg.logger.Warn("offline render truncated", "file", path, "seconds", float64(rendered)/float64(cfg.sampleRate))
	}

	// The producer may still be blocked on a full feed when the render was cut short.
	cancel()
	err = g.Wait()
	if serr := sess.sched.Err(); serr != nil {
		return out, serr
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		return out, err
	}
	return out, ctx.Err()
}

// WriteWAV writes samples as a 32-bit float WAV file.
func WriteWAV(w io.Writer, samples []float32, sampleRate, channels int) error {
	if channels <= 0 {
		return errors.New("channels must be positive")
	}
	_, err := w.Write(EncodeWAVFloat32LE(samples, sampleRate, channels))
	return err
}

func EncodeWAVFloat32LE(samples []float32, sampleRate int, channels int) []byte {
	dataSize := len(samples) * 4
	byteRate := sampleRate * channels * 4
	blockAlign := channels * 4
	chunkSize := 36 + dataSize
	out := make([]byte, 44+dataSize)
	copy(out[0:], "RIFF")
	binary.LittleEndian.PutUint32(out[4:], uint32(chunkSize))
	copy(out[8:], "WAVE")
	copy(out[12:], "fmt ")
	binary.LittleEndian.PutUint32(out[16:], 16)
	binary.LittleEndian.PutUint16(out[20:], 3) // IEEE float
	binary.LittleEndian.PutUint16(out[22:], uint16(channels))
	binary.LittleEndian.PutUint32(out[24:], uint32(sampleRate))
	binary.LittleEndian.PutUint32(out[28:], uint32(byteRate))
	binary.LittleEndian.PutUint16(out[32:], uint16(blockAlign))
	binary.LittleEndian.PutUint16(out[34:], 32)
	copy(out[36:], "data")
	binary.LittleEndian.PutUint32(out[40:], uint32(dataSize))
	for i, s := range samples {
		binary.LittleEndian.PutUint32(out[44+i*4:], math.Float32bits(s))
	}
	return out
}
