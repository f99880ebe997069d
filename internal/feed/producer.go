package feed

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/cbegin/midiplay-go/internal/midifile"
)

// Source yields events in file order and io.EOF at the end.
type Source interface {
	Next() (midifile.Event, error)
}

// Produce copies every event of src into f, in order, then closes f.
// A read error or cancellation is sent through f and returned.
func Produce(ctx context.Context, src Source, f *Feed) error {
	for {
		ev, err := src.Next()
		if errors.Is(err, io.EOF) {
			f.Close(ctx, nil)
			return nil
		}
		if err != nil {
			err = fmt.Errorf("read event: %w", err)
			f.Close(ctx, err)
			return err
		}
		if err := f.Send(ctx, ev); err != nil {
			f.Close(ctx, err)
			return err
		}
	}
}
