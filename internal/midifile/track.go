package midifile

import (
	"io"

	"gitlab.com/gomidi/midi/v2/smf"
)

// Track is a lazy, finite, non-restartable sequence of events.
type Track struct {
	next func() (smf.Event, bool)
	done bool
}

// Next returns the next event in file order, or io.EOF once the track is exhausted.
func (t *Track) Next() (Event, error) {
	if t.done {
		return Event{}, io.EOF
	}
	ev, ok := t.next()
	if !ok {
		t.done = true
		return Event{}, io.EOF
	}
	return convert(ev), nil
}

func sliceIter(tr smf.Track) func() (smf.Event, bool) {
	i := 0
	return func() (smf.Event, bool) {
		if i >= len(tr) {
			return smf.Event{}, false
		}
		ev := tr[i]
		i++
		return ev, true
	}
}

func convert(ev smf.Event) Event {
	msg := ev.Message
	out := Event{Delay: ev.Delta, Kind: KindOther}
	if len(msg) == 0 {
		return out
	}
	switch status := msg[0]; {
	case status == 0xFF:
		out.Kind = KindMeta
		if len(msg) > 1 {
			out.MetaType = msg[1]
		}
		out.Data = metaPayload(msg)
		return out
	case status == 0xF0 || status == 0xF7:
		out.Kind = KindSysEx
		body := msg[1:]
		if n := len(body); n > 0 && body[n-1] == 0xF7 {
			body = body[:n-1]
		}
		out.Data = append([]byte(nil), body...)
		return out
	case status < 0xF0:
		out.Channel = status & 0x0F
	}
	var ch, key, vel uint8
	switch {
	case msg.GetNoteStart(&ch, &key, &vel):
		out.Kind = KindKey
		out.Key = KeyEvent{Action: Press, Note: key, Velocity: vel}
	case msg.GetNoteEnd(&ch, &key):
		out.Kind = KindKey
		out.Key = KeyEvent{Action: Release, Note: key}
		if msg[0]&0xF0 == 0x80 && len(msg) > 2 {
			out.Key.Velocity = msg[2]
		}
	default:
		out.Data = append([]byte(nil), msg...)
	}
	return out
}

// metaPayload strips the 0xFF, type and length prefix of a meta message.
func metaPayload(msg smf.Message) []byte {
	if len(msg) < 3 {
		return nil
	}
	i := 2
	var n uint32
	for ; i < len(msg) && i < 6; i++ {
		n = n<<7 | uint32(msg[i]&0x7F)
		if msg[i]&0x80 == 0 {
			i++
			break
		}
	}
	end := i + int(n)
	if end > len(msg) {
		end = len(msg)
	}
	if i >= end {
		return nil
	}
	return append([]byte(nil), msg[i:end]...)
}
