package midifile

import "fmt"

type Kind uint8

const (
	KindKey Kind = iota
	KindMeta
	KindSysEx
	KindOther
)

func (k Kind) String() string {
	switch k {
	case KindKey:
		return "key"
	case KindMeta:
		return "meta"
	case KindSysEx:
		return "sysex"
	default:
		return "other"
	}
}

type KeyAction uint8

const (
	Press KeyAction = iota
	Release
)

// KeyEvent is a note-on or note-off. A note-on with velocity 0 is a Release.
type KeyEvent struct {
	Action   KeyAction
	Note     uint8
	Velocity uint8
}

// Meta event types used by the player.
const (
	MetaTrackName  = 0x03
	MetaEndOfTrack = 0x2F
	MetaTempo      = 0x51
)

// Event is one timed MIDI event. Delay is the tick distance from the previous
// event of the same stream.
type Event struct {
	Delay   uint32
	Channel uint8
	Kind    Kind
	Key     KeyEvent
	// MetaType is set for KindMeta only.
	MetaType uint8
	// Data is the meta payload, the SysEx body, or the raw channel message for KindOther.
	Data []byte
}

// IsEndOfTrack reports whether e is the end-of-track meta event.
func (e Event) IsEndOfTrack() bool {
	return e.Kind == KindMeta && e.MetaType == MetaEndOfTrack
}

// Tempo returns the tempo in µs per beat carried by a tempo meta event.
func (e Event) Tempo() (int, bool) {
	if e.Kind != KindMeta || e.MetaType != MetaTempo || len(e.Data) < 3 {
		return 0, false
	}
	return int(e.Data[0])<<16 | int(e.Data[1])<<8 | int(e.Data[2]), true
}

func (e Event) String() string {
	switch e.Kind {
	case KindKey:
		action := "press"
		if e.Key.Action == Release {
			action = "release"
		}
		return fmt.Sprintf("+%d ch%d %s note=%d vel=%d", e.Delay, e.Channel, action, e.Key.Note, e.Key.Velocity)
	case KindMeta:
		return fmt.Sprintf("+%d meta 0x%02X % X", e.Delay, e.MetaType, e.Data)
	default:
		return fmt.Sprintf("+%d ch%d %s % X", e.Delay, e.Channel, e.Kind, e.Data)
	}
}
