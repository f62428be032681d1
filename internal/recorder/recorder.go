// Package recorder persists every transport header the relays observe, for
// offline inspection of a test run. Recording is purely observational.
package recorder

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/energizer-project/gpgnet-mock/internal/protocol"
)

// Direction tells which side of a relay a header came from.
type Direction string

const (
	FromGame Direction = "game"
	FromPeer Direction = "peer"
)

// Entry is one observed transport header.
type Entry struct {
	Time      time.Time
	PlayerID  uint32
	Direction Direction
	Port      int
	Type      protocol.MPType
	Serial    uint16
	IRT       uint16
	Seq       uint16
	Expected  uint16
	Payload   []byte
}

// NewEntry builds an entry for a header seen on a player's relay from port.
func NewEntry(playerID uint32, dir Direction, port int, h protocol.MPHeader) Entry {
	return Entry{
		Time:      time.Now(),
		PlayerID:  playerID,
		Direction: dir,
		Port:      port,
		Type:      h.Type,
		Serial:    h.Serial,
		IRT:       h.IRT,
		Seq:       h.Seq,
		Expected:  h.Expected,
		Payload:   h.Payload,
	}
}

// Recorder is a sink for observed headers.
type Recorder interface {
	Record(e Entry) error
	Close() error
}

// Open picks a sink by file extension: .db and .sqlite use SQLite, anything
// else is written as tab-separated text. An empty path disables recording.
func Open(path, sessionID string) (Recorder, error) {
	if path == "" {
		return Nop{}, nil
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".db", ".sqlite", ".sqlite3":
		return NewSQLite(path, sessionID)
	default:
		return NewTSV(path)
	}
}

// Nop discards everything.
type Nop struct{}

func (Nop) Record(Entry) error { return nil }
func (Nop) Close() error       { return nil }
