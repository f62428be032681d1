package session

import "github.com/energizer-project/gpgnet-mock/internal/protocol"

const (
	// HistoryCapacity is the number of headers kept per player.
	HistoryCapacity = 100

	// MaxLineageHops bounds how many irt references a lineage walk follows.
	MaxLineageHops = 10
)

// History is a fixed-size ring of the transport headers a player's relay
// received from peers. The oldest entry is overwritten when full.
type History struct {
	entries [HistoryCapacity]protocol.MPHeader
	next    int
	count   int
}

// Push records h.
func (r *History) Push(h protocol.MPHeader) {
	r.entries[r.next] = h
	r.next = (r.next + 1) % HistoryCapacity
	if r.count < HistoryCapacity {
		r.count++
	}
}

// Len returns the number of stored headers.
func (r *History) Len() int {
	return r.count
}

// Reset drops every entry.
func (r *History) Reset() {
	*r = History{}
}

// newestFirst returns the stored headers, newest first.
func (r *History) newestFirst() []protocol.MPHeader {
	out := make([]protocol.MPHeader, 0, r.count)
	for i := 0; i < r.count; i++ {
		out = append(out, r.at(i))
	}
	return out
}

// at returns the i-th newest entry.
func (r *History) at(i int) protocol.MPHeader {
	idx := (r.next - 1 - i + 2*HistoryCapacity) % HistoryCapacity
	return r.entries[idx]
}

// findData returns the newest Data header carrying serial.
func (r *History) findData(serial uint16) (protocol.MPHeader, bool) {
	for i := 0; i < r.count; i++ {
		h := r.at(i)
		if h.Type == protocol.MPData && h.Serial == serial {
			return h, true
		}
	}
	return protocol.MPHeader{}, false
}

// ResolveLineage finds the Data frame with the given serial and follows its
// irt chain back to the first frame of the retransmission lineage. It fails
// when any serial along the chain is unknown, including frames already
// overwritten, or when the chain is longer than MaxLineageHops, which also
// covers cycles.
func (r *History) ResolveLineage(serial uint16) (protocol.MPHeader, bool) {
	entry, ok := r.findData(serial)
	if !ok {
		return protocol.MPHeader{}, false
	}

	for hops := 0; entry.IRT != 0; hops++ {
		if hops >= MaxLineageHops {
			return protocol.MPHeader{}, false
		}
		prev, ok := r.findData(entry.IRT)
		if !ok {
			return protocol.MPHeader{}, false
		}
		entry = prev
	}
	return entry, true
}
