package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/energizer-project/gpgnet-mock/internal/protocol"
)

// chain pushes Data frames first..last where each references the previous.
func chain(r *History, first, last uint16) {
	for s := first; s <= last; s++ {
		irt := uint16(0)
		if s > first {
			irt = s - 1
		}
		r.Push(mp(protocol.MPData, s, irt, 0, 0))
	}
}

func TestHistoryWrapsAround(t *testing.T) {
	var r History
	for s := uint16(0); s < 150; s++ {
		r.Push(mp(protocol.MPKeepAlive, s, 0, 0, 0))
	}

	assert.Equal(t, HistoryCapacity, r.Len())
	entries := r.newestFirst()
	require.Len(t, entries, HistoryCapacity)
	assert.Equal(t, uint16(149), entries[0].Serial)
	assert.Equal(t, uint16(50), entries[HistoryCapacity-1].Serial)

	r.Reset()
	assert.Equal(t, 0, r.Len())
	assert.Empty(t, r.newestFirst())
}

func TestResolveLineage(t *testing.T) {
	tests := []struct {
		name   string
		setup  func(r *History)
		target uint16
		want   uint16
		found  bool
	}{
		{
			name:   "single frame",
			setup:  func(r *History) { r.Push(mp(protocol.MPData, 7, 0, 0, 0)) },
			target: 7,
			want:   7,
			found:  true,
		},
		{
			name:   "unknown serial",
			setup:  func(r *History) { r.Push(mp(protocol.MPData, 7, 0, 0, 0)) },
			target: 8,
		},
		{
			name:   "only data frames match",
			setup:  func(r *History) { r.Push(mp(protocol.MPAck, 7, 0, 0, 0)) },
			target: 7,
		},
		{
			name:   "ten hops",
			setup:  func(r *History) { chain(r, 1, 11) },
			target: 11,
			want:   1,
			found:  true,
		},
		{
			name:   "eleven hops",
			setup:  func(r *History) { chain(r, 1, 12) },
			target: 12,
		},
		{
			name: "cycle longer than the hop limit",
			setup: func(r *History) {
				r.Push(mp(protocol.MPData, 1, 12, 0, 0))
				for s := uint16(2); s <= 12; s++ {
					r.Push(mp(protocol.MPData, s, s-1, 0, 0))
				}
			},
			target: 12,
		},
		{
			name: "two-frame cycle",
			setup: func(r *History) {
				r.Push(mp(protocol.MPData, 1, 2, 0, 0))
				r.Push(mp(protocol.MPData, 2, 1, 0, 0))
			},
			target: 1,
		},
		{
			name: "chain leaving the ring",
			setup: func(r *History) {
				r.Push(mp(protocol.MPData, 50, 49, 0, 0))
				r.Push(mp(protocol.MPData, 51, 50, 0, 0))
			},
			target: 51,
		},
		{
			name:   "dangling irt",
			setup:  func(r *History) { r.Push(mp(protocol.MPData, 51, 50, 0, 0)) },
			target: 51,
		},
		{
			name: "newest duplicate wins",
			setup: func(r *History) {
				r.Push(mp(protocol.MPData, 3, 0, 0, 0))
				r.Push(mp(protocol.MPData, 5, 0, 0, 0))
				r.Push(mp(protocol.MPData, 5, 3, 0, 0))
			},
			target: 5,
			want:   3,
			found:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var r History
			tt.setup(&r)
			got, ok := r.ResolveLineage(tt.target)
			assert.Equal(t, tt.found, ok)
			if tt.found {
				assert.Equal(t, tt.want, got.Serial)
				assert.Equal(t, protocol.MPData, got.Type)
			}
		})
	}
}

func TestResolveLineageAfterOverwrite(t *testing.T) {
	var r History
	r.Push(mp(protocol.MPData, 1, 0, 0, 0))
	for s := uint16(100); s < 100+HistoryCapacity; s++ {
		r.Push(mp(protocol.MPKeepAlive, s, 0, 0, 0))
	}
	_, ok := r.ResolveLineage(1)
	assert.False(t, ok)
}
