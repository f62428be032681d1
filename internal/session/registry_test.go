package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/energizer-project/gpgnet-mock/internal/protocol"
)

func TestRegistryAllocateFirstFreeSlot(t *testing.T) {
	r := NewRegistry(roster(3))
	a, b, c := &fakeConn{}, &fakeConn{}, &fakeConn{}

	p1, err := r.Allocate(a)
	require.NoError(t, err)
	p2, err := r.Allocate(b)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), p1.ID)
	assert.Equal(t, uint32(2), p2.ID)

	r.Release(p1)
	assert.True(t, a.closed)

	p, err := r.Allocate(c)
	require.NoError(t, err)
	assert.Same(t, p1, p)
	assert.Equal(t, 2, r.Connected())

	_, err = r.Allocate(&fakeConn{})
	require.NoError(t, err)
	_, err = r.Allocate(&fakeConn{})
	assert.ErrorIs(t, err, ErrSlotsExhausted)
}

func TestRegistryReleaseResetsPlayer(t *testing.T) {
	r := NewRegistry(roster(2))
	p, err := r.Allocate(&fakeConn{})
	require.NoError(t, err)

	ep := &fakeEndpoint{port: p.ProxyPort}
	p.Relay = ep
	p.State = StateLobby
	p.Peers.Add(2)
	p.NextSerial = 44
	p.History.Push(mp(protocol.MPData, 1, 0, 0, 0))
	p.Stats.Forwarded = 3

	r.Release(p)
	assert.False(t, p.Connected())
	assert.Equal(t, StateNone, p.State)
	assert.Nil(t, p.Relay)
	assert.True(t, ep.closed)
	assert.Empty(t, p.Peers)
	assert.Zero(t, p.NextSerial)
	assert.Zero(t, p.History.Len())
	assert.Zero(t, p.Stats)
}

func TestRegistryLookupPeersHost(t *testing.T) {
	r := NewRegistry(roster(3))

	p, err := r.lookup(2)
	require.NoError(t, err)
	assert.Equal(t, "player2", p.Name)

	_, err = r.lookup(42)
	assert.ErrorIs(t, err, ErrUnknownPlayer)

	var ids []uint32
	for _, peer := range r.Peers(p) {
		ids = append(ids, peer.ID)
	}
	assert.Equal(t, []uint32{1, 3}, ids)

	require.NotNil(t, r.Host())
	assert.Equal(t, uint32(1), r.Host().ID)
	assert.Equal(t, 3, r.Capacity())
	assert.Len(t, r.Players(), 3)
}

func TestPeerSet(t *testing.T) {
	s := make(PeerSet)
	s.Add(9)
	s.Add(3)
	s.Add(3)
	assert.True(t, s.Has(3))
	assert.False(t, s.Has(4))
	assert.Equal(t, []uint32{3, 9}, s.IDs())

	s.Remove(3)
	assert.Equal(t, []uint32{9}, s.IDs())
	s.Clear()
	assert.Empty(t, s)
}

func TestParseGameState(t *testing.T) {
	for _, name := range []string{"Idle", "Lobby", "Launching", "Ended"} {
		state, ok := ParseGameState(name)
		require.True(t, ok, name)
		assert.Equal(t, name, state.String())
	}
	_, ok := ParseGameState("None")
	assert.False(t, ok)
	_, ok = ParseGameState("idle")
	assert.False(t, ok)
	assert.Equal(t, "GameState(9)", GameState(9).String())
}
