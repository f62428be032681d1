package session

import "sort"

// PeerSet records which peers a player has been told to connect to.
type PeerSet map[uint32]struct{}

// Add marks id.
func (s PeerSet) Add(id uint32) { s[id] = struct{}{} }

// Has reports whether id is marked.
func (s PeerSet) Has(id uint32) bool {
	_, ok := s[id]
	return ok
}

// Remove clears id.
func (s PeerSet) Remove(id uint32) { delete(s, id) }

// Clear removes every id.
func (s PeerSet) Clear() { clear(s) }

// IDs returns the marked ids in ascending order.
func (s PeerSet) IDs() []uint32 {
	ids := make([]uint32, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
