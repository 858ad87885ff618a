package lww

import (
	"cmp"
	"strings"
	"time"
)

// PeerID identifies a device or user. It only ever breaks ties between
// writes with equal counts and carries no authority.
type PeerID string

// Entry is a superseded write kept in a register's history.
type Entry[V any] struct {
	Peer    PeerID    `json:"peer"`
	Instant time.Time `json:"instant"`
	Value   V         `json:"value"`
}

// Register is a single last-write-wins value. Count never decreases; it orders
// writes along one history but is not a global clock, so concurrent writes from
// different peers may share a count and are then ordered by Peer.
type Register[V any] struct {
	Value   V          `json:"value"`
	Peer    PeerID     `json:"peer"`
	Count   uint64     `json:"count"`
	Instant time.Time  `json:"instant"`
	History []Entry[V] `json:"history"`
}

func NewRegister[V any](value V, peer PeerID, instant time.Time) Register[V] {
	return Register[V]{
		Value:   value,
		Peer:    peer,
		Instant: instant,
		History: []Entry[V]{},
	}
}

// Set returns the register advanced by one write. The receiver is unchanged.
func (r Register[V]) Set(value V, peer PeerID, instant time.Time) Register[V] {
	history := make([]Entry[V], 0, len(r.History)+1)
	history = append(history, Entry[V]{Peer: r.Peer, Instant: r.Instant, Value: r.Value})
	history = append(history, r.History...)

	return Register[V]{
		Value:   value,
		Peer:    peer,
		Count:   r.Count + 1,
		Instant: instant,
		History: history,
	}
}

// Compare orders two registers by count, then by peer. Instant is not
// consulted. Zero means both carry the same write.
func (r Register[V]) Compare(other Register[V]) int {
	if c := cmp.Compare(r.Count, other.Count); c != 0 {
		return c
	}
	return strings.Compare(string(r.Peer), string(other.Peer))
}
