// Package cmap synchronizes a whole collection of records: a map of
// last-write-wins records plus a grow-only set of deleted ids.
//
// Deletion is membership in Deleted and is never undone. An id may sit in both
// Deleted and Values (a record fetched before its deletion was learned);
// Deleted wins for readers, but merges keep both so they stay associative.
package cmap

import (
	"maps"

	"github.com/kevinxiao27/consistent/growset"
	"github.com/kevinxiao27/consistent/lww"
)

type Map[T any] struct {
	Deleted growset.Set[string]      `json:"deleted"`
	Values  map[string]lww.Record[T] `json:"values"`
}

func New[T any]() Map[T] {
	return Map[T]{Deleted: growset.New[string](), Values: make(map[string]lww.Record[T])}
}

// FromRecord is the collection holding only rec, the map form of an add or
// update message.
func FromRecord[T any](id string, rec lww.Record[T]) Map[T] {
	m := New[T]()
	m.Values[id] = rec
	return m
}

// FromRemoval is the collection holding only a tombstone for id.
func FromRemoval[T any](id string) Map[T] {
	m := New[T]()
	m.Deleted = m.Deleted.Add(id)
	return m
}

func (m Map[T]) Clone() Map[T] {
	values := maps.Clone(m.Values)
	if values == nil {
		values = make(map[string]lww.Record[T])
	}
	return Map[T]{Deleted: m.Deleted, Values: values}
}

// Live returns the records that have not been deleted.
func (m Map[T]) Live() map[string]lww.Record[T] {
	live := make(map[string]lww.Record[T], len(m.Values))
	for id, rec := range m.Values {
		if !m.Deleted.Contains(id) {
			live[id] = rec
		}
	}
	return live
}

// Get returns the record for id unless it is absent or deleted.
func (m Map[T]) Get(id string) (lww.Record[T], bool) {
	if m.Deleted.Contains(id) {
		return lww.Record[T]{}, false
	}
	rec, ok := m.Values[id]
	return rec, ok
}

// Apply brings m up to date with resolved using only the ids named in o.
// For either side of a merge, applying that side's obligations to its prior
// state yields the resolved collection.
func (m Map[T]) Apply(o Obligations, resolved Map[T]) Map[T] {
	next := m.Clone()
	for _, id := range o.Create {
		next.Values[id] = resolved.Values[id]
	}
	for _, id := range o.Update {
		next.Values[id] = resolved.Values[id]
	}
	next.Deleted = next.Deleted.Add(o.Remove...)
	return next
}
