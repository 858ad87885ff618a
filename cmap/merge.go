package cmap

import (
	"slices"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/kevinxiao27/consistent/growset"
	"github.com/kevinxiao27/consistent/lww"
	"github.com/kevinxiao27/consistent/util"
)

// Obligations are the ids one side must create, overwrite, or tombstone to
// reach the resolved collection. Each list is sorted.
type Obligations struct {
	Create []string `json:"create"`
	Update []string `json:"update"`
	Remove []string `json:"remove"`
}

func (o Obligations) Empty() bool {
	return len(o.Create) == 0 && len(o.Update) == 0 && len(o.Remove) == 0
}

type Outcome[T any] struct {
	Resolved Map[T]
	// Local is what the local side must apply; Remote is what must be sent.
	Local  Obligations
	Remote Obligations
}

// Merge reconciles two replicas of a collection. Records present on both
// sides are merged field by field with lww.Merge, deleted sets by union. It
// performs no I/O, never fails, and leaves both inputs untouched.
func Merge[T any](local, remote Map[T], ignore []string) Outcome[T] {
	localIDs := mapset.NewThreadUnsafeSetFromMapKeys(local.Values)
	remoteIDs := mapset.NewThreadUnsafeSetFromMapKeys(remote.Values)

	localOnly := sorted(localIDs.Difference(remoteIDs))
	remoteOnly := sorted(remoteIDs.Difference(localIDs))
	shared := sorted(localIDs.Intersect(remoteIDs))

	values := make(map[string]lww.Record[T], len(localOnly)+len(remoteOnly)+len(shared))
	for _, id := range localOnly {
		values[id] = local.Values[id]
	}
	for _, id := range remoteOnly {
		values[id] = remote.Values[id]
	}

	var changed, rejected []string
	for _, id := range shared {
		l, r := local.Values[id], remote.Values[id]
		out := lww.Merge(&l, &r, ignore)
		values[id] = *out.Resolved
		if out.Stale() {
			changed = append(changed, id)
		}
		if out.Behind() {
			rejected = append(rejected, id)
		}
	}

	deleted := growset.Merge(local.Deleted, remote.Deleted)

	return Outcome[T]{
		Resolved: Map[T]{Deleted: deleted.Resolved, Values: values},
		Local: Obligations{
			Create: remoteOnly,
			Update: nonNil(changed),
			Remove: deleted.RemoteOnly,
		},
		Remote: Obligations{
			Create: localOnly,
			Update: nonNil(rejected),
			Remove: deleted.LocalOnly,
		},
	}
}

// Converged reports whether neither side has anything left to learn.
func (o Outcome[T]) Converged() bool {
	return o.Local.Empty() && o.Remote.Empty()
}

func sorted(s mapset.Set[string]) []string {
	ids := s.ToSlice()
	slices.Sort(ids)
	return ids
}

func nonNil(ids []string) []string {
	return util.Choose(ids == nil, []string{}, ids)
}
