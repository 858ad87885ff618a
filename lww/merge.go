package lww

import (
	"reflect"

	"github.com/kevinxiao27/consistent/util"
)

// Outcome reports a record merge from the local side's point of view.
type Outcome[T any] struct {
	Resolved *Record[T]
	// Changed lists fields where the remote write won; local is stale there.
	Changed []string
	// Rejected lists fields where the local write won; remote is stale there.
	Rejected []string
}

// Stale reports whether the local side has to take anything from the merge.
func (o Outcome[T]) Stale() bool { return len(o.Changed) > 0 }

// Behind reports whether the remote side has to take anything from the merge.
func (o Outcome[T]) Behind() bool { return len(o.Rejected) > 0 }

// Merge resolves two replicas of one record field by field. Identity fields
// listed in ignore are taken from local when both sides exist. Merge never
// modifies its arguments and is safe to call concurrently.
func Merge[T any](local, remote *Record[T], ignore []string) Outcome[T] {
	out := Outcome[T]{Changed: []string{}, Rejected: []string{}}

	s, err := schemaFor[T]()
	if err != nil {
		// only structs can hold records; there is nothing to compare
		if local != nil {
			resolved := local.Clone()
			out.Resolved = &resolved
		}
		return out
	}
	mutable := s.mutable(ignore)

	switch {
	case local == nil && remote == nil:
		return out
	case local == nil:
		resolved := remote.Clone()
		out.Resolved = &resolved
		out.Changed = mutable
		return out
	case remote == nil:
		resolved := local.Clone()
		out.Resolved = &resolved
		return out
	}

	resolved := local.Clone()
	dst := reflect.ValueOf(&resolved.Value).Elem()
	src := reflect.ValueOf(remote.Value)

	for _, name := range mutable {
		l, lok := local.Consistency[name]
		r, rok := remote.Consistency[name]
		if !rok {
			continue
		}

		c := util.Choose(lok, l.Compare(r), -1)
		switch {
		case c > 0:
			out.Rejected = append(out.Rejected, name)
		case c < 0:
			out.Changed = append(out.Changed, name)
			s.copyField(dst, src, name)
			if resolved.Consistency == nil {
				resolved.Consistency = make(map[string]Register[any])
			}
			resolved.Consistency[name] = r
		}
	}

	out.Resolved = &resolved
	return out
}
