package relay

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/kevinxiao27/consistent/cmap"
	"github.com/kevinxiao27/consistent/lww"
	"github.com/kevinxiao27/consistent/util"
)

var (
	ErrMalformed   = errors.New("malformed message")
	ErrUnknownKind = errors.New("unknown message type")
)

// Persister durably applies the local side of a merge before the relay's
// state moves on.
type Persister[T any] func(collection string, resolved cmap.Map[T], local cmap.Obligations) error

// Option configures a Collection.
type Option func(*options)

type options struct {
	scratchpadUpdates bool
}

// WithScratchpadUpdates makes the collection accept scratchpad_update
// messages, handled as update.
func WithScratchpadUpdates() Option {
	return func(o *options) { o.scratchpadUpdates = true }
}

// Collection is the relay's authoritative copy of one shared collection.
// Every reconcile runs snapshot, merge, persist and swap under one lock, so
// concurrent client messages never interleave inside a merge.
type Collection[T any] struct {
	name    string
	ignore  []string
	persist Persister[T]
	log     *slog.Logger
	metrics *Metrics
	opts    options

	mu    sync.Mutex
	state cmap.Map[T]
}

func NewCollection[T any](name string, ignore []string, initial cmap.Map[T], persist Persister[T], logger *slog.Logger, metrics *Metrics, opts ...Option) *Collection[T] {
	if logger == nil {
		logger = slog.Default()
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return &Collection[T]{
		name:    name,
		ignore:  ignore,
		persist: persist,
		log:     logger.With("collection", name),
		metrics: metrics,
		opts:    o,
		state:   initial.Clone(),
	}
}

func (c *Collection[T]) Name() string { return c.name }

// State returns the current collection. The result is a copy.
func (c *Collection[T]) State() cmap.Map[T] {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Clone()
}

// Reconcile merges remote into the collection. The returned outcome's Remote
// obligations are what the sender still lacks. If persisting fails the
// collection is left as it was.
func (c *Collection[T]) Reconcile(remote cmap.Map[T]) (cmap.Outcome[T], error) {
	for id, rec := range remote.Values {
		if err := rec.Validate(c.ignore); err != nil {
			return cmap.Outcome[T]{}, fmt.Errorf("%w: record %s: %w", ErrMalformed, id, err)
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	out := cmap.Merge(c.state, remote, c.ignore)
	if c.persist != nil && !out.Local.Empty() {
		if err := c.persist(c.name, out.Resolved, out.Local); err != nil {
			c.log.Error("persist failed", "err", err)
			return out, err
		}
	}
	c.state = out.Resolved
	c.metrics.observe(c.name, out.Local, out.Remote)

	c.log.Debug("reconciled",
		"create", len(out.Local.Create), "update", len(out.Local.Update), "remove", len(out.Local.Remove),
		"owed_create", len(out.Remote.Create), "owed_update", len(out.Remote.Update), "owed_remove", len(out.Remote.Remove))
	return out, nil
}

// ApplyRecord merges a single-record delta.
func (c *Collection[T]) ApplyRecord(id string, rec lww.Record[T]) (cmap.Outcome[T], error) {
	return c.Reconcile(cmap.FromRecord(id, rec))
}

// ApplyRemoval merges a tombstone for id.
func (c *Collection[T]) ApplyRemoval(id string) (cmap.Outcome[T], error) {
	return c.Reconcile(cmap.FromRemoval[T](id))
}

// Endpoint is the type-erased face of a Collection used by the hub.
type Endpoint interface {
	Name() string
	SnapshotMessage() (Message, error)
	// Handle returns the messages owed to the sender and the messages every
	// other client needs.
	Handle(msg Message) (reply, broadcast []Message, err error)
}

func (c *Collection[T]) SnapshotMessage() (Message, error) {
	data, err := json.Marshal(c.State())
	if err != nil {
		return Message{}, err
	}
	return Message{Type: KindSnapshot, Collection: c.name, Snapshot: data}, nil
}

func (c *Collection[T]) Handle(msg Message) (reply, broadcast []Message, err error) {
	if msg.Type == KindScratchpadUpdate && !c.opts.scratchpadUpdates {
		return nil, nil, fmt.Errorf("%w: %q on %s", ErrUnknownKind, msg.Type, c.name)
	}

	var out cmap.Outcome[T]
	switch msg.Type {
	case KindAdd, KindUpdate, KindScratchpadUpdate:
		if msg.ID == "" || len(msg.Record) == 0 {
			return nil, nil, fmt.Errorf("%w: %s needs id and record", ErrMalformed, msg.Type)
		}
		var rec lww.Record[T]
		if err := json.Unmarshal(msg.Record, &rec); err != nil {
			return nil, nil, fmt.Errorf("%w: %w", ErrMalformed, err)
		}
		if out, err = c.ApplyRecord(msg.ID, rec); err != nil {
			return nil, nil, err
		}
		// the sender only described one record
		out.Remote = only(out.Remote, msg.ID)

	case KindRemove:
		if msg.ID == "" {
			return nil, nil, fmt.Errorf("%w: remove needs id", ErrMalformed)
		}
		if out, err = c.ApplyRemoval(msg.ID); err != nil {
			return nil, nil, err
		}
		out.Remote = only(out.Remote, msg.ID)

	case KindSnapshot:
		var remote cmap.Map[T]
		if err := json.Unmarshal(msg.Snapshot, &remote); err != nil {
			return nil, nil, fmt.Errorf("%w: %w", ErrMalformed, err)
		}
		if out, err = c.Reconcile(remote); err != nil {
			return nil, nil, err
		}

	default:
		return nil, nil, fmt.Errorf("%w: %q", ErrUnknownKind, msg.Type)
	}

	if reply, err = c.deltas(out.Remote, out.Resolved); err != nil {
		return nil, nil, err
	}
	if broadcast, err = c.deltas(out.Local, out.Resolved); err != nil {
		return nil, nil, err
	}
	return reply, broadcast, nil
}

// deltas turns obligations into the add, update and remove messages that
// carry them.
func (c *Collection[T]) deltas(o cmap.Obligations, resolved cmap.Map[T]) ([]Message, error) {
	record := func(kind Kind) func(string) (Message, error) {
		return func(id string) (Message, error) {
			data, err := json.Marshal(resolved.Values[id])
			if err != nil {
				return Message{}, fmt.Errorf("encode %s: %w", id, err)
			}
			return Message{Type: kind, Collection: c.name, ID: id, Record: data}, nil
		}
	}

	creates, err := util.MapN(o.Create, record(KindAdd))
	if err != nil {
		return nil, err
	}
	updates, err := util.MapN(o.Update, record(KindUpdate))
	if err != nil {
		return nil, err
	}
	removes, _ := util.MapN(o.Remove, func(id string) (Message, error) {
		return Message{Type: KindRemove, Collection: c.name, ID: id}, nil
	})
	return slices.Concat(creates, updates, removes), nil
}

func only(o cmap.Obligations, id string) cmap.Obligations {
	keep := func(x string) bool { return x == id }
	return cmap.Obligations{
		Create: util.Filter(o.Create, keep),
		Update: util.Filter(o.Update, keep),
		Remove: util.Filter(o.Remove, keep),
	}
}
