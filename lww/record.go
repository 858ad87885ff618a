package lww

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"reflect"
	"time"
)

var (
	ErrNotStruct       = errors.New("record value is not a struct")
	ErrUnknownField    = errors.New("unknown field")
	ErrIgnoredField    = errors.New("field is an identity field")
	ErrFieldType       = errors.New("field value has wrong type")
	ErrMissingRegister = errors.New("mutable field has no register")
	ErrRegisterDrift   = errors.New("field value differs from its register")
)

// consistencyKey is the JSON member holding a record's registers.
const consistencyKey = "consistency"

// Record is business data T alongside one register per mutable field.
// Identity fields (the ignore set given to Init) have no register and never
// change after creation.
type Record[T any] struct {
	Value       T
	Consistency map[string]Register[any]
}

// Init builds a fresh record authored by peer, every register at count 0.
func Init[T any](value T, ignore []string, peer PeerID) (Record[T], error) {
	return InitAt(value, ignore, peer, time.Now())
}

func InitAt[T any](value T, ignore []string, peer PeerID, instant time.Time) (Record[T], error) {
	s, err := schemaFor[T]()
	if err != nil {
		return Record[T]{}, err
	}
	if err := s.checkIgnore(ignore); err != nil {
		return Record[T]{}, err
	}

	rv := reflect.ValueOf(value)
	registers := make(map[string]Register[any])
	for _, name := range s.mutable(ignore) {
		registers[name] = NewRegister(s.get(rv, name), peer, instant)
	}
	return Record[T]{Value: value, Consistency: registers}, nil
}

// Change is a single-field edit. A zero Instant means now.
type Change struct {
	Key     string
	Value   any
	Peer    PeerID
	Instant time.Time
}

// Update returns rec with only change.Key's register advanced.
func Update[T any](rec Record[T], change Change) (Record[T], error) {
	s, err := schemaFor[T]()
	if err != nil {
		return rec, err
	}
	reg, ok := rec.Consistency[change.Key]
	if !ok {
		if _, known := s.lookup(change.Key); known {
			return rec, fmt.Errorf("%w: %q", ErrIgnoredField, change.Key)
		}
		return rec, fmt.Errorf("%w: %q on %s", ErrUnknownField, change.Key, s.typ)
	}

	next := rec.Clone()
	rv := reflect.ValueOf(&next.Value).Elem()
	if err := s.set(rv, change.Key, change.Value); err != nil {
		return rec, err
	}

	instant := change.Instant
	if instant.IsZero() {
		instant = time.Now()
	}
	next.Consistency[change.Key] = reg.Set(s.get(rv, change.Key), change.Peer, instant)
	return next, nil
}

// Clone copies the register table so the result can be edited independently.
// Field values are shared; records never modify them in place.
func (r Record[T]) Clone() Record[T] {
	return Record[T]{Value: r.Value, Consistency: maps.Clone(r.Consistency)}
}

// Validate checks that r carries exactly one register per mutable field and
// that every register agrees with its field.
func (r Record[T]) Validate(ignore []string) error {
	s, err := schemaFor[T]()
	if err != nil {
		return err
	}
	if err := s.checkIgnore(ignore); err != nil {
		return err
	}
	mutable := s.mutable(ignore)
	rv := reflect.ValueOf(r.Value)
	for _, name := range mutable {
		reg, ok := r.Consistency[name]
		if !ok {
			return fmt.Errorf("%w: %q", ErrMissingRegister, name)
		}
		if !reflect.DeepEqual(reg.Value, s.get(rv, name)) {
			return fmt.Errorf("%w: %q", ErrRegisterDrift, name)
		}
	}
	if len(r.Consistency) != len(mutable) {
		for name := range r.Consistency {
			if _, known := s.lookup(name); !known {
				return fmt.Errorf("%w: register %q", ErrUnknownField, name)
			}
		}
		return fmt.Errorf("%w: identity field carries a register", ErrIgnoredField)
	}
	return nil
}

type wireEntry struct {
	Peer    PeerID          `json:"peer"`
	Instant time.Time       `json:"instant"`
	Value   json.RawMessage `json:"value"`
}

type wireRegister struct {
	Value   json.RawMessage `json:"value"`
	Peer    PeerID          `json:"peer"`
	Count   uint64          `json:"count"`
	Instant time.Time       `json:"instant"`
	History []wireEntry     `json:"history"`
}

// MarshalJSON flattens the business fields and adds a "consistency" member.
func (r Record[T]) MarshalJSON() ([]byte, error) {
	body, err := json.Marshal(r.Value)
	if err != nil {
		return nil, err
	}
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("record value must encode as an object: %w", err)
	}
	regs, err := json.Marshal(r.Consistency)
	if err != nil {
		return nil, err
	}
	doc[consistencyKey] = regs
	return json.Marshal(doc)
}

// UnmarshalJSON decodes register history into the Go type of its field. Each
// register's current value is taken from the decoded business field, so a field
// whose encoding collapses (an omitempty empty map decodes as nil) still matches
// its register.
func (r *Record[T]) UnmarshalJSON(data []byte) error {
	s, err := schemaFor[T]()
	if err != nil {
		return err
	}
	var value T
	if err := json.Unmarshal(data, &value); err != nil {
		return err
	}
	var doc struct {
		Consistency map[string]wireRegister `json:"consistency"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}

	rv := reflect.ValueOf(value)
	registers := make(map[string]Register[any], len(doc.Consistency))
	for name, w := range doc.Consistency {
		f, ok := s.lookup(name)
		if !ok {
			return fmt.Errorf("%w: register %q on %s", ErrUnknownField, name, s.typ)
		}
		if _, err := decodeAs(f.typ, w.Value); err != nil {
			return fmt.Errorf("register %q: %w", name, err)
		}
		reg := Register[any]{Value: s.get(rv, name), Peer: w.Peer, Count: w.Count, Instant: w.Instant, History: make([]Entry[any], 0, len(w.History))}
		for _, e := range w.History {
			hv, err := decodeAs(f.typ, e.Value)
			if err != nil {
				return fmt.Errorf("register %q history: %w", name, err)
			}
			reg.History = append(reg.History, Entry[any]{Peer: e.Peer, Instant: e.Instant, Value: hv})
		}
		registers[name] = reg
	}

	r.Value = value
	r.Consistency = registers
	return nil
}

func decodeAs(typ reflect.Type, raw json.RawMessage) (any, error) {
	ptr := reflect.New(typ)
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, ptr.Interface()); err != nil {
			return nil, err
		}
	}
	return ptr.Elem().Interface(), nil
}
