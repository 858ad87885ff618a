// Package store keeps ConsistentMaps in a bbolt file, one top-level bucket
// per collection with nested buckets for records and tombstones.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/kevinxiao27/consistent/cmap"
	"github.com/kevinxiao27/consistent/lww"
	"github.com/kevinxiao27/consistent/util"
	"go.etcd.io/bbolt"
)

var (
	bucketValues  = []byte("values")
	bucketDeleted = []byte("deleted")

	tombstone = []byte{1}
)

var ErrNoCollection = errors.New("collection not found")

type Store struct {
	db *bbolt.DB
}

func Open(path string) (*Store, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt %s: %w", path, err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Collections lists the collections present in the file.
func (s *Store) Collections() ([]string, error) {
	var names []string
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.ForEach(func(name []byte, _ *bbolt.Bucket) error {
			names = append(names, string(name))
			return nil
		})
	})
	return names, err
}

// Load rebuilds a collection. A collection that was never written loads as
// an empty map.
func Load[T any](s *Store, collection string) (cmap.Map[T], error) {
	m := cmap.New[T]()
	err := s.db.View(func(tx *bbolt.Tx) error {
		root := tx.Bucket([]byte(collection))
		if root == nil {
			return nil
		}

		var deleted []string
		if b := root.Bucket(bucketDeleted); b != nil {
			if err := b.ForEach(func(k, _ []byte) error {
				deleted = append(deleted, string(k))
				return nil
			}); err != nil {
				return err
			}
		}
		m.Deleted = m.Deleted.Add(deleted...)

		b := root.Bucket(bucketValues)
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, v []byte) error {
			var rec lww.Record[T]
			if err := json.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("decode %s/%s: %w", collection, k, err)
			}
			m.Values[string(k)] = rec
			return nil
		})
	})
	if err != nil {
		return cmap.Map[T]{}, fmt.Errorf("load %s: %w", collection, err)
	}
	return m, nil
}

// Persist writes what one side of a merge must apply: the resolved records
// named in o.Create and o.Update and tombstones for o.Remove, atomically.
func Persist[T any](s *Store, collection string, resolved cmap.Map[T], o cmap.Obligations) error {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		values, deleted, err := buckets(tx, collection)
		if err != nil {
			return err
		}
		for _, ids := range [][]string{o.Create, o.Update} {
			for _, id := range ids {
				rec, ok := resolved.Values[id]
				if !ok {
					return fmt.Errorf("record %s missing from resolved state", id)
				}
				data, err := json.Marshal(rec)
				if err != nil {
					return fmt.Errorf("encode %s/%s: %w", collection, id, err)
				}
				if err := values.Put([]byte(id), data); err != nil {
					return err
				}
			}
		}
		for _, id := range o.Remove {
			if err := deleted.Put([]byte(id), tombstone); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("persist %s: %w", collection, err)
	}
	return nil
}

// Save writes a whole collection.
func Save[T any](s *Store, collection string, m cmap.Map[T]) error {
	return Persist(s, collection, m, cmap.Obligations{Update: util.SortedKeys(m.Values), Remove: m.Deleted.Sorted()})
}

// Drop removes a collection from the file.
func (s *Store) Drop(collection string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.DeleteBucket([]byte(collection)); err != nil {
			if errors.Is(err, bbolt.ErrBucketNotFound) {
				return fmt.Errorf("%w: %s", ErrNoCollection, collection)
			}
			return err
		}
		return nil
	})
}

func buckets(tx *bbolt.Tx, collection string) (values, deleted *bbolt.Bucket, err error) {
	root, err := tx.CreateBucketIfNotExists([]byte(collection))
	if err != nil {
		return nil, nil, err
	}
	if values, err = root.CreateBucketIfNotExists(bucketValues); err != nil {
		return nil, nil, err
	}
	if deleted, err = root.CreateBucketIfNotExists(bucketDeleted); err != nil {
		return nil, nil, err
	}
	return values, deleted, nil
}
