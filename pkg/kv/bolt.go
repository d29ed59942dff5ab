package kv

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"

	bolt "go.etcd.io/bbolt"
)

// Backend is the embedded ordered key-value store contract the rest of the
// core treats as a black box. Keys are flat, slash-delimited strings
// such as "atoms/<atom_id>" or "schema_field_refs/<schema>/<field>"; Scan
// iterates all keys sharing a prefix in lexical order.
type Backend interface {
	Get(key string) ([]byte, bool, error)
	Put(key string, value []byte) error
	Delete(key string) error
	Scan(prefix string) (Iterator, error)
	Close() error
}

// Iterator yields (key, value) pairs for a Scan, already materialized: the
// backend has no long-lived cursors that could observe a concurrent write.
type Iterator interface {
	Next() (key string, value []byte, ok bool)
}

type sliceIterator struct {
	keys   []string
	values [][]byte
	pos    int
}

func (it *sliceIterator) Next() (string, []byte, bool) {
	if it.pos >= len(it.keys) {
		return "", nil, false
	}
	k, v := it.keys[it.pos], it.values[it.pos]
	it.pos++
	return k, v, true
}

// rootBucket is the single bbolt bucket every key lives in. Prefixes such as
// "atoms/" or "schemas/" are not separate bbolt buckets; the flat key-space
// layout is preserved literally as the bbolt key, which keeps Scan a
// single bucket.ForEach with a byte-prefix comparison instead of N buckets
// the caller would need to know about in advance.
var rootBucket = []byte("datafold")

// BoltBackend implements Backend using BoltDB (bbolt) for embedded,
// crash-consistent, single-writer storage.
type BoltBackend struct {
	db *bolt.DB
}

// NewBoltBackend opens (creating if absent) a BoltDB file under dataDir.
func NewBoltBackend(dataDir string) (*BoltBackend, error) {
	dbPath := filepath.Join(dataDir, "datafold.db")

	db, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("kv: failed to open database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(rootBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("kv: failed to create root bucket: %w", err)
	}

	return &BoltBackend{db: db}, nil
}

func (b *BoltBackend) Close() error {
	return b.db.Close()
}

// Get is atomic and consistent via bbolt's MVCC read transactions.
func (b *BoltBackend) Get(key string) ([]byte, bool, error) {
	var value []byte
	err := b.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(rootBucket).Get([]byte(key))
		if v != nil {
			value = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return nil, false, fmt.Errorf("kv: get %q: %w", key, err)
	}
	return value, value != nil, nil
}

// Put is a single bbolt write transaction: atomic and durable-on-return
// (bbolt fsyncs on commit by default), and bbolt serializes writers from a
// single process so puts from one thread are never reordered.
func (b *BoltBackend) Put(key string, value []byte) error {
	err := b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(rootBucket).Put([]byte(key), value)
	})
	if err != nil {
		return fmt.Errorf("kv: put %q: %w", key, err)
	}
	return nil
}

// Delete is idempotent: removing an absent key is not an error.
func (b *BoltBackend) Delete(key string) error {
	err := b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(rootBucket).Delete([]byte(key))
	})
	if err != nil {
		return fmt.Errorf("kv: delete %q: %w", key, err)
	}
	return nil
}

// Scan materializes every (key, value) pair whose key has the given byte
// prefix. bbolt's cursor already walks keys in lexical order, so a prefix
// scan is a Seek followed by a bounded ForEach-style walk.
func (b *BoltBackend) Scan(prefix string) (Iterator, error) {
	it := &sliceIterator{}
	p := []byte(prefix)

	err := b.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(rootBucket).Cursor()
		for k, v := c.Seek(p); k != nil && bytes.HasPrefix(k, p); k, v = c.Next() {
			it.keys = append(it.keys, string(k))
			it.values = append(it.values, append([]byte(nil), v...))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("kv: scan %q: %w", prefix, err)
	}
	return it, nil
}

// Join builds a flat key from its path segments.
func Join(parts ...string) string {
	return strings.Join(parts, "/")
}
