package host

import (
	"errors"
	"fmt"
	"io"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
)

const (
	// MaxKeySize bounds storage keys written by scripts.
	MaxKeySize = 64
	// MaxValueSize bounds storage values written by scripts.
	MaxValueSize = 65535
)

// ErrNoTransaction is returned when a write happens outside a run.
var ErrNoTransaction = errors.New("host: no transaction in progress")

// Storage is the per-script key/value store backing the System.Storage
// services. Every key is prefixed with the hash of the owning script.
// Writes made during a run go to an indexed batch and only reach the
// database on Commit.
type Storage struct {
	db    *pebble.DB
	batch *pebble.Batch
}

// OpenStorage opens the pebble database in dir. An empty dir gives an
// in-memory store.
func OpenStorage(dir string) (*Storage, error) {
	opts := &pebble.Options{}
	if dir == "" {
		opts.FS = vfs.NewMem()
	}
	db, err := pebble.Open(dir, opts)
	if err != nil {
		return nil, fmt.Errorf("host: open storage: %w", err)
	}
	return &Storage{db: db}, nil
}

// Close discards any pending batch and closes the database.
func (s *Storage) Close() error {
	s.Discard()
	return s.db.Close()
}

// Begin starts a transaction.
func (s *Storage) Begin() error {
	if s.batch != nil {
		return fmt.Errorf("host: transaction already in progress")
	}
	s.batch = s.db.NewIndexedBatch()
	return nil
}

// Commit writes the pending batch.
func (s *Storage) Commit() error {
	if s.batch == nil {
		return ErrNoTransaction
	}
	err := s.batch.Commit(pebble.Sync)
	s.batch.Close()
	s.batch = nil
	return err
}

// Discard drops the pending batch, if any.
func (s *Storage) Discard() {
	if s.batch != nil {
		s.batch.Close()
		s.batch = nil
	}
}

func storageKey(owner [32]byte, key []byte) []byte {
	k := make([]byte, 0, len(owner)+len(key))
	k = append(k, owner[:]...)
	return append(k, key...)
}

// Get returns the value stored under key for owner. The bool is false if
// there is none.
func (s *Storage) Get(owner [32]byte, key []byte) ([]byte, bool, error) {
	k := storageKey(owner, key)
	var (
		v      []byte
		closer io.Closer
		err    error
	)
	if s.batch != nil {
		v, closer, err = s.batch.Get(k)
	} else {
		v, closer, err = s.db.Get(k)
	}
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	defer closer.Close()
	return append([]byte(nil), v...), true, nil
}

// Put stores value under key for owner in the current transaction.
func (s *Storage) Put(owner [32]byte, key, value []byte) error {
	if s.batch == nil {
		return ErrNoTransaction
	}
	return s.batch.Set(storageKey(owner, key), value, nil)
}

// Delete removes key for owner in the current transaction.
func (s *Storage) Delete(owner [32]byte, key []byte) error {
	if s.batch == nil {
		return ErrNoTransaction
	}
	return s.batch.Delete(storageKey(owner, key), nil)
}

// Keys lists the keys owned by owner, without the prefix, in order.
func (s *Storage) Keys(owner [32]byte) ([][]byte, error) {
	opts := &pebble.IterOptions{LowerBound: owner[:], UpperBound: prefixEnd(owner[:])}
	var (
		it  *pebble.Iterator
		err error
	)
	if s.batch != nil {
		it, err = s.batch.NewIter(opts)
	} else {
		it, err = s.db.NewIter(opts)
	}
	if err != nil {
		return nil, err
	}
	defer it.Close()
	var keys [][]byte
	for it.First(); it.Valid(); it.Next() {
		keys = append(keys, append([]byte(nil), it.Key()[len(owner):]...))
	}
	return keys, it.Error()
}

// prefixEnd returns the smallest key greater than every key starting with
// prefix, or nil if there is none.
func prefixEnd(prefix []byte) []byte {
	end := append([]byte(nil), prefix...)
	for i := len(end) - 1; i >= 0; i-- {
		end[i]++
		if end[i] != 0 {
			return end[:i+1]
		}
	}
	return nil
}
