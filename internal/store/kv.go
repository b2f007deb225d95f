// Package store is the local durable side of the system: typed CRUD over the
// four collections, device seeding, backup/restore, change observers and the
// write-through hook the sync engine attaches to. Everything is backed by a
// single embedded Badger database scoped to the device.
package store

import (
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
)

// KV is a thin string-keyed blob store on top of Badger. Reads of missing
// keys return nil without an error; callers decide what the default is.
type KV struct {
	db *badger.DB
}

// OpenKV opens (or creates) the device database at path.
func OpenKV(path string) (*KV, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger at %s: %w", path, err)
	}
	return &KV{db: db}, nil
}

// Close releases the underlying database.
func (k *KV) Close() error { return k.db.Close() }

// Get returns the blob stored under key, or nil when the key is absent.
func (k *KV) Get(key string) ([]byte, error) {
	var out []byte
	err := k.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return nil
			}
			return err
		}
		out, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	return out, nil
}

// Set durably writes value under key before returning.
func (k *KV) Set(key string, value []byte) error {
	err := k.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), value)
	})
	if err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

// SetMulti writes every entry in a single transaction, so a restore either
// lands completely or not at all.
func (k *KV) SetMulti(entries map[string][]byte) error {
	err := k.db.Update(func(txn *badger.Txn) error {
		for key, value := range entries {
			if err := txn.Set([]byte(key), value); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("set batch: %w", err)
	}
	return nil
}

// Delete removes key. Deleting an absent key is not an error.
func (k *KV) Delete(key string) error {
	err := k.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
	if err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

// DropAll wipes the database. Used by device reset only.
func (k *KV) DropAll() error { return k.db.DropAll() }
