package heartbeat

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/RezaEskandarii/tablequeue/custom_errors"
	"github.com/RezaEskandarii/tablequeue/types"
	"github.com/dgraph-io/badger/v4"
)

// BadgerRegistry keeps heartbeats in an embedded Badger database, for single-host setups.
type BadgerRegistry struct {
	db *badger.DB
}

func NewBadgerRegistry(db *badger.DB) (*BadgerRegistry, error) {
	if db == nil {
		return nil, errors.New("badger db is required")
	}
	return &BadgerRegistry{db: db}, nil
}

// OpenBadger opens the database at path, or an in-memory one.
func OpenBadger(path string, inMemory bool) (*badger.DB, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	if inMemory {
		opts = badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return db, nil
}

func (r *BadgerRegistry) Put(ctx context.Context, key string, value types.Heartbeat, ttl time.Duration) error {
	data, err := encode(value)
	if err != nil {
		return err
	}
	err = r.db.Update(func(txn *badger.Txn) error {
		return txn.SetEntry(badger.NewEntry([]byte(key), data).WithTTL(ttl))
	})
	if err != nil {
		return fmt.Errorf("put heartbeat %s: %w: %w", key, custom_errors.ErrPersistenceUnavailable, err)
	}
	return nil
}

func (r *BadgerRegistry) Get(ctx context.Context, key string) (*types.Heartbeat, error) {
	var data []byte
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get heartbeat %s: %w: %w", key, custom_errors.ErrPersistenceUnavailable, err)
	}
	value, err := decode(data)
	if err != nil {
		return nil, fmt.Errorf("decode heartbeat %s: %w", key, err)
	}
	return &value, nil
}

func (r *BadgerRegistry) Delete(ctx context.Context, key string) error {
	err := r.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
	if err != nil {
		return fmt.Errorf("delete heartbeat %s: %w: %w", key, custom_errors.ErrPersistenceUnavailable, err)
	}
	return nil
}

func (r *BadgerRegistry) List(ctx context.Context, prefix string) ([]Entry, error) {
	var entries []Entry
	err := r.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(opts.Prefix); it.ValidForPrefix(opts.Prefix); it.Next() {
			item := it.Item()
			data, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			value, err := decode(data)
			if err != nil {
				continue
			}
			entries = append(entries, Entry{Key: string(item.KeyCopy(nil)), Value: value})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list heartbeats: %w: %w", custom_errors.ErrPersistenceUnavailable, err)
	}
	return entries, nil
}
