package workflow

import (
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
)

const runKeyPrefix = "run:"

// Log is the durable run log, one badger entry per run.
type Log struct {
	db *badger.DB
}

// OpenLog opens the run log at path. An empty path opens an in-memory log.
func OpenLog(path string) (*Log, error) {
	opts := badger.DefaultOptions(path)
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open run log: %w", err)
	}
	return &Log{db: db}, nil
}

// Save writes the state of a run.
func (l *Log) Save(run Run) error {
	data, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("marshal run: %w", err)
	}
	return l.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(runKeyPrefix+run.ID), data)
	})
}

// Load reads one run.
func (l *Log) Load(id string) (Run, bool, error) {
	var run Run
	err := l.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(runKeyPrefix + id))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &run)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return Run{}, false, nil
	}
	if err != nil {
		return Run{}, false, fmt.Errorf("load run %s: %w", id, err)
	}
	return run, true, nil
}

// List returns every run, optionally only non-terminal ones.
func (l *Log) List(activeOnly bool) ([]Run, error) {
	var runs []Run
	err := l.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(runKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var run Run
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &run)
			}); err != nil {
				return err
			}
			if activeOnly && run.Status.Terminal() {
				continue
			}
			runs = append(runs, run)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return runs, nil
}

// Delete removes a run.
func (l *Log) Delete(id string) error {
	return l.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(runKeyPrefix + id))
	})
}

// Close closes the underlying badger database.
func (l *Log) Close() error {
	return l.db.Close()
}
