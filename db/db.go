package db

import (
	"encoding/json"
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"llmquery/models"
)

const historyPrefix = "history:"

// DB stores generation history in badger. Keys are ordered by creation
// time, so reverse iteration yields the newest entries first.
type DB struct {
	badgerDB *badger.DB
}

func New(dbPath string) (*DB, error) {
	opts := badger.DefaultOptions(dbPath)
	opts.Logger = nil

	return open(opts)
}

// NewInMemory opens a store that lives only as long as the process.
func NewInMemory() (*DB, error) {
	opts := badger.DefaultOptions("").WithInMemory(true)
	opts.Logger = nil

	return open(opts)
}

func open(opts badger.Options) (*DB, error) {
	badgerDB, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return &DB{badgerDB: badgerDB}, nil
}

func (d *DB) Close() error {
	return d.badgerDB.Close()
}

func historyKey(entry models.HistoryEntry) []byte {
	return []byte(fmt.Sprintf("%s%020d:%s", historyPrefix, entry.CreatedAt.UnixNano(), entry.ID))
}

func (d *DB) StoreHistory(entry models.HistoryEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to encode history entry: %w", err)
	}
	return d.badgerDB.Update(func(txn *badger.Txn) error {
		return txn.Set(historyKey(entry), data)
	})
}

// ListHistory returns up to limit entries, newest first. A limit of zero or
// less returns everything.
func (d *DB) ListHistory(limit int) ([]models.HistoryEntry, error) {
	entries := []models.HistoryEntry{}

	err := d.badgerDB.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(historyPrefix)
		opts.Reverse = true
		it := txn.NewIterator(opts)
		defer it.Close()

		seek := append([]byte(historyPrefix), 0xFF)
		for it.Seek(seek); it.Valid(); it.Next() {
			if limit > 0 && len(entries) >= limit {
				break
			}
			var entry models.HistoryEntry
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &entry)
			})
			if err != nil {
				return fmt.Errorf("failed to decode history entry: %w", err)
			}
			entries = append(entries, entry)
		}
		return nil
	})

	return entries, err
}

// Ping reports whether the store accepts reads.
func (d *DB) Ping() error {
	return d.badgerDB.View(func(txn *badger.Txn) error { return nil })
}
