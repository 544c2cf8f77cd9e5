package directory

import (
	"context"

	"github.com/dgraph-io/badger"
	"github.com/mosaicnetworks/axolotl/src/common"
)

const (
	recordPrefix = "addr"
)

// BadgerDirectory is a Store persisted in a Badger database. Nodes use it as
// an address book that survives restarts, and the WAMP directory server uses
// it as its backend.
type BadgerDirectory struct {
	db   *badger.DB
	path string
}

// NewBadgerDirectory opens, or creates, the database under path.
func NewBadgerDirectory(path string) (*BadgerDirectory, error) {
	opts := badger.DefaultOptions(path)
	opts.SyncWrites = false

	handle, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}

	return &BadgerDirectory{
		db:   handle,
		path: path,
	}, nil
}

// Path returns the database directory.
func (s *BadgerDirectory) Path() string {
	return s.path
}

// Close closes the database.
func (s *BadgerDirectory) Close() error {
	return s.db.Close()
}

// Lookup implements the Directory interface.
func (s *BadgerDirectory) Lookup(ctx context.Context, key string) (Record, error) {
	var rec Record

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(recordKey(key))
		if err != nil {
			return err
		}
		val, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		return rec.Unmarshal(val)
	})

	if err != nil {
		return Record{}, mapError(err, "Record", key)
	}

	return rec, nil
}

// Announce implements the Registrar interface.
func (s *BadgerDirectory) Announce(ctx context.Context, rec Record) error {
	if rec.PublicKey == "" {
		return common.NewStoreErr("Record", common.InvalidKey, rec.PublicKey)
	}

	val, err := rec.Marshal()
	if err != nil {
		return err
	}

	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(recordKey(rec.PublicKey), val)
	})
}

// Delete removes the record of key.
func (s *BadgerDirectory) Delete(key string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(recordKey(key))
	})
}

// List implements the Store interface. Records come out in key order.
func (s *BadgerDirectory) List(ctx context.Context) ([]Record, error) {
	res := []Record{}

	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		prefix := []byte(recordPrefix + "_")

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			val, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			var rec Record
			if err := rec.Unmarshal(val); err != nil {
				return err
			}
			res = append(res, rec)
		}

		return nil
	})

	return res, err
}

func recordKey(key string) []byte {
	return []byte(recordPrefix + "_" + key)
}

func isDBKeyNotFound(err error) bool {
	return err == badger.ErrKeyNotFound
}

func mapError(err error, name, key string) error {
	if err != nil {
		if isDBKeyNotFound(err) {
			return common.NewStoreErr(name, common.KeyNotFound, key)
		}
	}
	return err
}
