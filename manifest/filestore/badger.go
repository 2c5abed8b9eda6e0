package filestore

import (
	"context"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

const keyPrefix = "manifest:"

// BadgerStore keeps manifest files in a local badger database
type BadgerStore struct {
	db  *badger.DB
	ttl time.Duration
}

// NewBadgerStore opens a badger database at path. An empty path keeps the
// database in memory. Files expire after ttl; zero keeps them forever.
func NewBadgerStore(path string, ttl time.Duration) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path)
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	opts = opts.WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, errors.Wrap(err, "filestore: opening badger failed")
	}
	log.WithField("path", path).Debug("opened badger manifest store")
	return &BadgerStore{
		db:  db,
		ttl: ttl,
	}, nil
}

// Put implements Store
func (s *BadgerStore) Put(_ context.Context, f *ManifestFile) error {
	prepare(f)
	data, err := encode(f)
	if err != nil {
		return err
	}
	err = s.db.Update(
		func(txn *badger.Txn) error {
			e := badger.NewEntry([]byte(keyPrefix+f.ID), data)
			if s.ttl > 0 {
				e = e.WithTTL(s.ttl)
			}
			return txn.SetEntry(e)
		},
	)
	return errors.Wrap(err, "filestore: put failed")
}

// Get implements Store
func (s *BadgerStore) Get(_ context.Context, id string) (*ManifestFile, error) {
	var f *ManifestFile
	err := s.db.View(
		func(txn *badger.Txn) error {
			item, err := txn.Get([]byte(keyPrefix + id))
			if err != nil {
				return err
			}
			return item.Value(
				func(val []byte) error {
					f, err = decode(val)
					return err
				},
			)
		},
	)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "filestore: get failed")
	}
	return f, nil
}

// Delete implements Store
func (s *BadgerStore) Delete(_ context.Context, id string) error {
	err := s.db.Update(
		func(txn *badger.Txn) error {
			return txn.Delete([]byte(keyPrefix + id))
		},
	)
	return errors.Wrap(err, "filestore: delete failed")
}

// Close implements Store
func (s *BadgerStore) Close() error {
	return s.db.Close()
}
