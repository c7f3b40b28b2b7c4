// Package store persists the ledger in a bbolt file. Every save rewrites
// the active round and the archive in one transaction. The same file keeps
// a journal of prize payouts.
package store

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"time"

	"github.com/DE-labtory/lotto/archive"
	"github.com/DE-labtory/lotto/core"
	"github.com/pkg/errors"
	bolt "go.etcd.io/bbolt"
	"go.dedis.ch/protobuf"
)

var (
	ledgerBucket  = []byte("ledger")
	archiveBucket = []byte("archive")
	payoutBucket  = []byte("payout")
	stateKey      = []byte("state")
)

type BoltStore struct {
	db *bolt.DB
}

func Open(path string) (*BoltStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, err
	}
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{ledgerBucket, archiveBucket, payoutBucket} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, errors.Wrap(err, "create buckets")
	}
	return &BoltStore{db: db}, nil
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}

func entryKey(index int) []byte {
	k := make([]byte, 8)
	binary.BigEndian.PutUint64(k, uint64(index))
	return k
}

// Save implements core.Store.
func (s *BoltStore) Save(snap core.Snapshot) error {
	state, err := protobuf.Encode(newStateRecord(snap))
	if err != nil {
		return errors.Wrap(err, "encode state")
	}
	entries := make([][]byte, 0, len(snap.Archive))
	for _, e := range snap.Archive {
		buf, err := protobuf.Encode(newEntryRecord(e))
		if err != nil {
			return errors.Wrapf(err, "encode round %d", e.Round)
		}
		entries = append(entries, buf)
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.Bucket(ledgerBucket).Put(stateKey, state); err != nil {
			return err
		}
		b := tx.Bucket(archiveBucket)
		for i, buf := range entries {
			if err := b.Put(entryKey(i), buf); err != nil {
				return err
			}
		}
		// a rolled back operation may leave one entry too many
		var stale [][]byte
		c := b.Cursor()
		for k, _ := c.Seek(entryKey(len(entries))); k != nil; k, _ = c.Next() {
			stale = append(stale, append([]byte(nil), k...))
		}
		for _, k := range stale {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
}

// Load implements core.Store. ok is false on a fresh file.
func (s *BoltStore) Load() (snap core.Snapshot, ok bool, err error) {
	err = s.db.View(func(tx *bolt.Tx) error {
		state := tx.Bucket(ledgerBucket).Get(stateKey)
		if state == nil {
			return nil
		}
		rec := &stateRecord{}
		if err := protobuf.Decode(state, rec); err != nil {
			return errors.Wrap(err, "decode state")
		}
		loaded, err := rec.snapshot()
		if err != nil {
			return err
		}
		snap = loaded

		snap.Archive = make([]archive.Entry, 0)
		c := tx.Bucket(archiveBucket).Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			if binary.BigEndian.Uint64(k) != uint64(len(snap.Archive)) {
				return errors.Errorf("archive gap at key %x", k)
			}
			er := &entryRecord{}
			if err := protobuf.Decode(v, er); err != nil {
				return errors.Wrapf(err, "decode round %d", len(snap.Archive))
			}
			e, err := er.entry()
			if err != nil {
				return err
			}
			snap.Archive = append(snap.Archive, e)
		}
		ok = true
		return nil
	})
	if err != nil {
		return core.Snapshot{}, false, err
	}
	return snap, ok, nil
}
