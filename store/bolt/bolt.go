// Package bolt is a store.Storage backed by a bbolt file.
package bolt

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Comcast/scxml/store"

	log "github.com/sirupsen/logrus"
	bolt "go.etcd.io/bbolt"
)

var (
	documents = []byte("documents")
	sessions  = []byte("sessions")
)

type Storage struct {
	Debug    bool
	filename string
	db       *bolt.DB
}

func NewStorage(filename string) (*Storage, error) {
	return &Storage{
		filename: filename,
	}, nil
}

func (s *Storage) Open(ctx context.Context) error {
	opts := &bolt.Options{
		Timeout: time.Second,
	}

	db, err := bolt.Open(s.filename, 0644, opts)
	if err != nil {
		return err
	}
	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{documents, sessions} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return err
	}
	s.db = db
	return nil
}

func (s *Storage) Close(ctx context.Context) error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Storage) logf(format string, args ...interface{}) {
	if s.Debug {
		log.WithField("file", s.filename).Debugf("bolt storage "+format, args...)
	}
}

func (s *Storage) get(bucket []byte, key string) ([]byte, error) {
	var val []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		bs := tx.Bucket(bucket).Get([]byte(key))
		if bs == nil {
			return fmt.Errorf("%s %s: %w", bucket, key, store.NotFound)
		}
		// bs is only valid in the transaction.
		val = append([]byte(nil), bs...)
		return nil
	})
	return val, err
}

func (s *Storage) put(bucket []byte, key string, val []byte) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucket).Put([]byte(key), val)
	})
}

func (s *Storage) GetDocument(ctx context.Context, name string) ([]byte, error) {
	s.logf("GetDocument %s", name)
	return s.get(documents, name)
}

func (s *Storage) PutDocument(ctx context.Context, name string, src []byte) error {
	s.logf("PutDocument %s (%d bytes)", name, len(src))
	return s.put(documents, name, src)
}

func (s *Storage) RemDocument(ctx context.Context, name string) error {
	s.logf("RemDocument %s", name)
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(documents).Delete([]byte(name))
	})
}

func (s *Storage) ListDocuments(ctx context.Context) ([]string, error) {
	var acc []string
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(documents).Cursor()
		// Keys come out in byte order.
		for k, _ := c.First(); k != nil; k, _ = c.Next() {
			acc = append(acc, string(k))
		}
		return nil
	})
	return acc, err
}

func (s *Storage) WriteSession(ctx context.Context, r *store.SessionRecord) error {
	js, err := json.Marshal(r)
	if err != nil {
		return err
	}
	s.logf("WriteSession %s", js)
	return s.put(sessions, r.Id, js)
}

func (s *Storage) GetSession(ctx context.Context, id string) (*store.SessionRecord, error) {
	js, err := s.get(sessions, id)
	if err != nil {
		return nil, err
	}
	var r store.SessionRecord
	if err = json.Unmarshal(js, &r); err != nil {
		return nil, err
	}
	return &r, nil
}
