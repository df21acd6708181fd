package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

type BoltSlotStore struct {
	db  *bolt.DB
	key []byte
}

const boltStateBucket = "app-state"

func NewBoltSlotStore(path, key string) (*BoltSlotStore, error) {
	if path == "" {
		return nil, errors.New("storage: required bolt path")
	}
	if key == "" {
		return nil, errors.New("storage: required slot key")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("storage: create bolt dir: %w", err)
	}
	db, err := bolt.Open(path, 0o600,
		&bolt.Options{Timeout: time.Second},
	)
	if err != nil {
		return nil, fmt.Errorf("storage: opening bolt: %w", err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, berr := tx.CreateBucketIfNotExists([]byte(boltStateBucket))
		return berr
	}); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("storage: cant init bucket: %w", err)
	}

	return &BoltSlotStore{db: db, key: []byte(key)}, nil
}

func (s *BoltSlotStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *BoltSlotStore) Load(ctx context.Context) ([]byte, error) {
	if s.db == nil {
		return nil, errors.New("storage: bolt not init")
	} else if err := ctx.Err(); err != nil {
		return nil, err
	}

	var data []byte
	if err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(boltStateBucket))
		if b == nil {
			return errors.New("storage: bucket miss")
		}
		if v := b.Get(s.key); v != nil {
			data = append([]byte(nil), v...)
		}
		return nil
	}); err != nil {
		return nil, err
	}
	return data, nil
}

func (s *BoltSlotStore) Save(ctx context.Context, data []byte) error {
	if s.db == nil {
		return errors.New("storage: bolt not init")
	} else if len(data) == 0 {
		return errors.New("storage: required data")
	} else if err := ctx.Err(); err != nil {
		return err
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(boltStateBucket))
		if b == nil {
			return errors.New("storage: bucket miss")
		}
		return b.Put(s.key, data)
	})
}

func (s *BoltSlotStore) Clear(ctx context.Context) error {
	if s.db == nil {
		return errors.New("storage: bolt not init")
	} else if err := ctx.Err(); err != nil {
		return err
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(boltStateBucket))
		if b == nil {
			return errors.New("storage: bucket miss")
		}
		return b.Delete(s.key)
	})
}
