package storage

import (
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/mezonai/mmn-wallet/errors"
)

var walletBucket = []byte("mwallet")

// BoltProvider stores wallet state in a single-file bbolt database.
type BoltProvider struct {
	db *bolt.DB
}

var _ Provider = (*BoltProvider)(nil)

// NewBoltProvider opens (or creates) the database at path.
func NewBoltProvider(path string) (*BoltProvider, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 3 * time.Second})
	if err != nil {
		return nil, errors.NewErrorf(errors.ErrCodeStorageFailed, "open %s: %v", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(walletBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, errors.NewErrorf(errors.ErrCodeStorageFailed, "create bucket: %v", err)
	}
	return &BoltProvider{db: db}, nil
}

func (p *BoltProvider) LoadData(key string) ([]byte, error) {
	var out []byte
	err := p.db.View(func(tx *bolt.Tx) error {
		value := tx.Bucket(walletBucket).Get([]byte(key))
		if value != nil {
			out = make([]byte, len(value))
			copy(out, value)
		}
		return nil
	})
	if err != nil {
		return nil, errors.NewErrorf(errors.ErrCodeStorageFailed, "load %s: %v", key, err)
	}
	return out, nil
}

func (p *BoltProvider) StoreData(key string, data []byte) error {
	err := p.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(walletBucket).Put([]byte(key), data)
	})
	if err != nil {
		return errors.NewErrorf(errors.ErrCodeStorageFailed, "store %s: %v", key, err)
	}
	return nil
}

func (p *BoltProvider) Close() error {
	return p.db.Close()
}
