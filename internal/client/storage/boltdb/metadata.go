package boltdb

import (
	"context"
	"encoding/binary"
	"fmt"

	"go.etcd.io/bbolt"
)

const (
	keyLastRefresh = "last_refresh"
)

// SaveLastRefresh saves when the post cache was last refreshed
func (s *Storage) SaveLastRefresh(ctx context.Context, timestamp int64) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketMetadata)
		if bucket == nil {
			return fmt.Errorf("metadata bucket not found")
		}

		timestampBytes := make([]byte, 8)
		binary.BigEndian.PutUint64(timestampBytes, uint64(timestamp))

		if err := bucket.Put([]byte(keyLastRefresh), timestampBytes); err != nil {
			return fmt.Errorf("failed to save last refresh timestamp: %w", err)
		}

		return nil
	})
}

// GetLastRefresh returns the last refresh time, 0 if the cache was never filled
func (s *Storage) GetLastRefresh(ctx context.Context) (int64, error) {
	var timestamp int64

	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketMetadata)
		if bucket == nil {
			return fmt.Errorf("metadata bucket not found")
		}

		timestampBytes := bucket.Get([]byte(keyLastRefresh))
		if timestampBytes == nil {
			return nil
		}
		if len(timestampBytes) != 8 {
			return fmt.Errorf("corrupt last refresh value: %d bytes", len(timestampBytes))
		}

		timestamp = int64(binary.BigEndian.Uint64(timestampBytes))
		return nil
	})

	if err != nil {
		return 0, fmt.Errorf("failed to get last refresh timestamp: %w", err)
	}

	return timestamp, nil
}
