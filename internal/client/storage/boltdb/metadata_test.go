package boltdb

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.etcd.io/bbolt"
)

func TestLastRefresh(t *testing.T) {
	ctx := context.Background()
	store := createTestStorage(t)

	// never refreshed
	ts, err := store.GetLastRefresh(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), ts)

	var expectedTS int64 = 1234567890
	require.NoError(t, store.SaveLastRefresh(ctx, expectedTS))

	gotTS, err := store.GetLastRefresh(ctx)
	require.NoError(t, err)
	assert.Equal(t, expectedTS, gotTS)
}

func TestGetLastRefresh_Corrupt(t *testing.T) {
	ctx := context.Background()
	store := createTestStorage(t)

	err := store.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketMetadata).Put([]byte(keyLastRefresh), []byte("abc"))
	})
	require.NoError(t, err)

	_, err = store.GetLastRefresh(ctx)
	assert.ErrorContains(t, err, "corrupt last refresh value")
}

func TestLastRefresh_BucketMissing(t *testing.T) {
	ctx := context.Background()
	store := createTestStorage(t)

	err := store.db.Update(func(tx *bbolt.Tx) error {
		return tx.DeleteBucket(bucketMetadata)
	})
	require.NoError(t, err)

	_, err = store.GetLastRefresh(ctx)
	assert.ErrorContains(t, err, "metadata bucket not found")

	err = store.SaveLastRefresh(ctx, 42)
	assert.ErrorContains(t, err, "metadata bucket not found")
}
