package storage

import "context"

// MetadataStorage keeps client bookkeeping values
type MetadataStorage interface {
	// SaveLastRefresh saves when the post cache was last refreshed (unix seconds)
	SaveLastRefresh(ctx context.Context, timestamp int64) error

	// GetLastRefresh returns the last refresh time, 0 if never refreshed
	GetLastRefresh(ctx context.Context) (int64, error)
}
