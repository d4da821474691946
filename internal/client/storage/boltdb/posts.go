package boltdb

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"go.etcd.io/bbolt"

	"github.com/iudanet/gophblog/internal/client/storage"
	"github.com/iudanet/gophblog/pkg/api"
)

// SavePost stores or replaces one post, keyed by its id
func (s *Storage) SavePost(ctx context.Context, post *api.Post) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketPosts)
		if bucket == nil {
			return fmt.Errorf("posts bucket not found")
		}
		return putPost(bucket, post)
	})
}

// ReplacePosts drops every cached post and stores posts in one transaction
func (s *Storage) ReplacePosts(ctx context.Context, posts []api.Post) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.DeleteBucket(bucketPosts); err != nil {
			return fmt.Errorf("failed to drop posts bucket: %w", err)
		}
		bucket, err := tx.CreateBucket(bucketPosts)
		if err != nil {
			return fmt.Errorf("failed to create posts bucket: %w", err)
		}

		for i := range posts {
			if err := putPost(bucket, &posts[i]); err != nil {
				return err
			}
		}
		return nil
	})
}

// GetCachedPost returns a cached post by id
func (s *Storage) GetCachedPost(ctx context.Context, id string) (*api.Post, error) {
	var post *api.Post

	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketPosts)
		if bucket == nil {
			return fmt.Errorf("posts bucket not found")
		}

		data := bucket.Get([]byte(id))
		if data == nil {
			return storage.ErrPostNotFound
		}

		post = &api.Post{}
		if err := json.Unmarshal(data, post); err != nil {
			return fmt.Errorf("failed to unmarshal post: %w", err)
		}
		return nil
	})

	if err != nil {
		return nil, err
	}

	return post, nil
}

// ListCachedPosts returns every cached post, newest first
func (s *Storage) ListCachedPosts(ctx context.Context) ([]api.Post, error) {
	var posts []api.Post

	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketPosts)
		if bucket == nil {
			return fmt.Errorf("posts bucket not found")
		}

		return bucket.ForEach(func(k, v []byte) error {
			var post api.Post
			if err := json.Unmarshal(v, &post); err != nil {
				return fmt.Errorf("failed to unmarshal post %s: %w", k, err)
			}
			posts = append(posts, post)
			return nil
		})
	})

	if err != nil {
		return nil, err
	}

	sort.SliceStable(posts, func(i, j int) bool {
		return posts[i].CreatedAt.After(posts[j].CreatedAt)
	})

	return posts, nil
}

func putPost(bucket *bbolt.Bucket, post *api.Post) error {
	data, err := json.Marshal(post)
	if err != nil {
		return fmt.Errorf("failed to marshal post: %w", err)
	}
	if err := bucket.Put([]byte(post.ID.String()), data); err != nil {
		return fmt.Errorf("failed to save post: %w", err)
	}
	return nil
}
