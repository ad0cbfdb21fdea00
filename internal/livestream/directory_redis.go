package livestream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisDirectoryKey is the key the backend publishes the page list under.
const DefaultRedisDirectoryKey = "livestream:pages"

// RedisDirectory reads the livestream page document from a single Redis key.
type RedisDirectory struct {
	client *redis.Client
	key    string
}

// NewRedisDirectory returns a directory reading key through client.
func NewRedisDirectory(client *redis.Client, key string) *RedisDirectory {
	if key == "" {
		key = DefaultRedisDirectoryKey
	}
	return &RedisDirectory{client: client, key: key}
}

// ListPages implements Directory.ListPages. A missing key means no pages.
func (d *RedisDirectory) ListPages(ctx context.Context) ([]Page, error) {
	data, err := d.client.Get(ctx, d.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("get directory from redis: %w", err)
	}

	var doc pageDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("unmarshal directory document: %w", err)
	}
	return doc.toPages()
}

// Close closes the Redis client connection.
func (d *RedisDirectory) Close() error {
	return d.client.Close()
}

var _ Directory = (*RedisDirectory)(nil)
