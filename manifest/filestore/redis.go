package filestore

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// RedisStore keeps manifest files in redis, shared between server instances
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore connects to redis and checks the connection
func NewRedisStore(ctx context.Context, opts *redis.Options, ttl time.Duration) (*RedisStore, error) {
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrap(err, "filestore: connecting to redis failed")
	}
	return &RedisStore{
		client: client,
		ttl:    ttl,
	}, nil
}

// Put implements Store
func (s *RedisStore) Put(ctx context.Context, f *ManifestFile) error {
	prepare(f)
	data, err := encode(f)
	if err != nil {
		return err
	}
	return errors.Wrap(s.client.Set(ctx, keyPrefix+f.ID, data, s.ttl).Err(), "filestore: put failed")
}

// Get implements Store
func (s *RedisStore) Get(ctx context.Context, id string) (*ManifestFile, error) {
	data, err := s.client.Get(ctx, keyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "filestore: get failed")
	}
	return decode(data)
}

// Delete implements Store
func (s *RedisStore) Delete(ctx context.Context, id string) error {
	return errors.Wrap(s.client.Del(ctx, keyPrefix+id).Err(), "filestore: delete failed")
}

// Close implements Store
func (s *RedisStore) Close() error {
	return s.client.Close()
}
