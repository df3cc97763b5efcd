package snapshot

import (
	"context"

	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
)

// RedisStorage keeps the current snapshot and the one it replaced under two keys.
type RedisStorage struct {
	client    redis.Cmdable
	namespace string
}

var _ Storage = (*RedisStorage)(nil)

func NewRedisStorage(client redis.Cmdable, namespace string) *RedisStorage {
	return &RedisStorage{client: client, namespace: namespace}
}

func (r *RedisStorage) currentKey() string { return r.namespace + ":snapshot" }

func (r *RedisStorage) backupKey() string { return r.namespace + ":snapshot:backup" }

func (r *RedisStorage) Store(ctx context.Context, s *Snapshot) error {
	data, err := encode(s)
	if err != nil {
		return err
	}

	previous, err := r.client.Get(ctx, r.currentKey()).Bytes()
	if err != nil && !eris.Is(err, redis.Nil) {
		return eris.Wrap(err, "failed to read current snapshot")
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if previous != nil {
			pipe.Set(ctx, r.backupKey(), previous, 0)
		}
		pipe.Set(ctx, r.currentKey(), data, 0)
		return nil
	})
	if err != nil {
		return eris.Wrap(err, "failed to store snapshot")
	}
	return nil
}

func (r *RedisStorage) Load(ctx context.Context) (*Snapshot, error) {
	return r.load(ctx, r.currentKey())
}

// LoadBackup returns the snapshot that the current one replaced.
func (r *RedisStorage) LoadBackup(ctx context.Context) (*Snapshot, error) {
	return r.load(ctx, r.backupKey())
}

func (r *RedisStorage) load(ctx context.Context, key string) (*Snapshot, error) {
	data, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if eris.Is(err, redis.Nil) {
			return nil, eris.Wrapf(ErrSnapshotNotFound, "no snapshot at %s", key)
		}
		return nil, eris.Wrap(err, "failed to load snapshot")
	}
	return decode(data)
}
