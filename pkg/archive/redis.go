package archive

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-redis/redis/v8"
)

// redisSetter is the subset of redis.Cmdable the store uses.
type redisSetter interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

// RedisStore writes each image as two keys: <prefix>img:<key> holding the
// payload and <prefix>meta:<key> holding JSON metadata.
type RedisStore struct {
	client redisSetter
	prefix string
	ttl    time.Duration
}

// NewRedisStore returns a store writing through client. ttl 0 keeps
// entries forever.
func NewRedisStore(client redisSetter, prefix string, ttl time.Duration) *RedisStore {
	return &RedisStore{
		client: client,
		prefix: prefix,
		ttl:    ttl,
	}
}

// Save writes obj's payload and metadata.
func (s *RedisStore) Save(ctx context.Context, obj Object) (string, error) {
	key := Key(obj)

	m, err := json.Marshal(metaFor(obj))
	if err != nil {
		return "", saveError(key, err)
	}

	if err := s.client.Set(ctx, s.prefix+"img:"+key, obj.Data, s.ttl).Err(); err != nil {
		return "", saveError(key, err)
	}
	if err := s.client.Set(ctx, s.prefix+"meta:"+key, m, s.ttl).Err(); err != nil {
		return "", saveError(key, err)
	}
	return s.prefix + "img:" + key, nil
}
