package session

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// Redis stores sessions as JSON values that expire with the session.
type Redis struct {
	client *redis.Client
	prefix string
}

// NewRedis builds a store keyed as <prefix><session id>.
func NewRedis(client *redis.Client, prefix string) *Redis {
	if prefix == "" {
		prefix = "dashboard:session:"
	}
	return &Redis{client: client, prefix: prefix}
}

func (r *Redis) Save(ctx context.Context, s Session, ttl time.Duration) error {
	data, err := json.Marshal(s)
	if err != nil {
		return errors.Wrap(err, "encode session")
	}
	return r.client.Set(ctx, r.prefix+s.ID, data, ttl).Err()
}

func (r *Redis) Get(ctx context.Context, id string) (Session, error) {
	data, err := r.client.Get(ctx, r.prefix+id).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Session{}, ErrNotFound
		}
		return Session{}, errors.Wrap(err, "load session")
	}
	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return Session{}, errors.Wrap(err, "decode session")
	}
	return s, nil
}

func (r *Redis) Delete(ctx context.Context, id string) error {
	return r.client.Del(ctx, r.prefix+id).Err()
}
