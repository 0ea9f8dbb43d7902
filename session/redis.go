package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

var _ Store = (*RedisStore)(nil)

// RedisStore keeps states in Redis with a sliding TTL. Logged-in sessions
// are indexed per user so they can be dropped together.
type RedisStore struct {
	redis  redis.UniversalClient
	prefix string
	ttl    time.Duration
	now    func() time.Time
}

// NewRedisStore creates a store under the key namespace prefix. Every Save
// extends the key lifetime to ttl.
func NewRedisStore(client redis.UniversalClient, prefix string, ttl time.Duration) *RedisStore {
	if prefix == "" {
		prefix = "gg"
	}
	return &RedisStore{redis: client, prefix: prefix, ttl: ttl, now: time.Now}
}

func (s *RedisStore) key(id string) string {
	return s.prefix + ":s:" + id
}

func (s *RedisStore) userKey(userID int64) string {
	return s.prefix + ":u:" + strconv.FormatInt(userID, 10)
}

func unavailable(err error) error {
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}

// Load implements Store.
func (s *RedisStore) Load(ctx context.Context, id string) (*State, error) {
	data, err := s.redis.Get(ctx, s.key(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, unavailable(err)
	}

	st, err := Decode(data)
	if err != nil {
		return nil, err
	}
	st.ID = id
	return st, nil
}

// Save implements Store.
func (s *RedisStore) Save(ctx context.Context, st *State) error {
	st.UpdatedAt = s.now().Unix()
	data := Encode(st)

	_, err := s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.key(st.ID), data, s.ttl)
		if !st.IsGuest() {
			userKey := s.userKey(st.UserID)
			pipe.SAdd(ctx, userKey, st.ID)
			pipe.Expire(ctx, userKey, s.ttl)
		}
		return nil
	})
	if err != nil {
		return unavailable(err)
	}
	return nil
}

// Delete implements Store.
func (s *RedisStore) Delete(ctx context.Context, id string) error {
	st, err := s.Load(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) || errors.Is(err, ErrCorrupt) {
			if err := s.redis.Del(ctx, s.key(id)).Err(); err != nil {
				return unavailable(err)
			}
			return nil
		}
		return err
	}

	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.key(id))
		if st.UserID != 0 {
			pipe.SRem(ctx, s.userKey(st.UserID), id)
		}
		return nil
	})
	if err != nil {
		return unavailable(err)
	}
	return nil
}

// Rotate implements Store. The old key and its index entry are removed in
// the same MULTI as the new key is written.
func (s *RedisStore) Rotate(ctx context.Context, st *State) error {
	next, err := NewID()
	if err != nil {
		return err
	}
	prev := st.ID
	st.ID = next
	st.UpdatedAt = s.now().Unix()
	data := Encode(st)

	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if prev != "" {
			pipe.Del(ctx, s.key(prev))
		}
		pipe.Set(ctx, s.key(next), data, s.ttl)
		if st.UserID != 0 {
			userKey := s.userKey(st.UserID)
			if prev != "" {
				pipe.SRem(ctx, userKey, prev)
			}
			if !st.IsGuest() {
				pipe.SAdd(ctx, userKey, next)
				pipe.Expire(ctx, userKey, s.ttl)
			}
		}
		return nil
	})
	if err != nil {
		st.ID = prev
		return unavailable(err)
	}
	return nil
}

// DeleteUser implements Store.
//
// Sessions created between the index read and the delete survive until
// their TTL runs out or the next DeleteUser call.
func (s *RedisStore) DeleteUser(ctx context.Context, userID int64) error {
	userKey := s.userKey(userID)
	ids, err := s.redis.SMembers(ctx, userKey).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return unavailable(err)
	}

	keys := make([]string, 0, len(ids)+1)
	for _, id := range ids {
		keys = append(keys, s.key(id))
	}
	keys = append(keys, userKey)

	if err := s.redis.Del(ctx, keys...).Err(); err != nil {
		return unavailable(err)
	}
	return nil
}

// Ping checks Redis availability and reports the round trip.
func (s *RedisStore) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return time.Since(start), unavailable(err)
	}
	return time.Since(start), nil
}
