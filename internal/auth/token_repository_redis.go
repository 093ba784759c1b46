package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisWatchRetries bounds optimistic transaction retries under contention.
const redisWatchRetries = 16

// RedisTokenRepository implements RefreshTokenStore on Redis.
//
// Each user owns one hash at <prefix>user:<id> holding id, token,
// created_at and updated_at. A string at <prefix>value:<sha256(token)>
// points back to the user. Writes run under WATCH on the user key so
// concurrent writers for the same user serialise.
type RedisTokenRepository struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

var _ RefreshTokenStore = (*RedisTokenRepository)(nil)

// NewRedisTokenRepository constructs a Redis-backed store. Keys expire after
// ttl; zero disables expiry.
func NewRedisTokenRepository(client redis.UniversalClient, prefix string, ttl time.Duration) *RedisTokenRepository {
	if prefix == "" {
		prefix = "ams:rt:"
	}
	return &RedisTokenRepository{client: client, prefix: prefix, ttl: ttl}
}

func (r *RedisTokenRepository) userKey(userID string) string {
	return r.prefix + "user:" + userID
}

func (r *RedisTokenRepository) valueKey(value string) string {
	sum := sha256.Sum256([]byte(value))
	return r.prefix + "value:" + hex.EncodeToString(sum[:])
}

func (r *RedisTokenRepository) FindByUser(ctx context.Context, userID string) (*RefreshToken, error) {
	fields, err := r.client.HGetAll(ctx, r.userKey(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("load refresh token: %w", err)
	}
	return decodeRedisToken(userID, fields)
}

func (r *RedisTokenRepository) FindByValue(ctx context.Context, value string) (*RefreshToken, error) {
	userID, err := r.client.Get(ctx, r.valueKey(value)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrRefreshTokenNotFound
		}
		return nil, fmt.Errorf("load refresh token: %w", err)
	}

	rec, err := r.FindByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if rec.Token != value {
		return nil, ErrRefreshTokenNotFound
	}
	return rec, nil
}

func (r *RedisTokenRepository) Insert(ctx context.Context, rec *RefreshToken) error {
	if rec.ID == "" {
		rec.ID = newRefreshTokenID()
	}
	now := time.Now().UTC()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = now
	}

	userKey := r.userKey(rec.UserID)
	return r.watch(ctx, func(tx *redis.Tx) error {
		n, err := tx.Exists(ctx, userKey).Result()
		if err != nil {
			return err
		}
		if n > 0 {
			return fmt.Errorf("creating refresh token: user %s already has a record", rec.UserID)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			r.write(ctx, pipe, rec, "")
			return nil
		})
		return err
	}, userKey)
}

// UpdateByID requires rec.UserID to locate the record.
func (r *RedisTokenRepository) UpdateByID(ctx context.Context, id string, rec *RefreshToken) error {
	userKey := r.userKey(rec.UserID)
	return r.watch(ctx, func(tx *redis.Tx) error {
		cur, err := r.current(ctx, tx, rec.UserID)
		if err != nil {
			return err
		}
		if cur.ID != id {
			return ErrRefreshTokenNotFound
		}
		next := *rec
		next.ID = id
		next.CreatedAt = cur.CreatedAt
		if next.UpdatedAt.IsZero() {
			next.UpdatedAt = time.Now().UTC()
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			r.write(ctx, pipe, &next, cur.Token)
			return nil
		})
		return err
	}, userKey)
}

func (r *RedisTokenRepository) DeleteByValue(ctx context.Context, value string) error {
	valueKey := r.valueKey(value)
	return r.watch(ctx, func(tx *redis.Tx) error {
		userID, err := tx.Get(ctx, valueKey).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return ErrRefreshTokenNotFound
			}
			return err
		}
		userKey := r.userKey(userID)
		if err := tx.Watch(ctx, userKey).Err(); err != nil {
			return err
		}
		token, err := tx.HGet(ctx, userKey, "token").Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, valueKey)
			if token == value {
				pipe.Del(ctx, userKey)
			}
			return nil
		})
		return err
	}, valueKey)
}

func (r *RedisTokenRepository) Upsert(ctx context.Context, userID, value string, at time.Time) (*RefreshToken, error) {
	var out *RefreshToken
	userKey := r.userKey(userID)

	err := r.watch(ctx, func(tx *redis.Tx) error {
		rec := &RefreshToken{ID: newRefreshTokenID(), UserID: userID, Token: value, CreatedAt: at.UTC(), UpdatedAt: at.UTC()}
		previous := ""

		cur, err := r.current(ctx, tx, userID)
		switch {
		case err == nil:
			rec.ID = cur.ID
			rec.CreatedAt = cur.CreatedAt
			previous = cur.Token
		case !errors.Is(err, ErrRefreshTokenNotFound):
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			r.write(ctx, pipe, rec, previous)
			return nil
		})
		if err == nil {
			out = rec
		}
		return err
	}, userKey)
	if err != nil {
		return nil, fmt.Errorf("upserting refresh token: %w", err)
	}
	return out, nil
}

func (r *RedisTokenRepository) Replace(ctx context.Context, oldValue, newValue string, at time.Time) (*RefreshToken, error) {
	var out *RefreshToken
	oldKey := r.valueKey(oldValue)

	err := r.watch(ctx, func(tx *redis.Tx) error {
		userID, err := tx.Get(ctx, oldKey).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return ErrRefreshTokenNotFound
			}
			return err
		}
		if err := tx.Watch(ctx, r.userKey(userID)).Err(); err != nil {
			return err
		}
		cur, err := r.current(ctx, tx, userID)
		if err != nil {
			return err
		}
		if cur.Token != oldValue {
			return ErrRefreshTokenNotFound
		}

		next := &RefreshToken{ID: cur.ID, UserID: userID, Token: newValue, CreatedAt: cur.CreatedAt, UpdatedAt: at.UTC()}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			r.write(ctx, pipe, next, oldValue)
			return nil
		})
		if err == nil {
			out = next
		}
		return err
	}, oldKey)
	if err != nil {
		if errors.Is(err, ErrRefreshTokenNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("replacing refresh token: %w", err)
	}
	return out, nil
}

// watch runs fn under WATCH on keys, retrying when another client touched a
// watched key before EXEC.
func (r *RedisTokenRepository) watch(ctx context.Context, fn func(*redis.Tx) error, keys ...string) error {
	for i := 0; i < redisWatchRetries; i++ {
		err := r.client.Watch(ctx, fn, keys...)
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
	}
	return fmt.Errorf("refresh token store contention: %w", redis.TxFailedErr)
}

func (r *RedisTokenRepository) current(ctx context.Context, tx *redis.Tx, userID string) (*RefreshToken, error) {
	fields, err := tx.HGetAll(ctx, r.userKey(userID)).Result()
	if err != nil {
		return nil, err
	}
	return decodeRedisToken(userID, fields)
}

// write queues the commands storing rec, dropping the pointer for the
// previous token value if there was one.
func (r *RedisTokenRepository) write(ctx context.Context, pipe redis.Pipeliner, rec *RefreshToken, previous string) {
	userKey := r.userKey(rec.UserID)
	if previous != "" && previous != rec.Token {
		pipe.Del(ctx, r.valueKey(previous))
	}
	pipe.HSet(ctx, userKey,
		"id", rec.ID,
		"token", rec.Token,
		"created_at", strconv.FormatInt(rec.CreatedAt.Unix(), 10),
		"updated_at", strconv.FormatInt(rec.UpdatedAt.Unix(), 10),
	)
	pipe.Set(ctx, r.valueKey(rec.Token), rec.UserID, r.ttl)
	if r.ttl > 0 {
		pipe.Expire(ctx, userKey, r.ttl)
	}
}

func decodeRedisToken(userID string, fields map[string]string) (*RefreshToken, error) {
	if len(fields) == 0 || fields["token"] == "" {
		return nil, ErrRefreshTokenNotFound
	}
	created, _ := strconv.ParseInt(fields["created_at"], 10, 64) //nolint:errcheck // written by this store
	updated, _ := strconv.ParseInt(fields["updated_at"], 10, 64) //nolint:errcheck // written by this store
	return &RefreshToken{
		ID:        fields["id"],
		UserID:    userID,
		Token:     fields["token"],
		CreatedAt: time.Unix(created, 0).UTC(),
		UpdatedAt: time.Unix(updated, 0).UTC(),
	}, nil
}
