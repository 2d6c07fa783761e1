package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	redisSessionPrefix     = "motionlab:session:"
	redisUserSessionPrefix = "motionlab:user-sessions:"
)

// RedisSessionStore keeps refresh sessions in Redis with a key TTL matching their expiry.
// A set per user lists that user's tokens; members whose session key already expired
// are pruned lazily by DeleteForUser.
type RedisSessionStore struct {
	client *redis.Client
	now    func() time.Time
}

// NewRedisSessionStore wraps an existing client.
func NewRedisSessionStore(client *redis.Client) *RedisSessionStore {
	return &RedisSessionStore{client: client, now: time.Now}
}

// Save stores the session until it expires.
func (s *RedisSessionStore) Save(ctx context.Context, session Session) error {
	ttl := session.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		return ErrRefreshTokenExpired
	}
	payload, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}

	userKey := redisUserSessionPrefix + session.UserID
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, redisSessionPrefix+session.RefreshToken, payload, ttl)
		pipe.SAdd(ctx, userKey, session.RefreshToken)
		// Sessions share one refresh TTL, so the newest save outlives the rest.
		pipe.Expire(ctx, userKey, ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("store session: %w", err)
	}
	return nil
}

// Find loads a session by its refresh token.
func (s *RedisSessionStore) Find(ctx context.Context, refreshToken string) (Session, error) {
	raw, err := s.client.Get(ctx, redisSessionPrefix+refreshToken).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Session{}, ErrSessionNotFound
		}
		return Session{}, fmt.Errorf("load session: %w", err)
	}

	var session Session
	if err := json.Unmarshal(raw, &session); err != nil {
		return Session{}, fmt.Errorf("decode session: %w", err)
	}
	return session, nil
}

// Delete removes a session by its refresh token.
func (s *RedisSessionStore) Delete(ctx context.Context, refreshToken string) error {
	session, err := s.Find(ctx, refreshToken)
	if err != nil {
		return err
	}
	var del *redis.IntCmd
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		del = pipe.Del(ctx, redisSessionPrefix+refreshToken)
		pipe.SRem(ctx, redisUserSessionPrefix+session.UserID, refreshToken)
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if del.Val() == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// DeleteForUser removes every session listed for userID.
func (s *RedisSessionStore) DeleteForUser(ctx context.Context, userID string) (int64, error) {
	userKey := redisUserSessionPrefix + userID
	tokens, err := s.client.SMembers(ctx, userKey).Result()
	if err != nil {
		return 0, fmt.Errorf("list user sessions: %w", err)
	}
	if len(tokens) == 0 {
		return 0, nil
	}

	keys := make([]string, 0, len(tokens))
	for _, token := range tokens {
		keys = append(keys, redisSessionPrefix+token)
	}
	var del *redis.IntCmd
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		del = pipe.Del(ctx, keys...)
		pipe.Del(ctx, userKey)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("delete user sessions: %w", err)
	}
	return del.Val(), nil
}
