package user

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/SlpAus/parking-raffle-backend/pkg/token"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Redis keys owned by the session store.
const (
	// sessionKeyPrefix + token holds the Session JSON, expiring with the session.
	sessionKeyPrefix = "session:"
	// userSessionsPrefix + user ID is a Set of that user's session tokens.
	userSessionsPrefix = "user:sessions:"
)

// Session is a logged-in user's server-side state.
type Session struct {
	Token     string    `json:"-"`
	User      Snapshot  `json:"user"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// SessionStore keeps sessions in Redis. Clients hold only a signed token.
type SessionStore struct {
	rdb    *redis.Client
	signer *token.Signer
	ttl    time.Duration
	now    func() time.Time
}

// NewSessionStore returns a store whose sessions expire after ttl of inactivity.
func NewSessionStore(rdb *redis.Client, signer *token.Signer, ttl time.Duration) *SessionStore {
	return &SessionStore{rdb: rdb, signer: signer, ttl: ttl, now: time.Now}
}

// TTL is the sliding session lifetime.
func (s *SessionStore) TTL() time.Duration {
	return s.ttl
}

// Create starts a session for u and returns the signed cookie value.
func (s *SessionStore) Create(ctx context.Context, u User) (string, Session, error) {
	sess := Session{
		Token:     uuid.NewString(),
		User:      u.Snapshot(),
		ExpiresAt: s.now().Add(s.ttl).UTC(),
	}
	data, err := json.Marshal(sess)
	if err != nil {
		return "", Session{}, fmt.Errorf("encode session: %w", err)
	}

	userKey := userSessionsPrefix + u.ID
	pipe := s.rdb.TxPipeline()
	pipe.Set(ctx, sessionKeyPrefix+sess.Token, data, s.ttl)
	pipe.SAdd(ctx, userKey, sess.Token)
	pipe.Expire(ctx, userKey, s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return "", Session{}, fmt.Errorf("store session: %w", err)
	}
	return s.signer.Sign(sess.Token), sess, nil
}

// Lookup resolves a cookie value to its session and extends its lifetime.
// Unknown, expired or forged cookies yield ErrNoSession.
func (s *SessionStore) Lookup(ctx context.Context, cookie string) (*Session, error) {
	tok, err := s.signer.Verify(cookie)
	if err != nil {
		return nil, ErrNoSession
	}

	key := sessionKeyPrefix + tok
	data, err := s.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNoSession
		}
		return nil, fmt.Errorf("load session: %w", err)
	}

	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	sess.Token = tok

	pipe := s.rdb.Pipeline()
	pipe.Expire(ctx, key, s.ttl)
	pipe.Expire(ctx, userSessionsPrefix+sess.User.ID, s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("extend session: %w", err)
	}
	sess.ExpiresAt = s.now().Add(s.ttl).UTC()
	return &sess, nil
}

// Delete ends the session behind cookie. Unknown cookies are not an error.
func (s *SessionStore) Delete(ctx context.Context, cookie string) error {
	tok, err := s.signer.Verify(cookie)
	if err != nil {
		return nil
	}
	key := sessionKeyPrefix + tok

	data, err := s.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load session: %w", err)
	}

	pipe := s.rdb.TxPipeline()
	pipe.Del(ctx, key)
	var sess Session
	if json.Unmarshal(data, &sess) == nil {
		pipe.SRem(ctx, userSessionsPrefix+sess.User.ID, tok)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// RevokeUser ends every session of userID, e.g. after a role change or deletion.
func (s *SessionStore) RevokeUser(ctx context.Context, userID string) error {
	userKey := userSessionsPrefix + userID
	tokens, err := s.rdb.SMembers(ctx, userKey).Result()
	if err != nil {
		return fmt.Errorf("list sessions of %s: %w", userID, err)
	}

	keys := make([]string, 0, len(tokens)+1)
	for _, tok := range tokens {
		keys = append(keys, sessionKeyPrefix+tok)
	}
	keys = append(keys, userKey)

	if err := s.rdb.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("revoke sessions of %s: %w", userID, err)
	}
	return nil
}
