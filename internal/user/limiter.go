package user

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"net"
	"time"

	"github.com/redis/go-redis/v9"
)

// loginFailurePrefix + client IP is a Sorted Set of failed logins.
// Score: failure time in microseconds. Member: a unique ID per failure.
const loginFailurePrefix = "login_failures:"

// LoginLimiter counts failed logins per client IP over a sliding window.
// A nil limiter, or one with limit <= 0, allows everything.
type LoginLimiter struct {
	rdb    *redis.Client
	limit  int
	window time.Duration
	now    func() time.Time
}

// NewLoginLimiter allows at most limit failures per IP within window.
func NewLoginLimiter(rdb *redis.Client, limit int, window time.Duration) *LoginLimiter {
	return &LoginLimiter{rdb: rdb, limit: limit, window: window, now: time.Now}
}

func (l *LoginLimiter) disabled() bool {
	return l == nil || l.limit <= 0
}

func failureKey(ip string) (string, error) {
	if net.ParseIP(ip) == nil {
		return "", fmt.Errorf("invalid client IP %q", ip)
	}
	return loginFailurePrefix + ip, nil
}

// failureID is [8-byte big-endian nanosecond timestamp | 8 random bytes], base64url.
func failureID(t time.Time) (string, error) {
	b := make([]byte, 16)
	binary.BigEndian.PutUint64(b[0:8], uint64(t.UnixNano()))
	if _, err := rand.Read(b[8:16]); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// Allow drops failures older than the window and reports whether ip may try again.
func (l *LoginLimiter) Allow(ctx context.Context, ip string) (bool, error) {
	if l.disabled() {
		return true, nil
	}
	key, err := failureKey(ip)
	if err != nil {
		return false, err
	}
	oldest := l.now().Add(-l.window).UnixMicro()

	pipe := l.rdb.TxPipeline()
	pipe.ZRemRangeByScore(ctx, key, "-inf", fmt.Sprintf("(%d", oldest))
	count := pipe.ZCard(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("count login failures: %w", err)
	}
	return count.Val() < int64(l.limit), nil
}

// RecordFailure adds one failed login for ip.
func (l *LoginLimiter) RecordFailure(ctx context.Context, ip string) error {
	if l.disabled() {
		return nil
	}
	key, err := failureKey(ip)
	if err != nil {
		return err
	}
	now := l.now()
	member, err := failureID(now)
	if err != nil {
		return fmt.Errorf("generate failure id: %w", err)
	}

	pipe := l.rdb.TxPipeline()
	pipe.ZAdd(ctx, key, redis.Z{Score: float64(now.UnixMicro()), Member: member})
	pipe.Expire(ctx, key, l.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("record login failure: %w", err)
	}
	return nil
}

// Reset forgets ip's failures after a successful login.
func (l *LoginLimiter) Reset(ctx context.Context, ip string) error {
	if l.disabled() {
		return nil
	}
	key, err := failureKey(ip)
	if err != nil {
		return err
	}
	return l.rdb.Del(ctx, key).Err()
}
