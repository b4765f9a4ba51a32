package ratelimit

import (
	"context"
	"strings"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/workdesk/internal/config"
)

const keyLoginAttempt = "workdesk:login:"

// LoginLimiter throttles credential checks per actor kind and e-mail.
type LoginLimiter struct {
	bucket *TokenBucket
	rate   float64
	burst  int
}

func NewLoginLimiter(cfg config.Config, client *redis.Client) *LoginLimiter {
	if !cfg.RateLimit.Enabled || client == nil {
		return &LoginLimiter{}
	}
	rate := cfg.RateLimit.LoginRate
	if rate <= 0 {
		rate = 0.2
	}
	burst := cfg.RateLimit.LoginBurst
	if burst <= 0 {
		burst = 5
	}
	return &LoginLimiter{
		bucket: NewTokenBucket(client),
		rate:   rate,
		burst:  burst,
	}
}

func (l *LoginLimiter) Enabled() bool {
	return l != nil && l.bucket != nil
}

func (l *LoginLimiter) Allow(ctx context.Context, key string) (bool, error) {
	if !l.Enabled() {
		return true, nil
	}
	res, err := l.bucket.Allow(ctx, keyLoginAttempt+strings.ToLower(strings.TrimSpace(key)), l.rate, l.burst)
	if err != nil {
		return false, err
	}
	return res.Allowed, nil
}
