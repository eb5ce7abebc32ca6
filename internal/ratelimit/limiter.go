// Package ratelimit implements a Redis-backed sliding-window log limiter.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

const keyPrefix = "arena:ratelimit:"

// slidingWindow trims, counts, and appends in one atomic step.
//
// KEYS[1] window key
// ARGV[1] now (unix ms), ARGV[2] window (ms), ARGV[3] max requests, ARGV[4] nonce
//
// Returns {allowed, remaining, retry_after_ms}.
var slidingWindow = goredis.NewScript(`
local key    = KEYS[1]
local now    = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit  = tonumber(ARGV[3])

redis.call("ZREMRANGEBYSCORE", key, "-inf", "(" .. (now - window))

local count = redis.call("ZCARD", key)
if count >= limit then
	local oldest = redis.call("ZRANGE", key, 0, 0, "WITHSCORES")
	local retry = window
	if oldest[2] then
		retry = tonumber(oldest[2]) + window - now
	end
	if retry < 0 then
		retry = 0
	end
	return {0, 0, retry}
end

redis.call("ZADD", key, now, now .. "-" .. ARGV[4])
redis.call("PEXPIRE", key, window)
return {1, limit - count - 1, 0}
`)

// Policy is the window/limit pair a route class declares.
type Policy struct {
	Name        string
	Window      time.Duration
	MaxRequests int
}

// Decision is the outcome of one admission check.
type Decision struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

// Limiter checks identifiers against per-policy sliding windows.
type Limiter struct {
	client goredis.Scripter
	now    func() time.Time
}

// NewLimiter creates a Limiter on top of a Redis client.
func NewLimiter(client goredis.Scripter) *Limiter {
	return &Limiter{client: client, now: time.Now}
}

// WithClock replaces the time source; used by tests.
func (l *Limiter) WithClock(now func() time.Time) *Limiter {
	l.now = now
	return l
}

// Allow records a request for identifier under policy if the window has room.
func (l *Limiter) Allow(ctx context.Context, identifier string, p Policy) (Decision, error) {
	if p.MaxRequests <= 0 || p.Window <= 0 {
		return Decision{Allowed: true, Remaining: -1}, nil
	}

	key := keyPrefix + p.Name + ":" + identifier
	now := l.now().UnixMilli()

	res, err := slidingWindow.Run(ctx, l.client, []string{key},
		now, p.Window.Milliseconds(), p.MaxRequests, uuid.NewString(),
	).Int64Slice()
	if err != nil {
		return Decision{}, fmt.Errorf("ratelimit: evaluate window %s: %w", key, err)
	}
	if len(res) != 3 {
		return Decision{}, fmt.Errorf("ratelimit: unexpected script reply %v", res)
	}

	return Decision{
		Allowed:    res[0] == 1,
		Remaining:  int(res[1]),
		RetryAfter: time.Duration(res[2]) * time.Millisecond,
	}, nil
}
