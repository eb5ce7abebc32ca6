// Package leaderboard keeps the points ranking in a Redis sorted set.
package leaderboard

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/arena-oj/arena/internal/domain"
)

const (
	lockKeyPrefix = "arena:event:lock:"
	lockTTL       = 24 * time.Hour
)

// Store reads and writes the points leaderboard.
type Store struct {
	client goredis.UniversalClient
	key    string
}

// NewStore creates a leaderboard backed by the sorted set at key.
func NewStore(client goredis.UniversalClient, key string) *Store {
	return &Store{client: client, key: key}
}

// AddPoints increments a user's score and returns the new total.
func (s *Store) AddPoints(ctx context.Context, userID string, points int) (int, error) {
	score, err := s.client.ZIncrBy(ctx, s.key, float64(points), userID).Result()
	if err != nil {
		return 0, fmt.Errorf("redis: add points: %w", err)
	}
	return int(score), nil
}

// Top returns the highest-ranked users, best first.
func (s *Store) Top(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error) {
	if limit <= 0 {
		return []domain.LeaderboardEntry{}, nil
	}
	rows, err := s.client.ZRevRangeWithScores(ctx, s.key, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: leaderboard top: %w", err)
	}
	out := make([]domain.LeaderboardEntry, 0, len(rows))
	for i, z := range rows {
		member, _ := z.Member.(string)
		out = append(out, domain.LeaderboardEntry{
			Rank:   i + 1,
			UserID: member,
			Points: int(z.Score),
		})
	}
	return out, nil
}

// EventLock is a Redis SETNX guard so each judged event is folded once.
type EventLock struct {
	client goredis.UniversalClient
}

// NewEventLock creates a Redis-backed idempotency guard.
func NewEventLock(client goredis.UniversalClient) *EventLock {
	return &EventLock{client: client}
}

// Acquire returns true the first time it sees submissionID.
func (l *EventLock) Acquire(ctx context.Context, submissionID uuid.UUID) (bool, error) {
	ok, err := l.client.SetNX(ctx, lockKeyPrefix+submissionID.String(), time.Now().Unix(), lockTTL).Result()
	if err != nil {
		return false, fmt.Errorf("redis: acquire event lock: %w", err)
	}
	return ok, nil
}

// Release drops the guard so a failed event can be redelivered and retried.
func (l *EventLock) Release(ctx context.Context, submissionID uuid.UUID) error {
	if err := l.client.Del(ctx, lockKeyPrefix+submissionID.String()).Err(); err != nil {
		return fmt.Errorf("redis: release event lock: %w", err)
	}
	return nil
}
