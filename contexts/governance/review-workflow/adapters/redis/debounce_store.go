package redisadapter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"hoaportal/contexts/governance/review-workflow/domain/entities"
	"hoaportal/contexts/governance/review-workflow/ports"

	"github.com/redis/go-redis/v9"
)

const defaultRetention = 30 * 24 * time.Hour

// DebounceStore keeps last-sent timestamps as plain keys with a TTL so stale
// records expire on their own. Retention must outlive the longest cooldown or
// warning lead time.
type DebounceStore struct {
	client    *redis.Client
	prefix    string
	retention time.Duration
}

func NewDebounceStore(client *redis.Client, prefix string, retention time.Duration) *DebounceStore {
	if prefix == "" {
		prefix = "review_workflow:debounce"
	}
	if retention <= 0 {
		retention = defaultRetention
	}
	return &DebounceStore{client: client, prefix: prefix, retention: retention}
}

func (s *DebounceStore) LastSent(ctx context.Context, requestID string, notificationType string) (time.Time, bool, error) {
	raw, err := s.client.Get(ctx, s.key(requestID, notificationType)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, fmt.Errorf("redis debounce get: %w", err)
	}
	sentAt, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("redis debounce decode %q: %w", raw, err)
	}
	return sentAt.UTC(), true, nil
}

func (s *DebounceStore) RecordSent(ctx context.Context, record entities.DebounceRecord) error {
	value := record.LastSentAt.UTC().Format(time.RFC3339Nano)
	if err := s.client.Set(ctx, s.key(record.RequestID, record.NotificationType), value, s.retention).Err(); err != nil {
		return fmt.Errorf("redis debounce set: %w", err)
	}
	return nil
}

func (s *DebounceStore) key(requestID string, notificationType string) string {
	return fmt.Sprintf("%s:{%s}:%s", s.prefix, requestID, notificationType)
}

var _ ports.DebounceStore = (*DebounceStore)(nil)
