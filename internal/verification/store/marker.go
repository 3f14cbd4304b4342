package store

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	id "veridoc/pkg/domain"
)

// InFlightMarker is an optional Redis fast path for the single-in-flight
// rule. It rejects obviously-duplicate submissions before they reach the
// database; the database index remains the authority, so the marker may
// miss (expired TTL, Redis outage) without breaking correctness.
type InFlightMarker struct {
	client *redis.Client
	ttl    time.Duration
}

func NewInFlightMarker(client *redis.Client, ttl time.Duration) *InFlightMarker {
	return &InFlightMarker{client: client, ttl: ttl}
}

func (m *InFlightMarker) key(documentID id.DocumentID) string {
	return "veridoc:inflight:" + documentID.String()
}

// Acquire attempts to claim the in-flight slot for a document. Returns
// false when another verification already holds it. Redis errors are
// returned so the caller can choose to fall through to the database.
func (m *InFlightMarker) Acquire(ctx context.Context, documentID id.DocumentID) (bool, error) {
	ok, err := m.client.SetNX(ctx, m.key(documentID), "1", m.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("acquire in-flight marker: %w", err)
	}
	return ok, nil
}

// Release clears the marker once the record leaves the in-flight set.
func (m *InFlightMarker) Release(ctx context.Context, documentID id.DocumentID) error {
	if err := m.client.Del(ctx, m.key(documentID)).Err(); err != nil {
		return fmt.Errorf("release in-flight marker: %w", err)
	}
	return nil
}
