// Package audit maintains the immutable compliance trail. Every access to
// patient data appends an entry; entries are never updated or deleted.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	backend "github.com/redis/go-redis/v9"
)

// Entry is one immutable audit record.
type Entry struct {
	ID           string         `json:"id"`
	Actor        string         `json:"actor"`
	Action       string         `json:"action"`
	ResourceType string         `json:"resource_type"`
	ResourceID   string         `json:"resource_id"`
	Detail       map[string]any `json:"detail,omitempty"`
	Timestamp    time.Time      `json:"timestamp"`
}

// Logger appends audit entries to Redis and mirrors them to the
// structured log.
type Logger struct {
	client *backend.Client
	key    string
	logger *slog.Logger
}

// Option configures a Logger.
type Option func(*Logger)

// WithKey overrides the Redis list key.
func WithKey(key string) Option {
	return func(l *Logger) {
		l.key = key
	}
}

// New creates an audit Logger on an existing Redis client.
func New(client *backend.Client, logger *slog.Logger, opts ...Option) *Logger {
	l := &Logger{
		client: client,
		key:    "etl:audit:log",
		logger: logger,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Log appends one entry to the trail.
func (l *Logger) Log(ctx context.Context, actor, action, resourceType, resourceID string, detail map[string]any) error {
	entry := Entry{
		ID:           uuid.NewString(),
		Actor:        actor,
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		Detail:       detail,
		Timestamp:    time.Now().UTC(),
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal audit entry: %w", err)
	}
	if err := l.client.RPush(ctx, l.key, data).Err(); err != nil {
		return fmt.Errorf("failed to append audit entry: %w", err)
	}

	l.logger.Info("audit",
		"actor", actor,
		"action", action,
		"resource_type", resourceType,
		"resource_id", resourceID,
	)
	return nil
}

// Recent returns up to n entries, newest last.
func (l *Logger) Recent(ctx context.Context, n int64) ([]Entry, error) {
	raw, err := l.client.LRange(ctx, l.key, -n, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read audit trail: %w", err)
	}

	entries := make([]Entry, 0, len(raw))
	for _, item := range raw {
		var entry Entry
		if err := json.Unmarshal([]byte(item), &entry); err != nil {
			return nil, fmt.Errorf("failed to unmarshal audit entry: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}
