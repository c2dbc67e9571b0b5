package service

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// DefaultLedgerKey is the redis set holding stored files whose deletion failed.
const DefaultLedgerKey = "catalog:pending_deletions"

// DeletionLedger remembers orphaned files that still have to be removed from storage.
type DeletionLedger interface {
	Add(ctx context.Context, names ...string) error
	Pending(ctx context.Context) ([]string, error)
	Remove(ctx context.Context, names ...string) error
}

type ledgerCmdable interface {
	SAdd(ctx context.Context, key string, members ...interface{}) *redis.IntCmd
	SRem(ctx context.Context, key string, members ...interface{}) *redis.IntCmd
	SMembers(ctx context.Context, key string) *redis.StringSliceCmd
}

type redisDeletionLedger struct {
	client ledgerCmdable
	key    string
}

// NewRedisDeletionLedger creates a ledger stored as a redis set under key
func NewRedisDeletionLedger(client ledgerCmdable, key string) DeletionLedger {
	if key == "" {
		key = DefaultLedgerKey
	}
	return &redisDeletionLedger{client: client, key: key}
}

func (l *redisDeletionLedger) Add(ctx context.Context, names ...string) error {
	if len(names) == 0 {
		return nil
	}
	if err := l.client.SAdd(ctx, l.key, members(names)...).Err(); err != nil {
		return fmt.Errorf("failed to record pending deletions: %w", err)
	}
	return nil
}

func (l *redisDeletionLedger) Pending(ctx context.Context) ([]string, error) {
	names, err := l.client.SMembers(ctx, l.key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read pending deletions: %w", err)
	}
	return names, nil
}

func (l *redisDeletionLedger) Remove(ctx context.Context, names ...string) error {
	if len(names) == 0 {
		return nil
	}
	if err := l.client.SRem(ctx, l.key, members(names)...).Err(); err != nil {
		return fmt.Errorf("failed to clear pending deletions: %w", err)
	}
	return nil
}

func members(names []string) []interface{} {
	out := make([]interface{}, len(names))
	for i, name := range names {
		out[i] = name
	}
	return out
}
