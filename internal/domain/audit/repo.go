package audit

import (
	"context"
	"time"
)

type Repository interface {
	Insert(ctx context.Context, entry *Log) error
	Search(ctx context.Context, filter SearchFilter, limit, offset int) ([]*Log, int, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}
