// internal/store/store.go
package store

import (
	"context"
	"strings"
	"time"

	"community-scout/internal/models"
)

// EntityStore is the persistence sink for discovered entities: an
// upsert-by-identifier write with no read-back or transactional semantics
// required by the pipeline.
type EntityStore interface {
	Upsert(ctx context.Context, entity models.MergedEntity) error
	Close() error
}

// RunRecord is one row of the discovery run log.
type RunRecord struct {
	RunID      string
	Query      string
	Location   string
	Intent     string
	Phrases    int
	Candidates int
	Entities   int
	Errors     int
	ElapsedMS  int64
	Degraded   bool
	CreatedAt  time.Time
}

// RunLog records pipeline runs for offline observability.
type RunLog interface {
	Record(ctx context.Context, record RunRecord) error
	Close() error
}

// EntityKey derives the idempotent upsert key: the normalized handle when
// present, else the lowercased display name.
func EntityKey(entity models.MergedEntity) string {
	handle := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(entity.Handle), "@"))
	if handle != "" {
		return handle
	}
	return "name:" + strings.ToLower(strings.TrimSpace(entity.Name))
}
