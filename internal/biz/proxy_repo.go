package biz

import (
	"context"

	"ProxyLane/internal/model"
)

// ProxyRepo persists snapshots of proxy records. The scheduler holds the live copy; the
// store is eventually consistent with it.
type ProxyRepo interface {
	// List returns every stored record in creation order.
	List(ctx context.Context) ([]*model.ProxyRecord, error)
	// Create inserts a new record. A duplicate identity yields a duplicate key error.
	Create(ctx context.Context, rec *model.ProxyRecord) error
	// Save writes the live state of an existing record.
	Save(ctx context.Context, rec *model.ProxyRecord) error
	// SaveBatch writes the live state of existing records. Deleted rows stay deleted.
	SaveBatch(ctx context.Context, recs []*model.ProxyRecord) error
	// Delete removes a record and reports whether it existed.
	Delete(ctx context.Context, id model.Identity) (bool, error)
}

// CooldownMarker publishes cooldown windows to a shared store so that other instances and
// operators can see them. Failures are tolerated by callers.
type CooldownMarker interface {
	MarkCooldown(ctx context.Context, ev *model.CooldownEvent) error
	ClearCooldown(ctx context.Context, id model.Identity) error
	CoolingDown(ctx context.Context) ([]model.Identity, error)
}

// HealthResultCache keeps the most recent batch result.
type HealthResultCache interface {
	SaveLastResult(ctx context.Context, result *model.HealthCheckResult) error
	// LastResult returns nil without error when no batch has run yet.
	LastResult(ctx context.Context) (*model.HealthCheckResult, error)
}
