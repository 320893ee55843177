package task

import (
	"context"

	"taskboard/internal/auth"
)

// Store is the persistence boundary for tasks. Every by-id operation is
// scoped to the viewer: USER queries only match rows they own, ADMIN queries
// are unscoped, so "not found" and "not yours" are indistinguishable by
// construction.
type Store interface {
	List(ctx context.Context, viewer auth.Identity, query ListQuery) ([]Task, int, error)
	Create(ctx context.Context, input Input, ownerID string) (Task, error)
	Get(ctx context.Context, id string, viewer auth.Identity) (Task, error)
	Update(ctx context.Context, id string, input Input, viewer auth.Identity) (Task, error)
	Delete(ctx context.Context, id string, viewer auth.Identity) error
}
