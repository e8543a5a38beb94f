package ports

import (
	"context"

	"github.com/policypal/palgraph/pkg/domain"
)

// SnapshotStore persists the pipeline state keyed by thread id. The executor
// writes a snapshot after every node so a suspended run can be resumed from
// a different process.
type SnapshotStore interface {
	// Put persists the state for a thread.
	Put(ctx context.Context, threadID string, state *domain.State) error

	// Get retrieves the state for a thread.
	// Returns domain.ErrThreadNotFound if no snapshot exists.
	Get(ctx context.Context, threadID string) (*domain.State, error)

	// Delete removes the snapshot for a thread.
	Delete(ctx context.Context, threadID string) error

	// List returns the thread ids with a persisted snapshot.
	List(ctx context.Context) ([]string, error)
}
