package ports

import "context"

// Document statuses as stored by the ingestion pipeline.
const (
	DocumentStatusProcessing = "processing"
	DocumentStatusReady      = "ready"
	DocumentStatusFailed     = "failed"
)

// Document describes a stored document as seen by the pipeline.
type Document struct {
	ID      string
	Title   string
	Status  string
	OwnerID string
}

// EntityStore looks up documents and document sets. All scoped queries filter
// by owner so one user can never resolve another user's documents.
type EntityStore interface {
	// DocumentsByID returns the documents for the given ids. Unknown ids are
	// simply absent from the result, not an error.
	DocumentsByID(ctx context.Context, ids []string) ([]Document, error)

	// ReadyDocuments returns every ready document owned by ownerID. Used as
	// the candidate pool for fuzzy title matching.
	ReadyDocuments(ctx context.Context, ownerID string) ([]Document, error)

	// ExpandSet returns the ids of every ready document in the named set
	// owned by ownerID.
	ExpandSet(ctx context.Context, setID, ownerID string) ([]string, error)
}
