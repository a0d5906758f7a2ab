package note

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Repository interface {
	Insert(ctx context.Context, n *Note) error
	GetByID(ctx context.Context, id uuid.UUID) (*Note, error)
	ListForPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Note, int, error)
	// UpdateBody rewrites the clinical fields of a draft. Returns false
	// without writing when the note is no longer a draft.
	UpdateBody(ctx context.Context, id uuid.UUID, body Body) (bool, error)
	// Finalize performs the draft -> finalized transition as a single
	// compare-and-swap. Returns false when the note was not in draft, in
	// which case nothing was written.
	Finalize(ctx context.Context, id uuid.UUID, signatureHash string, finalizedAt time.Time) (bool, error)
	// MarkAmended performs the finalized -> amended transition as a
	// compare-and-swap. Body fields and signature are untouched.
	MarkAmended(ctx context.Context, id uuid.UUID) (bool, error)
}
