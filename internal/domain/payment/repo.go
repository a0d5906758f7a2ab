package payment

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Insert(ctx context.Context, p *Payment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Payment, error)
	ListForLink(ctx context.Context, linkID uuid.UUID, limit, offset int) ([]*Payment, int, error)
	ListForPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Payment, int, error)
	// SetStatus performs the pending -> settled transition as a
	// compare-and-swap; returns false when the payment was already
	// settled.
	SetStatus(ctx context.Context, id uuid.UUID, status Status) (bool, error)
}
