package connection

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Insert(ctx context.Context, link *Link) error
	GetByID(ctx context.Context, id uuid.UUID) (*Link, error)
	// FindApproved returns the approved link between the pair, across any
	// treatment type.
	FindApproved(ctx context.Context, providerID, patientID uuid.UUID) (*Link, error)
	// FindActive returns any pending or approved link for the exact
	// (provider, patient, treatment type) tuple.
	FindActive(ctx context.Context, providerID, patientID uuid.UUID, treatmentType string) (*Link, error)
	ListForProvider(ctx context.Context, providerID uuid.UUID, status Status, limit, offset int) ([]*Link, int, error)
	ListForPatient(ctx context.Context, patientID uuid.UUID, status Status, limit, offset int) ([]*Link, int, error)
	Update(ctx context.Context, link *Link) error
	// AdjustBalance atomically adds delta (cents, may be negative) to the
	// link's outstanding balance.
	AdjustBalance(ctx context.Context, id uuid.UUID, delta int64) error
}
