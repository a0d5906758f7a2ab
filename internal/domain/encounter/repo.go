package encounter

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Insert(ctx context.Context, enc *Encounter) error
	GetByID(ctx context.Context, id uuid.UUID) (*Encounter, error)
	ListForProvider(ctx context.Context, providerID uuid.UUID, status Status, limit, offset int) ([]*Encounter, int, error)
	ListForPatient(ctx context.Context, patientID uuid.UUID, status Status, limit, offset int) ([]*Encounter, int, error)
	Update(ctx context.Context, enc *Encounter) error
}
