package appointment

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Insert(ctx context.Context, appt *Appointment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	ListForProvider(ctx context.Context, providerID uuid.UUID, status Status, limit, offset int) ([]*Appointment, int, error)
	ListForPatient(ctx context.Context, patientID uuid.UUID, status Status, limit, offset int) ([]*Appointment, int, error)
	Update(ctx context.Context, appt *Appointment) error
}
