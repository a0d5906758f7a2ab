package payment

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/telecare/telecare/internal/domain/audit"
	"github.com/telecare/telecare/internal/domain/connection"
	"github.com/telecare/telecare/internal/platform/auth"
	"github.com/telecare/telecare/internal/platform/respond"
)

// Links is the slice of the connection store the payment flow needs: link
// lookup and balance adjustment.
type Links interface {
	GetByID(ctx context.Context, id uuid.UUID) (*connection.Link, error)
	AdjustBalance(ctx context.Context, id uuid.UUID, delta int64) error
}

type Service struct {
	repo    Repository
	links   Links
	auditor *audit.Recorder
	logger  zerolog.Logger
}

func NewService(repo Repository, links Links, auditor *audit.Recorder, logger zerolog.Logger) *Service {
	return &Service{
		repo:    repo,
		links:   links,
		auditor: auditor,
		logger:  logger.With().Str("component", "payment").Logger(),
	}
}

// Record stores a pending payment against a link. Patients pay on their
// own links; clerks may record on any link.
func (s *Service) Record(ctx context.Context, actor auth.Principal, input RecordInput) (*Payment, error) {
	if err := auth.RequirePermission(actor, auth.ActionRecordPayment); err != nil {
		return nil, err
	}

	var issues []respond.Issue
	if input.AmountCents <= 0 {
		issues = append(issues, respond.Issue{Field: "amountCents", Message: "must be positive"})
	}
	if strings.TrimSpace(input.Method) == "" {
		issues = append(issues, respond.Issue{Field: "method", Message: "is required"})
	}
	if len(issues) > 0 {
		return nil, respond.Validation("invalid payment", issues...)
	}

	link, err := s.links.GetByID(ctx, input.LinkID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, respond.NotFound("link not found")
		}
		return nil, err
	}
	if actor.Roles.IsPatient && link.PatientID != actor.ID && !actor.Roles.IsClerk && !actor.Roles.IsAdmin {
		return nil, respond.AccessDenied("link belongs to another patient")
	}

	currency := strings.ToUpper(strings.TrimSpace(input.Currency))
	if currency == "" {
		currency = "USD"
	}

	p := &Payment{
		LinkID:      link.ID,
		PatientID:   link.PatientID,
		ProviderID:  link.ProviderID,
		AmountCents: input.AmountCents,
		Currency:    currency,
		Status:      StatusPending,
		Method:      strings.TrimSpace(input.Method),
		Reference:   input.Reference,
	}
	if err := s.repo.Insert(ctx, p); err != nil {
		return nil, err
	}

	s.auditor.Record(ctx, &audit.Log{
		Action:     audit.ActionCreate,
		EntityType: "payment",
		EntityID:   p.ID.String(),
		Metadata:   audit.ProvenanceMetadata(actor, map[string]interface{}{"linkId": link.ID.String()}),
	})
	return p, nil
}

// Settle resolves a pending payment. A succeeded payment reduces the
// link's outstanding balance by the paid amount. Clerk or admin only.
func (s *Service) Settle(ctx context.Context, actor auth.Principal, id uuid.UUID, succeeded bool) (*Payment, error) {
	if !actor.Roles.IsClerk && !actor.Roles.IsAdmin {
		return nil, respond.Forbidden("only a clerk or admin may settle payments")
	}

	p, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}

	target := StatusFailed
	if succeeded {
		target = StatusSucceeded
	}

	ok, err := s.repo.SetStatus(ctx, id, target)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, respond.Conflict("payment has already been settled")
	}
	p.Status = target

	if succeeded {
		if err := s.links.AdjustBalance(ctx, p.LinkID, -p.AmountCents); err != nil {
			// The payment is settled; a failed balance write is
			// surfaced for the operator rather than rolled back.
			s.logger.Error().Err(err).
				Str("payment_id", p.ID.String()).
				Str("link_id", p.LinkID.String()).
				Msg("balance adjustment failed after settlement")
		}
	}

	s.auditor.Record(ctx, &audit.Log{
		Action:     audit.ActionUpdate,
		EntityType: "payment",
		EntityID:   p.ID.String(),
		Metadata:   audit.ProvenanceMetadata(actor, map[string]interface{}{"status": string(target)}),
	})
	return p, nil
}

// ListForPrincipal returns the caller's payments: patients see their own,
// clerks and admins may scope by link.
func (s *Service) ListForPrincipal(ctx context.Context, actor auth.Principal, linkID *uuid.UUID, limit, offset int) ([]*Payment, int, error) {
	if err := auth.RequirePermission(actor, auth.ActionViewPayments); err != nil {
		return nil, 0, err
	}

	if linkID != nil {
		link, err := s.links.GetByID(ctx, *linkID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, 0, respond.NotFound("link not found")
			}
			return nil, 0, err
		}
		if link.PatientID != actor.ID && link.ProviderID != actor.ID &&
			!actor.Roles.IsClerk && !actor.Roles.IsAdmin {
			return nil, 0, respond.AccessDenied("link belongs to another account")
		}
		return s.repo.ListForLink(ctx, *linkID, limit, offset)
	}

	if actor.Roles.IsPatient {
		return s.repo.ListForPatient(ctx, actor.ID, limit, offset)
	}
	return nil, 0, respond.Validation("invalid query",
		respond.Issue{Field: "linkId", Message: "is required for this role"})
}

func (s *Service) get(ctx context.Context, id uuid.UUID) (*Payment, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, respond.NotFound("payment not found")
		}
		return nil, err
	}
	return p, nil
}
