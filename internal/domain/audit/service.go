package audit

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/telecare/telecare/internal/platform/auth"
)

// Recorder writes audit entries. Record never returns an error: a failed
// audit write must not fail the clinical operation that triggered it, so
// failures are logged and dropped.
type Recorder struct {
	repo   Repository
	logger zerolog.Logger
}

func NewRecorder(repo Repository, logger zerolog.Logger) *Recorder {
	return &Recorder{
		repo:   repo,
		logger: logger.With().Str("component", "audit").Logger(),
	}
}

// Record persists one audit entry, filling in defaults for zero fields.
func (r *Recorder) Record(ctx context.Context, entry *Log) {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	if entry.Source == "" {
		entry.Source = SourceAPI
	}
	if entry.UserID == nil {
		if p, ok := auth.PrincipalFromContext(ctx); ok {
			id := p.ID
			entry.UserID = &id
		}
	}
	if entry.IP == nil {
		if ip, ok := auth.ClientIPFromContext(ctx); ok && ip != "" {
			entry.IP = &ip
		}
	}
	if err := r.repo.Insert(ctx, entry); err != nil {
		r.logger.Error().Err(err).
			Str("action", string(entry.Action)).
			Str("entity_type", entry.EntityType).
			Str("entity_id", entry.EntityID).
			Msg("audit write failed")
	}
}

// ProvenanceMetadata builds the who/when metadata block attached to audit
// entries for clinical events. Extras are merged in; callers must not pass
// clinical content here.
func ProvenanceMetadata(p auth.Principal, extras map[string]interface{}) map[string]interface{} {
	meta := map[string]interface{}{
		"userEmail":              p.Email,
		"userRole":               p.RoleNames(),
		"providerApprovalStatus": string(p.ProviderApproval),
		"timestamp":              time.Now().UTC().Format(time.RFC3339),
	}
	for k, v := range extras {
		meta[k] = v
	}
	return meta
}

// Service exposes the admin-facing search and prune operations.
type Service struct {
	repo   Repository
	logger zerolog.Logger
}

func NewService(repo Repository, logger zerolog.Logger) *Service {
	return &Service{
		repo:   repo,
		logger: logger.With().Str("component", "audit").Logger(),
	}
}

func (s *Service) Search(ctx context.Context, filter SearchFilter, limit, offset int) ([]*Log, int, error) {
	return s.repo.Search(ctx, filter, limit, offset)
}

// Prune deletes entries older than the retention window and returns the
// number of rows removed.
func (s *Service) Prune(ctx context.Context, retentionDays int) (int64, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -retentionDays)
	deleted, err := s.repo.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	s.logger.Info().
		Int64("deleted", deleted).
		Time("cutoff", cutoff).
		Msg("audit log pruned")
	return deleted, nil
}
