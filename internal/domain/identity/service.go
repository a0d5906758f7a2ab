package identity

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/telecare/telecare/internal/domain/audit"
	"github.com/telecare/telecare/internal/platform/auth"
	"github.com/telecare/telecare/internal/platform/respond"
)

const minPasswordLength = 8

// approvalTransitions lists the forward moves of the provider review state
// machine. Admins may override; clerks must follow the arrows.
var approvalTransitions = map[auth.ApprovalStatus][]auth.ApprovalStatus{
	auth.ApprovalPending:   {auth.ApprovalReviewing},
	auth.ApprovalReviewing: {auth.ApprovalApproved, auth.ApprovalRejected},
}

type Service struct {
	repo    Repository
	jwtCfg  auth.JWTConfig
	auditor *audit.Recorder
	logger  zerolog.Logger
}

func NewService(repo Repository, jwtCfg auth.JWTConfig, auditor *audit.Recorder, logger zerolog.Logger) *Service {
	return &Service{
		repo:    repo,
		jwtCfg:  jwtCfg,
		auditor: auditor,
		logger:  logger.With().Str("component", "identity").Logger(),
	}
}

// Register creates a self-service account. Signup only grants the provider
// or patient flag; admin and clerk are assigned later by an admin. New
// provider accounts start in pending review.
func (s *Service) Register(ctx context.Context, input RegisterInput) (*User, error) {
	var issues []respond.Issue
	input.Email = strings.TrimSpace(strings.ToLower(input.Email))
	if input.Email == "" || !strings.Contains(input.Email, "@") {
		issues = append(issues, respond.Issue{Field: "email", Message: "must be a valid email address"})
	}
	if len(input.Password) < minPasswordLength {
		issues = append(issues, respond.Issue{Field: "password", Message: "must be at least 8 characters"})
	}
	if strings.TrimSpace(input.FullName) == "" {
		issues = append(issues, respond.Issue{Field: "fullName", Message: "is required"})
	}
	if input.Role != "provider" && input.Role != "patient" {
		issues = append(issues, respond.Issue{Field: "role", Message: "must be provider or patient"})
	}
	if len(issues) > 0 {
		return nil, respond.Validation("invalid registration", issues...)
	}

	if existing, err := s.repo.GetByEmail(ctx, input.Email); err == nil && existing != nil {
		return nil, respond.Conflict("an account with this email already exists")
	} else if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	user := &User{
		Email:        input.Email,
		PasswordHash: string(hash),
		FullName:     strings.TrimSpace(input.FullName),
		Specialty:    input.Specialty,
	}
	switch input.Role {
	case "provider":
		user.Roles.IsProvider = true
		user.ProviderApproval = auth.ApprovalPending
	case "patient":
		user.Roles.IsPatient = true
	}

	if err := s.repo.Insert(ctx, user); err != nil {
		return nil, err
	}

	s.auditor.Record(ctx, &audit.Log{
		UserID:     &user.ID,
		Action:     audit.ActionCreate,
		EntityType: "app_user",
		EntityID:   user.ID.String(),
		Metadata:   map[string]interface{}{"role": input.Role},
	})
	s.logger.Info().Str("user_id", user.ID.String()).Str("role", input.Role).Msg("user registered")
	return user, nil
}

// Login verifies credentials and issues a session token. Bad email and bad
// password produce the same error.
func (s *Service) Login(ctx context.Context, input LoginInput) (string, *User, error) {
	user, err := s.repo.GetByEmail(ctx, strings.TrimSpace(strings.ToLower(input.Email)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil, respond.Unauthorized("invalid credentials")
		}
		return "", nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(input.Password)); err != nil {
		return "", nil, respond.Unauthorized("invalid credentials")
	}

	token, err := auth.IssueToken(s.jwtCfg, user.Principal())
	if err != nil {
		return "", nil, err
	}
	return token, user, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*User, error) {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, respond.NotFound("user not found")
		}
		return nil, err
	}
	return user, nil
}

func (s *Service) List(ctx context.Context, filter ListFilter, limit, offset int) ([]*User, int, error) {
	return s.repo.List(ctx, filter, limit, offset)
}

// SetRoles replaces a user's role flags. Admin only; an admin cannot strip
// their own admin flag, which keeps at least one admin reachable.
func (s *Service) SetRoles(ctx context.Context, actor auth.Principal, id uuid.UUID, roles auth.RoleFlags) (*User, error) {
	if err := auth.RequirePermission(actor, auth.ActionManageUsers); err != nil {
		return nil, err
	}
	if actor.ID == id && !roles.IsAdmin {
		return nil, respond.Forbidden("cannot remove your own admin role")
	}

	user, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.repo.UpdateRoles(ctx, id, roles); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, respond.NotFound("user not found")
		}
		return nil, err
	}
	user.Roles = roles

	s.auditor.Record(ctx, &audit.Log{
		Action:     audit.ActionUpdate,
		EntityType: "app_user",
		EntityID:   id.String(),
		Metadata:   audit.ProvenanceMetadata(actor, map[string]interface{}{"roles": roleNames(roles)}),
	})
	return user, nil
}

func roleNames(roles auth.RoleFlags) []string {
	return auth.Principal{Roles: roles}.RoleNames()
}

// ReviewProvider moves a provider account through the review state machine.
// Clerks may only follow forward transitions; admins may set any status.
func (s *Service) ReviewProvider(ctx context.Context, actor auth.Principal, id uuid.UUID, status auth.ApprovalStatus) (*User, error) {
	if err := auth.RequirePermission(actor, auth.ActionReviewProviders); err != nil {
		return nil, err
	}
	switch status {
	case auth.ApprovalPending, auth.ApprovalReviewing, auth.ApprovalApproved, auth.ApprovalRejected:
	default:
		return nil, respond.Validation("invalid status", respond.Issue{Field: "status", Message: "unknown approval status"})
	}

	user, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !user.Roles.IsProvider {
		return nil, respond.Validation("not a provider account",
			respond.Issue{Field: "id", Message: "user does not carry the provider role"})
	}

	if !actor.Roles.IsAdmin && !validTransition(user.ProviderApproval, status) {
		return nil, respond.Conflict("invalid approval transition from " + string(user.ProviderApproval) + " to " + string(status))
	}

	if err := s.repo.UpdateApproval(ctx, id, status); err != nil {
		return nil, err
	}
	previous := user.ProviderApproval
	user.ProviderApproval = status

	s.auditor.Record(ctx, &audit.Log{
		Action:     audit.ActionReview,
		EntityType: "app_user",
		EntityID:   id.String(),
		Metadata: audit.ProvenanceMetadata(actor, map[string]interface{}{
			"from": string(previous),
			"to":   string(status),
		}),
	})
	s.logger.Info().
		Str("user_id", id.String()).
		Str("from", string(previous)).
		Str("to", string(status)).
		Msg("provider review updated")
	return user, nil
}

func validTransition(from, to auth.ApprovalStatus) bool {
	for _, next := range approvalTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
