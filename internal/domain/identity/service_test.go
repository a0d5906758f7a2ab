package identity

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/telecare/telecare/internal/domain/audit"
	"github.com/telecare/telecare/internal/platform/auth"
	"github.com/telecare/telecare/internal/platform/respond"
)

type mockRepo struct {
	users map[uuid.UUID]*User
}

func newMockRepo() *mockRepo {
	return &mockRepo{users: map[uuid.UUID]*User{}}
}

func (m *mockRepo) Insert(ctx context.Context, user *User) error {
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	m.users[user.ID] = user
	return nil
}

func (m *mockRepo) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return u, nil
}

func (m *mockRepo) GetByEmail(ctx context.Context, email string) (*User, error) {
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (m *mockRepo) List(ctx context.Context, filter ListFilter, limit, offset int) ([]*User, int, error) {
	var all []*User
	for _, u := range m.users {
		all = append(all, u)
	}
	return all, len(all), nil
}

func (m *mockRepo) UpdateRoles(ctx context.Context, id uuid.UUID, roles auth.RoleFlags) error {
	u, ok := m.users[id]
	if !ok {
		return pgx.ErrNoRows
	}
	u.Roles = roles
	return nil
}

func (m *mockRepo) UpdateApproval(ctx context.Context, id uuid.UUID, status auth.ApprovalStatus) error {
	u, ok := m.users[id]
	if !ok {
		return pgx.ErrNoRows
	}
	u.ProviderApproval = status
	return nil
}

type noopAuditRepo struct{}

func (noopAuditRepo) Insert(ctx context.Context, entry *audit.Log) error { return nil }
func (noopAuditRepo) Search(ctx context.Context, filter audit.SearchFilter, limit, offset int) ([]*audit.Log, int, error) {
	return nil, 0, nil
}
func (noopAuditRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	return 0, nil
}

func newTestService(repo Repository) *Service {
	logger := zerolog.New(io.Discard)
	return NewService(repo, auth.JWTConfig{
		Issuer:     "telecare",
		SigningKey: []byte("0123456789abcdef0123456789abcdef"),
		TokenTTL:   time.Hour,
	}, audit.NewRecorder(noopAuditRepo{}, logger), logger)
}

func statusOf(t *testing.T, err error) int {
	t.Helper()
	re := respond.AsError(err)
	if re == nil {
		t.Fatalf("expected respond.Error, got %v", err)
	}
	return re.Status
}

func TestRegisterProviderStartsPending(t *testing.T) {
	svc := newTestService(newMockRepo())

	user, err := svc.Register(context.Background(), RegisterInput{
		Email:    "doc@example.com",
		Password: "correct-horse",
		FullName: "Dr. Example",
		Role:     "provider",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !user.Roles.IsProvider {
		t.Error("expected provider flag")
	}
	if user.ProviderApproval != auth.ApprovalPending {
		t.Errorf("expected pending approval, got %q", user.ProviderApproval)
	}
	if user.PasswordHash == "correct-horse" {
		t.Error("password stored in plaintext")
	}
}

func TestRegisterRejectsBadInput(t *testing.T) {
	svc := newTestService(newMockRepo())

	_, err := svc.Register(context.Background(), RegisterInput{
		Email:    "not-an-email",
		Password: "short",
		Role:     "admin",
	})
	if statusOf(t, err) != 400 {
		t.Errorf("expected 400, got %v", err)
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	svc := newTestService(newMockRepo())
	input := RegisterInput{
		Email:    "pat@example.com",
		Password: "correct-horse",
		FullName: "Pat Example",
		Role:     "patient",
	}

	if _, err := svc.Register(context.Background(), input); err != nil {
		t.Fatalf("first register failed: %v", err)
	}
	_, err := svc.Register(context.Background(), input)
	if statusOf(t, err) != 409 {
		t.Errorf("expected 409, got %v", err)
	}
}

func TestLoginRoundtrip(t *testing.T) {
	svc := newTestService(newMockRepo())

	_, err := svc.Register(context.Background(), RegisterInput{
		Email:    "pat@example.com",
		Password: "correct-horse",
		FullName: "Pat Example",
		Role:     "patient",
	})
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}

	token, user, err := svc.Login(context.Background(), LoginInput{
		Email:    "Pat@Example.com",
		Password: "correct-horse",
	})
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if token == "" {
		t.Error("expected token")
	}
	if !user.Roles.IsPatient {
		t.Error("expected patient flag")
	}
}

func TestLoginWrongPassword(t *testing.T) {
	svc := newTestService(newMockRepo())

	_, err := svc.Register(context.Background(), RegisterInput{
		Email:    "pat@example.com",
		Password: "correct-horse",
		FullName: "Pat Example",
		Role:     "patient",
	})
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}

	_, _, err = svc.Login(context.Background(), LoginInput{Email: "pat@example.com", Password: "wrong"})
	if statusOf(t, err) != 401 {
		t.Errorf("expected 401, got %v", err)
	}

	_, _, err = svc.Login(context.Background(), LoginInput{Email: "nobody@example.com", Password: "wrong"})
	if statusOf(t, err) != 401 {
		t.Errorf("expected 401 for unknown email, got %v", err)
	}
}

func seedProvider(t *testing.T, repo *mockRepo, status auth.ApprovalStatus) *User {
	t.Helper()
	u := &User{
		ID:               uuid.New(),
		Email:            "doc@example.com",
		FullName:         "Dr. Example",
		Roles:            auth.RoleFlags{IsProvider: true},
		ProviderApproval: status,
	}
	repo.users[u.ID] = u
	return u
}

func TestReviewFollowsTransitions(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo)
	provider := seedProvider(t, repo, auth.ApprovalPending)
	clerk := auth.Principal{ID: uuid.New(), Roles: auth.RoleFlags{IsClerk: true}}

	// pending -> reviewing -> approved
	if _, err := svc.ReviewProvider(context.Background(), clerk, provider.ID, auth.ApprovalReviewing); err != nil {
		t.Fatalf("pending->reviewing failed: %v", err)
	}
	if _, err := svc.ReviewProvider(context.Background(), clerk, provider.ID, auth.ApprovalApproved); err != nil {
		t.Fatalf("reviewing->approved failed: %v", err)
	}
}

func TestReviewRejectsSkippedTransition(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo)
	provider := seedProvider(t, repo, auth.ApprovalPending)
	clerk := auth.Principal{ID: uuid.New(), Roles: auth.RoleFlags{IsClerk: true}}

	_, err := svc.ReviewProvider(context.Background(), clerk, provider.ID, auth.ApprovalApproved)
	if statusOf(t, err) != 409 {
		t.Errorf("expected 409 for skipped transition, got %v", err)
	}
}

func TestReviewAdminOverride(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo)
	provider := seedProvider(t, repo, auth.ApprovalRejected)
	admin := auth.Principal{ID: uuid.New(), Roles: auth.RoleFlags{IsAdmin: true}}

	user, err := svc.ReviewProvider(context.Background(), admin, provider.ID, auth.ApprovalApproved)
	if err != nil {
		t.Fatalf("admin override failed: %v", err)
	}
	if user.ProviderApproval != auth.ApprovalApproved {
		t.Errorf("expected approved, got %q", user.ProviderApproval)
	}
}

func TestReviewNonProvider(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo)
	patient := &User{ID: uuid.New(), Email: "pat@example.com", Roles: auth.RoleFlags{IsPatient: true}}
	repo.users[patient.ID] = patient
	admin := auth.Principal{ID: uuid.New(), Roles: auth.RoleFlags{IsAdmin: true}}

	_, err := svc.ReviewProvider(context.Background(), admin, patient.ID, auth.ApprovalReviewing)
	if statusOf(t, err) != 400 {
		t.Errorf("expected 400 for non-provider, got %v", err)
	}
}

func TestSetRolesRequiresAdmin(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo)
	provider := seedProvider(t, repo, auth.ApprovalApproved)
	clerk := auth.Principal{ID: uuid.New(), Roles: auth.RoleFlags{IsClerk: true}}

	_, err := svc.SetRoles(context.Background(), clerk, provider.ID, auth.RoleFlags{IsClerk: true})
	if statusOf(t, err) != 403 {
		t.Errorf("expected 403, got %v", err)
	}
}

func TestSetRolesBlocksSelfDemotion(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo)
	adminUser := &User{ID: uuid.New(), Email: "admin@example.com", Roles: auth.RoleFlags{IsAdmin: true}}
	repo.users[adminUser.ID] = adminUser
	actor := adminUser.Principal()

	_, err := svc.SetRoles(context.Background(), actor, adminUser.ID, auth.RoleFlags{IsClerk: true})
	if statusOf(t, err) != 403 {
		t.Errorf("expected 403 for self demotion, got %v", err)
	}
}
