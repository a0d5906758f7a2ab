package audit

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/telecare/telecare/internal/platform/auth"
)

type mockRepo struct {
	inserted  []*Log
	insertErr error
	deleted   int64
	deleteErr error
	cutoff    time.Time
}

func (m *mockRepo) Insert(ctx context.Context, entry *Log) error {
	if m.insertErr != nil {
		return m.insertErr
	}
	m.inserted = append(m.inserted, entry)
	return nil
}

func (m *mockRepo) Search(ctx context.Context, filter SearchFilter, limit, offset int) ([]*Log, int, error) {
	return m.inserted, len(m.inserted), nil
}

func (m *mockRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	m.cutoff = cutoff
	return m.deleted, m.deleteErr
}

func testLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

func TestRecordFillsDefaults(t *testing.T) {
	repo := &mockRepo{}
	rec := NewRecorder(repo, testLogger())

	rec.Record(context.Background(), &Log{
		Action:     ActionFinalize,
		EntityType: "progress_note",
		EntityID:   "note-1",
	})

	if len(repo.inserted) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(repo.inserted))
	}
	entry := repo.inserted[0]
	if entry.Timestamp.IsZero() {
		t.Error("expected timestamp default")
	}
	if entry.Source != SourceAPI {
		t.Errorf("expected source api, got %q", entry.Source)
	}
}

func TestRecordResolvesActorFromContext(t *testing.T) {
	repo := &mockRepo{}
	rec := NewRecorder(repo, testLogger())

	p := auth.Principal{ID: uuid.New(), Email: "doc@example.com"}
	ctx := auth.WithPrincipal(context.Background(), p)

	rec.Record(ctx, &Log{Action: ActionView, EntityType: "progress_note", EntityID: "note-1"})

	if repo.inserted[0].UserID == nil || *repo.inserted[0].UserID != p.ID {
		t.Error("expected actor resolved from context principal")
	}
}

func TestRecordCapturesClientIP(t *testing.T) {
	repo := &mockRepo{}
	rec := NewRecorder(repo, testLogger())

	ctx := auth.WithClientIP(context.Background(), "203.0.113.7")
	rec.Record(ctx, &Log{Action: ActionView, EntityType: "progress_note", EntityID: "note-1"})

	if repo.inserted[0].IP == nil || *repo.inserted[0].IP != "203.0.113.7" {
		t.Error("expected client ip resolved from context")
	}
}

func TestRecordSwallowsRepoError(t *testing.T) {
	repo := &mockRepo{insertErr: errors.New("db down")}
	rec := NewRecorder(repo, testLogger())

	// Must not panic or propagate.
	rec.Record(context.Background(), &Log{Action: ActionCreate, EntityType: "message", EntityID: "m-1"})
}

func TestProvenanceMetadata(t *testing.T) {
	p := auth.Principal{
		ID:               uuid.New(),
		Email:            "doc@example.com",
		Roles:            auth.RoleFlags{IsProvider: true},
		ProviderApproval: auth.ApprovalApproved,
	}

	meta := ProvenanceMetadata(p, map[string]interface{}{"noteId": "note-1"})

	if meta["userEmail"] != "doc@example.com" {
		t.Errorf("unexpected userEmail: %v", meta["userEmail"])
	}
	if meta["providerApprovalStatus"] != "approved" {
		t.Errorf("unexpected approval status: %v", meta["providerApprovalStatus"])
	}
	if meta["noteId"] != "note-1" {
		t.Error("expected extras merged")
	}
	if _, ok := meta["timestamp"]; !ok {
		t.Error("expected timestamp in metadata")
	}
}

func TestPruneComputesCutoff(t *testing.T) {
	repo := &mockRepo{deleted: 42}
	svc := NewService(repo, testLogger())

	deleted, err := svc.Prune(context.Background(), 365)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if deleted != 42 {
		t.Errorf("expected 42 deleted, got %d", deleted)
	}

	want := time.Now().UTC().AddDate(0, 0, -365)
	if diff := repo.cutoff.Sub(want); diff < -time.Minute || diff > time.Minute {
		t.Errorf("cutoff %v not near %v", repo.cutoff, want)
	}
}

func TestPrunePropagatesError(t *testing.T) {
	repo := &mockRepo{deleteErr: errors.New("db down")}
	svc := NewService(repo, testLogger())

	if _, err := svc.Prune(context.Background(), 30); err == nil {
		t.Error("expected error")
	}
}
