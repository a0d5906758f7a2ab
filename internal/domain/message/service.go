package message

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/telecare/telecare/internal/domain/audit"
	"github.com/telecare/telecare/internal/domain/connection"
	"github.com/telecare/telecare/internal/platform/auth"
	"github.com/telecare/telecare/internal/platform/events"
	"github.com/telecare/telecare/internal/platform/respond"
)

const maxBodyLength = 10000

// LinkGate verifies the approved provider-patient connection for a thread.
type LinkGate interface {
	EnsureLink(ctx context.Context, providerID, patientID uuid.UUID) (*connection.Link, error)
}

type Service struct {
	repo    Repository
	links   LinkGate
	bus     *events.Bus
	auditor *audit.Recorder
	logger  zerolog.Logger
}

func NewService(repo Repository, links LinkGate, bus *events.Bus, auditor *audit.Recorder, logger zerolog.Logger) *Service {
	return &Service{
		repo:    repo,
		links:   links,
		bus:     bus,
		auditor: auditor,
		logger:  logger.With().Str("component", "message").Logger(),
	}
}

// Send stores a message on the pair's thread. The caller must hold an
// approved link with the recipient; direction determines which side is the
// provider in the gate query.
func (s *Service) Send(ctx context.Context, actor auth.Principal, input SendInput) (*Message, error) {
	if err := auth.RequirePermission(actor, auth.ActionSendMessage); err != nil {
		return nil, err
	}

	body := strings.TrimSpace(input.Body)
	if body == "" {
		return nil, respond.Validation("invalid message",
			respond.Issue{Field: "body", Message: "is required"})
	}
	if len(body) > maxBodyLength {
		return nil, respond.Validation("invalid message",
			respond.Issue{Field: "body", Message: "exceeds maximum length"})
	}

	link, err := s.threadLink(ctx, actor, input.RecipientID)
	if err != nil {
		return nil, err
	}

	msg := &Message{
		LinkID:      link.ID,
		SenderID:    actor.ID,
		RecipientID: input.RecipientID,
		Body:        body,
		SentAt:      time.Now().UTC(),
	}
	if err := s.repo.Insert(ctx, msg); err != nil {
		return nil, err
	}

	s.auditor.Record(ctx, &audit.Log{
		Action:     audit.ActionSend,
		EntityType: "message",
		EntityID:   msg.ID.String(),
		Metadata:   audit.ProvenanceMetadata(actor, map[string]interface{}{"linkId": link.ID.String()}),
	})

	s.bus.Publish(events.Event{
		Topic: events.TopicMessageSent,
		Payload: Sent{
			MessageID:   msg.ID,
			LinkID:      link.ID,
			SenderID:    msg.SenderID,
			RecipientID: msg.RecipientID,
		},
	})
	return msg, nil
}

// Thread returns the conversation with the other party, newest first, and
// marks the caller's unread messages read.
func (s *Service) Thread(ctx context.Context, actor auth.Principal, otherPartyID uuid.UUID, limit, offset int) ([]*Message, int, error) {
	if err := auth.RequirePermission(actor, auth.ActionViewMessages); err != nil {
		return nil, 0, err
	}

	link, err := s.threadLink(ctx, actor, otherPartyID)
	if err != nil {
		return nil, 0, err
	}

	msgs, total, err := s.repo.ListThread(ctx, link.ID, limit, offset)
	if err != nil {
		return nil, 0, err
	}

	if _, err := s.repo.MarkRead(ctx, link.ID, actor.ID); err != nil {
		s.logger.Error().Err(err).Str("link_id", link.ID.String()).Msg("mark read failed")
	}

	s.auditor.Record(ctx, &audit.Log{
		Action:     audit.ActionRead,
		EntityType: "message",
		EntityID:   link.ID.String(),
		Metadata:   audit.ProvenanceMetadata(actor, nil),
	})
	return msgs, total, nil
}

// UnreadCount returns how many messages await the caller across threads.
func (s *Service) UnreadCount(ctx context.Context, actor auth.Principal) (int, error) {
	if err := auth.RequirePermission(actor, auth.ActionViewMessages); err != nil {
		return 0, err
	}
	return s.repo.CountUnread(ctx, actor.ID)
}

// threadLink resolves the approved link between the actor and the other
// party, whichever side is the provider.
func (s *Service) threadLink(ctx context.Context, actor auth.Principal, otherPartyID uuid.UUID) (*connection.Link, error) {
	if actor.Roles.IsProvider {
		return s.links.EnsureLink(ctx, actor.ID, otherPartyID)
	}
	return s.links.EnsureLink(ctx, otherPartyID, actor.ID)
}
