// Package message implements secure messaging between a linked provider
// and patient. A thread is scoped to the approved link; without one, no
// messages flow in either direction.
package message

import (
	"time"

	"github.com/google/uuid"
)

// Message maps to the message table.
type Message struct {
	ID          uuid.UUID  `db:"id" json:"id"`
	LinkID      uuid.UUID  `db:"link_id" json:"linkId"`
	SenderID    uuid.UUID  `db:"sender_id" json:"senderId"`
	RecipientID uuid.UUID  `db:"recipient_id" json:"recipientId"`
	Body        string     `db:"body" json:"body"`
	SentAt      time.Time  `db:"sent_at" json:"sentAt"`
	ReadAt      *time.Time `db:"read_at" json:"readAt,omitempty"`
}

// SendInput addresses a message to the other party of a link.
type SendInput struct {
	RecipientID uuid.UUID `json:"recipientId"`
	Body        string    `json:"body"`
}

// Sent is the event payload published after a message is stored.
type Sent struct {
	MessageID   uuid.UUID
	LinkID      uuid.UUID
	SenderID    uuid.UUID
	RecipientID uuid.UUID
}
