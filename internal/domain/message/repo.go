package message

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Insert(ctx context.Context, msg *Message) error
	GetByID(ctx context.Context, id uuid.UUID) (*Message, error)
	ListThread(ctx context.Context, linkID uuid.UUID, limit, offset int) ([]*Message, int, error)
	// MarkRead stamps all of the recipient's unread messages in the
	// thread and returns how many were stamped.
	MarkRead(ctx context.Context, linkID, recipientID uuid.UUID) (int64, error)
	CountUnread(ctx context.Context, recipientID uuid.UUID) (int, error)
}
