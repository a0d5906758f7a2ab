package message

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/telecare/telecare/internal/platform/db"
)

type repoPG struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

type querier interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

func (r *repoPG) conn(ctx context.Context) querier {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const messageCols = `id, link_id, sender_id, recipient_id, body, sent_at, read_at`

func (r *repoPG) Insert(ctx context.Context, msg *Message) error {
	if msg.ID == uuid.Nil {
		msg.ID = uuid.New()
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO message (id, link_id, sender_id, recipient_id, body, sent_at, read_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		msg.ID, msg.LinkID, msg.SenderID, msg.RecipientID, msg.Body, msg.SentAt, msg.ReadAt,
	)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Message, error) {
	row := r.conn(ctx).QueryRow(ctx,
		fmt.Sprintf(`SELECT %s FROM message WHERE id = $1`, messageCols), id)
	return scanMessage(row)
}

func (r *repoPG) ListThread(ctx context.Context, linkID uuid.UUID, limit, offset int) ([]*Message, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM message WHERE link_id = $1`, linkID).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.conn(ctx).Query(ctx, fmt.Sprintf(`
		SELECT %s FROM message
		WHERE link_id = $1
		ORDER BY sent_at DESC
		LIMIT $2 OFFSET $3`, messageCols), linkID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var msgs []*Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, 0, err
		}
		msgs = append(msgs, m)
	}
	return msgs, total, rows.Err()
}

func (r *repoPG) MarkRead(ctx context.Context, linkID, recipientID uuid.UUID) (int64, error) {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE message SET read_at = $3
		WHERE link_id = $1 AND recipient_id = $2 AND read_at IS NULL`,
		linkID, recipientID, time.Now().UTC(),
	)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *repoPG) CountUnread(ctx context.Context, recipientID uuid.UUID) (int, error) {
	var n int
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM message WHERE recipient_id = $1 AND read_at IS NULL`,
		recipientID).Scan(&n)
	return n, err
}

func scanMessage(row pgx.Row) (*Message, error) {
	var m Message
	err := row.Scan(&m.ID, &m.LinkID, &m.SenderID, &m.RecipientID, &m.Body, &m.SentAt, &m.ReadAt)
	if err != nil {
		return nil, err
	}
	return &m, nil
}
