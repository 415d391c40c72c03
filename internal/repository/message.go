package repository

import (
	"context"

	"github.com/ajbunielteam/SysGranTES/internal/model"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
)

var messageColumns = []string{
	"id", "sender_id", "receiver_id", "sender_type", "receiver_type",
	"content", "attachment", "attachment_name", "COALESCE(client_key, '')", "created_at",
}

type MessageRepository struct {
	pool *pgxpool.Pool
}

func NewMessageRepository(pool *pgxpool.Pool) *MessageRepository {
	return &MessageRepository{pool: pool}
}

// Save validates and inserts one message. A repeated client key comes back
// as model.ErrDuplicateMessage.
func (r *MessageRepository) Save(ctx context.Context, msg model.NewMessage) (*model.Message, error) {
	if err := msg.Validate(); err != nil {
		return nil, err
	}

	var clientKey interface{}
	if msg.ClientKey != "" {
		clientKey = msg.ClientKey
	}

	sqlStr, args, err := psql.
		Insert("messages").
		Columns("sender_id", "receiver_id", "sender_type", "receiver_type", "content", "attachment", "attachment_name", "client_key").
		Values(msg.SenderID, msg.ReceiverID, string(msg.SenderType), string(msg.ReceiverType), msg.Content, msg.Attachment, msg.AttachmentName, clientKey).
		Suffix("RETURNING id, created_at").
		ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "build insert")
	}

	m := &model.Message{
		SenderID:       msg.SenderID,
		ReceiverID:     msg.ReceiverID,
		SenderType:     msg.SenderType,
		ReceiverType:   msg.ReceiverType,
		Content:        msg.Content,
		Attachment:     msg.Attachment,
		AttachmentName: msg.AttachmentName,
		ClientKey:      msg.ClientKey,
	}
	if err := r.pool.QueryRow(ctx, sqlStr, args...).Scan(&m.ID, &m.CreatedAt); err != nil {
		if uniqueViolation(err, "idx_messages_client_key") {
			return nil, model.ErrDuplicateMessage
		}
		return nil, errors.Wrap(err, "insert message")
	}
	return m, nil
}

// Query returns one direction, oldest first. Never nil.
func (r *MessageRepository) Query(ctx context.Context, sender, receiver model.Participant) ([]model.Message, error) {
	if sender.ID <= 0 || receiver.ID <= 0 {
		return nil, model.ErrMissingParticipant
	}

	sqlStr, args, err := psql.
		Select(messageColumns...).
		From("messages").
		Where(sq.Eq{
			"sender_id":     sender.ID,
			"sender_type":   string(sender.Role),
			"receiver_id":   receiver.ID,
			"receiver_type": string(receiver.Role),
		}).
		OrderBy("created_at ASC", "id ASC").
		ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "build query")
	}

	rows, err := r.pool.Query(ctx, sqlStr, args...)
	if err != nil {
		return nil, errors.Wrap(err, "query messages")
	}
	defer rows.Close()

	msgs := []model.Message{}
	for rows.Next() {
		var m model.Message
		if err := rows.Scan(&m.ID, &m.SenderID, &m.ReceiverID, &m.SenderType, &m.ReceiverType,
			&m.Content, &m.Attachment, &m.AttachmentName, &m.ClientKey, &m.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "scan message")
		}
		msgs = append(msgs, m)
	}
	return msgs, errors.Wrap(rows.Err(), "iterate messages")
}

// DeleteForStudent removes every message the student sent or received.
func (r *MessageRepository) DeleteForStudent(ctx context.Context, studentID int) (int64, error) {
	sqlStr, args, err := psql.
		Delete("messages").
		Where(sq.Or{
			sq.Eq{"sender_type": string(model.RoleStudent), "sender_id": studentID},
			sq.Eq{"receiver_type": string(model.RoleStudent), "receiver_id": studentID},
		}).
		ToSql()
	if err != nil {
		return 0, errors.Wrap(err, "build delete")
	}
	tag, err := r.pool.Exec(ctx, sqlStr, args...)
	if err != nil {
		return 0, errors.Wrap(err, "delete messages")
	}
	return tag.RowsAffected(), nil
}
