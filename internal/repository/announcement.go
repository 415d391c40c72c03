package repository

import (
	"context"

	"github.com/ajbunielteam/SysGranTES/internal/model"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
)

type AnnouncementRepository struct {
	pool *pgxpool.Pool
}

func NewAnnouncementRepository(pool *pgxpool.Pool) *AnnouncementRepository {
	return &AnnouncementRepository{pool: pool}
}

func (r *AnnouncementRepository) Create(ctx context.Context, a *model.Announcement) error {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO announcements (title, body, author_id)
		VALUES ($1, $2, $3)
		RETURNING id, created_at
	`, a.Title, a.Body, a.AuthorID).Scan(&a.ID, &a.CreatedAt)
	return errors.Wrap(err, "insert announcement")
}

// Recent returns the newest announcements first.
func (r *AnnouncementRepository) Recent(ctx context.Context, limit int) ([]model.Announcement, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	sqlStr, args, err := psql.
		Select("id", "title", "body", "author_id", "created_at").
		From("announcements").
		OrderBy("created_at DESC", "id DESC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "build announcements query")
	}
	rows, err := r.pool.Query(ctx, sqlStr, args...)
	if err != nil {
		return nil, errors.Wrap(err, "list announcements")
	}
	defer rows.Close()

	out := []model.Announcement{}
	for rows.Next() {
		var a model.Announcement
		if err := rows.Scan(&a.ID, &a.Title, &a.Body, &a.AuthorID, &a.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "scan announcement")
		}
		out = append(out, a)
	}
	return out, errors.Wrap(rows.Err(), "iterate announcements")
}
