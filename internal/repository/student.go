package repository

import (
	"context"

	"github.com/ajbunielteam/SysGranTES/internal/model"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
)

var ErrAwardNumberTaken = errors.New("award number already assigned")

const studentColumns = `id, student_id, first_name, last_name, email, contact_number, award_number,
	password_hash, application_id, last_login_at, created_at`

type StudentRepository struct {
	pool *pgxpool.Pool
}

func NewStudentRepository(pool *pgxpool.Pool) *StudentRepository {
	return &StudentRepository{pool: pool}
}

func scanStudent(row pgx.Row) (*model.Student, error) {
	s := &model.Student{}
	err := row.Scan(&s.ID, &s.StudentID, &s.FirstName, &s.LastName, &s.Email, &s.ContactNumber,
		&s.AwardNumber, &s.PasswordHash, &s.ApplicationID, &s.LastLoginAt, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return s, nil
}

func (r *StudentRepository) Create(ctx context.Context, s *model.Student) (*model.Student, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO students (student_id, first_name, last_name, email, contact_number, award_number, password_hash, application_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING `+studentColumns,
		s.StudentID, s.FirstName, s.LastName, s.Email, s.ContactNumber, s.AwardNumber, s.PasswordHash, s.ApplicationID)
	created, err := scanStudent(row)
	if err != nil {
		if uniqueViolation(err, "") {
			return nil, ErrAwardNumberTaken
		}
		return nil, errors.Wrap(err, "insert student")
	}
	return created, nil
}

func (r *StudentRepository) GetStudent(ctx context.Context, id int) (*model.Student, error) {
	return scanStudent(r.pool.QueryRow(ctx, `SELECT `+studentColumns+` FROM students WHERE id = $1`, id))
}

func (r *StudentRepository) GetByAwardNumber(ctx context.Context, awardNumber string) (*model.Student, error) {
	return scanStudent(r.pool.QueryRow(ctx, `SELECT `+studentColumns+` FROM students WHERE award_number = $1`, awardNumber))
}

// ListStudents returns the roster ordered by name.
func (r *StudentRepository) ListStudents(ctx context.Context) ([]model.Student, error) {
	sqlStr, args, err := psql.
		Select(studentColumns).
		From("students").
		OrderBy("last_name", "first_name", "id").
		ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "build roster query")
	}
	rows, err := r.pool.Query(ctx, sqlStr, args...)
	if err != nil {
		return nil, errors.Wrap(err, "list students")
	}
	defer rows.Close()

	students := []model.Student{}
	for rows.Next() {
		s, err := scanStudent(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan student")
		}
		students = append(students, *s)
	}
	return students, errors.Wrap(rows.Err(), "iterate students")
}

func (r *StudentRepository) TouchLogin(ctx context.Context, id int) error {
	_, err := r.pool.Exec(ctx, `UPDATE students SET last_login_at = NOW() WHERE id = $1`, id)
	return err
}

// Delete removes the student and their messages in one transaction.
// ErrNotFound means the student was already gone.
func (r *StudentRepository) Delete(ctx context.Context, id int) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return errors.Wrap(err, "begin delete student")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	sqlStr, args, err := psql.
		Delete("messages").
		Where(sq.Or{
			sq.Eq{"sender_type": string(model.RoleStudent), "sender_id": id},
			sq.Eq{"receiver_type": string(model.RoleStudent), "receiver_id": id},
		}).
		ToSql()
	if err != nil {
		return errors.Wrap(err, "build message cascade")
	}
	if _, err := tx.Exec(ctx, sqlStr, args...); err != nil {
		return errors.Wrap(err, "delete student messages")
	}

	tag, err := tx.Exec(ctx, `DELETE FROM students WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, "delete student")
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return errors.Wrap(tx.Commit(ctx), "commit delete student")
}
