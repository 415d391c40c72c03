package repository

import (
	"context"

	"github.com/ajbunielteam/SysGranTES/internal/model"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
)

var ErrAlreadyApplied = errors.New("application already submitted")

var applicationColumns = []string{
	"id", "student_id", "last_name", "given_name", "ext_name", "sex", "birthdate",
	"program_name", "year_level", "father_name", "mother_name", "family_monthly_income::float8",
	"income_range", "province", "municipality", "street_barangay", "zip_code",
	"contact_number", "email", "photo_path", "is_pwd", "is_indigenous", "status", "submitted_at",
}

type ApplicationRepository struct {
	pool *pgxpool.Pool
}

func NewApplicationRepository(pool *pgxpool.Pool) *ApplicationRepository {
	return &ApplicationRepository{pool: pool}
}

func scanApplication(row pgx.Row) (*model.Application, error) {
	a := &model.Application{}
	err := row.Scan(&a.ID, &a.StudentID, &a.LastName, &a.GivenName, &a.ExtName, &a.Sex, &a.Birthdate,
		&a.ProgramName, &a.YearLevel, &a.FatherName, &a.MotherName, &a.FamilyMonthlyIncome,
		&a.IncomeRange, &a.Province, &a.Municipality, &a.StreetBarangay, &a.ZipCode,
		&a.ContactNumber, &a.Email, &a.PhotoPath, &a.IsPWD, &a.IsIndigenous, &a.Status, &a.SubmittedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return a, nil
}

// Exists reports whether an application with this email, or this student id
// when one is given, was already submitted.
func (r *ApplicationRepository) Exists(ctx context.Context, email, studentID string) (bool, error) {
	cond := sq.Or{sq.Expr("LOWER(email) = LOWER(?)", email)}
	if studentID != "" {
		cond = append(cond, sq.Eq{"student_id": studentID})
	}
	sqlStr, args, err := psql.Select("1").From("applications").Where(cond).Limit(1).ToSql()
	if err != nil {
		return false, errors.Wrap(err, "build exists query")
	}
	var one int
	err = r.pool.QueryRow(ctx, sqlStr, args...).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrap(err, "check existing application")
	}
	return true, nil
}

func (r *ApplicationRepository) Create(ctx context.Context, a *model.Application) (int64, error) {
	sqlStr, args, err := psql.
		Insert("applications").
		Columns("student_id", "last_name", "given_name", "ext_name", "sex", "birthdate",
			"program_name", "year_level", "father_name", "mother_name", "family_monthly_income",
			"income_range", "province", "municipality", "street_barangay", "zip_code",
			"contact_number", "email", "photo_path", "is_pwd", "is_indigenous", "status", "submitted_at").
		Values(a.StudentID, a.LastName, a.GivenName, a.ExtName, a.Sex, a.Birthdate,
			a.ProgramName, a.YearLevel, a.FatherName, a.MotherName, a.FamilyMonthlyIncome,
			a.IncomeRange, a.Province, a.Municipality, a.StreetBarangay, a.ZipCode,
			a.ContactNumber, a.Email, a.PhotoPath, a.IsPWD, a.IsIndigenous, a.Status, a.SubmittedAt).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return 0, errors.Wrap(err, "build insert")
	}
	var id int64
	if err := r.pool.QueryRow(ctx, sqlStr, args...).Scan(&id); err != nil {
		if uniqueViolation(err, "") {
			return 0, ErrAlreadyApplied
		}
		return 0, errors.Wrap(err, "insert application")
	}
	return id, nil
}

func (r *ApplicationRepository) Get(ctx context.Context, id int64) (*model.Application, error) {
	sqlStr, args, err := psql.Select(applicationColumns...).From("applications").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "build get")
	}
	return scanApplication(r.pool.QueryRow(ctx, sqlStr, args...))
}

// List returns applications newest first, optionally filtered by status.
func (r *ApplicationRepository) List(ctx context.Context, status string) ([]model.Application, error) {
	q := psql.Select(applicationColumns...).From("applications").OrderBy("submitted_at DESC", "id DESC")
	if status != "" {
		q = q.Where(sq.Eq{"status": status})
	}
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "build list")
	}
	rows, err := r.pool.Query(ctx, sqlStr, args...)
	if err != nil {
		return nil, errors.Wrap(err, "list applications")
	}
	defer rows.Close()

	apps := []model.Application{}
	for rows.Next() {
		a, err := scanApplication(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan application")
		}
		apps = append(apps, *a)
	}
	return apps, errors.Wrap(rows.Err(), "iterate applications")
}

func (r *ApplicationRepository) SetStatus(ctx context.Context, id int64, status string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE applications SET status = $2, updated_at = NOW() WHERE id = $1`, id, status)
	if err != nil {
		return errors.Wrap(err, "update application status")
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkApproved moves the application to approved unless it already is.
// It reports false when another approval got there first.
func (r *ApplicationRepository) MarkApproved(ctx context.Context, id int64) (bool, error) {
	sqlStr, args, err := psql.Update("applications").
		Set("status", model.ApplicationApproved).
		Set("updated_at", sq.Expr("NOW()")).
		Where(sq.Eq{"id": id}).
		Where(sq.NotEq{"status": model.ApplicationApproved}).
		ToSql()
	if err != nil {
		return false, errors.Wrap(err, "build approve")
	}
	tag, err := r.pool.Exec(ctx, sqlStr, args...)
	if err != nil {
		return false, errors.Wrap(err, "approve application")
	}
	return tag.RowsAffected() == 1, nil
}

// Delete removes the application and returns its photo path, if any, so
// the caller can clean up the file.
func (r *ApplicationRepository) Delete(ctx context.Context, id int64) (*string, error) {
	var photo *string
	err := r.pool.QueryRow(ctx, `DELETE FROM applications WHERE id = $1 RETURNING photo_path`, id).Scan(&photo)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "delete application")
	}
	return photo, nil
}
