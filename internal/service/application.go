package service

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/ajbunielteam/SysGranTES/internal/logger"
	"github.com/ajbunielteam/SysGranTES/internal/model"
	"github.com/ajbunielteam/SysGranTES/internal/repository"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

var (
	ErrMissingEmail     = errors.New("email is required")
	ErrInvalidPhotoType = errors.New("Invalid file type. Please upload a JPG, PNG, or GIF image.")
	ErrPhotoTooLarge    = errors.New("File size exceeds 5MB limit.")
	ErrAlreadyApproved  = errors.New("application already approved")
)

var photoTypes = map[string]string{
	"image/jpeg": "jpg",
	"image/jpg":  "jpg",
	"image/png":  "png",
	"image/gif":  "gif",
}

type ApplicationStore interface {
	Exists(ctx context.Context, email, studentID string) (bool, error)
	Create(ctx context.Context, a *model.Application) (int64, error)
	Get(ctx context.Context, id int64) (*model.Application, error)
	List(ctx context.Context, status string) ([]model.Application, error)
	SetStatus(ctx context.Context, id int64, status string) error
	MarkApproved(ctx context.Context, id int64) (bool, error)
	Delete(ctx context.Context, id int64) (*string, error)
}

type StudentCreator interface {
	Create(ctx context.Context, s *model.Student) (*model.Student, error)
}

// PhotoUpload is an applicant photo still held by the transport. Save
// writes it to dst.
type PhotoUpload struct {
	Filename    string
	ContentType string
	Size        int64
	Save        func(dst string) error
}

type ApplicationService struct {
	apps      ApplicationStore
	students  StudentCreator
	creds     *CredentialsService
	alerts    *AdminAlerts
	uploadDir string
	maxPhoto  int64
	now       func() time.Time
	log       *zap.Logger
}

func NewApplicationService(apps ApplicationStore, students StudentCreator, creds *CredentialsService, alerts *AdminAlerts, uploadDir string, maxPhoto int64) *ApplicationService {
	if maxPhoto <= 0 {
		maxPhoto = 5 * 1024 * 1024
	}
	return &ApplicationService{
		apps:      apps,
		students:  students,
		creds:     creds,
		alerts:    alerts,
		uploadDir: uploadDir,
		maxPhoto:  maxPhoto,
		now:       time.Now,
		log:       logger.Named("applications"),
	}
}

// Submit stores a new application. Only one application per email or
// student id is accepted.
func (s *ApplicationService) Submit(ctx context.Context, req model.ApplicationRequest, photo *PhotoUpload) (*model.Application, error) {
	req.Email = strings.TrimSpace(req.Email)
	req.StudentID = strings.TrimSpace(req.StudentID)
	if req.Email == "" {
		return nil, ErrMissingEmail
	}

	exists, err := s.apps.Exists(ctx, req.Email, req.StudentID)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, repository.ErrAlreadyApplied
	}

	app := &model.Application{
		StudentID:           req.StudentID,
		LastName:            strings.TrimSpace(req.LastName),
		GivenName:           strings.TrimSpace(req.GivenName),
		ExtName:             strings.TrimSpace(req.ExtName),
		Sex:                 req.Sex,
		Birthdate:           parseDate(req.Birthdate),
		ProgramName:         req.ProgramName,
		YearLevel:           req.YearLevel,
		FatherName:          req.FatherName,
		MotherName:          req.MotherName,
		FamilyMonthlyIncome: req.FamilyMonthlyIncome,
		IncomeRange:         req.IncomeRange,
		Province:            req.Province,
		Municipality:        req.Municipality,
		StreetBarangay:      req.StreetBarangay,
		ZipCode:             req.ZipCode,
		ContactNumber:       strings.TrimSpace(req.ContactNumber),
		Email:               req.Email,
		IsPWD:               req.IsPWD,
		IsIndigenous:        req.IsIndigenous,
		Status:              model.ApplicationPending,
		SubmittedAt:         s.parseSubmittedAt(req.SubmittedAt),
	}

	var stored string
	if photo != nil && photo.Size > 0 {
		rel, abs, err := s.savePhoto(photo)
		if err != nil {
			return nil, err
		}
		app.PhotoPath, stored = &rel, abs
	}

	id, err := s.apps.Create(ctx, app)
	if err != nil {
		if stored != "" {
			_ = os.Remove(stored)
		}
		return nil, err
	}
	app.ID = id

	s.log.Info("application submitted", zap.Int64("id", id), zap.String("email", app.Email))
	s.alerts.ApplicationSubmitted(app)
	return app, nil
}

// savePhoto validates and writes the upload. It returns the path stored
// with the application and the file's location on disk.
func (s *ApplicationService) savePhoto(photo *PhotoUpload) (string, string, error) {
	ext, ok := photoTypes[strings.ToLower(photo.ContentType)]
	if !ok {
		return "", "", ErrInvalidPhotoType
	}
	if photo.Size > s.maxPhoto {
		return "", "", ErrPhotoTooLarge
	}
	if e := strings.TrimPrefix(strings.ToLower(filepath.Ext(photo.Filename)), "."); e != "" {
		if _, known := photoTypes["image/"+e]; known {
			ext = e
		}
	}

	if err := os.MkdirAll(s.uploadDir, 0o755); err != nil {
		return "", "", errors.Wrap(err, "create upload dir")
	}
	name := fmt.Sprintf("photo_%d_%s.%s", s.now().Unix(), uuid.NewString(), ext)
	abs := filepath.Join(s.uploadDir, name)
	if err := photo.Save(abs); err != nil {
		return "", "", errors.Wrap(err, "save photo")
	}
	return path.Join(filepath.ToSlash(s.uploadDir), name), abs, nil
}

func parseDate(v string) *time.Time {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	for _, layout := range []string{"2006-01-02", time.RFC3339, "01/02/2006"} {
		if t, err := time.Parse(layout, v); err == nil {
			d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
			return &d
		}
	}
	return nil
}

func (s *ApplicationService) parseSubmittedAt(v string) time.Time {
	v = strings.TrimSpace(v)
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02 15:04:05", "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, v); err == nil {
			return t
		}
	}
	return s.now()
}

func (s *ApplicationService) List(ctx context.Context, status string) ([]model.Application, error) {
	return s.apps.List(ctx, strings.TrimSpace(status))
}

// Delete removes the application and its photo.
func (s *ApplicationService) Delete(ctx context.Context, id int64) error {
	if id <= 0 {
		return repository.ErrNotFound
	}
	photo, err := s.apps.Delete(ctx, id)
	if err != nil {
		return err
	}
	if photo != nil && *photo != "" {
		if err := os.Remove(filepath.Join(s.uploadDir, path.Base(*photo))); err != nil && !os.IsNotExist(err) {
			s.log.Warn("remove application photo", zap.String("path", *photo), zap.Error(err))
		}
	}
	return nil
}

// Approve turns an application into a student login and sends the
// credentials out.
func (s *ApplicationService) Approve(ctx context.Context, id int64) (*model.ApprovalResult, error) {
	app, err := s.apps.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if app.Status == model.ApplicationApproved {
		return nil, ErrAlreadyApproved
	}

	password, err := randomString(passwordAlphabet, 10)
	if err != nil {
		return nil, err
	}
	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}

	// Claim the application before creating the login, so two approvals
	// racing past the check above make one student.
	claimed, err := s.apps.MarkApproved(ctx, app.ID)
	if err != nil {
		return nil, err
	}
	if !claimed {
		return nil, ErrAlreadyApproved
	}

	st, err := s.createStudent(ctx, app, hash)
	if err != nil {
		if rerr := s.apps.SetStatus(ctx, app.ID, app.Status); rerr != nil {
			s.log.Error("release approval claim", zap.Int64("application", app.ID), zap.Error(rerr))
		}
		return nil, err
	}

	creds, err := s.creds.Send(ctx, model.CredentialsRequest{
		Email:       st.Email,
		PhoneNumber: st.ContactNumber,
		StudentName: st.DisplayName(),
		AwardNumber: st.AwardNumber,
		Password:    password,
		StudentID:   st.StudentID,
	})
	if err != nil {
		s.log.Warn("credentials not sent", zap.Int("student", st.ID), zap.Error(err))
	}

	s.log.Info("application approved", zap.Int64("application", app.ID), zap.Int("student", st.ID))
	s.alerts.ApplicationApproved(st, creds)
	return &model.ApprovalResult{Student: st, TemporaryPassword: password, Credentials: creds}, nil
}

// createStudent makes the login for app, retrying award number clashes.
func (s *ApplicationService) createStudent(ctx context.Context, app *model.Application, hash string) (*model.Student, error) {
	appID := app.ID
	for attempt := 0; attempt < 3; attempt++ {
		award, err := s.awardNumber()
		if err != nil {
			return nil, err
		}
		st, err := s.students.Create(ctx, &model.Student{
			StudentID:     app.StudentID,
			FirstName:     app.GivenName,
			LastName:      app.LastName,
			Email:         app.Email,
			ContactNumber: app.ContactNumber,
			AwardNumber:   award,
			PasswordHash:  hash,
			ApplicationID: &appID,
		})
		if err == nil {
			return st, nil
		}
		if !errors.Is(err, repository.ErrAwardNumberTaken) {
			return nil, err
		}
	}
	return nil, repository.ErrAwardNumberTaken
}

const (
	passwordAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnpqrstuvwxyz23456789"
	digits           = "0123456789"
)

func (s *ApplicationService) awardNumber() (string, error) {
	n, err := randomString(digits, 6)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("GT-%d-%s", s.now().Year(), n), nil
}

func randomString(alphabet string, n int) (string, error) {
	b := make([]byte, n)
	max := big.NewInt(int64(len(alphabet)))
	for i := range b {
		k, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", errors.Wrap(err, "random")
		}
		b[i] = alphabet[k.Int64()]
	}
	return string(b), nil
}
