package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ajbunielteam/SysGranTES/internal/model"
	"github.com/ajbunielteam/SysGranTES/internal/repository"

	"gopkg.in/gomail.v2"
)

type fakeMailer struct {
	mu   sync.Mutex
	sent []*gomail.Message
	err  error
}

func (m *fakeMailer) DialAndSend(msgs ...*gomail.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msgs...)
	return nil
}

type fakeSMS struct{ err error }

func (f fakeSMS) SendSMS(context.Context, string, string) error { return f.err }

func TestCredentialsResultMessages(t *testing.T) {
	tests := []struct {
		name        string
		mailErr     error
		smsErr      error
		phone       string
		wantSuccess bool
		wantMessage string
	}{
		{"both", nil, nil, "09171234567", true, "Email and SMS sent successfully"},
		{"email only", nil, nil, "", true, "Email sent, SMS failed"},
		{"sms only", errors.New("smtp down"), nil, "09171234567", true, "SMS sent, Email failed"},
		{"neither", errors.New("smtp down"), errors.New("gateway down"), "09171234567", false, "Failed to send credentials"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mailer := &fakeMailer{err: tt.mailErr}
			svc := NewCredentialsService(mailer, fakeSMS{err: tt.smsErr}, "noreply@grantes.edu")

			res, err := svc.Send(context.Background(), model.CredentialsRequest{
				Email: "ana@example.com", PhoneNumber: tt.phone, StudentName: "Ana Cruz",
				AwardNumber: "GT-2024-000001", Password: "secret", StudentID: "2021-0001",
			})
			if err != nil {
				t.Fatalf("Send: %v", err)
			}
			if res.Success != tt.wantSuccess || res.Message != tt.wantMessage {
				t.Fatalf("result = %+v", res)
			}
		})
	}
}

func TestCredentialsRequiresFields(t *testing.T) {
	svc := NewCredentialsService(&fakeMailer{}, nil, "noreply@grantes.edu")
	_, err := svc.Send(context.Background(), model.CredentialsRequest{Email: "a@b.c"})
	if !errors.Is(err, ErrMissingCredentialFields) {
		t.Fatalf("err = %v", err)
	}
}

func TestCredentialsEmailBody(t *testing.T) {
	svc := NewCredentialsService(nil, nil, "noreply@grantes.edu")
	m, err := svc.buildEmail(model.CredentialsRequest{
		Email: "ana@example.com", StudentName: "Ana <Cruz>", AwardNumber: "GT-1", Password: "pw", StudentID: "S1",
	})
	if err != nil {
		t.Fatalf("buildEmail: %v", err)
	}
	if got := m.GetHeader("Subject"); len(got) != 1 || got[0] != credentialsSubject {
		t.Fatalf("subject = %v", got)
	}
	var sb strings.Builder
	if _, err := m.WriteTo(&sb); err != nil {
		t.Fatalf("WriteTo: %v", err)
	}
	body := sb.String()
	if !strings.Contains(body, "text/html") || !strings.Contains(body, "text/plain") {
		t.Fatal("missing alternative bodies")
	}

	var html strings.Builder
	if err := credentialsHTML.Execute(&html, model.CredentialsRequest{StudentName: "Ana <Cruz>"}); err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.Contains(html.String(), "Ana &lt;Cruz&gt;") {
		t.Fatal("html body not escaped")
	}
}

type fakeApps struct {
	mu     sync.Mutex
	nextID int64
	apps   map[int64]*model.Application
}

func newFakeApps() *fakeApps { return &fakeApps{apps: make(map[int64]*model.Application)} }

func (f *fakeApps) Exists(_ context.Context, email, studentID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.apps {
		if strings.EqualFold(a.Email, email) || (studentID != "" && a.StudentID == studentID) {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeApps) Create(_ context.Context, a *model.Application) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	cp := *a
	cp.ID = f.nextID
	f.apps[cp.ID] = &cp
	return cp.ID, nil
}

func (f *fakeApps) Get(_ context.Context, id int64) (*model.Application, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.apps[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (f *fakeApps) List(context.Context, string) ([]model.Application, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []model.Application{}
	for _, a := range f.apps {
		out = append(out, *a)
	}
	return out, nil
}

func (f *fakeApps) SetStatus(_ context.Context, id int64, status string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.apps[id]
	if !ok {
		return repository.ErrNotFound
	}
	a.Status = status
	return nil
}

func (f *fakeApps) MarkApproved(_ context.Context, id int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.apps[id]
	if !ok || a.Status == model.ApplicationApproved {
		return false, nil
	}
	a.Status = model.ApplicationApproved
	return true, nil
}

func (f *fakeApps) Delete(_ context.Context, id int64) (*string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.apps[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	delete(f.apps, id)
	return a.PhotoPath, nil
}

type fakeStudents struct {
	mu       sync.Mutex
	created  []*model.Student
	takenFor int
	err      error
}

func (f *fakeStudents) Create(_ context.Context, s *model.Student) (*model.Student, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if f.takenFor > 0 {
		f.takenFor--
		return nil, repository.ErrAwardNumberTaken
	}
	cp := *s
	cp.ID = len(f.created) + 1
	f.created = append(f.created, &cp)
	return &cp, nil
}

func newApplicationService(t *testing.T, apps *fakeApps, students *fakeStudents, mailer *fakeMailer) *ApplicationService {
	t.Helper()
	creds := NewCredentialsService(mailer, fakeSMS{}, "noreply@grantes.edu")
	svc := NewApplicationService(apps, students, creds, NewAdminAlerts(""), filepath.Join(t.TempDir(), "uploads"), 5*1024*1024)
	svc.now = func() time.Time { return time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC) }
	return svc
}

func TestSubmitOneApplicationPerApplicant(t *testing.T) {
	apps := newFakeApps()
	svc := newApplicationService(t, apps, &fakeStudents{}, &fakeMailer{})
	ctx := context.Background()

	app, err := svc.Submit(ctx, model.ApplicationRequest{Email: " ana@example.com ", StudentID: "2021-0001", GivenName: "Ana", Birthdate: "2003-04-05"}, nil)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if app.ID == 0 || app.Status != model.ApplicationPending || app.Birthdate == nil || app.Birthdate.Day() != 5 {
		t.Fatalf("app = %+v", app)
	}
	if !app.SubmittedAt.Equal(svc.now()) {
		t.Errorf("submittedAt = %v", app.SubmittedAt)
	}

	for _, req := range []model.ApplicationRequest{
		{Email: "ANA@example.com"},
		{Email: "other@example.com", StudentID: "2021-0001"},
	} {
		if _, err := svc.Submit(ctx, req, nil); !errors.Is(err, repository.ErrAlreadyApplied) {
			t.Fatalf("second submit %+v: err = %v", req, err)
		}
	}
	if _, err := svc.Submit(ctx, model.ApplicationRequest{}, nil); !errors.Is(err, ErrMissingEmail) {
		t.Fatalf("empty email: %v", err)
	}
}

func TestSubmitPhotoValidation(t *testing.T) {
	tests := []struct {
		name    string
		photo   PhotoUpload
		wantErr error
	}{
		{"png accepted", PhotoUpload{Filename: "me.PNG", ContentType: "image/png", Size: 1024}, nil},
		{"pdf rejected", PhotoUpload{Filename: "me.pdf", ContentType: "application/pdf", Size: 1024}, ErrInvalidPhotoType},
		{"too large", PhotoUpload{Filename: "me.jpg", ContentType: "image/jpeg", Size: 6 * 1024 * 1024}, ErrPhotoTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newApplicationService(t, newFakeApps(), &fakeStudents{}, &fakeMailer{})
			var savedTo string
			photo := tt.photo
			photo.Save = func(dst string) error {
				savedTo = dst
				return os.WriteFile(dst, []byte("img"), 0o644)
			}

			app, err := svc.Submit(context.Background(), model.ApplicationRequest{Email: "ana@example.com"}, &photo)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if tt.wantErr != nil {
				if savedTo != "" {
					t.Fatal("rejected photo was written")
				}
				return
			}
			if app.PhotoPath == nil || !strings.HasSuffix(*app.PhotoPath, ".png") || !strings.Contains(*app.PhotoPath, "photo_") {
				t.Fatalf("photo path = %v", app.PhotoPath)
			}
			if _, err := os.Stat(savedTo); err != nil {
				t.Fatalf("photo not on disk: %v", err)
			}

			if err := svc.Delete(context.Background(), app.ID); err != nil {
				t.Fatalf("Delete: %v", err)
			}
			if _, err := os.Stat(savedTo); !os.IsNotExist(err) {
				t.Fatalf("photo left behind after delete: %v", err)
			}
		})
	}
}

func TestDeleteMissingApplication(t *testing.T) {
	svc := newApplicationService(t, newFakeApps(), &fakeStudents{}, &fakeMailer{})
	if err := svc.Delete(context.Background(), 99); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("err = %v", err)
	}
}

func TestApproveCreatesStudentAndSendsCredentials(t *testing.T) {
	ctx := context.Background()
	apps := newFakeApps()
	students := &fakeStudents{takenFor: 1}
	mailer := &fakeMailer{}
	svc := newApplicationService(t, apps, students, mailer)

	app, _ := svc.Submit(ctx, model.ApplicationRequest{Email: "ana@example.com", GivenName: "Ana", LastName: "Cruz", ContactNumber: "0917"}, nil)

	res, err := svc.Approve(ctx, app.ID)
	if err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if res.Student == nil || !strings.HasPrefix(res.Student.AwardNumber, "GT-2024-") {
		t.Fatalf("student = %+v", res.Student)
	}
	if len(res.TemporaryPassword) != 10 || res.Student.PasswordHash == res.TemporaryPassword {
		t.Fatalf("password handling: %q", res.TemporaryPassword)
	}
	if !res.Credentials.EmailSent || !res.Credentials.SMSSent || len(mailer.sent) != 1 {
		t.Fatalf("credentials = %+v, mails = %d", res.Credentials, len(mailer.sent))
	}

	stored, _ := apps.Get(ctx, app.ID)
	if stored.Status != model.ApplicationApproved {
		t.Fatalf("status = %q", stored.Status)
	}
	if _, err := svc.Approve(ctx, app.ID); !errors.Is(err, ErrAlreadyApproved) {
		t.Fatalf("second approve: %v", err)
	}
}

func TestConcurrentApproveMakesOneStudent(t *testing.T) {
	ctx := context.Background()
	apps := newFakeApps()
	students := &fakeStudents{}
	svc := newApplicationService(t, apps, students, &fakeMailer{})
	app, _ := svc.Submit(ctx, model.ApplicationRequest{Email: "ana@example.com", GivenName: "Ana"}, nil)

	const admins = 8
	errs := make(chan error, admins)
	var wg sync.WaitGroup
	for i := 0; i < admins; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Approve(ctx, app.ID)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	approved := 0
	for err := range errs {
		switch {
		case err == nil:
			approved++
		case !errors.Is(err, ErrAlreadyApproved):
			t.Fatalf("approve: %v", err)
		}
	}
	if approved != 1 || len(students.created) != 1 {
		t.Fatalf("approved = %d, students = %d, want 1 each", approved, len(students.created))
	}
}

func TestApproveReleasesClaimWhenLoginFails(t *testing.T) {
	ctx := context.Background()
	apps := newFakeApps()
	students := &fakeStudents{err: errors.New("insert failed")}
	svc := newApplicationService(t, apps, students, &fakeMailer{})
	app, _ := svc.Submit(ctx, model.ApplicationRequest{Email: "ana@example.com"}, nil)

	if _, err := svc.Approve(ctx, app.ID); err == nil {
		t.Fatal("approve succeeded without a student login")
	}
	stored, _ := apps.Get(ctx, app.ID)
	if stored.Status != model.ApplicationPending {
		t.Fatalf("status = %q, want pending so it can be retried", stored.Status)
	}

	students.err = nil
	if _, err := svc.Approve(ctx, app.ID); err != nil {
		t.Fatalf("retry: %v", err)
	}
}

func TestEventBusLocalDelivery(t *testing.T) {
	bus := NewEventBus(nil)
	got := make(chan string, 1)
	if err := bus.Handle("t", func(data []byte) { got <- string(data) }); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if err := bus.Publish("t", map[string]int{"n": 1}); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if v := <-got; v != `{"n":1}` {
		t.Fatalf("payload = %s", v)
	}
	if err := bus.Publish("nobody-listens", 1); err != nil {
		t.Fatalf("publish without handler: %v", err)
	}
	bus.Close()
}

func TestParseWebhookURL(t *testing.T) {
	id, token, err := parseWebhookURL("https://discord.com/api/webhooks/123456/abc-DEF")
	if err != nil || id != "123456" || token != "abc-DEF" {
		t.Fatalf("got %q %q %v", id, token, err)
	}
	if _, _, err := parseWebhookURL("https://example.com/hooks"); err == nil {
		t.Fatal("accepted a non-webhook url")
	}
	if NewAdminAlerts("").Enabled() {
		t.Fatal("alerts enabled without a url")
	}
}

func TestApplicationEmbedFields(t *testing.T) {
	e := applicationEmbed(&model.Application{GivenName: "Ana", LastName: "Cruz", Email: "ana@example.com", IsPWD: true})
	if e.Description != "Ana Cruz (ana@example.com)" {
		t.Fatalf("description = %q", e.Description)
	}
	if len(e.Fields) != 5 || e.Fields[0].Value != "-" {
		t.Fatalf("fields = %+v", e.Fields)
	}
}

func TestSameViewer(t *testing.T) {
	if !sameViewer(model.AsAdmin(1), model.AsAdmin(7)) {
		t.Error("admins are one viewer")
	}
	if sameViewer(model.AsStudent(1), model.AsStudent(2)) {
		t.Error("different students matched")
	}
	if sameViewer(model.AsStudent(1), model.AsAdmin(1)) {
		t.Error("role ignored")
	}
}
