package service

import (
	"bytes"
	"context"
	"fmt"
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"

	"github.com/ajbunielteam/SysGranTES/internal/logger"
	"github.com/ajbunielteam/SysGranTES/internal/model"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gopkg.in/gomail.v2"
)

var ErrMissingCredentialFields = errors.New("missing required fields")

const credentialsSubject = "GranTES - Your Account Credentials"

var credentialsHTML = htmltemplate.Must(htmltemplate.New("html").Parse(`<html>
<body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333;">
  <div style="max-width: 600px; margin: 0 auto; padding: 20px;">
    <h2 style="background-color: #3b82f6; color: white; padding: 20px; text-align: center;">GranTES Account Credentials</h2>
    <p>Dear {{.StudentName}},</p>
    <p>Congratulations! Your application for the <strong>GranTES (Grant for Tertiary Education Students)</strong> has been approved.</p>
    <p>Your account has been created. Please find your login credentials below:</p>
    <div style="background-color: white; padding: 15px; border-left: 4px solid #3b82f6;">
      <p><strong>Student ID:</strong> {{.StudentID}}</p>
      <p><strong>Award Number:</strong> {{.AwardNumber}}</p>
      <p><strong>Password:</strong> {{.Password}}</p>
    </div>
    <p>You can now login to the GranTES system using your <strong>Award Number</strong> and <strong>Password</strong>.</p>
    <p><strong>Please keep your credentials secure and do not share them with anyone.</strong></p>
    <p>Best regards,<br>GranTES Administration</p>
    <p style="text-align: center; color: #666; font-size: 12px;">This is an automated message. Please do not reply to this email.</p>
  </div>
</body>
</html>`))

var credentialsText = texttemplate.Must(texttemplate.New("text").Parse(`Dear {{.StudentName}},

Congratulations! Your application for the GranTES (Grant for Tertiary Education Students) has been approved.

Your account has been created. Please find your login credentials below:

Student ID: {{.StudentID}}
Award Number: {{.AwardNumber}}
Password: {{.Password}}

You can now login to the GranTES system using your Award Number and Password.

Please keep your credentials secure and do not share them with anyone.

Best regards,
GranTES Administration`))

const credentialsSMS = "GranTES: Your application is approved. Award Number: %s, Password: %s. Login at: grantes.edu"

// MailSender is satisfied by *gomail.Dialer.
type MailSender interface {
	DialAndSend(m ...*gomail.Message) error
}

// NewSMTPMailer returns nil when SMTP is not configured.
func NewSMTPMailer(host string, port int, user, password string) MailSender {
	if host == "" || user == "" {
		return nil
	}
	return gomail.NewDialer(host, port, user, password)
}

type SMSGateway interface {
	SendSMS(ctx context.Context, phone, text string) error
}

// LogSMS stands in for a real gateway: it only logs the text.
type LogSMS struct{}

func (LogSMS) SendSMS(_ context.Context, phone, text string) error {
	logger.Named("sms").Info("sms queued", zap.String("to", phone), zap.Int("length", len(text)))
	return nil
}

type CredentialsService struct {
	mailer MailSender
	sms    SMSGateway
	from   string
	log    *zap.Logger
}

func NewCredentialsService(mailer MailSender, sms SMSGateway, from string) *CredentialsService {
	if sms == nil {
		sms = LogSMS{}
	}
	return &CredentialsService{mailer: mailer, sms: sms, from: from, log: logger.Named("credentials")}
}

// Send emails and texts the login details. Either channel succeeding
// counts as success.
func (s *CredentialsService) Send(ctx context.Context, req model.CredentialsRequest) (model.CredentialsResult, error) {
	req.Email = strings.TrimSpace(req.Email)
	req.PhoneNumber = strings.TrimSpace(req.PhoneNumber)
	if req.Email == "" || req.AwardNumber == "" || req.Password == "" {
		return model.CredentialsResult{Message: "Missing required fields"}, ErrMissingCredentialFields
	}

	emailSent := false
	if err := s.sendEmail(req); err != nil {
		s.log.Warn("email send error", zap.String("to", req.Email), zap.Error(err))
	} else {
		emailSent = true
	}

	smsSent := false
	if req.PhoneNumber != "" {
		text := fmt.Sprintf(credentialsSMS, req.AwardNumber, req.Password)
		if err := s.sms.SendSMS(ctx, req.PhoneNumber, text); err != nil {
			s.log.Warn("sms send error", zap.Error(err))
		} else {
			smsSent = true
		}
	}

	return credentialsResult(emailSent, smsSent), nil
}

func credentialsResult(emailSent, smsSent bool) model.CredentialsResult {
	r := model.CredentialsResult{Success: emailSent || smsSent, EmailSent: emailSent, SMSSent: smsSent}
	switch {
	case emailSent && smsSent:
		r.Message = "Email and SMS sent successfully"
	case emailSent:
		r.Message = "Email sent, SMS failed"
	case smsSent:
		r.Message = "SMS sent, Email failed"
	default:
		r.Message = "Failed to send credentials"
	}
	return r
}

func (s *CredentialsService) sendEmail(req model.CredentialsRequest) error {
	if s.mailer == nil {
		return errors.New("smtp not configured")
	}
	m, err := s.buildEmail(req)
	if err != nil {
		return err
	}
	return errors.Wrap(s.mailer.DialAndSend(m), "smtp send")
}

func (s *CredentialsService) buildEmail(req model.CredentialsRequest) (*gomail.Message, error) {
	var html, text bytes.Buffer
	if err := credentialsHTML.Execute(&html, req); err != nil {
		return nil, errors.Wrap(err, "render html body")
	}
	if err := credentialsText.Execute(&text, req); err != nil {
		return nil, errors.Wrap(err, "render text body")
	}

	m := gomail.NewMessage(gomail.SetCharset("UTF-8"))
	m.SetAddressHeader("From", s.from, "GranTES System")
	m.SetAddressHeader("To", req.Email, req.StudentName)
	m.SetAddressHeader("Reply-To", s.from, "GranTES Administration")
	m.SetHeader("Subject", credentialsSubject)
	m.SetBody("text/plain", text.String())
	m.AddAlternative("text/html", html.String())
	return m, nil
}
