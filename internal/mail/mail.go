package mail

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/gomail.v2"
)

// Sender delivers password reset codes.
type Sender interface {
	SendOTP(ctx context.Context, to string, code string) error
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	ShopName string
}

type otpView struct {
	ShopName string
	Code     string
	Minutes  int
}

var otpTmpl = template.Must(template.New("otp").Parse(`<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;">
  <h2>Password Reset Request</h2>
  <p>You have requested to reset your password for your {{.ShopName}} account.</p>
  <div style="background: #f8f9fa; padding: 20px; border-radius: 10px; text-align: center; margin: 20px 0;">
    <h1 style="font-size: 36px; margin: 0; letter-spacing: 8px;">{{.Code}}</h1>
  </div>
  <p>This OTP is valid for <strong>{{.Minutes}} minutes</strong>.</p>
  <p>If you didn't request this, please ignore this email.</p>
</div>`))

type SMTPSender struct {
	cfg    SMTPConfig
	ttl    time.Duration
	dialer *gomail.Dialer
}

func NewSMTPSender(cfg SMTPConfig, ttl time.Duration) *SMTPSender {
	if cfg.From == "" {
		cfg.From = cfg.Username
	}
	if cfg.ShopName == "" {
		cfg.ShopName = "shop"
	}
	return &SMTPSender{
		cfg:    cfg,
		ttl:    ttl,
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
	}
}

func (s *SMTPSender) message(to string, code string) (*gomail.Message, error) {
	minutes := int(s.ttl / time.Minute)
	var body bytes.Buffer
	if err := otpTmpl.Execute(&body, otpView{ShopName: s.cfg.ShopName, Code: code, Minutes: minutes}); err != nil {
		return nil, err
	}

	msg := gomail.NewMessage(gomail.SetEncoding(gomail.Unencoded))
	msg.SetHeader("From", s.cfg.From)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", fmt.Sprintf("Password Reset OTP - %s", s.cfg.ShopName))
	msg.SetBody("text/plain", fmt.Sprintf("Your password reset OTP is: %s. This OTP is valid for %d minutes.", code, minutes))
	msg.AddAlternative("text/html", body.String())
	return msg, nil
}

// SendOTP dials per message; gomail has no context support, so ctx is only
// checked before dialing.
func (s *SMTPSender) SendOTP(ctx context.Context, to string, code string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg, err := s.message(to, code)
	if err != nil {
		return fmt.Errorf("render otp email: %w", err)
	}
	if err := s.dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("send otp email: %w", err)
	}
	return nil
}

// LogSender writes codes to the log instead of mailing them. Used when no
// SMTP host is configured.
type LogSender struct {
	Log logrus.FieldLogger
}

func (s LogSender) SendOTP(_ context.Context, to string, code string) error {
	s.Log.WithField("to", to).WithField("otp", code).Warn("SMTP not configured; password reset code logged instead of mailed")
	return nil
}
