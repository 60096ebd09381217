package mail

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"

	"go.uber.org/zap"
	"gopkg.in/gomail.v2"

	"github.com/xavierca1/linkedin-outreach/internal/usecase"
)

//go:embed templates/alert.html
var templates embed.FS

var alertTemplate = template.Must(template.ParseFS(templates, "templates/alert.html"))

// Dialer is satisfied by *gomail.Dialer.
type Dialer interface {
	DialAndSend(m ...*gomail.Message) error
}

// EmailSender delivers operator alerts over SMTP.
type EmailSender struct {
	From   string
	To     string
	Dialer Dialer
	Logger *zap.Logger
}

func NewEmailSender(host string, port int, user, password, from, to string, logger *zap.Logger) *EmailSender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EmailSender{
		From:   from,
		To:     to,
		Dialer: gomail.NewDialer(host, port, user, password),
		Logger: logger,
	}
}

func (s *EmailSender) Alert(ctx context.Context, alert usecase.OperatorAlert) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var body bytes.Buffer
	if err := alertTemplate.Execute(&body, alert); err != nil {
		return fmt.Errorf("render alert template: %w", err)
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.From)
	m.SetHeader("To", s.To)
	m.SetHeader("Subject", "[outreach] "+alert.Subject)
	m.SetBody("text/html", body.String())

	if err := s.Dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("send alert email: %w", err)
	}

	s.Logger.Info("operator alert sent", zap.String("kind", alert.Kind), zap.String("to", s.To))
	return nil
}

// LogNotifier only logs alerts; used when SMTP is not configured.
type LogNotifier struct {
	Logger *zap.Logger
}

func (n LogNotifier) Alert(_ context.Context, alert usecase.OperatorAlert) error {
	n.Logger.Warn("operator alert",
		zap.String("kind", alert.Kind),
		zap.String("workspace_id", alert.WorkspaceID),
		zap.String("campaign_id", alert.CampaignID),
		zap.String("subject", alert.Subject),
		zap.String("detail", alert.Detail),
		zap.Strings("prospect_ids", alert.ProspectIDs))
	return nil
}
