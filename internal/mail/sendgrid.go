package mail

import (
	"context"
	"fmt"

	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
	"go.uber.org/zap"

	applog "onsalenow/internal/log"
)

type Message struct {
	ToName  string
	ToEmail string
	Subject string
	Text    string
	HTML    string
}

// SendGrid sends transactional mail. Without an API key it only logs.
type SendGrid struct {
	client *sendgrid.Client
	from   *sgmail.Email
}

func NewSendGrid(apiKey, from string) *SendGrid {
	s := &SendGrid{from: sgmail.NewEmail("On Sale Now", from)}
	if apiKey != "" {
		s.client = sendgrid.NewSendClient(apiKey)
	}
	return s
}

func (s *SendGrid) Send(ctx context.Context, m Message) error {
	if s.client == nil {
		applog.L().Debug("mail.disabled", zap.String("to", m.ToEmail), zap.String("subject", m.Subject))
		return nil
	}
	html := m.HTML
	if html == "" {
		html = "<p>" + m.Text + "</p>"
	}
	msg := sgmail.NewSingleEmail(s.from, m.Subject, sgmail.NewEmail(m.ToName, m.ToEmail), m.Text, html)
	res, err := s.client.SendWithContext(ctx, msg)
	if err != nil {
		return fmt.Errorf("sendgrid: %w", err)
	}
	if res.StatusCode >= 400 {
		return fmt.Errorf("sendgrid: status %d: %s", res.StatusCode, res.Body)
	}
	applog.L().Info("mail.sent", zap.String("to", m.ToEmail), zap.Int("status", res.StatusCode))
	return nil
}
