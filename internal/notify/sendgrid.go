package notify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/lox/siteweather/internal/metrics"
)

const DefaultSendGridHost = "https://api.sendgrid.com"

var ErrEmailDisabled = errors.New("email delivery is not configured")

// Sender delivers one message.
type Sender interface {
	Send(ctx context.Context, m Message) error
}

// SendGrid sends mail through the v3 mail send API.
type SendGrid struct {
	apiKey     string
	host       string
	fromEmail  string
	fromName   string
	newBackOff func() backoff.BackOff
}

func NewSendGrid(apiKey, host, fromEmail, fromName string) *SendGrid {
	if host == "" {
		host = DefaultSendGridHost
	}
	return &SendGrid{
		apiKey:    apiKey,
		host:      host,
		fromEmail: fromEmail,
		fromName:  fromName,
		newBackOff: func() backoff.BackOff {
			bo := backoff.NewExponentialBackOff()
			bo.MaxElapsedTime = time.Minute
			return bo
		},
	}
}

// Send posts m. Rate limiting and server errors are retried with
// exponential backoff; other failures are returned immediately.
func (s *SendGrid) Send(ctx context.Context, m Message) error {
	if s.apiKey == "" {
		return ErrEmailDisabled
	}

	from := mail.NewEmail(s.fromName, s.fromEmail)
	to := mail.NewEmail(m.ToName, m.To)
	msg := mail.NewV3MailInit(from, m.Subject, to,
		mail.NewContent("text/plain", m.Text),
		mail.NewContent("text/html", m.HTML),
	)

	operation := func() error {
		req := sendgrid.GetRequest(s.apiKey, "/v3/mail/send", s.host)
		req.Method = rest.Post
		req.Body = mail.GetRequestBody(msg)

		resp, err := rest.SendWithContext(ctx, req)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("send email: %w", err))
		}
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return fmt.Errorf("send email: status %d", resp.StatusCode)
		}
		if resp.StatusCode >= 300 {
			return backoff.Permanent(fmt.Errorf("send email: status %d: %s", resp.StatusCode, resp.Body))
		}
		return nil
	}

	if err := backoff.Retry(operation, backoff.WithContext(s.newBackOff(), ctx)); err != nil {
		metrics.EmailsTotal.WithLabelValues("failed").Inc()
		return err
	}
	metrics.EmailsTotal.WithLabelValues("sent").Inc()
	return nil
}
