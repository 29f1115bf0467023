// Package notify delivers one-off messages (verification codes) to users.
package notify

import (
	"context"

	"github.com/resend/resend-go/v2"
	"go.uber.org/zap"
)

// Notifier sends a single message. A nil error means the provider accepted it.
type Notifier interface {
	Send(ctx context.Context, to, subject, html string) error
}

// ResendNotifier delivers through the Resend HTTP API.
type ResendNotifier struct {
	client *resend.Client
	from   string
	logger *zap.SugaredLogger
}

// NewResendNotifier sends as "fromName <fromEmail>".
func NewResendNotifier(client *resend.Client, fromName, fromEmail string, logger *zap.SugaredLogger) *ResendNotifier {
	from := fromEmail
	if fromName != "" {
		from = fromName + " <" + fromEmail + ">"
	}
	return &ResendNotifier{client: client, from: from, logger: logger}
}

func (n *ResendNotifier) Send(ctx context.Context, to, subject, html string) error {
	resp, err := n.client.Emails.SendWithContext(ctx, &resend.SendEmailRequest{
		From:    n.from,
		To:      []string{to},
		Subject: subject,
		Html:    html,
	})
	if err != nil {
		return err
	}
	n.logger.Debugw("email accepted", "to", to, "id", resp.Id)
	return nil
}

// LogNotifier writes messages to the log instead of sending them. Bodies are
// logged only when ShowBody is set, which is meant for local development.
type LogNotifier struct {
	Logger   *zap.SugaredLogger
	ShowBody bool
}

func (n LogNotifier) Send(_ context.Context, to, subject, html string) error {
	if n.ShowBody {
		n.Logger.Infow("email (not sent)", "to", to, "subject", subject, "body", html)
		return nil
	}
	n.Logger.Infow("email (not sent)", "to", to, "subject", subject)
	return nil
}
