package notification

import (
	"NetSentinel/internal/config"
	"NetSentinel/internal/model"
	"context"
	"fmt"
	"html"
	"net/smtp"
	"sort"
	"strings"
)

type sendMailFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// EmailNotifier implements model.AlertSink by mailing an HTML summary of each
// batch.
type EmailNotifier struct {
	cfg         config.SMTPConfig
	auth        smtp.Auth
	minSeverity model.Severity
	send        sendMailFunc
}

// NewEmailNotifier creates a new EmailNotifier.
func NewEmailNotifier(cfg config.SMTPConfig) *EmailNotifier {
	// PlainAuth will not send credentials until the server identifies itself as a trusted one.
	auth := smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	return &EmailNotifier{
		cfg:         cfg,
		auth:        auth,
		minSeverity: model.Severity(strings.ToUpper(cfg.MinSeverity)),
		send:        smtp.SendMail,
	}
}

// Name implements model.AlertSink.
func (n *EmailNotifier) Name() string { return "email" }

// Deliver mails the alerts at or above the minimum severity. A batch with no
// such alert sends nothing.
func (n *EmailNotifier) Deliver(ctx context.Context, alerts []model.Alert) error {
	selected := n.filter(alerts)
	if len(selected) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	subject := fmt.Sprintf("NetSentinel Alert Summary (%d Triggered)", len(selected))
	addr := fmt.Sprintf("%s:%d", n.cfg.Host, n.cfg.Port)
	recipients := strings.Split(n.cfg.To, ",")
	for i := range recipients {
		recipients[i] = strings.TrimSpace(recipients[i])
	}

	// Construct the email message.
	msg := []byte("To: " + n.cfg.To + "\r\n" +
		"From: " + n.cfg.From + "\r\n" +
		"Subject: " + subject + "\r\n" +
		"Content-Type: text/html; charset=UTF-8\r\n" +
		"\r\n" +
		renderSummary(selected))

	if err := n.send(addr, n.auth, n.cfg.From, recipients, msg); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}

func (n *EmailNotifier) filter(alerts []model.Alert) []model.Alert {
	if n.minSeverity.Rank() == 0 {
		return alerts
	}
	var out []model.Alert
	for _, a := range alerts {
		if a.Severity.Rank() >= n.minSeverity.Rank() {
			out = append(out, a)
		}
	}
	return out
}

func renderSummary(alerts []model.Alert) string {
	var b strings.Builder
	b.WriteString("<h1>NetSentinel Alert Summary</h1>")
	b.WriteString("<p>The following alerts were raised:</p><hr>")
	for _, a := range alerts {
		source := a.SourceKey
		if source == "" {
			source = "-"
		}
		fmt.Fprintf(&b, "<h3>[%s] %s from %s</h3><p>%s &middot; id %s</p>",
			html.EscapeString(string(a.Severity)),
			html.EscapeString(a.Kind),
			html.EscapeString(source),
			a.Timestamp.UTC().Format("2006-01-02 15:04:05 MST"),
			html.EscapeString(a.ID))
		if len(a.Details) > 0 {
			keys := make([]string, 0, len(a.Details))
			for k := range a.Details {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			b.WriteString("<ul>")
			for _, k := range keys {
				fmt.Fprintf(&b, "<li>%s: %s</li>", html.EscapeString(k), html.EscapeString(fmt.Sprint(a.Details[k])))
			}
			b.WriteString("</ul>")
		}
		b.WriteString("<hr>")
	}
	return b.String()
}
