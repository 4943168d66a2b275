// Package email sends the registration confirmation email over SMTP.
package email

import (
	"fmt"
	"net/smtp"
	"strings"

	"github.com/rocketstack/roadmapper/internal/config"
	"github.com/rocketstack/roadmapper/internal/telemetry"
)

// Sender delivers confirmation emails. A zero-configured sender reports
// !IsConfigured() and registration then skips the confirmation step entirely.
type Sender struct {
	cfg config.EmailConfig

	// send is swappable for tests; defaults to smtp.SendMail.
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewSender builds a sender from the email configuration.
func NewSender(cfg config.EmailConfig) *Sender {
	return &Sender{cfg: cfg, send: smtp.SendMail}
}

// IsConfigured reports whether an SMTP host is set.
func (s *Sender) IsConfigured() bool { return s.cfg.Host != "" }

// SendConfirmation sends the confirmation link for a pending registration.
func (s *Sender) SendConfirmation(to, confirmURL, owner, repo string) error {
	if !s.IsConfigured() {
		return nil
	}

	subject := fmt.Sprintf("Confirm your Roadmapper registration for %s/%s", owner, repo)
	body := confirmationBody(confirmURL, owner, repo)

	var msg strings.Builder
	fmt.Fprintf(&msg, "From: %s\r\n", s.cfg.From)
	fmt.Fprintf(&msg, "To: %s\r\n", to)
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/html; charset=UTF-8\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(body)

	var auth smtp.Auth
	if s.cfg.Username != "" {
		auth = smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	}

	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	if err := s.send(addr, auth, s.cfg.From, []string{to}, []byte(msg.String())); err != nil {
		return fmt.Errorf("send confirmation email: %w", err)
	}

	telemetry.ConfirmationEmailsSentTotal.Inc()
	return nil
}

func confirmationBody(confirmURL, owner, repo string) string {
	return fmt.Sprintf(`<div style="font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Helvetica, Arial, sans-serif; max-width: 600px; margin: 0 auto; padding: 40px 20px;">
  <h2 style="color: #24292f; margin-bottom: 24px;">Confirm your Roadmapper registration</h2>
  <p style="color: #57606a; font-size: 16px; line-height: 1.6;">
    You registered an API key for <strong>%s/%s</strong>. Please confirm your email address to activate it.
  </p>
  <div style="margin: 32px 0; text-align: center;">
    <a href="%s" style="display: inline-block; background: linear-gradient(135deg, #1E88E5, #26A69A); color: white; padding: 14px 32px; border-radius: 8px; font-size: 16px; font-weight: 600; text-decoration: none;">
      Confirm Email
    </a>
  </div>
  <p style="color: #8b949e; font-size: 14px;">
    This link expires in 24 hours. If you did not register for Roadmapper, you can safely ignore this email.
  </p>
  <hr style="border: none; border-top: 1px solid #e0e0e0; margin: 32px 0;">
  <p style="color: #8b949e; font-size: 12px; text-align: center;">
    <a href="https://roadmapper.rocketstack.co" style="color: #26A69A;">Roadmapper</a> &mdash; GitHub Issue Roadmaps Made Simple
  </p>
</div>`, owner, repo, confirmURL)
}
