// Package mail delivers outbound email. The only producer today is the
// password reset flow, which treats delivery as fire-and-forget: a send
// failure is logged by the caller, never surfaced to the client.
package mail

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net"
	gosmtp "net/smtp"
	"strings"
	"time"

	"github.com/mleach/signon/internal/config"
)

// Sender is the outbound mail contract.
type Sender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// NewSender returns an SMTP sender when a host is configured, otherwise a
// log-only sender for development.
func NewSender(cfg config.MailConfig) Sender {
	if cfg.Host == "" {
		return &LogSender{}
	}
	return &SMTPSender{cfg: cfg}
}

// --- SMTP ---

// SMTPSender delivers mail over SMTP with STARTTLS, implicit TLS, or
// plaintext depending on configuration.
type SMTPSender struct {
	cfg config.MailConfig
}

// Send delivers a single plain-text message.
func (s *SMTPSender) Send(ctx context.Context, to, subject, body string) error {
	addr := net.JoinHostPort(s.cfg.Host, fmt.Sprintf("%d", s.cfg.Port))
	msg := buildMessage(s.cfg.From, to, subject, body)

	switch s.cfg.Encryption {
	case "ssl":
		return s.sendSSL(addr, to, msg)
	case "none":
		return s.sendPlain(addr, to, msg)
	default: // "starttls"
		return s.sendStartTLS(addr, to, msg)
	}
}

// sendStartTLS connects plaintext, upgrades with STARTTLS, then sends.
func (s *SMTPSender) sendStartTLS(addr, to, msg string) error {
	conn, err := net.DialTimeout("tcp", addr, 10*time.Second)
	if err != nil {
		return fmt.Errorf("dialing smtp server: %w", err)
	}

	client, err := gosmtp.NewClient(conn, s.cfg.Host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("creating smtp client: %w", err)
	}
	defer client.Close()

	tlsConfig := &tls.Config{ServerName: s.cfg.Host, MinVersion: tls.VersionTLS12}
	if err := client.StartTLS(tlsConfig); err != nil {
		return fmt.Errorf("starting tls: %w", err)
	}

	return s.sendMessage(client, to, msg)
}

// sendSSL connects over implicit TLS (typically port 465), then sends.
func (s *SMTPSender) sendSSL(addr, to, msg string) error {
	tlsConfig := &tls.Config{ServerName: s.cfg.Host, MinVersion: tls.VersionTLS12}
	conn, err := tls.DialWithDialer(&net.Dialer{Timeout: 10 * time.Second}, "tcp", addr, tlsConfig)
	if err != nil {
		return fmt.Errorf("dialing smtp server: %w", err)
	}

	client, err := gosmtp.NewClient(conn, s.cfg.Host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("creating smtp client: %w", err)
	}
	defer client.Close()

	return s.sendMessage(client, to, msg)
}

// sendPlain sends without any transport encryption. Local relays only.
func (s *SMTPSender) sendPlain(addr, to, msg string) error {
	var auth gosmtp.Auth
	if s.cfg.Username != "" {
		auth = gosmtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	}
	if err := gosmtp.SendMail(addr, auth, s.cfg.From, []string{to}, []byte(msg)); err != nil {
		return fmt.Errorf("sending mail: %w", err)
	}
	return nil
}

// sendMessage authenticates if credentials are configured and pushes the
// message through an established client.
func (s *SMTPSender) sendMessage(client *gosmtp.Client, to, msg string) error {
	if s.cfg.Username != "" {
		auth := gosmtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("authenticating: %w", err)
		}
	}

	if err := client.Mail(s.cfg.From); err != nil {
		return fmt.Errorf("setting sender: %w", err)
	}
	if err := client.Rcpt(to); err != nil {
		return fmt.Errorf("setting recipient: %w", err)
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("opening data writer: %w", err)
	}
	if _, err := w.Write([]byte(msg)); err != nil {
		w.Close()
		return fmt.Errorf("writing message: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("closing data writer: %w", err)
	}

	return client.Quit()
}

// buildMessage assembles a minimal RFC 5322 plain-text message.
func buildMessage(from, to, subject, body string) string {
	var b strings.Builder
	b.WriteString("From: " + from + "\r\n")
	b.WriteString("To: " + to + "\r\n")
	b.WriteString("Subject: " + subject + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(body)
	return b.String()
}

// --- Development fallback ---

// LogSender logs mail instead of sending it. Used when no SMTP host is
// configured so the reset flow stays exercisable in local development.
type LogSender struct{}

// Send logs the message headers and body at debug level.
func (l *LogSender) Send(ctx context.Context, to, subject, body string) error {
	slog.Info("mail delivery disabled, logging message instead",
		slog.String("to", to),
		slog.String("subject", subject),
	)
	slog.Debug("mail body", slog.String("body", body))
	return nil
}
