package mail

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"strings"
	"time"
)

// SMTPConfig holds the relay settings.  Port 465 uses implicit TLS, any
// other port uses smtp.SendMail, which upgrades with STARTTLS when offered.
type SMTPConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
}

func (c SMTPConfig) validate() error {
	if c.Host == "" || c.Port == "" || c.From == "" {
		return errors.New("invalid SMTP configuration")
	}
	return nil
}

// SMTPSender delivers messages synchronously over SMTP.
type SMTPSender struct {
	Config  SMTPConfig
	Timeout time.Duration
}

func NewSMTPSender(cfg SMTPConfig) (*SMTPSender, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &SMTPSender{Config: cfg, Timeout: 10 * time.Second}, nil
}

// Send implements Mailer.
func (s *SMTPSender) Send(ctx context.Context, m Message) error {
	if err := m.Validate(); err != nil {
		return err
	}
	addr := net.JoinHostPort(s.Config.Host, s.Config.Port)
	body := buildMessage(s.Config.From, m)

	var auth smtp.Auth
	if s.Config.Username != "" {
		auth = smtp.PlainAuth("", s.Config.Username, s.Config.Password, s.Config.Host)
	}
	if s.Config.Port != "465" {
		if err := smtp.SendMail(addr, auth, s.Config.From, []string{m.To}, body); err != nil {
			return fmt.Errorf("sending mail to %s: %w", m.To, err)
		}
		return nil
	}

	dialer := &tls.Dialer{
		NetDialer: &net.Dialer{Timeout: s.Timeout},
		Config:    &tls.Config{ServerName: s.Config.Host, MinVersion: tls.VersionTLS12},
	}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("dialing %s: %w", addr, err)
	}
	c, err := smtp.NewClient(conn, s.Config.Host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("smtp handshake: %w", err)
	}
	defer c.Close()

	if auth != nil {
		if err := c.Auth(auth); err != nil {
			return fmt.Errorf("smtp auth: %w", err)
		}
	}
	if err := c.Mail(s.Config.From); err != nil {
		return err
	}
	if err := c.Rcpt(m.To); err != nil {
		return err
	}
	w, err := c.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(body); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return c.Quit()
}

func buildMessage(from string, m Message) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", m.To)
	fmt.Fprintf(&b, "Subject: %s\r\n", m.Subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(m.HTML)
	return []byte(b.String())
}
