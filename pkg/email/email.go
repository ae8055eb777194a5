package email

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"mime"
	"net"
	"net/mail"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Config holds SMTP connection settings. Secure selects implicit TLS
// (usually port 465); otherwise STARTTLS is used when the server offers it.
type Config struct {
	Host     string
	Port     int
	Secure   bool
	User     string
	Password string
	From     string
}

// Message is a single HTML email.
type Message struct {
	To      string
	Subject string
	HTML    string
}

// Sender delivers messages over SMTP.
type Sender struct {
	cfg     Config
	timeout time.Duration
}

func NewSender(cfg Config) *Sender {
	return &Sender{cfg: cfg, timeout: 30 * time.Second}
}

// Send delivers msg and returns the Message-ID it was sent with.
func (s *Sender) Send(ctx context.Context, msg Message) (string, error) {
	if s.cfg.Host == "" {
		return "", errors.New("smtp host is not configured")
	}
	if msg.To == "" {
		return "", errors.New("recipient is required")
	}

	messageID := fmt.Sprintf("<%s@%s>", uuid.NewString(), s.domain())
	body := buildMessage(s.cfg.From, messageID, msg)

	if err := s.deliver(ctx, msg.To, body); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = ctxErr
		}
		return "", fmt.Errorf("failed to send email: %w", err)
	}
	return messageID, nil
}

// deliver runs one SMTP session. The whole session shares a deadline of
// s.timeout, or ctx's deadline when that is earlier, and cancelling ctx
// closes the connection.
func (s *Sender) deliver(ctx context.Context, to string, body []byte) error {
	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	dialer := &net.Dialer{Timeout: s.timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return err
	}
	defer conn.Close()

	deadline := time.Now().Add(s.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetDeadline(deadline); err != nil {
		return err
	}
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	tlsConfig := &tls.Config{ServerName: s.cfg.Host}
	if s.cfg.Secure {
		tlsConn := tls.Client(conn, tlsConfig)
		if err := tlsConn.HandshakeContext(ctx); err != nil {
			return err
		}
		conn = tlsConn
	}

	client, err := smtp.NewClient(conn, s.cfg.Host)
	if err != nil {
		return err
	}
	defer client.Close()

	if !s.cfg.Secure {
		if ok, _ := client.Extension("STARTTLS"); ok {
			if err := client.StartTLS(tlsConfig); err != nil {
				return err
			}
		}
	}
	if s.cfg.User != "" {
		if err := client.Auth(smtp.PlainAuth("", s.cfg.User, s.cfg.Password, s.cfg.Host)); err != nil {
			return err
		}
	}
	if err := client.Mail(s.cfg.From); err != nil {
		return err
	}
	if err := client.Rcpt(to); err != nil {
		return err
	}
	w, err := client.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(body); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return client.Quit()
}

func (s *Sender) domain() string {
	if i := strings.LastIndex(s.cfg.From, "@"); i >= 0 {
		return strings.Trim(s.cfg.From[i+1:], "> ")
	}
	return s.cfg.Host
}

func buildMessage(from, messageID string, msg Message) []byte {
	var b strings.Builder
	b.WriteString("From: " + formatAddress(from) + "\r\n")
	b.WriteString("To: " + formatAddress(msg.To) + "\r\n")
	b.WriteString("Subject: " + mime.QEncoding.Encode("utf-8", headerValue(msg.Subject)) + "\r\n")
	b.WriteString("Message-ID: " + headerValue(messageID) + "\r\n")
	b.WriteString("Date: " + time.Now().Format(time.RFC1123Z) + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(msg.HTML)
	b.WriteString("\r\n")
	return []byte(b.String())
}

// headerValue folds line breaks into spaces so a value can never start a
// new header.
func headerValue(v string) string {
	return strings.Join(strings.FieldsFunc(v, func(r rune) bool { return r == '\r' || r == '\n' }), " ")
}

// formatAddress encodes a non-ASCII display name. Values that do not
// parse as an address are written with line breaks removed.
func formatAddress(v string) string {
	v = headerValue(v)
	addr, err := mail.ParseAddress(v)
	if err != nil {
		return v
	}
	if addr.Name == "" {
		return addr.Address
	}
	return addr.String()
}
