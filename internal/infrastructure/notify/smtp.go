package notify

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"gissues/internal/bootstrap/config"
	"gissues/internal/bootstrap/logging"
	"gissues/internal/errs"
	"gissues/internal/ports"
)

// SMTPNotifier delivers plain-text mail. STARTTLS is used when the server offers it and
// credentials are only sent when it advertises AUTH.
type SMTPNotifier struct {
	host string
	addr string
	from string
	auth smtp.Auth
	now  func() time.Time
}

var _ ports.Notifier = (*SMTPNotifier)(nil)

func NewSMTPNotifier(cfg config.SMTPConfig, from string) (*SMTPNotifier, error) {
	host := strings.TrimSpace(cfg.Host)
	if host == "" {
		return nil, errors.New("smtp host is required")
	}
	if strings.TrimSpace(from) == "" {
		return nil, errors.New("smtp from address is required")
	}
	port := cfg.Port
	if port <= 0 {
		port = 25
	}

	var auth smtp.Auth
	if cfg.Username != "" {
		auth = smtp.PlainAuth("", cfg.Username, cfg.Password, host)
	}
	return &SMTPNotifier{
		host: host,
		addr: net.JoinHostPort(host, strconv.Itoa(port)),
		from: from,
		auth: auth,
		now:  time.Now,
	}, nil
}

func (n *SMTPNotifier) Notify(ctx context.Context, recipient string, subject string, body string) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	if err := validateMessage(recipient, subject); err != nil {
		return err
	}
	logCtx := logging.WithComponent(ctx, "notify.smtp")

	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", n.addr)
	if err != nil {
		return errs.Wrapf(err, "dial smtp %s", n.addr)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	client, err := smtp.NewClient(conn, n.host)
	if err != nil {
		_ = conn.Close()
		return errs.Wrap(err, "smtp handshake")
	}
	defer client.Close()

	if ok, _ := client.Extension("STARTTLS"); ok {
		if err := client.StartTLS(&tls.Config{ServerName: n.host}); err != nil {
			return errs.Wrap(err, "smtp starttls")
		}
	}
	if n.auth != nil {
		if ok, _ := client.Extension("AUTH"); ok {
			if err := client.Auth(n.auth); err != nil {
				return errs.Wrap(err, "smtp auth")
			}
		}
	}

	if err := client.Mail(n.from); err != nil {
		return errs.Wrap(err, "smtp mail from")
	}
	if err := client.Rcpt(recipient); err != nil {
		return errs.Wrapf(err, "smtp rcpt %s", recipient)
	}
	w, err := client.Data()
	if err != nil {
		return errs.Wrap(err, "smtp data")
	}
	if _, err := w.Write(n.message(recipient, subject, body)); err != nil {
		_ = w.Close()
		return errs.Wrap(err, "write smtp message")
	}
	if err := w.Close(); err != nil {
		return errs.Wrap(err, "finish smtp message")
	}
	if err := client.Quit(); err != nil {
		return errs.Wrap(err, "smtp quit")
	}

	logging.Info(logCtx, "notification sent", slog.String("to", recipient), slog.String("subject", subject))
	return nil
}

func (n *SMTPNotifier) message(recipient string, subject string, body string) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "From: %s\r\n", n.from)
	fmt.Fprintf(&buf, "To: %s\r\n", recipient)
	fmt.Fprintf(&buf, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", subject))
	fmt.Fprintf(&buf, "Date: %s\r\n", n.now().UTC().Format(time.RFC1123Z))
	buf.WriteString("MIME-Version: 1.0\r\n")
	buf.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	buf.WriteString("Content-Transfer-Encoding: 8bit\r\n")
	buf.WriteString("\r\n")

	normalized := strings.ReplaceAll(body, "\r\n", "\n")
	buf.WriteString(strings.ReplaceAll(normalized, "\n", "\r\n"))
	if !strings.HasSuffix(normalized, "\n") {
		buf.WriteString("\r\n")
	}
	return buf.Bytes()
}
