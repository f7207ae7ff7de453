package report

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/netlabgo/netmeter/internal/config"
)

// mimeBoundary separates the MIME parts of a status mail. Fixed rather
// than random so messages are reproducible in tests.
const mimeBoundary = "4a7116234a8bb0e881b8d6938f58cc81"

// ErrEmailDisabled is returned when mailing is attempted with no sender
// configured.
var ErrEmailDisabled = errors.New("report: email reporting not configured")

// sendFunc matches smtp.SendMail and is swapped out in tests.
type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// Emailer sends status mails about long-running experiments, optionally
// with run data attached. Long measurement runs finish at inconvenient
// hours; a mail with the results attached beats a login to check.
type Emailer struct {
	cfg  config.EmailConfig
	send sendFunc
}

// EmailerOption configures an Emailer.
type EmailerOption func(*Emailer)

// withSendFunc replaces the SMTP send function in tests.
func withSendFunc(f sendFunc) EmailerOption {
	return func(e *Emailer) {
		e.send = f
	}
}

// NewEmailer creates an Emailer from mail settings.
func NewEmailer(cfg config.EmailConfig, opts ...EmailerOption) *Emailer {
	e := &Emailer{
		cfg:  cfg,
		send: smtp.SendMail,
	}

	if e.cfg.To == "" {
		e.cfg.To = e.cfg.From
	}

	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Send mails a plain status message.
func (e *Emailer) Send(subject, msg string) error {
	return e.deliver(e.message(subject, msg, "", nil))
}

// SendData mails a status message with content attached under filename,
// base64 encoded.
func (e *Emailer) SendData(subject, msg, filename string, content []byte) error {
	return e.deliver(e.message(subject, msg, filename, content))
}

// deliver pushes a composed message to the SMTP server.
func (e *Emailer) deliver(msg string) error {
	if e.cfg.From == "" || e.cfg.SMTPAddr == "" {
		return ErrEmailDisabled
	}

	var auth smtp.Auth
	if e.cfg.Password != "" {
		host := e.cfg.SMTPAddr
		if i := strings.IndexByte(host, ':'); i >= 0 {
			host = host[:i]
		}
		auth = smtp.PlainAuth("", e.cfg.From, e.cfg.Password, host)
	}

	if err := e.send(e.cfg.SMTPAddr, auth, e.cfg.From, []string{e.cfg.To}, []byte(msg)); err != nil {
		return fmt.Errorf("failed to send mail via %s: %w", e.cfg.SMTPAddr, err)
	}
	return nil
}

// message composes a multipart MIME mail: headers, a plain-text body,
// and optionally a base64 attachment.
func (e *Emailer) message(subject, msg, filename string, content []byte) string {
	if subject == "" {
		subject = e.cfg.Subject
	}

	var b strings.Builder
	fmt.Fprintf(&b, "From: %s <%s>\r\n", mailboxName(e.cfg.From), e.cfg.From)
	fmt.Fprintf(&b, "To: %s <%s>\r\n", mailboxName(e.cfg.To), e.cfg.To)
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&b, "Content-Type: multipart/mixed; boundary=%s\r\n", mimeBoundary)
	fmt.Fprintf(&b, "--%s\r\n", mimeBoundary)

	b.WriteString("Content-Type: text/plain\r\n")
	b.WriteString("Content-Transfer-Encoding: 8bit\r\n\r\n")
	b.WriteString(msg)
	fmt.Fprintf(&b, "\r\n--%s", mimeBoundary)

	if filename == "" {
		b.WriteString("--\r\n")
		return b.String()
	}

	b.WriteString("\r\n")
	fmt.Fprintf(&b, "Content-Type: application/octet-stream; name=%q\r\n", filename)
	b.WriteString("Content-Transfer-Encoding: base64\r\n")
	fmt.Fprintf(&b, "Content-Disposition: attachment; filename=%s\r\n\r\n", filename)
	b.WriteString(base64.StdEncoding.EncodeToString(content))
	fmt.Fprintf(&b, "\r\n--%s--\r\n", mimeBoundary)
	return b.String()
}

// mailboxName derives a display name from an address.
func mailboxName(addr string) string {
	if i := strings.IndexByte(addr, '@'); i >= 0 {
		return addr[:i]
	}
	return addr
}
