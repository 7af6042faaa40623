package notification

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"mime/multipart"
	"net/smtp"
	"net/textproto"

	"github.com/google/uuid"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"go.uber.org/zap"

	"fraudcase/internal/config"
)

// Attachment is a file sent with a message
type Attachment struct {
	Filename    string
	ContentType string
	Content     []byte
}

// Message is one outbound email
type Message struct {
	To          string
	Subject     string
	Text        string
	HTML        string
	Attachments []Attachment
}

// Mailer delivers a message and returns the transport's message id
type Mailer interface {
	Send(ctx context.Context, msg Message) (string, error)
}

// NewMailer builds the mailer selected by cfg.Provider
func NewMailer(cfg config.NotificationsConfig, logger *zap.Logger) (Mailer, error) {
	switch cfg.Provider {
	case "sendgrid":
		return NewSendGridMailer(cfg), nil
	case "smtp":
		return NewSMTPMailer(cfg), nil
	case "log", "":
		return NewLogMailer(logger), nil
	default:
		return nil, fmt.Errorf("unsupported email provider: %s", cfg.Provider)
	}
}

// SendGridMailer sends through the SendGrid v3 API
type SendGridMailer struct {
	client   *sendgrid.Client
	fromName string
	fromAddr string
}

func NewSendGridMailer(cfg config.NotificationsConfig) *SendGridMailer {
	return &SendGridMailer{
		client:   sendgrid.NewSendClient(cfg.SendGrid.APIKey),
		fromName: cfg.FromName,
		fromAddr: cfg.FromAddress,
	}
}

func (m *SendGridMailer) Send(ctx context.Context, msg Message) (string, error) {
	from := mail.NewEmail(m.fromName, m.fromAddr)
	to := mail.NewEmail("", msg.To)
	message := mail.NewSingleEmail(from, msg.Subject, to, msg.Text, msg.HTML)

	for _, a := range msg.Attachments {
		attachment := mail.NewAttachment()
		attachment.SetContent(base64.StdEncoding.EncodeToString(a.Content))
		attachment.SetType(a.ContentType)
		attachment.SetFilename(a.Filename)
		attachment.SetDisposition("attachment")
		message.AddAttachment(attachment)
	}

	response, err := m.client.SendWithContext(ctx, message)
	if err != nil {
		return "", fmt.Errorf("failed to send email via SendGrid: %w", err)
	}
	if response.StatusCode >= 300 {
		return "", fmt.Errorf("sendgrid rejected message: status %d: %s", response.StatusCode, response.Body)
	}

	if ids := response.Headers["X-Message-Id"]; len(ids) > 0 {
		return ids[0], nil
	}
	return "", nil
}

// SMTPMailer sends through a plain SMTP relay
type SMTPMailer struct {
	addr     string
	auth     smtp.Auth
	fromName string
	fromAddr string
	send     func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewSMTPMailer(cfg config.NotificationsConfig) *SMTPMailer {
	var auth smtp.Auth
	if cfg.SMTP.Username != "" {
		auth = smtp.PlainAuth("", cfg.SMTP.Username, cfg.SMTP.Password, cfg.SMTP.Host)
	}
	return &SMTPMailer{
		addr:     fmt.Sprintf("%s:%d", cfg.SMTP.Host, cfg.SMTP.Port),
		auth:     auth,
		fromName: cfg.FromName,
		fromAddr: cfg.FromAddress,
		send:     smtp.SendMail,
	}
}

// Send writes a multipart MIME message. net/smtp has no context support, so
// the send runs in its own goroutine and the caller stops waiting when ctx
// is done.
func (m *SMTPMailer) Send(ctx context.Context, msg Message) (string, error) {
	messageID := fmt.Sprintf("<%s@fraudcase>", uuid.New())

	body, err := m.build(msg, messageID)
	if err != nil {
		return "", fmt.Errorf("failed to build email: %w", err)
	}

	done := make(chan error, 1)
	go func() {
		done <- m.send(m.addr, m.auth, m.fromAddr, []string{msg.To}, body)
	}()

	select {
	case err := <-done:
		if err != nil {
			return "", fmt.Errorf("failed to send email via SMTP: %w", err)
		}
		return messageID, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (m *SMTPMailer) build(msg Message, messageID string) ([]byte, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	fmt.Fprintf(&buf, "From: %s <%s>\r\n", m.fromName, m.fromAddr)
	fmt.Fprintf(&buf, "To: %s\r\n", msg.To)
	fmt.Fprintf(&buf, "Subject: %s\r\n", msg.Subject)
	fmt.Fprintf(&buf, "Message-ID: %s\r\n", messageID)
	fmt.Fprintf(&buf, "MIME-Version: 1.0\r\n")
	fmt.Fprintf(&buf, "Content-Type: multipart/mixed; boundary=%s\r\n\r\n", w.Boundary())

	part, err := w.CreatePart(textproto.MIMEHeader{"Content-Type": {"text/html; charset=UTF-8"}})
	if err != nil {
		return nil, err
	}
	content := msg.HTML
	if content == "" {
		content = msg.Text
	}
	if _, err := part.Write([]byte(content)); err != nil {
		return nil, err
	}

	for _, a := range msg.Attachments {
		part, err := w.CreatePart(textproto.MIMEHeader{
			"Content-Type":              {a.ContentType},
			"Content-Transfer-Encoding": {"base64"},
			"Content-Disposition":       {fmt.Sprintf("attachment; filename=%q", a.Filename)},
		})
		if err != nil {
			return nil, err
		}
		if _, err := part.Write([]byte(base64.StdEncoding.EncodeToString(a.Content))); err != nil {
			return nil, err
		}
	}

	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// LogMailer only logs messages. It is the default for local runs.
type LogMailer struct {
	logger *zap.Logger
}

func NewLogMailer(logger *zap.Logger) *LogMailer {
	return &LogMailer{logger: logger.Named("log_mailer")}
}

func (m *LogMailer) Send(_ context.Context, msg Message) (string, error) {
	id := uuid.New().String()
	m.logger.Info("Email suppressed by log provider",
		zap.String("message_id", id),
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject),
		zap.Int("attachments", len(msg.Attachments)))
	return id, nil
}
