// Package email delivers the proposal follow-up via SMTP.
package email

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/mail"
	"net/smtp"
	"net/textproto"
	"strings"

	"github.com/rs/zerolog"
)

// Config holds SMTP configuration
type Config struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
	FromName string
}

// Attachment is either inline bytes or a reference to a stored export.
type Attachment struct {
	Name        string
	ContentType string
	Data        []byte
	Reference   string
}

type Message struct {
	ToName     string
	To         string
	Subject    string
	Body       string
	Attachment *Attachment
}

// Receipt describes what happened to a message.
type Receipt struct {
	Simulated bool
	Bytes     int
}

var ErrNoRecipient = errors.New("email recipient is required")

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// Service provides email sending
type Service struct {
	config Config
	server string
	auth   smtp.Auth
	send   sendFunc
	log    zerolog.Logger
}

// NewService creates a new email service
func NewService(config Config, log zerolog.Logger) *Service {
	var auth smtp.Auth
	if config.Username != "" {
		auth = smtp.PlainAuth("", config.Username, config.Password, config.Host)
	}
	return &Service{
		config: config,
		server: config.Host + ":" + config.Port,
		auth:   auth,
		send:   smtp.SendMail,
		log:    log,
	}
}

// IsConfigured returns true if email is configured
func (s *Service) IsConfigured() bool {
	return s.config.Host != "" && s.config.Port != "" && s.config.From != ""
}

// Send delivers msg. Without SMTP configuration the message is built,
// logged and reported as simulated.
func (s *Service) Send(msg Message) (Receipt, error) {
	if strings.TrimSpace(msg.To) == "" {
		return Receipt{}, ErrNoRecipient
	}
	from := s.config.From
	if from == "" {
		from = "copilot@localhost"
	}

	raw, err := buildMessage(s.fromHeader(from), msg)
	if err != nil {
		return Receipt{}, fmt.Errorf("build message: %w", err)
	}

	event := s.log.With().Str("to", msg.To).Str("subject", msg.Subject).Int("bytes", len(raw)).Logger()
	if !s.IsConfigured() {
		event.Info().Msg("smtp not configured, email send simulated")
		return Receipt{Simulated: true, Bytes: len(raw)}, nil
	}

	if err := s.send(s.server, s.auth, from, []string{msg.To}, raw); err != nil {
		event.Error().Err(err).Msg("email send failed")
		return Receipt{}, fmt.Errorf("smtp send: %w", err)
	}
	event.Info().Msg("email sent")
	return Receipt{Bytes: len(raw)}, nil
}

func (s *Service) fromHeader(from string) string {
	if s.config.FromName == "" {
		return from
	}
	return (&mail.Address{Name: s.config.FromName, Address: from}).String()
}

func buildMessage(from string, msg Message) ([]byte, error) {
	to := msg.To
	if msg.ToName != "" {
		to = (&mail.Address{Name: msg.ToName, Address: msg.To}).String()
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	text, err := mw.CreatePart(textproto.MIMEHeader{
		"Content-Type":              {"text/plain; charset=UTF-8"},
		"Content-Transfer-Encoding": {"8bit"},
	})
	if err != nil {
		return nil, err
	}
	fmt.Fprint(text, strings.ReplaceAll(msg.Body, "\n", "\r\n"))
	if a := msg.Attachment; a != nil && len(a.Data) == 0 && a.Reference != "" {
		fmt.Fprintf(text, "\r\n\r\nAttachment: %s (%s)\r\n", a.Name, a.Reference)
	}

	if a := msg.Attachment; a != nil && len(a.Data) > 0 {
		contentType := a.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		part, err := mw.CreatePart(textproto.MIMEHeader{
			"Content-Type":              {contentType},
			"Content-Transfer-Encoding": {"base64"},
			"Content-Disposition":       {mime.FormatMediaType("attachment", map[string]string{"filename": a.Name})},
		})
		if err != nil {
			return nil, err
		}
		if err := writeBase64(part, a.Data); err != nil {
			return nil, err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	var out bytes.Buffer
	fmt.Fprintf(&out, "To: %s\r\n", to)
	fmt.Fprintf(&out, "From: %s\r\n", from)
	fmt.Fprintf(&out, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", msg.Subject))
	fmt.Fprintf(&out, "MIME-Version: 1.0\r\n")
	fmt.Fprintf(&out, "Content-Type: multipart/mixed; boundary=%q\r\n", mw.Boundary())
	fmt.Fprintf(&out, "\r\n")
	out.Write(body.Bytes())
	return out.Bytes(), nil
}

// writeBase64 wraps encoded lines at 76 characters.
func writeBase64(w io.Writer, data []byte) error {
	encoded := base64.StdEncoding.EncodeToString(data)
	for len(encoded) > 0 {
		n := min(76, len(encoded))
		if _, err := fmt.Fprintf(w, "%s\r\n", encoded[:n]); err != nil {
			return err
		}
		encoded = encoded[n:]
	}
	return nil
}
