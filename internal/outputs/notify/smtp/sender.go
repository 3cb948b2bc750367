package smtp

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"strings"

	mail "github.com/wneessen/go-mail"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"

	"github.com/bakkerme/dealwatch/internal/outputs/notify"
)

type Options struct {
	Host               string
	Port               int
	Username           string
	Password           string
	TLSMode            string
	InsecureSkipVerify bool
	From               string
	To                 string
}

// Sender mails notifications. The markdown text is sent as the plain part and
// rendered to HTML for the alternative part.
type Sender struct {
	opts      Options
	converter goldmark.Markdown
}

// Compile-time check that Sender implements notify.Sender.
var _ notify.Sender = (*Sender)(nil)

// NewSender creates an SMTP sender with explicit TLS mode support.
// The TLSMode value is optional; if empty, port-based defaults apply.
func NewSender(opts Options) (*Sender, error) {
	if err := ValidateConfig(opts.Host, opts.Port); err != nil {
		return nil, err
	}
	if strings.TrimSpace(opts.To) == "" {
		return nil, fmt.Errorf("email recipient is required")
	}
	if _, err := parseTLSMode(opts.TLSMode); err != nil {
		return nil, err
	}
	if opts.From == "" {
		opts.From = opts.Username
	}
	return &Sender{
		opts: opts,
		converter: goldmark.New(
			goldmark.WithExtensions(extension.Linkify),
			goldmark.WithRendererOptions(html.WithHardWraps()),
		),
	}, nil
}

// TLSMode determines how the SMTP client should negotiate TLS.
type TLSMode string

const (
	// TLSModeAuto uses port-based defaults (implicit TLS on 465, STARTTLS otherwise).
	TLSModeAuto TLSMode = "auto"
	// TLSModeDisabled forces cleartext SMTP.
	TLSModeDisabled TLSMode = "disabled"
	// TLSModeStartTLS requires STARTTLS on the SMTP connection.
	TLSModeStartTLS TLSMode = "starttls"
	// TLSModeImplicit uses implicit TLS (SMTPS), typically on port 465.
	TLSModeImplicit TLSMode = "implicit"
)

func (s *Sender) Send(ctx context.Context, message notify.Message) error {
	if ctx == nil {
		ctx = context.Background()
	}
	m, err := s.buildMessage(message)
	if err != nil {
		return err
	}

	mode, err := s.resolveTLSMode()
	if err != nil {
		return err
	}
	clientOpts := []mail.Option{
		mail.WithPort(s.opts.Port),
		mail.WithTLSConfig(&tls.Config{
			ServerName:         s.opts.Host,
			MinVersion:         tls.VersionTLS12,
			InsecureSkipVerify: s.opts.InsecureSkipVerify,
		}),
	}
	switch mode {
	case TLSModeDisabled:
		clientOpts = append(clientOpts, mail.WithTLSPortPolicy(mail.NoTLS))
	case TLSModeStartTLS:
		clientOpts = append(clientOpts, mail.WithTLSPortPolicy(mail.TLSMandatory))
	case TLSModeImplicit:
		clientOpts = append(clientOpts, mail.WithSSL())
	default:
		return fmt.Errorf("unsupported smtp tls mode %q", mode)
	}
	if s.opts.Username != "" {
		clientOpts = append(
			clientOpts,
			mail.WithUsername(s.opts.Username),
			mail.WithPassword(s.opts.Password),
			mail.WithSMTPAuth(mail.SMTPAuthAutoDiscover),
		)
	}

	client, err := mail.NewClient(s.opts.Host, clientOpts...)
	if err != nil {
		return fmt.Errorf("failed to create SMTP client: %w", err)
	}
	if err := client.DialAndSendWithContext(ctx, m); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}

func (s *Sender) buildMessage(message notify.Message) (*mail.Msg, error) {
	m := mail.NewMsg()
	if err := m.From(s.opts.From); err != nil {
		return nil, fmt.Errorf("invalid from address %q: %w", s.opts.From, err)
	}
	if err := m.ToFromString(s.opts.To); err != nil {
		return nil, fmt.Errorf("invalid to address(es) %q: %w", s.opts.To, err)
	}
	if err := m.EnvelopeFrom(s.opts.From); err != nil {
		return nil, fmt.Errorf("invalid envelope from address %q: %w", s.opts.From, err)
	}
	m.Subject(message.Subject)

	body, err := s.renderHTML(message.Text)
	if err != nil {
		return nil, err
	}
	m.SetBodyString(mail.TypeTextPlain, message.Text)
	m.AddAlternativeString(mail.TypeTextHTML, body)
	return m, nil
}

func (s *Sender) renderHTML(text string) (string, error) {
	var buf bytes.Buffer
	if err := s.converter.Convert([]byte(text), &buf); err != nil {
		return "", fmt.Errorf("render email markdown: %w", err)
	}
	return buf.String(), nil
}

// resolveTLSMode returns the configured TLS behavior, falling back to port defaults.
func (s *Sender) resolveTLSMode() (TLSMode, error) {
	mode, err := parseTLSMode(s.opts.TLSMode)
	if err != nil {
		return "", err
	}
	if mode == TLSModeAuto {
		if s.opts.Port == 465 {
			return TLSModeImplicit, nil
		}
		return TLSModeStartTLS, nil
	}
	return mode, nil
}

// parseTLSMode normalizes the TLS mode string and validates supported values.
func parseTLSMode(mode string) (TLSMode, error) {
	normalized := strings.TrimSpace(strings.ToLower(mode))
	if normalized == "" || normalized == string(TLSModeAuto) {
		return TLSModeAuto, nil
	}
	switch normalized {
	case "disabled", "off", "none":
		return TLSModeDisabled, nil
	case "starttls", "start_tls":
		return TLSModeStartTLS, nil
	case "implicit", "smtptls", "smtp_tls":
		return TLSModeImplicit, nil
	default:
		return "", fmt.Errorf("invalid smtp tls mode %q (expected: auto, disabled/off/none, starttls/start_tls, implicit/smtptls/smtp_tls)", mode)
	}
}

func ValidateConfig(host string, port int) error {
	if strings.TrimSpace(host) == "" {
		return fmt.Errorf("smtp host is required")
	}
	if port <= 0 || port > 65535 {
		return fmt.Errorf("smtp port must be between 1 and 65535")
	}
	if net.ParseIP(host) == nil && strings.ContainsAny(host, " /:") {
		return fmt.Errorf("smtp host %q is not a host name", host)
	}
	return nil
}
