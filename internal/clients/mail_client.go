package clients

import (
	"context"
	"fmt"
	"time"

	"github.com/wneessen/go-mail"
	"go.uber.org/zap"
)

// Mail is one outgoing message. HTML is optional.
type Mail struct {
	To      string
	ToName  string
	Subject string
	Text    string
	HTML    string
}

type Mailer interface {
	Send(ctx context.Context, msgs ...Mail) error
}

type MailConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	FromName string
	TLS      bool
}

type smtpMailer struct {
	config MailConfig
}

func NewSMTPMailer(config MailConfig) Mailer {
	return &smtpMailer{config: config}
}

func (m *smtpMailer) client() (*mail.Client, error) {
	opts := []mail.Option{
		mail.WithPort(m.config.Port),
		mail.WithTimeout(15 * time.Second),
	}
	if m.config.TLS {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
	} else {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSOpportunistic))
	}
	if m.config.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(m.config.Username),
			mail.WithPassword(m.config.Password),
		)
	}
	return mail.NewClient(m.config.Host, opts...)
}

func (m *smtpMailer) Send(ctx context.Context, msgs ...Mail) error {
	if len(msgs) == 0 {
		return nil
	}

	out := make([]*mail.Msg, 0, len(msgs))
	for _, msg := range msgs {
		built, err := m.build(msg)
		if err != nil {
			return err
		}
		out = append(out, built)
	}

	c, err := m.client()
	if err != nil {
		return fmt.Errorf("failed to create smtp client: %w", err)
	}
	if err := c.DialAndSendWithContext(ctx, out...); err != nil {
		return fmt.Errorf("failed to send mail: %w", err)
	}
	return nil
}

func (m *smtpMailer) build(msg Mail) (*mail.Msg, error) {
	out := mail.NewMsg()
	if err := out.FromFormat(m.config.FromName, m.config.From); err != nil {
		return nil, fmt.Errorf("invalid sender %q: %w", m.config.From, err)
	}
	if err := out.AddToFormat(msg.ToName, msg.To); err != nil {
		return nil, fmt.Errorf("invalid recipient %q: %w", msg.To, err)
	}
	out.Subject(msg.Subject)
	out.SetBodyString(mail.TypeTextPlain, msg.Text)
	if msg.HTML != "" {
		out.AddAlternativeString(mail.TypeTextHTML, msg.HTML)
	}
	return out, nil
}

// logMailer writes messages to the log instead of delivering them.
type logMailer struct {
	log *zap.SugaredLogger
}

func NewLogMailer(log *zap.SugaredLogger) Mailer {
	return &logMailer{log: log}
}

func (m *logMailer) Send(_ context.Context, msgs ...Mail) error {
	for _, msg := range msgs {
		m.log.Infow("mail not delivered (mail disabled)",
			"to", msg.To,
			"subject", msg.Subject,
			"bytes", len(msg.Text)+len(msg.HTML),
		)
	}
	return nil
}
