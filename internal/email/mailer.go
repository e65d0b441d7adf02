// Package email delivers InkWell's transactional emails over SMTP.
package email

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/wneessen/go-mail"

	"inkwell/internal/config"
	"inkwell/internal/metrics"
	"inkwell/internal/model"
)

// Template names
const (
	TemplateVerifyEmail   = "verifyEmail"
	TemplateWelcome       = "welcome"
	TemplateResetPassword = "resetPassword"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.New("email").
	Funcs(template.FuncMap{"button": newButton}).
	ParseFS(templateFS, "templates/*.html"))

type button struct {
	URL   string
	Label string
	Color template.CSS
}

func newButton(url, label, color string) button {
	return button{URL: url, Label: label, Color: template.CSS(color)}
}

// message is the data every template renders.
type message struct {
	Subject   string
	FirstName string
	URL       string
}

var subjects = map[string]string{
	TemplateVerifyEmail:   "Verify your InkWell email address",
	TemplateWelcome:       "Welcome to the InkWell family!",
	TemplateResetPassword: "Your password reset token (valid for 10 minutes)",
}

// Sender hands a built message to the transport.
type Sender interface {
	DialAndSendWithContext(ctx context.Context, messages ...*mail.Msg) error
}

// Mailer renders templates and sends them with a bounded timeout.
type Mailer struct {
	sender   Sender
	from     string
	fromName string
	timeout  time.Duration
}

// NewMailer builds an SMTP client from cfg.
func NewMailer(cfg *config.Config) (*Mailer, error) {
	opts := []mail.Option{
		mail.WithPort(cfg.SMTPPort),
		mail.WithTimeout(cfg.MailTimeout),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
	}
	if cfg.SMTPUsername != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.SMTPUsername),
			mail.WithPassword(cfg.SMTPPassword),
		)
	}

	client, err := mail.NewClient(cfg.SMTPHost, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create smtp client: %w", err)
	}
	return NewMailerWithSender(client, cfg.MailFrom, cfg.MailFromName, cfg.MailTimeout), nil
}

// NewMailerWithSender wires an existing transport.
func NewMailerWithSender(sender Sender, from, fromName string, timeout time.Duration) *Mailer {
	return &Mailer{sender: sender, from: from, fromName: fromName, timeout: timeout}
}

func (m *Mailer) SendVerification(ctx context.Context, user *model.User, url string) error {
	return m.send(ctx, user, TemplateVerifyEmail, url)
}

func (m *Mailer) SendWelcome(ctx context.Context, user *model.User, url string) error {
	return m.send(ctx, user, TemplateWelcome, url)
}

func (m *Mailer) SendPasswordReset(ctx context.Context, user *model.User, url string) error {
	return m.send(ctx, user, TemplateResetPassword, url)
}

func (m *Mailer) send(ctx context.Context, user *model.User, name, url string) error {
	msg, err := m.build(user, name, url)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	err = m.sender.DialAndSendWithContext(ctx, msg)
	metrics.RecordMail(name, err == nil)
	if err != nil {
		log.WithError(err).WithFields(log.Fields{
			"template": name,
			"user_id":  user.ID,
		}).Error("[Mailer] Failed to send email")
		return fmt.Errorf("send %s email: %w", name, err)
	}

	log.WithFields(log.Fields{"template": name, "user_id": user.ID}).Info("[Mailer] Email sent")
	return nil
}

func (m *Mailer) build(user *model.User, name, url string) (*mail.Msg, error) {
	data := message{
		Subject:   subjects[name],
		FirstName: firstName(user.FullName),
		URL:       url,
	}

	var html bytes.Buffer
	if err := templates.ExecuteTemplate(&html, name+".html", data); err != nil {
		return nil, fmt.Errorf("render %s email: %w", name, err)
	}

	msg := mail.NewMsg()
	if err := msg.FromFormat(m.fromName, m.from); err != nil {
		return nil, fmt.Errorf("invalid from address: %w", err)
	}
	if err := msg.To(user.Email); err != nil {
		return nil, fmt.Errorf("invalid recipient: %w", err)
	}
	msg.Subject(data.Subject)
	msg.SetBodyString(mail.TypeTextHTML, html.String())
	msg.AddAlternativeString(mail.TypeTextPlain, plainText(data))
	return msg, nil
}

func firstName(fullName string) string {
	if fields := strings.Fields(fullName); len(fields) > 0 {
		return fields[0]
	}
	return "there"
}

func plainText(data message) string {
	return fmt.Sprintf("Hi %s,\n\n%s\n\n%s\n\nIf you didn't request this, you can safely ignore this email.\n",
		data.FirstName, data.Subject, data.URL)
}
