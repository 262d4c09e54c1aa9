package mailer

import (
	"bytes"
	"fmt"
	"mime"
	"mime/quotedprintable"
	"net/mail"
	"strings"
	"text/template"
	"time"

	"github.com/google/uuid"
	"github.com/mikey/hr-notifier/internal/core"
)

// Message is a composed plain-text email
type Message struct {
	From      string
	To        []string
	CC        []string
	Subject   string
	Body      string
	MessageID string
	Date      time.Time
}

// Recipients returns every envelope recipient
func (m *Message) Recipients() []string {
	out := make([]string, 0, len(m.To)+len(m.CC))
	out = append(out, m.To...)
	return append(out, m.CC...)
}

// Bytes renders the message in RFC 5322 form with a quoted-printable body
func (m *Message) Bytes() ([]byte, error) {
	var buf bytes.Buffer

	writeHeader(&buf, "From", m.From)
	writeHeader(&buf, "To", strings.Join(m.To, ", "))
	if len(m.CC) > 0 {
		writeHeader(&buf, "Cc", strings.Join(m.CC, ", "))
	}
	writeHeader(&buf, "Subject", mime.QEncoding.Encode("utf-8", m.Subject))
	writeHeader(&buf, "Date", m.Date.Format(time.RFC1123Z))
	writeHeader(&buf, "Message-ID", m.MessageID)
	writeHeader(&buf, "MIME-Version", "1.0")
	writeHeader(&buf, "Content-Type", "text/plain; charset=utf-8")
	writeHeader(&buf, "Content-Transfer-Encoding", "quoted-printable")
	buf.WriteString("\r\n")

	qp := quotedprintable.NewWriter(&buf)
	body := strings.ReplaceAll(m.Body, "\r\n", "\n")
	if _, err := qp.Write([]byte(strings.ReplaceAll(body, "\n", "\r\n"))); err != nil {
		return nil, fmt.Errorf("failed to encode body: %w", err)
	}
	if err := qp.Close(); err != nil {
		return nil, fmt.Errorf("failed to encode body: %w", err)
	}

	return buf.Bytes(), nil
}

func writeHeader(buf *bytes.Buffer, key, value string) {
	buf.WriteString(key)
	buf.WriteString(": ")
	buf.WriteString(value)
	buf.WriteString("\r\n")
}

// ComposerConfig holds the static content settings
type ComposerConfig struct {
	From                   string
	SenderName             string
	ProbationFormURL       string
	ContractRenewalFormURL string
}

// Composer builds reminder and separation emails
type Composer struct {
	cfg        ComposerConfig
	clock      core.Clock
	domain     string
	reminder   *template.Template
	separation *template.Template
}

var templateFuncs = template.FuncMap{
	"date": func(t *time.Time) string {
		if t == nil {
			return "-"
		}
		return t.Format(core.DateLayout)
	},
	"day": func(t time.Time) string { return t.Format(core.DateLayout) },
}

const reminderTemplate = `Dear {{.Greeting}},

This is an urgent reminder that the {{.TypeName}} for the following {{if eq (len .Entries) 1}}employee is{{else}}employees are{{end}} approaching and requires your immediate attention.
{{range .Entries}}
Employee Details:
- Name: {{.Employee.Name}}
{{- if .Employee.Department}}
- Department: {{.Employee.Department}}
{{- end}}
- Evaluation Type: {{$.TypeName}}
- Due Date: {{day .DueDate}}
- Days Remaining: {{.DaysRemaining}} days
{{end}}
{{- if .FormURL}}
Please complete the evaluation using this link:
{{.FormURL}}
{{end}}
It is important to complete this evaluation before the deadline to ensure proper HR compliance.

Thank you for your prompt attention to this matter.

Best regards,
{{.Sender}}
`

const separationTemplate = `Hello,

Please be informed that the following {{if eq (len .Employees) 1}}employee has{{else}}employees have{{end}} separated from the company between {{day .Range.From}} and {{day .Range.To}}:
{{range .Employees}}
- Name: {{.Name}}
{{- if .Department}}
  Department: {{.Department}}
{{- end}}
{{- if .EmployeeCRM}}
  CRM: {{.EmployeeCRM}}
{{- end}}
  Status: {{.Status}}
  Exit Date: {{date .SeparationDate}}
{{end}}
Kindly process the offboarding for the accounts listed above.

Best regards,
{{.Sender}}
`

// NewComposer creates a new message composer
func NewComposer(cfg ComposerConfig, clock core.Clock) (*Composer, error) {
	if clock == nil {
		clock = core.SystemClock()
	}
	if cfg.SenderName == "" {
		cfg.SenderName = "HR Team"
	}

	reminder, err := template.New("reminder").Funcs(templateFuncs).Parse(reminderTemplate)
	if err != nil {
		return nil, fmt.Errorf("failed to parse reminder template: %w", err)
	}
	separation, err := template.New("separation").Funcs(templateFuncs).Parse(separationTemplate)
	if err != nil {
		return nil, fmt.Errorf("failed to parse separation template: %w", err)
	}

	domain := "localhost"
	if addr, err := mail.ParseAddress(cfg.From); err == nil {
		if at := strings.LastIndex(addr.Address, "@"); at >= 0 {
			domain = addr.Address[at+1:]
		}
	}

	return &Composer{
		cfg:        cfg,
		clock:      clock,
		domain:     domain,
		reminder:   reminder,
		separation: separation,
	}, nil
}

// Reminder composes the evaluation reminder for one batch
func (c *Composer) Reminder(batch *core.EmailBatch) (*Message, error) {
	if len(batch.Entries) == 0 {
		return nil, fmt.Errorf("reminder batch for %s has no entries", batch.LeaderEmail)
	}

	greeting := batch.LeaderName()
	if greeting == "" {
		greeting = batch.LeaderEmail
	}

	var body bytes.Buffer
	err := c.reminder.Execute(&body, map[string]any{
		"Greeting": greeting,
		"TypeName": batch.Type.DisplayName(),
		"Entries":  batch.Entries,
		"FormURL":  c.formURL(batch.Type),
		"Sender":   c.cfg.SenderName,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to render reminder: %w", err)
	}

	subject := fmt.Sprintf("Urgent: %s Required - %s", batch.Type.DisplayName(), batch.Entries[0].Employee.Name)
	if n := len(batch.Entries); n > 1 {
		subject = fmt.Sprintf("Urgent: %s Required - %d employees", batch.Type.DisplayName(), n)
	}

	return c.message(batch.To, batch.CC, subject, body.String()), nil
}

// Separation composes the vendor separation notice
func (c *Composer) Separation(notice *core.SeparationNotice) (*Message, error) {
	var body bytes.Buffer
	err := c.separation.Execute(&body, map[string]any{
		"Employees": notice.Employees,
		"Range":     notice.Range,
		"Sender":    c.cfg.SenderName,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to render separation notice: %w", err)
	}

	subject := fmt.Sprintf("Employee Separation Notice (%s to %s)",
		notice.Range.From.Format(core.DateLayout), notice.Range.To.Format(core.DateLayout))

	return c.message([]string{notice.To}, notice.CC, subject, body.String()), nil
}

func (c *Composer) formURL(t core.EvaluationType) string {
	switch t {
	case core.EvaluationProbation:
		return c.cfg.ProbationFormURL
	case core.EvaluationContractRenewal:
		return c.cfg.ContractRenewalFormURL
	default:
		return ""
	}
}

func (c *Composer) message(to, cc []string, subject, body string) *Message {
	return &Message{
		From:      c.cfg.From,
		To:        append([]string(nil), to...),
		CC:        append([]string(nil), cc...),
		Subject:   subject,
		Body:      body,
		MessageID: fmt.Sprintf("<%s@%s>", uuid.NewString(), c.domain),
		Date:      c.clock.Now(),
	}
}
