package mirror

import (
	"bytes"
	"os"
	"strings"
	"text/template"

	"github.com/pelletier/go-toml/v2"

	"gissues/internal/errs"
)

const (
	defaultSubjectTemplate = "New Issue Notification on {{.Repository}}"
	defaultBodyTemplate    = "Hello,\n\n" +
		"A new issue has been created or updated in one of the repositories you're following.\n" +
		"Please check it out for more details.\n\n" +
		"Repository: {{.Repository}}\n" +
		"Title: {{.Title}}\n" +
		"Issue Number: {{.Number}}\n\n" +
		"Best regards,\n" +
		"Github Issues Tracker Team"
)

// NotificationData is what subject and body templates can reference.
type NotificationData struct {
	Owner      string
	Name       string
	Repository string
	Title      string
	Number     int
	UpdatedAt  string
}

type Templates struct {
	subject *template.Template
	body    *template.Template
}

type templateFile struct {
	Subject string `toml:"subject"`
	Body    string `toml:"body"`
}

func DefaultTemplates() *Templates {
	return &Templates{
		subject: template.Must(template.New("subject").Parse(defaultSubjectTemplate)),
		body:    template.Must(template.New("body").Parse(defaultBodyTemplate)),
	}
}

// LoadTemplates reads subject/body overrides from a TOML file. A blank path or a missing
// key keeps the default wording.
func LoadTemplates(path string) (*Templates, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return DefaultTemplates(), nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.Wrapf(err, "read notification templates %s", path)
	}
	var file templateFile
	if err := toml.Unmarshal(raw, &file); err != nil {
		return nil, errs.Wrapf(err, "decode notification templates %s", path)
	}
	return ParseTemplates(file.Subject, file.Body)
}

func ParseTemplates(subject string, body string) (*Templates, error) {
	if strings.TrimSpace(subject) == "" {
		subject = defaultSubjectTemplate
	}
	if strings.TrimSpace(body) == "" {
		body = defaultBodyTemplate
	}
	subjectTmpl, err := template.New("subject").Option("missingkey=error").Parse(subject)
	if err != nil {
		return nil, errs.Wrap(err, "parse subject template")
	}
	bodyTmpl, err := template.New("body").Option("missingkey=error").Parse(body)
	if err != nil {
		return nil, errs.Wrap(err, "parse body template")
	}
	return &Templates{subject: subjectTmpl, body: bodyTmpl}, nil
}

func (t *Templates) Render(data NotificationData) (string, string, error) {
	var subject bytes.Buffer
	if err := t.subject.Execute(&subject, data); err != nil {
		return "", "", errs.Wrap(err, "render subject")
	}
	var body bytes.Buffer
	if err := t.body.Execute(&body, data); err != nil {
		return "", "", errs.Wrap(err, "render body")
	}
	// mail headers are single-line
	return strings.Join(strings.Fields(subject.String()), " "), body.String(), nil
}
