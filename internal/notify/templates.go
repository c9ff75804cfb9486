package notify

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/yungbote/forfeit-backend/internal/platform/render"
)

const (
	TemplateConsequenceExecuted = "consequence_executed"
	TemplateConsequenceSpared   = "consequence_spared"
	TemplateSubmissionPassed    = "submission_passed"
	TemplateSubmissionFailed    = "submission_failed"
	TemplateReminderDay         = "deadline_reminder_day"
	TemplateReminderHour        = "deadline_reminder_hour"
)

//go:embed templates.yaml
var templatesYAML []byte

type template struct {
	Subject string `yaml:"subject"`
	Body    string `yaml:"body"`
}

type catalog map[string]template

func loadCatalog() (catalog, error) {
	var c catalog
	if err := yaml.Unmarshal(templatesYAML, &c); err != nil {
		return nil, fmt.Errorf("parse notification templates: %w", err)
	}
	for _, name := range []string{
		TemplateConsequenceExecuted, TemplateConsequenceSpared,
		TemplateSubmissionPassed, TemplateSubmissionFailed,
		TemplateReminderDay, TemplateReminderHour,
	} {
		if t, ok := c[name]; !ok || t.Subject == "" || t.Body == "" {
			return nil, fmt.Errorf("notification template %q missing", name)
		}
	}
	return c, nil
}

type rendered struct {
	Subject string
	HTML    string
	Text    string
}

func (c catalog) render(name string, data any) (*rendered, error) {
	t, ok := c[name]
	if !ok {
		return nil, fmt.Errorf("unknown notification template %q", name)
	}
	subject, err := render.Text(name+"_subject", t.Subject, data)
	if err != nil {
		return nil, err
	}
	body, err := render.Text(name+"_body", t.Body, data)
	if err != nil {
		return nil, err
	}
	return &rendered{Subject: subject, Text: body, HTML: render.MarkdownHTML(body)}, nil
}
