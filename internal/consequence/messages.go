package consequence

import (
	_ "embed"
	"fmt"
	"hash/fnv"
	"time"

	"gopkg.in/yaml.v3"

	types "github.com/yungbote/forfeit-backend/internal/domain"
	"github.com/yungbote/forfeit-backend/internal/platform/render"
)

//go:embed messages.yaml
var messagesYAML []byte

// postMaxRunes is the X post length limit.
const postMaxRunes = 280

type emailMessage struct {
	Subject string `yaml:"subject"`
	Body    string `yaml:"body"`
}

type messageCatalog struct {
	Social map[types.Severity][]string     `yaml:"social"`
	Email  map[types.Severity]emailMessage `yaml:"email"`
}

type messageData struct {
	Name     string
	Contact  string
	Goal     string
	Item     string
	Deadline string
}

func newMessageData(it types.OverdueItem, name string) messageData {
	item := it.Title
	if item == "" {
		item = it.GoalTitle
	}
	return messageData{
		Name:     name,
		Goal:     it.GoalTitle,
		Item:     item,
		Deadline: formatDeadline(it.Deadline),
	}
}

func loadMessages() (*messageCatalog, error) {
	var c messageCatalog
	if err := yaml.Unmarshal(messagesYAML, &c); err != nil {
		return nil, fmt.Errorf("parse message catalog: %w", err)
	}
	for _, sev := range []types.Severity{types.SeverityMinor, types.SeverityMajor} {
		if len(c.Social[sev]) == 0 {
			return nil, fmt.Errorf("message catalog: no social templates for %s", sev)
		}
		if c.Email[sev].Subject == "" || c.Email[sev].Body == "" {
			return nil, fmt.Errorf("message catalog: no email template for %s", sev)
		}
	}
	return &c, nil
}

// socialPost picks a template by hashing the idempotency key so a retried pass
// composes the same text.
func (c *messageCatalog) socialPost(sev types.Severity, key string, data messageData) (string, error) {
	set := c.Social[sev]
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	tmpl := set[int(h.Sum32()%uint32(len(set)))]
	text, err := render.Text("social_"+string(sev), tmpl, data)
	if err != nil {
		return "", err
	}
	return render.Truncate(text, postMaxRunes), nil
}

func (c *messageCatalog) email(sev types.Severity, data messageData) (subject, html, text string, err error) {
	m := c.Email[sev]
	if subject, err = render.Text("email_subject_"+string(sev), m.Subject, data); err != nil {
		return "", "", "", err
	}
	if text, err = render.Text("email_body_"+string(sev), m.Body, data); err != nil {
		return "", "", "", err
	}
	return subject, render.MarkdownHTML(text), text, nil
}

func formatDeadline(t time.Time) string {
	return t.UTC().Format("Jan 2, 2006 15:04 MST")
}
