package services

import (
	"bytes"
	_ "embed"
	"fmt"
	"strings"
	"text/template"

	"gopkg.in/yaml.v3"

	"github.com/dmeadows001/turn-qa-sub000/internal/models"
)

//go:embed templates/messages.yaml
var messagesYAML []byte

type messageFile struct {
	Footer        string                     `yaml:"footer"`
	TimeFormat    string                     `yaml:"time_format"`
	Notifications map[string]notificationDef `yaml:"notifications"`
	Replies       map[string]string          `yaml:"replies"`
}

type notificationDef struct {
	Path    string `yaml:"path"`
	Subject string `yaml:"subject"`
	Body    string `yaml:"body"`
}

type compiledNotification struct {
	path    *template.Template
	subject *template.Template
	body    *template.Template
}

// messageVars is the data every template sees.
type messageVars struct {
	OrgName      string
	TurnID       string
	PropertyName string
	CleanerName  string
	When         string
	Note         string
	Link         string
}

type renderedMessage struct {
	Subject string
	SMS     string
	Email   string
}

type messageCatalog struct {
	footer        string
	timeFormat    string
	notifications map[models.NotificationKind]compiledNotification
	replies       map[string]*template.Template
}

func loadMessageCatalog() (*messageCatalog, error) {
	return parseMessageCatalog(messagesYAML)
}

func parseMessageCatalog(raw []byte) (*messageCatalog, error) {
	var f messageFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse message templates: %w", err)
	}
	if strings.TrimSpace(f.Footer) == "" {
		return nil, fmt.Errorf("message templates: footer is required")
	}
	cat := &messageCatalog{
		footer:        f.Footer,
		timeFormat:    f.TimeFormat,
		notifications: make(map[models.NotificationKind]compiledNotification),
		replies:       make(map[string]*template.Template),
	}
	if cat.timeFormat == "" {
		cat.timeFormat = "Jan 2 3:04 PM MST"
	}

	for _, kind := range []models.NotificationKind{
		models.NotifySubmitted, models.NotifyFix, models.NotifyNeedsFix, models.NotifyApproved,
	} {
		def, ok := f.Notifications[string(kind)]
		if !ok {
			return nil, fmt.Errorf("message templates: missing notification %q", kind)
		}
		var c compiledNotification
		var err error
		if c.path, err = template.New(string(kind) + ".path").Parse(def.Path); err != nil {
			return nil, err
		}
		if c.subject, err = template.New(string(kind) + ".subject").Parse(def.Subject); err != nil {
			return nil, err
		}
		if c.body, err = template.New(string(kind) + ".body").Parse(def.Body); err != nil {
			return nil, err
		}
		cat.notifications[kind] = c
	}
	for name, body := range f.Replies {
		t, err := template.New("reply." + name).Parse(body)
		if err != nil {
			return nil, err
		}
		cat.replies[name] = t
	}
	return cat, nil
}

// renderNotification fills in the deep link and appends the opt-out footer.
func (c *messageCatalog) renderNotification(kind models.NotificationKind, baseURL string, vars messageVars) (*renderedMessage, error) {
	tpl, ok := c.notifications[kind]
	if !ok {
		return nil, fmt.Errorf("no template for notification kind %q", kind)
	}
	path, err := execute(tpl.path, vars)
	if err != nil {
		return nil, err
	}
	vars.Link = strings.TrimRight(baseURL, "/") + path

	subject, err := execute(tpl.subject, vars)
	if err != nil {
		return nil, err
	}
	body, err := execute(tpl.body, vars)
	if err != nil {
		return nil, err
	}
	return &renderedMessage{
		Subject: subject,
		SMS:     body + " " + c.footer,
		Email:   body,
	}, nil
}

func (c *messageCatalog) renderReply(name, orgName string) (string, error) {
	t, ok := c.replies[name]
	if !ok {
		return "", fmt.Errorf("no reply template %q", name)
	}
	return execute(t, messageVars{OrgName: orgName})
}

func execute(t *template.Template, vars messageVars) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, vars); err != nil {
		return "", fmt.Errorf("render %s: %w", t.Name(), err)
	}
	return strings.TrimSpace(buf.String()), nil
}
