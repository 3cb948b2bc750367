package notify

import (
	"context"
	"fmt"
	"strings"
	"text/template"
)

// Message is one notification. Text uses the lightweight markdown subset the
// chat channel understands; Subject is only used by channels that have one.
type Message struct {
	Subject string
	Text    string
}

// Listing is the data a per-listing template renders against.
type Listing struct {
	Title     string
	Link      string
	Price     string
	PriceText string
	Source    string
}

// Sender delivers a message to an external channel.
type Sender interface {
	Send(ctx context.Context, message Message) error
}

// ParseTemplate parses a per-listing message template. The template may call
// escape to make listing text safe for the channel's markup.
func ParseTemplate(name, text string, escape func(string) string) (*template.Template, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%s template is empty", name)
	}
	if escape == nil {
		escape = func(s string) string { return s }
	}
	tmpl, err := template.New(name).Funcs(template.FuncMap{"escape": escape}).Option("missingkey=error").Parse(text)
	if err != nil {
		return nil, fmt.Errorf("parse %s template: %w", name, err)
	}
	return tmpl, nil
}

// Render executes tmpl against data.
func Render(tmpl *template.Template, data any) (string, error) {
	var b strings.Builder
	if err := tmpl.Execute(&b, data); err != nil {
		return "", fmt.Errorf("execute %s template: %w", tmpl.Name(), err)
	}
	return b.String(), nil
}
