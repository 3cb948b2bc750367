package output

import (
	"context"
	"fmt"
	"log/slog"
	"text/template"

	"github.com/bakkerme/dealwatch/internal/config"
	"github.com/bakkerme/dealwatch/internal/core"
	"github.com/bakkerme/dealwatch/internal/outputs/notify"
)

// NotifyProcessor formats matched listings and hands them to one channel.
type NotifyProcessor struct {
	name    string
	header  []string
	subject string
	item    *template.Template
	sender  notify.Sender
}

// Compile-time check that NotifyProcessor implements core.NotifyProcessor.
var _ core.NotifyProcessor = (*NotifyProcessor)(nil)

// NewNotifyProcessor builds a processor for one channel. escape is exposed to
// the item template and may be nil for channels without markup.
func NewNotifyProcessor(name string, cfg *config.NotifyConfig, subject string, sender notify.Sender, escape func(string) string) (*NotifyProcessor, error) {
	if cfg == nil {
		return nil, fmt.Errorf("notify config is required")
	}
	itemText := cfg.ItemTemplate
	if itemText == "" {
		itemText = config.DefaultItemTemplate
	}
	item, err := notify.ParseTemplate(name+"_item", itemText, escape)
	if err != nil {
		return nil, err
	}
	header := cfg.Header
	if header == nil {
		header = config.DefaultHeader
	}
	p := &NotifyProcessor{
		name:    name,
		header:  append([]string(nil), header...),
		subject: subject,
		item:    item,
		sender:  sender,
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *NotifyProcessor) Name() string {
	return p.name
}

func (p *NotifyProcessor) Validate() error {
	if p.sender == nil {
		return fmt.Errorf("%s sender is required", p.name)
	}
	if p.item == nil {
		return fmt.Errorf("%s item template is required", p.name)
	}
	return nil
}

// NotifyHeader sends the header messages in order and stops at the first
// failure.
func (p *NotifyProcessor) NotifyHeader(ctx context.Context) error {
	for i, text := range p.header {
		if err := p.sender.Send(ctx, notify.Message{Subject: p.subject, Text: text}); err != nil {
			return fmt.Errorf("%s header %d: %w", p.name, i, err)
		}
	}
	if len(p.header) > 0 {
		core.LoggerFromContext(ctx).Debug("Sent batch header", slog.String("channel", p.name), slog.Int("messages", len(p.header)))
	}
	return nil
}

func (p *NotifyProcessor) Notify(ctx context.Context, block *core.ListingBlock) error {
	if block == nil {
		return fmt.Errorf("listing is required")
	}
	text, err := notify.Render(p.item, notify.Listing{
		Title:     block.Title,
		Link:      block.Link,
		Price:     block.Price.String(),
		PriceText: block.PriceText,
		Source:    block.Source,
	})
	if err != nil {
		return fmt.Errorf("%s: %w", p.name, err)
	}
	if err := p.sender.Send(ctx, notify.Message{Subject: p.subject, Text: text}); err != nil {
		return fmt.Errorf("%s: send %s: %w", p.name, block.Link, err)
	}
	return nil
}
