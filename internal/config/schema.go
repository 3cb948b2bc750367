package config

import (
	"fmt"
	"net/mail"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/bakkerme/dealwatch/internal/core"
	"github.com/bakkerme/dealwatch/internal/dedupe"
	"github.com/bakkerme/dealwatch/internal/outputs/notify"
)

// WatchDocument represents the top-level structure of a dealwatch.yaml file
type WatchDocument struct {
	Watch Watch `yaml:"watch"`
}

// Watch is one source, its criteria and where matches are sent.
type Watch struct {
	Name     string         `yaml:"name"`
	Schedule *CronTrigger   `yaml:"schedule,omitempty"`
	Source   SourceConfig   `yaml:"source"`
	Criteria CriteriaConfig `yaml:"criteria"`
	Notify   NotifyConfig   `yaml:"notify"`
}

// CronTrigger defines a scheduled trigger
type CronTrigger struct {
	Cron     string `yaml:"cron"`
	Timezone string `yaml:"timezone,omitempty"`
}

// SourceConfig names the listing source and how to fetch it. Name namespaces
// the seen-set table, so renaming a source forgets what it has seen.
type SourceConfig struct {
	Name   string        `yaml:"name"`
	HTML   *HTMLSource   `yaml:"html,omitempty"`
	RSS    *RSSSource    `yaml:"rss,omitempty"`
	Reddit *RedditSource `yaml:"reddit,omitempty"`
}

// HTMLSource scrapes a marketplace search-results page.
type HTMLSource struct {
	URL       string               `yaml:"url"`
	UserAgent string               `yaml:"user_agent,omitempty"`
	Selectors *SelectorConfig      `yaml:"selectors,omitempty"`
	Snapshot  *core.SnapshotConfig `yaml:"snapshot,omitempty"`
}

// SelectorConfig overrides the CSS selectors used to find listings on the page.
type SelectorConfig struct {
	Item  string `yaml:"item,omitempty"`
	Title string `yaml:"title,omitempty"`
	Link  string `yaml:"link,omitempty"`
	Price string `yaml:"price,omitempty"`
}

// RSSSource defines RSS/Atom feed configuration
type RSSSource struct {
	Feeds     []string             `yaml:"feeds"`
	Limit     int                  `yaml:"limit,omitempty"`
	UserAgent string               `yaml:"user_agent,omitempty"`
	Snapshot  *core.SnapshotConfig `yaml:"snapshot,omitempty"`
}

// RedditSource reads deal posts from subreddits. Sort is one of new (default),
// hot, rising or top; TimeFilter only applies to top.
type RedditSource struct {
	Subreddits []string             `yaml:"subreddits"`
	Sort       string               `yaml:"sort,omitempty"`
	TimeFilter string               `yaml:"time_filter,omitempty"`
	Limit      int                  `yaml:"limit,omitempty"`
	MinScore   int                  `yaml:"min_score,omitempty"`
	Snapshot   *core.SnapshotConfig `yaml:"snapshot,omitempty"`
}

// CriteriaConfig is the keyword and price rule set a listing must satisfy.
// Rule is an optional expr expression that can only narrow the matches.
type CriteriaConfig struct {
	RequiredKeyword  string          `yaml:"required_keyword"`
	MaxPrice         decimal.Decimal `yaml:"max_price"`
	ExcludedKeywords []string        `yaml:"excluded_keywords,omitempty"`
	Rule             string          `yaml:"rule,omitempty"`
}

// NotifyConfig controls message formatting and the channels they go to.
// A nil Header sends DefaultHeader; an empty list sends no header.
type NotifyConfig struct {
	Header       []string        `yaml:"header"`
	ItemTemplate string          `yaml:"item_template,omitempty"`
	Telegram     *TelegramOutput `yaml:"telegram,omitempty"`
	Email        *EmailOutput    `yaml:"email,omitempty"`
}

type TelegramOutput struct {
	// ParseMode is Markdown, MarkdownV2, HTML or empty for plain text.
	ParseMode      string `yaml:"parse_mode,omitempty"`
	DisablePreview bool   `yaml:"disable_preview,omitempty"`
}

// EmailOutput defines email delivery configuration
type EmailOutput struct {
	To      string `yaml:"to"`
	From    string `yaml:"from,omitempty"`
	Subject string `yaml:"subject,omitempty"`
}

const (
	DefaultSourceName   = "ebay"
	DefaultSearchURL    = "https://www.ebay.com/sch/i.html?_nkw=the+north+face+thermoball&_sacat=0&_from=R40&_trksid=p4624852.m570.l1313"
	DefaultItemTemplate = "🧥 *{{.Title}}*\n💰 ${{.Price}}\n🔗 {{.Link}}"

	// headerSpacer is an invisible separator sent ahead of the banner so chat
	// clients do not fold the banner into the previous batch.
	headerSpacer = "\u2063"
)

// DefaultHeader is sent once before the first match of a pass.
var DefaultHeader = []string{
	headerSpacer,
	"🔔 *You got new eBay Thermoballs deals!*\n\nHere are the latest jackets:",
}

// DefaultDocument is the watch used when no document file exists.
func DefaultDocument() *WatchDocument {
	return &WatchDocument{
		Watch: Watch{
			Name: "thermoball",
			Source: SourceConfig{
				Name: DefaultSourceName,
				HTML: &HTMLSource{URL: DefaultSearchURL},
			},
			Criteria: CriteriaConfig{
				RequiredKeyword:  "thermoball",
				MaxPrice:         decimal.NewFromInt(30),
				ExcludedKeywords: []string{"flaw", "flaws", "stain", "vest", "damaged", "polartec"},
			},
			Notify: NotifyConfig{
				Telegram: &TelegramOutput{ParseMode: "Markdown"},
			},
		},
	}
}

// LoadDocument reads and validates a watch document. A missing file is
// reported with an error wrapping fs.ErrNotExist.
func LoadDocument(path string) (*WatchDocument, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var doc WatchDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse watch document: %w", err)
	}
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return &doc, nil
}

// ApplyDefaults fills the optional fields left empty by the document.
func (d *WatchDocument) ApplyDefaults() {
	w := &d.Watch
	if w.Source.Name == "" {
		w.Source.Name = DefaultSourceName
	}
	if w.Notify.Header == nil {
		w.Notify.Header = append([]string(nil), DefaultHeader...)
	}
	if strings.TrimSpace(w.Notify.ItemTemplate) == "" {
		w.Notify.ItemTemplate = DefaultItemTemplate
	}
	if w.Notify.Email != nil && w.Notify.Email.Subject == "" {
		w.Notify.Email.Subject = fmt.Sprintf("New deals: %s", w.Name)
	}
}

// ProcessorFactory constructs concrete processor implementations for a parsed document.
type ProcessorFactory interface {
	NewCronTrigger(config *CronTrigger) (core.TriggerProcessor, error)
	NewHTMLSource(sourceName string, config *HTMLSource) (core.SourceProcessor, error)
	NewRSSSource(sourceName string, config *RSSSource) (core.SourceProcessor, error)
	NewRedditSource(sourceName string, config *RedditSource) (core.SourceProcessor, error)
	NewCriteriaFilter(config *CriteriaConfig) (core.FilterProcessor, error)
	NewTelegramOutput(notify *NotifyConfig, config *TelegramOutput) (core.NotifyProcessor, error)
	NewEmailOutput(notify *NotifyConfig, config *EmailOutput) (core.NotifyProcessor, error)
}

// Validate applies defaults and checks the watch document
func (d *WatchDocument) Validate() error {
	d.ApplyDefaults()
	w := d.Watch

	if strings.TrimSpace(w.Name) == "" {
		return fmt.Errorf("watch name is required")
	}

	if w.Schedule != nil {
		if strings.TrimSpace(w.Schedule.Cron) == "" {
			return fmt.Errorf("schedule: cron expression is required")
		}
		if w.Schedule.Timezone != "" {
			if _, err := time.LoadLocation(w.Schedule.Timezone); err != nil {
				return fmt.Errorf("schedule: invalid timezone: %w", err)
			}
		}
	}

	if _, err := dedupe.TableName(w.Source.Name); err != nil {
		return fmt.Errorf("source: %w", err)
	}
	if w.Source.HTML == nil && w.Source.RSS == nil && w.Source.Reddit == nil {
		return fmt.Errorf("source %s: html, rss or reddit configuration is required", w.Source.Name)
	}
	if w.Source.HTML != nil {
		if strings.TrimSpace(w.Source.HTML.URL) == "" {
			return fmt.Errorf("source %s html: url is required", w.Source.Name)
		}
		if err := validateSnapshotConfig(fmt.Sprintf("source %s html", w.Source.Name), w.Source.HTML.Snapshot); err != nil {
			return err
		}
	}
	if w.Source.RSS != nil {
		if len(w.Source.RSS.Feeds) == 0 {
			return fmt.Errorf("source %s rss: at least one feed is required", w.Source.Name)
		}
		if err := validateSnapshotConfig(fmt.Sprintf("source %s rss", w.Source.Name), w.Source.RSS.Snapshot); err != nil {
			return err
		}
	}
	if r := w.Source.Reddit; r != nil {
		if len(r.Subreddits) == 0 {
			return fmt.Errorf("source %s reddit: at least one subreddit is required", w.Source.Name)
		}
		for i, sub := range r.Subreddits {
			if strings.TrimSpace(sub) == "" {
				return fmt.Errorf("source %s reddit: subreddit %d is empty", w.Source.Name, i)
			}
		}
		switch strings.ToLower(r.Sort) {
		case "", "new", "hot", "rising", "top":
		default:
			return fmt.Errorf("source %s reddit: unsupported sort %q", w.Source.Name, r.Sort)
		}
		if err := validateSnapshotConfig(fmt.Sprintf("source %s reddit", w.Source.Name), r.Snapshot); err != nil {
			return err
		}
	}

	if strings.TrimSpace(w.Criteria.RequiredKeyword) == "" {
		return fmt.Errorf("criteria: required_keyword is required")
	}
	if !w.Criteria.MaxPrice.IsPositive() {
		return fmt.Errorf("criteria: max_price must be positive")
	}
	for i, kw := range w.Criteria.ExcludedKeywords {
		if strings.TrimSpace(kw) == "" {
			return fmt.Errorf("criteria: excluded_keywords %d is empty", i)
		}
	}

	if w.Notify.Telegram == nil && w.Notify.Email == nil {
		return fmt.Errorf("notify: at least one of telegram or email is required")
	}
	if err := validateItemTemplate(w.Notify.ItemTemplate); err != nil {
		return fmt.Errorf("notify: %w", err)
	}
	if w.Notify.Telegram != nil {
		switch w.Notify.Telegram.ParseMode {
		case "", "Markdown", "MarkdownV2", "HTML":
		default:
			return fmt.Errorf("notify telegram: unsupported parse_mode %q", w.Notify.Telegram.ParseMode)
		}
	}
	if email := w.Notify.Email; email != nil {
		if _, err := mail.ParseAddressList(email.To); err != nil {
			return fmt.Errorf("notify email: invalid to address")
		}
		if email.From != "" { // From is optional, but if provided must be valid
			if _, err := mail.ParseAddress(email.From); err != nil {
				return fmt.Errorf("notify email: invalid from address")
			}
		}
	}

	return nil
}

// validateItemTemplate renders the template against a sample listing so field
// typos fail at load time instead of on the first match.
func validateItemTemplate(text string) error {
	tmpl, err := notify.ParseTemplate("item", text, nil)
	if err != nil {
		return err
	}
	sample := notify.Listing{
		Title:     "Sample listing",
		Link:      "https://example.com/item/1",
		Price:     "1",
		PriceText: "$1.00",
		Source:    DefaultSourceName,
	}
	if _, err := notify.Render(tmpl, sample); err != nil {
		return err
	}
	return nil
}

func validateSnapshotConfig(label string, cfg *core.SnapshotConfig) error {
	if cfg == nil {
		return nil
	}
	if cfg.Snapshot && cfg.Restore {
		return fmt.Errorf("%s: snapshot and restore cannot both be true", label)
	}
	if (cfg.Snapshot || cfg.Restore) && cfg.Path == "" {
		return fmt.Errorf("%s: snapshot path is required", label)
	}
	return nil
}

// ParseToWatch converts the document into a core.Watch without processors.
func (d *WatchDocument) ParseToWatch() (*core.Watch, error) {
	return d.ParseToWatchWithFactory(nil)
}

// ParseToWatchWithFactory converts the document into a core.Watch.
// When factory is nil, the watch will be created without concrete processors.
func (d *WatchDocument) ParseToWatchWithFactory(factory ProcessorFactory) (*core.Watch, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	w := &d.Watch

	watch := &core.Watch{
		ID:        "", // Should be set by the caller
		Name:      w.Name,
		Source:    w.Source.Name,
		CreatedAt: time.Now(),
	}
	if factory == nil {
		return watch, nil
	}

	if w.Schedule != nil {
		trigger, err := factory.NewCronTrigger(w.Schedule)
		if err != nil {
			return nil, err
		}
		watch.Triggers = append(watch.Triggers, trigger)
	}

	// HTML, then RSS, then Reddit; the runner keeps this order when concatenating.
	if w.Source.HTML != nil {
		src, err := factory.NewHTMLSource(w.Source.Name, w.Source.HTML)
		if err != nil {
			return nil, err
		}
		watch.Sources = append(watch.Sources, src)
	}
	if w.Source.RSS != nil {
		src, err := factory.NewRSSSource(w.Source.Name, w.Source.RSS)
		if err != nil {
			return nil, err
		}
		watch.Sources = append(watch.Sources, src)
	}
	if w.Source.Reddit != nil {
		src, err := factory.NewRedditSource(w.Source.Name, w.Source.Reddit)
		if err != nil {
			return nil, err
		}
		watch.Sources = append(watch.Sources, src)
	}

	filter, err := factory.NewCriteriaFilter(&w.Criteria)
	if err != nil {
		return nil, err
	}
	watch.Filter = filter

	if w.Notify.Telegram != nil {
		out, err := factory.NewTelegramOutput(&w.Notify, w.Notify.Telegram)
		if err != nil {
			return nil, err
		}
		watch.Notifiers = append(watch.Notifiers, out)
	}
	if w.Notify.Email != nil {
		out, err := factory.NewEmailOutput(&w.Notify, w.Notify.Email)
		if err != nil {
			return nil, err
		}
		watch.Notifiers = append(watch.Notifiers, out)
	}

	return watch, nil
}
