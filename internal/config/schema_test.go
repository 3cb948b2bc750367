package config

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/bakkerme/dealwatch/internal/core"
)

func TestParseExampleWatch(t *testing.T) {
	data := []byte(`
watch:
  name: "Thermoball jackets"
  schedule:
    cron: "*/15 * * * *"
  source:
    name: ebay
    html:
      url: "https://www.ebay.com/sch/i.html?_nkw=thermoball"
  criteria:
    required_keyword: thermoball
    max_price: 30
    excluded_keywords: [vest, stain]
  notify:
    telegram:
      parse_mode: Markdown
`)

	var doc WatchDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		t.Fatalf("Failed to unmarshal YAML: %v", err)
	}
	if err := doc.Validate(); err != nil {
		t.Fatalf("Document validation failed: %v", err)
	}
	if doc.Watch.Criteria.MaxPrice.String() != "30" {
		t.Fatalf("expected max_price 30, got %s", doc.Watch.Criteria.MaxPrice)
	}
	if len(doc.Watch.Notify.Header) != 2 || doc.Watch.Notify.Header[0] != "\u2063" {
		t.Fatalf("expected default header, got %#v", doc.Watch.Notify.Header)
	}
	if doc.Watch.Notify.ItemTemplate != DefaultItemTemplate {
		t.Fatalf("expected default item template, got %q", doc.Watch.Notify.ItemTemplate)
	}

	watch, err := doc.ParseToWatch()
	if err != nil {
		t.Fatalf("Failed to parse document: %v", err)
	}
	if watch.Name != "Thermoball jackets" || watch.Source != "ebay" {
		t.Fatalf("unexpected watch %#v", watch)
	}
}

func TestEmptyHeaderListDisablesHeader(t *testing.T) {
	data := []byte(`
watch:
  name: quiet
  source:
    html:
      url: "https://example.com/search"
  criteria:
    required_keyword: thermoball
    max_price: "29.99"
  notify:
    header: []
    telegram: {}
`)
	var doc WatchDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		t.Fatalf("Failed to unmarshal YAML: %v", err)
	}
	if err := doc.Validate(); err != nil {
		t.Fatalf("Document validation failed: %v", err)
	}
	if doc.Watch.Notify.Header == nil || len(doc.Watch.Notify.Header) != 0 {
		t.Fatalf("expected explicit empty header, got %#v", doc.Watch.Notify.Header)
	}
	if doc.Watch.Source.Name != DefaultSourceName {
		t.Fatalf("expected default source name, got %q", doc.Watch.Source.Name)
	}
	if doc.Watch.Criteria.MaxPrice.String() != "29.99" {
		t.Fatalf("expected max_price 29.99, got %s", doc.Watch.Criteria.MaxPrice)
	}
}

func TestValidateRejectsBadDocuments(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(d *WatchDocument)
		wantErr string
	}{
		{"missing name", func(d *WatchDocument) { d.Watch.Name = "" }, "watch name"},
		{"bad source name", func(d *WatchDocument) { d.Watch.Source.Name = "e-bay" }, "source"},
		{"no source", func(d *WatchDocument) { d.Watch.Source.HTML = nil }, "html, rss or reddit"},
		{"reddit without subreddits", func(d *WatchDocument) { d.Watch.Source.Reddit = &RedditSource{} }, "subreddit"},
		{"reddit bad sort", func(d *WatchDocument) {
			d.Watch.Source.Reddit = &RedditSource{Subreddits: []string{"frugalmalefashion"}, Sort: "best"}
		}, "unsupported sort"},
		{"rss without feeds", func(d *WatchDocument) { d.Watch.Source.RSS = &RSSSource{} }, "feed"},
		{"zero max price", func(d *WatchDocument) {
			d.Watch.Criteria.MaxPrice = d.Watch.Criteria.MaxPrice.Sub(d.Watch.Criteria.MaxPrice)
		}, "max_price"},
		{"no keyword", func(d *WatchDocument) { d.Watch.Criteria.RequiredKeyword = " " }, "required_keyword"},
		{"blank exclusion", func(d *WatchDocument) { d.Watch.Criteria.ExcludedKeywords = []string{"vest", ""} }, "excluded_keywords 1"},
		{"no outputs", func(d *WatchDocument) { d.Watch.Notify.Telegram = nil }, "telegram or email"},
		{"bad parse mode", func(d *WatchDocument) { d.Watch.Notify.Telegram.ParseMode = "bbcode" }, "parse_mode"},
		{"bad template field", func(d *WatchDocument) { d.Watch.Notify.ItemTemplate = "{{ .Cost }}" }, "Cost"},
		{"bad email", func(d *WatchDocument) { d.Watch.Notify.Email = &EmailOutput{To: "not-an-address"} }, "to address"},
		{"empty cron", func(d *WatchDocument) { d.Watch.Schedule = &CronTrigger{} }, "cron"},
		{"bad timezone", func(d *WatchDocument) { d.Watch.Schedule = &CronTrigger{Cron: "@hourly", Timezone: "Mars/Olympus"} }, "timezone"},
		{
			"snapshot and restore",
			func(d *WatchDocument) {
				d.Watch.Source.HTML.Snapshot = &core.SnapshotConfig{Snapshot: true, Restore: true, Path: "x.json"}
			},
			"cannot both be true",
		},
		{
			"snapshot without path",
			func(d *WatchDocument) { d.Watch.Source.HTML.Snapshot = &core.SnapshotConfig{Restore: true} },
			"path is required",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			doc := DefaultDocument()
			tc.mutate(doc)
			err := doc.Validate()
			if err == nil {
				t.Fatalf("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("expected error to mention %q, got: %v", tc.wantErr, err)
			}
		})
	}
}

func TestDefaultDocumentIsValid(t *testing.T) {
	doc := DefaultDocument()
	if err := doc.Validate(); err != nil {
		t.Fatalf("default document should validate: %v", err)
	}
	c := doc.Watch.Criteria
	if c.RequiredKeyword != "thermoball" || c.MaxPrice.String() != "30" {
		t.Fatalf("unexpected default criteria %#v", c)
	}
	if len(c.ExcludedKeywords) != 6 {
		t.Fatalf("expected 6 excluded keywords, got %v", c.ExcludedKeywords)
	}
}

func TestLoadDocument(t *testing.T) {
	dir := t.TempDir()
	if _, err := LoadDocument(filepath.Join(dir, "missing.yaml")); !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("expected not-exist error, got %v", err)
	}

	path := filepath.Join(dir, "dealwatch.yaml")
	content := `
watch:
  name: feeds
  source:
    name: craigslist
    rss:
      feeds: ["https://example.com/search.rss"]
  criteria:
    required_keyword: thermoball
    max_price: 40
  notify:
    email:
      to: "me@example.com"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write document: %v", err)
	}
	doc, err := LoadDocument(path)
	if err != nil {
		t.Fatalf("LoadDocument failed: %v", err)
	}
	if doc.Watch.Notify.Email.Subject != "New deals: feeds" {
		t.Fatalf("expected default subject, got %q", doc.Watch.Notify.Email.Subject)
	}
}

type recordingFactory struct {
	calls []string
}

func (f *recordingFactory) NewCronTrigger(cfg *CronTrigger) (core.TriggerProcessor, error) {
	f.calls = append(f.calls, "cron:"+cfg.Cron)
	return stubTrigger{}, nil
}

func (f *recordingFactory) NewHTMLSource(name string, cfg *HTMLSource) (core.SourceProcessor, error) {
	f.calls = append(f.calls, "html:"+name)
	return stubSource{}, nil
}

func (f *recordingFactory) NewRSSSource(name string, cfg *RSSSource) (core.SourceProcessor, error) {
	f.calls = append(f.calls, "rss:"+name)
	return stubSource{}, nil
}

func (f *recordingFactory) NewRedditSource(name string, cfg *RedditSource) (core.SourceProcessor, error) {
	f.calls = append(f.calls, "reddit:"+strings.Join(cfg.Subreddits, "+"))
	return stubSource{}, nil
}

func (f *recordingFactory) NewCriteriaFilter(cfg *CriteriaConfig) (core.FilterProcessor, error) {
	f.calls = append(f.calls, "filter:"+cfg.RequiredKeyword)
	return stubFilter{}, nil
}

func (f *recordingFactory) NewTelegramOutput(n *NotifyConfig, cfg *TelegramOutput) (core.NotifyProcessor, error) {
	f.calls = append(f.calls, "telegram")
	return stubNotifier{}, nil
}

func (f *recordingFactory) NewEmailOutput(n *NotifyConfig, cfg *EmailOutput) (core.NotifyProcessor, error) {
	f.calls = append(f.calls, "email:"+cfg.To)
	return stubNotifier{}, nil
}

func TestParseToWatchWithFactoryOrder(t *testing.T) {
	doc := DefaultDocument()
	doc.Watch.Schedule = &CronTrigger{Cron: "@every 10m"}
	doc.Watch.Source.RSS = &RSSSource{Feeds: []string{"https://example.com/feed"}}
	doc.Watch.Source.Reddit = &RedditSource{Subreddits: []string{"frugalmalefashion", "GoodValue"}}
	doc.Watch.Notify.Email = &EmailOutput{To: "me@example.com"}

	factory := &recordingFactory{}
	watch, err := doc.ParseToWatchWithFactory(factory)
	if err != nil {
		t.Fatalf("ParseToWatchWithFactory failed: %v", err)
	}
	want := []string{"cron:@every 10m", "html:ebay", "rss:ebay", "reddit:frugalmalefashion+GoodValue", "filter:thermoball", "telegram", "email:me@example.com"}
	if strings.Join(factory.calls, ",") != strings.Join(want, ",") {
		t.Fatalf("unexpected factory calls %v", factory.calls)
	}
	if len(watch.Triggers) != 1 || len(watch.Sources) != 3 || watch.Filter == nil || len(watch.Notifiers) != 2 {
		t.Fatalf("unexpected watch shape %#v", watch)
	}
}

type stubTrigger struct{}

func (stubTrigger) Name() string    { return "stub" }
func (stubTrigger) Validate() error { return nil }
func (stubTrigger) Start(ctx context.Context, watchID string) (<-chan core.TriggerEvent, error) {
	return nil, nil
}
func (stubTrigger) Stop() error { return nil }

type stubSource struct{}

func (stubSource) Name() string    { return "stub" }
func (stubSource) Validate() error { return nil }
func (stubSource) Fetch(ctx context.Context) ([]*core.ListingBlock, error) {
	return nil, nil
}

type stubFilter struct{}

func (stubFilter) Name() string    { return "stub" }
func (stubFilter) Validate() error { return nil }
func (stubFilter) Evaluate(ctx context.Context, block *core.ListingBlock) (bool, error) {
	return false, nil
}

type stubNotifier struct{}

func (stubNotifier) Name() string                                               { return "stub" }
func (stubNotifier) Validate() error                                            { return nil }
func (stubNotifier) NotifyHeader(ctx context.Context) error                     { return nil }
func (stubNotifier) Notify(ctx context.Context, block *core.ListingBlock) error { return nil }
