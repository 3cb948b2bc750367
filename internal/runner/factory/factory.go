package factory

import (
	"log/slog"

	"github.com/bakkerme/dealwatch/internal/config"
	"github.com/bakkerme/dealwatch/internal/core"
	"github.com/bakkerme/dealwatch/internal/outputs/notify"
	"github.com/bakkerme/dealwatch/internal/outputs/notify/smtp"
	"github.com/bakkerme/dealwatch/internal/outputs/notify/telegram"
	"github.com/bakkerme/dealwatch/internal/processors/output"
	"github.com/bakkerme/dealwatch/internal/processors/quality"
	"github.com/bakkerme/dealwatch/internal/processors/source"
	"github.com/bakkerme/dealwatch/internal/processors/trigger"
	"github.com/bakkerme/dealwatch/internal/runner/snapshot"
	"github.com/bakkerme/dealwatch/internal/sources/marketplace"
	marketplaceimpl "github.com/bakkerme/dealwatch/internal/sources/marketplace/impl"
	"github.com/bakkerme/dealwatch/internal/sources/reddit"
	redditimpl "github.com/bakkerme/dealwatch/internal/sources/reddit/impl"
	"github.com/bakkerme/dealwatch/internal/sources/rss"
	rssimpl "github.com/bakkerme/dealwatch/internal/sources/rss/impl"
)

// Factory builds processors from a watch document. Senders left nil are
// built from the environment config on first use.
type Factory struct {
	Logger             *slog.Logger
	Telegram           config.TelegramEnvConfig
	SMTPDefaults       config.SMTPEnvConfig
	MarketplaceFetcher marketplace.Fetcher
	RSSFetcher         rss.Fetcher
	RedditFetcher      reddit.Fetcher
	TelegramSender     notify.Sender
	EmailSender        notify.Sender
}

// Compile-time check that Factory implements config.ProcessorFactory.
var _ config.ProcessorFactory = (*Factory)(nil)

func NewFromEnvConfig(logger *slog.Logger, env config.EnvConfig) *Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &Factory{
		Logger:             logger,
		Telegram:           env.Telegram,
		SMTPDefaults:       env.SMTP,
		MarketplaceFetcher: marketplaceimpl.NewFetcher(env.Scrape.HTTPTimeout, env.Scrape.UserAgent),
		RSSFetcher:         rssimpl.NewFetcher(env.RSS.HTTPTimeout, env.RSS.UserAgent),
		RedditFetcher: redditimpl.NewFetcher(env.Reddit.HTTPTimeout, env.Reddit.UserAgent, redditimpl.Credentials{
			ClientID:     env.Reddit.ClientID,
			ClientSecret: env.Reddit.ClientSecret,
			Username:     env.Reddit.Username,
			Password:     env.Reddit.Password,
		}),
	}
}

func (f *Factory) NewCronTrigger(cfg *config.CronTrigger) (core.TriggerProcessor, error) {
	return trigger.NewCronProcessor(cfg)
}

func (f *Factory) NewHTMLSource(sourceName string, cfg *config.HTMLSource) (core.SourceProcessor, error) {
	processor, err := source.NewHTMLProcessor(sourceName, cfg, f.MarketplaceFetcher)
	if err != nil {
		return nil, err
	}
	return snapshot.WrapSource(processor, cfg.Snapshot), nil
}

func (f *Factory) NewRSSSource(sourceName string, cfg *config.RSSSource) (core.SourceProcessor, error) {
	processor, err := source.NewRSSProcessor(sourceName, cfg, f.RSSFetcher)
	if err != nil {
		return nil, err
	}
	return snapshot.WrapSource(processor, cfg.Snapshot), nil
}

func (f *Factory) NewRedditSource(sourceName string, cfg *config.RedditSource) (core.SourceProcessor, error) {
	processor, err := source.NewRedditProcessor(sourceName, cfg, f.RedditFetcher)
	if err != nil {
		return nil, err
	}
	return snapshot.WrapSource(processor, cfg.Snapshot), nil
}

func (f *Factory) NewCriteriaFilter(cfg *config.CriteriaConfig) (core.FilterProcessor, error) {
	return quality.NewCriteriaProcessor(cfg)
}

func (f *Factory) NewTelegramOutput(n *config.NotifyConfig, cfg *config.TelegramOutput) (core.NotifyProcessor, error) {
	parseMode := cfg.ParseMode
	sender := f.TelegramSender
	if sender == nil {
		built, err := telegram.NewSender(telegram.Options{
			Token:          f.Telegram.Token,
			ChatID:         f.Telegram.ChatID,
			APIEndpoint:    f.Telegram.APIEndpoint,
			HTTPTimeout:    f.Telegram.HTTPTimeout,
			ParseMode:      parseMode,
			DisablePreview: cfg.DisablePreview,
		})
		if err != nil {
			return nil, err
		}
		sender = built
	}
	escape := func(text string) string { return telegram.EscapeText(parseMode, text) }
	return output.NewNotifyProcessor("telegram", n, "", sender, escape)
}

func (f *Factory) NewEmailOutput(n *config.NotifyConfig, cfg *config.EmailOutput) (core.NotifyProcessor, error) {
	sender := f.EmailSender
	if sender == nil {
		built, err := smtp.NewSender(smtp.Options{
			Host:               f.SMTPDefaults.Host,
			Port:               f.SMTPDefaults.Port,
			Username:           f.SMTPDefaults.User,
			Password:           f.SMTPDefaults.Password,
			TLSMode:            f.SMTPDefaults.TLSMode,
			InsecureSkipVerify: f.SMTPDefaults.InsecureSkipVerify,
			From:               cfg.From,
			To:                 cfg.To,
		})
		if err != nil {
			return nil, err
		}
		sender = built
	}
	return output.NewNotifyProcessor("email", n, cfg.Subject, sender, nil)
}
