package telegram

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/bakkerme/dealwatch/internal/outputs/notify"
)

type Options struct {
	Token  string
	ChatID string
	// APIEndpoint is a format string taking the token and method, defaults to
	// the public Bot API.
	APIEndpoint    string
	HTTPTimeout    time.Duration
	ParseMode      string
	DisablePreview bool
}

type Sender struct {
	bot            *tgbotapi.BotAPI
	chatID         int64
	channel        string
	parseMode      string
	disablePreview bool
}

// Compile-time check that Sender implements notify.Sender.
var _ notify.Sender = (*Sender)(nil)

// NewSender makes no API call. A bad token or an unreachable Bot API shows up
// as a send failure on the first match, like any other notify error.
func NewSender(opts Options) (*Sender, error) {
	if strings.TrimSpace(opts.Token) == "" {
		return nil, fmt.Errorf("telegram token is required")
	}
	chatID, channel, err := parseChatID(opts.ChatID)
	if err != nil {
		return nil, err
	}
	endpoint := opts.APIEndpoint
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}
	timeout := opts.HTTPTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	// NewBotAPIWithClient would call getMe here.
	bot := &tgbotapi.BotAPI{
		Token:  opts.Token,
		Client: &http.Client{Timeout: timeout},
		Buffer: 100,
	}
	bot.SetAPIEndpoint(endpoint)
	return &Sender{
		bot:            bot,
		chatID:         chatID,
		channel:        channel,
		parseMode:      opts.ParseMode,
		disablePreview: opts.DisablePreview,
	}, nil
}

func (s *Sender) Send(ctx context.Context, message notify.Message) error {
	if ctx != nil {
		if err := ctx.Err(); err != nil {
			return err
		}
	}
	var cfg tgbotapi.MessageConfig
	if s.channel != "" {
		cfg = tgbotapi.NewMessageToChannel(s.channel, message.Text)
	} else {
		cfg = tgbotapi.NewMessage(s.chatID, message.Text)
	}
	cfg.ParseMode = s.parseMode
	cfg.DisableWebPagePreview = s.disablePreview
	if _, err := s.bot.Send(cfg); err != nil {
		return fmt.Errorf("telegram sendMessage: %w", err)
	}
	return nil
}

// Escape makes listing text safe for the configured parse mode.
func (s *Sender) Escape(text string) string {
	return EscapeText(s.parseMode, text)
}

// EscapeText is tgbotapi.EscapeText that passes text through untouched when no
// parse mode is set.
func EscapeText(parseMode, text string) string {
	switch parseMode {
	case tgbotapi.ModeMarkdown, tgbotapi.ModeMarkdownV2, tgbotapi.ModeHTML:
		return tgbotapi.EscapeText(parseMode, text)
	default:
		return text
	}
}

func parseChatID(raw string) (int64, string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, "", fmt.Errorf("telegram chat id is required")
	}
	if strings.HasPrefix(raw, "@") {
		return 0, raw, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, "", fmt.Errorf("telegram chat id %q must be numeric or an @channel name", raw)
	}
	return id, "", nil
}
