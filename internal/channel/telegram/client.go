// Package telegram implements channel.Client with the Telegram Bot API.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/seedpost/seedpost/internal/channel"
)

const (
	defaultMaxTries      = 3
	defaultUpdateTimeout = 60
)

// Option configures a Client
type Option func(*Client)

// WithAPIEndpoint points the client at a self-hosted Bot API server. The
// endpoint is a format string taking the token and method, as in
// tgbotapi.APIEndpoint.
func WithAPIEndpoint(endpoint string) Option {
	return func(c *Client) {
		if endpoint != "" {
			c.endpoint = endpoint
		}
	}
}

// WithHTTPClient replaces the HTTP client used for Bot API calls
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithMaxTries bounds attempts for rate-limited sends
func WithMaxTries(n uint) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxTries = n
		}
	}
}

// Client sends files and messages through a bot and reads its updates
type Client struct {
	bot           *tgbotapi.BotAPI
	endpoint      string
	httpClient    *http.Client
	maxTries      uint
	updateTimeout int
}

// New authenticates the bot token. An error here means the channel cannot
// be used at all.
func New(token string, opts ...Option) (*Client, error) {
	c := &Client{
		endpoint:      tgbotapi.APIEndpoint,
		httpClient:    &http.Client{},
		maxTries:      defaultMaxTries,
		updateTimeout: defaultUpdateTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}

	_ = tgbotapi.SetLogger(botLogger{})

	bot, err := tgbotapi.NewBotAPIWithClient(token, c.endpoint, c.httpClient)
	if err != nil {
		return nil, fmt.Errorf("failed to authenticate bot: %w", err)
	}
	c.bot = bot

	slog.Info("Bot authenticated", "username", bot.Self.UserName)
	return c, nil
}

// SendFile uploads path as a document
func (c *Client) SendFile(ctx context.Context, target int64, path, caption string) error {
	doc := tgbotapi.NewDocument(target, tgbotapi.FilePath(path))
	doc.Caption = caption
	return c.send(ctx, doc)
}

// SendMessage posts text to target
func (c *Client) SendMessage(ctx context.Context, target int64, text string) error {
	return c.send(ctx, tgbotapi.NewMessage(target, text))
}

// send retries only when the API asks the caller to slow down. Any other
// failure is returned as is so a half-delivered upload is not repeated.
func (c *Client) send(ctx context.Context, msg tgbotapi.Chattable) error {
	op := func() (tgbotapi.Message, error) {
		m, err := c.bot.Send(msg)
		if err == nil {
			return m, nil
		}
		if after := retryAfter(err); after > 0 {
			return m, backoff.RetryAfter(after)
		}
		return m, backoff.Permanent(err)
	}

	_, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(c.maxTries),
		backoff.WithNotify(func(err error, d time.Duration) {
			slog.Warn("Channel rate limited, retrying", "error", err, "retry_in", d.String())
		}))
	if err != nil {
		return fmt.Errorf("channel send failed: %w", err)
	}
	return nil
}

func retryAfter(err error) int {
	var apiErr *tgbotapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.RetryAfter
	}
	var apiErrVal tgbotapi.Error
	if errors.As(err, &apiErrVal) {
		return apiErrVal.RetryAfter
	}
	return 0
}

// SubscribeCommands long-polls bot updates and forwards command messages
// sent by operator. Messages from anyone else are dropped here.
func (c *Client) SubscribeCommands(ctx context.Context, operator int64) (<-chan channel.Command, error) {
	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = c.updateTimeout
	cfg.AllowedUpdates = []string{"message"}
	updates := c.bot.GetUpdatesChan(cfg)

	out := make(chan channel.Command)
	go func() {
		defer close(out)
		defer c.bot.StopReceivingUpdates()

		for {
			select {
			case <-ctx.Done():
				return
			case update, ok := <-updates:
				if !ok {
					return
				}
				cmd, ok := toCommand(update)
				if !ok {
					continue
				}
				if cmd.SenderID != operator {
					slog.Debug("Dropping command from unauthorized sender", "sender", cmd.SenderID, "command", cmd.Name)
					continue
				}
				select {
				case out <- cmd:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

func toCommand(update tgbotapi.Update) (channel.Command, bool) {
	msg := update.Message
	if msg == nil || msg.From == nil || msg.Chat == nil {
		return channel.Command{}, false
	}
	cmd, ok := channel.ParseCommand(msg.Text)
	if !ok {
		return channel.Command{}, false
	}
	cmd.SenderID = msg.From.ID
	cmd.ChatID = msg.Chat.ID
	return cmd, true
}

// botLogger routes the bot library's logging through slog
type botLogger struct{}

func (botLogger) Println(v ...interface{}) {
	slog.Debug(fmt.Sprint(v...), "component", "telegram")
}

func (botLogger) Printf(format string, v ...interface{}) {
	slog.Debug(fmt.Sprintf(format, v...), "component", "telegram")
}
