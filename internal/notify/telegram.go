package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/Veraticus/contract-sentinel/internal/common"
	"github.com/Veraticus/contract-sentinel/internal/service"
)

// DefaultTelegramAPI is the Bot API server.
const DefaultTelegramAPI = "https://api.telegram.org"

// Telegram limits a message to 4096 characters.
const maxMessageRunes = 4096

// ErrNoToken is returned when a TelegramNotifier has no bot token.
var ErrNoToken = errors.New("telegram bot token not configured")

// TelegramNotifier sends messages through the Telegram Bot API. The
// destination is a numeric chat id or an @channel username.
type TelegramNotifier struct {
	bot     *tgbotapi.BotAPI
	client  *http.Client
	logger  *slog.Logger
	token   string
	baseURL string
	retry   service.RetryOptions
	mu      sync.Mutex
}

// TelegramOption configures a TelegramNotifier.
type TelegramOption func(*TelegramNotifier)

// WithBaseURL points the notifier at another Bot API server.
func WithBaseURL(url string) TelegramOption {
	return func(n *TelegramNotifier) { n.baseURL = strings.TrimRight(url, "/") }
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(c *http.Client) TelegramOption {
	return func(n *TelegramNotifier) { n.client = c }
}

// WithRetry sets the delivery retry policy.
func WithRetry(opts service.RetryOptions) TelegramOption {
	return func(n *TelegramNotifier) { n.retry = opts }
}

// NewTelegramNotifier creates a notifier for the bot identified by token.
// The Bot API is first contacted on the first Notify.
func NewTelegramNotifier(token string, logger *slog.Logger, opts ...TelegramOption) (*TelegramNotifier, error) {
	if strings.TrimSpace(token) == "" {
		return nil, ErrNoToken
	}
	if logger == nil {
		logger = slog.Default()
	}
	n := &TelegramNotifier{
		client:  &http.Client{Timeout: 30 * time.Second},
		logger:  logger,
		token:   token,
		baseURL: DefaultTelegramAPI,
		retry: service.RetryOptions{
			MaxAttempts:  3,
			InitialDelay: time.Second,
			MaxDelay:     30 * time.Second,
			Multiplier:   2,
		},
	}
	for _, opt := range opts {
		opt(n)
	}
	if n.baseURL == "" {
		n.baseURL = DefaultTelegramAPI
	}
	return n, nil
}

// Notify implements service.Notifier.
func (n *TelegramNotifier) Notify(ctx context.Context, destination, text string) error {
	msg := newMessage(destination, truncate(text, maxMessageRunes))

	err := common.WithRetry(ctx, func() error {
		bot, err := n.connect()
		if err != nil {
			return err
		}
		_, err = bot.Send(msg)
		return n.classify(err)
	}, n.retry)
	if err != nil {
		return fmt.Errorf("failed to notify %s: %w", destination, err)
	}
	n.logger.Debug("notification sent", "destination", destination)
	return nil
}

// connect creates the bot client once. The library verifies the token with
// getMe, so a failure here is retried like any other request.
func (n *TelegramNotifier) connect() (*tgbotapi.BotAPI, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.bot != nil {
		return n.bot, nil
	}

	bot, err := tgbotapi.NewBotAPIWithClient(n.token, n.baseURL+"/bot%s/%s", n.client)
	if err != nil {
		return nil, n.classify(err)
	}
	n.bot = bot
	return bot, nil
}

func newMessage(destination, text string) tgbotapi.MessageConfig {
	var msg tgbotapi.MessageConfig
	if chatID, err := strconv.ParseInt(destination, 10, 64); err == nil {
		msg = tgbotapi.NewMessage(chatID, text)
	} else {
		msg = tgbotapi.NewMessageToChannel(destination, text)
	}
	msg.DisableWebPagePreview = true
	return msg
}

// classify maps Bot API failures onto the retry policy and strips the
// request URL, which carries the bot token, from transport errors.
func (n *TelegramNotifier) classify(err error) error {
	if err == nil {
		return nil
	}

	var apiErr *tgbotapi.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code == http.StatusTooManyRequests || apiErr.RetryAfter > 0:
			return fmt.Errorf("%w: %s", common.ErrRateLimit, apiErr.Message)
		case apiErr.Code >= 500:
			return &common.RetryableError{Err: fmt.Errorf("bot api error %d: %s", apiErr.Code, apiErr.Message), Retryable: true}
		default:
			return &common.RetryableError{
				Err:       fmt.Errorf("bot api rejected message (code %d): %s", apiErr.Code, apiErr.Message),
				Retryable: false,
			}
		}
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		err = fmt.Errorf("%s bot api: %w", strings.ToLower(urlErr.Op), urlErr.Err)
	}
	if strings.Contains(err.Error(), n.token) {
		err = errors.New(strings.ReplaceAll(err.Error(), n.token, "<token>"))
	}
	return &common.RetryableError{Err: err, Retryable: true}
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit-1]) + "…"
}
