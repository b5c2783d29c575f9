package notify

import (
	"context"
	"errors"
	"fmt"
	"html"
	"net/http"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/alanyoungcy/arbwatch/internal/retry"
)

// DefaultTelegramAPI is the Bot API root.
const DefaultTelegramAPI = "https://api.telegram.org"

// TelegramSender delivers notifications via the Telegram Bot API.
type TelegramSender struct {
	endpoint string
	token    string
	chatID   string
	client   *http.Client
}

// NewTelegramSender creates a TelegramSender for the given bot token and chat
// ID. An empty apiURL selects the public Bot API. The chat ID is either a
// numeric chat or a "@channel" username.
func NewTelegramSender(apiURL, token, chatID string) *TelegramSender {
	if apiURL == "" {
		apiURL = DefaultTelegramAPI
	}
	return &TelegramSender{
		endpoint: strings.TrimRight(apiURL, "/") + "/bot%s/%s",
		token:    token,
		chatID:   chatID,
		client:   defaultHTTPClient(),
	}
}

// Send posts a message to the configured chat. The title is rendered in bold
// using HTML parse mode; both parts are escaped.
func (t *TelegramSender) Send(ctx context.Context, title, message string) error {
	text := fmt.Sprintf("<b>%s</b>\n%s", html.EscapeString(title), html.EscapeString(message))

	var msg tgbotapi.MessageConfig
	if id, err := strconv.ParseInt(t.chatID, 10, 64); err == nil {
		msg = tgbotapi.NewMessage(id, text)
	} else {
		msg = tgbotapi.NewMessageToChannel(t.chatID, text)
	}
	msg.ParseMode = tgbotapi.ModeHTML

	if _, err := t.bot(ctx).Send(msg); err != nil {
		return classifyTelegram(err)
	}
	return nil
}

// Name returns the sender identifier.
func (t *TelegramSender) Name() string {
	return "telegram"
}

// bot builds a BotAPI bound to ctx. NewBotAPI would call getMe on every
// construction, so the struct is assembled directly.
func (t *TelegramSender) bot(ctx context.Context) *tgbotapi.BotAPI {
	bot := &tgbotapi.BotAPI{
		Token:  t.token,
		Buffer: 1,
		Client: ctxClient{ctx: ctx, client: t.client},
	}
	bot.SetAPIEndpoint(t.endpoint)
	return bot
}

// ctxClient attaches a context to the requests the Bot API library issues.
type ctxClient struct {
	ctx    context.Context
	client *http.Client
}

func (c ctxClient) Do(req *http.Request) (*http.Response, error) {
	return c.client.Do(req.WithContext(c.ctx))
}

// classifyTelegram maps Bot API throttling and server errors to
// *retry.StatusError so the dispatcher retries them.
func classifyTelegram(err error) error {
	var apiErr *tgbotapi.Error
	if errors.As(err, &apiErr) {
		if apiErr.Code == http.StatusTooManyRequests || apiErr.Code >= 500 {
			return &retry.StatusError{Service: "telegram", Code: apiErr.Code, Body: apiErr.Message}
		}
		return fmt.Errorf("telegram: api error %d: %s", apiErr.Code, apiErr.Message)
	}
	return fmt.Errorf("telegram: send: %w", err)
}
