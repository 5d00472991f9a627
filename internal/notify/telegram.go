package notify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"kimpdash/pkg/retry"
	"kimpdash/pkg/utils"
)

// ErrNoChat - не задан чат для уведомлений
var ErrNoChat = errors.New("telegram chat id is not set")

// ErrNoToken - не задан токен бота
var ErrNoToken = errors.New("telegram bot token is not set")

// Таймаут HTTP клиента бота, если не задан
const defaultSendTimeout = 10 * time.Second

// messageSender - часть tgbotapi.BotAPI, нужная для отправки
type messageSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramNotifier отправляет уведомления об аварийной остановке в Telegram
type TelegramNotifier struct {
	api      messageSender
	chatID   int64
	retryCfg retry.Config
	log      *utils.Logger
}

// NewTelegramNotifier создает notifier без обращения к API.
// Токен проверяется первой отправкой, недоступность Telegram при старте
// не отключает уведомления. timeout ограничивает каждый HTTP запрос.
func NewTelegramNotifier(token string, chatID int64, timeout time.Duration) (*TelegramNotifier, error) {
	if token == "" {
		return nil, ErrNoToken
	}
	if chatID == 0 {
		return nil, ErrNoChat
	}
	if timeout <= 0 {
		timeout = defaultSendTimeout
	}

	// tgbotapi.NewBotAPIWithClient делает getMe, поэтому бот собирается вручную
	bot := &tgbotapi.BotAPI{
		Token:  token,
		Client: &http.Client{Timeout: timeout},
		Buffer: 100,
	}
	bot.SetAPIEndpoint(tgbotapi.APIEndpoint)

	return newTelegramNotifier(bot, chatID), nil
}

func newTelegramNotifier(api messageSender, chatID int64) *TelegramNotifier {
	return &TelegramNotifier{
		api:      api,
		chatID:   chatID,
		retryCfg: retry.NetworkConfig(),
		log:      utils.L().WithComponent("telegram"),
	}
}

// NotifyActivated сообщает об активации аварийной остановки
func (n *TelegramNotifier) NotifyActivated(ctx context.Context, reason string, at time.Time) error {
	text := fmt.Sprintf("🚨 *Emergency stop activated*\nReason: %s\nTime: %s",
		tgbotapi.EscapeText(tgbotapi.ModeMarkdown, reason),
		at.UTC().Format(time.RFC3339))
	return n.send(ctx, text)
}

// NotifyDeactivated сообщает о снятии аварийной остановки
func (n *TelegramNotifier) NotifyDeactivated(ctx context.Context, at time.Time) error {
	text := fmt.Sprintf("✅ *Emergency stop deactivated*\nTrading may resume.\nTime: %s",
		at.UTC().Format(time.RFC3339))
	return n.send(ctx, text)
}

// send отправляет сообщение с повторами.
// Ошибки клиента (4xx кроме 429) не повторяются.
func (n *TelegramNotifier) send(ctx context.Context, text string) error {
	msg := tgbotapi.NewMessage(n.chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown

	cfg := n.retryCfg
	cfg.OnRetry = func(attempt int, err error, delay time.Duration) {
		n.log.Warn("telegram send failed, retrying",
			utils.Int("attempt", attempt),
			utils.Dur("delay", delay),
			utils.Err(err))
	}

	return retry.Do(ctx, func() error {
		err := n.sendOnce(ctx, msg)
		if err == nil {
			return nil
		}
		var apiErr *tgbotapi.Error
		if errors.As(err, &apiErr) &&
			apiErr.Code >= http.StatusBadRequest &&
			apiErr.Code < http.StatusInternalServerError &&
			apiErr.Code != http.StatusTooManyRequests {
			return retry.Permanent(err)
		}
		return err
	}, cfg)
}

// sendOnce выполняет одну отправку, не дольше ctx.
// tgbotapi не принимает контекст, поэтому зависший запрос
// дорабатывает в фоне до таймаута HTTP клиента.
func (n *TelegramNotifier) sendOnce(ctx context.Context, msg tgbotapi.MessageConfig) error {
	done := make(chan error, 1)
	go func() {
		_, err := n.api.Send(msg)
		done <- err
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
