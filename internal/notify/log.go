package notify

import (
	"context"
	"time"

	"kimpdash/pkg/utils"
)

// LogNotifier пишет уведомления в лог. Используется, когда Telegram не настроен.
type LogNotifier struct {
	log *utils.Logger
}

// NewLogNotifier создает notifier поверх глобального логгера
func NewLogNotifier() *LogNotifier {
	return &LogNotifier{log: utils.L().WithComponent("notify")}
}

// NotifyActivated пишет предупреждение об активации
func (n *LogNotifier) NotifyActivated(_ context.Context, reason string, at time.Time) error {
	n.log.Warn("EMERGENCY STOP ACTIVATED", utils.Reason(reason), utils.String("at", at.UTC().Format(time.RFC3339)))
	return nil
}

// NotifyDeactivated пишет сообщение о снятии остановки
func (n *LogNotifier) NotifyDeactivated(_ context.Context, at time.Time) error {
	n.log.Info("emergency stop deactivated", utils.String("at", at.UTC().Format(time.RFC3339)))
	return nil
}
