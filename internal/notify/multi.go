package notify

import (
	"context"
	"errors"
	"time"
)

// Sender - то, что умеет сообщать о переключении аварийной остановки
type Sender interface {
	NotifyActivated(ctx context.Context, reason string, at time.Time) error
	NotifyDeactivated(ctx context.Context, at time.Time) error
}

// Multi рассылает уведомление всем получателям.
// Ошибка одного не мешает остальным.
type Multi []Sender

// NotifyActivated вызывает всех получателей
func (m Multi) NotifyActivated(ctx context.Context, reason string, at time.Time) error {
	var errs []error
	for _, s := range m {
		if err := s.NotifyActivated(ctx, reason, at); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// NotifyDeactivated вызывает всех получателей
func (m Multi) NotifyDeactivated(ctx context.Context, at time.Time) error {
	var errs []error
	for _, s := range m {
		if err := s.NotifyDeactivated(ctx, at); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

var (
	_ Sender = (*TelegramNotifier)(nil)
	_ Sender = (*LogNotifier)(nil)
	_ Sender = Multi(nil)
)
