package utils

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Ошибки валидации входных параметров API
var (
	ErrHoursOutOfRange = errors.New("hours out of range")
	ErrLimitOutOfRange = errors.New("limit out of range")
)

// Границы параметров запросов
const (
	MaxReasonLength = 200
	MaxHistoryHours = 168 // неделя минутных данных
	MaxTradesLimit  = 500
)

// NormalizeReason приводит причину активации к виду для хранения и UI.
//
// Причина - свободный текст, и активация из-за нее не отклоняется:
// управляющие символы заменяются пробелами, текст обрезается до
// MaxReasonLength символов. Пустая строка допустима: контроллер подставит "manual".
func NormalizeReason(reason string) string {
	reason = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return ' '
		}
		return r
	}, reason)
	reason = strings.TrimSpace(reason)

	if utf8.RuneCountInString(reason) > MaxReasonLength {
		reason = strings.TrimSpace(string([]rune(reason)[:MaxReasonLength]))
	}
	return reason
}

// ValidateHours проверяет глубину истории премии (1..168)
func ValidateHours(hours int) error {
	if hours < 1 || hours > MaxHistoryHours {
		return fmt.Errorf("%w: must be between 1 and %d, got %d", ErrHoursOutOfRange, MaxHistoryHours, hours)
	}
	return nil
}

// ValidateLimit проверяет размер выборки сделок (1..500)
func ValidateLimit(limit int) error {
	if limit < 1 || limit > MaxTradesLimit {
		return fmt.Errorf("%w: must be between 1 and %d, got %d", ErrLimitOutOfRange, MaxTradesLimit, limit)
	}
	return nil
}
