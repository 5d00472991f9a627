package models

import (
	"errors"
	"time"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Ключ единственной записи аварийной остановки в таблице system_status
const EmergencyStopKey = "emergency_stop"

// Значения reason и warning, которые видит UI
const (
	ReasonManual        = "manual"
	ReasonNoRecord      = "no_record"
	ReasonErrorPrefix   = "error: "
	WarningNotPersisted = "state not persisted"
)

// ErrEmptyState - запись есть, но в value нет флага active
var ErrEmptyState = errors.New("emergency state has no active flag")

// SystemStatusRecord - строка таблицы system_status в сыром виде
type SystemStatusRecord struct {
	Key       string    `json:"key"`
	Value     []byte    `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

// EmergencyStopState - значение (JSON) записи аварийной остановки
//
// active=true: activated_at и reason заполнены, deactivated_at отсутствует.
// active=false: заполнен только deactivated_at.
type EmergencyStopState struct {
	Active        bool       `json:"active"`
	ActivatedAt   *time.Time `json:"activated_at,omitempty"`
	DeactivatedAt *time.Time `json:"deactivated_at,omitempty"`
	Reason        string     `json:"reason,omitempty"`
}

// NewActivatedState строит состояние после activate
func NewActivatedState(at time.Time, reason string) EmergencyStopState {
	if reason == "" {
		reason = ReasonManual
	}
	at = at.UTC()
	return EmergencyStopState{Active: true, ActivatedAt: &at, Reason: reason}
}

// NewDeactivatedState строит состояние после deactivate
func NewDeactivatedState(at time.Time) EmergencyStopState {
	at = at.UTC()
	return EmergencyStopState{Active: false, DeactivatedAt: &at}
}

// Encode сериализует состояние для записи в хранилище
func (s EmergencyStopState) Encode() ([]byte, error) {
	return json.Marshal(s)
}

// DecodeEmergencyStopState разбирает value из хранилища.
//
// Пустое значение, null или объект без active дают ErrEmptyState.
// Любая другая ошибка означает поврежденную запись.
func DecodeEmergencyStopState(data []byte) (*EmergencyStopState, error) {
	if len(data) == 0 || string(data) == "null" {
		return nil, ErrEmptyState
	}

	var raw struct {
		Active        *bool      `json:"active"`
		ActivatedAt   *time.Time `json:"activated_at"`
		DeactivatedAt *time.Time `json:"deactivated_at"`
		Reason        *string    `json:"reason"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	if raw.Active == nil {
		return nil, ErrEmptyState
	}

	state := &EmergencyStopState{
		Active:        *raw.Active,
		ActivatedAt:   raw.ActivatedAt,
		DeactivatedAt: raw.DeactivatedAt,
	}
	if raw.Reason != nil {
		state.Reason = *raw.Reason
	}
	return state, nil
}

// EmergencyResult - ответ activate/deactivate
//
// Success всегда true. Warning заполняется, если состояние не удалось сохранить.
type EmergencyResult struct {
	Success       bool       `json:"success"`
	Active        bool       `json:"active"`
	ActivatedAt   *time.Time `json:"activated_at,omitempty"`
	DeactivatedAt *time.Time `json:"deactivated_at,omitempty"`
	Reason        string     `json:"reason,omitempty"`
	Warning       string     `json:"warning,omitempty"`
}

// EmergencyStatus - ответ get_status
type EmergencyStatus struct {
	Active        bool       `json:"active"`
	ActivatedAt   *time.Time `json:"activated_at,omitempty"`
	DeactivatedAt *time.Time `json:"deactivated_at,omitempty"`
	Reason        string     `json:"reason,omitempty"`
	UpdatedAt     *time.Time `json:"updated_at,omitempty"`

	// Pending - активация принята локально, но не сохранена в хранилище
	Pending bool `json:"pending,omitempty"`
}

// StatusFromState собирает StatusView из состояния и времени записи
func StatusFromState(state *EmergencyStopState, updatedAt time.Time) *EmergencyStatus {
	status := &EmergencyStatus{
		Active:        state.Active,
		ActivatedAt:   state.ActivatedAt,
		DeactivatedAt: state.DeactivatedAt,
		Reason:        state.Reason,
	}
	if !updatedAt.IsZero() {
		u := updatedAt.UTC()
		status.UpdatedAt = &u
	}
	return status
}
