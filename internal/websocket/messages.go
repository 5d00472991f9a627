package websocket

import (
	"time"

	"kimpdash/internal/models"
)

// MessageType определяет тип WebSocket сообщения
type MessageType string

// Типы WebSocket сообщений
const (
	// MessageTypeEmergencyUpdate - изменение аварийной остановки.
	// Отправляется после каждого activate/deactivate и при подключении клиента.
	MessageTypeEmergencyUpdate MessageType = "emergencyUpdate"

	// MessageTypeKimpUpdate - новая минутная запись премии
	MessageTypeKimpUpdate MessageType = "kimpUpdate"

	// MessageTypeTickerUpdate - данные бегущей строки
	MessageTypeTickerUpdate MessageType = "tickerUpdate"
)

// BaseMessage - базовая структура для всех WebSocket сообщений
type BaseMessage struct {
	Type      MessageType `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
}

// EmergencyUpdateMessage - текущий статус аварийной остановки
type EmergencyUpdateMessage struct {
	BaseMessage
	Data *models.EmergencyStatus `json:"data"`
}

// KimpUpdateMessage - последняя запись kimp_1m
type KimpUpdateMessage struct {
	BaseMessage
	Data *models.KimpData `json:"data"`
}

// TickerUpdateMessage - отформатированные цены
type TickerUpdateMessage struct {
	BaseMessage
	Data *models.Ticker `json:"data"`
}

// NewEmergencyUpdateMessage создает сообщение о статусе остановки
func NewEmergencyUpdateMessage(status *models.EmergencyStatus) *EmergencyUpdateMessage {
	return &EmergencyUpdateMessage{
		BaseMessage: BaseMessage{Type: MessageTypeEmergencyUpdate, Timestamp: time.Now().UTC()},
		Data:        status,
	}
}

// NewKimpUpdateMessage создает сообщение с премией
func NewKimpUpdateMessage(data *models.KimpData) *KimpUpdateMessage {
	return &KimpUpdateMessage{
		BaseMessage: BaseMessage{Type: MessageTypeKimpUpdate, Timestamp: time.Now().UTC()},
		Data:        data,
	}
}

// NewTickerUpdateMessage создает сообщение для бегущей строки
func NewTickerUpdateMessage(ticker *models.Ticker) *TickerUpdateMessage {
	return &TickerUpdateMessage{
		BaseMessage: BaseMessage{Type: MessageTypeTickerUpdate, Timestamp: time.Now().UTC()},
		Data:        ticker,
	}
}
