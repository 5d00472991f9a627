package models

import "time"

// Статусы позиции в таблице positions
const (
	PositionStatusOpen   = "open"
	PositionStatusClosed = "closed"
)

// DefaultUsdKRW - курс по умолчанию, если в позиции он не записан
const DefaultUsdKRW = 1400.0

// Position - открытая арбитражная позиция (long Upbit / short Binance)
type Position struct {
	ID            int64     `json:"id"`
	Symbol        string    `json:"symbol"`
	Quantity      float64   `json:"quantity"`
	EntryPriceKRW float64   `json:"entry_price_krw"`
	EntryPriceUSD float64   `json:"entry_price_usd"`
	EntryKimp     float64   `json:"entry_kimp"`
	UsdKRW        float64   `json:"usd_krw"`
	Status        string    `json:"status"`
	OpenedAt      time.Time `json:"opened_at"`

	// Заполняются сервисом из последней записи kimp_1m
	CurrentPriceKRW *float64 `json:"current_price_krw,omitempty"`
	CurrentPriceUSD *float64 `json:"current_price_usd,omitempty"`
	HoldingHours    float64  `json:"holding_hours"`
}

// InvestedAmounts - вложенные суммы в KRW, округленные до целых
type InvestedAmounts struct {
	TotalInvestedKRW   float64 `json:"total_invested_krw"`
	UpbitInvested      float64 `json:"upbit_invested"`
	BinanceInvestedKRW float64 `json:"binance_invested_krw"`
}

// PositionRow - строка таблицы позиций в UI
type PositionRow struct {
	Symbol       string  `json:"symbol"`
	Quantity     float64 `json:"quantity"`
	EntryPrice   float64 `json:"entry_price"`
	CurrentPrice float64 `json:"current_price"`
	PNL          float64 `json:"pnl"`
}

// PositionView - ответ GET /api/position
type PositionView struct {
	HasPosition bool      `json:"has_position"`
	Position    *Position `json:"position"`
	InvestedAmounts
	Positions []PositionRow `json:"positions"`
}

// PnL - ответ GET /api/pnl
//
// Все проценты округлены до 2 знаков. Без позиции поля PnL равны nil.
type PnL struct {
	HasPosition   bool     `json:"has_position"`
	EntryKimp     *float64 `json:"entry_kimp"`
	CurrentKimp   *float64 `json:"current_kimp"`
	KimpProfit    *float64 `json:"kimp_profit"`
	FeeRate       float64  `json:"fee_rate"`
	NetProfit     *float64 `json:"net_profit"`
	BreakevenKimp *float64 `json:"breakeven_kimp"`
	IsProfitable  *bool    `json:"is_profitable"`
}

// Trade - закрытая сделка из таблицы trades
type Trade struct {
	ID        int64      `json:"id"`
	Symbol    string     `json:"symbol"`
	Quantity  float64    `json:"quantity"`
	EntryKimp float64    `json:"entry_kimp"`
	ExitKimp  *float64   `json:"exit_kimp"`
	PnlKRW    *float64   `json:"pnl_krw"`
	Status    string     `json:"status"`
	OpenedAt  time.Time  `json:"opened_at"`
	ClosedAt  *time.Time `json:"closed_at"`
}

// TradeHistory - ответ GET /api/trades
type TradeHistory struct {
	Trades []*Trade `json:"trades"`
	Total  int      `json:"total"`
	Limit  int      `json:"limit"`
}
