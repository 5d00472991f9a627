package models

import "time"

// KimpData - минутная запись таблицы kimp_1m
type KimpData struct {
	Kimp      float64   `json:"kimp"`    // кимчи-премия, %
	BtcKRW    float64   `json:"btc_krw"` // цена BTC на Upbit
	BtcUSD    float64   `json:"btc_usd"` // цена BTC на Binance
	UsdKRW    float64   `json:"usd_krw"`
	Timestamp time.Time `json:"timestamp"`
}

// KimpHistory - ответ GET /api/kimp
type KimpHistory struct {
	Data        []*KimpData `json:"data"`
	Count       int         `json:"count"`
	PeriodHours int         `json:"period_hours"`
}

// Ticker - отформатированные значения для бегущей строки
//
// Поля строковые: "-" означает отсутствие данных.
type Ticker struct {
	BtcKRW     string    `json:"btc_krw"`
	BtcUSDT    string    `json:"btc_usdt"`
	EthKRW     string    `json:"eth_krw"`
	EthUSDT    string    `json:"eth_usdt"`
	UsdKRW     string    `json:"usd_krw"`
	Kimp       string    `json:"kimp"`
	KimpChange *float64  `json:"kimp_change"`
	Timestamp  time.Time `json:"timestamp"`
}

// TickerPlaceholder - значение для бегущей строки без данных
const TickerPlaceholder = "-"

// EmptyTicker возвращает тикер без данных
func EmptyTicker(now time.Time) *Ticker {
	return &Ticker{
		BtcKRW:    TickerPlaceholder,
		BtcUSDT:   TickerPlaceholder,
		EthKRW:    TickerPlaceholder,
		EthUSDT:   TickerPlaceholder,
		UsdKRW:    TickerPlaceholder,
		Kimp:      TickerPlaceholder,
		Timestamp: now.UTC(),
	}
}
