package utils

import (
	"github.com/shopspring/decimal"
)

// math.go - расчеты кимчи-премии и PnL позиции
//
// Позиция: long на Upbit (KRW), short на Binance (USD).
// Прибыль появляется, когда премия растет относительно входа.
// Все расчеты ведутся в decimal, наружу отдается float64.

var hundred = decimal.NewFromInt(100)

// CalculateKimp возвращает премию в процентах:
// (priceKRW / (priceUSD * usdKRW) - 1) * 100
//
// При нулевой цене или курсе возвращает 0.
func CalculateKimp(priceKRW, priceUSD, usdKRW float64) float64 {
	if priceUSD <= 0 || usdKRW <= 0 {
		return 0
	}
	global := decimal.NewFromFloat(priceUSD).Mul(decimal.NewFromFloat(usdKRW))
	return decimal.NewFromFloat(priceKRW).
		Div(global).
		Sub(decimal.NewFromInt(1)).
		Mul(hundred).
		InexactFloat64()
}

// FeePercent переводит долю комиссии (0.0038) в проценты (0.38)
func FeePercent(feeRate float64) float64 {
	return decimal.NewFromFloat(feeRate).Mul(hundred).InexactFloat64()
}

// BreakevenKimp - премия, при которой прибыль покрывает комиссии:
// entry + feeRate*100
func BreakevenKimp(entryKimp, feeRate float64) float64 {
	return decimal.NewFromFloat(entryKimp).
		Add(decimal.NewFromFloat(feeRate).Mul(hundred)).
		InexactFloat64()
}

// KimpProfit - изменение премии с момента входа
func KimpProfit(entryKimp, currentKimp float64) float64 {
	return decimal.NewFromFloat(currentKimp).Sub(decimal.NewFromFloat(entryKimp)).InexactFloat64()
}

// NetProfit - изменение премии за вычетом комиссий
func NetProfit(entryKimp, currentKimp, feeRate float64) float64 {
	return decimal.NewFromFloat(currentKimp).
		Sub(decimal.NewFromFloat(entryKimp)).
		Sub(decimal.NewFromFloat(feeRate).Mul(hundred)).
		InexactFloat64()
}

// IsProfitable - текущая премия не ниже безубыточной
func IsProfitable(entryKimp, currentKimp, feeRate float64) bool {
	breakeven := decimal.NewFromFloat(entryKimp).Add(decimal.NewFromFloat(feeRate).Mul(hundred))
	return decimal.NewFromFloat(currentKimp).GreaterThanOrEqual(breakeven)
}

// InvestedKRW считает вложения по обеим ногам в KRW, округленные до целых
//
//	upbit = qty * entryKRW
//	binance = qty * entryUSD * usdKRW
func InvestedKRW(quantity, entryKRW, entryUSD, usdKRW float64) (upbit, binance, total float64) {
	qty := decimal.NewFromFloat(quantity)
	up := qty.Mul(decimal.NewFromFloat(entryKRW))
	bn := qty.Mul(decimal.NewFromFloat(entryUSD)).Mul(decimal.NewFromFloat(usdKRW))

	return up.Round(0).InexactFloat64(),
		bn.Round(0).InexactFloat64(),
		up.Add(bn).Round(0).InexactFloat64()
}

// Round округляет до places знаков (половина - от нуля)
func Round(value float64, places int32) float64 {
	return decimal.NewFromFloat(value).Round(places).InexactFloat64()
}
