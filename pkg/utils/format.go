package utils

import (
	"strings"

	"github.com/shopspring/decimal"
)

// FormatKRW - цена в вонах без дробной части: 145,000,000
func FormatKRW(price float64) string {
	return FormatNumber(price, 0)
}

// FormatUSD - цена в долларах, 2 знака: 100,000.00
func FormatUSD(price float64) string {
	return FormatNumber(price, 2)
}

// FormatPercent - премия для тикера: 3.45%
func FormatPercent(value float64) string {
	return decimal.NewFromFloat(value).StringFixed(2) + "%"
}

// FormatNumber форматирует число с разделителем тысяч
func FormatNumber(value float64, places int32) string {
	s := decimal.NewFromFloat(value).StringFixed(places)

	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}

	intPart, frac := s, ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		intPart, frac = s[:i], s[i:]
	}

	var b strings.Builder
	b.Grow(len(s) + len(intPart)/3 + 1)
	b.WriteString(sign)
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	b.WriteString(frac)
	return b.String()
}
