package utils

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// CalculateInstallmentAmount splits the principal into equal installments.
// Formula: Principal / InstallmentCount, rounded to 2 decimal places
func CalculateInstallmentAmount(principal decimal.Decimal, installmentCount int) decimal.Decimal {
	return principal.Div(decimal.NewFromInt(int64(installmentCount))).Round(2)
}

// CalculateInterestDeduction returns the amount withheld at disbursement.
// Formula: Principal * RatePercent / 100
func CalculateInterestDeduction(principal decimal.Decimal, ratePercent decimal.Decimal) decimal.Decimal {
	return principal.Mul(ratePercent).Div(hundred)
}

// DayWindow returns the first and last instant (inclusive) of the calendar
// day that is offsetDays away from now, as observed in loc.
func DayWindow(now time.Time, loc *time.Location, offsetDays int) (time.Time, time.Time) {
	local := now.In(loc)
	start := time.Date(local.Year(), local.Month(), local.Day()+offsetDays, 0, 0, 0, 0, loc)
	end := start.AddDate(0, 0, 1).Add(-time.Nanosecond)
	return start, end
}

// NormalizePhone strips formatting characters so that "98765 43210",
// "98765-43210" and "(98765)43210" all identify the same number.
func NormalizePhone(phone string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '\n', '\r', '-', '.', '(', ')':
			return -1
		}
		return r
	}, strings.TrimSpace(phone))
}
