package accrual

import (
	"fmt"
	"time"

	"github.com/nkiryanov/benefitmart/internal/models"
)

// Period returns the wallet label of the accrual period now belongs to
// and the first instant (UTC) of the next period, when the wallet expires
//
//	monthly:   2025-M03, expires 2025-04-01
//	quarterly: 2025-Q1,  expires 2025-04-01
//	yearly:    2025,     expires 2026-01-01
func Period(period string, now time.Time) (string, time.Time, error) {
	now = now.UTC()
	year, month := now.Year(), now.Month()

	switch period {
	case models.PeriodMonthly:
		start := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
		return fmt.Sprintf("%d-M%02d", year, int(month)), start.AddDate(0, 1, 0), nil

	case models.PeriodQuarterly:
		quarter := (int(month)-1)/3 + 1
		start := time.Date(year, time.Month((quarter-1)*3+1), 1, 0, 0, 0, 0, time.UTC)
		return fmt.Sprintf("%d-Q%d", year, quarter), start.AddDate(0, 3, 0), nil

	case models.PeriodYearly:
		return fmt.Sprintf("%d", year), time.Date(year+1, time.January, 1, 0, 0, 0, 0, time.UTC), nil

	default:
		return "", time.Time{}, fmt.Errorf("unknown budget period %q", period)
	}
}
