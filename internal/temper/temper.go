// Package temper recomputes each coil's temper-aging status from its
// coiling time and a seasonal threshold table.
package temper

import (
	"time"

	"github.com/terminal-bench/tempermill/internal/domain"
	"github.com/terminal-bench/tempermill/pkg/config"
)

// ThresholdForMonth returns the seasonal wait-day threshold for the
// given calendar month, defaulting to SpringDays when the month falls
// in none of the configured buckets.
func ThresholdForMonth(month time.Month, cfg config.TemperConfig) int {
	m := int(month)
	switch {
	case contains(cfg.SpringMonths, m):
		return cfg.SpringDays
	case contains(cfg.SummerMonths, m):
		return cfg.SummerDays
	case contains(cfg.AutumnMonths, m):
		return cfg.AutumnDays
	case contains(cfg.WinterMonths, m):
		return cfg.WinterDays
	default:
		return cfg.SpringDays
	}
}

func contains(months []int, m int) bool {
	for _, v := range months {
		if v == m {
			return true
		}
	}
	return false
}

// Status computes (temp_status, wait_days) for a coil as of now.
func Status(coilingTime, now time.Time, cfg config.TemperConfig) (status string, waitDays int) {
	if !cfg.Enabled {
		return domain.TempStatusReady, 0
	}
	waitDays = int(now.Sub(coilingTime).Hours() / 24)
	threshold := ThresholdForMonth(now.Month(), cfg)
	if waitDays >= threshold {
		return domain.TempStatusReady, waitDays
	}
	return domain.TempStatusWaiting, waitDays
}

// EarliestReadyDate returns the predicted ready date (YYYY-MM-DD) for a
// still-waiting coil, or "" if it is already ready or temper checking
// is disabled.
func EarliestReadyDate(coilingTime, now time.Time, cfg config.TemperConfig) string {
	if !cfg.Enabled {
		return ""
	}
	waitDays := int(now.Sub(coilingTime).Hours() / 24)
	threshold := ThresholdForMonth(now.Month(), cfg)
	if waitDays >= threshold {
		return ""
	}
	remain := threshold - waitDays
	if remain < 1 {
		remain = 1
	}
	return now.AddDate(0, 0, remain).Format("2006-01-02")
}

// RefreshResult summarizes a bulk temper refresh.
type RefreshResult struct {
	Total    int
	Tempered int
	Waiting  int
}

// RefreshAll recomputes temp_status/wait_days/is_tempered for every
// coil in coils, returning the updates to persist and a summary count.
// Pure function of the input slice and clock; callers persist the
// updates through the Repository.
func RefreshAll(coils []domain.Coil, now time.Time, cfg config.TemperConfig) ([]domain.Coil, RefreshResult) {
	result := RefreshResult{Total: len(coils)}
	updated := make([]domain.Coil, len(coils))

	for i, c := range coils {
		status, waitDays := Status(c.CoilingTime, now, cfg)
		c.TempStatus = status
		c.WaitDays = waitDays
		c.IsTempered = status == domain.TempStatusReady
		if c.IsTempered {
			result.Tempered++
		} else {
			result.Waiting++
		}
		updated[i] = c
	}

	return updated, result
}

// WaitingForecastBucket groups not-yet-tempered coils by predicted
// ready date.
type WaitingForecastBucket struct {
	ReadyDate string
	Coils     []domain.Coil
}

// WaitingForecast groups the given coils by EarliestReadyDate,
// supplementing the core spec with the original's waiting-forecast
// operator view.
func WaitingForecast(coils []domain.Coil, now time.Time, cfg config.TemperConfig) []WaitingForecastBucket {
	byDate := map[string][]domain.Coil{}
	var order []string

	for _, c := range coils {
		if c.TempStatus == domain.TempStatusReady {
			continue
		}
		date := EarliestReadyDate(c.CoilingTime, now, cfg)
		if date == "" {
			continue
		}
		if _, seen := byDate[date]; !seen {
			order = append(order, date)
		}
		byDate[date] = append(byDate[date], c)
	}

	buckets := make([]WaitingForecastBucket, 0, len(order))
	for _, d := range order {
		buckets = append(buckets, WaitingForecastBucket{ReadyDate: d, Coils: byDate[d]})
	}
	return buckets
}
