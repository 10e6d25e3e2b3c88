package temper

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/terminal-bench/tempermill/internal/domain"
	"github.com/terminal-bench/tempermill/pkg/config"
)

func defaultCfg() config.TemperConfig { return config.DefaultTemperConfig() }

func TestThresholdForMonth(t *testing.T) {
	cfg := defaultCfg()

	t.Run("should use spring days in march", func(t *testing.T) {
		assert.Equal(t, 3, ThresholdForMonth(time.March, cfg))
	})

	t.Run("should use summer days in july", func(t *testing.T) {
		assert.Equal(t, 4, ThresholdForMonth(time.July, cfg))
	})
}

func TestStatus(t *testing.T) {
	cfg := defaultCfg()
	now := time.Date(2026, time.March, 15, 0, 0, 0, 0, time.UTC)

	t.Run("should be waiting before threshold", func(t *testing.T) {
		coiling := now.AddDate(0, 0, -1)
		status, wait := Status(coiling, now, cfg)
		assert.Equal(t, domain.TempStatusWaiting, status)
		assert.Equal(t, 1, wait)
	})

	t.Run("should be ready at threshold", func(t *testing.T) {
		coiling := now.AddDate(0, 0, -3)
		status, _ := Status(coiling, now, cfg)
		assert.Equal(t, domain.TempStatusReady, status)
	})

	t.Run("should always be ready when disabled", func(t *testing.T) {
		disabled := cfg
		disabled.Enabled = false
		status, wait := Status(now, now, disabled)
		assert.Equal(t, domain.TempStatusReady, status)
		assert.Equal(t, 0, wait)
	})
}

func TestEarliestReadyDate(t *testing.T) {
	cfg := defaultCfg()
	now := time.Date(2026, time.March, 15, 0, 0, 0, 0, time.UTC)

	t.Run("should be empty once ready", func(t *testing.T) {
		coiling := now.AddDate(0, 0, -5)
		assert.Equal(t, "", EarliestReadyDate(coiling, now, cfg))
	})

	t.Run("should project remaining days", func(t *testing.T) {
		coiling := now.AddDate(0, 0, -1) // wait_days=1, threshold=3, remain=2
		assert.Equal(t, now.AddDate(0, 0, 2).Format("2006-01-02"), EarliestReadyDate(coiling, now, cfg))
	})
}

func TestRefreshAll(t *testing.T) {
	now := time.Date(2026, time.March, 15, 0, 0, 0, 0, time.UTC)
	cfg := defaultCfg()

	coils := []domain.Coil{
		{ID: 1, CoilingTime: now.AddDate(0, 0, -10)},
		{ID: 2, CoilingTime: now},
	}

	updated, result := RefreshAll(coils, now, cfg)

	assert.Equal(t, 2, result.Total)
	assert.Equal(t, 1, result.Tempered)
	assert.Equal(t, 1, result.Waiting)
	assert.Equal(t, domain.TempStatusReady, updated[0].TempStatus)
	assert.Equal(t, domain.TempStatusWaiting, updated[1].TempStatus)
}

func TestWaitingForecast(t *testing.T) {
	now := time.Date(2026, time.March, 15, 0, 0, 0, 0, time.UTC)
	cfg := defaultCfg()

	coils := []domain.Coil{
		{ID: 1, CoilID: "C1", TempStatus: domain.TempStatusWaiting, CoilingTime: now.AddDate(0, 0, -1)},
		{ID: 2, CoilID: "C2", TempStatus: domain.TempStatusWaiting, CoilingTime: now.AddDate(0, 0, -1)},
		{ID: 3, CoilID: "C3", TempStatus: domain.TempStatusReady, CoilingTime: now.AddDate(0, 0, -10)},
	}

	buckets := WaitingForecast(coils, now, cfg)

	assert.Len(t, buckets, 1)
	assert.Len(t, buckets[0].Coils, 2)
}
