package rollchange

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/terminal-bench/tempermill/internal/domain"
	"github.com/terminal-bench/tempermill/internal/sorter"
	"github.com/terminal-bench/tempermill/pkg/config"
)

func wrap(id string, width, weight float64) sorter.SortedCoil {
	return sorter.SortedCoil{Coil: domain.Coil{CoilID: id, Width: width, Weight: weight}}
}

func TestEmptySequenceNoChanges(t *testing.T) {
	result := Calculate(nil, config.DefaultRollChangeConfig())
	assert.Empty(t, result)
}

func TestCalculateChangesAtTonnageThreshold(t *testing.T) {
	seq := []sorter.SortedCoil{
		wrap("C001", 1000, 300),
		wrap("C002", 1000, 300),
		wrap("C003", 1000, 300),
		wrap("C004", 1000, 300),
	}
	cfg := config.DefaultRollChangeConfig()

	result := Calculate(seq, cfg)

	assert.Len(t, result, 1)
	assert.Equal(t, 30.0, result[0].DurationMin)
}

func TestCalculateChangesWithWidthJump(t *testing.T) {
	seq := []sorter.SortedCoil{
		wrap("C001", 1000, 300),
		wrap("C002", 1000, 300),
		wrap("C003", 1200, 300),
		wrap("C004", 1200, 300),
	}
	cfg := config.DefaultRollChangeConfig()

	result := Calculate(seq, cfg)

	assert.NotEmpty(t, result)
	hasJump := false
	for _, r := range result {
		if r.AtWidthJump {
			hasJump = true
		}
	}
	assert.True(t, hasJump)
}

func TestBelowThresholdNoChange(t *testing.T) {
	seq := []sorter.SortedCoil{wrap("C001", 1000, 200), wrap("C002", 1000, 200)}
	result := Calculate(seq, config.DefaultRollChangeConfig())
	assert.Empty(t, result)
}

func TestExtractRollConfigDefaults(t *testing.T) {
	cfg := config.ExtractRollChangeConfig(config.HardConstraintsConfig{})
	assert.Equal(t, 800.0, cfg.TonnageThreshold)
	assert.Equal(t, 30.0, cfg.ChangeDurationMin)
	assert.True(t, cfg.FinishLastCoil)
	assert.Equal(t, 50.0, cfg.WidthJumpThreshold)
}

func TestExtractRollConfigFromConstraints(t *testing.T) {
	tonnage := 600.0
	widthMax := 100.0
	finishLast := false

	hc := config.HardConstraintsConfig{Constraints: []config.HardConstraint{
		{Type: "roll_change_tonnage", MaxValue: &tonnage, FinishLastCoil: &finishLast},
		{Type: "width_jump", MaxValue: &widthMax},
	}}

	cfg := config.ExtractRollChangeConfig(hc)
	assert.Equal(t, 600.0, cfg.TonnageThreshold)
	assert.False(t, cfg.FinishLastCoil)
	assert.Equal(t, 50.0, cfg.WidthJumpThreshold)
}

func TestIndicesConversion(t *testing.T) {
	points := []Point{{AfterIndex: 2}, {AfterIndex: 5}}
	assert.Equal(t, []int{2, 5}, Indices(points))
}

func TestShouldChange(t *testing.T) {
	cfg := config.DefaultRollChangeConfig()
	assert.False(t, ShouldChange(799, cfg))
	assert.True(t, ShouldChange(800, cfg))
}
