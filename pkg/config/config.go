// Package config defines the typed configuration sections a Strategy
// carries (hard/soft constraints, sort priorities, eval weights, temper
// rules, sequencer tuning) and parses them from the TOML documents a
// Strategy stores, following the toml.Unmarshal pattern used across the
// retrieval pack's config-tool repos.
package config

import (
	"github.com/pelletier/go-toml/v2"
)

// HardConstraint is one toggleable hard rule row.
type HardConstraint struct {
	Type           string   `toml:"type"`
	Name           string   `toml:"name"`
	Enabled        bool     `toml:"enabled"`
	MaxValue       *float64 `toml:"max_value,omitempty"`
	Value          *float64 `toml:"value,omitempty"`
	FinishLastCoil *bool    `toml:"finish_last_coil,omitempty"`
}

// HardConstraintsConfig is the strategy's full hard-rule table.
type HardConstraintsConfig struct {
	Constraints []HardConstraint `toml:"constraint"`
}

// SoftConstraint is one toggleable soft rule row.
type SoftConstraint struct {
	Type         string   `toml:"type"`
	Name         string   `toml:"name"`
	Enabled      bool     `toml:"enabled"`
	Penalty      *float64 `toml:"penalty,omitempty"`
	Bonus        *float64 `toml:"bonus,omitempty"`
	Threshold    *float64 `toml:"threshold,omitempty"`
	WithinCoils  *int     `toml:"within_coils,omitempty"`
	TargetLevels []string `toml:"target_levels,omitempty"`
}

// SoftConstraintsConfig is the strategy's full soft-rule table.
type SoftConstraintsConfig struct {
	Constraints []SoftConstraint `toml:"constraint"`
}

// EvalWeight is one named weight in the evaluator's scorecard.
type EvalWeight struct {
	Key    string  `toml:"key"`
	Weight float64 `toml:"weight"`
}

// EvalWeightsConfig holds the evaluator's sub-score weights.
type EvalWeightsConfig struct {
	Weights []EvalWeight `toml:"weight"`
}

// DefaultEvalWeights mirrors the original's 30/25/20/15/10 split.
func DefaultEvalWeights() EvalWeightsConfig {
	return EvalWeightsConfig{Weights: []EvalWeight{
		{Key: "width_jump_count", Weight: 30},
		{Key: "roll_change_count", Weight: 25},
		{Key: "capacity_utilization", Weight: 20},
		{Key: "tempered_ratio", Weight: 15},
		{Key: "urgent_completion", Weight: 10},
	}}
}

// WeightFor looks up a named weight, defaulting to 0 when absent.
func (c EvalWeightsConfig) WeightFor(key string) float64 {
	for _, w := range c.Weights {
		if w.Key == key {
			return w.Weight
		}
	}
	return 0
}

// TemperConfig holds the seasonal threshold table TemperRefresh uses.
type TemperConfig struct {
	Enabled      bool  `toml:"enabled"`
	SpringDays   int   `toml:"spring_days"`
	SummerDays   int   `toml:"summer_days"`
	AutumnDays   int   `toml:"autumn_days"`
	WinterDays   int   `toml:"winter_days"`
	SpringMonths []int `toml:"spring_months"`
	SummerMonths []int `toml:"summer_months"`
	AutumnMonths []int `toml:"autumn_months"`
	WinterMonths []int `toml:"winter_months"`
}

// DefaultTemperConfig mirrors engine/constants.rs defaults.
func DefaultTemperConfig() TemperConfig {
	return TemperConfig{
		Enabled:      true,
		SpringDays:   3,
		SummerDays:   4,
		AutumnDays:   4,
		WinterDays:   3,
		SpringMonths: []int{3, 4, 5},
		SummerMonths: []int{6, 7, 8},
		AutumnMonths: []int{9, 10, 11},
		WinterMonths: []int{12, 1, 2},
	}
}

// RollChangeConfig tunes RollResolver.
type RollChangeConfig struct {
	TonnageThreshold   float64 `toml:"tonnage_threshold"`
	ChangeDurationMin  float64 `toml:"change_duration_min"`
	FinishLastCoil     bool    `toml:"finish_last_coil"`
	WidthJumpThreshold float64 `toml:"width_jump_threshold"`
}

// DefaultRollChangeConfig mirrors engine/constants.rs defaults.
func DefaultRollChangeConfig() RollChangeConfig {
	return RollChangeConfig{
		TonnageThreshold:   800.0,
		ChangeDurationMin:  30.0,
		FinishLastCoil:     true,
		WidthJumpThreshold: 50.0,
	}
}

// ExtractRollChangeConfig derives roll-change tuning from a strategy's
// hard-constraint table, mirroring extract_roll_config: width_jump's
// max_value is halved into a roll-change preference point.
func ExtractRollChangeConfig(hc HardConstraintsConfig) RollChangeConfig {
	cfg := DefaultRollChangeConfig()
	for _, c := range hc.Constraints {
		switch c.Type {
		case "roll_change_tonnage":
			if c.MaxValue != nil {
				cfg.TonnageThreshold = *c.MaxValue
			}
			if c.FinishLastCoil != nil {
				cfg.FinishLastCoil = *c.FinishLastCoil
			}
		case "roll_change_duration":
			if c.Value != nil {
				cfg.ChangeDurationMin = *c.Value
			}
		case "width_jump":
			if c.MaxValue != nil {
				cfg.WidthJumpThreshold = *c.MaxValue / 2.0
			}
		}
	}
	return cfg
}

// HybridSchedulerConfig tunes the Sequencer's PICK policy.
type HybridSchedulerConfig struct {
	Mode            string `toml:"mode"`
	BeamWidth       int    `toml:"beam_width"`
	BeamLookahead   int    `toml:"beam_lookahead"`
	BeamTopK        int    `toml:"beam_top_k"`
	TimeBudgetMs    int    `toml:"time_budget_ms"`
	MaxNodes        int    `toml:"max_nodes"`
	FallbackEnabled bool   `toml:"fallback_enabled"`
}

// DefaultHybridSchedulerConfig mirrors HybridSchedulerConfig::default()
// from the original scheduler.
func DefaultHybridSchedulerConfig() HybridSchedulerConfig {
	return HybridSchedulerConfig{
		Mode:            "hybrid",
		BeamWidth:       10,
		BeamLookahead:   3,
		BeamTopK:        40,
		TimeBudgetMs:    120_000,
		MaxNodes:        200_000,
		FallbackEnabled: true,
	}
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Clamp enforces the scheduler.* range bounds from the configuration
// keys table.
func (c HybridSchedulerConfig) Clamp() HybridSchedulerConfig {
	c.BeamWidth = clampInt(c.BeamWidth, 1, 64)
	c.BeamLookahead = clampInt(c.BeamLookahead, 1, 8)
	c.BeamTopK = clampInt(c.BeamTopK, 1, 500)
	c.TimeBudgetMs = clampInt(c.TimeBudgetMs, 1000, 900_000)
	c.MaxNodes = clampInt(c.MaxNodes, 1000, 5_000_000)
	return c
}

// ShiftConfig holds shift geometry.
type ShiftConfig struct {
	DayStart   string // HH:MM
	DayEnd     string
	NightStart string
}

// DefaultShiftConfig mirrors engine/constants.rs defaults.
func DefaultShiftConfig() ShiftConfig {
	return ShiftConfig{DayStart: "08:00", DayEnd: "20:00", NightStart: "20:00"}
}

// CapacityConfig holds the average rhythm and shift capacity used by
// the Sequencer's dual time tracks.
type CapacityConfig struct {
	AvgRhythmMin   float64
	ShiftCapacity  float64
}

// DefaultCapacityConfig mirrors engine/constants.rs defaults.
func DefaultCapacityConfig() CapacityConfig {
	return CapacityConfig{AvgRhythmMin: 3.5, ShiftCapacity: 1200.0}
}

// UndoConfig tunes the undo/redo stack depth.
type UndoConfig struct {
	MaxSteps int
}

// DefaultUndoConfig mirrors the original's max_steps default of 50.
func DefaultUndoConfig() UndoConfig { return UndoConfig{MaxSteps: 50} }

// Clamp enforces the undo.max_steps range.
func (c UndoConfig) Clamp() UndoConfig {
	c.MaxSteps = clampInt(c.MaxSteps, 1, 500)
	return c
}

// ParseHardConstraints parses a strategy's hard_constraints TOML blob,
// returning defaults (empty table) when raw is empty.
func ParseHardConstraints(raw string) (HardConstraintsConfig, error) {
	var cfg HardConstraintsConfig
	if raw == "" {
		return cfg, nil
	}
	if err := toml.Unmarshal([]byte(raw), &cfg); err != nil {
		return HardConstraintsConfig{}, err
	}
	return cfg, nil
}

// ParseSoftConstraints parses a strategy's soft_constraints TOML blob.
func ParseSoftConstraints(raw string) (SoftConstraintsConfig, error) {
	var cfg SoftConstraintsConfig
	if raw == "" {
		return cfg, nil
	}
	if err := toml.Unmarshal([]byte(raw), &cfg); err != nil {
		return SoftConstraintsConfig{}, err
	}
	return cfg, nil
}

// ParseEvalWeights parses a strategy's eval_weights TOML blob, falling
// back to DefaultEvalWeights when raw is empty.
func ParseEvalWeights(raw string) (EvalWeightsConfig, error) {
	if raw == "" {
		return DefaultEvalWeights(), nil
	}
	var cfg EvalWeightsConfig
	if err := toml.Unmarshal([]byte(raw), &cfg); err != nil {
		return EvalWeightsConfig{}, err
	}
	return cfg, nil
}

// ParseTemperConfig parses a strategy's temper_rules TOML blob, falling
// back to DefaultTemperConfig when raw is empty.
func ParseTemperConfig(raw string) (TemperConfig, error) {
	if raw == "" {
		return DefaultTemperConfig(), nil
	}
	cfg := DefaultTemperConfig()
	if err := toml.Unmarshal([]byte(raw), &cfg); err != nil {
		return TemperConfig{}, err
	}
	return cfg, nil
}

// HybridSchedulerConfigFromMap builds a HybridSchedulerConfig from a
// flat string map (the Repository's Config.Map("scheduler") shape),
// mirroring HybridSchedulerConfig::from_config_map.
func HybridSchedulerConfigFromMap(m map[string]string) HybridSchedulerConfig {
	cfg := DefaultHybridSchedulerConfig()
	if v, ok := m["mode"]; ok && v != "" {
		cfg.Mode = v
	}
	if v, ok := m["beam_width"]; ok {
		cfg.BeamWidth = atoiOr(v, cfg.BeamWidth)
	}
	if v, ok := m["beam_lookahead"]; ok {
		cfg.BeamLookahead = atoiOr(v, cfg.BeamLookahead)
	}
	if v, ok := m["beam_top_k"]; ok {
		cfg.BeamTopK = atoiOr(v, cfg.BeamTopK)
	}
	if v, ok := m["time_budget_ms"]; ok {
		cfg.TimeBudgetMs = atoiOr(v, cfg.TimeBudgetMs)
	}
	if v, ok := m["max_nodes"]; ok {
		cfg.MaxNodes = atoiOr(v, cfg.MaxNodes)
	}
	if v, ok := m["fallback_enabled"]; ok {
		cfg.FallbackEnabled = v == "true"
	}
	return cfg.Clamp()
}

func atoiOr(s string, fallback int) int {
	n := 0
	neg := false
	if s == "" {
		return fallback
	}
	for i, r := range s {
		if i == 0 && r == '-' {
			neg = true
			continue
		}
		if r < '0' || r > '9' {
			return fallback
		}
		n = n*10 + int(r-'0')
	}
	if neg {
		n = -n
	}
	return n
}
