// Package evaluator scores a finished plan across five weighted
// metrics and rolls up the high/medium/low risk counts a Plan stores.
package evaluator

import (
	"encoding/json"
	"math"
	"time"

	"github.com/terminal-bench/tempermill/internal/domain"
	"github.com/terminal-bench/tempermill/internal/rollchange"
	"github.com/terminal-bench/tempermill/internal/sorter"
	"github.com/terminal-bench/tempermill/internal/validator"
	"github.com/terminal-bench/tempermill/pkg/config"
	"github.com/terminal-bench/tempermill/pkg/decimal"
)

// Metrics is the raw, unweighted measurement set behind the scorecard.
type Metrics struct {
	TotalCount            int
	TotalWeight            float64
	RollChangeCount        int
	WidthJumpCount         int
	SteelGradeSwitchCount  int
	CapacityUtilization    float64
	TemperedRatio          float64
	UrgentCompletionRate   float64
	OverdueCount           int
	SoftScoreAdjust        int
}

// Result is the scorecard returned to the caller and persisted onto
// the Plan's score/risk fields.
type Result struct {
	ScoreOverall    int
	ScoreSequence   int
	ScoreDelivery   int
	ScoreEfficiency int
	Metrics         Metrics
	RiskHigh        int
	RiskMedium      int
	RiskLow         int
	RiskSummaryJSON string
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

type riskSummary struct {
	Violations  []validator.Violation       `json:"violations"`
	SoftDetails []validator.SoftScoreDetail `json:"soft_details"`
}

// Evaluate scores a finished plan. sequence is the coils in final
// schedule order; rollChanges and violations are what the Sequencer
// and HardValidator produced; softAdjust/softDetails come from
// validator.EvaluateSoft; shiftCapacity and planDays size the
// denominator for capacity_utilization.
func Evaluate(
	sequence []sorter.SortedCoil,
	rollChanges []rollchange.Point,
	violations []validator.Violation,
	softDetails []validator.SoftScoreDetail,
	softAdjust int,
	weights config.EvalWeightsConfig,
	shiftCapacity float64,
	planDays int,
	now time.Time,
) Result {
	totalCount := len(sequence)

	coilWeights := make([]float64, len(sequence))
	for i, sm := range sequence {
		coilWeights[i] = sm.Coil.Weight
	}
	totalWeight := decimal.SumWeights(coilWeights)
	rollChangeCount := len(rollChanges)

	widthJumpCount := 0
	steelGradeSwitches := 0
	for i := 1; i < len(sequence); i++ {
		diff := sequence[i].Coil.Width - sequence[i-1].Coil.Width
		if diff < 0 {
			diff = -diff
		}
		if diff > 100.0 {
			widthJumpCount++
		}
		if sequence[i].Coil.SteelGrade != sequence[i-1].Coil.SteelGrade {
			steelGradeSwitches++
		}
	}

	planDaysF := float64(planDays)
	if planDaysF < 1 {
		planDaysF = 1
	}
	totalCapacity := shiftCapacity * 2.0 * planDaysF
	capacityUtilization := 0.0
	if totalCapacity > 0 {
		capacityUtilization = totalWeight / totalCapacity * 100.0
		if capacityUtilization > 100.0 {
			capacityUtilization = 100.0
		}
	}

	temperedCount := 0
	for _, sm := range sequence {
		if sm.Coil.TempStatus == domain.TempStatusReady {
			temperedCount++
		}
	}
	temperedRatio := 0.0
	if totalCount > 0 {
		temperedRatio = float64(temperedCount) / float64(totalCount) * 100.0
	}

	overdueCount := 0
	urgentTotal := 0
	today := now
	for _, sm := range sequence {
		if sm.Coil.DueDate == nil {
			continue
		}
		if sm.Coil.DueDate.Before(today) {
			overdueCount++
		}
		diffDays := int(sm.Coil.DueDate.Sub(today).Hours() / 24)
		if diffDays <= 7 {
			urgentTotal++
		}
	}
	// Not a completion ratio: 100 as soon as any due-within-7-days or
	// overdue coil is in the sequence, else 0; kept as-is for fidelity
	// with the original.
	urgentCompletion := 0.0
	if urgentTotal > 0 {
		urgentCompletion = 100.0
	}

	metrics := Metrics{
		TotalCount:            totalCount,
		TotalWeight:           totalWeight,
		RollChangeCount:       rollChangeCount,
		WidthJumpCount:        widthJumpCount,
		SteelGradeSwitchCount: steelGradeSwitches,
		CapacityUtilization:   capacityUtilization,
		TemperedRatio:         temperedRatio,
		UrgentCompletionRate:  urgentCompletion,
		OverdueCount:          overdueCount,
		SoftScoreAdjust:       softAdjust,
	}

	maxPossibleJumps := totalCount - 1
	if maxPossibleJumps < 1 {
		maxPossibleJumps = 1
	}
	wjScore := int((1.0 - float64(widthJumpCount)/float64(maxPossibleJumps)) * 100.0)

	// The ideal roll-change count is hardcoded against the 800t
	// default threshold rather than the strategy's configured
	// tonnage_threshold; kept as-is for fidelity with the original.
	idealChanges := int(math.Ceil(totalWeight / 800.0))
	rcScore := 100
	if idealChanges != 0 {
		rcScore = int(100.0 * (1.0 - math.Min(math.Abs(float64(rollChangeCount)-float64(idealChanges))/float64(idealChanges), 1.0)))
	}

	cuScore := int(capacityUtilization)
	trScore := int(temperedRatio)
	ucScore := int(urgentCompletion)

	totalWeightSum := weights.WeightFor("width_jump_count") +
		weights.WeightFor("roll_change_count") +
		weights.WeightFor("capacity_utilization") +
		weights.WeightFor("tempered_ratio") +
		weights.WeightFor("urgent_completion")

	scoreOverall := 50
	if totalWeightSum > 0 {
		weighted := float64(wjScore)*weights.WeightFor("width_jump_count") +
			float64(rcScore)*weights.WeightFor("roll_change_count") +
			float64(cuScore)*weights.WeightFor("capacity_utilization") +
			float64(trScore)*weights.WeightFor("tempered_ratio") +
			float64(ucScore)*weights.WeightFor("urgent_completion")
		scoreOverall = int(weighted / totalWeightSum)
	}

	scoreSequence := (wjScore + rcScore) / 2
	scoreDelivery := ucScore
	scoreEfficiency := cuScore

	riskHigh, riskMedium, riskLow := 0, 0, 0
	for _, v := range violations {
		switch v.Severity {
		case domain.SeverityHigh:
			riskHigh++
		case domain.SeverityMedium:
			riskMedium++
		case domain.SeverityLow:
			riskLow++
		}
	}

	summary, _ := json.Marshal(riskSummary{Violations: violations, SoftDetails: softDetails})

	return Result{
		ScoreOverall:    clampInt(scoreOverall, 0, 100),
		ScoreSequence:   clampInt(scoreSequence, 0, 100),
		ScoreDelivery:   clampInt(scoreDelivery, 0, 100),
		ScoreEfficiency: clampInt(scoreEfficiency, 0, 100),
		Metrics:         metrics,
		RiskHigh:        riskHigh,
		RiskMedium:      riskMedium,
		RiskLow:         riskLow,
		RiskSummaryJSON: string(summary),
	}
}
