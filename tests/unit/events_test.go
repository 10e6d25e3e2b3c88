package unit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/terminal-bench/tempermill/shared/events"
)

func TestEventRoundTrip(t *testing.T) {
	t.Run("should marshal and parse plan scheduled data", func(t *testing.T) {
		data := events.PlanScheduledData{
			PlanID:        7,
			StrategyID:    1,
			TotalCount:    3,
			TotalWeight:   600,
			RollChanges:   0,
			ScoreOverall:  82.5,
			SchedulerMode: "hybrid",
		}

		evt, err := events.NewEvent(events.PlanScheduled, 7, "plan", data, events.Metadata{Source: "schedulerd"})
		assert.NoError(t, err)
		assert.Equal(t, events.PlanScheduled, evt.Type)

		var decoded events.PlanScheduledData
		assert.NoError(t, evt.ParseData(&decoded))
		assert.Equal(t, data, decoded)
	})
}
