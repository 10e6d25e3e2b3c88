package lock

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMutexKeyNamespacesByPlan(t *testing.T) {
	assert.Equal(t, "/tempermill/plan-locks/7", mutexKey(7))
	assert.NotEqual(t, mutexKey(7), mutexKey(8))
}
