package jobs

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "github.com/domus-erp/domus-erp/testing"
)

func TestNewRecalculateTask(t *testing.T) {
	task, err := NewRecalculateTask(42, 2024)
	require.NoError(t, err)
	assert.Equal(t, TaskBillingRecalculate, task.Type())

	var payload RecalculatePayload
	require.NoError(t, json.Unmarshal(task.Payload(), &payload))
	assert.Equal(t, int64(42), payload.BuildingID)
	assert.Equal(t, 2024, payload.Year)
}

func TestNewRecalculateTaskValidation(t *testing.T) {
	_, err := NewRecalculateTask(0, 2024)
	assert.ErrorIs(t, err, ErrInvalidTask)

	_, err = NewRecalculateTask(42, 1800)
	assert.ErrorIs(t, err, ErrInvalidTask)

	_, err = NewRecalculateAllTask(3000)
	assert.ErrorIs(t, err, ErrInvalidTask)
}
