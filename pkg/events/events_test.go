package events

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_CoversEveryEventType(t *testing.T) {
	for _, eventType := range EventTypes {
		event, ok := New(eventType)
		require.True(t, ok, eventType)

		typed, ok := event.(interface{ GetType() EventType })
		require.True(t, ok, eventType)
		assert.Equal(t, eventType, typed.GetType())
	}

	_, ok := New("unknown")
	assert.False(t, ok)
}

func TestTaskCreated_JSONSerialization(t *testing.T) {
	original := &TaskCreated{
		BaseEvent:       NewBaseEvent(TaskCreatedEvent, "instance-1", "tenant1"),
		TaskID:          "task-1",
		NodeID:          "approve",
		Name:            "Approve Invoice",
		CandidateGroups: []string{"accounting"},
	}

	jsonData, err := json.Marshal(original)
	require.NoError(t, err)
	assert.Contains(t, string(jsonData), `"type":"task.created"`)
	assert.Contains(t, string(jsonData), `"instance_id":"instance-1"`)
	assert.Contains(t, string(jsonData), `"tenant_id":"tenant1"`)
	assert.NotContains(t, string(jsonData), `"assignee"`)

	var deserialized TaskCreated

	require.NoError(t, json.Unmarshal(jsonData, &deserialized))
	assert.Equal(t, original.ID, deserialized.ID)
	assert.Equal(t, original.TaskID, deserialized.TaskID)
	assert.Equal(t, original.CandidateGroups, deserialized.CandidateGroups)
	assert.True(t, original.Timestamp.Equal(deserialized.Timestamp))
}

func TestNewBaseEvent(t *testing.T) {
	first := NewBaseEvent(ProcessInstanceStartedEvent, "instance-1", "")
	second := NewBaseEvent(ProcessInstanceStartedEvent, "instance-1", "")

	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, ProcessInstanceStartedEvent, first.Type)
	assert.NotNil(t, first.Metadata)
	assert.False(t, first.Timestamp.IsZero())
}
