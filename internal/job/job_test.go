package job

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetryDelay(t *testing.T) {
	tests := []struct {
		base     int
		attempts int
		want     time.Duration
	}{
		{2, 1, 1 * time.Second},
		{2, 2, 2 * time.Second},
		{2, 3, 4 * time.Second},
		{3, 1, 1 * time.Second},
		{3, 2, 3 * time.Second},
		{3, 3, 9 * time.Second},
		{0, 2, 1 * time.Second}, // degenerate base clamps to 1
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, RetryDelay(tt.base, tt.attempts), "base=%d attempts=%d", tt.base, tt.attempts)
	}
}

func TestPatchApply(t *testing.T) {
	j := New("j1", "echo hi", 3)
	created := j.CreatedAt

	st := StateScheduled
	attempts := 1
	msg := "boom"
	next := time.Now().Add(2 * time.Second).UTC()
	j = Patch{State: &st, Attempts: &attempts, ErrorMessage: &msg, NextRetryAt: &next}.Apply(j, time.Now())

	assert.Equal(t, StateScheduled, j.State)
	assert.Equal(t, 1, j.Attempts)
	require.NotNil(t, j.ErrorMessage)
	assert.Equal(t, "boom", *j.ErrorMessage)
	require.NotNil(t, j.NextRetryAt)
	assert.Equal(t, created, j.CreatedAt, "CreatedAt is immutable")

	// Patch with nothing set keeps values but refreshes UpdatedAt.
	before := j.UpdatedAt
	time.Sleep(5 * time.Millisecond)
	j2 := Patch{}.Apply(j, time.Now())
	assert.Equal(t, j.State, j2.State)
	assert.Equal(t, j.Attempts, j2.Attempts)
	assert.True(t, j2.UpdatedAt.After(before))

	// Clear flags remove optional fields.
	zero := 0
	pend := StatePending
	j3 := Patch{State: &pend, Attempts: &zero, ClearErrorMessage: true, ClearNextRetryAt: true}.Apply(j2, time.Now())
	assert.Nil(t, j3.ErrorMessage)
	assert.Nil(t, j3.NextRetryAt)
	assert.Equal(t, 0, j3.Attempts)
}

func TestRunnableAt(t *testing.T) {
	now := time.Now()
	j := New("j1", "true", 3)
	assert.True(t, j.RunnableAt(now))

	future := now.Add(time.Minute)
	j.NextRetryAt = &future
	assert.False(t, j.RunnableAt(now))
	assert.True(t, j.RunnableAt(now.Add(2*time.Minute)))

	j.State = StateProcessing
	assert.False(t, j.RunnableAt(now.Add(2*time.Minute)))
}

func TestDecodeDefaultsOptionalFieldsToAbsent(t *testing.T) {
	raw := `{"id":"j1","command":"true","state":"pending","attempts":0,"max_retries":3,
		"created_at":"2025-01-01T00:00:00Z","updated_at":"2025-01-01T00:00:00Z"}`
	var j Job
	require.NoError(t, json.Unmarshal([]byte(raw), &j))
	assert.Nil(t, j.ErrorMessage)
	assert.Nil(t, j.NextRetryAt)
	assert.Nil(t, j.Stdout)
	assert.Nil(t, j.Stderr)
}

func TestStateKnown(t *testing.T) {
	for _, s := range []State{StatePending, StateScheduled, StateProcessing, StateCompleted, StateFailed, StateDead} {
		assert.True(t, s.Known(), "state %q", s)
	}
	assert.False(t, State("odd").Known())
}
