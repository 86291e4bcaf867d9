package queue

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rzbill/queuectl/internal/job"
)

func TestFilterDisabledMatchesAll(t *testing.T) {
	f, err := NewFilter("   ")
	require.NoError(t, err)
	assert.True(t, f.Eval(job.New("any", "true", 3)))
}

func TestFilterExpressions(t *testing.T) {
	jobs := []job.Job{
		job.New("a", "echo one", 3),
		job.New("b", "echo two", 3),
	}
	jobs[1].State = job.StateDead
	jobs[1].Attempts = 4
	msg := "exit 1"
	jobs[1].ErrorMessage = &msg

	tests := []struct {
		expr string
		want []string
	}{
		{`state == "pending"`, []string{"a"}},
		{`attempts > max_retries`, []string{"b"}},
		{`command.contains("two")`, []string{"b"}},
		{`error != ""`, []string{"b"}},
		{`state == "pending" || state == "dead"`, []string{"a", "b"}},
		{`attempts > 100`, nil},
	}
	for _, tt := range tests {
		f, err := NewFilter(tt.expr)
		require.NoError(t, err, "expr %q", tt.expr)
		var got []string
		for _, j := range f.Apply(jobs) {
			got = append(got, j.ID)
		}
		assert.Equal(t, tt.want, got, "expr %q", tt.expr)
	}
}

func TestFilterRejectsBadExpression(t *testing.T) {
	_, err := NewFilter(`state ==`)
	require.Error(t, err)

	// Unknown variables fail at check time, not at eval time.
	_, err = NewFilter(`priority > 3`)
	require.Error(t, err)
}

func TestFilterNonBooleanResultIsNoMatch(t *testing.T) {
	f, err := NewFilter(`attempts + 1`)
	require.NoError(t, err)
	assert.False(t, f.Eval(job.New("a", "true", 3)))
}
