package queue

import (
	"strings"
	"time"

	"github.com/google/cel-go/cel"

	"github.com/rzbill/queuectl/internal/job"
)

// Filter wraps a compiled CEL program evaluated against job records, used by
// `list --filter`. A disabled filter (empty expression) matches everything.
type Filter struct {
	prog    cel.Program
	enabled bool
}

// NewFilter compiles expr. Available variables: id, state, command, error
// (strings), attempts, max_retries (ints), and now_ms / updated_ms for
// time-windowed expressions.
func NewFilter(expr string) (Filter, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return Filter{enabled: false}, nil
	}
	env, err := cel.NewEnv(
		cel.Variable("id", cel.StringType),
		cel.Variable("state", cel.StringType),
		cel.Variable("command", cel.StringType),
		cel.Variable("error", cel.StringType),
		cel.Variable("attempts", cel.IntType),
		cel.Variable("max_retries", cel.IntType),
		cel.Variable("now_ms", cel.IntType),
		cel.Variable("updated_ms", cel.IntType),
	)
	if err != nil {
		return Filter{}, err
	}
	ast, iss := env.Parse(expr)
	if iss != nil && iss.Err() != nil {
		return Filter{}, iss.Err()
	}
	checked, iss2 := env.Check(ast)
	if iss2 != nil && iss2.Err() != nil {
		return Filter{}, iss2.Err()
	}
	prog, err := env.Program(checked)
	if err != nil {
		return Filter{}, err
	}
	return Filter{prog: prog, enabled: true}, nil
}

// Eval evaluates the filter against j. Evaluation errors count as no-match.
func (f Filter) Eval(j job.Job) bool {
	if !f.enabled {
		return true
	}
	errMsg := ""
	if j.ErrorMessage != nil {
		errMsg = *j.ErrorMessage
	}
	out, _, err := f.prog.Eval(map[string]any{
		"id":          j.ID,
		"state":       string(j.State),
		"command":     j.Command,
		"error":       errMsg,
		"attempts":    j.Attempts,
		"max_retries": j.MaxRetries,
		"now_ms":      time.Now().UnixMilli(),
		"updated_ms":  j.UpdatedAt.UnixMilli(),
	})
	if err != nil {
		return false
	}
	match, ok := out.Value().(bool)
	return ok && match
}

// Apply returns the jobs matching f, in the given order.
func (f Filter) Apply(jobs []job.Job) []job.Job {
	if !f.enabled {
		return jobs
	}
	out := make([]job.Job, 0, len(jobs))
	for _, j := range jobs {
		if f.Eval(j) {
			out = append(out, j)
		}
	}
	return out
}
