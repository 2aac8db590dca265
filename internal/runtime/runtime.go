// Package runtime executes agent tasks and collects their raw output.
package runtime

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"offer-crew/internal/tasks"
)

// Mode selects how Kickoff schedules a batch of tasks.
type Mode string

const (
	Sequential Mode = "sequential"
	Concurrent Mode = "concurrent"
)

// Output is the untyped answer an agent produced for one task.
type Output struct {
	TaskName string `json:"taskName"`
	Agent    string `json:"agent"`
	Raw      string `json:"raw"`
}

// Runtime runs a single task to completion.
type Runtime interface {
	Execute(ctx context.Context, task *tasks.Task) (*Output, error)
}

// Result is the outcome of one task in a Kickoff batch.
type Result struct {
	Task   *tasks.Task
	Output *Output
	Err    error
}

// Kickoff runs every task on rt and returns one Result per task in input
// order. Concurrent mode runs at most limit tasks at once; Sequential runs
// them one by one. A failing task does not cancel the others.
func Kickoff(ctx context.Context, rt Runtime, mode Mode, limit int, batch []*tasks.Task) []Result {
	results := make([]Result, len(batch))
	if len(batch) == 0 {
		return results
	}

	if mode == Sequential || limit < 1 {
		limit = 1
	}

	var g errgroup.Group
	g.SetLimit(limit)

	for i, task := range batch {
		i, task := i, task
		g.Go(func() error {
			results[i] = execute(ctx, rt, task)
			// per-task failures live in results; never stop the group
			return nil
		})
	}
	_ = g.Wait()

	return results
}

func execute(ctx context.Context, rt Runtime, task *tasks.Task) (res Result) {
	res.Task = task
	defer func() {
		if r := recover(); r != nil {
			res.Output = nil
			res.Err = fmt.Errorf("task %s panicked: %v", task.Name, r)
		}
	}()

	if err := ctx.Err(); err != nil {
		res.Err = err
		return res
	}

	out, err := rt.Execute(ctx, task)
	if err != nil {
		res.Err = err
		return res
	}
	res.Output = out
	return res
}
