// Package async provides utilities for parallel task execution.
//
// It is used to ensure several independent pods concurrently. Unlike a
// fail-fast group, every task runs to completion and all failures are
// reported together.
package async

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// Task represents an asynchronous operation with a name and function.
type Task struct {
	Name string
	Func func(context.Context) error
}

// TaskError records which task failed.
type TaskError struct {
	Name string
	Err  error
}

func (e *TaskError) Error() string {
	return fmt.Sprintf("%s: %v", e.Name, e.Err)
}

func (e *TaskError) Unwrap() error {
	return e.Err
}

// RunParallel executes tasks concurrently, at most limit at a time (limit <= 0
// means unbounded), and waits for all of them. Task failures do not cancel
// sibling tasks. The returned error joins one *TaskError per failed task in
// task order, or is nil when every task succeeded.
//
// Example:
//
//	tasks := []Task{
//	    {Name: "dev-pod", Func: ensureDev},
//	    {Name: "train-pod", Func: ensureTrain},
//	}
//	if err := RunParallel(ctx, tasks, 2); err != nil {
//	    return err
//	}
func RunParallel(ctx context.Context, tasks []Task, limit int) error {
	if len(tasks) == 0 {
		return nil
	}

	var g errgroup.Group
	if limit > 0 {
		g.SetLimit(limit)
	}

	errs := make([]error, len(tasks))
	for i, task := range tasks {
		g.Go(func() error {
			if err := task.Func(ctx); err != nil {
				errs[i] = &TaskError{Name: task.Name, Err: err}
			}
			return nil
		})
	}
	_ = g.Wait()

	return errors.Join(errs...)
}
