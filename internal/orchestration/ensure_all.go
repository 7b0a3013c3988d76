package orchestration

import (
	"context"
	"sync"

	"github.com/imamik/podkeeper/internal/pod"
	"github.com/imamik/podkeeper/internal/util/async"
)

// EnsureAll runs EnsureReadyPod for several logical pods concurrently, at
// most limit at a time (limit <= 0 means all at once). A failure does not
// stop the other pods. It returns the pods that became ready, keyed by
// logical name, and the joined failures.
//
// Orchestrators sharing a state file should be built with the same store
// (see WithStore) so their saves do not overwrite each other.
func EnsureAll(ctx context.Context, orchs []*Orchestrator, limit int) (map[string]*pod.Resolved, error) {
	var (
		mu    sync.Mutex
		ready = make(map[string]*pod.Resolved, len(orchs))
	)

	tasks := make([]async.Task, 0, len(orchs))
	for _, o := range orchs {
		tasks = append(tasks, async.Task{
			Name: o.Name(),
			Func: func(ctx context.Context) error {
				p, err := o.EnsureReadyPod(ctx)
				if err != nil {
					return err
				}
				mu.Lock()
				ready[o.Name()] = p
				mu.Unlock()
				return nil
			},
		})
	}

	err := async.RunParallel(ctx, tasks, limit)
	return ready, err
}
