package runner

import (
	"context"
	"fmt"
	"sort"
	"time"
)

// Task is a unit of work the runner executes on a cron schedule.
type Task interface {
	Name() string
	// Schedule is a six-field cron expression (seconds first).
	Schedule() string
	Run(ctx context.Context) error
	// Timeout bounds a single execution.
	Timeout() time.Duration
}

// TaskRegistry holds the tasks a runner will schedule.
type TaskRegistry struct {
	tasks map[string]Task
}

// NewTaskRegistry creates an empty registry.
func NewTaskRegistry() *TaskRegistry {
	return &TaskRegistry{tasks: make(map[string]Task)}
}

// Register adds a task; names must be unique.
func (r *TaskRegistry) Register(task Task) error {
	if _, exists := r.tasks[task.Name()]; exists {
		return fmt.Errorf("task %q already registered", task.Name())
	}
	r.tasks[task.Name()] = task
	return nil
}

// Get looks a task up by name.
func (r *TaskRegistry) Get(name string) (Task, bool) {
	task, exists := r.tasks[name]
	return task, exists
}

// Names returns registered task names in lexical order.
func (r *TaskRegistry) Names() []string {
	names := make([]string, 0, len(r.tasks))
	for name := range r.tasks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
