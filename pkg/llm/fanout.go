package llm

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// FanoutConfig configures the fan-out executor.
type FanoutConfig struct {
	MaxConcurrent int // Maximum concurrent calls (default: 8)
}

// DefaultFanoutConfig returns sensible defaults.
func DefaultFanoutConfig() FanoutConfig {
	return FanoutConfig{
		MaxConcurrent: 8,
	}
}

// Fanout runs batches of independent side-effecting calls with bounded
// parallelism. One item's failure never aborts the batch: each outcome
// records its own error and the caller decides what a failed item means.
type Fanout struct {
	config FanoutConfig
	logger *zap.Logger
}

// NewFanout creates a fan-out executor.
func NewFanout(config FanoutConfig, logger *zap.Logger) *Fanout {
	if config.MaxConcurrent < 1 {
		config.MaxConcurrent = 8
	}
	return &Fanout{
		config: config,
		logger: logger.Named("fanout"),
	}
}

// Task is a unit of work in a batch.
type Task[T any] struct {
	Name string // For logging/tracking
	Run  func(ctx context.Context) (T, error)
}

// Outcome is the settled result of one task.
type Outcome[T any] struct {
	Name   string
	Result T
	Err    error
}

// RunAll executes all tasks with bounded parallelism and returns outcomes in
// task order, one per task. A panic inside a task is recovered at the item
// boundary and recorded as that item's error. onSettled, if set, is called
// once per settled task with running counts; calls are serialized.
func RunAll[T any](ctx context.Context, f *Fanout, tasks []Task[T], onSettled func(settled, total int)) []Outcome[T] {
	if len(tasks) == 0 {
		return nil
	}

	results := make([]Outcome[T], len(tasks))
	settledChan := make(chan int, len(tasks))
	sem := make(chan struct{}, f.config.MaxConcurrent)

	var wg sync.WaitGroup

	for i, task := range tasks {
		wg.Add(1)
		go func(i int, task Task[T]) {
			defer wg.Done()

			outcome := Outcome[T]{Name: task.Name}
			defer func() {
				if r := recover(); r != nil {
					var zero T
					outcome.Result = zero
					outcome.Err = fmt.Errorf("task panicked: %v", r)
				}
				results[i] = outcome
				settledChan <- i
			}()

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				outcome.Err = ctx.Err()
				return
			}

			outcome.Result, outcome.Err = task.Run(ctx)
		}(i, task)
	}

	go func() {
		wg.Wait()
		close(settledChan)
	}()

	settled := 0
	for idx := range settledChan {
		settled++
		if outcome := results[idx]; outcome.Err != nil {
			f.logger.Warn("task failed",
				zap.String("task", outcome.Name),
				zap.Error(outcome.Err))
		}
		if onSettled != nil {
			onSettled(settled, len(tasks))
		}
	}

	return results
}
