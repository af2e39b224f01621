package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
)

// Group runs fire-and-forget work that must outlive the request that started
// it. Task failures are logged and never reported back to the caller.
type Group struct {
	wg sync.WaitGroup
}

func NewGroup() *Group {
	return &Group{}
}

// Go starts fn in its own goroutine. The context handed to fn keeps the values
// of ctx but is never cancelled when ctx is.
func (g *Group) Go(ctx context.Context, name string, fn func(context.Context) error) {
	detached := context.WithoutCancel(ctx)
	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		if err := run(detached, fn); err != nil {
			slog.Error("background task failed", "task", name, "error", err)
			return
		}
		slog.Debug("background task finished", "task", name)
	}()
}

// Wait blocks until every started task has returned or ctx is done.
func (g *Group) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		g.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for background tasks: %w", ctx.Err())
	}
}

func run(ctx context.Context, fn func(context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v\n%s", r, debug.Stack())
		}
	}()
	return fn(ctx)
}
