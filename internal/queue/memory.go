package queue

import (
	"context"
	"sync"
)

// MemoryProvider is a buffered in-process queue for development and tests.
type MemoryProvider struct {
	tasks chan Task

	mu     sync.Mutex
	closed bool
}

func NewMemoryProvider() *MemoryProvider {
	return &MemoryProvider{tasks: make(chan Task, 1024)}
}

func (p *MemoryProvider) Publish(ctx context.Context, task Task) error {
	select {
	case p.tasks <- task:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *MemoryProvider) Consume(ctx context.Context, handle func(context.Context, Task) error) error {
	for {
		select {
		case task, ok := <-p.tasks:
			if !ok {
				return nil
			}
			if err := handle(ctx, task); err != nil {
				// Requeue for another attempt.
				task.Attempt++
				select {
				case p.tasks <- task:
				default:
				}
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (p *MemoryProvider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.closed {
		p.closed = true
		close(p.tasks)
	}
	return nil
}

// Len reports the number of queued tasks. Test helper.
func (p *MemoryProvider) Len() int {
	return len(p.tasks)
}
