package scheduler

import (
	"context"
	"fmt"
	"sync"

	"github.com/julianstephens/petminder/internal/errors"
	"github.com/julianstephens/petminder/internal/logger"
)

// Loop is the single goroutine that owns reminder state. Timer callbacks,
// presenter responses and remote completions are all posted here and run one
// at a time, so reminders need no locking.
type Loop struct {
	events  chan func()
	stopped chan struct{}
	once    sync.Once
}

func NewLoop() *Loop {
	return &Loop{
		events:  make(chan func(), 64),
		stopped: make(chan struct{}),
	}
}

// Post enqueues fn. It blocks while the queue is full and returns false once
// the loop has stopped.
func (l *Loop) Post(fn func()) bool {
	select {
	case <-l.stopped:
		return false
	default:
	}
	select {
	case <-l.stopped:
		return false
	case l.events <- fn:
		return true
	}
}

// Do runs fn on the loop and waits for it to return.
func (l *Loop) Do(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	if !l.Post(func() {
		defer close(finished)
		fn()
	}) {
		return fmt.Errorf("event loop stopped")
	}
	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run processes events until ctx is cancelled.
func (l *Loop) Run(ctx context.Context) error {
	defer l.once.Do(func() { close(l.stopped) })
	for {
		select {
		case <-ctx.Done():
			return nil
		case fn := <-l.events:
			l.dispatch(fn)
		}
	}
}

func (l *Loop) dispatch(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			if errors.DevMode {
				panic(r)
			}
			logger.Error("Event handler panicked", "panic", r)
		}
	}()
	fn()
}
