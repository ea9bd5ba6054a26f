package app

import (
	"context"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
)

// effectQueue runs repository commands one at a time in submission order and
// hands each resulting message back to the event loop.
type effectQueue struct {
	send func(tea.Msg)

	mu      sync.Mutex
	pending []tea.Cmd
	wake    chan struct{}
}

func newEffectQueue(send func(tea.Msg)) *effectQueue {
	return &effectQueue{send: send, wake: make(chan struct{}, 1)}
}

// enqueue never blocks, so it is safe to call from Update.
func (q *effectQueue) enqueue(cmd tea.Cmd) {
	if cmd == nil {
		return
	}
	q.mu.Lock()
	q.pending = append(q.pending, cmd)
	q.mu.Unlock()
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

func (q *effectQueue) run(ctx context.Context) {
	for {
		q.mu.Lock()
		var cmd tea.Cmd
		if len(q.pending) > 0 {
			cmd = q.pending[0]
			q.pending[0] = nil
			q.pending = q.pending[1:]
		}
		q.mu.Unlock()

		if cmd == nil {
			select {
			case <-q.wake:
				continue
			case <-ctx.Done():
				return
			}
		}

		if ctx.Err() != nil {
			return
		}
		if msg := cmd(); msg != nil {
			q.send(msg)
		}
	}
}
