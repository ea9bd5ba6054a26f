// Package flow provides an observable value cell that always holds a current
// value and fans every update out to its subscribers.
package flow

import "sync"

// Flow holds the latest value of T. A single producer calls Set; any number of
// subscribers receive the current value followed by every later value, in order.
// Set never blocks on a slow subscriber.
type Flow[T any] struct {
	mu     sync.Mutex
	value  T
	subs   map[int]*Subscription[T]
	nextID int
	closed bool
}

// New returns a flow holding initial.
func New[T any](initial T) *Flow[T] {
	return &Flow[T]{value: initial, subs: make(map[int]*Subscription[T])}
}

// Value returns the current value.
func (f *Flow[T]) Value() T {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.value
}

// Set replaces the current value and queues it for every subscriber.
// Calls after Close are ignored.
func (f *Flow[T]) Set(v T) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.value = v
	for _, s := range f.subs {
		s.push(v)
	}
}

// Subscribe registers a subscriber. Its channel yields the current value first.
// Subscribing to a closed flow returns a subscription whose channel holds the
// last value and is then closed.
func (f *Flow[T]) Subscribe() *Subscription[T] {
	f.mu.Lock()
	defer f.mu.Unlock()

	s := newSubscription[T](f, f.nextID)
	f.nextID++
	s.push(f.value)
	if f.closed {
		s.finish()
		return s
	}
	f.subs[s.id] = s
	return s
}

// Close stops the flow. Subscribers drain what was already queued and then see
// their channel closed.
func (f *Flow[T]) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.closed = true
	for id, s := range f.subs {
		s.finish()
		delete(f.subs, id)
	}
}

func (f *Flow[T]) remove(id int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.subs, id)
}

// Subscription is one consumer of a Flow.
type Subscription[T any] struct {
	id   int
	flow *Flow[T]
	out  chan T
	wake chan struct{}
	stop chan struct{}
	once sync.Once

	mu       sync.Mutex
	queue    []T
	finished bool
}

func newSubscription[T any](f *Flow[T], id int) *Subscription[T] {
	s := &Subscription[T]{
		id:   id,
		flow: f,
		out:  make(chan T),
		wake: make(chan struct{}, 1),
		stop: make(chan struct{}),
	}
	go s.pump()
	return s
}

// C returns the channel of values. It is closed after Cancel or when the flow closes.
func (s *Subscription[T]) C() <-chan T {
	return s.out
}

// Cancel unsubscribes. Values not yet received are discarded.
func (s *Subscription[T]) Cancel() {
	s.once.Do(func() {
		s.flow.remove(s.id)
		close(s.stop)
	})
}

func (s *Subscription[T]) push(v T) {
	s.mu.Lock()
	s.queue = append(s.queue, v)
	s.mu.Unlock()
	s.signal()
}

func (s *Subscription[T]) finish() {
	s.mu.Lock()
	s.finished = true
	s.mu.Unlock()
	s.signal()
}

func (s *Subscription[T]) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Subscription[T]) pump() {
	defer close(s.out)
	for {
		s.mu.Lock()
		pending := s.queue
		s.queue = nil
		finished := s.finished
		s.mu.Unlock()

		for _, v := range pending {
			select {
			case s.out <- v:
			case <-s.stop:
				return
			}
		}
		if len(pending) > 0 {
			continue
		}
		if finished {
			return
		}

		select {
		case <-s.wake:
		case <-s.stop:
			return
		}
	}
}
