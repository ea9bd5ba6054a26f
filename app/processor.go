package app

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	tea "github.com/charmbracelet/bubbletea"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"tasklist/flow"
	"tasklist/model"
)

// Processor accepts actions for the task list screen and publishes the
// resulting UiState. Actions are handled one at a time, in submission order, on
// a headless bubbletea program.
type Processor struct {
	program *tea.Program
	state   *flow.Flow[model.UiState]
	log     *slog.Logger

	cancel context.CancelFunc
	closed atomic.Bool
	done   chan struct{}

	mu  sync.Mutex
	err error
}

type options struct {
	log       *slog.Logger
	tracer    trace.TracerProvider
	filterKey string
}

// Option configures a Processor.
type Option func(*options)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.log = l
		}
	}
}

// WithTracerProvider sets the provider used for repository spans.
// The default is the global provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) {
		if tp != nil {
			o.tracer = tp
		}
	}
}

// WithFilterKey overrides the key the active filter is stored under.
func WithFilterKey(key string) Option {
	return func(o *options) {
		if key != "" {
			o.filterKey = key
		}
	}
}

// NewProcessor starts a processor. The initial filter is read from filters;
// when none is stored, or reading fails, FilterAll is used. The processor runs
// until Close is called or ctx is cancelled.
func NewProcessor(ctx context.Context, repo Repository, filters FilterStore, opts ...Option) *Processor {
	o := options{
		log:       slog.New(slog.NewTextHandler(io.Discard, nil)),
		tracer:    otel.GetTracerProvider(),
		filterKey: DefaultFilterKey,
	}
	for _, opt := range opts {
		opt(&o)
	}

	filter := model.FilterAll
	if stored, ok, err := filters.Filter(ctx, o.filterKey); err != nil {
		o.log.Warn("read persisted filter failed", "key", o.filterKey, "err", err)
	} else if ok {
		if parsed, err := model.ParseFilter(string(stored)); err == nil {
			filter = parsed
		} else {
			o.log.Warn("ignoring persisted filter", "err", err)
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	initial := model.NewUiState(filter)
	p := &Processor{
		state:  flow.New(initial),
		log:    o.log,
		cancel: cancel,
		done:   make(chan struct{}),
	}

	m := &machine{
		ctx:       ctx,
		repo:      repo,
		filters:   filters,
		filterKey: o.filterKey,
		log:       o.log,
		tracer:    o.tracer.Tracer("tasklist/app"),
		publish:   p.state.Set,
		state:     initial,
		filter:    filter,
	}
	p.program = tea.NewProgram(m,
		tea.WithContext(ctx),
		tea.WithInput(nil),
		tea.WithOutput(io.Discard),
		tea.WithoutRenderer(),
		tea.WithoutSignalHandler(),
	)
	effects := newEffectQueue(p.program.Send)
	m.enqueue = effects.enqueue

	go effects.run(ctx)
	go p.run()
	return p
}

func (p *Processor) run() {
	defer close(p.done)
	defer p.state.Close()

	_, err := p.program.Run()
	if err != nil && !errors.Is(err, tea.ErrProgramKilled) && !errors.Is(err, context.Canceled) {
		p.log.Error("processor stopped", "err", err)
		p.mu.Lock()
		p.err = err
		p.mu.Unlock()
	}
	p.closed.Store(true)
	p.cancel()
}

// Process submits an action. It does not wait for the action's effects; all
// results are observed through the state stream. Actions submitted after Close
// are ignored.
func (p *Processor) Process(a model.Action) {
	if a == nil || p.closed.Load() {
		return
	}
	p.program.Send(a)
}

// State returns the latest published state.
func (p *Processor) State() model.UiState {
	return p.state.Value()
}

// Subscribe returns a subscription that yields the current state and then every
// later state. Its channel is closed when the processor stops.
func (p *Processor) Subscribe() *flow.Subscription[model.UiState] {
	return p.state.Subscribe()
}

// Done is closed once the processor has stopped.
func (p *Processor) Done() <-chan struct{} {
	return p.done
}

// Close stops the processor. Pending repository results are discarded.
func (p *Processor) Close() error {
	p.closed.Store(true)
	p.cancel()
	<-p.done

	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}
