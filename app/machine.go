package app

import (
	"context"
	"log/slog"

	tea "github.com/charmbracelet/bubbletea"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"tasklist/model"
)

type tasksLoadedMsg struct {
	gen   uint64
	tasks []model.Task
	err   error
}

type completionSetMsg struct {
	taskID    string
	completed bool
	err       error
}

type completedClearedMsg struct {
	err error
}

type filterSavedMsg struct {
	filter model.Filter
	err    error
}

// machine owns the authoritative UiState. It only runs on the program's event
// loop; repository work is handed to the effect queue and comes back as a msg.
type machine struct {
	ctx       context.Context
	repo      Repository
	filters   FilterStore
	filterKey string
	log       *slog.Logger
	tracer    trace.Tracer
	publish   func(model.UiState)
	enqueue   func(tea.Cmd)

	state  model.UiState
	filter model.Filter
	// all is the unfiltered result of the last successful fetch.
	all []model.Task

	gen         uint64
	cancelFetch context.CancelFunc
	messageSeq  uint64
}

func (m *machine) Init() tea.Cmd {
	return nil
}

func (m *machine) View() string {
	return ""
}

func (m *machine) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if a, ok := msg.(model.Action); ok {
		m.log.Debug("action accepted", "action", model.ActionName(a))
	}

	switch msg := msg.(type) {
	case model.SetFilter:
		m.setFilter(msg.Filter)
	case model.Refresh:
		m.refresh()
	case model.ClearCompletedTasks:
		m.enqueue(m.clearCompletedCmd())
	case model.ShowEditResultMessage:
		if text, ok := model.MessageFor(msg.Result); ok {
			m.showMessage(text)
		} else {
			m.log.Debug("ignoring unknown edit result", "result", int(msg.Result))
		}
	case model.SetTaskCompletion:
		m.enqueue(m.setCompletionCmd(msg.Task.ID, msg.Completed))
	case model.MessageShown:
		m.messageShown(msg.ID)

	case tasksLoadedMsg:
		m.tasksLoaded(msg)
	case completionSetMsg:
		if msg.err != nil {
			m.log.Warn("set completion failed", "task", msg.taskID, "err", msg.err)
			m.showMessage(model.MessageUpdateError)
			break
		}
		if msg.completed {
			m.showMessage(model.MessageMarkedComplete)
		} else {
			m.showMessage(model.MessageMarkedActive)
		}
	case completedClearedMsg:
		if msg.err != nil {
			m.log.Warn("clear completed failed", "err", msg.err)
			m.showMessage(model.MessageUpdateError)
			break
		}
		m.showMessage(model.MessageCompletedCleared)
	case filterSavedMsg:
		if msg.err != nil {
			m.log.Warn("persist filter failed", "filter", string(msg.filter), "err", msg.err)
		}
	}
	return m, nil
}

func (m *machine) setFilter(f model.Filter) {
	f, err := model.ParseFilter(string(f))
	if err != nil {
		m.log.Warn("ignoring filter", "err", err)
		return
	}
	m.enqueue(m.saveFilterCmd(f))

	m.filter = f
	m.state.FilterInfo = model.InfoFor(f)
	m.state.Items = model.FilterTasks(m.all, f)
	m.emit()
}

func (m *machine) refresh() {
	if m.cancelFetch != nil {
		m.cancelFetch()
	}
	m.gen++
	ctx, cancel := context.WithCancel(m.ctx)
	m.cancelFetch = cancel

	m.state.IsLoading = true
	m.emit()
	m.enqueue(m.fetchCmd(ctx, cancel, m.gen))
}

func (m *machine) tasksLoaded(msg tasksLoadedMsg) {
	if msg.gen != m.gen {
		m.log.Debug("dropping superseded fetch", "generation", msg.gen, "current", m.gen)
		return
	}
	m.cancelFetch = nil
	m.state.IsLoading = false

	if msg.err != nil {
		m.log.Warn("load tasks failed", "err", msg.err)
		m.all = nil
		m.state.Items = []model.Task{}
		m.setMessage(model.MessageLoadingError)
		m.emit()
		return
	}

	m.all = msg.tasks
	m.state.Items = model.FilterTasks(m.all, m.filter)
	// A successful load retires a previous loading error but keeps other messages.
	if m.state.UserMessage == model.MessageLoadingError {
		m.state.UserMessage = model.MessageNone
	}
	m.emit()
}

func (m *machine) showMessage(msg model.Message) {
	m.setMessage(msg)
	m.emit()
}

func (m *machine) setMessage(msg model.Message) {
	m.messageSeq++
	m.state.UserMessage = msg
	m.state.MessageID = m.messageSeq
}

func (m *machine) messageShown(id uint64) {
	if !m.state.HasMessage() || id != m.state.MessageID {
		return
	}
	m.state.UserMessage = model.MessageNone
	m.emit()
}

func (m *machine) emit() {
	m.publish(m.state)
}

func (m *machine) fetchCmd(ctx context.Context, cancel context.CancelFunc, gen uint64) tea.Cmd {
	return func() tea.Msg {
		defer cancel()
		if err := ctx.Err(); err != nil {
			return tasksLoadedMsg{gen: gen, err: err}
		}
		ctx, span := m.tracer.Start(ctx, "Repository.Tasks", trace.WithAttributes(
			attribute.Int64("refresh.generation", int64(gen)),
		))
		defer span.End()

		tasks, err := m.repo.Tasks(ctx)
		recordErr(span, err)
		span.SetAttributes(attribute.Int("tasks.count", len(tasks)))
		return tasksLoadedMsg{gen: gen, tasks: tasks, err: err}
	}
}

func (m *machine) setCompletionCmd(id string, completed bool) tea.Cmd {
	return func() tea.Msg {
		ctx, span := m.tracer.Start(m.ctx, "Repository.SetCompleted", trace.WithAttributes(
			attribute.String("task.id", id),
			attribute.Bool("task.completed", completed),
		))
		defer span.End()

		err := m.repo.SetCompleted(ctx, id, completed)
		recordErr(span, err)
		return completionSetMsg{taskID: id, completed: completed, err: err}
	}
}

func (m *machine) clearCompletedCmd() tea.Cmd {
	return func() tea.Msg {
		ctx, span := m.tracer.Start(m.ctx, "Repository.ClearCompleted")
		defer span.End()

		err := m.repo.ClearCompleted(ctx)
		recordErr(span, err)
		return completedClearedMsg{err: err}
	}
}

func (m *machine) saveFilterCmd(f model.Filter) tea.Cmd {
	return func() tea.Msg {
		ctx, span := m.tracer.Start(m.ctx, "FilterStore.SetFilter", trace.WithAttributes(
			attribute.String("filter", string(f)),
		))
		defer span.End()

		err := m.filters.SetFilter(ctx, m.filterKey, f)
		recordErr(span, err)
		return filterSavedMsg{filter: f, err: err}
	}
}

func recordErr(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
