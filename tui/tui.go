package tui

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"tasklist/flow"
	"tasklist/model"
)

// Processor is the part of app.Processor the screen drives.
type Processor interface {
	Process(a model.Action)
	Subscribe() *flow.Subscription[model.UiState]
}

// TaskAdder stores tasks created from the add prompt.
type TaskAdder interface {
	Add(ctx context.Context, tasks ...model.Task) error
}

type uiMode int

const (
	modeNormal uiMode = iota
	modeAddTask
	modeConfirmClear
)

type stateMsg model.UiState

type streamClosedMsg struct{}

type taskAddedMsg struct {
	task model.Task
	err  error
}

const addTimeout = 5 * time.Second

type Model struct {
	proc  Processor
	adder TaskAdder
	sub   *flow.Subscription[model.UiState]

	state  model.UiState
	mode   uiMode
	cursor int
	input  string

	showHelp  bool
	status    string
	statusErr bool

	width  int
	height int
}

func NewModel(proc Processor, adder TaskAdder) *Model {
	return &Model{
		proc:   proc,
		adder:  adder,
		sub:    proc.Subscribe(),
		state:  model.NewUiState(model.FilterAll),
		status: "Ready",
	}
}

func (m *Model) Init() tea.Cmd {
	m.proc.Process(model.Refresh{})
	return waitForState(m.sub)
}

// waitForState delivers the next state published by the processor.
func waitForState(sub *flow.Subscription[model.UiState]) tea.Cmd {
	return func() tea.Msg {
		s, ok := <-sub.C()
		if !ok {
			return streamClosedMsg{}
		}
		return stateMsg(s)
	}
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	case stateMsg:
		m.applyState(model.UiState(msg))
		return m, waitForState(m.sub)
	case streamClosedMsg:
		return m, tea.Quit
	case taskAddedMsg:
		if msg.err != nil {
			m.setStatus("Could not add task: "+msg.err.Error(), true)
			break
		}
		m.proc.Process(model.ShowEditResultMessage{Result: model.AddEditResultOK})
		m.proc.Process(model.Refresh{})
	case tea.KeyMsg:
		switch m.mode {
		case modeAddTask:
			return m, m.updateInputMode(msg)
		case modeConfirmClear:
			m.updateConfirmMode(msg)
		default:
			if quit := m.updateNormalMode(msg); quit {
				m.sub.Cancel()
				return m, tea.Quit
			}
		}
	}
	return m, nil
}

func (m *Model) applyState(s model.UiState) {
	m.state = s
	if len(s.Items) == 0 {
		m.cursor = 0
	} else {
		m.cursor = clamp(m.cursor, 0, len(s.Items)-1)
	}
	if !s.HasMessage() {
		return
	}
	isErr := s.UserMessage == model.MessageLoadingError || s.UserMessage == model.MessageUpdateError
	m.setStatus(s.UserMessage.String(), isErr)
	m.proc.Process(model.MessageShown{ID: s.MessageID})
}

func (m *Model) updateNormalMode(msg tea.KeyMsg) bool {
	switch msg.String() {
	case "ctrl+c", "q":
		return true
	case "j", "down":
		m.moveCursor(1)
	case "k", "up":
		m.moveCursor(-1)
	case "r":
		m.proc.Process(model.Refresh{})
	case "f":
		next := m.state.FilterInfo.Filter.Next()
		m.proc.Process(model.SetFilter{Filter: next})
		m.setStatus("Showing "+strings.ToLower(model.InfoFor(next).CurrentFilteringLabel), false)
	case "x", "enter":
		m.toggleSelected()
	case "a":
		m.mode = modeAddTask
		m.input = ""
		m.setStatus("New task: type a title, Enter saves, Esc cancels", false)
	case "C":
		m.mode = modeConfirmClear
	case "?":
		m.showHelp = !m.showHelp
	case "esc":
		m.showHelp = false
	}
	return false
}

func (m *Model) updateInputMode(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "ctrl+c", "esc":
		m.mode = modeNormal
		m.input = ""
		m.setStatus("Cancelled", false)
		return nil
	case "enter":
		return m.applyInput()
	}

	switch msg.Type {
	case tea.KeyBackspace, tea.KeyCtrlH:
		m.input = trimLastRune(m.input)
	case tea.KeySpace:
		m.input += " "
	case tea.KeyRunes:
		m.input += string(msg.Runes)
	}
	return nil
}

func (m *Model) updateConfirmMode(msg tea.KeyMsg) {
	switch strings.ToLower(msg.String()) {
	case "y":
		m.proc.Process(model.ClearCompletedTasks{})
		m.proc.Process(model.Refresh{})
	case "n", "esc", "enter":
		m.setStatus("Cancelled", false)
	default:
		return
	}
	m.mode = modeNormal
}

func (m *Model) applyInput() tea.Cmd {
	text := strings.TrimSpace(m.input)
	if text == "" {
		m.setStatus("Title cannot be empty", true)
		return nil
	}
	m.mode = modeNormal
	m.input = ""
	return addTaskCmd(m.adder, model.NewTask(text, ""))
}

func addTaskCmd(adder TaskAdder, task model.Task) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), addTimeout)
		defer cancel()
		return taskAddedMsg{task: task, err: adder.Add(ctx, task)}
	}
}

func (m *Model) toggleSelected() {
	task, ok := m.selectedTask()
	if !ok {
		return
	}
	m.proc.Process(model.SetTaskCompletion{Task: task, Completed: !task.Completed})
	m.proc.Process(model.Refresh{})
}

func (m *Model) moveCursor(delta int) {
	if len(m.state.Items) == 0 {
		return
	}
	m.cursor = clamp(m.cursor+delta, 0, len(m.state.Items)-1)
}

func (m *Model) selectedTask() (model.Task, bool) {
	if m.cursor < 0 || m.cursor >= len(m.state.Items) {
		return model.Task{}, false
	}
	return m.state.Items[m.cursor], true
}

func (m *Model) setStatus(text string, isErr bool) {
	m.status = text
	m.statusErr = isErr
}

func (m *Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "loading..."
	}

	viewW := m.viewportWidth()
	title := lipgloss.NewStyle().Bold(true).Render("tasks")
	summary := fmt.Sprintf("%d shown", len(m.state.Items))
	if m.state.IsLoading {
		summary += " • refreshing"
	}
	header := lipgloss.JoinHorizontal(lipgloss.Left,
		title,
		lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Render("  "+summary),
	)

	panelH := m.height - 5
	if panelH < 6 {
		panelH = 6
	}
	frameColor := lipgloss.Color("240")
	if m.mode == modeNormal {
		frameColor = lipgloss.Color("39")
	}
	body := m.renderTasksPanel(viewW-2, panelH-2)
	if m.showHelp {
		body = lipgloss.Place(viewW-2, panelH-2, lipgloss.Center, lipgloss.Center, m.renderHelpOverlay(clamp(viewW-8, 30, 72)))
	}
	panel := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(frameColor).
		Width(viewW - 2).
		Height(panelH - 2).
		Render(body)

	statusStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("70"))
	if m.statusErr {
		statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	}
	parts := []string{header, panel, m.renderFooter(m.status, statusStyle, "? keys")}

	promptLine := ""
	switch m.mode {
	case modeAddTask:
		promptLine = "New task: " + m.input + "▌"
	case modeConfirmClear:
		promptLine = "Clear all completed tasks? [y/N]"
	}
	if promptLine != "" {
		parts = append(parts, lipgloss.NewStyle().Foreground(lipgloss.Color("220")).Width(viewW).Render(promptLine))
	}
	return strings.Join(parts, "\n")
}

func (m *Model) viewportWidth() int {
	if m.width <= 0 {
		return 1
	}
	// Leave the last column free; some terminals wrap on it.
	if m.width > 1 {
		return m.width - 1
	}
	return m.width
}

func (m *Model) renderTasksPanel(width, height int) string {
	info := m.state.FilterInfo
	lines := make([]string, 0, len(m.state.Items)+2)
	lines = append(lines, lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("229")).Render(info.CurrentFilteringLabel))

	muted := lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	switch {
	case m.state.IsLoading && len(m.state.Items) == 0:
		lines = append(lines, muted.Render("Loading tasks..."))
	case m.state.ShowNoTasks():
		lines = append(lines, "", muted.Render(iconGlyph(info.NoTasksIcon)+"  "+info.NoTasksLabel))
	default:
		for i, t := range m.state.Items {
			lines = append(lines, m.renderTaskLine(i, t, width))
		}
	}

	return lipgloss.NewStyle().Width(width).Height(height).Render(strings.Join(lines, "\n"))
}

func (m *Model) renderTaskLine(i int, t model.Task, width int) string {
	cursor := " "
	if i == m.cursor {
		cursor = "▸"
	}
	check := "[ ]"
	if t.Completed {
		check = "[x]"
	}
	style := lipgloss.NewStyle()
	if t.Completed {
		style = style.Faint(true)
	}
	if i == m.cursor {
		style = style.Bold(true).Foreground(lipgloss.Color("229"))
	}
	return style.Render(truncateRunes(fmt.Sprintf("%s %s %s", cursor, check, t.TitleForList()), width))
}

func (m *Model) renderFooter(statusText string, statusStyle lipgloss.Style, rightHint string) string {
	left := strings.TrimSpace(statusText)
	right := strings.TrimSpace(rightHint)
	if left == "" {
		left = "Ready"
	}

	leftW := utf8.RuneCountInString(left)
	rightW := utf8.RuneCountInString(right)
	width := m.viewportWidth()

	if leftW+rightW+1 > width {
		maxLeft := width - rightW - 1
		if maxLeft < 8 {
			maxLeft = 8
		}
		left = truncateRunes(left, maxLeft)
		leftW = utf8.RuneCountInString(left)
	}

	padding := width - leftW - rightW
	if padding < 1 {
		padding = 1
	}

	rightStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	line := statusStyle.Render(left) + strings.Repeat(" ", padding) + rightStyle.Render(right)
	return lipgloss.NewStyle().Width(width).Render(line)
}

func (m *Model) renderHelpOverlay(width int) string {
	title := lipgloss.NewStyle().Bold(true).Render("Keys")
	line := lipgloss.NewStyle().Foreground(lipgloss.Color("252"))

	rows := []string{
		title,
		"",
		line.Render("j/k move • x toggle done • a add"),
		line.Render("f cycle filter • r refresh • C clear completed"),
		line.Render("? close help • q quit"),
	}
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("244")).
		Padding(1, 2).
		Width(width).
		Render(strings.Join(rows, "\n"))
}

func iconGlyph(icon model.Icon) string {
	switch icon {
	case model.IconCheck:
		return "✔"
	case model.IconVerified:
		return "★"
	default:
		return "☐"
	}
}

func truncateRunes(s string, max int) string {
	if max <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	if max <= 1 {
		return "…"
	}
	r := []rune(s)
	return string(r[:max-1]) + "…"
}

func clamp(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

func trimLastRune(s string) string {
	if s == "" {
		return s
	}
	_, size := utf8.DecodeLastRuneInString(s)
	return s[:len(s)-size]
}
