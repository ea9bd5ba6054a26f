package model

// Message is a one-shot user message code. The zero value means no message.
type Message int

const (
	MessageNone Message = iota
	MessageTaskSaved
	MessageTaskAdded
	MessageTaskDeleted
	MessageMarkedComplete
	MessageMarkedActive
	MessageCompletedCleared
	MessageLoadingError
	MessageUpdateError
)

var messageText = map[Message]string{
	MessageTaskSaved:        "TO-DO saved",
	MessageTaskAdded:        "TO-DO added",
	MessageTaskDeleted:      "Task was deleted",
	MessageMarkedComplete:   "Task marked complete",
	MessageMarkedActive:     "Task marked active",
	MessageCompletedCleared: "Completed tasks cleared",
	MessageLoadingError:     "Error while loading tasks",
	MessageUpdateError:      "Error while saving changes",
}

func (m Message) String() string {
	return messageText[m]
}

// EditResult is the result code reported by the add/edit/delete screens.
type EditResult int

// Codes returned by the edit screens.
const (
	EditResultOK    EditResult = 2
	DeleteResultOK  EditResult = 3
	AddEditResultOK EditResult = 4
)

// MessageFor maps an edit result to its message. ok is false for unknown codes.
func MessageFor(result EditResult) (Message, bool) {
	switch result {
	case EditResultOK:
		return MessageTaskSaved, true
	case AddEditResultOK:
		return MessageTaskAdded, true
	case DeleteResultOK:
		return MessageTaskDeleted, true
	default:
		return MessageNone, false
	}
}

// Icon selects the illustration shown when the list is empty.
type Icon string

const (
	IconAssignment Icon = "assignment_turned_in"
	IconCheck      Icon = "check_circle"
	IconVerified   Icon = "verified_user"
)

// FilterInfo holds the display strings derived from the active filter.
type FilterInfo struct {
	Filter                Filter
	CurrentFilteringLabel string
	NoTasksLabel          string
	NoTasksIcon           Icon
}

// InfoFor returns the display strings for f.
func InfoFor(f Filter) FilterInfo {
	switch f {
	case FilterActive:
		return FilterInfo{Filter: f, CurrentFilteringLabel: "Active Tasks", NoTasksLabel: "You have no active tasks!", NoTasksIcon: IconCheck}
	case FilterCompleted:
		return FilterInfo{Filter: f, CurrentFilteringLabel: "Completed Tasks", NoTasksLabel: "You have no completed tasks!", NoTasksIcon: IconVerified}
	default:
		return FilterInfo{Filter: FilterAll, CurrentFilteringLabel: "All Tasks", NoTasksLabel: "You have no tasks!", NoTasksIcon: IconAssignment}
	}
}

// UiState is an immutable snapshot of the task list screen.
// Items must not be modified by consumers.
type UiState struct {
	Items       []Task
	IsLoading   bool
	UserMessage Message
	// MessageID identifies the current UserMessage; acknowledge it with MessageShown.
	MessageID  uint64
	FilterInfo FilterInfo
}

// NewUiState returns the initial state for filter f.
func NewUiState(f Filter) UiState {
	return UiState{Items: []Task{}, FilterInfo: InfoFor(f)}
}

func (s UiState) HasMessage() bool {
	return s.UserMessage != MessageNone
}

// ShowNoTasks reports whether the empty-list illustration should be displayed.
func (s UiState) ShowNoTasks() bool {
	return !s.IsLoading && len(s.Items) == 0
}
