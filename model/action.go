package model

// Action is a request to change the task list state. The set of actions is closed.
type Action interface {
	isAction()
}

// SetFilter changes and persists the active filter.
type SetFilter struct {
	Filter Filter
}

// Refresh fetches all tasks from the repository.
type Refresh struct{}

// ClearCompletedTasks removes completed tasks from the repository.
type ClearCompletedTasks struct{}

// ShowEditResultMessage reports the outcome of the add/edit screens.
type ShowEditResultMessage struct {
	Result EditResult
}

// SetTaskCompletion marks a task complete or active.
type SetTaskCompletion struct {
	Task      Task
	Completed bool
}

// MessageShown acknowledges that the message with ID has been displayed.
type MessageShown struct {
	ID uint64
}

func (SetFilter) isAction()             {}
func (Refresh) isAction()               {}
func (ClearCompletedTasks) isAction()   {}
func (ShowEditResultMessage) isAction() {}
func (SetTaskCompletion) isAction()     {}
func (MessageShown) isAction()          {}

// ActionName returns a short name for logs and traces.
func ActionName(a Action) string {
	switch a.(type) {
	case SetFilter:
		return "set_filter"
	case Refresh:
		return "refresh"
	case ClearCompletedTasks:
		return "clear_completed"
	case ShowEditResultMessage:
		return "show_edit_result"
	case SetTaskCompletion:
		return "set_task_completion"
	case MessageShown:
		return "message_shown"
	default:
		return "unknown"
	}
}
