// Package notification holds the application-shell notification state.
// State changes only through Reduce; Store serialises dispatches.
package notification

import (
	"time"
)

// DefaultCapacity bounds how many notifications are kept
const DefaultCapacity = 50

// Level is the severity of a notification
type Level string

const (
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// IsValid returns true if the level is known
func (l Level) IsValid() bool {
	return l == LevelInfo || l == LevelWarning || l == LevelError
}

// Notification is one message shown in the dashboard shell
type Notification struct {
	ID        string    `json:"id"`
	Level     Level     `json:"level"`
	Source    string    `json:"source"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// State is an immutable snapshot, newest notification first
type State struct {
	Items    []Notification `json:"items"`
	Capacity int            `json:"capacity"`
}

// NewState returns an empty state keeping at most capacity items
func NewState(capacity int) State {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return State{Items: []Notification{}, Capacity: capacity}
}

// Find returns the notification with id
func (s State) Find(id string) (Notification, bool) {
	for _, n := range s.Items {
		if n.ID == id {
			return n, true
		}
	}
	return Notification{}, false
}

// Len returns the number of notifications
func (s State) Len() int {
	return len(s.Items)
}

// ActionType identifies a state transition
type ActionType string

const (
	ActionPush    ActionType = "push"
	ActionDismiss ActionType = "dismiss"
	ActionClear   ActionType = "clear"
)

// Action is a request to change the state
type Action struct {
	Type         ActionType
	Notification Notification // Push
	ID           string       // Dismiss
}

// Push creates an action adding n
func Push(n Notification) Action {
	return Action{Type: ActionPush, Notification: n}
}

// Dismiss creates an action removing the notification with id
func Dismiss(id string) Action {
	return Action{Type: ActionDismiss, ID: id}
}

// Clear creates an action removing every notification
func Clear() Action {
	return Action{Type: ActionClear}
}

// Reduce returns the state that results from applying action to state.
// It never mutates state. Unknown actions and no-op dismissals return an equal state.
func Reduce(state State, action Action) State {
	if state.Capacity <= 0 {
		state.Capacity = DefaultCapacity
	}

	switch action.Type {
	case ActionPush:
		n := action.Notification
		items := make([]Notification, 0, min(len(state.Items)+1, state.Capacity))
		items = append(items, n)
		for _, existing := range state.Items {
			if len(items) == state.Capacity {
				break
			}
			if existing.ID == n.ID {
				continue
			}
			items = append(items, existing)
		}
		return State{Items: items, Capacity: state.Capacity}

	case ActionDismiss:
		items := make([]Notification, 0, len(state.Items))
		for _, existing := range state.Items {
			if existing.ID != action.ID {
				items = append(items, existing)
			}
		}
		return State{Items: items, Capacity: state.Capacity}

	case ActionClear:
		return NewState(state.Capacity)
	}

	return State{Items: append([]Notification{}, state.Items...), Capacity: state.Capacity}
}
