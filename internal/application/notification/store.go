package notification

import (
	"fmt"
	"sync"
	"time"

	"github.com/bizdash/backend/internal/domain/shared"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Store owns the current State and applies actions one at a time
type Store struct {
	mu     sync.RWMutex
	state  State
	now    func() time.Time
	logger *zap.Logger
}

// NewStore creates a store keeping at most capacity notifications
func NewStore(capacity int, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		state:  NewState(capacity),
		now:    func() time.Time { return time.Now().UTC() },
		logger: logger,
	}
}

// Dispatch applies action and returns the new snapshot
func (s *Store) Dispatch(action Action) State {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = Reduce(s.state, action)
	return s.snapshot()
}

// State returns the current snapshot
func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot()
}

// Notify pushes a new notification and returns it
func (s *Store) Notify(level Level, source, title, message string) Notification {
	if !level.IsValid() {
		level = LevelInfo
	}
	n := Notification{
		ID:        uuid.NewString(),
		Level:     level,
		Source:    source,
		Title:     title,
		Message:   message,
		CreatedAt: s.now(),
	}
	s.Dispatch(Push(n))
	s.logger.Debug("Notification pushed",
		zap.String("id", n.ID),
		zap.String("level", string(level)),
		zap.String("source", source))
	return n
}

// Dismiss removes the notification with id, or returns NOT_FOUND
func (s *Store) Dismiss(id string) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.state.Find(id); !ok {
		return s.snapshot(), shared.NewDomainError(shared.CodeNotFound, fmt.Sprintf("notification %s not found", id))
	}
	s.state = Reduce(s.state, Dismiss(id))
	return s.snapshot(), nil
}

// Clear removes every notification
func (s *Store) Clear() State {
	return s.Dispatch(Clear())
}

// snapshot copies the items so callers cannot alias store memory. Callers hold mu.
func (s *Store) snapshot() State {
	return State{Items: append([]Notification{}, s.state.Items...), Capacity: s.state.Capacity}
}
