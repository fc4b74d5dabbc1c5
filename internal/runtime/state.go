package runtime

import (
	"sync"
	"time"

	"github.com/felixgeelhaar/hemv/internal/provider"
	"github.com/felixgeelhaar/hemv/internal/store"
)

// Session statuses.
const (
	StatusInitialized = "initialized"
	StatusRunning     = "running"
	StatusAnswered    = "answered"
	StatusHalted      = "halted"
	StatusFailed      = "failed"
)

// SessionState represents the current state of a session execution.
type SessionState struct {
	SessionID     string
	Step          int
	PromptTokens  int
	OutputTokens  int
	Searches      int
	History       []provider.Message
	Status        string
	StartedAt     time.Time
	LastUpdatedAt time.Time
}

// StateManager handles session state tracking and persistence.
// It provides thread-safe access to session state and manages
// the lifecycle of session data.
type StateManager struct {
	mu       sync.RWMutex
	store    store.Storage
	sessions map[string]*SessionState
}

// NewStateManager creates a new state manager.
func NewStateManager(s store.Storage) *StateManager {
	return &StateManager{
		store:    s,
		sessions: make(map[string]*SessionState),
	}
}

// InitSession initializes a new session state.
func (sm *StateManager) InitSession(sessionID string) *SessionState {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	now := time.Now()
	state := &SessionState{
		SessionID:     sessionID,
		History:       make([]provider.Message, 0),
		Status:        StatusInitialized,
		StartedAt:     now,
		LastUpdatedAt: now,
	}

	sm.sessions[sessionID] = state
	return state
}

// GetState returns the current state for a session.
func (sm *StateManager) GetState(sessionID string) *SessionState {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.sessions[sessionID]
}

func (sm *StateManager) update(sessionID string, fn func(*SessionState)) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if state, ok := sm.sessions[sessionID]; ok {
		fn(state)
		state.LastUpdatedAt = time.Now()
	}
}

// IncrementStep increments the step counter and returns the new value.
func (sm *StateManager) IncrementStep(sessionID string) int {
	var step int
	sm.update(sessionID, func(s *SessionState) {
		s.Step++
		step = s.Step
	})
	return step
}

// IncrementSearches counts a semantic search and returns the new total.
func (sm *StateManager) IncrementSearches(sessionID string) int {
	var n int
	sm.update(sessionID, func(s *SessionState) {
		s.Searches++
		n = s.Searches
	})
	return n
}

// AddTokenUsage adds token usage to the session totals.
func (sm *StateManager) AddTokenUsage(sessionID string, promptTokens, outputTokens int) {
	sm.update(sessionID, func(s *SessionState) {
		s.PromptTokens += promptTokens
		s.OutputTokens += outputTokens
	})
}

// TokenUsage returns the current token usage for a session.
func (sm *StateManager) TokenUsage(sessionID string) (promptTokens, outputTokens int) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if state, ok := sm.sessions[sessionID]; ok {
		return state.PromptTokens, state.OutputTokens
	}
	return 0, 0
}

// AppendHistory adds messages to the session history.
func (sm *StateManager) AppendHistory(sessionID string, msgs ...provider.Message) {
	sm.update(sessionID, func(s *SessionState) {
		s.History = append(s.History, msgs...)
	})
}

// GetHistory returns a copy of the session history.
func (sm *StateManager) GetHistory(sessionID string) []provider.Message {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if state, ok := sm.sessions[sessionID]; ok {
		history := make([]provider.Message, len(state.History))
		copy(history, state.History)
		return history
	}
	return nil
}

// SetStatus updates the session status.
func (sm *StateManager) SetStatus(sessionID, status string) {
	sm.update(sessionID, func(s *SessionState) {
		s.Status = status
	})
}

// GetStatus returns the current session status.
func (sm *StateManager) GetStatus(sessionID string) string {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if state, ok := sm.sessions[sessionID]; ok {
		return state.Status
	}
	return ""
}

// PersistSession saves the session state, and the answer when there is
// one, to the store.
func (sm *StateManager) PersistSession(sessionID, answer string) error {
	sm.mu.RLock()
	state, ok := sm.sessions[sessionID]
	var status string
	var updated time.Time
	if ok {
		status, updated = state.Status, state.LastUpdatedAt
	}
	sm.mu.RUnlock()

	if !ok || sm.store == nil {
		return nil
	}

	session, err := sm.store.GetSession(sessionID)
	if err != nil {
		return err
	}

	session.Status = status
	session.UpdatedAt = updated
	if answer != "" {
		session.Answer = answer
	}

	return sm.store.UpdateSession(session)
}

// CleanupSession removes the session state from memory.
func (sm *StateManager) CleanupSession(sessionID string) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	delete(sm.sessions, sessionID)
}

// HistoryLength returns the number of messages in the session history.
func (sm *StateManager) HistoryLength(sessionID string) int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if state, ok := sm.sessions[sessionID]; ok {
		return len(state.History)
	}
	return 0
}
