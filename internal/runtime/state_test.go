package runtime

import (
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/felixgeelhaar/hemv/internal/provider"
	"github.com/felixgeelhaar/hemv/internal/store"
)

func TestNewStateManager(t *testing.T) {
	sm := NewStateManager(nil)
	if sm == nil {
		t.Fatal("expected non-nil StateManager")
	}
	if sm.sessions == nil {
		t.Fatal("expected non-nil sessions map")
	}
}

func TestStateManager_InitSession(t *testing.T) {
	sm := NewStateManager(nil)
	state := sm.InitSession("test-session")

	if state == nil {
		t.Fatal("expected non-nil SessionState")
	}
	if state.SessionID != "test-session" {
		t.Errorf("expected session ID 'test-session', got %q", state.SessionID)
	}
	if state.Step != 0 {
		t.Errorf("expected step 0, got %d", state.Step)
	}
	if state.Status != StatusInitialized {
		t.Errorf("expected status 'initialized', got %q", state.Status)
	}
}

func TestStateManager_GetState(t *testing.T) {
	sm := NewStateManager(nil)
	sm.InitSession("sess-1")

	if sm.GetState("sess-1") == nil {
		t.Fatal("expected non-nil state")
	}
	if sm.GetState("nonexistent") != nil {
		t.Error("expected nil for nonexistent session")
	}
}

func TestStateManager_Counters(t *testing.T) {
	sm := NewStateManager(nil)
	sm.InitSession("sess-1")

	if step := sm.IncrementStep("sess-1"); step != 1 {
		t.Errorf("expected step 1, got %d", step)
	}
	if step := sm.IncrementStep("sess-1"); step != 2 {
		t.Errorf("expected step 2, got %d", step)
	}
	if n := sm.IncrementSearches("sess-1"); n != 1 {
		t.Errorf("expected 1 search, got %d", n)
	}
	if step := sm.IncrementStep("unknown"); step != 0 {
		t.Errorf("expected 0 for unknown session, got %d", step)
	}
}

func TestStateManager_TokenUsage(t *testing.T) {
	sm := NewStateManager(nil)
	sm.InitSession("sess-1")

	sm.AddTokenUsage("sess-1", 100, 50)
	sm.AddTokenUsage("sess-1", 200, 75)

	prompt, output := sm.TokenUsage("sess-1")
	if prompt != 300 {
		t.Errorf("expected 300 prompt tokens, got %d", prompt)
	}
	if output != 125 {
		t.Errorf("expected 125 output tokens, got %d", output)
	}
}

func TestStateManager_History(t *testing.T) {
	sm := NewStateManager(nil)
	sm.InitSession("sess-1")

	sm.AppendHistory("sess-1",
		provider.Message{Role: "user", Content: "hello"},
		provider.Message{Role: "assistant", Content: "hi"},
	)

	history := sm.GetHistory("sess-1")
	if len(history) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(history))
	}
	if history[1].Content != "hi" {
		t.Errorf("expected 'hi', got %q", history[1].Content)
	}
	if sm.HistoryLength("sess-1") != 2 {
		t.Errorf("expected history length 2, got %d", sm.HistoryLength("sess-1"))
	}
	if sm.GetHistory("unknown") != nil {
		t.Error("expected nil history for unknown session")
	}
}

func TestStateManager_GetHistoryReturnsACopy(t *testing.T) {
	sm := NewStateManager(nil)
	sm.InitSession("sess-1")
	sm.AppendHistory("sess-1", provider.Message{Role: "user", Content: "original"})

	history := sm.GetHistory("sess-1")
	history[0].Content = "modified"

	if sm.GetHistory("sess-1")[0].Content != "original" {
		t.Error("GetHistory should return a copy")
	}
}

func TestStateManager_Status(t *testing.T) {
	sm := NewStateManager(nil)
	sm.InitSession("sess-1")

	sm.SetStatus("sess-1", StatusRunning)
	if sm.GetStatus("sess-1") != StatusRunning {
		t.Errorf("expected status 'running', got %q", sm.GetStatus("sess-1"))
	}
	if sm.GetStatus("unknown") != "" {
		t.Error("expected empty status for unknown session")
	}
}

func TestStateManager_CleanupSession(t *testing.T) {
	sm := NewStateManager(nil)
	sm.InitSession("sess-1")
	sm.CleanupSession("sess-1")

	if sm.GetState("sess-1") != nil {
		t.Error("expected state to be removed")
	}
}

func TestStateManager_PersistSession(t *testing.T) {
	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "hemv.db"))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	defer s.Close()

	s.CreateSession(&store.Session{ID: "sess-1", CreatedAt: time.Now(), Status: StatusInitialized, Question: "q"})

	sm := NewStateManager(s)
	sm.InitSession("sess-1")
	sm.SetStatus("sess-1", StatusAnswered)
	if err := sm.PersistSession("sess-1", "42"); err != nil {
		t.Fatalf("PersistSession failed: %v", err)
	}

	got, _ := s.GetSession("sess-1")
	if got.Status != StatusAnswered || got.Answer != "42" {
		t.Errorf("expected answered session with answer 42, got %+v", got)
	}

	if err := sm.PersistSession("unknown", ""); err != nil {
		t.Errorf("expected no error for untracked session, got %v", err)
	}
}

func TestStateManager_ConcurrentAccess(t *testing.T) {
	sm := NewStateManager(nil)
	sm.InitSession("sess-1")

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sm.IncrementStep("sess-1")
			sm.AddTokenUsage("sess-1", 1, 1)
			sm.AppendHistory("sess-1", provider.Message{Role: "user"})
		}()
	}
	wg.Wait()

	if state := sm.GetState("sess-1"); state.Step != 50 {
		t.Errorf("expected 50 steps, got %d", state.Step)
	}
	if n := sm.HistoryLength("sess-1"); n != 50 {
		t.Errorf("expected 50 messages, got %d", n)
	}
}
