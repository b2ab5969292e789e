package session

import (
	"path/filepath"
	"testing"

	"github.com/immodoc/immodoc/pkg/api"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "session.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestBaseURLFallback(t *testing.T) {
	store := openTestStore(t)

	if got := store.BaseURL("http://localhost:8000/"); got != "http://localhost:8000" {
		t.Errorf("BaseURL fallback = %q", got)
	}
}

func TestBaseURLPersistAndTrim(t *testing.T) {
	store := openTestStore(t)

	if err := store.SetBaseURL("https://api.example.com///"); err != nil {
		t.Fatalf("SetBaseURL() error = %v", err)
	}
	if got := store.BaseURL("http://fallback"); got != "https://api.example.com" {
		t.Errorf("BaseURL = %q", got)
	}

	// A change replaces the previous value
	if err := store.SetBaseURL("http://other:9000"); err != nil {
		t.Fatal(err)
	}
	if got := store.BaseURL(""); got != "http://other:9000" {
		t.Errorf("BaseURL after change = %q", got)
	}
}

func TestChatHistoryRoundTrip(t *testing.T) {
	store := openTestStore(t)

	score := 0.8
	history := []ChatMessage{
		{ID: "m1", Role: "user", Text: "When is the rent due?"},
		{
			ID:   "m2",
			DBID: 17,
			Role: "assistant",
			Text: "On the 3rd.",
			Sources: []api.Source{
				{DocumentID: 1, ChunkID: 4, Score: &score},
			},
			SourceDetails: map[string]string{"1:4": "§3 Die Miete ist..."},
		},
	}
	if err := store.SaveChatHistory(history); err != nil {
		t.Fatalf("SaveChatHistory() error = %v", err)
	}

	got := store.ChatHistory()
	if len(got) != 2 {
		t.Fatalf("history length = %d, want 2", len(got))
	}
	if got[1].DBID != 17 || got[1].Role != "assistant" {
		t.Errorf("assistant message = %+v", got[1])
	}
	if got[1].SourceDetails["1:4"] == "" {
		t.Error("source details not round-tripped")
	}
	if len(got[1].Sources) != 1 || got[1].Sources[0].Key() != "1:4" {
		t.Errorf("sources = %+v", got[1].Sources)
	}
}

func TestChatHistoryCorruptedContentResets(t *testing.T) {
	store := openTestStore(t)

	// Simulate a previous process writing garbage under the history key
	if err := store.setSetting(KeyChatHistory, "not json at all {"); err != nil {
		t.Fatal(err)
	}
	if got := store.ChatHistory(); got != nil {
		t.Errorf("corrupted history should reset to empty, got %+v", got)
	}

	// Non-array JSON is also discarded
	if err := store.setSetting(KeyChatHistory, `{"unexpected": "object"}`); err != nil {
		t.Fatal(err)
	}
	if got := store.ChatHistory(); got != nil {
		t.Errorf("non-array history should reset to empty, got %+v", got)
	}
}

func TestClearChatHistory(t *testing.T) {
	store := openTestStore(t)

	if err := store.SaveChatHistory([]ChatMessage{{ID: "m1", Role: "user", Text: "hi"}}); err != nil {
		t.Fatal(err)
	}
	if err := store.ClearChatHistory(); err != nil {
		t.Fatalf("ClearChatHistory() error = %v", err)
	}
	if got := store.ChatHistory(); len(got) != 0 {
		t.Errorf("history after clear = %+v", got)
	}
}

func TestStoreSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.db")

	store, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := store.SetBaseURL("http://persisted:8000"); err != nil {
		t.Fatal(err)
	}
	store.Close()

	reopened, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer reopened.Close()
	if got := reopened.BaseURL(""); got != "http://persisted:8000" {
		t.Errorf("BaseURL after reopen = %q", got)
	}
}

func TestClosedStore(t *testing.T) {
	var store *Store
	if err := store.SetBaseURL("x"); err == nil {
		t.Error("nil store should refuse writes")
	}
	if got := store.BaseURL("http://fallback"); got != "http://fallback" {
		t.Errorf("nil store BaseURL = %q", got)
	}
	if got := store.ChatHistory(); got != nil {
		t.Errorf("nil store history = %+v", got)
	}
}
