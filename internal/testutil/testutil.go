// Package testutil provides shared test helpers: temp vaults, history
// databases, and a scriptable generative backend.
package testutil

import (
	"context"
	"os"
	"sync"
	"testing"

	"github.com/starford/ansuz/internal/history"
	"github.com/starford/ansuz/internal/llm"
	"github.com/starford/ansuz/internal/storage"
)

// TestDB creates a temporary history database that is automatically
// cleaned up.
func TestDB(t *testing.T) *history.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "ansuz-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := history.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestVault creates a temporary vault directory with a storage.Provider.
func TestVault(t *testing.T) (string, storage.Provider) {
	t.Helper()
	vaultDir := t.TempDir()
	store, err := storage.NewFS(vaultDir)
	if err != nil {
		t.Fatal(err)
	}
	return vaultDir, store
}

// FakeBackend is a scriptable llm.Backend. Each call consumes the next
// scripted response; when the script runs out the last entry repeats.
type FakeBackend struct {
	mu        sync.Mutex
	Responses []FakeResponse
	Calls     []llm.Request
}

// FakeResponse is one scripted backend reply.
type FakeResponse struct {
	Text string
	Err  error
}

// Overflow is a convenience scripted overflow failure.
func Overflow() FakeResponse {
	return FakeResponse{Err: &llm.OverflowError{Message: "max_tokens too large"}}
}

// NewFakeBackend scripts a backend with the given responses.
func NewFakeBackend(responses ...FakeResponse) *FakeBackend {
	return &FakeBackend{Responses: responses}
}

// Complete implements llm.Backend.
func (f *FakeBackend) Complete(_ context.Context, req llm.Request) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls = append(f.Calls, req)
	if len(f.Responses) == 0 {
		return "", nil
	}
	i := len(f.Calls) - 1
	if i >= len(f.Responses) {
		i = len(f.Responses) - 1
	}
	r := f.Responses[i]
	return r.Text, r.Err
}

// Provider implements llm.Backend.
func (f *FakeBackend) Provider() string { return "ollama" }

// Model implements llm.Backend.
func (f *FakeBackend) Model() string { return "llama3.1" }

// CallCount returns how many calls the backend has received.
func (f *FakeBackend) CallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Calls)
}
