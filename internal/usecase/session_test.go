package usecase

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"arxiv-scholar/internal/domain"
)

func TestNewSessionHasULID(t *testing.T) {
	s := NewSession()
	assert.Len(t, s.ID, 26) // ULID canonical encoding
	assert.Empty(t, s.Messages())
}

func TestSessionAddMessage(t *testing.T) {
	s := NewSession()
	s.AddMessage(domain.Message{Role: domain.RoleUser, Content: "hi"})
	s.AddMessage(domain.Message{Role: domain.RoleAssistant, Content: "hello"})

	msgs := s.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, domain.RoleUser, msgs[0].Role)
	assert.False(t, msgs[0].Timestamp.IsZero())
}

func TestSessionMessagesReturnsCopy(t *testing.T) {
	s := NewSession()
	s.AddMessage(domain.Message{Role: domain.RoleUser, Content: "original"})

	msgs := s.Messages()
	msgs[0].Content = "mutated"

	assert.Equal(t, "original", s.Messages()[0].Content)
}

func TestSessionTruncate(t *testing.T) {
	s := NewSession()
	for i := 0; i < 10; i++ {
		s.AddMessage(domain.Message{Role: domain.RoleUser, Content: "m"})
	}
	s.Truncate(4)
	assert.Len(t, s.Messages(), 4)
}

func TestSessionManagerSaveAndReload(t *testing.T) {
	dir := t.TempDir()
	sm := NewSessionManager(dir)

	s := sm.Create()
	s.AddMessage(domain.Message{Role: domain.RoleUser, Content: "persist me"})
	require.NoError(t, sm.Save(s.ID))

	// A fresh manager should load the session from disk.
	sm2 := NewSessionManager(dir)
	loaded := sm2.GetOrCreate(s.ID)
	require.Len(t, loaded.Messages(), 1)
	assert.Equal(t, "persist me", loaded.Messages()[0].Content)
}

func TestSessionManagerGetOrCreateEmptyID(t *testing.T) {
	sm := NewSessionManager(t.TempDir())

	s := sm.GetOrCreate("")
	require.NotEmpty(t, s.ID)
	// The fresh session is registered under its own ID, so Save works.
	assert.NoError(t, sm.Save(s.ID))
}

func TestSessionManagerGetOrCreateAdoptsRequestedID(t *testing.T) {
	sm := NewSessionManager(t.TempDir())

	s := sm.GetOrCreate("my-session-1")
	assert.Equal(t, "my-session-1", s.ID)
	assert.Same(t, s, sm.GetOrCreate("my-session-1"))
}

func TestSessionManagerGetMissing(t *testing.T) {
	sm := NewSessionManager(t.TempDir())
	_, err := sm.Get("01ARZ3NDEKTSV4RRFFQ69G5FAV")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestSessionManagerDelete(t *testing.T) {
	dir := t.TempDir()
	sm := NewSessionManager(dir)

	s := sm.Create()
	require.NoError(t, sm.Save(s.ID))
	require.NoError(t, sm.Delete(s.ID))

	_, err := sm.Get(s.ID)
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	assert.NoFileExists(t, filepath.Join(dir, s.ID+".json"))
}

func TestValidateSessionIDRejectsUnsafe(t *testing.T) {
	sm := NewSessionManager(t.TempDir())

	for _, id := range []string{"", "a/b", `a\b`, "..", "a..b", "a\x00b", "./x"} {
		assert.Error(t, sm.validateSessionID(id), "id %q should be rejected", id)
	}
	assert.NoError(t, sm.validateSessionID("01ARZ3NDEKTSV4RRFFQ69G5FAV"))
}

func TestReapStaleSessions(t *testing.T) {
	sm := NewSessionManager(t.TempDir())

	fresh := sm.Create()
	stale := sm.Create()
	stale.mu.Lock()
	stale.UpdatedAt = time.Now().Add(-2 * time.Hour)
	stale.mu.Unlock()

	reaped := sm.ReapStaleSessions(time.Hour)
	assert.Equal(t, 1, reaped)

	_, err := sm.Get(fresh.ID)
	assert.NoError(t, err)
	_, err = sm.Get(stale.ID)
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}
