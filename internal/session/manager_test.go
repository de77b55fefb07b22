package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raphaelgruber/reqjourney-go/internal/extraction"
	"github.com/raphaelgruber/reqjourney-go/internal/service"
)

func newOrchestrator() *service.Orchestrator {
	return service.NewOrchestrator(&extraction.DemoClient{Steps: 1})
}

func TestManager_CreateGetDelete(t *testing.T) {
	m := NewManager(4, time.Hour, newOrchestrator)

	s := m.Create()
	require.NotEmpty(t, s.ID)
	require.NotNil(t, s.Orchestrator)

	got, err := m.Get(s.ID)
	require.NoError(t, err)
	assert.Same(t, s, got)

	require.NoError(t, m.Delete(s.ID))
	_, err = m.Get(s.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, m.Delete(s.ID), ErrNotFound)
}

func TestManager_SessionsAreIsolated(t *testing.T) {
	m := NewManager(4, time.Hour, newOrchestrator)
	a, b := m.Create(), m.Create()
	assert.NotSame(t, a.Orchestrator, b.Orchestrator)
	assert.NotEqual(t, a.ID, b.ID)
}

func TestManager_EvictsLeastRecentlyUsed(t *testing.T) {
	evicted := make(chan string, 4)
	m := NewManager(2, time.Hour, newOrchestrator, WithEvictHook(func(s *Session) { evicted <- s.ID }))

	first := m.Create()
	second := m.Create()
	_, err := m.Get(first.ID)
	require.NoError(t, err)
	m.Create()

	select {
	case id := <-evicted:
		assert.Equal(t, second.ID, id)
	case <-time.After(time.Second):
		t.Fatal("no eviction")
	}
	assert.Equal(t, 2, m.Len())
	_, err = m.Get(first.ID)
	assert.NoError(t, err)
}

func TestManager_Expiry(t *testing.T) {
	m := NewManager(4, 20*time.Millisecond, newOrchestrator)
	s := m.Create()

	time.Sleep(60 * time.Millisecond)
	_, err := m.Get(s.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}
