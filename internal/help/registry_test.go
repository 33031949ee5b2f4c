package help

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tutorhall/livehelp/internal/logging"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	return NewRegistry(30*time.Minute, logging.New(nil, "silent"))
}

func TestRegistryAddGet(t *testing.T) {
	r := newTestRegistry(t)
	s := newTestSession(t)

	_, ok := r.Get(s.ID())
	assert.False(t, ok)

	r.Add(s)
	got, ok := r.Get(s.ID())
	require.True(t, ok)
	assert.Same(t, s, got)
	assert.Equal(t, 1, r.Count())
}

func TestRegistryAddOverwritesOnCollision(t *testing.T) {
	r := newTestRegistry(t)
	first := NewSession("ABCD1234ABCD1234", student, logging.New(nil, "silent"))
	second := NewSession("ABCD1234ABCD1234", tutor, logging.New(nil, "silent"))

	r.Add(first)
	r.Add(second)

	got, ok := r.Get("ABCD1234ABCD1234")
	require.True(t, ok)
	assert.Same(t, second, got)
	assert.Equal(t, 1, r.Count())
}

func TestRegistryRemoveMatchesInstance(t *testing.T) {
	r := newTestRegistry(t)
	stale := NewSession("ABCD1234ABCD1234", student, logging.New(nil, "silent"))
	current := NewSession("ABCD1234ABCD1234", student, logging.New(nil, "silent"))

	r.Add(stale)
	r.Add(current)

	// A holder of the overwritten instance cannot evict or close its
	// successor.
	r.Remove(stale)
	got, ok := r.Get("ABCD1234ABCD1234")
	require.True(t, ok)
	assert.Same(t, current, got)
	assert.False(t, current.Closed())

	r.Remove(current)
	_, ok = r.Get("ABCD1234ABCD1234")
	assert.False(t, ok)

	r.Remove(current) // already gone, no-op
}

func TestRegistryGetByAcceptingStaff(t *testing.T) {
	r := newTestRegistry(t)
	s := newTestSession(t)
	r.Add(s)

	_, ok := r.GetByAcceptingStaff(tutor.ID)
	assert.False(t, ok)

	s.SetAcceptingStaff(tutor)
	got, ok := r.GetByAcceptingStaff(tutor.ID)
	require.True(t, ok)
	assert.Same(t, s, got)
}

func TestRegistrySweepEvictsIdleOnly(t *testing.T) {
	r := newTestRegistry(t)
	idle := newTestSession(t)
	active := newTestSession(t)
	r.Add(idle)
	r.Add(active)

	// Both sessions were touched just now. Sweeping 31 minutes in the
	// future crosses the 30-minute threshold for both, so pin the active
	// session's timestamp to that future point first.
	now := time.Now().Add(31 * time.Minute)
	active.mu.Lock()
	active.lastActivity = now
	active.mu.Unlock()

	evicted := r.Sweep(now)
	assert.Equal(t, 1, evicted)

	_, ok := r.Get(idle.ID())
	assert.False(t, ok, "idle session must be evicted")
	_, ok = r.Get(active.ID())
	assert.True(t, ok, "recently active session must survive")

	assert.True(t, idle.Closed(), "evicted session stops serving")
	assert.False(t, active.Closed())
}

func TestRegistryRemoveClosesSession(t *testing.T) {
	r := newTestRegistry(t)
	s := newTestSession(t)
	sub := &fakeSubscriber{identity: student}
	s.Attach(sub)
	r.Add(s)

	r.Remove(s)

	assert.True(t, s.Closed())
	assert.Equal(t, 1, sub.closedNotifications())
	assert.ErrorIs(t, s.AddChatPost(post("p1", "too late")), ErrSessionClosed)
	assert.Equal(t, 0, s.AttachedCount())
}

func TestRegistrySweepEmptyAndFresh(t *testing.T) {
	r := newTestRegistry(t)
	assert.Zero(t, r.Sweep(time.Now()))

	s := newTestSession(t)
	r.Add(s)
	assert.Zero(t, r.Sweep(time.Now()), "fresh session is not idle")
	assert.Equal(t, 1, r.Count())
}

func TestRegistryAll(t *testing.T) {
	r := newTestRegistry(t)
	for i := 0; i < 3; i++ {
		r.Add(newTestSession(t))
	}

	all := r.All()
	assert.Len(t, all, 3)
}

func TestRegistryConcurrentAccess(t *testing.T) {
	r := newTestRegistry(t)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s := NewSession(fmt.Sprintf("S%015d", i), student, logging.New(nil, "silent"))
			r.Add(s)
			r.Get(s.ID())
			r.Sweep(time.Now())
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 10, r.Count())
}
