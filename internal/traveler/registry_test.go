package traveler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holocons/waypoints/internal/dispatch"
	"github.com/holocons/waypoints/internal/world"
)

type fakeTimer struct {
	fn      func()
	repeat  bool
	stopped bool
}

func (t *fakeTimer) Stop() { t.stopped = true }

// manualScheduler fires timers only when told to.
type manualScheduler struct {
	timers []*fakeTimer
}

func (s *manualScheduler) Every(d time.Duration, fn func()) dispatch.Timer {
	t := &fakeTimer{fn: fn, repeat: true}
	s.timers = append(s.timers, t)
	return t
}

func (s *manualScheduler) After(d time.Duration, fn func()) dispatch.Timer {
	t := &fakeTimer{fn: fn}
	s.timers = append(s.timers, t)
	return t
}

func (s *manualScheduler) fire() {
	for _, t := range s.timers {
		if t.stopped {
			continue
		}
		if !t.repeat {
			t.stopped = true
		}
		t.fn()
	}
}

func (s *manualScheduler) running() int {
	n := 0
	for _, t := range s.timers {
		if !t.stopped && t.repeat {
			n++
		}
	}
	return n
}

type presence []uuid.UUID

func (p presence) Online() []uuid.UUID { return p }

type failingStore struct{ err error }

func (s failingStore) Load(context.Context) (map[string]Record, error) { return nil, s.err }
func (s failingStore) Save(context.Context, map[string]Record) error  { return s.err }

var settings = Settings{
	StartingTokens: 1,
	MaxTokens:      3,
	RegenInterval:  time.Minute,
	RegenAmount:    1,
}

func newRegistry(store Store, online ...uuid.UUID) (*Registry, *manualScheduler) {
	sched := &manualScheduler{}
	return NewRegistry(settings, store, sched, presence(online), zerolog.Nop()), sched
}

func TestGetOrCreateDefaults(t *testing.T) {
	reg, _ := newRegistry(NewMemoryStore())
	user := uuid.New()

	tr := reg.GetOrCreate(user)
	assert.Equal(t, 1, tr.Tokens())
	_, ok := tr.Home()
	assert.False(t, ok)
	_, ok = tr.Camp()
	assert.False(t, ok)
	assert.Empty(t, tr.Waypoints())
	assert.Same(t, tr, reg.GetOrCreate(user))
}

func TestTokensStayWithinBounds(t *testing.T) {
	reg, _ := newRegistry(NewMemoryStore())
	user := uuid.New()
	tr := reg.GetOrCreate(user)

	for i := 0; i < 10; i++ {
		reg.Refund(user)
	}
	assert.Equal(t, settings.MaxTokens, tr.Tokens())

	for i := 0; i < 10; i++ {
		tr.Spend()
	}
	assert.Equal(t, 0, tr.Tokens())
	assert.False(t, tr.Spend())

	tr.AddTokens(-5, settings.MaxTokens)
	assert.Equal(t, 0, tr.Tokens())
}

func TestRegisterTaskReplacesPrevious(t *testing.T) {
	reg, _ := newRegistry(NewMemoryStore())
	user := uuid.New()
	first := NewTask(ModeAddPoint)
	second := NewTask(ModeDelete)

	reg.RegisterTask(user, first)
	reg.RegisterTask(user, second)

	assert.True(t, first.Cancelled())
	_, ok := reg.TaskOf(user, ModeAddPoint)
	assert.False(t, ok)
	got, ok := reg.TaskOf(user, ModeDelete)
	require.True(t, ok)
	assert.Same(t, second, got)

	reg.UnregisterTask(user)
	assert.True(t, second.Cancelled())
	_, ok = reg.Task(user)
	assert.False(t, ok)
}

func TestTaskExpires(t *testing.T) {
	sched := &manualScheduler{}
	s := settings
	s.TaskTimeout = time.Minute
	reg := NewRegistry(s, NewMemoryStore(), sched, presence(nil), zerolog.Nop())
	user := uuid.New()

	reg.RegisterTask(user, NewCreateTask("Bridge"))
	got, ok := reg.TaskOf(user, ModeCreate)
	require.True(t, ok)
	assert.Equal(t, "Bridge", got.Name)

	sched.fire()
	_, ok = reg.Task(user)
	assert.False(t, ok)
}

func TestReplacedTaskExpiryDoesNotCancelSuccessor(t *testing.T) {
	sched := &manualScheduler{}
	s := settings
	s.TaskTimeout = time.Minute
	reg := NewRegistry(s, NewMemoryStore(), sched, presence(nil), zerolog.Nop())
	user := uuid.New()

	reg.RegisterTask(user, NewTask(ModeSetHome))
	reg.RegisterTask(user, NewTask(ModeSetCamp))
	require.True(t, sched.timers[0].stopped)

	// A job for the first expiry that was already queued must not touch the successor.
	sched.timers[0].fn()

	_, ok := reg.TaskOf(user, ModeSetCamp)
	assert.True(t, ok)
}

func TestRegenIsCappedAndSingle(t *testing.T) {
	reg, sched := newRegistry(NewMemoryStore())
	user := uuid.New()

	reg.StartRegen(user)
	reg.StartRegen(user)
	assert.Equal(t, 1, sched.running())

	for i := 0; i < 5; i++ {
		sched.fire()
	}
	assert.Equal(t, settings.MaxTokens, reg.GetOrCreate(user).Tokens())

	reg.StopRegen(user)
	assert.Equal(t, 0, sched.running())
	assert.False(t, reg.Regenerating(user))
}

func TestRemoveWaypointEverywhere(t *testing.T) {
	reg, _ := newRegistry(NewMemoryStore())
	ref := world.Ref{World: "world", Chunk: world.ChunkAt(1, 2)}
	other := world.Ref{World: "world", Chunk: world.ChunkAt(5, 5)}
	a, b := uuid.New(), uuid.New()
	reg.GetOrCreate(a).RegisterWaypoint(ref)
	reg.GetOrCreate(b).RegisterWaypoint(ref)
	reg.GetOrCreate(b).RegisterWaypoint(other)

	reg.RemoveWaypointEverywhere(ref)

	assert.False(t, reg.GetOrCreate(a).HasWaypoint(ref))
	assert.Equal(t, []world.Ref{other}, reg.GetOrCreate(b).Waypoints())
}

func TestSaveLoadRoundTrip(t *testing.T) {
	store := NewMemoryStore()
	reg, _ := newRegistry(store)
	a, b := uuid.New(), uuid.New()
	ta := reg.GetOrCreate(a)
	ta.AddTokens(2, settings.MaxTokens)
	ta.SetHome(world.Location{World: "world", X: 1, Y: 2, Z: 3})
	ta.SetCamp(world.Location{World: "wild", X: -4, Y: 70, Z: 9})
	ta.RegisterWaypoint(world.Ref{World: "world", Chunk: world.ChunkAt(-3, 8)})
	tb := reg.GetOrCreate(b)
	tb.Spend()
	reg.RegisterTask(a, NewTask(ModeAddPoint))

	require.NoError(t, reg.SaveAll(context.Background()))

	fresh, _ := newRegistry(store)
	require.NoError(t, fresh.LoadAll(context.Background()))

	assert.Equal(t, 2, fresh.Len())
	for _, id := range []uuid.UUID{a, b} {
		want, _ := reg.Lookup(id)
		got, ok := fresh.Lookup(id)
		require.True(t, ok)
		assert.Equal(t, want.Record(), got.Record())
	}
	_, ok := fresh.Task(a)
	assert.False(t, ok)
}

func TestLoadAllClearsAndRestartsRegenOnce(t *testing.T) {
	store := NewMemoryStore()
	online := uuid.New()
	reg, sched := newRegistry(store, online)
	reg.GetOrCreate(uuid.New())
	require.NoError(t, reg.SaveAll(context.Background()))

	reg.StartRegen(online)
	task := NewTask(ModeDelete)
	reg.RegisterTask(online, task)

	require.NoError(t, reg.LoadAll(context.Background()))
	require.NoError(t, reg.LoadAll(context.Background()))

	assert.True(t, task.Cancelled())
	assert.Equal(t, 1, sched.running())
	assert.True(t, reg.Regenerating(online))
}

func TestLoadAllWithoutSnapshotKeepsState(t *testing.T) {
	reg, _ := newRegistry(NewMemoryStore())
	user := uuid.New()
	reg.GetOrCreate(user).Spend()

	require.NoError(t, reg.LoadAll(context.Background()))

	tr, ok := reg.Lookup(user)
	require.True(t, ok)
	assert.Equal(t, 0, tr.Tokens())
}

func TestLoadAllClampsBalances(t *testing.T) {
	rich, broke := uuid.New(), uuid.New()
	store := NewMemoryStore()
	require.NoError(t, store.Save(context.Background(), map[string]Record{
		rich.String():  {Tokens: settings.MaxTokens + 7},
		broke.String(): {Tokens: -3},
	}))
	reg, _ := newRegistry(store)

	require.NoError(t, reg.LoadAll(context.Background()))

	tr, ok := reg.Lookup(rich)
	require.True(t, ok)
	assert.Equal(t, settings.MaxTokens, tr.Tokens())
	tr, ok = reg.Lookup(broke)
	require.True(t, ok)
	assert.Equal(t, 0, tr.Tokens())
}

func TestLoadAllRejectsMalformedUserID(t *testing.T) {
	store := NewMemoryStore()
	require.NoError(t, store.Save(context.Background(), map[string]Record{"not-a-uuid": {Tokens: 1}}))
	reg, _ := newRegistry(store)
	user := uuid.New()
	reg.GetOrCreate(user)

	err := reg.LoadAll(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "not-a-uuid")
	_, ok := reg.Lookup(user)
	assert.True(t, ok)
}

func TestSaveSkipsEmptyRegistry(t *testing.T) {
	store := NewMemoryStore()
	reg, _ := newRegistry(store)

	require.NoError(t, reg.SaveAll(context.Background()))

	_, err := store.Load(context.Background())
	assert.ErrorIs(t, err, ErrNoSnapshot)
}

func TestStoreErrorsSurface(t *testing.T) {
	boom := errors.New("disk on fire")
	reg, _ := newRegistry(failingStore{err: boom})
	reg.GetOrCreate(uuid.New())

	assert.ErrorIs(t, reg.LoadAll(context.Background()), boom)
	assert.ErrorIs(t, reg.SaveAll(context.Background()), boom)
}

func TestClearAll(t *testing.T) {
	reg, sched := newRegistry(NewMemoryStore())
	user := uuid.New()
	reg.StartRegen(user)
	task := NewTask(ModeSetHome)
	reg.RegisterTask(user, task)

	reg.ClearAll()

	assert.Equal(t, 0, reg.Len())
	assert.Equal(t, 0, sched.running())
	assert.True(t, task.Cancelled())
}

func TestParseMode(t *testing.T) {
	mode, err := ParseMode("addpoint")
	require.NoError(t, err)
	assert.Equal(t, ModeAddPoint, mode)
	assert.Equal(t, "REMOVEPOINT", ModeRemovePoint.String())

	_, err = ParseMode("teleport")
	assert.Error(t, err)
}
