// Package traveler owns per-user token balances, bookmarks and registered
// waypoints, and the single pending task each connected user may hold.
package traveler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/holocons/waypoints/internal/dispatch"
	"github.com/holocons/waypoints/internal/world"
)

// Settings tune the token economy.
type Settings struct {
	StartingTokens int
	MaxTokens      int
	RegenInterval  time.Duration
	RegenAmount    int
	// TaskTimeout cancels pending tasks after this long. Zero keeps them until
	// they complete or the user disconnects.
	TaskTimeout time.Duration
}

// Presence lists the users currently connected.
type Presence interface {
	Online() []uuid.UUID
}

// Registry holds every Traveler and pending Task.
//
// It is not safe for concurrent use; call it from the dispatch loop.
type Registry struct {
	settings Settings
	store    Store
	sched    dispatch.Scheduler
	presence Presence
	log      zerolog.Logger

	travelers map[uuid.UUID]*Traveler
	tasks     map[uuid.UUID]*Task
}

// NewRegistry returns an empty registry.
func NewRegistry(settings Settings, store Store, sched dispatch.Scheduler, presence Presence, log zerolog.Logger) *Registry {
	return &Registry{
		settings:  settings,
		store:     store,
		sched:     sched,
		presence:  presence,
		log:       log,
		travelers: make(map[uuid.UUID]*Traveler),
		tasks:     make(map[uuid.UUID]*Task),
	}
}

// Settings returns the economy settings the registry was built with.
func (r *Registry) Settings() Settings { return r.settings }

// GetOrCreate returns the traveler for user, creating it with the starting balance.
func (r *Registry) GetOrCreate(user uuid.UUID) *Traveler {
	t, ok := r.travelers[user]
	if !ok {
		t = newTraveler(r.settings.StartingTokens)
		r.travelers[user] = t
	}
	return t
}

// Lookup returns the traveler for user without creating one.
func (r *Registry) Lookup(user uuid.UUID) (*Traveler, bool) {
	t, ok := r.travelers[user]
	return t, ok
}

// Len returns the number of known travelers.
func (r *Registry) Len() int { return len(r.travelers) }

// Refund gives user one token back, capped at the maximum balance.
func (r *Registry) Refund(user uuid.UUID) {
	r.GetOrCreate(user).AddTokens(1, r.settings.MaxTokens)
}

// RegisterTask makes task the pending task of user, cancelling any previous one.
func (r *Registry) RegisterTask(user uuid.UUID, task *Task) {
	if prev, ok := r.tasks[user]; ok {
		prev.cancel()
	}
	r.tasks[user] = task
	if r.settings.TaskTimeout > 0 {
		task.expiry = r.sched.After(r.settings.TaskTimeout, func() {
			if r.tasks[user] == task {
				r.log.Debug().Str("user", user.String()).Stringer("mode", task.Mode).Msg("task expired")
				r.UnregisterTask(user)
			}
		})
	}
}

// UnregisterTask cancels and drops the pending task of user, if any.
func (r *Registry) UnregisterTask(user uuid.UUID) {
	if task, ok := r.tasks[user]; ok {
		task.cancel()
		delete(r.tasks, user)
	}
}

// Task returns the live pending task of user.
func (r *Registry) Task(user uuid.UUID) (*Task, bool) {
	task, ok := r.tasks[user]
	if !ok || task.Cancelled() {
		return nil, false
	}
	return task, true
}

// TaskOf returns the pending task of user only if it has the given mode.
func (r *Registry) TaskOf(user uuid.UUID, mode Mode) (*Task, bool) {
	task, ok := r.Task(user)
	if !ok || task.Mode != mode {
		return nil, false
	}
	return task, true
}

// RemoveWaypointEverywhere drops ref from every traveler's registered set.
func (r *Registry) RemoveWaypointEverywhere(ref world.Ref) {
	for _, t := range r.travelers {
		t.UnregisterWaypoint(ref)
	}
}

// StartRegen begins periodic token regeneration for user. Calling it again
// while regeneration runs has no effect.
func (r *Registry) StartRegen(user uuid.UUID) {
	t := r.GetOrCreate(user)
	if t.regen != nil || r.settings.RegenInterval <= 0 || r.settings.RegenAmount <= 0 {
		return
	}
	t.regen = r.sched.Every(r.settings.RegenInterval, func() {
		t.AddTokens(r.settings.RegenAmount, r.settings.MaxTokens)
	})
}

// StopRegen stops token regeneration for user.
func (r *Registry) StopRegen(user uuid.UUID) {
	if t, ok := r.travelers[user]; ok {
		t.stopRegen()
	}
}

func (t *Traveler) stopRegen() {
	if t.regen != nil {
		t.regen.Stop()
		t.regen = nil
	}
}

// Regenerating reports whether user has a running regeneration timer.
func (r *Registry) Regenerating(user uuid.UUID) bool {
	t, ok := r.travelers[user]
	return ok && t.regen != nil
}

// ClearAll stops every timer and forgets all travelers and tasks.
func (r *Registry) ClearAll() {
	for _, t := range r.travelers {
		t.stopRegen()
	}
	clear(r.travelers)
	for _, task := range r.tasks {
		task.cancel()
	}
	clear(r.tasks)
}

// LoadAll replaces the registry with the stored snapshot and restarts
// regeneration for connected users. A missing snapshot leaves state untouched.
func (r *Registry) LoadAll(ctx context.Context) error {
	records, err := r.store.Load(ctx)
	if errors.Is(err, ErrNoSnapshot) {
		r.log.Info().Msg("no traveler snapshot to load")
		return nil
	}
	if err != nil {
		return fmt.Errorf("load travelers: %w", err)
	}

	loaded := make(map[uuid.UUID]*Traveler, len(records))
	for key, rec := range records {
		id, err := uuid.Parse(key)
		if err != nil {
			return fmt.Errorf("load travelers: user id %q: %w", key, err)
		}
		loaded[id] = fromRecord(rec, r.settings.MaxTokens)
	}

	if len(r.travelers) > 0 || len(r.tasks) > 0 {
		r.ClearAll()
	}
	for id, t := range loaded {
		r.travelers[id] = t
	}
	for _, user := range r.presence.Online() {
		r.StartRegen(user)
	}

	r.log.Info().Int("travelers", len(loaded)).Msg("travelers loaded")
	return nil
}

// SaveAll writes every traveler to the store. Nothing is written while the
// registry is empty.
func (r *Registry) SaveAll(ctx context.Context) error {
	if len(r.travelers) == 0 {
		return nil
	}
	records := make(map[string]Record, len(r.travelers))
	for id, t := range r.travelers {
		records[id.String()] = t.Record()
	}
	if err := r.store.Save(ctx, records); err != nil {
		return fmt.Errorf("save travelers: %w", err)
	}
	r.log.Info().Int("travelers", len(records)).Msg("travelers saved")
	return nil
}
