package traveler

import (
	"sort"

	"github.com/holocons/waypoints/internal/dispatch"
	"github.com/holocons/waypoints/internal/world"
)

// Traveler is the durable per-user record.
type Traveler struct {
	tokens    int
	home      *world.Location
	camp      *world.Location
	waypoints map[world.Ref]struct{}

	regen dispatch.Timer
}

func newTraveler(tokens int) *Traveler {
	return &Traveler{tokens: tokens, waypoints: make(map[world.Ref]struct{})}
}

func (t *Traveler) Tokens() int { return t.tokens }

// Spend takes one token and reports whether one was available.
func (t *Traveler) Spend() bool {
	if t.tokens <= 0 {
		return false
	}
	t.tokens--
	return true
}

// AddTokens adds n tokens, keeping the balance within [0, limit].
func (t *Traveler) AddTokens(n, limit int) {
	t.tokens = min(max(t.tokens+n, 0), limit)
}

func (t *Traveler) Home() (world.Location, bool) {
	if t.home == nil {
		return world.Location{}, false
	}
	return *t.home, true
}

func (t *Traveler) SetHome(loc world.Location) { t.home = &loc }

func (t *Traveler) Camp() (world.Location, bool) {
	if t.camp == nil {
		return world.Location{}, false
	}
	return *t.camp, true
}

func (t *Traveler) SetCamp(loc world.Location) { t.camp = &loc }

func (t *Traveler) HasWaypoint(ref world.Ref) bool {
	_, ok := t.waypoints[ref]
	return ok
}

// RegisterWaypoint adds ref and reports whether it was new.
func (t *Traveler) RegisterWaypoint(ref world.Ref) bool {
	if t.HasWaypoint(ref) {
		return false
	}
	t.waypoints[ref] = struct{}{}
	return true
}

func (t *Traveler) UnregisterWaypoint(ref world.Ref) {
	delete(t.waypoints, ref)
}

// Waypoints returns the registered waypoints in a stable order.
func (t *Traveler) Waypoints() []world.Ref {
	refs := make([]world.Ref, 0, len(t.waypoints))
	for ref := range t.waypoints {
		refs = append(refs, ref)
	}
	sort.Slice(refs, func(i, j int) bool {
		if refs[i].World != refs[j].World {
			return refs[i].World < refs[j].World
		}
		return refs[i].Chunk < refs[j].Chunk
	})
	return refs
}

// Record is the persisted form of a Traveler.
type Record struct {
	Tokens    int             `json:"tokens"`
	Home      *world.Location `json:"home,omitempty"`
	Camp      *world.Location `json:"camp,omitempty"`
	Waypoints []world.Ref     `json:"waypoints"`
}

// Record returns a snapshot of t.
func (t *Traveler) Record() Record {
	rec := Record{Tokens: t.tokens, Waypoints: t.Waypoints()}
	if t.home != nil {
		home := *t.home
		rec.Home = &home
	}
	if t.camp != nil {
		camp := *t.camp
		rec.Camp = &camp
	}
	return rec
}

// fromRecord rebuilds a traveler, clamping its balance into [0, limit].
func fromRecord(rec Record, limit int) *Traveler {
	t := newTraveler(0)
	t.AddTokens(rec.Tokens, limit)
	if rec.Home != nil {
		t.SetHome(*rec.Home)
	}
	if rec.Camp != nil {
		t.SetCamp(*rec.Camp)
	}
	for _, ref := range rec.Waypoints {
		t.waypoints[ref] = struct{}{}
	}
	return t
}
