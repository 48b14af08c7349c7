package world

import "github.com/google/uuid"

// Waypoint is a named point of interest anchored to one chunk.
type Waypoint struct {
	location     Location
	name         string
	active       bool
	contributors Contributors
}

// NewWaypoint returns an inactive waypoint with no contributors.
func NewWaypoint(loc Location, name string) *Waypoint {
	return &Waypoint{location: loc, name: name}
}

func (w *Waypoint) Location() Location { return w.location }

func (w *Waypoint) Name() string { return w.name }

func (w *Waypoint) Ref() Ref { return RefOf(w.location) }

func (w *Waypoint) Active() bool { return w.active }

// Activate marks the waypoint active. Funding is closed from then on.
func (w *Waypoint) Activate() { w.active = true }

// Contributors returns the mutable contributor set.
func (w *Waypoint) Contributors() *Contributors { return &w.contributors }

// Contributors is an insertion-ordered set of user ids.
type Contributors struct {
	ids []uuid.UUID
}

func (c *Contributors) Has(id uuid.UUID) bool {
	for _, v := range c.ids {
		if v == id {
			return true
		}
	}
	return false
}

// Add inserts id and reports whether it was absent.
func (c *Contributors) Add(id uuid.UUID) bool {
	if c.Has(id) {
		return false
	}
	c.ids = append(c.ids, id)
	return true
}

// Remove deletes id and reports whether it was present.
func (c *Contributors) Remove(id uuid.UUID) bool {
	for i, v := range c.ids {
		if v == id {
			c.ids = append(c.ids[:i], c.ids[i+1:]...)
			return true
		}
	}
	return false
}

func (c *Contributors) Len() int { return len(c.ids) }

// IDs returns a copy of the members in insertion order.
func (c *Contributors) IDs() []uuid.UUID {
	out := make([]uuid.UUID, len(c.ids))
	copy(out, c.ids)
	return out
}
