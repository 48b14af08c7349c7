// Package label keeps the floating waypoint names that each client renders.
//
// A label is a client-only object: the server never spawns it in the world, it
// only tells individual clients to create, describe and destroy it. The Manager
// remembers which object id every client holds for every waypoint so that no
// client ever sees the same waypoint twice.
package label

import (
	"math/rand/v2"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/holocons/waypoints/internal/world"
)

// Sender delivers a message to one client. Delivery is fire-and-forget.
type Sender interface {
	Send(client uuid.UUID, msg Message) error
}

// Sessions answers questions about connected clients.
type Sessions interface {
	// Trackers returns the clients currently rendering client, excluding client.
	Trackers(client uuid.UUID) []uuid.UUID
	// Online returns every connected client.
	Online() []uuid.UUID
}

type key struct {
	ref    world.Ref
	client uuid.UUID
}

// Manager owns the (waypoint, client) -> object id mapping.
//
// It is not safe for concurrent use; call it from the dispatch loop.
type Manager struct {
	sender   Sender
	sessions Sessions
	log      zerolog.Logger

	labels map[key]int32
	live   map[int32]int
	nextID func() int32
}

// NewManager returns a manager with no labels.
func NewManager(sender Sender, sessions Sessions, log zerolog.Logger) *Manager {
	return &Manager{
		sender:   sender,
		sessions: sessions,
		log:      log,
		labels:   make(map[key]int32),
		live:     make(map[int32]int),
		nextID:   func() int32 { return rand.Int32N(1<<30) + 1<<30 },
	}
}

func (m *Manager) allocate() int32 {
	for {
		id := m.nextID()
		if m.live[id] == 0 {
			return id
		}
	}
}

func (m *Manager) retain(id int32) { m.live[id]++ }

func (m *Manager) release(id int32) {
	if m.live[id] <= 1 {
		delete(m.live, id)
		return
	}
	m.live[id]--
}

// Show spawns a fresh label for wp on every client, replacing any label those
// clients already had for it.
func (m *Manager) Show(wp *world.Waypoint, clients ...uuid.UUID) {
	if len(clients) == 0 {
		return
	}
	loc := wp.Location()
	create := Create{
		EntityID: m.allocate(),
		UUID:     uuid.New(),
		Kind:     ArmorStand,
		X:        float64(loc.X) + offsetX,
		Y:        float64(loc.Y) + offsetY,
		Z:        float64(loc.Z) + offsetZ,
	}
	ref := wp.Ref()
	for _, client := range clients {
		k := key{ref: ref, client: client}
		prev, existed := m.labels[k]
		m.labels[k] = create.EntityID
		m.retain(create.EntityID)
		m.send(client, create)
		if existed {
			m.release(prev)
			m.send(client, Destroy{EntityIDs: []int32{prev}})
		}
	}
	m.Update(wp, clients...)
}

// ShowToTrackers shows wp to client and to everyone rendering client.
func (m *Manager) ShowToTrackers(wp *world.Waypoint, client uuid.UUID) {
	m.Show(wp, m.tracked(client)...)
}

// Update re-sends the label content to clients that already have the label.
func (m *Manager) Update(wp *world.Waypoint, clients ...uuid.UUID) {
	ref := wp.Ref()
	for _, client := range clients {
		id, ok := m.labels[key{ref: ref, client: client}]
		if !ok {
			continue
		}
		m.send(client, Metadata{
			EntityID:    id,
			Invisible:   true,
			Name:        wp.Name(),
			NameVisible: true,
			NoBaseplate: true,
			Marker:      true,
		})
	}
}

// UpdateToTrackers updates wp for client and everyone rendering client.
func (m *Manager) UpdateToTrackers(wp *world.Waypoint, client uuid.UUID) {
	m.Update(wp, m.tracked(client)...)
}

// Hide destroys the label of wp on every listed client that has one.
func (m *Manager) Hide(wp *world.Waypoint, clients ...uuid.UUID) {
	ref := wp.Ref()
	for _, client := range clients {
		k := key{ref: ref, client: client}
		id, ok := m.labels[k]
		if !ok {
			continue
		}
		delete(m.labels, k)
		m.release(id)
		m.send(client, Destroy{EntityIDs: []int32{id}})
	}
}

// HideToTrackers hides wp for client and everyone rendering client.
func (m *Manager) HideToTrackers(wp *world.Waypoint, client uuid.UUID) {
	m.Hide(wp, m.tracked(client)...)
}

// Remove hides wp from every connected client.
func (m *Manager) Remove(wp *world.Waypoint) {
	m.Hide(wp, m.sessions.Online()...)
}

// RemoveClient forgets every label held by client. No message is sent: the
// client is gone.
func (m *Manager) RemoveClient(client uuid.UUID) {
	for k, id := range m.labels {
		if k.client == client {
			delete(m.labels, k)
			m.release(id)
		}
	}
}

// Lookup returns the object id client holds for the waypoint at ref.
func (m *Manager) Lookup(ref world.Ref, client uuid.UUID) (int32, bool) {
	id, ok := m.labels[key{ref: ref, client: client}]
	return id, ok
}

// Count returns the number of live (waypoint, client) labels.
func (m *Manager) Count() int { return len(m.labels) }

func (m *Manager) tracked(client uuid.UUID) []uuid.UUID {
	return append(m.sessions.Trackers(client), client)
}

func (m *Manager) send(client uuid.UUID, msg Message) {
	if err := m.sender.Send(client, msg); err != nil {
		m.log.Warn().Err(err).
			Str("client", client.String()).
			Str("message", msg.Type()).
			Msg("label message not delivered")
	}
}
