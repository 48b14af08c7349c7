package label

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holocons/waypoints/internal/world"
)

type sent struct {
	client uuid.UUID
	msg    Message
}

type fakeSender struct {
	sent []sent
	fail bool
}

func (f *fakeSender) Send(client uuid.UUID, msg Message) error {
	f.sent = append(f.sent, sent{client: client, msg: msg})
	if f.fail {
		return errors.New("buffer full")
	}
	return nil
}

func (f *fakeSender) of(client uuid.UUID, typ string) []Message {
	var out []Message
	for _, s := range f.sent {
		if s.client == client && s.msg.Type() == typ {
			out = append(out, s.msg)
		}
	}
	return out
}

type fakeSessions struct {
	online   []uuid.UUID
	trackers map[uuid.UUID][]uuid.UUID
}

func (f *fakeSessions) Trackers(client uuid.UUID) []uuid.UUID {
	return append([]uuid.UUID(nil), f.trackers[client]...)
}

func (f *fakeSessions) Online() []uuid.UUID { return f.online }

func newManager() (*Manager, *fakeSender, *fakeSessions) {
	sender := &fakeSender{}
	sessions := &fakeSessions{trackers: map[uuid.UUID][]uuid.UUID{}}
	return NewManager(sender, sessions, zerolog.Nop()), sender, sessions
}

func testWaypoint() *world.Waypoint {
	return world.NewWaypoint(world.Location{World: "world", X: 10, Y: 64, Z: -3}, "Old Mill")
}

func TestShowCreatesAndDescribes(t *testing.T) {
	m, sender, _ := newManager()
	wp := testWaypoint()
	alice := uuid.New()

	m.Show(wp, alice)

	creates := sender.of(alice, "create")
	require.Len(t, creates, 1)
	create := creates[0].(Create)
	assert.Equal(t, ArmorStand, create.Kind)
	assert.Equal(t, 10.5, create.X)
	assert.InDelta(t, 65.6, create.Y, 1e-9)
	assert.Equal(t, -2.5, create.Z)
	assert.NotEqual(t, uuid.Nil, create.UUID)

	metas := sender.of(alice, "metadata")
	require.Len(t, metas, 1)
	assert.Equal(t, Metadata{
		EntityID:    create.EntityID,
		Invisible:   true,
		Name:        "Old Mill",
		NameVisible: true,
		NoBaseplate: true,
		Marker:      true,
	}, metas[0])

	id, ok := m.Lookup(wp.Ref(), alice)
	require.True(t, ok)
	assert.Equal(t, create.EntityID, id)
}

func TestShowTwiceDestroysSupersededOnce(t *testing.T) {
	m, sender, _ := newManager()
	wp := testWaypoint()
	alice := uuid.New()

	m.Show(wp, alice)
	first, _ := m.Lookup(wp.Ref(), alice)
	m.Show(wp, alice)
	second, _ := m.Lookup(wp.Ref(), alice)

	assert.NotEqual(t, first, second)
	destroys := sender.of(alice, "destroy")
	require.Len(t, destroys, 1)
	assert.Equal(t, Destroy{EntityIDs: []int32{first}}, destroys[0])
	assert.Equal(t, 1, m.Count())
}

func TestAllocateSkipsLiveIDs(t *testing.T) {
	m, _, _ := newManager()
	ids := []int32{7, 7, 7, 9}
	m.nextID = func() int32 {
		id := ids[0]
		ids = ids[1:]
		return id
	}
	wp := testWaypoint()
	other := world.NewWaypoint(world.Location{World: "world", X: 100, Y: 64, Z: 100}, "Tower")
	alice := uuid.New()

	m.Show(wp, alice)
	m.Show(other, alice)

	a, _ := m.Lookup(wp.Ref(), alice)
	b, _ := m.Lookup(other.Ref(), alice)
	assert.Equal(t, int32(7), a)
	assert.Equal(t, int32(9), b)
}

func TestUpdateWithoutLabelIsNoop(t *testing.T) {
	m, sender, _ := newManager()

	m.Update(testWaypoint(), uuid.New())
	m.Hide(testWaypoint(), uuid.New())

	assert.Empty(t, sender.sent)
}

func TestShowToTrackersReachesOnlookers(t *testing.T) {
	m, sender, sessions := newManager()
	wp := testWaypoint()
	alice, bob, carol := uuid.New(), uuid.New(), uuid.New()
	sessions.trackers[alice] = []uuid.UUID{bob}

	m.ShowToTrackers(wp, alice)

	assert.Len(t, sender.of(alice, "create"), 1)
	assert.Len(t, sender.of(bob, "create"), 1)
	assert.Empty(t, sender.of(carol, "create"))

	m.UpdateToTrackers(wp, alice)
	assert.Len(t, sender.of(bob, "metadata"), 2)
}

func TestRemoveHidesForEveryOnlineClient(t *testing.T) {
	m, sender, sessions := newManager()
	wp := testWaypoint()
	alice, bob := uuid.New(), uuid.New()
	sessions.online = []uuid.UUID{alice, bob}

	m.Show(wp, alice, bob)
	id, _ := m.Lookup(wp.Ref(), alice)
	m.Remove(wp)

	assert.Equal(t, 0, m.Count())
	assert.Equal(t, []Message{Destroy{EntityIDs: []int32{id}}}, sender.of(alice, "destroy"))
	assert.Len(t, sender.of(bob, "destroy"), 1)
	assert.Empty(t, m.live)
}

func TestRemoveClientPurgesSilently(t *testing.T) {
	m, sender, _ := newManager()
	wp := testWaypoint()
	other := world.NewWaypoint(world.Location{World: "world", X: 500, Y: 64, Z: 0}, "Port")
	alice, bob := uuid.New(), uuid.New()

	m.Show(wp, alice, bob)
	m.Show(other, alice)
	before := len(sender.sent)

	m.RemoveClient(alice)

	assert.Equal(t, before, len(sender.sent))
	assert.Equal(t, 1, m.Count())
	_, ok := m.Lookup(wp.Ref(), bob)
	assert.True(t, ok)
}

func TestDeliveryFailureKeepsMapping(t *testing.T) {
	m, sender, _ := newManager()
	sender.fail = true
	wp := testWaypoint()
	alice := uuid.New()

	m.Show(wp, alice)

	_, ok := m.Lookup(wp.Ref(), alice)
	assert.True(t, ok)
}
