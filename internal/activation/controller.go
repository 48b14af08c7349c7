// Package activation turns player input into waypoint state changes.
//
// Waypoints start inactive when a user with a CREATE task places a banner.
// Other users fund them with tokens until the contributor count reaches the
// requirement, at which point they become active and can be registered.
package activation

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/holocons/waypoints/internal/label"
	"github.com/holocons/waypoints/internal/traveler"
	"github.com/holocons/waypoints/internal/world"
)

// Color of a feedback message.
type Color string

const (
	Red  Color = "red"
	Gold Color = "gold"
	Blue Color = "blue"
)

// Notifier delivers feedback to a user.
type Notifier interface {
	Message(user uuid.UUID, text string, color Color)
	ActionBar(user uuid.UUID, text string)
}

// Names resolves user ids to display names.
type Names interface {
	Name(user uuid.UUID) string
}

// Announcer broadcasts waypoint lifecycle changes beyond this server.
type Announcer interface {
	Announce(kind, name string, loc world.Location)
}

const (
	AnnounceActivated = "activated"
	AnnounceRemoved   = "removed"
)

const defaultWaypointName = "Waypoint"

// Controller is the waypoint state machine. Every handler must run on the
// dispatch loop.
type Controller struct {
	rules     Rules
	index     *world.Index
	travelers *traveler.Registry
	labels    *label.Manager
	notify    Notifier
	names     Names
	announcer Announcer
	log       zerolog.Logger
}

// NewController wires the state machine. announcer may be nil.
func NewController(
	rules Rules,
	index *world.Index,
	travelers *traveler.Registry,
	labels *label.Manager,
	notify Notifier,
	names Names,
	announcer Announcer,
	log zerolog.Logger,
) *Controller {
	return &Controller{
		rules:     rules,
		index:     index,
		travelers: travelers,
		labels:    labels,
		notify:    notify,
		names:     names,
		announcer: announcer,
		log:       log,
	}
}

// BeginTask registers a pending task for user, replacing any other.
func (c *Controller) BeginTask(user uuid.UUID, task *traveler.Task) {
	c.travelers.RegisterTask(user, task)
	c.log.Debug().Str("user", user.String()).Stringer("mode", task.Mode).Msg("task registered")
}

// BlockPlace handles a banner being placed.
func (c *Controller) BlockPlace(ev PlaceEvent) {
	if !ev.Banner {
		return
	}
	task, ok := c.travelers.Task(ev.Actor)
	if !ok {
		if wp := c.index.Near(ev.Placed); wp != nil {
			c.labels.ShowToTrackers(wp, ev.Actor)
		}
		return
	}
	if !c.onTop(ev.Placed, ev.Against, c.rules.WaypointWorlds) {
		return
	}

	switch task.Mode {
	case traveler.ModeCreate:
		name := task.Name
		if name == "" {
			name = defaultWaypointName
		}
		wp := c.index.Create(ev.Placed, name)
		if wp == nil {
			c.notify.Message(ev.Actor, "There is already a waypoint nearby!", Red)
			return
		}
		c.labels.ShowToTrackers(wp, ev.Actor)
		c.log.Info().
			Str("user", ev.Actor.String()).
			Stringer("waypoint", wp.Ref()).
			Str("name", name).
			Msg("waypoint created")
	default:
		return
	}
	c.travelers.UnregisterTask(ev.Actor)
}

func (c *Controller) onTop(placed, against world.Location, worlds map[string]bool) bool {
	return world.FaceBetween(against, placed) == world.FaceUp && worlds[placed.World]
}

// Interact handles a right click on a block with an empty main hand.
func (c *Controller) Interact(ev InteractEvent) {
	if ev.HoldingBlock || !ev.RightClickBlock || ev.OffHand {
		return
	}
	task, hasTask := c.travelers.Task(ev.Actor)

	if !c.index.IsWaypoint(ev.Block) {
		if !hasTask || !ev.BannerBlock {
			return
		}
		if c.bookmark(ev.Actor, task.Mode, ev.Block) {
			c.travelers.UnregisterTask(ev.Actor)
		}
		return
	}

	wp := c.index.Near(ev.Block)
	if !hasTask {
		c.inspect(wp, ev.Actor)
		return
	}

	var done bool
	switch task.Mode {
	case traveler.ModeActivate:
		c.activate(wp, ev.Actor)
		done = true
	case traveler.ModeAddPoint:
		done = c.addPoint(wp, ev.Actor)
	case traveler.ModeRemovePoint:
		done = c.removePoint(wp, ev.Actor)
	case traveler.ModeCreate:
		if !wp.Active() {
			c.destroy(wp, ev.Actor)
			done = true
		}
	case traveler.ModeDelete:
		c.destroy(wp, ev.Actor)
		done = true
	}
	if done {
		c.travelers.UnregisterTask(ev.Actor)
	}
}

// bookmark records a home or camp location and reports whether the task is finished.
func (c *Controller) bookmark(user uuid.UUID, mode traveler.Mode, loc world.Location) bool {
	switch mode {
	case traveler.ModeSetCamp:
		if c.rules.CampWorlds[loc.World] {
			c.travelers.GetOrCreate(user).SetCamp(loc)
			c.notify.Message(user, "You set your camp!", Gold)
		}
	case traveler.ModeSetHome:
		if c.rules.HomeWorlds[loc.World] {
			c.travelers.GetOrCreate(user).SetHome(loc)
			c.notify.Message(user, "You set your home!", Gold)
		}
	default:
		return false
	}
	return true
}

func (c *Controller) inspect(wp *world.Waypoint, user uuid.UUID) {
	if wp.Active() {
		if c.travelers.GetOrCreate(user).RegisterWaypoint(wp.Ref()) {
			c.notify.Message(user, "You registered a waypoint!", Gold)
		}
		return
	}

	ids := wp.Contributors().IDs()
	if len(ids) == 0 {
		c.notify.Message(user, "Nobody has contributed to this waypoint!", Gold)
	} else {
		names := make([]string, len(ids))
		for i, id := range ids {
			names[i] = c.names.Name(id)
		}
		c.notify.Message(user, "Contributors: "+strings.Join(names, ", "), Gold)
	}
	c.progress(wp, user)
}

func (c *Controller) activate(wp *world.Waypoint, user uuid.UUID) {
	already := wp.Active()
	wp.Activate()
	c.labels.UpdateToTrackers(wp, user)
	if already {
		return
	}
	c.log.Info().Stringer("waypoint", wp.Ref()).Str("user", user.String()).Msg("waypoint activated")
	if c.announcer != nil {
		c.announcer.Announce(AnnounceActivated, wp.Name(), wp.Location())
	}
}

// addPoint spends one of the user's tokens on wp.
func (c *Controller) addPoint(wp *world.Waypoint, user uuid.UUID) bool {
	if wp.Active() {
		return false
	}
	contributors := wp.Contributors()
	if contributors.Has(user) {
		c.notify.Message(user, "You already contributed to this waypoint!", Red)
		c.progress(wp, user)
		return true
	}
	if !c.travelers.GetOrCreate(user).Spend() {
		c.progress(wp, user)
		return false
	}

	c.notify.Message(user, "You added a token!", Blue)
	contributors.Add(user)
	if contributors.Len() >= c.rules.TokenRequirement {
		c.activate(wp, user)
	} else {
		c.labels.UpdateToTrackers(wp, user)
	}
	c.progress(wp, user)
	return true
}

// removePoint refunds the user's token on wp.
func (c *Controller) removePoint(wp *world.Waypoint, user uuid.UUID) bool {
	if wp.Active() {
		return false
	}
	if wp.Contributors().Remove(user) {
		c.notify.Message(user, "You removed a token!", Blue)
		c.travelers.Refund(user)
		c.labels.UpdateToTrackers(wp, user)
	}
	c.progress(wp, user)
	return true
}

// destroy removes wp, refunds its contributors and tears its labels down.
func (c *Controller) destroy(wp *world.Waypoint, user uuid.UUID) {
	c.index.Remove(wp)
	c.travelers.RemoveWaypointEverywhere(wp.Ref())
	for _, id := range wp.Contributors().IDs() {
		c.travelers.Refund(id)
	}
	c.labels.Remove(wp)
	c.log.Info().
		Stringer("waypoint", wp.Ref()).
		Str("user", user.String()).
		Int("refunds", wp.Contributors().Len()).
		Msg("waypoint removed")
	if c.announcer != nil {
		c.announcer.Announce(AnnounceRemoved, wp.Name(), wp.Location())
	}
}

func (c *Controller) progress(wp *world.Waypoint, user uuid.UUID) {
	c.notify.ActionBar(user, fmt.Sprintf("%d / %d", wp.Contributors().Len(), c.rules.TokenRequirement))
}

// ChunkLoad shows the waypoint of a chunk the client started rendering.
func (c *Controller) ChunkLoad(ev ChunkEvent) {
	if wp := c.index.ByPartition(ev.World, ev.Chunk); wp != nil {
		c.labels.Show(wp, ev.Client)
	}
}

// ChunkUnload hides the waypoint of a chunk the client stopped rendering.
func (c *Controller) ChunkUnload(ev ChunkEvent) {
	if wp := c.index.ByPartition(ev.World, ev.Chunk); wp != nil {
		c.labels.Hide(wp, ev.Client)
	}
}

// Join starts token regeneration for a connecting user.
func (c *Controller) Join(user uuid.UUID) {
	c.travelers.StartRegen(user)
}

// Quit drops everything transient held for a disconnecting user.
func (c *Controller) Quit(user uuid.UUID) {
	c.travelers.StopRegen(user)
	c.travelers.UnregisterTask(user)
	c.labels.RemoveClient(user)
}
