// Package hub connects players over websockets and feeds their input into the
// dispatch loop.
package hub

import (
	"errors"
	"fmt"
	"net/http"
	"sort"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/holocons/waypoints/internal/activation"
	"github.com/holocons/waypoints/internal/dispatch"
	"github.com/holocons/waypoints/internal/label"
	"github.com/holocons/waypoints/internal/relay"
	"github.com/holocons/waypoints/internal/traveler"
	"github.com/holocons/waypoints/internal/world"
)

var (
	errNotConnected = errors.New("client not connected")
	errBufferFull   = errors.New("client send buffer full")
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Hub maintains the set of connected players. Apart from ServeWs, every method
// runs on the dispatch loop.
type Hub struct {
	loop    *dispatch.Loop
	ctrl    *activation.Controller
	clients map[uuid.UUID]*Client
	log     zerolog.Logger
}

// New returns a hub posting work to loop.
func New(loop *dispatch.Loop, log zerolog.Logger) *Hub {
	return &Hub{
		loop:    loop,
		clients: make(map[uuid.UUID]*Client),
		log:     log,
	}
}

// Attach sets the controller that handles player input. It must be called
// before the hub serves connections.
func (h *Hub) Attach(ctrl *activation.Controller) {
	h.ctrl = ctrl
}

// ServeWs upgrades a request into a player session. The player identifies with
// the user and name query parameters.
func (h *Hub) ServeWs(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.URL.Query().Get("user"))
	if err != nil {
		http.Error(w, "invalid user id", http.StatusBadRequest)
		return
	}
	name := r.URL.Query().Get("name")
	if name == "" {
		name = id.String()[:8]
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	client := &Client{
		hub:      h,
		id:       id,
		name:     name,
		conn:     conn,
		send:     make(chan []byte, sendBuffer),
		tracking: make(map[uuid.UUID]bool),
	}
	if !h.loop.Post(func() { h.register(client) }) {
		conn.Close()
		return
	}
	go client.writePump()
	go client.readPump()
}

func (h *Hub) register(c *Client) {
	if prev, ok := h.clients[c.id]; ok {
		h.unregister(prev)
	}
	h.clients[c.id] = c
	h.ctrl.Join(c.id)
	h.log.Info().Str("user", c.id.String()).Str("name", c.name).Int("clients", len(h.clients)).Msg("client registered")
}

func (h *Hub) unregister(c *Client) {
	if cur, ok := h.clients[c.id]; !ok || cur != c {
		return
	}
	delete(h.clients, c.id)
	close(c.send)
	for _, other := range h.clients {
		delete(other.tracking, c.id)
	}
	h.ctrl.Quit(c.id)
	h.log.Info().Str("user", c.id.String()).Int("clients", len(h.clients)).Msg("client unregistered")
}

func (h *Hub) handle(c *Client, op Op) {
	if h.clients[c.id] != c {
		return
	}
	switch op.Action {
	case "place":
		h.ctrl.BlockPlace(activation.PlaceEvent{
			Actor:   c.id,
			Banner:  op.Banner,
			Placed:  op.Placed,
			Against: op.Against,
		})
	case "interact":
		h.ctrl.Interact(activation.InteractEvent{
			Actor:           c.id,
			Block:           op.Block,
			BannerBlock:     op.BannerBlock,
			HoldingBlock:    op.HoldingBlock,
			RightClickBlock: op.RightClickBlock,
			OffHand:         op.OffHand,
		})
	case "chunk_load", "chunk_unload":
		ev := activation.ChunkEvent{Client: c.id, World: op.World, Chunk: world.ChunkAt(op.ChunkX, op.ChunkZ)}
		if op.Action == "chunk_load" {
			h.ctrl.ChunkLoad(ev)
		} else {
			h.ctrl.ChunkUnload(ev)
		}
	case "task":
		mode, err := traveler.ParseMode(op.Mode)
		if err != nil {
			h.Message(c.id, err.Error(), activation.Red)
			return
		}
		task := traveler.NewTask(mode)
		task.Name = op.Name
		h.ctrl.BeginTask(c.id, task)
	case "track":
		if op.Target != c.id {
			c.tracking[op.Target] = true
		}
	case "untrack":
		delete(c.tracking, op.Target)
	default:
		h.log.Debug().Str("action", op.Action).Str("user", c.id.String()).Msg("unknown op")
	}
}

func (h *Hub) push(user uuid.UUID, typ string, payload any) error {
	c, ok := h.clients[user]
	if !ok {
		return errNotConnected
	}
	msg, err := encode(typ, payload)
	if err != nil {
		return fmt.Errorf("encode %s: %w", typ, err)
	}
	select {
	case c.send <- msg:
		return nil
	default:
		return errBufferFull
	}
}

// Send implements label.Sender.
func (h *Hub) Send(client uuid.UUID, msg label.Message) error {
	return h.push(client, msg.Type(), msg)
}

// Message implements activation.Notifier.
func (h *Hub) Message(user uuid.UUID, text string, color activation.Color) {
	if err := h.push(user, "chat", Chat{Text: text, Color: string(color)}); err != nil {
		h.log.Debug().Err(err).Str("user", user.String()).Msg("chat not delivered")
	}
}

// ActionBar implements activation.Notifier.
func (h *Hub) ActionBar(user uuid.UUID, text string) {
	if err := h.push(user, "action_bar", ActionBar{Text: text}); err != nil {
		h.log.Debug().Err(err).Str("user", user.String()).Msg("action bar not delivered")
	}
}

// Name implements activation.Names.
func (h *Hub) Name(user uuid.UUID) string {
	if c, ok := h.clients[user]; ok {
		return c.name
	}
	return user.String()[:8]
}

// Trackers implements label.Sessions.
func (h *Hub) Trackers(user uuid.UUID) []uuid.UUID {
	var out []uuid.UUID
	for id, c := range h.clients {
		if c.tracking[user] {
			out = append(out, id)
		}
	}
	return out
}

// Online implements label.Sessions and traveler.Presence.
func (h *Hub) Online() []uuid.UUID {
	out := make([]uuid.UUID, 0, len(h.clients))
	for id := range h.clients {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

// Deliver queues a relayed announcement for every connected player. It is
// safe to call from any goroutine.
func (h *Hub) Deliver(a relay.Announcement) {
	h.loop.Post(func() { h.broadcast(a) })
}

func (h *Hub) broadcast(a relay.Announcement) {
	for id := range h.clients {
		if err := h.push(id, "announce", a); err != nil {
			h.log.Debug().Err(err).Str("user", id.String()).Msg("announcement not delivered")
		}
	}
}

// LocalAnnouncer tells this hub's players directly, for servers without a relay.
func (h *Hub) LocalAnnouncer() activation.Announcer {
	return localAnnouncer{h: h}
}

type localAnnouncer struct{ h *Hub }

func (l localAnnouncer) Announce(kind, name string, loc world.Location) {
	l.h.broadcast(relay.Announcement{Kind: kind, Name: name, Location: loc, Origin: "local"})
}
