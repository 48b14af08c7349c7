// Package relay fans waypoint announcements out over Redis pub/sub so every
// server sharing the Redis instance can tell its players.
package relay

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/holocons/waypoints/internal/world"
)

// Channel is the pub/sub channel announcements travel on.
const Channel = "waypoints:announcements"

// Announcement is a waypoint lifecycle change.
type Announcement struct {
	Kind     string         `json:"kind"`
	Name     string         `json:"name"`
	Location world.Location `json:"location"`
	Origin   string         `json:"origin"`
}

// Relay publishes and receives announcements.
type Relay struct {
	rdb    *redis.Client
	origin string
	log    zerolog.Logger
}

// New returns a relay tagging its own announcements with origin.
func New(rdb *redis.Client, origin string, log zerolog.Logger) *Relay {
	return &Relay{rdb: rdb, origin: origin, log: log}
}

// Announce publishes without blocking the caller; failures are logged.
func (r *Relay) Announce(kind, name string, loc world.Location) {
	msg, err := json.Marshal(Announcement{Kind: kind, Name: name, Location: loc, Origin: r.origin})
	if err != nil {
		r.log.Error().Err(err).Msg("encode announcement")
		return
	}
	go func() {
		if err := r.rdb.Publish(context.Background(), Channel, msg).Err(); err != nil {
			r.log.Warn().Err(err).Msg("error publishing to redis")
		}
	}()
}

// Subscribe calls deliver for every announcement until ctx is done. Messages
// that originate from this relay are included so local players hear them too.
func (r *Relay) Subscribe(ctx context.Context, deliver func(Announcement)) {
	pubsub := r.rdb.Subscribe(ctx, Channel)
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var a Announcement
			if err := json.Unmarshal([]byte(msg.Payload), &a); err != nil {
				r.log.Warn().Err(err).Msg("malformed announcement")
				continue
			}
			deliver(a)
		}
	}
}
