package relay

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holocons/waypoints/internal/world"
)

func TestAnnounceReachesSubscribers(t *testing.T) {
	url := os.Getenv("WAYPOINTS_TEST_REDIS_URL")
	if url == "" {
		t.Skip("WAYPOINTS_TEST_REDIS_URL not set")
	}
	opts, err := redis.ParseURL(url)
	require.NoError(t, err)
	rdb := redis.NewClient(opts)
	t.Cleanup(func() { _ = rdb.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r := New(rdb, "test", zerolog.Nop())
	got := make(chan Announcement, 1)
	go r.Subscribe(ctx, func(a Announcement) { got <- a })

	loc := world.Location{World: "world", X: 1, Y: 2, Z: 3}
	require.Eventually(t, func() bool {
		r.Announce("activated", "Harbor", loc)
		select {
		case a := <-got:
			assert.Equal(t, Announcement{Kind: "activated", Name: "Harbor", Location: loc, Origin: "test"}, a)
			return true
		case <-time.After(50 * time.Millisecond):
			return false
		}
	}, 2*time.Second, 10*time.Millisecond)
}
