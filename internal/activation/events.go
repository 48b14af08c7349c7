package activation

import (
	"github.com/google/uuid"

	"github.com/holocons/waypoints/internal/world"
)

// PlaceEvent is a block placed by a user.
type PlaceEvent struct {
	Actor uuid.UUID
	// Banner is set when the placed item is a marker banner.
	Banner  bool
	Placed  world.Location
	Against world.Location
}

// InteractEvent is a click by a user.
type InteractEvent struct {
	Actor uuid.UUID
	Block world.Location
	// BannerBlock is set when the clicked block is a marker banner.
	BannerBlock     bool
	HoldingBlock    bool
	RightClickBlock bool
	OffHand         bool
}

// ChunkEvent is a chunk entering or leaving a client's view.
type ChunkEvent struct {
	Client uuid.UUID
	World  string
	Chunk  world.ChunkKey
}
