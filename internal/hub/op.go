package hub

import (
	"encoding/json"

	"github.com/google/uuid"

	"github.com/holocons/waypoints/internal/world"
)

// Op is the message a client sends. Which fields matter depends on Action:
//
//	place         Banner, Placed, Against
//	interact      Block, BannerBlock, HoldingBlock, RightClickBlock, OffHand
//	chunk_load    World, ChunkX, ChunkZ
//	chunk_unload  World, ChunkX, ChunkZ
//	task          Mode, Name
//	track         Target
//	untrack       Target
type Op struct {
	Action string `json:"action"`

	Banner  bool           `json:"banner,omitempty"`
	Placed  world.Location `json:"placed"`
	Against world.Location `json:"against"`

	Block           world.Location `json:"block"`
	BannerBlock     bool           `json:"bannerBlock,omitempty"`
	HoldingBlock    bool           `json:"holdingBlock,omitempty"`
	RightClickBlock bool           `json:"rightClickBlock,omitempty"`
	OffHand         bool           `json:"offHand,omitempty"`

	World  string `json:"world,omitempty"`
	ChunkX int32  `json:"chunkX,omitempty"`
	ChunkZ int32  `json:"chunkZ,omitempty"`

	Mode string `json:"mode,omitempty"`
	Name string `json:"name,omitempty"`

	Target uuid.UUID `json:"target"`
}

// Envelope is the message the server sends.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Chat is a feedback line shown in the chat window.
type Chat struct {
	Text  string `json:"text"`
	Color string `json:"color"`
}

// ActionBar is a short status line shown above the hotbar.
type ActionBar struct {
	Text string `json:"text"`
}

func encode(typ string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Type: typ, Payload: data})
}
