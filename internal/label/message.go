package label

import "github.com/google/uuid"

// Kind of the client-side object used to render a label.
const ArmorStand = "armor_stand"

// Offset from the waypoint block to where the name floats.
const (
	offsetX = 0.5
	offsetY = 1.6
	offsetZ = 0.5
)

// Message is an outbound rendering instruction for one client.
type Message interface {
	Type() string
}

// Create spawns a client-only object.
type Create struct {
	EntityID int32     `json:"entity_id"`
	UUID     uuid.UUID `json:"uuid"`
	Kind     string    `json:"kind"`
	X        float64   `json:"x"`
	Y        float64   `json:"y"`
	Z        float64   `json:"z"`
}

// Metadata applies the label content to a spawned object.
type Metadata struct {
	EntityID    int32  `json:"entity_id"`
	Invisible   bool   `json:"invisible"`
	Name        string `json:"name"`
	NameVisible bool   `json:"name_visible"`
	NoBaseplate bool   `json:"no_baseplate"`
	Marker      bool   `json:"marker"`
}

// Destroy removes client-only objects.
type Destroy struct {
	EntityIDs []int32 `json:"entity_ids"`
}

func (Create) Type() string   { return "create" }
func (Metadata) Type() string { return "metadata" }
func (Destroy) Type() string  { return "destroy" }
