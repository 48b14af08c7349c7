package world

import (
	"fmt"
	"strconv"
	"strings"
)

// Location is a block position inside a named world.
type Location struct {
	World string `json:"world"`
	X     int    `json:"x"`
	Y     int    `json:"y"`
	Z     int    `json:"z"`
}

// Face is the direction from one block to an adjacent one.
type Face int

const (
	FaceNone Face = iota
	FaceUp
	FaceDown
	FaceNorth
	FaceSouth
	FaceEast
	FaceWest
)

// FaceBetween returns the face of from that touches to, or FaceNone when the blocks
// are not direct neighbours in the same world.
func FaceBetween(from, to Location) Face {
	if from.World != to.World {
		return FaceNone
	}
	dx, dy, dz := to.X-from.X, to.Y-from.Y, to.Z-from.Z
	switch {
	case dx == 0 && dy == 1 && dz == 0:
		return FaceUp
	case dx == 0 && dy == -1 && dz == 0:
		return FaceDown
	case dx == 0 && dy == 0 && dz == -1:
		return FaceNorth
	case dx == 0 && dy == 0 && dz == 1:
		return FaceSouth
	case dx == 1 && dy == 0 && dz == 0:
		return FaceEast
	case dx == -1 && dy == 0 && dz == 0:
		return FaceWest
	}
	return FaceNone
}

// ChunkKey packs the 16x16 column containing a block into one value.
type ChunkKey int64

// ChunkAt returns the key of the chunk at chunk coordinates x, z.
func ChunkAt(x, z int32) ChunkKey {
	return ChunkKey(int64(x)&0xffffffff | int64(z)<<32)
}

// Chunk returns the key of the chunk containing l.
func (l Location) Chunk() ChunkKey {
	return ChunkAt(int32(l.X>>4), int32(l.Z>>4))
}

// X returns the chunk x coordinate.
func (k ChunkKey) X() int32 { return int32(int64(k) & 0xffffffff) }

// Z returns the chunk z coordinate.
func (k ChunkKey) Z() int32 { return int32(int64(k) >> 32) }

// Ref identifies a waypoint by value: one waypoint per chunk per world.
type Ref struct {
	World string
	Chunk ChunkKey
}

// RefOf returns the reference of the chunk containing l.
func RefOf(l Location) Ref {
	return Ref{World: l.World, Chunk: l.Chunk()}
}

func (r Ref) String() string {
	return r.World + "/" + strconv.FormatInt(int64(r.Chunk), 10)
}

// ParseRef parses the text form produced by Ref.String.
func ParseRef(s string) (Ref, error) {
	i := strings.LastIndexByte(s, '/')
	if i <= 0 {
		return Ref{}, fmt.Errorf("parse waypoint ref %q: missing world", s)
	}
	key, err := strconv.ParseInt(s[i+1:], 10, 64)
	if err != nil {
		return Ref{}, fmt.Errorf("parse waypoint ref %q: %w", s, err)
	}
	return Ref{World: s[:i], Chunk: ChunkKey(key)}, nil
}

// MarshalText implements encoding.TextMarshaler.
func (r Ref) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (r *Ref) UnmarshalText(b []byte) error {
	parsed, err := ParseRef(string(b))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}
