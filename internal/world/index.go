package world

// Index is the in-memory spatial index of waypoints, at most one per chunk per world.
//
// It is not safe for concurrent use; callers mutate it from the dispatch loop.
type Index struct {
	waypoints map[Ref]*Waypoint
}

// NewIndex returns an empty index.
func NewIndex() *Index {
	return &Index{waypoints: make(map[Ref]*Waypoint)}
}

// IsWaypoint reports whether the chunk containing loc holds a waypoint.
func (x *Index) IsWaypoint(loc Location) bool {
	_, ok := x.waypoints[RefOf(loc)]
	return ok
}

// Near returns the waypoint in the chunk containing loc, or nil.
func (x *Index) Near(loc Location) *Waypoint {
	return x.waypoints[RefOf(loc)]
}

// ByPartition returns the waypoint stored under world and key, or nil.
func (x *Index) ByPartition(world string, key ChunkKey) *Waypoint {
	return x.waypoints[Ref{World: world, Chunk: key}]
}

// Create places a new inactive waypoint at loc. It returns nil when a waypoint
// already exists in the surrounding 3x3 chunks.
func (x *Index) Create(loc Location, name string) *Waypoint {
	center := loc.Chunk()
	for dx := int32(-1); dx <= 1; dx++ {
		for dz := int32(-1); dz <= 1; dz++ {
			ref := Ref{World: loc.World, Chunk: ChunkAt(center.X()+dx, center.Z()+dz)}
			if _, ok := x.waypoints[ref]; ok {
				return nil
			}
		}
	}
	wp := NewWaypoint(loc, name)
	x.waypoints[wp.Ref()] = wp
	return wp
}

// Remove deletes wp from the index if it is still the stored waypoint for its chunk.
func (x *Index) Remove(wp *Waypoint) {
	if cur, ok := x.waypoints[wp.Ref()]; ok && cur == wp {
		delete(x.waypoints, wp.Ref())
	}
}

// Len returns the number of stored waypoints.
func (x *Index) Len() int { return len(x.waypoints) }
