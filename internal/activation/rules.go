package activation

// Rules holds the configured limits of the waypoint economy.
type Rules struct {
	// TokenRequirement is the number of contributors that activates a waypoint.
	TokenRequirement int
	WaypointWorlds   map[string]bool
	HomeWorlds       map[string]bool
	CampWorlds       map[string]bool
}

// NewRules builds Rules from world name lists.
func NewRules(requirement int, waypointWorlds, homeWorlds, campWorlds []string) Rules {
	return Rules{
		TokenRequirement: requirement,
		WaypointWorlds:   set(waypointWorlds),
		HomeWorlds:       set(homeWorlds),
		CampWorlds:       set(campWorlds),
	}
}

func set(names []string) map[string]bool {
	m := make(map[string]bool, len(names))
	for _, name := range names {
		m[name] = true
	}
	return m
}
