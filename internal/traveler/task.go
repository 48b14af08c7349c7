package traveler

import (
	"fmt"
	"strings"

	"github.com/holocons/waypoints/internal/dispatch"
)

// Mode is the kind of operation a pending Task performs.
type Mode int

const (
	ModeCreate Mode = iota + 1
	ModeActivate
	ModeAddPoint
	ModeRemovePoint
	ModeDelete
	ModeSetCamp
	ModeSetHome
)

var modeNames = map[Mode]string{
	ModeCreate:      "CREATE",
	ModeActivate:    "ACTIVATE",
	ModeAddPoint:    "ADDPOINT",
	ModeRemovePoint: "REMOVEPOINT",
	ModeDelete:      "DELETE",
	ModeSetCamp:     "SETCAMP",
	ModeSetHome:     "SETHOME",
}

func (m Mode) String() string {
	if name, ok := modeNames[m]; ok {
		return name
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// ParseMode accepts the upper or lower case mode name.
func ParseMode(s string) (Mode, error) {
	upper := strings.ToUpper(s)
	for mode, name := range modeNames {
		if name == upper {
			return mode, nil
		}
	}
	return 0, fmt.Errorf("unknown task mode %q", s)
}

// Task is a pending multi-step operation. Name is the display name of the
// waypoint a CREATE task will place.
type Task struct {
	Mode Mode
	Name string

	cancelled bool
	expiry    dispatch.Timer
}

// NewTask returns a task for mode.
func NewTask(mode Mode) *Task {
	return &Task{Mode: mode}
}

// NewCreateTask returns a CREATE task that names the new waypoint.
func NewCreateTask(name string) *Task {
	return &Task{Mode: ModeCreate, Name: name}
}

// Cancelled reports whether the task was replaced, unregistered or expired.
func (t *Task) Cancelled() bool { return t.cancelled }

func (t *Task) cancel() {
	t.cancelled = true
	if t.expiry != nil {
		t.expiry.Stop()
		t.expiry = nil
	}
}
