package models

import (
	"math"
	"slices"
)

// Result is one branch (success or fail) of an event option.
type Result struct {
	Desc     string `json:"desc,omitempty" yaml:"desc,omitempty"`
	Stats    Stats  `json:"stats,omitempty" yaml:"stats,omitempty"`
	Move     int    `json:"move,omitempty" yaml:"move,omitempty"`
	Item     string `json:"item,omitempty" yaml:"item,omitempty"`
	StopTurn bool   `json:"stopTurn,omitempty" yaml:"stop_turn,omitempty"`
}

type EventOption struct {
	Label     string   `json:"label" yaml:"label"`
	ReqText   string   `json:"reqText" yaml:"req_text"`
	CheckStat StatKind `json:"checkStat" yaml:"check_stat"`
	CheckVal  int      `json:"checkVal" yaml:"check_val"`
	Success   Result   `json:"success" yaml:"success"`
	Fail      Result   `json:"fail" yaml:"fail"`
}

// Passes reports whether stats meet the option's check.
func (o EventOption) Passes(s Stats) bool {
	if o.CheckStat == StatNone || o.CheckStat == "" {
		return true
	}
	v, err := s.Get(o.CheckStat)
	if err != nil {
		return false
	}
	return v >= o.CheckVal
}

// GameEvent is a rulebook event bound to a location. Options always has
// exactly two entries once loaded.
type GameEvent struct {
	Title     string        `json:"title" yaml:"title"`
	Narrative string        `json:"narrative" yaml:"narrative"`
	Options   []EventOption `json:"options" yaml:"options"`
}

// Clone returns a deep copy; nil stays nil.
func (e *GameEvent) Clone() *GameEvent {
	if e == nil {
		return nil
	}
	out := *e
	out.Options = slices.Clone(e.Options)
	return &out
}

// LocationData is one bucket of the location table.
type LocationData struct {
	ID    int        `json:"id"`
	Name  string     `json:"name"`
	Desc  string     `json:"desc"`
	Event *GameEvent `json:"event,omitempty"`
}

// EventPayload is what the content provider returns for an opportunity.
// A nil Event means the generic "nothing happens" fallback.
type EventPayload struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Event       *GameEvent `json:"eventData,omitempty"`
}

// ClampProgress bounds p to [0, Goal]. NaN clamps to 0.
func ClampProgress(p float64) float64 {
	if math.IsNaN(p) || p < 0 {
		return 0
	}
	if p > Goal {
		return Goal
	}
	return p
}

// Bucket floors a clamped progress value.
func Bucket(p float64) int {
	return int(math.Floor(ClampProgress(p)))
}
