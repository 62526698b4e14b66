package models

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
)

// Goal is the progress value at which a sect has reached the end of the path.
const Goal = 120

const (
	InitialLastMoveDesc = "蓄势待发"
	OpeningLogLine      = "七曜同宫，逆鳞现世。七大门派整装待发。"
)

var ErrUnknownStat = errors.New("unknown stat")

// StatKind names one of the four sect counters.
type StatKind string

const (
	StatMartial  StatKind = "martial"
	StatStrategy StatKind = "strategy"
	StatWealth   StatKind = "wealth"
	StatPrestige StatKind = "prestige"
	// StatNone is only meaningful as an event check: it always passes.
	StatNone StatKind = "none"
)

var statKinds = []StatKind{StatMartial, StatStrategy, StatWealth, StatPrestige}

var statLabels = map[StatKind]string{
	StatMartial:  "武力",
	StatStrategy: "智谋",
	StatWealth:   "财富",
	StatPrestige: "威望",
	StatNone:     "无",
}

// StatKinds returns the four counters in display order.
func StatKinds() []StatKind {
	return slices.Clone(statKinds)
}

func (k StatKind) Label() string {
	if l, ok := statLabels[k]; ok {
		return l
	}
	return string(k)
}

// ParseStat accepts the machine name or the Chinese label.
func ParseStat(s string) (StatKind, error) {
	s = strings.TrimSpace(s)
	for k, label := range statLabels {
		if strings.EqualFold(s, string(k)) || s == label {
			return k, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownStat, s)
}

// Stats are unbounded integer counters; they may go negative.
type Stats struct {
	Martial  int `json:"martial" yaml:"martial,omitempty"`
	Strategy int `json:"strategy" yaml:"strategy,omitempty"`
	Wealth   int `json:"wealth" yaml:"wealth,omitempty"`
	Prestige int `json:"prestige" yaml:"prestige,omitempty"`
}

func InitialStats() Stats {
	return Stats{Martial: 20, Strategy: 20, Wealth: 20}
}

func (s Stats) Add(d Stats) Stats {
	return Stats{
		Martial:  s.Martial + d.Martial,
		Strategy: s.Strategy + d.Strategy,
		Wealth:   s.Wealth + d.Wealth,
		Prestige: s.Prestige + d.Prestige,
	}
}

func (s Stats) IsZero() bool {
	return s == Stats{}
}

func (s Stats) Get(k StatKind) (int, error) {
	switch k {
	case StatMartial:
		return s.Martial, nil
	case StatStrategy:
		return s.Strategy, nil
	case StatWealth:
		return s.Wealth, nil
	case StatPrestige:
		return s.Prestige, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownStat, k)
}

func (s Stats) With(k StatKind, v int) (Stats, error) {
	switch k {
	case StatMartial:
		s.Martial = v
	case StatStrategy:
		s.Strategy = v
	case StatWealth:
		s.Wealth = v
	case StatPrestige:
		s.Prestige = v
	default:
		return s, fmt.Errorf("%w: %q", ErrUnknownStat, k)
	}
	return s, nil
}

// SectState is the persistent per-sect record.
type SectState struct {
	ID                  SectID   `json:"id"`
	Progress            float64  `json:"locationProgress"`
	CurrentLocationName string   `json:"currentLocationName"`
	Stats               Stats    `json:"stats"`
	History             []string `json:"history"`
	VisitedLocations    []string `json:"visitedLocations"`
	LastMoveDesc        string   `json:"lastMoveDesc"`
	SkipNextTurn        bool     `json:"skipNextTurn"`
}

// Bucket is the integer-floored progress used for lookups and collisions.
func (s SectState) Bucket() int {
	return Bucket(s.Progress)
}

func (s SectState) clone() SectState {
	s.History = slices.Clone(s.History)
	s.VisitedLocations = slices.Clone(s.VisitedLocations)
	return s
}

type LogType string

const (
	LogMove     LogType = "move"
	LogConflict LogType = "conflict"
	LogEvent    LogType = "event"
	LogSystem   LogType = "system"
)

func (t LogType) Valid() bool {
	switch t {
	case LogMove, LogConflict, LogEvent, LogSystem:
		return true
	}
	return false
}

type LogEntry struct {
	Day     int     `json:"day"`
	Type    LogType `json:"type"`
	Content string  `json:"content"`
}

// Point is a percentage coordinate of a custom map path.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// GameState is the whole session. Operations treat it as a value: they
// derive the next state from a Clone and never mutate the input.
type GameState struct {
	Day         int        `json:"day"`
	Weather     string     `json:"weather"`
	ActiveIndex int        `json:"activeSectIndex"`
	TurnQueue   []SectID   `json:"turnQueue"`
	Sects       SectStates `json:"sectStates"`
	Log         []LogEntry `json:"globalLog"`
	DayComplete bool       `json:"-"`

	CustomMapBg         string            `json:"customMapBg,omitempty"`
	CustomPath          []Point           `json:"customPath,omitempty"`
	CustomSectImages    map[string]string `json:"customSectImages,omitempty"`
	CustomSectPortraits map[string]string `json:"customSectPortraits,omitempty"`
}

// NewGameState builds day one with every sect at the start location.
func NewGameState(weather, startLocation string) GameState {
	s := GameState{
		Day:       1,
		Weather:   weather,
		TurnQueue: DefaultTurnQueue(),
		Log:       []LogEntry{{Day: 1, Type: LogSystem, Content: OpeningLogLine}},
	}
	for _, id := range AllSects() {
		s.Sects[id] = SectState{
			ID:                  id,
			CurrentLocationName: startLocation,
			Stats:               InitialStats(),
			History:             []string{},
			VisitedLocations:    []string{startLocation},
			LastMoveDesc:        InitialLastMoveDesc,
		}
	}
	return s
}

// ActiveSect is the sect whose turn it is.
func (s GameState) ActiveSect() SectID {
	return s.TurnQueue[s.ActiveIndex]
}

// Clone returns a deep copy.
func (s GameState) Clone() GameState {
	out := s
	out.TurnQueue = slices.Clone(s.TurnQueue)
	out.Log = slices.Clone(s.Log)
	for i := range out.Sects {
		out.Sects[i] = s.Sects[i].clone()
	}
	out.CustomPath = slices.Clone(s.CustomPath)
	out.CustomSectImages = maps.Clone(s.CustomSectImages)
	out.CustomSectPortraits = maps.Clone(s.CustomSectPortraits)
	return out
}

// AppendLog appends an entry stamped with the current day.
func (s *GameState) AppendLog(t LogType, content string) {
	s.Log = append(s.Log, LogEntry{Day: s.Day, Type: t, Content: content})
}

// Finishers lists the sects that have reached the goal, in queue order.
func (s GameState) Finishers() []SectID {
	var out []SectID
	for _, id := range s.TurnQueue {
		if s.Sects[id].Progress >= Goal {
			out = append(out, id)
		}
	}
	return out
}
