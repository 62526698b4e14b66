package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
)

var ErrInvalidState = errors.New("invalid game state")

// SectStates holds exactly one record per sect, indexed by SectID. On the
// wire it is an object keyed by sect code.
type SectStates [SectCount]SectState

func (ss SectStates) MarshalJSON() ([]byte, error) {
	m := make(map[SectID]SectState, SectCount)
	for i, s := range ss {
		m[SectID(i)] = s
	}
	return json.Marshal(m)
}

func (ss *SectStates) UnmarshalJSON(data []byte) error {
	var m map[SectID]SectState
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	var out SectStates
	for _, id := range AllSects() {
		s, ok := m[id]
		if !ok {
			return fmt.Errorf("%w: missing sect %s", ErrInvalidState, id)
		}
		s.ID = id
		out[id] = s
	}
	*ss = out
	return nil
}

// document mirrors GameState with pointers so missing required fields can
// be told apart from zero values.
type document struct {
	Day         *int        `json:"day"`
	Weather     *string     `json:"weather"`
	ActiveIndex *int        `json:"activeSectIndex"`
	TurnQueue   []SectID    `json:"turnQueue"`
	Sects       *SectStates `json:"sectStates"`
	Log         []LogEntry  `json:"globalLog"`

	CustomMapBg         string            `json:"customMapBg,omitempty"`
	CustomPath          []Point           `json:"customPath,omitempty"`
	CustomSectImages    map[string]string `json:"customSectImages,omitempty"`
	CustomSectPortraits map[string]string `json:"customSectPortraits,omitempty"`
}

// MarshalState encodes the full state as the save document.
func MarshalState(s GameState) ([]byte, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return json.MarshalIndent(s, "", "  ")
}

// UnmarshalState decodes and validates a save document. It never returns a
// partially decoded state.
func UnmarshalState(data []byte) (GameState, error) {
	var doc document
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&doc); err != nil {
		return GameState{}, fmt.Errorf("%w: %v", ErrInvalidState, err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return GameState{}, fmt.Errorf("%w: trailing data after document", ErrInvalidState)
	}
	switch {
	case doc.Day == nil:
		return GameState{}, fmt.Errorf("%w: missing day", ErrInvalidState)
	case doc.Weather == nil:
		return GameState{}, fmt.Errorf("%w: missing weather", ErrInvalidState)
	case doc.ActiveIndex == nil:
		return GameState{}, fmt.Errorf("%w: missing activeSectIndex", ErrInvalidState)
	case doc.TurnQueue == nil:
		return GameState{}, fmt.Errorf("%w: missing turnQueue", ErrInvalidState)
	case doc.Sects == nil:
		return GameState{}, fmt.Errorf("%w: missing sectStates", ErrInvalidState)
	case doc.Log == nil:
		return GameState{}, fmt.Errorf("%w: missing globalLog", ErrInvalidState)
	}

	s := GameState{
		Day:                 *doc.Day,
		Weather:             *doc.Weather,
		ActiveIndex:         *doc.ActiveIndex,
		TurnQueue:           doc.TurnQueue,
		Sects:               *doc.Sects,
		Log:                 doc.Log,
		CustomMapBg:         doc.CustomMapBg,
		CustomPath:          doc.CustomPath,
		CustomSectImages:    doc.CustomSectImages,
		CustomSectPortraits: doc.CustomSectPortraits,
	}
	for i := range s.Sects {
		if s.Sects[i].History == nil {
			s.Sects[i].History = []string{}
		}
		if s.Sects[i].VisitedLocations == nil {
			s.Sects[i].VisitedLocations = []string{}
		}
	}
	if err := s.Validate(); err != nil {
		return GameState{}, err
	}
	return s, nil
}

// Validate checks the structural invariants of a state.
func (s GameState) Validate() error {
	if s.Day < 1 {
		return fmt.Errorf("%w: day %d", ErrInvalidState, s.Day)
	}
	if len(s.TurnQueue) != SectCount {
		return fmt.Errorf("%w: turn queue holds %d sects, want %d", ErrInvalidState, len(s.TurnQueue), SectCount)
	}
	seen := make(map[SectID]bool, len(s.TurnQueue))
	for _, id := range s.TurnQueue {
		if !id.Valid() {
			return fmt.Errorf("%w: %w: %d", ErrInvalidState, ErrUnknownSect, int(id))
		}
		if seen[id] {
			return fmt.Errorf("%w: sect %s queued twice", ErrInvalidState, id)
		}
		seen[id] = true
	}
	if s.ActiveIndex < 0 || s.ActiveIndex >= len(s.TurnQueue) {
		return fmt.Errorf("%w: active index %d out of range", ErrInvalidState, s.ActiveIndex)
	}
	for i, sect := range s.Sects {
		if sect.ID != SectID(i) {
			return fmt.Errorf("%w: sect slot %d holds %s", ErrInvalidState, i, sect.ID)
		}
		if math.IsNaN(sect.Progress) || sect.Progress < 0 || sect.Progress > Goal {
			return fmt.Errorf("%w: sect %s progress %v", ErrInvalidState, sect.ID, sect.Progress)
		}
	}
	for i, e := range s.Log {
		if !e.Type.Valid() {
			return fmt.Errorf("%w: log entry %d has type %q", ErrInvalidState, i, e.Type)
		}
	}
	return nil
}
