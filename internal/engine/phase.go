package engine

import "fmt"

// Phase is where the engine stands within a sect's turn.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseAwaitingConflict
	PhaseAwaitingOpportunity
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseAwaitingConflict:
		return "awaiting-conflict"
	case PhaseAwaitingOpportunity:
		return "awaiting-opportunity"
	}
	return fmt.Sprintf("Phase(%d)", int(p))
}

func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

type trigger int

const (
	trigConflictFound trigger = iota
	trigOpportunityFound
	trigConflictResolved
	trigCommitted
	trigSkipped
	trigLoaded
)

var transitions = map[Phase]map[trigger]Phase{
	PhaseIdle: {
		trigConflictFound:    PhaseAwaitingConflict,
		trigOpportunityFound: PhaseAwaitingOpportunity,
		trigSkipped:          PhaseIdle,
		trigLoaded:           PhaseIdle,
	},
	PhaseAwaitingConflict: {
		trigConflictResolved: PhaseAwaitingOpportunity,
		trigLoaded:           PhaseIdle,
	},
	PhaseAwaitingOpportunity: {
		trigCommitted: PhaseIdle,
		trigLoaded:    PhaseIdle,
	},
}

func (p Phase) next(t trigger) (Phase, error) {
	to, ok := transitions[p][t]
	if !ok {
		return p, fmt.Errorf("no transition from %s on trigger %d", p, int(t))
	}
	return to, nil
}
