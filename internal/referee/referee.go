// Package referee makes rulings without a human DM, for simulations and the
// TUI "auto" command.
package referee

import (
	"context"
	"fmt"

	"github.com/tatianab/seven-sects/internal/engine"
	"github.com/tatianab/seven-sects/internal/models"
)

// DecideConflict gives the win to the sect with more martial. Equal martial
// means the two cooperate.
func DecideConflict(s models.GameState, in engine.Interaction) engine.ConflictDecision {
	mover := s.Sects[in.Mover].Stats.Martial
	occupant := s.Sects[in.Occupant].Stats.Martial
	switch {
	case mover > occupant:
		return engine.ConflictDecision{Winner: in.Mover, Outcome: engine.OutcomeBattle, Retreat: engine.DefaultRetreat}
	case occupant > mover:
		return engine.ConflictDecision{Winner: in.Occupant, Outcome: engine.OutcomeBattle, Retreat: engine.DefaultRetreat}
	}
	return engine.ConflictDecision{Outcome: engine.OutcomeCooperate}
}

// DecideOpportunity takes the success branch of the first option whose check
// the sect passes, or option A's fail branch if none pass. Scenes without an
// event commit nothing but the default log line.
func DecideOpportunity(s models.GameState, in engine.Interaction) (engine.Adjudication, error) {
	ev := in.Event()
	if ev == nil {
		return engine.Adjudication{}, nil
	}
	stats := s.Sects[in.Mover].Stats
	for i, opt := range ev.Options {
		if opt.Passes(stats) {
			return engine.FromResult(in.Mover, ev, i, true)
		}
	}
	return engine.FromResult(in.Mover, ev, 0, false)
}

// Report summarises one refereed turn.
type Report struct {
	Sect     models.SectID
	Skipped  bool
	Conflict *engine.Interaction
	Decision engine.ConflictDecision
	Scene    *engine.Interaction
	Ruling   engine.Adjudication
}

// Resolve settles whatever interaction is pending on e: a conflict first,
// then the opportunity that follows it. It returns false if nothing was
// pending.
func Resolve(ctx context.Context, e *engine.Engine, r *Report) (bool, error) {
	in, ok := e.Pending()
	if !ok {
		return false, nil
	}
	r.Sect = in.Mover

	if in.Kind == engine.KindConflict {
		conflict := in
		r.Conflict = &conflict
		r.Decision = DecideConflict(e.State(), in)
		next, err := e.ResolveConflict(ctx, in.ID, r.Decision)
		if err != nil {
			return false, err
		}
		if next == nil {
			return false, fmt.Errorf("conflict %s vanished while resolving", in.ID)
		}
		in = *next
	}

	scene := in
	r.Scene = &scene
	adj, err := DecideOpportunity(e.State(), in)
	if err != nil {
		return false, err
	}
	r.Ruling = adj
	committed, err := e.Commit(in.ID, adj)
	if err != nil {
		return false, err
	}
	if !committed {
		return false, fmt.Errorf("opportunity %s vanished while committing", in.ID)
	}
	return true, nil
}

// PlayTurn runs the active sect's whole turn: the proposal, any conflict and
// the opportunity. A pending interaction is settled instead of starting a
// new turn.
func PlayTurn(ctx context.Context, e *engine.Engine, magnitude float64) (Report, error) {
	var r Report
	if _, ok := e.Pending(); ok {
		_, err := Resolve(ctx, e, &r)
		return r, err
	}

	res, err := e.StartTurn(ctx, magnitude)
	if err != nil {
		return r, err
	}
	r.Sect = res.Sect
	if res.Skipped {
		r.Skipped = true
		return r, nil
	}
	_, err = Resolve(ctx, e, &r)
	return r, err
}
