// Package engine resolves sect turns: scheduling, collisions, encounters and
// the commit of DM adjudications.
package engine

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tatianab/seven-sects/internal/models"
	"go.uber.org/zap"
)

var (
	ErrBusy               = errors.New("engine is waiting on the content provider")
	ErrInteractionPending = errors.New("an interaction is awaiting adjudication")
	ErrConflictPending    = errors.New("pending interaction is a conflict")
)

// Engine owns the session state. Every operation derives a new GameState
// from the current one and swaps it in whole. Only one turn is in flight at
// a time; while the content provider is being awaited, other commands fail
// with ErrBusy.
type Engine struct {
	mu      sync.Mutex
	state   models.GameState
	pending *Interaction
	phase   Phase
	busy    bool

	provider ContentProvider
	locator  Locator
	roll     WeatherRoller
	timeout  time.Duration
	logger   *zap.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithWeatherRoller replaces the time-seeded weather roll.
func WithWeatherRoller(r WeatherRoller) Option {
	return func(e *Engine) { e.roll = r }
}

// WithProviderTimeout bounds each content provider call. Zero disables it.
func WithProviderTimeout(d time.Duration) Option {
	return func(e *Engine) { e.timeout = d }
}

// WithState starts the engine from s instead of a new game.
func WithState(s models.GameState) Option {
	return func(e *Engine) { e.state = s.Clone() }
}

// New returns an engine for a fresh game unless WithState is given.
func New(provider ContentProvider, locator Locator, opts ...Option) *Engine {
	e := &Engine{
		provider: provider,
		locator:  locator,
		logger:   zap.NewNop(),
		roll:     NewWeatherRoller(time.Now().UnixNano(), Weathers),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.state.TurnQueue == nil {
		e.state = e.freshState()
	}
	return e
}

func (e *Engine) freshState() models.GameState {
	return models.NewGameState(e.roll(), e.locator.Locate(0).Name)
}

// NewGame discards the session and starts over on day one.
func (e *Engine) NewGame() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.busy {
		return ErrBusy
	}
	e.state = e.freshState()
	e.pending = nil
	e.phase = PhaseIdle
	e.logger.Info("new game", zap.String("weather", e.state.Weather))
	return nil
}

// State returns a copy of the current state.
func (e *Engine) State() models.GameState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.Clone()
}

// Pending returns the interaction awaiting adjudication, if any.
func (e *Engine) Pending() (Interaction, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.pending == nil {
		return Interaction{}, false
	}
	in := *e.pending
	in.Payload.Event = in.Payload.Event.Clone()
	return in, true
}

// Phase reports where the interaction state machine stands.
func (e *Engine) Phase() Phase {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.phase
}

// Busy reports whether a content provider call is outstanding.
func (e *Engine) Busy() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.busy
}

// Locate exposes the location index used by the engine.
func (e *Engine) Locate(progress float64) models.LocationData {
	return e.locator.Locate(progress)
}

func (e *Engine) transition(t trigger) {
	next, err := e.phase.next(t)
	if err != nil {
		// Callers check preconditions first; reaching this is a bug.
		panic(err)
	}
	e.phase = next
}

func (e *Engine) providerContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, e.timeout)
}

// TurnResult describes how StartTurn ended.
type TurnResult struct {
	// Skipped is set when the active sect was held back by skipNextTurn and
	// its turn was consumed without an encounter.
	Skipped     bool
	Sect        models.SectID
	Interaction *Interaction
}

// StartTurn proposes moving the active sect by magnitude. A sect carrying
// skipNextTurn loses the turn instead. Otherwise the content provider is
// consulted and the resulting interaction becomes pending. On provider
// failure nothing changes and the same proposal may be retried.
func (e *Engine) StartTurn(ctx context.Context, magnitude float64) (TurnResult, error) {
	e.mu.Lock()
	if e.busy {
		e.mu.Unlock()
		return TurnResult{}, ErrBusy
	}
	if e.pending != nil {
		e.mu.Unlock()
		return TurnResult{}, ErrInteractionPending
	}

	active := e.state.ActiveSect()
	log := e.logger.With(zap.Stringer("sect", active), zap.Int("day", e.state.Day))
	if e.state.Sects[active].SkipNextTurn {
		e.state = ForceSkip(e.state, active, SkipDebuff, e.roll)
		e.transition(trigSkipped)
		e.mu.Unlock()
		log.Info("turn skipped", zap.String("reason", "debuff"))
		return TurnResult{Skipped: true, Sect: active}, nil
	}

	if math.IsNaN(magnitude) || math.IsInf(magnitude, 0) {
		magnitude = 0
	}
	from := e.state.Sects[active].Progress
	target := models.ClampProgress(from + magnitude)
	snapshot := e.state.Clone()
	e.busy = true
	e.mu.Unlock()

	log.Debug("turn started", zap.Float64("from", from), zap.Float64("target", target))

	pctx, cancel := e.providerContext(ctx)
	in, err := resolveMove(pctx, e.provider, e.locator, snapshot, active, target, 0)
	cancel()

	e.mu.Lock()
	defer e.mu.Unlock()
	e.busy = false
	if err != nil {
		log.Warn("turn resolution failed", zap.Error(err))
		return TurnResult{}, fmt.Errorf("resolve turn: %w", err)
	}

	e.pending = &in
	if in.Kind == KindConflict {
		e.transition(trigConflictFound)
		log.Info("collision",
			zap.Stringer("occupant", in.Occupant),
			zap.String("location", in.LocationName),
			zap.Stringer("interaction", in.ID))
	} else {
		e.transition(trigOpportunityFound)
		log.Info("opportunity",
			zap.String("location", in.LocationName),
			zap.Bool("bound_event", in.Payload.Event != nil),
			zap.Stringer("interaction", in.ID))
	}
	out := in
	return TurnResult{Sect: active, Interaction: &out}, nil
}

// Commit applies adj to the pending opportunity and advances the turn
// (or repeats it when adj.Repeat is set). Committing with no pending
// interaction or a stale id is a no-op and reports false.
func (e *Engine) Commit(id uuid.UUID, adj Adjudication) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.busy {
		return false, ErrBusy
	}
	if e.pending == nil || e.pending.ID != id {
		return false, nil
	}
	if e.pending.Kind != KindOpportunity {
		return false, ErrConflictPending
	}

	in := *e.pending
	next := applyOpportunity(e.state, e.locator, in, adj)
	e.pending = nil
	e.state = Advance(next, adj.Repeat, e.roll)
	e.transition(trigCommitted)

	st := e.state.Sects[in.Mover]
	e.logger.Info("opportunity committed",
		zap.Stringer("sect", in.Mover),
		zap.Stringer("interaction", in.ID),
		zap.Float64("progress", st.Progress),
		zap.Int("move_delta", adj.MoveDelta),
		zap.Bool("repeat", adj.Repeat),
		zap.Bool("skip_next", adj.SkipNextTurn),
		zap.Bool("day_complete", e.state.DayComplete))
	return true, nil
}

// ResolveConflict settles the pending conflict and immediately looks up the
// opportunity at the contested location for the mover, which becomes the
// new pending interaction. The scheduler does not advance. A stale id is a
// no-op returning nil. On provider failure the conflict stays pending.
func (e *Engine) ResolveConflict(ctx context.Context, id uuid.UUID, d ConflictDecision) (*Interaction, error) {
	e.mu.Lock()
	if e.busy {
		e.mu.Unlock()
		return nil, ErrBusy
	}
	if e.pending == nil || e.pending.ID != id || e.pending.Kind != KindConflict {
		e.mu.Unlock()
		return nil, nil
	}
	conflict := *e.pending
	if err := validateDecision(conflict, d); err != nil {
		e.mu.Unlock()
		return nil, err
	}
	snapshot := e.state.Clone()
	e.busy = true
	e.mu.Unlock()

	pctx, cancel := e.providerContext(ctx)
	opp, err := opportunityInteraction(pctx, e.provider, e.locator, snapshot, conflict.Mover, conflict.PendingProgress)
	cancel()

	e.mu.Lock()
	defer e.mu.Unlock()
	e.busy = false
	if err != nil {
		e.logger.Warn("conflict follow-up failed", zap.Stringer("interaction", conflict.ID), zap.Error(err))
		return nil, fmt.Errorf("resolve conflict: %w", err)
	}

	e.state = applyConflict(e.state, e.locator, conflict, d)
	e.pending = &opp
	e.transition(trigConflictResolved)

	e.logger.Info("conflict resolved",
		zap.Stringer("mover", conflict.Mover),
		zap.Stringer("occupant", conflict.Occupant),
		zap.Stringer("outcome", d.Outcome),
		zap.Stringer("winner", d.Winner),
		zap.Int("retreat", d.Retreat),
		zap.Stringer("interaction", opp.ID))
	out := opp
	return &out, nil
}

// Skip consumes the active sect's turn on the DM's command.
func (e *Engine) Skip() (models.SectID, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.busy {
		return 0, ErrBusy
	}
	if e.pending != nil {
		return 0, ErrInteractionPending
	}
	active := e.state.ActiveSect()
	e.state = ForceSkip(e.state, active, SkipManual, e.roll)
	e.transition(trigSkipped)
	e.logger.Info("turn skipped", zap.Stringer("sect", active), zap.String("reason", "manual"))
	return active, nil
}

// EditStat overwrites one counter outside the interaction flow.
func (e *Engine) EditStat(sect models.SectID, stat models.StatKind, value int) error {
	if !sect.Valid() {
		return fmt.Errorf("%w: %d", models.ErrUnknownSect, int(sect))
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.busy {
		return ErrBusy
	}
	next := e.state.Clone()
	stats, err := next.Sects[sect].Stats.With(stat, value)
	if err != nil {
		return err
	}
	next.Sects[sect].Stats = stats
	e.state = next
	e.logger.Info("stat edited", zap.Stringer("sect", sect), zap.String("stat", string(stat)), zap.Int("value", value))
	return nil
}

// Save encodes the current state as a save document.
func (e *Engine) Save() ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return models.MarshalState(e.state)
}

// Load replaces the whole state from a save document and drops any pending
// interaction. Malformed input leaves the engine untouched.
func (e *Engine) Load(data []byte) error {
	s, err := models.UnmarshalState(data)
	if err != nil {
		return fmt.Errorf("load: %w", err)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.busy {
		return ErrBusy
	}
	e.state = s
	e.pending = nil
	e.transition(trigLoaded)
	e.logger.Info("state loaded", zap.Int("day", s.Day), zap.Stringer("active", s.ActiveSect()))
	return nil
}
