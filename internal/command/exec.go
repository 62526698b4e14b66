package command

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/google/uuid"
	"github.com/tatianab/seven-sects/internal/engine"
	"github.com/tatianab/seven-sects/internal/models"
	"github.com/tatianab/seven-sects/internal/referee"
	"github.com/tatianab/seven-sects/internal/store"
	"go.uber.org/zap"
)

var ErrNoOpportunity = errors.New("no opportunity awaiting a ruling")

// Draft is the DM's adjudication being edited for one pending opportunity.
type Draft struct {
	Interaction uuid.UUID
	Adj         engine.Adjudication
}

// Reply is what a command produced. Draft is a copy taken after the command
// ran and is nil when no opportunity is pending.
type Reply struct {
	Text  string
	Draft *Draft
	Quit  bool
}

// Executor runs commands against an engine. It is not safe for concurrent
// use; callers run one command at a time.
type Executor struct {
	eng    *engine.Engine
	slots  store.Slots
	logger *zap.Logger
	roll   func() float64
	draft  Draft
}

// NewExecutor wires an executor. slots may be nil, which disables save and
// load. seed drives the magnitude rolled by auto when none is given.
func NewExecutor(eng *engine.Engine, slots store.Slots, logger *zap.Logger, seed int64) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	rng := rand.New(rand.NewPCG(uint64(seed), uint64(seed)>>1|1))
	return &Executor{
		eng:    eng,
		slots:  slots,
		logger: logger,
		roll:   func() float64 { return float64(rng.IntN(10) + 1) },
	}
}

// Draft returns the current draft, if an opportunity is pending.
func (x *Executor) Draft() (Draft, bool) {
	return x.syncDraft()
}

// syncDraft starts a fresh draft whenever the pending opportunity changes.
func (x *Executor) syncDraft() (Draft, bool) {
	in, ok := x.eng.Pending()
	if !ok || in.Kind != engine.KindOpportunity {
		x.draft = Draft{}
		return Draft{}, false
	}
	if x.draft.Interaction != in.ID {
		x.draft = Draft{Interaction: in.ID}
	}
	return x.draft, true
}

func (x *Executor) reply(text string) Reply {
	r := Reply{Text: text}
	if d, ok := x.syncDraft(); ok {
		r.Draft = &d
	}
	return r
}

// Run parses and executes one line.
func (x *Executor) Run(ctx context.Context, line string) (Reply, error) {
	cmd, err := Parse(line)
	if err != nil {
		return x.reply(""), err
	}
	return x.Execute(ctx, cmd)
}

func (x *Executor) Execute(ctx context.Context, cmd Command) (Reply, error) {
	x.logger.Debug("command", zap.String("verb", string(cmd.Verb)))
	switch cmd.Verb {
	case VerbGo:
		res, err := x.eng.StartTurn(ctx, cmd.Magnitude)
		if err != nil {
			return x.reply(""), err
		}
		if res.Skipped {
			return x.reply(fmt.Sprintf("%s is held back and loses the turn.", res.Sect.Name())), nil
		}
		return x.reply(Describe(*res.Interaction)), nil

	case VerbSkip:
		id, err := x.eng.Skip()
		if err != nil {
			return x.reply(""), err
		}
		return x.reply(fmt.Sprintf("%s skips the turn.", id.Name())), nil

	case VerbSet:
		if err := x.eng.EditStat(cmd.Sect, cmd.Stat, cmd.Value); err != nil {
			return x.reply(""), err
		}
		return x.reply(fmt.Sprintf("%s %s = %d", cmd.Sect.Name(), cmd.Stat.Label(), cmd.Value)), nil

	case VerbPick:
		return x.pick(cmd)

	case VerbStat, VerbDelta, VerbStop, VerbAgain, VerbLog:
		return x.edit(cmd)

	case VerbCommit:
		d, ok := x.syncDraft()
		if !ok {
			if in, pending := x.eng.Pending(); pending && in.Kind == engine.KindConflict {
				return x.reply(""), engine.ErrConflictPending
			}
			return x.reply(""), ErrNoOpportunity
		}
		committed, err := x.eng.Commit(d.Interaction, d.Adj)
		if err != nil {
			return x.reply(""), err
		}
		if !committed {
			return x.reply("Nothing to commit."), nil
		}
		return x.reply(x.afterCommit()), nil

	case VerbWin, VerbNegotiate, VerbCoop:
		return x.rule(ctx, cmd)

	case VerbAuto:
		mag := cmd.Magnitude
		if !cmd.HasValue {
			mag = x.roll()
		}
		r, err := referee.PlayTurn(ctx, x.eng, mag)
		if err != nil {
			return x.reply(""), err
		}
		return x.reply(describeReport(r) + "\n" + x.afterCommit()), nil

	case VerbNew:
		if err := x.eng.NewGame(); err != nil {
			return x.reply(""), err
		}
		return x.reply(models.OpeningLogLine), nil

	case VerbSave:
		if x.slots == nil {
			return x.reply(""), errors.New("saving is not configured")
		}
		doc, err := x.eng.Save()
		if err != nil {
			return x.reply(""), err
		}
		if err := x.slots.Save(ctx, cmd.Text, doc); err != nil {
			return x.reply(""), err
		}
		return x.reply(fmt.Sprintf("Saved to %s.", cmd.Text)), nil

	case VerbLoad:
		if x.slots == nil {
			return x.reply(""), errors.New("loading is not configured")
		}
		doc, err := x.slots.Load(ctx, cmd.Text)
		if err != nil {
			return x.reply(""), err
		}
		if err := x.eng.Load(doc); err != nil {
			return x.reply(""), err
		}
		s := x.eng.State()
		return x.reply(fmt.Sprintf("Loaded %s: day %d, %s to act.", cmd.Text, s.Day, s.ActiveSect().Name())), nil

	case VerbSlots:
		if x.slots == nil {
			return x.reply("No save storage configured."), nil
		}
		names, err := x.slots.List(ctx)
		if err != nil {
			return x.reply(""), err
		}
		if len(names) == 0 {
			return x.reply("No saves yet."), nil
		}
		return x.reply(strings.Join(names, "\n")), nil

	case VerbHelp:
		return x.reply(Usage()), nil

	case VerbQuit:
		r := x.reply("")
		r.Quit = true
		return r, nil
	}
	return x.reply(""), fmt.Errorf("%w: %s", ErrUnknownCommand, cmd.Verb)
}

func (x *Executor) pick(cmd Command) (Reply, error) {
	if _, ok := x.syncDraft(); !ok {
		return x.reply(""), ErrNoOpportunity
	}
	in, _ := x.eng.Pending()
	adj, err := engine.FromResult(in.Mover, in.Event(), cmd.Option, cmd.Success)
	if err != nil {
		return x.reply(""), err
	}
	x.draft.Adj = adj
	return x.reply(adj.LogText), nil
}

func (x *Executor) edit(cmd Command) (Reply, error) {
	if _, ok := x.syncDraft(); !ok {
		return x.reply(""), ErrNoOpportunity
	}
	adj := &x.draft.Adj
	switch cmd.Verb {
	case VerbStat:
		stats, err := adj.Stats.With(cmd.Stat, cmd.Value)
		if err != nil {
			return x.reply(""), err
		}
		adj.Stats = stats
	case VerbDelta:
		adj.MoveDelta = cmd.Value
	case VerbStop:
		adj.SkipNextTurn = cmd.Flag
	case VerbAgain:
		adj.Repeat = cmd.Flag
	case VerbLog:
		adj.LogText = cmd.Text
	}
	return x.reply(DescribeDraft(*adj)), nil
}

func (x *Executor) rule(ctx context.Context, cmd Command) (Reply, error) {
	in, ok := x.eng.Pending()
	if !ok || in.Kind != engine.KindConflict {
		return x.reply(""), errors.New("no conflict awaiting a ruling")
	}
	d := engine.ConflictDecision{Retreat: cmd.Value}
	switch cmd.Verb {
	case VerbCoop:
		d.Outcome = engine.OutcomeCooperate
	case VerbNegotiate:
		d.Outcome = engine.OutcomeNegotiate
	default:
		d.Outcome = engine.OutcomeBattle
	}
	if d.Outcome != engine.OutcomeCooperate {
		d.Winner = in.Mover
		if cmd.Side == SideOccupant {
			d.Winner = in.Occupant
		}
	}
	next, err := x.eng.ResolveConflict(ctx, in.ID, d)
	if err != nil {
		return x.reply(""), err
	}
	if next == nil {
		return x.reply("That conflict is no longer pending."), nil
	}
	s := x.eng.State()
	return x.reply(s.Log[len(s.Log)-1].Content + "\n" + Describe(*next)), nil
}

func (x *Executor) afterCommit() string {
	s := x.eng.State()
	var b strings.Builder
	if s.DayComplete {
		fmt.Fprintf(&b, "Day %d begins. Weather: %s.\n", s.Day, s.Weather)
	}
	if f := s.Finishers(); len(f) > 0 {
		names := make([]string, len(f))
		for i, id := range f {
			names[i] = id.Name()
		}
		fmt.Fprintf(&b, "At the goal: %s.\n", strings.Join(names, "、"))
	}
	fmt.Fprintf(&b, "%s to act.", s.ActiveSect().Name())
	return b.String()
}
