package engine

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tatianab/seven-sects/internal/location"
	"github.com/tatianab/seven-sects/internal/models"
)

// fakeProvider returns canned content and can be told to fail or block.
type fakeProvider struct {
	mu        sync.Mutex
	err       error
	block     chan struct{}
	entered   chan struct{}
	conflicts int
	scenes    int
}

func (f *fakeProvider) wait(ctx context.Context) error {
	if f.entered != nil {
		f.entered <- struct{}{}
	}
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

func (f *fakeProvider) ConflictNarrative(ctx context.Context, mover, occupant models.SectID, where, weather string) (string, error) {
	if err := f.wait(ctx); err != nil {
		return "", err
	}
	f.mu.Lock()
	f.conflicts++
	f.mu.Unlock()
	return mover.Name() + "遇" + occupant.Name(), nil
}

func (f *fakeProvider) OpportunityEvent(ctx context.Context, sect models.SectState, loc models.LocationData, weather string) (models.EventPayload, error) {
	if err := f.wait(ctx); err != nil {
		return models.EventPayload{}, err
	}
	f.mu.Lock()
	f.scenes++
	f.mu.Unlock()
	return models.EventPayload{Title: loc.Name, Description: weather, Event: loc.Event}, nil
}

func constantWeather(w string) WeatherRoller {
	return func() string { return w }
}

func countingWeather(n *int) WeatherRoller {
	return func() string {
		*n++
		return "晴"
	}
}

func newTestEngine(t *testing.T, p ContentProvider, opts ...Option) *Engine {
	t.Helper()
	opts = append([]Option{WithWeatherRoller(constantWeather("晴"))}, opts...)
	return New(p, location.Default(), opts...)
}

// stateWith builds a fresh state and applies edit to it.
func stateWith(edit func(s *models.GameState)) models.GameState {
	idx := location.Default()
	s := models.NewGameState("晴", idx.Start().Name)
	edit(&s)
	for i := range s.Sects {
		s.Sects[i].CurrentLocationName = idx.Locate(s.Sects[i].Progress).Name
	}
	return s
}

func TestAdvanceWrapsDay(t *testing.T) {
	rolls := 0
	roll := countingWeather(&rolls)
	s := models.NewGameState("大雾", "天机阁")

	for i := 1; i < models.SectCount; i++ {
		s = Advance(s, false, roll)
		assert.Equal(t, i, s.ActiveIndex)
		assert.Equal(t, 1, s.Day)
		assert.False(t, s.DayComplete)
	}
	s = Advance(s, false, roll)
	assert.Equal(t, 0, s.ActiveIndex)
	assert.Equal(t, 2, s.Day)
	assert.Equal(t, "晴", s.Weather)
	assert.True(t, s.DayComplete)
	assert.Equal(t, 1, rolls)
}

func TestAdvanceRepeat(t *testing.T) {
	rolls := 0
	s := models.NewGameState("大雾", "天机阁")
	s.ActiveIndex = 6

	next := Advance(s, true, countingWeather(&rolls))
	assert.Equal(t, s, next)
	assert.Zero(t, rolls)
}

func TestAdvanceDoesNotMutateInput(t *testing.T) {
	s := models.NewGameState("大雾", "天机阁")
	_ = Advance(s, false, constantWeather("晴"))
	assert.Equal(t, 0, s.ActiveIndex)
}

func TestForceSkip(t *testing.T) {
	s := models.NewGameState("晴", "天机阁")
	s.Sects[models.Tianhe].SkipNextTurn = true

	next := ForceSkip(s, models.Tianhe, SkipDebuff, constantWeather("晴"))
	assert.False(t, next.Sects[models.Tianhe].SkipNextTurn)
	assert.Equal(t, 1, next.ActiveIndex)
	require.Len(t, next.Log, len(s.Log)+1)
	last := next.Log[len(next.Log)-1]
	assert.Equal(t, models.LogSystem, last.Type)
	assert.Equal(t, "【天河剑宗】结束滞留状态，整顿完毕。", last.Content)

	manual := ForceSkip(s, models.Tianhe, SkipManual, constantWeather("晴"))
	assert.Contains(t, manual.Log[len(manual.Log)-1].Content, "跳过本回合")
}

func TestFindOccupant(t *testing.T) {
	s := stateWith(func(s *models.GameState) {
		s.Sects[models.Beige].Progress = 10.7
		s.Sects[models.Fulong].Progress = 10.2
		s.Sects[models.Dari].Progress = models.Goal
	})

	id, ok := FindOccupant(s, models.Tianhe, 10.5)
	require.True(t, ok)
	assert.Equal(t, models.Beige, id, "first in queue order wins")

	_, ok = FindOccupant(s, models.Beige, 10.0)
	assert.True(t, ok, "another sect still shares the bucket")

	_, ok = FindOccupant(s, models.Tianhe, 11)
	assert.False(t, ok)

	_, ok = FindOccupant(s, models.Tianhe, 0)
	assert.False(t, ok, "start is shared")

	_, ok = FindOccupant(s, models.Tianhe, models.Goal)
	assert.False(t, ok, "goal is shared")
}

func TestFindOccupantQueueOrder(t *testing.T) {
	s := stateWith(func(s *models.GameState) {
		s.Sects[models.Beige].Progress = 30
		s.Sects[models.Dari].Progress = 30.5
		s.TurnQueue = []models.SectID{models.Dari, models.Xueyi, models.Beige, models.Tianhe, models.Fulong, models.Nantuo, models.Wangsheng}
	})
	id, ok := FindOccupant(s, models.Tianhe, 30)
	require.True(t, ok)
	assert.Equal(t, models.Dari, id)
}

func TestStartTurnOpportunityAndCommit(t *testing.T) {
	s := stateWith(func(s *models.GameState) {
		s.Sects[models.Tianhe].Progress = 5
	})
	p := &fakeProvider{}
	e := newTestEngine(t, p, WithState(s))

	res, err := e.StartTurn(context.Background(), 5)
	require.NoError(t, err)
	require.NotNil(t, res.Interaction)
	in := *res.Interaction
	assert.Equal(t, KindOpportunity, in.Kind)
	assert.Equal(t, models.Tianhe, in.Mover)
	assert.Equal(t, 10.0, in.PendingProgress)
	assert.Equal(t, PhaseAwaitingOpportunity, e.Phase())

	// Nothing moves until commit.
	assert.Equal(t, 5.0, e.State().Sects[models.Tianhe].Progress)

	before := e.State()
	ok, err := e.Commit(in.ID, Adjudication{MoveDelta: 5, Stats: models.Stats{Martial: 2}, LogText: "拾得秘籍"})
	require.NoError(t, err)
	require.True(t, ok)

	after := e.State()
	st := after.Sects[models.Tianhe]
	assert.Equal(t, 15.0, st.Progress)
	assert.Equal(t, "+5里", st.LastMoveDesc)
	assert.Equal(t, 22, st.Stats.Martial)
	assert.Equal(t, []string{"【天河剑宗】拾得秘籍"}, st.History)
	require.Len(t, after.Log, len(before.Log)+1)
	assert.Equal(t, models.LogMove, after.Log[len(after.Log)-1].Type)
	assert.Equal(t, location.Default().Locate(15).Name, st.CurrentLocationName)
	assert.Equal(t, 1, after.ActiveIndex)
	assert.Equal(t, PhaseIdle, e.Phase())

	_, pending := e.Pending()
	assert.False(t, pending)
}

func TestCommitTwiceIsNoop(t *testing.T) {
	e := newTestEngine(t, &fakeProvider{})
	res, err := e.StartTurn(context.Background(), 4)
	require.NoError(t, err)

	ok, err := e.Commit(res.Interaction.ID, Adjudication{})
	require.NoError(t, err)
	require.True(t, ok)
	snap := e.State()

	ok, err = e.Commit(res.Interaction.ID, Adjudication{MoveDelta: 50})
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, snap, e.State())
}

func TestCommitStaleID(t *testing.T) {
	e := newTestEngine(t, &fakeProvider{})
	_, err := e.StartTurn(context.Background(), 4)
	require.NoError(t, err)

	ok, err := e.Commit(uuid.New(), Adjudication{MoveDelta: 9})
	require.NoError(t, err)
	assert.False(t, ok)
	_, pending := e.Pending()
	assert.True(t, pending)
}

func TestCommitNegativeStats(t *testing.T) {
	e := newTestEngine(t, &fakeProvider{})
	res, err := e.StartTurn(context.Background(), 1)
	require.NoError(t, err)

	_, err = e.Commit(res.Interaction.ID, Adjudication{Stats: models.Stats{Martial: -50}})
	require.NoError(t, err)
	assert.Equal(t, -30, e.State().Sects[models.Tianhe].Stats.Martial)
}

func TestCommitRepeatAndSkipFlag(t *testing.T) {
	e := newTestEngine(t, &fakeProvider{})
	res, err := e.StartTurn(context.Background(), 1)
	require.NoError(t, err)

	_, err = e.Commit(res.Interaction.ID, Adjudication{Repeat: true, SkipNextTurn: true})
	require.NoError(t, err)
	s := e.State()
	assert.Equal(t, 0, s.ActiveIndex)
	assert.True(t, s.Sects[models.Tianhe].SkipNextTurn)
	assert.Equal(t, "抵达", s.Sects[models.Tianhe].LastMoveDesc)
}

func TestCommitClampsProgress(t *testing.T) {
	s := stateWith(func(s *models.GameState) {
		s.Sects[models.Tianhe].Progress = 118
	})
	e := newTestEngine(t, &fakeProvider{}, WithState(s))
	res, err := e.StartTurn(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, float64(models.Goal), res.Interaction.PendingProgress)

	_, err = e.Commit(res.Interaction.ID, Adjudication{MoveDelta: 30})
	require.NoError(t, err)
	assert.Equal(t, float64(models.Goal), e.State().Sects[models.Tianhe].Progress)
	assert.Equal(t, []models.SectID{models.Tianhe}, e.State().Finishers())
}

func TestSkipFlagConsumesTurn(t *testing.T) {
	s := stateWith(func(s *models.GameState) {
		s.Sects[models.Tianhe].SkipNextTurn = true
	})
	p := &fakeProvider{}
	e := newTestEngine(t, p, WithState(s))

	res, err := e.StartTurn(context.Background(), 6)
	require.NoError(t, err)
	assert.True(t, res.Skipped)
	assert.Nil(t, res.Interaction)

	after := e.State()
	assert.False(t, after.Sects[models.Tianhe].SkipNextTurn)
	assert.Equal(t, 1, after.ActiveIndex)
	assert.Equal(t, 0.0, after.Sects[models.Tianhe].Progress)
	require.Len(t, after.Log, len(s.Log)+1)
	assert.Equal(t, models.LogSystem, after.Log[len(after.Log)-1].Type)
	assert.Zero(t, p.conflicts+p.scenes)
	assert.Equal(t, PhaseIdle, e.Phase())
}

func TestConflictFlow(t *testing.T) {
	s := stateWith(func(s *models.GameState) {
		s.Sects[models.Tianhe].Progress = 10
		s.Sects[models.Beige].Progress = 20
	})
	p := &fakeProvider{}
	e := newTestEngine(t, p, WithState(s))

	res, err := e.StartTurn(context.Background(), 10)
	require.NoError(t, err)
	conflict := *res.Interaction
	require.Equal(t, KindConflict, conflict.Kind)
	assert.Equal(t, models.Beige, conflict.Occupant)
	assert.Equal(t, "天河剑宗遇悲歌书院", conflict.Narrative)
	assert.Equal(t, PhaseAwaitingConflict, e.Phase())

	ok, err := e.Commit(conflict.ID, Adjudication{})
	assert.ErrorIs(t, err, ErrConflictPending)
	assert.False(t, ok)

	before := e.State()
	opp, err := e.ResolveConflict(context.Background(), conflict.ID, ConflictDecision{
		Winner:  models.Tianhe,
		Outcome: OutcomeBattle,
		Retreat: 3,
	})
	require.NoError(t, err)
	require.NotNil(t, opp)

	after := e.State()
	assert.Equal(t, 17.0, after.Sects[models.Beige].Progress)
	assert.Equal(t, "退3里", after.Sects[models.Beige].LastMoveDesc)
	assert.Equal(t, 10.0, after.Sects[models.Tianhe].Progress)
	assert.Equal(t, before.ActiveIndex, after.ActiveIndex)
	assert.Equal(t, before.Day, after.Day)

	require.Len(t, after.Log, len(before.Log)+1)
	entry := after.Log[len(after.Log)-1]
	assert.Equal(t, models.LogConflict, entry.Type)
	assert.Equal(t, "【天河剑宗】胜，【悲歌书院】退3里。", entry.Content)
	assert.Equal(t, []string{entry.Content}, after.Sects[models.Beige].History)
	assert.Equal(t, []string{entry.Content}, after.Sects[models.Tianhe].History)

	assert.Equal(t, KindOpportunity, opp.Kind)
	assert.Equal(t, models.Tianhe, opp.Mover)
	assert.Equal(t, 20.0, opp.PendingProgress)
	assert.NotEqual(t, conflict.ID, opp.ID)
	assert.Equal(t, PhaseAwaitingOpportunity, e.Phase())

	ok, err = e.Commit(opp.ID, Adjudication{})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 20.0, e.State().Sects[models.Tianhe].Progress)
	assert.Equal(t, 1, e.State().ActiveIndex)
}

func TestConflictCooperate(t *testing.T) {
	s := stateWith(func(s *models.GameState) {
		s.Sects[models.Tianhe].Progress = 10
		s.Sects[models.Beige].Progress = 20
	})
	e := newTestEngine(t, &fakeProvider{}, WithState(s))
	res, err := e.StartTurn(context.Background(), 10)
	require.NoError(t, err)

	_, err = e.ResolveConflict(context.Background(), res.Interaction.ID, ConflictDecision{Outcome: OutcomeCooperate})
	require.NoError(t, err)
	after := e.State()
	assert.Equal(t, 20.0, after.Sects[models.Beige].Progress)
	assert.Equal(t, 10.0, after.Sects[models.Tianhe].Progress)
	assert.Contains(t, after.Log[len(after.Log)-1].Content, "联手")
}

func TestConflictRetreatClampsAtStart(t *testing.T) {
	s := stateWith(func(s *models.GameState) {
		s.Sects[models.Tianhe].Progress = 1
		s.Sects[models.Beige].Progress = 2
	})
	e := newTestEngine(t, &fakeProvider{}, WithState(s))
	res, err := e.StartTurn(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, KindConflict, res.Interaction.Kind)

	_, err = e.ResolveConflict(context.Background(), res.Interaction.ID, ConflictDecision{Winner: models.Beige, Retreat: 3})
	require.NoError(t, err)
	assert.Equal(t, 0.0, e.State().Sects[models.Tianhe].Progress)
}

func TestResolveConflictRejectsOutsider(t *testing.T) {
	s := stateWith(func(s *models.GameState) {
		s.Sects[models.Beige].Progress = 4
	})
	e := newTestEngine(t, &fakeProvider{}, WithState(s))
	res, err := e.StartTurn(context.Background(), 4)
	require.NoError(t, err)

	_, err = e.ResolveConflict(context.Background(), res.Interaction.ID, ConflictDecision{Winner: models.Dari})
	assert.ErrorIs(t, err, ErrInvalidDecision)
	assert.Equal(t, PhaseAwaitingConflict, e.Phase())

	in, err := e.ResolveConflict(context.Background(), uuid.New(), ConflictDecision{Winner: models.Beige})
	assert.NoError(t, err)
	assert.Nil(t, in)
}

func TestProviderFailureLeavesStateUnchanged(t *testing.T) {
	boom := errors.New("provider down")
	p := &fakeProvider{err: boom}
	e := newTestEngine(t, p)
	before := e.State()

	_, err := e.StartTurn(context.Background(), 5)
	require.ErrorIs(t, err, boom)
	assert.Equal(t, before, e.State())
	assert.Equal(t, PhaseIdle, e.Phase())
	assert.False(t, e.Busy())
	_, pending := e.Pending()
	assert.False(t, pending)

	// The same proposal can be retried.
	p.mu.Lock()
	p.err = nil
	p.mu.Unlock()
	res, err := e.StartTurn(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, 5.0, res.Interaction.PendingProgress)
}

func TestConflictFollowUpFailureKeepsConflict(t *testing.T) {
	s := stateWith(func(s *models.GameState) {
		s.Sects[models.Beige].Progress = 4
	})
	p := &fakeProvider{}
	e := newTestEngine(t, p, WithState(s))
	res, err := e.StartTurn(context.Background(), 4)
	require.NoError(t, err)
	before := e.State()

	p.mu.Lock()
	p.err = errors.New("timeout")
	p.mu.Unlock()
	_, err = e.ResolveConflict(context.Background(), res.Interaction.ID, ConflictDecision{Winner: models.Tianhe, Retreat: 3})
	require.Error(t, err)

	assert.Equal(t, before, e.State())
	in, ok := e.Pending()
	require.True(t, ok)
	assert.Equal(t, res.Interaction.ID, in.ID)
	assert.Equal(t, PhaseAwaitingConflict, e.Phase())
}

func TestBusyRejectsCommands(t *testing.T) {
	p := &fakeProvider{block: make(chan struct{}), entered: make(chan struct{})}
	e := newTestEngine(t, p)

	done := make(chan error, 1)
	go func() {
		_, err := e.StartTurn(context.Background(), 3)
		done <- err
	}()
	<-p.entered

	assert.True(t, e.Busy())
	_, err := e.StartTurn(context.Background(), 3)
	assert.ErrorIs(t, err, ErrBusy)
	_, err = e.Skip()
	assert.ErrorIs(t, err, ErrBusy)
	assert.ErrorIs(t, e.EditStat(models.Tianhe, models.StatMartial, 1), ErrBusy)
	assert.ErrorIs(t, e.NewGame(), ErrBusy)

	close(p.block)
	require.NoError(t, <-done)
	assert.False(t, e.Busy())
}

func TestStartTurnWhilePending(t *testing.T) {
	e := newTestEngine(t, &fakeProvider{})
	_, err := e.StartTurn(context.Background(), 3)
	require.NoError(t, err)

	_, err = e.StartTurn(context.Background(), 3)
	assert.ErrorIs(t, err, ErrInteractionPending)
	_, err = e.Skip()
	assert.ErrorIs(t, err, ErrInteractionPending)

	// Stat edits are still allowed while waiting on the DM.
	require.NoError(t, e.EditStat(models.Xueyi, models.StatWealth, 99))
	assert.Equal(t, 99, e.State().Sects[models.Xueyi].Stats.Wealth)
}

func TestManualSkip(t *testing.T) {
	e := newTestEngine(t, &fakeProvider{})
	id, err := e.Skip()
	require.NoError(t, err)
	assert.Equal(t, models.Tianhe, id)
	s := e.State()
	assert.Equal(t, 1, s.ActiveIndex)
	assert.Equal(t, "【天河剑宗】跳过本回合（状态已重置）。", s.Log[len(s.Log)-1].Content)
}

func TestEditStat(t *testing.T) {
	e := newTestEngine(t, &fakeProvider{})
	require.NoError(t, e.EditStat(models.Dari, models.StatPrestige, -7))
	assert.Equal(t, -7, e.State().Sects[models.Dari].Stats.Prestige)

	assert.ErrorIs(t, e.EditStat(models.Dari, "luck", 1), models.ErrUnknownStat)
	assert.ErrorIs(t, e.EditStat(models.SectID(9), models.StatMartial, 1), models.ErrUnknownSect)
}

func TestSaveLoad(t *testing.T) {
	e := newTestEngine(t, &fakeProvider{})
	res, err := e.StartTurn(context.Background(), 7)
	require.NoError(t, err)
	_, err = e.Commit(res.Interaction.ID, Adjudication{MoveDelta: 1})
	require.NoError(t, err)

	data, err := e.Save()
	require.NoError(t, err)

	other := newTestEngine(t, &fakeProvider{})
	_, err = other.StartTurn(context.Background(), 2)
	require.NoError(t, err)
	require.NoError(t, other.Load(data))

	assert.Equal(t, e.State(), other.State())
	_, pending := other.Pending()
	assert.False(t, pending)
	assert.Equal(t, PhaseIdle, other.Phase())
}

func TestLoadRejectsMalformed(t *testing.T) {
	e := newTestEngine(t, &fakeProvider{})
	before := e.State()

	for name, doc := range map[string]string{
		"not json":       "{",
		"missing fields": `{"day": 3}`,
		"bad index":      `{"day":1,"weather":"晴","activeSectIndex":9,"turnQueue":["TIANHE"],"sectStates":{},"globalLog":[]}`,
	} {
		t.Run(name, func(t *testing.T) {
			err := e.Load([]byte(doc))
			assert.ErrorIs(t, err, models.ErrInvalidState)
			assert.Equal(t, before, e.State())
		})
	}
}

func TestNewGame(t *testing.T) {
	e := newTestEngine(t, &fakeProvider{})
	_, err := e.StartTurn(context.Background(), 3)
	require.NoError(t, err)

	require.NoError(t, e.NewGame())
	s := e.State()
	assert.Equal(t, 1, s.Day)
	assert.Equal(t, 0, s.ActiveIndex)
	assert.Equal(t, models.OpeningLogLine, s.Log[0].Content)
	_, pending := e.Pending()
	assert.False(t, pending)
}

func TestStartTurnIgnoresNaN(t *testing.T) {
	e := newTestEngine(t, &fakeProvider{})
	nan := 0.0
	res, err := e.StartTurn(context.Background(), nan/nan)
	require.NoError(t, err)
	assert.Equal(t, 0.0, res.Interaction.PendingProgress)
}

func TestResolveMoveDepthGuard(t *testing.T) {
	s := stateWith(func(s *models.GameState) {
		s.Sects[models.Beige].Progress = 9
	})
	p := &fakeProvider{}
	in, err := resolveMove(context.Background(), p, location.Default(), s, models.Tianhe, 9, MaxChainDepth)
	require.NoError(t, err)
	assert.Equal(t, KindOpportunity, in.Kind)
	assert.Zero(t, p.conflicts)
}

func TestPhaseTransitions(t *testing.T) {
	p, err := PhaseIdle.next(trigConflictFound)
	require.NoError(t, err)
	assert.Equal(t, PhaseAwaitingConflict, p)

	_, err = PhaseIdle.next(trigCommitted)
	assert.Error(t, err)
	_, err = PhaseAwaitingConflict.next(trigCommitted)
	assert.Error(t, err)

	for _, from := range []Phase{PhaseIdle, PhaseAwaitingConflict, PhaseAwaitingOpportunity} {
		to, err := from.next(trigLoaded)
		require.NoError(t, err)
		assert.Equal(t, PhaseIdle, to)
	}
	assert.Equal(t, "awaiting-opportunity", PhaseAwaitingOpportunity.String())
}

func TestPendingEventIsACopy(t *testing.T) {
	idx := location.Default()
	bucket := -1
	for b := 1; b <= models.Goal; b++ {
		if idx.Locate(float64(b)).Event != nil {
			bucket = b
			break
		}
	}
	require.NotEqual(t, -1, bucket, "default rulebook binds no events")
	original := idx.Locate(float64(bucket)).Event

	e := newTestEngine(t, &fakeProvider{})
	res, err := e.StartTurn(context.Background(), float64(bucket))
	require.NoError(t, err)
	require.NotNil(t, res.Interaction)

	in, ok := e.Pending()
	require.True(t, ok)
	require.NotNil(t, in.Event())
	in.Event().Title = "改"
	in.Event().Options[0].Label = "改"
	in.Event().Options[0].Success.Move = 99

	again, _ := e.Pending()
	assert.Equal(t, original, again.Event())
	assert.Equal(t, original, idx.Locate(float64(bucket)).Event)
}
