package engine

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/tatianab/seven-sects/internal/models"
)

var ErrInvalidDecision = errors.New("invalid conflict decision")

// Adjudication is the DM-reviewed outcome of an opportunity.
type Adjudication struct {
	Stats        models.Stats `json:"stats"`
	MoveDelta    int          `json:"moveDelta"`
	SkipNextTurn bool         `json:"skipNextTurn"`
	Repeat       bool         `json:"repeat"`
	LogText      string       `json:"logText"`
}

// ConflictOutcome is how the DM settles a conflict. Only battle and
// negotiate move the loser back.
type ConflictOutcome int

const (
	OutcomeBattle ConflictOutcome = iota
	OutcomeNegotiate
	OutcomeCooperate
)

func (o ConflictOutcome) String() string {
	switch o {
	case OutcomeBattle:
		return "battle"
	case OutcomeNegotiate:
		return "negotiate"
	case OutcomeCooperate:
		return "cooperate"
	}
	return fmt.Sprintf("ConflictOutcome(%d)", int(o))
}

// ParseOutcome accepts the names produced by String.
func ParseOutcome(s string) (ConflictOutcome, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "battle", "":
		return OutcomeBattle, nil
	case "negotiate":
		return OutcomeNegotiate, nil
	case "cooperate", "coop":
		return OutcomeCooperate, nil
	}
	return 0, fmt.Errorf("%w: outcome %q", ErrInvalidDecision, s)
}

// DefaultRetreat is the retreat distance offered for a new conflict.
const DefaultRetreat = 3

// ConflictDecision is the DM's ruling on a conflict. Winner is ignored for
// cooperation.
type ConflictDecision struct {
	Winner  models.SectID   `json:"winner"`
	Outcome ConflictOutcome `json:"outcome"`
	Retreat int             `json:"retreat"`
	LogText string          `json:"logText"`
}

// FormatMoveDelta renders a signed move for lastMoveDesc.
func FormatMoveDelta(delta int) string {
	if delta == 0 {
		return "抵达"
	}
	return fmt.Sprintf("%+d里", delta)
}

// ParseDelta reads a leading signed integer and treats anything else as 0.
// "5", "+5", "-3里" and " 7 " all parse; "abc" is 0.
func ParseDelta(s string) int {
	s = strings.TrimSpace(s)
	end := 0
	if end < len(s) && (s[end] == '+' || s[end] == '-') {
		end++
	}
	start := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == start {
		return 0
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil {
		return 0
	}
	return n
}

func withSectTag(sect models.SectID, text string) string {
	if strings.HasPrefix(text, sect.Tag()) {
		return text
	}
	return sect.Tag() + text
}

// moveSect places sect at progress and records the location it lands on.
func moveSect(s *models.GameState, loc Locator, sect models.SectID, progress float64) {
	st := &s.Sects[sect]
	st.Progress = models.ClampProgress(progress)
	where := loc.Locate(st.Progress)
	if where.Name != st.CurrentLocationName {
		st.VisitedLocations = append(st.VisitedLocations, where.Name)
	}
	st.CurrentLocationName = where.Name
}

// applyOpportunity commits adj for an opportunity interaction. It does not
// advance the scheduler.
func applyOpportunity(s models.GameState, loc Locator, in Interaction, adj Adjudication) models.GameState {
	next := s.Clone()
	mover := in.Mover

	moveSect(&next, loc, mover, in.PendingProgress+float64(adj.MoveDelta))

	st := &next.Sects[mover]
	st.Stats = st.Stats.Add(adj.Stats)
	st.SkipNextTurn = adj.SkipNextTurn
	st.LastMoveDesc = FormatMoveDelta(adj.MoveDelta)

	text := strings.TrimSpace(adj.LogText)
	if text == "" {
		text = fmt.Sprintf("【奇遇】%s：命运流转。", in.LocationName)
	}
	text = withSectTag(mover, text)
	st.History = append(st.History, text)
	next.AppendLog(models.LogMove, text)
	return next
}

func validateDecision(in Interaction, d ConflictDecision) error {
	if d.Outcome < OutcomeBattle || d.Outcome > OutcomeCooperate {
		return fmt.Errorf("%w: outcome %d", ErrInvalidDecision, int(d.Outcome))
	}
	if d.Outcome != OutcomeCooperate && d.Winner != in.Mover && d.Winner != in.Occupant {
		return fmt.Errorf("%w: %s is not part of this conflict", ErrInvalidDecision, d.Winner)
	}
	return nil
}

// applyConflict pushes the loser back and logs the ruling. The mover keeps
// its standing progress; its move is settled by the follow-up opportunity.
func applyConflict(s models.GameState, loc Locator, in Interaction, d ConflictDecision) models.GameState {
	next := s.Clone()
	retreat := max(d.Retreat, 0)

	text := strings.TrimSpace(d.LogText)
	if d.Outcome == OutcomeCooperate {
		if text == "" {
			text = fmt.Sprintf("在%s联手。", in.LocationName)
		}
	} else {
		loser := in.Occupant
		if d.Winner == in.Occupant {
			loser = in.Mover
		}
		if text == "" {
			text = fmt.Sprintf("%s胜，%s退%d里。", d.Winner.Tag(), loser.Tag(), retreat)
		}
		moveSect(&next, loc, loser, next.Sects[loser].Progress-float64(retreat))
		next.Sects[loser].LastMoveDesc = fmt.Sprintf("退%d里", retreat)
	}
	text = withSectTag(in.Mover, text)

	next.Sects[in.Mover].History = append(next.Sects[in.Mover].History, text)
	next.Sects[in.Occupant].History = append(next.Sects[in.Occupant].History, text)
	next.AppendLog(models.LogConflict, text)
	return next
}

// Localize replaces the second-person pronoun in rulebook text with the
// sect's name.
func Localize(text string, sect models.SectID) string {
	text = strings.ReplaceAll(text, "你", sect.Name())
	return strings.ReplaceAll(text, "Your", sect.Name())
}

func formatStatChanges(d models.Stats) string {
	var parts []string
	for _, k := range models.StatKinds() {
		v, _ := d.Get(k)
		if v != 0 {
			parts = append(parts, fmt.Sprintf("%s%+d", k.Label(), v))
		}
	}
	if len(parts) == 0 {
		return ""
	}
	return " " + strings.Join(parts, " ")
}

// FromResult pre-fills an adjudication from one branch of an event option,
// the way a DM clicking "success" or "fail" would.
func FromResult(sect models.SectID, ev *models.GameEvent, option int, success bool) (Adjudication, error) {
	if ev == nil {
		return Adjudication{}, errors.New("no event to choose from")
	}
	if option < 0 || option >= len(ev.Options) {
		return Adjudication{}, fmt.Errorf("option %d out of range", option)
	}
	opt := ev.Options[option]
	r, verdict := opt.Fail, "失败"
	if success {
		r, verdict = opt.Success, "成功"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "【%s】%s (%s) → %s", ev.Title, opt.Label, verdict, Localize(r.Desc, sect))
	b.WriteString(formatStatChanges(r.Stats))
	if r.Move != 0 {
		fmt.Fprintf(&b, " [里程%+d]", r.Move)
	}
	if r.Item != "" {
		fmt.Fprintf(&b, " [获得:%s]", r.Item)
	}
	if r.StopTurn {
		b.WriteString(" [滞留]")
	}

	return Adjudication{
		Stats:        r.Stats,
		MoveDelta:    r.Move,
		SkipNextTurn: r.StopTurn,
		LogText:      b.String(),
	}, nil
}
