package command

import (
	"fmt"
	"strings"

	"github.com/tatianab/seven-sects/internal/engine"
	"github.com/tatianab/seven-sects/internal/models"
	"github.com/tatianab/seven-sects/internal/referee"
)

// Describe renders a pending interaction for the DM.
func Describe(in engine.Interaction) string {
	var b strings.Builder
	if in.Kind == engine.KindConflict {
		fmt.Fprintf(&b, "CONFLICT at %s: %s vs %s\n", in.LocationName, in.Mover.Name(), in.Occupant.Name())
		b.WriteString(in.Narrative)
		b.WriteString("\nRule with: win mover|occupant [N], negotiate mover|occupant [N], coop")
		return b.String()
	}

	fmt.Fprintf(&b, "OPPORTUNITY for %s at %s (%.0f里)\n", in.Mover.Name(), in.LocationName, in.PendingProgress)
	fmt.Fprintf(&b, "%s\n%s", in.Payload.Title, in.Payload.Description)
	if ev := in.Event(); ev != nil {
		for i, opt := range ev.Options {
			fmt.Fprintf(&b, "\n  [%c] %s (%s)", 'A'+i, opt.Label, opt.ReqText)
		}
		b.WriteString("\nPre-fill with: pick A|B ok|fail")
	}
	b.WriteString("\nEdit with stat/delta/stop/again/log, then commit")
	return b.String()
}

// DescribeDraft renders the adjudication being edited.
func DescribeDraft(adj engine.Adjudication) string {
	var parts []string
	for _, k := range models.StatKinds() {
		if v, _ := adj.Stats.Get(k); v != 0 {
			parts = append(parts, fmt.Sprintf("%s%+d", k.Label(), v))
		}
	}
	parts = append(parts, engine.FormatMoveDelta(adj.MoveDelta))
	if adj.SkipNextTurn {
		parts = append(parts, "滞留")
	}
	if adj.Repeat {
		parts = append(parts, "再动")
	}
	out := strings.Join(parts, " ")
	if adj.LogText != "" {
		out += "\n" + adj.LogText
	}
	return out
}

func describeReport(r referee.Report) string {
	if r.Skipped {
		return fmt.Sprintf("%s is held back and loses the turn.", r.Sect.Name())
	}
	var b strings.Builder
	if r.Conflict != nil {
		if r.Decision.Outcome == engine.OutcomeCooperate {
			fmt.Fprintf(&b, "Referee: %s and %s cooperate.\n", r.Conflict.Mover.Name(), r.Conflict.Occupant.Name())
		} else {
			fmt.Fprintf(&b, "Referee: %s wins at %s.\n", r.Decision.Winner.Name(), r.Conflict.LocationName)
		}
	}
	if r.Scene != nil {
		fmt.Fprintf(&b, "Referee: %s at %s, %s", r.Scene.Mover.Name(), r.Scene.LocationName, DescribeDraft(r.Ruling))
	}
	return strings.TrimRight(b.String(), "\n")
}
