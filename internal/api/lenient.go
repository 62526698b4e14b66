package api

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/tatianab/seven-sects/internal/engine"
	"github.com/tatianab/seven-sects/internal/models"
)

// looseInt accepts a JSON number or string. Fractions are truncated and
// anything non-numeric decodes as 0.
type looseInt int

func (n *looseInt) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch x := v.(type) {
	case float64:
		*n = looseInt(truncate(x))
	case string:
		*n = looseInt(engine.ParseDelta(x))
	default:
		*n = 0
	}
	return nil
}

func truncate(f float64) int {
	switch {
	case math.IsNaN(f):
		return 0
	case f > math.MaxInt32:
		return math.MaxInt32
	case f < math.MinInt32:
		return math.MinInt32
	}
	return int(f)
}

// looseFloat is looseInt for dice magnitudes.
type looseFloat float64

func (f *looseFloat) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch x := v.(type) {
	case float64:
		*f = looseFloat(x)
	case string:
		if p, err := strconv.ParseFloat(strings.TrimSpace(x), 64); err == nil {
			*f = looseFloat(p)
		} else {
			*f = looseFloat(engine.ParseDelta(x))
		}
	default:
		*f = 0
	}
	return nil
}

type statsRequest struct {
	Martial  looseInt `json:"martial"`
	Strategy looseInt `json:"strategy"`
	Wealth   looseInt `json:"wealth"`
	Prestige looseInt `json:"prestige"`
}

type adjudicationRequest struct {
	Stats        statsRequest `json:"stats"`
	MoveDelta    looseInt     `json:"moveDelta"`
	SkipNextTurn bool         `json:"skipNextTurn"`
	Repeat       bool         `json:"repeat"`
	LogText      string       `json:"logText"`
}

func (a adjudicationRequest) adjudication() engine.Adjudication {
	return engine.Adjudication{
		Stats: models.Stats{
			Martial:  int(a.Stats.Martial),
			Strategy: int(a.Stats.Strategy),
			Wealth:   int(a.Stats.Wealth),
			Prestige: int(a.Stats.Prestige),
		},
		MoveDelta:    int(a.MoveDelta),
		SkipNextTurn: a.SkipNextTurn,
		Repeat:       a.Repeat,
		LogText:      a.LogText,
	}
}
