package location

import (
	"errors"
	"testing"

	"github.com/tatianab/seven-sects/internal/models"
)

func TestDefaultCoversEveryBucket(t *testing.T) {
	idx := Default()
	if idx.Len() != models.Goal+1 {
		t.Fatalf("Expected %d buckets, got %d", models.Goal+1, idx.Len())
	}
	for p := 0.0; p <= models.Goal; p += 0.5 {
		loc := idx.Locate(p)
		if loc.Name == "" {
			t.Errorf("Locate(%v) returned an unnamed entry", p)
		}
		if loc.ID != models.Bucket(p) {
			t.Errorf("Locate(%v) returned bucket %d", p, loc.ID)
		}
	}
}

func TestDefaultEventsHaveTwoOptions(t *testing.T) {
	idx := Default()
	events := 0
	for b := 0; b <= models.Goal; b++ {
		ev := idx.Locate(float64(b)).Event
		if ev == nil {
			continue
		}
		events++
		if len(ev.Options) != 2 {
			t.Errorf("Event %q at %d has %d options", ev.Title, b, len(ev.Options))
		}
	}
	if events == 0 {
		t.Errorf("Expected the default rulebook to bind some events")
	}
}

func TestLocateReturnsEventCopy(t *testing.T) {
	idx := Default()
	for b := 0; b <= models.Goal; b++ {
		ev := idx.Locate(float64(b)).Event
		if ev == nil {
			continue
		}
		title, label := ev.Title, ev.Options[0].Label
		ev.Title = "changed"
		ev.Options[0].Label = "changed"

		again := idx.Locate(float64(b)).Event
		if again.Title != title || again.Options[0].Label != label {
			t.Errorf("Editing a located event changed bucket %d: %q / %q", b, again.Title, again.Options[0].Label)
		}
		return
	}
	t.Fatalf("Expected the default rulebook to bind some events")
}

func TestLocateClampsOutOfRange(t *testing.T) {
	idx := Default()
	if got := idx.Locate(-10); got.ID != 0 {
		t.Errorf("Expected bucket 0 for negative progress, got %d", got.ID)
	}
	if got := idx.Locate(999); got.ID != models.Goal {
		t.Errorf("Expected bucket %d for overshoot, got %d", models.Goal, got.ID)
	}
}

func TestParseInheritsNameButNotEvent(t *testing.T) {
	idx, err := Parse([]byte(`
locations:
  - at: 0
    name: Start
    desc: the gate
  - at: 5
    name: Ford
    desc: a shallow river
    event:
      title: Crossing
      narrative: water rises
      options:
        - {label: Swim, req_text: "", check_stat: martial, check_val: 10, success: {move: 2}, fail: {stop_turn: true}}
        - {label: Wait, req_text: "", check_stat: none, check_val: 0, success: {}, fail: {}}
`))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if got := idx.Locate(4.9); got.Name != "Start" || got.Desc != "the gate" {
		t.Errorf("Expected bucket 4 to inherit Start, got %+v", got)
	}
	ford := idx.Locate(5.2)
	if ford.Name != "Ford" || ford.Event == nil {
		t.Fatalf("Expected Ford with its event, got %+v", ford)
	}
	if !ford.Event.Options[1].Passes(models.Stats{}) {
		t.Errorf("Expected the none check to pass")
	}
	if ford.Event.Options[0].Success.Move != 2 || !ford.Event.Options[0].Fail.StopTurn {
		t.Errorf("Results decoded incorrectly: %+v", ford.Event.Options[0])
	}
	if got := idx.Locate(6); got.Name != "Ford" || got.Event != nil {
		t.Errorf("Expected bucket 6 to inherit the name only, got %+v", got)
	}
	if got := idx.Locate(models.Goal); got.Name != "Ford" {
		t.Errorf("Expected the goal bucket to inherit Ford, got %q", got.Name)
	}
}

func TestParseRejectsBadRulebooks(t *testing.T) {
	cases := map[string]string{
		"no start":     "locations:\n  - {at: 3, name: A}\n",
		"out of range": "locations:\n  - {at: 0, name: A}\n  - {at: 121, name: B}\n",
		"duplicate":    "locations:\n  - {at: 0, name: A}\n  - {at: 0, name: B}\n",
		"one option":   "locations:\n  - {at: 0, name: A, event: {title: T, options: [{label: x, check_stat: none}]}}\n",
		"bad stat":     "locations:\n  - {at: 0, name: A, event: {title: T, options: [{label: x, check_stat: luck}, {label: y, check_stat: none}]}}\n",
		"not yaml":     "locations: [",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Parse([]byte(doc)); !errors.Is(err, ErrInvalidRulebook) {
				t.Errorf("Expected ErrInvalidRulebook, got %v", err)
			}
		})
	}
}
