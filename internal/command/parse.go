// Package command parses and runs the DM's typed commands.
package command

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
	"github.com/tatianab/seven-sects/internal/engine"
	"github.com/tatianab/seven-sects/internal/models"
)

var (
	ErrUnknownCommand = errors.New("unknown command")
	ErrUsage          = errors.New("usage")
)

type Verb string

const (
	VerbGo        Verb = "go"
	VerbSkip      Verb = "skip"
	VerbSet       Verb = "set"
	VerbPick      Verb = "pick"
	VerbStat      Verb = "stat"
	VerbDelta     Verb = "delta"
	VerbStop      Verb = "stop"
	VerbAgain     Verb = "again"
	VerbLog       Verb = "log"
	VerbCommit    Verb = "commit"
	VerbWin       Verb = "win"
	VerbNegotiate Verb = "negotiate"
	VerbCoop      Verb = "coop"
	VerbAuto      Verb = "auto"
	VerbNew       Verb = "new"
	VerbSave      Verb = "save"
	VerbLoad      Verb = "load"
	VerbSlots     Verb = "slots"
	VerbHelp      Verb = "help"
	VerbQuit      Verb = "quit"
)

// Side names a conflict participant relative to the pending interaction.
type Side int

const (
	SideMover Side = iota
	SideOccupant
)

// Command is one parsed line. Only the fields relevant to Verb are set.
type Command struct {
	Verb      Verb
	Magnitude float64
	HasValue  bool
	Value     int
	Sect      models.SectID
	Stat      models.StatKind
	Option    int
	Success   bool
	Flag      bool
	Side      Side
	Text      string
}

type verbDef struct {
	verb    Verb
	aliases []string
	usage   string
}

var verbs = []verbDef{
	{VerbGo, []string{"move", "advance", "前进", "移动"}, "go N            propose moving the active sect N 里"},
	{VerbSkip, []string{"pass", "跳过"}, "skip            skip the active sect's turn"},
	{VerbSet, []string{"edit", "设定"}, "set SECT STAT V overwrite a sect's stat"},
	{VerbPick, []string{"choose", "option", "选"}, "pick A|B ok|fail pre-fill from an event option"},
	{VerbStat, []string{"adjust"}, "stat STAT ±N     set the draft stat change"},
	{VerbDelta, []string{"distance"}, "delta N         set the draft move delta"},
	{VerbStop, []string{"halt", "滞留"}, "stop on|off     skip the sect's next turn"},
	{VerbAgain, []string{"repeat", "再动"}, "again on|off    let the sect act again"},
	{VerbLog, []string{"note", "text"}, "log TEXT        set the draft log line"},
	{VerbCommit, []string{"ok", "apply", "确认"}, "commit          apply the draft"},
	{VerbWin, []string{"victory", "胜"}, "win mover|occupant [N]       battle ruling, loser retreats N"},
	{VerbNegotiate, []string{"talk", "谈判"}, "negotiate mover|occupant [N] negotiated ruling"},
	{VerbCoop, []string{"cooperate", "ally", "联手"}, "coop            the sects cooperate"},
	{VerbAuto, []string{"referee", "自动"}, "auto [N]        let the referee rule the turn"},
	{VerbNew, []string{"restart", "新局"}, "new             start a new game"},
	{VerbSave, []string{"存档"}, "save SLOT       save to a slot"},
	{VerbLoad, []string{"restore", "读档"}, "load SLOT       load a slot"},
	{VerbSlots, []string{"list", "saves"}, "slots           list save slots"},
	{VerbHelp, []string{"h", "?", "帮助"}, "help            show this list"},
	{VerbQuit, []string{"exit", "q", "退出"}, "quit            leave"},
}

// Usage lists every command.
func Usage() string {
	var b strings.Builder
	for _, d := range verbs {
		b.WriteString(d.usage)
		b.WriteByte('\n')
	}
	return strings.TrimRight(b.String(), "\n")
}

func usageOf(v Verb) string {
	for _, d := range verbs {
		if d.verb == v {
			return d.usage
		}
	}
	return string(v)
}

func usageErr(v Verb) error {
	return fmt.Errorf("%w: %s", ErrUsage, usageOf(v))
}

// levenshteinLimit is the edit distance tolerated for a word of the given
// rune length.
func levenshteinLimit(length int) int {
	switch {
	case length <= 2:
		return 0
	case length <= 4:
		return 1
	case length <= 8:
		return 2
	default:
		return 3
	}
}

type candidate struct {
	value string
	score float64
}

// bestMatch finds the closest candidate to token: exact, then prefix, then
// edit distance. Ties break alphabetically.
func bestMatch(token string, all []string) (string, bool) {
	var results []candidate
	for _, cand := range all {
		switch {
		case token == cand:
			results = append(results, candidate{cand, 1.0})
		case utf8.RuneCountInString(token) >= 2 && strings.HasPrefix(cand, token):
			results = append(results, candidate{cand, 0.9})
		default:
			dist := levenshtein.ComputeDistance(token, cand)
			if dist > levenshteinLimit(utf8.RuneCountInString(cand)) {
				continue
			}
			results = append(results, candidate{cand, 0.72 - 0.08*float64(dist)})
		}
	}
	if len(results) == 0 {
		return "", false
	}
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].score == results[j].score {
			return results[i].value < results[j].value
		}
		return results[i].score > results[j].score
	})
	if len(results) > 1 && results[0].score == results[1].score && results[0].score < 1 {
		return "", false
	}
	return results[0].value, true
}

var verbIndex = func() map[string]Verb {
	m := map[string]Verb{}
	for _, d := range verbs {
		m[string(d.verb)] = d.verb
		for _, a := range d.aliases {
			m[a] = d.verb
		}
	}
	return m
}()

func matchVerb(token string) (Verb, bool) {
	keys := make([]string, 0, len(verbIndex))
	for k := range verbIndex {
		keys = append(keys, k)
	}
	k, ok := bestMatch(token, keys)
	if !ok {
		return "", false
	}
	return verbIndex[k], true
}

var sectIndex = func() map[string]models.SectID {
	m := map[string]models.SectID{}
	for _, id := range models.AllSects() {
		info := id.Info()
		m[strings.ToLower(info.Code)] = id
		m[info.Name] = id
	}
	return m
}()

// MatchSect resolves a sect by code or name, tolerating typos.
func MatchSect(token string) (models.SectID, error) {
	if id, err := models.ParseSect(token); err == nil {
		return id, nil
	}
	keys := make([]string, 0, len(sectIndex))
	for k := range sectIndex {
		keys = append(keys, k)
	}
	k, ok := bestMatch(strings.ToLower(token), keys)
	if !ok {
		return 0, fmt.Errorf("%w: %q", models.ErrUnknownSect, token)
	}
	return sectIndex[k], nil
}

func parseStat(token string) (models.StatKind, error) {
	k, err := models.ParseStat(token)
	if err == nil && k != models.StatNone {
		return k, nil
	}
	names := make([]string, 0, 4)
	for _, s := range models.StatKinds() {
		names = append(names, string(s))
	}
	m, ok := bestMatch(strings.ToLower(token), names)
	if !ok {
		return "", fmt.Errorf("%w: %q", models.ErrUnknownStat, token)
	}
	return models.StatKind(m), nil
}

func parseSwitch(token string) (bool, bool) {
	switch strings.ToLower(token) {
	case "on", "yes", "y", "true", "1", "开":
		return true, true
	case "off", "no", "n", "false", "0", "关":
		return false, true
	}
	return false, false
}

func parseVerdict(token string) (bool, bool) {
	switch strings.ToLower(token) {
	case "ok", "success", "pass", "win", "y", "成功":
		return true, true
	case "fail", "failure", "lose", "n", "失败":
		return false, true
	}
	return false, false
}

func parseOption(token string) (int, bool) {
	switch strings.ToLower(token) {
	case "a", "1":
		return 0, true
	case "b", "2":
		return 1, true
	}
	return 0, false
}

func parseSide(token string) (Side, bool) {
	switch strings.ToLower(token) {
	case "mover", "m", "attacker", "来者":
		return SideMover, true
	case "occupant", "o", "defender", "守者":
		return SideOccupant, true
	}
	return 0, false
}

// parseMagnitude reads a move size; anything non-numeric counts as 0.
func parseMagnitude(token string) float64 {
	if f, err := strconv.ParseFloat(token, 64); err == nil {
		return f
	}
	return float64(engine.ParseDelta(token))
}

// Parse reads one command line.
func Parse(line string) (Command, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return Command{}, fmt.Errorf("%w: empty input", ErrUnknownCommand)
	}
	verb, ok := matchVerb(strings.ToLower(fields[0]))
	if !ok {
		return Command{}, fmt.Errorf("%w: %q (try help)", ErrUnknownCommand, fields[0])
	}
	args := fields[1:]
	cmd := Command{Verb: verb}

	switch verb {
	case VerbGo:
		if len(args) != 1 {
			return cmd, usageErr(verb)
		}
		cmd.Magnitude = parseMagnitude(args[0])

	case VerbAuto:
		if len(args) > 1 {
			return cmd, usageErr(verb)
		}
		if len(args) == 1 {
			cmd.Magnitude = parseMagnitude(args[0])
			cmd.HasValue = true
		}

	case VerbSet:
		if len(args) != 3 {
			return cmd, usageErr(verb)
		}
		sect, err := MatchSect(args[0])
		if err != nil {
			return cmd, err
		}
		stat, err := parseStat(args[1])
		if err != nil {
			return cmd, err
		}
		v, err := strconv.Atoi(args[2])
		if err != nil {
			return cmd, usageErr(verb)
		}
		cmd.Sect, cmd.Stat, cmd.Value = sect, stat, v

	case VerbPick:
		if len(args) != 2 {
			return cmd, usageErr(verb)
		}
		opt, ok1 := parseOption(args[0])
		success, ok2 := parseVerdict(args[1])
		if !ok1 || !ok2 {
			return cmd, usageErr(verb)
		}
		cmd.Option, cmd.Success = opt, success

	case VerbStat:
		if len(args) != 2 {
			return cmd, usageErr(verb)
		}
		stat, err := parseStat(args[0])
		if err != nil {
			return cmd, err
		}
		cmd.Stat, cmd.Value = stat, engine.ParseDelta(args[1])

	case VerbDelta:
		if len(args) != 1 {
			return cmd, usageErr(verb)
		}
		cmd.Value = engine.ParseDelta(args[0])

	case VerbStop, VerbAgain:
		if len(args) != 1 {
			return cmd, usageErr(verb)
		}
		flag, ok := parseSwitch(args[0])
		if !ok {
			return cmd, usageErr(verb)
		}
		cmd.Flag = flag

	case VerbLog:
		cmd.Text = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), fields[0]))

	case VerbWin, VerbNegotiate:
		if len(args) < 1 || len(args) > 2 {
			return cmd, usageErr(verb)
		}
		side, ok := parseSide(args[0])
		if !ok {
			return cmd, usageErr(verb)
		}
		cmd.Side = side
		cmd.Value = engine.DefaultRetreat
		if len(args) == 2 {
			n, err := strconv.Atoi(args[1])
			if err != nil || n < 0 {
				return cmd, usageErr(verb)
			}
			cmd.Value, cmd.HasValue = n, true
		}

	case VerbSave, VerbLoad:
		if len(args) != 1 {
			return cmd, usageErr(verb)
		}
		cmd.Text = args[0]

	default:
		if len(args) != 0 {
			return cmd, usageErr(verb)
		}
	}
	return cmd, nil
}
