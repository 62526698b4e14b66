// Package location maps progress along the path to named locations and the
// rulebook events bound to them.
package location

import (
	_ "embed"
	"errors"
	"fmt"
	"os"

	"github.com/tatianab/seven-sects/internal/models"
	"gopkg.in/yaml.v3"
)

//go:embed rulebook.yaml
var defaultRulebook []byte

var ErrInvalidRulebook = errors.New("invalid rulebook")

type entry struct {
	At    int               `yaml:"at"`
	Name  string            `yaml:"name"`
	Desc  string            `yaml:"desc"`
	Event *models.GameEvent `yaml:"event"`
}

type rulebook struct {
	Locations []entry `yaml:"locations"`
}

// Index is a read-only table with one entry per bucket in [0, Goal].
type Index struct {
	table [models.Goal + 1]models.LocationData
}

// Default returns the index built from the embedded rulebook.
func Default() *Index {
	idx, err := Parse(defaultRulebook)
	if err != nil {
		panic(fmt.Sprintf("embedded rulebook: %v", err))
	}
	return idx
}

// LoadFile reads a rulebook from path. An empty path yields Default.
func LoadFile(path string) (*Index, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rulebook: %w", err)
	}
	return Parse(data)
}

// Parse builds an index from a YAML rulebook. Entries are sparse; buckets
// without an entry inherit the previous entry's name and description but
// not its event.
func Parse(data []byte) (*Index, error) {
	var rb rulebook
	if err := yaml.Unmarshal(data, &rb); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRulebook, err)
	}

	byBucket := make(map[int]entry, len(rb.Locations))
	for _, e := range rb.Locations {
		if e.At < 0 || e.At > models.Goal {
			return nil, fmt.Errorf("%w: location %q at %d outside [0, %d]", ErrInvalidRulebook, e.Name, e.At, models.Goal)
		}
		if _, dup := byBucket[e.At]; dup {
			return nil, fmt.Errorf("%w: duplicate bucket %d", ErrInvalidRulebook, e.At)
		}
		if e.Name == "" {
			return nil, fmt.Errorf("%w: bucket %d has no name", ErrInvalidRulebook, e.At)
		}
		if err := validateEvent(e.Event); err != nil {
			return nil, fmt.Errorf("%w: bucket %d: %v", ErrInvalidRulebook, e.At, err)
		}
		byBucket[e.At] = e
	}
	if _, ok := byBucket[0]; !ok {
		return nil, fmt.Errorf("%w: bucket 0 is required", ErrInvalidRulebook)
	}

	idx := &Index{}
	var cur entry
	for b := 0; b <= models.Goal; b++ {
		loc := models.LocationData{ID: b}
		if e, ok := byBucket[b]; ok {
			cur = e
			loc.Event = e.Event
		}
		loc.Name = cur.Name
		loc.Desc = cur.Desc
		idx.table[b] = loc
	}
	return idx, nil
}

func validateEvent(ev *models.GameEvent) error {
	if ev == nil {
		return nil
	}
	if ev.Title == "" {
		return errors.New("event has no title")
	}
	if len(ev.Options) != 2 {
		return fmt.Errorf("event %q has %d options, want 2", ev.Title, len(ev.Options))
	}
	for _, opt := range ev.Options {
		switch opt.CheckStat {
		case models.StatMartial, models.StatStrategy, models.StatWealth, models.StatPrestige, models.StatNone:
		default:
			return fmt.Errorf("event %q option %q: %w: %q", ev.Title, opt.Label, models.ErrUnknownStat, opt.CheckStat)
		}
	}
	return nil
}

// Locate clamps progress into [0, Goal], floors it and returns that bucket.
// The bound event is a copy the caller may modify.
func (idx *Index) Locate(progress float64) models.LocationData {
	b := models.Bucket(progress)
	if b < 0 || b >= len(idx.table) {
		b = 0
	}
	loc := idx.table[b]
	loc.Event = loc.Event.Clone()
	return loc
}

// Len is the number of buckets.
func (idx *Index) Len() int {
	return len(idx.table)
}

// Start is the bucket-0 entry.
func (idx *Index) Start() models.LocationData {
	return idx.table[0]
}
