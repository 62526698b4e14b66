package engine

import (
	crand "crypto/rand"
	"encoding/binary"
	"fmt"
	"math/rand/v2"

	"github.com/tatianab/seven-sects/internal/models"
)

// Weathers is the pool a new day's weather is drawn from.
var Weathers = []string{"晴", "多云", "小雨", "大雨", "大雾", "狂风", "飞雪"}

// WeatherRoller picks the weather for a new day.
type WeatherRoller func() string

// NewWeatherRoller draws uniformly from pool using a PCG source seeded
// with seed, so a fixed seed replays the same weather.
func NewWeatherRoller(seed int64, pool []string) WeatherRoller {
	rng := rand.New(rand.NewPCG(uint64(seed), uint64(seed)>>1|1))
	return func() string {
		return pool[rng.IntN(len(pool))]
	}
}

// NewSeed generates a random seed using crypto/rand.
func NewSeed() (int64, error) {
	var b [8]byte
	if _, err := crand.Read(b[:]); err != nil {
		return 0, fmt.Errorf("read random seed: %w", err)
	}
	return int64(binary.LittleEndian.Uint64(b[:])), nil
}

// Advance moves the turn cursor. With repeat the same sect acts again and
// nothing but the day-complete flag changes. Wrapping past the end of the
// queue starts a new day with fresh weather.
func Advance(s models.GameState, repeat bool, roll WeatherRoller) models.GameState {
	next := s.Clone()
	next.DayComplete = false
	if repeat {
		return next
	}
	next.ActiveIndex++
	if next.ActiveIndex >= len(next.TurnQueue) {
		next.ActiveIndex = 0
		next.Day++
		next.Weather = roll()
		next.DayComplete = true
	}
	return next
}

// SkipReason selects the log line written by ForceSkip.
type SkipReason int

const (
	// SkipDebuff is the automatic bypass of a sect carrying skipNextTurn.
	SkipDebuff SkipReason = iota
	// SkipManual is an explicit skip command from the DM.
	SkipManual
)

func (r SkipReason) message(sect models.SectID) string {
	if r == SkipManual {
		return sect.Tag() + "跳过本回合（状态已重置）。"
	}
	return sect.Tag() + "结束滞留状态，整顿完毕。"
}

// ForceSkip clears sect's skip flag, logs the skip and advances the cursor.
func ForceSkip(s models.GameState, sect models.SectID, reason SkipReason, roll WeatherRoller) models.GameState {
	next := s.Clone()
	next.Sects[sect].SkipNextTurn = false
	next.AppendLog(models.LogSystem, reason.message(sect))
	return Advance(next, false, roll)
}
