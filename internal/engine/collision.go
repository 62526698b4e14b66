package engine

import (
	"math"

	"github.com/tatianab/seven-sects/internal/models"
)

// FindOccupant reports another sect standing in the bucket mover is trying
// to enter. The start and the goal are shared ground and never collide.
// When several sects share the bucket the first in turn-queue order wins.
func FindOccupant(s models.GameState, mover models.SectID, target float64) (models.SectID, bool) {
	if !(target > 0 && target < models.Goal) {
		return 0, false
	}
	bucket := math.Floor(target)
	for _, id := range scanOrder(s) {
		if id == mover {
			continue
		}
		if math.Floor(s.Sects[id].Progress) == bucket {
			return id, true
		}
	}
	return 0, false
}

// scanOrder is the turn queue followed by any sect missing from it.
func scanOrder(s models.GameState) []models.SectID {
	order := make([]models.SectID, 0, models.SectCount)
	var queued [models.SectCount]bool
	for _, id := range s.TurnQueue {
		if id.Valid() && !queued[id] {
			queued[id] = true
			order = append(order, id)
		}
	}
	for _, id := range models.AllSects() {
		if !queued[id] {
			order = append(order, id)
		}
	}
	return order
}
