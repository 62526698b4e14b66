// Package narrator provides the content providers the engine consults for
// encounter text: a deterministic rulebook and a Gemini-backed storyteller.
package narrator

import (
	"context"
	"fmt"

	"github.com/tatianab/seven-sects/internal/models"
)

const (
	fallbackTitle = "荒野赶路"
	fallbackText  = "平安无事，继续前行。"
)

// Rulebook is the offline provider. Opportunities come straight from the
// event bound to the location; conflicts get a fixed line.
type Rulebook struct{}

func (Rulebook) ConflictNarrative(_ context.Context, mover, occupant models.SectID, location, weather string) (string, error) {
	return fmt.Sprintf("在【%s】，%s与%s狭路相逢。%s中，双方对峙，互不相让。",
		location, mover.Name(), occupant.Name(), weather), nil
}

func (Rulebook) OpportunityEvent(_ context.Context, _ models.SectState, loc models.LocationData, weather string) (models.EventPayload, error) {
	if loc.Event == nil {
		return models.EventPayload{
			Title:       fallbackTitle,
			Description: fmt.Sprintf("【%s】%s。%s", loc.Name, weather, fallbackText),
		}, nil
	}
	return models.EventPayload{
		Title:       loc.Event.Title,
		Description: loc.Event.Narrative,
		Event:       loc.Event,
	}, nil
}
