package engine

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/tatianab/seven-sects/internal/models"
)

// MaxChainDepth bounds nested occupant lookups. A conflict normally resolves
// in a single adjudication step, so the bound is only reached by a broken
// configuration.
const MaxChainDepth = 5

// ContentProvider supplies narrative for encounters. Implementations must not
// touch engine state; they may block and may fail.
type ContentProvider interface {
	ConflictNarrative(ctx context.Context, mover, occupant models.SectID, location, weather string) (string, error)
	OpportunityEvent(ctx context.Context, sect models.SectState, loc models.LocationData, weather string) (models.EventPayload, error)
}

// Locator maps progress to a location.
type Locator interface {
	Locate(progress float64) models.LocationData
}

// InteractionKind tells conflicts from opportunities.
type InteractionKind int

const (
	KindConflict InteractionKind = iota
	KindOpportunity
)

func (k InteractionKind) String() string {
	if k == KindConflict {
		return "conflict"
	}
	return "opportunity"
}

func (k InteractionKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Interaction is the single pending encounter awaiting adjudication.
// Occupant and Narrative are set for conflicts, Payload for opportunities.
type Interaction struct {
	ID              uuid.UUID           `json:"id"`
	Kind            InteractionKind     `json:"kind"`
	Mover           models.SectID       `json:"mover"`
	Occupant        models.SectID       `json:"occupant"`
	LocationName    string              `json:"locationName"`
	PendingProgress float64             `json:"pendingProgress"`
	Narrative       string              `json:"narrative,omitempty"`
	Payload         models.EventPayload `json:"payload"`
}

// Event is the bound rulebook event, nil for conflicts and fallbacks.
func (in Interaction) Event() *models.GameEvent {
	return in.Payload.Event
}

// resolveMove builds the interaction for mover trying to reach target: a
// conflict when the bucket is occupied, otherwise an opportunity.
func resolveMove(ctx context.Context, p ContentProvider, loc Locator, s models.GameState, mover models.SectID, target float64, depth int) (Interaction, error) {
	if occupant, ok := FindOccupant(s, mover, target); ok && depth < MaxChainDepth {
		return conflictInteraction(ctx, p, loc, s, mover, occupant, target)
	}
	return opportunityInteraction(ctx, p, loc, s, mover, target)
}

func conflictInteraction(ctx context.Context, p ContentProvider, loc Locator, s models.GameState, mover, occupant models.SectID, target float64) (Interaction, error) {
	where := loc.Locate(target)
	text, err := p.ConflictNarrative(ctx, mover, occupant, where.Name, s.Weather)
	if err != nil {
		return Interaction{}, fmt.Errorf("conflict narrative: %w", err)
	}
	return Interaction{
		ID:              uuid.New(),
		Kind:            KindConflict,
		Mover:           mover,
		Occupant:        occupant,
		LocationName:    where.Name,
		PendingProgress: target,
		Narrative:       text,
	}, nil
}

func opportunityInteraction(ctx context.Context, p ContentProvider, loc Locator, s models.GameState, mover models.SectID, target float64) (Interaction, error) {
	where := loc.Locate(target)
	payload, err := p.OpportunityEvent(ctx, s.Sects[mover], where, s.Weather)
	if err != nil {
		return Interaction{}, fmt.Errorf("opportunity event: %w", err)
	}
	return Interaction{
		ID:              uuid.New(),
		Kind:            KindOpportunity,
		Mover:           mover,
		LocationName:    where.Name,
		PendingProgress: target,
		Payload:         payload,
	}, nil
}
