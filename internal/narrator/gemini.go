package narrator

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"strings"
	"text/template"

	"github.com/google/generative-ai-go/genai"
	"github.com/tatianab/seven-sects/internal/models"
	"google.golang.org/api/option"
	"gopkg.in/yaml.v3"
)

//go:embed prompts/conflict_narrative.txt
var conflictNarrativePrompt string

//go:embed prompts/opportunity_scene.txt
var opportunityScenePrompt string

var (
	conflictTmpl    = template.Must(template.New("conflict_narrative").Parse(conflictNarrativePrompt))
	opportunityTmpl = template.Must(template.New("opportunity_scene").Parse(opportunityScenePrompt))
)

// DefaultModel is used when no model name is configured.
const DefaultModel = "gemini-2.5-flash"

type generator interface {
	GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

// Gemini narrates conflicts and scenes with a Gemini model. The structured
// event attached to an opportunity always comes from the rulebook; the model
// only writes prose.
type Gemini struct {
	client *genai.Client
	model  generator
	rules  Rulebook
}

func NewGemini(ctx context.Context, apiKey, modelName string) (*Gemini, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}
	if modelName == "" {
		modelName = DefaultModel
	}
	return &Gemini{
		client: client,
		model:  client.GenerativeModel(modelName),
	}, nil
}

func (g *Gemini) Close() {
	if g.client != nil {
		g.client.Close()
	}
}

func (g *Gemini) ConflictNarrative(ctx context.Context, mover, occupant models.SectID, location, weather string) (string, error) {
	data := struct {
		Location string
		Weather  string
		Mover    models.SectInfo
		Occupant models.SectInfo
	}{
		Location: location,
		Weather:  weather,
		Mover:    mover.Info(),
		Occupant: occupant.Info(),
	}

	var out struct {
		Narrative string `yaml:"narrative"`
	}
	if err := g.ask(ctx, conflictTmpl, data, &out); err != nil {
		return "", err
	}
	if strings.TrimSpace(out.Narrative) == "" {
		return "", fmt.Errorf("empty conflict narrative from Gemini")
	}
	return strings.TrimSpace(out.Narrative), nil
}

func (g *Gemini) OpportunityEvent(ctx context.Context, sect models.SectState, loc models.LocationData, weather string) (models.EventPayload, error) {
	payload, err := g.rules.OpportunityEvent(ctx, sect, loc, weather)
	if err != nil {
		return models.EventPayload{}, err
	}

	data := struct {
		Weather  string
		Sect     models.SectInfo
		Stats    models.Stats
		Location models.LocationData
		Event    *models.GameEvent
	}{
		Weather:  weather,
		Sect:     sect.ID.Info(),
		Stats:    sect.Stats,
		Location: loc,
		Event:    loc.Event,
	}

	var out struct {
		Description string `yaml:"description"`
	}
	if err := g.ask(ctx, opportunityTmpl, data, &out); err != nil {
		return models.EventPayload{}, err
	}
	if d := strings.TrimSpace(out.Description); d != "" {
		payload.Description = d
	}
	return payload, nil
}

func (g *Gemini) ask(ctx context.Context, tmpl *template.Template, data any, out any) error {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return err
	}

	resp, err := g.model.GenerateContent(ctx, genai.Text(buf.String()))
	if err != nil {
		return err
	}

	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return fmt.Errorf("no content returned from Gemini")
	}

	part := resp.Candidates[0].Content.Parts[0]
	text, ok := part.(genai.Text)
	if !ok {
		return fmt.Errorf("unexpected response type from Gemini")
	}

	cleanYAML := strings.TrimSpace(string(text))
	cleanYAML = strings.TrimPrefix(cleanYAML, "```yaml")
	cleanYAML = strings.TrimPrefix(cleanYAML, "```")
	cleanYAML = strings.TrimSuffix(cleanYAML, "```")

	if err := yaml.Unmarshal([]byte(cleanYAML), out); err != nil {
		return fmt.Errorf("failed to parse YAML: %v\nOutput was: %s", err, cleanYAML)
	}
	return nil
}
