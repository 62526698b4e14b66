package narrator

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/generative-ai-go/genai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tatianab/seven-sects/internal/location"
	"github.com/tatianab/seven-sects/internal/models"
)

type fakeModel struct {
	reply   string
	err     error
	prompts []string
}

func (f *fakeModel) GenerateContent(_ context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error) {
	for _, p := range parts {
		if t, ok := p.(genai.Text); ok {
			f.prompts = append(f.prompts, string(t))
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	if f.reply == "" {
		return &genai.GenerateContentResponse{}, nil
	}
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []genai.Part{genai.Text(f.reply)}},
		}},
	}, nil
}

func eventLocation(t *testing.T) models.LocationData {
	t.Helper()
	idx := location.Default()
	for b := 0; b <= models.Goal; b++ {
		if loc := idx.Locate(float64(b)); loc.Event != nil {
			return loc
		}
	}
	t.Fatal("default rulebook has no events")
	return models.LocationData{}
}

func TestRulebookConflictNarrative(t *testing.T) {
	text, err := Rulebook{}.ConflictNarrative(context.Background(), models.Tianhe, models.Dari, "断桥渡口", "大雾")
	require.NoError(t, err)
	assert.Equal(t, "在【断桥渡口】，天河剑宗与大日琉璃宫狭路相逢。大雾中，双方对峙，互不相让。", text)
}

func TestRulebookOpportunityBoundEvent(t *testing.T) {
	loc := eventLocation(t)
	payload, err := Rulebook{}.OpportunityEvent(context.Background(), models.SectState{}, loc, "晴")
	require.NoError(t, err)
	assert.Equal(t, loc.Event.Title, payload.Title)
	assert.Same(t, loc.Event, payload.Event)
	assert.Len(t, payload.Event.Options, 2)
}

func TestRulebookOpportunityFallback(t *testing.T) {
	payload, err := Rulebook{}.OpportunityEvent(context.Background(), models.SectState{}, models.LocationData{Name: "青石官道"}, "小雨")
	require.NoError(t, err)
	assert.Nil(t, payload.Event)
	assert.Equal(t, "荒野赶路", payload.Title)
	assert.Contains(t, payload.Description, "青石官道")
}

func TestGeminiConflictNarrative(t *testing.T) {
	model := &fakeModel{reply: "```yaml\nnarrative: \"两派对峙。\"\n```"}
	g := &Gemini{model: model}

	text, err := g.ConflictNarrative(context.Background(), models.Beige, models.Xueyi, "黑松林", "狂风")
	require.NoError(t, err)
	assert.Equal(t, "两派对峙。", text)
	require.Len(t, model.prompts, 1)
	assert.Contains(t, model.prompts[0], "悲歌书院")
	assert.Contains(t, model.prompts[0], "雪衣楼")
	assert.Contains(t, model.prompts[0], "黑松林")
}

func TestGeminiOpportunityKeepsRulebookEvent(t *testing.T) {
	loc := eventLocation(t)
	model := &fakeModel{reply: "description: 风起云涌。"}
	g := &Gemini{model: model}

	sect := models.SectState{ID: models.Nantuo, Stats: models.InitialStats()}
	payload, err := g.OpportunityEvent(context.Background(), sect, loc, "晴")
	require.NoError(t, err)
	assert.Equal(t, "风起云涌。", payload.Description)
	assert.Equal(t, loc.Event.Title, payload.Title)
	assert.Same(t, loc.Event, payload.Event)
	assert.True(t, strings.Contains(model.prompts[0], loc.Event.Title))
}

func TestGeminiFailures(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("quota exceeded")

	_, err := (&Gemini{model: &fakeModel{err: boom}}).ConflictNarrative(ctx, models.Tianhe, models.Beige, "x", "晴")
	assert.ErrorIs(t, err, boom)

	_, err = (&Gemini{model: &fakeModel{}}).ConflictNarrative(ctx, models.Tianhe, models.Beige, "x", "晴")
	assert.ErrorContains(t, err, "no content")

	_, err = (&Gemini{model: &fakeModel{reply: "narrative: \"\""}}).ConflictNarrative(ctx, models.Tianhe, models.Beige, "x", "晴")
	assert.Error(t, err)

	_, err = (&Gemini{model: &fakeModel{reply: "description: [unclosed"}}).OpportunityEvent(ctx, models.SectState{}, models.LocationData{Name: "x"}, "晴")
	assert.ErrorContains(t, err, "failed to parse YAML")
}
