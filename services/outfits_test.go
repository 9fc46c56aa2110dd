package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"closetai/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutfitGeneratorValidatesAgainstPrompt(t *testing.T) {
	g := newStubGateway().
		fail("primary", statusError("primary", 429, "rate limited")).
		reply("backup", "```json\n"+`{"outfits": [
			{"slots": {"top": "tee", "bottom": "shorts", "shoes": "sneakers"}, "extras": ["shades"], "occasion": "Beach", "why": "Breezy"},
			{"slots": {"top": "tee", "outerwear": "parka"}, "occasion": "Nonsense"}
		]}`+"\n```")
	generator := &OutfitGenerator{Orchestrator: mustOrchestrator(t, g, "primary", "backup"), Count: 2}

	inventory := sampleInventory()
	result, err := generator.Generate(context.Background(), GenerateOutfitsInput{
		Items:       inventory,
		Environment: models.SeasonContext(models.SeasonSummer),
		Now:         time.Date(2025, 7, 14, 9, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	assert.Equal(t, "backup", result.Model)
	assert.Equal(t, 2, result.RawCount)
	require.Len(t, result.Outfits, 1)
	assert.Equal(t, []string{"tee", "shorts", "sneakers", "shades"}, result.Outfits[0].ItemIDs())
	assert.Equal(t, "Season: summer", result.Conditions.ContextLabel)

	require.Len(t, g.prompts, 2)
	assert.Equal(t, g.prompts[0], g.prompts[1])
	assert.Contains(t, g.prompts[0], "Create 2 outfit combinations")
}

func TestOutfitGeneratorPropagatesErrors(t *testing.T) {
	g := newStubGateway().fail("only", statusError("only", 503, "busy"))
	generator := &OutfitGenerator{Orchestrator: mustOrchestrator(t, g, "only")}

	_, err := generator.Generate(context.Background(), GenerateOutfitsInput{Items: sampleInventory(), Environment: models.SeasonContext(models.SeasonFall)})
	assert.True(t, errors.Is(err, ErrModelsExhausted))
}

func TestInsightAnalyzerParsesLooseAnswer(t *testing.T) {
	g := newStubGateway().reply("m", `{
		"styleProfile": " Smart casual with a preppy streak ",
		"gaps": ["Rain jacket", 3, ""],
		"versatility": "High",
		"colorAnalysis": "Neutral base",
		"seasonReadiness": {"Spring": "Ready", "autumn": "Mostly", "monsoon": "?"},
		"recommendations": "not a list",
		"fashionTips": ["Roll the sleeves"],
		"styleTwins": [{"name": "Ryan Gosling", "why": "Clean lines"}, {"why": "no name"}, "bad"]
	}`)
	analyzer := &InsightAnalyzer{Orchestrator: mustOrchestrator(t, g, "m")}

	stats := ComputeWardrobeStats(statsInventory())
	report, err := analyzer.Analyze(context.Background(), stats, models.UserProfile{}, time.Now())
	require.NoError(t, err)

	assert.Equal(t, 5, report.ItemCount)
	assert.Equal(t, "Smart casual with a preppy streak", report.StyleProfile)
	assert.Equal(t, []string{"Rain jacket"}, []string(report.Gaps))
	assert.Equal(t, "Ready", report.SeasonReadiness.Spring)
	assert.Equal(t, "Mostly", report.SeasonReadiness.Fall)
	assert.Empty(t, report.SeasonReadiness.Winter)
	assert.Empty(t, report.Recommendations)
	assert.Equal(t, []models.StyleTwin{{Name: "Ryan Gosling", Why: "Clean lines"}}, []models.StyleTwin(report.StyleTwins))
	require.NotNil(t, report.LLMModel)
	assert.Equal(t, "m", *report.LLMModel)
}
