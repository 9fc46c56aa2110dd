package services

import (
	"context"
	"encoding/json"
	"time"

	"closetai/models"

	"github.com/rs/zerolog/log"
)

type OutfitGeneratorProvider interface {
	Generate(ctx context.Context, in GenerateOutfitsInput) (*OutfitGeneration, error)
}

type GenerateOutfitsInput struct {
	Items       []models.InventoryItem
	Profile     models.UserProfile
	Environment models.EnvironmentContext
	Now         time.Time
}

type OutfitGeneration struct {
	Outfits    []models.GeneratedOutfit
	Conditions models.DerivedConditions
	Model      string
	// outfits the model proposed before validation
	RawCount int
}

type OutfitGenerator struct {
	Orchestrator *FallbackOrchestrator
	Count        int
}

// Generate runs derive -> prompt -> fallback call -> validate, in that order, on one snapshot.
func (g *OutfitGenerator) Generate(ctx context.Context, in GenerateOutfitsInput) (*OutfitGeneration, error) {
	now := in.Now
	if now.IsZero() {
		now = time.Now()
	}
	// callers may keep mutating their slice; everything below uses this copy
	snapshot := append([]models.InventoryItem(nil), in.Items...)

	conditions := DeriveConditions(in.Environment)
	prompt, plan := BuildOutfitPrompt(OutfitPromptInput{
		Items:      snapshot,
		Profile:    in.Profile,
		Conditions: conditions,
		Now:        now,
		Count:      g.Count,
	})

	raw, model, err := CallWithFallback[json.RawMessage](ctx, g.Orchestrator, GatewayRequest{
		Prompt:          prompt,
		MaxOutputTokens: OutfitMaxTokens,
	})
	if err != nil {
		return nil, err
	}

	outfits := plan.Validate(raw)
	rawCount := len(parseRawOutfits(raw))
	log.Ctx(ctx).Info().
		Str("model", model).
		Int("proposed", rawCount).
		Int("valid", len(outfits)).
		Str("context", conditions.ContextLabel).
		Msg("outfits generated")

	return &OutfitGeneration{
		Outfits:    outfits,
		Conditions: conditions,
		Model:      model,
		RawCount:   rawCount,
	}, nil
}
