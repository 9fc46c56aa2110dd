package services

import (
	"context"
	"fmt"
	"strings"

	"closetai/languageutil"
	"closetai/models"

	"github.com/rs/zerolog/log"
)

type PhotoAnalyzerProvider interface {
	Analyze(ctx context.Context, image []byte) (*models.PhotoAnalysis, error)
}

type rawPhotoAnalysis struct {
	Item        any `json:"item"`
	Category    any `json:"category"`
	Subcategory any `json:"subcategory"`
	Color       any `json:"color"`
	Brand       any `json:"brand"`
	Season      any `json:"season"`
	Materials   any `json:"materials"`
}

type PhotoAnalyzer struct {
	Orchestrator *FallbackOrchestrator
}

func (a *PhotoAnalyzer) Analyze(ctx context.Context, image []byte) (*models.PhotoAnalysis, error) {
	data, mimeType, err := PrepareForAnalysis(image)
	if err != nil {
		// formats imaging can't decode (webp) go out untouched
		sniffed, ok := DetectImageType(image)
		if !ok {
			return nil, fmt.Errorf("prepare photo: %w", err)
		}
		log.Ctx(ctx).Warn().Err(err).Str("mime", sniffed).Msg("sending photo without resizing")
		data, mimeType = image, sniffed
	}

	raw, model, err := CallWithFallback[rawPhotoAnalysis](ctx, a.Orchestrator, GatewayRequest{
		Prompt:          BuildPhotoAnalysisPrompt(),
		MaxOutputTokens: PhotoMaxTokens,
		Image:           &InlineImage{MIMEType: mimeType, Data: data},
	})
	if err != nil {
		return nil, err
	}
	return normalizePhotoAnalysis(raw, model), nil
}

func normalizePhotoAnalysis(raw rawPhotoAnalysis, model string) *models.PhotoAnalysis {
	// an unknown category stays empty, the client asks the user to pick one
	category, _ := models.ParseCategory(stringValue(raw.Category))

	return &models.PhotoAnalysis{
		Item:        strings.TrimSpace(stringValue(raw.Item)),
		Category:    category,
		Subcategory: StrPointer(languageutil.NormalizeTag(stringValue(raw.Subcategory))),
		Colors:      normalizeTags(looseList(raw.Color)),
		Brand:       StrPointer(strings.TrimSpace(stringValue(raw.Brand))),
		Seasons:     models.NormalizeSeasons(looseList(raw.Season)),
		Materials:   normalizeTags(looseList(raw.Materials)),
		Model:       model,
	}
}

// looseList accepts either a JSON array or a single comma separated string.
func looseList(v any) []string {
	if s, ok := v.(string); ok {
		parts := strings.Split(s, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		return out
	}
	return stringList(v)
}

func normalizeTags(values []string) []string {
	out := make([]string, 0, len(values))
	seen := map[string]bool{}
	for _, v := range values {
		tag := languageutil.NormalizeTag(v)
		if tag == "" || seen[tag] {
			continue
		}
		seen[tag] = true
		out = append(out, tag)
	}
	return out
}
