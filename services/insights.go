package services

import (
	"context"
	"strings"
	"time"

	"closetai/models"
)

type InsightAnalyzerProvider interface {
	Analyze(ctx context.Context, stats models.WardrobeStats, profile models.UserProfile, now time.Time) (*models.InsightReport, error)
}

// rawInsight mirrors the requested schema loosely; every field may be missing or mistyped.
type rawInsight struct {
	StyleProfile    any `json:"styleProfile"`
	Gaps            any `json:"gaps"`
	Versatility     any `json:"versatility"`
	ColorAnalysis   any `json:"colorAnalysis"`
	SeasonReadiness any `json:"seasonReadiness"`
	Recommendations any `json:"recommendations"`
	FashionTips     any `json:"fashionTips"`
	StyleTwins      any `json:"styleTwins"`
}

func stringList(v any) []string {
	list, ok := v.([]any)
	if !ok {
		return []string{}
	}
	out := make([]string, 0, len(list))
	for _, entry := range list {
		if s := stringValue(entry); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func styleTwins(v any) []models.StyleTwin {
	list, ok := v.([]any)
	if !ok {
		return []models.StyleTwin{}
	}
	out := make([]models.StyleTwin, 0, len(list))
	for _, entry := range list {
		m, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		name := stringValue(m["name"])
		if name == "" {
			continue
		}
		out = append(out, models.StyleTwin{Name: name, Why: stringValue(m["why"])})
	}
	return out
}

func seasonReadiness(v any) models.SeasonReadiness {
	var r models.SeasonReadiness
	m, ok := v.(map[string]any)
	if !ok {
		return r
	}
	for key, value := range m {
		season, ok := models.ParseSeason(key)
		if !ok {
			continue
		}
		text := stringValue(value)
		switch season {
		case models.SeasonSpring:
			r.Spring = text
		case models.SeasonSummer:
			r.Summer = text
		case models.SeasonFall:
			r.Fall = text
		case models.SeasonWinter:
			r.Winter = text
		}
	}
	return r
}

type InsightAnalyzer struct {
	Orchestrator *FallbackOrchestrator
}

func (a *InsightAnalyzer) Analyze(ctx context.Context, stats models.WardrobeStats, profile models.UserProfile, now time.Time) (*models.InsightReport, error) {
	prompt := BuildInsightPrompt(stats, profile, now)
	raw, model, err := CallWithFallback[rawInsight](ctx, a.Orchestrator, GatewayRequest{
		Prompt:          prompt,
		MaxOutputTokens: InsightMaxTokens,
	})
	if err != nil {
		return nil, err
	}
	return &models.InsightReport{
		ItemCount:       stats.TotalItems,
		StyleProfile:    strings.TrimSpace(stringValue(raw.StyleProfile)),
		Gaps:            stringList(raw.Gaps),
		Versatility:     stringValue(raw.Versatility),
		ColorAnalysis:   stringValue(raw.ColorAnalysis),
		SeasonReadiness: seasonReadiness(raw.SeasonReadiness),
		Recommendations: stringList(raw.Recommendations),
		FashionTips:     stringList(raw.FashionTips),
		StyleTwins:      styleTwins(raw.StyleTwins),
		LLMModel:        &model,
	}, nil
}
