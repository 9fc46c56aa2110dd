package services

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"closetai/models"
)

const (
	OutfitMaxTokens  = 2000
	InsightMaxTokens = 1500
	PhotoMaxTokens   = 500

	defaultOutfitCount = 5
)

// AgeOn returns full years between birthDate and now.
func AgeOn(birthDate string, now time.Time) (int, bool) {
	birth, ok := models.ParseBirthDate(birthDate)
	if !ok || birth.After(now) {
		return 0, false
	}
	age := now.Year() - birth.Year()
	if now.Month() < birth.Month() || (now.Month() == birth.Month() && now.Day() < birth.Day()) {
		age--
	}
	return age, true
}

func profileLines(profile models.UserProfile, now time.Time) []string {
	var lines []string
	if g := strings.TrimSpace(Deref(profile.Gender)); g != "" {
		lines = append(lines, "Gender: "+g)
	}
	if profile.BirthDate != nil {
		if age, ok := AgeOn(*profile.BirthDate, now); ok {
			lines = append(lines, fmt.Sprintf("Age: %d", age))
		}
	}
	if goal := strings.TrimSpace(Deref(profile.StyleGoal)); goal != "" {
		lines = append(lines, "Desired style: "+goal)
	}
	return lines
}

type promptItem struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Subcategory string   `json:"subcategory,omitempty"`
	Colors      []string `json:"colors,omitempty"`
	Brand       string   `json:"brand,omitempty"`
	OffSeason   bool     `json:"offSeason,omitempty"`
}

func writeItems(b *strings.Builder, items []models.InventoryItem, season models.Season) {
	for _, item := range items {
		line, _ := json.Marshal(promptItem{
			ID:          item.ID,
			Name:        item.Name,
			Subcategory: item.SubcategoryName(),
			Colors:      item.Colors,
			Brand:       Deref(item.Brand),
			OffSeason:   item.OffSeason(season),
		})
		b.Write(line)
		b.WriteByte('\n')
	}
}

type OutfitPromptInput struct {
	Items      []models.InventoryItem
	Profile    models.UserProfile
	Conditions models.DerivedConditions
	Now        time.Time
	Count      int
}

// BuildOutfitPrompt plans the generation and renders it. The returned plan is what answers must be
// validated against.
func BuildOutfitPrompt(in OutfitPromptInput) (string, OutfitPlan) {
	plan := PlanOutfit(in.Items, in.Conditions)
	count := in.Count
	if count <= 0 {
		count = defaultOutfitCount
	}
	cond := in.Conditions

	var b strings.Builder
	fmt.Fprintf(&b, "You are a fashion stylist. Create %d outfit combinations from the wardrobe items below.\n", count)

	if lines := profileLines(in.Profile, in.Now); len(lines) > 0 {
		b.WriteString("\nUSER PROFILE:\n")
		for _, line := range lines {
			b.WriteString(line + "\n")
		}
		b.WriteString("Tailor all outfit suggestions to this person.\n")
	}

	b.WriteString("\nCONTEXT:\n")
	b.WriteString(cond.ContextLabel + "\n")
	fmt.Fprintf(&b, "Season: %s\n", cond.Season)
	var flags []string
	if cond.IsHot {
		flags = append(flags, "hot")
	}
	if cond.IsCold {
		flags = append(flags, "cold")
	}
	if cond.IsSunny {
		flags = append(flags, "sunny")
	}
	if len(flags) > 0 {
		fmt.Fprintf(&b, "Conditions: %s\n", strings.Join(flags, ", "))
	}

	b.WriteString("\nSLOTS (at most one item id per slot):\n")
	for _, pool := range plan.Slots {
		requirement := "optional"
		if pool.Required {
			requirement = "required"
		}
		fmt.Fprintf(&b, "%s (\"%s\") - %s:\n", strings.ToUpper(pool.Slot.Label), pool.Slot.ID, requirement)
		if len(pool.Items) == 0 {
			b.WriteString("(no items, leave this slot out)\n")
			continue
		}
		writeItems(&b, pool.Items, cond.Season)
	}

	if len(plan.Extras) > 0 {
		b.WriteString("\nACCESSORIES (put their ids in \"extras\"):\n")
		writeItems(&b, plan.Extras, cond.Season)
		if plan.HasWatch() {
			b.WriteString("Always include a watch.\n")
		}
		if plan.HasBag() {
			b.WriteString("Always include a bag.\n")
		}
		if cond.IsSunny && plan.HasEyewear() {
			b.WriteString("It is sunny: prefer adding eyewear.\n")
		}
	}

	b.WriteString(`
Rules:
- Fill every required slot; add optional slots only when they complement the outfit
- Items marked "offSeason": true are not made for the current season; use them only when nothing else fits
- Consider color coordination and style coherence
- Each item can appear in multiple outfits
- Reference items ONLY by their exact "id" field from the lists above
- Make outfits for different occasions (casual, smart casual, weekend, etc.)

Respond with ONLY valid JSON, no markdown fences:
{
  "outfits": [
    {
      "slots": {"top": "exact-id", "bottom": "exact-id", "shoes": "exact-id"},
      "extras": ["exact-id"],
      "occasion": "Short occasion label",
      "why": "1 sentence explaining why these items work together"
    }
  ]
}`)
	return b.String(), plan
}

func joinCategories() string {
	names := make([]string, 0, len(models.Categories))
	for _, c := range models.Categories {
		names = append(names, string(c))
	}
	return strings.Join(names, ", ")
}

func joinSeasons() string {
	names := make([]string, 0, len(models.Seasons))
	for _, s := range models.Seasons {
		names = append(names, string(s))
	}
	return strings.Join(names, ", ")
}

func BuildPhotoAnalysisPrompt() string {
	return fmt.Sprintf(`You are a fashion expert. Analyze this clothing/accessory photo and return a JSON object with these fields:
- "item": short name (e.g. "Oxford shirt", "Desert boots")
- "category": one of [%s]
- "subcategory": finer type (e.g. "shirt", "shorts", "sneakers", "watch", "sunglasses"), or null
- "color": array of colors (e.g. ["navy", "white"])
- "brand": brand name if visible, otherwise null
- "season": array of applicable seasons from [%s]; empty array if it works all year
- "materials": array of likely materials (e.g. ["cotton", "linen"])

Return ONLY valid JSON, no markdown fences.`, joinCategories(), joinSeasons())
}

func formatNameCounts(values []models.NameCount) string {
	parts := make([]string, 0, len(values))
	for _, v := range values {
		parts = append(parts, fmt.Sprintf("%s (%d)", v.Name, v.Count))
	}
	return strings.Join(parts, ", ")
}

func orNoData(s string, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

func BuildInsightPrompt(stats models.WardrobeStats, profile models.UserProfile, now time.Time) string {
	var b strings.Builder
	b.WriteString("You are a fashion consultant. Analyze this wardrobe data and provide actionable insights.\n")

	if lines := profileLines(profile, now); len(lines) > 0 {
		b.WriteString("\nUSER PROFILE:\n")
		for _, line := range lines {
			b.WriteString(line + "\n")
		}
		b.WriteString("Tailor ALL advice, recommendations, and celebrity comparisons to this person. Compare their current wardrobe against their desired style and suggest how to bridge the gap.\n")
	}

	fmt.Fprintf(&b, "\nWARDROBE SUMMARY (%d total items, %d categories):\n", stats.TotalItems, stats.CategoriesUsed)

	b.WriteString("\nCATEGORY DISTRIBUTION:\n")
	for _, c := range stats.CategoryDistribution {
		subs := make([]string, 0, len(c.Subcategories))
		for _, s := range c.Subcategories {
			subs = append(subs, fmt.Sprintf("%s ×%d", s.Name, s.Count))
		}
		fmt.Fprintf(&b, "%s: %d (%d%%)", c.Label, c.Count, c.Percentage)
		if len(subs) > 0 {
			fmt.Fprintf(&b, " [%s]", strings.Join(subs, ", "))
		}
		b.WriteByte('\n')
	}

	b.WriteString("\nSIZES BY CATEGORY:\n")
	if len(stats.SizesByCategory) == 0 {
		b.WriteString("No size data\n")
	}
	for _, s := range stats.SizesByCategory {
		sizes := make([]string, 0, len(s.Sizes))
		for _, sz := range s.Sizes {
			sizes = append(sizes, fmt.Sprintf("%s ×%d", sz.Name, sz.Count))
		}
		fmt.Fprintf(&b, "%s: %s\n", s.Label, strings.Join(sizes, ", "))
	}

	fmt.Fprintf(&b, "\nTOP COLORS: %s\n", orNoData(formatNameCounts(stats.TopColors), "No data"))
	fmt.Fprintf(&b, "Color diversity: %.2f\n", stats.ColorDiversity)

	b.WriteString("\nSEASON COVERAGE:\n")
	for _, s := range stats.SeasonCoverage {
		fmt.Fprintf(&b, "%s: %d items (%d%%)\n", s.Season, s.Count, s.Percentage)
	}
	fmt.Fprintf(&b, "All-season items: %d\n", stats.AllSeasonCount)
	if len(stats.SeasonGaps) > 0 {
		gaps := make([]string, 0, len(stats.SeasonGaps))
		for _, g := range stats.SeasonGaps {
			gaps = append(gaps, string(g))
		}
		fmt.Fprintf(&b, "Low coverage: %s\n", strings.Join(gaps, ", "))
	}

	fmt.Fprintf(&b, "\nTOP BRANDS: %s\n", orNoData(formatNameCounts(stats.TopBrands), "No data"))
	fmt.Fprintf(&b, "TOP MATERIALS: %s\n", orNoData(formatNameCounts(stats.TopMaterials), "No data"))

	b.WriteString(`
Respond with ONLY valid JSON, no markdown fences:
{
  "styleProfile": "1-2 sentence description of the dominant style(s)",
  "gaps": ["specific gap 1", "specific gap 2", "specific gap 3"],
  "versatility": "1 sentence about outfit-making potential",
  "colorAnalysis": "1 sentence about color palette coherence and suggestions",
  "seasonReadiness": {
    "spring": "1 sentence",
    "summer": "1 sentence",
    "fall": "1 sentence",
    "winter": "1 sentence"
  },
  "recommendations": ["specific purchase recommendation 1", "specific purchase recommendation 2", "specific purchase recommendation 3"],
  "fashionTips": ["actionable tip on how to dress better 1", "tip 2", "tip 3"],
  "styleTwins": [
    { "name": "Celebrity full name", "why": "1 sentence why their style matches" },
    { "name": "Another celebrity", "why": "1 sentence why" }
  ]
}`)
	return b.String()
}
