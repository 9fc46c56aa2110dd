package services

import (
	"math"
	"sort"

	"closetai/languageutil"
	"closetai/models"
)

const (
	topColorsLimit    = 10
	topBrandsLimit    = 5
	topMaterialsLimit = 8
	seasonGapPercent  = 10
)

// counter keeps first-seen order so ties sort deterministically.
type counter struct {
	order  []string
	counts map[string]int
}

func newCounter() *counter {
	return &counter{counts: map[string]int{}}
}

func (c *counter) add(key string) {
	if key == "" {
		return
	}
	if _, ok := c.counts[key]; !ok {
		c.order = append(c.order, key)
	}
	c.counts[key]++
}

func (c *counter) sorted(limit int) []models.NameCount {
	out := make([]models.NameCount, 0, len(c.order))
	for _, key := range c.order {
		out = append(out, models.NameCount{Name: key, Count: c.counts[key]})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func percent(part, total int) int {
	if total == 0 {
		return 0
	}
	return int(math.Round(float64(part) / float64(total) * 100))
}

// ComputeWardrobeStats aggregates the histograms the insight prompt is built from.
func ComputeWardrobeStats(items []models.InventoryItem) models.WardrobeStats {
	total := len(items)
	stats := models.WardrobeStats{
		TotalItems:           total,
		CategoryDistribution: []models.CategoryStat{},
		SizesByCategory:      []models.SizeByCategoryStat{},
		SeasonGaps:           []models.Season{},
	}

	byCategory := map[models.Category][]models.InventoryItem{}
	withPhoto := 0
	for _, item := range items {
		byCategory[item.Category] = append(byCategory[item.Category], item)
		if item.PhotoKey != nil && *item.PhotoKey != "" {
			withPhoto++
		}
	}
	stats.CategoriesUsed = len(byCategory)
	stats.PhotoCoverage = percent(withPhoto, total)

	for _, category := range models.Categories {
		catItems, ok := byCategory[category]
		if !ok {
			continue
		}
		subs := newCounter()
		sizes := newCounter()
		for _, item := range catItems {
			sub := item.SubcategoryName()
			if sub == "" {
				sub = "other"
			}
			subs.add(languageutil.NormalizeTag(sub))
			if item.Size != nil {
				sizes.add(languageutil.NormalizeSize(*item.Size))
			}
		}
		stats.CategoryDistribution = append(stats.CategoryDistribution, models.CategoryStat{
			Category:      category,
			Label:         languageutil.Label(string(category)),
			Count:         len(catItems),
			Percentage:    percent(len(catItems), total),
			Subcategories: subs.sorted(0),
		})
		if len(sizes.order) > 0 {
			sorted := sizes.sorted(0)
			mostCommon := sorted[0].Name
			stats.SizesByCategory = append(stats.SizesByCategory, models.SizeByCategoryStat{
				Category:   category,
				Label:      languageutil.Label(string(category)),
				Sizes:      sorted,
				MostCommon: &mostCommon,
			})
		}
	}

	colors := newCounter()
	brands := newCounter()
	materials := newCounter()
	for _, item := range items {
		for _, color := range item.Colors {
			colors.add(languageutil.NormalizeTag(color))
		}
		if item.Brand != nil {
			brands.add(languageutil.NormalizeTag(*item.Brand))
		}
		for _, material := range item.Materials {
			materials.add(languageutil.NormalizeTag(material))
		}
	}
	stats.TopColors = colors.sorted(topColorsLimit)
	if total > 0 {
		stats.ColorDiversity = math.Round(float64(len(colors.order))/float64(total)*100) / 100
	}
	stats.TopBrands = brands.sorted(topBrandsLimit)
	stats.TopMaterials = materials.sorted(topMaterialsLimit)

	seasonCounts := map[models.Season]int{}
	for _, item := range items {
		fitsAll := true
		for _, season := range models.Seasons {
			if item.HasSeason(season) {
				seasonCounts[season]++
			} else {
				fitsAll = false
			}
		}
		if fitsAll {
			stats.AllSeasonCount++
		}
	}
	for _, season := range models.Seasons {
		stat := models.SeasonStat{
			Season:     season,
			Count:      seasonCounts[season],
			Percentage: percent(seasonCounts[season], total),
		}
		stats.SeasonCoverage = append(stats.SeasonCoverage, stat)
		if stat.Percentage < seasonGapPercent {
			stats.SeasonGaps = append(stats.SeasonGaps, season)
		}
	}
	return stats
}
