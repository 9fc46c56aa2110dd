package models

import (
	"github.com/lib/pq"
)

type NameCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

type CategoryStat struct {
	Category      Category    `json:"category"`
	Label         string      `json:"label"`
	Count         int         `json:"count"`
	Percentage    int         `json:"percentage"`
	Subcategories []NameCount `json:"subcategories"`
}

type SizeByCategoryStat struct {
	Category   Category    `json:"category"`
	Label      string      `json:"label"`
	Sizes      []NameCount `json:"sizes"`
	MostCommon *string     `json:"most_common"`
}

type SeasonStat struct {
	Season     Season `json:"season"`
	Count      int    `json:"count"`
	Percentage int    `json:"percentage"`
}

type WardrobeStats struct {
	TotalItems           int                  `json:"total_items"`
	CategoriesUsed       int                  `json:"categories_used"`
	PhotoCoverage        int                  `json:"photo_coverage"`
	CategoryDistribution []CategoryStat       `json:"category_distribution"`
	SizesByCategory      []SizeByCategoryStat `json:"sizes_by_category"`
	TopColors            []NameCount          `json:"top_colors"`
	ColorDiversity       float64              `json:"color_diversity"`
	SeasonCoverage       []SeasonStat         `json:"season_coverage"`
	AllSeasonCount       int                  `json:"all_season_count"`
	SeasonGaps           []Season             `json:"season_gaps"`
	TopBrands            []NameCount          `json:"top_brands"`
	TopMaterials         []NameCount          `json:"top_materials"`
}

type StyleTwin struct {
	Name string `json:"name"`
	Why  string `json:"why"`
}

type SeasonReadiness struct {
	Spring string `json:"spring"`
	Summer string `json:"summer"`
	Fall   string `json:"fall"`
	Winter string `json:"winter"`
}

type InsightReport struct {
	UUIDModel
	OwnerID         uint            `gorm:"index" json:"-"`
	ItemCount       int             `json:"item_count"`
	StyleProfile    string          `gorm:"type:text" json:"style_profile"`
	Gaps            pq.StringArray  `gorm:"type:text[]" json:"gaps"`
	Versatility     string          `gorm:"type:text" json:"versatility"`
	ColorAnalysis   string          `gorm:"type:text" json:"color_analysis"`
	SeasonReadiness SeasonReadiness `gorm:"serializer:json" json:"season_readiness"`
	Recommendations pq.StringArray  `gorm:"type:text[]" json:"recommendations"`
	FashionTips     pq.StringArray  `gorm:"type:text[]" json:"fashion_tips"`
	StyleTwins      []StyleTwin     `gorm:"serializer:json" json:"style_twins"`
	LLMModel        *string         `json:"llm_model"`
}
