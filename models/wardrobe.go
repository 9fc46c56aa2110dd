package models

import (
	"slices"
	"strings"

	"github.com/go-playground/validator"
	"github.com/lib/pq"
)

type Category string

const (
	CategoryTops        Category = "tops"
	CategoryKnitwear    Category = "knitwear"
	CategoryOuterwear   Category = "outerwear"
	CategoryBottoms     Category = "bottoms"
	CategoryShoes       Category = "shoes"
	CategoryBags        Category = "bags"
	CategoryAccessories Category = "accessories"
)

// Categories in display order.
var Categories = []Category{
	CategoryTops,
	CategoryKnitwear,
	CategoryOuterwear,
	CategoryBottoms,
	CategoryShoes,
	CategoryBags,
	CategoryAccessories,
}

func ParseCategory(value string) (Category, bool) {
	c := Category(strings.ToLower(strings.TrimSpace(value)))
	if slices.Contains(Categories, c) {
		return c, true
	}
	return "", false
}

func ValidateCategory(fl validator.FieldLevel) bool {
	_, ok := ParseCategory(fl.Field().String())
	return ok
}

type Season string

const (
	SeasonSpring Season = "spring"
	SeasonSummer Season = "summer"
	SeasonFall   Season = "fall"
	SeasonWinter Season = "winter"
)

var Seasons = []Season{SeasonSpring, SeasonSummer, SeasonFall, SeasonWinter}

func ParseSeason(value string) (Season, bool) {
	v := strings.ToLower(strings.TrimSpace(value))
	if v == "autumn" {
		v = string(SeasonFall)
	}
	s := Season(v)
	if slices.Contains(Seasons, s) {
		return s, true
	}
	return "", false
}

func ValidateSeason(fl validator.FieldLevel) bool {
	_, ok := ParseSeason(fl.Field().String())
	return ok
}

// InventoryItem is a catalog entry. The outfit engine only ever reads snapshots of these.
type InventoryItem struct {
	UUIDModel
	OwnerID     uint           `gorm:"index" json:"-"`
	Name        string         `json:"name"`
	Category    Category       `gorm:"index" json:"category"`
	Subcategory *string        `json:"subcategory"`
	Colors      pq.StringArray `gorm:"type:text[]" json:"colors"`
	// empty means every season
	Seasons   pq.StringArray `gorm:"type:text[]" json:"seasons"`
	Brand     *string        `json:"brand"`
	Size      *string        `json:"size"`
	Materials pq.StringArray `gorm:"type:text[]" json:"materials"`
	PhotoKey  *string        `json:"-"`
	Link      *string        `json:"link"`

	AnalysisStatus       string  `gorm:"default:idle" json:"analysis_status"`
	AnalysisRetryTimes   int     `json:"analysis_retry_times"`
	AnalysisErrorMessage *string `json:"analysis_error_message"`
}

func (item InventoryItem) SubcategoryName() string {
	if item.Subcategory == nil {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(*item.Subcategory))
}

// HasSeason reports whether the item is tagged for the season. Untagged items fit every season.
func (item InventoryItem) HasSeason(season Season) bool {
	if len(item.Seasons) == 0 {
		return true
	}
	for _, s := range item.Seasons {
		if parsed, ok := ParseSeason(s); ok && parsed == season {
			return true
		}
	}
	return false
}

// OffSeason is true when the item carries season tags and none of them is the given season.
func (item InventoryItem) OffSeason(season Season) bool {
	return len(item.Seasons) > 0 && !item.HasSeason(season)
}

// NormalizeSeasons keeps canonical season values, dropping duplicates and unknown labels.
// "all-season" style labels collapse to the empty set.
func NormalizeSeasons(values []string) []string {
	out := []string{}
	for _, v := range values {
		lower := strings.ToLower(strings.TrimSpace(v))
		if lower == "all-season" || lower == "all seasons" || lower == "all" {
			return []string{}
		}
		s, ok := ParseSeason(lower)
		if ok && !slices.Contains(out, string(s)) {
			out = append(out, string(s))
		}
	}
	if len(out) == len(Seasons) {
		return []string{}
	}
	return out
}

const (
	AnalysisIdle      = "idle"
	AnalysisPending   = "pending"
	AnalysisCompleted = "completed"
	AnalysisFailed    = "failed"
)

type PhotoAnalysis struct {
	Item        string   `json:"item"`
	Category    Category `json:"category"`
	Subcategory *string  `json:"subcategory"`
	Colors      []string `json:"color"`
	Brand       *string  `json:"brand"`
	Seasons     []string `json:"season"`
	Materials   []string `json:"materials"`
	Model       string   `json:"model"`
}

// MergeAnalysis fills attributes the user left empty. Values the user entered are kept.
func (item *InventoryItem) MergeAnalysis(analysis *PhotoAnalysis) {
	if item.Name == "" && analysis.Item != "" {
		item.Name = analysis.Item
	}
	if item.Category == "" && analysis.Category != "" {
		item.Category = analysis.Category
	}
	if item.Subcategory == nil && analysis.Subcategory != nil {
		item.Subcategory = analysis.Subcategory
	}
	if len(item.Colors) == 0 {
		item.Colors = analysis.Colors
	}
	if item.Brand == nil && analysis.Brand != nil {
		item.Brand = analysis.Brand
	}
	if len(item.Seasons) == 0 {
		item.Seasons = analysis.Seasons
	}
	if len(item.Materials) == 0 {
		item.Materials = analysis.Materials
	}
}
