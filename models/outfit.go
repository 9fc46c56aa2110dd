package models

import (
	"time"

	"github.com/lib/pq"
)

type SlotID string

const (
	SlotTop       SlotID = "top"
	SlotLayer     SlotID = "layer"
	SlotOuterwear SlotID = "outerwear"
	SlotBottom    SlotID = "bottom"
	SlotShoes     SlotID = "shoes"
)

type SlotDefinition struct {
	ID       SlotID
	Label    string
	Category Category
}

// SlotTable is the fixed body slot grid.
var SlotTable = [...]SlotDefinition{
	{ID: SlotTop, Label: "Top", Category: CategoryTops},
	{ID: SlotLayer, Label: "Layer", Category: CategoryKnitwear},
	{ID: SlotOuterwear, Label: "Outerwear", Category: CategoryOuterwear},
	{ID: SlotBottom, Label: "Bottom", Category: CategoryBottoms},
	{ID: SlotShoes, Label: "Shoes", Category: CategoryShoes},
}

// ExtraCategories feed the extras list instead of a slot.
var ExtraCategories = []Category{CategoryBags, CategoryAccessories}

func LookupSlot(id string) (SlotDefinition, bool) {
	for _, def := range SlotTable {
		if string(def.ID) == id {
			return def, true
		}
	}
	return SlotDefinition{}, false
}

// EnvironmentContext carries either a season or a weather reading, never both.
type EnvironmentContext struct {
	Season  *Season
	Weather *WeatherReading
}

type WeatherReading struct {
	TemperatureC   float64 `json:"temperature_c"`
	SkyDescription string  `json:"sky_description"`
	DisplayLabel   string  `json:"display_label"`
}

func SeasonContext(season Season) EnvironmentContext {
	return EnvironmentContext{Season: &season}
}

func WeatherContext(reading WeatherReading) EnvironmentContext {
	return EnvironmentContext{Weather: &reading}
}

type DerivedConditions struct {
	Season       Season `json:"season"`
	IsHot        bool   `json:"is_hot"`
	IsCold       bool   `json:"is_cold"`
	IsSunny      bool   `json:"is_sunny"`
	ContextLabel string `json:"context_label"`
}

type GeneratedOutfit struct {
	Slots     map[SlotID]string `json:"slots"`
	Extras    []string          `json:"extras"`
	Occasion  string            `json:"occasion"`
	Rationale string            `json:"why"`
}

// ItemIDs lists slot items in slot table order followed by extras.
func (o GeneratedOutfit) ItemIDs() []string {
	ids := []string{}
	for _, def := range SlotTable {
		if id, ok := o.Slots[def.ID]; ok {
			ids = append(ids, id)
		}
	}
	return append(ids, o.Extras...)
}

type OutfitStatus string

const (
	OutfitStatusSuggestion OutfitStatus = "suggestion"
	OutfitStatusSaved      OutfitStatus = "saved"
)

type OutfitRecord struct {
	UUIDModel
	OwnerID      uint              `gorm:"index" json:"-"`
	Status       OutfitStatus      `gorm:"index" json:"status"`
	Slots        map[SlotID]string `gorm:"serializer:json" json:"slots"`
	Extras       pq.StringArray    `gorm:"type:text[]" json:"extras"`
	Occasion     string            `json:"occasion"`
	Rationale    string            `gorm:"type:text" json:"why"`
	ContextLabel string            `json:"context_label"`
	LLMModel     *string           `json:"llm_model"`
}

func (r OutfitRecord) Outfit() GeneratedOutfit {
	return GeneratedOutfit{
		Slots:     r.Slots,
		Extras:    []string(r.Extras),
		Occasion:  r.Occasion,
		Rationale: r.Rationale,
	}
}

// OutfitPatch is a partial update of a stored outfit. Nil fields are left untouched.
type OutfitPatch struct {
	Slots     map[SlotID]string `json:"slots"`
	Extras    *[]string         `json:"extras"`
	Occasion  *string           `json:"occasion"`
	Rationale *string           `json:"why"`
}

type GenerationStatus string

const (
	GenerationIdle      GenerationStatus = "idle"
	GenerationPending   GenerationStatus = "pending"
	GenerationCompleted GenerationStatus = "completed"
	// the model answered but nothing survived validation
	GenerationEmpty  GenerationStatus = "empty"
	GenerationFailed GenerationStatus = "failed"
)

type GenerationState struct {
	Status    GenerationStatus `json:"status"`
	Error     *string          `json:"error"`
	UpdatedAt *time.Time       `json:"updated_at"`
}

type OutfitSnapshot struct {
	Suggestions []OutfitRecord  `json:"suggestions"`
	Saved       []OutfitRecord  `json:"saved"`
	Generation  GenerationState `json:"generation"`
}
