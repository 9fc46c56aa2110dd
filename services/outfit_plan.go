package services

import (
	"slices"
	"strings"

	"closetai/models"
)

var eyewearSubcategories = []string{"eyewear", "sunglasses", "glasses"}

func isEyewear(item models.InventoryItem) bool {
	sub := item.SubcategoryName()
	for _, s := range eyewearSubcategories {
		if strings.Contains(sub, s) {
			return true
		}
	}
	return false
}

func isWatch(item models.InventoryItem) bool {
	return strings.Contains(item.SubcategoryName(), "watch")
}

func isShortsOrSummer(item models.InventoryItem) bool {
	if strings.Contains(item.SubcategoryName(), "shorts") {
		return true
	}
	for _, s := range item.Seasons {
		if parsed, ok := models.ParseSeason(s); ok && parsed == models.SeasonSummer {
			return true
		}
	}
	return false
}

type SlotPool struct {
	Slot     models.SlotDefinition
	Required bool
	Items    []models.InventoryItem
}

func (p SlotPool) Offers(id string) bool {
	return slices.ContainsFunc(p.Items, func(item models.InventoryItem) bool { return item.ID == id })
}

// OutfitPlan is what a single generation offers the model: the slot pools and the extras pool, cut
// from one inventory snapshot under one set of conditions. The validator checks answers against the
// same plan that rendered the prompt.
type OutfitPlan struct {
	Conditions models.DerivedConditions
	Slots      []SlotPool
	Extras     []models.InventoryItem
}

func PlanOutfit(items []models.InventoryItem, conditions models.DerivedConditions) OutfitPlan {
	plan := OutfitPlan{Conditions: conditions}

	for _, def := range models.SlotTable {
		if conditions.IsHot && (def.ID == models.SlotOuterwear || def.ID == models.SlotLayer) {
			continue
		}
		pool := SlotPool{Slot: def, Required: slotRequired(def.ID, conditions)}
		for _, item := range items {
			if item.Category == def.Category {
				pool.Items = append(pool.Items, item)
			}
		}
		if conditions.IsHot && def.ID == models.SlotBottom {
			var light []models.InventoryItem
			for _, item := range pool.Items {
				if isShortsOrSummer(item) {
					light = append(light, item)
				}
			}
			if len(light) > 0 {
				pool.Items = light
			}
		}
		plan.Slots = append(plan.Slots, pool)
	}

	for _, item := range items {
		if !slices.Contains(models.ExtraCategories, item.Category) {
			continue
		}
		if isEyewear(item) && !conditions.IsSunny {
			continue
		}
		plan.Extras = append(plan.Extras, item)
	}
	return plan
}

func slotRequired(id models.SlotID, conditions models.DerivedConditions) bool {
	switch id {
	case models.SlotTop, models.SlotBottom, models.SlotShoes:
		return true
	case models.SlotOuterwear:
		return conditions.IsCold
	}
	return false
}

func (p OutfitPlan) Pool(id models.SlotID) (SlotPool, bool) {
	for _, pool := range p.Slots {
		if pool.Slot.ID == id {
			return pool, true
		}
	}
	return SlotPool{}, false
}

func (p OutfitPlan) OffersExtra(id string) bool {
	return slices.ContainsFunc(p.Extras, func(item models.InventoryItem) bool { return item.ID == id })
}

// OfferedItems lists every item the plan puts in front of the model, slots first.
func (p OutfitPlan) OfferedItems() []models.InventoryItem {
	var out []models.InventoryItem
	for _, pool := range p.Slots {
		out = append(out, pool.Items...)
	}
	return append(out, p.Extras...)
}

func (p OutfitPlan) HasWatch() bool {
	return slices.ContainsFunc(p.Extras, isWatch)
}

func (p OutfitPlan) HasBag() bool {
	return slices.ContainsFunc(p.Extras, func(item models.InventoryItem) bool { return item.Category == models.CategoryBags })
}

func (p OutfitPlan) HasEyewear() bool {
	return slices.ContainsFunc(p.Extras, isEyewear)
}
