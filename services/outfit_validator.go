package services

import (
	"bytes"
	"encoding/json"
	"sort"
	"strings"

	"closetai/models"
)

const minFilledSlots = 2

// rawOutfit is the permissive shape model output is decoded into. Nothing in it is trusted.
type rawOutfit map[string]any

// parseRawOutfits accepts {"outfits": [...]} or a bare array. Entries that are not objects are skipped.
func parseRawOutfits(raw json.RawMessage) []rawOutfit {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil
	}

	var list []json.RawMessage
	if raw[0] == '[' {
		if err := json.Unmarshal(raw, &list); err != nil {
			return nil
		}
	} else {
		var envelope struct {
			Outfits []json.RawMessage `json:"outfits"`
		}
		if err := json.Unmarshal(raw, &envelope); err != nil {
			return nil
		}
		list = envelope.Outfits
	}

	out := make([]rawOutfit, 0, len(list))
	for _, entry := range list {
		var outfit rawOutfit
		if err := json.Unmarshal(entry, &outfit); err != nil || outfit == nil {
			continue
		}
		out = append(out, outfit)
	}
	return out
}

// idValue reads an item reference given either as "id" or as {"id": "..."}.
func idValue(v any) (string, bool) {
	switch val := v.(type) {
	case string:
		id := strings.TrimSpace(val)
		return id, id != ""
	case map[string]any:
		return idValue(val["id"])
	}
	return "", false
}

func stringValue(v any) string {
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s)
	}
	return ""
}

// Validate maps untrusted model output onto the slot grid. Slot entries survive only when the slot was
// offered and the id is in that slot's pool; extras survive only when they are in the extras pool.
// Outfits left with fewer than two slots are dropped. It never fails.
func (p OutfitPlan) Validate(raw json.RawMessage) []models.GeneratedOutfit {
	result := []models.GeneratedOutfit{}
	for _, entry := range parseRawOutfits(raw) {
		outfit := models.GeneratedOutfit{
			Slots:     map[models.SlotID]string{},
			Extras:    []string{},
			Occasion:  stringValue(entry["occasion"]),
			Rationale: stringValue(entry["why"]),
		}

		if slots, ok := entry["slots"].(map[string]any); ok {
			keys := make([]string, 0, len(slots))
			for key := range slots {
				keys = append(keys, key)
			}
			sort.Strings(keys)
			// an exact slot key beats a case variant; among variants the first in sort order wins
			exact := map[models.SlotID]bool{}
			for _, key := range keys {
				def, declared := models.LookupSlot(strings.ToLower(strings.TrimSpace(key)))
				if !declared {
					continue
				}
				isExact := key == string(def.ID)
				if _, filled := outfit.Slots[def.ID]; filled && (exact[def.ID] || !isExact) {
					continue
				}
				id, ok := idValue(slots[key])
				if !ok {
					continue
				}
				pool, offered := p.Pool(def.ID)
				if !offered || !pool.Offers(id) {
					continue
				}
				outfit.Slots[def.ID] = id
				exact[def.ID] = isExact
			}
		}
		if len(outfit.Slots) < minFilledSlots {
			continue
		}

		if extras, ok := entry["extras"].([]any); ok {
			seen := map[string]bool{}
			for _, value := range extras {
				id, ok := idValue(value)
				if !ok || seen[id] || !p.OffersExtra(id) {
					continue
				}
				seen[id] = true
				outfit.Extras = append(outfit.Extras, id)
			}
		}
		result = append(result, outfit)
	}
	return result
}

// ValidateOutfits rebuilds the plan from the snapshot and conditions used for the prompt and validates
// the raw answer against it.
func ValidateOutfits(raw json.RawMessage, items []models.InventoryItem, conditions models.DerivedConditions) []models.GeneratedOutfit {
	return PlanOutfit(items, conditions).Validate(raw)
}
