package services

import (
	"fmt"
	"strings"
	"time"

	"closetai/models"
)

const (
	hotThresholdC    = 25.0
	springThresholdC = 15.0
	fallThresholdC   = 5.0
	coldThresholdC   = 5.0
)

var sunnySkyVocabulary = []string{
	"clear",
	"sunny",
	"mainly clear",
	"partly cloudy",
	"partly sunny",
	"fair",
}

func isSunnySky(description string) bool {
	sky := strings.ToLower(strings.TrimSpace(description))
	for _, word := range sunnySkyVocabulary {
		if sky == word || strings.HasPrefix(sky, word) {
			return true
		}
	}
	return false
}

func seasonForTemperature(c float64) models.Season {
	switch {
	case c >= hotThresholdC:
		return models.SeasonSummer
	case c >= springThresholdC:
		return models.SeasonSpring
	case c >= fallThresholdC:
		return models.SeasonFall
	default:
		return models.SeasonWinter
	}
}

// DeriveConditions normalizes a season label or a weather reading into the condition set used for
// filtering the inventory and choosing mandatory slots.
func DeriveConditions(env models.EnvironmentContext) models.DerivedConditions {
	if env.Weather != nil {
		w := env.Weather
		label := w.DisplayLabel
		if label == "" {
			label = fmt.Sprintf("%.0f°C, %s", w.TemperatureC, w.SkyDescription)
		}
		return models.DerivedConditions{
			Season:       seasonForTemperature(w.TemperatureC),
			IsHot:        w.TemperatureC >= hotThresholdC,
			IsCold:       w.TemperatureC <= coldThresholdC,
			IsSunny:      isSunnySky(w.SkyDescription),
			ContextLabel: "Weather: " + label,
		}
	}

	// validated at the API boundary; an unset season reads as spring (no extremes)
	season := models.SeasonSpring
	if env.Season != nil {
		if parsed, ok := models.ParseSeason(string(*env.Season)); ok {
			season = parsed
		}
	}
	return models.DerivedConditions{
		Season:       season,
		IsHot:        season == models.SeasonSummer,
		IsCold:       season == models.SeasonWinter,
		IsSunny:      season == models.SeasonSummer || season == models.SeasonSpring,
		ContextLabel: "Season: " + string(season),
	}
}

// CurrentSeason maps the calendar month to a northern hemisphere season.
func CurrentSeason(now time.Time) models.Season {
	switch now.Month() {
	case time.March, time.April, time.May:
		return models.SeasonSpring
	case time.June, time.July, time.August:
		return models.SeasonSummer
	case time.September, time.October, time.November:
		return models.SeasonFall
	default:
		return models.SeasonWinter
	}
}
