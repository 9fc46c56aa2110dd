package models

import (
	"time"

	"github.com/go-playground/validator"
)

type UserAccount struct {
	JsonModel
	Name   string `json:"name"`
	Banned bool   `gorm:"default:false" json:"-"`

	// style profile, used only to bias prompts
	Gender    *string `json:"gender"`
	BirthDate *string `json:"birth_date"` // YYYY-MM-DD
	StyleGoal *string `gorm:"type:text" json:"style_goal"`

	// Notifications settings
	ReceiveNotifications bool `gorm:"default:true" json:"receive_notifications"`
	DailySuggestions     bool `gorm:"default:false" json:"daily_suggestions"`
	// last known position for weather based daily suggestions
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`

	OutfitGenerationStatus    GenerationStatus `gorm:"default:idle" json:"outfit_generation_status"`
	OutfitGenerationError     *string          `json:"outfit_generation_error"`
	OutfitGenerationUpdatedAt *time.Time       `json:"-"`
}

func (u UserAccount) Profile() UserProfile {
	return UserProfile{Gender: u.Gender, BirthDate: u.BirthDate, StyleGoal: u.StyleGoal}
}

func (u UserAccount) GenerationState() GenerationState {
	status := u.OutfitGenerationStatus
	if status == "" {
		status = GenerationIdle
	}
	return GenerationState{Status: status, Error: u.OutfitGenerationError, UpdatedAt: u.OutfitGenerationUpdatedAt}
}

type UserProfile struct {
	Gender    *string `json:"gender"`
	BirthDate *string `json:"birth_date"`
	StyleGoal *string `json:"style_goal"`
}

type UserPushToken struct {
	JsonModel
	UserAccountID uint        `gorm:"index"`
	UserAccount   UserAccount `json:"-"`
	Platform      Platform    `sql:"type:ENUM('ios', 'android', 'web')" json:"platform"`
	Token         string      `json:"token"`
	Active        bool        `gorm:"default:false" json:"-"`
}

type UserPushIn struct {
	Token    string `json:"token" validate:"required,max=4096"`
	Platform string `json:"platform" validate:"required,platform"`
}

type ProfileIn struct {
	Gender               *string  `json:"gender" validate:"omitempty,max=50"`
	BirthDate            *string  `json:"birth_date" validate:"omitempty,isodate"`
	StyleGoal            *string  `json:"style_goal" validate:"omitempty,max=500"`
	ReceiveNotifications *bool    `json:"receive_notifications"`
	DailySuggestions     *bool    `json:"daily_suggestions"`
	Latitude             *float64 `json:"latitude" validate:"omitempty,min=-90,max=90"`
	Longitude            *float64 `json:"longitude" validate:"omitempty,min=-180,max=180"`
}

// ParseBirthDate accepts YYYY-MM-DD and full RFC3339 timestamps.
func ParseBirthDate(value string) (time.Time, bool) {
	if t, err := time.Parse("2006-01-02", value); err == nil {
		return t, true
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, true
	}
	return time.Time{}, false
}

func ValidateISODate(fl validator.FieldLevel) bool {
	_, ok := ParseBirthDate(fl.Field().String())
	return ok
}
