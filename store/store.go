package store

import (
	"context"
	"errors"

	"closetai/models"
)

var ErrNotFound = errors.New("record not found")

// Catalog owns inventory items. Every call is scoped to one owner; ids of other owners read as missing.
type Catalog interface {
	ListItems(ctx context.Context, ownerID uint) ([]models.InventoryItem, error)
	GetItem(ctx context.Context, ownerID uint, id string) (*models.InventoryItem, error)
	CreateItem(ctx context.Context, item *models.InventoryItem) error
	UpdateItem(ctx context.Context, item *models.InventoryItem) error
	// SetAnalysisStatus touches only the analysis columns. A failure message also bumps the retry counter.
	SetAnalysisStatus(ctx context.Context, ownerID uint, id string, status string, failure *string) error
	// ApplyPhotoAnalysis merges the analysis into the current row and marks it completed.
	ApplyPhotoAnalysis(ctx context.Context, ownerID uint, id string, analysis *models.PhotoAnalysis) (*models.InventoryItem, error)
	DeleteItem(ctx context.Context, ownerID uint, id string) error
}

// OutfitStore keeps the current suggestion batch and saved outfits of each owner.
type OutfitStore interface {
	// SaveSuggestionBatch replaces all current suggestions of the owner; saved outfits are untouched.
	SaveSuggestionBatch(ctx context.Context, ownerID uint, batch []models.OutfitRecord) error
	// Promote turns a suggestion into a saved outfit. Promoting a saved outfit is a no-op.
	Promote(ctx context.Context, ownerID uint, id string) (*models.OutfitRecord, error)
	UpdateOutfit(ctx context.Context, ownerID uint, id string, patch models.OutfitPatch) (*models.OutfitRecord, error)
	DeleteOutfit(ctx context.Context, ownerID uint, id string) error
	Snapshot(ctx context.Context, ownerID uint) (*models.OutfitSnapshot, error)
	SetGenerationStatus(ctx context.Context, ownerID uint, state models.GenerationState) error
	// Subscribe sends the current snapshot right away and again after every change, until ctx ends.
	Subscribe(ctx context.Context, ownerID uint) (<-chan models.OutfitSnapshot, error)
}

type InsightStore interface {
	SaveInsightReport(ctx context.Context, report *models.InsightReport) error
	LatestInsightReport(ctx context.Context, ownerID uint) (*models.InsightReport, error)
}

type AccountStore interface {
	// EnsureUser returns the account for an authenticated subject, creating it on first sight.
	EnsureUser(ctx context.Context, id uint) (*models.UserAccount, error)
	GetUser(ctx context.Context, id uint) (*models.UserAccount, error)
	UpdateProfile(ctx context.Context, id uint, in models.ProfileIn) (*models.UserAccount, error)
	RegisterPushToken(ctx context.Context, id uint, in models.UserPushIn) error
	PushTokens(ctx context.Context, id uint) ([]models.UserPushToken, error)
	ListDailySuggestionUsers(ctx context.Context) ([]models.UserAccount, error)
}

type Store interface {
	Catalog
	OutfitStore
	InsightStore
	AccountStore
}

func applyProfile(user *models.UserAccount, in models.ProfileIn) {
	if in.Gender != nil {
		user.Gender = blankToNil(*in.Gender)
	}
	if in.BirthDate != nil {
		user.BirthDate = blankToNil(*in.BirthDate)
	}
	if in.StyleGoal != nil {
		user.StyleGoal = blankToNil(*in.StyleGoal)
	}
	if in.ReceiveNotifications != nil {
		user.ReceiveNotifications = *in.ReceiveNotifications
	}
	if in.DailySuggestions != nil {
		user.DailySuggestions = *in.DailySuggestions
	}
	if in.Latitude != nil && in.Longitude != nil {
		user.Latitude = in.Latitude
		user.Longitude = in.Longitude
	}
}

func blankToNil(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func applyOutfitPatch(record *models.OutfitRecord, patch models.OutfitPatch) {
	if patch.Slots != nil {
		record.Slots = patch.Slots
	}
	if patch.Extras != nil {
		record.Extras = append([]string{}, (*patch.Extras)...)
	}
	if patch.Occasion != nil {
		record.Occasion = *patch.Occasion
	}
	if patch.Rationale != nil {
		record.Rationale = *patch.Rationale
	}
}
