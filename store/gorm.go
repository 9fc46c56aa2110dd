package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"closetai/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type GormStore struct {
	db       *gorm.DB
	notifier ChangeNotifier
}

func NewGormStore(db *gorm.DB, notifier ChangeNotifier) *GormStore {
	if notifier == nil {
		notifier = NewLocalNotifier()
	}
	return &GormStore{db: db, notifier: notifier}
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

func (s *GormStore) ListItems(ctx context.Context, ownerID uint) ([]models.InventoryItem, error) {
	items := []models.InventoryItem{}
	if err := s.db.WithContext(ctx).Where("owner_id = ?", ownerID).Order("created_at asc").Find(&items).Error; err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	return items, nil
}

func (s *GormStore) GetItem(ctx context.Context, ownerID uint, id string) (*models.InventoryItem, error) {
	var item models.InventoryItem
	if err := s.db.WithContext(ctx).Where("id = ? AND owner_id = ?", id, ownerID).Take(&item).Error; err != nil {
		return nil, notFound(err)
	}
	return &item, nil
}

func (s *GormStore) CreateItem(ctx context.Context, item *models.InventoryItem) error {
	if err := s.db.WithContext(ctx).Create(item).Error; err != nil {
		return fmt.Errorf("create item: %w", err)
	}
	return nil
}

func (s *GormStore) UpdateItem(ctx context.Context, item *models.InventoryItem) error {
	result := s.db.WithContext(ctx).Model(&models.InventoryItem{}).
		Where("id = ? AND owner_id = ?", item.ID, item.OwnerID).
		Select("*").Omit("id", "owner_id", "created_at").
		Updates(item)
	if result.Error != nil {
		return fmt.Errorf("update item: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormStore) SetAnalysisStatus(ctx context.Context, ownerID uint, id string, status string, failure *string) error {
	columns := map[string]any{"analysis_status": status, "analysis_error_message": failure}
	if failure != nil {
		columns["analysis_retry_times"] = gorm.Expr("analysis_retry_times + 1")
	}
	result := s.db.WithContext(ctx).Model(&models.InventoryItem{}).
		Where("id = ? AND owner_id = ?", id, ownerID).
		Updates(columns)
	if result.Error != nil {
		return fmt.Errorf("set analysis status: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormStore) ApplyPhotoAnalysis(ctx context.Context, ownerID uint, id string, analysis *models.PhotoAnalysis) (*models.InventoryItem, error) {
	var item models.InventoryItem
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ? AND owner_id = ?", id, ownerID).
			Take(&item).Error
		if err != nil {
			return notFound(err)
		}
		item.MergeAnalysis(analysis)
		item.AnalysisStatus = models.AnalysisCompleted
		item.AnalysisErrorMessage = nil
		return tx.Model(&item).Updates(map[string]any{
			"name":                   item.Name,
			"category":               item.Category,
			"subcategory":            item.Subcategory,
			"colors":                 item.Colors,
			"brand":                  item.Brand,
			"seasons":                item.Seasons,
			"materials":              item.Materials,
			"analysis_status":        item.AnalysisStatus,
			"analysis_error_message": nil,
		}).Error
	})
	if errors.Is(err, ErrNotFound) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("apply photo analysis: %w", err)
	}
	return &item, nil
}

func (s *GormStore) DeleteItem(ctx context.Context, ownerID uint, id string) error {
	result := s.db.WithContext(ctx).Where("id = ? AND owner_id = ?", id, ownerID).Delete(&models.InventoryItem{})
	if result.Error != nil {
		return fmt.Errorf("delete item: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormStore) SaveSuggestionBatch(ctx context.Context, ownerID uint, batch []models.OutfitRecord) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("owner_id = ? AND status = ?", ownerID, models.OutfitStatusSuggestion).
			Delete(&models.OutfitRecord{}).Error; err != nil {
			return err
		}
		if len(batch) == 0 {
			return nil
		}
		// spread created_at so the batch reads back in the order the model proposed it
		base := time.Now()
		for i := range batch {
			batch[i].OwnerID = ownerID
			batch[i].Status = models.OutfitStatusSuggestion
			batch[i].CreatedAt = base.Add(time.Duration(i) * time.Microsecond)
		}
		return tx.Create(&batch).Error
	})
	if err != nil {
		return fmt.Errorf("save suggestion batch: %w", err)
	}
	publish(ctx, s.notifier, ownerID)
	return nil
}

func (s *GormStore) getOutfit(ctx context.Context, ownerID uint, id string) (*models.OutfitRecord, error) {
	var record models.OutfitRecord
	if err := s.db.WithContext(ctx).Where("id = ? AND owner_id = ?", id, ownerID).Take(&record).Error; err != nil {
		return nil, notFound(err)
	}
	return &record, nil
}

func (s *GormStore) Promote(ctx context.Context, ownerID uint, id string) (*models.OutfitRecord, error) {
	record, err := s.getOutfit(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	if record.Status == models.OutfitStatusSaved {
		return record, nil
	}
	now := time.Now()
	err = s.db.WithContext(ctx).Model(record).Updates(map[string]interface{}{
		"status":     models.OutfitStatusSaved,
		"created_at": now,
		"updated_at": now,
	}).Error
	if err != nil {
		return nil, fmt.Errorf("promote outfit: %w", err)
	}
	record.Status = models.OutfitStatusSaved
	record.CreatedAt, record.UpdatedAt = now, now
	publish(ctx, s.notifier, ownerID)
	return record, nil
}

func (s *GormStore) UpdateOutfit(ctx context.Context, ownerID uint, id string, patch models.OutfitPatch) (*models.OutfitRecord, error) {
	record, err := s.getOutfit(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	applyOutfitPatch(record, patch)
	if err := s.db.WithContext(ctx).Save(record).Error; err != nil {
		return nil, fmt.Errorf("update outfit: %w", err)
	}
	publish(ctx, s.notifier, ownerID)
	return record, nil
}

func (s *GormStore) DeleteOutfit(ctx context.Context, ownerID uint, id string) error {
	result := s.db.WithContext(ctx).Where("id = ? AND owner_id = ?", id, ownerID).Delete(&models.OutfitRecord{})
	if result.Error != nil {
		return fmt.Errorf("delete outfit: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	publish(ctx, s.notifier, ownerID)
	return nil
}

func (s *GormStore) Snapshot(ctx context.Context, ownerID uint) (*models.OutfitSnapshot, error) {
	db := s.db.WithContext(ctx)
	snap := &models.OutfitSnapshot{
		Suggestions: []models.OutfitRecord{},
		Saved:       []models.OutfitRecord{},
		Generation:  models.GenerationState{Status: models.GenerationIdle},
	}
	if err := db.Where("owner_id = ? AND status = ?", ownerID, models.OutfitStatusSuggestion).
		Order("created_at asc").Find(&snap.Suggestions).Error; err != nil {
		return nil, fmt.Errorf("load suggestions: %w", err)
	}
	if err := db.Where("owner_id = ? AND status = ?", ownerID, models.OutfitStatusSaved).
		Order("created_at desc").Find(&snap.Saved).Error; err != nil {
		return nil, fmt.Errorf("load saved outfits: %w", err)
	}
	var user models.UserAccount
	err := db.Select("id", "outfit_generation_status", "outfit_generation_error", "outfit_generation_updated_at").
		Take(&user, ownerID).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("load generation state: %w", err)
	}
	if err == nil {
		snap.Generation = user.GenerationState()
	}
	return snap, nil
}

func (s *GormStore) SetGenerationStatus(ctx context.Context, ownerID uint, state models.GenerationState) error {
	updatedAt := time.Now()
	if state.UpdatedAt != nil {
		updatedAt = *state.UpdatedAt
	}
	result := s.db.WithContext(ctx).Model(&models.UserAccount{}).Where("id = ?", ownerID).Updates(map[string]interface{}{
		"outfit_generation_status":     state.Status,
		"outfit_generation_error":      state.Error,
		"outfit_generation_updated_at": updatedAt,
	})
	if result.Error != nil {
		return fmt.Errorf("set generation status: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	publish(ctx, s.notifier, ownerID)
	return nil
}

func (s *GormStore) Subscribe(ctx context.Context, ownerID uint) (<-chan models.OutfitSnapshot, error) {
	return subscribe(ctx, s.notifier, ownerID, s.Snapshot)
}

func (s *GormStore) SaveInsightReport(ctx context.Context, report *models.InsightReport) error {
	if err := s.db.WithContext(ctx).Create(report).Error; err != nil {
		return fmt.Errorf("save insight report: %w", err)
	}
	return nil
}

func (s *GormStore) LatestInsightReport(ctx context.Context, ownerID uint) (*models.InsightReport, error) {
	var report models.InsightReport
	err := s.db.WithContext(ctx).Where("owner_id = ?", ownerID).Order("created_at desc").Take(&report).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &report, nil
}

func (s *GormStore) EnsureUser(ctx context.Context, id uint) (*models.UserAccount, error) {
	user := models.UserAccount{
		JsonModel:              models.JsonModel{ID: id},
		ReceiveNotifications:   true,
		OutfitGenerationStatus: models.GenerationIdle,
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&user).Error
	if err != nil {
		return nil, fmt.Errorf("ensure user: %w", err)
	}
	return s.GetUser(ctx, id)
}

func (s *GormStore) GetUser(ctx context.Context, id uint) (*models.UserAccount, error) {
	var user models.UserAccount
	if err := s.db.WithContext(ctx).Take(&user, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &user, nil
}

func (s *GormStore) UpdateProfile(ctx context.Context, id uint, in models.ProfileIn) (*models.UserAccount, error) {
	user, err := s.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	applyProfile(user, in)
	if err := s.db.WithContext(ctx).Save(user).Error; err != nil {
		return nil, fmt.Errorf("update profile: %w", err)
	}
	return user, nil
}

func (s *GormStore) RegisterPushToken(ctx context.Context, id uint, in models.UserPushIn) error {
	var existing models.UserPushToken
	err := s.db.WithContext(ctx).Where("token = ?", in.Token).Take(&existing).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("find push token: %w", err)
	}
	if err == nil {
		return s.db.WithContext(ctx).Model(&existing).Updates(map[string]interface{}{
			"user_account_id": id,
			"platform":        in.Platform,
			"active":          true,
		}).Error
	}
	token := models.UserPushToken{
		UserAccountID: id,
		Platform:      models.Platform(in.Platform),
		Token:         in.Token,
		Active:        true,
	}
	if err := s.db.WithContext(ctx).Create(&token).Error; err != nil {
		return fmt.Errorf("create push token: %w", err)
	}
	return nil
}

func (s *GormStore) PushTokens(ctx context.Context, id uint) ([]models.UserPushToken, error) {
	tokens := []models.UserPushToken{}
	err := s.db.WithContext(ctx).Where("user_account_id = ? and active = true", id).Find(&tokens).Error
	if err != nil {
		return nil, fmt.Errorf("list push tokens: %w", err)
	}
	return tokens, nil
}

func (s *GormStore) ListDailySuggestionUsers(ctx context.Context) ([]models.UserAccount, error) {
	users := []models.UserAccount{}
	err := s.db.WithContext(ctx).Where("daily_suggestions = true AND banned = false").Order("id asc").Find(&users).Error
	if err != nil {
		return nil, fmt.Errorf("list daily suggestion users: %w", err)
	}
	return users, nil
}
