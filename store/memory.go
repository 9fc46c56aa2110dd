package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"closetai/models"

	"github.com/lib/pq"
)

// MemoryStore keeps everything in process memory. It backs tests and local runs without postgres.
type MemoryStore struct {
	mu sync.RWMutex

	seq      int64
	items    map[string]memoryEntry[models.InventoryItem]
	outfits  map[string]memoryEntry[models.OutfitRecord]
	reports  []models.InsightReport
	users    map[uint]models.UserAccount
	tokens   []models.UserPushToken
	notifier ChangeNotifier

	Now func() time.Time
}

type memoryEntry[T any] struct {
	seq   int64
	value T
}

func NewMemoryStore(notifier ChangeNotifier) *MemoryStore {
	if notifier == nil {
		notifier = NewLocalNotifier()
	}
	return &MemoryStore{
		items:    map[string]memoryEntry[models.InventoryItem]{},
		outfits:  map[string]memoryEntry[models.OutfitRecord]{},
		users:    map[uint]models.UserAccount{},
		notifier: notifier,
		Now:      time.Now,
	}
}

func (s *MemoryStore) next() int64 {
	s.seq++
	return s.seq
}

func cloneItem(item models.InventoryItem) models.InventoryItem {
	item.Colors = append(pq.StringArray{}, item.Colors...)
	item.Seasons = append(pq.StringArray{}, item.Seasons...)
	item.Materials = append(pq.StringArray{}, item.Materials...)
	return item
}

func cloneOutfit(record models.OutfitRecord) models.OutfitRecord {
	slots := make(map[models.SlotID]string, len(record.Slots))
	for k, v := range record.Slots {
		slots[k] = v
	}
	record.Slots = slots
	record.Extras = append(pq.StringArray{}, record.Extras...)
	return record
}

func (s *MemoryStore) ListItems(ctx context.Context, ownerID uint) ([]models.InventoryItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entries := []memoryEntry[models.InventoryItem]{}
	for _, e := range s.items {
		if e.value.OwnerID == ownerID {
			entries = append(entries, e)
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].seq < entries[j].seq })
	out := make([]models.InventoryItem, 0, len(entries))
	for _, e := range entries {
		out = append(out, cloneItem(e.value))
	}
	return out, nil
}

func (s *MemoryStore) GetItem(ctx context.Context, ownerID uint, id string) (*models.InventoryItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.items[id]
	if !ok || e.value.OwnerID != ownerID {
		return nil, ErrNotFound
	}
	item := cloneItem(e.value)
	return &item, nil
}

func (s *MemoryStore) CreateItem(ctx context.Context, item *models.InventoryItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if item.ID == "" {
		item.ID = models.NewID()
	}
	now := s.Now()
	item.CreatedAt, item.UpdatedAt = now, now
	if item.AnalysisStatus == "" {
		item.AnalysisStatus = models.AnalysisIdle
	}
	s.items[item.ID] = memoryEntry[models.InventoryItem]{seq: s.next(), value: cloneItem(*item)}
	return nil
}

func (s *MemoryStore) UpdateItem(ctx context.Context, item *models.InventoryItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.items[item.ID]
	if !ok || e.value.OwnerID != item.OwnerID {
		return ErrNotFound
	}
	item.CreatedAt = e.value.CreatedAt
	item.UpdatedAt = s.Now()
	e.value = cloneItem(*item)
	s.items[item.ID] = e
	return nil
}

func (s *MemoryStore) SetAnalysisStatus(ctx context.Context, ownerID uint, id string, status string, failure *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.items[id]
	if !ok || e.value.OwnerID != ownerID {
		return ErrNotFound
	}
	e.value.AnalysisStatus = status
	e.value.AnalysisErrorMessage = failure
	if failure != nil {
		e.value.AnalysisRetryTimes++
	}
	e.value.UpdatedAt = s.Now()
	s.items[id] = e
	return nil
}

func (s *MemoryStore) ApplyPhotoAnalysis(ctx context.Context, ownerID uint, id string, analysis *models.PhotoAnalysis) (*models.InventoryItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.items[id]
	if !ok || e.value.OwnerID != ownerID {
		return nil, ErrNotFound
	}
	e.value.MergeAnalysis(analysis)
	e.value.AnalysisStatus = models.AnalysisCompleted
	e.value.AnalysisErrorMessage = nil
	e.value.UpdatedAt = s.Now()
	e.value = cloneItem(e.value)
	s.items[id] = e
	item := cloneItem(e.value)
	return &item, nil
}

func (s *MemoryStore) DeleteItem(ctx context.Context, ownerID uint, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.items[id]
	if !ok || e.value.OwnerID != ownerID {
		return ErrNotFound
	}
	delete(s.items, id)
	return nil
}

func (s *MemoryStore) SaveSuggestionBatch(ctx context.Context, ownerID uint, batch []models.OutfitRecord) error {
	s.mu.Lock()
	for id, e := range s.outfits {
		if e.value.OwnerID == ownerID && e.value.Status == models.OutfitStatusSuggestion {
			delete(s.outfits, id)
		}
	}
	now := s.Now()
	for i := range batch {
		record := &batch[i]
		if record.ID == "" {
			record.ID = models.NewID()
		}
		record.OwnerID = ownerID
		record.Status = models.OutfitStatusSuggestion
		record.CreatedAt, record.UpdatedAt = now, now
		s.outfits[record.ID] = memoryEntry[models.OutfitRecord]{seq: s.next(), value: cloneOutfit(*record)}
	}
	s.mu.Unlock()
	publish(ctx, s.notifier, ownerID)
	return nil
}

func (s *MemoryStore) Promote(ctx context.Context, ownerID uint, id string) (*models.OutfitRecord, error) {
	s.mu.Lock()
	e, ok := s.outfits[id]
	if !ok || e.value.OwnerID != ownerID {
		s.mu.Unlock()
		return nil, ErrNotFound
	}
	changed := e.value.Status != models.OutfitStatusSaved
	if changed {
		e.value.Status = models.OutfitStatusSaved
		e.value.CreatedAt = s.Now()
		e.value.UpdatedAt = e.value.CreatedAt
		e.seq = s.next()
		s.outfits[id] = e
	}
	record := cloneOutfit(e.value)
	s.mu.Unlock()
	if changed {
		publish(ctx, s.notifier, ownerID)
	}
	return &record, nil
}

func (s *MemoryStore) UpdateOutfit(ctx context.Context, ownerID uint, id string, patch models.OutfitPatch) (*models.OutfitRecord, error) {
	s.mu.Lock()
	e, ok := s.outfits[id]
	if !ok || e.value.OwnerID != ownerID {
		s.mu.Unlock()
		return nil, ErrNotFound
	}
	applyOutfitPatch(&e.value, patch)
	e.value.UpdatedAt = s.Now()
	e.value = cloneOutfit(e.value)
	s.outfits[id] = e
	record := cloneOutfit(e.value)
	s.mu.Unlock()
	publish(ctx, s.notifier, ownerID)
	return &record, nil
}

func (s *MemoryStore) DeleteOutfit(ctx context.Context, ownerID uint, id string) error {
	s.mu.Lock()
	e, ok := s.outfits[id]
	if !ok || e.value.OwnerID != ownerID {
		s.mu.Unlock()
		return ErrNotFound
	}
	delete(s.outfits, id)
	s.mu.Unlock()
	publish(ctx, s.notifier, ownerID)
	return nil
}

// Snapshot lists suggestions in batch order and saved outfits newest first.
func (s *MemoryStore) Snapshot(ctx context.Context, ownerID uint) (*models.OutfitSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var suggestions, saved []memoryEntry[models.OutfitRecord]
	for _, e := range s.outfits {
		if e.value.OwnerID != ownerID {
			continue
		}
		if e.value.Status == models.OutfitStatusSaved {
			saved = append(saved, e)
		} else {
			suggestions = append(suggestions, e)
		}
	}
	sort.Slice(suggestions, func(i, j int) bool { return suggestions[i].seq < suggestions[j].seq })
	sort.Slice(saved, func(i, j int) bool { return saved[i].seq > saved[j].seq })

	snap := &models.OutfitSnapshot{
		Suggestions: make([]models.OutfitRecord, 0, len(suggestions)),
		Saved:       make([]models.OutfitRecord, 0, len(saved)),
		Generation:  models.GenerationState{Status: models.GenerationIdle},
	}
	for _, e := range suggestions {
		snap.Suggestions = append(snap.Suggestions, cloneOutfit(e.value))
	}
	for _, e := range saved {
		snap.Saved = append(snap.Saved, cloneOutfit(e.value))
	}
	if user, ok := s.users[ownerID]; ok {
		snap.Generation = user.GenerationState()
	}
	return snap, nil
}

func (s *MemoryStore) SetGenerationStatus(ctx context.Context, ownerID uint, state models.GenerationState) error {
	s.mu.Lock()
	user, ok := s.users[ownerID]
	if !ok {
		s.mu.Unlock()
		return ErrNotFound
	}
	updatedAt := s.Now()
	if state.UpdatedAt != nil {
		updatedAt = *state.UpdatedAt
	}
	user.OutfitGenerationStatus = state.Status
	user.OutfitGenerationError = state.Error
	user.OutfitGenerationUpdatedAt = &updatedAt
	s.users[ownerID] = user
	s.mu.Unlock()
	publish(ctx, s.notifier, ownerID)
	return nil
}

func (s *MemoryStore) Subscribe(ctx context.Context, ownerID uint) (<-chan models.OutfitSnapshot, error) {
	return subscribe(ctx, s.notifier, ownerID, s.Snapshot)
}

func (s *MemoryStore) SaveInsightReport(ctx context.Context, report *models.InsightReport) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if report.ID == "" {
		report.ID = models.NewID()
	}
	now := s.Now()
	report.CreatedAt, report.UpdatedAt = now, now
	s.reports = append(s.reports, *report)
	return nil
}

func (s *MemoryStore) LatestInsightReport(ctx context.Context, ownerID uint) (*models.InsightReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := len(s.reports) - 1; i >= 0; i-- {
		if s.reports[i].OwnerID == ownerID {
			report := s.reports[i]
			return &report, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) EnsureUser(ctx context.Context, id uint) (*models.UserAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	if !ok {
		now := s.Now()
		user = models.UserAccount{
			JsonModel:              models.JsonModel{ID: id, CreatedAt: now, UpdatedAt: now},
			ReceiveNotifications:   true,
			OutfitGenerationStatus: models.GenerationIdle,
		}
		s.users[id] = user
	}
	return &user, nil
}

func (s *MemoryStore) GetUser(ctx context.Context, id uint) (*models.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &user, nil
}

func (s *MemoryStore) UpdateProfile(ctx context.Context, id uint, in models.ProfileIn) (*models.UserAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	applyProfile(&user, in)
	user.UpdatedAt = s.Now()
	s.users[id] = user
	return &user, nil
}

func (s *MemoryStore) RegisterPushToken(ctx context.Context, id uint, in models.UserPushIn) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[id]; !ok {
		return ErrNotFound
	}
	for i, token := range s.tokens {
		if token.Token == in.Token {
			s.tokens[i].UserAccountID = id
			s.tokens[i].Platform = models.Platform(in.Platform)
			s.tokens[i].Active = true
			return nil
		}
	}
	now := s.Now()
	s.tokens = append(s.tokens, models.UserPushToken{
		JsonModel:     models.JsonModel{ID: uint(len(s.tokens) + 1), CreatedAt: now, UpdatedAt: now},
		UserAccountID: id,
		Platform:      models.Platform(in.Platform),
		Token:         in.Token,
		Active:        true,
	})
	return nil
}

func (s *MemoryStore) PushTokens(ctx context.Context, id uint) ([]models.UserPushToken, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []models.UserPushToken{}
	for _, token := range s.tokens {
		if token.UserAccountID == id && token.Active {
			out = append(out, token)
		}
	}
	return out, nil
}

func (s *MemoryStore) ListDailySuggestionUsers(ctx context.Context) ([]models.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []models.UserAccount{}
	for _, user := range s.users {
		if user.DailySuggestions && !user.Banned {
			out = append(out, user)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
