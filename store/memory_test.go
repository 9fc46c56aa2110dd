package store

import (
	"context"
	"testing"
	"time"

	"closetai/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func outfit(top, bottom string) models.OutfitRecord {
	return models.OutfitRecord{
		Slots:    map[models.SlotID]string{models.SlotTop: top, models.SlotBottom: bottom},
		Occasion: "Casual",
	}
}

func TestSuggestionBatchReplacesPreviousBatch(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(nil)
	_, err := s.EnsureUser(ctx, 1)
	require.NoError(t, err)

	require.NoError(t, s.SaveSuggestionBatch(ctx, 1, []models.OutfitRecord{outfit("a", "b"), outfit("c", "d")}))
	snap, err := s.Snapshot(ctx, 1)
	require.NoError(t, err)
	require.Len(t, snap.Suggestions, 2)

	saved, err := s.Promote(ctx, 1, snap.Suggestions[0].ID)
	require.NoError(t, err)
	assert.Equal(t, models.OutfitStatusSaved, saved.Status)

	require.NoError(t, s.SaveSuggestionBatch(ctx, 1, []models.OutfitRecord{outfit("e", "f")}))
	snap, err = s.Snapshot(ctx, 1)
	require.NoError(t, err)
	require.Len(t, snap.Suggestions, 1)
	assert.Equal(t, "e", snap.Suggestions[0].Slots[models.SlotTop])
	require.Len(t, snap.Saved, 1)
	assert.Equal(t, saved.ID, snap.Saved[0].ID)
}

func TestSuggestionBatchKeepsProposalOrder(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(nil)

	require.NoError(t, s.SaveSuggestionBatch(ctx, 1, []models.OutfitRecord{outfit("1", "x"), outfit("2", "x"), outfit("3", "x")}))
	snap, err := s.Snapshot(ctx, 1)
	require.NoError(t, err)
	var tops []string
	for _, r := range snap.Suggestions {
		tops = append(tops, r.Slots[models.SlotTop])
	}
	assert.Equal(t, []string{"1", "2", "3"}, tops)
}

func TestPromoteIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(nil)
	batch := []models.OutfitRecord{outfit("a", "b")}
	require.NoError(t, s.SaveSuggestionBatch(ctx, 1, batch))

	first, err := s.Promote(ctx, 1, batch[0].ID)
	require.NoError(t, err)
	second, err := s.Promote(ctx, 1, batch[0].ID)
	require.NoError(t, err)
	assert.Equal(t, first.CreatedAt, second.CreatedAt)

	snap, _ := s.Snapshot(ctx, 1)
	assert.Len(t, snap.Saved, 1)
	assert.Empty(t, snap.Suggestions)
}

func TestOutfitsAreScopedByOwner(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(nil)
	batch := []models.OutfitRecord{outfit("a", "b")}
	require.NoError(t, s.SaveSuggestionBatch(ctx, 1, batch))

	_, err := s.Promote(ctx, 2, batch[0].ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.DeleteOutfit(ctx, 2, batch[0].ID), ErrNotFound)
	_, err = s.UpdateOutfit(ctx, 2, batch[0].ID, models.OutfitPatch{})
	assert.ErrorIs(t, err, ErrNotFound)

	snap, _ := s.Snapshot(ctx, 2)
	assert.Empty(t, snap.Suggestions)
}

func TestUpdateOutfitAppliesOnlySetFields(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(nil)
	batch := []models.OutfitRecord{outfit("a", "b")}
	batch[0].Rationale = "works"
	require.NoError(t, s.SaveSuggestionBatch(ctx, 1, batch))

	occasion := "Office"
	extras := []string{"bag"}
	updated, err := s.UpdateOutfit(ctx, 1, batch[0].ID, models.OutfitPatch{Occasion: &occasion, Extras: &extras})
	require.NoError(t, err)
	assert.Equal(t, "Office", updated.Occasion)
	assert.Equal(t, "works", updated.Rationale)
	assert.Equal(t, []string{"bag"}, []string(updated.Extras))
	assert.Equal(t, "a", updated.Slots[models.SlotTop])
}

func TestReturnedRecordsAreCopies(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(nil)
	require.NoError(t, s.SaveSuggestionBatch(ctx, 1, []models.OutfitRecord{outfit("a", "b")}))

	snap, _ := s.Snapshot(ctx, 1)
	snap.Suggestions[0].Slots[models.SlotTop] = "mutated"

	again, _ := s.Snapshot(ctx, 1)
	assert.Equal(t, "a", again.Suggestions[0].Slots[models.SlotTop])
}

func TestItemsCRUD(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(nil)

	item := &models.InventoryItem{OwnerID: 1, Name: "Tee", Category: models.CategoryTops}
	require.NoError(t, s.CreateItem(ctx, item))
	assert.NotEmpty(t, item.ID)
	assert.Equal(t, "idle", item.AnalysisStatus)

	_, err := s.GetItem(ctx, 2, item.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	item.Name = "Linen tee"
	require.NoError(t, s.UpdateItem(ctx, item))
	got, err := s.GetItem(ctx, 1, item.ID)
	require.NoError(t, err)
	assert.Equal(t, "Linen tee", got.Name)

	second := &models.InventoryItem{OwnerID: 1, Name: "Jeans", Category: models.CategoryBottoms}
	require.NoError(t, s.CreateItem(ctx, second))
	items, err := s.ListItems(ctx, 1)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, item.ID, items[0].ID)

	require.NoError(t, s.DeleteItem(ctx, 1, item.ID))
	assert.ErrorIs(t, s.DeleteItem(ctx, 1, item.ID), ErrNotFound)
}

func TestPhotoAnalysisWritesOnlyAnalysisColumns(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(nil)
	brand := "Uniqlo"
	item := &models.InventoryItem{OwnerID: 1, Name: "Shirt", Category: models.CategoryTops, Brand: &brand}
	require.NoError(t, s.CreateItem(ctx, item))

	msg := "model busy"
	require.NoError(t, s.SetAnalysisStatus(ctx, 1, item.ID, models.AnalysisFailed, &msg))
	require.NoError(t, s.SetAnalysisStatus(ctx, 1, item.ID, models.AnalysisPending, nil))
	assert.ErrorIs(t, s.SetAnalysisStatus(ctx, 2, item.ID, models.AnalysisPending, nil), ErrNotFound)

	edited, err := s.GetItem(ctx, 1, item.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AnalysisPending, edited.AnalysisStatus)
	assert.Nil(t, edited.AnalysisErrorMessage)
	edited.Name = "Oxford"
	require.NoError(t, s.UpdateItem(ctx, edited))

	zara := "Zara"
	got, err := s.ApplyPhotoAnalysis(ctx, 1, item.ID, &models.PhotoAnalysis{
		Item:     "Shirt from photo",
		Category: models.CategoryKnitwear,
		Colors:   []string{"blue"},
		Brand:    &zara,
	})
	require.NoError(t, err)
	assert.Equal(t, "Oxford", got.Name)
	assert.Equal(t, models.CategoryTops, got.Category)
	assert.Equal(t, "Uniqlo", *got.Brand)
	assert.Equal(t, []string{"blue"}, []string(got.Colors))
	assert.Equal(t, models.AnalysisCompleted, got.AnalysisStatus)
	assert.Nil(t, got.AnalysisErrorMessage)
	assert.Equal(t, 1, got.AnalysisRetryTimes)

	_, err = s.ApplyPhotoAnalysis(ctx, 2, item.ID, &models.PhotoAnalysis{})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGenerationStatusShowsInSnapshot(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(nil)
	assert.ErrorIs(t, s.SetGenerationStatus(ctx, 7, models.GenerationState{Status: models.GenerationPending}), ErrNotFound)

	_, err := s.EnsureUser(ctx, 7)
	require.NoError(t, err)
	msg := "All models unavailable. Try again in a minute."
	require.NoError(t, s.SetGenerationStatus(ctx, 7, models.GenerationState{Status: models.GenerationFailed, Error: &msg}))

	snap, err := s.Snapshot(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, models.GenerationFailed, snap.Generation.Status)
	require.NotNil(t, snap.Generation.Error)
	assert.Equal(t, msg, *snap.Generation.Error)
}

func TestSubscribeYieldsCurrentSnapshotThenChanges(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s := NewMemoryStore(nil)
	require.NoError(t, s.SaveSuggestionBatch(ctx, 1, []models.OutfitRecord{outfit("a", "b")}))

	updates, err := s.Subscribe(ctx, 1)
	require.NoError(t, err)

	first := receive(t, updates)
	assert.Len(t, first.Suggestions, 1)

	require.NoError(t, s.SaveSuggestionBatch(ctx, 1, []models.OutfitRecord{outfit("c", "d"), outfit("e", "f")}))
	next := receive(t, updates)
	assert.Len(t, next.Suggestions, 2)

	cancel()
	assert.Eventually(t, func() bool {
		_, open := <-updates
		return !open
	}, time.Second, 10*time.Millisecond)
}

func TestSubscribeIgnoresOtherOwners(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s := NewMemoryStore(nil)

	updates, err := s.Subscribe(ctx, 1)
	require.NoError(t, err)
	receive(t, updates)

	require.NoError(t, s.SaveSuggestionBatch(ctx, 2, []models.OutfitRecord{outfit("a", "b")}))
	select {
	case snap := <-updates:
		t.Fatalf("unexpected update for another owner: %+v", snap)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestProfileAndPushTokens(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(nil)
	user, err := s.EnsureUser(ctx, 3)
	require.NoError(t, err)
	assert.True(t, user.ReceiveNotifications)

	goal := "quiet luxury"
	daily := true
	lat, lon := 52.52, 13.4
	updated, err := s.UpdateProfile(ctx, 3, models.ProfileIn{StyleGoal: &goal, DailySuggestions: &daily, Latitude: &lat, Longitude: &lon})
	require.NoError(t, err)
	assert.Equal(t, "quiet luxury", *updated.StyleGoal)

	users, err := s.ListDailySuggestionUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, uint(3), users[0].ID)

	require.NoError(t, s.RegisterPushToken(ctx, 3, models.UserPushIn{Token: "tok", Platform: "ios"}))
	require.NoError(t, s.RegisterPushToken(ctx, 3, models.UserPushIn{Token: "tok", Platform: "ios"}))
	tokens, err := s.PushTokens(ctx, 3)
	require.NoError(t, err)
	assert.Len(t, tokens, 1)
}

func TestLatestInsightReport(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(nil)
	_, err := s.LatestInsightReport(ctx, 1)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.SaveInsightReport(ctx, &models.InsightReport{OwnerID: 1, StyleProfile: "old"}))
	require.NoError(t, s.SaveInsightReport(ctx, &models.InsightReport{OwnerID: 1, StyleProfile: "new"}))
	require.NoError(t, s.SaveInsightReport(ctx, &models.InsightReport{OwnerID: 2, StyleProfile: "other"}))

	latest, err := s.LatestInsightReport(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "new", latest.StyleProfile)
}

func receive(t *testing.T, updates <-chan models.OutfitSnapshot) models.OutfitSnapshot {
	t.Helper()
	select {
	case snap, ok := <-updates:
		require.True(t, ok, "subscription closed")
		return snap
	case <-time.After(time.Second):
		t.Fatal("no snapshot received")
		return models.OutfitSnapshot{}
	}
}
