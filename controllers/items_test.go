package controllers

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"testing"

	"closetai/models"
	"closetai/services"
	"closetai/tasks"
	"closetai/test"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func samplePNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 16, 16))
	for x := 0; x < 16; x++ {
		for y := 0; y < 16; y++ {
			img.Set(x, y, color.RGBA{B: 180, A: 255})
		}
	}
	buf := &bytes.Buffer{}
	require.NoError(t, png.Encode(buf, img))
	return buf.Bytes()
}

func TestCreateItemNormalizesInput(t *testing.T) {
	f := newAPI(t)
	rec := f.serve(test.NewJSONAuthRequest(http.MethodPost, "/api/items", 1, map[string]any{
		"name":      "Linen shirt",
		"category":  "Tops",
		"colors":    []string{"White", "white ", "Sky  Blue"},
		"seasons":   []string{"summer", "autumn"},
		"size":      "m",
		"materials": []string{"Linen"},
	}))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	created := decode[ItemResponse](t, rec)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, models.CategoryTops, created.Category)
	assert.Equal(t, []string{"white", "sky blue"}, []string(created.Colors))
	assert.Equal(t, []string{"summer", "fall"}, []string(created.Seasons))
	require.NotNil(t, created.Size)
	assert.Equal(t, "M", *created.Size)
}

func TestCreateItemValidation(t *testing.T) {
	f := newAPI(t)
	cases := []map[string]any{
		{"name": "", "category": "tops"},
		{"name": "Hat", "category": "hats"},
		{"name": "Tee", "category": "tops", "seasons": []string{"monsoon"}},
		{"name": "Tee", "category": "tops", "link": "not a url"},
	}
	for _, body := range cases {
		rec := f.serve(test.NewJSONAuthRequest(http.MethodPost, "/api/items", 1, body))
		assert.Equal(t, http.StatusBadRequest, rec.Code, test.JsonString(body))
	}
}

func TestListItemsGroupsByCategory(t *testing.T) {
	f := newAPI(t)
	w := test.BasicWardrobe(f.ctx, f.store, 1)
	tee := w[models.CategoryTops]
	key, err := f.photos.Upload(f.ctx, tee.ID, samplePNG(t))
	require.NoError(t, err)
	tee.PhotoKey = &key
	require.NoError(t, f.store.UpdateItem(f.ctx, tee))
	test.FakeItem(f.ctx, f.store, 2, "Someone else's", models.CategoryTops)

	rec := f.serve(test.NewAuthRequest(http.MethodGet, "/api/items", 1))
	require.Equal(t, http.StatusOK, rec.Code)

	list := decode[ItemsListResponse](t, rec)
	assert.Len(t, list.Items, 6)
	require.Len(t, list.ByCategory[models.CategoryTops], 1)
	assert.Empty(t, list.ByCategory[models.CategoryAccessories])
	require.NotNil(t, list.ByCategory[models.CategoryTops][0].PhotoURL)
	assert.Equal(t, "https://photos.example.com/items/"+tee.ID, *list.ByCategory[models.CategoryTops][0].PhotoURL)
}

func TestItemsAreOwnerScoped(t *testing.T) {
	f := newAPI(t)
	item := test.FakeItem(f.ctx, f.store, 2, "Coat", models.CategoryOuterwear)

	assert.Equal(t, http.StatusNotFound, f.serve(test.NewAuthRequest(http.MethodGet, "/api/items/"+item.ID, 1)).Code)
	assert.Equal(t, http.StatusNotFound, f.serve(test.NewAuthRequest(http.MethodDelete, "/api/items/"+item.ID, 1)).Code)
	rec := f.serve(test.NewJSONAuthRequest(http.MethodPut, "/api/items/"+item.ID, 1, map[string]any{"name": "Mine", "category": "outerwear"}))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUpdateItem(t *testing.T) {
	f := newAPI(t)
	item := test.FakeItem(f.ctx, f.store, 1, "Coat", models.CategoryOuterwear)

	rec := f.serve(test.NewJSONAuthRequest(http.MethodPut, "/api/items/"+item.ID, 1, map[string]any{
		"name": "Wool coat", "category": "outerwear", "seasons": []string{"winter"},
	}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	got, err := f.store.GetItem(f.ctx, 1, item.ID)
	require.NoError(t, err)
	assert.Equal(t, "Wool coat", got.Name)
	assert.Equal(t, []string{"winter"}, []string(got.Seasons))
}

func TestUploadPhotoAndQueueAnalysis(t *testing.T) {
	f := newAPI(t)
	item := test.FakeItem(f.ctx, f.store, 1, "Shirt", models.CategoryTops)

	rec := f.serve(test.NewMultipartAuthRequest(http.MethodPost, "/api/items/"+item.ID+"/photo?analyze=true", 1, "shirt.png", samplePNG(t)))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	resp := decode[ItemResponse](t, rec)
	require.NotNil(t, resp.PhotoURL)
	assert.Equal(t, "pending", resp.AnalysisStatus)
	assert.Contains(t, f.photos.Objects, services.PhotoKey(item.ID))
	assert.Equal(t, []string{tasks.TypeAnalyzePhoto}, f.enqueuer.Types())
}

func TestQueueAnalysisMarksPendingBeforeEnqueue(t *testing.T) {
	f := newAPI(t)
	item := test.FakeItem(f.ctx, f.store, 1, "Shirt", models.CategoryTops)
	key, err := f.photos.Upload(f.ctx, item.ID, samplePNG(t))
	require.NoError(t, err)
	item.PhotoKey = &key
	require.NoError(t, f.store.UpdateItem(f.ctx, item))

	var atEnqueue string
	f.enqueuer.OnEnqueue = func(task *asynq.Task) {
		got, err := f.store.GetItem(f.ctx, 1, item.ID)
		require.NoError(t, err)
		atEnqueue = got.AnalysisStatus
		// a user edit landing right after the enqueue must survive
		got.Name = "Renamed shirt"
		require.NoError(t, f.store.UpdateItem(f.ctx, got))
	}

	rec := f.serve(test.NewAuthRequest(http.MethodPost, "/api/items/"+item.ID+"/analyze", 1))
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	assert.Equal(t, models.AnalysisPending, atEnqueue)

	got, err := f.store.GetItem(f.ctx, 1, item.ID)
	require.NoError(t, err)
	assert.Equal(t, "Renamed shirt", got.Name)
	assert.Equal(t, models.AnalysisPending, got.AnalysisStatus)
}

func TestQueueAnalysisEnqueueFailureRestoresStatus(t *testing.T) {
	f := newAPI(t)
	item := test.FakeItem(f.ctx, f.store, 1, "Shirt", models.CategoryTops)
	key, err := f.photos.Upload(f.ctx, item.ID, samplePNG(t))
	require.NoError(t, err)
	item.PhotoKey = &key
	require.NoError(t, f.store.UpdateItem(f.ctx, item))
	f.enqueuer.Err = errors.New("redis down")

	rec := f.serve(test.NewAuthRequest(http.MethodPost, "/api/items/"+item.ID+"/analyze", 1))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	got, err := f.store.GetItem(f.ctx, 1, item.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AnalysisIdle, got.AnalysisStatus)
}

func TestUploadRejectsNonImages(t *testing.T) {
	f := newAPI(t)
	item := test.FakeItem(f.ctx, f.store, 1, "Shirt", models.CategoryTops)

	rec := f.serve(test.NewMultipartAuthRequest(http.MethodPost, "/api/items/"+item.ID+"/photo", 1, "notes.txt", []byte("just some text")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, f.photos.Objects)
}

func TestQueueAnalysisNeedsPhoto(t *testing.T) {
	f := newAPI(t)
	item := test.FakeItem(f.ctx, f.store, 1, "Shirt", models.CategoryTops)

	rec := f.serve(test.NewAuthRequest(http.MethodPost, "/api/items/"+item.ID+"/analyze", 1))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, f.enqueuer.Tasks)
}

func TestDeleteItemRemovesPhoto(t *testing.T) {
	f := newAPI(t)
	item := test.FakeItem(f.ctx, f.store, 1, "Shirt", models.CategoryTops)
	key, _ := f.photos.Upload(f.ctx, item.ID, samplePNG(t))
	item.PhotoKey = &key
	require.NoError(t, f.store.UpdateItem(f.ctx, item))

	rec := f.serve(test.NewAuthRequest(http.MethodDelete, "/api/items/"+item.ID, 1))
	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, []string{key}, f.photos.Deleted)
	_, err := f.store.GetItem(f.ctx, 1, item.ID)
	assert.Error(t, err)
}

func TestAnalyzePhotoInline(t *testing.T) {
	f := newAPI(t)
	f.gateway.Reply(photoModel, `{"item": "Denim jacket", "category": "outerwear", "color": ["Blue"], "season": "all-season", "brand": ""}`)

	rec := f.serve(test.NewMultipartAuthRequest(http.MethodPost, "/api/items/analyze-photo", 1, "jacket.png", samplePNG(t)))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	analysis := decode[models.PhotoAnalysis](t, rec)
	assert.Equal(t, "Denim jacket", analysis.Item)
	assert.Equal(t, models.CategoryOuterwear, analysis.Category)
	assert.Equal(t, []string{"blue"}, analysis.Colors)
	assert.Empty(t, analysis.Seasons)
	assert.Nil(t, analysis.Brand)
	assert.Equal(t, photoModel, analysis.Model)
}

func TestAnalyzePhotoErrorMapping(t *testing.T) {
	f := newAPI(t)
	f.gateway.FailStatus(photoModel, 503)
	rec := f.serve(test.NewMultipartAuthRequest(http.MethodPost, "/api/items/analyze-photo", 1, "a.png", samplePNG(t)))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "All models unavailable")

	f = newAPI(t)
	f.gateway.FailStatus(photoModel, 400)
	rec = f.serve(test.NewMultipartAuthRequest(http.MethodPost, "/api/items/analyze-photo", 1, "a.png", samplePNG(t)))
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Body.String(), "AI request failed (400)")
}
