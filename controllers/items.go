package controllers

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"

	"closetai/languageutil"
	"closetai/models"
	"closetai/services"
	"closetai/tasks"

	"github.com/getsentry/sentry-go"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
)

const maxPhotoBytes = 10 << 20

type ItemIn struct {
	Name        string   `json:"name" validate:"required,max=100"`
	Category    string   `json:"category" validate:"required,category"`
	Subcategory *string  `json:"subcategory" validate:"omitempty,max=50"`
	Colors      []string `json:"colors" validate:"max=10,dive,max=30"`
	Seasons     []string `json:"seasons" validate:"max=4,dive,season"`
	Brand       *string  `json:"brand" validate:"omitempty,max=100"`
	Size        *string  `json:"size" validate:"omitempty,max=20"`
	Materials   []string `json:"materials" validate:"max=10,dive,max=30"`
	Link        *string  `json:"link" validate:"omitempty,url,max=500"`
}

// apply copies the validated request onto the item in canonical form.
func (in ItemIn) apply(item *models.InventoryItem) {
	category, _ := models.ParseCategory(in.Category)
	item.Name = in.Name
	item.Category = category
	item.Subcategory = normalizedPointer(in.Subcategory, languageutil.NormalizeTag)
	item.Colors = normalizedList(in.Colors)
	item.Seasons = models.NormalizeSeasons(in.Seasons)
	item.Brand = normalizedPointer(in.Brand, nil)
	item.Size = normalizedPointer(in.Size, languageutil.NormalizeSize)
	item.Materials = normalizedList(in.Materials)
	item.Link = normalizedPointer(in.Link, nil)
}

func normalizedPointer(value *string, normalize func(string) string) *string {
	if value == nil {
		return nil
	}
	v := languageutil.NormalizeSpaces(*value)
	if normalize != nil {
		v = normalize(v)
	}
	return services.StrPointer(v)
}

func normalizedList(values []string) []string {
	out := []string{}
	seen := map[string]bool{}
	for _, v := range values {
		tag := languageutil.NormalizeTag(v)
		if tag == "" || seen[tag] {
			continue
		}
		seen[tag] = true
		out = append(out, tag)
	}
	return out
}

type ItemResponse struct {
	models.InventoryItem
	PhotoURL *string `json:"photo_url"`
}

type ItemsListResponse struct {
	Items      []ItemResponse                     `json:"items"`
	ByCategory map[models.Category][]ItemResponse `json:"by_category"`
}

type ItemsController struct {
	Photos     services.PhotoAnalyzerProvider
	PhotoStore services.PhotoStoreProvider
	URLCache   services.URLCacheServiceProvider
}

func (controller *ItemsController) ItemRoutes(g *echo.Group) {
	g.GET("", controller.ListItems)
	g.POST("", controller.CreateItem)
	g.POST("/analyze-photo", controller.AnalyzePhoto)
	g.GET("/:id", controller.GetItem)
	g.PUT("/:id", controller.UpdateItem)
	g.DELETE("/:id", controller.DeleteItem)
	g.POST("/:id/photo", controller.UploadPhoto)
	g.POST("/:id/analyze", controller.EnqueueAnalysis)
}

func (controller *ItemsController) ListItems(c echo.Context) error {
	user := currentUser(c)
	items, err := storeFrom(c).ListItems(c.Request().Context(), user.ID)
	if err != nil {
		return errorResponse(c, err)
	}

	responses := controller.populatePhotoURLs(c.Request().Context(), items)
	response := ItemsListResponse{Items: responses, ByCategory: map[models.Category][]ItemResponse{}}
	for _, category := range models.Categories {
		response.ByCategory[category] = []ItemResponse{}
	}
	for _, resp := range responses {
		response.ByCategory[resp.Category] = append(response.ByCategory[resp.Category], resp)
	}
	return c.JSON(http.StatusOK, response)
}

func (controller *ItemsController) GetItem(c echo.Context) error {
	user := currentUser(c)
	item, err := storeFrom(c).GetItem(c.Request().Context(), user.ID, c.Param("id"))
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, controller.populatePhotoURLs(c.Request().Context(), []models.InventoryItem{*item})[0])
}

func (controller *ItemsController) CreateItem(c echo.Context) error {
	var req ItemIn
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	user := currentUser(c)
	item := &models.InventoryItem{OwnerID: user.ID}
	req.apply(item)
	if err := storeFrom(c).CreateItem(c.Request().Context(), item); err != nil {
		return errorResponse(c, err)
	}
	log.Ctx(c.Request().Context()).Info().Str("item_id", item.ID).Str("category", string(item.Category)).Msg("item created")
	return c.JSON(http.StatusCreated, ItemResponse{InventoryItem: *item})
}

func (controller *ItemsController) UpdateItem(c echo.Context) error {
	var req ItemIn
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	user := currentUser(c)
	ctx := c.Request().Context()
	item, err := storeFrom(c).GetItem(ctx, user.ID, c.Param("id"))
	if err != nil {
		return errorResponse(c, err)
	}
	req.apply(item)
	if err := storeFrom(c).UpdateItem(ctx, item); err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, controller.populatePhotoURLs(ctx, []models.InventoryItem{*item})[0])
}

func (controller *ItemsController) DeleteItem(c echo.Context) error {
	user := currentUser(c)
	ctx := c.Request().Context()
	item, err := storeFrom(c).GetItem(ctx, user.ID, c.Param("id"))
	if err != nil {
		return errorResponse(c, err)
	}
	if err := storeFrom(c).DeleteItem(ctx, user.ID, item.ID); err != nil {
		return errorResponse(c, err)
	}
	if item.PhotoKey != nil && controller.PhotoStore != nil {
		if err := controller.PhotoStore.Delete(ctx, *item.PhotoKey); err != nil {
			// the item is gone either way; an orphaned object only costs storage
			log.Ctx(ctx).Warn().Err(err).Str("key", *item.PhotoKey).Msg("photo not deleted")
			sentry.CaptureException(err)
		}
	}
	return c.NoContent(http.StatusNoContent)
}

func readPhoto(c echo.Context) ([]byte, error) {
	file, err := c.FormFile("photo")
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, map[string]string{"error": "photo file is required"})
	}
	if file.Size > maxPhotoBytes {
		return nil, echo.NewHTTPError(http.StatusRequestEntityTooLarge, map[string]string{"error": "photo is larger than 10MB"})
	}
	src, err := file.Open()
	if err != nil {
		return nil, fmt.Errorf("open upload: %w", err)
	}
	defer src.Close()
	content, err := io.ReadAll(io.LimitReader(src, maxPhotoBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if _, ok := services.DetectImageType(content); !ok {
		return nil, services.ErrUnsupportedImage
	}
	return content, nil
}

func photoError(c echo.Context, err error) error {
	if he, ok := err.(*echo.HTTPError); ok {
		return he
	}
	return errorResponse(c, err)
}

func (controller *ItemsController) UploadPhoto(c echo.Context) error {
	user := currentUser(c)
	ctx := c.Request().Context()
	item, err := storeFrom(c).GetItem(ctx, user.ID, c.Param("id"))
	if err != nil {
		return errorResponse(c, err)
	}
	content, err := readPhoto(c)
	if err != nil {
		return photoError(c, err)
	}

	key, err := controller.PhotoStore.Upload(ctx, item.ID, content)
	if err != nil {
		return errorResponse(c, err)
	}
	item.PhotoKey = &key
	item.AnalysisStatus = models.AnalysisIdle
	item.AnalysisRetryTimes = 0
	item.AnalysisErrorMessage = nil
	if err := storeFrom(c).UpdateItem(ctx, item); err != nil {
		return errorResponse(c, err)
	}

	if c.QueryParam("analyze") == "true" {
		if err := enqueueAnalysis(c, item); err != nil {
			return err
		}
	}
	return c.JSON(http.StatusOK, controller.populatePhotoURLs(ctx, []models.InventoryItem{*item})[0])
}

func (controller *ItemsController) EnqueueAnalysis(c echo.Context) error {
	user := currentUser(c)
	item, err := storeFrom(c).GetItem(c.Request().Context(), user.ID, c.Param("id"))
	if err != nil {
		return errorResponse(c, err)
	}
	if item.PhotoKey == nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Upload a photo first"})
	}
	if err := enqueueAnalysis(c, item); err != nil {
		return err
	}
	return c.JSON(http.StatusAccepted, ItemResponse{InventoryItem: *item})
}

// enqueueAnalysis marks the item pending and queues the background analysis. A non-nil return is an
// already rendered HTTP error.
func enqueueAnalysis(c echo.Context, item *models.InventoryItem) error {
	ctx := c.Request().Context()
	enqueuer, ok := enqueuerFrom(c)
	if !ok {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "Service is not available, please try again a bit later")
	}
	task, err := tasks.NewAnalyzePhotoTask(item.OwnerID, item.ID)
	if err != nil {
		sentry.CaptureException(err)
		return echo.NewHTTPError(http.StatusInternalServerError, "Sorry, could not analyze the photo, please try again")
	}
	// pending goes out before the task exists so a fast worker can't be overwritten by it
	previous := item.AnalysisStatus
	if err := storeFrom(c).SetAnalysisStatus(ctx, item.OwnerID, item.ID, models.AnalysisPending, nil); err != nil {
		return errorResponse(c, err)
	}
	info, err := enqueuer.EnqueueContext(ctx, task)
	if err != nil {
		sentry.CaptureException(err)
		if err := storeFrom(c).SetAnalysisStatus(ctx, item.OwnerID, item.ID, previous, nil); err != nil {
			log.Ctx(ctx).Warn().Err(err).Msg("analysis status not restored")
		}
		return echo.NewHTTPError(http.StatusServiceUnavailable, "Sorry, could not analyze the photo, please try again")
	}
	item.AnalysisStatus = models.AnalysisPending
	log.Ctx(ctx).Info().Str("item_id", item.ID).Str("task_id", info.ID).Msg("photo analysis queued")
	return nil
}

// AnalyzePhoto runs the vision model inline on an uploaded photo and returns suggested attributes
// without touching the catalog.
func (controller *ItemsController) AnalyzePhoto(c echo.Context) error {
	if controller.Photos == nil {
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"message": "Photo analysis is not configured"})
	}
	content, err := readPhoto(c)
	if err != nil {
		return photoError(c, err)
	}
	analysis, err := controller.Photos.Analyze(c.Request().Context(), content)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, analysis)
}

// populatePhotoURLs resolves presigned photo urls concurrently. A broken cache falls back to signing
// directly; a failed signature leaves the url empty rather than failing the list.
func (controller *ItemsController) populatePhotoURLs(ctx context.Context, items []models.InventoryItem) []ItemResponse {
	responses := make([]ItemResponse, len(items))
	var wg sync.WaitGroup
	for i, item := range items {
		responses[i] = ItemResponse{InventoryItem: item}
		if item.PhotoKey == nil || *item.PhotoKey == "" || controller.URLCache == nil {
			continue
		}
		wg.Add(1)
		go func(index int, objectKey string) {
			defer wg.Done()
			url, err := controller.URLCache.GetReadURL(ctx, objectKey)
			if err != nil {
				log.Ctx(ctx).Warn().Err(err).Str("key", objectKey).Msg("url cache failed, signing directly")
				sentry.WithScope(func(scope *sentry.Scope) {
					scope.SetTag("failure_type", "cache_system")
					scope.SetExtra("objectKey", objectKey)
					sentry.CaptureException(err)
				})
				if controller.PhotoStore == nil {
					return
				}
				url, err = controller.PhotoStore.PresignGet(ctx, objectKey)
				if err != nil {
					sentry.CaptureException(err)
					return
				}
			}
			responses[index].PhotoURL = &url
		}(i, *item.PhotoKey)
	}
	wg.Wait()
	return responses
}
