package controllers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"time"

	"closetai/models"
	"closetai/services"
	"closetai/tasks"

	"github.com/getsentry/sentry-go"
	"github.com/hibiken/asynq"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
)

const streamHeartbeat = 25 * time.Second

type GenerateOutfitsIn struct {
	Season    *string  `json:"season" validate:"omitempty,season"`
	Latitude  *float64 `json:"latitude" validate:"omitempty,min=-90,max=90"`
	Longitude *float64 `json:"longitude" validate:"omitempty,min=-180,max=180"`
	Day       string   `json:"day" validate:"omitempty,oneof=today tomorrow"`
}

func (in GenerateOutfitsIn) environment() services.EnvironmentRequest {
	req := services.EnvironmentRequest{Latitude: in.Latitude, Longitude: in.Longitude, Day: services.WeatherDay(in.Day)}
	if in.Season != nil {
		if season, ok := models.ParseSeason(*in.Season); ok {
			req.Season = &season
		}
	}
	return req
}

type OutfitPatchIn struct {
	Slots     map[string]string `json:"slots"`
	Extras    *[]string         `json:"extras" validate:"omitempty,max=10"`
	Occasion  *string           `json:"occasion" validate:"omitempty,max=100"`
	Rationale *string           `json:"why" validate:"omitempty,max=1000"`
}

type OutfitsController struct {
	Now func() time.Time
}

func (controller *OutfitsController) OutfitRoutes(g *echo.Group) {
	g.GET("", controller.ListOutfits)
	g.GET("/stream", controller.StreamOutfits)
	g.POST("/generate", controller.GenerateOutfits)
	g.POST("/:id/promote", controller.PromoteOutfit)
	g.PATCH("/:id", controller.UpdateOutfit)
	g.DELETE("/:id", controller.DeleteOutfit)
}

func (controller *OutfitsController) GenerateOutfits(c echo.Context) error {
	var req GenerateOutfitsIn
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	if (req.Latitude == nil) != (req.Longitude == nil) {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "latitude and longitude go together"})
	}
	user := currentUser(c)
	ctx := c.Request().Context()

	enqueuer, ok := enqueuerFrom(c)
	if !ok {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"message": "Service is not available, please try again a bit later"})
	}
	task, err := tasks.NewGenerateOutfitsTask(user.ID, req.environment())
	if err != nil {
		return errorResponse(c, err)
	}
	// pending goes out before the task exists so a fast worker can't be overwritten by it
	now := controller.Now()
	state := models.GenerationState{Status: models.GenerationPending, UpdatedAt: &now}
	if err := storeFrom(c).SetGenerationStatus(ctx, user.ID, state); err != nil {
		log.Ctx(ctx).Warn().Err(err).Msg("pending status not saved")
	}

	info, err := enqueuer.EnqueueContext(ctx, task, asynq.Unique(time.Minute))
	if errors.Is(err, asynq.ErrDuplicateTask) {
		return c.JSON(http.StatusConflict, map[string]string{"message": "Outfits are already being generated"})
	}
	if err != nil {
		sentry.CaptureException(err)
		msg := "Sorry, could not start generation, please try again"
		failed := models.GenerationState{Status: models.GenerationFailed, Error: &msg, UpdatedAt: &now}
		if err := storeFrom(c).SetGenerationStatus(ctx, user.ID, failed); err != nil {
			log.Ctx(ctx).Warn().Err(err).Msg("failed status not saved")
		}
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"message": msg})
	}
	log.Ctx(ctx).Info().Str("task_id", info.ID).Msg("outfit generation queued")
	return c.JSON(http.StatusAccepted, echo.Map{"task_id": info.ID, "generation": state})
}

func (controller *OutfitsController) ListOutfits(c echo.Context) error {
	user := currentUser(c)
	snap, err := storeFrom(c).Snapshot(c.Request().Context(), user.ID)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, snap)
}

// StreamOutfits pushes the owner's outfit snapshot as server-sent events: once on connect and again
// after every change, until the client goes away.
func (controller *OutfitsController) StreamOutfits(c echo.Context) error {
	user := currentUser(c)
	ctx := c.Request().Context()
	updates, err := storeFrom(c).Subscribe(ctx, user.ID)
	if err != nil {
		return errorResponse(c, err)
	}

	w := c.Response()
	w.Header().Set(echo.HeaderContentType, "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	w.Flush()

	heartbeat := time.NewTicker(streamHeartbeat)
	defer heartbeat.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case snap, ok := <-updates:
			if !ok {
				return nil
			}
			data, err := json.Marshal(snap)
			if err != nil {
				return err
			}
			if _, err := fmt.Fprintf(w, "event: snapshot\ndata: %s\n\n", data); err != nil {
				return nil
			}
			w.Flush()
		case <-heartbeat.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return nil
			}
			w.Flush()
		}
	}
}

func (controller *OutfitsController) PromoteOutfit(c echo.Context) error {
	user := currentUser(c)
	record, err := storeFrom(c).Promote(c.Request().Context(), user.ID, c.Param("id"))
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, record)
}

func (controller *OutfitsController) UpdateOutfit(c echo.Context) error {
	var req OutfitPatchIn
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	user := currentUser(c)
	ctx := c.Request().Context()

	patch, err := controller.checkPatch(c, user.ID, req)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	record, err := storeFrom(c).UpdateOutfit(ctx, user.ID, c.Param("id"), patch)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, record)
}

// checkPatch resolves user edited slots and extras against the owner's catalog, the same way model
// answers are checked: slot items must match the slot category, extras must be bags or accessories.
func (controller *OutfitsController) checkPatch(c echo.Context, ownerID uint, req OutfitPatchIn) (models.OutfitPatch, error) {
	patch := models.OutfitPatch{Extras: req.Extras, Occasion: req.Occasion, Rationale: req.Rationale}
	if req.Slots == nil && req.Extras == nil {
		return patch, nil
	}
	items, err := storeFrom(c).ListItems(c.Request().Context(), ownerID)
	if err != nil {
		return patch, err
	}
	byID := map[string]models.InventoryItem{}
	for _, item := range items {
		byID[item.ID] = item
	}

	if req.Slots != nil {
		patch.Slots = map[models.SlotID]string{}
		for key, id := range req.Slots {
			def, ok := models.LookupSlot(key)
			if !ok {
				return patch, fmt.Errorf("unknown slot %q", key)
			}
			item, ok := byID[id]
			if !ok || item.Category != def.Category {
				return patch, fmt.Errorf("item %q does not fit slot %s", id, def.ID)
			}
			patch.Slots[def.ID] = id
		}
		if len(patch.Slots) < 2 {
			return patch, errors.New("an outfit needs at least two slots")
		}
	}
	if req.Extras != nil {
		extras := []string{}
		for _, id := range *req.Extras {
			item, ok := byID[id]
			if !ok || !slices.Contains(models.ExtraCategories, item.Category) {
				return patch, fmt.Errorf("item %q is not an extra", id)
			}
			if !slices.Contains(extras, id) {
				extras = append(extras, id)
			}
		}
		patch.Extras = &extras
	}
	return patch, nil
}

func (controller *OutfitsController) DeleteOutfit(c echo.Context) error {
	user := currentUser(c)
	if err := storeFrom(c).DeleteOutfit(c.Request().Context(), user.ID, c.Param("id")); err != nil {
		return errorResponse(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
