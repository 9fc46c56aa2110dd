package controllers

import (
	"errors"
	"net/http"
	"time"

	"closetai/services"
	"closetai/tasks"

	"github.com/getsentry/sentry-go"
	"github.com/hibiken/asynq"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
)

type InsightsController struct {
}

func (controller *InsightsController) InsightRoutes(g *echo.Group) {
	g.GET("/stats", controller.Stats)
	g.POST("/analyze", controller.Analyze)
	g.GET("/latest", controller.Latest)
}

func (controller *InsightsController) Stats(c echo.Context) error {
	user := currentUser(c)
	items, err := storeFrom(c).ListItems(c.Request().Context(), user.ID)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, services.ComputeWardrobeStats(items))
}

func (controller *InsightsController) Analyze(c echo.Context) error {
	user := currentUser(c)
	ctx := c.Request().Context()
	items, err := storeFrom(c).ListItems(ctx, user.ID)
	if err != nil {
		return errorResponse(c, err)
	}
	if len(items) == 0 {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Add some items to your wardrobe first"})
	}

	enqueuer, ok := enqueuerFrom(c)
	if !ok {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"message": "Service is not available, please try again a bit later"})
	}
	task, err := tasks.NewWardrobeInsightsTask(user.ID)
	if err != nil {
		return errorResponse(c, err)
	}
	info, err := enqueuer.EnqueueContext(ctx, task, asynq.Unique(time.Minute))
	if errors.Is(err, asynq.ErrDuplicateTask) {
		return c.JSON(http.StatusConflict, map[string]string{"message": "Your wardrobe is already being analyzed"})
	}
	if err != nil {
		sentry.CaptureException(err)
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"message": "Sorry, could not start the analysis, please try again"})
	}
	log.Ctx(ctx).Info().Str("task_id", info.ID).Int("items", len(items)).Msg("wardrobe insights queued")
	return c.JSON(http.StatusAccepted, echo.Map{"task_id": info.ID})
}

func (controller *InsightsController) Latest(c echo.Context) error {
	user := currentUser(c)
	report, err := storeFrom(c).LatestInsightReport(c.Request().Context(), user.ID)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, report)
}
