package controllers

import (
	"net/http"

	"closetai/models"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
)

type ProfileController struct {
}

func (controller *ProfileController) ProfileRoutes(g *echo.Group) {
	g.GET("", controller.GetProfile)
	g.PUT("", controller.UpdateProfile)
	g.POST("/push-token", controller.RegisterPushToken)
}

func (controller *ProfileController) GetProfile(c echo.Context) error {
	return c.JSON(http.StatusOK, currentUser(c))
}

func (controller *ProfileController) UpdateProfile(c echo.Context) error {
	var req models.ProfileIn
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	if (req.Latitude == nil) != (req.Longitude == nil) {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "latitude and longitude go together"})
	}
	user := currentUser(c)
	updated, err := storeFrom(c).UpdateProfile(c.Request().Context(), user.ID, req)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, updated)
}

func (controller *ProfileController) RegisterPushToken(c echo.Context) error {
	var req models.UserPushIn
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	user := currentUser(c)
	if err := storeFrom(c).RegisterPushToken(c.Request().Context(), user.ID, req); err != nil {
		return errorResponse(c, err)
	}
	log.Ctx(c.Request().Context()).Info().Str("platform", req.Platform).Msg("push token registered")
	return c.JSON(http.StatusOK, echo.Map{"message": "ok"})
}
