package controllers

import (
	"fmt"
	"net/http"
	"strconv"

	"closetai/models"
	"closetai/store"
	"closetai/tasks"

	"github.com/golang-jwt/jwt/v4"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
)

// RequestLogger puts a zerolog logger tagged with the request id on the request context.
func RequestLogger(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		req := c.Request()
		id := req.Header.Get(echo.HeaderXRequestID)
		if id == "" {
			id = c.Response().Header().Get(echo.HeaderXRequestID)
		}
		logger := log.With().Str("request_id", id).Str("method", req.Method).Str("uri", req.RequestURI).Logger()
		c.SetRequest(req.WithContext(logger.WithContext(req.Context())))
		return next(c)
	}
}

// UserMiddleware resolves the JWT subject to an account, creating it on first sight.
func UserMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		accounts := c.Get("__store").(store.AccountStore)
		userRaw := c.Get("user")
		if userRaw == nil {
			return echo.ErrUnauthorized
		}
		token, ok := userRaw.(*jwt.Token)
		if !ok {
			return echo.ErrUnauthorized
		}
		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			return echo.ErrUnauthorized
		}
		sub, _ := claims["sub"].(string)
		userID, err := strconv.ParseUint(sub, 10, 64)
		if err != nil || userID == 0 {
			log.Ctx(c.Request().Context()).Warn().Str("sub", sub).Msg("token without a usable subject")
			return echo.ErrUnauthorized
		}

		currentUser, err := accounts.EnsureUser(c.Request().Context(), uint(userID))
		if err != nil {
			return errorResponse(c, fmt.Errorf("load user %d: %w", userID, err))
		}
		if currentUser.Banned {
			return echo.NewHTTPError(http.StatusLocked)
		}

		ctx := log.Ctx(c.Request().Context()).With().Uint("user_id", currentUser.ID).Logger().WithContext(c.Request().Context())
		c.SetRequest(c.Request().WithContext(ctx))
		c.Set("currentUser", *currentUser)
		return next(c)
	}
}

func currentUser(c echo.Context) models.UserAccount {
	return c.Get("currentUser").(models.UserAccount)
}

func storeFrom(c echo.Context) store.Store {
	return c.Get("__store").(store.Store)
}

func enqueuerFrom(c echo.Context) (tasks.Enqueuer, bool) {
	enqueuer, ok := c.Get("__enqueuer").(tasks.Enqueuer)
	return enqueuer, ok && enqueuer != nil
}
