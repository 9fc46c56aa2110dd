package controllers

import (
	"errors"
	"net/http"
	"time"

	"closetai/models"
	"closetai/services"
	"closetai/store"
	"closetai/tasks"

	"github.com/getsentry/sentry-go"
	"github.com/go-playground/validator"
	echojwt "github.com/labstack/echo-jwt"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog/log"
)

type CustomValidator struct {
	validator *validator.Validate
}

func (cv *CustomValidator) Validate(i interface{}) error {
	if err := cv.validator.Struct(i); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return nil
}

func NewValidator() *CustomValidator {
	v := validator.New()
	v.RegisterValidation("platform", models.ValidatePlatform)
	v.RegisterValidation("category", models.ValidateCategory)
	v.RegisterValidation("season", models.ValidateSeason)
	v.RegisterValidation("isodate", models.ValidateISODate)
	return &CustomValidator{validator: v}
}

// ServerDeps are the collaborators the HTTP layer talks to. Heavy model work goes through Enqueuer;
// only photo analysis runs inline.
type ServerDeps struct {
	Store      store.Store
	Photos     services.PhotoAnalyzerProvider
	PhotoStore services.PhotoStoreProvider
	URLCache   services.URLCacheServiceProvider
	Enqueuer   tasks.Enqueuer
	JWTSecret  string
	Now        func() time.Time
}

func SetupServer(deps ServerDeps) *echo.Echo {
	if deps.Now == nil {
		deps.Now = time.Now
	}

	e := echo.New()
	e.Validator = NewValidator()
	e.Use(middleware.RequestID())
	e.Use(RequestLogger)
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.Set("__store", deps.Store)
			c.Set("__enqueuer", deps.Enqueuer)
			return next(c)
		}
	})
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
	}))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
	})

	api := e.Group("/api", echojwt.JWT([]byte(deps.JWTSecret)), UserMiddleware)

	profileController := ProfileController{}
	profileController.ProfileRoutes(api.Group("/profile"))

	itemsController := ItemsController{Photos: deps.Photos, PhotoStore: deps.PhotoStore, URLCache: deps.URLCache}
	itemsController.ItemRoutes(api.Group("/items"))

	outfitsController := OutfitsController{Now: deps.Now}
	outfitsController.OutfitRoutes(api.Group("/outfits"))

	insightsController := InsightsController{}
	insightsController.InsightRoutes(api.Group("/insights"))

	return e
}

// errorResponse maps domain errors onto status codes. Anything unexpected is reported to sentry.
func errorResponse(c echo.Context, err error) error {
	var gatewayErr *services.GatewayError
	switch {
	case errors.Is(err, store.ErrNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"message": "Not found"})
	case errors.Is(err, services.ErrUnsupportedImage):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Only JPEG, PNG and WEBP photos are supported"})
	case errors.Is(err, services.ErrModelsExhausted):
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"message": services.UserMessage(err)})
	case errors.As(err, &gatewayErr):
		return c.JSON(http.StatusBadGateway, echo.Map{"message": services.UserMessage(err), "code": gatewayErr.Code()})
	}
	log.Ctx(c.Request().Context()).Error().Err(err).Str("path", c.Path()).Msg("request failed")
	sentry.CaptureException(err)
	return c.JSON(http.StatusInternalServerError, echo.Map{"message": "Something went wrong, please try again."})
}

// bindAndValidate returns a ready 400 for echo's error handler, or nil.
func bindAndValidate(c echo.Context, req interface{}) error {
	if err := c.Bind(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}
	if err := c.Validate(req); err != nil {
		msg := err.Error()
		var he *echo.HTTPError
		if errors.As(err, &he) {
			if s, ok := he.Message.(string); ok {
				msg = s
			}
		}
		return echo.NewHTTPError(http.StatusBadRequest, map[string]string{"error": msg})
	}
	return nil
}
