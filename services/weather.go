package services

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"closetai/models"

	"github.com/dgraph-io/ristretto"
	"github.com/eko/gocache/lib/v4/cache"
	"github.com/eko/gocache/lib/v4/store"
	ristretto_store "github.com/eko/gocache/store/ristretto/v4"
	"github.com/rs/zerolog/log"
)

const (
	OpenMeteoBaseURL = "https://api.open-meteo.com"

	weatherCacheTTL = 15 * time.Minute
	weatherTimeout  = 10 * time.Second
)

type WeatherDay string

const (
	WeatherToday    WeatherDay = "today"
	WeatherTomorrow WeatherDay = "tomorrow"
)

// WeatherForecast holds what outfit generation needs from a forecast. Temperatures are rounded.
type WeatherForecast struct {
	TodayTemperatureC int
	TodayCode         int
	TomorrowMinC      int
	TomorrowMaxC      int
	TomorrowCode      int
	// offset of the forecast location from UTC
	UTCOffsetSeconds  int
}

// LocalTime is now on the wall clock at the forecast location.
func (f WeatherForecast) LocalTime(now time.Time) time.Time {
	return now.In(time.FixedZone("", f.UTCOffsetSeconds))
}

type WeatherProvider interface {
	Forecast(ctx context.Context, latitude, longitude float64) (*WeatherForecast, error)
}

type OpenMeteoClient struct {
	BaseURL    string
	HTTPClient *http.Client
}

func NewOpenMeteoClient(baseURL string) *OpenMeteoClient {
	if baseURL == "" {
		baseURL = OpenMeteoBaseURL
	}
	return &OpenMeteoClient{
		BaseURL:    baseURL,
		HTTPClient: &http.Client{Timeout: weatherTimeout},
	}
}

type openMeteoResponse struct {
	Current struct {
		Temperature float64 `json:"temperature_2m"`
		WeatherCode int     `json:"weather_code"`
	} `json:"current"`
	Daily struct {
		TemperatureMax []float64 `json:"temperature_2m_max"`
		TemperatureMin []float64 `json:"temperature_2m_min"`
		WeatherCode    []int     `json:"weather_code"`
	} `json:"daily"`
	UTCOffsetSeconds int `json:"utc_offset_seconds"`
}

func (c *OpenMeteoClient) Forecast(ctx context.Context, latitude, longitude float64) (*WeatherForecast, error) {
	query := url.Values{}
	query.Set("latitude", strconv.FormatFloat(latitude, 'f', -1, 64))
	query.Set("longitude", strconv.FormatFloat(longitude, 'f', -1, 64))
	query.Set("current", "temperature_2m,weather_code")
	query.Set("daily", "temperature_2m_max,temperature_2m_min,weather_code")
	query.Set("timezone", "auto")
	query.Set("forecast_days", "2")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/v1/forecast?"+query.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create weather request: %w", err)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("weather request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("weather fetch failed, status code: %d", resp.StatusCode)
	}

	var body openMeteoResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode weather response: %w", err)
	}
	d := body.Daily
	if len(d.TemperatureMax) < 2 || len(d.TemperatureMin) < 2 || len(d.WeatherCode) < 2 {
		return nil, fmt.Errorf("weather response has %d forecast days, need 2", len(d.WeatherCode))
	}
	return &WeatherForecast{
		TodayTemperatureC: roundC(body.Current.Temperature),
		TodayCode:         body.Current.WeatherCode,
		TomorrowMinC:      roundC(d.TemperatureMin[1]),
		TomorrowMaxC:      roundC(d.TemperatureMax[1]),
		TomorrowCode:      d.WeatherCode[1],
		UTCOffsetSeconds:  body.UTCOffsetSeconds,
	}, nil
}

func roundC(c float64) int {
	return int(math.Round(c))
}

// DescribeWeatherCode maps a WMO weather code to a short sky description.
func DescribeWeatherCode(code int) string {
	switch {
	case code == 0:
		return "Clear"
	case code <= 3:
		return "Partly cloudy"
	case code <= 48:
		return "Fog"
	case code <= 55:
		return "Drizzle"
	case code <= 65:
		return "Rain"
	case code <= 75:
		return "Snow"
	case code <= 82:
		return "Showers"
	default:
		return "Thunderstorm"
	}
}

// CachedWeather memoizes forecasts per rounded coordinate.
type CachedWeather struct {
	cache *cache.LoadableCache[*WeatherForecast]
}

func NewCachedWeather(source WeatherProvider) (*CachedWeather, error) {
	ristrettoCache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 1e5,
		MaxCost:     1 << 20,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create ristretto cache: %w", err)
	}
	ristrettoStore := ristretto_store.NewRistretto(ristrettoCache)

	loadFunction := func(ctx context.Context, key any) (*WeatherForecast, []store.Option, error) {
		k, ok := key.(coordinateKey)
		if !ok {
			return nil, nil, fmt.Errorf("invalid key type provided to weather cache: %T", key)
		}
		log.Ctx(ctx).Debug().Str("coordinates", k.String()).Msg("weather cache miss")
		forecast, err := source.Forecast(ctx, k.Latitude, k.Longitude)
		return forecast, []store.Option{store.WithExpiration(weatherCacheTTL), store.WithCost(1)}, err
	}

	return &CachedWeather{
		cache: cache.NewLoadable[*WeatherForecast](loadFunction, cache.New[*WeatherForecast](ristrettoStore)),
	}, nil
}

type coordinateKey struct {
	Latitude  float64
	Longitude float64
}

func (k coordinateKey) String() string {
	return fmt.Sprintf("%.2f,%.2f", k.Latitude, k.Longitude)
}

func (k coordinateKey) GetCacheKey() string {
	return "weather:" + k.String()
}

// two decimals is roughly a kilometre
func roundCoordinate(v float64) float64 {
	return math.Round(v*100) / 100
}

func (c *CachedWeather) Forecast(ctx context.Context, latitude, longitude float64) (*WeatherForecast, error) {
	return c.cache.Get(ctx, coordinateKey{
		Latitude:  roundCoordinate(latitude),
		Longitude: roundCoordinate(longitude),
	})
}

// EnvironmentRequest is what a caller asks generation to dress for. Coordinates select weather mode.
type EnvironmentRequest struct {
	Season    *models.Season `json:"season,omitempty"`
	Latitude  *float64       `json:"latitude,omitempty"`
	Longitude *float64       `json:"longitude,omitempty"`
	Day       WeatherDay     `json:"day,omitempty"`
}

// DefaultWeatherDay dresses for today in the morning and for tomorrow from noon on. local is the
// time at the user's location.
func DefaultWeatherDay(local time.Time) WeatherDay {
	if local.Hour() < 12 {
		return WeatherToday
	}
	return WeatherTomorrow
}

func WeatherReadingFor(forecast WeatherForecast, day WeatherDay) models.WeatherReading {
	if day == WeatherTomorrow {
		desc := DescribeWeatherCode(forecast.TomorrowCode)
		return models.WeatherReading{
			TemperatureC:   math.Round(float64(forecast.TomorrowMinC+forecast.TomorrowMaxC) / 2),
			SkyDescription: desc,
			DisplayLabel:   fmt.Sprintf("%d–%d°C, %s (outfit for tomorrow)", forecast.TomorrowMinC, forecast.TomorrowMaxC, desc),
		}
	}
	desc := DescribeWeatherCode(forecast.TodayCode)
	return models.WeatherReading{
		TemperatureC:   float64(forecast.TodayTemperatureC),
		SkyDescription: desc,
		DisplayLabel:   fmt.Sprintf("%d°C, %s (outfit for today)", forecast.TodayTemperatureC, desc),
	}
}

// ResolveEnvironment turns a request into an EnvironmentContext. Weather is used when coordinates are
// given and the forecast loads; any failure falls back to the requested season or the calendar season.
func ResolveEnvironment(ctx context.Context, weather WeatherProvider, req EnvironmentRequest, now time.Time) models.EnvironmentContext {
	fallback := func() models.EnvironmentContext {
		if req.Season != nil {
			if season, ok := models.ParseSeason(string(*req.Season)); ok {
				return models.SeasonContext(season)
			}
		}
		return models.SeasonContext(CurrentSeason(now))
	}

	if weather == nil || req.Latitude == nil || req.Longitude == nil {
		return fallback()
	}
	forecast, err := weather.Forecast(ctx, *req.Latitude, *req.Longitude)
	if err != nil || forecast == nil {
		log.Ctx(ctx).Warn().Err(err).Msg("weather unavailable, using season context")
		return fallback()
	}

	day := req.Day
	if day != WeatherToday && day != WeatherTomorrow {
		day = DefaultWeatherDay(forecast.LocalTime(now))
	}
	return models.WeatherContext(WeatherReadingFor(*forecast, day))
}
