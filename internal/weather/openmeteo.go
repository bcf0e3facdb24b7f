package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sweeney/vent-controller/internal/logic"
)

// Default Open-Meteo endpoints.
const (
	DefaultAirQualityURL = "https://air-quality-api.open-meteo.com/v1/air-quality"
	DefaultForecastURL   = "https://api.open-meteo.com/v1/forecast"
)

// Config configures a Client.
type Config struct {
	AirQualityURL string
	ForecastURL   string
	Latitude      float64
	Longitude     float64
	StaleAfter    time.Duration
}

// Client fetches PM2.5 from the air-quality API and temperature and wind
// from the forecast API.
type Client struct {
	cfg        Config
	httpClient *http.Client
	cache      *Cache
	now        func() time.Time
}

// NewClient creates a client with an empty cache.
func NewClient(cfg Config, httpClient *http.Client, now func() time.Time) *Client {
	if cfg.AirQualityURL == "" {
		cfg.AirQualityURL = DefaultAirQualityURL
	}
	if cfg.ForecastURL == "" {
		cfg.ForecastURL = DefaultForecastURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	if now == nil {
		now = time.Now
	}
	return &Client{
		cfg:        cfg,
		httpClient: httpClient,
		cache:      NewCache(cfg.StaleAfter),
		now:        now,
	}
}

type airQualityResponse struct {
	Current struct {
		PM25 *float64 `json:"pm2_5"`
	} `json:"current"`
}

type forecastResponse struct {
	Current struct {
		Temperature *float64 `json:"temperature_2m"`
		WindSpeed   *float64 `json:"wind_speed_10m"`
	} `json:"current"`
}

// Fetch retrieves both feeds and caches the combined observation.
func (c *Client) Fetch(ctx context.Context) (logic.Weather, error) {
	var aq airQualityResponse
	if err := c.get(ctx, c.cfg.AirQualityURL, "pm2_5", &aq); err != nil {
		return logic.Weather{}, fmt.Errorf("air quality: %w", err)
	}
	var fc forecastResponse
	if err := c.get(ctx, c.cfg.ForecastURL, "temperature_2m,wind_speed_10m", &fc); err != nil {
		return logic.Weather{}, fmt.Errorf("forecast: %w", err)
	}

	if aq.Current.PM25 == nil || fc.Current.Temperature == nil {
		return logic.Weather{}, ErrNoData
	}

	w := logic.Weather{
		PM25:        *aq.Current.PM25,
		OutdoorTemp: *fc.Current.Temperature,
		CapturedAt:  c.now(),
		Valid:       true,
	}
	if fc.Current.WindSpeed != nil {
		w.WindSpeed = *fc.Current.WindSpeed
	}
	c.cache.Store(w)
	return w, nil
}

func (c *Client) get(ctx context.Context, base, current string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	q := url.Values{}
	q.Add("latitude", strconv.FormatFloat(c.cfg.Latitude, 'f', 4, 64))
	q.Add("longitude", strconv.FormatFloat(c.cfg.Longitude, 'f', 4, 64))
	q.Add("current", current)
	req.URL.RawQuery = q.Encode()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d: %s", resp.StatusCode, string(body))
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	return nil
}

// Cached returns the last good observation.
func (c *Client) Cached() logic.Weather {
	return c.cache.Get()
}

// IsCacheStale reports whether the cache is empty or too old.
func (c *Client) IsCacheStale(now time.Time) bool {
	return c.cache.IsStale(now)
}
