// Package geocoding переводит координаты в адрес через Google Geocoding API.
package geocoding

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/mmcloughlin/geohash"
	"googlemaps.github.io/maps"

	"github.com/ViniMesquitaa/map-medical/internal/models"
)

var (
	// ErrUpstreamUnavailable - сервис недоступен, вернул ошибку или не настроен
	ErrUpstreamUnavailable = errors.New("geocoding upstream unavailable")
	// ErrNoResult - сервис ответил, но адрес для координат не найден
	ErrNoResult = errors.New("geocoding returned no result")
)

// fallbackGeohashPrecision - 7 символов, ячейка примерно 150x150 м
const fallbackGeohashPrecision = 7

// Config - параметры клиента геокодирования
type Config struct {
	APIKey   string
	BaseURL  string
	Language string
	Timeout  time.Duration
}

// Client - клиент обратного геокодирования
type Client struct {
	maps     *maps.Client
	language string
	timeout  time.Duration
}

// NewClient создает клиент. Без API-ключа клиент всегда возвращает ErrUpstreamUnavailable.
func NewClient(cfg Config) (*Client, error) {
	c := &Client{language: cfg.Language, timeout: cfg.Timeout}
	if cfg.APIKey == "" {
		return c, nil
	}

	opts := []maps.ClientOption{
		maps.WithAPIKey(cfg.APIKey),
		maps.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, maps.WithBaseURL(cfg.BaseURL))
	}

	mc, err := maps.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create maps client: %w", err)
	}
	c.maps = mc
	return c, nil
}

// Resolve выполняет ровно один запрос к сервису, без повторов
func (c *Client) Resolve(ctx context.Context, coords models.Coordinates) (string, error) {
	if c.maps == nil {
		return "", fmt.Errorf("%w: api key is not configured", ErrUpstreamUnavailable)
	}
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	results, err := c.maps.ReverseGeocode(ctx, &maps.GeocodingRequest{
		LatLng:   &maps.LatLng{Lat: coords.Latitude, Lng: coords.Longitude},
		Language: c.language,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrUpstreamUnavailable, err)
	}

	// ZERO_RESULTS приходит без ошибки, с пустым списком
	if len(results) == 0 {
		return "", ErrNoResult
	}
	address := strings.TrimSpace(results[0].FormattedAddress)
	if address == "" {
		return "", ErrNoResult
	}
	return address, nil
}

// FallbackAddress строит адрес-заглушку из координат, когда геокодирование не удалось
func FallbackAddress(coords models.Coordinates) string {
	cell := geohash.EncodeWithPrecision(coords.Latitude, coords.Longitude, fallbackGeohashPrecision)
	return fmt.Sprintf("%.6f, %.6f (geohash %s)", coords.Latitude, coords.Longitude, cell)
}

// Reason возвращает короткую метку причины ошибки для логов и метрик
func Reason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNoResult):
		return "no_result"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "upstream_unavailable"
	}
}
