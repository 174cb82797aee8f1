// Package routing quotes distance, duration and geometry between two points.
package routing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"meet-lab/contract"
	"meet-lab/domain"
	"meet-lab/errors"
	"net/http"
	"strings"
	"time"
)

const DefaultORSBaseURL = "https://api.openrouteservice.org"

var _ contract.RouteProvider = (*ORSClient)(nil)

// profiles maps a travel mode to an OpenRouteService profile.
var profiles = map[domain.Mode]string{
	domain.ModeCar:  "driving-car",
	domain.ModeWalk: "foot-walking",
}

// ORSClient calls the OpenRouteService directions API.
// No retry is attempted, the next location sample retries naturally.
type ORSClient struct {
	log     *slog.Logger
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewORSClient(log *slog.Logger, baseURL, apiKey string, timeout time.Duration) *ORSClient {
	if baseURL == "" {
		baseURL = DefaultORSBaseURL
	}
	return &ORSClient{
		log:     log,
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
	}
}

type directionsRequest struct {
	Coordinates [][2]float64 `json:"coordinates"`
}

type directionsResponse struct {
	Features []struct {
		Properties struct {
			Summary struct {
				Distance *float64 `json:"distance"`
				Duration *float64 `json:"duration"`
			} `json:"summary"`
		} `json:"properties"`
		Geometry struct {
			Coordinates [][2]float64 `json:"coordinates"`
		} `json:"geometry"`
	} `json:"features"`
}

// Quote returns the route from origin to destination.
// Network errors, timeouts, 5xx and 429 are ErrProviderUnavailable, any other refusal is ErrProviderRejected.
func (c *ORSClient) Quote(ctx context.Context, origin, destination domain.Point, mode domain.Mode) (domain.RouteQuote, error) {
	profile, ok := profiles[mode]
	if !ok {
		c.log.Warn("Unknown travel mode, falling back to car", "mode", mode)
		profile = profiles[domain.ModeCar]
	}

	body, err := json.Marshal(directionsRequest{Coordinates: [][2]float64{
		{origin.Lng, origin.Lat},
		{destination.Lng, destination.Lat},
	}})
	if err != nil {
		return domain.RouteQuote{}, fmt.Errorf("%w: %v", errors.ErrProviderRejected, err)
	}

	url := fmt.Sprintf("%s/v2/directions/%s/geojson", c.baseURL, profile)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return domain.RouteQuote{}, fmt.Errorf("%w: %v", errors.ErrProviderRejected, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json, application/geo+json")
	req.Header.Set("Authorization", c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return domain.RouteQuote{}, fmt.Errorf("%w: %v", errors.ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			return domain.RouteQuote{}, fmt.Errorf("%w: status %d: %s", errors.ErrProviderUnavailable, resp.StatusCode, detail)
		}
		return domain.RouteQuote{}, fmt.Errorf("%w: status %d: %s", errors.ErrProviderRejected, resp.StatusCode, detail)
	}

	var data directionsResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return domain.RouteQuote{}, fmt.Errorf("%w: decode failed: %v", errors.ErrProviderRejected, err)
	}
	if len(data.Features) == 0 {
		return domain.RouteQuote{}, fmt.Errorf("%w: no route found", errors.ErrProviderRejected)
	}

	feature := data.Features[0]
	summary := feature.Properties.Summary
	quote := domain.RouteQuote{Geometry: feature.Geometry.Coordinates}
	// ORS omits the summary fields when origin and destination are the same point
	if summary.Distance != nil {
		quote.DistanceMeters = *summary.Distance
	}
	if summary.Duration != nil {
		quote.DurationSeconds = *summary.Duration
	}
	return quote, nil
}
