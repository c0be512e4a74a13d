package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/i474232898/weather-lake-ingest/internal/weather"
)

// DefaultOpenMeteoURL is the Open-Meteo forecast endpoint.
const DefaultOpenMeteoURL = "https://api.open-meteo.com/v1/forecast"

// OpenMeteoProvider implements weather.Fetcher for Open-Meteo current conditions.
type OpenMeteoProvider struct {
	baseURL string
	client  *http.Client
}

func NewOpenMeteoProvider(client *http.Client, baseURL string) *OpenMeteoProvider {
	if baseURL == "" {
		baseURL = DefaultOpenMeteoURL
	}
	return &OpenMeteoProvider{
		baseURL: strings.TrimRight(baseURL, "?"),
		client:  client,
	}
}

// URL returns the request URL for loc. Parameters keep a fixed order and the
// variable list stays comma joined, so the same location always yields the same URL.
func (p *OpenMeteoProvider) URL(loc weather.Location) string {
	return fmt.Sprintf("%s?latitude=%s&longitude=%s&current=%s&timezone=%s",
		p.baseURL,
		formatCoordinate(loc.Latitude),
		formatCoordinate(loc.Longitude),
		strings.Join(weather.Variables, ","),
		url.QueryEscape(loc.Timezone),
	)
}

// Fetch performs one GET and returns the decoded JSON object.
func (p *OpenMeteoProvider) Fetch(ctx context.Context, loc weather.Location) (weather.Observation, error) {
	u := p.URL(loc)

	resp, err := doRequest(ctx, p.client, u)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var obs weather.Observation
	if err := json.NewDecoder(resp.Body).Decode(&obs); err != nil {
		return nil, &weather.FetchError{URL: u, StatusCode: resp.StatusCode, Err: fmt.Errorf("decode body: %w", err)}
	}
	if obs == nil {
		return nil, &weather.FetchError{URL: u, StatusCode: resp.StatusCode, Err: fmt.Errorf("decode body: expected a JSON object")}
	}

	return obs, nil
}

func formatCoordinate(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
