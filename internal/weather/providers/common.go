package providers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/i474232898/weather-lake-ingest/internal/weather"
)

var (
	errNoHTTPClient = errors.New("http client not configured")
	errBadStatus    = errors.New("unexpected status code")
)

// maxErrorBody bounds how much of a failed response is kept for the error message.
const maxErrorBody = 512

// doRequest issues a single GET. Every failure comes back as *weather.FetchError;
// retries belong to the caller.
func doRequest(ctx context.Context, client *http.Client, rawURL string) (*http.Response, error) {
	if client == nil {
		return nil, &weather.FetchError{URL: rawURL, Err: errNoHTTPClient}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &weather.FetchError{URL: rawURL, Err: err}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, &weather.FetchError{URL: rawURL, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		cause := errBadStatus
		if len(body) > 0 {
			cause = fmt.Errorf("%w: %s", errBadStatus, body)
		}
		return nil, &weather.FetchError{URL: rawURL, StatusCode: resp.StatusCode, Err: cause}
	}

	return resp, nil
}
