package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/larkwiot/shelf/internal/book"
	"github.com/larkwiot/shelf/internal/config"
	"github.com/larkwiot/shelf/internal/isbn"
)

// Provider looks one ISBN up in an external bibliographic source. A lookup
// that completes without a match returns found == false and a nil error.
type Provider interface {
	Name() string
	Lookup(ctx context.Context, key isbn.Canonical) (rec book.Record, found bool, err error)
	Disabled() bool
}

// Doer is the part of *http.Client the adapters use.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

var ErrDisabled = errors.New("provider disabled")

// StatusError reports an unexpected HTTP status from a source.
type StatusError struct {
	Source     string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s returned status code %d: %s", e.Source, e.StatusCode, e.Body)
}

func statusCode(err error) int {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode
	}
	return 0
}

// getJSON decodes a 200 response into target. A 404 is reported as
// found == false.
func getJSON(ctx context.Context, client Doer, source, userAgent, url string, target any) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	response, err := client.Do(req)
	if err != nil {
		return false, err
	}
	defer response.Body.Close()

	if response.StatusCode == http.StatusNotFound {
		return false, nil
	}
	if response.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(response.Body, 512))
		return false, &StatusError{Source: source, StatusCode: response.StatusCode, Body: string(body)}
	}

	if err := json.NewDecoder(response.Body).Decode(target); err != nil {
		return false, fmt.Errorf("%s returned an undecodable body: %w", source, err)
	}
	return true, nil
}

// NewFromConfig builds the enabled providers in priority order: Open
// Library, Google Books, then the Amazon scraper.
func NewFromConfig(conf *config.Config, client Doer, logger *slog.Logger) []Provider {
	enabled := make([]Provider, 0, 3)

	if conf.OpenLibrary.Enable {
		enabled = append(enabled, NewGeneric(NewOpenLibrary(&conf.OpenLibrary, client, conf.Http.UserAgent), conf.OpenLibrary.Interval()).WithLogger(logger))
	}

	if conf.Google.Enable {
		enabled = append(enabled, NewGeneric(NewGoogle(&conf.Google, client, conf.Http.UserAgent), conf.Google.Interval()).WithLogger(logger))
	}

	if conf.Amazon.Enable {
		enabled = append(enabled, NewGeneric(NewAmazon(&conf.Amazon, conf.Http.UserAgent, conf.HttpTimeout()), conf.Amazon.Interval()).WithLogger(logger))
	}

	return enabled
}

// NewHTTPClient is the client shared by the JSON sources.
func NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout}
}
