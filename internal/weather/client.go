package weather

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/lox/siteweather/internal/httputil"
	"github.com/lox/siteweather/internal/metrics"
)

const DefaultBaseURL = "https://api.weatherapi.com/v1"

// ErrNoAPIKey is returned by Forecast when the client was built without a
// provider key.
var ErrNoAPIKey = errors.New("weather: no API key configured")

type Client struct {
	apiKey     string
	baseURL    string
	client     *http.Client
	newBackOff func() backoff.BackOff
}

func NewClient(apiKey, baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		apiKey:  apiKey,
		baseURL: baseURL,
		client:  httputil.NewClient(),
		newBackOff: func() backoff.BackOff {
			bo := backoff.NewExponentialBackOff()
			bo.MaxElapsedTime = 2 * time.Minute
			return bo
		},
	}
}

// Forecast fetches days of hourly forecast for query, which may be
// "lat,lon", a zip code, or a free-form address. Rate limiting (429) is
// retried with exponential backoff; any other failure is returned as is.
func (c *Client) Forecast(ctx context.Context, query string, days int) (*Forecast, error) {
	if c.apiKey == "" {
		return nil, ErrNoAPIKey
	}
	if days < 1 {
		days = 1
	}

	q := url.Values{}
	q.Set("key", c.apiKey)
	q.Set("q", query)
	q.Set("days", strconv.Itoa(days))
	q.Set("aqi", "yes")
	q.Set("alerts", "yes")
	endpoint := c.baseURL + "/forecast.json?" + q.Encode()

	var body []byte
	operation := func() error {
		start := time.Now()
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("build request: %w", err))
		}
		resp, err := c.client.Do(req)
		metrics.WeatherAPILatency.WithLabelValues("forecast").Observe(time.Since(start).Seconds())
		if err != nil {
			metrics.WeatherAPICallsTotal.WithLabelValues("forecast", "error").Inc()
			return backoff.Permanent(fmt.Errorf("fetch forecast: %w", err))
		}
		defer resp.Body.Close()
		metrics.WeatherAPICallsTotal.WithLabelValues("forecast", strconv.Itoa(resp.StatusCode)).Inc()

		if resp.StatusCode == http.StatusTooManyRequests {
			return fmt.Errorf("rate limited: status %d", resp.StatusCode)
		}
		if resp.StatusCode != http.StatusOK {
			b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			return backoff.Permanent(fmt.Errorf("fetch forecast: status %d: %s", resp.StatusCode, string(b)))
		}

		body, err = io.ReadAll(resp.Body)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("read body: %w", err))
		}
		return nil
	}

	if err := backoff.Retry(operation, backoff.WithContext(c.newBackOff(), ctx)); err != nil {
		return nil, err
	}

	return ParseForecast(body, time.Now().UTC())
}
