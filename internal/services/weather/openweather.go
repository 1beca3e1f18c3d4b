package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// samplesPerDay is the number of 3-hour forecast samples in one day.
const samplesPerDay = 8

// APIError is a non-2xx answer from OpenWeather.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("openweather status %d", e.StatusCode)
	}

	return e.Message
}

// sample is one entry of the OpenWeather current and forecast payloads.
type sample struct {
	DtTxt string `json:"dt_txt"`
	Main  struct {
		Temp     float64 `json:"temp"`
		Humidity float64 `json:"humidity"`
	} `json:"main"`
	Weather []struct {
		Description string `json:"description"`
	} `json:"weather"`
	Wind struct {
		Speed float64 `json:"speed"`
	} `json:"wind"`
}

func (s *sample) description() string {
	if len(s.Weather) == 0 {
		return ""
	}

	return s.Weather[0].Description
}

// Client is a minimal HTTP client for the OpenWeather 2.5 API.
type Client struct {
	BaseURL string
	APIKey  string
	HTTP    *http.Client
}

// Compile-time verification that Client implements Forecaster.
var _ Forecaster = (*Client)(nil)

// NewClient returns a new client. If httpClient is nil, a default with a 15s timeout is used.
func NewClient(baseURL, apiKey string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}

	return &Client{BaseURL: strings.TrimRight(baseURL, "/"), APIKey: apiKey, HTTP: httpClient}
}

// Forecast returns one entry per day, taken from every eighth 3-hour sample.
func (c *Client) Forecast(ctx context.Context, city string, days int) ([]ForecastDay, error) {
	var body struct {
		List []sample `json:"list"`
	}

	query := url.Values{
		"q":   {city},
		"cnt": {strconv.Itoa(days * samplesPerDay)},
	}

	if err := c.get(ctx, "forecast", query, &body); err != nil {
		return nil, err
	}

	forecasts := make([]ForecastDay, 0, days)

	for i := 0; i < len(body.List); i += samplesPerDay {
		s := body.List[i]

		date, _, _ := strings.Cut(s.DtTxt, " ")
		if date == "" {
			date = time.Now().UTC().Format(time.DateOnly)
		}

		forecasts = append(forecasts, ForecastDay{
			Date:        date,
			Temperature: s.Main.Temp,
			Conditions:  s.description(),
		})
	}

	return forecasts, nil
}

// Current returns the current conditions in city.
func (c *Client) Current(ctx context.Context, city string) (*Conditions, error) {
	var s sample

	if err := c.get(ctx, "weather", url.Values{"q": {city}}, &s); err != nil {
		return nil, err
	}

	return &Conditions{
		Temperature: s.Main.Temp,
		Conditions:  s.description(),
		Humidity:    s.Main.Humidity,
		WindSpeed:   s.Wind.Speed,
	}, nil
}

func (c *Client) get(ctx context.Context, endpoint string, query url.Values, v any) error {
	u, err := url.Parse(c.BaseURL + "/" + endpoint)
	if err != nil {
		return fmt.Errorf("invalid base url: %w", err)
	}

	query.Set("appid", c.APIKey)
	query.Set("units", "metric")
	u.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return err
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode}

		var body struct {
			Message string `json:"message"`
		}

		if json.NewDecoder(resp.Body).Decode(&body) == nil {
			apiErr.Message = body.Message
		}

		return apiErr
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode %s response: %w", endpoint, err)
	}

	return nil
}
