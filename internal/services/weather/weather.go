// Package weather exposes OpenWeather forecasts as a tool and the current
// conditions of a default city as a resource.
package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/wagiedev/stdio-rpc-go/internal/errors"
	"github.com/wagiedev/stdio-rpc-go/internal/jsonrpc"
	"github.com/wagiedev/stdio-rpc-go/internal/registry"
)

const (
	// ToolName is the forecast tool.
	ToolName = "get_forecast"

	defaultDays = 3
	maxDays     = 5
)

// ForecastDay is one day of a forecast.
type ForecastDay struct {
	Date        string  `json:"date"`
	Temperature float64 `json:"temperature"`
	Conditions  string  `json:"conditions"`
}

// Conditions are the current weather in a city.
type Conditions struct {
	Temperature float64 `json:"temperature"`
	Conditions  string  `json:"conditions"`
	Humidity    float64 `json:"humidity"`
	WindSpeed   float64 `json:"wind_speed"`
	Timestamp   string  `json:"timestamp"`
}

// Forecaster fetches weather data.
type Forecaster interface {
	Forecast(ctx context.Context, city string, days int) ([]ForecastDay, error)
	Current(ctx context.Context, city string) (*Conditions, error)
}

// Service implements the weather tool and resource.
type Service struct {
	log         *slog.Logger
	forecaster  Forecaster
	defaultCity string
	now         func() time.Time
}

// Compile-time verification that Service is a resource provider.
var _ registry.ResourceProvider = (*Service)(nil)

// New creates the service. defaultCity names the current-weather resource.
func New(log *slog.Logger, forecaster Forecaster, defaultCity string) *Service {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	return &Service{
		log:         log.With("component", "weather"),
		forecaster:  forecaster,
		defaultCity: defaultCity,
		now:         time.Now,
	}
}

// CurrentURI is the URI of the current-weather resource.
func (s *Service) CurrentURI() string {
	return fmt.Sprintf("weather://%s/current", s.defaultCity)
}

// ForecastTool returns the get_forecast tool.
func (s *Service) ForecastTool() *registry.Tool {
	minDays, maxDaysF := 1.0, float64(maxDays)

	schema := &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"city": {Type: "string", Description: "City name"},
			"days": {
				Type:        "number",
				Description: "Number of days (1-5)",
				Minimum:     &minDays,
				Maximum:     &maxDaysF,
			},
		},
		Required: []string{"city"},
	}

	return &registry.Tool{
		Descriptor: registry.NewTool(ToolName, "Get weather forecast for a city", schema),
		Validate:   validateForecastArgs,
		Handler:    s.handleForecast,
	}
}

// validateForecastArgs requires a non-empty city and, if present, a numeric days.
func validateForecastArgs(args map[string]any) error {
	city, ok := args["city"].(string)
	if !ok || city == "" {
		return fmt.Errorf("city must be a non-empty string")
	}

	if days, present := args["days"]; present {
		if _, ok := days.(float64); !ok {
			return fmt.Errorf("days must be a number")
		}
	}

	return nil
}

type forecastArgs struct {
	City string  `json:"city"`
	Days float64 `json:"days"`
}

func (s *Service) handleForecast(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args forecastArgs
	if err := registry.BindArguments(req, &args); err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrInvalidParams, err)
	}

	days := int(args.Days)
	if days < 1 {
		days = defaultDays
	}

	days = min(days, maxDays)

	s.log.Debug("Fetching forecast", "city", args.City, "days", days)

	forecasts, err := s.forecaster.Forecast(ctx, args.City, days)
	if err != nil {
		s.log.Warn("Forecast request failed", "city", args.City, "error", err)

		return registry.ErrorResult("Weather API error: " + err.Error()), nil
	}

	return registry.JSONResult(forecasts, map[string]any{"forecasts": forecasts})
}

// ListResources lists the current-weather resource.
func (s *Service) ListResources(context.Context) ([]*mcp.Resource, error) {
	return []*mcp.Resource{{
		URI:         s.CurrentURI(),
		Name:        "Current weather in " + s.defaultCity,
		MIMEType:    "application/json",
		Description: "Real-time weather data including temperature, conditions, humidity, and wind speed",
	}}, nil
}

// ReadResource fetches the current conditions in the default city.
func (s *Service) ReadResource(ctx context.Context, uri string) (*mcp.ReadResourceResult, error) {
	if uri != s.CurrentURI() {
		return nil, fmt.Errorf("%s: %w", uri, errors.ErrUnknownResource)
	}

	current, err := s.forecaster.Current(ctx, s.defaultCity)
	if err != nil {
		return nil, errors.NewApplicationError(jsonrpc.ErrorCodeInternalError, nil, "Weather API error: %v", err)
	}

	current.Timestamp = s.now().UTC().Format(time.RFC3339Nano)

	data, err := json.MarshalIndent(current, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal conditions: %w", err)
	}

	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		}},
	}, nil
}
