package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Weather reports current conditions for a location via OpenWeatherMap.
type Weather struct {
	apiKey          string
	defaultLocation string
	defaultUnits    string
	baseURL         string
	client          *http.Client
}

// NewWeather creates a new Weather tool.
func NewWeather(apiKey, defaultLocation, defaultUnits string) *Weather {
	if defaultUnits != "imperial" {
		defaultUnits = "metric"
	}
	return &Weather{
		apiKey:          apiKey,
		defaultLocation: defaultLocation,
		defaultUnits:    defaultUnits,
		baseURL:         "https://api.openweathermap.org/data/2.5/weather",
		client:          &http.Client{Timeout: 15 * time.Second},
	}
}

func (w *Weather) Name() string        { return "weather" }
func (w *Weather) Description() string { return "Get current weather information for a location" }
func (w *Weather) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"location": {"type": "string", "description": "City name or location to get weather for"},
			"units": {"type": "string", "description": "Units for temperature: metric (Celsius) or imperial (Fahrenheit)"}
		},
		"required": ["location"]
	}`)
}

type weatherResponse struct {
	Name string `json:"name"`
	Sys  struct {
		Country string `json:"country"`
	} `json:"sys"`
	Main struct {
		Temp      float64 `json:"temp"`
		FeelsLike float64 `json:"feels_like"`
		Humidity  int     `json:"humidity"`
	} `json:"main"`
	Wind struct {
		Speed float64 `json:"speed"`
	} `json:"wind"`
	Weather []struct {
		Main        string `json:"main"`
		Description string `json:"description"`
	} `json:"weather"`
}

func (w *Weather) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	var params struct {
		Location string `json:"location"`
		Units    string `json:"units"`
	}
	if err := json.Unmarshal(args, &params); err != nil {
		return "", fmt.Errorf("parse args: %w", err)
	}
	if params.Location == "" {
		params.Location = w.defaultLocation
	}
	if params.Location == "" {
		return "", fmt.Errorf("location is required")
	}
	if params.Units != "metric" && params.Units != "imperial" {
		params.Units = w.defaultUnits
	}

	u, _ := url.Parse(w.baseURL)
	q := u.Query()
	q.Set("q", params.Location)
	q.Set("units", params.Units)
	q.Set("appid", w.apiKey)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("weather request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("weather API error (status %d): %s", resp.StatusCode, string(body))
	}

	var result weatherResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("parse response: %w", err)
	}

	tempUnit := "°C"
	windUnit := "m/s"
	if params.Units == "imperial" {
		tempUnit = "°F"
		windUnit = "mph"
	}

	location := result.Name
	if result.Sys.Country != "" {
		location += ", " + result.Sys.Country
	}
	description := ""
	if len(result.Weather) > 0 {
		description = result.Weather[0].Description
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Weather in %s:\n", location)
	fmt.Fprintf(&sb, "- Conditions: %s\n", description)
	fmt.Fprintf(&sb, "- Temperature: %.1f%s (feels like %.1f%s)\n",
		result.Main.Temp, tempUnit, result.Main.FeelsLike, tempUnit)
	fmt.Fprintf(&sb, "- Humidity: %d%%\n", result.Main.Humidity)
	fmt.Fprintf(&sb, "- Wind: %.1f %s", result.Wind.Speed, windUnit)
	return sb.String(), nil
}
