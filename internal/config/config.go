package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

type Config struct {
	DataDir           string `json:"data_dir"`
	LogLevel          string `json:"log_level"`
	MaxConcurrent     int    `json:"max_concurrent"`
	MaxToolConcurrent int    `json:"max_tool_concurrent"`
	ToolTimeoutSecs   int    `json:"tool_timeout_secs"`
	ModelTimeoutSecs  int    `json:"model_timeout_secs"`
	SessionTTLMins    int    `json:"session_ttl_mins"`
	ArtifactTTLMins   int    `json:"artifact_ttl_mins"`
	LLM               struct {
		BaseURL          string  `json:"base_url"`
		Model            string  `json:"model"`
		MaxTokens        int     `json:"max_tokens"`
		Temperature      float32 `json:"temperature"`
		MaxContextTokens int     `json:"max_context_tokens"`
		OutputReserve    int     `json:"output_reserve"`
	} `json:"llm"`
	TTS struct {
		Enabled bool   `json:"enabled"`
		APIKey  string `json:"api_key"`
		Model   string `json:"model"`
		Voice   string `json:"voice"`
	} `json:"tts"`
	Weather struct {
		APIKey          string `json:"api_key"`
		DefaultLocation string `json:"default_location"`
		Units           string `json:"units"`
	} `json:"weather"`
	HTTP struct {
		Addr     string `json:"addr"`
		APIToken string `json:"api_token"`
	} `json:"http"`
	Telegram struct {
		Token string `json:"token"`
	} `json:"telegram"`
}

func Load(path string) (*Config, error) {
	cfg := &Config{
		DataDir:       filepath.Join(os.Getenv("HOME"), ".voxchat"),
		MaxConcurrent: 2,
	}
	cfg.LogLevel = "info"
	cfg.MaxToolConcurrent = 4
	cfg.ToolTimeoutSecs = 30
	cfg.ModelTimeoutSecs = 60
	cfg.SessionTTLMins = 120
	cfg.ArtifactTTLMins = 60
	cfg.LLM.BaseURL = "http://localhost:11434"
	cfg.LLM.Model = "llama3"
	cfg.LLM.MaxTokens = 2000
	cfg.LLM.Temperature = 0.7
	cfg.LLM.MaxContextTokens = 8192
	cfg.LLM.OutputReserve = 1024
	cfg.TTS.Model = "tts-1"
	cfg.TTS.Voice = "nova"
	cfg.Weather.DefaultLocation = "London"
	cfg.Weather.Units = "metric"
	cfg.HTTP.Addr = ":8080"

	// Load from file if exists, otherwise write defaults
	if _, err := os.Stat(path); err == nil {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	} else if os.IsNotExist(err) {
		if err := writeDefaults(path, cfg); err != nil {
			return nil, err
		}
	}

	// Override from env (highest precedence)
	if baseURL := os.Getenv("OLLAMA_BASE_URL"); baseURL != "" {
		cfg.LLM.BaseURL = baseURL
	}
	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" {
		cfg.TTS.APIKey = apiKey
	}
	if weatherKey := os.Getenv("OPENWEATHER_API_KEY"); weatherKey != "" {
		cfg.Weather.APIKey = weatherKey
	}
	if tgToken := os.Getenv("TELEGRAM_BOT_TOKEN"); tgToken != "" {
		cfg.Telegram.Token = tgToken
	}
	if apiToken := os.Getenv("VOXCHAT_API_TOKEN"); apiToken != "" {
		cfg.HTTP.APIToken = apiToken
	}

	return cfg, nil
}

func writeDefaults(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal default config: %w", err)
	}
	data = append(data, '\n')
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("write default config: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename default config: %w", err)
	}
	return nil
}
