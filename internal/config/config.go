package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config agrupa la configuración del cliente de cabina y del analizador
// de desarrollo.
type Config struct {
	Client   ClientConfig
	Server   ServerConfig
	Bot      BotConfig
	Analyzer AnalyzerConfig
}

// Load reads everything from environment variables.
func Load() (*Config, error) {
	client, err := loadClientConfig()
	if err != nil {
		return nil, err
	}

	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	bot, err := loadBotConfig()
	if err != nil {
		return nil, err
	}

	analyzer, err := loadAnalyzerConfig()
	if err != nil {
		return nil, err
	}

	return &Config{Client: client, Server: server, Bot: bot, Analyzer: analyzer}, nil
}

// ClientConfig points the booth client at the analysis service.
type ClientConfig struct {
	APIBaseURL     string
	PushURL        string
	RequestTimeout time.Duration
}

func loadClientConfig() (ClientConfig, error) {
	timeoutSeconds := 15
	if override, err := parseOptionalIntEnv("CABINA_REQUEST_TIMEOUT"); err != nil {
		return ClientConfig{}, err
	} else if override != nil {
		if *override < 1 {
			return ClientConfig{}, fmt.Errorf("CABINA_REQUEST_TIMEOUT must be positive, got %d", *override)
		}
		timeoutSeconds = *override
	}

	return ClientConfig{
		APIBaseURL:     getEnvOrDefault("CABINA_API_BASE_URL", "http://localhost:5000/api"),
		PushURL:        getEnvOrDefault("CABINA_PUSH_URL", "ws://localhost:5000/api/push"),
		RequestTimeout: time.Duration(timeoutSeconds) * time.Second,
	}, nil
}

// ServerConfig describes the dev analyzer's HTTP listener.
type ServerConfig struct {
	Addr string
}

func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "5000"
	}

	if strings.Contains(port, ":") {
		// Allow passing ":5000" or "127.0.0.1:5000" directly.
		return ServerConfig{Addr: port}, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: ":" + port}, nil
}

// BotConfig holds the Ark credentials for the LLM-backed intervention
// bot. When incomplete, the analyzer falls back to scripted responses.
type BotConfig struct {
	APIKey      string
	Model       string
	BaseURL     string
	Region      string
	Temperature *float64
	MaxTokens   *int
}

// Enabled indica si hay credenciales suficientes para el bot LLM.
func (c BotConfig) Enabled() bool {
	return c.APIKey != "" && c.Model != ""
}

func loadBotConfig() (BotConfig, error) {
	temperature, err := parseOptionalFloatEnv("ARK_TEMPERATURE")
	if err != nil {
		return BotConfig{}, err
	}

	maxTokens, err := parseOptionalIntEnv("ARK_MAX_TOKENS")
	if err != nil {
		return BotConfig{}, err
	}

	return BotConfig{
		APIKey:      strings.TrimSpace(os.Getenv("ARK_API_KEY")),
		Model:       strings.TrimSpace(os.Getenv("ARK_MODEL")),
		BaseURL:     getEnvOrDefault("ARK_BASE_URL", "https://ark.cn-beijing.volces.com/api/v3"),
		Region:      getEnvOrDefault("ARK_REGION", "cn-beijing"),
		Temperature: temperature,
		MaxTokens:   maxTokens,
	}, nil
}

// AnalyzerConfig tunes the simulated voice analysis loop.
type AnalyzerConfig struct {
	TickInterval time.Duration
	Seed         *int64
}

func loadAnalyzerConfig() (AnalyzerConfig, error) {
	tickSeconds := 3
	if override, err := parseOptionalIntEnv("ANALYZER_TICK_SECONDS"); err != nil {
		return AnalyzerConfig{}, err
	} else if override != nil {
		if *override < 1 {
			return AnalyzerConfig{}, fmt.Errorf("ANALYZER_TICK_SECONDS must be positive, got %d", *override)
		}
		tickSeconds = *override
	}

	var seed *int64
	if raw, ok := os.LookupEnv("ANALYZER_SEED"); ok && strings.TrimSpace(raw) != "" {
		val, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
		if err != nil {
			return AnalyzerConfig{}, fmt.Errorf("invalid ANALYZER_SEED value %q: %w", raw, err)
		}
		seed = &val
	}

	return AnalyzerConfig{
		TickInterval: time.Duration(tickSeconds) * time.Second,
		Seed:         seed,
	}, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseOptionalFloatEnv(key string) (*float64, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

func parseOptionalIntEnv(key string) (*int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}
