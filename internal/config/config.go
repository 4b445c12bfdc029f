package config

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino-ext/components/model/gemini"
	"github.com/cloudwego/eino/components/model"
	"github.com/kelseyhightower/envconfig"
	"google.golang.org/genai"

	pkgredis "github.com/zhouzirui/moodchat/backend/pkg/redis"
)

const (
	ProviderArk    = "ark"
	ProviderGemini = "gemini"

	StoreMemory = "memory"
	StoreRedis  = "redis"
)

// Config aggregates every setting of the service.
type Config struct {
	Env      string `envconfig:"APP_ENV" default:"development"`
	LogLevel string `envconfig:"LOG_LEVEL"`

	Server ServerConfig
	AI     AIConfig
	Store  StoreConfig
	Redis  pkgredis.Config
}

// Load reads the configuration from the environment.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("process environment: %w", err)
	}

	addr, err := listenAddr(cfg.Server.Port)
	if err != nil {
		return nil, err
	}
	cfg.Server.Addr = addr

	cfg.AI.Provider = strings.ToLower(strings.TrimSpace(cfg.AI.Provider))
	cfg.Store.Backend = strings.ToLower(strings.TrimSpace(cfg.Store.Backend))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Environment returns the parsed APP_ENV.
func (c *Config) Environment() Environment {
	return ParseEnvironment(strings.ToLower(strings.TrimSpace(c.Env)))
}

// Validate rejects combinations the service cannot start with.
func (c *Config) Validate() error {
	switch c.AI.Provider {
	case ProviderArk, ProviderGemini:
	default:
		return fmt.Errorf("unsupported LLM_PROVIDER %q", c.AI.Provider)
	}

	switch c.Store.Backend {
	case StoreMemory:
	case StoreRedis:
		if strings.TrimSpace(c.Redis.URL) == "" {
			return fmt.Errorf("REDIS_URL is required when STORE_BACKEND=redis")
		}
	default:
		return fmt.Errorf("unsupported STORE_BACKEND %q", c.Store.Backend)
	}

	if c.AI.Timeout <= 0 {
		return fmt.Errorf("LLM_TIMEOUT must be positive, got %s", c.AI.Timeout)
	}
	return nil
}

// ServerConfig describes the HTTP listener.
type ServerConfig struct {
	Port            string        `envconfig:"PORT" default:"8080"`
	AllowedOrigin   string        `envconfig:"CORS_ALLOWED_ORIGIN" default:"http://localhost:3000"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`

	// Addr is derived from Port.
	Addr string `ignored:"true"`
}

// listenAddr turns PORT into a listen address.
func listenAddr(port string) (string, error) {
	port = strings.TrimSpace(port)
	if port == "" {
		port = "8080"
	}

	if strings.Contains(port, " ") {
		return "", fmt.Errorf("invalid PORT value: %q", port)
	}

	if strings.Contains(port, ":") {
		// ":8080" and "127.0.0.1:8080" are accepted as-is.
		return port, nil
	}

	return ":" + port, nil
}

// StoreConfig selects the session store backend.
type StoreConfig struct {
	Backend string `envconfig:"STORE_BACKEND" default:"memory"`
}

// AIConfig describes the language-model provider.
type AIConfig struct {
	Provider    string        `envconfig:"LLM_PROVIDER" default:"ark"`
	APIKey      string        `envconfig:"LLM_API_KEY"`
	AccessKey   string        `envconfig:"LLM_ACCESS_KEY"`
	SecretKey   string        `envconfig:"LLM_SECRET_KEY"`
	BaseURL     string        `envconfig:"LLM_BASE_URL"`
	Region      string        `envconfig:"LLM_REGION" default:"cn-beijing"`
	Timeout     time.Duration `envconfig:"LLM_TIMEOUT" default:"30s"`
	Temperature *float32      `envconfig:"LLM_TEMPERATURE"`
	MaxTokens   *int          `envconfig:"LLM_MAX_TOKENS"`
	CheapModel  string        `envconfig:"LLM_CHEAP_MODEL" default:"gpt-4o-mini"`
	StrongModel string        `envconfig:"LLM_STRONG_MODEL" default:"gpt-4o"`
}

// Enabled reports whether credentials for the selected provider are present.
func (c AIConfig) Enabled() bool {
	if c.CheapModel == "" || c.StrongModel == "" {
		return false
	}
	if c.Provider == ProviderGemini {
		return c.APIKey != ""
	}
	return c.APIKey != "" || (c.AccessKey != "" && c.SecretKey != "")
}

// NewChatModels builds the cheap and the strong chat model for the selected provider.
func (c AIConfig) NewChatModels(ctx context.Context) (cheap, strong model.ChatModel, err error) {
	if !c.Enabled() {
		return nil, nil, fmt.Errorf("%s credentials or model names are missing", c.Provider)
	}

	switch c.Provider {
	case ProviderGemini:
		return c.newGeminiModels(ctx)
	default:
		return c.newArkModels(ctx)
	}
}

func (c AIConfig) newArkModels(ctx context.Context) (model.ChatModel, model.ChatModel, error) {
	build := func(name string) (model.ChatModel, error) {
		cfg := &ark.ChatModelConfig{
			BaseURL:     c.BaseURL,
			Region:      c.Region,
			APIKey:      c.APIKey,
			AccessKey:   c.AccessKey,
			SecretKey:   c.SecretKey,
			Model:       name,
			MaxTokens:   c.MaxTokens,
			Temperature: c.Temperature,
		}
		return ark.NewChatModel(ctx, cfg)
	}

	cheap, err := build(c.CheapModel)
	if err != nil {
		return nil, nil, fmt.Errorf("create ark model %s: %w", c.CheapModel, err)
	}
	strong, err := build(c.StrongModel)
	if err != nil {
		return nil, nil, fmt.Errorf("create ark model %s: %w", c.StrongModel, err)
	}
	return cheap, strong, nil
}

func (c AIConfig) newGeminiModels(ctx context.Context) (model.ChatModel, model.ChatModel, error) {
	clientCfg := &genai.ClientConfig{
		APIKey:  c.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if c.BaseURL != "" {
		clientCfg.HTTPOptions.BaseURL = c.BaseURL
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("create gemini client: %w", err)
	}

	build := func(name string) (model.ChatModel, error) {
		return gemini.NewChatModel(ctx, &gemini.Config{
			Client:      client,
			Model:       name,
			Temperature: c.Temperature,
			MaxTokens:   c.MaxTokens,
		})
	}

	cheap, err := build(c.CheapModel)
	if err != nil {
		return nil, nil, fmt.Errorf("create gemini model %s: %w", c.CheapModel, err)
	}
	strong, err := build(c.StrongModel)
	if err != nil {
		return nil, nil, fmt.Errorf("create gemini model %s: %w", c.StrongModel, err)
	}
	return cheap, strong, nil
}
