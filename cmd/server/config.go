package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/MegaGrindStone/retail-cs-web-ui/internal/assistant"
	"github.com/MegaGrindStone/retail-cs-web-ui/internal/services"
	"gopkg.in/yaml.v3"
)

type llmConfig interface {
	credentialEnv() string
	builder(logger *slog.Logger) assistant.Builder
}

// BaseLLMConfig contains the common fields for all LLM configurations.
type BaseLLMConfig struct {
	Provider   string                 `yaml:"provider"`
	Model      string                 `yaml:"model"`
	APIKeyEnv  string                 `yaml:"apiKeyEnv"`
	BaseURL    string                 `yaml:"baseURL"`
	Parameters services.LLMParameters `yaml:"parameters"`
}

type config struct {
	Port               string        `yaml:"port"`
	LogLevel           string        `yaml:"logLevel"`
	RequestTimeout     time.Duration `yaml:"requestTimeout"`
	SessionIdleTimeout time.Duration `yaml:"sessionIdleTimeout"`
	KnowledgeBase      string        `yaml:"knowledgeBase"`
	LLM                llmConfig     `yaml:"llm"`
}

type geminiConfig struct {
	BaseLLMConfig `yaml:",inline"`
}

type openaiConfig struct {
	BaseLLMConfig `yaml:",inline"`
}

type anthropicConfig struct {
	BaseLLMConfig `yaml:",inline"`
}

type ollamaConfig struct {
	BaseLLMConfig `yaml:",inline"`
}

const (
	configPathEnv = "CSWEBUI_CONFIG"

	defaultGeminiModel = "gemini-1.5-flash"
	defaultOllamaHost  = "http://localhost:11434"
)

func defaultConfig() config {
	return config{
		Port:               "8080",
		LogLevel:           "info",
		RequestTimeout:     60 * time.Second,
		SessionIdleTimeout: 30 * time.Minute,
		LLM: &geminiConfig{BaseLLMConfig{
			Provider: "gemini",
			Model:    defaultGeminiModel,
		}},
	}
}

// loadConfig reads the configuration file named by CSWEBUI_CONFIG, or cswebui/config.yaml under the user
// config directory. A missing file yields the defaults. PORT overrides the configured port.
func loadConfig() (config, error) {
	path := os.Getenv(configPathEnv)
	if path == "" {
		cfgDir, err := os.UserConfigDir()
		if err != nil {
			return config{}, fmt.Errorf("error getting user config dir: %w", err)
		}
		path = filepath.Join(cfgDir, "cswebui", "config.yaml")
	}

	cfg := defaultConfig()

	f, err := os.Open(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return config{}, fmt.Errorf("error opening config file: %w", err)
	default:
		defer f.Close()
		if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
			return config{}, fmt.Errorf("error decoding config file %s: %w", path, err)
		}
	}

	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		cfg.Port = port
	}

	return cfg, nil
}

func (c *config) UnmarshalYAML(value *yaml.Node) error {
	var rawConfig struct {
		Port               string         `yaml:"port"`
		LogLevel           string         `yaml:"logLevel"`
		RequestTimeout     *time.Duration `yaml:"requestTimeout"`
		SessionIdleTimeout *time.Duration `yaml:"sessionIdleTimeout"`
		KnowledgeBase      string         `yaml:"knowledgeBase"`
		LLM                map[string]any `yaml:"llm"`
	}

	if err := value.Decode(&rawConfig); err != nil {
		return err
	}

	if c.LLM == nil {
		*c = defaultConfig()
	}
	if rawConfig.Port != "" {
		c.Port = rawConfig.Port
	}
	if rawConfig.LogLevel != "" {
		c.LogLevel = rawConfig.LogLevel
	}
	if rawConfig.RequestTimeout != nil {
		c.RequestTimeout = *rawConfig.RequestTimeout
	}
	if rawConfig.SessionIdleTimeout != nil {
		c.SessionIdleTimeout = *rawConfig.SessionIdleTimeout
	}
	c.KnowledgeBase = rawConfig.KnowledgeBase

	if rawConfig.LLM == nil {
		return nil
	}

	llmProvider, ok := rawConfig.LLM["provider"].(string)
	if !ok {
		return fmt.Errorf("llm provider is required")
	}

	llmRawYAML, err := yaml.Marshal(rawConfig.LLM)
	if err != nil {
		return err
	}

	var llm llmConfig
	switch llmProvider {
	case "gemini":
		llm = &geminiConfig{}
	case "openai":
		llm = &openaiConfig{}
	case "anthropic":
		llm = &anthropicConfig{}
	case "ollama":
		llm = &ollamaConfig{}
	default:
		return fmt.Errorf("unknown llm provider: %s", llmProvider)
	}

	if err := yaml.Unmarshal(llmRawYAML, llm); err != nil {
		return err
	}

	c.LLM = llm

	return nil
}

func (c config) logLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("invalid log level %q: %w", c.LogLevel, err)
	}
	return level, nil
}

func envOrDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

func requireModel(model string) error {
	if model == "" {
		return fmt.Errorf("model is required")
	}
	return nil
}

func (g geminiConfig) credentialEnv() string {
	return envOrDefault(g.APIKeyEnv, "GOOGLE_API_KEY")
}

func (g geminiConfig) builder(logger *slog.Logger) assistant.Builder {
	return func(apiKey string) (assistant.LLM, error) {
		model := envOrDefault(g.Model, defaultGeminiModel)
		return services.NewGemini(apiKey, model, g.BaseURL, g.Parameters, logger), nil
	}
}

func (o openaiConfig) credentialEnv() string {
	return envOrDefault(o.APIKeyEnv, "OPENAI_API_KEY")
}

func (o openaiConfig) builder(logger *slog.Logger) assistant.Builder {
	return func(apiKey string) (assistant.LLM, error) {
		if err := requireModel(o.Model); err != nil {
			return nil, err
		}
		return services.NewOpenAI(apiKey, o.Model, o.BaseURL, o.Parameters, logger), nil
	}
}

func (a anthropicConfig) credentialEnv() string {
	return envOrDefault(a.APIKeyEnv, "ANTHROPIC_API_KEY")
}

func (a anthropicConfig) builder(logger *slog.Logger) assistant.Builder {
	return func(apiKey string) (assistant.LLM, error) {
		if err := requireModel(a.Model); err != nil {
			return nil, err
		}
		return services.NewAnthropic(apiKey, a.Model, a.BaseURL, a.Parameters, logger), nil
	}
}

// credentialEnv of Ollama is empty unless configured, since a local instance takes no key.
func (o ollamaConfig) credentialEnv() string {
	return o.APIKeyEnv
}

func (o ollamaConfig) builder(logger *slog.Logger) assistant.Builder {
	return func(string) (assistant.LLM, error) {
		if err := requireModel(o.Model); err != nil {
			return nil, err
		}

		host := o.BaseURL
		if host == "" {
			host = envOrDefault(os.Getenv("OLLAMA_HOST"), defaultOllamaHost)
		}
		return services.NewOllama(host, o.Model, o.Parameters, logger)
	}
}
