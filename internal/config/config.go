package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"

	defaultHost            = "0.0.0.0"
	defaultPort            = 5000
	defaultModel           = "gemini-2.5-flash"
	defaultProviderTimeout = 60 * time.Second
)

// Config is read once at startup and never mutated afterwards.
type Config struct {
	Host            string
	Port            int
	Provider        string
	Model           string
	ProviderTimeout time.Duration

	OpenAIAPIKey  string
	OpenAIBaseURL string
	GeminiAPIKey  string
	GeminiBaseURL string

	// ParamPrefix, when set, makes the OpenAI credential come from SSM
	// instead of OPENAI_API_KEY.
	ParamPrefix string
}

// Addr is the listen address for the HTTP server.
func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Load reads an optional .env file from the working directory and then the
// process environment. Values already present in the environment win.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("config: load .env: %w", err)
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from the given lookup function. Malformed numeric
// values are reported rather than replaced with defaults.
func FromEnv(getenv func(string) string) (Config, error) {
	port, err := envInt(getenv, "PORT", defaultPort)
	if err != nil {
		return Config{}, err
	}
	timeoutSecs, err := envInt(getenv, "PROVIDER_TIMEOUT_SECONDS", int(defaultProviderTimeout/time.Second))
	if err != nil {
		return Config{}, err
	}
	cfg := Config{
		Host:            envString(getenv, "HOST", defaultHost),
		Port:            port,
		Provider:        strings.ToLower(envString(getenv, "LLM_PROVIDER", ProviderOpenAI)),
		Model:           envString(getenv, "LLM_MODEL", defaultModel),
		ProviderTimeout: time.Duration(timeoutSecs) * time.Second,
		OpenAIAPIKey:    strings.TrimSpace(getenv("OPENAI_API_KEY")),
		OpenAIBaseURL:   strings.TrimSpace(getenv("OPENAI_BASE_URL")),
		GeminiAPIKey:    firstNonEmpty(getenv("GEMINI_API_KEY"), getenv("GOOGLE_API_KEY")),
		GeminiBaseURL:   strings.TrimSpace(getenv("GEMINI_BASE_URL")),
		ParamPrefix:     strings.TrimSpace(getenv("PARAM_PREFIX")),
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("config: invalid port %d", c.Port)
	}
	if c.ProviderTimeout <= 0 {
		return errors.New("config: provider timeout must be positive")
	}
	switch c.Provider {
	case ProviderOpenAI:
		if c.OpenAIAPIKey == "" && c.ParamPrefix == "" {
			return errors.New("config: OPENAI_API_KEY or PARAM_PREFIX is required for the openai provider")
		}
	case ProviderGemini:
		if c.GeminiAPIKey == "" {
			return errors.New("config: GEMINI_API_KEY or GOOGLE_API_KEY is required for the gemini provider")
		}
	default:
		return fmt.Errorf("config: unknown provider %q", c.Provider)
	}
	return nil
}

func envString(getenv func(string) string, key, def string) string {
	v := strings.TrimSpace(getenv(key))
	if v == "" {
		return def
	}
	return v
}

func envInt(getenv func(string) string, key string, def int) (int, error) {
	v := strings.TrimSpace(getenv(key))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("config: parse %s: %w", key, err)
	}
	return n, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
