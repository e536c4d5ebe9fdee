// Package config handles application configuration using Viper.
// Viper supports YAML files, environment variables, and defaults, merged in priority order.
// Go convention: configuration is loaded into structs, not accessed as raw key-value pairs.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the root configuration struct. Nested structs organize related settings.
// `mapstructure` tags tell Viper how to map YAML/env keys to struct fields.
type Config struct {
	HTTP     HTTPConfig     `mapstructure:"http"`
	Search   SearchConfig   `mapstructure:"search"`
	Fetch    BatchConfig    `mapstructure:"fetch"`
	Generate GenerateConfig `mapstructure:"generate"`
	LLM      LLMConfig      `mapstructure:"llm"`
	Catalog  CatalogConfig  `mapstructure:"catalog"`
	Convert  ConvertConfig  `mapstructure:"convert"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Log      LogConfig      `mapstructure:"log"`
}

type HTTPConfig struct {
	UserAgent string        `mapstructure:"user_agent"`
	Timeout   time.Duration `mapstructure:"timeout"`
	// InsecureSkipVerify disables TLS certificate checks. Off unless explicitly set.
	InsecureSkipVerify bool  `mapstructure:"insecure_skip_verify"`
	MaxBodyBytes       int64 `mapstructure:"max_body_bytes"`
}

type SearchConfig struct {
	Endpoint    string   `mapstructure:"endpoint"`
	QueryPrefix string   `mapstructure:"query_prefix"`
	Limit       int      `mapstructure:"limit"`
	ThumbWidth  int      `mapstructure:"thumb_width"`
	AllowMimes  []string `mapstructure:"allow_mimes"`
	Denylist    []string `mapstructure:"denylist"`
}

// BatchConfig holds the settings every batch command shares.
type BatchConfig struct {
	ItemsFile string        `mapstructure:"items_file"`
	OutputDir string        `mapstructure:"output_dir"`
	Delay     time.Duration `mapstructure:"delay"`
	// MinBytes is the skip threshold: an existing output larger than this is kept.
	MinBytes int64 `mapstructure:"min_bytes"`
}

type GenerateConfig struct {
	BatchConfig `mapstructure:",squash"`
	// ProviderOrder controls which generators are used and in what order.
	// First provider is primary, rest are fallbacks. Example: ["gemini", "openai"]
	ProviderOrder []string          `mapstructure:"provider_order"`
	Timeout       time.Duration     `mapstructure:"timeout"`
	Gemini        GeminiConfig      `mapstructure:"gemini"`
	OpenAI        OpenAIImageConfig `mapstructure:"openai"`
}

type GeminiConfig struct {
	APIKey      string `mapstructure:"api_key"`
	Endpoint    string `mapstructure:"endpoint"`
	Model       string `mapstructure:"model"`
	AspectRatio string `mapstructure:"aspect_ratio"`
	MimeType    string `mapstructure:"mime_type"`
}

type OpenAIImageConfig struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
	Size   string `mapstructure:"size"`
}

// LLMConfig configures the optional query suggester used when a search comes back empty.
type LLMConfig struct {
	ProviderOrder []string        `mapstructure:"provider_order"`
	RatePerMinute int             `mapstructure:"rate_per_minute"`
	Anthropic     AnthropicConfig `mapstructure:"anthropic"`
	OpenAI        OpenAIConfig    `mapstructure:"openai"`
}

type AnthropicConfig struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
}

type OpenAIConfig struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
}

type CatalogConfig struct {
	PDFPath    string `mapstructure:"pdf_path"`
	OutputDir  string `mapstructure:"output_dir"`
	MinImagePx int    `mapstructure:"min_image_px"`
	// ColumnGap is the horizontal gap (in PDF points) that separates two table cells.
	ColumnGap float64 `mapstructure:"column_gap"`
}

type ConvertConfig struct {
	Dir       string `mapstructure:"dir"`
	Extension string `mapstructure:"extension"`
}

type StorageConfig struct {
	// DatabasePath is the SQLite call ledger. Empty disables it.
	DatabasePath string `mapstructure:"database_path"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// DefaultDenylist is the set of title keywords that disqualify a search candidate:
// wrecks and technical drawings are not product photos.
var DefaultDenylist = []string{
	"wreck", "scrap", "derelict", "abandoned", "hulk", "carcass", "wreckage",
	"drawing", "diagram", "3-view", "3 view", "cutaway", "line drawing",
}

// Load reads configuration from a YAML file and environment variables.
// In Go, functions return errors as the last return value; callers must check them.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults: these apply when neither file nor env provides a value
	v.SetDefault("http.user_agent", "heliassets/1.0 (+https://github.com/fleveque/heliassets)")
	v.SetDefault("http.timeout", 60*time.Second)
	v.SetDefault("http.insecure_skip_verify", false)
	v.SetDefault("http.max_body_bytes", int64(50<<20))

	v.SetDefault("search.endpoint", "https://commons.wikimedia.org/w/api.php")
	v.SetDefault("search.query_prefix", "")
	v.SetDefault("search.limit", 30)
	v.SetDefault("search.thumb_width", 1200)
	v.SetDefault("search.allow_mimes", []string{"image/jpeg"})
	v.SetDefault("search.denylist", DefaultDenylist)

	v.SetDefault("fetch.items_file", "./configs/helicopters.yaml")
	v.SetDefault("fetch.output_dir", "./public/images/aerotools/helicopters")
	v.SetDefault("fetch.delay", time.Second)
	v.SetDefault("fetch.min_bytes", int64(0))

	v.SetDefault("generate.items_file", "./configs/helicopters.yaml")
	v.SetDefault("generate.output_dir", "./public/images/aerotools/helicopters/gemini")
	v.SetDefault("generate.delay", 3*time.Second)
	v.SetDefault("generate.min_bytes", int64(50_000))
	v.SetDefault("generate.provider_order", []string{"gemini"})
	v.SetDefault("generate.timeout", 120*time.Second)
	v.SetDefault("generate.gemini.endpoint", "https://generativelanguage.googleapis.com/v1beta")
	v.SetDefault("generate.gemini.model", "imagen-4.0-generate-001")
	v.SetDefault("generate.gemini.aspect_ratio", "16:9")
	v.SetDefault("generate.gemini.mime_type", "image/png")
	v.SetDefault("generate.openai.model", "dall-e-3")
	v.SetDefault("generate.openai.size", "1792x1024")

	v.SetDefault("llm.provider_order", []string{})
	v.SetDefault("llm.rate_per_minute", 10)
	v.SetDefault("llm.anthropic.model", "claude-sonnet-4-5-20250929")
	v.SetDefault("llm.openai.model", "gpt-4o-mini")

	v.SetDefault("catalog.pdf_path", "./catalog.pdf")
	v.SetDefault("catalog.output_dir", "./scripts/pdf-extract")
	v.SetDefault("catalog.min_image_px", 80)
	v.SetDefault("catalog.column_gap", 12.0)

	v.SetDefault("convert.dir", "./scripts/pdf-extract")
	v.SetDefault("convert.extension", ".jpx")

	v.SetDefault("storage.database_path", "./storage/heliassets.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	// Read from YAML config file if provided
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
	}

	// Read config file (ignore "not found": defaults + env are enough)
	if err := v.ReadInConfig(); err != nil {
		// Only a missing default file is tolerated; a broken one must not fall back to defaults.
		var notFound viper.ConfigFileNotFoundError
		if configPath != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	// Environment variables override everything.
	// HELI_ prefix + nested keys: HELI_FETCH_DELAY=2s → fetch.delay=2s
	v.SetEnvPrefix("HELI")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Vendor keys are usually exported under their well-known names.
	// BindEnv with several names checks them in order.
	bindings := map[string][]string{
		"generate.gemini.api_key": {"HELI_GENERATE_GEMINI_API_KEY", "GEMINI_API_KEY"},
		"generate.openai.api_key": {"HELI_GENERATE_OPENAI_API_KEY", "OPENAI_API_KEY"},
		"llm.anthropic.api_key":   {"HELI_LLM_ANTHROPIC_API_KEY", "ANTHROPIC_API_KEY"},
		"llm.openai.api_key":      {"HELI_LLM_OPENAI_API_KEY", "OPENAI_API_KEY"},
	}
	for key, envs := range bindings {
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			return nil, fmt.Errorf("binding env for %s: %w", key, err)
		}
	}

	// Unmarshal into our Config struct
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return &cfg, nil
}
