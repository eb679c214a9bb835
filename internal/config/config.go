package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Anthropic  AnthropicConfig  `yaml:"anthropic" mapstructure:"anthropic"`
	OCR        OCRConfig        `yaml:"ocr" mapstructure:"ocr"`
	Extraction ExtractionConfig `yaml:"extraction" mapstructure:"extraction"`
	Workers    WorkerConfig     `yaml:"workers" mapstructure:"workers"`
	Resilience ResilienceConfig `yaml:"resilience" mapstructure:"resilience"`
	Pricing    PricingConfig    `yaml:"pricing" mapstructure:"pricing"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key             string `yaml:"key" mapstructure:"key"`
	ClassifierModel string `yaml:"classifier_model" mapstructure:"classifier_model"`
	ExtractorModel  string `yaml:"extractor_model" mapstructure:"extractor_model"`
	MaxTokens       int    `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// OCRConfig configures document text extraction.
type OCRConfig struct {
	Provider      string `yaml:"provider" mapstructure:"provider"`
	PdfToTextPath string `yaml:"pdftotext_path" mapstructure:"pdftotext_path"`
	TimeoutSecs   int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// ExtractionConfig tunes the template matcher and the pipeline gates.
type ExtractionConfig struct {
	MatchThreshold     float64 `yaml:"match_threshold" mapstructure:"match_threshold"`
	KeywordWeight      float64 `yaml:"keyword_weight" mapstructure:"keyword_weight"`
	VendorWeight       float64 `yaml:"vendor_weight" mapstructure:"vendor_weight"`
	LayoutWeight       float64 `yaml:"layout_weight" mapstructure:"layout_weight"`
	LayoutPartialScore float64 `yaml:"layout_partial_score" mapstructure:"layout_partial_score"`
	MinTextLength      int     `yaml:"min_text_length" mapstructure:"min_text_length"`
	MaxCandidates      int     `yaml:"max_candidates" mapstructure:"max_candidates"`
}

// WorkerConfig configures batch concurrency and LLM rate limiting.
type WorkerConfig struct {
	MaxConcurrentDocuments int     `yaml:"max_concurrent_documents" mapstructure:"max_concurrent_documents"`
	LLMRequestsPerSecond   float64 `yaml:"llm_requests_per_second" mapstructure:"llm_requests_per_second"`
	LLMBurst               int     `yaml:"llm_burst" mapstructure:"llm_burst"`
}

// ResilienceConfig tunes retry and circuit breaking for LLM calls.
type ResilienceConfig struct {
	RetryMaxAttempts        int     `yaml:"retry_max_attempts" mapstructure:"retry_max_attempts"`
	RetryInitialBackoffMs   int     `yaml:"retry_initial_backoff_ms" mapstructure:"retry_initial_backoff_ms"`
	RetryMaxBackoffMs       int     `yaml:"retry_max_backoff_ms" mapstructure:"retry_max_backoff_ms"`
	RetryMultiplier         float64 `yaml:"retry_multiplier" mapstructure:"retry_multiplier"`
	RetryJitterFraction     float64 `yaml:"retry_jitter_fraction" mapstructure:"retry_jitter_fraction"`
	BreakerFailureThreshold int     `yaml:"breaker_failure_threshold" mapstructure:"breaker_failure_threshold"`
	BreakerResetTimeoutSecs int     `yaml:"breaker_reset_timeout_secs" mapstructure:"breaker_reset_timeout_secs"`
}

// PricingConfig holds per-model token pricing.
type PricingConfig struct {
	Anthropic map[string]ModelPricing `yaml:"anthropic" mapstructure:"anthropic"`
}

// ModelPricing holds per-model token pricing (USD per million tokens).
type ModelPricing struct {
	Input  float64 `yaml:"input" mapstructure:"input"`
	Output float64 `yaml:"output" mapstructure:"output"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("EMAIL2KG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "email2kg.db")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("anthropic.classifier_model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.extractor_model", "claude-sonnet-4-5-20250929")
	v.SetDefault("anthropic.max_tokens", 2000)
	v.SetDefault("ocr.provider", "local")
	v.SetDefault("ocr.pdftotext_path", "pdftotext")
	v.SetDefault("ocr.timeout_secs", 60)
	v.SetDefault("extraction.match_threshold", 0.6)
	v.SetDefault("extraction.keyword_weight", 0.4)
	v.SetDefault("extraction.vendor_weight", 0.3)
	v.SetDefault("extraction.layout_weight", 0.3)
	v.SetDefault("extraction.layout_partial_score", 0.5)
	v.SetDefault("extraction.min_text_length", 20)
	v.SetDefault("extraction.max_candidates", 50)
	v.SetDefault("workers.max_concurrent_documents", 4)
	v.SetDefault("workers.llm_requests_per_second", 2.0)
	v.SetDefault("workers.llm_burst", 4)
	v.SetDefault("resilience.retry_max_attempts", 3)
	v.SetDefault("resilience.retry_initial_backoff_ms", 500)
	v.SetDefault("resilience.retry_max_backoff_ms", 30000)
	v.SetDefault("resilience.retry_multiplier", 2.0)
	v.SetDefault("resilience.retry_jitter_fraction", 0.25)
	v.SetDefault("resilience.breaker_failure_threshold", 5)
	v.SetDefault("resilience.breaker_reset_timeout_secs", 30)
	v.SetDefault("pricing.anthropic", map[string]ModelPricing{
		"claude-haiku-4-5-20251001":  {Input: 1.00, Output: 5.00},
		"claude-sonnet-4-5-20250929": {Input: 3.00, Output: 15.00},
	})

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
