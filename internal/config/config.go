// Package config assembles the process configuration from the environment.
//
// Optional values fall back to defaults with a logged warning. Values a cycle
// cannot run without (analysis endpoint, model API key) are checked by
// Validate and fail the process at startup.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"kairos/internal/domain/entity"
	pkgconfig "kairos/internal/pkg/config"
)

// Generator types accepted in GENERATOR_TYPE.
const (
	GeneratorGemini = "gemini"
	GeneratorClaude = "claude"
	GeneratorOpenAI = "openai"
)

// Config is the full process configuration. It is built once by Load and
// passed explicitly to component constructors.
type Config struct {
	Generator GeneratorConfig
	Analysis  AnalysisConfig
	News      NewsConfig
	Publish   PublishConfig
	Google    GoogleConfig

	// CycleTimeout bounds one complete cycle.
	CycleTimeout time.Duration

	// PromptsFile is an optional YAML file overriding the prompt templates.
	PromptsFile string
}

// GeneratorConfig selects and tunes the language model.
type GeneratorConfig struct {
	Type        string
	APIKey      string
	Model       string // empty means the provider default
	BaseURL     string // empty means the provider default
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
}

// AnalysisConfig points at the remote analysis service.
type AnalysisConfig struct {
	BaseURL string
	Timeout time.Duration
}

// NewsConfig configures the optional headline feed used to ground the news
// prompt. An empty FeedURL disables it.
type NewsConfig struct {
	FeedURL      string
	MaxHeadlines int
	// FetchTimeout bounds one Headlines call, retries included.
	FetchTimeout time.Duration
}

// Enabled reports whether a headline feed is configured.
func (n NewsConfig) Enabled() bool {
	return n.FeedURL != ""
}

// PublishConfig controls where documents go and what happens after.
type PublishConfig struct {
	FolderID   string
	ShareEmail string
	ShareMode  entity.ShareMode

	// QuotaRecoveryEnabled gates the destructive delete-oldest recovery.
	QuotaRecoveryEnabled bool
	KeepLastN            int
}

// GoogleConfig holds the inputs of credential resolution.
type GoogleConfig struct {
	TokenFile          string
	OAuthClientJSON    string
	ServiceAccountJSON string
}

// Default returns the configuration used when no variable is set.
func Default() Config {
	return Config{
		Generator: GeneratorConfig{
			Type:        GeneratorGemini,
			Temperature: 0.7,
			MaxTokens:   1024,
			Timeout:     120 * time.Second,
		},
		Analysis: AnalysisConfig{
			Timeout: 600 * time.Second,
		},
		News: NewsConfig{
			MaxHeadlines: 5,
			FetchTimeout: 15 * time.Second,
		},
		Publish: PublishConfig{
			ShareMode: entity.ShareModeShare,
			KeepLastN: 5,
		},
		Google: GoogleConfig{
			TokenFile: "token.json",
		},
		CycleTimeout: 30 * time.Minute,
	}
}

// Load reads the environment into a Config and validates it. Invalid
// optional values are replaced by defaults and reported through logger and
// metrics (which may be nil).
func Load(logger *slog.Logger, metrics *pkgconfig.ConfigMetrics) (*Config, error) {
	cfg := Default()
	tr := pkgconfig.NewTracker(logger, metrics)

	cfg.Generator.Type = strings.ToLower(pkgconfig.Track(tr, "generator_type",
		pkgconfig.LoadEnvWithFallback("GENERATOR_TYPE", cfg.Generator.Type,
			pkgconfig.ValidateOneOf(GeneratorGemini, GeneratorClaude, GeneratorOpenAI))))
	cfg.Generator.APIKey = apiKeyFor(cfg.Generator.Type)
	cfg.Generator.Model = pkgconfig.LoadEnvString("GENERATOR_MODEL", "")
	cfg.Generator.BaseURL = pkgconfig.Track(tr, "generator_base_url",
		pkgconfig.LoadEnvWithFallback("GENERATOR_BASE_URL", "", pkgconfig.ValidateHTTPURL))
	cfg.Generator.Temperature = pkgconfig.Track(tr, "generator_temperature",
		pkgconfig.LoadEnvFloat("GENERATOR_TEMPERATURE", cfg.Generator.Temperature, func(v float64) error {
			return pkgconfig.ValidateFloatRange(v, 0, 2)
		}))
	cfg.Generator.MaxTokens = pkgconfig.Track(tr, "generator_max_tokens",
		pkgconfig.LoadEnvInt("GENERATOR_MAX_TOKENS", cfg.Generator.MaxTokens, func(v int) error {
			return pkgconfig.ValidateIntRange(v, 64, 32768)
		}))
	cfg.Generator.Timeout = pkgconfig.Track(tr, "generator_timeout",
		pkgconfig.LoadEnvDuration("GENERATOR_TIMEOUT", cfg.Generator.Timeout, func(d time.Duration) error {
			return pkgconfig.ValidateDuration(d, time.Second, 10*time.Minute)
		}))

	cfg.Analysis.BaseURL = strings.TrimRight(
		pkgconfig.LoadEnvFirst("", "ANALYSIS_BASE_URL", "HF_ADVERSARY_URL"), "/")
	cfg.Analysis.Timeout = pkgconfig.Track(tr, "analysis_timeout",
		pkgconfig.LoadEnvDuration("ANALYSIS_TIMEOUT", cfg.Analysis.Timeout, pkgconfig.ValidatePositiveDuration))

	cfg.News.FeedURL = pkgconfig.Track(tr, "news_feed_url",
		pkgconfig.LoadEnvWithFallback("NEWS_FEED_URL", "", validateFeedTemplate))
	cfg.News.MaxHeadlines = pkgconfig.Track(tr, "news_max_headlines",
		pkgconfig.LoadEnvInt("NEWS_MAX_HEADLINES", cfg.News.MaxHeadlines, func(v int) error {
			return pkgconfig.ValidateIntRange(v, 1, 50)
		}))
	cfg.News.FetchTimeout = pkgconfig.Track(tr, "news_fetch_timeout",
		pkgconfig.LoadEnvDuration("NEWS_FETCH_TIMEOUT", cfg.News.FetchTimeout, func(d time.Duration) error {
			return pkgconfig.ValidateDuration(d, time.Second, 2*time.Minute)
		}))

	cfg.Publish.FolderID = pkgconfig.LoadEnvString("DRIVE_FOLDER_ID", "")
	cfg.Publish.ShareEmail = pkgconfig.LoadEnvString("SHARE_EMAIL", "")
	cfg.Publish.ShareMode = entity.ShareMode(strings.ToLower(pkgconfig.Track(tr, "share_mode",
		pkgconfig.LoadEnvWithFallback("SHARE_MODE", string(cfg.Publish.ShareMode),
			pkgconfig.ValidateOneOf(string(entity.ShareModeShare), string(entity.ShareModeTransfer), string(entity.ShareModeCopy))))))
	cfg.Publish.QuotaRecoveryEnabled = pkgconfig.Track(tr, "quota_recovery_enabled",
		pkgconfig.LoadEnvBool("QUOTA_RECOVERY_ENABLED", cfg.Publish.QuotaRecoveryEnabled))
	cfg.Publish.KeepLastN = pkgconfig.Track(tr, "quota_keep_last_n",
		pkgconfig.LoadEnvInt("QUOTA_KEEP_LAST_N", cfg.Publish.KeepLastN, func(v int) error {
			return pkgconfig.ValidateIntRange(v, 1, 1000)
		}))

	cfg.Google.TokenFile = pkgconfig.LoadEnvString("GOOGLE_TOKEN_FILE", cfg.Google.TokenFile)
	cfg.Google.OAuthClientJSON = pkgconfig.LoadEnvString("GOOGLE_OAUTH_CLIENT_JSON", "")
	cfg.Google.ServiceAccountJSON = pkgconfig.LoadEnvString("GOOGLE_SERVICE_ACCOUNT_JSON", "")

	cfg.CycleTimeout = pkgconfig.Track(tr, "cycle_timeout",
		pkgconfig.LoadEnvDuration("CYCLE_TIMEOUT", cfg.CycleTimeout, func(d time.Duration) error {
			return pkgconfig.ValidateDuration(d, time.Minute, 6*time.Hour)
		}))
	cfg.PromptsFile = pkgconfig.LoadEnvString("PROMPTS_FILE", "")

	tr.Finish()

	if err := cfg.Validate(); err != nil {
		if metrics != nil {
			metrics.RecordValidationError("required")
		}
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the values a cycle cannot run without.
func (c *Config) Validate() error {
	var errs []error

	if c.Analysis.BaseURL == "" {
		errs = append(errs, errors.New("ANALYSIS_BASE_URL is required"))
	} else if err := pkgconfig.ValidateHTTPURL(c.Analysis.BaseURL); err != nil {
		errs = append(errs, fmt.Errorf("ANALYSIS_BASE_URL: %w", err))
	}

	switch c.Generator.Type {
	case GeneratorGemini, GeneratorClaude, GeneratorOpenAI:
		if c.Generator.APIKey == "" {
			errs = append(errs, fmt.Errorf("%s is required for generator %q", apiKeyEnv(c.Generator.Type), c.Generator.Type))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown generator type %q", c.Generator.Type))
	}

	if c.Generator.Timeout <= 0 {
		errs = append(errs, errors.New("generator timeout must be positive"))
	}
	if c.Analysis.Timeout <= 0 {
		errs = append(errs, errors.New("analysis timeout must be positive"))
	}
	if !c.Publish.ShareMode.Valid() {
		errs = append(errs, fmt.Errorf("unknown share mode %q", c.Publish.ShareMode))
	}
	if c.Publish.KeepLastN < 1 {
		errs = append(errs, fmt.Errorf("keep last n must be at least 1, got %d", c.Publish.KeepLastN))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}

func apiKeyEnv(generatorType string) string {
	switch generatorType {
	case GeneratorClaude:
		return "ANTHROPIC_API_KEY"
	case GeneratorOpenAI:
		return "OPENAI_API_KEY"
	default:
		return "GEMINI_API_KEY"
	}
}

func apiKeyFor(generatorType string) string {
	if generatorType == GeneratorGemini {
		return pkgconfig.LoadEnvFirst("", "GEMINI_API_KEY", "GOOGLE_API_KEY")
	}
	return pkgconfig.LoadEnvString(apiKeyEnv(generatorType), "")
}

func validateFeedTemplate(raw string) error {
	if !strings.Contains(raw, TopicPlaceholder) {
		return fmt.Errorf("feed URL must contain %s", TopicPlaceholder)
	}
	return pkgconfig.ValidateHTTPURL(strings.ReplaceAll(raw, TopicPlaceholder, "x"))
}
