package config

import (
	"log"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	configPathEnv     = "MOVIE_HARVESTER_CONFIG"
	apiKeyEnv         = "TMDB_API_KEY"
	databaseDSNEnv    = "DATABASE_DSN"
	telegramTokenEnv  = "TELEGRAM_BOT_TOKEN"
	telegramChatIDEnv = "TELEGRAM_CHAT_ID"
	metricsAddrEnv    = "METRICS_ADDR"
)

// Config holds high-level settings required across the application.
type Config struct {
	Catalog       CatalogConfig      `yaml:"catalog"`
	Harvest       HarvestConfig      `yaml:"harvest"`
	Classifier    ClassifierConfig   `yaml:"classifier"`
	Output        OutputConfig       `yaml:"output"`
	Database      DatabaseConfig     `yaml:"database"`
	Daemon        DaemonConfig       `yaml:"daemon"`
	Notifications NotificationConfig `yaml:"notifications"`
	Metrics       MetricsConfig      `yaml:"metrics"`
	Logging       LoggingConfig      `yaml:"logging"`
}

// CatalogConfig describes the remote catalog API and the client's pacing and
// retry envelope.
type CatalogConfig struct {
	Provider       string `yaml:"provider"`
	BaseURL        string `yaml:"baseUrl"`
	APIKey         string `yaml:"apiKey"`
	TimeoutSeconds int    `yaml:"timeoutSeconds"`
	PacingMillis   int    `yaml:"pacingMillis"`
	RetryMax       int    `yaml:"retryMax"`
	BackoffMillis  int    `yaml:"backoffMillis"`
}

// Timeout resolves the per-request HTTP timeout.
func (c CatalogConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// Pacing resolves the fixed post-call sleep interval.
func (c CatalogConfig) Pacing() time.Duration {
	return time.Duration(c.PacingMillis) * time.Millisecond
}

// Backoff resolves the base delay for exponential retry backoff.
func (c CatalogConfig) Backoff() time.Duration {
	return time.Duration(c.BackoffMillis) * time.Millisecond
}

// HarvestConfig defines the discovery search space and loop cadences.
type HarvestConfig struct {
	YearStart        int      `yaml:"yearStart"`
	YearEnd          int      `yaml:"yearEnd"`
	PagesPerYear     int      `yaml:"pagesPerYear"`
	TargetPerClass   int      `yaml:"targetPerClass"`
	CheckpointEvery  int      `yaml:"checkpointEvery"`
	LogEveryPages    int      `yaml:"logEveryPages"`
	Sorts            []string `yaml:"sorts"`
	BiasSort         string   `yaml:"biasSort"`
	FastMode         bool     `yaml:"fastMode"`
	NegativeHuntOnly bool     `yaml:"negativeHuntOnly"`
}

// ClassifierConfig carries the two ratio thresholds.
type ClassifierConfig struct {
	PosThreshold float64 `yaml:"posThreshold"`
	NegThreshold float64 `yaml:"negThreshold"`
}

// OutputConfig names the three tabular output files.
type OutputConfig struct {
	FullPath     string `yaml:"fullPath"`
	BalancedPath string `yaml:"balancedPath"`
	PartialPath  string `yaml:"partialPath"`
}

// DatabaseConfig describes the optional Postgres mirror.
type DatabaseConfig struct {
	DSN string `yaml:"dsn"`
}

// DaemonConfig enables recurring top-up runs.
type DaemonConfig struct {
	Enabled         bool `yaml:"enabled"`
	IntervalMinutes int  `yaml:"intervalMinutes"`
}

// Interval resolves the pause between daemon runs.
func (d DaemonConfig) Interval() time.Duration {
	return time.Duration(d.IntervalMinutes) * time.Minute
}

// NotificationConfig encapsulates outbound channels (Telegram, etc.).
type NotificationConfig struct {
	Telegram TelegramConfig `yaml:"telegram"`
}

// TelegramConfig wires all data required to send messages.
type TelegramConfig struct {
	BotToken string `yaml:"botToken"`
	ChatID   string `yaml:"chatId"`
}

// MetricsConfig exposes the optional Prometheus listener.
type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// LoggingConfig controls log verbosity.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Load reads YAML configuration (if present) and applies environment overrides.
func Load() Config {
	cfg := defaultConfig()

	if path := os.Getenv(configPathEnv); path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		} else {
			var fileCfg Config
			if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
				log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
			} else {
				cfg = mergeConfig(cfg, fileCfg)
			}
		}
	}

	cfg.applyEnvOverrides()
	cfg.applyFastMode()

	if len(cfg.Harvest.Sorts) == 0 {
		cfg.Harvest.Sorts = defaultConfig().Harvest.Sorts
	}

	return cfg
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(apiKeyEnv); v != "" {
		c.Catalog.APIKey = v
	}

	if v := os.Getenv(databaseDSNEnv); v != "" {
		c.Database.DSN = v
	}

	if v := os.Getenv(telegramTokenEnv); v != "" {
		c.Notifications.Telegram.BotToken = v
	}

	if v := os.Getenv(telegramChatIDEnv); v != "" {
		c.Notifications.Telegram.ChatID = v
	}

	if v := os.Getenv(metricsAddrEnv); v != "" {
		c.Metrics.Addr = v
	}
}

// applyFastMode trims the search space so a smoke run finishes quickly.
func (c *Config) applyFastMode() {
	if !c.Harvest.FastMode {
		return
	}
	c.Harvest.YearStart = 2015
	c.Harvest.YearEnd = 2024
	c.Harvest.PagesPerYear = 10
	c.Harvest.TargetPerClass = 150
}

func mergeConfig(base, override Config) Config {
	if override.Catalog.Provider != "" {
		base.Catalog.Provider = override.Catalog.Provider
	}
	if override.Catalog.BaseURL != "" {
		base.Catalog.BaseURL = override.Catalog.BaseURL
	}
	if override.Catalog.APIKey != "" {
		base.Catalog.APIKey = override.Catalog.APIKey
	}
	if override.Catalog.TimeoutSeconds > 0 {
		base.Catalog.TimeoutSeconds = override.Catalog.TimeoutSeconds
	}
	if override.Catalog.PacingMillis > 0 {
		base.Catalog.PacingMillis = override.Catalog.PacingMillis
	}
	if override.Catalog.RetryMax > 0 {
		base.Catalog.RetryMax = override.Catalog.RetryMax
	}
	if override.Catalog.BackoffMillis > 0 {
		base.Catalog.BackoffMillis = override.Catalog.BackoffMillis
	}

	if override.Harvest.YearStart > 0 {
		base.Harvest.YearStart = override.Harvest.YearStart
	}
	if override.Harvest.YearEnd > 0 {
		base.Harvest.YearEnd = override.Harvest.YearEnd
	}
	if override.Harvest.PagesPerYear > 0 {
		base.Harvest.PagesPerYear = override.Harvest.PagesPerYear
	}
	if override.Harvest.TargetPerClass > 0 {
		base.Harvest.TargetPerClass = override.Harvest.TargetPerClass
	}
	if override.Harvest.CheckpointEvery > 0 {
		base.Harvest.CheckpointEvery = override.Harvest.CheckpointEvery
	}
	if override.Harvest.LogEveryPages > 0 {
		base.Harvest.LogEveryPages = override.Harvest.LogEveryPages
	}
	if len(override.Harvest.Sorts) > 0 {
		base.Harvest.Sorts = override.Harvest.Sorts
	}
	if override.Harvest.BiasSort != "" {
		base.Harvest.BiasSort = override.Harvest.BiasSort
	}
	base.Harvest.FastMode = base.Harvest.FastMode || override.Harvest.FastMode
	base.Harvest.NegativeHuntOnly = base.Harvest.NegativeHuntOnly || override.Harvest.NegativeHuntOnly

	if override.Classifier.PosThreshold > 0 {
		base.Classifier.PosThreshold = override.Classifier.PosThreshold
	}
	if override.Classifier.NegThreshold > 0 {
		base.Classifier.NegThreshold = override.Classifier.NegThreshold
	}

	if override.Output.FullPath != "" {
		base.Output.FullPath = override.Output.FullPath
	}
	if override.Output.BalancedPath != "" {
		base.Output.BalancedPath = override.Output.BalancedPath
	}
	if override.Output.PartialPath != "" {
		base.Output.PartialPath = override.Output.PartialPath
	}

	if override.Database.DSN != "" {
		base.Database = override.Database
	}

	base.Daemon.Enabled = base.Daemon.Enabled || override.Daemon.Enabled
	if override.Daemon.IntervalMinutes > 0 {
		base.Daemon.IntervalMinutes = override.Daemon.IntervalMinutes
	}

	if override.Notifications.Telegram.BotToken != "" {
		base.Notifications.Telegram.BotToken = override.Notifications.Telegram.BotToken
	}
	if override.Notifications.Telegram.ChatID != "" {
		base.Notifications.Telegram.ChatID = override.Notifications.Telegram.ChatID
	}

	if override.Metrics.Addr != "" {
		base.Metrics.Addr = override.Metrics.Addr
	}

	if override.Logging.Level != "" {
		base.Logging.Level = override.Logging.Level
	}

	return base
}

func defaultConfig() Config {
	return Config{
		Catalog: CatalogConfig{
			Provider:       "tmdb",
			BaseURL:        "https://api.themoviedb.org/3",
			TimeoutSeconds: 25,
			PacingMillis:   150,
			RetryMax:       4,
			BackoffMillis:  750,
		},
		Harvest: HarvestConfig{
			YearStart:       1970,
			YearEnd:         2024,
			PagesPerYear:    120,
			TargetPerClass:  1000,
			CheckpointEvery: 250,
			LogEveryPages:   5,
			Sorts: []string{
				"revenue.asc",
				"popularity.asc",
				"vote_count.asc",
				"release_date.asc",
			},
			BiasSort: "revenue.asc",
		},
		Classifier: ClassifierConfig{
			PosThreshold: 2.0,
			NegThreshold: 0.9,
		},
		Output: OutputConfig{
			FullPath:     "movies_full.csv",
			BalancedPath: "movies_balanced.csv",
			PartialPath:  "movies_partial.csv",
		},
		Daemon: DaemonConfig{
			IntervalMinutes: 60,
		},
		Logging: LoggingConfig{Level: "info"},
	}
}
