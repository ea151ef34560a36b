package common

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

type Config struct {
	Collector  CollectorConfig  `toml:"collector"`
	Scraper    ScraperConfig    `toml:"scraper"`
	Browser    BrowserConfig    `toml:"browser"`
	Classifier ClassifierConfig `toml:"classifier"`
	Phone      PhoneConfig      `toml:"phone"`
	Output     OutputConfig     `toml:"output"`
	Storage    StorageConfig    `toml:"storage"`
	Logging    LoggingConfig    `toml:"logging"`
}

type CollectorConfig struct {
	Name              string `toml:"name"`
	Environment       string `toml:"environment"`
	Port              int    `toml:"port"`
	DefaultQuery      string `toml:"default_query"`
	RunTimeoutSeconds int    `toml:"run_timeout_seconds"`
}

type ScraperConfig struct {
	SearchURL          string `toml:"search_url"`
	MaxResults         int    `toml:"max_results"`
	ScrollDelayMs      int    `toml:"scroll_delay_ms"`
	SettleDelayMs      int    `toml:"settle_delay_ms"`
	MaxScrollSteps     int    `toml:"max_scroll_steps"`
	FeedTimeoutSeconds int    `toml:"feed_timeout_seconds"`
}

type BrowserConfig struct {
	Driver         string `toml:"driver"`
	Headless       bool   `toml:"headless"`
	Locale         string `toml:"locale"`
	AcceptLanguage string `toml:"accept_language"`
	UserAgent      string `toml:"user_agent"`
}

type ClassifierConfig struct {
	Provider          string      `toml:"provider"`
	Model             string      `toml:"model"`
	BaseURL           string      `toml:"base_url"`
	APIKey            string      `toml:"api_key"`
	TimeoutSeconds    int         `toml:"timeout_seconds"`
	Temperature       float64     `toml:"temperature"`
	RequestsPerMinute float64     `toml:"requests_per_minute"`
	Retry             RetryConfig `toml:"retry"`
}

// RetryConfig is applied around the classifier service call. Attempts <= 1 disables retrying.
type RetryConfig struct {
	Attempts      int     `toml:"attempts"`
	InitialWaitMs int     `toml:"initial_wait_ms"`
	MaxWaitMs     int     `toml:"max_wait_ms"`
	Multiplier    float64 `toml:"multiplier"`
}

type PhoneConfig struct {
	Region               string `toml:"region"`
	ManualReviewSentinel string `toml:"manual_review_sentinel"`
	Concurrency          int    `toml:"concurrency"`
}

type OutputConfig struct {
	Dir        string `toml:"dir"`
	FilePrefix string `toml:"file_prefix"`
	KeepOnly   bool   `toml:"keep_only"`
}

type StorageConfig struct {
	DatabasePath string `toml:"database_path"`
}

type LoggingConfig struct {
	Level      string `toml:"level"`
	Format     string `toml:"format"`
	Output     string `toml:"output"`
	MaxSize    int    `toml:"max_size"`
	MaxBackups int    `toml:"max_backups"`
}

func DefaultConfig() *Config {
	execPath, _ := os.Executable()
	execDir := filepath.Dir(execPath)
	execName := filepath.Base(execPath)
	execName = execName[:len(execName)-len(filepath.Ext(execName))]

	return &Config{
		Collector: CollectorConfig{
			Name:              execName,
			Environment:       "development",
			Port:              8080,
			DefaultQuery:      "Dentist in Maadi",
			RunTimeoutSeconds: 600,
		},
		Scraper: ScraperConfig{
			SearchURL:          "https://www.google.com/maps?hl=en",
			MaxResults:         10,
			ScrollDelayMs:      1000,
			SettleDelayMs:      2000,
			MaxScrollSteps:     0,
			FeedTimeoutSeconds: 30,
		},
		Browser: BrowserConfig{
			Driver:         "chromedp",
			Headless:       true,
			Locale:         "en-US",
			AcceptLanguage: "en-US,en;q=0.9",
		},
		Classifier: ClassifierConfig{
			Provider:       "gemini",
			Model:          "gemini-2.5-flash",
			TimeoutSeconds: 60,
			Retry: RetryConfig{
				Attempts:      1,
				InitialWaitMs: 5000,
				MaxWaitMs:     30000,
				Multiplier:    2,
			},
		},
		Phone: PhoneConfig{
			Region:               "EG",
			ManualReviewSentinel: "Manual Check Required",
			Concurrency:          4,
		},
		Output: OutputConfig{
			Dir:        "data",
			FilePrefix: "leads",
		},
		Storage: StorageConfig{
			DatabasePath: filepath.Join(execDir, "data", execName+".db"),
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "text",
			Output:     "both",
			MaxSize:    100,
			MaxBackups: 3,
		},
	}
}

func LoadConfig(configFile string) (*Config, error) {
	config := DefaultConfig()

	if configFile == "" {
		// Auto-detect config file
		execPath, _ := os.Executable()
		execDir := filepath.Dir(execPath)
		execName := filepath.Base(execPath)
		execName = execName[:len(execName)-len(filepath.Ext(execName))]

		possiblePaths := []string{
			filepath.Join(execDir, execName+".toml"),
			filepath.Join(execDir, "config.toml"),
			"config.toml",
		}

		for _, path := range possiblePaths {
			if _, err := os.Stat(path); err == nil {
				configFile = path
				break
			}
		}
	}

	if configFile != "" {
		data, err := os.ReadFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnvOverrides(config)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

func applyEnvOverrides(config *Config) {
	if dbPath := os.Getenv("DATABASE_PATH"); dbPath != "" {
		config.Storage.DatabasePath = dbPath
	}
	if outputDir := os.Getenv("OUTPUT_DIR"); outputDir != "" {
		config.Output.Dir = outputDir
	}

	if logLevel := os.Getenv("LOG_LEVEL"); logLevel != "" {
		config.Logging.Level = strings.ToLower(logLevel)
	}
	if logOutput := os.Getenv("LOG_OUTPUT"); logOutput != "" {
		config.Logging.Output = logOutput
	}

	// The key variable follows the provider so a single .env can hold both.
	switch config.Classifier.Provider {
	case "openai":
		if key := os.Getenv("OPENAI_API_KEY"); key != "" {
			config.Classifier.APIKey = key
		}
	default:
		if key := os.Getenv("GEMINI_API_KEY"); key != "" {
			config.Classifier.APIKey = key
		}
	}

	if maxResults := os.Getenv("MAX_RESULTS"); maxResults != "" {
		if n, err := strconv.Atoi(maxResults); err == nil {
			config.Scraper.MaxResults = n
		}
	}

	if port := os.Getenv("SERVER_PORT"); port != "" {
		if portNum, err := strconv.Atoi(port); err == nil {
			config.Collector.Port = portNum
		}
	}
}

func (c *Config) Validate() error {
	if c.Storage.DatabasePath == "" {
		return fmt.Errorf("storage database_path is required")
	}

	if c.Collector.Port <= 0 {
		c.Collector.Port = 8080
	}

	if c.Scraper.MaxResults <= 0 {
		return fmt.Errorf("scraper max_results must be greater than zero")
	}
	if c.Scraper.SearchURL == "" {
		return fmt.Errorf("scraper search_url is required")
	}
	if c.Scraper.ScrollDelayMs < 0 || c.Scraper.SettleDelayMs < 0 {
		return fmt.Errorf("scraper delays cannot be negative")
	}

	switch c.Browser.Driver {
	case "chromedp", "playwright":
	default:
		return fmt.Errorf("invalid browser driver: %s", c.Browser.Driver)
	}

	switch c.Classifier.Provider {
	case "gemini", "openai":
	default:
		return fmt.Errorf("invalid classifier provider: %s", c.Classifier.Provider)
	}
	if c.Classifier.Retry.Attempts < 1 {
		c.Classifier.Retry.Attempts = 1
	}

	if len(c.Phone.Region) != 2 {
		return fmt.Errorf("phone region must be a two-letter country code: %q", c.Phone.Region)
	}
	c.Phone.Region = strings.ToUpper(c.Phone.Region)
	if c.Phone.ManualReviewSentinel == "" {
		return fmt.Errorf("phone manual_review_sentinel is required")
	}

	if c.Output.Dir == "" {
		return fmt.Errorf("output dir is required")
	}

	validLogLevels := []string{"debug", "info", "warn", "error", "fatal", "panic"}
	validLevel := false
	for _, level := range validLogLevels {
		if c.Logging.Level == level {
			validLevel = true
			break
		}
	}
	if !validLevel {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	validOutputs := []string{"console", "file", "both"}
	validOutput := false
	for _, output := range validOutputs {
		if c.Logging.Output == output {
			validOutput = true
			break
		}
	}
	if !validOutput {
		return fmt.Errorf("invalid log output: %s", c.Logging.Output)
	}

	return nil
}

func (c *Config) IsProduction() bool {
	return c.Collector.Environment == "production"
}

func (c *ScraperConfig) ScrollDelay() time.Duration {
	return time.Duration(c.ScrollDelayMs) * time.Millisecond
}

func (c *ScraperConfig) SettleDelay() time.Duration {
	return time.Duration(c.SettleDelayMs) * time.Millisecond
}

func (c *ScraperConfig) FeedTimeout() time.Duration {
	return time.Duration(c.FeedTimeoutSeconds) * time.Second
}

func (c *CollectorConfig) RunTimeout() time.Duration {
	return time.Duration(c.RunTimeoutSeconds) * time.Second
}

func (c *ClassifierConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}
