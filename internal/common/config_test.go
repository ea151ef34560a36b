package common

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfigFromFile(t *testing.T) {
	path := writeConfig(t, `
[collector]
default_query = "Dentist in Zamalek"

[scraper]
max_results = 25

[browser]
driver = "playwright"

[classifier]
provider = "openai"
model = "gpt-4.1-mini"

[classifier.retry]
attempts = 3

[phone]
region = "eg"

[output]
keep_only = true

[storage]
database_path = "/tmp/leads.db"
`)
	t.Setenv("OPENAI_API_KEY", "sk-from-env")
	t.Setenv("GEMINI_API_KEY", "gemini-from-env")

	config, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if config.Collector.DefaultQuery != "Dentist in Zamalek" || config.Scraper.MaxResults != 25 {
		t.Fatalf("file values not applied: %+v %+v", config.Collector, config.Scraper)
	}
	if config.Browser.Driver != "playwright" || !config.Output.KeepOnly {
		t.Fatalf("file values not applied: %+v %+v", config.Browser, config.Output)
	}
	if config.Classifier.APIKey != "sk-from-env" {
		t.Fatalf("expected the provider's key variable, got %q", config.Classifier.APIKey)
	}
	if config.Classifier.Retry.Attempts != 3 || config.Classifier.Retry.InitialWaitMs != 5000 {
		t.Fatalf("expected file retry attempts over default waits, got %+v", config.Classifier.Retry)
	}
	if config.Phone.Region != "EG" || config.Phone.ManualReviewSentinel != "Manual Check Required" {
		t.Fatalf("unexpected phone config %+v", config.Phone)
	}
	if config.Scraper.SettleDelay().Seconds() != 2 {
		t.Fatalf("expected the default settle delay, got %s", config.Scraper.SettleDelay())
	}
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	path := writeConfig(t, "[storage]\ndatabase_path = \"/tmp/leads.db\"\n")
	t.Setenv("MAX_RESULTS", "40")
	t.Setenv("OUTPUT_DIR", "/tmp/out")
	t.Setenv("LOG_LEVEL", "DEBUG")
	t.Setenv("GEMINI_API_KEY", "gemini-from-env")

	config, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if config.Scraper.MaxResults != 40 || config.Output.Dir != "/tmp/out" || config.Logging.Level != "debug" {
		t.Fatalf("env overrides not applied: %+v %+v %+v", config.Scraper, config.Output, config.Logging)
	}
	if config.Classifier.APIKey != "gemini-from-env" {
		t.Fatalf("expected the gemini key, got %q", config.Classifier.APIKey)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"zero results", func(c *Config) { c.Scraper.MaxResults = 0 }, "max_results"},
		{"unknown driver", func(c *Config) { c.Browser.Driver = "selenium" }, "browser driver"},
		{"unknown provider", func(c *Config) { c.Classifier.Provider = "cohere" }, "classifier provider"},
		{"bad region", func(c *Config) { c.Phone.Region = "EGY" }, "phone region"},
		{"no sentinel", func(c *Config) { c.Phone.ManualReviewSentinel = "" }, "manual_review_sentinel"},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }, "log level"},
		{"negative delay", func(c *Config) { c.Scraper.ScrollDelayMs = -1 }, "negative"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			config := DefaultConfig()
			tc.mutate(config)
			err := config.Validate()
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected an error mentioning %q, got %v", tc.want, err)
			}
		})
	}

	config := DefaultConfig()
	config.Classifier.Retry.Attempts = 0
	if err := config.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
	if config.Classifier.Retry.Attempts != 1 {
		t.Fatalf("expected attempts to be raised to 1, got %d", config.Classifier.Retry.Attempts)
	}
}
