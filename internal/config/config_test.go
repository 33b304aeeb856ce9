package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadConfigDefaultsAndEnv(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("LLM_PROVIDER", "groq")
	t.Setenv("GENERATION_STALE_AFTER", "20m")
	t.Setenv("S3_TRANSCRIPT_URL_TTL", "5m")

	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if cfg.JWT.Secret != "test-secret" {
		t.Errorf("jwt secret from env not applied: %q", cfg.JWT.Secret)
	}
	if cfg.LLM.Provider != "groq" {
		t.Errorf("got provider %q", cfg.LLM.Provider)
	}
	if cfg.Generation.StaleAfter != 20*time.Minute {
		t.Errorf("got stale_after %s", cfg.Generation.StaleAfter)
	}
	if cfg.Generation.SchemaRetries != 1 || cfg.Generation.RepairRetries != 1 {
		t.Errorf("unexpected retry defaults: %+v", cfg.Generation)
	}
	if cfg.Grocery.MajorityThreshold != 0.6 || cfg.Household.ChildWeight != 0.6 {
		t.Errorf("unexpected tuning defaults: %v %v", cfg.Grocery.MajorityThreshold, cfg.Household.ChildWeight)
	}
	if cfg.S3.TranscriptURLTTL != 5*time.Minute {
		t.Errorf("got transcript_url_ttl %s", cfg.S3.TranscriptURLTTL)
	}
	if cfg.Server.Address != ":8080" {
		t.Errorf("got address %q", cfg.Server.Address)
	}
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	yaml := []byte(`
jwt:
  secret: from-file
llm:
  provider: gemini
  gemini_model: gemini-1.5-pro
grocery:
  majority_threshold: 0.75
`)
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), yaml, 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(dir)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.JWT.Secret != "from-file" || cfg.LLM.GeminiModel != "gemini-1.5-pro" {
		t.Errorf("file values not applied: %+v", cfg)
	}
	if cfg.S3.TranscriptURLTTL != 15*time.Minute {
		t.Errorf("got default transcript_url_ttl %s", cfg.S3.TranscriptURLTTL)
	}
	if cfg.Grocery.MajorityThreshold != 0.75 {
		t.Errorf("got threshold %v", cfg.Grocery.MajorityThreshold)
	}
}

func TestValidate(t *testing.T) {
	base := func() Config {
		return Config{
			JWT:        JWTConfig{Secret: "s"},
			LLM:        LLMConfig{Provider: "gemini"},
			Generation: GenerationConfig{StaleAfter: 15 * time.Minute, JobTimeout: 10 * time.Minute},
			Grocery:    GroceryConfig{MajorityThreshold: 0.6},
			Household:  HouseholdConfig{ChildWeight: 0.6},
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"missing secret", func(c *Config) { c.JWT.Secret = "" }, true},
		{"unknown provider", func(c *Config) { c.LLM.Provider = "openai" }, true},
		{"timeout not below stale threshold", func(c *Config) { c.Generation.JobTimeout = 15 * time.Minute }, true},
		{"threshold above one", func(c *Config) { c.Grocery.MajorityThreshold = 1.5 }, true},
		{"zero child weight", func(c *Config) { c.Household.ChildWeight = 0 }, true},
	}

	for _, testCase := range tests {
		t.Run(testCase.name, func(t *testing.T) {
			c := base()
			testCase.mutate(&c)
			if err := c.Validate(); (err != nil) != testCase.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, testCase.wantErr)
			}
		})
	}
}
