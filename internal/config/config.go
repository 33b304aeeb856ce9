package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
// The values are read by Viper from a config file or environment variables.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	S3         S3Config         `mapstructure:"s3"`
	JWT        JWTConfig        `mapstructure:"jwt"`
	LLM        LLMConfig        `mapstructure:"llm"`
	Generation GenerationConfig `mapstructure:"generation"`
	Grocery    GroceryConfig    `mapstructure:"grocery"`
	Household  HouseholdConfig  `mapstructure:"household"`
}

type ServerConfig struct {
	Address         string        `mapstructure:"address"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type DatabaseConfig struct {
	URI  string `mapstructure:"uri"`
	Name string `mapstructure:"name"`
}

// S3Config points at the bucket generation transcripts are archived to.
// Archiving is off when BucketName is empty.
type S3Config struct {
	Endpoint         string        `mapstructure:"endpoint"`
	Region           string        `mapstructure:"region"`
	AccessKeyID      string        `mapstructure:"access_key_id"`
	SecretAccessKey  string        `mapstructure:"secret_access_key"`
	BucketName       string        `mapstructure:"bucket_name"`
	TranscriptPrefix string        `mapstructure:"transcript_prefix"`
	TranscriptURLTTL time.Duration `mapstructure:"transcript_url_ttl"` // lifetime of presigned transcript links
}

// JWTConfig holds the secret shared with the auth service that issues tokens.
type JWTConfig struct {
	Secret string `mapstructure:"secret"`
}

type LLMConfig struct {
	Provider       string        `mapstructure:"provider"` // "gemini" or "groq"
	GeminiAPIKey   string        `mapstructure:"gemini_api_key"`
	GeminiModel    string        `mapstructure:"gemini_model"`
	GroqAPIKey     string        `mapstructure:"groq_api_key"`
	GroqModel      string        `mapstructure:"groq_model"`
	GroqBaseURL    string        `mapstructure:"groq_base_url"`
	Temperature    float32       `mapstructure:"temperature"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

type GenerationConfig struct {
	SchemaRetries      int           `mapstructure:"schema_retries"`
	RepairRetries      int           `mapstructure:"repair_retries"`
	StaleAfter         time.Duration `mapstructure:"stale_after"`
	JobTimeout         time.Duration `mapstructure:"job_timeout"`
	RegenerateDebounce time.Duration `mapstructure:"regenerate_debounce"`
	MacroTolerance     float64       `mapstructure:"macro_tolerance"`
}

type GroceryConfig struct {
	MajorityThreshold float64 `mapstructure:"majority_threshold"`
}

type HouseholdConfig struct {
	ChildWeight float64 `mapstructure:"child_weight"`
}

// LoadConfig reads configuration from file or environment variables.
func LoadConfig(path string) (config Config, err error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	// server.address -> SERVER_ADDRESS, llm.gemini_api_key -> LLM_GEMINI_API_KEY
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(`.`, `_`))

	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.shutdown_timeout", "15s")
	v.SetDefault("database.uri", "mongodb://localhost:27017")
	v.SetDefault("database.name", "meal_planner")
	v.SetDefault("s3.region", "us-east-1")
	v.SetDefault("s3.bucket_name", "")
	v.SetDefault("s3.endpoint", "")
	v.SetDefault("s3.access_key_id", "")
	v.SetDefault("s3.secret_access_key", "")
	v.SetDefault("s3.transcript_prefix", "generation-transcripts")
	v.SetDefault("s3.transcript_url_ttl", "15m")
	v.SetDefault("jwt.secret", "")
	v.SetDefault("llm.provider", "gemini")
	v.SetDefault("llm.gemini_api_key", "")
	v.SetDefault("llm.gemini_model", "gemini-1.5-flash")
	v.SetDefault("llm.groq_api_key", "")
	v.SetDefault("llm.groq_model", "llama-3.3-70b-versatile")
	v.SetDefault("llm.groq_base_url", "https://api.groq.com/openai/v1")
	v.SetDefault("llm.temperature", 0.4)
	v.SetDefault("llm.request_timeout", "90s")
	v.SetDefault("generation.schema_retries", 1)
	v.SetDefault("generation.repair_retries", 1)
	v.SetDefault("generation.stale_after", "15m")
	v.SetDefault("generation.job_timeout", "10m")
	v.SetDefault("generation.regenerate_debounce", "1m")
	v.SetDefault("generation.macro_tolerance", 1.0)
	v.SetDefault("grocery.majority_threshold", 0.6)
	v.SetDefault("household.child_weight", 0.6)

	err = v.ReadInConfig()
	// A missing file is fine, env vars and defaults still apply.
	var notFound viper.ConfigFileNotFoundError
	if errors.As(err, &notFound) {
		err = nil
	} else if err != nil {
		return
	}

	if err = v.Unmarshal(&config); err != nil {
		return
	}

	return config, config.Validate()
}

// Validate catches settings that would only fail later at runtime.
func (c Config) Validate() error {
	if c.JWT.Secret == "" {
		return errors.New("jwt.secret is required")
	}
	switch c.LLM.Provider {
	case "gemini", "groq":
	default:
		return fmt.Errorf("llm.provider must be gemini or groq, got %q", c.LLM.Provider)
	}
	if c.Generation.SchemaRetries < 0 || c.Generation.RepairRetries < 0 {
		return errors.New("generation retries cannot be negative")
	}
	if c.Generation.JobTimeout >= c.Generation.StaleAfter {
		return fmt.Errorf("generation.job_timeout (%s) must be shorter than generation.stale_after (%s)",
			c.Generation.JobTimeout, c.Generation.StaleAfter)
	}
	if c.Grocery.MajorityThreshold <= 0 || c.Grocery.MajorityThreshold > 1 {
		return errors.New("grocery.majority_threshold must be in (0, 1]")
	}
	if c.Household.ChildWeight <= 0 {
		return errors.New("household.child_weight must be positive")
	}
	return nil
}
