// Package config provides configuration management for both homescope services.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (HOMESCOPE_* overrides, GEMINI_API_KEY for the model)
//  2. Config file (./homescope.yaml)
//  3. Default values (a working local two-service setup)
//
// Error Handling: sentinel errors for errors.Is() checks; wrap callers'
// context with fmt.Errorf("%w: details", ErrXxx).
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/viper"
)

var (
	// ErrMissingAPIKey indicates GEMINI_API_KEY is not set.
	ErrMissingAPIKey = errors.New("missing GEMINI_API_KEY")

	// ErrInvalidModelName indicates the model name is empty or malformed.
	ErrInvalidModelName = errors.New("invalid model name")

	// ErrInvalidAddr indicates a listen address is malformed.
	ErrInvalidAddr = errors.New("invalid listen address")

	// ErrInvalidCSVFile indicates the CSV source filename is empty.
	ErrInvalidCSVFile = errors.New("invalid csv file")

	// ErrInvalidPipelineURL indicates the pipeline base URL is malformed.
	ErrInvalidPipelineURL = errors.New("invalid pipeline base URL")
)

// Defaults mirroring the local demo setup: pipeline on 8000, agent on 8001.
const (
	DefaultModelName    = "googleai/gemini-2.5-flash"
	DefaultAgentAddr    = ":8001"
	DefaultPipelineAddr = ":8000"
	DefaultPipelineURL  = "http://127.0.0.1:8000"
	DefaultCSVFile      = "housing.csv"
	DefaultWorkDir      = "pipeline_workspace"
)

// Config stores configuration for both the agent and the pipeline service.
// A single struct keeps the two binaries in agreement about shared values
// (work directory, pipeline URL).
type Config struct {
	// Model configuration (agent only)
	ModelName string `mapstructure:"model_name" json:"model_name"` // Genkit model ref, e.g. "googleai/gemini-2.5-flash"

	// Listen addresses
	AgentAddr    string `mapstructure:"agent_addr" json:"agent_addr"`
	PipelineAddr string `mapstructure:"pipeline_addr" json:"pipeline_addr"`

	// PipelineURL is the base URL the agent uses to reach the pipeline service.
	PipelineURL string `mapstructure:"pipeline_url" json:"pipeline_url"`

	// Data pipeline configuration
	CSVFile string `mapstructure:"csv_file" json:"csv_file"` // source CSV, searched in . and ./data
	WorkDir string `mapstructure:"work_dir" json:"work_dir"` // holds the SQLite DB and knowledge base

	// HTTP serving
	CORSOrigins []string `mapstructure:"cors_origins" json:"cors_origins"` // ["*"] allows the file:// demo frontend
	RateBurst   int      `mapstructure:"rate_burst" json:"rate_burst"`     // per-IP burst for /chat (0 = default 30)

	// Logging
	LogLevel string `mapstructure:"log_level" json:"log_level"` // debug | info | warn | error
	LogJSON  bool   `mapstructure:"log_json" json:"log_json"`
}

// Load loads configuration.
// Priority: environment variables > ./homescope.yaml > defaults.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("homescope")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	setDefaults(v)

	v.SetEnvPrefix("HOMESCOPE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is not an error; defaults apply.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using defaults", "config_name", "homescope.yaml")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("model_name", DefaultModelName)
	v.SetDefault("agent_addr", DefaultAgentAddr)
	v.SetDefault("pipeline_addr", DefaultPipelineAddr)
	v.SetDefault("pipeline_url", DefaultPipelineURL)
	v.SetDefault("csv_file", DefaultCSVFile)
	v.SetDefault("work_dir", DefaultWorkDir)
	v.SetDefault("cors_origins", []string{"*"})
	v.SetDefault("rate_burst", 30)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_json", false)
}

// HasAPIKey reports whether a Gemini API key is available in the environment.
// The key is read directly by the Genkit GoogleAI plugin, not via Viper; the
// agent only needs to know whether the model can be configured at all.
func HasAPIKey() bool {
	return os.Getenv("GEMINI_API_KEY") != "" || os.Getenv("GOOGLE_API_KEY") != ""
}

// ValidateAgent checks the fields the agent service requires (fail-fast).
func (c *Config) ValidateAgent() error {
	if c.ModelName == "" || !strings.Contains(c.ModelName, "/") {
		return fmt.Errorf("%w: %q (want provider/model)", ErrInvalidModelName, c.ModelName)
	}
	if c.AgentAddr == "" {
		return fmt.Errorf("%w: agent_addr is empty", ErrInvalidAddr)
	}
	if !strings.HasPrefix(c.PipelineURL, "http://") && !strings.HasPrefix(c.PipelineURL, "https://") {
		return fmt.Errorf("%w: %q", ErrInvalidPipelineURL, c.PipelineURL)
	}
	// A missing API key is not fatal: the service still starts and reports
	// the problem on /health, so the frontend can show a useful message.
	return nil
}

// ValidatePipeline checks the fields the pipeline service requires.
func (c *Config) ValidatePipeline() error {
	if c.PipelineAddr == "" {
		return fmt.Errorf("%w: pipeline_addr is empty", ErrInvalidAddr)
	}
	if c.CSVFile == "" {
		return ErrInvalidCSVFile
	}
	if c.WorkDir == "" {
		return errors.New("work_dir is empty")
	}
	return nil
}
