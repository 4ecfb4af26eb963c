package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v9"
	"gopkg.in/yaml.v3"
)

// Config models gigline.yml, the marketplace policy file.
type Config struct {
	Marketplace struct {
		Name     string `yaml:"name"`
		Currency string `yaml:"currency"`
	} `yaml:"marketplace"`
	Limits    Limits `yaml:"limits"`
	Contracts struct {
		Completion Completion `yaml:"completion"`
	} `yaml:"contracts"`
	Settlement Settlement      `yaml:"settlement"`
	Webhooks   []WebhookConfig `yaml:"webhooks,omitempty"`
	Logging    Logging         `yaml:"logging"`
}

// Limits are per-file and aggregate ceilings for attachments, in bytes.
type Limits struct {
	TaskFileBytes               int64 `yaml:"task_file_bytes"`
	ImageBytes                  int64 `yaml:"image_bytes"`
	VideoBytes                  int64 `yaml:"video_bytes"`
	TicketAttachmentsTotalBytes int64 `yaml:"ticket_attachments_total_bytes"`
	CompanyDocumentBytes        int64 `yaml:"company_document_bytes"`
}

type Completion struct {
	MinRating        int `yaml:"min_rating"`
	MaxRating        int `yaml:"max_rating"`
	MinFeedbackWords int `yaml:"min_feedback_words"`
}

type Settlement struct {
	Interval time.Duration `yaml:"interval"`
	Batch    int           `yaml:"batch"`
}

type WebhookConfig struct {
	URL            string   `yaml:"url"`
	Events         []string `yaml:"events,omitempty"`
	Secret         string   `yaml:"secret,omitempty"`
	TimeoutSeconds int      `yaml:"timeout_seconds,omitempty"`
	Enabled        *bool    `yaml:"enabled,omitempty"`
}

type Logging struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"`
	File       string `yaml:"file,omitempty"`
	MaxSizeMB  int    `yaml:"max_size_mb,omitempty"`
	MaxBackups int    `yaml:"max_backups,omitempty"`
}

// ServerEnv holds process settings for `gl serve`, read from GIGLINE_* variables.
type ServerEnv struct {
	Addr             string `env:"ADDR" envDefault:"127.0.0.1:8080"`
	BasePath         string `env:"BASE_PATH" envDefault:"/api"`
	JWTSecret        string `env:"JWT_SECRET"`
	AllowActorHeader bool   `env:"ALLOW_ACTOR_HEADER" envDefault:"false"`
}

// LoadServerEnv parses GIGLINE_* environment variables.
func LoadServerEnv() (ServerEnv, error) {
	var s ServerEnv
	if err := env.ParseWithOptions(&s, env.Options{Prefix: "GIGLINE_"}); err != nil {
		return s, fmt.Errorf("parse server env: %w", err)
	}
	return s, nil
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Marketplace.Name) == "" {
		return fmt.Errorf("config.marketplace.name is required")
	}
	limits := map[string]int64{
		"task_file_bytes":                c.Limits.TaskFileBytes,
		"image_bytes":                    c.Limits.ImageBytes,
		"video_bytes":                    c.Limits.VideoBytes,
		"ticket_attachments_total_bytes": c.Limits.TicketAttachmentsTotalBytes,
		"company_document_bytes":         c.Limits.CompanyDocumentBytes,
	}
	for name, v := range limits {
		if v <= 0 {
			return fmt.Errorf("config.limits.%s must be positive", name)
		}
	}
	comp := c.Contracts.Completion
	if comp.MinRating < 1 || comp.MaxRating < comp.MinRating {
		return fmt.Errorf("config.contracts.completion rating range [%d,%d] is invalid", comp.MinRating, comp.MaxRating)
	}
	if comp.MinFeedbackWords < 0 {
		return fmt.Errorf("config.contracts.completion.min_feedback_words must not be negative")
	}
	if c.Settlement.Interval <= 0 {
		return fmt.Errorf("config.settlement.interval must be positive")
	}
	if c.Settlement.Batch <= 0 {
		return fmt.Errorf("config.settlement.batch must be positive")
	}
	for i, hook := range c.Webhooks {
		if strings.TrimSpace(hook.URL) == "" {
			return fmt.Errorf("config.webhooks[%d].url is required", i)
		}
		if hook.TimeoutSeconds < 0 {
			return fmt.Errorf("config.webhooks[%d].timeout_seconds must not be negative", i)
		}
	}
	switch c.Logging.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("config.logging.format must be text or json")
	}
	return nil
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "gigline.yml")
}

// GenerateDefault returns default config YAML.
func GenerateDefault() string {
	return defaultTemplate
}

// LoadOptional returns nil,nil if the config file does not exist.
func LoadOptional(workspace string) (*Config, error) {
	data, err := os.ReadFile(Path(workspace))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// Default returns the built-in marketplace policy.
func Default() *Config {
	var cfg Config
	if err := yaml.Unmarshal([]byte(defaultTemplate), &cfg); err != nil {
		panic(fmt.Sprintf("default config template: %v", err))
	}
	return &cfg
}

// FromYAML parses and validates config from raw YAML bytes.
func FromYAML(data []byte) (*Config, error) {
	cfg := Default()
	cfg.Webhooks = nil
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

// ToYAML renders the config.
func (c *Config) ToYAML() ([]byte, error) {
	return yaml.Marshal(c)
}

const defaultTemplate = `marketplace:
  name: gigline
  currency: credits

limits:
  task_file_bytes: 15728640
  image_bytes: 5242880
  video_bytes: 12582912
  ticket_attachments_total_bytes: 10485760
  company_document_bytes: 10485760

contracts:
  completion:
    min_rating: 1
    max_rating: 5
    min_feedback_words: 10

settlement:
  interval: 2s
  batch: 50

logging:
  level: info
  format: text
`
