package chatflow

import (
	"context"
	"fmt"
	"time"

	"github.com/viant/afs"
	"gopkg.in/yaml.v3"
)

// TracingConfig enables span export when set.
type TracingConfig struct {
	ServiceName    string `yaml:"serviceName" json:"serviceName"`
	ServiceVersion string `yaml:"serviceVersion" json:"serviceVersion"`
	OutputFile     string `yaml:"outputFile,omitempty" json:"outputFile,omitempty"`
}

// Config holds the engine settings. Zero values fall back to defaults in
// Init.
type Config struct {
	// FlowBaseURL is where flow definitions live (file, mem, s3, ...).
	FlowBaseURL string `yaml:"flowBaseURL,omitempty" json:"flowBaseURL,omitempty"`

	// ConvLogURL is the conversation log location.
	ConvLogURL string `yaml:"convLogURL,omitempty" json:"convLogURL,omitempty"`

	// Workers sets how many queue consumers the runtime starts.
	Workers int `yaml:"workers,omitempty" json:"workers,omitempty"`

	// MaxDepth bounds one turn's continuation chain.
	MaxDepth int `yaml:"maxDepth,omitempty" json:"maxDepth,omitempty"`

	// StateRetention drops conversation state untouched for this long.
	// Zero keeps state forever.
	StateRetention time.Duration `yaml:"stateRetention,omitempty" json:"stateRetention,omitempty"`

	// HTTPTimeout caps outbound tool HTTP calls. Zero keeps the 20s
	// default.
	HTTPTimeout time.Duration `yaml:"httpTimeout,omitempty" json:"httpTimeout,omitempty"`

	// HistoryTurns bounds the conversation context sent to the model.
	HistoryTurns int `yaml:"historyTurns,omitempty" json:"historyTurns,omitempty"`

	// HistoryDelay is the settle delay before AI history reads.
	HistoryDelay time.Duration `yaml:"historyDelay,omitempty" json:"historyDelay,omitempty"`

	Tracing *TracingConfig `yaml:"tracing,omitempty" json:"tracing,omitempty"`
}

// DefaultConfig returns the engine defaults.
func DefaultConfig() *Config {
	return &Config{
		ConvLogURL: "mem://localhost/chatflow/convlog",
		Workers:    4,
	}
}

// Init fills unset fields with defaults.
func (c *Config) Init() {
	if c.ConvLogURL == "" {
		c.ConvLogURL = "mem://localhost/chatflow/convlog"
	}
	if c.Workers <= 0 {
		c.Workers = 4
	}
}

// Validate reports configuration errors.
func (c *Config) Validate() error {
	if c.Workers < 0 {
		return fmt.Errorf("workers must not be negative: %d", c.Workers)
	}
	if c.MaxDepth < 0 {
		return fmt.Errorf("maxDepth must not be negative: %d", c.MaxDepth)
	}
	if c.StateRetention < 0 {
		return fmt.Errorf("stateRetention must not be negative: %s", c.StateRetention)
	}
	return nil
}

// NewConfigFromURL loads a YAML config document from any afs-supported
// location.
func NewConfigFromURL(ctx context.Context, URL string) (*Config, error) {
	fs := afs.New()
	data, err := fs.DownloadWithURL(ctx, URL)
	if err != nil {
		return nil, fmt.Errorf("failed to load config from %s: %w", URL, err)
	}
	config := &Config{}
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config from %s: %w", URL, err)
	}
	config.Init()
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}
