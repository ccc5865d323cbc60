package config

import (
	"fmt"
	"time"
)

// Window policies for event linking
const (
	WindowSymmetric = "symmetric"
	WindowTrailing  = "trailing"
)

// Treatment policies for causal estimation
const (
	TreatmentAbsorbing = "absorbing"
	TreatmentWindow    = "window"
)

// Treatment anchors
const (
	AnchorAnomaly      = "anomaly"
	AnchorFirstSuspect = "first_suspect"
)

// Classifier providers
const (
	ProviderNone      = "none"
	ProviderKeyword   = "keyword"
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
)

// Config holds all configuration for an analysis run
type Config struct {
	// LogLevel is the default logging level (debug, info, warn, error)
	LogLevel string `yaml:"log_level"`

	// LogFormat is text or json
	LogFormat string `yaml:"log_format"`

	Detection  DetectionConfig  `yaml:"detection"`
	Linking    LinkingConfig    `yaml:"linking"`
	Causal     CausalConfig     `yaml:"causal"`
	Refutation RefutationConfig `yaml:"refutation"`
	Classifier ClassifierConfig `yaml:"classifier"`
	Columns    ColumnsConfig    `yaml:"columns"`
	Tracing    TracingConfig    `yaml:"tracing"`
}

// DetectionConfig configures the rolling-baseline anomaly detector
type DetectionConfig struct {
	// Sensitivity is the z-score threshold; points with z < -Sensitivity are anomalies
	Sensitivity float64 `yaml:"sensitivity"`

	// RollingWindow is the baseline window length in points
	RollingWindow int `yaml:"rolling_window"`
}

// LinkingConfig configures the event linker
type LinkingConfig struct {
	// LookbackDays is the half-width of the search window
	LookbackDays int `yaml:"lookback_days"`

	// WindowPolicy is "symmetric" (±L days) or "trailing" (-L days, +1 day)
	WindowPolicy string `yaml:"window_policy"`
}

// CausalConfig configures treatment construction and estimation
type CausalConfig struct {
	MinPoints       int    `yaml:"min_points"`
	TreatmentPolicy string `yaml:"treatment_policy"`
	TreatmentDays   int    `yaml:"treatment_days"`
	TreatmentAnchor string `yaml:"treatment_anchor"`

	// RequireSuspects skips estimation for anomalies without HIGH-risk events
	RequireSuspects bool `yaml:"require_suspects"`

	// MaxIncidents caps how many anomalies (most severe first) are analyzed
	MaxIncidents int `yaml:"max_incidents"`
}

// RefutationConfig configures the placebo refuter
type RefutationConfig struct {
	Enabled       bool    `yaml:"enabled"`
	Simulations   int     `yaml:"simulations"`
	Seed          int64   `yaml:"seed"`
	VerdictFactor float64 `yaml:"verdict_factor"`
}

// ClassifierConfig configures the risk classification collaborator
type ClassifierConfig struct {
	Provider          string        `yaml:"provider"`
	Model             string        `yaml:"model"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
	Concurrency       int           `yaml:"concurrency"`
	CacheSize         int           `yaml:"cache_size"`
	Timeout           time.Duration `yaml:"timeout"`
	Limit             int           `yaml:"limit"`

	// Redact masks credentials and identifiers in texts sent to a provider
	Redact bool `yaml:"redact"`
}

// ColumnsConfig maps raw table columns to canonical fields
type ColumnsConfig struct {
	Events  EventColumns  `yaml:"events"`
	Metrics MetricColumns `yaml:"metrics"`
}

// EventColumns names the event table columns
type EventColumns struct {
	Timestamp string `yaml:"timestamp"`
	Risk      string `yaml:"risk"`
	Message   string `yaml:"message"`
	Source    string `yaml:"source"`
	Component string `yaml:"component"`
	Reasoning string `yaml:"reasoning"`
}

// MetricColumns names the metric table columns
type MetricColumns struct {
	Date       string `yaml:"date"`
	Value      string `yaml:"value"`
	Confounder string `yaml:"confounder"`
}

// TracingConfig configures OpenTelemetry export
type TracingConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Endpoint string `yaml:"endpoint"`

	// Insecure sends spans over plaintext gRPC
	Insecure bool `yaml:"insecure"`

	// TLSCAPath is an optional CA bundle for the collector certificate
	TLSCAPath string `yaml:"tls_ca_path"`
}

// Default returns the configuration used when no file is given
func Default() *Config {
	return &Config{
		LogLevel:  "info",
		LogFormat: "text",
		Detection: DetectionConfig{
			Sensitivity:   2.0,
			RollingWindow: 7,
		},
		Linking: LinkingConfig{
			LookbackDays: 3,
			WindowPolicy: WindowSymmetric,
		},
		Causal: CausalConfig{
			MinPoints:       10,
			TreatmentPolicy: TreatmentAbsorbing,
			TreatmentDays:   2,
			TreatmentAnchor: AnchorAnomaly,
			RequireSuspects: true,
			MaxIncidents:    5,
		},
		Refutation: RefutationConfig{
			Enabled:       true,
			Simulations:   100,
			Seed:          42,
			VerdictFactor: 2.0,
		},
		Classifier: ClassifierConfig{
			Provider:          ProviderKeyword,
			RequestsPerSecond: 2,
			Concurrency:       4,
			CacheSize:         1024,
			Timeout:           30 * time.Second,
			Limit:             50,
			Redact:            true,
		},
		Columns: ColumnsConfig{
			Events: EventColumns{
				Timestamp: "timestamp",
				Risk:      "ai_risk",
				Message:   "message",
				Source:    "source_file",
				Component: "ai_component",
				Reasoning: "ai_reasoning",
			},
			Metrics: MetricColumns{
				Date:  "date",
				Value: "daily_revenue",
			},
		},
	}
}

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	if c.Detection.Sensitivity <= 0 {
		return NewConfigError("detection.sensitivity must be positive")
	}
	if c.Detection.RollingWindow < 1 {
		return NewConfigError("detection.rolling_window must be at least 1")
	}
	if c.Linking.LookbackDays < 0 {
		return NewConfigError("linking.lookback_days must not be negative")
	}
	switch c.Linking.WindowPolicy {
	case WindowSymmetric, WindowTrailing:
	default:
		return NewConfigError(fmt.Sprintf("linking.window_policy %q is not one of %s, %s",
			c.Linking.WindowPolicy, WindowSymmetric, WindowTrailing))
	}

	if c.Causal.MinPoints < 3 {
		return NewConfigError("causal.min_points must be at least 3")
	}
	switch c.Causal.TreatmentPolicy {
	case TreatmentAbsorbing:
	case TreatmentWindow:
		if c.Causal.TreatmentDays < 1 {
			return NewConfigError("causal.treatment_days must be at least 1 for the window policy")
		}
	default:
		return NewConfigError(fmt.Sprintf("causal.treatment_policy %q is not one of %s, %s",
			c.Causal.TreatmentPolicy, TreatmentAbsorbing, TreatmentWindow))
	}
	switch c.Causal.TreatmentAnchor {
	case AnchorAnomaly, AnchorFirstSuspect:
	default:
		return NewConfigError(fmt.Sprintf("causal.treatment_anchor %q is not one of %s, %s",
			c.Causal.TreatmentAnchor, AnchorAnomaly, AnchorFirstSuspect))
	}
	if c.Causal.MaxIncidents < 0 {
		return NewConfigError("causal.max_incidents must not be negative")
	}

	if c.Refutation.Enabled && c.Refutation.Simulations < 1 {
		return NewConfigError("refutation.simulations must be at least 1 when refutation is enabled")
	}
	if c.Refutation.VerdictFactor <= 0 {
		return NewConfigError("refutation.verdict_factor must be positive")
	}

	switch c.Classifier.Provider {
	case ProviderNone, ProviderKeyword, ProviderAnthropic, ProviderOpenAI:
	default:
		return NewConfigError(fmt.Sprintf("classifier.provider %q is not supported", c.Classifier.Provider))
	}
	if c.Classifier.Concurrency < 1 {
		return NewConfigError("classifier.concurrency must be at least 1")
	}
	if c.Classifier.RequestsPerSecond < 0 {
		return NewConfigError("classifier.requests_per_second must not be negative")
	}

	if c.Columns.Events.Timestamp == "" || c.Columns.Events.Message == "" {
		return NewConfigError("columns.events.timestamp and columns.events.message are required")
	}
	if c.Columns.Metrics.Date == "" || c.Columns.Metrics.Value == "" {
		return NewConfigError("columns.metrics.date and columns.metrics.value are required")
	}

	if c.Tracing.Enabled && c.Tracing.Endpoint == "" {
		return NewConfigError("tracing.endpoint must be set when tracing is enabled")
	}

	return nil
}

// ConfigError represents a configuration error
type ConfigError struct {
	message string
}

// NewConfigError creates a new configuration error
func NewConfigError(message string) *ConfigError {
	return &ConfigError{message: message}
}

// Error returns the error message
func (e *ConfigError) Error() string {
	return e.message
}
