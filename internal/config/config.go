// Package config loads leaveguard settings from defaults, an optional YAML or
// JSON file and LEAVEGUARD_ environment variables, in that order.
package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/fleetdesk/leaveguard/internal/notify"
	"github.com/fleetdesk/leaveguard/internal/scheduler"
)

// EnvPrefix marks environment overrides; "__" separates nested keys, as in
// LEAVEGUARD_SCORING__TOP_N=5.
const EnvPrefix = "LEAVEGUARD_"

type Config struct {
	Database      DatabaseConfig      `json:"database"`
	Scoring       ScoringConfig       `json:"scoring"`
	Severity      SeverityConfig      `json:"severity"`
	Timeouts      TimeoutConfig       `json:"timeouts"`
	Generation    GenerationConfig    `json:"generation"`
	Notifications NotificationsConfig `json:"notifications"`
	Logging       LoggingConfig       `json:"logging"`
	Metrics       MetricsConfig       `json:"metrics"`
}

type DatabaseConfig struct {
	Path string `json:"path"`
}

type WeightsConfig struct {
	RouteFamiliarity float64 `json:"route_familiarity"`
	Performance      float64 `json:"performance"`
	AvailabilityFit  float64 `json:"availability_fit"`
	CredentialMargin float64 `json:"credential_margin"`
}

type ScoringConfig struct {
	Weights                    WeightsConfig `json:"weights"`
	TopN                       int           `json:"top_n"`
	NeutralPerformance         float64       `json:"neutral_performance"`
	PerformanceWindowDays      int           `json:"performance_window_days"`
	AvailabilityComfortMinutes int           `json:"availability_comfort_minutes"`
	CredentialHorizonDays      int           `json:"credential_horizon_days"`
}

type SeverityConfig struct {
	MediumMin           int `json:"medium_min"`
	HighMin             int `json:"high_min"`
	CriticalMin         int `json:"critical_min"`
	EscalationLeadHours int `json:"escalation_lead_hours"`
}

type TimeoutConfig struct {
	LookupMS int `json:"lookup_ms"`
}

const (
	GenerationInline = "inline"
	GenerationAsync  = "async"
)

type GenerationConfig struct {
	Mode                string `json:"mode"`
	PollIntervalSeconds int    `json:"poll_interval_seconds"`
	BatchSize           int    `json:"batch_size"`
}

type NotificationsConfig struct {
	QueueSize int               `json:"queue_size"`
	MQTT      notify.MQTTConfig `json:"mqtt"`
}

type LoggingConfig struct {
	Level  string `json:"level"`
	Format string `json:"format"`
}

type MetricsConfig struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr"`
}

func Default() Config {
	w := scheduler.DefaultWeights()
	bands := scheduler.DefaultSeverityBands()
	return Config{
		Database: DatabaseConfig{Path: "leaveguard.db"},
		Scoring: ScoringConfig{
			Weights: WeightsConfig{
				RouteFamiliarity: w.RouteFamiliarity,
				Performance:      w.Performance,
				AvailabilityFit:  w.AvailabilityFit,
				CredentialMargin: w.CredentialMargin,
			},
			TopN:                       3,
			NeutralPerformance:         50,
			PerformanceWindowDays:      90,
			AvailabilityComfortMinutes: 60,
			CredentialHorizonDays:      180,
		},
		Severity: SeverityConfig{
			MediumMin:           bands.MediumMin,
			HighMin:             bands.HighMin,
			CriticalMin:         bands.CriticalMin,
			EscalationLeadHours: int(bands.EscalationLead / time.Hour),
		},
		Timeouts:   TimeoutConfig{LookupMS: 5000},
		Generation: GenerationConfig{Mode: GenerationInline, PollIntervalSeconds: 30, BatchSize: 50},
		Notifications: NotificationsConfig{
			QueueSize: notify.DefaultQueueSize,
			MQTT:      notify.MQTTConfig{ClientID: "leaveguard", TopicPrefix: "leaveguard/events", QoS: 1},
		},
		Logging: LoggingConfig{Level: "info", Format: "json"},
		Metrics: MetricsConfig{Addr: ":9464"},
	}
}

// Load builds the configuration. An empty path skips the file layer.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	if path != "" {
		var parser koanf.Parser
		switch ext := strings.ToLower(filepath.Ext(path)); ext {
		case ".yaml", ".yml":
			parser = yaml.Parser()
		case ".json":
			parser = json.Parser()
		default:
			return nil, fmt.Errorf("unsupported config format: %s", ext)
		}
		if err := k.Load(file.Provider(path), parser); err != nil {
			return nil, fmt.Errorf("loading config %s: %w", path, err)
		}
	}
	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("loading environment overrides: %w", err)
	}

	cfg := Default()
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(s, "__", ".")
}

func (c Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if err := c.ScoringWeights().Validate(); err != nil {
		return fmt.Errorf("scoring.weights: %w", err)
	}
	if c.Scoring.TopN < 1 {
		return fmt.Errorf("scoring.top_n must be at least 1, got %d", c.Scoring.TopN)
	}
	if c.Scoring.NeutralPerformance <= 0 || c.Scoring.NeutralPerformance > 100 {
		return fmt.Errorf("scoring.neutral_performance must be within (0,100], got %v", c.Scoring.NeutralPerformance)
	}
	if c.Scoring.PerformanceWindowDays < 1 {
		return fmt.Errorf("scoring.performance_window_days must be positive")
	}
	if c.Scoring.AvailabilityComfortMinutes < 1 {
		return fmt.Errorf("scoring.availability_comfort_minutes must be positive")
	}
	if c.Scoring.CredentialHorizonDays < 1 {
		return fmt.Errorf("scoring.credential_horizon_days must be positive")
	}
	if err := c.SeverityBands().Validate(); err != nil {
		return fmt.Errorf("severity: %w", err)
	}
	if c.Timeouts.LookupMS < 1 {
		return fmt.Errorf("timeouts.lookup_ms must be positive")
	}
	switch c.Generation.Mode {
	case GenerationInline, GenerationAsync:
	default:
		return fmt.Errorf("generation.mode must be %q or %q, got %q", GenerationInline, GenerationAsync, c.Generation.Mode)
	}
	if c.Generation.PollIntervalSeconds < 1 {
		return fmt.Errorf("generation.poll_interval_seconds must be positive")
	}
	if c.Notifications.QueueSize < 1 {
		return fmt.Errorf("notifications.queue_size must be positive")
	}
	if err := c.Notifications.MQTT.Validate(); err != nil {
		return fmt.Errorf("notifications.mqtt: %w", err)
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("logging.format must be json or console, got %q", c.Logging.Format)
	}
	if c.Metrics.Enabled && c.Metrics.Addr == "" {
		return fmt.Errorf("metrics.addr is required when metrics are enabled")
	}
	return nil
}

func (c Config) ScoringWeights() scheduler.ScoringWeights {
	return scheduler.ScoringWeights{
		RouteFamiliarity: c.Scoring.Weights.RouteFamiliarity,
		Performance:      c.Scoring.Weights.Performance,
		AvailabilityFit:  c.Scoring.Weights.AvailabilityFit,
		CredentialMargin: c.Scoring.Weights.CredentialMargin,
	}
}

func (c Config) ScoringParams() scheduler.ScoringParams {
	return scheduler.ScoringParams{
		Weights:            c.ScoringWeights(),
		NeutralPerformance: c.Scoring.NeutralPerformance,
		ComfortMargin:      time.Duration(c.Scoring.AvailabilityComfortMinutes) * time.Minute,
		CredentialHorizon:  time.Duration(c.Scoring.CredentialHorizonDays) * 24 * time.Hour,
	}
}

func (c Config) SeverityBands() scheduler.SeverityBands {
	return scheduler.SeverityBands{
		MediumMin:      c.Severity.MediumMin,
		HighMin:        c.Severity.HighMin,
		CriticalMin:    c.Severity.CriticalMin,
		EscalationLead: time.Duration(c.Severity.EscalationLeadHours) * time.Hour,
	}
}

func (c Config) LookupTimeout() time.Duration {
	return time.Duration(c.Timeouts.LookupMS) * time.Millisecond
}

func (c Config) PerformanceWindow() time.Duration {
	return time.Duration(c.Scoring.PerformanceWindowDays) * 24 * time.Hour
}

func (c Config) PollInterval() time.Duration {
	return time.Duration(c.Generation.PollIntervalSeconds) * time.Second
}
