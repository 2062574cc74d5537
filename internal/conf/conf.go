package conf

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config represents application configuration
type Config struct {
	// Lark platform configuration
	Lark LarkConfig

	// OpenAI classifier configuration
	OpenAI OpenAIConfig

	// Channel metadata configuration
	Metadata MetadataConfig

	// Audit log configuration
	Audit AuditConfig

	// Destination channels for alerts and summaries
	Sinks SinkConfig

	// Scheduling configuration
	Schedule ScheduleConfig

	// Debug mode
	Debug bool
}

// LarkConfig contains Lark app credentials
type LarkConfig struct {
	AppID     string
	AppSecret string
}

// OpenAIConfig contains the classifier endpoint configuration
type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

// MetadataConfig contains the channel metadata source
type MetadataConfig struct {
	CSVPath         string
	InternalDomains []string
}

// AuditConfig contains the audit database location
type AuditConfig struct {
	DBPath string
}

// SinkConfig names the channels that receive alerts and summaries
type SinkConfig struct {
	Alert       string
	Testimonial string
	Summary     string
}

// ScheduleConfig contains the timing knobs for the sweeps and the daily
// summary
type ScheduleConfig struct {
	InactivityThreshold time.Duration
	FlushInterval       time.Duration
	ExpiryInterval      time.Duration
	QuestionWindow      time.Duration
	ClassifyTimeout     time.Duration
	SummaryHour         int
	SummaryMinute       int
	Timezone            string
}

// LoadFromEnv loads configuration from environment variables
func LoadFromEnv() *Config {
	metadataPath := os.Getenv("CHANNEL_METADATA_PATH")
	if metadataPath == "" {
		metadataPath = "configs/channels.csv"
	}

	dbPath := os.Getenv("AUDIT_DB_PATH")
	if dbPath == "" {
		dbPath = "data/audit.db"
	}

	model := os.Getenv("OPENAI_MODEL")
	if model == "" {
		model = "gpt-4o"
	}

	internalDomains := []string{"sey.media", "leadacquisition.io"}
	if val := os.Getenv("INTERNAL_DOMAINS"); val != "" {
		internalDomains = internalDomains[:0]
		for _, d := range strings.Split(val, ",") {
			if d = strings.TrimSpace(d); d != "" {
				internalDomains = append(internalDomains, d)
			}
		}
	}

	tz := os.Getenv("SUMMARY_TIMEZONE")
	if tz == "" {
		tz = "America/New_York"
	}

	return &Config{
		Lark: LarkConfig{
			AppID:     os.Getenv("LARK_APP_ID"),
			AppSecret: os.Getenv("LARK_APP_SECRET"),
		},
		OpenAI: OpenAIConfig{
			APIKey:  os.Getenv("OPENAI_API_KEY"),
			BaseURL: os.Getenv("OPENAI_BASE_URL"),
			Model:   model,
		},
		Metadata: MetadataConfig{
			CSVPath:         metadataPath,
			InternalDomains: internalDomains,
		},
		Audit: AuditConfig{
			DBPath: dbPath,
		},
		Sinks: SinkConfig{
			Alert:       os.Getenv("ALERT_CHANNEL_ID"),
			Testimonial: os.Getenv("TESTIMONIAL_CHANNEL_ID"),
			Summary:     os.Getenv("SUMMARY_CHANNEL_ID"),
		},
		Schedule: ScheduleConfig{
			InactivityThreshold: envDuration("INACTIVITY_THRESHOLD", 5*time.Minute),
			FlushInterval:       envDuration("FLUSH_INTERVAL", time.Minute),
			ExpiryInterval:      envDuration("EXPIRY_INTERVAL", time.Minute),
			QuestionWindow:      envDuration("QUESTION_WINDOW", 30*time.Minute),
			ClassifyTimeout:     envDuration("CLASSIFY_TIMEOUT", 30*time.Second),
			SummaryHour:         envInt("SUMMARY_HOUR", 17),
			SummaryMinute:       envInt("SUMMARY_MINUTE", 0),
			Timezone:            tz,
		},
		Debug: os.Getenv("DEBUG") == "true",
	}
}

func envDuration(key string, def time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if parsed, err := time.ParseDuration(val); err == nil && parsed > 0 {
			return parsed
		}
	}
	return def
}

func envInt(key string, def int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return def
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Lark.AppID == "" || c.Lark.AppSecret == "" {
		return &ConfigError{Field: "LARK_APP_ID/LARK_APP_SECRET", Message: "required"}
	}
	if c.OpenAI.APIKey == "" {
		return &ConfigError{Field: "OPENAI_API_KEY", Message: "required"}
	}
	if c.Sinks.Alert == "" {
		return &ConfigError{Field: "ALERT_CHANNEL_ID", Message: "required"}
	}
	if c.Schedule.SummaryHour < 0 || c.Schedule.SummaryHour > 23 {
		return &ConfigError{Field: "SUMMARY_HOUR", Message: "must be 0-23"}
	}
	return nil
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return e.Field + ": " + e.Message
}
