package config

import "time"

// Config represents the main configuration structure
type Config struct {
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Anonymizer AnonymizerConfig `yaml:"anonymizer" mapstructure:"anonymizer"`
	Dictionary DictionaryConfig `yaml:"dictionary" mapstructure:"dictionary"`
	Limits     LimitsConfig     `yaml:"limits" mapstructure:"limits"`
	Logging    LoggingConfig    `yaml:"logging" mapstructure:"logging"`
	WebSocket  WebSocketConfig  `yaml:"websocket" mapstructure:"websocket"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Port         int           `yaml:"port" mapstructure:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout" mapstructure:"idle_timeout"`
	RateLimit    RateLimit     `yaml:"rate_limit" mapstructure:"rate_limit"`
}

// RateLimit contains per-client request throttling configuration
type RateLimit struct {
	Enabled        bool `yaml:"enabled" mapstructure:"enabled"`
	RequestsPerMin int  `yaml:"requests_per_min" mapstructure:"requests_per_min"`
	Burst          int  `yaml:"burst" mapstructure:"burst"`
}

// AnonymizerConfig contains default redaction behaviour
type AnonymizerConfig struct {
	PlaceholderTemplate string   `yaml:"placeholder_template" mapstructure:"placeholder_template"`
	IncludeDictionary   bool     `yaml:"include_dictionary" mapstructure:"include_dictionary"`
	AnonymizeFinancial  bool     `yaml:"anonymize_financial" mapstructure:"anonymize_financial"`
	AnonymizePII        bool     `yaml:"anonymize_pii" mapstructure:"anonymize_pii"`
	PIICategories       []string `yaml:"pii_categories" mapstructure:"pii_categories"`
}

// DictionaryConfig contains persistent keyword dictionary configuration
type DictionaryConfig struct {
	Path        string        `yaml:"path" mapstructure:"path"`
	LockTimeout time.Duration `yaml:"lock_timeout" mapstructure:"lock_timeout"`
	MaxEntries  int           `yaml:"max_entries" mapstructure:"max_entries"`
}

// LimitsConfig contains input validation limits
type LimitsConfig struct {
	MaxFileSizeMB    int `yaml:"max_file_size_mb" mapstructure:"max_file_size_mb"`
	MaxFilesPerBatch int `yaml:"max_files_per_batch" mapstructure:"max_files_per_batch"`
	MaxKeywords      int `yaml:"max_keywords" mapstructure:"max_keywords"`
	MaxKeywordLength int `yaml:"max_keyword_length" mapstructure:"max_keyword_length"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string     `yaml:"level" mapstructure:"level"`
	Format string     `yaml:"format" mapstructure:"format"` // json or console
	File   FileOutput `yaml:"file" mapstructure:"file"`
}

// FileOutput contains file logging configuration
type FileOutput struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Path    string `yaml:"path" mapstructure:"path"`
}

// WebSocketConfig contains live event stream configuration
type WebSocketConfig struct {
	Enabled        bool          `yaml:"enabled" mapstructure:"enabled"`
	Path           string        `yaml:"path" mapstructure:"path"`
	PingInterval   time.Duration `yaml:"ping_interval" mapstructure:"ping_interval"`
	PongTimeout    time.Duration `yaml:"pong_timeout" mapstructure:"pong_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`
	MaxMessageSize int64         `yaml:"max_message_size" mapstructure:"max_message_size"`
	Events         EventToggles  `yaml:"events" mapstructure:"events"`
}

// EventToggles controls which event types are broadcast to clients
type EventToggles struct {
	BroadcastProcessing  bool `yaml:"broadcast_processing" mapstructure:"broadcast_processing"`
	BroadcastDetections  bool `yaml:"broadcast_detections" mapstructure:"broadcast_detections"`
	BroadcastConnections bool `yaml:"broadcast_connections" mapstructure:"broadcast_connections"`
}

// GetDefaults returns a configuration with sensible defaults
func GetDefaults() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         8080,
			ReadTimeout:  60 * time.Second,
			WriteTimeout: 60 * time.Second,
			IdleTimeout:  120 * time.Second,
			RateLimit: RateLimit{
				Enabled:        true,
				RequestsPerMin: 60,
				Burst:          10,
			},
		},
		Anonymizer: AnonymizerConfig{
			PlaceholderTemplate: "[REDACTED_{n}]",
			IncludeDictionary:   true,
			AnonymizeFinancial:  false,
			AnonymizePII:        false,
			PIICategories:       []string{"all"},
		},
		Dictionary: DictionaryConfig{
			Path:        "data/keyword_dictionary.json",
			LockTimeout: 5 * time.Second,
			MaxEntries:  1000,
		},
		Limits: LimitsConfig{
			MaxFileSizeMB:    50,
			MaxFilesPerBatch: 20,
			MaxKeywords:      100,
			MaxKeywordLength: 200,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			File: FileOutput{
				Enabled: false,
				Path:    "logs/anonymizer.log",
			},
		},
		WebSocket: WebSocketConfig{
			Enabled:        true,
			Path:           "/ws",
			PingInterval:   54 * time.Second,
			PongTimeout:    60 * time.Second,
			WriteTimeout:   10 * time.Second,
			MaxMessageSize: 512,
			Events: EventToggles{
				BroadcastProcessing:  true,
				BroadcastDetections:  true,
				BroadcastConnections: true,
			},
		},
	}
}
