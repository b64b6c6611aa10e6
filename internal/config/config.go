package config

import "time"

// Admission modes for websocket connections.
const (
	AdmissionOpen   = "open"
	AdmissionToken  = "token"
	AdmissionSecret = "secret"
)

// Config holds server configuration values.
type Config struct {
	Addr              string        `mapstructure:"addr" yaml:"addr"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	LogLevel          string        `mapstructure:"log_level" yaml:"log_level"`
	PublicURL         string        `mapstructure:"public_url" yaml:"public_url"`
	AllowedOrigins    []string      `mapstructure:"allowed_origins" yaml:"allowed_origins"`

	DatabasePath string `mapstructure:"database_path" yaml:"database_path"`

	MaxMessageBytes    int64         `mapstructure:"max_message_bytes" yaml:"max_message_bytes"`
	RateLimitPerSecond float64       `mapstructure:"rate_limit_per_second" yaml:"rate_limit_per_second"`
	RateLimitBurst     int           `mapstructure:"rate_limit_burst" yaml:"rate_limit_burst"`
	RoomIdleTTL        time.Duration `mapstructure:"room_idle_ttl" yaml:"room_idle_ttl"`
	RoomSweepInterval  time.Duration `mapstructure:"room_sweep_interval" yaml:"room_sweep_interval"`
	MaxHistory         int           `mapstructure:"max_history" yaml:"max_history"`
	CanvasSize         int           `mapstructure:"canvas_size" yaml:"canvas_size"`
	ReferencesDir      string        `mapstructure:"references_dir" yaml:"references_dir"`

	AdmissionMode    string        `mapstructure:"admission_mode" yaml:"admission_mode"`
	JWTSecret        string        `mapstructure:"jwt_secret" yaml:"jwt_secret"`
	JWTIssuer        string        `mapstructure:"jwt_issuer" yaml:"jwt_issuer"`
	JWTAudience      string        `mapstructure:"jwt_audience" yaml:"jwt_audience"`
	TokenTTL         time.Duration `mapstructure:"token_ttl" yaml:"token_ttl"`
	SecretHash       string        `mapstructure:"secret_hash" yaml:"secret_hash"`
	RequireKnownRoom bool          `mapstructure:"require_known_room" yaml:"require_known_room"`
	IssuerKeyHash    string        `mapstructure:"issuer_key_hash" yaml:"issuer_key_hash"`

	JaegerEndpoint string `mapstructure:"jaeger_endpoint" yaml:"jaeger_endpoint"`
	ServiceName    string `mapstructure:"service_name" yaml:"service_name"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		Addr:              ":8080",
		ReadHeaderTimeout: 5 * time.Second,
		ShutdownTimeout:   5 * time.Second,
		LogLevel:          "info",
		PublicURL:         "http://localhost:8080",
		AllowedOrigins:    []string{"*"},

		DatabasePath: "wiredraw.db",

		MaxMessageBytes:    16 << 20,
		RateLimitPerSecond: 60,
		RateLimitBurst:     120,
		RoomIdleTTL:        24 * time.Hour,
		RoomSweepInterval:  10 * time.Minute,
		MaxHistory:         100,
		CanvasSize:         2048,
		ReferencesDir:      "references",

		AdmissionMode: AdmissionOpen,
		JWTIssuer:     "wiredraw",
		JWTAudience:   "wiredraw-clients",
		TokenTTL:      7 * 24 * time.Hour,

		ServiceName: "wiredraw-server",
	}
}

// UpdateFrom overwrites non-zero values from other config into receiver.
func (c *Config) UpdateFrom(other Config) {
	if other.Addr != "" {
		c.Addr = other.Addr
	}
	if other.ReadHeaderTimeout != 0 {
		c.ReadHeaderTimeout = other.ReadHeaderTimeout
	}
	if other.ShutdownTimeout != 0 {
		c.ShutdownTimeout = other.ShutdownTimeout
	}
	if other.LogLevel != "" {
		c.LogLevel = other.LogLevel
	}
	if other.PublicURL != "" {
		c.PublicURL = other.PublicURL
	}
	if other.DatabasePath != "" {
		c.DatabasePath = other.DatabasePath
	}
	if other.ReferencesDir != "" {
		c.ReferencesDir = other.ReferencesDir
	}
	if other.AdmissionMode != "" {
		c.AdmissionMode = other.AdmissionMode
	}
	if other.JaegerEndpoint != "" {
		c.JaegerEndpoint = other.JaegerEndpoint
	}
}
