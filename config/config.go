package config

import (
	"log"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the overall application configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Policy     PolicyConfig     `yaml:"policy"`
	Push       PushConfig       `yaml:"push"`
	WorkerPool WorkerPoolConfig `yaml:"worker_pool"`
}

// ServerConfig holds the server-related configuration.
type ServerConfig struct {
	Port               int    `yaml:"port"`
	RequestIPHeader    string `yaml:"request_ip_header"`
	RateLimitPerMinute int    `yaml:"rate_limit_per_minute"`
	CacheTTLSeconds    int    `yaml:"cache_ttl_seconds"`
	JWTSecret          string `yaml:"jwt_secret"`
}

// PolicyConfig holds the institutional reservation rules.
type PolicyConfig struct {
	AllowedEmailDomains       []string      `yaml:"allowed_email_domains"`
	MaxDurationDays           int           `yaml:"max_duration_days"`
	MaxDuration               time.Duration `yaml:"-"` // Derived from MaxDurationDays
	MaxReservationsPerUser    int           `yaml:"max_reservations_per_user"`
	CancellationDeadlineHours int           `yaml:"cancellation_deadline_hours"`
	CancellationDeadline      time.Duration `yaml:"-"` // Derived from CancellationDeadlineHours
	AutoApproveSingleDay      *bool         `yaml:"auto_approve_single_day"`
	Timezone                  string        `yaml:"timezone"`
}

// PushConfig holds the VAPID keys for web push notifications.
type PushConfig struct {
	PublicKey  string `yaml:"vapid_public_key"`
	PrivateKey string `yaml:"vapid_private_key"`
	Subject    string `yaml:"subject"`
	TTL        int    `yaml:"ttl"`
}

// WorkerPoolConfig holds the configuration for the notification worker pool.
type WorkerPoolConfig struct {
	Size int `yaml:"size"`
}

// DatabaseConfig holds the database connection configuration.
type DatabaseConfig struct {
	DSN                    string `yaml:"dsn"`
	MaxOpenConns           int    `yaml:"max_open_conns"`
	MaxIdleConns           int    `yaml:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `yaml:"conn_max_lifetime_minutes"`
}

// AutoApprove reports whether conflict-free single-day reservations skip
// administrative review. Enabled unless explicitly turned off.
func (p *PolicyConfig) AutoApprove() bool {
	return p.AutoApproveSingleDay == nil || *p.AutoApproveSingleDay
}

// Load reads the configuration from the given path.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg Config
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, err
	}

	if cfg.Server.RateLimitPerMinute <= 0 {
		cfg.Server.RateLimitPerMinute = 60
	}

	if cfg.Server.CacheTTLSeconds <= 0 {
		cfg.Server.CacheTTLSeconds = 300
	}

	if len(cfg.Policy.AllowedEmailDomains) == 0 {
		cfg.Policy.AllowedEmailDomains = []string{"uca.ma", "uca.ac.ma"}
	}

	if cfg.Policy.MaxDurationDays <= 0 {
		cfg.Policy.MaxDurationDays = 7
	}
	cfg.Policy.MaxDuration = time.Duration(cfg.Policy.MaxDurationDays) * 24 * time.Hour

	if cfg.Policy.MaxReservationsPerUser <= 0 {
		cfg.Policy.MaxReservationsPerUser = 5
	}

	if cfg.Policy.CancellationDeadlineHours <= 0 {
		cfg.Policy.CancellationDeadlineHours = 12
	}
	cfg.Policy.CancellationDeadline = time.Duration(cfg.Policy.CancellationDeadlineHours) * time.Hour

	if cfg.Policy.Timezone == "" {
		cfg.Policy.Timezone = "Africa/Casablanca"
	}

	if cfg.Push.TTL <= 0 {
		cfg.Push.TTL = 3600
	}

	if cfg.WorkerPool.Size <= 0 {
		log.Printf("worker_pool.size is not set or invalid; defaulting to 1")
		cfg.WorkerPool.Size = 1
	}

	return &cfg, nil
}
