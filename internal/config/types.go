package config

import "time"

// AppConfig holds runtime startup configuration loaded from YAML and the environment.
type AppConfig struct {
	Port           int              `yaml:"port"`
	Env            string           `yaml:"env"` // "development" | "production"
	AppSecret      string           `yaml:"app_secret"`
	ElectricURL    string           `yaml:"electric_url"`
	Database       DatabaseConfig   `yaml:"database"`
	RedisURL       string           `yaml:"redis_url"`
	AllowedOrigins []string         `yaml:"allowed_origins"`
	TrustedProxies []string         `yaml:"trusted_proxies"` // empty: the socket address is the client ip
	PublicDir      string           `yaml:"public_dir"`
	LogDir         string           `yaml:"log_dir"` // empty keeps logs on stdout only
	AdminPassword  string           `yaml:"admin_password"`
	Bruteforce     BruteforceConfig `yaml:"bruteforce"`
	RateLimit      RateLimitConfig  `yaml:"rate_limit"`
}

type DatabaseConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

// BruteforceConfig tunes the lockout applied to privileged upgrade attempts.
type BruteforceConfig struct {
	Window        time.Duration `yaml:"window"`
	UserThreshold int           `yaml:"user_threshold"`
	IPThreshold   int           `yaml:"ip_threshold"`
}

// RateLimitConfig is the per-IP request budget. Max <= 0 disables limiting.
type RateLimitConfig struct {
	Max    int           `yaml:"max"`
	Window time.Duration `yaml:"window"`
}

func (c *AppConfig) IsDev() bool { return c.Env != EnvProduction }

func (c *AppConfig) IsProduction() bool { return c.Env == EnvProduction }
