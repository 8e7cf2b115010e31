package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net"
	neturl "net/url"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrMissingSecret aborts startup: sessions cannot be signed without APP_SECRET.
var ErrMissingSecret = errors.New("supply an app secret first (APP_SECRET)")

// Load reads the YAML file at configPath (optional when it is the default path), applies
// environment overrides and validates the result.
func Load(configPath string) (*AppConfig, error) {
	path := strings.TrimSpace(configPath)
	if path == "" {
		path = DefaultConfigPath
	}

	cfg := defaultAppConfig()
	content, err := os.ReadFile(path)
	switch {
	case err == nil:
		decoder := yaml.NewDecoder(bytes.NewReader(content))
		decoder.KnownFields(true)
		if err := decoder.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("parse config file %q: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist) && path == DefaultConfigPath:
	default:
		return nil, fmt.Errorf("read config file %q: %w", path, err)
	}

	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}
	normalize(&cfg)
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func defaultAppConfig() AppConfig {
	return AppConfig{
		Port:          defaultPort,
		Env:           defaultEnv,
		ElectricURL:   defaultElectricURL,
		Database:      DatabaseConfig{Driver: defaultDBDriver},
		PublicDir:     defaultPublicDir,
		AdminPassword: defaultAdminPassword,
		Bruteforce: BruteforceConfig{
			Window:        defaultBruteforceWindow,
			UserThreshold: defaultUserThreshold,
			IPThreshold:   defaultIPThreshold,
		},
		RateLimit: RateLimitConfig{
			Max:    defaultRateLimitMax,
			Window: defaultRateLimitWindow,
		},
	}
}

func applyEnv(cfg *AppConfig) error {
	if v := env("APP_SECRET"); v != "" {
		cfg.AppSecret = v
	}
	if v := env("ELECTRIC_URL"); v != "" {
		cfg.ElectricURL = v
	}
	if v := env("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid PORT %q: %w", v, err)
		}
		cfg.Port = port
	}
	if v := env("NODE_ENV"); v != "" {
		cfg.Env = v
	}
	if v := env("DATABASE_DRIVER"); v != "" {
		cfg.Database.Driver = v
	}
	if v := env("DATABASE_URL"); v != "" {
		cfg.Database.DSN = v
	}
	if v := env("REDIS_URL"); v != "" {
		cfg.RedisURL = v
	}
	if v := env("ALLOWED_ORIGINS"); v != "" {
		cfg.AllowedOrigins = splitList(v)
	}
	if v := env("TRUSTED_PROXIES"); v != "" {
		cfg.TrustedProxies = splitList(v)
	}
	if v := env("PUBLIC_DIR"); v != "" {
		cfg.PublicDir = v
	}
	if v := env("LOG_DIR"); v != "" {
		cfg.LogDir = v
	}
	if v := env("ADMIN_PASSWORD"); v != "" {
		cfg.AdminPassword = v
	}
	return nil
}

func env(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func normalize(cfg *AppConfig) {
	cfg.Env = normalizeEnv(cfg.Env)
	cfg.AppSecret = strings.TrimSpace(cfg.AppSecret)
	cfg.ElectricURL = strings.TrimRight(strings.TrimSpace(cfg.ElectricURL), "/")
	if cfg.ElectricURL == "" {
		cfg.ElectricURL = defaultElectricURL
	}
	cfg.Database.Driver = normalizeDriver(cfg.Database.Driver)
	cfg.RedisURL = strings.TrimSpace(cfg.RedisURL)
	cfg.AllowedOrigins = normalizeOrigins(cfg.AllowedOrigins)
	cfg.TrustedProxies = normalizeOrigins(cfg.TrustedProxies)
	cfg.PublicDir = resolveDir(cfg.PublicDir)
	cfg.LogDir = resolveDir(cfg.LogDir)
	cfg.Bruteforce = normalizeBruteforce(cfg.Bruteforce)
	if cfg.RateLimit.Window <= 0 {
		cfg.RateLimit.Window = defaultRateLimitWindow
	}
	if strings.TrimSpace(cfg.AdminPassword) == "" {
		cfg.AdminPassword = defaultAdminPassword
	}
}

func validate(cfg *AppConfig) error {
	if cfg.AppSecret == "" {
		return ErrMissingSecret
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return fmt.Errorf("invalid port %d, expected 1-65535", cfg.Port)
	}
	if cfg.Env != EnvDevelopment && cfg.Env != EnvProduction {
		return fmt.Errorf("invalid env %q, expected %q or %q", cfg.Env, EnvDevelopment, EnvProduction)
	}
	if cfg.Database.Driver != DriverPostgres && cfg.Database.Driver != DriverMySQL {
		return fmt.Errorf("unsupported database driver %q", cfg.Database.Driver)
	}
	for _, p := range cfg.TrustedProxies {
		if net.ParseIP(p) == nil {
			if _, _, err := net.ParseCIDR(p); err != nil {
				return fmt.Errorf("invalid trusted proxy %q, expected an ip or cidr", p)
			}
		}
	}
	u, err := neturl.Parse(cfg.ElectricURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid electric_url %q", cfg.ElectricURL)
	}
	return nil
}
