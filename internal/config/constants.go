package config

import "time"

const (
	// DefaultConfigPath is used when --config is not provided. The file is optional.
	DefaultConfigPath = "config.yml"

	defaultPort          = 3000
	defaultEnv           = EnvDevelopment
	defaultElectricURL   = "http://electric:3000"
	defaultDBDriver      = DriverPostgres
	defaultPostgresDSN   = "host=localhost user=postgres password=postgres dbname=sandwich port=5432 sslmode=disable"
	defaultPublicDir     = "public"
	defaultAdminPassword = "changeme"

	defaultBruteforceWindow = 20 * time.Hour
	defaultUserThreshold    = 3
	defaultIPThreshold      = 21

	defaultRateLimitMax    = 50
	defaultRateLimitWindow = time.Second
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"

	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
)
