package config

import "strings"

func normalizeOrigins(origins []string) []string {
	out := make([]string, 0, len(origins))
	for _, origin := range origins {
		trimmed := strings.TrimRight(strings.TrimSpace(origin), "/")
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func splitList(raw string) []string {
	return normalizeOrigins(strings.Split(raw, ","))
}

func normalizeEnv(env string) string {
	trimmed := strings.ToLower(strings.TrimSpace(env))
	if trimmed == "" {
		return defaultEnv
	}
	return trimmed
}

func normalizeDriver(driver string) string {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "", "postgres", "postgresql", "pg":
		return DriverPostgres
	case "mysql", "mariadb":
		return DriverMySQL
	default:
		return strings.ToLower(strings.TrimSpace(driver))
	}
}

func normalizeBruteforce(b BruteforceConfig) BruteforceConfig {
	if b.Window <= 0 {
		b.Window = defaultBruteforceWindow
	}
	if b.UserThreshold <= 0 {
		b.UserThreshold = defaultUserThreshold
	}
	if b.IPThreshold <= 0 {
		b.IPThreshold = defaultIPThreshold
	}
	return b
}
