package config

import (
	"fmt"
	neturl "net/url"
	"strings"

	"github.com/go-sql-driver/mysql"
)

// DSNValue returns the connection string for the configured driver. MySQL accepts either a
// native driver DSN or a mysql:// URL and always has parseTime and clientFoundRows enabled.
func (c DatabaseConfig) DSNValue() (string, error) {
	dsn := strings.TrimSpace(c.DSN)
	switch c.Driver {
	case DriverPostgres:
		if dsn == "" {
			return defaultPostgresDSN, nil
		}
		return dsn, nil
	case DriverMySQL:
		if dsn == "" {
			return "", fmt.Errorf("database.dsn is required for driver %q", c.Driver)
		}
		return mysqlDSN(dsn)
	default:
		return "", fmt.Errorf("unsupported database driver %q", c.Driver)
	}
}

func mysqlDSN(raw string) (string, error) {
	var cfg *mysql.Config
	if strings.HasPrefix(raw, "mysql://") {
		u, err := neturl.Parse(raw)
		if err != nil {
			return "", fmt.Errorf("invalid mysql url: %w", err)
		}
		cfg = mysql.NewConfig()
		cfg.Net = "tcp"
		cfg.Addr = u.Host
		if u.Port() == "" {
			cfg.Addr = u.Host + ":3306"
		}
		cfg.DBName = strings.TrimPrefix(u.Path, "/")
		if u.User != nil {
			cfg.User = u.User.Username()
			cfg.Passwd, _ = u.User.Password()
		}
	} else {
		parsed, err := mysql.ParseDSN(raw)
		if err != nil {
			return "", fmt.Errorf("invalid mysql dsn: %w", err)
		}
		cfg = parsed
	}
	cfg.ParseTime = true
	// RowsAffected counts matched rows, as it does on postgres
	cfg.ClientFoundRows = true
	return cfg.FormatDSN(), nil
}
