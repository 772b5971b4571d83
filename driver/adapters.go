package driver

import (
	"database/sql"
	"fmt"
	"net/url"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
)

// JDBC-style URLs are accepted for every adapter; the "jdbc:" prefix is
// dropped and the remainder handled in the Go driver's own format.
func stripJDBC(rawURL string) string {
	return strings.TrimPrefix(strings.TrimSpace(rawURL), "jdbc:")
}

func openMySQL(rawURL, user, password string) (*sql.DB, error) {
	cfg, err := mysqlConfig(rawURL, user, password)
	if err != nil {
		return nil, err
	}
	connector, err := mysql.NewConnector(cfg)
	if err != nil {
		return nil, err
	}
	return sql.OpenDB(connector), nil
}

// mysqlConfig accepts either a mysql:// URL or a native go-sql-driver DSN.
// Query parameters of mysql:// URLs are JDBC options and are not forwarded,
// since the Go driver would send them as session variables.
func mysqlConfig(rawURL, user, password string) (*mysql.Config, error) {
	raw := stripJDBC(rawURL)

	var cfg *mysql.Config
	if strings.HasPrefix(raw, "mysql://") {
		u, err := url.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("parse mysql url: %w", err)
		}
		cfg = mysql.NewConfig()
		cfg.Net = "tcp"
		cfg.Addr = u.Host
		cfg.DBName = strings.TrimPrefix(u.Path, "/")
	} else {
		parsed, err := mysql.ParseDSN(raw)
		if err != nil {
			return nil, fmt.Errorf("parse mysql dsn: %w", err)
		}
		cfg = parsed
	}

	cfg.User = user
	cfg.Passwd = password
	return cfg, nil
}

func openPostgres(rawURL, user, password string) (*sql.DB, error) {
	cfg, err := postgresConfig(rawURL, user, password)
	if err != nil {
		return nil, err
	}
	return stdlib.OpenDB(*cfg), nil
}

func postgresConfig(rawURL, user, password string) (*pgx.ConnConfig, error) {
	cfg, err := pgx.ParseConfig(stripJDBC(rawURL))
	if err != nil {
		return nil, fmt.Errorf("parse postgres url: %w", err)
	}
	if user != "" {
		cfg.User = user
	}
	cfg.Password = password
	return cfg, nil
}

// SQLite has no credentials; user and password are ignored.
func openSQLite(rawURL, _, _ string) (*sql.DB, error) {
	return sql.Open("sqlite3", sqlitePath(rawURL))
}

func sqlitePath(rawURL string) string {
	return strings.TrimPrefix(stripJDBC(rawURL), "sqlite:")
}
