package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/i474232898/weatherservice/internal/config"
)

// Open connects to the configured SQL database and checks connectivity.
func Open(ctx context.Context, cfg config.Database) (*sqlx.DB, error) {
	dsn, err := buildDSN(cfg)
	if err != nil {
		return nil, err
	}

	db, err := sqlx.Open(cfg.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("db open: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns >= 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	// Every connection to :memory: is a separate database.
	if cfg.Driver == "sqlite3" && isMemorySQLite(dsn) {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		db.SetConnMaxLifetime(0)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}

	return db, nil
}

func buildDSN(cfg config.Database) (string, error) {
	switch cfg.Driver {
	case "mysql":
		return mysqlDSN(cfg.DSN), nil
	case "postgres":
		return cfg.DSN, nil
	case "sqlite3":
		if cfg.DSN != "" {
			return cfg.DSN, nil
		}
		return sqliteDSN(cfg.SQLitePath)
	default:
		return "", fmt.Errorf("unsupported driver %q", cfg.Driver)
	}
}

// mysqlDSN makes DATETIME columns scan into time.Time in UTC.
func mysqlDSN(dsn string) string {
	var params []string
	if !strings.Contains(dsn, "parseTime=") {
		params = append(params, "parseTime=true")
	}
	if !strings.Contains(dsn, "loc=") {
		params = append(params, "loc=UTC")
	}
	if len(params) == 0 {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + strings.Join(params, "&")
}

func sqliteDSN(path string) (string, error) {
	params := []string{
		"_foreign_keys=on",
		"_busy_timeout=5000",
	}
	if path == ":memory:" {
		return "file::memory:?" + strings.Join(params, "&"), nil
	}

	dir := filepath.Dir(path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("mkdir %s: %w", dir, err)
		}
	}
	params = append(params, "_journal_mode=WAL")

	if strings.HasPrefix(path, "file:") {
		sep := "?"
		if strings.Contains(path, "?") {
			sep = "&"
		}
		return path + sep + strings.Join(params, "&"), nil
	}
	return fmt.Sprintf("file:%s?%s", path, strings.Join(params, "&")), nil
}

func isMemorySQLite(dsn string) bool {
	return strings.Contains(dsn, ":memory:") || strings.Contains(dsn, "mode=memory")
}
