package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/sifan077/SafeURL/config"
	"gorm.io/gorm"
)

const (
	connectTimeout  = 5 * time.Second
	applicationName = "safeurl"
)

// DB is the link store's single connection pool. Gorm borrows connections
// from Pool, so both see the same limits and session settings.
type DB struct {
	Pool *pgxpool.Pool
	Gorm *gorm.DB

	sqlDB *sql.DB
}

// Open connects to Postgres and fails if the server cannot be pinged.
// A positive statementTimeout is applied to every session.
func Open(ctx context.Context, cfg config.PostgresConfig, statementTimeout time.Duration) (*DB, error) {
	poolCfg, err := PoolConfig(cfg, statementTimeout)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("postgres: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}

	sqlDB := stdlib.OpenDBFromPool(pool)
	gormDB, err := openGorm(sqlDB)
	if err != nil {
		_ = sqlDB.Close()
		pool.Close()
		return nil, err
	}

	return &DB{Pool: pool, Gorm: gormDB, sqlDB: sqlDB}, nil
}

// Close releases the gorm handle before the pool it draws from.
func (db *DB) Close() {
	_ = db.sqlDB.Close()
	db.Pool.Close()
}

// PoolConfig translates cfg into pgx pool settings. Durations that do not
// parse are reported rather than ignored.
func PoolConfig(cfg config.PostgresConfig, statementTimeout time.Duration) (*pgxpool.Config, error) {
	poolCfg, err := pgxpool.ParseConfig(ConnString(cfg))
	if err != nil {
		return nil, fmt.Errorf("postgres: parse config: %w", err)
	}

	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}

	durations := []struct {
		name  string
		value string
		dst   *time.Duration
	}{
		{"max_conn_lifetime", cfg.MaxConnLifetime, &poolCfg.MaxConnLifetime},
		{"max_conn_idle_time", cfg.MaxConnIdleTime, &poolCfg.MaxConnIdleTime},
		{"health_check_period", cfg.HealthCheckPeriod, &poolCfg.HealthCheckPeriod},
	}
	for _, d := range durations {
		if d.value == "" {
			continue
		}
		parsed, err := time.ParseDuration(d.value)
		if err != nil {
			return nil, fmt.Errorf("postgres: %s: %w", d.name, err)
		}
		*d.dst = parsed
	}

	params := poolCfg.ConnConfig.RuntimeParams
	params["application_name"] = applicationName
	if statementTimeout > 0 {
		params["statement_timeout"] = strconv.FormatInt(statementTimeout.Milliseconds(), 10)
	}

	return poolCfg, nil
}

// ConnString renders cfg as a postgres:// URL, filling in local defaults.
func ConnString(cfg config.PostgresConfig) string {
	host := cfg.Host
	if host == "" {
		host = "localhost"
	}
	port := cfg.Port
	if port == 0 {
		port = 5432
	}
	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}

	u := url.URL{
		Scheme:   "postgres",
		Host:     net.JoinHostPort(host, strconv.Itoa(port)),
		Path:     "/" + cfg.Database,
		RawQuery: url.Values{"sslmode": {sslMode}}.Encode(),
	}
	if cfg.Password != "" {
		u.User = url.UserPassword(cfg.User, cfg.Password)
	} else {
		u.User = url.User(cfg.User)
	}
	return u.String()
}
