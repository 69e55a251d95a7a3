package store

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx driver
)

// Open connects to Postgres through the pgx stdlib driver and pings it.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql.Open: %w", err)
	}
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxIdleTime(5 * time.Minute)

	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

// SafeDSNSummary describes a DSN for logs without the password.
func SafeDSNSummary(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil {
		return "dsn: parse error"
	}
	user := u.User.Username()
	host := u.Host
	port := ""
	if h, p, err := net.SplitHostPort(u.Host); err == nil {
		host, port = h, p
	}
	db := strings.TrimPrefix(u.Path, "/")
	if port == "" {
		return fmt.Sprintf("host=%s db=%s user=%s", host, db, user)
	}
	return fmt.Sprintf("host=%s port=%s db=%s user=%s", host, port, db, user)
}
