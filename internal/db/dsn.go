package db

import (
	"fmt"
	"net/url"
	"strings"
)

// WithDBName points dsn at database, keeping credentials, host and query
// options. A DSN without a scheme is read as postgres://.
func WithDBName(dsn, database string) (string, error) {
	if strings.TrimSpace(dsn) == "" {
		return "", fmt.Errorf("empty DSN")
	}
	database = strings.TrimPrefix(database, "/")
	if database == "" || strings.Contains(database, "/") {
		return "", fmt.Errorf("invalid database name %q", database)
	}
	if !strings.Contains(dsn, "://") {
		dsn = "postgres://" + dsn
	}
	u, err := url.Parse(dsn)
	if err != nil {
		return "", fmt.Errorf("parse DSN: %w", err)
	}
	switch u.Scheme {
	case "postgres", "postgresql":
	default:
		return "", fmt.Errorf("unsupported DSN scheme %q", u.Scheme)
	}
	u.Path = "/" + database
	return u.String(), nil
}
