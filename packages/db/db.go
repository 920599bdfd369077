// Package db persists hitfetch session state in SQLite: stored credentials
// keyed by origin and the last cookie jar snapshot.
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	// SQLite driver
	_ "github.com/mattn/go-sqlite3"

	"github.com/abdul-hamid-achik/hitfetch/packages/auth/credentials"
)

const schema = `
CREATE TABLE IF NOT EXISTS credentials (
	origin_key         TEXT PRIMARY KEY,
	id                 TEXT NOT NULL,
	authentication_url TEXT NOT NULL,
	authenticate_url   TEXT NOT NULL DEFAULT '',
	refresh_url        TEXT NOT NULL DEFAULT '',
	access_token       TEXT NOT NULL DEFAULT '',
	refresh_token      TEXT NOT NULL DEFAULT '',
	token_type         TEXT NOT NULL DEFAULT '',
	updated_at         INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS cookies (
	id         INTEGER PRIMARY KEY CHECK (id = 1),
	data       TEXT NOT NULL,
	updated_at INTEGER NOT NULL
);`

// Client is a session database. It implements credentials.Persister.
type Client struct {
	db           *sql.DB
	dataSource   string
	queryTimeout time.Duration
}

var _ credentials.Persister = (*Client)(nil)

// NewClient opens the session database named by connectionString and
// creates its tables. A bare path is treated as a SQLite file.
func NewClient(connectionString string) (*Client, error) {
	driver, dsn, err := parseConnectionString(connectionString)
	if err != nil {
		return nil, err
	}

	if dsn != ":memory:" && !strings.HasPrefix(dsn, "file:") {
		if dir := filepath.Dir(dsn); dir != "." {
			if err := os.MkdirAll(dir, 0o700); err != nil {
				return nil, fmt.Errorf("failed to create session directory: %w", err)
			}
		}
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite serializes writers anyway, and :memory: databases are per connection.
	db.SetMaxOpenConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &Client{
		db:           db,
		dataSource:   dsn,
		queryTimeout: 30 * time.Second,
	}, nil
}

// Close closes the database connection
func (c *Client) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// Path returns the data source the client was opened with.
func (c *Client) Path() string {
	return c.dataSource
}

func (c *Client) ctx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), c.queryTimeout)
}

// SaveCredential inserts or replaces the record stored under key.
func (c *Client) SaveCredential(key string, rec *credentials.Record) error {
	ctx, cancel := c.ctx()
	defer cancel()

	_, err := c.db.ExecContext(ctx, `
		INSERT INTO credentials (origin_key, id, authentication_url, authenticate_url, refresh_url,
			access_token, refresh_token, token_type, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(origin_key) DO UPDATE SET
			id = excluded.id,
			authentication_url = excluded.authentication_url,
			authenticate_url = excluded.authenticate_url,
			refresh_url = excluded.refresh_url,
			access_token = excluded.access_token,
			refresh_token = excluded.refresh_token,
			token_type = excluded.token_type,
			updated_at = excluded.updated_at`,
		key, rec.ID, rec.AuthenticationURL, rec.AuthenticateURL, rec.RefreshURL,
		rec.AccessToken, rec.RefreshToken, rec.TokenType, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to save credential: %w", err)
	}
	return nil
}

// DeleteCredential removes the record stored under key, if any.
func (c *Client) DeleteCredential(key string) error {
	ctx, cancel := c.ctx()
	defer cancel()

	if _, err := c.db.ExecContext(ctx, `DELETE FROM credentials WHERE origin_key = ?`, key); err != nil {
		return fmt.Errorf("failed to delete credential: %w", err)
	}
	return nil
}

// WipeCredentials removes every stored record.
func (c *Client) WipeCredentials() error {
	ctx, cancel := c.ctx()
	defer cancel()

	if _, err := c.db.ExecContext(ctx, `DELETE FROM credentials`); err != nil {
		return fmt.Errorf("failed to wipe credentials: %w", err)
	}
	return nil
}

// LoadCredentials returns every stored record keyed by origin key, ready for
// credentials.WithData.
func (c *Client) LoadCredentials() (map[string]*credentials.Record, error) {
	ctx, cancel := c.ctx()
	defer cancel()

	rows, err := c.db.QueryContext(ctx, `
		SELECT origin_key, id, authentication_url, authenticate_url, refresh_url,
			access_token, refresh_token, token_type
		FROM credentials`)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	out := make(map[string]*credentials.Record)
	for rows.Next() {
		var key string
		rec := &credentials.Record{}
		if err := rows.Scan(&key, &rec.ID, &rec.AuthenticationURL, &rec.AuthenticateURL, &rec.RefreshURL,
			&rec.AccessToken, &rec.RefreshToken, &rec.TokenType); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		out[key] = rec
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return out, nil
}

// SaveCookies replaces the stored cookie jar snapshot.
func (c *Client) SaveCookies(data string) error {
	ctx, cancel := c.ctx()
	defer cancel()

	_, err := c.db.ExecContext(ctx, `
		INSERT INTO cookies (id, data, updated_at) VALUES (1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		data, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to save cookies: %w", err)
	}
	return nil
}

// LoadCookies returns the stored cookie jar snapshot, or "" when none was saved.
func (c *Client) LoadCookies() (string, error) {
	ctx, cancel := c.ctx()
	defer cancel()

	var data string
	err := c.db.QueryRowContext(ctx, `SELECT data FROM cookies WHERE id = 1`).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to load cookies: %w", err)
	}
	return data, nil
}

// parseConnectionString parses a connection string into driver and DSN
// Supported formats:
// - sqlite://path/to/session.db
// - sqlite:./session.db
// - path/to/session.db
func parseConnectionString(connStr string) (driver string, dsn string, err error) {
	connStr = strings.TrimSpace(connStr)
	if connStr == "" {
		return "", "", fmt.Errorf("empty connection string")
	}

	if strings.HasPrefix(connStr, "sqlite://") {
		return "sqlite3", strings.TrimPrefix(connStr, "sqlite://"), nil
	}
	if strings.HasPrefix(connStr, "sqlite:") {
		return "sqlite3", strings.TrimPrefix(connStr, "sqlite:"), nil
	}
	if i := strings.Index(connStr, "://"); i > 0 {
		return "", "", fmt.Errorf("unsupported database scheme: %s", connStr[:i])
	}
	return "sqlite3", connStr, nil
}
