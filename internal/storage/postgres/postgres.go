package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	_ "github.com/lib/pq"
)

// AppendTimeout bounds a single event insert.
const AppendTimeout = 5 * time.Second

// ErrGraphNotFound is returned by LoadGraph for an unknown name.
var ErrGraphNotFound = errors.New("graph not found")

// EventRow represents an event stored in Postgres.
type EventRow struct {
	EventID   int64                  `json:"event_id"`
	Timestamp time.Time              `json:"ts"`
	Level     string                 `json:"level"`
	Event     string                 `json:"event"`
	Message   *string                `json:"msg,omitempty"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
	StudioID  string                 `json:"studio_id"`
}

// GraphRow is a saved graph description.
type GraphRow struct {
	Name      string          `json:"name"`
	Body      json.RawMessage `json:"body"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Client manages the Postgres connection for event and graph storage.
type Client struct {
	db       *sql.DB
	studioID string
}

// ConnString builds a lib/pq connection string from the PG* environment.
func ConnString() string {
	host := getEnv("PGHOST", "127.0.0.1")
	port := getEnv("PGPORT", "5432")
	user := getEnv("PGUSER", "cadence")
	dbname := getEnv("PGDATABASE", "cadence")
	sslmode := getEnv("PGSSLMODE", "disable")
	password := os.Getenv("PGPASSWORD")

	if password != "" {
		return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
			host, port, user, password, dbname, sslmode)
	}
	return fmt.Sprintf("host=%s port=%s user=%s dbname=%s sslmode=%s",
		host, port, user, dbname, sslmode)
}

// New connects using environment variables and creates the tables.
func New(studioID string) (*Client, error) {
	db, err := sql.Open("postgres", ConnString())
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	client := &Client{
		db:       db,
		studioID: studioID,
	}

	if err := client.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return client, nil
}

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func (c *Client) createTables() error {
	query := `
		CREATE TABLE IF NOT EXISTS events (
			event_id  BIGSERIAL PRIMARY KEY,
			ts        TIMESTAMPTZ NOT NULL,
			level     TEXT NOT NULL,
			event     TEXT NOT NULL,
			msg       TEXT,
			fields    JSONB,
			studio_id TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_events_ts ON events(ts DESC);
		CREATE INDEX IF NOT EXISTS idx_events_studio_id ON events(studio_id);

		CREATE TABLE IF NOT EXISTS graphs (
			studio_id  TEXT NOT NULL,
			name       TEXT NOT NULL,
			body       JSONB NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL,
			PRIMARY KEY (studio_id, name)
		);
	`
	_, err := c.db.Exec(query)
	return err
}

// Append inserts an event into the database.
func (c *Client) Append(ts time.Time, level, event, msg string, fields map[string]interface{}) error {
	var fieldsJSON []byte
	var err error
	if fields != nil {
		fieldsJSON, err = json.Marshal(fields)
		if err != nil {
			return fmt.Errorf("failed to marshal fields: %w", err)
		}
	}

	var msgPtr *string
	if msg != "" {
		msgPtr = &msg
	}

	query := `
		INSERT INTO events (ts, level, event, msg, fields, studio_id)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	ctx, cancel := context.WithTimeout(context.Background(), AppendTimeout)
	defer cancel()
	_, err = c.db.ExecContext(ctx, query, ts, level, event, msgPtr, fieldsJSON, c.studioID)
	return err
}

// Query returns the last N events from the database in descending order by timestamp.
func (c *Client) Query(limit int) ([]EventRow, error) {
	if limit <= 0 {
		limit = 200
	}
	if limit > 10000 {
		limit = 10000
	}

	query := `
		SELECT event_id, ts, level, event, msg, fields, studio_id
		FROM events
		WHERE studio_id = $1
		ORDER BY ts DESC
		LIMIT $2
	`
	rows, err := c.db.Query(query, c.studioID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []EventRow
	for rows.Next() {
		var e EventRow
		var fieldsJSON []byte
		var msg sql.NullString

		if err := rows.Scan(&e.EventID, &e.Timestamp, &e.Level, &e.Event, &msg, &fieldsJSON, &e.StudioID); err != nil {
			return nil, err
		}

		if msg.Valid {
			e.Message = &msg.String
		}
		if len(fieldsJSON) > 0 {
			if err := json.Unmarshal(fieldsJSON, &e.Fields); err != nil {
				return nil, fmt.Errorf("failed to unmarshal fields: %w", err)
			}
		}

		events = append(events, e)
	}

	return events, rows.Err()
}

// SaveGraph upserts a graph description under name.
func (c *Client) SaveGraph(ctx context.Context, name string, body []byte) error {
	query := `
		INSERT INTO graphs (studio_id, name, body, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (studio_id, name) DO UPDATE
		SET body = EXCLUDED.body, updated_at = EXCLUDED.updated_at
	`
	_, err := c.db.ExecContext(ctx, query, c.studioID, name, body, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("save graph %s: %w", name, err)
	}
	return nil
}

// LoadGraph returns the body of a saved graph.
func (c *Client) LoadGraph(ctx context.Context, name string) ([]byte, error) {
	var body []byte
	err := c.db.QueryRowContext(ctx,
		`SELECT body FROM graphs WHERE studio_id = $1 AND name = $2`,
		c.studioID, name,
	).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrGraphNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("load graph %s: %w", name, err)
	}
	return body, nil
}

// ListGraphs returns saved graphs, most recently updated first.
func (c *Client) ListGraphs(ctx context.Context) ([]GraphRow, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT name, body, updated_at FROM graphs WHERE studio_id = $1 ORDER BY updated_at DESC`,
		c.studioID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []GraphRow
	for rows.Next() {
		var g GraphRow
		if err := rows.Scan(&g.Name, &g.Body, &g.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

// Close closes the database connection.
func (c *Client) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}
