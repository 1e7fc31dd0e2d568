package activity

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/matthewbaird/adbatch/internal/types"
)

// Store is the interface for reading and writing activity entries.
type Store interface {
	// WriteEntries writes one or more entries (one event fans out to many).
	// Writing an entry twice is a no-op.
	WriteEntries(ctx context.Context, entries []Entry) error

	// QueryByBatch returns the batch-level entries of one batch.
	QueryByBatch(ctx context.Context, platform, advertiserID string, opts QueryOptions) (Page, error)

	// QueryByOperation returns the entries indexed under one client id.
	QueryByOperation(ctx context.Context, platform, advertiserID, clientID string, opts QueryOptions) (Page, error)
}

// SQLiteStore implements Store on a SQLite table. It can share the database
// handle of the batch persister.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLiteStore.
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// CreateTable creates the activity_entries table and its index.
func (s *SQLiteStore) CreateTable(ctx context.Context) error {
	for _, stmt := range []string{`
		CREATE TABLE IF NOT EXISTS activity_entries (
			event_id      TEXT NOT NULL,
			event_type    TEXT NOT NULL,
			occurred_at   INTEGER NOT NULL,
			platform      TEXT NOT NULL,
			advertiser_id TEXT NOT NULL,
			client_id     TEXT NOT NULL,
			entity_type   TEXT NOT NULL,
			role          TEXT NOT NULL,
			summary       TEXT NOT NULL,
			payload       BLOB,
			PRIMARY KEY (event_id, client_id)
		)`, `
		CREATE INDEX IF NOT EXISTS idx_activity_batch_time
			ON activity_entries (platform, advertiser_id, client_id, occurred_at DESC)`,
	} {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("creating activity_entries table: %w", err)
		}
	}
	return nil
}

// WriteEntries inserts entries in one statement.
func (s *SQLiteStore) WriteEntries(ctx context.Context, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}

	var b strings.Builder
	b.WriteString(`INSERT INTO activity_entries (
		event_id, event_type, occurred_at, platform, advertiser_id,
		client_id, entity_type, role, summary, payload
	) VALUES `)

	args := make([]any, 0, len(entries)*10)
	for i, e := range entries {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString("(?, ?, ?, ?, ?, ?, ?, ?, ?, ?)")
		args = append(args,
			e.EventID, e.EventType, e.OccurredAt.UnixNano(), e.Platform, e.AdvertiserID,
			e.ClientID, string(e.EntityType), e.Role, e.Summary, []byte(e.Payload),
		)
	}

	b.WriteString(" ON CONFLICT DO NOTHING")
	if _, err := s.db.ExecContext(ctx, b.String(), args...); err != nil {
		return fmt.Errorf("writing activity entries: %w", err)
	}
	return nil
}

func (s *SQLiteStore) QueryByBatch(ctx context.Context, platform, advertiserID string, opts QueryOptions) (Page, error) {
	return s.query(ctx, platform, advertiserID, "", opts)
}

func (s *SQLiteStore) QueryByOperation(ctx context.Context, platform, advertiserID, clientID string, opts QueryOptions) (Page, error) {
	return s.query(ctx, platform, advertiserID, clientID, opts)
}

func (s *SQLiteStore) query(ctx context.Context, platform, advertiserID, clientID string, opts QueryOptions) (Page, error) {
	limit := opts.limit()

	conditions := []string{"platform = ?", "advertiser_id = ?", "client_id = ?"}
	args := []any{platform, advertiserID, clientID}

	if opts.Since != nil {
		conditions = append(conditions, "occurred_at >= ?")
		args = append(args, opts.Since.UnixNano())
	}
	if opts.Until != nil {
		conditions = append(conditions, "occurred_at <= ?")
		args = append(args, opts.Until.UnixNano())
	}
	if len(opts.EventTypes) > 0 {
		placeholders := make([]string, len(opts.EventTypes))
		for i, et := range opts.EventTypes {
			placeholders[i] = "?"
			args = append(args, et)
		}
		conditions = append(conditions, fmt.Sprintf("event_type IN (%s)", strings.Join(placeholders, ", ")))
	}
	where := strings.Join(conditions, " AND ")

	// The total ignores the cursor so it stays stable across pages.
	var page Page
	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM activity_entries WHERE "+where, args...).Scan(&page.TotalCount); err != nil {
		return Page{}, fmt.Errorf("counting activity entries: %w", err)
	}

	if cursor, ok := opts.cursor(); ok {
		where += " AND occurred_at < ?"
		args = append(args, cursor.UnixNano())
	}
	args = append(args, limit+1) // fetch one extra for cursor

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(
		`SELECT event_id, event_type, occurred_at, platform, advertiser_id,
			client_id, entity_type, role, summary, payload
		FROM activity_entries
		WHERE %s
		ORDER BY occurred_at DESC
		LIMIT ?`, where), args...)
	if err != nil {
		return Page{}, fmt.Errorf("querying activity entries: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var e Entry
		var occurred int64
		var entityType string
		var payload []byte
		if err := rows.Scan(
			&e.EventID, &e.EventType, &occurred, &e.Platform, &e.AdvertiserID,
			&e.ClientID, &entityType, &e.Role, &e.Summary, &payload,
		); err != nil {
			return Page{}, fmt.Errorf("scanning activity entry: %w", err)
		}
		e.OccurredAt = time.Unix(0, occurred).UTC()
		e.EntityType = types.EntityType(entityType)
		if len(payload) > 0 {
			e.Payload = payload
		}
		page.Entries = append(page.Entries, e)
	}
	if err := rows.Err(); err != nil {
		return Page{}, fmt.Errorf("reading activity entries: %w", err)
	}

	paginate(&page, limit)
	return page, nil
}

// paginate trims the extra lookahead entry and sets the next cursor.
func paginate(page *Page, limit int) {
	if len(page.Entries) > limit {
		page.Entries = page.Entries[:limit]
		page.NextCursor = page.Entries[len(page.Entries)-1].OccurredAt.Format(time.RFC3339Nano)
	}
}
