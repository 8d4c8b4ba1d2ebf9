package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/wcap/wcplib/pkg/graph"
)

const subscriptionColumns = "id, resource, resource_class, change_type, notification_url, client_state, expires_at"

// List returns every tracked subscription, ordered by ID.
func (s *Store) List(ctx context.Context) ([]graph.Record, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+subscriptionColumns+" FROM subscriptions ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var recs []graph.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}
	return recs, nil
}

// Get returns one subscription by ID.
func (s *Store) Get(ctx context.Context, id string) (*graph.Record, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+subscriptionColumns+" FROM subscriptions WHERE id = ?", id)

	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("subscription %s: %w", id, graph.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// Put inserts a subscription or replaces the existing row, bumping
// updated_at.
func (s *Store) Put(ctx context.Context, rec graph.Record) error {
	if rec.ID == "" {
		return fmt.Errorf("record needs a subscription ID")
	}

	expires := ""
	if !rec.Expiration.IsZero() {
		expires = graph.FormatTime(rec.Expiration)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO subscriptions (id, resource, resource_class, change_type, notification_url, client_state, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			resource         = excluded.resource,
			resource_class   = excluded.resource_class,
			change_type      = excluded.change_type,
			notification_url = excluded.notification_url,
			client_state     = excluded.client_state,
			expires_at       = excluded.expires_at,
			updated_at       = strftime('%Y-%m-%dT%H:%M:%SZ', 'now')`,
		rec.ID, rec.Resource, rec.Class, rec.ChangeType, rec.NotificationURL, rec.ClientState, expires,
	)
	if err != nil {
		return fmt.Errorf("store subscription %s: %w", rec.ID, err)
	}
	s.logger.Debug("stored subscription", slog.String("id", rec.ID))
	return nil
}

// Delete removes a subscription.
func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM subscriptions WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete subscription %s: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete subscription %s: %w", id, err)
	}
	if affected == 0 {
		return fmt.Errorf("subscription %s: %w", id, graph.ErrNotFound)
	}
	s.logger.Debug("deleted subscription", slog.String("id", id))
	return nil
}

// scanRecord reads one subscription row. It accepts both *sql.Row and
// *sql.Rows.
func scanRecord(row interface{ Scan(...any) error }) (graph.Record, error) {
	var rec graph.Record
	var expires string
	err := row.Scan(&rec.ID, &rec.Resource, &rec.Class, &rec.ChangeType,
		&rec.NotificationURL, &rec.ClientState, &expires)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return rec, err
		}
		return rec, fmt.Errorf("scan subscription: %w", err)
	}
	if expires != "" {
		rec.Expiration, err = time.Parse(time.RFC3339, expires)
		if err != nil {
			return rec, fmt.Errorf("parse expiration for %s: %w", rec.ID, err)
		}
	}
	return rec, nil
}
