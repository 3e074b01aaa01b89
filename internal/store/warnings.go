package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// GetWarning returns the warning channel for (resource, tier). A channel that
// was never written reads as inactive.
func (s *Store) GetWarning(ctx context.Context, resource, tier string) (Warning, error) {
	ctx = ensureContext(ctx)
	var (
		w          = Warning{Resource: resource, Tier: tier}
		active     int
		sent       int
		updatedRaw string
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT active, message_sent, used_percent, updated_at FROM warnings WHERE resource = ? AND tier = ?",
		resource, tier,
	).Scan(&active, &sent, &w.UsedPercent, &updatedRaw)
	if errors.Is(err, sql.ErrNoRows) {
		return w, nil
	}
	if err != nil {
		return Warning{}, fmt.Errorf("get warning %s/%s: %w", resource, tier, err)
	}
	w.Active = active != 0
	w.MessageSent = sent != 0
	if updated, err := parseTimeString(updatedRaw); err == nil {
		w.UpdatedAt = updated
	}
	return w, nil
}

// UpsertWarning writes the warning channel.
func (s *Store) UpsertWarning(ctx context.Context, w Warning) error {
	ctx = ensureContext(ctx)
	w.UpdatedAt = s.now().UTC()
	return retryOnBusy(ctx, func() error {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO warnings (resource, tier, active, message_sent, used_percent, updated_at)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(resource, tier) DO UPDATE SET
				active = excluded.active,
				message_sent = excluded.message_sent,
				used_percent = excluded.used_percent,
				updated_at = excluded.updated_at`,
			w.Resource, w.Tier, boolToInt(w.Active), boolToInt(w.MessageSent), w.UsedPercent, formatTime(w.UpdatedAt),
		)
		if err != nil {
			return fmt.Errorf("upsert warning %s/%s: %w", w.Resource, w.Tier, err)
		}
		return nil
	})
}

// ListWarnings returns every warning channel ordered by resource and tier.
func (s *Store) ListWarnings(ctx context.Context) ([]Warning, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx,
		"SELECT resource, tier, active, message_sent, used_percent, updated_at FROM warnings ORDER BY resource, tier")
	if err != nil {
		return nil, fmt.Errorf("list warnings: %w", err)
	}
	defer rows.Close()
	var out []Warning
	for rows.Next() {
		var (
			w          Warning
			active     int
			sent       int
			updatedRaw string
		)
		if err := rows.Scan(&w.Resource, &w.Tier, &active, &sent, &w.UsedPercent, &updatedRaw); err != nil {
			return nil, fmt.Errorf("scan warning: %w", err)
		}
		w.Active = active != 0
		w.MessageSent = sent != 0
		if updated, err := parseTimeString(updatedRaw); err == nil {
			w.UpdatedAt = updated
		}
		out = append(out, w)
	}
	return out, rows.Err()
}
