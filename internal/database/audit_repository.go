package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// AuditRepository appends fund-affecting decisions for manual reconciliation.
type AuditRepository struct {
	db *pgxpool.Pool
}

// NewAuditRepository creates a new audit repository instance.
func NewAuditRepository(db *DB) *AuditRepository {
	return &AuditRepository{db: db.pool}
}

// Append inserts a new audit log entry. The log is append-only: there is no
// Update or Delete.
func (r *AuditRepository) Append(ctx context.Context, entry *AuditLogEntry) error {
	query := `INSERT INTO audit_log (id, order_id, actor, action, detail, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := r.db.Exec(ctx, query, entry.ID, entry.OrderID, entry.Actor, entry.Action, entry.Detail, entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to append audit log entry: %w", err)
	}

	return nil
}

// ListByOrderID returns every audit entry tied to an order, newest first.
func (r *AuditRepository) ListByOrderID(ctx context.Context, orderID string) ([]*AuditLogEntry, error) {
	query := `SELECT id, order_id, actor, action, detail, created_at
		FROM audit_log WHERE order_id = $1 ORDER BY created_at DESC`

	rows, err := r.db.Query(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit log for order %s: %w", orderID, err)
	}
	defer rows.Close()

	var entries []*AuditLogEntry
	for rows.Next() {
		var entry AuditLogEntry
		if err := rows.Scan(&entry.ID, &entry.OrderID, &entry.Actor, &entry.Action, &entry.Detail, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan audit log row: %w", err)
		}
		entries = append(entries, &entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}

	return entries, nil
}
