package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrChainNotFound is returned when a chain slug is not registered.
var ErrChainNotFound = errors.New("chain not found")

// ChainRepository handles all database operations for chains.
type ChainRepository struct {
	db *pgxpool.Pool
}

// NewChainRepository creates a new chain repository instance.
func NewChainRepository(db *DB) *ChainRepository {
	return &ChainRepository{db: db.pool}
}

// Create inserts a new chain row.
func (r *ChainRepository) Create(ctx context.Context, chain *Chain) error {
	query := `INSERT INTO chains (
		slug, type, rpc_url, explorer_url, chain_id, encrypted_key_blob,
		active, confirmations, gas_bump_percent, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := r.db.Exec(
		ctx, query,
		chain.Slug, chain.Type, chain.RPCURL, chain.ExplorerURL, chain.ChainID,
		chain.EncryptedKeyBlob, chain.Active, chain.Confirmations, chain.GasBumpPercent, chain.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create chain %s: %w", chain.Slug, err)
	}

	return nil
}

// GetBySlug retrieves a chain by its slug. Returns ErrChainNotFound if absent.
func (r *ChainRepository) GetBySlug(ctx context.Context, slug string) (*Chain, error) {
	query := `SELECT slug, type, rpc_url, explorer_url, chain_id, encrypted_key_blob,
		active, confirmations, gas_bump_percent, created_at
		FROM chains WHERE slug = $1`

	var chain Chain
	err := r.db.QueryRow(ctx, query, slug).Scan(
		&chain.Slug, &chain.Type, &chain.RPCURL, &chain.ExplorerURL, &chain.ChainID,
		&chain.EncryptedKeyBlob, &chain.Active, &chain.Confirmations, &chain.GasBumpPercent, &chain.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrChainNotFound
		}
		return nil, fmt.Errorf("failed to get chain %s: %w", slug, err)
	}

	return &chain, nil
}

// ListActive returns every chain with active = true, used to populate the
// Hot Wallet Manager's in-memory adapter set at startup.
func (r *ChainRepository) ListActive(ctx context.Context) ([]*Chain, error) {
	query := `SELECT slug, type, rpc_url, explorer_url, chain_id, encrypted_key_blob,
		active, confirmations, gas_bump_percent, created_at
		FROM chains WHERE active = true ORDER BY slug`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list active chains: %w", err)
	}
	defer rows.Close()

	var chains []*Chain
	for rows.Next() {
		var chain Chain
		if err := rows.Scan(
			&chain.Slug, &chain.Type, &chain.RPCURL, &chain.ExplorerURL, &chain.ChainID,
			&chain.EncryptedKeyBlob, &chain.Active, &chain.Confirmations, &chain.GasBumpPercent, &chain.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan chain row: %w", err)
		}
		chains = append(chains, &chain)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}

	return chains, nil
}

// Upsert inserts chain if its slug is absent, or updates its connection and
// signing-key fields if present, leaving active untouched on an existing
// row — deployment config seeds/refreshes chain rows, it never silently
// reactivates one an operator pulled out of rotation.
func (r *ChainRepository) Upsert(ctx context.Context, chain *Chain) error {
	query := `INSERT INTO chains (
		slug, type, rpc_url, explorer_url, chain_id, encrypted_key_blob,
		active, confirmations, gas_bump_percent, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (slug) DO UPDATE SET
			type = EXCLUDED.type,
			rpc_url = EXCLUDED.rpc_url,
			explorer_url = EXCLUDED.explorer_url,
			chain_id = EXCLUDED.chain_id,
			encrypted_key_blob = EXCLUDED.encrypted_key_blob,
			confirmations = EXCLUDED.confirmations,
			gas_bump_percent = EXCLUDED.gas_bump_percent`

	_, err := r.db.Exec(
		ctx, query,
		chain.Slug, chain.Type, chain.RPCURL, chain.ExplorerURL, chain.ChainID,
		chain.EncryptedKeyBlob, chain.Active, chain.Confirmations, chain.GasBumpPercent, chain.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert chain %s: %w", chain.Slug, err)
	}

	return nil
}

// SetActive flips a chain's active flag, e.g. an operator pulling a chain
// out of rotation during an incident.
func (r *ChainRepository) SetActive(ctx context.Context, slug string, active bool) error {
	query := `UPDATE chains SET active = $2 WHERE slug = $1`

	commandTag, err := r.db.Exec(ctx, query, slug, active)
	if err != nil {
		return fmt.Errorf("failed to update chain %s: %w", slug, err)
	}
	if commandTag.RowsAffected() == 0 {
		return ErrChainNotFound
	}

	return nil
}
