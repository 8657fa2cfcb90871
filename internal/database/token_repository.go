package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrTokenNotFound is returned when a (chain, symbol) token row is not registered.
var ErrTokenNotFound = errors.New("token not found")

// TokenRepository handles all database operations for tokens.
type TokenRepository struct {
	db *pgxpool.Pool
}

// NewTokenRepository creates a new token repository instance.
func NewTokenRepository(db *DB) *TokenRepository {
	return &TokenRepository{db: db.pool}
}

// Create inserts a new token row.
func (r *TokenRepository) Create(ctx context.Context, token *Token) error {
	query := `INSERT INTO tokens (chain, symbol, is_native, decimals, markup_percent, active)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := r.db.Exec(
		ctx, query,
		token.Chain, token.Symbol, token.IsNative, token.Decimals, token.MarkupPercent, token.Active,
	)
	if err != nil {
		return fmt.Errorf("failed to create token %s/%s: %w", token.Chain, token.Symbol, err)
	}

	return nil
}

// Get retrieves a token by (chain, symbol). Returns ErrTokenNotFound if absent.
func (r *TokenRepository) Get(ctx context.Context, chain, symbol string) (*Token, error) {
	query := `SELECT chain, symbol, is_native, decimals, markup_percent, active
		FROM tokens WHERE chain = $1 AND symbol = $2`

	var token Token
	err := r.db.QueryRow(ctx, query, chain, symbol).Scan(
		&token.Chain, &token.Symbol, &token.IsNative, &token.Decimals, &token.MarkupPercent, &token.Active,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTokenNotFound
		}
		return nil, fmt.Errorf("failed to get token %s/%s: %w", chain, symbol, err)
	}

	return &token, nil
}

// Upsert inserts token if its (chain, symbol) pair is absent, or refreshes
// its decimals/markup/active fields if present — used to seed each
// configured chain's native token at startup.
func (r *TokenRepository) Upsert(ctx context.Context, token *Token) error {
	query := `INSERT INTO tokens (chain, symbol, is_native, decimals, markup_percent, active)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (chain, symbol) DO UPDATE SET
			is_native = EXCLUDED.is_native,
			decimals = EXCLUDED.decimals,
			markup_percent = EXCLUDED.markup_percent,
			active = EXCLUDED.active`

	_, err := r.db.Exec(
		ctx, query,
		token.Chain, token.Symbol, token.IsNative, token.Decimals, token.MarkupPercent, token.Active,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert token %s/%s: %w", token.Chain, token.Symbol, err)
	}

	return nil
}

// GetNative retrieves the native token for a chain. Returns ErrTokenNotFound
// if the chain has no native token registered.
func (r *TokenRepository) GetNative(ctx context.Context, chain string) (*Token, error) {
	query := `SELECT chain, symbol, is_native, decimals, markup_percent, active
		FROM tokens WHERE chain = $1 AND is_native = true`

	var token Token
	err := r.db.QueryRow(ctx, query, chain).Scan(
		&token.Chain, &token.Symbol, &token.IsNative, &token.Decimals, &token.MarkupPercent, &token.Active,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTokenNotFound
		}
		return nil, fmt.Errorf("failed to get native token for chain %s: %w", chain, err)
	}

	return &token, nil
}

// ListByChain returns every active token on a chain.
func (r *TokenRepository) ListByChain(ctx context.Context, chain string) ([]*Token, error) {
	query := `SELECT chain, symbol, is_native, decimals, markup_percent, active
		FROM tokens WHERE chain = $1 AND active = true ORDER BY symbol`

	rows, err := r.db.Query(ctx, query, chain)
	if err != nil {
		return nil, fmt.Errorf("failed to list tokens for chain %s: %w", chain, err)
	}
	defer rows.Close()

	var tokens []*Token
	for rows.Next() {
		var token Token
		if err := rows.Scan(
			&token.Chain, &token.Symbol, &token.IsNative, &token.Decimals, &token.MarkupPercent, &token.Active,
		); err != nil {
			return nil, fmt.Errorf("failed to scan token row: %w", err)
		}
		tokens = append(tokens, &token)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}

	return tokens, nil
}
