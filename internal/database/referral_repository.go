package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrReferralNotFound is returned when a referee has no referral row.
var ErrReferralNotFound = errors.New("referral not found")

// ReferralRepository handles all database operations for referrals.
type ReferralRepository struct {
	db *pgxpool.Pool
}

// NewReferralRepository creates a new referral repository instance.
func NewReferralRepository(db *DB) *ReferralRepository {
	return &ReferralRepository{db: db.pool}
}

// Create inserts a new referral row, at referee registration time.
func (r *ReferralRepository) Create(ctx context.Context, ref *Referral) error {
	query := `INSERT INTO referrals (id, referrer_id, referee_id, is_valid, reward_given, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := r.db.Exec(ctx, query, ref.ID, ref.ReferrerID, ref.RefereeID, ref.IsValid, ref.RewardGiven, ref.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create referral for referee %s: %w", ref.RefereeID, err)
	}

	return nil
}

// GetByRefereeID retrieves the (unique) referral row for a referee.
// Returns ErrReferralNotFound if the referee wasn't referred.
func (r *ReferralRepository) GetByRefereeID(ctx context.Context, refereeID string) (*Referral, error) {
	query := `SELECT id, referrer_id, referee_id, is_valid, reward_given, created_at, validated_at
		FROM referrals WHERE referee_id = $1`

	var ref Referral
	err := r.db.QueryRow(ctx, query, refereeID).Scan(
		&ref.ID, &ref.ReferrerID, &ref.RefereeID, &ref.IsValid, &ref.RewardGiven, &ref.CreatedAt, &ref.ValidatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrReferralNotFound
		}
		return nil, fmt.Errorf("failed to get referral for referee %s: %w", refereeID, err)
	}

	return &ref, nil
}

// GetByID retrieves a referral row by its id. Returns ErrReferralNotFound if absent.
func (r *ReferralRepository) GetByID(ctx context.Context, id string) (*Referral, error) {
	query := `SELECT id, referrer_id, referee_id, is_valid, reward_given, created_at, validated_at
		FROM referrals WHERE id = $1`

	var ref Referral
	err := r.db.QueryRow(ctx, query, id).Scan(
		&ref.ID, &ref.ReferrerID, &ref.RefereeID, &ref.IsValid, &ref.RewardGiven, &ref.CreatedAt, &ref.ValidatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrReferralNotFound
		}
		return nil, fmt.Errorf("failed to get referral %s: %w", id, err)
	}

	return &ref, nil
}

// ListPending returns referrals not yet validated, for the periodic sweep.
func (r *ReferralRepository) ListPending(ctx context.Context) ([]*Referral, error) {
	query := `SELECT id, referrer_id, referee_id, is_valid, reward_given, created_at, validated_at
		FROM referrals WHERE is_valid = false`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending referrals: %w", err)
	}
	defer rows.Close()

	var refs []*Referral
	for rows.Next() {
		var ref Referral
		if err := rows.Scan(
			&ref.ID, &ref.ReferrerID, &ref.RefereeID, &ref.IsValid, &ref.RewardGiven, &ref.CreatedAt, &ref.ValidatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan referral row: %w", err)
		}
		refs = append(refs, &ref)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}

	return refs, nil
}

// MarkValid conditionally transitions is_valid false -> true, stamping
// validated_at. A false result means another caller already validated it.
func (r *ReferralRepository) MarkValid(ctx context.Context, id string) (bool, error) {
	commandTag, err := r.db.Exec(ctx,
		`UPDATE referrals SET is_valid = true, validated_at = now() WHERE id = $1 AND is_valid = false`,
		id,
	)
	if err != nil {
		return false, fmt.Errorf("failed to mark referral %s valid: %w", id, err)
	}

	return commandTag.RowsAffected() > 0, nil
}

// MarkRewardGiven conditionally transitions reward_given false -> true.
// This is the single atomic barrier deciding which caller owns granting
// the reward; a false result means someone else already granted it.
func (r *ReferralRepository) MarkRewardGiven(ctx context.Context, id string) (bool, error) {
	commandTag, err := r.db.Exec(ctx,
		`UPDATE referrals SET reward_given = true WHERE id = $1 AND reward_given = false`,
		id,
	)
	if err != nil {
		return false, fmt.Errorf("failed to mark referral %s reward given: %w", id, err)
	}

	return commandTag.RowsAffected() > 0, nil
}

// CountValidByReferrer returns how many referrals a referrer has with
// is_valid = true, used to decide milestone bonus vouchers.
func (r *ReferralRepository) CountValidByReferrer(ctx context.Context, referrerID string) (int, error) {
	var count int
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM referrals WHERE referrer_id = $1 AND is_valid = true`,
		referrerID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count valid referrals for referrer %s: %w", referrerID, err)
	}

	return count, nil
}
