package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrUserNotFound is returned when a user is not found in the database.
	ErrUserNotFound = errors.New("user not found")
	// ErrReferralCodeExists is returned when a referral code collides with an existing row.
	ErrReferralCodeExists = errors.New("referral code already exists")
)

// UserRepository handles all database operations for users.
type UserRepository struct {
	db *pgxpool.Pool
}

// NewUserRepository creates a new user repository instance.
func NewUserRepository(db *DB) *UserRepository {
	return &UserRepository{db: db.pool}
}

// Create inserts a new user into the database.
// Returns ErrReferralCodeExists if the referral code already exists.
func (r *UserRepository) Create(ctx context.Context, user *User) error {
	query := `INSERT INTO users (
		id, email, chat_platform_id, referral_code, referred_by, role, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := r.db.Exec(
		ctx, query,
		user.ID,
		user.Email,
		user.ChatPlatform,
		user.ReferralCode,
		user.ReferredBy,
		user.Role,
		user.CreatedAt,
	)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			if pgErr.ConstraintName == "users_referral_code_key" {
				return ErrReferralCodeExists
			}
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	return nil
}

// GetByID retrieves a user by its UUID. Returns ErrUserNotFound if absent.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*User, error) {
	query := `SELECT id, email, chat_platform_id, referral_code, referred_by, role, created_at
		FROM users WHERE id = $1`

	var user User
	err := r.db.QueryRow(ctx, query, id).Scan(
		&user.ID, &user.Email, &user.ChatPlatform, &user.ReferralCode,
		&user.ReferredBy, &user.Role, &user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user with id %s: %w", id, err)
	}

	return &user, nil
}

// GetByChatPlatformID retrieves a user by their chat-platform identity.
// Returns ErrUserNotFound if no such user exists.
func (r *UserRepository) GetByChatPlatformID(ctx context.Context, chatID string) (*User, error) {
	query := `SELECT id, email, chat_platform_id, referral_code, referred_by, role, created_at
		FROM users WHERE chat_platform_id = $1`

	var user User
	err := r.db.QueryRow(ctx, query, chatID).Scan(
		&user.ID, &user.Email, &user.ChatPlatform, &user.ReferralCode,
		&user.ReferredBy, &user.Role, &user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user with chat id %s: %w", chatID, err)
	}

	return &user, nil
}

// GetByReferralCode retrieves a user by their referral code.
// Returns ErrUserNotFound if no such code is registered.
func (r *UserRepository) GetByReferralCode(ctx context.Context, code string) (*User, error) {
	query := `SELECT id, email, chat_platform_id, referral_code, referred_by, role, created_at
		FROM users WHERE referral_code = $1`

	var user User
	err := r.db.QueryRow(ctx, query, code).Scan(
		&user.ID, &user.Email, &user.ChatPlatform, &user.ReferralCode,
		&user.ReferredBy, &user.Role, &user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user with referral code %s: %w", code, err)
	}

	return &user, nil
}

// CountSuccessfulOrders returns how many SUCCESS orders a user has placed,
// used by the Referral Engine's threshold check.
func (r *UserRepository) CountSuccessfulOrders(ctx context.Context, userID string) (int, error) {
	query := `SELECT COUNT(*) FROM orders WHERE user_id = $1 AND status = $2`

	var count int
	err := r.db.QueryRow(ctx, query, userID, OrderSuccess).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count successful orders for user %s: %w", userID, err)
	}

	return count, nil
}
