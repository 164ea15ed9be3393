package repositories

import (
	"context"

	"github.com/gigchain/backend/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

type UserRepo struct {
	pool *pgxpool.Pool
}

func NewUserRepo(pool *pgxpool.Pool) *UserRepo {
	return &UserRepo{pool: pool}
}

// Create inserts a new identity keyed by wallet address. Returns
// pgx.ErrNoRows when the address is already mapped, the service layer turns
// that into a conflict.
func (r *UserRepo) Create(ctx context.Context, u *models.User) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO users (wallet_address, wallet_friendly, public_key, display_name, roles)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (wallet_address) DO NOTHING
		RETURNING id, created_at, last_active_at
	`, u.WalletAddress, u.WalletFriendly, u.PublicKey, u.DisplayName, u.Roles,
	).Scan(&u.ID, &u.CreatedAt, &u.LastActiveAt)
}

func (r *UserRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var u models.User
	err := r.pool.QueryRow(ctx, `
		SELECT id, wallet_address, wallet_friendly, public_key, display_name, roles, payout_address, created_at, last_active_at
		FROM users WHERE id = $1
	`, id).Scan(&u.ID, &u.WalletAddress, &u.WalletFriendly, &u.PublicKey, &u.DisplayName, &u.Roles, &u.PayoutAddress, &u.CreatedAt, &u.LastActiveAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepo) GetByWallet(ctx context.Context, walletAddress string) (*models.User, error) {
	var u models.User
	err := r.pool.QueryRow(ctx, `
		SELECT id, wallet_address, wallet_friendly, public_key, display_name, roles, payout_address, created_at, last_active_at
		FROM users WHERE wallet_address = $1
	`, walletAddress).Scan(&u.ID, &u.WalletAddress, &u.WalletFriendly, &u.PublicKey, &u.DisplayName, &u.Roles, &u.PayoutAddress, &u.CreatedAt, &u.LastActiveAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepo) TouchLastActive(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `UPDATE users SET last_active_at = now() WHERE id = $1`, id)
	return err
}

func (r *UserRepo) UpdatePayoutAddress(ctx context.Context, id uuid.UUID, addr string) error {
	_, err := r.pool.Exec(ctx, `UPDATE users SET payout_address = $1 WHERE id = $2`, addr, id)
	return err
}

func (r *UserRepo) UpdateDisplayName(ctx context.Context, id uuid.UUID, name string) error {
	_, err := r.pool.Exec(ctx, `UPDATE users SET display_name = $1 WHERE id = $2`, name, id)
	return err
}

// AddRole appends a role if the user does not already hold it.
func (r *UserRepo) AddRole(ctx context.Context, id uuid.UUID, role string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE users SET roles = array_append(roles, $1) WHERE id = $2 AND NOT ($1 = ANY(roles))
	`, role, id)
	return err
}
