package repositories

import (
	"context"
	"time"

	"github.com/gigchain/backend/internal/models"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ProofRepo stores the single-use auth nonces issued by the challenge
// endpoint.
type ProofRepo struct {
	pool *pgxpool.Pool
}

func NewProofRepo(pool *pgxpool.Pool) *ProofRepo {
	return &ProofRepo{pool: pool}
}

func (r *ProofRepo) Create(ctx context.Context, p *models.ProofPayload) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO proof_payloads (payload, expires_at)
		VALUES ($1, $2)
		RETURNING id, created_at
	`, p.Payload, p.ExpiresAt).Scan(&p.ID, &p.CreatedAt)
}

// Consume atomically marks a payload used. Returns false when the payload
// is unknown, expired, or already consumed, so a replayed proof fails.
func (r *ProofRepo) Consume(ctx context.Context, payload string) (bool, error) {
	cmd, err := r.pool.Exec(ctx, `
		UPDATE proof_payloads SET used = true
		WHERE payload = $1 AND used = false AND expires_at > now()
	`, payload)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() == 1, nil
}

// DeleteExpired prunes stale nonces; called periodically by the worker.
func (r *ProofRepo) DeleteExpired(ctx context.Context, olderThan time.Duration) (int64, error) {
	cmd, err := r.pool.Exec(ctx, `
		DELETE FROM proof_payloads WHERE expires_at < now() - make_interval(secs => $1)
	`, olderThan.Seconds())
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}
