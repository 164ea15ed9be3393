package repositories

import (
	"context"
	"errors"

	"github.com/gigchain/backend/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// LedgerRepo is append-only: entries are inserted once and never touched
// again. Corrections get a new entry.
type LedgerRepo struct {
	pool *pgxpool.Pool
}

func NewLedgerRepo(pool *pgxpool.Pool) *LedgerRepo {
	return &LedgerRepo{pool: pool}
}

func (r *LedgerRepo) Insert(ctx context.Context, e *models.LedgerEntry) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO settlement_ledger (order_id, amount_ton, tx_type, tx_hash)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`, e.OrderID, e.AmountTON, e.TxType, e.TxHash).Scan(&e.ID, &e.CreatedAt)
}

func (r *LedgerRepo) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.LedgerEntry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, order_id, amount_ton, tx_type, tx_hash, created_at
		FROM settlement_ledger WHERE order_id = $1 ORDER BY created_at ASC
	`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []models.LedgerEntry
	for rows.Next() {
		var e models.LedgerEntry
		if err := rows.Scan(&e.ID, &e.OrderID, &e.AmountTON, &e.TxType, &e.TxHash, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// GetOutbound returns the release/refund entry for an order, or nil when no
// settlement has been recorded yet.
func (r *LedgerRepo) GetOutbound(ctx context.Context, orderID uuid.UUID) (*models.LedgerEntry, error) {
	var e models.LedgerEntry
	err := r.pool.QueryRow(ctx, `
		SELECT id, order_id, amount_ton, tx_type, tx_hash, created_at
		FROM settlement_ledger
		WHERE order_id = $1 AND tx_type IN ($2, $3, $4)
		ORDER BY created_at ASC LIMIT 1
	`, orderID, models.LedgerTypeRelease, models.LedgerTypeRefund, models.LedgerTypeAutoRelease,
	).Scan(&e.ID, &e.OrderID, &e.AmountTON, &e.TxType, &e.TxHash, &e.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}
