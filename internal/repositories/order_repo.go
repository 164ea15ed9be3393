package repositories

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/gigchain/backend/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

const orderColumns = `
	id, gig_id, buyer_id, seller_id, amount_ton, status, delivery_days, package_index,
	escrow_address, deposit_tx_hash, release_tx_hash, proof_description, proof_files,
	platform_fee_ton, refund_amount_ton, dispute_reason, resolution_reason, escrow_released,
	payment_confirmed_at, proof_submitted_at, delivered_at, disputed_at,
	dispute_resolved_at, completed_at, created_at, updated_at
`

type OrderRepo struct {
	pool *pgxpool.Pool
}

func NewOrderRepo(pool *pgxpool.Pool) *OrderRepo {
	return &OrderRepo{pool: pool}
}

// Create inserts a funded order in a single statement: the deposit has
// already been verified on-chain, so the row is born in_progress with
// payment_confirmed_at set. There is no pending window to crash in.
func (r *OrderRepo) Create(ctx context.Context, o *models.Order) error {
	proofFiles, _ := json.Marshal(o.ProofFiles)
	return r.pool.QueryRow(ctx, `
		INSERT INTO orders (gig_id, buyer_id, seller_id, amount_ton, status, delivery_days, package_index,
		                    escrow_address, deposit_tx_hash, proof_files, payment_confirmed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, now())
		RETURNING id, payment_confirmed_at, created_at, updated_at
	`, o.GigID, o.BuyerID, o.SellerID, o.AmountTON, o.Status, o.DeliveryDays, o.PackageIndex,
		o.EscrowAddress, o.DepositTxHash, proofFiles,
	).Scan(&o.ID, &o.PaymentConfirmedAt, &o.CreatedAt, &o.UpdatedAt)
}

func (r *OrderRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
	return scanOrder(row)
}

// GetByDepositTxHash enforces one order per funding transaction.
func (r *OrderRepo) GetByDepositTxHash(ctx context.Context, txHash string) (*models.Order, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE deposit_tx_hash = $1`, txHash)
	return scanOrder(row)
}

type OrderFilter struct {
	BuyerID  *uuid.UUID
	SellerID *uuid.UUID
	Status   *string
	Limit    int
	Offset   int
}

func (r *OrderRepo) List(ctx context.Context, f OrderFilter) ([]models.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders`
	args := []any{}
	argIdx := 1
	where := []string{}

	if f.BuyerID != nil {
		where = append(where, fmt.Sprintf("buyer_id = $%d", argIdx))
		args = append(args, *f.BuyerID)
		argIdx++
	}
	if f.SellerID != nil {
		where = append(where, fmt.Sprintf("seller_id = $%d", argIdx))
		args = append(args, *f.SellerID)
		argIdx++
	}
	if f.Status != nil {
		where = append(where, fmt.Sprintf("status = $%d", argIdx))
		args = append(args, *f.Status)
		argIdx++
	}

	if len(where) > 0 {
		query += " WHERE "
		for i, w := range where {
			if i > 0 {
				query += " AND "
			}
			query += w
		}
	}

	limit := f.Limit
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", argIdx, argIdx+1)
	args = append(args, limit, f.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []models.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, *o)
	}
	return orders, nil
}

// SetProof records the seller's delivery evidence and moves the order to
// proof_submitted. Guarded on in_progress so it cannot regress a later state.
func (r *OrderRepo) SetProof(ctx context.Context, id uuid.UUID, description string, files []string) (bool, error) {
	filesJSON, _ := json.Marshal(files)
	cmd, err := r.pool.Exec(ctx, `
		UPDATE orders SET status = $1, proof_description = $2, proof_files = $3,
		                  proof_submitted_at = now(), updated_at = now()
		WHERE id = $4 AND status = $5
	`, models.OrderStatusProofSubmitted, description, filesJSON, id, models.OrderStatusInProgress)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() == 1, nil
}

func (r *OrderRepo) MarkDelivered(ctx context.Context, id uuid.UUID) (bool, error) {
	cmd, err := r.pool.Exec(ctx, `
		UPDATE orders SET status = $1, delivered_at = now(), updated_at = now()
		WHERE id = $2 AND status IN ($3, $4)
	`, models.OrderStatusDelivered, id, models.OrderStatusInProgress, models.OrderStatusProofSubmitted)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() == 1, nil
}

// MarkDisputed freezes the order for admin review. Allowed from any active
// non-terminal state as long as escrow is still held.
func (r *OrderRepo) MarkDisputed(ctx context.Context, id uuid.UUID, reason string) (bool, error) {
	cmd, err := r.pool.Exec(ctx, `
		UPDATE orders SET status = $1, dispute_reason = $2, disputed_at = now(), updated_at = now()
		WHERE id = $3 AND escrow_released = false AND status IN ($4, $5, $6)
	`, models.OrderStatusDisputed, reason, id,
		models.OrderStatusInProgress, models.OrderStatusProofSubmitted, models.OrderStatusDelivered)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() == 1, nil
}

// ClaimSettlement is the exactly-once gate for fund release. It atomically
// flips escrow_released and moves the order to its terminal status, but only
// when escrow is still held and the order is in one of fromStatuses. A false
// return with no error means another caller already claimed the order.
//
// The on-chain transfer happens strictly after a successful claim; a crash
// between claim and transfer is repaired by the reconciler.
func (r *OrderRepo) ClaimSettlement(ctx context.Context, id uuid.UUID, toStatus string, fromStatuses []string, platformFeeTON string, refundAmountTON, resolutionReason *string) (bool, error) {
	cmd, err := r.pool.Exec(ctx, `
		UPDATE orders SET escrow_released = true, status = $2,
		                  platform_fee_ton = $3, refund_amount_ton = $4,
		                  resolution_reason = COALESCE($5, resolution_reason),
		                  dispute_resolved_at = CASE WHEN status = 'disputed' THEN now() ELSE dispute_resolved_at END,
		                  completed_at = now(), updated_at = now()
		WHERE id = $1 AND escrow_released = false AND status = ANY($6)
	`, id, toStatus, platformFeeTON, refundAmountTON, resolutionReason, fromStatuses)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() == 1, nil
}

// SetReleaseTxHash records the on-chain hash once the transfer confirms.
func (r *OrderRepo) SetReleaseTxHash(ctx context.Context, id uuid.UUID, txHash string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE orders SET release_tx_hash = $1, updated_at = now() WHERE id = $2
	`, txHash, id)
	return err
}

// GetOverdueDeliveries returns orders whose grace window has elapsed without
// buyer action: delivered (or proof-submitted) longer than graceSeconds ago,
// escrow still held, not disputed.
func (r *OrderRepo) GetOverdueDeliveries(ctx context.Context, graceSeconds int) ([]models.Order, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE status IN ($1, $2)
		  AND escrow_released = false
		  AND COALESCE(delivered_at, proof_submitted_at) < now() - ($3 || ' seconds')::interval
		ORDER BY COALESCE(delivered_at, proof_submitted_at) ASC
	`, models.OrderStatusProofSubmitted, models.OrderStatusDelivered, fmt.Sprintf("%d", graceSeconds))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []models.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, *o)
	}
	return orders, nil
}

// GetClaimedUnrecorded returns orders that were claimed for settlement but
// never got an on-chain hash recorded. The reconciler re-checks these
// against the custodian's outbound history.
func (r *OrderRepo) GetClaimedUnrecorded(ctx context.Context) ([]models.Order, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE escrow_released = true AND release_tx_hash IS NULL
		ORDER BY updated_at ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []models.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, *o)
	}
	return orders, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*models.Order, error) {
	var o models.Order
	var proofFiles []byte
	err := row.Scan(&o.ID, &o.GigID, &o.BuyerID, &o.SellerID, &o.AmountTON, &o.Status, &o.DeliveryDays, &o.PackageIndex,
		&o.EscrowAddress, &o.DepositTxHash, &o.ReleaseTxHash, &o.ProofDescription, &proofFiles,
		&o.PlatformFeeTON, &o.RefundAmountTON, &o.DisputeReason, &o.ResolutionReason, &o.EscrowReleased,
		&o.PaymentConfirmedAt, &o.ProofSubmittedAt, &o.DeliveredAt, &o.DisputedAt,
		&o.DisputeResolvedAt, &o.CompletedAt, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	_ = json.Unmarshal(proofFiles, &o.ProofFiles)
	return &o, nil
}
