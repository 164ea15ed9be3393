package sweeper

import (
	"context"
	"math/big"

	"github.com/gigchain/backend/internal/apperrors"
	"github.com/gigchain/backend/internal/config"
	"github.com/gigchain/backend/internal/metrics"
	"github.com/gigchain/backend/internal/models"
	"github.com/gigchain/backend/internal/services"
	"github.com/gigchain/backend/internal/ton"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Narrow views of the stores; the worker wires the real repositories in.

type orderStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	GetOverdueDeliveries(ctx context.Context, graceSeconds int) ([]models.Order, error)
	GetClaimedUnrecorded(ctx context.Context) ([]models.Order, error)
	SetReleaseTxHash(ctx context.Context, id uuid.UUID, txHash string) error
}

type ledgerStore interface {
	Insert(ctx context.Context, e *models.LedgerEntry) error
	GetOutbound(ctx context.Context, orderID uuid.UUID) (*models.LedgerEntry, error)
}

type userStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

type autoReleaser interface {
	AutoRelease(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
}

type chainReader interface {
	ListOutbound(ctx context.Context, limit int) ([]ton.OutboundTx, error)
}

type fundsMover interface {
	Transfer(ctx context.Context, toAddr string, amountNano *big.Int, memo string) (string, error)
}

const reconcileScanDepth = 200

// Sweeper runs the two background passes of the settlement engine: the
// overdue-delivery sweep and the claim reconciliation.
type Sweeper struct {
	orders     orderStore
	ledger     ledgerStore
	users      userStore
	settlement autoReleaser
	chain      chainReader
	custodian  fundsMover
	cfg        *config.Config
	log        *zap.Logger
}

func New(
	orders orderStore,
	ledger ledgerStore,
	users userStore,
	settlement autoReleaser,
	chain chainReader,
	custodian fundsMover,
	cfg *config.Config,
	log *zap.Logger,
) *Sweeper {
	return &Sweeper{
		orders:     orders,
		ledger:     ledger,
		users:      users,
		settlement: settlement,
		chain:      chain,
		custodian:  custodian,
		cfg:        cfg,
		log:        log,
	}
}

// SweepFailure records one order the sweep could not settle.
type SweepFailure struct {
	OrderID uuid.UUID
	Err     error
}

// SweepReport summarizes a single overdue-delivery pass.
type SweepReport struct {
	Settled []uuid.UUID
	Failed  []SweepFailure
}

// SweepOverdueDeliveries settles every order whose grace window elapsed
// without buyer action. One failing order never blocks the rest; a fatal
// error (custodian empty) stops the pass, retrying the remainder is
// pointless until an operator intervenes. The report carries the outcome
// per order either way.
func (s *Sweeper) SweepOverdueDeliveries(ctx context.Context) (*SweepReport, error) {
	overdue, err := s.orders.GetOverdueDeliveries(ctx, int(s.cfg.GraceWindow.Seconds()))
	if err != nil {
		return nil, err
	}
	metrics.SweepOverdueFound.Set(float64(len(overdue)))
	report := &SweepReport{}
	if len(overdue) == 0 {
		return report, nil
	}

	s.log.Info("sweeping overdue deliveries", zap.Int("count", len(overdue)))

	for _, order := range overdue {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
		if _, relErr := s.settlement.AutoRelease(ctx, order.ID); relErr != nil {
			report.Failed = append(report.Failed, SweepFailure{OrderID: order.ID, Err: relErr})
			s.log.Error("auto-release failed",
				zap.String("order_id", order.ID.String()),
				zap.Error(relErr),
			)
			if apperrors.IsFatal(relErr) {
				return report, relErr
			}
			continue
		}
		report.Settled = append(report.Settled, order.ID)
	}
	return report, nil
}

// Reconcile repairs the gap a crash can leave between claiming a
// settlement and recording its transfer. For each claimed order without a
// tx hash it scans the custodian's outbound history by memo: a match means
// the funds moved and only the records are missing; no match means the
// transfer never made it out and is re-issued.
func (s *Sweeper) Reconcile(ctx context.Context) error {
	pending, err := s.orders.GetClaimedUnrecorded(ctx)
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		return nil
	}

	outbound, err := s.chain.ListOutbound(ctx, reconcileScanDepth)
	if err != nil {
		return err
	}
	byMemo := make(map[string]ton.OutboundTx, len(outbound))
	for _, tx := range outbound {
		if _, ok := byMemo[tx.Memo]; !ok {
			byMemo[tx.Memo] = tx
		}
	}

	for _, order := range pending {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := s.reconcileOrder(ctx, &order, byMemo); err != nil {
			s.log.Error("reconcile failed",
				zap.String("order_id", order.ID.String()),
				zap.Error(err),
			)
		}
	}
	return nil
}

func (s *Sweeper) reconcileOrder(ctx context.Context, order *models.Order, byMemo map[string]ton.OutboundTx) error {
	refund, seller, err := s.pendingLegs(order)
	if err != nil {
		return err
	}

	var lastHash string

	if refund.Sign() > 0 {
		memo := services.RefundMemo(order.ID)
		if tx, ok := byMemo[memo]; ok {
			lastHash = tx.Hash
			s.recordLeg(ctx, order.ID, models.LedgerTypeRefund, tx.AmountNano, tx.Hash)
		} else {
			buyer, err := s.users.GetByID(ctx, order.BuyerID)
			if err != nil {
				return err
			}
			hash, err := s.custodian.Transfer(ctx, buyer.PayoutTo(), refund, memo)
			if err != nil {
				return err
			}
			lastHash = hash
			s.recordLeg(ctx, order.ID, models.LedgerTypeRefund, refund, hash)
		}
	}

	if seller.Sign() > 0 {
		memo := services.SettlementMemo(order.ID)
		legType := s.sellerLegType(order)
		if tx, ok := byMemo[memo]; ok {
			lastHash = tx.Hash
			s.recordLeg(ctx, order.ID, legType, tx.AmountNano, tx.Hash)
		} else {
			sellerUser, err := s.users.GetByID(ctx, order.SellerID)
			if err != nil {
				return err
			}
			hash, err := s.custodian.Transfer(ctx, sellerUser.PayoutTo(), seller, memo)
			if err != nil {
				return err
			}
			lastHash = hash
			s.recordLeg(ctx, order.ID, legType, seller, hash)
		}
	}

	if lastHash == "" {
		// Claimed with nothing to pay out (zero-value legs); close it so it
		// stops showing up.
		lastHash = "reconciled"
	}
	if err := s.orders.SetReleaseTxHash(ctx, order.ID, lastHash); err != nil {
		return err
	}

	metrics.ReconcilerRepairs.Inc()
	s.log.Info("settlement reconciled",
		zap.String("order_id", order.ID.String()),
		zap.String("tx_hash", lastHash),
	)
	return nil
}

// sellerLegType recovers which movement the interrupted claim was making.
// Dispute resolutions pay the seller as a plain release; otherwise a claim
// taken after the grace window had elapsed came from the sweep.
func (s *Sweeper) sellerLegType(order *models.Order) string {
	if order.DisputeResolvedAt != nil || order.RefundAmountTON != nil {
		return models.LedgerTypeRelease
	}
	since := order.DeliveredSince()
	if since != nil && order.CompletedAt != nil && order.CompletedAt.Sub(*since) >= s.cfg.GraceWindow {
		return models.LedgerTypeAutoRelease
	}
	return models.LedgerTypeRelease
}

// pendingLegs rebuilds the settlement split from the fields the claim
// froze on the order row.
func (s *Sweeper) pendingLegs(order *models.Order) (refund, seller *big.Int, err error) {
	amount, err := ton.ParseTON(order.AmountTON)
	if err != nil {
		return nil, nil, err
	}

	fee := big.NewInt(0)
	if order.PlatformFeeTON != nil {
		if fee, err = ton.ParseTON(*order.PlatformFeeTON); err != nil {
			return nil, nil, err
		}
	}
	refund = big.NewInt(0)
	if order.RefundAmountTON != nil {
		if refund, err = ton.ParseTON(*order.RefundAmountTON); err != nil {
			return nil, nil, err
		}
	}

	seller = new(big.Int).Sub(amount, fee)
	seller.Sub(seller, refund)
	return refund, seller, nil
}

// recordLeg appends the ledger row for a reconciled transfer unless one is
// already there.
func (s *Sweeper) recordLeg(ctx context.Context, orderID uuid.UUID, ledgerType string, amount *big.Int, txHash string) {
	existing, err := s.ledger.GetOutbound(ctx, orderID)
	if err == nil && existing != nil && existing.TxType == ledgerType {
		return
	}
	hash := txHash
	entry := &models.LedgerEntry{
		OrderID:   orderID,
		AmountTON: ton.FormatTON(amount),
		TxType:    ledgerType,
		TxHash:    &hash,
	}
	if err := s.ledger.Insert(ctx, entry); err != nil {
		s.log.Error("failed to append reconciled ledger entry",
			zap.String("order_id", orderID.String()), zap.Error(err))
	}
}
