package services

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/gigchain/backend/internal/apperrors"
	"github.com/gigchain/backend/internal/config"
	"github.com/gigchain/backend/internal/events"
	"github.com/gigchain/backend/internal/fees"
	"github.com/gigchain/backend/internal/metrics"
	"github.com/gigchain/backend/internal/models"
	"github.com/gigchain/backend/internal/ton"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SettlementService owns the exactly-once release of escrowed funds. Every
// settlement path follows the same protocol:
//
//  1. claim the order with a conditional update (escrow_released flips true)
//  2. move funds on-chain, memo-tagged with the order id
//  3. record the tx hash and the ledger rows
//
// The claim is the idempotence gate. If step 2 or 3 fails the claim stays,
// and the reconciler repairs the gap from the custodian's outbound history.
type SettlementService struct {
	orders    OrderStore
	ledger    LedgerStore
	users     UserStore
	custodian FundsMover
	publisher events.Publisher
	cfg       *config.Config
	log       *zap.Logger
}

func NewSettlementService(
	orders OrderStore,
	ledger LedgerStore,
	users UserStore,
	custodian FundsMover,
	publisher events.Publisher,
	cfg *config.Config,
	log *zap.Logger,
) *SettlementService {
	return &SettlementService{
		orders:    orders,
		ledger:    ledger,
		users:     users,
		custodian: custodian,
		publisher: publisher,
		cfg:       cfg,
		log:       log,
	}
}

// SettlementMemo tags an outbound transfer with its order.
func SettlementMemo(orderID uuid.UUID) string {
	return fmt.Sprintf("order:%s", orderID)
}

// RefundMemo tags the buyer leg of a dispute refund.
func RefundMemo(orderID uuid.UUID) string {
	return fmt.Sprintf("refund:order:%s", orderID)
}

// ApproveDelivery is the buyer accepting the work. Releases the full escrow
// minus platform fee to the seller. Idempotent: a second approval returns
// the already-settled order without moving funds again.
func (s *SettlementService) ApproveDelivery(ctx context.Context, buyerID, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, asNotFound(err, "order %s", orderID)
	}
	if order.BuyerID != buyerID {
		return nil, apperrors.New(apperrors.KindAuthorization, "only the buyer can approve delivery")
	}
	if order.EscrowReleased {
		return order, nil
	}
	if !order.CanApprove() {
		if !models.IsReleasableStatus(order.Status) {
			return nil, apperrors.New(apperrors.KindState, "cannot approve from status %s", order.Status)
		}
		return nil, apperrors.New(apperrors.KindState, "cannot approve without delivery proof")
	}
	return s.release(ctx, order, models.LedgerTypeRelease)
}

// AutoRelease settles an order whose grace window elapsed without buyer
// action. Called by the sweep worker.
func (s *SettlementService) AutoRelease(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, asNotFound(err, "order %s", orderID)
	}
	if order.EscrowReleased {
		return order, nil
	}
	if !models.IsReleasableStatus(order.Status) {
		return nil, apperrors.New(apperrors.KindState, "cannot auto-release from status %s", order.Status)
	}
	return s.release(ctx, order, models.LedgerTypeAutoRelease)
}

func (s *SettlementService) release(ctx context.Context, order *models.Order, ledgerType string) (*models.Order, error) {
	started := time.Now()

	amount, err := ton.ParseTON(order.AmountTON)
	if err != nil {
		return nil, err
	}
	fee, sellerAmt, err := fees.Split(amount, s.cfg.PlatformFeeBPS)
	if err != nil {
		return nil, err
	}

	seller, err := s.users.GetByID(ctx, order.SellerID)
	if err != nil {
		return nil, asNotFound(err, "seller %s", order.SellerID)
	}

	// The custodian must cover every leg of the settlement, fee included,
	// not just the one paid first.
	if err := s.ensureBalance(ctx, amount); err != nil {
		metrics.SettlementFailures.WithLabelValues(string(apperrors.KindOf(err))).Inc()
		return nil, err
	}

	claimed, err := s.orders.ClaimSettlement(ctx, order.ID, models.OrderStatusCompleted,
		models.ReleasableStatuses, ton.FormatTON(fee), nil, nil)
	if err != nil {
		return nil, err
	}
	if !claimed {
		// Someone else won the race, or the status moved. Re-read and decide.
		current, err := s.orders.GetByID(ctx, order.ID)
		if err != nil {
			return nil, err
		}
		if current.EscrowReleased {
			return current, nil
		}
		return nil, apperrors.New(apperrors.KindState, "cannot release from status %s", current.Status)
	}

	txHash, err := s.custodian.Transfer(ctx, seller.PayoutTo(), sellerAmt, SettlementMemo(order.ID))
	if err != nil {
		// The claim holds. The reconciler will see the missing tx hash and
		// re-issue the transfer, so we must not roll back here.
		metrics.SettlementFailures.WithLabelValues(string(apperrors.KindOf(err))).Inc()
		s.log.Error("transfer failed after settlement claim, reconciler will retry",
			zap.String("order_id", order.ID.String()),
			zap.String("amount_ton", ton.FormatTON(sellerAmt)),
			zap.Error(err),
		)
		return nil, err
	}

	s.recordSettlement(ctx, order.ID, ledgerType, sellerAmt, txHash)
	s.payFee(ctx, order.ID, fee)

	metrics.SettlementsTotal.WithLabelValues(ledgerType).Inc()
	metrics.SettlementDuration.Observe(time.Since(started).Seconds())

	s.log.Info("escrow released",
		zap.String("order_id", order.ID.String()),
		zap.String("type", ledgerType),
		zap.String("seller_ton", ton.FormatTON(sellerAmt)),
		zap.String("fee_ton", ton.FormatTON(fee)),
		zap.String("tx_hash", txHash),
	)

	_ = s.publisher.Publish(ctx, events.StreamOrders, events.Event{
		Type: events.EventEscrowReleased,
		Payload: map[string]any{
			"order_id":   order.ID.String(),
			"buyer_id":   order.BuyerID.String(),
			"seller_id":  order.SellerID.String(),
			"type":       ledgerType,
			"seller_ton": ton.FormatTON(sellerAmt),
			"fee_ton":    ton.FormatTON(fee),
			"tx_hash":    txHash,
		},
	})

	return s.orders.GetByID(ctx, order.ID)
}

// Refund settles a disputed order: refundPct percent back to the buyer, the
// remainder to the seller minus the platform fee. refundPct and reason must
// come from an admin decision; this method does not check who is asking.
func (s *SettlementService) Refund(ctx context.Context, order *models.Order, refundPct int, reason string) (*models.Order, error) {
	started := time.Now()

	if order.EscrowReleased {
		return order, nil
	}

	amount, err := ton.ParseTON(order.AmountTON)
	if err != nil {
		return nil, err
	}
	refund, fee, sellerAmt, err := fees.RefundSplit(amount, refundPct, s.cfg.PlatformFeeBPS)
	if err != nil {
		return nil, err
	}

	buyer, err := s.users.GetByID(ctx, order.BuyerID)
	if err != nil {
		return nil, asNotFound(err, "buyer %s", order.BuyerID)
	}
	var seller *models.User
	if sellerAmt.Sign() > 0 {
		if seller, err = s.users.GetByID(ctx, order.SellerID); err != nil {
			return nil, asNotFound(err, "seller %s", order.SellerID)
		}
	}

	if err := s.ensureBalance(ctx, amount); err != nil {
		metrics.SettlementFailures.WithLabelValues(string(apperrors.KindOf(err))).Inc()
		return nil, err
	}

	// Any refund to the buyer cancels the order; only a zero-refund
	// resolution (full release to the seller) counts as completed work.
	toStatus := models.OrderStatusCompleted
	if refundPct > 0 {
		toStatus = models.OrderStatusCancelled
	}

	var note *string
	if reason != "" {
		note = &reason
	}
	refundTON := ton.FormatTON(refund)
	claimed, err := s.orders.ClaimSettlement(ctx, order.ID, toStatus,
		[]string{models.OrderStatusDisputed}, ton.FormatTON(fee), &refundTON, note)
	if err != nil {
		return nil, err
	}
	if !claimed {
		current, err := s.orders.GetByID(ctx, order.ID)
		if err != nil {
			return nil, err
		}
		if current.EscrowReleased {
			return current, nil
		}
		return nil, apperrors.New(apperrors.KindState, "cannot refund from status %s", current.Status)
	}

	if refund.Sign() > 0 {
		hash, err := s.custodian.Transfer(ctx, buyer.PayoutTo(), refund, RefundMemo(order.ID))
		if err != nil {
			metrics.SettlementFailures.WithLabelValues(string(apperrors.KindOf(err))).Inc()
			s.log.Error("refund transfer failed after settlement claim, reconciler will retry",
				zap.String("order_id", order.ID.String()), zap.Error(err))
			return nil, err
		}
		s.recordSettlement(ctx, order.ID, models.LedgerTypeRefund, refund, hash)
	}

	if sellerAmt.Sign() > 0 {
		hash, err := s.custodian.Transfer(ctx, seller.PayoutTo(), sellerAmt, SettlementMemo(order.ID))
		if err != nil {
			metrics.SettlementFailures.WithLabelValues(string(apperrors.KindOf(err))).Inc()
			s.log.Error("seller leg failed after refund, reconciler will retry",
				zap.String("order_id", order.ID.String()), zap.Error(err))
			return nil, err
		}
		s.recordSettlement(ctx, order.ID, models.LedgerTypeRelease, sellerAmt, hash)
	}

	s.payFee(ctx, order.ID, fee)

	metrics.SettlementsTotal.WithLabelValues(models.LedgerTypeRefund).Inc()
	metrics.SettlementDuration.Observe(time.Since(started).Seconds())

	s.log.Info("dispute settled",
		zap.String("order_id", order.ID.String()),
		zap.Int("refund_pct", refundPct),
		zap.String("refund_ton", refundTON),
		zap.String("seller_ton", ton.FormatTON(sellerAmt)),
		zap.String("fee_ton", ton.FormatTON(fee)),
	)

	_ = s.publisher.Publish(ctx, events.StreamOrders, events.Event{
		Type: events.EventDisputeResolved,
		Payload: map[string]any{
			"order_id":   order.ID.String(),
			"buyer_id":   order.BuyerID.String(),
			"seller_id":  order.SellerID.String(),
			"refund_pct": refundPct,
			"refund_ton": refundTON,
			"seller_ton": ton.FormatTON(sellerAmt),
			"reason":     reason,
		},
	})

	return s.orders.GetByID(ctx, order.ID)
}

// recordSettlement writes the tx hash onto the order and appends the ledger
// row. Both failures are logged, not returned: the funds already moved and
// the reconciler can rebuild the records from chain history.
func (s *SettlementService) recordSettlement(ctx context.Context, orderID uuid.UUID, ledgerType string, amount *big.Int, txHash string) {
	if err := s.orders.SetReleaseTxHash(ctx, orderID, txHash); err != nil {
		s.log.Error("failed to record release tx hash", zap.String("order_id", orderID.String()), zap.Error(err))
	}
	hash := txHash
	entry := &models.LedgerEntry{
		OrderID:   orderID,
		AmountTON: ton.FormatTON(amount),
		TxType:    ledgerType,
		TxHash:    &hash,
	}
	if err := s.ledger.Insert(ctx, entry); err != nil {
		s.log.Error("failed to append settlement ledger entry", zap.String("order_id", orderID.String()), zap.Error(err))
	}
}

// payFee forwards the platform fee to the treasury when one is configured.
// Failure leaves the fee pooled in the custodian, which is safe.
func (s *SettlementService) payFee(ctx context.Context, orderID uuid.UUID, fee *big.Int) {
	if s.cfg.TreasuryAddress == "" || fee == nil || fee.Sign() <= 0 {
		return
	}
	if _, err := s.custodian.Transfer(ctx, s.cfg.TreasuryAddress, fee, "fee:"+SettlementMemo(orderID)); err != nil {
		s.log.Warn("fee transfer to treasury failed, fee stays pooled",
			zap.String("order_id", orderID.String()), zap.Error(err))
	}
}

// ensureBalance checks the custodian can cover amount plus the network fee
// reserve. A shortfall is fatal and pages the operator.
func (s *SettlementService) ensureBalance(ctx context.Context, amount *big.Int) error {
	reserve, err := ton.ParseTON(s.cfg.NetworkFeeReserveTON)
	if err != nil {
		return apperrors.Wrap(apperrors.KindConfig, err, "invalid NETWORK_FEE_RESERVE_TON")
	}

	balance, err := s.custodian.BalanceNano(ctx)
	if err != nil {
		return err
	}

	need := new(big.Int).Add(amount, reserve)
	if balance.Cmp(need) < 0 {
		metrics.InsufficientFundsAlerts.Inc()
		s.log.Error("custodian balance cannot cover settlement",
			zap.String("balance_ton", ton.FormatTON(balance)),
			zap.String("needed_ton", ton.FormatTON(need)),
		)
		return apperrors.New(apperrors.KindInsufficientFunds,
			"custodian balance %s TON cannot cover %s TON", ton.FormatTON(balance), ton.FormatTON(need))
	}
	return nil
}
