package services

import (
	"context"
	"errors"

	"github.com/gigchain/backend/internal/apperrors"
	"github.com/gigchain/backend/internal/config"
	"github.com/gigchain/backend/internal/events"
	"github.com/gigchain/backend/internal/metrics"
	"github.com/gigchain/backend/internal/models"
	"github.com/gigchain/backend/internal/repositories"
	"github.com/gigchain/backend/internal/ton"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

type OrderService struct {
	orders    OrderStore
	ledger    LedgerStore
	gigs      GigStore
	users     UserStore
	verifier  DepositChecker
	publisher events.Publisher
	cfg       *config.Config
	log       *zap.Logger
}

func NewOrderService(
	orders OrderStore,
	ledger LedgerStore,
	gigs GigStore,
	users UserStore,
	verifier DepositChecker,
	publisher events.Publisher,
	cfg *config.Config,
	log *zap.Logger,
) *OrderService {
	return &OrderService{
		orders:    orders,
		ledger:    ledger,
		gigs:      gigs,
		users:     users,
		verifier:  verifier,
		publisher: publisher,
		cfg:       cfg,
		log:       log,
	}
}

// CreateOrder verifies the buyer's deposit on-chain and, only then, writes
// the order. The row is inserted already funded (in_progress), so there is
// no unfunded intermediate state to clean up after a crash.
func (s *OrderService) CreateOrder(ctx context.Context, buyerID, gigID uuid.UUID, packageIndex int, depositTxHash string) (*models.Order, error) {
	if s.cfg.EscrowWalletAddress == "" {
		return nil, apperrors.New(apperrors.KindConfig, "escrow wallet address is not configured")
	}
	if depositTxHash == "" {
		return nil, apperrors.New(apperrors.KindState, "deposit transaction hash is required")
	}

	gig, err := s.gigs.GetByID(ctx, gigID)
	if err != nil {
		return nil, asNotFound(err, "gig %s", gigID)
	}
	if !gig.IsActive {
		return nil, apperrors.New(apperrors.KindState, "gig %s is not active", gigID)
	}
	pkg := gig.Package(packageIndex)
	if pkg == nil {
		return nil, apperrors.New(apperrors.KindState, "gig %s has no package %d", gigID, packageIndex)
	}
	if gig.SellerID == buyerID {
		return nil, apperrors.New(apperrors.KindState, "cannot order your own gig")
	}

	// One order per funding transaction.
	if existing, err := s.orders.GetByDepositTxHash(ctx, depositTxHash); err == nil && existing != nil {
		return nil, apperrors.New(apperrors.KindConflict, "funding transaction %s is already attached to order %s", depositTxHash, existing.ID)
	} else if err != nil && !isNoRows(err) {
		return nil, err
	}

	dep, err := s.verifier.VerifyDeposit(ctx, depositTxHash, s.cfg.EscrowWalletAddress, pkg.PriceTON)
	if err != nil {
		if kind := apperrors.KindOf(err); kind == apperrors.KindVerification || kind == apperrors.KindExecution {
			metrics.DepositsRejected.WithLabelValues(string(kind)).Inc()
		}
		return nil, err
	}

	order := &models.Order{
		GigID:         gigID,
		BuyerID:       buyerID,
		SellerID:      gig.SellerID,
		AmountTON:     pkg.PriceTON,
		Status:        models.OrderStatusInProgress,
		DeliveryDays:  pkg.DeliveryDays,
		PackageIndex:  packageIndex,
		EscrowAddress: s.cfg.EscrowWalletAddress,
		DepositTxHash: dep.TxHash,
	}
	if err := s.orders.Create(ctx, order); err != nil {
		return nil, err
	}

	txHash := dep.TxHash
	entry := &models.LedgerEntry{
		OrderID:   order.ID,
		AmountTON: ton.FormatTON(dep.AmountNano),
		TxType:    models.LedgerTypeDeposit,
		TxHash:    &txHash,
	}
	if err := s.ledger.Insert(ctx, entry); err != nil {
		// The order row is the source of truth; a missing deposit entry is
		// log-worthy but not fatal.
		s.log.Error("failed to record deposit ledger entry", zap.String("order_id", order.ID.String()), zap.Error(err))
	}

	metrics.OrdersCreated.Inc()
	s.log.Info("order created",
		zap.String("order_id", order.ID.String()),
		zap.String("gig_id", gigID.String()),
		zap.String("amount_ton", order.AmountTON),
		zap.String("deposit_tx", dep.TxHash),
	)

	_ = s.publisher.Publish(ctx, events.StreamOrders, events.Event{
		Type: events.EventPaymentReceived,
		Payload: map[string]any{
			"order_id":   order.ID.String(),
			"buyer_id":   order.BuyerID.String(),
			"seller_id":  order.SellerID.String(),
			"amount_ton": order.AmountTON,
			"tx_hash":    dep.TxHash,
		},
	})

	return order, nil
}

// SubmitProof attaches the seller's delivery evidence. Proof needs at least
// one file; buyer approval is gated on it later.
func (s *OrderService) SubmitProof(ctx context.Context, sellerID, orderID uuid.UUID, description string, files []string) (*models.Order, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, asNotFound(err, "order %s", orderID)
	}
	if order.SellerID != sellerID {
		return nil, apperrors.New(apperrors.KindAuthorization, "only the seller can submit proof")
	}
	if len(files) == 0 {
		return nil, apperrors.New(apperrors.KindState, "proof requires at least one file")
	}

	ok, err := s.orders.SetProof(ctx, orderID, description, files)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperrors.New(apperrors.KindState, "proof can only be submitted while in progress (current: %s)", order.Status)
	}

	s.publishStatus(ctx, order, models.OrderStatusProofSubmitted)
	return s.orders.GetByID(ctx, orderID)
}

// MarkDelivered is the seller's final handoff; it starts the grace window
// if proof was already submitted.
func (s *OrderService) MarkDelivered(ctx context.Context, sellerID, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, asNotFound(err, "order %s", orderID)
	}
	if order.SellerID != sellerID {
		return nil, apperrors.New(apperrors.KindAuthorization, "only the seller can mark delivery")
	}

	ok, err := s.orders.MarkDelivered(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperrors.New(apperrors.KindState, "cannot mark delivered from status %s", order.Status)
	}

	s.publishStatus(ctx, order, models.OrderStatusDelivered)
	return s.orders.GetByID(ctx, orderID)
}

// GetOrder returns an order to one of its parties (or an admin).
func (s *OrderService) GetOrder(ctx context.Context, actorID uuid.UUID, isAdmin bool, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, asNotFound(err, "order %s", orderID)
	}
	if !isAdmin && order.BuyerID != actorID && order.SellerID != actorID {
		return nil, apperrors.New(apperrors.KindAuthorization, "not a party to this order")
	}
	return order, nil
}

func (s *OrderService) ListOrders(ctx context.Context, f repositories.OrderFilter) ([]models.Order, error) {
	return s.orders.List(ctx, f)
}

// OrderLedger returns the fund-movement history for an order.
func (s *OrderService) OrderLedger(ctx context.Context, actorID uuid.UUID, isAdmin bool, orderID uuid.UUID) ([]models.LedgerEntry, error) {
	if _, err := s.GetOrder(ctx, actorID, isAdmin, orderID); err != nil {
		return nil, err
	}
	return s.ledger.ListByOrder(ctx, orderID)
}

func (s *OrderService) publishStatus(ctx context.Context, order *models.Order, newStatus string) {
	_ = s.publisher.Publish(ctx, events.StreamOrders, events.Event{
		Type: events.EventOrderStatusChanged,
		Payload: map[string]any{
			"order_id":   order.ID.String(),
			"buyer_id":   order.BuyerID.String(),
			"seller_id":  order.SellerID.String(),
			"old_status": order.Status,
			"new_status": newStatus,
		},
	})
}

func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows) || apperrors.Is(err, apperrors.KindNotFound)
}

// asNotFound maps a missing-row error to a NotFound kind, passing other
// errors through untouched.
func asNotFound(err error, format string, args ...any) error {
	if isNoRows(err) {
		return apperrors.Wrap(apperrors.KindNotFound, err, format, args...)
	}
	return err
}
