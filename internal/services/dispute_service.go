package services

import (
	"context"
	"strings"

	"github.com/gigchain/backend/internal/apperrors"
	"github.com/gigchain/backend/internal/events"
	"github.com/gigchain/backend/internal/metrics"
	"github.com/gigchain/backend/internal/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type DisputeService struct {
	orders     OrderStore
	settlement *SettlementService
	publisher  events.Publisher
	log        *zap.Logger
}

func NewDisputeService(orders OrderStore, settlement *SettlementService, publisher events.Publisher, log *zap.Logger) *DisputeService {
	return &DisputeService{orders: orders, settlement: settlement, publisher: publisher, log: log}
}

// FileDispute freezes an order for admin review. Either party may file, at
// any point before escrow is released.
func (s *DisputeService) FileDispute(ctx context.Context, actorID, orderID uuid.UUID, reason string) (*models.Order, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, apperrors.New(apperrors.KindState, "dispute reason is required")
	}

	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, asNotFound(err, "order %s", orderID)
	}
	if order.BuyerID != actorID && order.SellerID != actorID {
		return nil, apperrors.New(apperrors.KindAuthorization, "only a party to the order can file a dispute")
	}

	ok, err := s.orders.MarkDisputed(ctx, orderID, reason)
	if err != nil {
		return nil, err
	}
	if !ok {
		if order.EscrowReleased {
			return nil, apperrors.New(apperrors.KindState, "escrow already released, nothing to dispute")
		}
		return nil, apperrors.New(apperrors.KindState, "cannot dispute from status %s", order.Status)
	}

	metrics.DisputesFiled.Inc()
	s.log.Info("dispute filed",
		zap.String("order_id", orderID.String()),
		zap.String("filed_by", actorID.String()),
	)

	_ = s.publisher.Publish(ctx, events.StreamOrders, events.Event{
		Type: events.EventDisputeFiled,
		Payload: map[string]any{
			"order_id":  orderID.String(),
			"buyer_id":  order.BuyerID.String(),
			"seller_id": order.SellerID.String(),
			"filed_by":  actorID.String(),
			"reason":    reason,
		},
	})

	return s.orders.GetByID(ctx, orderID)
}

// ResolveDispute settles a disputed order per the admin's decision:
// refundPct of the deposit back to the buyer (0 releases everything to the
// seller, 100 is a full refund), with the admin's rationale stamped on the
// order. Authorization happens at the HTTP layer, but the status gate here
// is unconditional.
func (s *DisputeService) ResolveDispute(ctx context.Context, orderID uuid.UUID, refundPct int, reason string) (*models.Order, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, apperrors.New(apperrors.KindState, "resolution reason is required")
	}

	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, asNotFound(err, "order %s", orderID)
	}
	if order.EscrowReleased {
		return order, nil
	}
	if order.Status != models.OrderStatusDisputed {
		return nil, apperrors.New(apperrors.KindState, "order %s is not disputed (status: %s)", orderID, order.Status)
	}
	return s.settlement.Refund(ctx, order, refundPct, reason)
}
