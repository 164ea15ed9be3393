package services

import (
	"context"
	"testing"

	"github.com/gigchain/backend/internal/apperrors"
	"github.com/gigchain/backend/internal/models"
	"github.com/google/uuid"
)

func TestFileDispute(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	order := e.deliveredOrder(t)

	disputed, err := e.disputeSvc.FileDispute(ctx, e.buyerID, order.ID, "work does not match the brief")
	if err != nil {
		t.Fatalf("FileDispute: %v", err)
	}
	if disputed.Status != models.OrderStatusDisputed {
		t.Errorf("status = %s", disputed.Status)
	}
	if disputed.DisputeReason == nil || *disputed.DisputeReason == "" {
		t.Error("reason not recorded")
	}
	if disputed.DisputedAt == nil {
		t.Error("disputed_at not set")
	}
}

func TestFileDisputeSellerMay(t *testing.T) {
	e := newTestEnv(t)
	order := e.fundedOrder(t)

	if _, err := e.disputeSvc.FileDispute(context.Background(), e.sellerID, order.ID, "buyer unresponsive"); err != nil {
		t.Errorf("seller must be able to dispute: %v", err)
	}
}

func TestFileDisputeStrangerMayNot(t *testing.T) {
	e := newTestEnv(t)
	order := e.fundedOrder(t)

	_, err := e.disputeSvc.FileDispute(context.Background(), uuid.New(), order.ID, "x")
	if apperrors.KindOf(err) != apperrors.KindAuthorization {
		t.Errorf("expected authorization error, got %v", err)
	}
}

func TestFileDisputeAfterRelease(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	order := e.deliveredOrder(t)

	if _, err := e.settlementSvc.ApproveDelivery(ctx, e.buyerID, order.ID); err != nil {
		t.Fatal(err)
	}
	_, err := e.disputeSvc.FileDispute(ctx, e.buyerID, order.ID, "changed my mind")
	if apperrors.KindOf(err) != apperrors.KindState {
		t.Errorf("dispute after release must fail, got %v", err)
	}
}

func TestDisputeBlocksAutoRelease(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	order := e.deliveredOrder(t)

	if _, err := e.disputeSvc.FileDispute(ctx, e.buyerID, order.ID, "late"); err != nil {
		t.Fatal(err)
	}
	_, err := e.settlementSvc.AutoRelease(ctx, order.ID)
	if apperrors.KindOf(err) != apperrors.KindState {
		t.Errorf("disputed order must not auto-release, got %v", err)
	}
	if e.custodian.transferCount() != 0 {
		t.Error("funds moved on a disputed order")
	}
}

// 10 TON deposit, 40% refund at a 5% fee: buyer gets 4, platform 0.3,
// seller 5.7. The three legs sum back to the deposit exactly.
func TestResolveDisputePartialRefund(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	order := e.deliveredOrder(t)

	if _, err := e.disputeSvc.FileDispute(ctx, e.buyerID, order.ID, "half done"); err != nil {
		t.Fatal(err)
	}

	settled, err := e.disputeSvc.ResolveDispute(ctx, order.ID, 40, "roughly half the work is usable")
	if err != nil {
		t.Fatalf("ResolveDispute: %v", err)
	}

	if settled.Status != models.OrderStatusCancelled {
		t.Errorf("status = %s, any refund to the buyer cancels the order", settled.Status)
	}
	if settled.RefundAmountTON == nil || *settled.RefundAmountTON != "4" {
		t.Errorf("refund = %v, want 4", settled.RefundAmountTON)
	}
	if settled.PlatformFeeTON == nil || *settled.PlatformFeeTON != "0.3" {
		t.Errorf("fee = %v, want 0.3", settled.PlatformFeeTON)
	}
	if settled.DisputeResolvedAt == nil {
		t.Error("dispute_resolved_at not set")
	}

	if e.custodian.transferCount() != 2 {
		t.Fatalf("transfers = %d, want buyer and seller legs", e.custodian.transferCount())
	}
	refundLeg, sellerLeg := e.custodian.transfers[0], e.custodian.transfers[1]
	if refundLeg.To != "EQBuyerWallet" || refundLeg.Amount.Cmp(tonAmount(t, "4")) != 0 {
		t.Errorf("refund leg = %+v", refundLeg)
	}
	if refundLeg.Memo != RefundMemo(order.ID) {
		t.Errorf("refund memo = %q", refundLeg.Memo)
	}
	if sellerLeg.To != "EQSellerWallet" || sellerLeg.Amount.Cmp(tonAmount(t, "5.7")) != 0 {
		t.Errorf("seller leg = %+v", sellerLeg)
	}

	entries, _ := e.ledger.ListByOrder(ctx, order.ID)
	var sawRefund, sawRelease bool
	for _, en := range entries {
		switch en.TxType {
		case models.LedgerTypeRefund:
			sawRefund = en.AmountTON == "4"
		case models.LedgerTypeRelease:
			sawRelease = en.AmountTON == "5.7"
		}
	}
	if !sawRefund || !sawRelease {
		t.Errorf("ledger missing legs: %+v", entries)
	}
}

func TestResolveDisputeFullRefund(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	order := e.deliveredOrder(t)

	if _, err := e.disputeSvc.FileDispute(ctx, e.buyerID, order.ID, "nothing delivered"); err != nil {
		t.Fatal(err)
	}

	settled, err := e.disputeSvc.ResolveDispute(ctx, order.ID, 100, "seller never delivered")
	if err != nil {
		t.Fatal(err)
	}
	if settled.Status != models.OrderStatusCancelled {
		t.Errorf("status = %s, want cancelled for a full refund", settled.Status)
	}
	if *settled.PlatformFeeTON != "0" {
		t.Errorf("fee = %s, full refunds take no fee", *settled.PlatformFeeTON)
	}
	if e.custodian.transferCount() != 1 {
		t.Fatalf("transfers = %d, want refund leg only", e.custodian.transferCount())
	}
	if e.custodian.transfers[0].Amount.Cmp(tonAmount(t, "10")) != 0 {
		t.Error("full deposit must go back to the buyer")
	}
}

func TestResolveDisputeZeroRefund(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	order := e.deliveredOrder(t)

	if _, err := e.disputeSvc.FileDispute(ctx, e.buyerID, order.ID, "frivolous"); err != nil {
		t.Fatal(err)
	}

	// 0% refund is a standard release through the dispute path.
	settled, err := e.disputeSvc.ResolveDispute(ctx, order.ID, 0, "work meets the brief")
	if err != nil {
		t.Fatal(err)
	}
	if settled.Status != models.OrderStatusCompleted {
		t.Errorf("status = %s", settled.Status)
	}
	if e.custodian.transferCount() != 1 {
		t.Fatalf("transfers = %d, want seller leg only", e.custodian.transferCount())
	}
	if e.custodian.transfers[0].Amount.Cmp(tonAmount(t, "9.5")) != 0 {
		t.Errorf("seller leg = %s", e.custodian.transfers[0].Amount)
	}
}

func TestResolveDisputeNotDisputed(t *testing.T) {
	e := newTestEnv(t)
	order := e.deliveredOrder(t)

	_, err := e.disputeSvc.ResolveDispute(context.Background(), order.ID, 50, "split it")
	if apperrors.KindOf(err) != apperrors.KindState {
		t.Errorf("resolving a non-disputed order must fail, got %v", err)
	}
}

func TestResolveDisputeIdempotent(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	order := e.deliveredOrder(t)

	if _, err := e.disputeSvc.FileDispute(ctx, e.buyerID, order.ID, "x"); err != nil {
		t.Fatal(err)
	}
	if _, err := e.disputeSvc.ResolveDispute(ctx, order.ID, 40, "split it"); err != nil {
		t.Fatal(err)
	}
	if _, err := e.disputeSvc.ResolveDispute(ctx, order.ID, 40, "split it"); err != nil {
		t.Fatalf("second resolution must return quietly, got %v", err)
	}
	if e.custodian.transferCount() != 2 {
		t.Fatalf("transfers = %d, resolution ran twice", e.custodian.transferCount())
	}
}

func TestResolveDisputeBadPercent(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	order := e.deliveredOrder(t)

	if _, err := e.disputeSvc.FileDispute(ctx, e.buyerID, order.ID, "x"); err != nil {
		t.Fatal(err)
	}
	if _, err := e.disputeSvc.ResolveDispute(ctx, order.ID, 150, "x"); apperrors.KindOf(err) != apperrors.KindState {
		t.Errorf("percent out of range must fail, got %v", err)
	}
}

func TestResolveDisputeRequiresReason(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	order := e.deliveredOrder(t)

	if _, err := e.disputeSvc.FileDispute(ctx, e.buyerID, order.ID, "late"); err != nil {
		t.Fatal(err)
	}
	if _, err := e.disputeSvc.ResolveDispute(ctx, order.ID, 40, "  "); apperrors.KindOf(err) != apperrors.KindState {
		t.Errorf("resolution without a reason must fail, got %v", err)
	}
	if e.custodian.transferCount() != 0 {
		t.Error("funds moved on a reasonless resolution")
	}
}

// The admin's rationale lands on the order alongside the filer's reason;
// neither overwrites the other.
func TestResolveDisputeRecordsReason(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	order := e.deliveredOrder(t)

	if _, err := e.disputeSvc.FileDispute(ctx, e.buyerID, order.ID, "work is late"); err != nil {
		t.Fatal(err)
	}
	settled, err := e.disputeSvc.ResolveDispute(ctx, order.ID, 25, "delay was partly excused")
	if err != nil {
		t.Fatal(err)
	}

	if settled.ResolutionReason == nil || *settled.ResolutionReason != "delay was partly excused" {
		t.Errorf("resolution reason = %v", settled.ResolutionReason)
	}
	if settled.DisputeReason == nil || *settled.DisputeReason != "work is late" {
		t.Errorf("filer reason = %v, must survive resolution", settled.DisputeReason)
	}
	if settled.DisputeResolvedAt == nil {
		t.Error("dispute_resolved_at not set")
	}
}
