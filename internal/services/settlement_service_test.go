package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/gigchain/backend/internal/apperrors"
	"github.com/gigchain/backend/internal/models"
)

func TestApproveDeliveryReleasesEscrow(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	order := e.deliveredOrder(t)

	settled, err := e.settlementSvc.ApproveDelivery(ctx, e.buyerID, order.ID)
	if err != nil {
		t.Fatalf("ApproveDelivery: %v", err)
	}

	if settled.Status != models.OrderStatusCompleted {
		t.Errorf("status = %s, want completed", settled.Status)
	}
	if !settled.EscrowReleased {
		t.Error("escrow_released not set")
	}
	if settled.PlatformFeeTON == nil || *settled.PlatformFeeTON != "0.5" {
		t.Errorf("fee = %v, want 0.5 (5%% of 10)", settled.PlatformFeeTON)
	}
	if settled.ReleaseTxHash == nil {
		t.Error("release tx hash not recorded")
	}

	// One transfer, 9.5 TON to the seller's wallet, memo-tagged.
	if e.custodian.transferCount() != 1 {
		t.Fatalf("transfers = %d, want 1", e.custodian.transferCount())
	}
	tr := e.custodian.transfers[0]
	if tr.Amount.Cmp(tonAmount(t, "9.5")) != 0 {
		t.Errorf("payout = %s nano, want 9.5 TON", tr.Amount)
	}
	if tr.To != "EQSellerWallet" {
		t.Errorf("payout to %s, want seller wallet", tr.To)
	}
	if tr.Memo != SettlementMemo(order.ID) {
		t.Errorf("memo = %q, want %q", tr.Memo, SettlementMemo(order.ID))
	}

	out, _ := e.ledger.GetOutbound(ctx, order.ID)
	if out == nil || out.TxType != models.LedgerTypeRelease || out.AmountTON != "9.5" {
		t.Errorf("outbound ledger entry = %+v, want release of 9.5", out)
	}
}

func TestApproveDeliveryIdempotent(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	order := e.deliveredOrder(t)

	if _, err := e.settlementSvc.ApproveDelivery(ctx, e.buyerID, order.ID); err != nil {
		t.Fatal(err)
	}
	again, err := e.settlementSvc.ApproveDelivery(ctx, e.buyerID, order.ID)
	if err != nil {
		t.Fatalf("second approval must succeed quietly, got %v", err)
	}
	if again.Status != models.OrderStatusCompleted {
		t.Errorf("status = %s", again.Status)
	}
	if e.custodian.transferCount() != 1 {
		t.Fatalf("transfers = %d, funds moved twice", e.custodian.transferCount())
	}
}

func TestApproveDeliveryConcurrent(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	order := e.deliveredOrder(t)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = e.settlementSvc.ApproveDelivery(ctx, e.buyerID, order.ID)
		}()
	}
	wg.Wait()

	if e.custodian.transferCount() != 1 {
		t.Fatalf("transfers = %d, want exactly 1 under concurrent approvals", e.custodian.transferCount())
	}
}

func TestApproveDeliveryRequiresProof(t *testing.T) {
	e := newTestEnv(t)
	order := e.fundedOrder(t)

	// Delivered straight from in_progress, no proof files attached.
	if _, err := e.orderSvc.MarkDelivered(context.Background(), e.sellerID, order.ID); err != nil {
		t.Fatal(err)
	}

	_, err := e.settlementSvc.ApproveDelivery(context.Background(), e.buyerID, order.ID)
	if apperrors.KindOf(err) != apperrors.KindState {
		t.Errorf("approval without proof must fail, got %v", err)
	}
	if e.custodian.transferCount() != 0 {
		t.Error("funds moved without proof")
	}
}

func TestApproveDeliveryOnlyBuyer(t *testing.T) {
	e := newTestEnv(t)
	order := e.deliveredOrder(t)

	_, err := e.settlementSvc.ApproveDelivery(context.Background(), e.sellerID, order.ID)
	if apperrors.KindOf(err) != apperrors.KindAuthorization {
		t.Errorf("seller self-approval must fail, got %v", err)
	}
}

func TestReleaseInsufficientFunds(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	order := e.deliveredOrder(t)

	e.custodian.balance = tonAmount(t, "1") // cannot cover 9.5 + reserve

	_, err := e.settlementSvc.ApproveDelivery(ctx, e.buyerID, order.ID)
	if apperrors.KindOf(err) != apperrors.KindInsufficientFunds {
		t.Fatalf("expected insufficient funds, got %v", err)
	}
	if !apperrors.IsFatal(err) {
		t.Error("shortfall must be fatal, not retryable")
	}

	// Balance is checked before the claim, so the order stays approvable
	// after a top-up.
	current, _ := e.orders.GetByID(ctx, order.ID)
	if current.EscrowReleased {
		t.Error("claim taken despite shortfall")
	}

	e.custodian.balance = tonAmount(t, "100")
	if _, err := e.settlementSvc.ApproveDelivery(ctx, e.buyerID, order.ID); err != nil {
		t.Fatalf("approval after top-up failed: %v", err)
	}
}

// The balance check covers the whole deposit, not just the seller leg.
// 9.6 TON covers 9.5 to the seller plus the 0.05 reserve, but not the
// 0.5 fee leg, so the release must refuse rather than run the pool into
// deficit.
func TestReleaseBalanceMustCoverFullDeposit(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	order := e.deliveredOrder(t)

	e.custodian.balance = tonAmount(t, "9.6")

	_, err := e.settlementSvc.ApproveDelivery(ctx, e.buyerID, order.ID)
	if apperrors.KindOf(err) != apperrors.KindInsufficientFunds {
		t.Fatalf("expected insufficient funds, got %v", err)
	}
	if e.custodian.transferCount() != 0 {
		t.Error("funds moved despite the fee leg being uncovered")
	}
	current, _ := e.orders.GetByID(ctx, order.ID)
	if current.EscrowReleased {
		t.Error("claim taken despite shortfall")
	}
}

func TestReleaseTransferFailureKeepsClaim(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	order := e.deliveredOrder(t)

	e.custodian.failWith = apperrors.New(apperrors.KindNetwork, "lite server gone")

	_, err := e.settlementSvc.ApproveDelivery(ctx, e.buyerID, order.ID)
	if apperrors.KindOf(err) != apperrors.KindNetwork {
		t.Fatalf("expected network error, got %v", err)
	}

	// The claim stays so no concurrent path can double-pay; the reconciler
	// sees the missing tx hash and finishes the job.
	current, _ := e.orders.GetByID(ctx, order.ID)
	if !current.EscrowReleased {
		t.Error("claim must survive a failed transfer")
	}
	if current.ReleaseTxHash != nil {
		t.Error("no tx hash may be recorded for a failed transfer")
	}

	pending, _ := e.orders.GetClaimedUnrecorded(ctx)
	if len(pending) != 1 || pending[0].ID != order.ID {
		t.Errorf("order must be visible to the reconciler, got %+v", pending)
	}
}

func TestAutoReleaseWithoutProofFiles(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	order := e.fundedOrder(t)
	if _, err := e.orderSvc.MarkDelivered(ctx, e.sellerID, order.ID); err != nil {
		t.Fatal(err)
	}

	// The sweep settles on timeout even when the buyer never saw proof
	// files; silence past the grace window is acceptance.
	settled, err := e.settlementSvc.AutoRelease(ctx, order.ID)
	if err != nil {
		t.Fatalf("AutoRelease: %v", err)
	}
	if settled.Status != models.OrderStatusCompleted {
		t.Errorf("status = %s", settled.Status)
	}

	out, _ := e.ledger.GetOutbound(ctx, order.ID)
	if out == nil || out.TxType != models.LedgerTypeAutoRelease {
		t.Errorf("ledger entry = %+v, want auto_release", out)
	}
}

func TestAutoReleaseWrongStatus(t *testing.T) {
	e := newTestEnv(t)
	order := e.fundedOrder(t)

	_, err := e.settlementSvc.AutoRelease(context.Background(), order.ID)
	if apperrors.KindOf(err) != apperrors.KindState {
		t.Errorf("auto-release from in_progress must fail, got %v", err)
	}
}

func TestFeeRemainderStaysWithSeller(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	// 0.000000033 TON: 33 nano * 500 / 10000 = 1.65, truncated to 1 nano
	// fee. The seller gets 32 nano; conservation is exact.
	e.gigs.byID[e.gigID].Packages[0].PriceTON = "0.000000033"
	e.verifier.dep.AmountNano = tonAmount(t, "0.000000033")

	order := e.deliveredOrder(t)
	settled, err := e.settlementSvc.ApproveDelivery(ctx, e.buyerID, order.ID)
	if err != nil {
		t.Fatal(err)
	}
	if *settled.PlatformFeeTON != "0.000000001" {
		t.Errorf("fee = %s, want 0.000000001", *settled.PlatformFeeTON)
	}
	tr := e.custodian.transfers[0]
	if tr.Amount.Cmp(tonAmount(t, "0.000000032")) != 0 {
		t.Errorf("payout = %s nano, want 32", tr.Amount)
	}
}

// A delivery just past the 7-day grace window is picked up by the overdue
// scan and auto-releases; one still inside the window is left alone.
func TestGraceWindowBoundary(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	order := e.deliveredOrder(t)

	backdate := func(d time.Duration) {
		e.orders.mu.Lock()
		at := time.Now().Add(-d)
		e.orders.byID[order.ID].DeliveredAt = &at
		e.orders.mu.Unlock()
	}

	grace := int(e.cfg.GraceWindow.Seconds())

	backdate(6 * 24 * time.Hour)
	overdue, err := e.orders.GetOverdueDeliveries(ctx, grace)
	if err != nil {
		t.Fatal(err)
	}
	if len(overdue) != 0 {
		t.Fatalf("6-day-old delivery selected: %+v", overdue)
	}

	backdate(7*24*time.Hour + time.Minute)
	overdue, err = e.orders.GetOverdueDeliveries(ctx, grace)
	if err != nil {
		t.Fatal(err)
	}
	if len(overdue) != 1 {
		t.Fatalf("overdue = %d, want the 7d+1m delivery", len(overdue))
	}

	settled, err := e.settlementSvc.AutoRelease(ctx, overdue[0].ID)
	if err != nil {
		t.Fatalf("AutoRelease: %v", err)
	}
	if settled.Status != models.OrderStatusCompleted || !settled.EscrowReleased {
		t.Errorf("settled = %+v", settled)
	}
}
