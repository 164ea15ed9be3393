package services

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/gigchain/backend/internal/models"
	"github.com/gigchain/backend/internal/repositories"
	"github.com/gigchain/backend/internal/ton"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// In-memory stores mirroring the SQL semantics of the repositories
// package, including the conditional-update claim.

type memOrders struct {
	mu   sync.Mutex
	byID map[uuid.UUID]*models.Order
}

func newMemOrders() *memOrders {
	return &memOrders{byID: map[uuid.UUID]*models.Order{}}
}

func (m *memOrders) Create(_ context.Context, o *models.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o.ID = uuid.New()
	now := time.Now()
	o.CreatedAt, o.UpdatedAt = now, now
	o.PaymentConfirmedAt = &now
	cp := *o
	m.byID[o.ID] = &cp
	return nil
}

func (m *memOrders) GetByID(_ context.Context, id uuid.UUID) (*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.byID[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *o
	return &cp, nil
}

func (m *memOrders) GetByDepositTxHash(_ context.Context, txHash string) (*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.byID {
		if o.DepositTxHash == txHash {
			cp := *o
			return &cp, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (m *memOrders) List(_ context.Context, f repositories.OrderFilter) ([]models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Order
	for _, o := range m.byID {
		if f.BuyerID != nil && o.BuyerID != *f.BuyerID {
			continue
		}
		if f.SellerID != nil && o.SellerID != *f.SellerID {
			continue
		}
		if f.Status != nil && o.Status != *f.Status {
			continue
		}
		out = append(out, *o)
	}
	return out, nil
}

func (m *memOrders) SetProof(_ context.Context, id uuid.UUID, description string, files []string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.byID[id]
	if !ok || o.Status != models.OrderStatusInProgress {
		return false, nil
	}
	now := time.Now()
	o.Status = models.OrderStatusProofSubmitted
	o.ProofDescription = &description
	o.ProofFiles = files
	o.ProofSubmittedAt = &now
	o.UpdatedAt = now
	return true, nil
}

func (m *memOrders) MarkDelivered(_ context.Context, id uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.byID[id]
	if !ok || (o.Status != models.OrderStatusInProgress && o.Status != models.OrderStatusProofSubmitted) {
		return false, nil
	}
	now := time.Now()
	o.Status = models.OrderStatusDelivered
	o.DeliveredAt = &now
	o.UpdatedAt = now
	return true, nil
}

func (m *memOrders) MarkDisputed(_ context.Context, id uuid.UUID, reason string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.byID[id]
	if !ok || o.EscrowReleased {
		return false, nil
	}
	switch o.Status {
	case models.OrderStatusInProgress, models.OrderStatusProofSubmitted, models.OrderStatusDelivered:
	default:
		return false, nil
	}
	now := time.Now()
	o.Status = models.OrderStatusDisputed
	o.DisputeReason = &reason
	o.DisputedAt = &now
	o.UpdatedAt = now
	return true, nil
}

func (m *memOrders) ClaimSettlement(_ context.Context, id uuid.UUID, toStatus string, fromStatuses []string, platformFeeTON string, refundAmountTON, resolutionReason *string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.byID[id]
	if !ok || o.EscrowReleased {
		return false, nil
	}
	allowed := false
	for _, s := range fromStatuses {
		if o.Status == s {
			allowed = true
			break
		}
	}
	if !allowed {
		return false, nil
	}
	now := time.Now()
	if o.Status == models.OrderStatusDisputed {
		o.DisputeResolvedAt = &now
	}
	o.EscrowReleased = true
	o.Status = toStatus
	o.PlatformFeeTON = &platformFeeTON
	o.RefundAmountTON = refundAmountTON
	if resolutionReason != nil {
		o.ResolutionReason = resolutionReason
	}
	o.CompletedAt = &now
	o.UpdatedAt = now
	return true, nil
}

func (m *memOrders) SetReleaseTxHash(_ context.Context, id uuid.UUID, txHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.byID[id]
	if !ok {
		return pgx.ErrNoRows
	}
	o.ReleaseTxHash = &txHash
	o.UpdatedAt = time.Now()
	return nil
}

func (m *memOrders) GetOverdueDeliveries(_ context.Context, graceSeconds int) ([]models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cutoff := time.Now().Add(-time.Duration(graceSeconds) * time.Second)
	var out []models.Order
	for _, o := range m.byID {
		if o.EscrowReleased || !models.IsReleasableStatus(o.Status) {
			continue
		}
		since := o.DeliveredSince()
		if since != nil && since.Before(cutoff) {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (m *memOrders) GetClaimedUnrecorded(_ context.Context) ([]models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Order
	for _, o := range m.byID {
		if o.EscrowReleased && o.ReleaseTxHash == nil {
			out = append(out, *o)
		}
	}
	return out, nil
}

type memLedger struct {
	mu      sync.Mutex
	entries []models.LedgerEntry
}

func (m *memLedger) Insert(_ context.Context, e *models.LedgerEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e.ID = uuid.New()
	e.CreatedAt = time.Now()
	m.entries = append(m.entries, *e)
	return nil
}

func (m *memLedger) ListByOrder(_ context.Context, orderID uuid.UUID) ([]models.LedgerEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.LedgerEntry
	for _, e := range m.entries {
		if e.OrderID == orderID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *memLedger) GetOutbound(_ context.Context, orderID uuid.UUID) (*models.LedgerEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.entries {
		if e.OrderID == orderID && e.IsOutbound() {
			cp := e
			return &cp, nil
		}
	}
	return nil, nil
}

type memUsers struct {
	mu   sync.Mutex
	byID map[uuid.UUID]*models.User
}

func newMemUsers() *memUsers {
	return &memUsers{byID: map[uuid.UUID]*models.User{}}
}

func (m *memUsers) Create(_ context.Context, u *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.byID {
		if existing.WalletAddress == u.WalletAddress {
			return pgx.ErrNoRows // ON CONFLICT DO NOTHING scans no rows
		}
	}
	u.ID = uuid.New()
	now := time.Now()
	u.CreatedAt, u.LastActiveAt = now, now
	cp := *u
	m.byID[u.ID] = &cp
	return nil
}

func (m *memUsers) GetByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *u
	return &cp, nil
}

func (m *memUsers) GetByWallet(_ context.Context, wallet string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.byID {
		if u.WalletAddress == wallet {
			cp := *u
			return &cp, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (m *memUsers) TouchLastActive(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.byID[id]; ok {
		u.LastActiveAt = time.Now()
	}
	return nil
}

func (m *memUsers) AddRole(_ context.Context, id uuid.UUID, role string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return pgx.ErrNoRows
	}
	if !u.HasRole(role) {
		u.Roles = append(u.Roles, role)
	}
	return nil
}

func (m *memUsers) add(u *models.User) uuid.UUID {
	m.mu.Lock()
	defer m.mu.Unlock()
	u.ID = uuid.New()
	cp := *u
	m.byID[u.ID] = &cp
	return u.ID
}

type memGigs struct {
	mu   sync.Mutex
	byID map[uuid.UUID]*models.Gig
}

func newMemGigs() *memGigs {
	return &memGigs{byID: map[uuid.UUID]*models.Gig{}}
}

func (m *memGigs) Create(_ context.Context, g *models.Gig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	g.ID = uuid.New()
	now := time.Now()
	g.CreatedAt, g.UpdatedAt = now, now
	cp := *g
	m.byID[g.ID] = &cp
	return nil
}

func (m *memGigs) GetByID(_ context.Context, id uuid.UUID) (*models.Gig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.byID[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *g
	return &cp, nil
}

func (m *memGigs) List(_ context.Context, f repositories.GigFilter) ([]models.Gig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Gig
	for _, g := range m.byID {
		if f.SellerID != nil && g.SellerID != *f.SellerID {
			continue
		}
		if f.ActiveOnly && !g.IsActive {
			continue
		}
		out = append(out, *g)
	}
	return out, nil
}

func (m *memGigs) Update(_ context.Context, g *models.Gig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[g.ID]; !ok {
		return pgx.ErrNoRows
	}
	cp := *g
	m.byID[g.ID] = &cp
	return nil
}

func (m *memGigs) SetActive(_ context.Context, id uuid.UUID, active bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.byID[id]
	if !ok {
		return pgx.ErrNoRows
	}
	g.IsActive = active
	return nil
}

type memNonces struct {
	mu      sync.Mutex
	byValue map[string]*models.ProofPayload
}

func newMemNonces() *memNonces {
	return &memNonces{byValue: map[string]*models.ProofPayload{}}
}

func (m *memNonces) Create(_ context.Context, p *models.ProofPayload) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p.ID = uuid.New()
	p.CreatedAt = time.Now()
	cp := *p
	m.byValue[p.Payload] = &cp
	return nil
}

func (m *memNonces) Consume(_ context.Context, payload string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.byValue[payload]
	if !ok || p.Used || time.Now().After(p.ExpiresAt) {
		return false, nil
	}
	p.Used = true
	return true, nil
}

// fakeVerifier returns a canned deposit or error.
type fakeVerifier struct {
	dep *ton.VerifiedDeposit
	err error
}

func (f *fakeVerifier) VerifyDeposit(_ context.Context, _, _, _ string) (*ton.VerifiedDeposit, error) {
	return f.dep, f.err
}

// fakeCustodian counts transfers and can be told to fail.
type fakeTransfer struct {
	To     string
	Amount *big.Int
	Memo   string
}

type fakeCustodian struct {
	mu        sync.Mutex
	balance   *big.Int
	transfers []fakeTransfer
	failWith  error
	seq       int
}

func newFakeCustodian(balanceTON string) *fakeCustodian {
	b, _ := ton.ParseTON(balanceTON)
	return &fakeCustodian{balance: b}
}

func (c *fakeCustodian) Address() string { return "EQCustodian" }

func (c *fakeCustodian) BalanceNano(_ context.Context) (*big.Int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return new(big.Int).Set(c.balance), nil
}

func (c *fakeCustodian) Transfer(_ context.Context, to string, amount *big.Int, memo string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failWith != nil {
		return "", c.failWith
	}
	c.seq++
	c.transfers = append(c.transfers, fakeTransfer{To: to, Amount: new(big.Int).Set(amount), Memo: memo})
	return fmt.Sprintf("tx-%d", c.seq), nil
}

func (c *fakeCustodian) transferCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.transfers)
}
