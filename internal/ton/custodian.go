package ton

import (
	"context"
	"encoding/hex"
	"math/big"
	"strings"

	"github.com/gigchain/backend/internal/apperrors"
	"github.com/xssnick/tonutils-go/address"
	"github.com/xssnick/tonutils-go/tlb"
	"github.com/xssnick/tonutils-go/ton/wallet"
	"go.uber.org/zap"
)

// Custodian holds the escrow hot wallet and executes outbound transfers on
// command from the settlement engine. It knows nothing about orders; the
// memo ties a transfer back to one.
type Custodian struct {
	client *Client
	w      *wallet.Wallet
	log    *zap.Logger
}

// NewCustodian derives the wallet from the seed phrase supplied by the
// secret store. The derived address must match the configured escrow
// address, otherwise deposits and payouts would use different accounts.
func NewCustodian(client *Client, seed string, log *zap.Logger) (*Custodian, error) {
	words := strings.Fields(seed)
	if len(words) == 0 {
		return nil, apperrors.New(apperrors.KindConfig, "escrow wallet seed is not configured")
	}

	w, err := wallet.FromSeed(client.API(), words, wallet.V4R2)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindConfig, err, "derive escrow wallet from seed")
	}

	if w.WalletAddress().String() != client.EscrowAddress() {
		return nil, apperrors.New(apperrors.KindConfig,
			"seed derives %s but escrow address is configured as %s",
			w.WalletAddress().String(), client.EscrowAddress())
	}

	return &Custodian{client: client, w: w, log: log}, nil
}

func (c *Custodian) Address() string { return c.w.WalletAddress().String() }

// BalanceNano returns the custodian's available balance.
func (c *Custodian) BalanceNano(ctx context.Context) (*big.Int, error) {
	block, err := c.client.API().CurrentMasterchainInfo(ctx)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindNetwork, err, "get master block")
	}
	balance, err := c.w.GetBalance(ctx, block)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindNetwork, err, "get escrow balance")
	}
	return balance.Nano(), nil
}

// Transfer broadcasts one outbound transfer and waits for it to land in a
// block. Irreversible once confirmed; callers must have claimed the order
// before invoking this.
func (c *Custodian) Transfer(ctx context.Context, toAddr string, amountNano *big.Int, memo string) (string, error) {
	to, err := address.ParseAddr(toAddr)
	if err != nil {
		return "", apperrors.Wrap(apperrors.KindVerification, err, "invalid payout address %s", toAddr)
	}

	tx, _, err := c.w.TransferWaitTransaction(ctx, to, tlb.FromNanoTON(amountNano), memo)
	if err != nil {
		return "", apperrors.Wrap(apperrors.KindNetwork, err, "transfer %s TON to %s", FormatTON(amountNano), toAddr)
	}

	hash := hex.EncodeToString(tx.Hash)
	c.log.Info("escrow transfer confirmed",
		zap.String("to", toAddr),
		zap.String("amount_ton", FormatTON(amountNano)),
		zap.String("memo", memo),
		zap.String("tx_hash", hash),
	)
	return hash, nil
}
