package ton

import (
	"bytes"
	"context"
	"encoding/hex"
	"fmt"
	"math/big"
	"sort"
	"strings"

	"github.com/gigchain/backend/internal/apperrors"
	"github.com/gigchain/backend/internal/config"
	"github.com/xssnick/tonutils-go/address"
	"github.com/xssnick/tonutils-go/liteclient"
	"github.com/xssnick/tonutils-go/tlb"
	"github.com/xssnick/tonutils-go/ton"
	"go.uber.org/zap"
)

const txBatchSize = 100

// Client wraps a lite-server connection scoped to the escrow account. The
// verifier and the reconciler both read through it; the custodian signs
// through the same API handle.
type Client struct {
	api    ton.APIClientWrapped
	escrow *address.Address
	log    *zap.Logger
}

// DepositTx is an incoming transfer observed on the escrow account.
type DepositTx struct {
	Hash       string // hex
	Sender     string
	Recipient  string
	AmountNano *big.Int
	Bounced    bool
	LT         uint64
}

// OutboundTx is an outgoing transfer from the escrow account, used by the
// reconciler to match settlements back to orders by memo.
type OutboundTx struct {
	Hash       string
	Recipient  string
	AmountNano *big.Int
	Memo       string
	LT         uint64
}

// Dial connects to the TON network. With LITE_SERVER_HOST/KEY set it pins a
// specific lite server, otherwise it auto-discovers from the global config
// for the configured network.
func Dial(ctx context.Context, cfg *config.Config, log *zap.Logger) (*Client, error) {
	if cfg.EscrowWalletAddress == "" {
		return nil, apperrors.New(apperrors.KindConfig, "escrow wallet address is not configured")
	}
	escrow, err := address.ParseAddr(cfg.EscrowWalletAddress)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindConfig, err, "invalid escrow wallet address %s", cfg.EscrowWalletAddress)
	}

	pool := liteclient.NewConnectionPool()

	if cfg.LiteServerHost != "" && cfg.LiteServerKey != "" {
		addr := fmt.Sprintf("%s:%d", cfg.LiteServerHost, cfg.LiteServerPort)
		log.Info("connecting to lite server", zap.String("addr", addr))
		if err := pool.AddConnection(ctx, addr, cfg.LiteServerKey); err != nil {
			return nil, apperrors.Wrap(apperrors.KindNetwork, err, "connect to lite server %s", addr)
		}
	} else {
		var configURL string
		switch strings.ToLower(cfg.TONNetwork) {
		case "mainnet":
			configURL = "https://ton.org/global.config.json"
		default:
			configURL = "https://ton.org/testnet-global.config.json"
		}
		log.Info("connecting via global config", zap.String("url", configURL), zap.String("network", cfg.TONNetwork))
		if err := pool.AddConnectionsFromConfigUrl(ctx, configURL); err != nil {
			return nil, apperrors.Wrap(apperrors.KindNetwork, err, "connect via config %s", configURL)
		}
	}

	proofPolicy := ton.ProofCheckPolicyFast
	if strings.ToLower(cfg.TONNetwork) == "mainnet" {
		proofPolicy = ton.ProofCheckPolicySecure
	}

	return &Client{
		api:    ton.NewAPIClient(pool, proofPolicy).WithRetry(),
		escrow: escrow,
		log:    log,
	}, nil
}

func (c *Client) API() ton.APIClientWrapped { return c.api }

func (c *Client) EscrowAddress() string { return c.escrow.String() }

// FindDeposit looks for an incoming transfer with the given hash among the
// escrow account's recent transactions. Returns KindNotFound when the hash
// is not visible yet; finality can lag, so callers may retry.
func (c *Client) FindDeposit(ctx context.Context, txHash string) (*DepositTx, error) {
	want, err := hex.DecodeString(strings.TrimPrefix(txHash, "0x"))
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindVerification, err, "invalid transaction hash %q", txHash)
	}

	txs, err := c.listRecent(ctx, txBatchSize*3)
	if err != nil {
		return nil, err
	}

	for _, tx := range txs {
		if !bytes.Equal(tx.Hash, want) {
			continue
		}
		in, ok := incomingMessage(tx)
		if !ok {
			return nil, apperrors.New(apperrors.KindVerification, "transaction %s is not an incoming transfer", txHash)
		}
		return &DepositTx{
			Hash:       hex.EncodeToString(tx.Hash),
			Sender:     in.SrcAddr.String(),
			Recipient:  c.escrow.String(),
			AmountNano: in.Amount.Nano(),
			Bounced:    in.Bounced,
			LT:         tx.LT,
		}, nil
	}

	return nil, apperrors.New(apperrors.KindNotFound, "transaction %s not found on escrow account", txHash)
}

// ListOutbound returns up to limit recent outgoing transfers, newest first.
func (c *Client) ListOutbound(ctx context.Context, limit int) ([]OutboundTx, error) {
	txs, err := c.listRecent(ctx, limit)
	if err != nil {
		return nil, err
	}

	var out []OutboundTx
	for _, tx := range txs {
		if tx.IO.Out == nil {
			continue
		}
		msgs, err := tx.IO.Out.ToSlice()
		if err != nil {
			continue
		}
		for _, m := range msgs {
			internal, ok := m.Msg.(*tlb.InternalMessage)
			if !ok || internal == nil || internal.Amount.Nano().Sign() <= 0 {
				continue
			}
			out = append(out, OutboundTx{
				Hash:       hex.EncodeToString(tx.Hash),
				Recipient:  internal.DstAddr.String(),
				AmountNano: internal.Amount.Nano(),
				Memo:       extractComment(internal),
				LT:         tx.LT,
			})
		}
	}
	return out, nil
}

// listRecent pages backwards from the account's last transaction until it
// has collected limit entries, then returns them newest first.
func (c *Client) listRecent(ctx context.Context, limit int) ([]*tlb.Transaction, error) {
	block, err := c.api.CurrentMasterchainInfo(ctx)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindNetwork, err, "get master block")
	}

	account, err := c.api.GetAccount(ctx, block, c.escrow)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindNetwork, err, "get escrow account")
	}
	if account == nil || !account.IsActive || account.LastTxLT == 0 {
		return nil, nil
	}

	var all []*tlb.Transaction
	lt := account.LastTxLT
	hash := account.LastTxHash

	for len(all) < limit {
		txs, err := c.api.ListTransactions(ctx, c.escrow, uint32(txBatchSize), lt, hash)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.KindNetwork, err, "list transactions (lt=%d)", lt)
		}
		if len(txs) == 0 {
			break
		}

		all = append(all, txs...)

		if len(txs) < txBatchSize {
			break
		}
		oldest := txs[0]
		if oldest.PrevTxLT == 0 {
			break
		}
		lt = oldest.PrevTxLT
		hash = oldest.PrevTxHash
	}

	sort.Slice(all, func(i, j int) bool { return all[i].LT > all[j].LT })
	if len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func incomingMessage(tx *tlb.Transaction) (*tlb.InternalMessage, bool) {
	if tx.IO.In == nil {
		return nil, false
	}
	in, ok := tx.IO.In.Msg.(*tlb.InternalMessage)
	if !ok || in == nil {
		return nil, false
	}
	return in, true
}

// extractComment parses a text comment from an internal message body.
// TON text comments are opcode 0x00000000 followed by UTF-8 text.
func extractComment(in *tlb.InternalMessage) string {
	body := in.Body
	if body == nil {
		return ""
	}

	slice := body.BeginParse()
	if slice.BitsLeft() < 32 {
		return ""
	}

	op, err := slice.LoadUInt(32)
	if err != nil || op != 0 {
		return ""
	}

	remaining := slice.BitsLeft()
	if remaining < 8 {
		return ""
	}

	data, err := slice.LoadSlice(remaining)
	if err != nil {
		return ""
	}

	return strings.TrimSpace(string(data))
}
