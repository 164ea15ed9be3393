package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"strings"
	"time"

	"github.com/gigchain/backend/internal/apperrors"
	"github.com/gigchain/backend/internal/auth"
	"github.com/gigchain/backend/internal/config"
	"github.com/gigchain/backend/internal/models"
	"github.com/gigchain/backend/internal/ton"
	"github.com/xssnick/tonutils-go/address"
	"go.uber.org/zap"
)

// RegistrationCache answers "is this wallet registered" without hitting
// Postgres on every poll. Entries expire on a short TTL so a fresh signup
// shows up quickly.
type RegistrationCache interface {
	Get(ctx context.Context, wallet string) (registered bool, found bool, err error)
	Set(ctx context.Context, wallet string, registered bool) error
}

// WalletCredentials is what a client presents to log in: the claimed
// address, its public key, and a ton_proof signature over our nonce.
type WalletCredentials struct {
	Address   string // raw: 0:<hex>
	PublicKey string // hex
	Proof     ton.Proof
}

type AuthService struct {
	users    UserStore
	nonces   NonceStore
	regCache RegistrationCache
	cfg      *config.Config
	log      *zap.Logger
}

func NewAuthService(users UserStore, nonces NonceStore, regCache RegistrationCache, cfg *config.Config, log *zap.Logger) *AuthService {
	return &AuthService{users: users, nonces: nonces, regCache: regCache, cfg: cfg, log: log}
}

// Challenge issues a single-use nonce the wallet must sign.
func (s *AuthService) Challenge(ctx context.Context) (*models.ProofPayload, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return nil, apperrors.Wrap(apperrors.KindInternal, err, "generate challenge")
	}

	payload := &models.ProofPayload{
		Payload:   hex.EncodeToString(buf),
		ExpiresAt: time.Now().Add(s.cfg.ProofMaxAge),
	}
	if err := s.nonces.Create(ctx, payload); err != nil {
		return nil, err
	}
	return payload, nil
}

// Login authenticates an already-registered wallet and returns a JWT.
// An unmapped wallet gets a NotFound, telling the client to sign up.
func (s *AuthService) Login(ctx context.Context, creds WalletCredentials) (string, *models.User, error) {
	if err := s.verify(ctx, creds); err != nil {
		return "", nil, err
	}

	user, err := s.users.GetByWallet(ctx, creds.Address)
	if err != nil {
		if isNoRows(err) {
			return "", nil, apperrors.New(apperrors.KindNotFound, "wallet %s is not registered", creds.Address)
		}
		return "", nil, err
	}

	// The proof already bound the key to the address; this catches a stale
	// record after a wallet re-deploy with a different key.
	if !strings.EqualFold(user.PublicKey, creds.PublicKey) {
		return "", nil, apperrors.New(apperrors.KindAuthentication, "public key does not match registered wallet")
	}

	if err := s.users.TouchLastActive(ctx, user.ID); err != nil {
		s.log.Warn("failed to touch last_active_at", zap.String("user_id", user.ID.String()), zap.Error(err))
	}
	s.cacheRegistered(ctx, creds.Address, true)

	token, err := auth.GenerateJWT(s.cfg.JWTSecret, user.ID, user.WalletAddress, user.Roles, s.cfg.JWTExpiration)
	if err != nil {
		return "", nil, apperrors.Wrap(apperrors.KindInternal, err, "sign token")
	}
	return token, user, nil
}

// Signup registers a new wallet-backed identity and returns a JWT. The
// wallet address is the identity key; registering it twice is a conflict.
func (s *AuthService) Signup(ctx context.Context, creds WalletCredentials, displayName, role string) (string, *models.User, error) {
	if role != models.RoleBuyer && role != models.RoleSeller {
		return "", nil, apperrors.New(apperrors.KindState, "role must be buyer or seller, got %q", role)
	}

	if err := s.verify(ctx, creds); err != nil {
		return "", nil, err
	}

	wc, hash, err := ton.ParseRawAddress(creds.Address)
	if err != nil {
		return "", nil, err
	}
	friendly := address.NewAddress(0, byte(wc), hash).String()

	user := &models.User{
		WalletAddress:  creds.Address,
		WalletFriendly: friendly,
		PublicKey:      strings.ToLower(creds.PublicKey),
		Roles:          []string{role},
	}
	if name := strings.TrimSpace(displayName); name != "" {
		user.DisplayName = &name
	}

	if err := s.users.Create(ctx, user); err != nil {
		if isNoRows(err) {
			return "", nil, apperrors.New(apperrors.KindConflict, "wallet %s is already registered", creds.Address)
		}
		return "", nil, err
	}
	s.cacheRegistered(ctx, creds.Address, true)

	s.log.Info("user registered",
		zap.String("user_id", user.ID.String()),
		zap.String("wallet", creds.Address),
		zap.String("role", role),
	)

	token, err := auth.GenerateJWT(s.cfg.JWTSecret, user.ID, user.WalletAddress, user.Roles, s.cfg.JWTExpiration)
	if err != nil {
		return "", nil, apperrors.Wrap(apperrors.KindInternal, err, "sign token")
	}
	return token, user, nil
}

// IsRegistered reports whether a wallet maps to an identity, through the
// TTL cache.
func (s *AuthService) IsRegistered(ctx context.Context, wallet string) (bool, error) {
	if s.regCache != nil {
		if registered, found, err := s.regCache.Get(ctx, wallet); err == nil && found {
			return registered, nil
		}
	}

	_, err := s.users.GetByWallet(ctx, wallet)
	if err != nil {
		if isNoRows(err) {
			s.cacheRegistered(ctx, wallet, false)
			return false, nil
		}
		return false, err
	}
	s.cacheRegistered(ctx, wallet, true)
	return true, nil
}

// verify consumes the nonce and checks the wallet signature. Consuming
// first makes a replayed proof fail even if verification errors out.
func (s *AuthService) verify(ctx context.Context, creds WalletCredentials) error {
	ok, err := s.nonces.Consume(ctx, creds.Proof.Payload)
	if err != nil {
		return err
	}
	if !ok {
		return apperrors.New(apperrors.KindAuthentication, "challenge payload is unknown, expired or already used")
	}

	wc, hash, err := ton.ParseRawAddress(creds.Address)
	if err != nil {
		return err
	}
	return ton.VerifyProof(creds.PublicKey, hash, wc, creds.Proof, s.cfg.ProofAllowedDomains, s.cfg.ProofMaxAge)
}

func (s *AuthService) cacheRegistered(ctx context.Context, wallet string, registered bool) {
	if s.regCache == nil {
		return
	}
	if err := s.regCache.Set(ctx, wallet, registered); err != nil {
		s.log.Warn("registration cache write failed", zap.Error(err))
	}
}
