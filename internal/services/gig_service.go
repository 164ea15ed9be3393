package services

import (
	"context"
	"strings"

	"github.com/gigchain/backend/internal/apperrors"
	"github.com/gigchain/backend/internal/models"
	"github.com/gigchain/backend/internal/repositories"
	"github.com/gigchain/backend/internal/ton"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type GigService struct {
	gigs  GigStore
	users UserStore
	log   *zap.Logger
}

func NewGigService(gigs GigStore, users UserStore, log *zap.Logger) *GigService {
	return &GigService{gigs: gigs, users: users, log: log}
}

type GigInput struct {
	Title       string
	Description *string
	Category    *string
	Packages    []models.GigPackage
}

func (in *GigInput) validate() error {
	if strings.TrimSpace(in.Title) == "" {
		return apperrors.New(apperrors.KindState, "gig title is required")
	}
	if len(in.Packages) == 0 {
		return apperrors.New(apperrors.KindState, "gig needs at least one package")
	}
	for i, p := range in.Packages {
		price, err := ton.ParseTON(p.PriceTON)
		if err != nil || price.Sign() <= 0 {
			return apperrors.New(apperrors.KindState, "package %d has invalid price %q", i, p.PriceTON)
		}
		if p.DeliveryDays <= 0 || p.DeliveryDays > 365 {
			return apperrors.New(apperrors.KindState, "package %d has invalid delivery days %d", i, p.DeliveryDays)
		}
	}
	return nil
}

func (s *GigService) CreateGig(ctx context.Context, sellerID uuid.UUID, in GigInput) (*models.Gig, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	seller, err := s.users.GetByID(ctx, sellerID)
	if err != nil {
		return nil, asNotFound(err, "user %s", sellerID)
	}

	// First listing makes a buyer a seller too.
	if !seller.HasRole(models.RoleSeller) {
		if err := s.users.AddRole(ctx, sellerID, models.RoleSeller); err != nil {
			return nil, err
		}
	}

	gig := &models.Gig{
		SellerID:    sellerID,
		Title:       strings.TrimSpace(in.Title),
		Description: in.Description,
		Category:    in.Category,
		Packages:    in.Packages,
		IsActive:    true,
	}
	if err := s.gigs.Create(ctx, gig); err != nil {
		return nil, err
	}

	s.log.Info("gig created", zap.String("gig_id", gig.ID.String()), zap.String("seller_id", sellerID.String()))
	return gig, nil
}

func (s *GigService) GetGig(ctx context.Context, id uuid.UUID) (*models.Gig, error) {
	gig, err := s.gigs.GetByID(ctx, id)
	if err != nil {
		return nil, asNotFound(err, "gig %s", id)
	}
	return gig, nil
}

func (s *GigService) ListGigs(ctx context.Context, f repositories.GigFilter) ([]models.Gig, error) {
	return s.gigs.List(ctx, f)
}

func (s *GigService) UpdateGig(ctx context.Context, sellerID, gigID uuid.UUID, in GigInput) (*models.Gig, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	gig, err := s.gigs.GetByID(ctx, gigID)
	if err != nil {
		return nil, asNotFound(err, "gig %s", gigID)
	}
	if gig.SellerID != sellerID {
		return nil, apperrors.New(apperrors.KindAuthorization, "only the gig owner can edit it")
	}

	gig.Title = strings.TrimSpace(in.Title)
	gig.Description = in.Description
	gig.Category = in.Category
	gig.Packages = in.Packages
	if err := s.gigs.Update(ctx, gig); err != nil {
		return nil, err
	}
	return gig, nil
}

func (s *GigService) SetGigActive(ctx context.Context, sellerID, gigID uuid.UUID, active bool) error {
	gig, err := s.gigs.GetByID(ctx, gigID)
	if err != nil {
		return asNotFound(err, "gig %s", gigID)
	}
	if gig.SellerID != sellerID {
		return apperrors.New(apperrors.KindAuthorization, "only the gig owner can change its visibility")
	}
	return s.gigs.SetActive(ctx, gigID, active)
}
