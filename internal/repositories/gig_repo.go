package repositories

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/gigchain/backend/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

type GigRepo struct {
	pool *pgxpool.Pool
}

func NewGigRepo(pool *pgxpool.Pool) *GigRepo {
	return &GigRepo{pool: pool}
}

func (r *GigRepo) Create(ctx context.Context, g *models.Gig) error {
	packages, _ := json.Marshal(g.Packages)
	return r.pool.QueryRow(ctx, `
		INSERT INTO gigs (seller_id, title, description, category, packages, is_active)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at
	`, g.SellerID, g.Title, g.Description, g.Category, packages, g.IsActive,
	).Scan(&g.ID, &g.CreatedAt, &g.UpdatedAt)
}

func (r *GigRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Gig, error) {
	var g models.Gig
	var packages []byte
	err := r.pool.QueryRow(ctx, `
		SELECT id, seller_id, title, description, category, packages, is_active, created_at, updated_at
		FROM gigs WHERE id = $1
	`, id).Scan(&g.ID, &g.SellerID, &g.Title, &g.Description, &g.Category, &packages, &g.IsActive, &g.CreatedAt, &g.UpdatedAt)
	if err != nil {
		return nil, err
	}
	_ = json.Unmarshal(packages, &g.Packages)
	return &g, nil
}

type GigFilter struct {
	SellerID   *uuid.UUID
	Category   *string
	ActiveOnly bool
	Limit      int
	Offset     int
}

func (r *GigRepo) List(ctx context.Context, f GigFilter) ([]models.Gig, error) {
	query := `
		SELECT id, seller_id, title, description, category, packages, is_active, created_at, updated_at
		FROM gigs
	`
	args := []any{}
	argIdx := 1
	where := []string{}

	if f.SellerID != nil {
		where = append(where, fmt.Sprintf("seller_id = $%d", argIdx))
		args = append(args, *f.SellerID)
		argIdx++
	}
	if f.Category != nil {
		where = append(where, fmt.Sprintf("category = $%d", argIdx))
		args = append(args, *f.Category)
		argIdx++
	}
	if f.ActiveOnly {
		where = append(where, "is_active = true")
	}

	if len(where) > 0 {
		query += " WHERE "
		for i, w := range where {
			if i > 0 {
				query += " AND "
			}
			query += w
		}
	}

	limit := f.Limit
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", argIdx, argIdx+1)
	args = append(args, limit, f.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var gigs []models.Gig
	for rows.Next() {
		var g models.Gig
		var packages []byte
		if err := rows.Scan(&g.ID, &g.SellerID, &g.Title, &g.Description, &g.Category, &packages, &g.IsActive, &g.CreatedAt, &g.UpdatedAt); err != nil {
			return nil, err
		}
		_ = json.Unmarshal(packages, &g.Packages)
		gigs = append(gigs, g)
	}
	return gigs, nil
}

func (r *GigRepo) Update(ctx context.Context, g *models.Gig) error {
	packages, _ := json.Marshal(g.Packages)
	_, err := r.pool.Exec(ctx, `
		UPDATE gigs SET title = $1, description = $2, category = $3, packages = $4, updated_at = now()
		WHERE id = $5
	`, g.Title, g.Description, g.Category, packages, g.ID)
	return err
}

func (r *GigRepo) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	_, err := r.pool.Exec(ctx, `UPDATE gigs SET is_active = $1, updated_at = now() WHERE id = $2`, active, id)
	return err
}
