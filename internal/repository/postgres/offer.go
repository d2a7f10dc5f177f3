package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/Monachawla1712/LivSorted-loyalty-engine-service/internal/domain"
	"github.com/Monachawla1712/LivSorted-loyalty-engine-service/internal/rules"
	"github.com/Monachawla1712/LivSorted-loyalty-engine-service/pkg/database"
	apperrors "github.com/Monachawla1712/LivSorted-loyalty-engine-service/pkg/errors"
)

// OfferRepository implements repository.OfferRepository using PostgreSQL.
type OfferRepository struct {
	pool database.DBTX
}

// NewOfferRepository creates a new PostgreSQL-backed offer repository.
func NewOfferRepository(pool database.DBTX) *OfferRepository {
	return &OfferRepository{pool: pool}
}

const offerColumns = `id, name, offer_level, application_rules, view_rules, discount_type,
		discount_value, max_discount, title, terms, sidebar_note, start_date, end_date,
		auto_apply, active, created_at, updated_at, updated_by`

// Create inserts a new offer.
func (r *OfferRepository) Create(ctx context.Context, o *domain.Offer) error {
	rulesJSON, err := json.Marshal(o.ApplicationRules)
	if err != nil {
		return fmt.Errorf("marshal application rules: %w", err)
	}

	var viewJSON []byte
	if o.ViewRules != nil {
		viewJSON, err = json.Marshal(o.ViewRules)
		if err != nil {
			return fmt.Errorf("marshal view rules: %w", err)
		}
	}

	query := `
		INSERT INTO offers (id, name, offer_level, application_rules, view_rules, discount_type,
			discount_value, max_discount, title, terms, sidebar_note, start_date, end_date,
			auto_apply, active, created_at, updated_at, updated_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`

	_, err = r.pool.Exec(ctx, query,
		o.ID,
		o.Name,
		o.OfferLevel,
		rulesJSON,
		viewJSON,
		o.DiscountType,
		o.DiscountValue,
		o.MaxDiscount,
		o.Title,
		o.Terms,
		o.SidebarNote,
		o.StartDate,
		o.EndDate,
		o.AutoApply,
		o.Active,
		o.CreatedAt,
		o.UpdatedAt,
		o.UpdatedBy,
	)
	if err != nil {
		return fmt.Errorf("insert offer: %w", err)
	}

	return nil
}

// GetByID retrieves an offer by id regardless of state.
func (r *OfferRepository) GetByID(ctx context.Context, id string) (*domain.Offer, error) {
	query := `SELECT ` + offerColumns + ` FROM offers WHERE id = $1`

	o, err := scanOffer(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("scan offer: %w", err)
	}

	return o, nil
}

// GetByIDs retrieves offers for a set of ids, keyed by id. Missing ids are
// simply absent from the result.
func (r *OfferRepository) GetByIDs(ctx context.Context, ids []string) (map[string]*domain.Offer, error) {
	out := make(map[string]*domain.Offer, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	query := `SELECT ` + offerColumns + ` FROM offers WHERE id = ANY($1)`

	rows, err := r.pool.Query(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("list offers by ids: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		o, err := scanOffer(rows)
		if err != nil {
			return nil, fmt.Errorf("scan offer: %w", err)
		}
		out[o.ID] = o
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate offers: %w", err)
	}

	return out, nil
}

// List returns offers, optionally only active ones, newest first.
func (r *OfferRepository) List(ctx context.Context, activeOnly bool) ([]domain.Offer, error) {
	query := `SELECT ` + offerColumns + ` FROM offers`
	if activeOnly {
		query += ` WHERE active = true`
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list offers: %w", err)
	}
	defer rows.Close()

	offers := make([]domain.Offer, 0)
	for rows.Next() {
		o, err := scanOffer(rows)
		if err != nil {
			return nil, fmt.Errorf("scan offer: %w", err)
		}
		offers = append(offers, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate offers: %w", err)
	}

	return offers, nil
}

// Update persists changes to an existing offer.
func (r *OfferRepository) Update(ctx context.Context, o *domain.Offer) error {
	rulesJSON, err := json.Marshal(o.ApplicationRules)
	if err != nil {
		return fmt.Errorf("marshal application rules: %w", err)
	}

	var viewJSON []byte
	if o.ViewRules != nil {
		viewJSON, err = json.Marshal(o.ViewRules)
		if err != nil {
			return fmt.Errorf("marshal view rules: %w", err)
		}
	}

	query := `
		UPDATE offers
		SET name = $2, offer_level = $3, application_rules = $4, view_rules = $5,
			discount_type = $6, discount_value = $7, max_discount = $8, title = $9,
			terms = $10, sidebar_note = $11, start_date = $12, end_date = $13,
			auto_apply = $14, active = $15, updated_at = $16, updated_by = $17
		WHERE id = $1`

	tag, err := r.pool.Exec(ctx, query,
		o.ID,
		o.Name,
		o.OfferLevel,
		rulesJSON,
		viewJSON,
		o.DiscountType,
		o.DiscountValue,
		o.MaxDiscount,
		o.Title,
		o.Terms,
		o.SidebarNote,
		o.StartDate,
		o.EndDate,
		o.AutoApply,
		o.Active,
		o.UpdatedAt,
		o.UpdatedBy,
	)
	if err != nil {
		return fmt.Errorf("update offer: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

func scanOffer(row pgx.Row) (*domain.Offer, error) {
	var (
		o         domain.Offer
		rulesJSON []byte
		viewJSON  []byte
	)

	err := row.Scan(
		&o.ID,
		&o.Name,
		&o.OfferLevel,
		&rulesJSON,
		&viewJSON,
		&o.DiscountType,
		&o.DiscountValue,
		&o.MaxDiscount,
		&o.Title,
		&o.Terms,
		&o.SidebarNote,
		&o.StartDate,
		&o.EndDate,
		&o.AutoApply,
		&o.Active,
		&o.CreatedAt,
		&o.UpdatedAt,
		&o.UpdatedBy,
	)
	if err != nil {
		return nil, err
	}

	if len(rulesJSON) > 0 && string(rulesJSON) != "null" {
		if err := json.Unmarshal(rulesJSON, &o.ApplicationRules); err != nil {
			return nil, fmt.Errorf("unmarshal application rules: %w", err)
		}
	}
	if len(viewJSON) > 0 && string(viewJSON) != "null" {
		var view rules.Node
		if err := json.Unmarshal(viewJSON, &view); err != nil {
			return nil, fmt.Errorf("unmarshal view rules: %w", err)
		}
		o.ViewRules = &view
	}

	return &o, nil
}
