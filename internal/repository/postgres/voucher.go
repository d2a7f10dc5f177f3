package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/Monachawla1712/LivSorted-loyalty-engine-service/internal/domain"
	"github.com/Monachawla1712/LivSorted-loyalty-engine-service/internal/repository"
	"github.com/Monachawla1712/LivSorted-loyalty-engine-service/pkg/database"
	apperrors "github.com/Monachawla1712/LivSorted-loyalty-engine-service/pkg/errors"
)

// VoucherRepository implements repository.VoucherRepository using PostgreSQL.
type VoucherRepository struct {
	pool database.DBTX
}

// NewVoucherRepository creates a new PostgreSQL-backed voucher repository.
func NewVoucherRepository(pool database.DBTX) *VoucherRepository {
	return &VoucherRepository{pool: pool}
}

const voucherColumns = `id, code, offer_id, voucher_type, scope, assigned_to, audience,
		is_redeemed, is_public, active, campaign_id, created_at, updated_at, updated_by`

// Create inserts a new voucher.
func (r *VoucherRepository) Create(ctx context.Context, v *domain.Voucher) error {
	query := `
		INSERT INTO vouchers (id, code, offer_id, voucher_type, scope, assigned_to, audience,
			is_redeemed, is_public, active, campaign_id, created_at, updated_at, updated_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

	_, err := r.pool.Exec(ctx, query,
		v.ID,
		v.Code,
		v.OfferID,
		v.Type,
		v.Scope,
		v.AssignedTo,
		v.Audience,
		v.IsRedeemed,
		v.IsPublic,
		v.Active,
		v.CampaignID,
		v.CreatedAt,
		v.UpdatedAt,
		v.UpdatedBy,
	)
	if err != nil {
		return fmt.Errorf("insert voucher: %w", err)
	}

	return nil
}

// GetByCode retrieves a voucher by code for the given audience. Codes are
// unique per audience, not globally.
func (r *VoucherRepository) GetByCode(ctx context.Context, code, audience string) (*domain.Voucher, error) {
	query := `SELECT ` + voucherColumns + ` FROM vouchers WHERE code = $1 AND audience = $2`

	v, err := scanVoucher(r.pool.QueryRow(ctx, query, code, audience))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("scan voucher: %w", err)
	}

	return v, nil
}

// ResolveCandidates returns the vouchers an entity may currently present:
// public shared-scope vouchers, public vouchers assigned to the entity that
// a dynamic redemption has not consumed, and the code the entity already
// has applied regardless of visibility. All joined against offers that are
// active and inside their validity window. Oldest voucher first, so
// auto-application is deterministic.
func (r *VoucherRepository) ResolveCandidates(ctx context.Context, filter repository.VoucherFilter) ([]domain.Voucher, error) {
	query := `
		SELECT v.id, v.code, v.offer_id, v.voucher_type, v.scope, v.assigned_to, v.audience,
			v.is_redeemed, v.is_public, v.active, v.campaign_id, v.created_at, v.updated_at, v.updated_by
		FROM vouchers v
		JOIN offers o ON o.id = v.offer_id
		WHERE v.active = true
		  AND v.audience = $1
		  AND o.active = true
		  AND o.start_date <= $2
		  AND o.end_date >= $2`

	args := []any{
		filter.Audience,
		filter.At,
	}

	branches := `((v.scope = $3 AND v.is_public)
		  OR (v.assigned_to = $4 AND v.is_public AND NOT (v.voucher_type = $5 AND v.is_redeemed))`
	args = append(args, domain.VoucherScopeAll, filter.EntityID, domain.VoucherTypeDynamic)

	argIndex := 6
	if filter.PreviousCode != "" {
		branches += fmt.Sprintf(" OR v.code = $%d", argIndex)
		args = append(args, filter.PreviousCode)
		argIndex++
	}
	query += "\n\t\t  AND " + branches + ")"

	if filter.AutoApply != nil {
		query += fmt.Sprintf(" AND o.auto_apply = $%d", argIndex)
		args = append(args, *filter.AutoApply)
	}

	query += " ORDER BY v.created_at, v.id"

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("resolve vouchers: %w", err)
	}
	defer rows.Close()

	return collectVouchers(rows)
}

// ListByCampaigns returns vouchers owned by the given campaigns.
func (r *VoucherRepository) ListByCampaigns(ctx context.Context, campaignIDs []int64, activeOnly bool) ([]domain.Voucher, error) {
	if len(campaignIDs) == 0 {
		return []domain.Voucher{}, nil
	}

	query := `SELECT ` + voucherColumns + ` FROM vouchers WHERE campaign_id = ANY($1)`
	if activeOnly {
		query += ` AND active = true`
	}
	query += ` ORDER BY created_at, id`

	rows, err := r.pool.Query(ctx, query, campaignIDs)
	if err != nil {
		return nil, fmt.Errorf("list vouchers by campaigns: %w", err)
	}
	defer rows.Close()

	return collectVouchers(rows)
}

// Update persists changes to an existing voucher.
func (r *VoucherRepository) Update(ctx context.Context, v *domain.Voucher) error {
	query := `
		UPDATE vouchers
		SET offer_id = $2, is_redeemed = $3, is_public = $4, active = $5,
			updated_at = $6, updated_by = $7
		WHERE id = $1`

	tag, err := r.pool.Exec(ctx, query,
		v.ID,
		v.OfferID,
		v.IsRedeemed,
		v.IsPublic,
		v.Active,
		v.UpdatedAt,
		v.UpdatedBy,
	)
	if err != nil {
		return fmt.Errorf("update voucher: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

// UpdateBatch persists changes to several vouchers in one transaction.
func (r *VoucherRepository) UpdateBatch(ctx context.Context, vouchers []domain.Voucher) error {
	if len(vouchers) == 0 {
		return nil
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		UPDATE vouchers
		SET offer_id = $2, is_redeemed = $3, is_public = $4, active = $5,
			updated_at = $6, updated_by = $7
		WHERE id = $1`

	for i := range vouchers {
		v := &vouchers[i]
		if _, err := tx.Exec(ctx, query,
			v.ID, v.OfferID, v.IsRedeemed, v.IsPublic, v.Active, v.UpdatedAt, v.UpdatedBy,
		); err != nil {
			return fmt.Errorf("update voucher %s: %w", v.ID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}

func scanVoucher(row pgx.Row) (*domain.Voucher, error) {
	var v domain.Voucher
	err := row.Scan(
		&v.ID,
		&v.Code,
		&v.OfferID,
		&v.Type,
		&v.Scope,
		&v.AssignedTo,
		&v.Audience,
		&v.IsRedeemed,
		&v.IsPublic,
		&v.Active,
		&v.CampaignID,
		&v.CreatedAt,
		&v.UpdatedAt,
		&v.UpdatedBy,
	)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func collectVouchers(rows pgx.Rows) ([]domain.Voucher, error) {
	vouchers := make([]domain.Voucher, 0)
	for rows.Next() {
		v, err := scanVoucher(rows)
		if err != nil {
			return nil, fmt.Errorf("scan voucher: %w", err)
		}
		vouchers = append(vouchers, *v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate vouchers: %w", err)
	}
	return vouchers, nil
}
