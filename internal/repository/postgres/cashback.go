package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/Monachawla1712/LivSorted-loyalty-engine-service/internal/domain"
	"github.com/Monachawla1712/LivSorted-loyalty-engine-service/pkg/database"
	apperrors "github.com/Monachawla1712/LivSorted-loyalty-engine-service/pkg/errors"
)

// CashbackRepository implements repository.CashbackRepository using
// PostgreSQL.
type CashbackRepository struct {
	pool database.DBTX
}

// NewCashbackRepository creates a new PostgreSQL-backed cashback repository.
func NewCashbackRepository(pool database.DBTX) *CashbackRepository {
	return &CashbackRepository{pool: pool}
}

const cashbackColumns = `id, store_id, campaign_id, cashback_date, target_amount, cadence,
		cashback, cashback_percent, metadata, active, created_at, updated_at, modified_by`

// CreateBatch inserts schedule rows in one transaction and backfills their
// generated ids.
func (r *CashbackRepository) CreateBatch(ctx context.Context, rows []*domain.TargetCashback) error {
	if len(rows) == 0 {
		return nil
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO target_cashbacks (store_id, campaign_id, cashback_date, target_amount,
			cadence, cashback, cashback_percent, metadata, active, created_at, updated_at, modified_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id`

	for _, row := range rows {
		metaJSON, err := json.Marshal(row.Metadata)
		if err != nil {
			return fmt.Errorf("marshal cashback metadata: %w", err)
		}

		err = tx.QueryRow(ctx, query,
			row.StoreID,
			row.CampaignID,
			row.CashbackDate,
			row.TargetAmount,
			row.Cadence,
			row.Cashback,
			row.CashbackPercent,
			metaJSON,
			row.Active,
			row.CreatedAt,
			row.UpdatedAt,
			row.ModifiedBy,
		).Scan(&row.ID)
		if err != nil {
			return fmt.Errorf("insert cashback row for store %s: %w", row.StoreID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}

// ListByCampaign returns a campaign's rows ordered by cashback date.
func (r *CashbackRepository) ListByCampaign(ctx context.Context, campaignID int64, activeOnly bool) ([]domain.TargetCashback, error) {
	query := `SELECT ` + cashbackColumns + ` FROM target_cashbacks WHERE campaign_id = $1`
	if activeOnly {
		query += fmt.Sprintf(` AND active = %d`, domain.CashbackActive)
	}
	query += ` ORDER BY cashback_date, id`

	rows, err := r.pool.Query(ctx, query, campaignID)
	if err != nil {
		return nil, fmt.Errorf("list cashback rows: %w", err)
	}
	defer rows.Close()

	return collectCashbacks(rows)
}

// ListByCampaigns returns rows of the given cadence for several campaigns.
func (r *CashbackRepository) ListByCampaigns(ctx context.Context, campaignIDs []int64, cadence string) ([]domain.TargetCashback, error) {
	if len(campaignIDs) == 0 {
		return []domain.TargetCashback{}, nil
	}

	query := `
		SELECT ` + cashbackColumns + `
		FROM target_cashbacks
		WHERE campaign_id = ANY($1) AND cadence = $2 AND active = $3
		ORDER BY campaign_id, cashback_date, id`

	rows, err := r.pool.Query(ctx, query, campaignIDs, cadence, domain.CashbackActive)
	if err != nil {
		return nil, fmt.Errorf("list cashback rows by campaigns: %w", err)
	}
	defer rows.Close()

	return collectCashbacks(rows)
}

// ListUnsettled returns active rows of the given cadence with no recorded
// outcome whose cashback date falls in [from, to]. An empty storeIDs slice
// means all stores.
func (r *CashbackRepository) ListUnsettled(ctx context.Context, cadence string, from, to time.Time, storeIDs []string) ([]domain.TargetCashback, error) {
	query := `
		SELECT ` + cashbackColumns + `
		FROM target_cashbacks
		WHERE cadence = $1
		  AND active = $2
		  AND cashback IS NULL
		  AND cashback_date >= $3
		  AND cashback_date <= $4`

	args := []any{cadence, domain.CashbackActive, from, to}
	if len(storeIDs) > 0 {
		query += ` AND store_id = ANY($5)`
		args = append(args, storeIDs)
	}
	query += ` ORDER BY store_id, cashback_date, id`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list unsettled cashback rows: %w", err)
	}
	defer rows.Close()

	return collectCashbacks(rows)
}

// Update persists changes to a single row.
func (r *CashbackRepository) Update(ctx context.Context, row *domain.TargetCashback) error {
	metaJSON, err := json.Marshal(row.Metadata)
	if err != nil {
		return fmt.Errorf("marshal cashback metadata: %w", err)
	}

	query := `
		UPDATE target_cashbacks
		SET cashback = $2, cashback_percent = $3, target_amount = $4, metadata = $5,
			active = $6, updated_at = $7, modified_by = $8
		WHERE id = $1`

	tag, err := r.pool.Exec(ctx, query,
		row.ID,
		row.Cashback,
		row.CashbackPercent,
		row.TargetAmount,
		metaJSON,
		row.Active,
		row.UpdatedAt,
		row.ModifiedBy,
	)
	if err != nil {
		return fmt.Errorf("update cashback row: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

// UpdateBatch persists changes to several rows in one transaction.
func (r *CashbackRepository) UpdateBatch(ctx context.Context, rows []domain.TargetCashback) error {
	if len(rows) == 0 {
		return nil
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		UPDATE target_cashbacks
		SET cashback = $2, cashback_percent = $3, target_amount = $4, metadata = $5,
			active = $6, updated_at = $7, modified_by = $8
		WHERE id = $1`

	for i := range rows {
		row := &rows[i]
		metaJSON, err := json.Marshal(row.Metadata)
		if err != nil {
			return fmt.Errorf("marshal cashback metadata: %w", err)
		}
		if _, err := tx.Exec(ctx, query,
			row.ID, row.Cashback, row.CashbackPercent, row.TargetAmount,
			metaJSON, row.Active, row.UpdatedAt, row.ModifiedBy,
		); err != nil {
			return fmt.Errorf("update cashback row %d: %w", row.ID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}

// DeactivateUnsettledByCampaign flags a campaign's unsettled rows inactive.
func (r *CashbackRepository) DeactivateUnsettledByCampaign(ctx context.Context, campaignID int64, modifiedBy string) (int64, error) {
	query := `
		UPDATE target_cashbacks
		SET active = $2, updated_at = $3, modified_by = $4
		WHERE campaign_id = $1 AND cashback IS NULL AND active = $5`

	tag, err := r.pool.Exec(ctx, query,
		campaignID,
		domain.CashbackInactive,
		time.Now().UTC(),
		modifiedBy,
		domain.CashbackActive,
	)
	if err != nil {
		return 0, fmt.Errorf("deactivate cashback rows: %w", err)
	}

	return tag.RowsAffected(), nil
}

// SumSettledByStore returns the total settled cashback for a store between
// from and to. A nil from means since the beginning.
func (r *CashbackRepository) SumSettledByStore(ctx context.Context, storeID string, from, to *time.Time) (float64, error) {
	query := `
		SELECT COALESCE(SUM(cashback), 0)
		FROM target_cashbacks
		WHERE store_id = $1 AND cashback IS NOT NULL AND active = $2`

	args := []any{storeID, domain.CashbackActive}
	argIndex := 3
	if from != nil {
		query += fmt.Sprintf(` AND cashback_date >= $%d`, argIndex)
		args = append(args, *from)
		argIndex++
	}
	if to != nil {
		query += fmt.Sprintf(` AND cashback_date <= $%d`, argIndex)
		args = append(args, *to)
	}

	var total float64
	if err := r.pool.QueryRow(ctx, query, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("sum cashback: %w", err)
	}

	return total, nil
}

func collectCashbacks(rows pgx.Rows) ([]domain.TargetCashback, error) {
	out := make([]domain.TargetCashback, 0)
	for rows.Next() {
		var (
			row      domain.TargetCashback
			metaJSON []byte
		)
		err := rows.Scan(
			&row.ID,
			&row.StoreID,
			&row.CampaignID,
			&row.CashbackDate,
			&row.TargetAmount,
			&row.Cadence,
			&row.Cashback,
			&row.CashbackPercent,
			&metaJSON,
			&row.Active,
			&row.CreatedAt,
			&row.UpdatedAt,
			&row.ModifiedBy,
		)
		if err != nil {
			return nil, fmt.Errorf("scan cashback row: %w", err)
		}
		if len(metaJSON) > 0 && string(metaJSON) != "null" {
			if err := json.Unmarshal(metaJSON, &row.Metadata); err != nil {
				return nil, fmt.Errorf("unmarshal cashback metadata: %w", err)
			}
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cashback rows: %w", err)
	}
	return out, nil
}
