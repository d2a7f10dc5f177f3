package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/Monachawla1712/LivSorted-loyalty-engine-service/internal/domain"
	"github.com/Monachawla1712/LivSorted-loyalty-engine-service/pkg/database"
	apperrors "github.com/Monachawla1712/LivSorted-loyalty-engine-service/pkg/errors"
)

// CampaignRepository implements repository.CampaignRepository using
// PostgreSQL.
type CampaignRepository struct {
	pool database.DBTX
}

// NewCampaignRepository creates a new PostgreSQL-backed campaign repository.
func NewCampaignRepository(pool database.DBTX) *CampaignRepository {
	return &CampaignRepository{pool: pool}
}

const campaignColumns = `id, store_id, cadence, campaign_type, metadata, start_date, end_date,
		target_amount, status, active, created_at, updated_at, created_by, modified_by`

// CreateBatch inserts campaigns in one transaction and backfills their
// generated ids.
func (r *CampaignRepository) CreateBatch(ctx context.Context, campaigns []*domain.TargetCampaign) error {
	if len(campaigns) == 0 {
		return nil
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO target_campaigns (store_id, cadence, campaign_type, metadata, start_date,
			end_date, target_amount, status, active, created_at, updated_at, created_by, modified_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id`

	for _, c := range campaigns {
		metaJSON, err := json.Marshal(c.Metadata)
		if err != nil {
			return fmt.Errorf("marshal campaign metadata: %w", err)
		}

		err = tx.QueryRow(ctx, query,
			c.StoreID,
			c.Cadence,
			c.CampaignType,
			metaJSON,
			c.StartDate,
			c.EndDate,
			c.TargetAmount,
			c.Status,
			c.Active,
			c.CreatedAt,
			c.UpdatedAt,
			c.CreatedBy,
			c.ModifiedBy,
		).Scan(&c.ID)
		if err != nil {
			return fmt.Errorf("insert campaign for store %s: %w", c.StoreID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}

// GetByID retrieves a campaign by id.
func (r *CampaignRepository) GetByID(ctx context.Context, id int64) (*domain.TargetCampaign, error) {
	query := `SELECT ` + campaignColumns + ` FROM target_campaigns WHERE id = $1`

	c, err := scanCampaign(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("scan campaign: %w", err)
	}

	return c, nil
}

// List returns all campaigns, newest first.
func (r *CampaignRepository) List(ctx context.Context) ([]domain.TargetCampaign, error) {
	query := `SELECT ` + campaignColumns + ` FROM target_campaigns ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list campaigns: %w", err)
	}
	defer rows.Close()

	return collectCampaigns(rows)
}

// ListActiveByStores returns active campaigns for the given stores whose
// windows overlap [from, to].
func (r *CampaignRepository) ListActiveByStores(ctx context.Context, storeIDs []string, from, to time.Time) ([]domain.TargetCampaign, error) {
	if len(storeIDs) == 0 {
		return []domain.TargetCampaign{}, nil
	}

	query := `
		SELECT ` + campaignColumns + `
		FROM target_campaigns
		WHERE store_id = ANY($1)
		  AND active = $2
		  AND start_date <= $3
		  AND end_date >= $4`

	rows, err := r.pool.Query(ctx, query, storeIDs, domain.CampaignStatusActive, to, from)
	if err != nil {
		return nil, fmt.Errorf("list active campaigns: %w", err)
	}
	defer rows.Close()

	return collectCampaigns(rows)
}

// GetRunningForStore returns the store's active campaign containing the
// given date, or nil when none does.
func (r *CampaignRepository) GetRunningForStore(ctx context.Context, storeID string, at time.Time) (*domain.TargetCampaign, error) {
	query := `
		SELECT ` + campaignColumns + `
		FROM target_campaigns
		WHERE store_id = $1
		  AND active = $2
		  AND start_date <= $3
		  AND end_date >= $3
		ORDER BY start_date DESC
		LIMIT 1`

	c, err := scanCampaign(r.pool.QueryRow(ctx, query, storeID, domain.CampaignStatusActive, at))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan campaign: %w", err)
	}

	return c, nil
}

// Update persists changes to an existing campaign.
func (r *CampaignRepository) Update(ctx context.Context, c *domain.TargetCampaign) error {
	metaJSON, err := json.Marshal(c.Metadata)
	if err != nil {
		return fmt.Errorf("marshal campaign metadata: %w", err)
	}

	query := `
		UPDATE target_campaigns
		SET metadata = $2, start_date = $3, end_date = $4, target_amount = $5,
			status = $6, active = $7, updated_at = $8, modified_by = $9
		WHERE id = $1`

	tag, err := r.pool.Exec(ctx, query,
		c.ID,
		metaJSON,
		c.StartDate,
		c.EndDate,
		c.TargetAmount,
		c.Status,
		c.Active,
		c.UpdatedAt,
		c.ModifiedBy,
	)
	if err != nil {
		return fmt.Errorf("update campaign: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

func scanCampaign(row pgx.Row) (*domain.TargetCampaign, error) {
	var (
		c        domain.TargetCampaign
		metaJSON []byte
	)

	err := row.Scan(
		&c.ID,
		&c.StoreID,
		&c.Cadence,
		&c.CampaignType,
		&metaJSON,
		&c.StartDate,
		&c.EndDate,
		&c.TargetAmount,
		&c.Status,
		&c.Active,
		&c.CreatedAt,
		&c.UpdatedAt,
		&c.CreatedBy,
		&c.ModifiedBy,
	)
	if err != nil {
		return nil, err
	}

	if len(metaJSON) > 0 && string(metaJSON) != "null" {
		if err := json.Unmarshal(metaJSON, &c.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal campaign metadata: %w", err)
		}
	}

	return &c, nil
}

func collectCampaigns(rows pgx.Rows) ([]domain.TargetCampaign, error) {
	campaigns := make([]domain.TargetCampaign, 0)
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, fmt.Errorf("scan campaign: %w", err)
		}
		campaigns = append(campaigns, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate campaigns: %w", err)
	}
	return campaigns, nil
}
