package postgres

import (
	"context"
	"fmt"

	"github.com/Monachawla1712/LivSorted-loyalty-engine-service/internal/domain"
	"github.com/Monachawla1712/LivSorted-loyalty-engine-service/pkg/database"
)

// RedemptionRepository implements repository.RedemptionRepository using
// PostgreSQL.
type RedemptionRepository struct {
	pool database.DBTX
}

// NewRedemptionRepository creates a new PostgreSQL-backed redemption
// repository.
func NewRedemptionRepository(pool database.DBTX) *RedemptionRepository {
	return &RedemptionRepository{pool: pool}
}

// Create appends a redemption audit record.
func (r *RedemptionRepository) Create(ctx context.Context, red *domain.Redemption) error {
	query := `
		INSERT INTO redemptions (id, user_id, order_id, offer_id, voucher_id, voucher_code, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := r.pool.Exec(ctx, query,
		red.ID,
		red.UserID,
		red.OrderID,
		red.OfferID,
		red.VoucherID,
		red.VoucherCode,
		red.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert redemption: %w", err)
	}

	return nil
}
