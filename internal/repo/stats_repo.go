package repo

import (
	"context"
	"database/sql"

	"github.com/aemorabr/ecommerce-recommendation-system/internal/model"
)

type StatsRepo struct {
	db *sql.DB
}

func NewStatsRepo(db *sql.DB) *StatsRepo {
	return &StatsRepo{db: db}
}

func (r *StatsRepo) CatalogStats(ctx context.Context) (*model.CatalogStats, error) {
	const query = `SELECT
		(SELECT COUNT(*) FROM customers),
		(SELECT COUNT(*) FROM products),
		(SELECT COUNT(*) FROM purchases)`
	var s model.CatalogStats
	if err := r.db.QueryRowContext(ctx, query).Scan(&s.TotalCustomers, &s.TotalProducts, &s.TotalPurchases); err != nil {
		return nil, err
	}
	return &s, nil
}
