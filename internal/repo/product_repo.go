package repo

import (
	"context"
	"database/sql"

	"github.com/didi/gendry/builder"

	"github.com/aemorabr/ecommerce-recommendation-system/internal/model"
	"github.com/aemorabr/ecommerce-recommendation-system/internal/pkg/dbutil"
)

var productFields = []string{"product_id", "name", "category", "description", "price"}

type ProductRepo struct {
	db *sql.DB
}

func NewProductRepo(db *sql.DB) *ProductRepo {
	return &ProductRepo{db: db}
}

func (r *ProductRepo) Create(ctx context.Context, p *model.Product) error {
	const query = `INSERT INTO products (name, category, description, price)
		VALUES ($1, $2, $3, $4) RETURNING product_id`
	return r.db.QueryRowContext(ctx, query, p.Name, p.Category, p.Description, p.Price).Scan(&p.ID)
}

// ListAll returns the whole catalog ordered by product id.
func (r *ProductRepo) ListAll(ctx context.Context) ([]model.Product, error) {
	where := map[string]interface{}{
		"_orderby": "product_id asc",
	}
	return r.query(ctx, where)
}

func (r *ProductRepo) ProductsByIDs(ctx context.Context, ids []int64) (map[int64]model.Product, error) {
	out := make(map[int64]model.Product, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	in := make([]interface{}, 0, len(ids))
	for _, id := range ids {
		in = append(in, id)
	}
	items, err := r.query(ctx, map[string]interface{}{"product_id in": in})
	if err != nil {
		return nil, err
	}
	for _, p := range items {
		out[p.ID] = p
	}
	return out, nil
}

func (r *ProductRepo) query(ctx context.Context, where map[string]interface{}) ([]model.Product, error) {
	sqlStr, args, err := builder.BuildSelect("products", where, productFields)
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []model.Product
	for rows.Next() {
		var p model.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Category, &p.Description, &p.Price); err != nil {
			return nil, err
		}
		items = append(items, p)
	}
	return items, rows.Err()
}
