package repo

import (
	"context"
	"database/sql"

	"github.com/lib/pq"

	"github.com/aemorabr/ecommerce-recommendation-system/internal/model"
)

type PurchaseRepo struct {
	db *sql.DB
}

func NewPurchaseRepo(db *sql.DB) *PurchaseRepo {
	return &PurchaseRepo{db: db}
}

func (r *PurchaseRepo) CreateCustomer(ctx context.Context, name, email string) (int64, error) {
	var id int64
	err := r.db.QueryRowContext(ctx,
		"INSERT INTO customers (name, email) VALUES ($1, $2) RETURNING customer_id", name, email).Scan(&id)
	return id, err
}

func (r *PurchaseRepo) Create(ctx context.Context, customerID, productID int64, quantity int) error {
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO purchases (customer_id, product_id, quantity) VALUES ($1, $2, $3)", customerID, productID, quantity)
	return err
}

// AggregateAll sums quantity per (customer, product) over the whole history.
func (r *PurchaseRepo) AggregateAll(ctx context.Context) ([]model.PurchaseAggregate, error) {
	const query = `SELECT customer_id, product_id, SUM(quantity)
		FROM purchases
		GROUP BY customer_id, product_id
		ORDER BY customer_id, product_id`
	return r.aggregates(ctx, query)
}

func (r *PurchaseRepo) NeighborPurchases(ctx context.Context, customerIDs []int64) ([]model.PurchaseAggregate, error) {
	if len(customerIDs) == 0 {
		return []model.PurchaseAggregate{}, nil
	}
	const query = `SELECT customer_id, product_id, SUM(quantity)
		FROM purchases
		WHERE customer_id = ANY($1)
		GROUP BY customer_id, product_id
		ORDER BY customer_id, product_id`
	return r.aggregates(ctx, query, pq.Array(customerIDs))
}

func (r *PurchaseRepo) PopularProducts(ctx context.Context, exclude []int64, limit int) ([]model.PopularProduct, error) {
	if exclude == nil {
		exclude = []int64{}
	}
	const query = `SELECT product_id, COUNT(*) AS purchase_count
		FROM purchases
		WHERE NOT (product_id = ANY($1))
		GROUP BY product_id
		ORDER BY purchase_count DESC, product_id ASC
		LIMIT $2`
	rows, err := r.db.QueryContext(ctx, query, pq.Array(exclude), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := make([]model.PopularProduct, 0, limit)
	for rows.Next() {
		var p model.PopularProduct
		if err := rows.Scan(&p.ProductID, &p.PurchaseCount); err != nil {
			return nil, err
		}
		items = append(items, p)
	}
	return items, rows.Err()
}

func (r *PurchaseRepo) PurchasedProductIDs(ctx context.Context, customerID int64) ([]int64, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT DISTINCT product_id FROM purchases WHERE customer_id = $1 ORDER BY product_id", customerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	ids := []int64{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// PurchaseQuantities returns product id -> summed quantity for one customer.
func (r *PurchaseRepo) PurchaseQuantities(ctx context.Context, customerID int64) (map[int64]float64, error) {
	const query = `SELECT customer_id, product_id, SUM(quantity)
		FROM purchases
		WHERE customer_id = $1
		GROUP BY customer_id, product_id`
	aggs, err := r.aggregates(ctx, query, customerID)
	if err != nil {
		return nil, err
	}
	out := make(map[int64]float64, len(aggs))
	for _, a := range aggs {
		out[a.ProductID] = a.Quantity
	}
	return out, nil
}

// CustomerIDsWithPurchases lists customers having at least one purchase.
func (r *PurchaseRepo) CustomerIDsWithPurchases(ctx context.Context) ([]int64, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT DISTINCT customer_id FROM purchases ORDER BY customer_id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	ids := []int64{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *PurchaseRepo) aggregates(ctx context.Context, query string, args ...interface{}) ([]model.PurchaseAggregate, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []model.PurchaseAggregate
	for rows.Next() {
		var a model.PurchaseAggregate
		if err := rows.Scan(&a.CustomerID, &a.ProductID, &a.Quantity); err != nil {
			return nil, err
		}
		items = append(items, a)
	}
	return items, rows.Err()
}
