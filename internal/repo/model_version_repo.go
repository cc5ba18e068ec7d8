package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/aemorabr/ecommerce-recommendation-system/internal/model"
	appErr "github.com/aemorabr/ecommerce-recommendation-system/internal/pkg/errors"
)

// ModelVersionRepo is the registry of retrain batches. Versions are
// append-only: there is no update or delete.
type ModelVersionRepo struct {
	db *sql.DB
}

func NewModelVersionRepo(db *sql.DB) *ModelVersionRepo {
	return &ModelVersionRepo{db: db}
}

func (r *ModelVersionRepo) Create(ctx context.Context, name string, dimension int, params, metrics map[string]interface{}) (*model.ModelVersion, error) {
	paramsRaw, err := marshalJSONB(params)
	if err != nil {
		return nil, err
	}
	metricsRaw, err := marshalJSONB(metrics)
	if err != nil {
		return nil, err
	}
	v := &model.ModelVersion{Name: name, Dimension: dimension, Params: params, Metrics: metrics}
	const query = `INSERT INTO model_versions (name, dimension, params, metrics)
		VALUES ($1, $2, $3::jsonb, $4::jsonb) RETURNING id, created_at`
	if err := r.db.QueryRowContext(ctx, query, name, dimension, paramsRaw, metricsRaw).Scan(&v.ID, &v.CreatedAt); err != nil {
		return nil, err
	}
	return v, nil
}

func (r *ModelVersionRepo) Get(ctx context.Context, id int64) (*model.ModelVersion, error) {
	const query = `SELECT id, name, dimension, params, metrics, created_at FROM model_versions WHERE id = $1`
	return r.scanOne(r.db.QueryRowContext(ctx, query, id))
}

func (r *ModelVersionRepo) Latest(ctx context.Context) (*model.ModelVersion, error) {
	const query = `SELECT id, name, dimension, params, metrics, created_at FROM model_versions ORDER BY id DESC LIMIT 1`
	return r.scanOne(r.db.QueryRowContext(ctx, query))
}

func (r *ModelVersionRepo) List(ctx context.Context, limit int) ([]model.ModelVersion, error) {
	if limit <= 0 {
		limit = 20
	}
	const query = `SELECT id, name, dimension, params, metrics, created_at FROM model_versions ORDER BY id DESC LIMIT $1`
	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []model.ModelVersion
	for rows.Next() {
		v, err := scanVersion(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *v)
	}
	return items, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (r *ModelVersionRepo) scanOne(row *sql.Row) (*model.ModelVersion, error) {
	v, err := scanVersion(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErr.ErrNotFound
		}
		return nil, err
	}
	return v, nil
}

func scanVersion(row rowScanner) (*model.ModelVersion, error) {
	var v model.ModelVersion
	var params, metrics []byte
	if err := row.Scan(&v.ID, &v.Name, &v.Dimension, &params, &metrics, &v.CreatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(params, &v.Params); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(metrics, &v.Metrics); err != nil {
		return nil, err
	}
	return &v, nil
}

func marshalJSONB(m map[string]interface{}) (string, error) {
	if m == nil {
		return "{}", nil
	}
	raw, err := json.Marshal(m)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}
