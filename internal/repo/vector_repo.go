package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"

	"github.com/aemorabr/ecommerce-recommendation-system/internal/model"
	"github.com/aemorabr/ecommerce-recommendation-system/internal/pkg/dbutil"
	appErr "github.com/aemorabr/ecommerce-recommendation-system/internal/pkg/errors"
)

const (
	CustomerKindPurchase = "purchase"
	CustomerKindContent  = "content"
)

// spaceTable maps an embedding space onto its table. Customer spaces share
// customer_embeddings and are told apart by kind.
type spaceTable struct {
	table    string
	idColumn string
	tsColumn string
	kind     string
}

func tableOf(space model.EmbeddingSpace) (spaceTable, error) {
	switch space {
	case model.SpaceProduct:
		return spaceTable{table: "product_embeddings", idColumn: "product_id", tsColumn: "created_at"}, nil
	case model.SpaceCustomerPurchase:
		return spaceTable{table: "customer_embeddings", idColumn: "customer_id", tsColumn: "updated_at", kind: CustomerKindPurchase}, nil
	case model.SpaceCustomerContent:
		return spaceTable{table: "customer_embeddings", idColumn: "customer_id", tsColumn: "updated_at", kind: CustomerKindContent}, nil
	}
	return spaceTable{}, fmt.Errorf("unknown embedding space %q: %w", space, appErr.ErrInvalid)
}

// kindFilter returns the extra predicate restricting customer rows to one
// kind, using placeholder $n.
func (t spaceTable) kindFilter(n int) string {
	if t.kind == "" {
		return ""
	}
	return fmt.Sprintf(" AND kind = $%d", n)
}

func (t spaceTable) withKind(args ...interface{}) []interface{} {
	if t.kind == "" {
		return args
	}
	return append(args, t.kind)
}

// VectorRepo stores embeddings in pgvector columns and answers L2 nearest
// neighbour queries.
type VectorRepo struct {
	db *sql.DB
}

func NewVectorRepo(db *sql.DB) *VectorRepo {
	return &VectorRepo{db: db}
}

// Upsert overwrites the vectors of items in one transaction. Each row keeps
// only its latest vector and version.
func (r *VectorRepo) Upsert(ctx context.Context, space model.EmbeddingSpace, items []model.Embedding, versionID int64) error {
	t, err := tableOf(space)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		return nil
	}
	var query string
	if t.kind == "" {
		query = fmt.Sprintf(`INSERT INTO %[1]s (%[2]s, embedding, model_version_id, %[3]s)
			VALUES ($1, $2, $3, now())
			ON CONFLICT (%[2]s) DO UPDATE SET embedding = EXCLUDED.embedding,
				model_version_id = EXCLUDED.model_version_id, %[3]s = EXCLUDED.%[3]s`, t.table, t.idColumn, t.tsColumn)
	} else {
		query = fmt.Sprintf(`INSERT INTO %[1]s (%[2]s, embedding, model_version_id, %[3]s, kind)
			VALUES ($1, $2, $3, now(), $4)
			ON CONFLICT (%[2]s, kind) DO UPDATE SET embedding = EXCLUDED.embedding,
				model_version_id = EXCLUDED.model_version_id, %[3]s = EXCLUDED.%[3]s`, t.table, t.idColumn, t.tsColumn)
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	defer stmt.Close()
	for _, item := range items {
		var version interface{}
		if versionID > 0 {
			version = versionID
		}
		if _, err := stmt.ExecContext(ctx, t.withKind(item.ID, pgvector.NewVector(item.Vector), version)...); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("upsert %s embedding %d: %w", space, item.ID, err)
		}
	}
	return tx.Commit()
}

func (r *VectorRepo) Get(ctx context.Context, space model.EmbeddingSpace, id int64) ([]float32, bool, error) {
	t, err := tableOf(space)
	if err != nil {
		return nil, false, err
	}
	query := fmt.Sprintf("SELECT embedding FROM %s WHERE %s = $1%s", t.table, t.idColumn, t.kindFilter(2))
	var vec pgvector.Vector
	if err := r.db.QueryRowContext(ctx, query, t.withKind(id)...).Scan(&vec); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return vec.Slice(), true, nil
}

func (r *VectorRepo) GetMany(ctx context.Context, space model.EmbeddingSpace, ids []int64) (map[int64][]float32, error) {
	t, err := tableOf(space)
	if err != nil {
		return nil, err
	}
	out := make(map[int64][]float32, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	query := fmt.Sprintf("SELECT %[2]s, embedding FROM %[1]s WHERE %[2]s = ANY($1)%[3]s", t.table, t.idColumn, t.kindFilter(2))
	rows, err := r.db.QueryContext(ctx, query, t.withKind(pq.Array(ids))...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var id int64
		var vec pgvector.Vector
		if err := rows.Scan(&id, &vec); err != nil {
			return nil, err
		}
		out[id] = vec.Slice()
	}
	return out, rows.Err()
}

func (r *VectorRepo) Nearest(ctx context.Context, space model.EmbeddingSpace, query []float32, exclude []int64, k int) ([]model.Neighbor, error) {
	t, err := tableOf(space)
	if err != nil {
		return nil, err
	}
	if k <= 0 {
		return []model.Neighbor{}, nil
	}
	if exclude == nil {
		exclude = []int64{}
	}
	sqlStr := fmt.Sprintf(`SELECT %[2]s, embedding <-> $1 AS distance
		FROM %[1]s
		WHERE NOT (%[2]s = ANY($2))%[3]s
		ORDER BY embedding <-> $1
		LIMIT %[4]d`, t.table, t.idColumn, t.kindFilter(3), k)
	rows, err := r.db.QueryContext(ctx, sqlStr, t.withKind(pgvector.NewVector(query), pq.Array(exclude))...)
	if err != nil {
		if dbutil.IsUndefinedObject(err) {
			return nil, fmt.Errorf("nearest neighbour query: %w", appErr.ErrUnavailable)
		}
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Neighbor, 0, k)
	for rows.Next() {
		var n model.Neighbor
		if err := rows.Scan(&n.ID, &n.Distance); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (r *VectorRepo) Count(ctx context.Context, space model.EmbeddingSpace) (int64, error) {
	t, err := tableOf(space)
	if err != nil {
		return 0, err
	}
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE TRUE%s", t.table, t.kindFilter(1))
	var n int64
	if err := r.db.QueryRowContext(ctx, query, t.withKind()...).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// Available reports ErrUnavailable unless the pgvector extension is
// installed.
func (r *VectorRepo) Available(ctx context.Context) error {
	var name string
	err := r.db.QueryRowContext(ctx, "SELECT extname FROM pg_extension WHERE extname = 'vector'").Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("pgvector extension not installed: %w", appErr.ErrUnavailable)
	}
	if err != nil {
		return err
	}
	return nil
}
