package repo_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aemorabr/ecommerce-recommendation-system/internal/embedding"
	"github.com/aemorabr/ecommerce-recommendation-system/internal/model"
	appErr "github.com/aemorabr/ecommerce-recommendation-system/internal/pkg/errors"
	"github.com/aemorabr/ecommerce-recommendation-system/internal/repo"
	"github.com/aemorabr/ecommerce-recommendation-system/internal/testutil"
)

func unit(values ...float64) []float32 {
	v, ok := embedding.Fit(values, testutil.TestDimension)
	if !ok {
		panic("zero vector")
	}
	return v
}

type seeded struct {
	products  []int64
	customers []int64
}

func seed(t *testing.T, ctx context.Context, products *repo.ProductRepo, purchases *repo.PurchaseRepo) seeded {
	t.Helper()
	var s seeded
	for _, name := range []string{"Wireless Mouse", "Wireless Keyboard", "Cotton Shirt"} {
		p := &model.Product{Name: name, Category: "c", Price: 9.5}
		require.NoError(t, products.Create(ctx, p))
		s.products = append(s.products, p.ID)
	}
	for _, name := range []string{"a", "b"} {
		id, err := purchases.CreateCustomer(ctx, name, name+"@example.com")
		require.NoError(t, err)
		s.customers = append(s.customers, id)
	}
	return s
}

func TestVectorRepoRoundTrip(t *testing.T) {
	conn, cleanup := testutil.OpenTestDB(t)
	defer cleanup()
	testutil.Reset(t, conn)
	ctx := context.Background()

	products := repo.NewProductRepo(conn)
	purchases := repo.NewPurchaseRepo(conn)
	versions := repo.NewModelVersionRepo(conn)
	vectors := repo.NewVectorRepo(conn)
	s := seed(t, ctx, products, purchases)

	require.NoError(t, vectors.Available(ctx))
	v, err := versions.Create(ctx, "test", testutil.TestDimension, map[string]interface{}{"k": 1}, nil)
	require.NoError(t, err)

	x := unit(1, 2, 3)
	require.NoError(t, vectors.Upsert(ctx, model.SpaceProduct, []model.Embedding{{ID: s.products[0], Vector: x}}, v.ID))
	got, ok, err := vectors.Get(ctx, model.SpaceProduct, s.products[0])
	require.NoError(t, err)
	require.True(t, ok)
	require.InDeltaSlice(t, x, got, 1e-6)

	// latest write wins
	y := unit(0, 0, 1)
	require.NoError(t, vectors.Upsert(ctx, model.SpaceProduct, []model.Embedding{{ID: s.products[0], Vector: y}}, v.ID))
	got, ok, err = vectors.Get(ctx, model.SpaceProduct, s.products[0])
	require.NoError(t, err)
	require.True(t, ok)
	require.InDeltaSlice(t, y, got, 1e-6)

	_, ok, err = vectors.Get(ctx, model.SpaceProduct, s.products[2])
	require.NoError(t, err)
	require.False(t, ok)
}

func TestVectorRepoCustomerKindsAreSeparate(t *testing.T) {
	conn, cleanup := testutil.OpenTestDB(t)
	defer cleanup()
	testutil.Reset(t, conn)
	ctx := context.Background()

	vectors := repo.NewVectorRepo(conn)
	s := seed(t, ctx, repo.NewProductRepo(conn), repo.NewPurchaseRepo(conn))
	c := s.customers[0]

	require.NoError(t, vectors.Upsert(ctx, model.SpaceCustomerPurchase, []model.Embedding{{ID: c, Vector: unit(1)}}, 0))
	require.NoError(t, vectors.Upsert(ctx, model.SpaceCustomerContent, []model.Embedding{{ID: c, Vector: unit(0, 1)}}, 0))

	purchase, ok, err := vectors.Get(ctx, model.SpaceCustomerPurchase, c)
	require.NoError(t, err)
	require.True(t, ok)
	require.InDelta(t, 1.0, purchase[0], 1e-6)

	content, ok, err := vectors.Get(ctx, model.SpaceCustomerContent, c)
	require.NoError(t, err)
	require.True(t, ok)
	require.InDelta(t, 1.0, content[1], 1e-6)

	n, err := vectors.Count(ctx, model.SpaceCustomerPurchase)
	require.NoError(t, err)
	require.Equal(t, int64(1), n)
}

func TestVectorRepoNearest(t *testing.T) {
	conn, cleanup := testutil.OpenTestDB(t)
	defer cleanup()
	testutil.Reset(t, conn)
	ctx := context.Background()

	vectors := repo.NewVectorRepo(conn)
	s := seed(t, ctx, repo.NewProductRepo(conn), repo.NewPurchaseRepo(conn))
	require.NoError(t, vectors.Upsert(ctx, model.SpaceProduct, []model.Embedding{
		{ID: s.products[0], Vector: unit(1, 0)},
		{ID: s.products[1], Vector: unit(0.8, 0.6)},
		{ID: s.products[2], Vector: unit(0, 1)},
	}, 0))

	got, err := vectors.Nearest(ctx, model.SpaceProduct, unit(1, 0), []int64{s.products[0]}, 5)
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, s.products[1], got[0].ID)
	require.Equal(t, s.products[2], got[1].ID)
	require.InDelta(t, 0.6324555, got[0].Distance, 1e-5)
	require.Less(t, got[0].Distance, got[1].Distance)

	many, err := vectors.GetMany(ctx, model.SpaceProduct, []int64{s.products[0], s.products[2], 999})
	require.NoError(t, err)
	require.Len(t, many, 2)
}

func TestPurchaseRepoAggregates(t *testing.T) {
	conn, cleanup := testutil.OpenTestDB(t)
	defer cleanup()
	testutil.Reset(t, conn)
	ctx := context.Background()

	purchases := repo.NewPurchaseRepo(conn)
	s := seed(t, ctx, repo.NewProductRepo(conn), purchases)
	a, b := s.customers[0], s.customers[1]
	require.NoError(t, purchases.Create(ctx, a, s.products[0], 2))
	require.NoError(t, purchases.Create(ctx, a, s.products[0], 1))
	require.NoError(t, purchases.Create(ctx, b, s.products[1], 1))
	require.NoError(t, purchases.Create(ctx, b, s.products[0], 1))

	aggs, err := purchases.AggregateAll(ctx)
	require.NoError(t, err)
	require.Equal(t, model.PurchaseAggregate{CustomerID: a, ProductID: s.products[0], Quantity: 3}, aggs[0])

	popular, err := purchases.PopularProducts(ctx, nil, 10)
	require.NoError(t, err)
	require.Equal(t, s.products[0], popular[0].ProductID)
	require.Equal(t, int64(3), popular[0].PurchaseCount)

	popular, err = purchases.PopularProducts(ctx, []int64{s.products[0]}, 10)
	require.NoError(t, err)
	require.Len(t, popular, 1)
	require.Equal(t, s.products[1], popular[0].ProductID)

	ids, err := purchases.PurchasedProductIDs(ctx, b)
	require.NoError(t, err)
	require.Equal(t, []int64{s.products[0], s.products[1]}, ids)

	qty, err := purchases.PurchaseQuantities(ctx, a)
	require.NoError(t, err)
	require.Equal(t, map[int64]float64{s.products[0]: 3}, qty)

	customers, err := purchases.CustomerIDsWithPurchases(ctx)
	require.NoError(t, err)
	require.Equal(t, []int64{a, b}, customers)
}

func TestModelVersionRepo(t *testing.T) {
	conn, cleanup := testutil.OpenTestDB(t)
	defer cleanup()
	testutil.Reset(t, conn)
	ctx := context.Background()

	versions := repo.NewModelVersionRepo(conn)
	_, err := versions.Latest(ctx)
	require.ErrorIs(t, err, appErr.ErrNotFound)

	first, err := versions.Create(ctx, "m", 128, map[string]interface{}{"max_features": 128}, map[string]interface{}{"customers": 2})
	require.NoError(t, err)
	second, err := versions.Create(ctx, "m", 128, nil, nil)
	require.NoError(t, err)
	require.Greater(t, second.ID, first.ID)

	latest, err := versions.Latest(ctx)
	require.NoError(t, err)
	require.Equal(t, second.ID, latest.ID)

	got, err := versions.Get(ctx, first.ID)
	require.NoError(t, err)
	require.Equal(t, float64(128), got.Params["max_features"])

	list, err := versions.List(ctx, 10)
	require.NoError(t, err)
	require.Len(t, list, 2)
}
