package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/storefront/internal/models"
	"github.com/Skotchmaster/storefront/internal/testutil"
)

type fakeIndex struct {
	indexed   []uint
	deleted   []uint
	hits      []uint
	searchErr error
}

func (f *fakeIndex) Index(_ context.Context, p *models.Product) error {
	f.indexed = append(f.indexed, p.ID)
	return nil
}

func (f *fakeIndex) Delete(_ context.Context, id uint) error {
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeIndex) Search(_ context.Context, _ string, _, _ int) (int64, []uint, error) {
	if f.searchErr != nil {
		return 0, nil, f.searchErr
	}
	return int64(len(f.hits)), f.hits, nil
}

func TestCatalogService_CreateUpdateDelete(t *testing.T) {
	f := newFixture(t)
	ix := &fakeIndex{}
	svc := &CatalogService{Repo: f.repo, Index: ix, Events: f.events}
	ctx := context.Background()

	p, err := svc.Create(ctx, ProductInput{Name: " Kettle ", Price: decimal.RequireFromString("19.999"), Stock: 4})
	require.NoError(t, err)
	assert.Equal(t, "Kettle", p.Name)
	assert.Equal(t, "20.00", p.Price.StringFixed(2))

	price := decimal.RequireFromString("15")
	stock := 9
	p, err = svc.Update(ctx, p.ID, ProductPatch{Price: &price, Stock: &stock})
	require.NoError(t, err)
	assert.Equal(t, "15.00", p.Price.StringFixed(2))
	assert.Equal(t, 9, p.Stock)
	assert.Equal(t, "Kettle", p.Name)

	require.NoError(t, svc.Delete(ctx, p.ID))
	_, err = svc.Get(ctx, p.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, svc.Delete(ctx, p.ID), ErrNotFound)

	assert.Equal(t, []uint{p.ID, p.ID}, ix.indexed)
	assert.Equal(t, []uint{p.ID}, ix.deleted)
	assert.Equal(t, []string{"product.created", "product.updated", "product.deleted"}, f.events.types())
}

func TestCatalogService_Validation(t *testing.T) {
	f := newFixture(t)
	svc := &CatalogService{Repo: f.repo}
	ctx := context.Background()

	_, err := svc.Create(ctx, ProductInput{Name: "", Price: decimal.NewFromInt(1)})
	assert.ErrorIs(t, err, ErrValidation)
	_, err = svc.Create(ctx, ProductInput{Name: "x", Price: decimal.NewFromInt(-1)})
	assert.ErrorIs(t, err, ErrValidation)
	_, err = svc.Create(ctx, ProductInput{Name: "x", Price: decimal.NewFromInt(1), Stock: -2})
	assert.ErrorIs(t, err, ErrValidation)

	p := testutil.SeedProduct(t, f.repo.DB, "Mug", "1.00", 1)
	_, err = svc.Update(ctx, p.ID, ProductPatch{})
	assert.ErrorIs(t, err, ErrValidation)
	name := "Cup"
	_, err = svc.Update(ctx, p.ID+100, ProductPatch{Name: &name})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCatalogService_DeleteProductWithOrders(t *testing.T) {
	f := newFixture(t)
	svc := &CatalogService{Repo: f.repo}
	_, o := checkedOut(t, f, 5, 1)

	err := svc.Delete(context.Background(), o.ProductID)
	assert.ErrorIs(t, err, ErrConflict)
	_, err = svc.Get(context.Background(), o.ProductID)
	assert.NoError(t, err)
}

func TestCatalogService_List(t *testing.T) {
	f := newFixture(t)
	svc := &CatalogService{Repo: f.repo}
	for _, n := range []string{"Red mug", "Blue mug", "Pen"} {
		testutil.SeedProduct(t, f.repo.DB, n, "1.00", 1)
	}

	total, items, err := svc.List(context.Background(), "", 1, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, items, 2)

	total, items, err = svc.List(context.Background(), "mug", 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, items, 2)
}

func TestCatalogService_SearchUsesIndex(t *testing.T) {
	f := newFixture(t)
	a := testutil.SeedProduct(t, f.repo.DB, "Alpha", "1.00", 1)
	b := testutil.SeedProduct(t, f.repo.DB, "Beta", "1.00", 1)
	ix := &fakeIndex{hits: []uint{b.ID, a.ID}}
	svc := &CatalogService{Repo: f.repo, Index: ix}

	total, items, err := svc.Search(context.Background(), "anything", 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, items, 2)
	assert.Equal(t, "Beta", items[0].Name, "index ranking is kept")
	assert.Equal(t, "Alpha", items[1].Name)
}

func TestCatalogService_SearchShowsCurrentStock(t *testing.T) {
	f := newFixture(t)
	p := testutil.SeedProduct(t, f.repo.DB, "Alpha", "1.00", 5)
	svc := &CatalogService{Repo: f.repo, Index: &fakeIndex{hits: []uint{p.ID}}}
	ctx := context.Background()

	_, err := f.cart().AddToCart(ctx, f.user.ID, p.ID, 2)
	require.NoError(t, err)

	_, items, err := svc.Search(ctx, "alpha", 1, 10)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 3, items[0].Stock)
}

func TestCatalogService_SearchFallsBackToDatabase(t *testing.T) {
	f := newFixture(t)
	testutil.SeedProduct(t, f.repo.DB, "Green kettle", "1.00", 1)
	testutil.SeedProduct(t, f.repo.DB, "Pen", "1.00", 1)

	for name, ix := range map[string]ProductIndex{
		"no index":     nil,
		"index failed": &fakeIndex{searchErr: errors.New("cluster red")},
	} {
		t.Run(name, func(t *testing.T) {
			svc := &CatalogService{Repo: f.repo, Index: ix}
			total, items, err := svc.Search(context.Background(), "kettle", 1, 10)
			require.NoError(t, err)
			assert.Equal(t, int64(1), total)
			require.Len(t, items, 1)
			assert.Equal(t, "Green kettle", items[0].Name)
		})
	}

	svc := &CatalogService{Repo: f.repo}
	_, _, err := svc.Search(context.Background(), "  ", 1, 10)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestCatalogService_UploadImage(t *testing.T) {
	f := newFixture(t)
	p := testutil.SeedProduct(t, f.repo.DB, "Mug", "1.00", 1)
	up := &recordingUploader{}
	svc := &CatalogService{Repo: f.repo, Uploader: up}
	ctx := context.Background()
	size := int64(len(pngImage))

	got, err := svc.UploadImage(ctx, p.ID, "photo.PNG", size, strings.NewReader(pngImage))
	require.NoError(t, err)
	require.Len(t, up.keys, 1)
	assert.True(t, strings.HasPrefix(up.keys[0], "products/"))
	assert.True(t, strings.HasSuffix(up.keys[0], ".PNG"))
	assert.Equal(t, "https://cdn.test/"+up.keys[0], got.ImageURL)
	assert.Equal(t, "image/png", up.types[0])
	assert.Equal(t, pngImage, up.bodies[0])

	_, err = svc.UploadImage(ctx, p.ID, "doc.pdf", 9, strings.NewReader("%PDF-1.7\n"))
	assert.ErrorIs(t, err, ErrValidation)
	_, err = svc.UploadImage(ctx, p.ID, "fake.png", 9, strings.NewReader("not a png"))
	assert.ErrorIs(t, err, ErrValidation, "a .png name does not make an image")
	_, err = svc.UploadImage(ctx, p.ID+100, "a.png", size, strings.NewReader(pngImage))
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Len(t, up.keys, 1)

	bare := &CatalogService{Repo: f.repo}
	_, err = bare.UploadImage(ctx, p.ID, "a.png", size, strings.NewReader(pngImage))
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestCatalogService_Reindex(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < 3; i++ {
		testutil.SeedProduct(t, f.repo.DB, "P", "1.00", 1)
	}
	ix := &fakeIndex{}
	svc := &CatalogService{Repo: f.repo, Index: ix}

	n, err := svc.Reindex(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Len(t, ix.indexed, 3)

	_, err = (&CatalogService{Repo: f.repo}).Reindex(context.Background())
	assert.ErrorIs(t, err, ErrUnavailable)
}
