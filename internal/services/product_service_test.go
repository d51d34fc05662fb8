// internal/services/product_service_test.go
package services

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/javajoker/marketflow/internal/baas"
	"github.com/javajoker/marketflow/internal/models"
)

var (
	seller = models.Identity{Email: "sam@example.com", Username: "sam", Role: models.RoleSeller}
	buyer  = models.Identity{Email: "bea@example.com", Username: "bea", Role: models.RoleBuyer}
)

func price(v float64) *float64 { return &v }

func publishableDraft() models.ProductDraft {
	return models.ProductDraft{
		Title:  "Desk lamp",
		Price:  price(19.5),
		Images: []string{"https://img.example.com/lamp.png"},
	}
}

func newTestProducts(repo *stubRepository) *ProductService {
	cfg := testConfig()
	cfg.Products.ContactNumber = "15551234"
	return NewProductService(repo, NewErrorClassifier(nil), cfg)
}

func TestProductService_ListDecorates(t *testing.T) {
	repo := &stubRepository{products: []models.Product{
		{ID: "1", SellerName: "sam", Title: "Old chair", Price: 5, Images: []string{"a"}},
		{ID: "2", SellerName: "sam", Title: "Red bike", Price: 80, Description: "Fast", Images: []string{"b"}, VideoURL: "https://www.youtube.com/watch?v=abc123"},
	}}
	svc := newTestProducts(repo)

	products, err := svc.List(context.Background())
	require.NoError(t, err)

	want := []models.Product{
		{
			ID: "2", SellerName: "sam", Title: "Red bike", Price: 80, Description: "Fast", Images: []string{"b"},
			VideoURL:      "https://www.youtube.com/watch?v=abc123",
			VideoEmbedURL: "https://www.youtube.com/embed/abc123?autoplay=1",
			ContactURL:    "https://wa.me/15551234?text=Hi%2C+I+am+interested+in+your+product%3A+Red+bike",
		},
		{
			ID: "1", SellerName: "sam", Title: "Old chair", Price: 5, Description: models.DefaultDescription, Images: []string{"a"},
			ContactURL: "https://wa.me/15551234?text=Hi%2C+I+am+interested+in+your+product%3A+Old+chair",
		},
	}
	if diff := cmp.Diff(want, products); diff != "" {
		t.Errorf("List() mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, models.ErrorCategoryNone, svc.Status().Category)
}

func TestProductService_ListFailureRecordsStatus(t *testing.T) {
	repo := &stubRepository{products: []models.Product{{ID: "1", Title: "Vase", Images: []string{"a"}}}}
	svc := newTestProducts(repo)

	_, err := svc.List(context.Background())
	require.NoError(t, err)

	repo.listErr = &baas.Error{Status: 404, Code: "PGRST205", Message: "Could not find the table 'public.products' in the schema cache"}
	_, err = svc.List(context.Background())

	var classified *ClassifiedError
	require.ErrorAs(t, err, &classified)
	assert.Equal(t, models.ErrorCategorySchemaMissing, classified.Category)

	status := svc.Status()
	assert.Equal(t, models.ErrorCategorySchemaMissing, status.Category)
	assert.Equal(t, "list", status.Operation)
	assert.Equal(t, "PGRST205", status.Code)

	repo.listErr = nil
	_, err = svc.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.ErrorCategoryNone, svc.Status().Category)
}

func TestProductService_Search(t *testing.T) {
	repo := &stubRepository{products: []models.Product{
		{ID: "1", Title: "Blue Lamp"},
		{ID: "2", Title: "Chair"},
		{ID: "3", Title: "lamp shade"},
	}}
	svc := newTestProducts(repo)

	products, err := svc.Search(context.Background(), "  LAMP ")
	require.NoError(t, err)
	got := make([]string, 0, len(products))
	for _, p := range products {
		got = append(got, p.ID)
	}
	assert.Equal(t, []string{"3", "1"}, got)

	all, err := svc.Search(context.Background(), "")
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestProductService_ValidateDraft(t *testing.T) {
	svc := newTestProducts(&stubRepository{})

	tests := []struct {
		name   string
		mutate func(d *models.ProductDraft)
		valid  bool
	}{
		{"complete", func(*models.ProductDraft) {}, true},
		{"free item", func(d *models.ProductDraft) { d.Price = price(0) }, true},
		{"blank title", func(d *models.ProductDraft) { d.Title = "   " }, false},
		{"no price", func(d *models.ProductDraft) { d.Price = nil }, false},
		{"negative price", func(d *models.ProductDraft) { d.Price = price(-1) }, false},
		{"no images", func(d *models.ProductDraft) { d.Images = nil }, false},
		{"too many images", func(d *models.ProductDraft) { d.Images = []string{"a", "b", "c", "d"} }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := publishableDraft()
			tt.mutate(&d)
			err := svc.ValidateDraft(d)
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrDraftInvalid)
			}
		})
	}
}

func TestProductService_Create(t *testing.T) {
	repo := &stubRepository{}
	svc := newTestProducts(repo)

	products, err := svc.Create(context.Background(), publishableDraft(), seller)
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, "sam", products[0].SellerName)

	want := models.ProductInsert{
		SellerName:  "sam",
		Title:       "Desk lamp",
		Price:       19.5,
		Description: models.DefaultDescription,
		Images:      []string{"https://img.example.com/lamp.png"},
	}
	if diff := cmp.Diff([]models.ProductInsert{want}, repo.inserts); diff != "" {
		t.Errorf("insert mismatch (-want +got):\n%s", diff)
	}
}

func TestProductService_CreateRejections(t *testing.T) {
	repo := &stubRepository{}
	svc := newTestProducts(repo)

	_, err := svc.Create(context.Background(), publishableDraft(), buyer)
	assert.ErrorIs(t, err, ErrForbidden)

	incomplete := publishableDraft()
	incomplete.Images = nil
	_, err = svc.Create(context.Background(), incomplete, seller)
	assert.ErrorIs(t, err, ErrDraftInvalid)

	assert.Empty(t, repo.inserts)
}

func TestProductService_CreateRefreshFailure(t *testing.T) {
	repo := &stubRepository{listErr: &baas.TransportError{Err: errors.New("connection refused")}}
	svc := newTestProducts(repo)

	_, err := svc.Create(context.Background(), publishableDraft(), seller)
	assert.ErrorIs(t, err, ErrRefreshFailed)

	var classified *ClassifiedError
	require.ErrorAs(t, err, &classified)
	assert.Equal(t, models.ErrorCategoryConfigInvalid, classified.Category)
	assert.Len(t, repo.inserts, 1)
}

func TestProductService_Delete(t *testing.T) {
	newRepo := func() *stubRepository {
		return &stubRepository{products: []models.Product{
			{ID: "1", SellerName: "sam", Title: "Mine"},
			{ID: "2", SellerName: "ola", Title: "Theirs"},
		}}
	}
	ctx := context.Background()

	t.Run("requires confirmation", func(t *testing.T) {
		repo := newRepo()
		_, err := newTestProducts(repo).Delete(ctx, "1", false, seller)
		assert.ErrorIs(t, err, ErrConfirmationRequired)
		assert.Empty(t, repo.deleted)
	})

	t.Run("buyers cannot delete", func(t *testing.T) {
		repo := newRepo()
		_, err := newTestProducts(repo).Delete(ctx, "1", true, buyer)
		assert.ErrorIs(t, err, ErrForbidden)
	})

	t.Run("other sellers' products", func(t *testing.T) {
		repo := newRepo()
		_, err := newTestProducts(repo).Delete(ctx, "2", true, seller)
		assert.ErrorIs(t, err, ErrNotOwner)
		assert.Empty(t, repo.deleted)
	})

	t.Run("unknown id is a no-op", func(t *testing.T) {
		repo := newRepo()
		products, err := newTestProducts(repo).Delete(ctx, "99", true, seller)
		require.NoError(t, err)
		assert.Len(t, products, 2)
		assert.Empty(t, repo.deleted)
	})

	t.Run("own product", func(t *testing.T) {
		repo := newRepo()
		products, err := newTestProducts(repo).Delete(ctx, "1", true, seller)
		require.NoError(t, err)
		assert.Equal(t, []string{"1"}, repo.deleted)
		want := []models.Product{{ID: "2", SellerName: "ola", Title: "Theirs"}}
		opts := cmpopts.IgnoreFields(models.Product{}, "Description", "ContactURL", "Images")
		if diff := cmp.Diff(want, products, opts); diff != "" {
			t.Errorf("Delete() mismatch (-want +got):\n%s", diff)
		}
	})
}
