package service

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Skotchmaster/storefront/internal/models"
	"github.com/Skotchmaster/storefront/internal/repo"
	"github.com/Skotchmaster/storefront/internal/util"
	"github.com/Skotchmaster/storefront/pkg/logging"
)

type CatalogService struct {
	Repo     *repo.GormRepo
	Index    ProductIndex
	Uploader Uploader
	Events   EventPublisher
}

type ProductInput struct {
	Name        string
	Description string
	Price       decimal.Decimal
	Stock       int
}

type ProductPatch struct {
	Name        *string
	Description *string
	Price       *decimal.Decimal
	Stock       *int
}

func (s *CatalogService) List(ctx context.Context, q string, page, size int) (int64, []models.Product, error) {
	offset, limit := util.Calculate(page, size)
	return s.Repo.ListProducts(ctx, q, repo.Page{Offset: offset, Limit: limit})
}

func (s *CatalogService) Get(ctx context.Context, id uint) (*models.Product, error) {
	p, err := s.Repo.ProductByID(ctx, id)
	if err != nil {
		if repo.IsNotFound(err) {
			return nil, fmt.Errorf("product %d: %w", id, ErrNotFound)
		}
		return nil, err
	}
	return p, nil
}

// Search queries the search index and falls back to the database when the
// index is not configured or fails.
func (s *CatalogService) Search(ctx context.Context, q string, page, size int) (int64, []models.Product, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return 0, nil, fmt.Errorf("query is required: %w", ErrValidation)
	}
	offset, limit := util.Calculate(page, size)

	if s.Index != nil {
		total, ids, err := s.Index.Search(ctx, q, offset, limit)
		if err == nil {
			items, err := s.Repo.ProductsByIDs(ctx, ids)
			if err != nil {
				return 0, nil, err
			}
			return total, items, nil
		}
		logging.FromContext(ctx).Warn("search_index_error", "reason", "falling back to database", "error", err)
	}
	return s.Repo.SearchProducts(ctx, q, repo.Page{Offset: offset, Limit: limit})
}

func (s *CatalogService) Create(ctx context.Context, in ProductInput) (*models.Product, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, fmt.Errorf("name is required: %w", ErrValidation)
	}
	if in.Price.IsNegative() {
		return nil, fmt.Errorf("price must not be negative: %w", ErrValidation)
	}
	if in.Stock < 0 {
		return nil, fmt.Errorf("stock must not be negative: %w", ErrValidation)
	}

	p := models.Product{
		Name:        name,
		Description: in.Description,
		Price:       in.Price.Round(2),
		Stock:       in.Stock,
	}
	if err := s.Repo.CreateProduct(ctx, &p); err != nil {
		return nil, err
	}
	s.afterChange(ctx, &p, "product.created")
	return &p, nil
}

func (s *CatalogService) Update(ctx context.Context, id uint, patch ProductPatch) (*models.Product, error) {
	fields := map[string]any{}
	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return nil, fmt.Errorf("name must not be empty: %w", ErrValidation)
		}
		fields["name"] = name
	}
	if patch.Description != nil {
		fields["description"] = *patch.Description
	}
	if patch.Price != nil {
		if patch.Price.IsNegative() {
			return nil, fmt.Errorf("price must not be negative: %w", ErrValidation)
		}
		fields["price"] = patch.Price.Round(2)
	}
	if patch.Stock != nil {
		if *patch.Stock < 0 {
			return nil, fmt.Errorf("stock must not be negative: %w", ErrValidation)
		}
		fields["stock"] = *patch.Stock
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("nothing to update: %w", ErrValidation)
	}

	p, err := s.Repo.UpdateProduct(ctx, id, fields)
	if err != nil {
		if repo.IsNotFound(err) {
			return nil, fmt.Errorf("product %d: %w", id, ErrNotFound)
		}
		return nil, err
	}
	s.afterChange(ctx, p, "product.updated")
	return p, nil
}

func (s *CatalogService) Delete(ctx context.Context, id uint) error {
	if err := s.Repo.DeleteProduct(ctx, id); err != nil {
		switch {
		case repo.IsNotFound(err):
			return fmt.Errorf("product %d: %w", id, ErrNotFound)
		case repo.IsForeignKey(err):
			return fmt.Errorf("product %d has orders: %w", id, ErrConflict)
		}
		return err
	}

	if s.Index != nil {
		if err := s.Index.Delete(ctx, id); err != nil {
			logging.FromContext(ctx).Warn("search_index_delete_error", "product_id", id, "error", err)
		}
	}
	publish(ctx, s.Events, TopicProduct, idKey(id), Event{Type: "product.deleted", ProductID: id})
	return nil
}

func (s *CatalogService) UploadImage(ctx context.Context, id uint, filename string, size int64, r io.Reader) (*models.Product, error) {
	if s.Uploader == nil {
		return nil, fmt.Errorf("object storage is not configured: %w", ErrUnavailable)
	}
	contentType, r, err := readImage(r, size)
	if err != nil {
		return nil, err
	}
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}

	key := fmt.Sprintf("products/%d/%s%s", id, uuid.NewString(), path.Ext(filename))
	url, err := s.Uploader.Upload(ctx, key, r, size, contentType)
	if err != nil {
		logging.FromContext(ctx).Error("product_image_upload_error", "product_id", id, "key", key, "error", err)
		return nil, fmt.Errorf("upload product image: %w", err)
	}
	p, err := s.Repo.UpdateProduct(ctx, id, map[string]any{"image_url": url})
	if err != nil {
		return nil, err
	}
	s.afterChange(ctx, p, "product.updated")
	return p, nil
}

// Reindex pushes every product into the search index.
func (s *CatalogService) Reindex(ctx context.Context) (int, error) {
	if s.Index == nil {
		return 0, fmt.Errorf("search index is not configured: %w", ErrUnavailable)
	}
	const batch = util.MaxPageSize
	indexed := 0
	for offset := 0; ; offset += batch {
		_, items, err := s.Repo.ListProducts(ctx, "", repo.Page{Offset: offset, Limit: batch})
		if err != nil {
			return indexed, err
		}
		for i := range items {
			if err := s.Index.Index(ctx, &items[i]); err != nil {
				return indexed, err
			}
			indexed++
		}
		if len(items) < batch {
			return indexed, nil
		}
	}
}

func (s *CatalogService) afterChange(ctx context.Context, p *models.Product, eventType string) {
	if s.Index != nil {
		if err := s.Index.Index(ctx, p); err != nil {
			logging.FromContext(ctx).Warn("search_index_error", "product_id", p.ID, "error", err)
		}
	}
	publish(ctx, s.Events, TopicProduct, idKey(p.ID), Event{
		Type: eventType, ProductID: p.ID,
		Data: map[string]any{"name": p.Name, "price": p.Price.String(), "stock": p.Stock},
	})
}
