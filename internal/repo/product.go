package repo

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/Skotchmaster/storefront/internal/models"
)

func (r *GormRepo) ProductByID(ctx context.Context, id uint) (*models.Product, error) {
	var p models.Product
	if err := r.db(ctx).First(&p, id).Error; err != nil {
		return nil, errors.Wrapf(err, "product %d", id)
	}
	return &p, nil
}

// LockProduct reads a product row with SELECT ... FOR UPDATE. Call it inside Tx.
func (r *GormRepo) LockProduct(ctx context.Context, id uint) (*models.Product, error) {
	var p models.Product
	if err := r.db(ctx).Clauses(forUpdate()).First(&p, id).Error; err != nil {
		return nil, errors.Wrapf(err, "lock product %d", id)
	}
	return &p, nil
}

// ListProducts pages through products, optionally filtered by a name substring.
func (r *GormRepo) ListProducts(ctx context.Context, q string, p Page) (int64, []models.Product, error) {
	base := r.db(ctx).Model(&models.Product{})
	if q = strings.TrimSpace(q); q != "" {
		base = base.Where("LOWER(name) LIKE ?", "%"+strings.ToLower(q)+"%")
	}
	base = base.Session(&gorm.Session{})

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return 0, nil, errors.Wrap(err, "count products")
	}

	var items []models.Product
	if err := base.Order("id ASC").Offset(p.Offset).Limit(p.Limit).Find(&items).Error; err != nil {
		return 0, nil, errors.Wrap(err, "list products")
	}
	return total, items, nil
}

// SearchProducts is the database fallback for full-text search.
func (r *GormRepo) SearchProducts(ctx context.Context, q string, p Page) (int64, []models.Product, error) {
	like := "%" + strings.ToLower(strings.TrimSpace(q)) + "%"
	base := r.db(ctx).Model(&models.Product{}).
		Where("LOWER(name) LIKE ? OR LOWER(description) LIKE ?", like, like).
		Session(&gorm.Session{})

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return 0, nil, errors.Wrap(err, "count search")
	}
	var items []models.Product
	if err := base.Order("id ASC").Offset(p.Offset).Limit(p.Limit).Find(&items).Error; err != nil {
		return 0, nil, errors.Wrap(err, "search products")
	}
	return total, items, nil
}

// ProductsByIDs keeps the order of ids and skips ids that no longer exist.
func (r *GormRepo) ProductsByIDs(ctx context.Context, ids []uint) ([]models.Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var found []models.Product
	if err := r.db(ctx).Where("id IN ?", ids).Find(&found).Error; err != nil {
		return nil, errors.Wrap(err, "products by ids")
	}
	byID := make(map[uint]models.Product, len(found))
	for _, p := range found {
		byID[p.ID] = p
	}
	out := make([]models.Product, 0, len(ids))
	for _, id := range ids {
		if p, ok := byID[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *GormRepo) CreateProduct(ctx context.Context, p *models.Product) error {
	if err := r.db(ctx).Create(p).Error; err != nil {
		return errors.Wrap(err, "create product")
	}
	return nil
}

func (r *GormRepo) UpdateProduct(ctx context.Context, id uint, fields map[string]any) (*models.Product, error) {
	res := r.db(ctx).Model(&models.Product{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return nil, errors.Wrapf(res.Error, "update product %d", id)
	}
	if res.RowsAffected == 0 {
		return nil, errors.Wrapf(gormNotFound, "update product %d", id)
	}
	return r.ProductByID(ctx, id)
}

func (r *GormRepo) DeleteProduct(ctx context.Context, id uint) error {
	res := r.db(ctx).Delete(&models.Product{}, id)
	if res.Error != nil {
		return errors.Wrapf(res.Error, "delete product %d", id)
	}
	if res.RowsAffected == 0 {
		return errors.Wrapf(gormNotFound, "delete product %d", id)
	}
	return nil
}

// DecrementStock lowers stock by n only when at least n units remain.
// It reports false without touching the row otherwise.
func (r *GormRepo) DecrementStock(ctx context.Context, productID uint, n int) (bool, error) {
	res := r.db(ctx).Model(&models.Product{}).
		Where("id = ? AND stock >= ?", productID, n).
		UpdateColumn("stock", gorm.Expr("stock - ?", n))
	if res.Error != nil {
		return false, errors.Wrapf(res.Error, "decrement stock of product %d", productID)
	}
	return res.RowsAffected == 1, nil
}

func (r *GormRepo) IncrementStock(ctx context.Context, productID uint, n int) error {
	res := r.db(ctx).Model(&models.Product{}).
		Where("id = ?", productID).
		UpdateColumn("stock", gorm.Expr("stock + ?", n))
	if res.Error != nil {
		return errors.Wrapf(res.Error, "increment stock of product %d", productID)
	}
	if res.RowsAffected == 0 {
		return errors.Wrapf(gormNotFound, "increment stock of product %d", productID)
	}
	return nil
}
