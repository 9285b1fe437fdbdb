package repo

import (
	"context"

	"github.com/pkg/errors"

	"github.com/Skotchmaster/storefront/internal/models"
)

func (r *GormRepo) CartItems(ctx context.Context, userID uint) ([]models.CartItem, error) {
	var items []models.CartItem
	if err := r.db(ctx).Preload("Product").Where("user_id = ?", userID).Order("id ASC").Find(&items).Error; err != nil {
		return nil, errors.Wrapf(err, "cart of user %d", userID)
	}
	return items, nil
}

// LockCartItems reads the user's cart rows FOR UPDATE, without products.
func (r *GormRepo) LockCartItems(ctx context.Context, userID uint) ([]models.CartItem, error) {
	var items []models.CartItem
	if err := r.db(ctx).Clauses(forUpdate()).Where("user_id = ?", userID).Order("id ASC").Find(&items).Error; err != nil {
		return nil, errors.Wrapf(err, "lock cart of user %d", userID)
	}
	return items, nil
}

// FindCartItem returns the user's row for a product, or nil when there is none.
func (r *GormRepo) FindCartItem(ctx context.Context, userID, productID uint) (*models.CartItem, error) {
	var items []models.CartItem
	err := r.db(ctx).Clauses(forUpdate()).
		Where("user_id = ? AND product_id = ?", userID, productID).
		Limit(1).Find(&items).Error
	if err != nil {
		return nil, errors.Wrap(err, "find cart item")
	}
	if len(items) == 0 {
		return nil, nil
	}
	return &items[0], nil
}

// LockCartItem loads an item owned by userID FOR UPDATE.
func (r *GormRepo) LockCartItem(ctx context.Context, userID, itemID uint) (*models.CartItem, error) {
	var item models.CartItem
	err := r.db(ctx).Clauses(forUpdate()).
		Where("id = ? AND user_id = ?", itemID, userID).
		First(&item).Error
	if err != nil {
		return nil, errors.Wrapf(err, "cart item %d", itemID)
	}
	return &item, nil
}

func (r *GormRepo) CreateCartItem(ctx context.Context, item *models.CartItem) error {
	if err := r.db(ctx).Omit("Product").Create(item).Error; err != nil {
		return errors.Wrap(err, "create cart item")
	}
	return nil
}

func (r *GormRepo) SetCartQuantity(ctx context.Context, itemID uint, quantity int) error {
	res := r.db(ctx).Model(&models.CartItem{}).Where("id = ?", itemID).UpdateColumn("quantity", quantity)
	if res.Error != nil {
		return errors.Wrapf(res.Error, "set quantity of cart item %d", itemID)
	}
	if res.RowsAffected == 0 {
		return errors.Wrapf(gormNotFound, "cart item %d", itemID)
	}
	return nil
}

func (r *GormRepo) DeleteCartItem(ctx context.Context, itemID uint) error {
	res := r.db(ctx).Delete(&models.CartItem{}, itemID)
	if res.Error != nil {
		return errors.Wrapf(res.Error, "delete cart item %d", itemID)
	}
	if res.RowsAffected == 0 {
		return errors.Wrapf(gormNotFound, "cart item %d", itemID)
	}
	return nil
}

func (r *GormRepo) DeleteCart(ctx context.Context, userID uint) error {
	if err := r.db(ctx).Where("user_id = ?", userID).Delete(&models.CartItem{}).Error; err != nil {
		return errors.Wrapf(err, "clear cart of user %d", userID)
	}
	return nil
}
