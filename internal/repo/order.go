package repo

import (
	"context"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/Skotchmaster/storefront/internal/models"
)

func (r *GormRepo) CreateOrder(ctx context.Context, o *models.Order) error {
	if err := r.db(ctx).Omit("Product").Create(o).Error; err != nil {
		return errors.Wrap(err, "create order")
	}
	return nil
}

func (r *GormRepo) OrderByID(ctx context.Context, id uint) (*models.Order, error) {
	var o models.Order
	if err := r.db(ctx).Preload("Product").First(&o, id).Error; err != nil {
		return nil, errors.Wrapf(err, "order %d", id)
	}
	return &o, nil
}

func (r *GormRepo) LockOrder(ctx context.Context, id uint) (*models.Order, error) {
	var o models.Order
	if err := r.db(ctx).Clauses(forUpdate()).First(&o, id).Error; err != nil {
		return nil, errors.Wrapf(err, "lock order %d", id)
	}
	return &o, nil
}

func (r *GormRepo) ListOrdersByUser(ctx context.Context, userID uint, p Page) (int64, []models.Order, error) {
	return r.listOrders(ctx, userID, "", p)
}

// ListOrders lists orders of every user, optionally filtered by status.
func (r *GormRepo) ListOrders(ctx context.Context, status models.OrderStatus, p Page) (int64, []models.Order, error) {
	return r.listOrders(ctx, 0, status, p)
}

func (r *GormRepo) listOrders(ctx context.Context, userID uint, status models.OrderStatus, p Page) (int64, []models.Order, error) {
	base := r.db(ctx).Model(&models.Order{})
	if userID != 0 {
		base = base.Where("user_id = ?", userID)
	}
	if status != "" {
		base = base.Where("status = ?", status)
	}
	base = base.Session(&gorm.Session{})

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return 0, nil, errors.Wrap(err, "count orders")
	}
	var orders []models.Order
	if err := base.Preload("Product").Order("id DESC").Offset(p.Offset).Limit(p.Limit).Find(&orders).Error; err != nil {
		return 0, nil, errors.Wrap(err, "list orders")
	}
	return total, orders, nil
}

// TransitionOrder moves an order from one status to another and reports
// false when the order was not in the expected status.
func (r *GormRepo) TransitionOrder(ctx context.Context, id uint, from, to models.OrderStatus) (bool, error) {
	res := r.db(ctx).Model(&models.Order{}).
		Where("id = ? AND status = ?", id, from).
		Update("status", to)
	if res.Error != nil {
		return false, errors.Wrapf(res.Error, "transition order %d", id)
	}
	return res.RowsAffected == 1, nil
}
