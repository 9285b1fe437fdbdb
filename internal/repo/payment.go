package repo

import (
	"context"

	"github.com/pkg/errors"

	"github.com/Skotchmaster/storefront/internal/models"
)

func (r *GormRepo) CreatePayment(ctx context.Context, p *models.Payment) error {
	if err := r.db(ctx).Create(p).Error; err != nil {
		return errors.Wrap(err, "create payment")
	}
	return nil
}

func (r *GormRepo) PaymentByProviderOrder(ctx context.Context, providerOrderID string) (*models.Payment, error) {
	var p models.Payment
	if err := r.db(ctx).Where("provider_order_id = ?", providerOrderID).First(&p).Error; err != nil {
		return nil, errors.Wrapf(err, "payment for %q", providerOrderID)
	}
	return &p, nil
}

func (r *GormRepo) PaymentByOrder(ctx context.Context, orderID uint) (*models.Payment, error) {
	var p models.Payment
	if err := r.db(ctx).Where("order_id = ?", orderID).First(&p).Error; err != nil {
		return nil, errors.Wrapf(err, "payment for order %d", orderID)
	}
	return &p, nil
}
