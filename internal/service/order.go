package service

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/Skotchmaster/storefront/internal/models"
	"github.com/Skotchmaster/storefront/internal/repo"
	"github.com/Skotchmaster/storefront/internal/util"
	"github.com/Skotchmaster/storefront/pkg/logging"
)

type OrderService struct {
	Repo   *repo.GormRepo
	Events EventPublisher
}

// Checkout turns every cart row of the user into a pending order, takes the
// ordered units from stock and empties the cart. A failure on any row leaves
// cart, stock and orders untouched.
func (s *OrderService) Checkout(ctx context.Context, userID uint) ([]models.Order, error) {
	l := logging.FromContext(ctx).With("svc", "order.checkout", "user_id", userID)

	var orders []models.Order
	err := s.Repo.Tx(ctx, func(tx *repo.GormRepo) error {
		if _, err := tx.UserByID(ctx, userID); err != nil {
			if repo.IsNotFound(err) {
				return fmt.Errorf("user %d: %w", userID, ErrNotFound)
			}
			return err
		}

		items, err := tx.LockCartItems(ctx, userID)
		if err != nil {
			return err
		}
		if len(items) == 0 {
			return ErrCartEmpty
		}

		orders = make([]models.Order, 0, len(items))
		for _, it := range items {
			p, err := tx.LockProduct(ctx, it.ProductID)
			if err != nil {
				if repo.IsNotFound(err) {
					return fmt.Errorf("product %d: %w", it.ProductID, ErrNotFound)
				}
				return err
			}

			o := models.Order{
				UserID:      userID,
				ProductID:   p.ID,
				Quantity:    it.Quantity,
				TotalAmount: p.Price.Mul(decimal.NewFromInt(int64(it.Quantity))),
				Status:      models.OrderStatusPending,
			}
			if err := tx.CreateOrder(ctx, &o); err != nil {
				return err
			}
			if err := reserve(ctx, tx, p, it.Quantity); err != nil {
				return err
			}
			o.Product = *p
			orders = append(orders, o)
		}

		return tx.DeleteCart(ctx, userID)
	})
	if err != nil {
		return nil, err
	}

	total := decimal.Zero
	for _, o := range orders {
		total = total.Add(o.TotalAmount)
		publish(ctx, s.Events, TopicOrder, idKey(userID), Event{
			Type: "order.created", UserID: userID, OrderID: o.ID, ProductID: o.ProductID,
			Data: map[string]any{"quantity": o.Quantity, "total_amount": o.TotalAmount.String()},
		})
	}
	l.Info("checkout_completed", "orders", len(orders), "total", total.String())
	return orders, nil
}

// Cancel moves a pending order of the user to cancelled and returns the
// ordered units to stock in the same transaction.
func (s *OrderService) Cancel(ctx context.Context, userID, orderID uint) (*models.Order, error) {
	var out *models.Order
	err := s.Repo.Tx(ctx, func(tx *repo.GormRepo) error {
		o, err := tx.LockOrder(ctx, orderID)
		if err != nil {
			if repo.IsNotFound(err) {
				return fmt.Errorf("order %d: %w", orderID, ErrNotFound)
			}
			return err
		}
		if _, err := tx.UserByID(ctx, userID); err != nil {
			if repo.IsNotFound(err) {
				return fmt.Errorf("user %d: %w", userID, ErrNotFound)
			}
			return err
		}
		if o.UserID != userID {
			return fmt.Errorf("order %d belongs to another user: %w", orderID, ErrForbidden)
		}

		switch o.Status {
		case models.OrderStatusShipped:
			return fmt.Errorf("order %d is already shipped: %w", orderID, ErrConflict)
		case models.OrderStatusCancelled:
			return fmt.Errorf("order %d is already cancelled: %w", orderID, ErrConflict)
		}
		// refunds go through the payment provider, not through cancel
		if _, err := tx.PaymentByOrder(ctx, o.ID); err == nil {
			return fmt.Errorf("order %d is paid: %w", orderID, ErrConflict)
		} else if !repo.IsNotFound(err) {
			return err
		}

		ok, err := tx.TransitionOrder(ctx, o.ID, o.Status, models.OrderStatusCancelled)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("order %d changed concurrently: %w", orderID, ErrConflict)
		}
		if err := tx.IncrementStock(ctx, o.ProductID, o.Quantity); err != nil {
			return err
		}

		out, err = tx.OrderByID(ctx, o.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	publish(ctx, s.Events, TopicOrder, idKey(userID), Event{
		Type: "order.cancelled", UserID: userID, OrderID: out.ID, ProductID: out.ProductID,
		Data: map[string]any{"quantity": out.Quantity},
	})
	return out, nil
}

// Ship marks a pending order as shipped. Shipped orders can no longer be cancelled.
func (s *OrderService) Ship(ctx context.Context, orderID uint) (*models.Order, error) {
	var out *models.Order
	err := s.Repo.Tx(ctx, func(tx *repo.GormRepo) error {
		o, err := tx.LockOrder(ctx, orderID)
		if err != nil {
			if repo.IsNotFound(err) {
				return fmt.Errorf("order %d: %w", orderID, ErrNotFound)
			}
			return err
		}
		if o.Status != models.OrderStatusPending {
			return fmt.Errorf("order %d is %s: %w", orderID, o.Status, ErrConflict)
		}
		ok, err := tx.TransitionOrder(ctx, o.ID, models.OrderStatusPending, models.OrderStatusShipped)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("order %d changed concurrently: %w", orderID, ErrConflict)
		}
		out, err = tx.OrderByID(ctx, o.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	publish(ctx, s.Events, TopicOrder, idKey(out.UserID), Event{
		Type: "order.shipped", UserID: out.UserID, OrderID: out.ID, ProductID: out.ProductID,
	})
	return out, nil
}

func (s *OrderService) Get(ctx context.Context, userID, orderID uint) (*models.Order, error) {
	o, err := s.Repo.OrderByID(ctx, orderID)
	if err != nil {
		if repo.IsNotFound(err) {
			return nil, fmt.Errorf("order %d: %w", orderID, ErrNotFound)
		}
		return nil, err
	}
	if o.UserID != userID {
		return nil, fmt.Errorf("order %d belongs to another user: %w", orderID, ErrForbidden)
	}
	return o, nil
}

func (s *OrderService) ListMine(ctx context.Context, userID uint, page, size int) (int64, []models.Order, error) {
	offset, limit := util.Calculate(page, size)
	return s.Repo.ListOrdersByUser(ctx, userID, repo.Page{Offset: offset, Limit: limit})
}

// ListAll is the admin view over every order, optionally filtered by status.
func (s *OrderService) ListAll(ctx context.Context, status string, page, size int) (int64, []models.Order, error) {
	st := models.OrderStatus(status)
	switch st {
	case "", models.OrderStatusPending, models.OrderStatusCancelled, models.OrderStatusShipped:
	default:
		return 0, nil, fmt.Errorf("unknown status %q: %w", status, ErrValidation)
	}
	offset, limit := util.Calculate(page, size)
	return s.Repo.ListOrders(ctx, st, repo.Page{Offset: offset, Limit: limit})
}
