package service

import (
	"context"
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/Skotchmaster/storefront/internal/models"
	"github.com/Skotchmaster/storefront/internal/repo"
	"github.com/Skotchmaster/storefront/pkg/logging"
)

type CartService struct {
	Repo   *repo.GormRepo
	Events EventPublisher
}

type Cart struct {
	Items []models.CartItem `json:"items"`
	Total decimal.Decimal   `json:"total"`
}

func (s *CartService) GetCart(ctx context.Context, userID uint) (*Cart, error) {
	items, err := s.Repo.CartItems(ctx, userID)
	if err != nil {
		return nil, err
	}
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.Product.Price.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	if items == nil {
		items = []models.CartItem{}
	}
	return &Cart{Items: items, Total: total}, nil
}

// AddToCart reserves quantity units of a product into the user's cart.
// The cart row and the product stock change together or not at all.
func (s *CartService) AddToCart(ctx context.Context, userID, productID uint, quantity int) (*models.CartItem, error) {
	l := logging.FromContext(ctx).With("svc", "cart.add", "user_id", userID, "product_id", productID)

	if productID == 0 {
		return nil, fmt.Errorf("product_id is required: %w", ErrValidation)
	}
	if quantity <= 0 {
		return nil, fmt.Errorf("quantity must be positive: %w", ErrValidation)
	}

	var out models.CartItem
	err := s.Repo.Tx(ctx, func(tx *repo.GormRepo) error {
		p, err := tx.LockProduct(ctx, productID)
		if err != nil {
			if repo.IsNotFound(err) {
				return fmt.Errorf("product %d: %w", productID, ErrNotFound)
			}
			return err
		}

		item, err := tx.FindCartItem(ctx, userID, productID)
		if err != nil {
			return err
		}

		if item != nil {
			newTotal := item.Quantity + quantity
			if newTotal > p.Stock {
				return &InsufficientStockError{ProductID: p.ID, Remaining: p.Stock}
			}
			if err := tx.SetCartQuantity(ctx, item.ID, newTotal); err != nil {
				return err
			}
			item.Quantity = newTotal
		} else {
			if quantity > p.Stock {
				return &InsufficientStockError{ProductID: p.ID, Remaining: p.Stock}
			}
			item = &models.CartItem{UserID: userID, ProductID: productID, Quantity: quantity}
			if err := tx.CreateCartItem(ctx, item); err != nil {
				return err
			}
		}

		if err := reserve(ctx, tx, p, quantity); err != nil {
			return err
		}
		item.Product = *p
		out = *item
		return nil
	})
	if err != nil {
		return nil, err
	}

	l.Info("cart_item_added", "quantity", quantity, "cart_quantity", out.Quantity)
	publish(ctx, s.Events, TopicCart, idKey(userID), Event{
		Type: "cart.item_added", UserID: userID, ProductID: productID,
		Data: map[string]any{"quantity": quantity, "cart_quantity": out.Quantity},
	})
	return &out, nil
}

// UpdateQuantity sets the cart quantity and moves the difference between
// the cart and the product stock.
func (s *CartService) UpdateQuantity(ctx context.Context, userID, itemID uint, quantity int) (*models.CartItem, error) {
	if quantity <= 0 {
		return nil, fmt.Errorf("quantity must be positive: %w", ErrValidation)
	}

	var out models.CartItem
	err := s.Repo.Tx(ctx, func(tx *repo.GormRepo) error {
		item, err := tx.LockCartItem(ctx, userID, itemID)
		if err != nil {
			if repo.IsNotFound(err) {
				return fmt.Errorf("cart item %d: %w", itemID, ErrNotFound)
			}
			return err
		}
		p, err := tx.LockProduct(ctx, item.ProductID)
		if err != nil {
			if repo.IsNotFound(err) {
				return fmt.Errorf("product %d: %w", item.ProductID, ErrNotFound)
			}
			return err
		}

		delta := quantity - item.Quantity
		switch {
		case delta > 0:
			if delta > p.Stock {
				return &InsufficientStockError{ProductID: p.ID, Remaining: p.Stock}
			}
			if err := reserve(ctx, tx, p, delta); err != nil {
				return err
			}
		case delta < 0:
			if err := tx.IncrementStock(ctx, p.ID, -delta); err != nil {
				return err
			}
			p.Stock -= delta
		}

		if delta != 0 {
			if err := tx.SetCartQuantity(ctx, item.ID, quantity); err != nil {
				return err
			}
		}
		item.Quantity = quantity
		item.Product = *p
		out = *item
		return nil
	})
	if err != nil {
		return nil, err
	}

	publish(ctx, s.Events, TopicCart, idKey(userID), Event{
		Type: "cart.item_updated", UserID: userID, ProductID: out.ProductID,
		Data: map[string]any{"cart_quantity": out.Quantity},
	})
	return &out, nil
}

// RemoveItem deletes one cart row and returns its units to stock.
func (s *CartService) RemoveItem(ctx context.Context, userID, itemID uint) error {
	var productID uint
	err := s.Repo.Tx(ctx, func(tx *repo.GormRepo) error {
		item, err := tx.LockCartItem(ctx, userID, itemID)
		if err != nil {
			if repo.IsNotFound(err) {
				return fmt.Errorf("cart item %d: %w", itemID, ErrNotFound)
			}
			return err
		}
		productID = item.ProductID
		if err := tx.IncrementStock(ctx, item.ProductID, item.Quantity); err != nil {
			return err
		}
		return tx.DeleteCartItem(ctx, item.ID)
	})
	if err != nil {
		return err
	}

	publish(ctx, s.Events, TopicCart, idKey(userID), Event{
		Type: "cart.item_removed", UserID: userID, ProductID: productID,
	})
	return nil
}

// ClearCart empties the cart and returns every reserved unit to stock.
// It reports how many rows were removed.
func (s *CartService) ClearCart(ctx context.Context, userID uint) (int, error) {
	var removed int
	err := s.Repo.Tx(ctx, func(tx *repo.GormRepo) error {
		items, err := tx.LockCartItems(ctx, userID)
		if err != nil {
			return err
		}
		for _, it := range items {
			if err := tx.IncrementStock(ctx, it.ProductID, it.Quantity); err != nil {
				return err
			}
		}
		removed = len(items)
		return tx.DeleteCart(ctx, userID)
	})
	if err != nil {
		return 0, err
	}

	if removed > 0 {
		publish(ctx, s.Events, TopicCart, idKey(userID), Event{
			Type: "cart.cleared", UserID: userID, Data: map[string]any{"items": removed},
		})
	}
	return removed, nil
}

// reserve takes n units from a locked product row and keeps p in sync.
func reserve(ctx context.Context, tx *repo.GormRepo, p *models.Product, n int) error {
	ok, err := tx.DecrementStock(ctx, p.ID, n)
	if err != nil {
		return err
	}
	if !ok {
		return &InsufficientStockError{ProductID: p.ID, Remaining: p.Stock}
	}
	p.Stock -= n
	return nil
}

func idKey(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}
