package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/Skotchmaster/storefront/internal/models"
	"github.com/Skotchmaster/storefront/internal/paypal"
	"github.com/Skotchmaster/storefront/internal/repo"
	"github.com/Skotchmaster/storefront/pkg/logging"
)

// PaymentProvider is the subset of the payment provider API the shop uses.
type PaymentProvider interface {
	GetOrder(ctx context.Context, id string) (*paypal.Order, error)
	CaptureOrder(ctx context.Context, id string) (*paypal.Order, error)
}

type PaymentService struct {
	Repo     *repo.GormRepo
	Provider PaymentProvider
	Events   EventPublisher
}

// Capture captures an approved provider order that pays for one of the
// user's pending orders and records the payment against that order.
func (s *PaymentService) Capture(ctx context.Context, userID, orderID uint, providerOrderID string) (*models.Payment, error) {
	l := logging.FromContext(ctx).With("svc", "payment.capture", "user_id", userID, "order_id", orderID)

	providerOrderID = strings.TrimSpace(providerOrderID)
	if providerOrderID == "" || orderID == 0 {
		return nil, fmt.Errorf("order_id and provider_order_id are required: %w", ErrValidation)
	}
	if s.Provider == nil {
		return nil, fmt.Errorf("payment provider is not configured: %w", ErrUnavailable)
	}

	order, err := payable(ctx, s.Repo, userID, orderID, false)
	if err != nil {
		return nil, err
	}
	if _, err := s.Repo.PaymentByProviderOrder(ctx, providerOrderID); err == nil {
		return nil, fmt.Errorf("provider order %s already captured: %w", providerOrderID, ErrConflict)
	} else if !repo.IsNotFound(err) {
		return nil, err
	}

	ppOrder, err := s.Provider.GetOrder(ctx, providerOrderID)
	if err != nil {
		return nil, providerError(err)
	}
	amount, currency, err := ppOrder.Total()
	if err != nil {
		return nil, fmt.Errorf("%v: %w", err, ErrValidation)
	}
	if !amount.Equal(order.TotalAmount) {
		return nil, fmt.Errorf("provider amount %s does not match order total %s: %w",
			amount.StringFixed(2), order.TotalAmount.StringFixed(2), ErrValidation)
	}
	switch ppOrder.Status {
	case paypal.StatusApproved:
	case paypal.StatusCompleted:
		return nil, fmt.Errorf("provider order %s already completed: %w", providerOrderID, ErrConflict)
	default:
		return nil, fmt.Errorf("provider order %s is %s, not approved: %w", providerOrderID, ppOrder.Status, ErrValidation)
	}

	// The order row stays locked across the provider capture so that two
	// captures for one order, or a capture racing a cancel, run one at a time.
	var p models.Payment
	err = s.Repo.Tx(ctx, func(tx *repo.GormRepo) error {
		if _, err := payable(ctx, tx, userID, orderID, true); err != nil {
			return err
		}

		captured, err := s.Provider.CaptureOrder(ctx, providerOrderID)
		if err != nil {
			return providerError(err)
		}

		p = models.Payment{
			OrderID:         order.ID,
			UserID:          userID,
			ProviderOrderID: providerOrderID,
			CaptureID:       captured.CaptureID(),
			Amount:          amount,
			Currency:        currency,
			Status:          captured.Status,
			PayerEmail:      captured.Payer.EmailAddress,
		}
		if err := tx.CreatePayment(ctx, &p); err != nil {
			// money has moved; keep the capture id in the logs for reconciliation
			l.Error("payment_save_error", "provider_order_id", providerOrderID, "capture_id", p.CaptureID, "error", err)
			if repo.IsDuplicate(err) {
				return fmt.Errorf("order %d already has a payment: %w", orderID, ErrConflict)
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	l.Info("payment_captured", "payment_id", p.ID, "capture_id", p.CaptureID, "amount", amount.StringFixed(2))
	publish(ctx, s.Events, TopicPayment, idKey(userID), Event{
		Type: "payment.captured", UserID: userID, OrderID: order.ID,
		Data: map[string]any{"payment_id": p.ID, "amount": amount.StringFixed(2), "currency": currency},
	})
	return &p, nil
}

// payable loads the order and checks that the user may pay for it: it is
// theirs, still pending and has no payment recorded yet.
func payable(ctx context.Context, r *repo.GormRepo, userID, orderID uint, lock bool) (*models.Order, error) {
	load := r.OrderByID
	if lock {
		load = r.LockOrder
	}
	order, err := load(ctx, orderID)
	if err != nil {
		if repo.IsNotFound(err) {
			return nil, fmt.Errorf("order %d: %w", orderID, ErrNotFound)
		}
		return nil, err
	}
	if order.UserID != userID {
		return nil, fmt.Errorf("order %d belongs to another user: %w", orderID, ErrForbidden)
	}
	if order.Status != models.OrderStatusPending {
		return nil, fmt.Errorf("order %d is %s: %w", orderID, order.Status, ErrConflict)
	}
	if _, err := r.PaymentByOrder(ctx, orderID); err == nil {
		return nil, fmt.Errorf("order %d already has a payment: %w", orderID, ErrConflict)
	} else if !repo.IsNotFound(err) {
		return nil, err
	}
	return order, nil
}

// ProviderOrder returns the provider's view of an order. Orders already
// recorded for another user are not disclosed.
func (s *PaymentService) ProviderOrder(ctx context.Context, userID uint, providerOrderID string) (*paypal.Order, error) {
	if strings.TrimSpace(providerOrderID) == "" {
		return nil, fmt.Errorf("provider order id is required: %w", ErrValidation)
	}
	if s.Provider == nil {
		return nil, fmt.Errorf("payment provider is not configured: %w", ErrUnavailable)
	}
	if p, err := s.Repo.PaymentByProviderOrder(ctx, providerOrderID); err == nil && p.UserID != userID {
		return nil, fmt.Errorf("provider order %s: %w", providerOrderID, ErrForbidden)
	} else if err != nil && !repo.IsNotFound(err) {
		return nil, err
	}

	o, err := s.Provider.GetOrder(ctx, providerOrderID)
	if err != nil {
		return nil, providerError(err)
	}
	return o, nil
}

func providerError(err error) error {
	var apiErr *paypal.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case http.StatusNotFound:
			return fmt.Errorf("%v: %w", err, ErrNotFound)
		case http.StatusUnprocessableEntity:
			return fmt.Errorf("%v: %w", err, ErrConflict)
		}
	}
	return fmt.Errorf("%v: %w", err, ErrUnavailable)
}
