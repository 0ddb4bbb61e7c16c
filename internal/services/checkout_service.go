package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/netproxy/storefront/internal/platform/idempotency"
)

var (
	errCheckoutCartRequired     = errors.New("checkout service: cart store is required")
	errCheckoutPaymentsRequired = errors.New("checkout service: payment provider is required")
	errCheckoutClockRequired    = errors.New("checkout service: clock is required")

	// ErrCheckoutInvalidInput indicates the caller supplied invalid input parameters.
	ErrCheckoutInvalidInput = errors.New("checkout: invalid input")
	// ErrCheckoutEmptyCart indicates there is nothing to pay for.
	ErrCheckoutEmptyCart = errors.New("checkout: cart is empty")
	// ErrCheckoutPaymentFailed indicates the PSP session could not be created.
	ErrCheckoutPaymentFailed = errors.New("checkout: payment failed")
)

const defaultCheckoutCurrency = "USD"

// CheckoutServiceDeps wires the dependencies required by the checkout service.
type CheckoutServiceDeps struct {
	Cart     *CartStore
	Payments PaymentSessionProvider
	Clock    func() time.Time
	Logger   EventLogger
	Currency string

	// Sessions, when set, replays an already created payment session for a
	// retried request instead of opening a second one.
	Sessions *idempotency.ReplayStore[CheckoutSession]
}

// CheckoutService turns cart contents into a PSP payment session and prunes
// purchased items once payment completes. It never mutates the cart before
// payment: concurrent additions during checkout survive completion because
// pruning targets the exact item ids captured at session creation.
type CheckoutService struct {
	cart     *CartStore
	payments PaymentSessionProvider
	now      func() time.Time
	logger   EventLogger
	currency string
	sessions *idempotency.ReplayStore[CheckoutSession]
}

// NewCheckoutService validates dependencies.
func NewCheckoutService(deps CheckoutServiceDeps) (*CheckoutService, error) {
	if deps.Cart == nil {
		return nil, errCheckoutCartRequired
	}
	if deps.Payments == nil {
		return nil, errCheckoutPaymentsRequired
	}
	if deps.Clock == nil {
		return nil, errCheckoutClockRequired
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	currency := strings.ToUpper(strings.TrimSpace(deps.Currency))
	if currency == "" {
		currency = defaultCheckoutCurrency
	}
	return &CheckoutService{
		cart:     deps.Cart,
		payments: deps.Payments,
		now:      func() time.Time { return deps.Clock().UTC() },
		logger:   logger,
		currency: currency,
		sessions: deps.Sessions,
	}, nil
}

// CreateSession opens a payment session for the selected scope, either one
// tab or the whole cart. The cart-wide discount is applied only on whole-cart
// checkouts; a single-tab checkout pays the undiscounted tab total.
func (s *CheckoutService) CreateSession(ctx context.Context, cmd CreateCheckoutSessionCommand) (CheckoutSession, error) {
	successURL := strings.TrimSpace(cmd.SuccessURL)
	cancelURL := strings.TrimSpace(cmd.CancelURL)
	if successURL == "" || cancelURL == "" {
		return CheckoutSession{}, ErrCheckoutInvalidInput
	}

	var items []CartItem
	if cmd.AllTabs {
		items = s.cart.AllItems()
	} else {
		items = s.cart.TabItems(cmd.Tab)
	}
	if len(items) == 0 {
		return CheckoutSession{}, ErrCheckoutEmptyCart
	}

	orderLines := make([]OrderLine, 0, len(items))
	paymentLines := make([]PaymentLine, 0, len(items))
	itemIDs := make([]string, 0, len(items))
	var total int64
	for _, item := range items {
		lineTotal := item.LineTotal()
		total += lineTotal
		itemIDs = append(itemIDs, item.ID)
		orderLines = append(orderLines, OrderLine{
			PlanID:   item.Plan.ID,
			Quantity: item.Quantity,
			Country:  item.Country,
		})
		// Line totals may not divide evenly by quantity when a
		// calculated price overrides them, so each line is charged as
		// a single priced unit.
		paymentLines = append(paymentLines, PaymentLine{
			Name:     paymentLineName(item),
			Amount:   lineTotal,
			Quantity: 1,
		})
	}

	var discount int64
	if cmd.AllTabs {
		snapshot := s.cart.Snapshot()
		discount = snapshot.DiscountAmount
		if discount > total {
			discount = total
		}
		if discount > 0 {
			paymentLines = append(paymentLines, PaymentLine{
				Name:     fmt.Sprintf("Discount %s", snapshot.CouponCode),
				Amount:   -discount,
				Quantity: 1,
			})
		}
	}
	total -= discount

	key := s.idempotencyKey(cmd, itemIDs, total)
	if s.sessions != nil {
		if cached, ok := s.sessions.Get(key); ok {
			s.logger(ctx, "checkout.session_replayed", map[string]any{
				"sessionId": cached.SessionID,
				"scope":     checkoutScope(cmd),
			})
			return cached, nil
		}
	}

	reference := ulid.Make().String()
	session, err := s.payments.CreateSession(ctx, PaymentSessionRequest{
		Currency:       s.currency,
		Lines:          paymentLines,
		SuccessURL:     successURL,
		CancelURL:      cancelURL,
		IdempotencyKey: key,
		Metadata: map[string]string{
			"checkout_ref": reference,
			"scope":        checkoutScope(cmd),
		},
	})
	if err != nil {
		s.logger(ctx, "checkout.payment_session_failed", map[string]any{
			"scope": checkoutScope(cmd),
			"error": err.Error(),
		})
		return CheckoutSession{}, fmt.Errorf("%w: %s", ErrCheckoutPaymentFailed, err)
	}

	s.logger(ctx, "checkout.session_created", map[string]any{
		"sessionId": session.ID,
		"reference": reference,
		"scope":     checkoutScope(cmd),
		"lines":     len(orderLines),
		"total":     total,
	})
	result := CheckoutSession{
		SessionID:   session.ID,
		RedirectURL: session.RedirectURL,
		Lines:       orderLines,
		ItemIDs:     itemIDs,
		Total:       total,
		Currency:    s.currency,
	}
	if s.sessions != nil {
		s.sessions.Put(key, result)
	}
	return result, nil
}

// Complete prunes the purchased items from the cart after a successful
// payment. Items added while the session was open are untouched.
func (s *CheckoutService) Complete(ctx context.Context, cmd CompleteCheckoutCommand) error {
	if len(cmd.ItemIDs) == 0 {
		return ErrCheckoutInvalidInput
	}
	s.cart.ClearByItemIDs(ctx, cmd.Tab, cmd.ItemIDs)
	s.logger(ctx, "checkout.completed", map[string]any{
		"tab":   string(cmd.Tab),
		"items": len(cmd.ItemIDs),
	})
	return nil
}

func (s *CheckoutService) idempotencyKey(cmd CreateCheckoutSessionCommand, itemIDs []string, total int64) string {
	ids := make([]string, len(itemIDs))
	copy(ids, itemIDs)
	sort.Strings(ids)
	return idempotency.Key(
		checkoutScope(cmd),
		strings.Join(ids, ","),
		fmt.Sprintf("%d", total),
		s.now().Format("2006-01-02"),
	)
}

func checkoutScope(cmd CreateCheckoutSessionCommand) string {
	if cmd.AllTabs {
		return "all"
	}
	return string(cmd.Tab)
}

func paymentLineName(item CartItem) string {
	parts := []string{item.Plan.Name}
	if item.Country != "" {
		parts = append(parts, item.Country)
	}
	if item.Quantity > 1 {
		parts = append(parts, fmt.Sprintf("x%d", item.Quantity))
	}
	return strings.Join(parts, " ")
}
