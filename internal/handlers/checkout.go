package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	domain "github.com/netproxy/storefront/internal/domain"
	"github.com/netproxy/storefront/internal/platform/httpx"
	"github.com/netproxy/storefront/internal/services"
)

// CheckoutHandlers exposes payment session creation and completion.
type CheckoutHandlers struct {
	checkout *services.CheckoutService
}

// NewCheckoutHandlers constructs handlers over the checkout service.
func NewCheckoutHandlers(checkout *services.CheckoutService) *CheckoutHandlers {
	return &CheckoutHandlers{checkout: checkout}
}

// Routes wires the /checkout endpoints onto the provided router.
func (h *CheckoutHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/session", h.createSession)
	r.Post("/complete", h.complete)
}

type createSessionRequest struct {
	Tab        string `json:"tab"`
	AllTabs    bool   `json:"allTabs"`
	SuccessURL string `json:"successUrl"`
	CancelURL  string `json:"cancelUrl"`
}

func (h *CheckoutHandlers) createSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req createSessionRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	cmd := services.CreateCheckoutSessionCommand{
		AllTabs:    req.AllTabs,
		SuccessURL: req.SuccessURL,
		CancelURL:  req.CancelURL,
	}
	if !req.AllTabs {
		tab, ok := domain.ParseCartTab(req.Tab)
		if !ok {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_tab", "unknown cart tab "+req.Tab, http.StatusBadRequest))
			return
		}
		cmd.Tab = tab
	}

	session, err := h.checkout.CreateSession(ctx, cmd)
	if err != nil {
		h.writeCheckoutError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusCreated, checkoutSessionPayload{
		SessionID:   session.SessionID,
		RedirectURL: session.RedirectURL,
		Lines:       session.Lines,
		ItemIDs:     session.ItemIDs,
		Total:       session.Total,
		Currency:    session.Currency,
	})
}

type completeRequest struct {
	Tab     string   `json:"tab"`
	ItemIDs []string `json:"itemIds"`
}

func (h *CheckoutHandlers) complete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req completeRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeBodyError(ctx, w, err)
		return
	}
	tab, ok := domain.ParseCartTab(req.Tab)
	if !ok && strings.TrimSpace(req.Tab) != "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_tab", "unknown cart tab "+req.Tab, http.StatusBadRequest))
		return
	}

	if err := h.checkout.Complete(ctx, services.CompleteCheckoutCommand{
		Tab:     tab,
		ItemIDs: req.ItemIDs,
	}); err != nil {
		h.writeCheckoutError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *CheckoutHandlers) writeCheckoutError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrCheckoutInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrCheckoutEmptyCart):
		httpx.WriteError(ctx, w, httpx.NewError("checkout_empty_cart", err.Error(), http.StatusUnprocessableEntity))
	case errors.Is(err, services.ErrCheckoutPaymentFailed):
		httpx.WriteError(ctx, w, httpx.NewError("payment_failed", "payment session could not be created", http.StatusBadGateway))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("checkout_error", "checkout failed", http.StatusInternalServerError))
	}
}

type checkoutSessionPayload struct {
	SessionID   string               `json:"sessionId"`
	RedirectURL string               `json:"redirectUrl"`
	Lines       []services.OrderLine `json:"lines"`
	ItemIDs     []string             `json:"itemIds"`
	Total       int64                `json:"total"`
	Currency    string               `json:"currency"`
}
