package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	domain "github.com/netproxy/storefront/internal/domain"
	"github.com/netproxy/storefront/internal/platform/httpx"
	"github.com/netproxy/storefront/internal/platform/money"
	"github.com/netproxy/storefront/internal/platform/requestctx"
	"github.com/netproxy/storefront/internal/services"
)

// CartHandlers exposes the tab-partitioned cart and its coupon endpoints.
type CartHandlers struct {
	cart     *services.CartStore
	coupons  *services.CouponService
	catalog  *services.CatalogService
	currency string
}

// NewCartHandlers constructs handlers over the shared cart store. The coupon
// service may be nil when the coupons feature is disabled.
func NewCartHandlers(cart *services.CartStore, coupons *services.CouponService, catalog *services.CatalogService, currency string) *CartHandlers {
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if currency == "" {
		currency = "USD"
	}
	return &CartHandlers{
		cart:     cart,
		coupons:  coupons,
		catalog:  catalog,
		currency: currency,
	}
}

// IdentitySyncMiddleware pushes the authenticated user id from the request
// context into the cart store so identity changes invalidate stale carts.
func IdentitySyncMiddleware(cart *services.CartStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cart.SetIdentity(r.Context(), requestctx.UserID(r.Context()))
			next.ServeHTTP(w, r)
		})
	}
}

// Routes wires the /cart endpoints onto the provided router.
func (h *CartHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/", h.getCart)
	r.Delete("/", h.clearCart)
	r.Post("/items", h.addItem)
	r.Patch("/items/{itemID}", h.updateItem)
	r.Delete("/items/{itemID}", h.removeItem)
	r.Put("/items/{itemID}/country", h.updateCountry)
	r.Delete("/tabs/{tab}", h.clearTab)
	r.Post("/coupon", h.applyCoupon)
	r.Delete("/coupon", h.removeCoupon)
}

func (h *CartHandlers) getCart(w http.ResponseWriter, r *http.Request) {
	writeJSONResponse(w, http.StatusOK, buildCartResponse(h.cart.Snapshot(), h.currency))
}

func (h *CartHandlers) clearCart(w http.ResponseWriter, r *http.Request) {
	h.cart.ClearCart(r.Context())
	writeJSONResponse(w, http.StatusOK, buildCartResponse(h.cart.Snapshot(), h.currency))
}

type addItemRequest struct {
	Tab             string `json:"tab"`
	PlanID          string `json:"planId"`
	Quantity        int    `json:"quantity"`
	Country         string `json:"country"`
	Duration        string `json:"duration"`
	SpeedLimit      string `json:"speedLimit"`
	StaticType      string `json:"staticType"`
	CalculatedPrice *int64 `json:"calculatedPrice"`
}

func (h *CartHandlers) addItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req addItemRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeBodyError(ctx, w, err)
		return
	}
	if strings.TrimSpace(req.PlanID) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "planId is required", http.StatusBadRequest))
		return
	}

	plan, err := h.catalog.Plan(ctx, req.PlanID)
	if err != nil {
		h.writeCatalogError(ctx, w, err)
		return
	}

	tab, ok := resolveTab(req.Tab, plan)
	if !ok {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_tab", "unknown cart tab "+req.Tab, http.StatusBadRequest))
		return
	}

	h.cart.AddToCart(ctx, services.AddToCartCommand{
		Tab:      tab,
		Plan:     plan,
		Quantity: req.Quantity,
		Country:  req.Country,
		Options: domain.ItemOptions{
			Duration:   req.Duration,
			SpeedLimit: req.SpeedLimit,
			StaticType: req.StaticType,
		},
		CalculatedPrice: req.CalculatedPrice,
	})
	writeJSONResponse(w, http.StatusCreated, buildCartResponse(h.cart.Snapshot(), h.currency))
}

type updateItemRequest struct {
	Tab             string `json:"tab"`
	Quantity        int    `json:"quantity"`
	CalculatedPrice *int64 `json:"calculatedPrice"`
}

func (h *CartHandlers) updateItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	itemID := chi.URLParam(r, "itemID")

	var req updateItemRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeBodyError(ctx, w, err)
		return
	}
	tab, ok := domain.ParseCartTab(req.Tab)
	if !ok {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_tab", "unknown cart tab "+req.Tab, http.StatusBadRequest))
		return
	}

	if req.CalculatedPrice != nil {
		h.cart.UpdateCartItem(ctx, tab, itemID, req.Quantity, req.CalculatedPrice)
	} else {
		h.cart.UpdateQuantity(ctx, tab, itemID, req.Quantity)
	}
	writeJSONResponse(w, http.StatusOK, buildCartResponse(h.cart.Snapshot(), h.currency))
}

func (h *CartHandlers) removeItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tab, ok := domain.ParseCartTab(r.URL.Query().Get("tab"))
	if !ok {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_tab", "tab query parameter is required", http.StatusBadRequest))
		return
	}
	h.cart.RemoveItem(ctx, tab, chi.URLParam(r, "itemID"))
	writeJSONResponse(w, http.StatusOK, buildCartResponse(h.cart.Snapshot(), h.currency))
}

type updateCountryRequest struct {
	Tab     string `json:"tab"`
	Country string `json:"country"`
}

func (h *CartHandlers) updateCountry(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req updateCountryRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeBodyError(ctx, w, err)
		return
	}
	tab, ok := domain.ParseCartTab(req.Tab)
	if !ok {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_tab", "unknown cart tab "+req.Tab, http.StatusBadRequest))
		return
	}

	h.cart.UpdateCountry(ctx, tab, chi.URLParam(r, "itemID"), req.Country)
	writeJSONResponse(w, http.StatusOK, buildCartResponse(h.cart.Snapshot(), h.currency))
}

func (h *CartHandlers) clearTab(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tab, ok := domain.ParseCartTab(chi.URLParam(r, "tab"))
	if !ok {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_tab", "unknown cart tab", http.StatusBadRequest))
		return
	}
	h.cart.ClearTabCart(ctx, tab)
	writeJSONResponse(w, http.StatusOK, buildCartResponse(h.cart.Snapshot(), h.currency))
}

type applyCouponRequest struct {
	Code   string `json:"code"`
	PlanID string `json:"planId"`
}

func (h *CartHandlers) applyCoupon(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.coupons == nil {
		httpx.WriteError(ctx, w, httpx.NewError("coupons_disabled", "coupons are not enabled", http.StatusNotImplemented))
		return
	}

	var req applyCouponRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	if _, err := h.coupons.Apply(ctx, req.Code, req.PlanID); err != nil {
		h.writeCouponError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildCartResponse(h.cart.Snapshot(), h.currency))
}

func (h *CartHandlers) removeCoupon(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.coupons == nil {
		httpx.WriteError(ctx, w, httpx.NewError("coupons_disabled", "coupons are not enabled", http.StatusNotImplemented))
		return
	}
	h.coupons.Remove(ctx)
	writeJSONResponse(w, http.StatusOK, buildCartResponse(h.cart.Snapshot(), h.currency))
}

func (h *CartHandlers) writeCouponError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrCouponCodeRequired):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrCouponEmptyCart):
		httpx.WriteError(ctx, w, httpx.NewError("coupon_empty_cart", err.Error(), http.StatusConflict))
	case errors.Is(err, services.ErrCouponExpired):
		httpx.WriteError(ctx, w, httpx.NewError("coupon_expired", err.Error(), http.StatusUnprocessableEntity))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("coupon_rejected", "coupon could not be validated", http.StatusUnprocessableEntity))
	}
}

func (h *CartHandlers) writeCatalogError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrPlanNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("plan_not_found", "plan not found", http.StatusNotFound))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("catalog_unavailable", "catalog is unavailable", http.StatusBadGateway))
	}
}

func writeBodyError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, errBodyTooLarge):
		httpx.WriteError(ctx, w, httpx.NewError("payload_too_large", err.Error(), http.StatusRequestEntityTooLarge))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	}
}

func resolveTab(raw string, plan domain.Plan) (domain.CartTab, bool) {
	if strings.TrimSpace(raw) == "" {
		return domain.ClassifyPlan(plan), true
	}
	return domain.ParseCartTab(raw)
}

// Payload shapes --------------------------------------------------------------

type cartResponse struct {
	Tabs            map[string]cartTabPayload `json:"tabs"`
	ItemsCount      int                       `json:"itemsCount"`
	Subtotal        int64                     `json:"subtotal"`
	SubtotalDisplay string                    `json:"subtotalDisplay"`
	Discount        int64                     `json:"discount,omitempty"`
	Total           int64                     `json:"total"`
	TotalDisplay    string                    `json:"totalDisplay"`
	Coupon          *couponPayload            `json:"coupon,omitempty"`
}

type cartTabPayload struct {
	Items    []cartItemPayload `json:"items"`
	Subtotal int64             `json:"subtotal"`
}

type cartItemPayload struct {
	ID               string           `json:"id"`
	Plan             planPayload      `json:"plan"`
	Quantity         int              `json:"quantity"`
	Country          string           `json:"country,omitempty"`
	Duration         string           `json:"duration,omitempty"`
	SpeedLimit       string           `json:"speedLimit,omitempty"`
	StaticType       string           `json:"staticType,omitempty"`
	LineTotal        int64            `json:"lineTotal"`
	LineTotalDisplay string           `json:"lineTotalDisplay"`
	Boundary         *boundaryPayload `json:"boundary,omitempty"`
}

type planPayload struct {
	ID        string `json:"id"`
	Name      string `json:"name,omitempty"`
	Type      string `json:"type,omitempty"`
	Category  string `json:"category,omitempty"`
	Price     int64  `json:"price"`
	Currency  string `json:"currency,omitempty"`
	ProxyType string `json:"proxyType,omitempty"`
	Period    string `json:"period,omitempty"`
}

type couponPayload struct {
	Code        string `json:"code"`
	Description string `json:"description,omitempty"`
	Percent     int    `json:"percent,omitempty"`
	ExpiresAt   string `json:"expiresAt,omitempty"`
}

type boundaryPayload struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

func buildCartResponse(state domain.CartState, currency string) cartResponse {
	resp := cartResponse{
		Tabs:       make(map[string]cartTabPayload, len(state.ItemsByTab)),
		ItemsCount: state.ItemCount(),
		Subtotal:   state.Subtotal(),
		Discount:   state.DiscountAmount,
		Total:      state.Total(),
	}
	resp.SubtotalDisplay = money.Format(resp.Subtotal, currency)
	resp.TotalDisplay = money.Format(resp.Total, currency)

	for _, tab := range domain.CartTabs() {
		items := state.ItemsByTab[tab]
		payload := cartTabPayload{Items: make([]cartItemPayload, 0, len(items))}
		for _, item := range items {
			payload.Items = append(payload.Items, buildCartItemPayload(item, currency))
			payload.Subtotal += item.LineTotal()
		}
		resp.Tabs[string(tab)] = payload
	}

	if state.ValidatedCoupon != nil {
		coupon := couponPayload{
			Code:        state.ValidatedCoupon.Code,
			Description: state.ValidatedCoupon.Description,
			Percent:     state.ValidatedCoupon.Percent,
		}
		if state.ValidatedCoupon.ExpiresAt != nil {
			coupon.ExpiresAt = state.ValidatedCoupon.ExpiresAt.UTC().Format(time.RFC3339)
		}
		resp.Coupon = &coupon
	}
	return resp
}

func buildCartItemPayload(item domain.CartItem, currency string) cartItemPayload {
	payload := cartItemPayload{
		ID:               item.ID,
		Plan:             buildPlanPayload(item.Plan),
		Quantity:         item.Quantity,
		Country:          item.Country,
		Duration:         item.Duration,
		SpeedLimit:       item.SpeedLimit,
		StaticType:       item.StaticType,
		LineTotal:        item.LineTotal(),
		LineTotalDisplay: money.Format(item.LineTotal(), currency),
	}
	if item.Boundary != nil {
		payload.Boundary = &boundaryPayload{Min: item.Boundary.Min, Max: item.Boundary.Max}
	}
	return payload
}

func buildPlanPayload(plan domain.Plan) planPayload {
	return planPayload{
		ID:        plan.ID,
		Name:      plan.Name,
		Type:      string(plan.Type),
		Category:  plan.Category,
		Price:     plan.Price,
		Currency:  plan.Currency,
		ProxyType: plan.Metadata.ProxyType,
		Period:    plan.Metadata.Period,
	}
}
