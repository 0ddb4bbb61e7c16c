package handlers

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"strings"

	"github.com/go-chi/chi/v5"

	domain "github.com/netproxy/storefront/internal/domain"
	"github.com/netproxy/storefront/internal/platform/httpx"
	"github.com/netproxy/storefront/internal/platform/money"
	"github.com/netproxy/storefront/internal/services"
)

// SelectionHandlers exposes the per-flow country selection endpoints used
// while a customer configures a multi-country purchase.
type SelectionHandlers struct {
	flows    *services.SelectionManager
	catalog  *services.CatalogService
	currency string
}

// NewSelectionHandlers constructs handlers over the flow manager.
func NewSelectionHandlers(flows *services.SelectionManager, catalog *services.CatalogService, currency string) *SelectionHandlers {
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if currency == "" {
		currency = "USD"
	}
	return &SelectionHandlers{flows: flows, catalog: catalog, currency: currency}
}

// Routes wires the /selections endpoints onto the provided router.
func (h *SelectionHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/flows/{flowID}", h.getFlow)
	r.Post("/flows/{flowID}/toggle", h.toggle)
	r.Put("/flows/{flowID}/quantity", h.setQuantity)
	r.Post("/flows/{flowID}/commit", h.commit)
	r.Delete("/flows/{flowID}", h.discard)
}

func (h *SelectionHandlers) getFlow(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	state, err := h.flows.Lookup(chi.URLParam(r, "flowID"))
	if err != nil {
		h.writeFlowError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, h.buildFlowResponse(state))
}

type toggleRequest struct {
	PlanID string `json:"planId"`
	Code   string `json:"code"`
	Name   string `json:"name"`
}

func (h *SelectionHandlers) toggle(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req toggleRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeBodyError(ctx, w, err)
		return
	}
	if strings.TrimSpace(req.Code) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "country code is required", http.StatusBadRequest))
		return
	}

	state, err := h.flows.Flow(chi.URLParam(r, "flowID"), req.PlanID)
	if err != nil {
		h.writeFlowError(ctx, w, err)
		return
	}

	selected := state.Toggle(ctx, req.Code, req.Name)
	resp := h.buildFlowResponse(state)
	resp.Selected = &selected
	writeJSONResponse(w, http.StatusOK, resp)
}

type setQuantityRequest struct {
	Code     string `json:"code"`
	Quantity int    `json:"quantity"`
}

func (h *SelectionHandlers) setQuantity(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req setQuantityRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	state, err := h.flows.Lookup(chi.URLParam(r, "flowID"))
	if err != nil {
		h.writeFlowError(ctx, w, err)
		return
	}

	state.SetQuantity(ctx, req.Code, req.Quantity)
	writeJSONResponse(w, http.StatusOK, h.buildFlowResponse(state))
}

type commitRequest struct {
	Tab        string `json:"tab"`
	PlanID     string `json:"planId"`
	Duration   string `json:"duration"`
	SpeedLimit string `json:"speedLimit"`
	StaticType string `json:"staticType"`
}

func (h *SelectionHandlers) commit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req commitRequest
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
		switch {
		case errors.Is(err, services.ErrPlanNotFound):
			httpx.WriteError(ctx, w, httpx.NewError("plan_not_found", "plan not found", http.StatusNotFound))
		default:
			httpx.WriteError(ctx, w, httpx.NewError("catalog_unavailable", "catalog is unavailable", http.StatusBadGateway))
		}
		return
	}

	tab, ok := resolveTab(req.Tab, plan)
	if !ok {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_tab", "unknown cart tab "+req.Tab, http.StatusBadRequest))
		return
	}

	committed, err := h.flows.Commit(ctx, chi.URLParam(r, "flowID"), tab, plan, domain.ItemOptions{
		Duration:   req.Duration,
		SpeedLimit: req.SpeedLimit,
		StaticType: req.StaticType,
	})
	if err != nil {
		h.writeFlowError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{"committed": committed})
}

func (h *SelectionHandlers) discard(w http.ResponseWriter, r *http.Request) {
	h.flows.Discard(chi.URLParam(r, "flowID"))
	w.WriteHeader(http.StatusNoContent)
}

func (h *SelectionHandlers) writeFlowError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrFlowNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("flow_not_found", "purchase flow not found", http.StatusNotFound))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	}
}

// Payload shapes --------------------------------------------------------------

type flowResponse struct {
	Selections   []selectionPayload `json:"selections"`
	Total        int64              `json:"total"`
	TotalDisplay string             `json:"totalDisplay"`
	Selected     *bool              `json:"selected,omitempty"`
}

type selectionPayload struct {
	Code         string `json:"code"`
	Name         string `json:"name,omitempty"`
	Quantity     int    `json:"quantity"`
	UnitPrice    int64  `json:"unitPrice"`
	Total        int64  `json:"total"`
	TotalDisplay string `json:"totalDisplay"`
}

func (h *SelectionHandlers) buildFlowResponse(state *services.SelectionState) flowResponse {
	selections := state.Selections()
	payload := make([]selectionPayload, 0, len(selections))
	for _, selection := range selections {
		payload = append(payload, selectionPayload{
			Code:         selection.Code,
			Name:         selection.Name,
			Quantity:     selection.Quantity,
			UnitPrice:    selection.UnitPrice,
			Total:        selection.Total,
			TotalDisplay: money.Format(selection.Total, h.currency),
		})
	}
	sort.Slice(payload, func(i, j int) bool { return payload[i].Code < payload[j].Code })

	total := state.Total()
	return flowResponse{
		Selections:   payload,
		Total:        total,
		TotalDisplay: money.Format(total, h.currency),
	}
}
