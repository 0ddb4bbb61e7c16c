package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/netproxy/storefront/internal/platform/httpx"
	"github.com/netproxy/storefront/internal/services"
)

// PlanHandlers exposes the read-only plan catalog.
type PlanHandlers struct {
	catalog *services.CatalogService
}

// NewPlanHandlers constructs handlers over the catalog service.
func NewPlanHandlers(catalog *services.CatalogService) *PlanHandlers {
	return &PlanHandlers{catalog: catalog}
}

// Routes wires the /plans endpoints onto the provided router.
func (h *PlanHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/", h.listPlans)
	r.Get("/{planID}", h.getPlan)
}

func (h *PlanHandlers) listPlans(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	plans, err := h.catalog.Plans(ctx)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_unavailable", "catalog is unavailable", http.StatusBadGateway))
		return
	}

	payload := make([]planPayload, 0, len(plans))
	for _, plan := range plans {
		payload = append(payload, buildPlanPayload(plan))
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{"plans": payload})
}

func (h *PlanHandlers) getPlan(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	plan, err := h.catalog.Plan(ctx, chi.URLParam(r, "planID"))
	if err != nil {
		switch {
		case errors.Is(err, services.ErrPlanNotFound):
			httpx.WriteError(ctx, w, httpx.NewError("plan_not_found", "plan not found", http.StatusNotFound))
		default:
			httpx.WriteError(ctx, w, httpx.NewError("catalog_unavailable", "catalog is unavailable", http.StatusBadGateway))
		}
		return
	}
	writeJSONResponse(w, http.StatusOK, buildPlanPayload(plan))
}
