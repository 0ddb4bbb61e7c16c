package services

import (
	"context"
	"errors"
	"strings"
	"sync"

	domain "github.com/netproxy/storefront/internal/domain"
)

var errSelectionCalculatorRequired = errors.New("selection state: price calculator is required")

// UnitPricer resolves a per-unit price for a plan/country/quantity triple.
// PriceCalculator satisfies it; tests substitute stubs.
type UnitPricer interface {
	UnitPrice(ctx context.Context, planID, country string, quantity int) int64
}

// SelectionStateDeps wires the pricing dependency for one purchase flow.
type SelectionStateDeps struct {
	PlanID     string
	Calculator UnitPricer
	Logger     EventLogger
}

type selectionEntry struct {
	selection domain.CountrySelection
	// generation is bumped every time a recalculation is issued for this
	// key. A completing quote is applied only while its generation is still
	// current, which gives last-issued-wins regardless of response order.
	generation uint64
}

// SelectionState is the ephemeral working memory of a purchase flow: a keyed
// map of country selections whose prices are recalculated asynchronously.
// Toggles and quantity changes update totals immediately with the current
// unit price so the UI never lags behind input, then a background quote
// catches accuracy up. Stale quote responses are discarded by generation.
type SelectionState struct {
	mu      sync.Mutex
	entries map[string]*selectionEntry

	planID     string
	calculator UnitPricer
	logger     EventLogger
	wg         sync.WaitGroup
}

// NewSelectionState builds an empty selection map for the given plan.
func NewSelectionState(deps SelectionStateDeps) (*SelectionState, error) {
	if deps.Calculator == nil {
		return nil, errSelectionCalculatorRequired
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &SelectionState{
		entries:    make(map[string]*selectionEntry),
		planID:     strings.TrimSpace(deps.PlanID),
		calculator: deps.Calculator,
		logger:     logger,
	}, nil
}

// Toggle flips a country selection. Turning it on inserts the entry
// immediately at the tier fallback price for quantity one and kicks off an
// asynchronous recalculation; turning it off removes the entry, which makes
// any in-flight quote for it moot.
func (s *SelectionState) Toggle(ctx context.Context, code, name string) bool {
	key := strings.ToUpper(strings.TrimSpace(code))
	if key == "" {
		return false
	}

	s.mu.Lock()
	if _, selected := s.entries[key]; selected {
		delete(s.entries, key)
		s.mu.Unlock()
		return false
	}

	unit := domain.PriceForQuantity(1)
	entry := &selectionEntry{
		selection: domain.CountrySelection{
			Code:      key,
			Name:      strings.TrimSpace(name),
			Quantity:  1,
			UnitPrice: unit,
			Total:     unit,
		},
		generation: 1,
	}
	s.entries[key] = entry
	generation := entry.generation
	s.mu.Unlock()

	s.recalculateAsync(ctx, key, 1, generation)
	return true
}

// SetQuantity updates an entry's quantity, repricing the total immediately
// with the current (possibly stale) unit price before the fresh quote lands.
// Quantities below one deselect the country.
func (s *SelectionState) SetQuantity(ctx context.Context, code string, quantity int) {
	key := strings.ToUpper(strings.TrimSpace(code))

	s.mu.Lock()
	entry, ok := s.entries[key]
	if !ok {
		s.mu.Unlock()
		return
	}
	if quantity < 1 {
		delete(s.entries, key)
		s.mu.Unlock()
		return
	}

	entry.selection.Quantity = quantity
	entry.selection.Total = entry.selection.UnitPrice * int64(quantity)
	entry.generation++
	generation := entry.generation
	s.mu.Unlock()

	s.recalculateAsync(ctx, key, quantity, generation)
}

// Remove drops a selection. In-flight quotes for it are discarded on arrival.
func (s *SelectionState) Remove(code string) {
	key := strings.ToUpper(strings.TrimSpace(code))
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()
}

// Selected reports whether the country is currently selected.
func (s *SelectionState) Selected(code string) bool {
	key := strings.ToUpper(strings.TrimSpace(code))
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.entries[key]
	return ok
}

// Selections returns a copy of all current selections keyed by country code.
func (s *SelectionState) Selections() map[string]CountrySelection {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]CountrySelection, len(s.entries))
	for key, entry := range s.entries {
		out[key] = entry.selection
	}
	return out
}

// Total derives the aggregate across all selections, recomputed on every call.
func (s *SelectionState) Total() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	var total int64
	for _, entry := range s.entries {
		total += entry.selection.Total
	}
	return total
}

// Wait blocks until every recalculation issued so far has completed or been
// discarded. Tests and flow teardown use it; request handling never does.
func (s *SelectionState) Wait() {
	s.wg.Wait()
}

func (s *SelectionState) recalculateAsync(ctx context.Context, key string, quantity int, generation uint64) {
	// The quote must outlive the request that issued it: handlers pass the
	// request context, which net/http cancels as soon as the response is
	// written. WithoutCancel keeps the context values for logging.
	ctx = context.WithoutCancel(ctx)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		unit := s.calculator.UnitPrice(ctx, s.planID, key, quantity)
		s.applyQuote(ctx, key, quantity, generation, unit)
	}()
}

// applyQuote installs a resolved unit price only when the response is still
// current: the generation must match the latest issued for the key and the
// live quantity must equal the quantity the quote was requested for.
// Anything else is a superseded response and is dropped without logging;
// staleness is expected, not a failure.
func (s *SelectionState) applyQuote(ctx context.Context, key string, quantity int, generation uint64, unit int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[key]
	if !ok {
		return
	}
	if entry.generation != generation {
		return
	}
	if entry.selection.Quantity != quantity {
		return
	}
	entry.selection.UnitPrice = unit
	entry.selection.Total = unit * int64(quantity)
}
