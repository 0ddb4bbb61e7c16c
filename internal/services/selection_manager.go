package services

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"
)

const defaultFlowTTL = 30 * time.Minute

var (
	errSelectionManagerCalculator = errors.New("selection manager: price calculator is required")
	errSelectionManagerCart       = errors.New("selection manager: cart store is required")
	errSelectionManagerClock      = errors.New("selection manager: clock is required")

	// ErrFlowNotFound indicates the purchase flow does not exist or expired.
	ErrFlowNotFound = errors.New("selection manager: flow not found")
)

// SelectionManagerDeps wires the dependencies shared by all purchase flows.
type SelectionManagerDeps struct {
	Calculator UnitPricer
	Cart       *CartStore
	Clock      func() time.Time
	FlowTTL    time.Duration
	Logger     EventLogger
}

type flowEntry struct {
	state      *SelectionState
	planID     string
	lastActive time.Time
}

// SelectionManager owns one SelectionState per in-progress purchase flow.
// Flows are working memory: committing one pushes its selections into the
// cart store and discards it; idle flows expire after the TTL.
type SelectionManager struct {
	mu    sync.Mutex
	flows map[string]*flowEntry

	calculator UnitPricer
	cart       *CartStore
	now        func() time.Time
	ttl        time.Duration
	logger     EventLogger
}

// NewSelectionManager validates dependencies.
func NewSelectionManager(deps SelectionManagerDeps) (*SelectionManager, error) {
	if deps.Calculator == nil {
		return nil, errSelectionManagerCalculator
	}
	if deps.Cart == nil {
		return nil, errSelectionManagerCart
	}
	if deps.Clock == nil {
		return nil, errSelectionManagerClock
	}
	ttl := deps.FlowTTL
	if ttl <= 0 {
		ttl = defaultFlowTTL
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &SelectionManager{
		flows:      make(map[string]*flowEntry),
		calculator: deps.Calculator,
		cart:       deps.Cart,
		now:        func() time.Time { return deps.Clock().UTC() },
		ttl:        ttl,
		logger:     logger,
	}, nil
}

// Flow returns the selection state for the given flow, creating it when
// absent. Expired flows are pruned opportunistically on every access.
func (m *SelectionManager) Flow(flowID, planID string) (*SelectionState, error) {
	id := strings.TrimSpace(flowID)
	if id == "" {
		return nil, ErrFlowNotFound
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.pruneLocked()

	if entry, ok := m.flows[id]; ok {
		entry.lastActive = m.now()
		return entry.state, nil
	}

	state, err := NewSelectionState(SelectionStateDeps{
		PlanID:     planID,
		Calculator: m.calculator,
		Logger:     m.logger,
	})
	if err != nil {
		return nil, err
	}
	m.flows[id] = &flowEntry{state: state, planID: strings.TrimSpace(planID), lastActive: m.now()}
	return state, nil
}

// Lookup returns an existing flow without creating one.
func (m *SelectionManager) Lookup(flowID string) (*SelectionState, error) {
	id := strings.TrimSpace(flowID)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pruneLocked()
	entry, ok := m.flows[id]
	if !ok {
		return nil, ErrFlowNotFound
	}
	entry.lastActive = m.now()
	return entry.state, nil
}

// Commit moves every selection of the flow into the cart store as tab items,
// one line per country with the selection total as the line's calculated
// price, then discards the flow. Selection state never outlives a commit.
func (m *SelectionManager) Commit(ctx context.Context, flowID string, tab CartTab, plan Plan, opts ItemOptions) (int, error) {
	id := strings.TrimSpace(flowID)

	m.mu.Lock()
	entry, ok := m.flows[id]
	if !ok {
		m.mu.Unlock()
		return 0, ErrFlowNotFound
	}
	delete(m.flows, id)
	m.mu.Unlock()

	selections := entry.state.Selections()
	codes := make([]string, 0, len(selections))
	for code := range selections {
		codes = append(codes, code)
	}
	// Tab items keep insertion order, so commit in a stable country order.
	sort.Strings(codes)

	committed := 0
	for _, code := range codes {
		selection := selections[code]
		total := selection.Total
		m.cart.AddToCart(ctx, AddToCartCommand{
			Tab:             tab,
			Plan:            plan,
			Quantity:        selection.Quantity,
			Options:         opts,
			Country:         selection.Code,
			CalculatedPrice: &total,
		})
		committed++
	}

	m.logger(ctx, "selection.flow_committed", map[string]any{
		"flowId": id,
		"tab":    string(tab),
		"lines":  committed,
	})
	return committed, nil
}

// Discard drops a flow without committing anything.
func (m *SelectionManager) Discard(flowID string) {
	m.mu.Lock()
	delete(m.flows, strings.TrimSpace(flowID))
	m.mu.Unlock()
}

func (m *SelectionManager) pruneLocked() {
	cutoff := m.now().Add(-m.ttl)
	for id, entry := range m.flows {
		if entry.lastActive.Before(cutoff) {
			delete(m.flows, id)
		}
	}
}
