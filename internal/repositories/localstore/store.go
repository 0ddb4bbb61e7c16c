// Package localstore persists the cart as a JSON document on the local
// filesystem, mirroring the storefront's browser storage layout under the
// fixed "netproxy-cart" key.
package localstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	domain "github.com/netproxy/storefront/internal/domain"
)

// StorageKey matches the client-side storage key the storefront has always
// used for its cart blob.
const StorageKey = "netproxy-cart"

// Store is a file-backed CartRepository. Writes replace the whole document
// atomically via a temp file rename.
type Store struct {
	path string
}

// New creates the state directory when required and returns a Store rooted in
// it.
func New(dir string) (*Store, error) {
	trimmed := strings.TrimSpace(dir)
	if trimmed == "" {
		return nil, errors.New("localstore: state directory is required")
	}
	if err := os.MkdirAll(trimmed, 0o755); err != nil {
		return nil, fmt.Errorf("localstore: create state directory: %w", err)
	}
	return &Store{path: filepath.Join(trimmed, StorageKey+".json")}, nil
}

// Load reads and decodes the persisted cart. Both the current tabbed layout
// and the legacy flat-list layout are accepted; legacy items are reassigned
// to tabs through the plan classifier at this boundary so nothing above the
// repository ever sees the old shape.
func (s *Store) Load(ctx context.Context) (domain.CartState, bool, error) {
	if err := ctx.Err(); err != nil {
		return domain.CartState{}, false, err
	}

	raw, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return domain.NewCartState(), false, nil
		}
		return domain.CartState{}, false, storeError{op: "load", err: err, unavailable: true}
	}

	var doc cartDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return domain.CartState{}, false, storeError{op: "load", err: err}
	}

	return doc.toDomain(), true, nil
}

// Save serialises the full cart state and replaces the stored document.
func (s *Store) Save(ctx context.Context, state domain.CartState) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	raw, err := json.MarshalIndent(documentFromDomain(state), "", "  ")
	if err != nil {
		return storeError{op: "save", err: err}
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), StorageKey+"-*.tmp")
	if err != nil {
		return storeError{op: "save", err: err, unavailable: true}
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return storeError{op: "save", err: err, unavailable: true}
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return storeError{op: "save", err: err, unavailable: true}
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return storeError{op: "save", err: err, unavailable: true}
	}
	return nil
}

// Clear removes the stored document. A missing file is not an error.
func (s *Store) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return storeError{op: "clear", err: err, unavailable: true}
	}
	return nil
}

// Wire layout -----------------------------------------------------------------

type cartDocument struct {
	ItemsByTab map[string][]cartItemDocument `json:"itemsByTab,omitempty"`
	// Items is the legacy flat layout written before tabs existed.
	Items           []cartItemDocument `json:"items,omitempty"`
	CouponCode      string             `json:"couponCode,omitempty"`
	ValidatedCoupon *couponDocument    `json:"validatedCoupon,omitempty"`
	DiscountAmount  int64              `json:"discountAmount,omitempty"`
}

type cartItemDocument struct {
	ID              string            `json:"id"`
	Plan            planDocument      `json:"plan"`
	Quantity        int               `json:"quantity"`
	Country         string            `json:"country,omitempty"`
	Duration        string            `json:"duration,omitempty"`
	SpeedLimit      string            `json:"speedLimit,omitempty"`
	StaticType      string            `json:"staticType,omitempty"`
	CalculatedPrice *int64            `json:"calculatedPrice,omitempty"`
	Boundary        *boundaryDocument `json:"quantityBoundary,omitempty"`
	AddedAt         time.Time         `json:"addedAt,omitempty"`
}

type planDocument struct {
	ID       string `json:"id"`
	Name     string `json:"name,omitempty"`
	Type     string `json:"type,omitempty"`
	Category string `json:"category,omitempty"`
	Price    int64  `json:"price"`
	Currency string `json:"currency,omitempty"`
	Metadata struct {
		ProxyType string `json:"proxy_type,omitempty"`
		Period    string `json:"period,omitempty"`
	} `json:"metadata"`
}

type boundaryDocument struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

type couponDocument struct {
	Code        string     `json:"code"`
	Description string     `json:"description,omitempty"`
	Percent     int        `json:"percent,omitempty"`
	PlanID      string     `json:"planId,omitempty"`
	ExpiresAt   *time.Time `json:"expiresAt,omitempty"`
}

func (d cartDocument) toDomain() domain.CartState {
	state := domain.NewCartState()

	if len(d.ItemsByTab) > 0 {
		for rawTab, items := range d.ItemsByTab {
			tab, ok := domain.ParseCartTab(rawTab)
			if !ok {
				// Unknown tab keys from newer or corrupted writers are
				// re-homed through the classifier instead of dropped.
				for _, item := range items {
					converted := item.toDomain()
					owner := domain.ClassifyPlan(converted.Plan)
					state.ItemsByTab[owner] = append(state.ItemsByTab[owner], converted)
				}
				continue
			}
			for _, item := range items {
				state.ItemsByTab[tab] = append(state.ItemsByTab[tab], item.toDomain())
			}
		}
	} else if len(d.Items) > 0 {
		for _, item := range d.Items {
			converted := item.toDomain()
			tab := domain.ClassifyPlan(converted.Plan)
			state.ItemsByTab[tab] = append(state.ItemsByTab[tab], converted)
		}
	}

	state.CouponCode = strings.TrimSpace(d.CouponCode)
	state.DiscountAmount = d.DiscountAmount
	if state.DiscountAmount < 0 {
		state.DiscountAmount = 0
	}
	if d.ValidatedCoupon != nil {
		coupon := domain.Coupon{
			Code:        strings.TrimSpace(d.ValidatedCoupon.Code),
			Description: d.ValidatedCoupon.Description,
			Percent:     d.ValidatedCoupon.Percent,
			PlanID:      d.ValidatedCoupon.PlanID,
		}
		if d.ValidatedCoupon.ExpiresAt != nil {
			expires := d.ValidatedCoupon.ExpiresAt.UTC()
			coupon.ExpiresAt = &expires
		}
		state.ValidatedCoupon = &coupon
	}
	if state.IsEmpty() {
		state.CouponCode = ""
		state.ValidatedCoupon = nil
		state.DiscountAmount = 0
	}
	return state
}

func (d cartItemDocument) toDomain() domain.CartItem {
	item := domain.CartItem{
		ID:         strings.TrimSpace(d.ID),
		Quantity:   d.Quantity,
		Country:    d.Country,
		Duration:   d.Duration,
		SpeedLimit: d.SpeedLimit,
		StaticType: d.StaticType,
		AddedAt:    d.AddedAt,
		Plan: domain.Plan{
			ID:       d.Plan.ID,
			Name:     d.Plan.Name,
			Type:     domain.PlanType(d.Plan.Type),
			Category: d.Plan.Category,
			Price:    d.Plan.Price,
			Currency: d.Plan.Currency,
			Metadata: domain.PlanMetadata{
				ProxyType: d.Plan.Metadata.ProxyType,
				Period:    d.Plan.Metadata.Period,
			},
		},
	}
	if item.Quantity < 1 {
		item.Quantity = 1
	}
	if item.ID == "" {
		item.ID = domain.CartItemID(item.Plan.ID, item.Country, domain.ItemOptions{
			Duration:   item.Duration,
			SpeedLimit: item.SpeedLimit,
			StaticType: item.StaticType,
		})
	}
	if d.CalculatedPrice != nil {
		price := *d.CalculatedPrice
		item.CalculatedPrice = &price
	}
	if d.Boundary != nil {
		item.Boundary = &domain.QuantityBoundary{Min: d.Boundary.Min, Max: d.Boundary.Max}
	}
	return item
}

func documentFromDomain(state domain.CartState) cartDocument {
	doc := cartDocument{
		ItemsByTab:     make(map[string][]cartItemDocument, len(state.ItemsByTab)),
		CouponCode:     state.CouponCode,
		DiscountAmount: state.DiscountAmount,
	}
	for _, tab := range domain.CartTabs() {
		items := state.ItemsByTab[tab]
		converted := make([]cartItemDocument, 0, len(items))
		for _, item := range items {
			converted = append(converted, documentFromItem(item))
		}
		doc.ItemsByTab[string(tab)] = converted
	}
	if state.ValidatedCoupon != nil {
		coupon := couponDocument{
			Code:        state.ValidatedCoupon.Code,
			Description: state.ValidatedCoupon.Description,
			Percent:     state.ValidatedCoupon.Percent,
			PlanID:      state.ValidatedCoupon.PlanID,
		}
		if state.ValidatedCoupon.ExpiresAt != nil {
			expires := state.ValidatedCoupon.ExpiresAt.UTC()
			coupon.ExpiresAt = &expires
		}
		doc.ValidatedCoupon = &coupon
	}
	return doc
}

func documentFromItem(item domain.CartItem) cartItemDocument {
	doc := cartItemDocument{
		ID:         item.ID,
		Quantity:   item.Quantity,
		Country:    item.Country,
		Duration:   item.Duration,
		SpeedLimit: item.SpeedLimit,
		StaticType: item.StaticType,
		AddedAt:    item.AddedAt,
	}
	doc.Plan.ID = item.Plan.ID
	doc.Plan.Name = item.Plan.Name
	doc.Plan.Type = string(item.Plan.Type)
	doc.Plan.Category = item.Plan.Category
	doc.Plan.Price = item.Plan.Price
	doc.Plan.Currency = item.Plan.Currency
	doc.Plan.Metadata.ProxyType = item.Plan.Metadata.ProxyType
	doc.Plan.Metadata.Period = item.Plan.Metadata.Period
	if item.CalculatedPrice != nil {
		price := *item.CalculatedPrice
		doc.CalculatedPrice = &price
	}
	if item.Boundary != nil {
		doc.Boundary = &boundaryDocument{Min: item.Boundary.Min, Max: item.Boundary.Max}
	}
	return doc
}

// storeError categorises filesystem failures for the service layer.
type storeError struct {
	op          string
	err         error
	notFound    bool
	unavailable bool
}

func (e storeError) Error() string       { return fmt.Sprintf("localstore %s: %v", e.op, e.err) }
func (e storeError) Unwrap() error       { return e.err }
func (e storeError) IsNotFound() bool    { return e.notFound }
func (e storeError) IsConflict() bool    { return false }
func (e storeError) IsUnavailable() bool { return e.unavailable }
