// Package firestorerepo persists carts in Firestore for deployments that keep
// storefront state server-side instead of on the local filesystem.
package firestorerepo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	domain "github.com/netproxy/storefront/internal/domain"
)

const defaultCollection = "carts"

// CartRepository stores one cart document per storefront profile. The profile
// identifies the device/session namespace, not the authenticated user: carts
// are invalidated on identity changes by the store, never shared through the
// repository.
type CartRepository struct {
	client     *firestore.Client
	collection string
	profileID  string
}

// NewCartRepository binds a repository to the given profile namespace. An
// empty collection name falls back to "carts".
func NewCartRepository(client *firestore.Client, collection, profileID string) (*CartRepository, error) {
	if client == nil {
		return nil, errors.New("firestorerepo: client is required")
	}
	trimmedProfile := strings.TrimSpace(profileID)
	if trimmedProfile == "" {
		return nil, errors.New("firestorerepo: profile id is required")
	}
	trimmedCollection := strings.TrimSpace(collection)
	if trimmedCollection == "" {
		trimmedCollection = defaultCollection
	}
	return &CartRepository{client: client, collection: trimmedCollection, profileID: trimmedProfile}, nil
}

// Load reads the cart document. A missing document yields an empty state.
func (r *CartRepository) Load(ctx context.Context) (domain.CartState, bool, error) {
	snap, err := r.doc().Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return domain.NewCartState(), false, nil
		}
		return domain.CartState{}, false, wrapError("load", err)
	}

	var doc cartDocument
	if err := snap.DataTo(&doc); err != nil {
		return domain.CartState{}, false, wrapError("load", err)
	}
	return doc.toDomain(), true, nil
}

// Save replaces the cart document wholesale.
func (r *CartRepository) Save(ctx context.Context, state domain.CartState) error {
	if _, err := r.doc().Set(ctx, documentFromDomain(state)); err != nil {
		return wrapError("save", err)
	}
	return nil
}

// Clear deletes the cart document. Deleting a missing document is a no-op.
func (r *CartRepository) Clear(ctx context.Context) error {
	if _, err := r.doc().Delete(ctx); err != nil && status.Code(err) != codes.NotFound {
		return wrapError("clear", err)
	}
	return nil
}

func (r *CartRepository) doc() *firestore.DocumentRef {
	return r.client.Collection(r.collection).Doc(r.profileID)
}

// Document layout -------------------------------------------------------------

type cartDocument struct {
	ItemsByTab      map[string][]cartItemDocument `firestore:"itemsByTab"`
	CouponCode      string                        `firestore:"couponCode,omitempty"`
	ValidatedCoupon *couponDocument               `firestore:"validatedCoupon,omitempty"`
	DiscountAmount  int64                         `firestore:"discountAmount"`
	UpdatedAt       time.Time                     `firestore:"updatedAt,serverTimestamp"`
}

type cartItemDocument struct {
	ID              string             `firestore:"id"`
	Plan            planDocument       `firestore:"plan"`
	Quantity        int                `firestore:"quantity"`
	Country         string             `firestore:"country,omitempty"`
	Duration        string             `firestore:"duration,omitempty"`
	SpeedLimit      string             `firestore:"speedLimit,omitempty"`
	StaticType      string             `firestore:"staticType,omitempty"`
	CalculatedPrice *int64             `firestore:"calculatedPrice,omitempty"`
	BoundaryMin     int                `firestore:"boundaryMin,omitempty"`
	BoundaryMax     int                `firestore:"boundaryMax,omitempty"`
	HasBoundary     bool               `firestore:"hasBoundary,omitempty"`
	AddedAt         time.Time          `firestore:"addedAt,omitempty"`
}

type planDocument struct {
	ID        string `firestore:"id"`
	Name      string `firestore:"name,omitempty"`
	Type      string `firestore:"type,omitempty"`
	Category  string `firestore:"category,omitempty"`
	Price     int64  `firestore:"price"`
	Currency  string `firestore:"currency,omitempty"`
	ProxyType string `firestore:"proxyType,omitempty"`
	Period    string `firestore:"period,omitempty"`
}

type couponDocument struct {
	Code        string     `firestore:"code"`
	Description string     `firestore:"description,omitempty"`
	Percent     int        `firestore:"percent,omitempty"`
	PlanID      string     `firestore:"planId,omitempty"`
	ExpiresAt   *time.Time `firestore:"expiresAt,omitempty"`
}

func (d cartDocument) toDomain() domain.CartState {
	state := domain.NewCartState()
	for rawTab, items := range d.ItemsByTab {
		tab, ok := domain.ParseCartTab(rawTab)
		for _, item := range items {
			converted := item.toDomain()
			owner := tab
			if !ok {
				owner = domain.ClassifyPlan(converted.Plan)
			}
			state.ItemsByTab[owner] = append(state.ItemsByTab[owner], converted)
		}
	}
	state.CouponCode = strings.TrimSpace(d.CouponCode)
	state.DiscountAmount = d.DiscountAmount
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
			Metadata: domain.PlanMetadata{ProxyType: d.Plan.ProxyType, Period: d.Plan.Period},
		},
	}
	if item.Quantity < 1 {
		item.Quantity = 1
	}
	if d.CalculatedPrice != nil {
		price := *d.CalculatedPrice
		item.CalculatedPrice = &price
	}
	if d.HasBoundary {
		item.Boundary = &domain.QuantityBoundary{Min: d.BoundaryMin, Max: d.BoundaryMax}
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
		Plan: planDocument{
			ID:        item.Plan.ID,
			Name:      item.Plan.Name,
			Type:      string(item.Plan.Type),
			Category:  item.Plan.Category,
			Price:     item.Plan.Price,
			Currency:  item.Plan.Currency,
			ProxyType: item.Plan.Metadata.ProxyType,
			Period:    item.Plan.Metadata.Period,
		},
	}
	if item.CalculatedPrice != nil {
		price := *item.CalculatedPrice
		doc.CalculatedPrice = &price
	}
	if item.Boundary != nil {
		doc.HasBoundary = true
		doc.BoundaryMin = item.Boundary.Min
		doc.BoundaryMax = item.Boundary.Max
	}
	return doc
}

// Error categorisation --------------------------------------------------------

// Error implements repositories.RepositoryError for Firestore failures.
type Error struct {
	op          string
	err         error
	notFound    bool
	conflict    bool
	unavailable bool
}

func (e *Error) Error() string       { return fmt.Sprintf("firestorerepo %s: %v", e.op, e.err) }
func (e *Error) Unwrap() error       { return e.err }
func (e *Error) IsNotFound() bool    { return e != nil && e.notFound }
func (e *Error) IsConflict() bool    { return e != nil && e.conflict }
func (e *Error) IsUnavailable() bool { return e != nil && e.unavailable }

func wrapError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	wrapped := &Error{op: op, err: err}
	switch status.Code(err) {
	case codes.NotFound:
		wrapped.notFound = true
	case codes.AlreadyExists, codes.FailedPrecondition, codes.Aborted:
		wrapped.conflict = true
	case codes.Unavailable, codes.ResourceExhausted, codes.Internal, codes.DeadlineExceeded:
		wrapped.unavailable = true
	}
	return wrapped
}
