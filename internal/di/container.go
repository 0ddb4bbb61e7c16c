package di

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	firestoreapi "cloud.google.com/go/firestore"
	"go.uber.org/zap"

	"github.com/netproxy/storefront/internal/clients"
	"github.com/netproxy/storefront/internal/domain"
	"github.com/netproxy/storefront/internal/handlers"
	"github.com/netproxy/storefront/internal/payments"
	"github.com/netproxy/storefront/internal/platform/auth"
	"github.com/netproxy/storefront/internal/platform/config"
	platformfirestore "github.com/netproxy/storefront/internal/platform/firestore"
	"github.com/netproxy/storefront/internal/platform/idempotency"
	"github.com/netproxy/storefront/internal/platform/observability"
	"github.com/netproxy/storefront/internal/repositories"
	"github.com/netproxy/storefront/internal/repositories/firestorerepo"
	"github.com/netproxy/storefront/internal/repositories/localstore"
	"github.com/netproxy/storefront/internal/services"
)

// cartProfileID names the single cart document used by the firestore backend.
// Per-user partitioning happens inside the cart state, not across documents.
const cartProfileID = "default"

// Services bundles the service layer the handlers are wired against.
type Services struct {
	Cart       *services.CartStore
	Catalog    *services.CatalogService
	Calculator services.UnitPricer
	Flows      *services.SelectionManager
	Coupons    *services.CouponService
	Checkout   *services.CheckoutService
}

// Container wires configuration, storage, upstream clients, services, and the
// HTTP router for runtime use.
type Container struct {
	Config   config.Config
	Logger   *zap.Logger
	Services Services
	Router   http.Handler

	repo      repositories.CartRepository
	firestore *firestoreapi.Client
}

// NewContainer assembles the full object graph. The context bounds storage
// dialing and the initial cart load; it is not retained.
func NewContainer(ctx context.Context, cfg config.Config, logger *zap.Logger) (*Container, error) {
	if logger == nil {
		return nil, errors.New("di: logger is required")
	}

	c := &Container{Config: cfg, Logger: logger}

	if err := c.buildRepository(ctx, cfg); err != nil {
		c.Close()
		return nil, err
	}
	if err := c.buildServices(ctx, cfg); err != nil {
		c.Close()
		return nil, err
	}
	if err := c.buildRouter(cfg); err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}

func (c *Container) buildRepository(ctx context.Context, cfg config.Config) error {
	switch cfg.Storage.Backend {
	case config.StorageBackendFile:
		store, err := localstore.New(cfg.Storage.DataDir)
		if err != nil {
			return fmt.Errorf("build local store: %w", err)
		}
		c.repo = store
	case config.StorageBackendFirestore:
		client, err := platformfirestore.Dial(ctx, cfg.Firestore)
		if err != nil {
			return fmt.Errorf("dial firestore: %w", err)
		}
		c.firestore = client
		repo, err := firestorerepo.NewCartRepository(client, cfg.Firestore.CartsCollection, cartProfileID)
		if err != nil {
			return fmt.Errorf("build firestore repository: %w", err)
		}
		c.repo = repo
	default:
		return fmt.Errorf("di: unknown storage backend %q", cfg.Storage.Backend)
	}
	return nil
}

func (c *Container) buildServices(ctx context.Context, cfg config.Config) error {
	events := services.EventLogger(observability.EventLogger(c.Logger))

	cart, err := services.NewCartStore(ctx, services.CartStoreDeps{
		Repository: c.repo,
		Clock:      time.Now,
		Logger:     events,
	})
	if err != nil {
		return fmt.Errorf("build cart store: %w", err)
	}

	catalogClient, err := clients.NewCatalogClient(clients.Config{
		BaseURL:  cfg.Catalog.BaseURL,
		APIToken: cfg.Catalog.APIToken,
		Timeout:  cfg.Catalog.Timeout,
	})
	if err != nil {
		return fmt.Errorf("build catalog client: %w", err)
	}
	catalog, err := services.NewCatalogService(services.CatalogServiceDeps{
		Source:   catalogClient,
		Clock:    time.Now,
		CacheTTL: cfg.Pricing.CatalogCacheTTL,
		Logger:   events,
	})
	if err != nil {
		return fmt.Errorf("build catalog service: %w", err)
	}

	var calculator services.UnitPricer
	if cfg.Features.EnableDynamicPricing {
		pricingClient, err := clients.NewPricingClient(clients.Config{
			BaseURL:  cfg.Pricing.Upstream.BaseURL,
			APIToken: cfg.Pricing.Upstream.APIToken,
			Timeout:  cfg.Pricing.Upstream.Timeout,
		})
		if err != nil {
			return fmt.Errorf("build pricing client: %w", err)
		}
		calculator, err = services.NewPriceCalculator(services.PriceCalculatorDeps{
			Quotes:  pricingClient,
			Timeout: cfg.Pricing.QuoteTimeout,
			Logger:  events,
		})
		if err != nil {
			return fmt.Errorf("build price calculator: %w", err)
		}
	} else {
		calculator = tierPricer{}
	}

	flows, err := services.NewSelectionManager(services.SelectionManagerDeps{
		Calculator: calculator,
		Cart:       cart,
		Clock:      time.Now,
		FlowTTL:    cfg.Selection.FlowTTL,
		Logger:     events,
	})
	if err != nil {
		return fmt.Errorf("build selection manager: %w", err)
	}

	var coupons *services.CouponService
	if cfg.Features.EnableCoupons {
		couponClient, err := clients.NewCouponClient(clients.Config{
			BaseURL:  cfg.Coupons.BaseURL,
			APIToken: cfg.Coupons.APIToken,
			Timeout:  cfg.Coupons.Timeout,
		})
		if err != nil {
			return fmt.Errorf("build coupon client: %w", err)
		}
		coupons, err = services.NewCouponService(services.CouponServiceDeps{
			Coupons: couponClient,
			Cart:    cart,
			Clock:   time.Now,
			Logger:  events,
		})
		if err != nil {
			return fmt.Errorf("build coupon service: %w", err)
		}
	}

	var checkout *services.CheckoutService
	if strings.TrimSpace(cfg.Stripe.APIKey) != "" {
		stripeProvider, err := payments.NewStripeProvider(payments.StripeProviderConfig{
			APIKey:    cfg.Stripe.APIKey,
			AccountID: cfg.Stripe.AccountID,
			Logger:    payments.Logger(events),
			Clock:     time.Now,
		})
		if err != nil {
			return fmt.Errorf("build stripe provider: %w", err)
		}
		checkout, err = services.NewCheckoutService(services.CheckoutServiceDeps{
			Cart:     cart,
			Payments: paymentGateway{provider: stripeProvider},
			Clock:    time.Now,
			Logger:   events,
			Currency: cfg.Checkout.Currency,
			Sessions: idempotency.NewReplayStore[services.CheckoutSession](cfg.Checkout.SessionTTL, time.Now),
		})
		if err != nil {
			return fmt.Errorf("build checkout service: %w", err)
		}
	} else {
		c.Logger.Warn("stripe api key not configured, checkout endpoints disabled")
	}

	c.Services = Services{
		Cart:       cart,
		Catalog:    catalog,
		Calculator: calculator,
		Flows:      flows,
		Coupons:    coupons,
		Checkout:   checkout,
	}
	return nil
}

func (c *Container) buildRouter(cfg config.Config) error {
	verifier, err := auth.NewSessionVerifier(cfg.Auth.SessionSecret, time.Now)
	if err != nil {
		return fmt.Errorf("build session verifier: %w", err)
	}

	cartHandlers := handlers.NewCartHandlers(c.Services.Cart, c.Services.Coupons, c.Services.Catalog, cfg.Checkout.Currency)
	selectionHandlers := handlers.NewSelectionHandlers(c.Services.Flows, c.Services.Catalog, cfg.Checkout.Currency)
	planHandlers := handlers.NewPlanHandlers(c.Services.Catalog)

	health := handlers.NewHealthHandlers(
		handlers.WithReadinessCheck("storage", func(ctx context.Context) error {
			_, _, err := c.repo.Load(ctx)
			return err
		}),
		handlers.WithReadinessCheck("catalog", func(ctx context.Context) error {
			_, err := c.Services.Catalog.Plans(ctx)
			return err
		}),
	)

	opts := []handlers.Option{
		handlers.WithMiddlewares(
			observability.InjectLoggerMiddleware(c.Logger),
			observability.TraceMiddleware(cfg.Log.ProjectID),
			observability.RequestLoggerMiddleware(cfg.Log.ProjectID),
			observability.RecoveryMiddleware(c.Logger),
			verifier.Middleware(),
			handlers.IdentitySyncMiddleware(c.Services.Cart),
		),
		handlers.WithHealthHandlers(health),
		handlers.WithCartRoutes(cartHandlers.Routes),
		handlers.WithSelectionRoutes(selectionHandlers.Routes),
		handlers.WithPlanRoutes(planHandlers.Routes),
	}
	if c.Services.Checkout != nil {
		opts = append(opts, handlers.WithCheckoutRoutes(handlers.NewCheckoutHandlers(c.Services.Checkout).Routes))
	}

	c.Router = handlers.NewRouter(opts...)
	return nil
}

// Close releases resources held by the container.
func (c *Container) Close() error {
	if c.firestore == nil {
		return nil
	}
	err := c.firestore.Close()
	c.firestore = nil
	return err
}

// tierPricer prices every request from the static quantity tier table. It
// stands in for the remote quote API when dynamic pricing is switched off.
type tierPricer struct{}

func (tierPricer) UnitPrice(_ context.Context, _, _ string, quantity int) int64 {
	return domain.PriceForQuantity(quantity)
}

// paymentGateway adapts the Stripe provider to the checkout service's
// payment contract.
type paymentGateway struct {
	provider *payments.StripeProvider
}

func (g paymentGateway) CreateSession(ctx context.Context, req services.PaymentSessionRequest) (services.PaymentSession, error) {
	lines := make([]payments.LineItem, 0, len(req.Lines))
	for _, line := range req.Lines {
		lines = append(lines, payments.LineItem{Name: line.Name, Amount: line.Amount, Quantity: line.Quantity})
	}
	sess, err := g.provider.CreateCheckoutSession(ctx, payments.CheckoutSessionRequest{
		Currency:       req.Currency,
		Lines:          lines,
		SuccessURL:     req.SuccessURL,
		CancelURL:      req.CancelURL,
		IdempotencyKey: req.IdempotencyKey,
		Metadata:       req.Metadata,
	})
	if err != nil {
		return services.PaymentSession{}, err
	}
	return services.PaymentSession{ID: sess.ID, RedirectURL: sess.RedirectURL}, nil
}
