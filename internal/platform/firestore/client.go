// Package firestore dials the shared Firestore client used by the cart
// repository when the firestore storage backend is selected.
package firestore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/netproxy/storefront/internal/platform/config"
)

const (
	defaultDialTimeout = 10 * time.Second
	envEmulatorHost    = "FIRESTORE_EMULATOR_HOST"
	envGoogleProjectID = "GOOGLE_CLOUD_PROJECT"
)

// DialOption customises client creation.
type DialOption func(*dialSettings)

type dialSettings struct {
	timeout    time.Duration
	clientOpts []option.ClientOption
}

// WithDialTimeout overrides the timeout used when creating the client.
func WithDialTimeout(timeout time.Duration) DialOption {
	return func(s *dialSettings) {
		if timeout > 0 {
			s.timeout = timeout
		}
	}
}

// WithClientOptions appends client options applied during initialisation.
func WithClientOptions(opts ...option.ClientOption) DialOption {
	return func(s *dialSettings) {
		s.clientOpts = append(s.clientOpts, opts...)
	}
}

// Dial creates a Firestore client for the configured project. When an
// emulator host is configured the client connects to it without credentials.
func Dial(ctx context.Context, cfg config.FirestoreConfig, opts ...DialOption) (*firestore.Client, error) {
	if ctx == nil {
		return nil, errors.New("firestore: context is required")
	}

	settings := dialSettings{timeout: defaultDialTimeout}
	for _, opt := range opts {
		if opt != nil {
			opt(&settings)
		}
	}

	projectID := strings.TrimSpace(cfg.ProjectID)
	if projectID == "" {
		projectID = strings.TrimSpace(os.Getenv(envGoogleProjectID))
	}
	if projectID == "" {
		return nil, errors.New("firestore: project id is required")
	}

	dialCtx, cancel := context.WithTimeout(ctx, settings.timeout)
	defer cancel()

	clientOpts := append([]option.ClientOption(nil), settings.clientOpts...)
	if host := emulatorHost(cfg); host != "" {
		if os.Getenv(envEmulatorHost) == "" {
			_ = os.Setenv(envEmulatorHost, host)
		}
		clientOpts = append(clientOpts,
			option.WithoutAuthentication(),
			option.WithEndpoint(host),
			option.WithGRPCDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
		)
	}

	client, err := firestore.NewClient(dialCtx, projectID, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("firestore: create client: %w", err)
	}
	return client, nil
}

func emulatorHost(cfg config.FirestoreConfig) string {
	if trimmed := strings.TrimSpace(cfg.EmulatorHost); trimmed != "" {
		return trimmed
	}
	return strings.TrimSpace(os.Getenv(envEmulatorHost))
}
