// Package firestore stores remote cart snapshots in Cloud Firestore.
package firestore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"cloud.google.com/go/firestore"
	"go.uber.org/zap"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/Ithachiuchiha/e-commers-site/internal/platform/config"
	"github.com/Ithachiuchiha/e-commers-site/internal/platform/observability"
)

const (
	connectTimeout     = 10 * time.Second
	envEmulatorHost    = "FIRESTORE_EMULATOR_HOST"
	envGoogleProjectID = "GOOGLE_CLOUD_PROJECT"
)

var (
	// ErrProviderClosed is returned by Client after Close.
	ErrProviderClosed = errors.New("firestore: provider is closed")

	errProjectRequired = errors.New("firestore: project id is required")
)

// Provider opens the snapshot database on first use and shares the client.
type Provider struct {
	cfg    config.FirestoreConfig
	logger *zap.Logger

	mu     sync.Mutex
	client *firestore.Client
	closed bool
}

// NewProvider returns a Provider for cfg. No connection is made until Client is called.
func NewProvider(cfg config.FirestoreConfig, logger *zap.Logger) *Provider {
	return &Provider{cfg: cfg, logger: observability.OrNop(logger).Named("firestore")}
}

// Client returns the shared client. A failed connect leaves the Provider
// empty so the next call tries again.
func (p *Provider) Client(ctx context.Context) (*firestore.Client, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch {
	case p.closed:
		return nil, ErrProviderClosed
	case p.client != nil:
		return p.client, nil
	}

	client, err := p.connect(ctx)
	if err != nil {
		return nil, err
	}
	p.client = client
	return client, nil
}

func (p *Provider) connect(ctx context.Context) (*firestore.Client, error) {
	project := firstNonEmpty(p.cfg.ProjectID, os.Getenv(envGoogleProjectID))
	if project == "" {
		return nil, errProjectRequired
	}
	database := firstNonEmpty(p.cfg.DatabaseID, firestore.DefaultDatabaseID)

	var opts []option.ClientOption
	emulator := firstNonEmpty(p.cfg.EmulatorHost, os.Getenv(envEmulatorHost))
	if emulator != "" {
		opts = append(opts,
			option.WithEndpoint(emulator),
			option.WithoutAuthentication(),
			option.WithGRPCDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
		)
	}

	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	client, err := firestore.NewClientWithDatabase(ctx, project, database, opts...)
	if err != nil {
		return nil, fmt.Errorf("firestore: connect to %s/%s: %w", project, database, err)
	}
	p.logger.Debug("snapshot database connected",
		zap.String("project", project),
		zap.String("database", database),
		zap.Bool("emulator", emulator != ""),
	)
	return client, nil
}

// Close releases the client. Client fails with ErrProviderClosed afterwards.
func (p *Provider) Close() error {
	if p == nil {
		return nil
	}
	p.mu.Lock()
	client := p.client
	p.client, p.closed = nil, true
	p.mu.Unlock()
	if client == nil {
		return nil
	}
	return client.Close()
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
