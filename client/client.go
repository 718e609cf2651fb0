// Package client writes rows to tablets. It caches tablet locations
// and follows replacements: when a tablet server says a tablet is gone
// the client evicts the stale location, resolves the row key through
// the catalog again and retries against the tablet that owns the key now.
package client

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jrife/tablets/catalog/catalogpb"
	"github.com/jrife/tablets/client/loccache"
	"github.com/jrife/tablets/tserver"
	"github.com/jrife/tablets/utils/log"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	// DefaultMaxAttempts bounds the attempts of one operation
	DefaultMaxAttempts = 50
	// DefaultRetryInterval is the minimum time between attempts
	DefaultRetryInterval = 20 * time.Millisecond
)

// ErrRetriesExhausted is returned when an operation kept hitting
// stale locations until it ran out of attempts
var ErrRetriesExhausted = errors.New("ran out of attempts")

// Resolver maps a row key to the live tablet that owns it
type Resolver interface {
	ResolveKey(ctx context.Context, tableID string, key []byte) (*catalogpb.TabletRecord, error)
}

// TabletServer is the data path of a tablet server
type TabletServer interface {
	Write(ctx context.Context, tabletID string, key []byte, value []byte) error
	Read(ctx context.Context, tabletID string, key []byte) ([]byte, error)
}

// Dialer returns a connection to a tablet server
type Dialer func(serverID string) (TabletServer, error)

// Config configures a client
type Config struct {
	Catalog       Resolver
	Dial          Dialer
	MaxAttempts   int
	RetryInterval time.Duration
	Logger        *zap.Logger
}

// Client is safe for concurrent use
type Client struct {
	catalog       Resolver
	dial          Dialer
	cache         *loccache.Cache
	maxAttempts   int
	retryInterval time.Duration
	logger        *zap.Logger
}

// New creates a client
func New(config Config) *Client {
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = DefaultMaxAttempts
	}

	if config.RetryInterval <= 0 {
		config.RetryInterval = DefaultRetryInterval
	}

	return &Client{
		catalog:       config.Catalog,
		dial:          config.Dial,
		cache:         loccache.New(),
		maxAttempts:   config.MaxAttempts,
		retryInterval: config.RetryInterval,
		logger:        log.OrNop(config.Logger).With(zap.String("component", "client")),
	}
}

// Cache returns the client's location cache
func (client *Client) Cache() *loccache.Cache {
	return client.cache
}

// Write writes a row
func (client *Client) Write(ctx context.Context, tableID string, key []byte, value []byte) error {
	return client.do(ctx, tableID, key, func(server TabletServer, tabletID string) error {
		return server.Write(ctx, tabletID, key, value)
	})
}

// Read reads a row. It returns nil if the row does not exist.
func (client *Client) Read(ctx context.Context, tableID string, key []byte) ([]byte, error) {
	var value []byte

	err := client.do(ctx, tableID, key, func(server TabletServer, tabletID string) error {
		var err error

		value, err = server.Read(ctx, tabletID, key)

		return err
	})

	return value, err
}

func (client *Client) do(ctx context.Context, tableID string, key []byte, fn func(server TabletServer, tabletID string) error) error {
	limiter := rate.NewLimiter(rate.Every(client.retryInterval), 1)
	var lastErr error

	for attempt := 1; attempt <= client.maxAttempts; attempt++ {
		if err := limiter.Wait(ctx); err != nil {
			return err
		}

		location, err := client.locate(ctx, tableID, key)

		if err != nil {
			return err
		}

		server, err := client.dial(location.Leader())

		if err != nil {
			return fmt.Errorf("could not dial tablet server %s: %w", location.Leader(), err)
		}

		err = fn(server, location.TabletId)

		if err == nil || !IsStaleLocation(err) {
			return err
		}

		client.logger.Debug("evicting stale tablet location", zap.String("tablet_id", location.TabletId), zap.Int("attempt", attempt), zap.Error(err))
		client.cache.Evict(tableID, location.TabletId)
		lastErr = err
	}

	return fmt.Errorf("%w: %d attempts, last error: %s", ErrRetriesExhausted, client.maxAttempts, lastErr)
}

func (client *Client) locate(ctx context.Context, tableID string, key []byte) (*catalogpb.TabletRecord, error) {
	if location := client.cache.Lookup(tableID, key); location != nil {
		return location, nil
	}

	location, err := client.catalog.ResolveKey(ctx, tableID, key)

	if err != nil {
		return nil, fmt.Errorf("could not resolve key: %w", err)
	}

	client.cache.Update(location)

	return location, nil
}

// IsStaleLocation returns true for tablet server errors meaning
// the client addressed a tablet that no longer owns the key
func IsStaleLocation(err error) bool {
	return errors.Is(err, tserver.ErrTabletNotFound) || errors.Is(err, tserver.ErrKeyOutOfRange)
}
