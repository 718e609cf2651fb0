package client_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jrife/tablets/catalog"
	"github.com/jrife/tablets/catalog/catalogpb"
	"github.com/jrife/tablets/client"
	"github.com/jrife/tablets/tserver"
)

type fakeResolver struct {
	mu       sync.Mutex
	location *catalogpb.TabletRecord
	calls    int
}

func (resolver *fakeResolver) ResolveKey(ctx context.Context, tableID string, key []byte) (*catalogpb.TabletRecord, error) {
	resolver.mu.Lock()
	defer resolver.mu.Unlock()

	resolver.calls++

	if resolver.location == nil {
		return nil, catalog.ErrNotFound
	}

	return resolver.location.Clone(), nil
}

func (resolver *fakeResolver) set(location *catalogpb.TabletRecord) {
	resolver.mu.Lock()
	defer resolver.mu.Unlock()

	resolver.location = location
}

func location(id string, server string) *catalogpb.TabletRecord {
	return &catalogpb.TabletRecord{
		TabletId:       id,
		TableId:        "table",
		PartitionRange: &catalogpb.PartitionRange{},
		State:          catalogpb.RUNNING,
		ReplicaSet:     []string{server},
	}
}

func newClient(resolver client.Resolver, servers ...*tserver.Server) *client.Client {
	byID := map[string]*tserver.Server{}

	for _, server := range servers {
		byID[server.ID()] = server
	}

	return client.New(client.Config{
		Catalog: resolver,
		Dial: func(serverID string) (client.TabletServer, error) {
			server, ok := byID[serverID]

			if !ok {
				return nil, errors.New("unknown server")
			}

			return server, nil
		},
		MaxAttempts:   3,
		RetryInterval: time.Millisecond,
	})
}

func TestWriteFollowsReplacement(t *testing.T) {
	ctx := context.Background()
	server := tserver.New("ts-1", nil)
	resolver := &fakeResolver{location: location("a", "ts-1")}
	c := newClient(resolver, server)

	if err := server.CreateTablet(location("a", "ts-1")); err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	if err := c.Write(ctx, "table", []byte("k1"), []byte("v")); err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	// The tablet is replaced. The client still caches "a".
	if err := server.DeleteTablet("a"); err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	if err := server.CreateTablet(location("a2", "ts-1")); err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	resolver.set(location("a2", "ts-1"))

	if err := c.Write(ctx, "table", []byte("k2"), []byte("v")); err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	if resolver.calls != 2 {
		t.Fatalf("expected the key to be resolved twice, got %d", resolver.calls)
	}

	if cached := c.Cache().Lookup("table", []byte("k3")); cached == nil || cached.TabletId != "a2" {
		t.Fatalf("expected a2 to be cached, got %v", cached)
	}

	value, err := c.Read(ctx, "table", []byte("k2"))

	if err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	if string(value) != "v" {
		t.Fatalf("expected value v, got %q", value)
	}

	count, err := server.Count("a2")

	if err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	if count != 1 {
		t.Fatalf("expected 1 row in a2, got %d", count)
	}
}

func TestWriteErrors(t *testing.T) {
	ctx := context.Background()
	server := tserver.New("ts-1", nil)

	// The catalog points at a tablet the server never creates
	resolver := &fakeResolver{location: location("a", "ts-1")}
	c := newClient(resolver, server)

	if err := c.Write(ctx, "table", []byte("k"), []byte("v")); !errors.Is(err, client.ErrRetriesExhausted) {
		t.Fatalf("expected err to be ErrRetriesExhausted, got %#v", err)
	}

	if resolver.calls != 3 {
		t.Fatalf("expected one resolution per attempt, got %d", resolver.calls)
	}

	resolver.set(nil)

	if err := c.Write(ctx, "table", []byte("k"), []byte("v")); !errors.Is(err, catalog.ErrNotFound) {
		t.Fatalf("expected err to be ErrNotFound, got %#v", err)
	}

	resolver.set(location("a", "ts-9"))

	if err := c.Write(ctx, "table", []byte("k"), []byte("v")); err == nil {
		t.Fatalf("expected dialing an unknown server to fail")
	}

	canceled, cancel := context.WithCancel(ctx)
	cancel()

	if err := c.Write(canceled, "table", []byte("k"), []byte("v")); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected err to be context.Canceled, got %#v", err)
	}
}
