package transport

import (
	"context"

	"github.com/jrife/tablets/catalog/catalogpb"
)

// CatalogService describes the operations a catalog
// exposes to its callers. It is passed to each
// frontend and implemented by each client so that
// callers can't tell a local catalog from a remote one.
type CatalogService interface {
	// ReplaceTablet replaces a RUNNING tablet with a new
	// empty tablet over the same partition range and returns
	// the new tablet's id
	ReplaceTablet(ctx context.Context, tabletID string) (string, error)
	// ReplacementStatus returns the outcome of the last
	// replacement request for a tablet
	ReplacementStatus(ctx context.Context, tabletID string) (*catalogpb.ReplacementRequest, error)
	GetTablet(ctx context.Context, tabletID string) (*catalogpb.TabletRecord, error)
	ListTablets(ctx context.Context, tableID string, includeInactive bool) ([]*catalogpb.TabletRecord, error)
	// ResolveKey returns the live tablet whose
	// partition range contains key
	ResolveKey(ctx context.Context, tableID string, key []byte) (*catalogpb.TabletRecord, error)
	CreateTable(ctx context.Context, name string, splitPoints [][]byte, replicationFactor int) (*catalogpb.TableRecord, []*catalogpb.TabletRecord, error)
	ListTables(ctx context.Context) ([]*catalogpb.TableRecord, error)
	// Heartbeat is called by tablet servers
	Heartbeat(ctx context.Context, request *catalogpb.HeartbeatRequest) (*catalogpb.HeartbeatResponse, error)
}
