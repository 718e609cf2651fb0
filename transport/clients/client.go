// Package clients contains clients for the
// services exposed by a catalog server
package clients

import (
	"context"

	"github.com/jrife/tablets/catalog/catalogpb"
	"github.com/jrife/tablets/transport"
	"google.golang.org/grpc"
)

const servicePrefix = "/tablets.Catalog/"

var _ transport.CatalogService = (*Catalog)(nil)

// Catalog is a gRPC client of the catalog service.
// Errors returned by its methods match the catalog
// sentinel errors with errors.Is.
type Catalog struct {
	conn *grpc.ClientConn
}

// NewCatalog creates a client that uses conn
func NewCatalog(conn *grpc.ClientConn) *Catalog {
	return &Catalog{conn: conn}
}

// Dial connects to a catalog server
func Dial(ctx context.Context, address string, opts ...grpc.DialOption) (*Catalog, error) {
	conn, err := grpc.DialContext(ctx, address, opts...)

	if err != nil {
		return nil, err
	}

	return NewCatalog(conn), nil
}

// Close closes the underlying connection
func (client *Catalog) Close() error {
	return client.conn.Close()
}

func (client *Catalog) invoke(ctx context.Context, method string, request interface{}, response interface{}) error {
	return transport.FromStatus(client.conn.Invoke(ctx, servicePrefix+method, request, response))
}

// ReplaceTablet implements transport.CatalogService.ReplaceTablet
func (client *Catalog) ReplaceTablet(ctx context.Context, tabletID string) (string, error) {
	response := &catalogpb.ReplaceTabletResponse{}

	if err := client.invoke(ctx, "ReplaceTablet", &catalogpb.ReplaceTabletRequest{TabletId: tabletID}, response); err != nil {
		return "", err
	}

	return response.NewTabletId, nil
}

// ReplacementStatus implements transport.CatalogService.ReplacementStatus
func (client *Catalog) ReplacementStatus(ctx context.Context, tabletID string) (*catalogpb.ReplacementRequest, error) {
	response := &catalogpb.ReplacementStatusResponse{}

	if err := client.invoke(ctx, "ReplacementStatus", &catalogpb.ReplacementStatusRequest{TabletId: tabletID}, response); err != nil {
		return nil, err
	}

	return response.Request, nil
}

// GetTablet implements transport.CatalogService.GetTablet
func (client *Catalog) GetTablet(ctx context.Context, tabletID string) (*catalogpb.TabletRecord, error) {
	response := &catalogpb.GetTabletResponse{}

	if err := client.invoke(ctx, "GetTablet", &catalogpb.GetTabletRequest{TabletId: tabletID}, response); err != nil {
		return nil, err
	}

	return response.Tablet, nil
}

// ListTablets implements transport.CatalogService.ListTablets
func (client *Catalog) ListTablets(ctx context.Context, tableID string, includeInactive bool) ([]*catalogpb.TabletRecord, error) {
	response := &catalogpb.ListTabletsResponse{}

	if err := client.invoke(ctx, "ListTablets", &catalogpb.ListTabletsRequest{TableId: tableID, IncludeInactive: includeInactive}, response); err != nil {
		return nil, err
	}

	return response.Tablets, nil
}

// ResolveKey implements transport.CatalogService.ResolveKey
func (client *Catalog) ResolveKey(ctx context.Context, tableID string, key []byte) (*catalogpb.TabletRecord, error) {
	response := &catalogpb.ResolveKeyResponse{}

	if err := client.invoke(ctx, "ResolveKey", &catalogpb.ResolveKeyRequest{TableId: tableID, Key: key}, response); err != nil {
		return nil, err
	}

	return response.Tablet, nil
}

// CreateTable implements transport.CatalogService.CreateTable
func (client *Catalog) CreateTable(ctx context.Context, name string, splitPoints [][]byte, replicationFactor int) (*catalogpb.TableRecord, []*catalogpb.TabletRecord, error) {
	response := &catalogpb.CreateTableResponse{}
	request := &catalogpb.CreateTableRequest{Name: name, SplitPoints: splitPoints, ReplicationFactor: int32(replicationFactor)}

	if err := client.invoke(ctx, "CreateTable", request, response); err != nil {
		return nil, nil, err
	}

	return response.Table, response.Tablets, nil
}

// ListTables implements transport.CatalogService.ListTables
func (client *Catalog) ListTables(ctx context.Context) ([]*catalogpb.TableRecord, error) {
	response := &catalogpb.ListTablesResponse{}

	if err := client.invoke(ctx, "ListTables", &catalogpb.ListTablesRequest{}, response); err != nil {
		return nil, err
	}

	return response.Tables, nil
}

// Heartbeat implements transport.CatalogService.Heartbeat
func (client *Catalog) Heartbeat(ctx context.Context, request *catalogpb.HeartbeatRequest) (*catalogpb.HeartbeatResponse, error) {
	response := &catalogpb.HeartbeatResponse{}

	if err := client.invoke(ctx, "Heartbeat", request, response); err != nil {
		return nil, err
	}

	return response, nil
}
