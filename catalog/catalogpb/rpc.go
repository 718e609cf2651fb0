package catalogpb

import (
	"github.com/gogo/protobuf/proto"
)

type ReplaceTabletRequest struct {
	TabletId string `protobuf:"bytes,1,opt,name=tablet_id,json=tabletId,proto3" json:"tablet_id,omitempty"`
}

func (m *ReplaceTabletRequest) Reset()         { *m = ReplaceTabletRequest{} }
func (m *ReplaceTabletRequest) String() string { return proto.CompactTextString(m) }
func (*ReplaceTabletRequest) ProtoMessage()    {}

type ReplaceTabletResponse struct {
	NewTabletId string `protobuf:"bytes,1,opt,name=new_tablet_id,json=newTabletId,proto3" json:"new_tablet_id,omitempty"`
}

func (m *ReplaceTabletResponse) Reset()         { *m = ReplaceTabletResponse{} }
func (m *ReplaceTabletResponse) String() string { return proto.CompactTextString(m) }
func (*ReplaceTabletResponse) ProtoMessage()    {}

type GetTabletRequest struct {
	TabletId string `protobuf:"bytes,1,opt,name=tablet_id,json=tabletId,proto3" json:"tablet_id,omitempty"`
}

func (m *GetTabletRequest) Reset()         { *m = GetTabletRequest{} }
func (m *GetTabletRequest) String() string { return proto.CompactTextString(m) }
func (*GetTabletRequest) ProtoMessage()    {}

type GetTabletResponse struct {
	Tablet *TabletRecord `protobuf:"bytes,1,opt,name=tablet,proto3" json:"tablet,omitempty"`
}

func (m *GetTabletResponse) Reset()         { *m = GetTabletResponse{} }
func (m *GetTabletResponse) String() string { return proto.CompactTextString(m) }
func (*GetTabletResponse) ProtoMessage()    {}

type ListTabletsRequest struct {
	TableId string `protobuf:"bytes,1,opt,name=table_id,json=tableId,proto3" json:"table_id,omitempty"`
	// IncludeInactive includes REPLACED and DELETED tablets
	IncludeInactive bool `protobuf:"varint,2,opt,name=include_inactive,json=includeInactive,proto3" json:"include_inactive,omitempty"`
}

func (m *ListTabletsRequest) Reset()         { *m = ListTabletsRequest{} }
func (m *ListTabletsRequest) String() string { return proto.CompactTextString(m) }
func (*ListTabletsRequest) ProtoMessage()    {}

type ListTabletsResponse struct {
	Tablets []*TabletRecord `protobuf:"bytes,1,rep,name=tablets,proto3" json:"tablets,omitempty"`
}

func (m *ListTabletsResponse) Reset()         { *m = ListTabletsResponse{} }
func (m *ListTabletsResponse) String() string { return proto.CompactTextString(m) }
func (*ListTabletsResponse) ProtoMessage()    {}

type ResolveKeyRequest struct {
	TableId string `protobuf:"bytes,1,opt,name=table_id,json=tableId,proto3" json:"table_id,omitempty"`
	Key     []byte `protobuf:"bytes,2,opt,name=key,proto3" json:"key,omitempty"`
}

func (m *ResolveKeyRequest) Reset()         { *m = ResolveKeyRequest{} }
func (m *ResolveKeyRequest) String() string { return proto.CompactTextString(m) }
func (*ResolveKeyRequest) ProtoMessage()    {}

type ResolveKeyResponse struct {
	Tablet *TabletRecord `protobuf:"bytes,1,opt,name=tablet,proto3" json:"tablet,omitempty"`
}

func (m *ResolveKeyResponse) Reset()         { *m = ResolveKeyResponse{} }
func (m *ResolveKeyResponse) String() string { return proto.CompactTextString(m) }
func (*ResolveKeyResponse) ProtoMessage()    {}

type CreateTableRequest struct {
	Name string `protobuf:"bytes,1,opt,name=name,proto3" json:"name,omitempty"`
	// SplitPoints divide the key space into len(SplitPoints)+1 tablets
	SplitPoints       [][]byte `protobuf:"bytes,2,rep,name=split_points,json=splitPoints,proto3" json:"split_points,omitempty"`
	ReplicationFactor int32    `protobuf:"varint,3,opt,name=replication_factor,json=replicationFactor,proto3" json:"replication_factor,omitempty"`
}

func (m *CreateTableRequest) Reset()         { *m = CreateTableRequest{} }
func (m *CreateTableRequest) String() string { return proto.CompactTextString(m) }
func (*CreateTableRequest) ProtoMessage()    {}

type CreateTableResponse struct {
	Table   *TableRecord    `protobuf:"bytes,1,opt,name=table,proto3" json:"table,omitempty"`
	Tablets []*TabletRecord `protobuf:"bytes,2,rep,name=tablets,proto3" json:"tablets,omitempty"`
}

func (m *CreateTableResponse) Reset()         { *m = CreateTableResponse{} }
func (m *CreateTableResponse) String() string { return proto.CompactTextString(m) }
func (*CreateTableResponse) ProtoMessage()    {}

type ListTablesRequest struct {
}

func (m *ListTablesRequest) Reset()         { *m = ListTablesRequest{} }
func (m *ListTablesRequest) String() string { return proto.CompactTextString(m) }
func (*ListTablesRequest) ProtoMessage()    {}

type ListTablesResponse struct {
	Tables []*TableRecord `protobuf:"bytes,1,rep,name=tables,proto3" json:"tables,omitempty"`
}

func (m *ListTablesResponse) Reset()         { *m = ListTablesResponse{} }
func (m *ListTablesResponse) String() string { return proto.CompactTextString(m) }
func (*ListTablesResponse) ProtoMessage()    {}

type HeartbeatRequest struct {
	ServerId string          `protobuf:"bytes,1,opt,name=server_id,json=serverId,proto3" json:"server_id,omitempty"`
	Reports  []*TabletReport `protobuf:"bytes,2,rep,name=reports,proto3" json:"reports,omitempty"`
}

func (m *HeartbeatRequest) Reset()         { *m = HeartbeatRequest{} }
func (m *HeartbeatRequest) String() string { return proto.CompactTextString(m) }
func (*HeartbeatRequest) ProtoMessage()    {}

type HeartbeatResponse struct {
	// TabletsToCreate are tablets assigned to the server
	// that it did not report
	TabletsToCreate []*TabletRecord `protobuf:"bytes,1,rep,name=tablets_to_create,json=tabletsToCreate,proto3" json:"tablets_to_create,omitempty"`
	// TabletsToDelete are reported tablets the server
	// must stop serving
	TabletsToDelete []string `protobuf:"bytes,2,rep,name=tablets_to_delete,json=tabletsToDelete,proto3" json:"tablets_to_delete,omitempty"`
}

func (m *HeartbeatResponse) Reset()         { *m = HeartbeatResponse{} }
func (m *HeartbeatResponse) String() string { return proto.CompactTextString(m) }
func (*HeartbeatResponse) ProtoMessage()    {}

type ReplacementStatusRequest struct {
	TabletId string `protobuf:"bytes,1,opt,name=tablet_id,json=tabletId,proto3" json:"tablet_id,omitempty"`
}

func (m *ReplacementStatusRequest) Reset()         { *m = ReplacementStatusRequest{} }
func (m *ReplacementStatusRequest) String() string { return proto.CompactTextString(m) }
func (*ReplacementStatusRequest) ProtoMessage()    {}

type ReplacementStatusResponse struct {
	Request *ReplacementRequest `protobuf:"bytes,1,opt,name=request,proto3" json:"request,omitempty"`
}

func (m *ReplacementStatusResponse) Reset()         { *m = ReplacementStatusResponse{} }
func (m *ReplacementStatusResponse) String() string { return proto.CompactTextString(m) }
func (*ReplacementStatusResponse) ProtoMessage()    {}
