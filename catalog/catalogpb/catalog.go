package catalogpb

import (
	"bytes"
	"fmt"

	"github.com/gogo/protobuf/proto"
)

// PartitionRange is the half-open key range [Lower, Upper).
// An empty Lower is the start of the key space and an
// empty Upper is the end of the key space.
type PartitionRange struct {
	Lower []byte `protobuf:"bytes,1,opt,name=lower,proto3" json:"lower,omitempty"`
	Upper []byte `protobuf:"bytes,2,opt,name=upper,proto3" json:"upper,omitempty"`
}

func (m *PartitionRange) Reset()         { *m = PartitionRange{} }
func (m *PartitionRange) String() string { return proto.CompactTextString(m) }
func (*PartitionRange) ProtoMessage()    {}

// Contains returns true if key falls inside the range
func (m *PartitionRange) Contains(key []byte) bool {
	if m == nil {
		return false
	}

	if bytes.Compare(key, m.Lower) < 0 {
		return false
	}

	return len(m.Upper) == 0 || bytes.Compare(key, m.Upper) < 0
}

// Overlaps returns true if the two ranges share at least one key
func (m *PartitionRange) Overlaps(other *PartitionRange) bool {
	if m == nil || other == nil {
		return false
	}

	if len(m.Upper) != 0 && bytes.Compare(other.Lower, m.Upper) >= 0 {
		return false
	}

	if len(other.Upper) != 0 && bytes.Compare(m.Lower, other.Upper) >= 0 {
		return false
	}

	return true
}

// Equal returns true if both ranges have the same bounds
func (m *PartitionRange) Equal(other *PartitionRange) bool {
	if m == nil || other == nil {
		return m == other
	}

	return bytes.Equal(m.Lower, other.Lower) && bytes.Equal(m.Upper, other.Upper)
}

// Valid returns true if the range is non-empty
func (m *PartitionRange) Valid() bool {
	if m == nil {
		return false
	}

	return len(m.Upper) == 0 || bytes.Compare(m.Lower, m.Upper) < 0
}

// Format renders the range for logs and command output
func (m *PartitionRange) Format() string {
	if m == nil {
		return "<nil>"
	}

	upper := "+inf"

	if len(m.Upper) != 0 {
		upper = fmt.Sprintf("%q", m.Upper)
	}

	return fmt.Sprintf("[%q, %s)", m.Lower, upper)
}

// Clone returns a deep copy of the range
func (m *PartitionRange) Clone() *PartitionRange {
	if m == nil {
		return nil
	}

	return &PartitionRange{Lower: cloneBytes(m.Lower), Upper: cloneBytes(m.Upper)}
}

// TabletRecord is the catalog's record of one tablet
type TabletRecord struct {
	TabletId       string          `protobuf:"bytes,1,opt,name=tablet_id,json=tabletId,proto3" json:"tablet_id,omitempty"`
	TableId        string          `protobuf:"bytes,2,opt,name=table_id,json=tableId,proto3" json:"table_id,omitempty"`
	PartitionRange *PartitionRange `protobuf:"bytes,3,opt,name=partition_range,json=partitionRange,proto3" json:"partition_range,omitempty"`
	State          TabletState     `protobuf:"varint,4,opt,name=state,proto3,enum=tablets.TabletState" json:"state,omitempty"`
	ReplicaSet     []string        `protobuf:"bytes,5,rep,name=replica_set,json=replicaSet,proto3" json:"replica_set,omitempty"`
	Version        int64           `protobuf:"varint,6,opt,name=version,proto3" json:"version,omitempty"`
	PredecessorId  string          `protobuf:"bytes,7,opt,name=predecessor_id,json=predecessorId,proto3" json:"predecessor_id,omitempty"`
	SuccessorId    string          `protobuf:"bytes,8,opt,name=successor_id,json=successorId,proto3" json:"successor_id,omitempty"`
	// StateTime is the unix time in nanoseconds at which
	// the tablet entered its current state
	StateTime int64 `protobuf:"varint,9,opt,name=state_time,json=stateTime,proto3" json:"state_time,omitempty"`
}

func (m *TabletRecord) Reset()         { *m = TabletRecord{} }
func (m *TabletRecord) String() string { return proto.CompactTextString(m) }
func (*TabletRecord) ProtoMessage()    {}

func (m *TabletRecord) GetTabletId() string {
	if m != nil {
		return m.TabletId
	}

	return ""
}

func (m *TabletRecord) GetTableId() string {
	if m != nil {
		return m.TableId
	}

	return ""
}

func (m *TabletRecord) GetState() TabletState {
	if m != nil {
		return m.State
	}

	return CREATING
}

func (m *TabletRecord) GetVersion() int64 {
	if m != nil {
		return m.Version
	}

	return 0
}

// Live returns true if the tablet owns its partition range
func (m *TabletRecord) Live() bool {
	return m != nil && m.State.IsLive()
}

// Leader returns the replica that accepts writes for the
// tablet, which is the first replica in the replica set.
func (m *TabletRecord) Leader() string {
	if m == nil || len(m.ReplicaSet) == 0 {
		return ""
	}

	return m.ReplicaSet[0]
}

// HasReplica returns true if serverID hosts a replica of the tablet
func (m *TabletRecord) HasReplica(serverID string) bool {
	if m == nil {
		return false
	}

	for _, replica := range m.ReplicaSet {
		if replica == serverID {
			return true
		}
	}

	return false
}

// Clone returns a deep copy of the record
func (m *TabletRecord) Clone() *TabletRecord {
	if m == nil {
		return nil
	}

	clone := *m
	clone.PartitionRange = m.PartitionRange.Clone()

	if m.ReplicaSet != nil {
		clone.ReplicaSet = make([]string, len(m.ReplicaSet))
		copy(clone.ReplicaSet, m.ReplicaSet)
	}

	return &clone
}

// TableRecord is the catalog's record of a table
type TableRecord struct {
	TableId           string `protobuf:"bytes,1,opt,name=table_id,json=tableId,proto3" json:"table_id,omitempty"`
	Name              string `protobuf:"bytes,2,opt,name=name,proto3" json:"name,omitempty"`
	ReplicationFactor int32  `protobuf:"varint,3,opt,name=replication_factor,json=replicationFactor,proto3" json:"replication_factor,omitempty"`
	CreateTime        int64  `protobuf:"varint,4,opt,name=create_time,json=createTime,proto3" json:"create_time,omitempty"`
}

func (m *TableRecord) Reset()         { *m = TableRecord{} }
func (m *TableRecord) String() string { return proto.CompactTextString(m) }
func (*TableRecord) ProtoMessage()    {}

func (m *TableRecord) GetTableId() string {
	if m != nil {
		return m.TableId
	}

	return ""
}

// Clone returns a copy of the record
func (m *TableRecord) Clone() *TableRecord {
	if m == nil {
		return nil
	}

	clone := *m

	return &clone
}

// ReplacementRequest tracks one replacement request for a tablet
type ReplacementRequest struct {
	TabletId    string             `protobuf:"bytes,1,opt,name=tablet_id,json=tabletId,proto3" json:"tablet_id,omitempty"`
	RequestTime int64              `protobuf:"varint,2,opt,name=request_time,json=requestTime,proto3" json:"request_time,omitempty"`
	Outcome     ReplacementOutcome `protobuf:"varint,3,opt,name=outcome,proto3,enum=tablets.ReplacementOutcome" json:"outcome,omitempty"`
	NewTabletId string             `protobuf:"bytes,4,opt,name=new_tablet_id,json=newTabletId,proto3" json:"new_tablet_id,omitempty"`
	Error       string             `protobuf:"bytes,5,opt,name=error,proto3" json:"error,omitempty"`
	// FinishTime is zero while the request is pending
	FinishTime int64 `protobuf:"varint,6,opt,name=finish_time,json=finishTime,proto3" json:"finish_time,omitempty"`
}

func (m *ReplacementRequest) Reset()         { *m = ReplacementRequest{} }
func (m *ReplacementRequest) String() string { return proto.CompactTextString(m) }
func (*ReplacementRequest) ProtoMessage()    {}

// Clone returns a copy of the request
func (m *ReplacementRequest) Clone() *ReplacementRequest {
	if m == nil {
		return nil
	}

	clone := *m

	return &clone
}

// TabletReport is a tablet server's view of one
// of the replicas it hosts
type TabletReport struct {
	TabletId string      `protobuf:"bytes,1,opt,name=tablet_id,json=tabletId,proto3" json:"tablet_id,omitempty"`
	State    TabletState `protobuf:"varint,2,opt,name=state,proto3,enum=tablets.TabletState" json:"state,omitempty"`
}

func (m *TabletReport) Reset()         { *m = TabletReport{} }
func (m *TabletReport) String() string { return proto.CompactTextString(m) }
func (*TabletReport) ProtoMessage()    {}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}

	c := make([]byte, len(b))
	copy(c, b)

	return c
}
