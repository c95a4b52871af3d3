package codec

import "encoding/binary"

// Depth is the number of price levels exposed per side. Edits beyond it are
// tracked by the book but never cross the wire.
const Depth = 20

const (
	// SnapshotSize is the packed size of one validation snapshot.
	SnapshotSize = 708

	snapLevelSize = 16
	levelsOffset  = 68
)

// SnapLevel is one aggregated price level as seen by consumers.
// Packed layout: price i64 | qty i32 | num_orders i32.
type SnapLevel struct {
	Price     int64
	Qty       int64 // serialized as i32; bounded by per-order quantities
	NumOrders int32
}

// BookSnapshot is the full top-20 view produced for every derived event.
// The Event field echoes the derived TickInfo, not the raw input record.
type BookSnapshot struct {
	RecordIdx      uint32
	Token          uint32
	Event          InputRecord
	LTP            int64
	LTQ            int32
	BidAffectedLvl int8
	AskAffectedLvl int8
	BidFilledLvls  int8
	AskFilledLvls  int8
	IsAsk          bool
	Bids           [Depth]SnapLevel
	Asks           [Depth]SnapLevel
}

// Marshal writes the snapshot into b, which must hold SnapshotSize bytes.
func (s *BookSnapshot) Marshal(b []byte) {
	_ = b[SnapshotSize-1]
	binary.LittleEndian.PutUint32(b[0:4], s.RecordIdx)
	binary.LittleEndian.PutUint32(b[4:8], s.Token)
	s.Event.Marshal(b[8:48])
	binary.LittleEndian.PutUint64(b[48:56], uint64(s.LTP))
	binary.LittleEndian.PutUint32(b[56:60], uint32(s.LTQ))
	b[60] = byte(s.BidAffectedLvl)
	b[61] = byte(s.AskAffectedLvl)
	b[62] = byte(s.BidFilledLvls)
	b[63] = byte(s.AskFilledLvls)
	b[64] = boolByte(s.IsAsk)
	b[65], b[66], b[67] = 0, 0, 0
	off := levelsOffset
	for i := range s.Bids {
		marshalLevel(b[off:off+snapLevelSize], &s.Bids[i])
		off += snapLevelSize
	}
	for i := range s.Asks {
		marshalLevel(b[off:off+snapLevelSize], &s.Asks[i])
		off += snapLevelSize
	}
}

// Unmarshal reads the snapshot from b.
func (s *BookSnapshot) Unmarshal(b []byte) error {
	if len(b) < SnapshotSize {
		return ErrShortBuffer
	}
	s.RecordIdx = binary.LittleEndian.Uint32(b[0:4])
	s.Token = binary.LittleEndian.Uint32(b[4:8])
	if err := s.Event.Unmarshal(b[8:48]); err != nil {
		return err
	}
	s.LTP = int64(binary.LittleEndian.Uint64(b[48:56]))
	s.LTQ = int32(binary.LittleEndian.Uint32(b[56:60]))
	s.BidAffectedLvl = int8(b[60])
	s.AskAffectedLvl = int8(b[61])
	s.BidFilledLvls = int8(b[62])
	s.AskFilledLvls = int8(b[63])
	s.IsAsk = b[64] != 0
	off := levelsOffset
	for i := range s.Bids {
		unmarshalLevel(b[off:off+snapLevelSize], &s.Bids[i])
		off += snapLevelSize
	}
	for i := range s.Asks {
		unmarshalLevel(b[off:off+snapLevelSize], &s.Asks[i])
		off += snapLevelSize
	}
	return nil
}

func marshalLevel(b []byte, lv *SnapLevel) {
	binary.LittleEndian.PutUint64(b[0:8], uint64(lv.Price))
	binary.LittleEndian.PutUint32(b[8:12], uint32(int32(lv.Qty)))
	binary.LittleEndian.PutUint32(b[12:16], uint32(lv.NumOrders))
}

func unmarshalLevel(b []byte, lv *SnapLevel) {
	lv.Price = int64(binary.LittleEndian.Uint64(b[0:8]))
	lv.Qty = int64(int32(binary.LittleEndian.Uint32(b[8:12])))
	lv.NumOrders = int32(binary.LittleEndian.Uint32(b[12:16]))
}
