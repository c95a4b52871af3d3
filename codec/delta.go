package codec

import (
	"encoding/binary"
	"fmt"
)

// Delta type bytes and packed sizes (type byte included).
const (
	DeltaTickInfo         = 0
	DeltaUpdate           = 1
	DeltaInsert           = 2
	DeltaCrossingComplete = 3

	TickInfoSize         = 36
	UpdateSize           = 12
	InsertSize           = 24
	CrossingCompleteSize = 1
)

// TickInfo exch_side_flags bits.
const (
	tickFlagExch = 1 << 0
	tickFlagAsk  = 1 << 1
)

// Update/Insert side_index bits.
const (
	indexMask = 0x1f
	sideBit   = 1 << 5
	shiftBit  = 1 << 6
)

// TickInfo is the leading delta of every event scope. For trades Price/Qty
// carry the last trade price and quantity.
//
// Layout: type u8 | code u8 | exch_side_flags u8 | pad u8 | record_idx u32 |
// price i64 | qty i32 | order_id u64 | order_id2 u64.
type TickInfo struct {
	Code       byte
	IsExchTick bool
	IsAsk      bool
	RecordIdx  uint32
	Price      int64
	Qty        int32
	OrderID    uint64
	OrderID2   uint64
}

func (t *TickInfo) Marshal(b []byte) {
	_ = b[TickInfoSize-1]
	b[0] = DeltaTickInfo
	b[1] = t.Code
	var flags byte
	if t.IsExchTick {
		flags |= tickFlagExch
	}
	if t.IsAsk {
		flags |= tickFlagAsk
	}
	b[2] = flags
	b[3] = 0
	binary.LittleEndian.PutUint32(b[4:8], t.RecordIdx)
	binary.LittleEndian.PutUint64(b[8:16], uint64(t.Price))
	binary.LittleEndian.PutUint32(b[16:20], uint32(t.Qty))
	binary.LittleEndian.PutUint64(b[20:28], t.OrderID)
	binary.LittleEndian.PutUint64(b[28:36], t.OrderID2)
}

func (t *TickInfo) Unmarshal(b []byte) error {
	if len(b) < TickInfoSize {
		return ErrShortBuffer
	}
	t.Code = b[1]
	t.IsExchTick = b[2]&tickFlagExch != 0
	t.IsAsk = b[2]&tickFlagAsk != 0
	t.RecordIdx = binary.LittleEndian.Uint32(b[4:8])
	t.Price = int64(binary.LittleEndian.Uint64(b[8:16]))
	t.Qty = int32(binary.LittleEndian.Uint32(b[16:20]))
	t.OrderID = binary.LittleEndian.Uint64(b[20:28])
	t.OrderID2 = binary.LittleEndian.Uint64(b[28:36])
	return nil
}

// Update adjusts an existing level in place. A resulting level qty <= 0 is an
// implicit deletion at the receiver.
//
// Layout: type u8 | side_index u8 | qty_delta i32 | count_delta i32 | pad[2].
type Update struct {
	IsAsk      bool
	Index      int
	QtyDelta   int32
	CountDelta int32
}

func (u *Update) Marshal(b []byte) {
	_ = b[UpdateSize-1]
	b[0] = DeltaUpdate
	si := byte(u.Index) & indexMask
	if u.IsAsk {
		si |= sideBit
	}
	b[1] = si
	binary.LittleEndian.PutUint32(b[2:6], uint32(u.QtyDelta))
	binary.LittleEndian.PutUint32(b[6:10], uint32(u.CountDelta))
	b[10], b[11] = 0, 0
}

func (u *Update) Unmarshal(b []byte) error {
	if len(b) < UpdateSize {
		return ErrShortBuffer
	}
	u.Index = int(b[1] & indexMask)
	u.IsAsk = b[1]&sideBit != 0
	u.QtyDelta = int32(binary.LittleEndian.Uint32(b[2:6]))
	u.CountDelta = int32(binary.LittleEndian.Uint32(b[6:10]))
	return nil
}

// Insert writes an absolute level. Shift means "move levels [idx..19] down by
// one first"; without it the target slot is overwritten in place, which is
// how a vanished top level is refilled from the 21st-best.
//
// Layout: type u8 | side_index_shift u8 | pad[2] | count i32 | price i64 |
// qty i64.
type Insert struct {
	IsAsk bool
	Index int
	Shift bool
	Price int64
	Qty   int64
	Count int32
}

func (in *Insert) Marshal(b []byte) {
	_ = b[InsertSize-1]
	b[0] = DeltaInsert
	si := byte(in.Index) & indexMask
	if in.IsAsk {
		si |= sideBit
	}
	if in.Shift {
		si |= shiftBit
	}
	b[1] = si
	b[2], b[3] = 0, 0
	binary.LittleEndian.PutUint32(b[4:8], uint32(in.Count))
	binary.LittleEndian.PutUint64(b[8:16], uint64(in.Price))
	binary.LittleEndian.PutUint64(b[16:24], uint64(in.Qty))
}

func (in *Insert) Unmarshal(b []byte) error {
	if len(b) < InsertSize {
		return ErrShortBuffer
	}
	in.Index = int(b[1] & indexMask)
	in.IsAsk = b[1]&sideBit != 0
	in.Shift = b[1]&shiftBit != 0
	in.Count = int32(binary.LittleEndian.Uint32(b[4:8]))
	in.Price = int64(binary.LittleEndian.Uint64(b[8:16]))
	in.Qty = int64(binary.LittleEndian.Uint64(b[16:24]))
	return nil
}

// DeltaSize returns the packed size for a delta type byte.
func DeltaSize(typ byte) (int, error) {
	switch typ {
	case DeltaTickInfo:
		return TickInfoSize, nil
	case DeltaUpdate:
		return UpdateSize, nil
	case DeltaInsert:
		return InsertSize, nil
	case DeltaCrossingComplete:
		return CrossingCompleteSize, nil
	default:
		return 0, fmt.Errorf("codec: unknown delta type %d", typ)
	}
}
