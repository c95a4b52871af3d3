package codec

import (
	"encoding/binary"
	"errors"
)

// Tick type codes. N/M/X/T arrive on the exchange feed; the remaining codes
// are derived by the book and only ever appear on TickInfo deltas and on the
// event echo of output snapshots.
const (
	TickNew           = 'N'
	TickModify        = 'M'
	TickCancel        = 'X'
	TickTrade         = 'T'
	TickNewCross      = 'A'
	TickModifyCross   = 'B'
	TickSelfTrade     = 'C'
	TickIOCCross      = 'D'
	TickMarketCross   = 'E'
	TickSelfTradeNote = 'S'
)

// InputRecordSize is the packed on-disk size of one feed record.
const InputRecordSize = 40

var ErrShortBuffer = errors.New("codec: short buffer")

// InputRecord is one exchange event, little-endian packed:
//
//	record_idx u32 | token u32 | order_id u64 | order_id2 u64 |
//	price i64 | qty i32 | tick_type u8 | is_ask u8 | pad[2]
//
// For trades order_id is the bid leg and order_id2 the ask leg; is_ask is
// not meaningful for trades.
type InputRecord struct {
	RecordIdx uint32
	Token     uint32
	OrderID   uint64
	OrderID2  uint64
	Price     int64
	Qty       int32
	TickType  byte
	IsAsk     bool
}

// Marshal writes the record into b, which must hold InputRecordSize bytes.
func (r *InputRecord) Marshal(b []byte) {
	_ = b[InputRecordSize-1]
	binary.LittleEndian.PutUint32(b[0:4], r.RecordIdx)
	binary.LittleEndian.PutUint32(b[4:8], r.Token)
	binary.LittleEndian.PutUint64(b[8:16], r.OrderID)
	binary.LittleEndian.PutUint64(b[16:24], r.OrderID2)
	binary.LittleEndian.PutUint64(b[24:32], uint64(r.Price))
	binary.LittleEndian.PutUint32(b[32:36], uint32(r.Qty))
	b[36] = r.TickType
	b[37] = boolByte(r.IsAsk)
	b[38] = 0
	b[39] = 0
}

// Unmarshal reads the record from b.
func (r *InputRecord) Unmarshal(b []byte) error {
	if len(b) < InputRecordSize {
		return ErrShortBuffer
	}
	r.RecordIdx = binary.LittleEndian.Uint32(b[0:4])
	r.Token = binary.LittleEndian.Uint32(b[4:8])
	r.OrderID = binary.LittleEndian.Uint64(b[8:16])
	r.OrderID2 = binary.LittleEndian.Uint64(b[16:24])
	r.Price = int64(binary.LittleEndian.Uint64(b[24:32]))
	r.Qty = int32(binary.LittleEndian.Uint32(b[32:36]))
	r.TickType = b[36]
	r.IsAsk = b[37] != 0
	return nil
}

func boolByte(v bool) byte {
	if v {
		return 1
	}
	return 0
}
