package codec

import "fmt"

const (
	// emitterChunkCap bounds the chunks one event may produce.
	emitterChunkCap = 160

	// A chunk is only abandoned when the next delta does not fit, so at
	// least ChunkPayload-(TickInfoSize-1) payload bytes of every chunk are
	// used.
	minChunkFill = ChunkPayload - (TickInfoSize - 1)

	// Worst case for one event: a cancel during a crossing replays the whole
	// visible window (consume plus restore). The bound allows four passes
	// over the window, each level costing an update and an insert, plus up
	// to four tick records, two residual inserts and the completion marker.
	worstEventBytes = 4*TickInfoSize + 4*Depth*(UpdateSize+InsertSize) + 2*InsertSize + CrossingCompleteSize
)

// Overflow is impossible by construction; fails to compile if the chunk
// buffer cannot absorb the worst-case event.
const _ uint64 = emitterChunkCap*minChunkFill - worstEventBytes

// Emitter buffers the delta chunks of one event. Level edits at index >=
// Depth are dropped here; everything else is packed back-to-back, opening a
// new chunk whenever the current payload cannot hold the next record.
type Emitter struct {
	chunks    [emitterChunkCap]Chunk
	n         int // chunks in use
	used      int // payload bytes used in the current chunk
	token     uint32
	recordIdx uint32
}

func NewEmitter() *Emitter {
	return &Emitter{}
}

// Reset prepares the emitter for the next event.
func (e *Emitter) Reset(token, recordIdx uint32) {
	e.n = 0
	e.used = 0
	e.token = token
	e.recordIdx = recordIdx
}

// RecordIdx returns the record index of the event being emitted.
func (e *Emitter) RecordIdx() uint32 { return e.recordIdx }

// next reserves size payload bytes in the current chunk, opening a new one
// if needed, and bumps the delta count.
func (e *Emitter) next(size int) []byte {
	if e.n == 0 || ChunkPayload-e.used < size {
		if e.n == emitterChunkCap {
			panic(fmt.Sprintf("codec: emitter overflow token=%d record=%d", e.token, e.recordIdx))
		}
		e.chunks[e.n] = Chunk{Token: e.token}
		e.n++
		e.used = 0
	}
	c := &e.chunks[e.n-1]
	b := c.Payload[e.used : e.used+size]
	e.used += size
	c.NumDeltas++
	return b
}

// Tick appends a TickInfo delta, stamping the event's record index.
func (e *Emitter) Tick(t *TickInfo) {
	t.RecordIdx = e.recordIdx
	t.Marshal(e.next(TickInfoSize))
}

// Update appends a level update. Dropped when idx is outside the window.
func (e *Emitter) Update(isAsk bool, idx int, qtyDelta int64, countDelta int32) {
	if idx >= Depth {
		return
	}
	u := Update{IsAsk: isAsk, Index: idx, QtyDelta: int32(qtyDelta), CountDelta: countDelta}
	u.Marshal(e.next(UpdateSize))
}

// Insert appends an absolute level insert. Dropped when idx is outside the
// window.
func (e *Emitter) Insert(isAsk bool, idx int, shift bool, price, qty int64, count int32) {
	if idx >= Depth {
		return
	}
	in := Insert{IsAsk: isAsk, Index: idx, Shift: shift, Price: price, Qty: qty, Count: count}
	in.Marshal(e.next(InsertSize))
}

// CrossingComplete appends the 1-byte crossing completion marker.
func (e *Emitter) CrossingComplete() {
	e.next(CrossingCompleteSize)[0] = DeltaCrossingComplete
}

// Finalize marks the last chunk of the event and returns the chunk sequence.
// The returned slice aliases the emitter's buffer and is only valid until
// the next Reset.
func (e *Emitter) Finalize() []Chunk {
	if e.n == 0 {
		return nil
	}
	e.chunks[e.n-1].Flags |= FlagFinal
	return e.chunks[:e.n]
}
