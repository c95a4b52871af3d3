package codec

import "encoding/binary"

const (
	// ChunkSize is the fixed transport frame size.
	ChunkSize = 64
	// ChunkPayload is the delta payload capacity of one chunk.
	ChunkPayload = 58

	// FlagFinal marks the last chunk of an event.
	FlagFinal = 1 << 0
)

// Chunk is one fixed-size transport frame:
//
//	token u32 | flags u8 | num_deltas u8 | payload[58]
//
// The payload is a back-to-back sequence of delta records, each prefixed by
// its type byte. The first delta of an event is always a TickInfo.
type Chunk struct {
	Token     uint32
	Flags     uint8
	NumDeltas uint8
	Payload   [ChunkPayload]byte
}

// Marshal writes the chunk into b, which must hold ChunkSize bytes.
func (c *Chunk) Marshal(b []byte) {
	_ = b[ChunkSize-1]
	binary.LittleEndian.PutUint32(b[0:4], c.Token)
	b[4] = c.Flags
	b[5] = c.NumDeltas
	copy(b[6:ChunkSize], c.Payload[:])
}

// Unmarshal reads the chunk from b.
func (c *Chunk) Unmarshal(b []byte) error {
	if len(b) < ChunkSize {
		return ErrShortBuffer
	}
	c.Token = binary.LittleEndian.Uint32(b[0:4])
	c.Flags = b[4]
	c.NumDeltas = b[5]
	copy(c.Payload[:], b[6:ChunkSize])
	return nil
}

// Final reports whether this is the last chunk of its event.
func (c *Chunk) Final() bool { return c.Flags&FlagFinal != 0 }
