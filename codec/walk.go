package codec

import "fmt"

// WalkFuncs receives the decoded delta sequence of one event. Nil callbacks
// skip their delta kind.
type WalkFuncs struct {
	Tick             func(*TickInfo) error
	Update           func(*Update) error
	Insert           func(*Insert) error
	CrossingComplete func() error
}

// Walk decodes the deltas of an event's chunk sequence in order.
func Walk(chunks []Chunk, fns WalkFuncs) error {
	for ci := range chunks {
		c := &chunks[ci]
		off := 0
		for d := 0; d < int(c.NumDeltas); d++ {
			if off >= ChunkPayload {
				return fmt.Errorf("codec: chunk %d delta %d past payload", ci, d)
			}
			typ := c.Payload[off]
			size, err := DeltaSize(typ)
			if err != nil {
				return err
			}
			if off+size > ChunkPayload {
				return ErrShortBuffer
			}
			body := c.Payload[off : off+size]
			off += size
			switch typ {
			case DeltaTickInfo:
				if fns.Tick == nil {
					continue
				}
				var t TickInfo
				if err := t.Unmarshal(body); err != nil {
					return err
				}
				if err := fns.Tick(&t); err != nil {
					return err
				}
			case DeltaUpdate:
				if fns.Update == nil {
					continue
				}
				var u Update
				if err := u.Unmarshal(body); err != nil {
					return err
				}
				if err := fns.Update(&u); err != nil {
					return err
				}
			case DeltaInsert:
				if fns.Insert == nil {
					continue
				}
				var in Insert
				if err := in.Unmarshal(body); err != nil {
					return err
				}
				if err := fns.Insert(&in); err != nil {
					return err
				}
			case DeltaCrossingComplete:
				if fns.CrossingComplete == nil {
					continue
				}
				if err := fns.CrossingComplete(); err != nil {
					return err
				}
			}
		}
	}
	return nil
}
