// Package engine routes the multiplexed input stream to per-token books and
// hands the produced chunk frames to a transport sink.
package engine

import (
	"fmt"

	"mbo/book"
	"mbo/codec"
)

// Engine is the single write entry point: one event at a time, processed to
// completion before the next.
type Engine struct {
	em    *codec.Emitter
	books map[uint32]*book.Book
	opts  book.Options
	buf   []codec.Chunk
}

func New(opts book.Options) *Engine {
	return &Engine{
		em:    codec.NewEmitter(),
		books: make(map[uint32]*book.Book, 128),
		opts:  opts,
	}
}

// Book returns the book for token, creating it lazily.
func (e *Engine) Book(token uint32) *book.Book {
	b, ok := e.books[token]
	if !ok {
		b = book.New(token, e.em, e.opts)
		e.books[token] = b
	}
	return b
}

// Lookup returns the book for token without creating one.
func (e *Engine) Lookup(token uint32) (*book.Book, bool) {
	b, ok := e.books[token]
	return b, ok
}

// Tokens returns the tokens with live books.
func (e *Engine) Tokens() []uint32 {
	ts := make([]uint32, 0, len(e.books))
	for t := range e.books {
		ts = append(ts, t)
	}
	return ts
}

// Process dispatches one input record and returns the event's chunk frames.
// The returned slice is the engine's transport buffer, valid until the next
// call.
func (e *Engine) Process(rec *codec.InputRecord) ([]codec.Chunk, error) {
	b := e.Book(rec.Token)
	e.em.Reset(rec.Token, rec.RecordIdx)
	switch rec.TickType {
	case codec.TickNew:
		b.NewOrder(rec.OrderID, rec.IsAsk, rec.Price, rec.Qty)
	case codec.TickModify:
		b.ModifyOrder(rec.OrderID, rec.Price, rec.Qty)
	case codec.TickCancel:
		b.CancelOrder(rec.OrderID, rec.IsAsk)
	case codec.TickTrade:
		b.Trade(rec.OrderID, rec.OrderID2, rec.Price, rec.Qty)
	default:
		return nil, fmt.Errorf("engine: unknown tick type %q at record %d", rec.TickType, rec.RecordIdx)
	}
	chunks := e.em.Finalize()
	// Copy out of the emitter so the transport owns a stable frame sequence.
	e.buf = append(e.buf[:0], chunks...)
	return e.buf, nil
}

// Snapshot projects the current top-20 of token's book, if one exists.
func (e *Engine) Snapshot(token uint32) (*codec.BookSnapshot, bool) {
	b, ok := e.books[token]
	if !ok {
		return nil, false
	}
	var s codec.BookSnapshot
	b.Project(&s)
	s.BidAffectedLvl = codec.Depth
	s.AskAffectedLvl = codec.Depth
	return &s, true
}
