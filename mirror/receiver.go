// Package mirror reconstructs per-token top-20 books from the delta chunk
// stream and synthesizes the derived events a strategy consumer observes.
package mirror

import (
	"fmt"

	"mbo/codec"
)

// pendingAggressor mirrors the publisher's crossing state: the preliminary
// A/B view of an aggressive order whose trades are still arriving.
type pendingAggressor struct {
	active       bool
	id           uint64
	isAsk        bool
	price        int64
	origQty      int64
	remaining    int64
	originModify bool
}

// tokenMirror is the receiver-side state for one instrument.
type tokenMirror struct {
	bids [codec.Depth]codec.SnapLevel
	asks [codec.Depth]codec.SnapLevel
	ltp  int64
	ltq  int32
	pend pendingAggressor
}

// Receiver applies one event's chunk sequence at a time and returns the
// snapshots to deliver, in order.
type Receiver struct {
	books map[uint32]*tokenMirror
}

func NewReceiver() *Receiver {
	return &Receiver{books: make(map[uint32]*tokenMirror, 64)}
}

func (r *Receiver) mirror(token uint32) *tokenMirror {
	m, ok := r.books[token]
	if !ok {
		m = &tokenMirror{}
		r.books[token] = m
	}
	return m
}

// eventCtx is the per-event walk state.
type eventCtx struct {
	token    uint32
	tick     codec.TickInfo
	haveTick bool
	minBid   int
	minAsk   int
	isC      bool
	complete bool // CrossingComplete seen while the C expansion owns it
	sStash   *codec.TickInfo
	synth    *codec.TickInfo // trailing derived event from CrossingComplete
}

// ApplyEvent walks the deltas of one event and returns the snapshots it
// produces, in delivery order.
func (r *Receiver) ApplyEvent(chunks []codec.Chunk) ([]codec.BookSnapshot, error) {
	if len(chunks) == 0 {
		return nil, nil
	}
	m := r.mirror(chunks[0].Token)
	ctx := eventCtx{token: chunks[0].Token, minBid: codec.Depth, minAsk: codec.Depth}
	var out []codec.BookSnapshot

	err := codec.Walk(chunks, codec.WalkFuncs{
		Tick: func(t *codec.TickInfo) error {
			r.applyTick(m, &ctx, t, &out)
			return nil
		},
		Update: func(u *codec.Update) error {
			m.applyUpdate(&ctx, u)
			return nil
		},
		Insert: func(in *codec.Insert) error {
			m.applyInsert(&ctx, in)
			return nil
		},
		CrossingComplete: func() error {
			m.applyCrossingComplete(&ctx)
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("mirror: %w", err)
	}
	if !ctx.haveTick {
		return out, nil
	}
	out = append(out, m.finalize(&ctx))
	if ctx.synth != nil {
		// The trailing derived snapshot keeps the affected-level tracking of
		// the event that completed the crossing.
		s := m.finalize(&ctx)
		stampEvent(&s, ctx.synth, ctx.token)
		out = append(out, s)
	}
	if ctx.isC && m.pend.active {
		out = m.expandSelfTrade(&ctx, out)
	}
	return out, nil
}

func (r *Receiver) applyTick(m *tokenMirror, ctx *eventCtx, t *codec.TickInfo, out *[]codec.BookSnapshot) {
	if t.Code == codec.TickSelfTradeNote && m.pend.active {
		// No snapshot of its own; its price/qty feed the C expansion.
		st := *t
		ctx.sStash = &st
		return
	}
	if ctx.haveTick {
		*out = append(*out, m.finalize(ctx))
		ctx.minBid, ctx.minAsk = codec.Depth, codec.Depth
	}
	ctx.tick = *t
	ctx.haveTick = true
	switch t.Code {
	case codec.TickTrade, codec.TickIOCCross, codec.TickMarketCross:
		m.ltp = t.Price
		m.ltq = t.Qty
		if m.pend.active {
			m.pend.remaining -= int64(t.Qty)
			if m.pend.remaining < 0 {
				m.pend.remaining = 0
			}
		}
	case codec.TickNewCross, codec.TickModifyCross:
		m.pend = pendingAggressor{
			active:       true,
			id:           t.OrderID,
			isAsk:        t.IsAsk,
			price:        t.Price,
			origQty:      int64(t.Qty),
			remaining:    int64(t.Qty),
			originModify: t.Code == codec.TickModifyCross,
		}
	case codec.TickSelfTrade:
		ctx.isC = true
	case codec.TickCancel:
		if m.pend.active && t.OrderID == m.pend.id {
			// Derived cancel of a fully consumed modify-origin aggressor.
			m.pend = pendingAggressor{}
		}
	}
}

func (m *tokenMirror) side(isAsk bool) *[codec.Depth]codec.SnapLevel {
	if isAsk {
		return &m.asks
	}
	return &m.bids
}

func (m *tokenMirror) applyUpdate(ctx *eventCtx, u *codec.Update) {
	lv := m.side(u.IsAsk)
	lv[u.Index].Qty += int64(u.QtyDelta)
	lv[u.Index].NumOrders += u.CountDelta
	if lv[u.Index].Qty <= 0 {
		copy(lv[u.Index:], lv[u.Index+1:])
		lv[codec.Depth-1] = codec.SnapLevel{}
	}
	ctx.touch(u.IsAsk, u.Index)
}

func (m *tokenMirror) applyInsert(ctx *eventCtx, in *codec.Insert) {
	lv := m.side(in.IsAsk)
	if in.Shift {
		copy(lv[in.Index+1:], lv[in.Index:codec.Depth-1])
		ctx.touch(in.IsAsk, in.Index)
	}
	lv[in.Index] = codec.SnapLevel{Price: in.Price, Qty: in.Qty, NumOrders: in.Count}
}

func (m *tokenMirror) applyCrossingComplete(ctx *eventCtx) {
	if ctx.isC {
		// The C expansion consumes the marker itself.
		ctx.complete = true
		return
	}
	if !m.pend.active {
		return
	}
	switch {
	case m.pend.remaining > 0:
		code := byte(codec.TickNew)
		if m.pend.originModify {
			code = codec.TickModify
		}
		ctx.synth = &codec.TickInfo{
			Code:      code,
			IsAsk:     m.pend.isAsk,
			RecordIdx: ctx.tick.RecordIdx,
			Price:     m.pend.price,
			Qty:       int32(m.pend.remaining),
			OrderID:   m.pend.id,
		}
	case m.pend.originModify:
		ctx.synth = &codec.TickInfo{
			Code:      codec.TickCancel,
			IsAsk:     m.pend.isAsk,
			RecordIdx: ctx.tick.RecordIdx,
			Price:     m.pend.price,
			Qty:       int32(m.pend.origQty),
			OrderID:   m.pend.id,
		}
	}
	m.pend = pendingAggressor{}
}

func (ctx *eventCtx) touch(isAsk bool, idx int) {
	if isAsk {
		if idx < ctx.minAsk {
			ctx.minAsk = idx
		}
	} else {
		if idx < ctx.minBid {
			ctx.minBid = idx
		}
	}
}

// finalize materializes the current book state plus the event under
// construction into a deliverable snapshot.
func (m *tokenMirror) finalize(ctx *eventCtx) codec.BookSnapshot {
	var s codec.BookSnapshot
	s.Bids = m.bids
	s.Asks = m.asks
	s.LTP = m.ltp
	s.LTQ = m.ltq
	stampEvent(&s, &ctx.tick, ctx.token)
	s.BidAffectedLvl = int8(ctx.minBid)
	s.AskAffectedLvl = int8(ctx.minAsk)
	s.BidFilledLvls = filledLevels(&m.bids)
	s.AskFilledLvls = filledLevels(&m.asks)
	return s
}

func stampEvent(s *codec.BookSnapshot, t *codec.TickInfo, token uint32) {
	s.RecordIdx = t.RecordIdx
	s.Token = token
	s.IsAsk = t.IsAsk
	s.Event = codec.InputRecord{
		RecordIdx: t.RecordIdx,
		Token:     token,
		OrderID:   t.OrderID,
		OrderID2:  t.OrderID2,
		Price:     t.Price,
		Qty:       t.Qty,
		TickType:  t.Code,
		IsAsk:     t.IsAsk,
	}
}

func filledLevels(lv *[codec.Depth]codec.SnapLevel) int8 {
	var n int8
	for i := range lv {
		if lv[i].Price != 0 {
			n++
		}
	}
	return n
}

// expandSelfTrade rewrites the delivery set for a C event: the C snapshot
// with both tops marked affected, an S snapshot for the cancelled order, and
// for a passive cancel the aggressor's remaining N/M state.
func (m *tokenMirror) expandSelfTrade(ctx *eventCtx, out []codec.BookSnapshot) []codec.BookSnapshot {
	if n := len(out); n > 0 {
		// Both sides' tops are disturbed by definition of a self-trade at
		// top.
		out[n-1].BidAffectedLvl = 0
		out[n-1].AskAffectedLvl = 0
	}
	if ctx.sStash != nil {
		s := m.finalize(ctx)
		stampEvent(&s, ctx.sStash, ctx.token)
		s.BidAffectedLvl = codec.Depth
		s.AskAffectedLvl = codec.Depth
		out = append(out, s)
	}
	if ctx.tick.OrderID != m.pend.id {
		code := byte(codec.TickNew)
		if m.pend.originModify {
			code = codec.TickModify
		}
		t := codec.TickInfo{
			Code:      code,
			IsAsk:     m.pend.isAsk,
			RecordIdx: ctx.tick.RecordIdx,
			Price:     m.pend.price,
			Qty:       int32(m.pend.remaining),
			OrderID:   m.pend.id,
		}
		s := m.finalize(ctx)
		stampEvent(&s, &t, ctx.token)
		s.BidAffectedLvl = codec.Depth
		s.AskAffectedLvl = codec.Depth
		out = append(out, s)
	}
	if ctx.complete {
		m.pend = pendingAggressor{}
	}
	return out
}

// Snapshot returns the current mirrored book for token, if any.
func (r *Receiver) Snapshot(token uint32) (*codec.BookSnapshot, bool) {
	m, ok := r.books[token]
	if !ok {
		return nil, false
	}
	var s codec.BookSnapshot
	s.Token = token
	s.Bids = m.bids
	s.Asks = m.asks
	s.LTP = m.ltp
	s.LTQ = m.ltq
	s.BidAffectedLvl = codec.Depth
	s.AskAffectedLvl = codec.Depth
	s.BidFilledLvls = filledLevels(&m.bids)
	s.AskFilledLvls = filledLevels(&m.asks)
	return &s, true
}

// Tokens returns the tokens with mirrored state.
func (r *Receiver) Tokens() []uint32 {
	ts := make([]uint32, 0, len(r.books))
	for t := range r.books {
		ts = append(ts, t)
	}
	return ts
}
