package book

import "mbo/codec"

// specFill records one speculative consumption from this side during an
// active crossing: what was taken, at what price, and how many orders the
// level carried at the time.
type specFill struct {
	price int64
	qty   int64
	count int32
}

// PriceLevels is one side's aggregated price->(qty,count) map with
// best-first access. Bid prices are stored negated so both sides share the
// ascending-key ordering; all public operations take and return actual
// prices. Every mutation emits at most one update-class delta plus at most
// one refill insert through the attached emitter.
type PriceLevels struct {
	isAsk bool
	tree  *rbTree
	em    *codec.Emitter

	fills        []specFill
	pendingQty   int64
	pendingCount int32
}

// NewPriceLevels builds one side. The emitter reference is established once
// at book construction and never re-seated.
func NewPriceLevels(isAsk bool, em *codec.Emitter) *PriceLevels {
	return &PriceLevels{isAsk: isAsk, tree: newRBTree(), em: em}
}

func (p *PriceLevels) storeKey(price int64) int64 {
	if p.isAsk {
		return price
	}
	return -price
}

func (p *PriceLevels) realPrice(key int64) int64 {
	if p.isAsk {
		return key
	}
	return -key
}

// rankOf returns the number of stored keys strictly below key, capped at
// Depth. The walk is bounded, so top-of-book mutations stay O(1).
func (p *PriceLevels) rankOf(key int64) int {
	i := 0
	p.tree.Ascend(func(k int64, _ *level) bool {
		if k >= key || i >= codec.Depth {
			return false
		}
		i++
		return true
	})
	return i
}

// nth returns the level at rank i, if one exists.
func (p *PriceLevels) nth(i int) (int64, *level, bool) {
	var (
		price int64
		lv    *level
	)
	j := 0
	p.tree.Ascend(func(k int64, l *level) bool {
		if j == i {
			price = p.realPrice(k)
			lv = l
			return false
		}
		j++
		return true
	})
	if lv == nil {
		return 0, nil, false
	}
	return price, lv, true
}

// AddLiquidity adds qty (>= 0) and countDelta at price. A new level emits a
// shifting insert at its rank; an existing one emits an update.
func (p *PriceLevels) AddLiquidity(price, qty int64, countDelta int32) {
	key := p.storeKey(price)
	if lv := p.tree.Find(key); lv != nil {
		lv.qty += qty
		lv.count += countDelta
		p.em.Update(p.isAsk, p.rankOf(key), qty, countDelta)
		return
	}
	idx := p.rankOf(key)
	lv := p.tree.Upsert(key)
	lv.qty = qty
	lv.count = countDelta
	p.em.Insert(p.isAsk, idx, true, price, qty, countDelta)
}

// RemoveLiquidity removes qty and countDelta at price; absent levels are a
// no-op. A level drained to qty <= 0 is erased, and if it was visible and a
// 21st-best exists, a non-shifting insert at index 19 refills the window.
func (p *PriceLevels) RemoveLiquidity(price, qty int64, countDelta int32) {
	key := p.storeKey(price)
	lv := p.tree.Find(key)
	if lv == nil {
		return
	}
	idx := p.rankOf(key)
	lv.qty -= qty
	lv.count -= countDelta
	p.em.Update(p.isAsk, idx, -qty, -countDelta)
	if lv.qty > 0 {
		return
	}
	p.tree.Delete(key)
	if idx < codec.Depth {
		if price21, lv21, ok := p.nth(codec.Depth - 1); ok {
			p.em.Insert(p.isAsk, codec.Depth-1, false, price21, lv21.qty, lv21.count)
		}
	}
}

// BestPrice returns the most aggressive price, or 0 when the side is empty.
func (p *PriceLevels) BestPrice() int64 {
	k, _, ok := p.tree.Min()
	if !ok {
		return 0
	}
	return p.realPrice(k)
}

// LevelIndex returns the 0-based rank of price if present and visible, else
// Depth.
func (p *PriceLevels) LevelIndex(price int64) int {
	key := p.storeKey(price)
	if p.tree.Find(key) == nil {
		return codec.Depth
	}
	if idx := p.rankOf(key); idx < codec.Depth {
		return idx
	}
	return codec.Depth
}

// Crosses reports whether a resting price on this side would trade against
// an aggressor at aggPrice.
func (p *PriceLevels) Crosses(restingPrice, aggPrice int64) bool {
	return p.storeKey(restingPrice) <= p.storeKey(aggPrice)
}

// WouldCross reports whether the best level of this side crosses aggPrice.
func (p *PriceLevels) WouldCross(aggPrice int64) bool {
	k, _, ok := p.tree.Min()
	if !ok {
		return false
	}
	return k <= p.storeKey(aggPrice)
}

// Cross consumes levels best-first while they cross aggPrice, until aggQty
// is exhausted. Each consumption is logged as a speculative fill and
// executed as a removal with count delta 0; trades settle the counts later.
// Returns the total quantity consumed.
func (p *PriceLevels) Cross(aggPrice, aggQty int64) int64 {
	limit := p.storeKey(aggPrice)
	var consumed int64
	for consumed < aggQty {
		k, lv, ok := p.tree.Min()
		if !ok || k > limit {
			break
		}
		take := aggQty - consumed
		if lv.qty < take {
			take = lv.qty
		}
		countAt := lv.count
		p.fills = append(p.fills, specFill{price: p.realPrice(k), qty: take, count: countAt})
		p.pendingQty += take
		if take == lv.qty {
			p.pendingCount += countAt
		} else {
			p.pendingCount++
		}
		p.RemoveLiquidity(p.realPrice(k), take, 0)
		consumed += take
	}
	return consumed
}

// PendingQty returns the unconfirmed speculatively consumed quantity.
func (p *PriceLevels) PendingQty() int64 { return p.pendingQty }

// ReconcileCrossFill draws min(fillQty, pending) from the head of the
// speculative-fill log and returns the reconciled portion. Any residual is
// the caller's to remove as ordinary liquidity.
func (p *PriceLevels) ReconcileCrossFill(fillQty int64) int64 {
	take := fillQty
	if p.pendingQty < take {
		take = p.pendingQty
	}
	p.pendingQty -= take
	rem := take
	for rem > 0 && len(p.fills) > 0 {
		f := &p.fills[0]
		c := rem
		if f.qty < c {
			c = f.qty
		}
		f.qty -= c
		rem -= c
		if f.qty == 0 {
			p.fills = p.fills[1:]
		}
	}
	return take
}

// ReconcileCrossCount settles n passive orders fully consumed by confirmed
// trades.
func (p *PriceLevels) ReconcileCrossCount(n int32) {
	p.pendingCount -= n
	if p.pendingCount < 0 {
		p.pendingCount = 0
	}
}

// UnreserveCrossFill releases qty of pending consumption attributed to a
// cancelled passive order at price, dropping its portions from the fill log
// and one order from the pending count.
func (p *PriceLevels) UnreserveCrossFill(price, qty int64) {
	rem := qty
	for i := 0; i < len(p.fills) && rem > 0; {
		f := &p.fills[i]
		if f.price != price {
			i++
			continue
		}
		c := rem
		if f.qty < c {
			c = f.qty
		}
		f.qty -= c
		rem -= c
		if f.qty == 0 {
			p.fills = append(p.fills[:i], p.fills[i+1:]...)
		} else {
			i++
		}
	}
	// Fall back to oldest-first when the log no longer carries the price.
	for i := 0; i < len(p.fills) && rem > 0; {
		f := &p.fills[i]
		c := rem
		if f.qty < c {
			c = f.qty
		}
		f.qty -= c
		rem -= c
		if f.qty == 0 {
			p.fills = append(p.fills[:i], p.fills[i+1:]...)
		} else {
			i++
		}
	}
	p.pendingQty -= qty
	if p.pendingQty < 0 {
		p.pendingQty = 0
	}
	p.pendingCount--
	if p.pendingCount < 0 {
		p.pendingCount = 0
	}
}

// Uncross restores the unconfirmed tail of the speculative fills. Confirmed
// portions were already drained from the head by ReconcileCrossFill. A level
// that still exists gets its quantity back with count delta 0; a fully
// erased one is re-created with its saved count.
func (p *PriceLevels) Uncross() {
	for i := range p.fills {
		f := p.fills[i]
		if f.qty == 0 {
			continue
		}
		if p.tree.Find(p.storeKey(f.price)) != nil {
			p.AddLiquidity(f.price, f.qty, 0)
		} else {
			p.AddLiquidity(f.price, f.qty, f.count)
		}
	}
	p.fills = p.fills[:0]
	p.pendingQty = 0
	p.pendingCount = 0
}

// PendingCrossVWAP returns the volume-weighted average price and total
// quantity of the unconfirmed fills.
func (p *PriceLevels) PendingCrossVWAP() (int64, int64) {
	var notional, qty int64
	for _, f := range p.fills {
		notional += f.price * f.qty
		qty += f.qty
	}
	if qty == 0 {
		return 0, 0
	}
	return notional / qty, qty
}

// ClearCrossFills discards the log after a crossing completes normally.
func (p *PriceLevels) ClearCrossFills() {
	p.fills = p.fills[:0]
	p.pendingQty = 0
	p.pendingCount = 0
}

// TopLevels projects the visible window into out, best-first, and returns
// the number of populated levels.
func (p *PriceLevels) TopLevels(out []codec.SnapLevel) int {
	n := 0
	p.tree.Ascend(func(k int64, lv *level) bool {
		if n >= len(out) {
			return false
		}
		out[n] = codec.SnapLevel{Price: p.realPrice(k), Qty: lv.qty, NumOrders: lv.count}
		n++
		return true
	})
	return n
}

// Size returns the number of levels on this side.
func (p *PriceLevels) Size() int { return p.tree.Size() }
