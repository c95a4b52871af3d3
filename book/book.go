package book

import (
	"fmt"

	"mbo/codec"
)

// Tiebreak selects the aggressor side of a trade when both legs (or
// neither) are resting in the book, a shape the usual "new order crosses
// resting" protocol does not produce.
type Tiebreak int

const (
	// TiebreakLastOrder treats the side whose id matches the most recent
	// new/modify as the aggressor.
	TiebreakLastOrder Tiebreak = iota
	// TiebreakBid always treats the bid side as the aggressor.
	TiebreakBid
)

// Options configure per-book behavior.
type Options struct {
	// Crossing enables the exchange's crossing protocol: aggressive orders
	// consume opposite liquidity speculatively ahead of their confirming
	// trades.
	Crossing bool
	Tiebreak Tiebreak
}

// orderInfo is the exchange-authoritative remaining state of one live order.
type orderInfo struct {
	isAsk bool
	price int64
	qty   int32
}

// crossingState tracks the single active crossing of a book.
type crossingState struct {
	aggID        uint64
	aggIsAsk     bool
	aggPrice     int64
	origPrice    int64 // resting price before a modify-origin crossing
	aggOrigQty   int32 // resting qty before a modify-origin crossing
	originModify bool
	origAffected int
	aggOnLevel   bool // residual actually landed on the aggressor's side
}

// Book mirrors the exchange's per-instrument order stream into aggregated
// price levels and a delta stream. All event processing for a token is
// serialized through its book.
type Book struct {
	token       uint32
	bids        *PriceLevels
	asks        *PriceLevels
	orders      map[uint64]orderInfo
	em          *codec.Emitter
	opts        Options
	lastOrderID uint64
	cross       *crossingState
}

// New builds a book wired to em. The emitter reference is handed to both
// sides here and never re-seated.
func New(token uint32, em *codec.Emitter, opts Options) *Book {
	return &Book{
		token:  token,
		bids:   NewPriceLevels(false, em),
		asks:   NewPriceLevels(true, em),
		orders: make(map[uint64]orderInfo, 1024),
		em:     em,
		opts:   opts,
	}
}

func (b *Book) Token() uint32 { return b.token }

// Side returns the levels for one side.
func (b *Book) Side(isAsk bool) *PriceLevels {
	if isAsk {
		return b.asks
	}
	return b.bids
}

func (b *Book) opposite(isAsk bool) *PriceLevels {
	return b.Side(!isAsk)
}

// CrossingActive reports whether a crossing is pending reconciliation.
func (b *Book) CrossingActive() bool { return b.cross != nil }

// Project fills s with the book's current top-20 view.
func (b *Book) Project(s *codec.BookSnapshot) {
	s.Token = b.token
	s.Bids = [codec.Depth]codec.SnapLevel{}
	s.Asks = [codec.Depth]codec.SnapLevel{}
	b.bids.TopLevels(s.Bids[:])
	b.asks.TopLevels(s.Asks[:])
}

// NewOrder handles an exchange 'N' record. With crossing enabled an
// aggressive order reports a preliminary 'A' view and consumes opposite
// liquidity speculatively; the confirming trades arrive later.
func (b *Book) NewOrder(id uint64, isAsk bool, price int64, qty int32) {
	if id == 0 {
		return
	}
	if b.cross != nil {
		panic(fmt.Sprintf("book %d: new order %d during active crossing", b.token, id))
	}
	opp := b.opposite(isAsk)
	willCross := b.opts.Crossing && opp.WouldCross(price)
	if willCross {
		b.em.Tick(&codec.TickInfo{Code: codec.TickNewCross, IsExchTick: false, IsAsk: isAsk, Price: price, Qty: qty, OrderID: id})
	} else {
		b.em.Tick(&codec.TickInfo{Code: codec.TickNew, IsExchTick: true, IsAsk: isAsk, Price: price, Qty: qty, OrderID: id})
	}
	var consumed int64
	if b.opts.Crossing {
		consumed = opp.Cross(price, int64(qty))
	}
	if (consumed > 0) != willCross {
		panic(fmt.Sprintf("book %d: crossing prediction diverged for order %d", b.token, id))
	}
	b.orders[id] = orderInfo{isAsk: isAsk, price: price, qty: qty}
	b.lastOrderID = id
	onLevel := false
	if residual := int64(qty) - consumed; residual > 0 {
		b.Side(isAsk).AddLiquidity(price, residual, 1)
		onLevel = true
	}
	if consumed > 0 {
		b.cross = &crossingState{
			aggID:        id,
			aggIsAsk:     isAsk,
			aggPrice:     price,
			origPrice:    price,
			aggOrigQty:   qty,
			origAffected: codec.Depth,
			aggOnLevel:   onLevel,
		}
	}
}

// ModifyOrder handles an exchange 'M' record. Unknown ids are ignored. A
// price move that crosses reports a preliminary 'B' view.
func (b *Book) ModifyOrder(id uint64, newPrice int64, newQty int32) {
	info, ok := b.orders[id]
	if !ok {
		return
	}
	if b.cross != nil {
		panic(fmt.Sprintf("book %d: modify of order %d during active crossing", b.token, id))
	}
	own := b.Side(info.isAsk)
	if newPrice == info.price {
		// Same price reduces to one add or remove with no count change.
		b.em.Tick(&codec.TickInfo{Code: codec.TickModify, IsExchTick: true, IsAsk: info.isAsk, Price: newPrice, Qty: newQty, OrderID: id})
		if delta := int64(newQty) - int64(info.qty); delta > 0 {
			own.AddLiquidity(newPrice, delta, 0)
		} else if delta < 0 {
			own.RemoveLiquidity(newPrice, -delta, 0)
		}
		info.qty = newQty
		b.orders[id] = info
		b.lastOrderID = id
		return
	}
	origAffected := own.LevelIndex(info.price)
	// Classification peeks the opposite side only, so it is unaffected by
	// the own-side removal below.
	opp := b.opposite(info.isAsk)
	willCross := b.opts.Crossing && opp.WouldCross(newPrice)
	if willCross {
		b.em.Tick(&codec.TickInfo{Code: codec.TickModifyCross, IsExchTick: false, IsAsk: info.isAsk, Price: newPrice, Qty: newQty, OrderID: id})
	} else {
		b.em.Tick(&codec.TickInfo{Code: codec.TickModify, IsExchTick: true, IsAsk: info.isAsk, Price: newPrice, Qty: newQty, OrderID: id})
	}
	own.RemoveLiquidity(info.price, int64(info.qty), 1)
	var consumed int64
	if b.opts.Crossing {
		consumed = opp.Cross(newPrice, int64(newQty))
	}
	if (consumed > 0) != willCross {
		panic(fmt.Sprintf("book %d: crossing prediction diverged for modify %d", b.token, id))
	}
	oldPrice, oldQty := info.price, info.qty
	info.price = newPrice
	info.qty = newQty
	b.orders[id] = info
	b.lastOrderID = id
	onLevel := false
	if residual := int64(newQty) - consumed; residual > 0 {
		own.AddLiquidity(newPrice, residual, 1)
		onLevel = true
	}
	if consumed > 0 {
		b.cross = &crossingState{
			aggID:        id,
			aggIsAsk:     info.isAsk,
			aggPrice:     newPrice,
			origPrice:    oldPrice,
			aggOrigQty:   oldQty,
			originModify: true,
			origAffected: origAffected,
			aggOnLevel:   onLevel,
		}
	}
}

// CancelOrder handles an exchange 'X' record. isAsk is the side flag from
// the input record; it only matters when the id is unknown. During an active
// crossing, cancels of the aggressor or of a crossed passive order are the
// exchange's self-trade cancellation and unwind speculative state.
func (b *Book) CancelOrder(id uint64, isAsk bool) {
	info, ok := b.orders[id]
	if !ok {
		b.em.Tick(&codec.TickInfo{Code: codec.TickCancel, IsExchTick: true, IsAsk: isAsk, OrderID: id})
		return
	}
	if b.cross != nil {
		if id == b.cross.aggID {
			b.cancelAggressor(id, info)
			return
		}
		crossed := b.opposite(b.cross.aggIsAsk)
		if info.isAsk != b.cross.aggIsAsk && crossed.Crosses(info.price, b.cross.aggPrice) {
			consumedFromOrder := int64(info.qty)
			if pq := crossed.PendingQty(); pq < consumedFromOrder {
				consumedFromOrder = pq
			}
			if consumedFromOrder > 0 {
				b.cancelPassive(id, info, consumedFromOrder)
				return
			}
		}
	}
	b.em.Tick(&codec.TickInfo{Code: codec.TickCancel, IsExchTick: true, IsAsk: info.isAsk, Price: info.price, Qty: info.qty, OrderID: id})
	b.Side(info.isAsk).RemoveLiquidity(info.price, int64(info.qty), 1)
	delete(b.orders, id)
}

// cancelAggressor unwinds the whole crossing: the exchange cancelled the
// aggressive order itself, so the unconfirmed consumption is restored.
func (b *Book) cancelAggressor(id uint64, info orderInfo) {
	cs := b.cross
	opp := b.opposite(cs.aggIsAsk)
	vwap, pq := opp.PendingCrossVWAP()
	b.em.Tick(&codec.TickInfo{Code: codec.TickSelfTrade, IsExchTick: true, IsAsk: cs.aggIsAsk, Price: vwap, Qty: int32(pq), OrderID: id, OrderID2: cs.aggID})
	residualOnLevel := int64(info.qty) - opp.PendingQty()
	opp.Uncross()
	if cs.aggOnLevel && residualOnLevel > 0 {
		b.Side(cs.aggIsAsk).RemoveLiquidity(info.price, residualOnLevel, 1)
	}
	b.em.Tick(&codec.TickInfo{Code: codec.TickSelfTradeNote, IsExchTick: false, IsAsk: cs.aggIsAsk, Price: info.price, Qty: info.qty, OrderID: id})
	b.em.CrossingComplete()
	b.cross = nil
	delete(b.orders, id)
}

// cancelPassive handles the self-trade cancel of a resting order that was
// speculatively consumed: release its portion, look for alternative
// liquidity at the aggressor's price, and park any freed residual on the
// aggressor's own level.
func (b *Book) cancelPassive(id uint64, info orderInfo, consumedFromOrder int64) {
	cs := b.cross
	crossed := b.opposite(cs.aggIsAsk)
	vwap, pq := crossed.PendingCrossVWAP()
	b.em.Tick(&codec.TickInfo{Code: codec.TickSelfTrade, IsExchTick: true, IsAsk: cs.aggIsAsk, Price: vwap, Qty: int32(pq), OrderID: id, OrderID2: cs.aggID})
	visible := int64(info.qty) - consumedFromOrder
	crossed.RemoveLiquidity(info.price, visible, 1)
	crossed.UnreserveCrossFill(info.price, consumedFromOrder)
	reconsumed := crossed.Cross(cs.aggPrice, consumedFromOrder)
	if residual := consumedFromOrder - reconsumed; residual > 0 {
		var cd int32
		if !cs.aggOnLevel {
			cd = 1
			cs.aggOnLevel = true
		}
		b.Side(cs.aggIsAsk).AddLiquidity(cs.aggPrice, residual, cd)
	}
	b.em.Tick(&codec.TickInfo{Code: codec.TickSelfTradeNote, IsExchTick: false, IsAsk: info.isAsk, Price: info.price, Qty: info.qty, OrderID: id})
	if crossed.PendingQty() == 0 {
		crossed.ClearCrossFills()
		b.em.CrossingComplete()
		b.cross = nil
	}
	delete(b.orders, id)
}

// Trade handles an exchange 'T' record. bidID and askID are the two legs; an
// id of 0 or an id absent from the book marks the aggressor side (IOC and
// market shapes). Confirmed fills drain the speculative log first; any
// remainder is ordinary level removal.
func (b *Book) Trade(bidID, askID uint64, price int64, fillQty int32) {
	bidInfo, bidOk := b.orders[bidID]
	askInfo, askOk := b.orders[askID]
	if bidID == 0 {
		bidOk = false
	}
	if askID == 0 {
		askOk = false
	}
	aggIsAsk := b.aggressorSide(bidID, askID, bidOk, askOk)
	aggID, aggOk := bidID, bidOk
	if aggIsAsk {
		aggID, aggOk = askID, askOk
	}
	code := byte(codec.TickTrade)
	switch {
	case aggID == 0:
		code = codec.TickIOCCross
	case !aggOk:
		code = codec.TickMarketCross
	}
	b.em.Tick(&codec.TickInfo{Code: code, IsExchTick: true, IsAsk: aggIsAsk, Price: price, Qty: fillQty, OrderID: bidID, OrderID2: askID})

	passive := b.Side(!aggIsAsk)
	reconciled := passive.ReconcileCrossFill(int64(fillQty))
	remaining := int64(fillQty) - reconciled
	if reconciled > 0 {
		// Zero-delta touches so the receiver attributes this trade to both
		// tops.
		b.em.Update(false, 0, 0, 0)
		b.em.Update(true, 0, 0, 0)
	}
	if bidOk {
		b.settleLeg(bidID, bidInfo, fillQty, remaining, !aggIsAsk)
	}
	if askOk {
		b.settleLeg(askID, askInfo, fillQty, remaining, aggIsAsk)
	}

	if b.cross != nil {
		crossed := b.opposite(b.cross.aggIsAsk)
		if crossed.PendingQty() == 0 {
			crossed.ClearCrossFills()
			cs := b.cross
			if _, live := b.orders[cs.aggID]; !live && cs.originModify {
				// The modify was fully consumed: attribute the disappearance
				// to the original resting level.
				b.em.Tick(&codec.TickInfo{Code: codec.TickCancel, IsExchTick: false, IsAsk: cs.aggIsAsk, Price: cs.origPrice, Qty: cs.aggOrigQty, OrderID: cs.aggID})
				b.em.Update(cs.aggIsAsk, cs.origAffected, 0, 0)
			} else {
				b.em.CrossingComplete()
			}
			b.cross = nil
		}
	}
}

// settleLeg applies one trade leg to its order record and level.
func (b *Book) settleLeg(id uint64, info orderInfo, fillQty int32, remaining int64, isAggressorLeg bool) {
	if fillQty > info.qty {
		panic(fmt.Sprintf("book %d: trade overfill order=%d fill=%d qty=%d", b.token, id, fillQty, info.qty))
	}
	info.qty -= fillQty
	full := info.qty == 0
	if isAggressorLeg && b.cross != nil && id == b.cross.aggID {
		// The aggressor's traded quantity never rested on its own level.
		if full {
			delete(b.orders, id)
		} else {
			b.orders[id] = info
		}
		return
	}
	var cd int32
	if full {
		cd = 1
	}
	b.Side(info.isAsk).RemoveLiquidity(info.price, remaining, cd)
	if full && b.cross != nil && info.isAsk != b.cross.aggIsAsk {
		b.opposite(b.cross.aggIsAsk).ReconcileCrossCount(1)
	}
	if full {
		delete(b.orders, id)
	} else {
		b.orders[id] = info
	}
}

// aggressorSide picks the liquidity-taking side of a trade.
func (b *Book) aggressorSide(bidID, askID uint64, bidOk, askOk bool) bool {
	if bidOk != askOk {
		// The resting side is passive.
		return bidOk
	}
	if b.opts.Tiebreak == TiebreakBid {
		return false
	}
	if askID != 0 && askID == b.lastOrderID {
		return true
	}
	if bidID != 0 && bidID == b.lastOrderID {
		return false
	}
	if b.cross != nil {
		return b.cross.aggIsAsk
	}
	return false
}
