package book

import (
	"testing"

	"mbo/codec"
)

func TestNewOrderCrossConsumesSpeculatively(t *testing.T) {
	h := newHarness(t, Options{Crossing: true})
	h.run(func(b *Book) { b.NewOrder(9, true, 100, 8) })
	ev := h.run(func(b *Book) { b.NewOrder(10, false, 100, 5) })

	if len(ev.ticks) != 1 {
		t.Fatalf("ticks = %+v", ev.ticks)
	}
	tick := ev.ticks[0]
	if tick.Code != codec.TickNewCross || tick.IsExchTick || tick.Price != 100 || tick.Qty != 5 || tick.OrderID != 10 {
		t.Fatalf("tick = %+v", tick)
	}
	if len(ev.ups) != 1 {
		t.Fatalf("ups = %+v", ev.ups)
	}
	u := ev.ups[0]
	if !u.IsAsk || u.Index != 0 || u.QtyDelta != -5 || u.CountDelta != 0 {
		t.Fatalf("update = %+v", u)
	}
	if len(ev.ins) != 0 {
		t.Fatalf("no residual expected: %+v", ev.ins)
	}
	if !h.b.CrossingActive() {
		t.Fatal("crossing must be active")
	}
	if got := h.b.Side(true).PendingQty(); got != 5 {
		t.Fatalf("pending = %d", got)
	}
}

func TestTradeConfirmsCrossing(t *testing.T) {
	h := newHarness(t, Options{Crossing: true})
	h.run(func(b *Book) { b.NewOrder(9, true, 100, 8) })
	h.run(func(b *Book) { b.NewOrder(10, false, 100, 5) })
	ev := h.run(func(b *Book) { b.Trade(10, 9, 100, 5) })

	if len(ev.ticks) != 1 {
		t.Fatalf("ticks = %+v", ev.ticks)
	}
	tick := ev.ticks[0]
	if tick.Code != codec.TickTrade || tick.Price != 100 || tick.Qty != 5 || tick.OrderID != 10 || tick.OrderID2 != 9 {
		t.Fatalf("tick = %+v", tick)
	}
	// Two zero-delta touches plus the passive order's zero-qty settle.
	if len(ev.ups) != 3 {
		t.Fatalf("ups = %+v", ev.ups)
	}
	if ev.ups[0].IsAsk || ev.ups[0].Index != 0 || ev.ups[0].QtyDelta != 0 {
		t.Fatalf("bid touch = %+v", ev.ups[0])
	}
	if !ev.ups[1].IsAsk || ev.ups[1].Index != 0 || ev.ups[1].QtyDelta != 0 {
		t.Fatalf("ask touch = %+v", ev.ups[1])
	}
	if u := ev.ups[2]; !u.IsAsk || u.QtyDelta != 0 || u.CountDelta != 0 {
		t.Fatalf("settle = %+v", u)
	}
	if ev.completes != 1 {
		t.Fatalf("completes = %d", ev.completes)
	}
	if h.b.CrossingActive() {
		t.Fatal("crossing must be complete")
	}
	if got := h.level(true, 0); got != (codec.SnapLevel{Price: 100, Qty: 3, NumOrders: 1}) {
		t.Fatalf("asks[0] = %+v", got)
	}
	if h.b.Side(false).Size() != 0 {
		t.Fatal("aggressor must not rest")
	}
}

func TestCrossResidualRestsOnOwnLevel(t *testing.T) {
	h := newHarness(t, Options{Crossing: true})
	h.run(func(b *Book) { b.NewOrder(9, true, 100, 8) })
	ev := h.run(func(b *Book) { b.NewOrder(10, false, 100, 10) })

	if len(ev.ins) != 1 {
		t.Fatalf("ins = %+v", ev.ins)
	}
	in := ev.ins[0]
	if in.IsAsk || in.Index != 0 || !in.Shift || in.Price != 100 || in.Qty != 2 || in.Count != 1 {
		t.Fatalf("residual insert = %+v", in)
	}
}

func TestAggressorCancelRestoresBook(t *testing.T) {
	h := newHarness(t, Options{Crossing: true})
	h.run(func(b *Book) { b.NewOrder(9, true, 100, 8) })
	h.run(func(b *Book) { b.NewOrder(11, true, 101, 4) })

	before := make([]codec.SnapLevel, codec.Depth)
	n := h.b.Side(true).TopLevels(before)

	h.run(func(b *Book) { b.NewOrder(10, false, 101, 10) })
	ev := h.run(func(b *Book) { b.CancelOrder(10, false) })

	if len(ev.ticks) != 2 {
		t.Fatalf("ticks = %+v", ev.ticks)
	}
	c := ev.ticks[0]
	if c.Code != codec.TickSelfTrade || c.IsAsk {
		t.Fatalf("C tick = %+v", c)
	}
	// VWAP of 8@100 + 2@101.
	if c.Price != (100*8+101*2)/10 || c.Qty != 10 {
		t.Fatalf("C vwap = %d qty = %d", c.Price, c.Qty)
	}
	s := ev.ticks[1]
	if s.Code != codec.TickSelfTradeNote || s.IsExchTick || s.Price != 101 || s.Qty != 10 {
		t.Fatalf("S tick = %+v", s)
	}
	if ev.completes != 1 {
		t.Fatalf("completes = %d", ev.completes)
	}
	if h.b.CrossingActive() {
		t.Fatal("crossing must be cleared")
	}

	after := make([]codec.SnapLevel, codec.Depth)
	if m := h.b.Side(true).TopLevels(after); m != n {
		t.Fatalf("level count %d != %d", m, n)
	}
	for i := 0; i < n; i++ {
		if before[i] != after[i] {
			t.Fatalf("level %d: %+v != %+v", i, after[i], before[i])
		}
	}
	if h.b.Side(false).Size() != 0 {
		t.Fatal("aggressor residual must be removed")
	}
}

func TestPassiveSelfTradeCancel(t *testing.T) {
	h := newHarness(t, Options{Crossing: true})
	h.run(func(b *Book) { b.NewOrder(9, true, 100, 8) })
	h.run(func(b *Book) { b.NewOrder(10, false, 100, 10) })
	ev := h.run(func(b *Book) { b.CancelOrder(9, true) })

	if len(ev.ticks) != 2 {
		t.Fatalf("ticks = %+v", ev.ticks)
	}
	c := ev.ticks[0]
	if c.Code != codec.TickSelfTrade || c.IsAsk || c.Price != 100 || c.Qty != 8 || c.OrderID != 9 {
		t.Fatalf("C tick = %+v", c)
	}
	s := ev.ticks[1]
	if s.Code != codec.TickSelfTradeNote || !s.IsAsk || s.Price != 100 || s.Qty != 8 {
		t.Fatalf("S tick = %+v", s)
	}
	if ev.completes != 1 {
		t.Fatalf("completes = %d", ev.completes)
	}
	if h.b.CrossingActive() {
		t.Fatal("crossing must be cleared")
	}
	// Freed 8 re-crosses against nothing and joins the residual 2.
	if got := h.level(false, 0); got != (codec.SnapLevel{Price: 100, Qty: 10, NumOrders: 1}) {
		t.Fatalf("bids[0] = %+v", got)
	}
	if h.b.Side(true).Size() != 0 {
		t.Fatal("ask side must stay consumed")
	}
}

func TestPassiveCancelRecrossWithoutAlternativeLiquidity(t *testing.T) {
	h := newHarness(t, Options{Crossing: true})
	h.run(func(b *Book) { b.NewOrder(9, true, 100, 8) })
	h.run(func(b *Book) { b.NewOrder(11, true, 100, 8) })
	// Aggressor consumes the whole level (16).
	h.run(func(b *Book) { b.NewOrder(10, false, 100, 16) })
	// Order 9's portion frees 8, but order 11 was consumed too; the re-cross
	// finds nothing else, so the full freed qty rests.
	ev := h.run(func(b *Book) { b.CancelOrder(9, true) })

	if h.b.CrossingActive() {
		// Order 11's consumption is still pending: crossing stays active.
		if got := h.b.Side(true).PendingQty(); got != 8 {
			t.Fatalf("pending = %d", got)
		}
	} else {
		t.Fatal("crossing must stay active while order 11 is unconfirmed")
	}
	if ev.completes != 0 {
		t.Fatal("no completion while pending remains")
	}
	if got := h.level(false, 0); got != (codec.SnapLevel{Price: 100, Qty: 8, NumOrders: 1}) {
		t.Fatalf("bids[0] = %+v", got)
	}
}

func TestPassiveCancelRecrossExactMatch(t *testing.T) {
	h := newHarness(t, Options{Crossing: true})
	// Two crossable asks; the aggressor's qty runs out on the better one,
	// leaving order 9's level as alternative liquidity for a re-cross.
	h.run(func(b *Book) { b.NewOrder(12, true, 99, 5) })
	h.run(func(b *Book) { b.NewOrder(9, true, 100, 5) })
	h.run(func(b *Book) { b.NewOrder(10, false, 100, 5) })

	ev := h.run(func(b *Book) { b.CancelOrder(9, true) })
	if h.b.CrossingActive() {
		if got := h.b.Side(true).PendingQty(); got != 5 {
			t.Fatalf("pending = %d", got)
		}
	} else {
		t.Fatal("re-crossed consumption must keep the crossing active")
	}
	if ev.completes != 0 {
		t.Fatal("no completion while re-crossed qty is unconfirmed")
	}
	// Exact match: no residual add on the aggressor's side.
	if h.b.Side(false).Size() != 0 {
		t.Fatal("no bid residual expected")
	}
	if h.b.Side(true).Size() != 0 {
		t.Fatal("the 100 level must be consumed by the re-cross")
	}
}

func TestModifyCrossEmitsB(t *testing.T) {
	h := newHarness(t, Options{Crossing: true})
	h.run(func(b *Book) { b.NewOrder(9, true, 100, 8) })
	h.run(func(b *Book) { b.NewOrder(10, false, 98, 5) })
	ev := h.run(func(b *Book) { b.ModifyOrder(10, 100, 5) })

	if len(ev.ticks) != 1 {
		t.Fatalf("ticks = %+v", ev.ticks)
	}
	tick := ev.ticks[0]
	if tick.Code != codec.TickModifyCross || tick.IsExchTick || tick.Price != 100 || tick.Qty != 5 {
		t.Fatalf("tick = %+v", tick)
	}
	if !h.b.CrossingActive() {
		t.Fatal("crossing must be active")
	}
}

func TestModifyCrossFullConsumptionEmitsXAtOriginalPrice(t *testing.T) {
	h := newHarness(t, Options{Crossing: true})
	h.run(func(b *Book) { b.NewOrder(9, true, 100, 8) })
	h.run(func(b *Book) { b.NewOrder(10, false, 98, 5) })
	h.run(func(b *Book) { b.ModifyOrder(10, 100, 5) })
	ev := h.run(func(b *Book) { b.Trade(10, 9, 100, 5) })

	if len(ev.ticks) != 2 {
		t.Fatalf("ticks = %+v", ev.ticks)
	}
	x := ev.ticks[1]
	if x.Code != codec.TickCancel || x.IsExchTick {
		t.Fatalf("X tick = %+v", x)
	}
	// The X reports the original resting price and qty, not the modified
	// ones.
	if x.Price != 98 || x.Qty != 5 || x.OrderID != 10 {
		t.Fatalf("X tick = %+v", x)
	}
	// No CrossingComplete: the direct X replaces the synthesis.
	if ev.completes != 0 {
		t.Fatalf("completes = %d", ev.completes)
	}
	// The trailing zero-delta update attributes the X to the original level.
	last := ev.ups[len(ev.ups)-1]
	if last.IsAsk || last.Index != 0 || last.QtyDelta != 0 || last.CountDelta != 0 {
		t.Fatalf("attribution update = %+v", last)
	}
	if h.b.CrossingActive() {
		t.Fatal("crossing must be cleared")
	}
}

func TestNewOrderDuringCrossingPanics(t *testing.T) {
	h := newHarness(t, Options{Crossing: true})
	h.run(func(b *Book) { b.NewOrder(9, true, 100, 8) })
	h.run(func(b *Book) { b.NewOrder(10, false, 100, 5) })
	defer func() {
		if recover() == nil {
			t.Fatal("new order during crossing must panic")
		}
	}()
	h.run(func(b *Book) { b.NewOrder(12, false, 99, 1) })
}
