package validate

import (
	"testing"

	"mbo/codec"
)

func base() codec.BookSnapshot {
	var s codec.BookSnapshot
	s.RecordIdx = 5
	s.Token = 1
	s.Event = codec.InputRecord{RecordIdx: 5, Token: 1, OrderID: 2, Price: 100, Qty: 10, TickType: codec.TickNew}
	s.Bids[0] = codec.SnapLevel{Price: 100, Qty: 10, NumOrders: 1}
	s.Asks[0] = codec.SnapLevel{Price: 105, Qty: 3, NumOrders: 1}
	s.BidAffectedLvl = 0
	s.AskAffectedLvl = codec.Depth
	s.BidFilledLvls = 1
	s.AskFilledLvls = 1
	return s
}

func code(t *testing.T, err error) int {
	t.Helper()
	mm, ok := err.(*MismatchError)
	if !ok {
		t.Fatalf("expected MismatchError, got %v", err)
	}
	return mm.Code
}

func TestCompareEqual(t *testing.T) {
	got, want := base(), base()
	if err := Compare(&got, &want, Options{}); err != nil {
		t.Fatal(err)
	}
}

func TestCompareBidLevelCode(t *testing.T) {
	got, want := base(), base()
	got.Bids[3] = codec.SnapLevel{Price: 1, Qty: 1, NumOrders: 1}
	if c := code(t, Compare(&got, &want, Options{})); c != -4 {
		t.Fatalf("code = %d", c)
	}
}

func TestCompareAskLevelCode(t *testing.T) {
	got, want := base(), base()
	want.Asks[0].Qty = 4
	if c := code(t, Compare(&got, &want, Options{})); c != 1 {
		t.Fatalf("code = %d", c)
	}
}

func TestCompareMetadataCodes(t *testing.T) {
	got, want := base(), base()
	got.BidAffectedLvl = 2
	if c := code(t, Compare(&got, &want, Options{})); c != CodeBidAffected {
		t.Fatalf("code = %d", c)
	}

	got, want = base(), base()
	got.Event.Qty = 11
	if c := code(t, Compare(&got, &want, Options{})); c != CodeEvent {
		t.Fatalf("code = %d", c)
	}
}

func TestLTPSkippedByDefault(t *testing.T) {
	got, want := base(), base()
	got.LTP = 999
	got.LTQ = 1
	if err := Compare(&got, &want, Options{}); err != nil {
		t.Fatalf("ltp must be skipped by default: %v", err)
	}
	if c := code(t, Compare(&got, &want, Options{StrictLTP: true})); c != CodeLTP {
		t.Fatalf("code = %d", c)
	}
}
