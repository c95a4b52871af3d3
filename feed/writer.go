package feed

import (
	"fmt"
	"io"

	"mbo/codec"
)

// WriteSnapshot appends the packed form of s to w.
func WriteSnapshot(w io.Writer, s *codec.BookSnapshot) error {
	var buf [codec.SnapshotSize]byte
	s.Marshal(buf[:])
	_, err := w.Write(buf[:])
	return err
}

// DumpSnapshot writes a human-readable rendering of s to w.
func DumpSnapshot(w io.Writer, s *codec.BookSnapshot) error {
	_, err := fmt.Fprintf(w, "#%d token=%d ev=%c id=%d id2=%d px=%d qty=%d side=%s ltp=%d ltq=%d aff=%d/%d filled=%d/%d\n",
		s.RecordIdx, s.Token, s.Event.TickType, s.Event.OrderID, s.Event.OrderID2,
		s.Event.Price, s.Event.Qty, sideString(s.IsAsk), s.LTP, s.LTQ,
		s.BidAffectedLvl, s.AskAffectedLvl, s.BidFilledLvls, s.AskFilledLvls)
	if err != nil {
		return err
	}
	for i := 0; i < codec.Depth; i++ {
		b, a := s.Bids[i], s.Asks[i]
		if b.Price == 0 && a.Price == 0 {
			break
		}
		if _, err := fmt.Fprintf(w, "  [%2d] %10d x %-8d (%d) | %10d x %-8d (%d)\n",
			i, b.Price, b.Qty, b.NumOrders, a.Price, a.Qty, a.NumOrders); err != nil {
			return err
		}
	}
	return nil
}

func sideString(isAsk bool) string {
	if isAsk {
		return "ask"
	}
	return "bid"
}
