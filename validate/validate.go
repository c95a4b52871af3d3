// Package validate compares reconstructed snapshots against a reference
// stream.
package validate

import (
	"fmt"

	"mbo/codec"
)

// Metadata mismatch codes. Level mismatches are reported as -(i+1) for bid
// level i and +(i+1) for ask level i.
const (
	CodeRecordIdx   = 100
	CodeToken       = 101
	CodeEvent       = 102
	CodeLTP         = 103
	CodeLTQ         = 104
	CodeBidAffected = 105
	CodeAskAffected = 106
	CodeBidFilled   = 107
	CodeAskFilled   = 108
	CodeSide        = 109
)

// Options control comparison strictness.
type Options struct {
	// StrictLTP also compares last-trade price/qty. Off by default: the
	// reference stream is not known to populate these.
	StrictLTP bool
}

// MismatchError reports the first divergence between a reconstructed
// snapshot and its reference.
type MismatchError struct {
	RecordIdx uint32
	Code      int
}

func (e *MismatchError) Error() string {
	return mismatchString(e.RecordIdx, e.Code)
}

func mismatchString(idx uint32, code int) string {
	switch {
	case code < 0:
		return fmt.Sprintf("validate: record %d: bid level %d mismatch", idx, -code-1)
	case code < 100:
		return fmt.Sprintf("validate: record %d: ask level %d mismatch", idx, code-1)
	default:
		return fmt.Sprintf("validate: record %d: metadata mismatch (code %d)", idx, code)
	}
}

// Compare returns nil when got matches want, else a MismatchError for the
// first divergence.
func Compare(got, want *codec.BookSnapshot, opts Options) error {
	fail := func(code int) error {
		return &MismatchError{RecordIdx: want.RecordIdx, Code: code}
	}
	if got.RecordIdx != want.RecordIdx {
		return fail(CodeRecordIdx)
	}
	if got.Token != want.Token {
		return fail(CodeToken)
	}
	if got.Event != want.Event {
		return fail(CodeEvent)
	}
	if opts.StrictLTP {
		if got.LTP != want.LTP {
			return fail(CodeLTP)
		}
		if got.LTQ != want.LTQ {
			return fail(CodeLTQ)
		}
	}
	if got.BidAffectedLvl != want.BidAffectedLvl {
		return fail(CodeBidAffected)
	}
	if got.AskAffectedLvl != want.AskAffectedLvl {
		return fail(CodeAskAffected)
	}
	if got.BidFilledLvls != want.BidFilledLvls {
		return fail(CodeBidFilled)
	}
	if got.AskFilledLvls != want.AskFilledLvls {
		return fail(CodeAskFilled)
	}
	if got.IsAsk != want.IsAsk {
		return fail(CodeSide)
	}
	for i := 0; i < codec.Depth; i++ {
		if got.Bids[i] != want.Bids[i] {
			return fail(-(i + 1))
		}
		if got.Asks[i] != want.Asks[i] {
			return fail(i + 1)
		}
	}
	return nil
}
