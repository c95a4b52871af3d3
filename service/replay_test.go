package service

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"mbo/book"
	"mbo/codec"
	"mbo/engine"
	"mbo/validate"
)

func writeFeed(t *testing.T, recs []codec.InputRecord) string {
	t.Helper()
	var buf []byte
	for i := range recs {
		var b [codec.InputRecordSize]byte
		recs[i].Marshal(b[:])
		buf = append(buf, b[:]...)
	}
	path := filepath.Join(t.TempDir(), "feed_crossing.bin")
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func crossingFeed() []codec.InputRecord {
	return []codec.InputRecord{
		{RecordIdx: 0, Token: 1, OrderID: 9, Price: 100, Qty: 8, TickType: codec.TickNew, IsAsk: true},
		{RecordIdx: 1, Token: 1, OrderID: 10, Price: 100, Qty: 5, TickType: codec.TickNew},
		{RecordIdx: 2, Token: 1, OrderID: 10, OrderID2: 9, Price: 100, Qty: 5, TickType: codec.TickTrade},
		{RecordIdx: 3, Token: 2, OrderID: 20, Price: 500, Qty: 3, TickType: codec.TickNew},
		{RecordIdx: 4, Token: 1, OrderID: 9, TickType: codec.TickCancel, IsAsk: true},
	}
}

func TestReplayAgainstOwnOutput(t *testing.T) {
	input := writeFeed(t, crossingFeed())

	// First pass captures the snapshot stream.
	var out bytes.Buffer
	var chunksSeen, snapsSeen int
	eng := engine.New(book.Options{Crossing: true})
	err := Replay(eng, ReplayConfig{
		InputPath: input,
		Crossing:  true,
		Out:       &out,
		OnChunks:  func(cs []codec.Chunk) error { chunksSeen += len(cs); return nil },
		OnSnapshot: func(*codec.BookSnapshot) {
			snapsSeen++
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	if chunksSeen == 0 || snapsSeen == 0 {
		t.Fatalf("chunks=%d snaps=%d", chunksSeen, snapsSeen)
	}
	if out.Len()%codec.SnapshotSize != 0 {
		t.Fatalf("output size %d not frame-aligned", out.Len())
	}

	ref := filepath.Join(t.TempDir(), "ref.bin")
	if err := os.WriteFile(ref, out.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}

	// Second pass must validate cleanly against it.
	eng2 := engine.New(book.Options{Crossing: true})
	err = Replay(eng2, ReplayConfig{
		InputPath:     input,
		ReferencePath: ref,
		Crossing:      true,
		Validate:      validate.Options{StrictLTP: true},
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestReplayReportsMismatch(t *testing.T) {
	input := writeFeed(t, crossingFeed())

	var out bytes.Buffer
	eng := engine.New(book.Options{Crossing: true})
	if err := Replay(eng, ReplayConfig{InputPath: input, Crossing: true, Out: &out}); err != nil {
		t.Fatal(err)
	}

	// Corrupt the first snapshot's bid qty.
	raw := out.Bytes()
	raw[68+8] ^= 0x01
	ref := filepath.Join(t.TempDir(), "ref.bin")
	if err := os.WriteFile(ref, raw, 0o644); err != nil {
		t.Fatal(err)
	}

	eng2 := engine.New(book.Options{Crossing: true})
	err := Replay(eng2, ReplayConfig{InputPath: input, ReferencePath: ref, Crossing: true})
	var mm *validate.MismatchError
	if !errors.As(err, &mm) {
		t.Fatalf("expected MismatchError, got %v", err)
	}
}

func TestReplayDumpSink(t *testing.T) {
	input := writeFeed(t, crossingFeed())
	var dump bytes.Buffer
	eng := engine.New(book.Options{Crossing: true})
	if err := Replay(eng, ReplayConfig{InputPath: input, Crossing: true, DumpOut: &dump}); err != nil {
		t.Fatal(err)
	}
	if dump.Len() == 0 {
		t.Fatal("dump sink produced nothing")
	}
}
