package feed

import (
	"os"
	"path/filepath"
	"testing"

	"mbo/codec"
)

func TestRecordFileRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "feed.bin")

	want := []codec.InputRecord{
		{RecordIdx: 0, Token: 1, OrderID: 1, Price: 100, Qty: 10, TickType: codec.TickNew},
		{RecordIdx: 1, Token: 1, OrderID: 1, TickType: codec.TickCancel, IsAsk: true},
	}
	var buf []byte
	for i := range want {
		var b [codec.InputRecordSize]byte
		want[i].Marshal(b[:])
		buf = append(buf, b[:]...)
	}
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		t.Fatal(err)
	}

	r, err := OpenRecords(path)
	if err != nil {
		t.Fatal(err)
	}
	if r.Len() != len(want) {
		t.Fatalf("len = %d", r.Len())
	}
	var rec codec.InputRecord
	for i := range want {
		if !r.Next(&rec) {
			t.Fatalf("next %d failed", i)
		}
		if rec != want[i] {
			t.Fatalf("record %d: %+v != %+v", i, rec, want[i])
		}
	}
	if r.Next(&rec) {
		t.Fatal("expected end of stream")
	}
}

func TestOpenRecordsRejectsTruncated(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.bin")
	if err := os.WriteFile(path, make([]byte, codec.InputRecordSize+1), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := OpenRecords(path); err == nil {
		t.Fatal("expected error for truncated file")
	}
}

func TestSnapshotFileRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ref.bin")

	var want codec.BookSnapshot
	want.RecordIdx = 9
	want.Token = 2
	want.Bids[0] = codec.SnapLevel{Price: 100, Qty: 10, NumOrders: 1}

	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := WriteSnapshot(f, &want); err != nil {
		t.Fatal(err)
	}
	f.Close()

	r, err := OpenSnapshots(path)
	if err != nil {
		t.Fatal(err)
	}
	var got codec.BookSnapshot
	if !r.Next(&got) {
		t.Fatal("next failed")
	}
	if got != want {
		t.Fatalf("%+v != %+v", got, want)
	}
}

func TestDetectCrossing(t *testing.T) {
	cases := []struct {
		path string
		want bool
	}{
		{"feed_crossing.bin", true},
		{"feed_nocrossing.bin", false},
		{"feed.bin", false},
		{"/data/day1_crossing_a.bin", true},
	}
	for _, c := range cases {
		if got := DetectCrossing(c.path); got != c.want {
			t.Errorf("DetectCrossing(%q) = %v", c.path, got)
		}
	}
}
