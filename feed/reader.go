// Package feed reads the packed input-record and reference-snapshot files
// the engine consumes. Files are walked in place over one bulk read, the Go
// rendition of the original's memory-mapped record arrays.
package feed

import (
	"fmt"
	"os"
	"strings"

	"mbo/codec"
)

// RecordReader iterates the 40-byte input records of a feed file.
type RecordReader struct {
	data []byte
	off  int
}

// OpenRecords loads a feed file. Trailing bytes that do not form a whole
// record are rejected.
func OpenRecords(path string) (*RecordReader, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("feed: open records: %w", err)
	}
	if len(data)%codec.InputRecordSize != 0 {
		return nil, fmt.Errorf("feed: %s: size %d not a multiple of %d", path, len(data), codec.InputRecordSize)
	}
	return &RecordReader{data: data}, nil
}

// Len returns the total number of records.
func (r *RecordReader) Len() int { return len(r.data) / codec.InputRecordSize }

// Next decodes the next record into rec, returning false at end of stream.
func (r *RecordReader) Next(rec *codec.InputRecord) bool {
	if r.off+codec.InputRecordSize > len(r.data) {
		return false
	}
	_ = rec.Unmarshal(r.data[r.off : r.off+codec.InputRecordSize])
	r.off += codec.InputRecordSize
	return true
}

// SnapshotReader iterates the 708-byte snapshots of a reference file.
type SnapshotReader struct {
	data []byte
	off  int
}

// OpenSnapshots loads a reference snapshot file.
func OpenSnapshots(path string) (*SnapshotReader, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("feed: open snapshots: %w", err)
	}
	if len(data)%codec.SnapshotSize != 0 {
		return nil, fmt.Errorf("feed: %s: size %d not a multiple of %d", path, len(data), codec.SnapshotSize)
	}
	return &SnapshotReader{data: data}, nil
}

// Len returns the total number of snapshots.
func (r *SnapshotReader) Len() int { return len(r.data) / codec.SnapshotSize }

// Next decodes the next snapshot into s, returning false at end of stream.
func (r *SnapshotReader) Next(s *codec.BookSnapshot) bool {
	if r.off+codec.SnapshotSize > len(r.data) {
		return false
	}
	_ = s.Unmarshal(r.data[r.off : r.off+codec.SnapshotSize])
	r.off += codec.SnapshotSize
	return true
}

// DetectCrossing applies the feed naming convention: crossing handling is
// on when the filename contains "_crossing" and not "_nocrossing".
func DetectCrossing(path string) bool {
	return strings.Contains(path, "_crossing") && !strings.Contains(path, "_nocrossing")
}
