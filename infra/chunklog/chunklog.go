// Package chunklog is the durable outbox between the engine and the Kafka
// broadcaster: every finalized chunk frame is journaled here and walks the
// pending -> sent -> acked lifecycle. It journals transport state only; book
// state is never persisted.
package chunklog

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/pebble"

	"mbo/codec"
)

// -------------------- State --------------------

type State uint8

const (
	StatePending State = iota
	StateSent
	StateAcked
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "PENDING"
	case StateSent:
		return "SENT"
	case StateAcked:
		return "ACKED"
	default:
		return "UNKNOWN"
	}
}

// -------------------- Record --------------------

// Record is one journaled chunk frame with its outbox state.
type Record struct {
	State       State
	LastAttempt int64
	Frame       [codec.ChunkSize]byte
}

// binary encoding: [state:1][lastAttempt:8][frame:64]
func encodeRecord(r *Record) []byte {
	buf := make([]byte, 1+8+codec.ChunkSize)
	buf[0] = byte(r.State)
	binary.BigEndian.PutUint64(buf[1:9], uint64(r.LastAttempt))
	copy(buf[9:], r.Frame[:])
	return buf
}

func decodeRecord(b []byte) (Record, error) {
	if len(b) != 1+8+codec.ChunkSize {
		return Record{}, errors.New("chunklog: invalid record length")
	}
	var r Record
	r.State = State(b[0])
	r.LastAttempt = int64(binary.BigEndian.Uint64(b[1:9]))
	copy(r.Frame[:], b[9:])
	return r, nil
}

// -------------------- Log --------------------

// Log is the pebble-backed chunk outbox.
type Log struct {
	db  *pebble.DB
	seq atomic.Uint64
}

func Open(dir string) (*Log, error) {
	db, err := pebble.Open(dir, &pebble.Options{
		DisableWAL: false, // we WANT durability
	})
	if err != nil {
		return nil, err
	}
	l := &Log{db: db}
	if err := l.recoverSeq(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return l, nil
}

func (l *Log) Close() error {
	return l.db.Close()
}

func (l *Log) recoverSeq() error {
	iter, err := l.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte("chunk/"),
		UpperBound: []byte("chunk/~"),
	})
	if err != nil {
		return err
	}
	defer iter.Close()
	if iter.Last() && iter.Valid() {
		seq, err := parseKey(iter.Key())
		if err != nil {
			return err
		}
		l.seq.Store(seq)
	}
	return iter.Error()
}

// -------------------- API --------------------

// Append journals one chunk as pending and returns its sequence.
func (l *Log) Append(c *codec.Chunk) (uint64, error) {
	seq := l.seq.Add(1)
	rec := Record{State: StatePending}
	c.Marshal(rec.Frame[:])
	return seq, l.db.Set(keyFor(seq), encodeRecord(&rec), pebble.Sync)
}

// MarkSent flips a journaled chunk to sent before the publish attempt so a
// crash between publish and ack resends rather than drops.
func (l *Log) MarkSent(seq uint64) error {
	return l.update(seq, StateSent)
}

// MarkAcked removes a delivered chunk from the outbox.
func (l *Log) MarkAcked(seq uint64) error {
	return l.db.Delete(keyFor(seq), pebble.Sync)
}

func (l *Log) update(seq uint64, state State) error {
	val, closer, err := l.db.Get(keyFor(seq))
	if err != nil {
		return err
	}
	rec, err := decodeRecord(val)
	closer.Close()
	if err != nil {
		return err
	}
	rec.State = state
	rec.LastAttempt = time.Now().UnixNano()
	return l.db.Set(keyFor(seq), encodeRecord(&rec), pebble.Sync)
}

// -------------------- Scan --------------------

// ScanPending iterates undelivered chunks in sequence order.
func (l *Log) ScanPending(fn func(seq uint64, rec *Record) error) error {
	iter, err := l.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte("chunk/"),
		UpperBound: []byte("chunk/~"),
	})
	if err != nil {
		return err
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		rec, err := decodeRecord(iter.Value())
		if err != nil {
			return err
		}
		if rec.State == StateAcked {
			continue
		}
		seq, err := parseKey(iter.Key())
		if err != nil {
			return err
		}
		if err := fn(seq, &rec); err != nil {
			return err
		}
	}
	return iter.Error()
}

// -------------------- Helpers --------------------

func keyFor(seq uint64) []byte {
	return []byte(fmt.Sprintf("chunk/%020d", seq))
}

func parseKey(b []byte) (uint64, error) {
	var seq uint64
	_, err := fmt.Sscanf(string(bytes.TrimPrefix(b, []byte("chunk/"))), "%d", &seq)
	return seq, err
}
