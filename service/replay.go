/*
Package service is the coordination layer: it owns the replay loop that
feeds input records through the engine, applies the produced chunks to the
in-process receiver, validates against a reference stream, and fans
snapshots out to the configured sinks.

All coordination between engine, mirror, validate, feed and the transport
jobs happens here.
*/
package service

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"mbo/codec"
	"mbo/engine"
	"mbo/feed"
	"mbo/infra"
	"mbo/mirror"
	"mbo/validate"
)

// ReplayConfig wires one batch run. Only InputPath is mandatory.
type ReplayConfig struct {
	InputPath     string
	ReferencePath string
	Crossing      bool

	Out     io.Writer // binary snapshot sink, nil = none
	DumpOut io.Writer // human-readable sink, nil = none

	Validate validate.Options

	// OnChunks observes every event's finalized chunk sequence (transport
	// journaling). OnSnapshot observes every delivered snapshot (live
	// fan-out).
	OnChunks   func([]codec.Chunk) error
	OnSnapshot func(*codec.BookSnapshot)

	Metrics *infra.Metrics
	Log     *slog.Logger
}

// Replay runs one feed to completion. Returns a *validate.MismatchError
// when the reconstruction diverges from the reference.
func Replay(eng *engine.Engine, cfg ReplayConfig) error {
	log := cfg.Log
	if log == nil {
		log = slog.Default()
	}
	records, err := feed.OpenRecords(cfg.InputPath)
	if err != nil {
		return err
	}
	var refs *feed.SnapshotReader
	if cfg.ReferencePath != "" {
		refs, err = feed.OpenSnapshots(cfg.ReferencePath)
		if err != nil {
			return err
		}
	}
	log.Info("[replay] starting",
		"input", cfg.InputPath,
		"records", records.Len(),
		"crossing", cfg.Crossing,
		"reference", cfg.ReferencePath != "")

	recv := mirror.NewReceiver()
	var rec codec.InputRecord
	var ref codec.BookSnapshot
	for records.Next(&rec) {
		chunks, err := eng.Process(&rec)
		if err != nil {
			return err
		}
		if cfg.Metrics != nil {
			cfg.Metrics.RecordsProcessed.Add(1)
			cfg.Metrics.ChunksEmitted.Add(uint64(len(chunks)))
		}
		if cfg.OnChunks != nil && len(chunks) > 0 {
			if err := cfg.OnChunks(chunks); err != nil {
				return fmt.Errorf("service: chunk sink: %w", err)
			}
		}
		snaps, err := recv.ApplyEvent(chunks)
		if err != nil {
			return fmt.Errorf("service: record %d: %w", rec.RecordIdx, err)
		}
		for i := range snaps {
			s := &snaps[i]
			if cfg.Metrics != nil {
				cfg.Metrics.SnapshotsEmitted.Add(1)
				if c := s.Event.TickType; c == codec.TickNewCross || c == codec.TickModifyCross {
					cfg.Metrics.CrossingsStarted.Add(1)
				}
			}
			if cfg.OnSnapshot != nil {
				cfg.OnSnapshot(s)
			}
			if cfg.Out != nil {
				if err := feed.WriteSnapshot(cfg.Out, s); err != nil {
					return fmt.Errorf("service: snapshot sink: %w", err)
				}
			}
			if cfg.DumpOut != nil {
				if err := feed.DumpSnapshot(cfg.DumpOut, s); err != nil {
					return fmt.Errorf("service: dump sink: %w", err)
				}
			}
			if refs != nil {
				if !refs.Next(&ref) {
					return errors.New("service: reference stream exhausted")
				}
				if err := validate.Compare(s, &ref, cfg.Validate); err != nil {
					log.Error("[replay] mismatch", "record", rec.RecordIdx, "err", err)
					return err
				}
			}
		}
	}
	if cfg.Metrics != nil {
		cfg.Metrics.LogSummary(log)
	}
	return nil
}
