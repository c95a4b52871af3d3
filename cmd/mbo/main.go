// The mbo command replays a packed feed file through the book-building
// engine, reconstructs snapshots from the delta stream, and optionally
// validates them against a reference file.
//
// Usage:
//
//	mbo [flags] <input.bin> [reference.bin]
//
// Crossing-protocol handling is auto-enabled when the input filename
// contains "_crossing" and not "_nocrossing"; --crossing forces it on.
// Exits 0 on success, 1 on mismatch or I/O failure.
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"mbo/book"
	"mbo/engine"
	"mbo/feed"
	"mbo/service"
	"mbo/validate"
)

func main() {
	crossing := flag.Bool("crossing", false, "force crossing-protocol handling on")
	dump := flag.Bool("dump", false, "write human-readable dumps instead of binary snapshots")
	strictLTP := flag.Bool("strict-ltp", false, "also compare LTP/LTQ against the reference")
	flag.Parse()

	args := flag.Args()
	if len(args) < 1 || len(args) > 2 {
		fmt.Fprintf(os.Stderr, "usage: %s [flags] <input.bin> [reference.bin]\n", os.Args[0])
		os.Exit(1)
	}
	input := args[0]
	reference := ""
	if len(args) == 2 {
		reference = args[1]
	}

	cfg := service.ReplayConfig{
		InputPath:     input,
		ReferencePath: reference,
		Crossing:      *crossing || feed.DetectCrossing(input),
		Validate:      validate.Options{StrictLTP: *strictLTP},
	}
	if *dump {
		cfg.DumpOut = os.Stdout
	} else {
		cfg.Out = os.Stdout
	}

	eng := engine.New(book.Options{Crossing: cfg.Crossing})
	if err := service.Replay(eng, cfg); err != nil {
		var mm *validate.MismatchError
		if errors.As(err, &mm) {
			fmt.Fprintf(os.Stderr, "MISMATCH at record %d (code %d)\n", mm.RecordIdx, mm.Code)
		} else {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}
