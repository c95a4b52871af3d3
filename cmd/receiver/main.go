// The receiver command mirrors books out of process: it consumes chunk
// frames from Kafka, groups them into events by the final bit, and applies
// them to a mirror, logging every derived top-of-book move.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"mbo/codec"
	"mbo/feed"
	"mbo/infra"
	"mbo/infra/kafka"
	"mbo/mirror"
)

func main() {
	brokers := flag.String("brokers", "localhost:9092", "comma-separated Kafka brokers")
	topic := flag.String("topic", "mbo-chunks", "chunk topic")
	group := flag.String("group", "mbo-receiver", "consumer group id")
	dump := flag.Bool("dump", false, "dump every snapshot to stdout")
	flag.Parse()

	logger := infra.NewLogger("info", "")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	r := kafka.NewReader(strings.Split(*brokers, ","), *topic, *group)
	defer r.Close()

	recv := mirror.NewReceiver()
	// Events are re-assembled per token: chunks of one event arrive
	// back-to-back on the token's partition, final bit last.
	events := make(map[uint32][]codec.Chunk)

	logger.Info("[receiver] consuming", "topic", *topic, "group", *group)
	for {
		var c codec.Chunk
		if err := r.ReadChunk(ctx, &c); err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Fatalf("read failed: %v", err)
		}
		events[c.Token] = append(events[c.Token], c)
		if !c.Final() {
			continue
		}
		chunks := events[c.Token]
		delete(events, c.Token)
		snaps, err := recv.ApplyEvent(chunks)
		if err != nil {
			log.Fatalf("apply failed: %v", err)
		}
		for i := range snaps {
			s := &snaps[i]
			if *dump {
				_ = feed.DumpSnapshot(os.Stdout, s)
				continue
			}
			logger.Info("[receiver] event",
				"record", s.RecordIdx,
				"token", s.Token,
				"type", string(s.Event.TickType),
				"best_bid", s.Bids[0].Price,
				"best_ask", s.Asks[0].Price,
			)
		}
	}
}
