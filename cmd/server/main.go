// The server command is the live deployment: it replays the configured feed
// through the engine, journals every chunk frame, broadcasts them to Kafka,
// and serves the gRPC snapshot API plus the websocket stream.
package main

import (
	"context"
	"flag"
	"log"
	"net"
	"net/http"

	"mbo/api/grpcserver"
	"mbo/api/ws"
	"mbo/book"
	"mbo/codec"
	"mbo/engine"
	"mbo/feed"
	"mbo/hub"
	"mbo/infra"
	"mbo/infra/chunklog"
	"mbo/jobs/broadcaster"
	"mbo/service"
)

func main() {
	cfgPath := flag.String("config", "config.yaml", "path to the YAML config")
	flag.Parse()

	cfg, err := infra.LoadConfig(*cfgPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}
	logger := infra.NewLogger(cfg.Logging.Level, cfg.Logging.Dir)
	metrics := infra.NewMetrics()

	crossing := feed.DetectCrossing(cfg.Feed.InputPath)
	if cfg.Feed.Crossing != nil {
		crossing = *cfg.Feed.Crossing
	}

	// ---------------- Chunk journal + broadcaster ----------------

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	replay := service.ReplayConfig{
		InputPath: cfg.Feed.InputPath,
		Crossing:  crossing,
		Metrics:   metrics,
		Log:       logger,
	}

	if len(cfg.Kafka.Brokers) > 0 {
		journal, err := chunklog.Open(cfg.Journal.Dir)
		if err != nil {
			log.Fatalf("chunk journal init failed: %v", err)
		}
		defer journal.Close()

		bc, err := broadcaster.New(journal, cfg.Kafka.Brokers, cfg.Kafka.Topic, logger)
		if err != nil {
			log.Fatalf("broadcaster init failed: %v", err)
		}
		defer bc.Close()
		bc.Start(ctx)

		replay.OnChunks = func(chunks []codec.Chunk) error {
			for i := range chunks {
				if _, err := journal.Append(&chunks[i]); err != nil {
					return err
				}
			}
			return nil
		}
	}

	// ---------------- Snapshot fan-out ----------------

	snapHub := hub.New[codec.BookSnapshot]()
	replay.OnSnapshot = func(s *codec.BookSnapshot) {
		snapHub.Broadcast(*s)
	}

	// ---------------- Engine ----------------

	eng := engine.New(book.Options{Crossing: crossing})

	// ---------------- API ----------------

	grpcSrv := grpcserver.NewGRPCServer()
	grpcserver.NewServer(eng, snapHub, logger).Register(grpcSrv)

	if cfg.API.GRPCAddr != "" {
		lis, err := net.Listen("tcp", cfg.API.GRPCAddr)
		if err != nil {
			log.Fatalf("listen failed: %v", err)
		}
		go func() {
			if err := grpcSrv.Serve(lis); err != nil {
				log.Fatalf("gRPC server exited: %v", err)
			}
		}()
		logger.Info("[server] gRPC listening", "addr", cfg.API.GRPCAddr)
	}

	if cfg.API.WSAddr != "" {
		wsSrv := ws.NewServer(snapHub, logger)
		go func() {
			if err := http.ListenAndServe(cfg.API.WSAddr, wsSrv); err != nil {
				log.Fatalf("ws server exited: %v", err)
			}
		}()
		logger.Info("[server] websocket listening", "addr", cfg.API.WSAddr)
	}

	// ---------------- Replay ----------------

	if err := service.Replay(eng, replay); err != nil {
		log.Fatalf("replay failed: %v", err)
	}
	logger.Info("[server] feed drained; serving until interrupted")
	select {}
}
