// Package ws streams live snapshots to websocket subscribers (browser
// tooling, dashboards).
package ws

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"mbo/codec"
	"mbo/hub"
)

// view is the JSON shape pushed to subscribers; only the populated levels
// are carried.
type view struct {
	RecordIdx uint32            `json:"record_idx"`
	Token     uint32            `json:"token"`
	TickType  string            `json:"tick_type"`
	IsAsk     bool              `json:"is_ask"`
	LTP       int64             `json:"ltp"`
	LTQ       int32             `json:"ltq"`
	Bids      []codec.SnapLevel `json:"bids"`
	Asks      []codec.SnapLevel `json:"asks"`
}

type Server struct {
	hub      *hub.Hub[codec.BookSnapshot]
	upgrader websocket.Upgrader
	log      *slog.Logger
}

func NewServer(h *hub.Hub[codec.BookSnapshot], log *slog.Logger) *Server {
	return &Server{
		hub: h,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		log: log,
	}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("[ws] upgrade failed", "err", err)
		return
	}
	sub := s.hub.Subscribe(256)
	defer s.hub.Unsubscribe(sub)
	defer conn.Close()

	// Drain and discard client frames so pings and closes are processed.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for snap := range sub.C() {
		if err := conn.WriteJSON(toView(&snap)); err != nil {
			return
		}
	}
}

func toView(s *codec.BookSnapshot) view {
	v := view{
		RecordIdx: s.RecordIdx,
		Token:     s.Token,
		TickType:  string(s.Event.TickType),
		IsAsk:     s.IsAsk,
		LTP:       s.LTP,
		LTQ:       s.LTQ,
	}
	for i := range s.Bids {
		if s.Bids[i].Price == 0 {
			break
		}
		v.Bids = append(v.Bids, s.Bids[i])
	}
	for i := range s.Asks {
		if s.Asks[i].Price == 0 {
			break
		}
		v.Asks = append(v.Asks, s.Asks[i])
	}
	return v
}
