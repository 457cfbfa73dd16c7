package node

import (
	"e2e_transport/internal/utils/log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

type (
	subscriber struct {
		mu   sync.Mutex
		conn *websocket.Conn
	}

	// hub tracks websocket subscribers per account id.
	hub struct {
		mu     sync.RWMutex
		mapper map[string]map[*subscriber]struct{}
	}
)

func newHub() *hub {
	return &hub{mapper: make(map[string]map[*subscriber]struct{})}
}

func (h *hub) add(pubkey string, sub *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.mapper[pubkey] == nil {
		h.mapper[pubkey] = make(map[*subscriber]struct{})
	}
	h.mapper[pubkey][sub] = struct{}{}
}

func (h *hub) remove(pubkey string, sub *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.mapper[pubkey], sub)
	if len(h.mapper[pubkey]) == 0 {
		delete(h.mapper, pubkey)
	}
}

func (h *hub) subscribers(pubkey string) []*subscriber {
	h.mu.RLock()
	defer h.mu.RUnlock()
	subs := make([]*subscriber, 0, len(h.mapper[pubkey]))
	for sub := range h.mapper[pubkey] {
		subs = append(subs, sub)
	}
	return subs
}

func (h *hub) publish(pubkey string, v any) {
	for _, sub := range h.subscribers(pubkey) {
		sub.mu.Lock()
		err := sub.conn.WriteJSON(v)
		sub.mu.Unlock()
		if err != nil {
			log.Debug("push to subscriber failed", zap.String("pubkey", pubkey), zap.Error(err))
		}
	}
}

func (h *hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, subs := range h.mapper {
		for sub := range subs {
			sub.conn.Close()
		}
	}
	h.mapper = make(map[string]map[*subscriber]struct{})
}

func (s *HttpServer) HandleSubscribe() http.HandlerFunc {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}

	return func(w http.ResponseWriter, r *http.Request) {
		pubkey := r.URL.Query().Get("pubkey")
		if pubkey == "" {
			http.Error(w, "pubkey cannot be empty", http.StatusBadRequest)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Error("websocket upgrade failed", zap.Error(err))
			return
		}

		sub := &subscriber{conn: conn}
		s.hub.add(pubkey, sub)
		go s.drain(pubkey, sub)
	}
}

// drain reads until the peer goes away; subscribers never send anything.
func (s *HttpServer) drain(pubkey string, sub *subscriber) {
	for {
		if _, _, err := sub.conn.ReadMessage(); err != nil {
			log.Debug("subscriber web socket closed", zap.String("pubkey", pubkey), zap.Error(err))
			s.hub.remove(pubkey, sub)
			sub.conn.Close()
			return
		}
	}
}
