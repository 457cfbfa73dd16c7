// Package node is a single-process relay standing in for a storage node swarm
// and a community server. Messages live in redis lists; subscribers get new
// swarm messages pushed over a websocket.
package node

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"e2e_transport/internal/model"
	"e2e_transport/internal/service/redis"
	"e2e_transport/internal/utils/clock"
	"e2e_transport/internal/utils/log"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

type (
	HttpServer struct {
		redisService *redis.RedisService
		hub          *hub
		publicKey    string
		clock        clock.Clock
	}

	StoreRequest struct {
		Pubkey    string `json:"pubkey"`
		Namespace int    `json:"namespace"`
		Data      string `json:"data"`
		TTL       int64  `json:"ttl"`
		Timestamp int64  `json:"timestamp"`
	}

	RetrieveResponse struct {
		Messages []*model.RetrievedMessage `json:"messages"`
	}

	DeleteRequest struct {
		Pubkey string   `json:"pubkey"`
		Hashes []string `json:"messages"`
	}

	DeleteResponse struct {
		Deleted []string `json:"deleted"`
	}

	// Pushed is what a subscriber receives for every message stored for it.
	Pushed struct {
		Pubkey  string                  `json:"pubkey"`
		Message *model.RetrievedMessage `json:"message"`
	}

	Capabilities struct {
		Capabilities []string `json:"capabilities"`
		PublicKey    string   `json:"public_key"`
	}

	DirectMessageRequest struct {
		Sender  string `json:"sender"`
		Message string `json:"message"`
	}
)

var errBadRequest = errors.New("bad request")

func NewHttpServer(redisSvc *redis.RedisService, serverKey ed25519.PublicKey, c clock.Clock) *HttpServer {
	return &HttpServer{
		redisService: redisSvc,
		hub:          newHub(),
		publicKey:    hex.EncodeToString(serverKey),
		clock:        c,
	}
}

func (s *HttpServer) Router() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/store", s.HandleStore()).Methods(http.MethodPost)
	r.HandleFunc("/retrieve", s.HandleRetrieve()).Methods(http.MethodGet)
	r.HandleFunc("/delete", s.HandleDelete()).Methods(http.MethodPost)
	r.HandleFunc("/subscribe", s.HandleSubscribe()).Methods(http.MethodGet)

	r.HandleFunc("/capabilities", s.HandleCapabilities()).Methods(http.MethodGet)
	r.HandleFunc("/room/{room}/message", s.HandlePostMessage()).Methods(http.MethodPost)
	r.HandleFunc("/room/{room}/messages", s.HandleRoomMessages()).Methods(http.MethodGet)
	r.HandleFunc("/inbox/{blindedId}", s.HandlePostDirectMessage()).Methods(http.MethodPost)
	r.HandleFunc("/inbox/{blindedId}", s.HandleDirectMessages(inboxKey)).Methods(http.MethodGet)
	r.HandleFunc("/outbox/{blindedId}", s.HandleDirectMessages(outboxKey)).Methods(http.MethodGet)
	return r
}

// Run serves until ctx is cancelled.
func (s *HttpServer) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		s.hub.closeAll()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("node shutdown", zap.Error(err))
		}
	}()

	log.Info("node listening", zap.String("addr", addr), zap.String("public_key", s.publicKey))
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *HttpServer) HandleCapabilities() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, &Capabilities{
			Capabilities: []string{"sogs", model.CommunityCapabilityBlind},
			PublicKey:    s.publicKey,
		})
	}
}

func decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errors.Join(errBadRequest, err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		log.Error("marshal response failed", zap.Error(err))
		http.Error(w, "marshal response failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(data)
}

func writeError(w http.ResponseWriter, what string, err error) {
	if errors.Is(err, errBadRequest) {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	log.Error(what, zap.Error(err))
	http.Error(w, what, http.StatusInternalServerError)
}

const keyName = "node:seed"

// LoadOrCreateKey returns the node's identity key, generating and storing
// one on first start. Concurrent first starts agree on a single key.
func LoadOrCreateKey(ctx context.Context, rdb *redis.RedisService) (ed25519.PrivateKey, error) {
	seed, err := rdb.Get(ctx, keyName)
	if err == nil {
		return keyFromSeed(seed)
	}
	if !errors.Is(err, redis.Nil) {
		return nil, err
	}

	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}
	if _, err := rdb.SetNX(ctx, keyName, hex.EncodeToString(priv.Seed()), 0); err != nil {
		return nil, err
	}
	if seed, err = rdb.Get(ctx, keyName); err != nil {
		return nil, err
	}
	return keyFromSeed(seed)
}

func keyFromSeed(seedHex string) (ed25519.PrivateKey, error) {
	seed, err := hex.DecodeString(seedHex)
	if err != nil || len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("stored node key is corrupt")
	}
	return ed25519.NewKeyFromSeed(seed), nil
}
