package node

import (
	"context"
	"e2e_transport/internal/model"
	"encoding/json"
	"fmt"
	"net/http"
	"slices"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// namespaces the relay keeps messages in.
var namespaces = []int{
	model.NamespaceUnauthenticatedClosedGroup,
	model.NamespaceDefault,
	model.NamespaceClosedGroupMessages,
}

func swarmKey(pubkey string, namespace int) string {
	return fmt.Sprintf("swarm:%s:%d", pubkey, namespace)
}

func (s *HttpServer) HandleStore() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req StoreRequest
		if err := decode(r, &req); err != nil {
			writeError(w, "store failed", err)
			return
		}

		res, err := s.Store(r.Context(), &req)
		if err != nil {
			writeError(w, "store failed", err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

// Store keeps one message for req.Pubkey and pushes it to live subscribers.
func (s *HttpServer) Store(ctx context.Context, req *StoreRequest) (*model.StoreResult, error) {
	if _, err := model.ParseAccountID(req.Pubkey); err != nil {
		return nil, fmt.Errorf("%w: pubkey: %v", errBadRequest, err)
	}
	if req.Data == "" {
		return nil, fmt.Errorf("%w: empty data", errBadRequest)
	}
	if !slices.Contains(namespaces, req.Namespace) {
		return nil, fmt.Errorf("%w: unknown namespace %d", errBadRequest, req.Namespace)
	}
	ttl := req.TTL
	if ttl <= 0 || ttl > model.DefaultTTL {
		ttl = model.DefaultTTL
	}

	now := s.clock.NowMillis()
	msg := &model.RetrievedMessage{
		Hash:      uuid.NewString(),
		Namespace: req.Namespace,
		Data:      req.Data,
		Timestamp: req.Timestamp,
		Expiry:    now + ttl,
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, err
	}
	key := swarmKey(req.Pubkey, req.Namespace)
	if err := s.redisService.RPushExpire(ctx, key, time.Duration(ttl)*time.Millisecond, data); err != nil {
		return nil, err
	}

	s.hub.publish(req.Pubkey, &Pushed{Pubkey: req.Pubkey, Message: msg})
	return &model.StoreResult{Hash: msg.Hash, Timestamp: now}, nil
}

func (s *HttpServer) HandleRetrieve() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		pubkey := q.Get("pubkey")
		if pubkey == "" {
			http.Error(w, "pubkey cannot be empty", http.StatusBadRequest)
			return
		}
		namespace := model.NamespaceDefault
		if ns := q.Get("namespace"); ns != "" {
			n, err := strconv.Atoi(ns)
			if err != nil {
				http.Error(w, "invalid namespace", http.StatusBadRequest)
				return
			}
			namespace = n
		}

		msgs, err := s.Retrieve(r.Context(), pubkey, namespace, q.Get("last_hash"))
		if err != nil {
			writeError(w, "retrieve failed", err)
			return
		}
		writeJSON(w, http.StatusOK, &RetrieveResponse{Messages: msgs})
	}
}

// Retrieve returns the unexpired messages stored after lastHash. An unknown
// or empty lastHash returns everything.
func (s *HttpServer) Retrieve(ctx context.Context, pubkey string, namespace int, lastHash string) ([]*model.RetrievedMessage, error) {
	all, err := s.load(ctx, swarmKey(pubkey, namespace))
	if err != nil {
		return nil, err
	}

	if i := slices.IndexFunc(all, func(m *model.RetrievedMessage) bool { return m.Hash == lastHash }); i >= 0 {
		all = all[i+1:]
	}
	now := s.clock.NowMillis()
	res := make([]*model.RetrievedMessage, 0, len(all))
	for _, m := range all {
		if m.Expiry > now {
			res = append(res, m)
		}
	}
	return res, nil
}

func (s *HttpServer) HandleDelete() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req DeleteRequest
		if err := decode(r, &req); err != nil {
			writeError(w, "delete failed", err)
			return
		}

		deleted, err := s.Delete(r.Context(), req.Pubkey, req.Hashes)
		if err != nil {
			writeError(w, "delete failed", err)
			return
		}
		writeJSON(w, http.StatusOK, &DeleteResponse{Deleted: deleted})
	}
}

// Delete removes the messages with the given hashes from every namespace of
// pubkey and returns the hashes it found.
func (s *HttpServer) Delete(ctx context.Context, pubkey string, hashes []string) ([]string, error) {
	deleted := make([]string, 0, len(hashes))
	for _, ns := range namespaces {
		key := swarmKey(pubkey, ns)
		all, err := s.load(ctx, key)
		if err != nil {
			return nil, err
		}

		var keep []any
		for _, m := range all {
			if slices.Contains(hashes, m.Hash) {
				deleted = append(deleted, m.Hash)
				continue
			}
			data, _ := json.Marshal(m)
			keep = append(keep, data)
		}
		if len(keep) == len(all) {
			continue
		}

		if err := s.redisService.Del(ctx, key); err != nil {
			return nil, err
		}
		if len(keep) > 0 {
			if err := s.redisService.RPushExpire(ctx, key, time.Duration(model.DefaultTTL)*time.Millisecond, keep...); err != nil {
				return nil, err
			}
		}
	}
	return deleted, nil
}

func (s *HttpServer) load(ctx context.Context, key string) ([]*model.RetrievedMessage, error) {
	vals, err := s.redisService.LRange(ctx, key)
	if err != nil {
		return nil, err
	}

	res := make([]*model.RetrievedMessage, 0, len(vals))
	for _, v := range vals {
		var m model.RetrievedMessage
		if err := json.Unmarshal([]byte(v), &m); err != nil {
			return nil, err
		}
		res = append(res, &m)
	}
	return res, nil
}
