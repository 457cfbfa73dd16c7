package node

import (
	"context"
	"e2e_transport/internal/model"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
)

// directMessageTTL is how long inbox messages are kept, in seconds.
const directMessageTTL = 15 * 24 * 60 * 60

func roomKey(room string) string      { return "room:" + room }
func inboxKey(blinded string) string  { return "inbox:" + blinded }
func outboxKey(blinded string) string { return "outbox:" + blinded }

func (s *HttpServer) HandlePostMessage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var post model.CommunityPost
		if err := decode(r, &post); err != nil {
			writeError(w, "post message failed", err)
			return
		}

		res, err := s.PostMessage(r.Context(), mux.Vars(r)["room"], &post)
		if err != nil {
			writeError(w, "post message failed", err)
			return
		}
		writeJSON(w, http.StatusCreated, res)
	}
}

func (s *HttpServer) PostMessage(ctx context.Context, room string, post *model.CommunityPost) (*model.CommunityPostResult, error) {
	if _, err := model.ParseAccountID(post.Sender); err != nil {
		return nil, fmt.Errorf("%w: sender: %v", errBadRequest, err)
	}
	if post.Data == "" {
		return nil, fmt.Errorf("%w: empty data", errBadRequest)
	}

	id, err := s.redisService.Incr(ctx, roomKey(room)+":seq")
	if err != nil {
		return nil, err
	}
	now := s.clock.NowMillis()
	msg := &model.CommunityMessage{
		ID:        id,
		SessionID: post.Sender,
		Posted:    float64(now) / 1000,
		Seqno:     id,
		Data:      post.Data,
		Signature: post.Signature,
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, err
	}
	if err := s.redisService.RPush(ctx, roomKey(room), data); err != nil {
		return nil, err
	}
	return &model.CommunityPostResult{ID: id, PostedAt: now}, nil
}

func (s *HttpServer) HandleRoomMessages() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		since, err := sinceParam(r)
		if err != nil {
			http.Error(w, "invalid since", http.StatusBadRequest)
			return
		}

		msgs, err := s.RoomMessages(r.Context(), mux.Vars(r)["room"], since)
		if err != nil {
			writeError(w, "room messages failed", err)
			return
		}
		writeJSON(w, http.StatusOK, msgs)
	}
}

// RoomMessages returns the posts with a seqno above since.
func (s *HttpServer) RoomMessages(ctx context.Context, room string, since int64) ([]*model.CommunityMessage, error) {
	vals, err := s.redisService.LRange(ctx, roomKey(room))
	if err != nil {
		return nil, err
	}

	res := make([]*model.CommunityMessage, 0, len(vals))
	for _, v := range vals {
		var m model.CommunityMessage
		if err := json.Unmarshal([]byte(v), &m); err != nil {
			return nil, err
		}
		if m.Seqno > since {
			res = append(res, &m)
		}
	}
	return res, nil
}

func (s *HttpServer) HandlePostDirectMessage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req DirectMessageRequest
		if err := decode(r, &req); err != nil {
			writeError(w, "post direct message failed", err)
			return
		}

		res, err := s.PostDirectMessage(r.Context(), mux.Vars(r)["blindedId"], &req)
		if err != nil {
			writeError(w, "post direct message failed", err)
			return
		}
		writeJSON(w, http.StatusCreated, res)
	}
}

// PostDirectMessage files the message in the recipient's inbox and the
// sender's outbox.
func (s *HttpServer) PostDirectMessage(ctx context.Context, recipient string, req *DirectMessageRequest) (*model.CommunityPostResult, error) {
	for _, id := range []string{recipient, req.Sender} {
		parsed, err := model.ParseAccountID(id)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", errBadRequest, err)
		}
		if !parsed.IsBlinded() {
			return nil, fmt.Errorf("%w: %s is not blinded", errBadRequest, id)
		}
	}

	id, err := s.redisService.Incr(ctx, "dm:seq")
	if err != nil {
		return nil, err
	}
	now := s.clock.NowMillis()
	dm := &model.CommunityDirectMessage{
		ID:        id,
		Sender:    req.Sender,
		Recipient: recipient,
		PostedAt:  now / 1000,
		ExpiresAt: now/1000 + directMessageTTL,
		Message:   req.Message,
	}
	data, err := json.Marshal(dm)
	if err != nil {
		return nil, err
	}
	if err := s.redisService.RPush(ctx, inboxKey(recipient), data); err != nil {
		return nil, err
	}
	if err := s.redisService.RPush(ctx, outboxKey(req.Sender), data); err != nil {
		return nil, err
	}
	return &model.CommunityPostResult{ID: id, PostedAt: now}, nil
}

func (s *HttpServer) HandleDirectMessages(key func(string) string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		since, err := sinceParam(r)
		if err != nil {
			http.Error(w, "invalid since", http.StatusBadRequest)
			return
		}

		msgs, err := s.DirectMessages(r.Context(), key(mux.Vars(r)["blindedId"]), since)
		if err != nil {
			writeError(w, "direct messages failed", err)
			return
		}
		writeJSON(w, http.StatusOK, msgs)
	}
}

// DirectMessages returns the unexpired messages in the list at key with an id
// above since.
func (s *HttpServer) DirectMessages(ctx context.Context, key string, since int64) ([]*model.CommunityDirectMessage, error) {
	vals, err := s.redisService.LRange(ctx, key)
	if err != nil {
		return nil, err
	}

	now := s.clock.NowMillis() / 1000
	res := make([]*model.CommunityDirectMessage, 0, len(vals))
	for _, v := range vals {
		var m model.CommunityDirectMessage
		if err := json.Unmarshal([]byte(v), &m); err != nil {
			return nil, err
		}
		if m.ID > since && (m.ExpiresAt == 0 || m.ExpiresAt > now) {
			res = append(res, &m)
		}
	}
	return res, nil
}

func sinceParam(r *http.Request) (int64, error) {
	v := r.URL.Query().Get("since")
	if v == "" {
		return 0, nil
	}
	return strconv.ParseInt(v, 10, 64)
}
