package receiver

import (
	"context"
	"e2e_transport/internal/cryptographic/blinding"
	"e2e_transport/internal/model"
	"encoding/hex"
	"fmt"
	"sync"
)

// Context carries caches and watermarks for one processing batch. It is safe
// for the concurrent conversations of a batch to share it.
type Context struct {
	p *Processor

	mu          sync.Mutex
	recipients  map[string]*model.Recipient
	threadIDs   map[string]int64
	blindedKeys map[string][]model.AccountID
	reactions   map[int64][]model.ReactionRecord
	maxOutgoing int64

	contactConfigOnce sync.Once
	contactConfigTS   int64
	contactConfigErr  error
}

func (p *Processor) newContext() *Context {
	return &Context{
		p:           p,
		recipients:  make(map[string]*model.Recipient),
		threadIDs:   make(map[string]int64),
		blindedKeys: make(map[string][]model.AccountID),
		reactions:   make(map[int64][]model.ReactionRecord),
	}
}

func (pc *Context) CurrentUser() string {
	return pc.p.self
}

func (pc *Context) ThreadID(addr model.Address) (int64, bool) {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	id, ok := pc.threadIDs[addr.String()]
	return id, ok
}

func (pc *Context) setThreadID(addr model.Address, id int64) {
	pc.mu.Lock()
	pc.threadIDs[addr.String()] = id
	pc.mu.Unlock()
}

// ThreadIDs lists every thread touched so far.
func (pc *Context) ThreadIDs() []int64 {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	ids := make([]int64, 0, len(pc.threadIDs))
	for _, id := range pc.threadIDs {
		ids = append(ids, id)
	}
	return ids
}

func (pc *Context) Recipient(ctx context.Context, addr model.Address) (*model.Recipient, error) {
	key := addr.String()
	pc.mu.Lock()
	r, ok := pc.recipients[key]
	pc.mu.Unlock()
	if ok {
		return r, nil
	}

	r, err := pc.p.Contacts.Recipient(ctx, addr)
	if err != nil {
		return nil, fmt.Errorf("load recipient: %w", err)
	}
	pc.mu.Lock()
	pc.recipients[key] = r
	pc.mu.Unlock()
	return r, nil
}

// ContactConfigTimestamp is loaded once per batch, on first use.
func (pc *Context) ContactConfigTimestamp(ctx context.Context) (int64, error) {
	pc.contactConfigOnce.Do(func() {
		pc.contactConfigTS, pc.contactConfigErr = pc.p.Contacts.ContactConfigTimestamp(ctx)
	})
	return pc.contactConfigTS, pc.contactConfigErr
}

// BlindedIDs returns the aliases the current user appears under on server.
func (pc *Context) BlindedIDs(ctx context.Context, server string) ([]model.AccountID, error) {
	pc.mu.Lock()
	ids, ok := pc.blindedKeys[server]
	pc.mu.Unlock()
	if ok {
		return ids, nil
	}

	keyHex, err := pc.p.Communities.ServerPublicKey(ctx, server)
	if err != nil {
		return nil, fmt.Errorf("no public key for community %s: %w", server, err)
	}
	serverPub, err := hex.DecodeString(keyHex)
	if err != nil {
		return nil, fmt.Errorf("community %s public key: %w", server, err)
	}
	ids, err = blinding.IDsFor(pc.p.User.PublicKey(), serverPub)
	if err != nil {
		return nil, err
	}

	pc.mu.Lock()
	pc.blindedKeys[server] = ids
	pc.mu.Unlock()
	return ids, nil
}

func (pc *Context) MaxOutgoingTimestamp() int64 {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	return pc.maxOutgoing
}

func (pc *Context) observeOutgoing(ts int64) {
	pc.mu.Lock()
	if ts > pc.maxOutgoing {
		pc.maxOutgoing = ts
	}
	pc.mu.Unlock()
}

// deferReactions replaces the pending reaction set of messageID. An empty
// set clears the message's reactions when the batch finishes.
func (pc *Context) deferReactions(messageID int64, records []model.ReactionRecord) {
	pc.mu.Lock()
	pc.reactions[messageID] = records
	pc.mu.Unlock()
}

func (pc *Context) takeReactions() map[int64][]model.ReactionRecord {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	r := pc.reactions
	pc.reactions = make(map[int64][]model.ReactionRecord)
	return r
}
