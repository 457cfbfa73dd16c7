// Package sender delivers outbound messages: build, validate, encrypt,
// dispatch to storage namespaces or a community server, then record the
// outcome.
package sender

import (
	"context"
	"e2e_transport/internal/model"
	"e2e_transport/internal/protocol/envelope"
	"e2e_transport/internal/protocol/strategy"
	"e2e_transport/internal/utils/clock"
	"e2e_transport/internal/utils/log"
	"e2e_transport/internal/utils/task"
	"encoding/base64"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

type (
	// Storage is the local message store as seen by the sender.
	Storage interface {
		IsDeleted(ctx context.Context, id int64) (bool, error)
		SetServerHash(ctx context.Context, id int64, hash string) error
		ClearError(ctx context.Context, id int64) error
		MarkSent(ctx context.Context, id int64) error
		MarkSyncing(ctx context.Context, id int64) error
		MarkSentFailed(ctx context.Context, id int64, cause error) error
		MarkSyncFailed(ctx context.Context, id int64, cause error) error
		UpdateSentTimestamp(ctx context.Context, id int64, ts int64) error
		SetOpenGroupServerMessageID(ctx context.Context, id, serverID, threadID int64) error
		GetThreadID(ctx context.Context, address string) (int64, bool, error)
		ExpiryMode(ctx context.Context, address string) (model.ExpiryMode, error)
	}

	DedupStore interface {
		RecordMessageTimestamp(ctx context.Context, ts int64) (bool, error)
	}

	Swarm interface {
		Store(ctx context.Context, msg *model.SnodeMessage, namespace int, auth *model.SwarmAuth) (*model.StoreResult, error)
	}

	Community interface {
		Capabilities(ctx context.Context, server string) ([]string, error)
		ServerPublicKey(ctx context.Context, server string) (string, error)
		PostMessage(ctx context.Context, server, room string, post *model.CommunityPost) (*model.CommunityPostResult, error)
		PostDirectMessage(ctx context.Context, server, blindedRecipient, message string) (*model.CommunityPostResult, error)
	}

	GroupAuth interface {
		GroupAuth(ctx context.Context, groupID string) (*model.SwarmAuth, error)
	}

	// Settings exposes the user's own profile and preferences.
	Settings interface {
		Profile(ctx context.Context) *model.Profile
		BlocksCommunityMessageRequests(ctx context.Context) bool
	}

	// Features are storage-node protocol flags negotiated with the network.
	Features struct {
		HasNamespaces       bool `yaml:"has_namespaces"`
		DefaultRequiresAuth bool `yaml:"namespaces_require_auth"`
	}

	Deps struct {
		User      *model.UserKeyPair
		Strategy  *strategy.Strategy
		Storage   Storage
		Dedup     DedupStore
		Swarm     Swarm
		Community Community
		Groups    GroupAuth
		Settings  Settings
		Clock     clock.Clock
		Spawner   *task.Spawner
		Features  Features
	}

	Sender struct {
		Deps
	}
)

func New(d Deps) *Sender {
	return &Sender{Deps: d}
}

// Send delivers m to dest. isSync marks a copy addressed to our own swarm.
func (s *Sender) Send(ctx context.Context, m *model.Message, dest model.Destination, isSync bool) error {
	if model.IsCommunity(dest) {
		return s.sendToCommunity(ctx, m, dest)
	}
	return s.sendToSwarm(ctx, m, dest, isSync)
}

// SendTo resolves the address's thread, expiry setting and destination, then
// sends.
func (s *Sender) SendTo(ctx context.Context, m *model.Message, addr model.Address) error {
	threadID, ok, err := s.Storage.GetThreadID(ctx, addr.String())
	if err != nil {
		return err
	}
	if !ok && m.Kind() == model.KindVisible {
		return newError(NoThread, fmt.Errorf("address %s", addr))
	}
	m.ThreadID = threadID

	if mode, err := s.Storage.ExpiryMode(ctx, addr.String()); err == nil {
		m.ExpiryMode = mode
	}

	var serverPub string
	if addr.Kind == model.AddressCommunityBlinded {
		if serverPub, err = s.Community.ServerPublicKey(ctx, addr.Server); err != nil {
			return err
		}
	}
	// A note to self travels as a sync copy: it is the only self-send a
	// visible message may be.
	isSync := s.User != nil && addr.Kind == model.AddressStandard && addr.ID == s.User.AccountID().Hex()
	return s.Send(ctx, m, model.DestinationFor(addr, serverPub), isSync)
}

// BuildSnodeMessage runs the build, validate and encrypt steps for a swarm
// destination.
func (s *Sender) BuildSnodeMessage(ctx context.Context, m *model.Message, dest model.Destination, isSync bool) (*model.SnodeMessage, error) {
	if s.User == nil {
		return nil, newError(NoUserKeyPair, nil)
	}
	self := s.User.AccountID().Hex()

	sendTime := s.Clock.NowMillis()
	if m.SentTimestamp == 0 {
		m.SentTimestamp = sendTime
	}
	m.Sender = self
	switch d := dest.(type) {
	case model.Contact:
		m.Recipient = d.PublicKey
	case model.ClosedGroup:
		m.Recipient = d.PublicKey
	case model.LegacyClosedGroup:
		m.Recipient = d.GroupPublicKey
	default:
		return nil, newError(InvalidMessage, fmt.Errorf("%T is not a swarm destination", dest))
	}

	if err := s.validate(m, isSync, m.Recipient == self); err != nil {
		return nil, err
	}
	s.attachProfile(ctx, m)

	content, err := buildContent(m)
	if err != nil {
		return nil, err
	}
	res, err := s.Strategy.Encrypt(ctx, dest, content, m.SentTimestamp)
	if err != nil {
		return nil, classify(err)
	}

	return &model.SnodeMessage{
		Recipient: m.Recipient,
		Data:      base64.StdEncoding.EncodeToString(res.Payload),
		TTL:       s.ttl(ctx, m, isSync),
		Timestamp: sendTime,
	}, nil
}

// validate rejects self-sends other than sync copies, unsend requests and
// group control messages.
func (s *Sender) validate(m *model.Message, isSync, isSelfSend bool) error {
	if gu, ok := m.Body.(*model.GroupUpdated); ok && (gu.Update == nil || !gu.Update.Valid()) {
		return newError(InvalidClosedGroupUpdate, nil)
	}
	if !m.Valid() {
		return newError(InvalidMessage, nil)
	}
	if !isSelfSend || isSync {
		return nil
	}
	switch m.Body.(type) {
	case *model.UnsendRequest, *model.GroupUpdated:
		return nil
	}
	return newError(InvalidMessage, errors.New("self send"))
}

func (s *Sender) attachProfile(ctx context.Context, m *model.Message) {
	if m.Profile != nil || s.Settings == nil {
		return
	}
	switch m.Body.(type) {
	case *model.VisibleMessage, *model.MessageRequestResponse, *model.GroupUpdated:
		m.Profile = s.Settings.Profile(ctx)
	}
}

func buildContent(m *model.Message) ([]byte, error) {
	c, err := envelope.ToContent(m)
	if err != nil {
		return nil, newError(ProtoConversionFailed, err)
	}
	b, err := envelope.MarshalContent(c)
	if err != nil {
		return nil, newError(ProtoConversionFailed, err)
	}
	return b, nil
}

// ttl is the protocol maximum for group control messages that must outlive
// the conversation's timer. Otherwise the target conversation's timer applies
// when it runs from send, or always for sync copies.
func (s *Sender) ttl(ctx context.Context, m *model.Message, isSync bool) int64 {
	if gu, ok := m.Body.(*model.GroupUpdated); ok && model.ExemptFromExpiry(gu.Update) {
		return m.TTL()
	}

	target := m.Recipient
	if _, visible := m.Body.(*model.VisibleMessage); isSync && visible && m.SyncTarget != "" {
		target = m.SyncTarget
	}
	mode, err := s.Storage.ExpiryMode(ctx, target)
	if err != nil {
		log.Debug("no expiry config", zap.String("address", target), zap.Error(err))
		return m.TTL()
	}
	if mode.Type == model.ExpiryAfterSend || isSync {
		if ms := mode.Millis(); ms > 0 {
			return ms
		}
	}
	return m.TTL()
}

func (s *Sender) sendToSwarm(ctx context.Context, m *model.Message, dest model.Destination, isSync bool) error {
	err := s.dispatchToSwarm(ctx, m, dest, isSync)
	if err != nil {
		s.handleFailure(ctx, m, err, isSync)
	}
	return err
}

func (s *Sender) dispatchToSwarm(ctx context.Context, m *model.Message, dest model.Destination, isSync bool) error {
	snodeMsg, err := s.BuildSnodeMessage(ctx, m, dest, isSync)
	if err != nil {
		return err
	}

	var auth *model.SwarmAuth
	if g, ok := dest.(model.ClosedGroup); ok {
		if auth, err = s.Groups.GroupAuth(ctx, g.PublicKey); err != nil {
			return newError(NoKeyPair, fmt.Errorf("group auth: %w", err))
		}
	}

	res, err := s.race(ctx, snodeMsg, s.namespaces(dest), auth)
	if err != nil {
		return err
	}
	m.ServerHash = res.Hash
	s.handleSuccess(ctx, m, dest, isSync, -1)
	return nil
}

func (s *Sender) namespaces(dest model.Destination) []int {
	switch dest.(type) {
	case model.ClosedGroup:
		return []int{model.NamespaceClosedGroupMessages}
	case model.LegacyClosedGroup:
		switch {
		case s.Features.DefaultRequiresAuth:
			return []int{model.NamespaceUnauthenticatedClosedGroup}
		case s.Features.HasNamespaces:
			return []int{model.NamespaceUnauthenticatedClosedGroup, model.NamespaceDefault}
		}
	}
	return []int{model.NamespaceDefault}
}
