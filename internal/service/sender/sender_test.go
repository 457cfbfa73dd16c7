package sender

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"e2e_transport/internal/model"
	"e2e_transport/internal/protocol/strategy"
	"e2e_transport/internal/utils/clock"
	"e2e_transport/internal/utils/task"
	"encoding/hex"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type (
	fakeStorage struct {
		mu          sync.Mutex
		deleted     map[int64]bool
		expiry      map[string]model.ExpiryMode
		threads     map[string]int64
		hashes      map[int64]string
		sent        []int64
		syncing     []int64
		sentFailed  []int64
		syncFailed  []int64
		serverIDs   map[int64]int64
		timestamps  map[int64]int64
		clearedErrs int
	}

	fakeDedup struct {
		mu   sync.Mutex
		seen map[int64]bool
	}

	storeCall struct {
		msg       model.SnodeMessage
		namespace int
	}

	fakeSwarm struct {
		mu    sync.Mutex
		calls []storeCall
		store func(ns int) (*model.StoreResult, error)
	}

	fakeCommunity struct {
		caps      []string
		serverPub string
		pubErr    error
		posts     []*model.CommunityPost
		dms       []string
	}

	fakeGroupAuth struct{}

	fakeSettings struct{ profile *model.Profile }
)

func (f *fakeStorage) IsDeleted(_ context.Context, id int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.deleted[id], nil
}
func (f *fakeStorage) SetServerHash(_ context.Context, id int64, hash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hashes[id] = hash
	return nil
}
func (f *fakeStorage) ClearError(context.Context, int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clearedErrs++
	return nil
}
func (f *fakeStorage) MarkSent(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, id)
	return nil
}
func (f *fakeStorage) MarkSyncing(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.syncing = append(f.syncing, id)
	return nil
}
func (f *fakeStorage) MarkSentFailed(_ context.Context, id int64, _ error) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sentFailed = append(f.sentFailed, id)
	return nil
}
func (f *fakeStorage) MarkSyncFailed(_ context.Context, id int64, _ error) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.syncFailed = append(f.syncFailed, id)
	return nil
}
func (f *fakeStorage) UpdateSentTimestamp(_ context.Context, id int64, ts int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.timestamps[id] = ts
	return nil
}
func (f *fakeStorage) SetOpenGroupServerMessageID(_ context.Context, id, serverID, _ int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.serverIDs[id] = serverID
	return nil
}
func (f *fakeStorage) GetThreadID(_ context.Context, address string) (int64, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, ok := f.threads[address]
	return id, ok, nil
}
func (f *fakeStorage) ExpiryMode(_ context.Context, address string) (model.ExpiryMode, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.expiry[address], nil
}

func (f *fakeDedup) RecordMessageTimestamp(_ context.Context, ts int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.seen[ts] {
		return false, nil
	}
	f.seen[ts] = true
	return true, nil
}

func (f *fakeSwarm) Store(_ context.Context, msg *model.SnodeMessage, ns int, _ *model.SwarmAuth) (*model.StoreResult, error) {
	f.mu.Lock()
	f.calls = append(f.calls, storeCall{msg: *msg, namespace: ns})
	f.mu.Unlock()
	if f.store != nil {
		return f.store(ns)
	}
	return &model.StoreResult{Hash: "hash"}, nil
}

func (f *fakeSwarm) recorded() []storeCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]storeCall(nil), f.calls...)
}

func (f *fakeCommunity) Capabilities(context.Context, string) ([]string, error) { return f.caps, nil }
func (f *fakeCommunity) ServerPublicKey(context.Context, string) (string, error) {
	return f.serverPub, f.pubErr
}
func (f *fakeCommunity) PostMessage(_ context.Context, _, _ string, post *model.CommunityPost) (*model.CommunityPostResult, error) {
	f.posts = append(f.posts, post)
	return &model.CommunityPostResult{ID: 42, PostedAt: post.Timestamp + 10}, nil
}
func (f *fakeCommunity) PostDirectMessage(_ context.Context, _, _, message string) (*model.CommunityPostResult, error) {
	f.dms = append(f.dms, message)
	return &model.CommunityPostResult{ID: 7, PostedAt: 1}, nil
}

func (fakeGroupAuth) GroupAuth(_ context.Context, id string) (*model.SwarmAuth, error) {
	return &model.SwarmAuth{AccountID: id}, nil
}

func (f fakeSettings) Profile(context.Context) *model.Profile            { return f.profile }
func (fakeSettings) BlocksCommunityMessageRequests(context.Context) bool { return true }

type groupKeys map[string]*model.GroupKeys

func (g groupKeys) GroupKeys(_ context.Context, id string) (*model.GroupKeys, error) {
	k, ok := g[id]
	if !ok {
		return nil, errors.New("unknown group")
	}
	return k, nil
}

type legacyGroups map[string]*model.LegacyGroup

func (l legacyGroups) LegacyGroup(_ context.Context, id string) (*model.LegacyGroup, error) {
	return l[id], nil
}

const now = 1_700_000_000_000

type fixture struct {
	user      *model.UserKeyPair
	storage   *fakeStorage
	dedup     *fakeDedup
	swarm     *fakeSwarm
	community *fakeCommunity
	groups    groupKeys
	legacy    legacyGroups
	spawner   *task.Spawner
	sender    *Sender
}

func newUser(t *testing.T) *model.UserKeyPair {
	t.Helper()
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	return &model.UserKeyPair{Ed25519: priv}
}

func newFixture(t *testing.T, features Features) *fixture {
	f := &fixture{
		user: newUser(t),
		storage: &fakeStorage{
			deleted:    map[int64]bool{},
			expiry:     map[string]model.ExpiryMode{},
			threads:    map[string]int64{},
			hashes:     map[int64]string{},
			serverIDs:  map[int64]int64{},
			timestamps: map[int64]int64{},
		},
		dedup:     &fakeDedup{seen: map[int64]bool{}},
		swarm:     &fakeSwarm{},
		community: &fakeCommunity{},
		groups:    groupKeys{},
		legacy:    legacyGroups{},
		spawner:   task.NewSpawner(context.Background()),
	}
	f.sender = New(Deps{
		User:      f.user,
		Strategy:  strategy.New(f.user, f.groups, f.legacy),
		Storage:   f.storage,
		Dedup:     f.dedup,
		Swarm:     f.swarm,
		Community: f.community,
		Groups:    fakeGroupAuth{},
		Settings:  fakeSettings{profile: &model.Profile{DisplayName: "me"}},
		Clock:     clock.Fixed(now),
		Spawner:   f.spawner,
		Features:  features,
	})
	return f
}

func (f *fixture) legacyGroup(t *testing.T) string {
	t.Helper()
	id := model.MustAccountID(model.PrefixStandard, make([]byte, 32)).Hex()
	f.legacy[id] = &model.LegacyGroup{PublicKey: id, SymmetricKey: make([]byte, 32)}
	return id
}

func visible(text string) *model.Message {
	return &model.Message{Body: &model.VisibleMessage{Text: text}}
}

func TestNamespaceRaceFirstSuccessWins(t *testing.T) {
	for winner := 0; winner < 2; winner++ {
		f := newFixture(t, Features{HasNamespaces: true})
		group := f.legacyGroup(t)
		namespaces := []int{model.NamespaceUnauthenticatedClosedGroup, model.NamespaceDefault}
		f.swarm.store = func(ns int) (*model.StoreResult, error) {
			if ns == namespaces[winner] {
				return &model.StoreResult{Hash: "winner"}, nil
			}
			return nil, errors.New("node refused")
		}

		m := visible("hi")
		err := f.sender.Send(context.Background(), m, model.LegacyClosedGroup{GroupPublicKey: group}, false)
		require.NoError(t, err, "winner %d", winner)
		assert.Equal(t, "winner", m.ServerHash)
	}
}

func TestNamespaceRaceAllFailReportsFirstNamespaceError(t *testing.T) {
	f := newFixture(t, Features{HasNamespaces: true})
	group := f.legacyGroup(t)
	first, second := errors.New("unauthenticated namespace down"), errors.New("default namespace down")
	f.swarm.store = func(ns int) (*model.StoreResult, error) {
		if ns == model.NamespaceUnauthenticatedClosedGroup {
			// fails last, but is first in dispatch order
			time.Sleep(20 * time.Millisecond)
			return nil, first
		}
		return nil, second
	}

	m := visible("hi")
	m.ID = 3
	err := f.sender.Send(context.Background(), m, model.LegacyClosedGroup{GroupPublicKey: group}, false)
	assert.ErrorIs(t, err, first)
	assert.True(t, IsRetryable(err))
	assert.Equal(t, []int64{3}, f.storage.sentFailed)
}

func TestNamespacesByDestination(t *testing.T) {
	s := newFixture(t, Features{}).sender
	assert.Equal(t, []int{model.NamespaceDefault}, s.namespaces(model.Contact{}))
	assert.Equal(t, []int{model.NamespaceClosedGroupMessages}, s.namespaces(model.ClosedGroup{}))
	assert.Equal(t, []int{model.NamespaceDefault}, s.namespaces(model.LegacyClosedGroup{}))

	s.Features = Features{HasNamespaces: true, DefaultRequiresAuth: true}
	assert.Equal(t, []int{model.NamespaceUnauthenticatedClosedGroup}, s.namespaces(model.LegacyClosedGroup{}))
}

func TestSelfSendPolicy(t *testing.T) {
	cases := []struct {
		name    string
		body    model.Body
		allowed bool
	}{
		{"visible", &model.VisibleMessage{Text: "x"}, false},
		{"read receipt", &model.ReadReceipt{Timestamps: []int64{1}}, false},
		{"typing", &model.TypingIndicator{Started: true}, false},
		{"data extraction", &model.DataExtractionNotification{Type: model.DataExtractionScreenshot}, false},
		{"expiration timer", &model.ExpirationTimerUpdate{}, false},
		{"message request response", &model.MessageRequestResponse{Approved: true}, false},
		{"call", &model.CallMessage{Type: model.CallEnd, CallID: "c"}, false},
		{"unsend", &model.UnsendRequest{Timestamp: 1, Author: "05ab"}, true},
		{"group control", &model.GroupUpdated{Update: &model.GroupMemberLeft{}}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t, Features{})
			self := model.Contact{PublicKey: f.user.AccountID().Hex()}

			_, err := f.sender.BuildSnodeMessage(context.Background(), &model.Message{Body: tc.body}, self, false)
			if tc.allowed {
				assert.NoError(t, err)
			} else {
				var se *SendError
				require.ErrorAs(t, err, &se)
				assert.Equal(t, InvalidMessage, se.Kind)
				assert.False(t, IsRetryable(err))
			}

			_, err = f.sender.BuildSnodeMessage(context.Background(), &model.Message{Body: tc.body}, self, true)
			assert.NoError(t, err, "sync copies are always allowed")
		})
	}
}

func TestTTLExemptGroupControl(t *testing.T) {
	f := newFixture(t, Features{})
	groupID := model.MustAccountID(model.PrefixGroup, make([]byte, 32)).Hex()
	f.storage.expiry[groupID] = model.ExpiryMode{Type: model.ExpiryAfterSend, Duration: time.Hour}

	exempt := []model.GroupUpdate{
		&model.GroupInvite{},
		&model.GroupPromote{},
		&model.GroupMemberLeft{},
		&model.GroupDeleteMemberContent{},
		&model.GroupInviteResponse{},
	}
	for _, u := range exempt {
		m := &model.Message{Recipient: groupID, Body: &model.GroupUpdated{Update: u}}
		assert.Equal(t, model.DefaultTTL, f.sender.ttl(context.Background(), m, false), "%T", u)
	}

	m := &model.Message{Recipient: groupID, Body: &model.GroupUpdated{Update: &model.GroupInfoChange{}}}
	assert.Equal(t, time.Hour.Milliseconds(), f.sender.ttl(context.Background(), m, false))

	m = &model.Message{Recipient: groupID, Body: &model.VisibleMessage{Text: "x"}}
	assert.Equal(t, time.Hour.Milliseconds(), f.sender.ttl(context.Background(), m, false))
}

func TestTTLAfterReadOnlyForSync(t *testing.T) {
	f := newFixture(t, Features{})
	f.storage.expiry["05bob"] = model.ExpiryMode{Type: model.ExpiryAfterRead, Duration: time.Minute}

	m := &model.Message{Recipient: "05bob", Body: &model.VisibleMessage{Text: "x"}}
	assert.Equal(t, model.DefaultTTL, f.sender.ttl(context.Background(), m, false))

	m = &model.Message{Recipient: "05self", SyncTarget: "05bob", Body: &model.VisibleMessage{Text: "x"}}
	assert.Equal(t, time.Minute.Milliseconds(), f.sender.ttl(context.Background(), m, true))
}

func TestContactSendSyncsToSelf(t *testing.T) {
	f := newFixture(t, Features{})
	bob := newUser(t).AccountID().Hex()

	m := visible("hello")
	m.ID = 9
	require.NoError(t, f.sender.Send(context.Background(), m, model.Contact{PublicKey: bob}, false))
	f.spawner.Wait()

	calls := f.swarm.recorded()
	require.Len(t, calls, 2)
	assert.Equal(t, bob, calls[0].msg.Recipient)
	assert.Equal(t, f.user.AccountID().Hex(), calls[1].msg.Recipient)
	assert.Equal(t, []int64{9}, f.storage.syncing)
	assert.Equal(t, "hash", f.storage.hashes[9])
	assert.True(t, f.dedup.seen[now], "sent timestamp recorded so the echo is dropped")
	assert.Empty(t, m.SyncTarget, "the caller's message is not mutated by the sync copy")
	assert.Equal(t, "me", m.Profile.DisplayName)
}

func TestDataExtractionIsNotSynced(t *testing.T) {
	f := newFixture(t, Features{})
	bob := newUser(t).AccountID().Hex()

	m := &model.Message{Body: &model.DataExtractionNotification{Type: model.DataExtractionScreenshot}}
	require.NoError(t, f.sender.Send(context.Background(), m, model.Contact{PublicKey: bob}, false))
	f.spawner.Wait()
	assert.Len(t, f.swarm.recorded(), 1)
}

func TestFailureOnDeletedMessageIsNoop(t *testing.T) {
	f := newFixture(t, Features{})
	f.swarm.store = func(int) (*model.StoreResult, error) { return nil, errors.New("offline") }
	f.storage.deleted[5] = true

	m := visible("x")
	m.ID = 5
	err := f.sender.Send(context.Background(), m, model.Contact{PublicKey: newUser(t).AccountID().Hex()}, false)
	assert.Error(t, err)
	assert.Empty(t, f.storage.sentFailed)
	assert.Empty(t, f.storage.syncFailed)
}

func TestSyncFailureMarksSyncFailed(t *testing.T) {
	f := newFixture(t, Features{})
	f.swarm.store = func(int) (*model.StoreResult, error) { return nil, errors.New("offline") }

	m := visible("x")
	m.ID = 6
	err := f.sender.Send(context.Background(), m, model.Contact{PublicKey: f.user.AccountID().Hex()}, true)
	assert.Error(t, err)
	assert.Equal(t, []int64{6}, f.storage.syncFailed)
}

func TestInvalidGroupUpdateIsNotRetryable(t *testing.T) {
	f := newFixture(t, Features{})
	m := &model.Message{Body: &model.GroupUpdated{Update: &model.GroupInfoChange{}}}

	_, err := f.sender.BuildSnodeMessage(context.Background(), m, model.Contact{PublicKey: newUser(t).AccountID().Hex()}, false)
	var se *SendError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, InvalidClosedGroupUpdate, se.Kind)
	assert.False(t, IsRetryable(err))
}

func TestClosedGroupWithoutKeysIsRetryable(t *testing.T) {
	f := newFixture(t, Features{})
	groupID := model.MustAccountID(model.PrefixGroup, make([]byte, 32)).Hex()

	err := f.sender.Send(context.Background(), visible("x"), model.ClosedGroup{PublicKey: groupID}, false)
	var se *SendError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, NoKeyPair, se.Kind)
	assert.True(t, IsRetryable(err))
}

func TestCommunityRoomPost(t *testing.T) {
	f := newFixture(t, Features{})
	serverPub, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	f.community.caps = []string{"sogs", model.CommunityCapabilityBlind}
	f.community.serverPub = hex.EncodeToString(serverPub)
	f.storage.threads[model.CommunityAddress("http://srv", "lobby").String()] = 4

	m := visible("room hello")
	m.ID = 11
	require.NoError(t, f.sender.Send(context.Background(), m, model.OpenGroup{Server: "http://srv", Room: "lobby"}, false))

	require.Len(t, f.community.posts, 1)
	post := f.community.posts[0]
	sender, err := model.ParseAccountID(post.Sender)
	require.NoError(t, err)
	assert.Equal(t, model.PrefixBlinded, sender.Prefix)
	assert.Equal(t, "http://srv.lobby..null", m.Recipient)
	assert.True(t, m.Body.(*model.VisibleMessage).BlocksMessageRequests)
	assert.Equal(t, int64(42), f.storage.serverIDs[11])
	assert.Equal(t, int64(now+10), f.storage.timestamps[11])
	assert.Len(t, f.swarm.recorded(), 0)
}

func TestCommunityBlindServerKeyUnavailable(t *testing.T) {
	errLookup := errors.New("server key lookup failed")
	for name, setup := range map[string]func(c *fakeCommunity){
		"lookup error": func(c *fakeCommunity) { c.pubErr = errLookup },
		"empty key":    func(c *fakeCommunity) {},
	} {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t, Features{})
			f.community.caps = []string{"sogs", model.CommunityCapabilityBlind}
			setup(f.community)

			m := visible("room hello")
			m.ID = 11
			err := f.sender.Send(context.Background(), m, model.OpenGroup{Server: "http://srv", Room: "lobby"}, false)
			require.Error(t, err)
			assert.Empty(t, f.community.posts, "nothing may be posted under the unblinded id")
		})
	}
}

func TestCommunityUnblindedServerSkipsKeyLookup(t *testing.T) {
	f := newFixture(t, Features{})
	f.community.caps = []string{"sogs"}
	f.community.pubErr = errors.New("not needed")
	f.storage.threads[model.CommunityAddress("http://srv", "lobby").String()] = 4

	m := visible("room hello")
	require.NoError(t, f.sender.Send(context.Background(), m, model.OpenGroup{Server: "http://srv", Room: "lobby"}, false))
	require.Len(t, f.community.posts, 1)
	assert.Equal(t, "00", f.community.posts[0].Sender[:2])
}

func TestCommunityRejectsNonVisible(t *testing.T) {
	f := newFixture(t, Features{})
	m := &model.Message{Body: &model.TypingIndicator{Started: true}}

	err := f.sender.Send(context.Background(), m, model.OpenGroup{Server: "http://srv", Room: "lobby"}, false)
	var se *SendError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, InvalidMessage, se.Kind)
	require.Len(t, f.community.posts, 0)
	assert.Equal(t, "00", m.Sender[:2])
}
