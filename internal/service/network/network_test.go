package network

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"e2e_transport/internal/model"
	"e2e_transport/internal/service/node"
	"e2e_transport/internal/service/redis"
	"e2e_transport/internal/service/redis/redistest"
	"e2e_transport/internal/utils/clock"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var alice = "05" + strings.Repeat("aa", 32)

const nodeNow = clock.Fixed(1_700_000_000_000)

type fixture struct {
	ts       *httptest.Server
	capCalls atomic.Int32
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{}
	srv := node.NewHttpServer(redis.NewRedis(redistest.New()), bytes.Repeat([]byte{9}, 32), nodeNow)
	router := srv.Router()
	f.ts = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/capabilities" {
			f.capCalls.Add(1)
		}
		router.ServeHTTP(w, r)
	}))
	t.Cleanup(f.ts.Close)
	return f
}

func newIdentity(t *testing.T) ed25519.PublicKey {
	t.Helper()
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	return pub
}

func TestStoreRetrieveDelete(t *testing.T) {
	f := newFixture(t)
	nc := clock.NewNetworkClock()
	c := New(f.ts.URL, nil, nc)
	ctx := context.Background()

	first, err := c.Store(ctx, &model.SnodeMessage{Recipient: alice, Data: "one", TTL: 60_000, Timestamp: 1}, model.NamespaceDefault, nil)
	require.NoError(t, err)
	second, err := c.Store(ctx, &model.SnodeMessage{Recipient: alice, Data: "two", TTL: 60_000, Timestamp: 2}, model.NamespaceDefault, nil)
	require.NoError(t, err)
	assert.NotEqual(t, first.Hash, second.Hash)
	assert.InDelta(t, int64(nodeNow), nc.NowMillis(), float64(time.Minute.Milliseconds()))

	msgs, err := c.Retrieve(ctx, alice, model.NamespaceDefault, first.Hash)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "two", msgs[0].Data)

	require.NoError(t, c.DeleteMessages(ctx, alice, []string{first.Hash}))
	msgs, err = c.Retrieve(ctx, alice, model.NamespaceDefault, "")
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, second.Hash, msgs[0].Hash)
}

func TestStoreReportsStatus(t *testing.T) {
	f := newFixture(t)
	c := New(f.ts.URL, nil, nil)

	_, err := c.Store(context.Background(), &model.SnodeMessage{Recipient: "nope", Data: "x"}, model.NamespaceDefault, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrStatus))
}

func TestCapabilitiesAreCached(t *testing.T) {
	f := newFixture(t)
	c := New(f.ts.URL, nil, nil)
	ctx := context.Background()

	caps, err := c.Capabilities(ctx, f.ts.URL)
	require.NoError(t, err)
	assert.Contains(t, caps, model.CommunityCapabilityBlind)

	key, err := c.ServerPublicKey(ctx, f.ts.URL)
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("09", 32), key)
	assert.Equal(t, int32(1), f.capCalls.Load())
}

func TestRoomPostAndPoll(t *testing.T) {
	f := newFixture(t)
	c := New(f.ts.URL, nil, nil)
	ctx := context.Background()

	res, err := c.PostMessage(ctx, f.ts.URL, "lobby", &model.CommunityPost{Sender: alice, Data: "aGk=", Timestamp: 5})
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.ID)
	assert.Equal(t, int64(nodeNow), res.PostedAt)

	msgs, err := c.RoomMessages(ctx, f.ts.URL, "lobby", 0)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, alice, msgs[0].SessionID)

	msgs, err = c.RoomMessages(ctx, f.ts.URL, "lobby", 1)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestDirectMessagesUseBlindedIDs(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := New(f.ts.URL, newIdentity(t), nil)
	b := New(f.ts.URL, newIdentity(t), nil)

	bID, err := b.BlindedID(ctx, f.ts.URL)
	require.NoError(t, err)
	assert.True(t, bID.IsBlinded())

	_, err = a.PostDirectMessage(ctx, f.ts.URL, bID.Hex(), "c2VjcmV0")
	require.NoError(t, err)

	inbox, err := b.Inbox(ctx, f.ts.URL, 0)
	require.NoError(t, err)
	require.Len(t, inbox, 1)
	aID, err := a.BlindedID(ctx, f.ts.URL)
	require.NoError(t, err)
	assert.Equal(t, aID.Hex(), inbox[0].Sender)
	assert.Equal(t, "c2VjcmV0", inbox[0].Message)

	outbox, err := a.Outbox(ctx, f.ts.URL, 0)
	require.NoError(t, err)
	require.Len(t, outbox, 1)
	assert.Equal(t, bID.Hex(), outbox[0].Recipient)
}

func TestPostDirectMessageNeedsIdentity(t *testing.T) {
	f := newFixture(t)
	c := New(f.ts.URL, nil, nil)

	_, err := c.PostDirectMessage(context.Background(), f.ts.URL, "15"+strings.Repeat("ab", 32), "x")
	assert.ErrorIs(t, err, errNoIdentity)
}

func TestSubscribe(t *testing.T) {
	f := newFixture(t)
	c := New(f.ts.URL, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := c.Subscribe(ctx, alice)
	require.NoError(t, err)

	// The node registers the subscriber after the upgrade completes, so
	// messages stored before that are never pushed.
	stored := make(map[string]bool)
	require.Eventually(t, func() bool {
		res, err := c.Store(ctx, &model.SnodeMessage{Recipient: alice, Data: "live"}, model.NamespaceDefault, nil)
		if err != nil {
			return false
		}
		stored[res.Hash] = true
		select {
		case m := <-ch:
			return stored[m.Hash] && m.Data == "live"
		case <-time.After(50 * time.Millisecond):
			return false
		}
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	require.Eventually(t, func() bool {
		for {
			select {
			case _, ok := <-ch:
				if !ok {
					return true
				}
			default:
				return false
			}
		}
	}, 2*time.Second, 10*time.Millisecond)
}
