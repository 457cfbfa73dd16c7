package app

import (
	"context"
	"e2e_transport/internal/model"
	"e2e_transport/internal/protocol/codec"
	"e2e_transport/internal/service/redis"
	"e2e_transport/internal/service/redis/redistest"
	"encoding/base64"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	bob     = "05" + strings.Repeat("bb", 32)
	group   = "03" + strings.Repeat("cc", 32)
	blinded = "15" + strings.Repeat("dd", 32)
)

func TestParseLine(t *testing.T) {
	tests := []struct {
		line string
		want command
	}{
		{"hello there", command{kind: cmdSend, arg: "hello there"}},
		{"  /to " + bob, command{kind: cmdTo, arg: bob}},
		{"/to " + group, command{kind: cmdTo, arg: group}},
		{"/room", command{kind: cmdRoom}},
		{"/inbox " + blinded, command{kind: cmdInbox, arg: blinded}},
		{"/history", command{kind: cmdHistory}},
		{"/unsend 1700000000000", command{kind: cmdUnsend, ts: 1700000000000}},
		{"/typing", command{kind: cmdTyping}},
		{"/accept", command{kind: cmdAccept}},
		{"/quit", command{kind: cmdQuit}},
	}
	for _, tc := range tests {
		t.Run(tc.line, func(t *testing.T) {
			got, err := parseLine(tc.line)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestParseLineRejects(t *testing.T) {
	for _, line := range []string{
		"",
		"/to",
		"/to nothex",
		"/to " + blinded,
		"/inbox " + bob,
		"/unsend soon",
		"/bogus",
	} {
		_, err := parseLine(line)
		assert.Error(t, err, line)
	}
}

func TestTargetFor(t *testing.T) {
	assert.Equal(t, model.StandardAddress(bob), targetFor(bob))
	assert.Equal(t, model.GroupAddress(group), targetFor(group))
}

func TestCursors(t *testing.T) {
	ctx := context.Background()
	rdb := redis.NewRedis(redistest.New())

	v, err := GetCursor(ctx, rdb, bob, "swarm")
	require.NoError(t, err)
	assert.Empty(t, v)

	require.NoError(t, SaveCursor(ctx, rdb, bob, "swarm", "hash-1"))
	v, err = GetCursor(ctx, rdb, bob, "swarm")
	require.NoError(t, err)
	assert.Equal(t, "hash-1", v)

	seq, err := GetSeqCursor(ctx, rdb, bob, "room:lobby")
	require.NoError(t, err)
	assert.Zero(t, seq)
	require.NoError(t, SaveSeqCursor(ctx, rdb, bob, "room:lobby", 42))
	seq, err = GetSeqCursor(ctx, rdb, bob, "room:lobby")
	require.NoError(t, err)
	assert.Equal(t, int64(42), seq)

	other, err := GetCursor(ctx, rdb, group, "swarm")
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestParseRetrieved(t *testing.T) {
	enc := func(s string) string { return base64.StdEncoding.EncodeToString([]byte(s)) }
	retrieved := []*model.RetrievedMessage{
		{Hash: "h1", Data: enc("ok")},
		{Hash: "h2", Data: "%%%"},
		{Hash: "h3", Data: enc("dup")},
		{Hash: "h4", Data: enc("bad")},
		{Hash: "h5", Data: enc("stamped")},
	}

	var seen []string
	parse := func(_ context.Context, data []byte, hash string) (*model.Message, error) {
		seen = append(seen, hash)
		switch string(data) {
		case "dup":
			return nil, codec.ErrDuplicateMessage
		case "bad":
			return nil, errors.New("boom")
		case "stamped":
			return &model.Message{ServerHash: hash, ReceivedTimestamp: 7}, nil
		}
		return &model.Message{ServerHash: hash}, nil
	}

	msgs := parseRetrieved(context.Background(), retrieved, parse, 99)
	assert.Equal(t, []string{"h1", "h3", "h4", "h5"}, seen)
	require.Len(t, msgs, 2)
	assert.Equal(t, "h1", msgs[0].ServerHash)
	assert.Equal(t, int64(99), msgs[0].ReceivedTimestamp)
	assert.Equal(t, int64(7), msgs[1].ReceivedTimestamp)
}

func TestNewAccount(t *testing.T) {
	acc, err := newAccount("alice", 1_700_000_000_123)
	require.NoError(t, err)
	assert.Equal(t, "alice", acc.Name)
	assert.Len(t, acc.Seed, 32)
	assert.Equal(t, "alice", acc.Profile.DisplayName)
	assert.Equal(t, int64(1_700_000_000), acc.Profile.LastUpdated)
	assert.Equal(t, int64(1_700_000_000_123), acc.ContactsUpdatedAt)
	assert.Equal(t, model.PrefixStandard, acc.KeyPair().AccountID().Prefix)
}
