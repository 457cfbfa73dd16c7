package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"e2e_transport/internal/repository/dedup"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseKeepsDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`
log_level: debug
dedup:
  backend: redis
  window: 1h
network:
  namespaces_require_auth: true
account:
  name: alice
`))
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, dedup.BackendRedis, cfg.Dedup.Backend)
	assert.Equal(t, time.Hour, cfg.Dedup.Window)
	assert.Equal(t, dedup.DefaultCapacity, cfg.Dedup.Capacity)
	assert.True(t, cfg.Network.DefaultRequiresAuth)
	assert.True(t, cfg.Network.HasNamespaces)
	assert.Equal(t, "alice", cfg.Account.Name)
	assert.Equal(t, "mongodb://localhost:27017", cfg.Mongo.URI)
	assert.Equal(t, 2*time.Second, cfg.Node.PollInterval)
}

func TestValidate(t *testing.T) {
	cases := map[string]string{
		"unknown backend":  "dedup: {backend: etcd}",
		"negative window":  "dedup: {window: -1s}",
		"no mongo uri":     "mongo: {uri: ''}",
		"no node url":      "node: {url: ''}",
		"no poll interval": "node: {poll_interval: 0s}",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestParseRejectsBadYAML(t *testing.T) {
	_, err := Parse([]byte("dedup: ["))
	assert.Error(t, err)
}

func TestLoadExplicitPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("node: {room: general}\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "general", cfg.Node.Room)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
