// Package network talks to the relay node: swarm storage for pairwise and
// group traffic and the community API for rooms and blinded inboxes.
package network

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"e2e_transport/internal/model"
	"e2e_transport/internal/service/node"
	"e2e_transport/internal/utils/clock"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"
)

var ErrStatus = errors.New("unexpected status")

type Client struct {
	host   string
	http   *http.Client
	edPub  ed25519.PublicKey
	clock  *clock.NetworkClock
	caches sync.Map // server -> *node.Capabilities
}

// New returns a client for the node at host (e.g. "http://localhost:9090").
// edPub is the user's identity key, used to derive the blinded sender of
// inbox messages. c, when set, is corrected by the node's clock on every store.
func New(host string, edPub ed25519.PublicKey, c *clock.NetworkClock) *Client {
	return &Client{
		host:  host,
		http:  &http.Client{Timeout: 30 * time.Second},
		edPub: edPub,
		clock: c,
	}
}

func (c *Client) Host() string {
	return c.host
}

func (c *Client) url(base, path string, query url.Values) string {
	u, err := url.Parse(base)
	if err != nil {
		return base + path
	}
	u.Path = path
	u.RawQuery = query.Encode()
	return u.String()
}

func (c *Client) do(ctx context.Context, method, u string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	defer io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w %d from %s: %s", ErrStatus, resp.StatusCode, u, bytes.TrimSpace(msg))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// Store writes msg to the recipient's swarm. auth is not checked by the relay.
func (c *Client) Store(ctx context.Context, msg *model.SnodeMessage, namespace int, auth *model.SwarmAuth) (*model.StoreResult, error) {
	var res model.StoreResult
	err := c.do(ctx, http.MethodPost, c.url(c.host, "/store", nil), &node.StoreRequest{
		Pubkey:    msg.Recipient,
		Namespace: namespace,
		Data:      msg.Data,
		TTL:       msg.TTL,
		Timestamp: msg.Timestamp,
	}, &res)
	if err != nil {
		return nil, err
	}
	if c.clock != nil && res.Timestamp > 0 {
		c.clock.ObserveNodeTime(res.Timestamp)
	}
	return &res, nil
}

// Retrieve returns the messages stored for pubkey after lastHash.
func (c *Client) Retrieve(ctx context.Context, pubkey string, namespace int, lastHash string) ([]*model.RetrievedMessage, error) {
	q := url.Values{
		"pubkey":    []string{pubkey},
		"namespace": []string{strconv.Itoa(namespace)},
	}
	if lastHash != "" {
		q.Set("last_hash", lastHash)
	}

	var res node.RetrieveResponse
	if err := c.do(ctx, http.MethodGet, c.url(c.host, "/retrieve", q), nil, &res); err != nil {
		return nil, err
	}
	return res.Messages, nil
}

// DeleteMessages removes messages from owner's swarm by hash.
func (c *Client) DeleteMessages(ctx context.Context, owner string, hashes []string) error {
	return c.do(ctx, http.MethodPost, c.url(c.host, "/delete", nil), &node.DeleteRequest{
		Pubkey: owner,
		Hashes: hashes,
	}, nil)
}
