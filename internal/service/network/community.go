package network

import (
	"context"
	"e2e_transport/internal/cryptographic/blinding"
	"e2e_transport/internal/model"
	"e2e_transport/internal/service/node"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
)

var errNoIdentity = errors.New("client has no identity key")

func (c *Client) capabilities(ctx context.Context, server string) (*node.Capabilities, error) {
	if v, ok := c.caches.Load(server); ok {
		return v.(*node.Capabilities), nil
	}

	var caps node.Capabilities
	if err := c.do(ctx, http.MethodGet, c.url(server, "/capabilities", nil), nil, &caps); err != nil {
		return nil, err
	}
	v, _ := c.caches.LoadOrStore(server, &caps)
	return v.(*node.Capabilities), nil
}

func (c *Client) Capabilities(ctx context.Context, server string) ([]string, error) {
	caps, err := c.capabilities(ctx, server)
	if err != nil {
		return nil, err
	}
	return caps.Capabilities, nil
}

func (c *Client) ServerPublicKey(ctx context.Context, server string) (string, error) {
	caps, err := c.capabilities(ctx, server)
	if err != nil {
		return "", err
	}
	return caps.PublicKey, nil
}

func (c *Client) PostMessage(ctx context.Context, server, room string, post *model.CommunityPost) (*model.CommunityPostResult, error) {
	var res model.CommunityPostResult
	path := fmt.Sprintf("/room/%s/message", url.PathEscape(room))
	if err := c.do(ctx, http.MethodPost, c.url(server, path, nil), post, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// PostDirectMessage sends an already encrypted message to a blinded inbox.
// The sender is the user's blinded id on server.
func (c *Client) PostDirectMessage(ctx context.Context, server, blindedRecipient, message string) (*model.CommunityPostResult, error) {
	sender, err := c.BlindedID(ctx, server)
	if err != nil {
		return nil, err
	}

	var res model.CommunityPostResult
	path := fmt.Sprintf("/inbox/%s", url.PathEscape(blindedRecipient))
	err = c.do(ctx, http.MethodPost, c.url(server, path, nil), &node.DirectMessageRequest{
		Sender:  sender.Hex(),
		Message: message,
	}, &res)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// BlindedID is the user's blinded id on server.
func (c *Client) BlindedID(ctx context.Context, server string) (model.AccountID, error) {
	if len(c.edPub) == 0 {
		return model.AccountID{}, errNoIdentity
	}
	keyHex, err := c.ServerPublicKey(ctx, server)
	if err != nil {
		return model.AccountID{}, err
	}
	serverPub, err := hex.DecodeString(keyHex)
	if err != nil {
		return model.AccountID{}, fmt.Errorf("server key: %w", err)
	}
	return blinding.Blind15ID(c.edPub, serverPub)
}

func (c *Client) RoomMessages(ctx context.Context, server, room string, since int64) ([]*model.CommunityMessage, error) {
	var res []*model.CommunityMessage
	path := fmt.Sprintf("/room/%s/messages", url.PathEscape(room))
	if err := c.do(ctx, http.MethodGet, c.url(server, path, sinceQuery(since)), nil, &res); err != nil {
		return nil, err
	}
	return res, nil
}

func (c *Client) Inbox(ctx context.Context, server string, since int64) ([]*model.CommunityDirectMessage, error) {
	return c.directMessages(ctx, server, "inbox", since)
}

func (c *Client) Outbox(ctx context.Context, server string, since int64) ([]*model.CommunityDirectMessage, error) {
	return c.directMessages(ctx, server, "outbox", since)
}

func (c *Client) directMessages(ctx context.Context, server, box string, since int64) ([]*model.CommunityDirectMessage, error) {
	self, err := c.BlindedID(ctx, server)
	if err != nil {
		return nil, err
	}

	var res []*model.CommunityDirectMessage
	path := fmt.Sprintf("/%s/%s", box, self.Hex())
	if err := c.do(ctx, http.MethodGet, c.url(server, path, sinceQuery(since)), nil, &res); err != nil {
		return nil, err
	}
	return res, nil
}

func sinceQuery(since int64) url.Values {
	if since <= 0 {
		return nil
	}
	return url.Values{"since": []string{strconv.FormatInt(since, 10)}}
}
