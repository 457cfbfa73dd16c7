package codec

import (
	"context"

	"e2e_transport/internal/model"
)

func (c *Codec) ParseOneOnOne(ctx context.Context, data []byte, serverHash string) (*model.Message, error) {
	d, err := c.DecodePairwise(data)
	if err != nil {
		return nil, err
	}
	msg, err := c.Parse(ctx, d, ParseOptions{Policy: Strict, CheckBlocked: true})
	if err != nil {
		return nil, err
	}
	msg.ServerHash = serverHash
	return msg, nil
}

func (c *Codec) ParseGroupMessage(ctx context.Context, groupID string, data []byte, serverHash string) (*model.Message, error) {
	d, err := c.DecodeGroup(ctx, groupID, data)
	if err != nil {
		return nil, err
	}
	msg, err := c.Parse(ctx, d, ParseOptions{Policy: Strict})
	if err != nil {
		return nil, err
	}
	msg.ServerHash = serverHash
	msg.GroupPublicKey = groupID
	return msg, nil
}

func (c *Codec) ParseLegacyGroupMessage(ctx context.Context, data []byte, serverHash string) (*model.Message, error) {
	d, groupKey, err := c.DecodeLegacyGroup(ctx, data)
	if err != nil {
		return nil, err
	}
	msg, err := c.Parse(ctx, d, ParseOptions{Policy: Strict})
	if err != nil {
		return nil, err
	}
	msg.ServerHash = serverHash
	msg.GroupPublicKey = groupKey
	return msg, nil
}

// ParseCommunityMessage returns (nil, nil) for a post without data.
func (c *Codec) ParseCommunityMessage(ctx context.Context, post *model.CommunityMessage, blindedIDs []model.AccountID) (*model.Message, error) {
	d, err := c.DecodeCommunity(post)
	if d == nil || err != nil {
		return nil, err
	}
	msg, err := c.Parse(ctx, d, ParseOptions{Policy: Relaxed, BlindedIDs: blindedIDs})
	if err != nil {
		return nil, err
	}
	msg.OpenGroupServerMessageID = post.ID
	return msg, nil
}

func (c *Codec) ParseCommunityDirectMessage(ctx context.Context, dm *model.CommunityDirectMessage, serverPublicKey string, blindedIDs []model.AccountID) (*model.Message, error) {
	d, err := c.DecodeCommunityDirect(dm, serverPublicKey)
	if err != nil {
		return nil, err
	}
	return c.Parse(ctx, d, ParseOptions{Policy: Relaxed, BlindedIDs: blindedIDs})
}
