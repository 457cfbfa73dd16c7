package network

import (
	"context"
	"e2e_transport/internal/model"
	"e2e_transport/internal/service/node"
	"e2e_transport/internal/utils/log"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Subscribe streams messages stored for pubkey from now on. The channel is
// closed when ctx is done or the connection drops.
func (c *Client) Subscribe(ctx context.Context, pubkey string) (<-chan *model.RetrievedMessage, error) {
	u, err := url.Parse(c.host)
	if err != nil {
		return nil, err
	}
	u.Scheme = strings.Replace(u.Scheme, "http", "ws", 1)
	u.Path = "/subscribe"
	u.RawQuery = url.Values{"pubkey": []string{pubkey}}.Encode()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, err
	}

	out := make(chan *model.RetrievedMessage, 64)
	go func() {
		<-ctx.Done()
		conn.Close()
	}()
	go func() {
		defer close(out)
		for {
			var pushed node.Pushed
			if err := conn.ReadJSON(&pushed); err != nil {
				if ctx.Err() == nil {
					log.Warn("subscription closed", zap.String("pubkey", pubkey), zap.Error(err))
				}
				return
			}
			if pushed.Message == nil {
				continue
			}
			select {
			case out <- pushed.Message:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}
