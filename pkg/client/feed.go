package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"
)

// Feed streams post events to handler until ctx is cancelled or the server
// closes the connection. Cancellation returns nil.
func (c *Client) Feed(ctx context.Context, handler func(FeedEvent)) error {
	token := c.Token()
	if token == "" {
		return errors.New("feed requires a signed-in session")
	}

	wsURL, err := c.feedURL()
	if err != nil {
		return err
	}
	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, wsURL, header)
	if err != nil {
		if resp != nil {
			return &APIError{Status: resp.StatusCode, Message: "feed upgrade rejected"}
		}
		return fmt.Errorf("dial feed: %w", err)
	}
	defer func() { _ = conn.Close() }()

	stop := context.AfterFunc(ctx, func() {
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		_ = conn.Close()
	})
	defer stop()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("read feed: %w", err)
		}

		var ev FeedEvent
		if err := json.Unmarshal(msg, &ev); err != nil {
			continue
		}
		handler(ev)
	}
}

func (c *Client) feedURL() (string, error) {
	u, err := url.Parse(c.endpoint("/ws/feed"))
	if err != nil {
		return "", err
	}
	switch strings.ToLower(u.Scheme) {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	return u.String(), nil
}
