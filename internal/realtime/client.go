package realtime

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/alexanderramin/tempo/internal/domain"
	"github.com/gorilla/websocket"
)

// Client is a websocket consumer of the event stream.
type Client struct {
	ws *websocket.Conn
}

// Dial connects to the /ws endpoint under baseURL as id. baseURL may use an
// http(s) or ws(s) scheme.
func Dial(ctx context.Context, baseURL string, id domain.Identity) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing server url: %w", err)
	}
	switch u.Scheme {
	case "http", "":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/ws"
	u.RawQuery = identityQuery(id).Encode()

	ws, resp, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dialing %s: %s: %w", u.Redacted(), resp.Status, err)
		}
		return nil, fmt.Errorf("dialing %s: %w", u.Redacted(), err)
	}
	return &Client{ws: ws}, nil
}

// Next blocks for the next server message.
func (c *Client) Next() (Message, error) {
	var msg Message
	if err := c.ws.ReadJSON(&msg); err != nil {
		return Message{}, err
	}
	return msg, nil
}

// Ping asks the server to refresh presence. The server answers with PONG.
func (c *Client) Ping() error {
	_ = c.ws.SetWriteDeadline(time.Now().Add(defaultWriteWait))
	return c.ws.WriteJSON(Message{Type: TypePing, Timestamp: time.Now().UTC()})
}

// Close sends a normal close frame and closes the socket.
func (c *Client) Close() error {
	_ = c.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(defaultWriteWait))
	return c.ws.Close()
}

// IsClosed reports whether err means the server ended the stream.
func IsClosed(err error) bool {
	return websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway)
}

// SetReadDeadline bounds the next Next call.
func (c *Client) SetReadDeadline(t time.Time) error {
	return c.ws.SetReadDeadline(t)
}
