package realtime

import (
	"context"
	"net/http"

	"github.com/coder/websocket"
)

// Subprotocol is the STOMP 1.2 WebSocket subprotocol.
const Subprotocol = "v12.stomp"

const maxMessageBytes = 1 << 20

// WebSocketDialer dials with github.com/coder/websocket.
type WebSocketDialer struct {
	httpClient *http.Client
}

// NewWebSocketDialer creates a dialer. client may be nil for http.DefaultClient.
func NewWebSocketDialer(client *http.Client) *WebSocketDialer {
	return &WebSocketDialer{httpClient: client}
}

func (d *WebSocketDialer) Dial(ctx context.Context, endpoint string, header http.Header) (Conn, error) {
	c, _, err := websocket.Dial(ctx, endpoint, &websocket.DialOptions{
		HTTPClient:   d.httpClient,
		HTTPHeader:   header,
		Subprotocols: []string{Subprotocol},
	})
	if err != nil {
		return nil, err
	}
	c.SetReadLimit(maxMessageBytes)
	return &wsConn{c: c}, nil
}

type wsConn struct {
	c *websocket.Conn
}

func (w *wsConn) Read(ctx context.Context) ([]byte, error) {
	_, data, err := w.c.Read(ctx)
	return data, err
}

func (w *wsConn) Write(ctx context.Context, data []byte) error {
	return w.c.Write(ctx, websocket.MessageText, data)
}

func (w *wsConn) Close() error {
	return w.c.Close(websocket.StatusNormalClosure, "")
}
