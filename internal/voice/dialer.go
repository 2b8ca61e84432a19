package voice

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
)

// RealtimeDialer connects to an OpenAI-compatible realtime websocket endpoint.
type RealtimeDialer struct {
	URL    string
	Model  string
	APIKey string

	HandshakeTimeout time.Duration
}

// Endpoint returns the websocket URL including the model query parameter.
func (d RealtimeDialer) Endpoint() (string, error) {
	u, err := url.Parse(d.URL)
	if err != nil {
		return "", err
	}
	if u.Scheme != "wss" && u.Scheme != "ws" {
		return "", fmt.Errorf("voice: realtime url must be ws(s), got %q", u.Scheme)
	}
	if d.Model != "" {
		q := u.Query()
		q.Set("model", d.Model)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

func (d RealtimeDialer) Dial(ctx context.Context) (Conn, error) {
	if d.APIKey == "" {
		return nil, errors.New("voice: realtime api key not configured")
	}
	endpoint, err := d.Endpoint()
	if err != nil {
		return nil, err
	}

	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: d.HandshakeTimeout,
	}
	if dialer.HandshakeTimeout <= 0 {
		dialer.HandshakeTimeout = 10 * time.Second
	}

	h := http.Header{}
	h.Set("Authorization", "Bearer "+d.APIKey)
	h.Set("OpenAI-Beta", "realtime=v1")

	conn, resp, err := dialer.DialContext(ctx, endpoint, h)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("voice: realtime dial failed with status %d: %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("voice: realtime dial failed: %w", err)
	}
	return conn, nil
}
