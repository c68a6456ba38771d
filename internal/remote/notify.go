package remote

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"strings"
	"time"

	"github.com/coder/websocket"
)

// ChangeEvent is a server-side hint that records for an owner changed.
// It only tells the device to reconcile sooner than the next tick; missing
// an event is harmless because the periodic full reconciliation catches up.
type ChangeEvent struct {
	OwnerID    string `json:"ownerId"`
	Collection string `json:"collection,omitempty"`
}

// Notifier maintains a websocket subscription to the cloud store's change
// feed and invokes a callback for each event.
type Notifier struct {
	// BaseURL is the API base; the ws scheme is derived from it.
	BaseURL string

	// APIKey is sent as a bearer token when non-empty.
	APIKey string

	// ReconnectDelay is the wait between reconnect attempts.
	ReconnectDelay time.Duration

	// Logger for connection diagnostics. Nil means a stderr default.
	Logger *log.Logger
}

// Listen subscribes to change events for one owner and calls onEvent for
// each. It reconnects after connection loss and returns when ctx is done.
func (n *Notifier) Listen(ctx context.Context, ownerID string, onEvent func(ChangeEvent)) {
	logger := n.Logger
	if logger == nil {
		logger = log.New(os.Stderr, "[notify] ", log.LstdFlags)
	}
	delay := n.ReconnectDelay
	if delay <= 0 {
		delay = 10 * time.Second
	}

	wsURL := strings.Replace(n.BaseURL, "https://", "wss://", 1)
	wsURL = strings.Replace(wsURL, "http://", "ws://", 1)
	wsURL += "/api/v1/events?ownerId=" + ownerID

	for {
		if ctx.Err() != nil {
			return
		}

		if err := n.listenOnce(ctx, wsURL, onEvent); err != nil && ctx.Err() == nil {
			logger.Printf("Change feed disconnected: %v (retrying in %v)", err, delay)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
	}
}

func (n *Notifier) listenOnce(ctx context.Context, wsURL string, onEvent func(ChangeEvent)) error {
	opts := &websocket.DialOptions{}
	if n.APIKey != "" {
		opts.HTTPHeader = map[string][]string{
			"Authorization": {"Bearer " + n.APIKey},
		}
	}

	conn, _, err := websocket.Dial(ctx, wsURL, opts)
	if err != nil {
		return err
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return err
		}

		var ev ChangeEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			continue
		}
		onEvent(ev)
	}
}
