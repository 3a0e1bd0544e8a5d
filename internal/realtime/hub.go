// Package realtime fans mutation events out to connected WebSocket clients.
//
// Clients subscribe to named channels. Every client is subscribed to its own
// user channel on registration; project channels are joined and left
// explicitly. Delivery is best effort to currently connected subscribers
// only: there is no replay log and no offline queue.
package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/taskboard-dev/taskboard/internal/logger"
)

// Emitter is the publishing side of the hub. Services depend on this rather
// than on *Hub.
type Emitter interface {
	Emit(channel, event string, payload any)
}

func ProjectChannel(projectID uint) string {
	return fmt.Sprintf("project:%d", projectID)
}

func UserChannel(userID uint) string {
	return fmt.Sprintf("user:%d", userID)
}

// Envelope is the frame written to clients.
type Envelope struct {
	Event   string          `json:"event"`
	Channel string          `json:"channel"`
	Payload json.RawMessage `json:"payload"`
}

const (
	relayMinBackoff = 500 * time.Millisecond
	relayMaxBackoff = 30 * time.Second
)

type Hub struct {
	log   *logger.Logger
	relay Relay

	// subscribed is true while the relay subscription is live. Until then
	// Emit also delivers locally.
	subscribed atomic.Bool

	mu       sync.RWMutex
	channels map[string]map[*Client]struct{}
	clients  map[*Client]struct{}

	done chan struct{}
}

// NewHub creates a hub. relay may be nil, in which case events are
// delivered to local subscribers only.
func NewHub(log *logger.Logger, relay Relay) *Hub {
	return &Hub{
		log:      log.Named("realtime"),
		relay:    relay,
		channels: make(map[string]map[*Client]struct{}),
		clients:  make(map[*Client]struct{}),
		done:     make(chan struct{}),
	}
}

// Run consumes the relay (when configured) until ctx is cancelled, then
// disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	if h.relay != nil {
		go h.consumeRelay(ctx)
	}

	<-ctx.Done()
	h.log.Info("shutting down hub", "clients", h.ClientCount())
	h.closeAll()
}

// consumeRelay keeps a relay subscription open, resubscribing with
// exponential backoff whenever it breaks.
func (h *Hub) consumeRelay(ctx context.Context) {
	backoff := relayMinBackoff

	for {
		err := h.relay.Subscribe(ctx, func() {
			h.subscribed.Store(true)
			backoff = relayMinBackoff
			h.log.Info("relay subscription established")
		}, h.deliverRaw)
		h.subscribed.Store(false)

		if ctx.Err() != nil {
			return
		}
		h.log.Error("relay subscription ended, retrying", "error", err, "backoff", backoff)

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, relayMaxBackoff)
	}
}

// Wait blocks until Run has returned.
func (h *Hub) Wait() {
	<-h.done
}

// Register adds the client and subscribes it to its user channel.
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.clients[client] = struct{}{}
	h.subscribeLocked(client, UserChannel(client.UserID))
	h.log.Debug("client registered", "user_id", client.UserID)
}

func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.removeLocked(client)
}

func (h *Hub) Join(client *Client, channel string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client]; !ok {
		return
	}
	h.subscribeLocked(client, channel)
}

func (h *Hub) Leave(client *Client, channel string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.unsubscribeLocked(client, channel)
}

// Emit publishes event on channel. It never blocks on slow clients and never
// returns an error. Local subscribers receive the event through the relay
// subscription when it is live and directly otherwise.
func (h *Hub) Emit(channel, event string, payload any) {
	body, err := json.Marshal(payload)
	if err != nil {
		h.log.Error("failed to marshal event payload", "event", event, "channel", channel, "error", err)
		return
	}

	frame, err := json.Marshal(Envelope{Event: event, Channel: channel, Payload: body})
	if err != nil {
		h.log.Error("failed to marshal event", "event", event, "error", err)
		return
	}

	if h.relay != nil {
		err := h.relay.Publish(context.Background(), frame)
		if err != nil {
			h.log.Warn("relay publish failed, delivering locally", "event", event, "error", err)
		} else if h.subscribed.Load() {
			return
		}
	}

	h.deliver(channel, frame)
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) ChannelSize(channel string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.channels[channel])
}

func (h *Hub) deliverRaw(frame []byte) {
	var envelope Envelope
	if err := json.Unmarshal(frame, &envelope); err != nil {
		h.log.Warn("dropping malformed relay frame", "error", err)
		return
	}
	h.deliver(envelope.Channel, frame)
}

func (h *Hub) deliver(channel string, frame []byte) {
	h.mu.RLock()
	var slow []*Client
	for client := range h.channels[channel] {
		if !client.enqueue(frame) {
			slow = append(slow, client)
		}
	}
	h.mu.RUnlock()

	if len(slow) == 0 {
		return
	}

	h.mu.Lock()
	for _, client := range slow {
		h.log.Warn("dropping slow client", "user_id", client.UserID)
		h.removeLocked(client)
	}
	h.mu.Unlock()
}

func (h *Hub) subscribeLocked(client *Client, channel string) {
	subscribers, ok := h.channels[channel]
	if !ok {
		subscribers = make(map[*Client]struct{})
		h.channels[channel] = subscribers
	}
	subscribers[client] = struct{}{}
	client.channels[channel] = struct{}{}
}

func (h *Hub) unsubscribeLocked(client *Client, channel string) {
	if subscribers, ok := h.channels[channel]; ok {
		delete(subscribers, client)
		if len(subscribers) == 0 {
			delete(h.channels, channel)
		}
	}
	delete(client.channels, channel)
}

func (h *Hub) removeLocked(client *Client) {
	if _, ok := h.clients[client]; !ok {
		return
	}

	for channel := range client.channels {
		h.unsubscribeLocked(client, channel)
	}
	delete(h.clients, client)
	client.close()
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		h.removeLocked(client)
	}
}
