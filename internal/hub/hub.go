// Package hub fans confirmed device-state changes out to per-owner live
// subscriber channels.
package hub

import (
	"context"
	"sync"
	"time"

	"github.com/asaskevich/EventBus"
	"github.com/talkincode/wafleet/pkg/common"
	"go.uber.org/zap"
)

// Frame types pushed over a live subscription.
const (
	FrameDeviceStatus = "device-status"
	FrameQueueUpdate  = "queue-update"
	FrameMessageSent  = "message-sent"
	FrameStatsUpdate  = "stats-update"
	FrameConnected    = "connected"
	FrameHeartbeat    = "heartbeat"
)

// TopicDeviceStatus is the event-bus topic the webhook handler and the
// reconciliation service publish confirmed state mutations on.
const TopicDeviceStatus = "device:status"

// subscriberBuffer bounds the per-channel backlog. Delivery is at-most-once:
// a momentarily slow channel misses frames instead of queuing them.
const subscriberBuffer = 16

// Frame is one typed message on a live subscription.
type Frame struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp string      `json:"timestamp"`
}

// NewFrame stamps a frame with the current time.
func NewFrame(frameType string, data interface{}) Frame {
	return Frame{
		Type:      frameType,
		Data:      data,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

// Subscriber is one live-viewer channel, keyed by owning account.
type Subscriber struct {
	id      int64
	ownerID int64
	frames  chan Frame
}

// Frames returns the subscriber's receive channel. It is closed on
// unsubscribe.
func (s *Subscriber) Frames() <-chan Frame {
	return s.frames
}

// OwnerID returns the owning account the subscription is keyed by.
func (s *Subscriber) OwnerID() int64 {
	return s.ownerID
}

// Hub maintains the per-owner subscriber sets. Subscribe/unsubscribe and
// publish are safe for concurrent use. Channel sends happen under the read
// lock and the unsubscribe close under the write lock, so a frame can never
// land on a closed channel.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[int64]map[*Subscriber]struct{}
	heartbeat   time.Duration
}

func New(heartbeat time.Duration) *Hub {
	if heartbeat <= 0 {
		heartbeat = 30 * time.Second
	}
	return &Hub{
		subscribers: make(map[int64]map[*Subscriber]struct{}),
		heartbeat:   heartbeat,
	}
}

// Subscribe registers a new live channel for an owner. The channel opens
// with a "connected" frame so clients can confirm the stream is live.
func (h *Hub) Subscribe(ownerID int64) *Subscriber {
	sub := &Subscriber{
		id:      common.UUIDint64(),
		ownerID: ownerID,
		frames:  make(chan Frame, subscriberBuffer),
	}
	h.mu.Lock()
	set, ok := h.subscribers[ownerID]
	if !ok {
		set = make(map[*Subscriber]struct{})
		h.subscribers[ownerID] = set
	}
	set[sub] = struct{}{}
	h.mu.Unlock()

	sub.frames <- NewFrame(FrameConnected, nil)
	zap.L().Debug("hub subscriber registered", zap.Int64("owner_id", ownerID))
	return sub
}

// Unsubscribe deregisters a channel. Idempotent: only the call that removes
// the subscriber from the map closes the channel.
func (h *Hub) Unsubscribe(sub *Subscriber) {
	if sub == nil {
		return
	}
	h.mu.Lock()
	set, ok := h.subscribers[sub.ownerID]
	var existed bool
	if ok {
		_, existed = set[sub]
		delete(set, sub)
		if len(set) == 0 {
			delete(h.subscribers, sub.ownerID)
		}
	}
	if existed {
		// Close while holding the write lock so in-flight publishes, which
		// send under the read lock, cannot hit a closed channel.
		close(sub.frames)
	}
	h.mu.Unlock()

	if existed {
		zap.L().Debug("hub subscriber removed", zap.Int64("owner_id", sub.ownerID))
	}
}

// Publish delivers a frame to every currently open channel of the owner.
// Delivery is at-most-once: the send never blocks on a stalled channel, the
// frame is simply dropped for that subscriber. The sends stay under the read
// lock; they cannot block, and the lock keeps Unsubscribe's close from
// racing them.
func (h *Hub) Publish(ownerID int64, frame Frame) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for sub := range h.subscribers[ownerID] {
		select {
		case sub.frames <- frame:
		default:
			// Slow consumer, latest-state-only semantics: drop.
		}
	}
}

// SubscriberCount returns the number of open channels for an owner.
func (h *Hub) SubscriberCount(ownerID int64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers[ownerID])
}

// AttachBus subscribes the hub to confirmed device-state mutations. Bus
// delivery is synchronous, so per-device commit order is preserved.
func (h *Hub) AttachBus(bus EventBus.Bus) error {
	return bus.Subscribe(TopicDeviceStatus, func(ownerID int64, data interface{}) {
		h.Publish(ownerID, NewFrame(FrameDeviceStatus, data))
	})
}

// Run emits heartbeat frames on every open channel until the context is
// cancelled, letting clients detect a silently dead stream.
func (h *Hub) Run(ctx context.Context) {
	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.mu.RLock()
			owners := make([]int64, 0, len(h.subscribers))
			for ownerID := range h.subscribers {
				owners = append(owners, ownerID)
			}
			h.mu.RUnlock()
			for _, ownerID := range owners {
				h.Publish(ownerID, NewFrame(FrameHeartbeat, nil))
			}
		}
	}
}
