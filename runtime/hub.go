// Package runtime is the concurrency core of the chat: the broadcast
// hub, the live-set registry, and the history read path. It carries
// the ordering contract (persist-then-broadcast, single global
// broadcast order) without containing transport or storage logic.
package runtime

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/observability"
)

// DefaultLeavePrefixLen is how much of the connection id a leave
// notice shows. Configurable, not an invariant.
const DefaultLeavePrefixLen = 6

// Hub accepts inbound messages, persists them, and pushes each
// accepted message to every live session, including the sender.
//
// The mutex serializes append+fanout across Send calls and orders
// Join/Leave against them: append order to the store is the single
// broadcast order every session observes. Deliver on a sink is a
// non-blocking enqueue, so no transport I/O ever runs under the lock.
type Hub struct {
	mu        sync.Mutex
	log       *slog.Logger
	store     contract.MessageStore
	registry  contract.IRegistry
	history   *HistoryLoader
	monitor   *observability.Monitor
	prefixLen int
}

func NewHub(log *slog.Logger, store contract.MessageStore, registry contract.IRegistry,
	history *HistoryLoader, monitor *observability.Monitor, prefixLen int) *Hub {
	if prefixLen <= 0 {
		prefixLen = DefaultLeavePrefixLen
	}
	return &Hub{
		log:       log,
		store:     store,
		registry:  registry,
		history:   history,
		monitor:   monitor,
		prefixLen: prefixLen,
	}
}

// Join adds the session to the live set and replays history to it.
// The snapshot and the welcome notice are enqueued while the hub lock
// is held, so no live message broadcast after the join can reach the
// session before them and no message persisted before the snapshot is
// delivered to it twice. Join is silent to other sessions.
func (h *Hub) Join(sink contract.EventSink) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.registry.Subscribe(sink.ID(), sink)
	for _, msg := range h.history.LoadRecent() {
		if err := sink.Deliver(msg); err != nil {
			// Session died mid-replay; its teardown will call Leave.
			h.log.Warn("History replay aborted", "session", sink.ID(), "error", err)
			h.monitor.SetLiveSessions(h.registry.Len())
			return
		}
	}
	_ = sink.Deliver(domain.System("Welcome!"))
	h.monitor.IncrHistoryReplays()
	h.monitor.SetLiveSessions(h.registry.Len())
	h.log.Info("Session joined", "session", sink.ID(), "live", h.registry.Len())
}

// Leave removes the session from the live set and tells the remaining
// sessions. The leaving session never receives its own notice, and a
// session already removed leaves silently.
func (h *Hub) Leave(sink contract.EventSink) {
	h.mu.Lock()
	if !h.registry.Unsubscribe(sink.ID()) {
		h.mu.Unlock()
		return
	}
	notice := domain.System(fmt.Sprintf("A user left (%s…)", shortID(sink.ID(), h.prefixLen)))
	failed := h.fanout(notice)
	h.monitor.SetLiveSessions(h.registry.Len())
	h.mu.Unlock()

	h.log.Info("Session left", "session", sink.ID(), "live", h.registry.Len())
	h.reap(failed)
}

// Send validates and persists the message, then fans it out to every
// live session, echoing back to the sender. Persist-then-broadcast is
// a hard ordering rule: a failed append broadcasts nothing, and any
// message observed live is recoverable from history on a later join.
func (h *Hub) Send(msg domain.ChatMessage) error {
	msg = msg.Normalize()
	msg.Timestamp = time.Now().UTC()
	if err := msg.Validate(); err != nil {
		return err
	}

	h.mu.Lock()
	stored, err := h.store.Append(msg)
	if err != nil {
		h.mu.Unlock()
		return err
	}
	failed := h.fanout(stored.Wire())
	h.mu.Unlock()

	h.monitor.IncrStored()
	h.monitor.IncrBroadcasts()
	h.reap(failed)
	return nil
}

// fanout enqueues the message on a snapshot of the live set and
// returns the sinks that faulted. Must be called with the hub lock
// held; Deliver never blocks, so holding it is cheap.
func (h *Hub) fanout(msg domain.ChatMessage) []contract.EventSink {
	var failed []contract.EventSink
	for _, sink := range h.registry.Snapshot() {
		if err := sink.Deliver(msg); err != nil {
			h.log.Warn("Delivery fault, scheduling removal",
				"session", sink.ID(), "error", err)
			h.monitor.IncrDeliveryFaults()
			failed = append(failed, sink)
		}
	}
	return failed
}

// reap closes faulted sessions outside the hub lock. Each close runs
// the session's teardown, which calls Leave exactly once, so the usual
// leave notice still goes out. A fault never fails the send that
// surfaced it and never touches healthy sessions.
func (h *Hub) reap(failed []contract.EventSink) {
	for _, sink := range failed {
		go func(s contract.EventSink) {
			_ = s.Close()
		}(sink)
	}
}

func shortID(id string, n int) string {
	if len(id) <= n {
		return id
	}
	return id[:n]
}
