package runtime

import (
	"log/slog"

	"github.com/samber/lo"

	"chat-relay/contract"
	"chat-relay/domain"
)

// DefaultHistoryLimit is the recent-history window replayed to a
// joining session. Configurable, not an invariant.
const DefaultHistoryLimit = 50

// HistoryLoader is the pure read path of the hub: it loads the most
// recent messages in chronological order and converts them to wire
// form. Stateless, no caching, safe for concurrent use.
type HistoryLoader struct {
	store contract.MessageStore
	limit int
	log   *slog.Logger
}

func NewHistoryLoader(store contract.MessageStore, limit int, log *slog.Logger) *HistoryLoader {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return &HistoryLoader{store: store, limit: limit, log: log}
}

// LoadRecent returns the replay window, oldest first. A store failure
// degrades to an empty history: a joining session must still be able
// to participate live.
func (h *HistoryLoader) LoadRecent() []domain.ChatMessage {
	stored, err := h.store.ReadRecent(h.limit)
	if err != nil {
		h.log.Warn("History load failed, joining with empty replay", "error", err)
		return nil
	}
	return lo.Map(stored, func(item domain.StoredMessage, _ int) domain.ChatMessage {
		return item.Wire()
	})
}
