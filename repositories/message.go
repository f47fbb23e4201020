//go:generate go run go.uber.org/mock/mockgen -source=message.go -destination=../mocks/mock_message_repository.go -package=mocks
package repositories

import (
	"fmt"
	"log/slog"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
	"github.com/samber/lo"

	"chat-relay/domain"
	"chat-relay/errors"
)

const (
	messagePrefix = "msg:"
	sequenceKey   = "seq:messages"

	// Ids are rendered with 20-digit zero padding so the raw byte order
	// of keys is also the append order, which lets ReadRecent walk the
	// log backwards with a single reverse prefix scan.
	keyFormat = messagePrefix + "%020d"
)

// MessageRepository persists chat messages in BadgerDB as an
// append-only log keyed by a monotonic sequence id.
type MessageRepository struct {
	db  *badger.DB
	seq *badger.Sequence
	log *slog.Logger
}

func NewMessageRepository(db *badger.DB, log *slog.Logger) (*MessageRepository, error) {
	seq, err := db.GetSequence([]byte(sequenceKey), 64)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrStorage, err)
	}
	return &MessageRepository{db: db, seq: seq, log: log}, nil
}

// Close releases the unused tail of the id sequence. Ids stay strictly
// increasing across restarts; gaps are fine, reuse is not.
func (m *MessageRepository) Close() error {
	return m.seq.Release()
}

// Append durably persists the message and assigns it the next id.
// The message is validated against the schema constraints first, so a
// rejected message leaves no row behind.
func (m *MessageRepository) Append(msg domain.ChatMessage) (domain.StoredMessage, error) {
	if err := msg.Validate(); err != nil {
		return domain.StoredMessage{}, err
	}
	next, err := m.seq.Next()
	if err != nil {
		return domain.StoredMessage{}, fmt.Errorf("%w: %v", errors.ErrStorage, err)
	}
	stored := domain.StoredMessage{
		ID:        next + 1,
		Sender:    msg.Sender,
		Text:      msg.Text,
		MediaURL:  msg.MediaURL,
		Timestamp: msg.Timestamp,
	}
	value, err := json.Marshal(stored)
	if err != nil {
		return domain.StoredMessage{}, fmt.Errorf("%w: %v", errors.ErrStorage, err)
	}
	err = m.db.Update(func(txn *badger.Txn) error {
		return txn.Set(fmt.Appendf(nil, keyFormat, stored.ID), value)
	})
	if err != nil {
		return domain.StoredMessage{}, fmt.Errorf("%w: %v", errors.ErrStorage, err)
	}
	return stored, nil
}

// ReadRecent returns up to limit of the newest messages in ascending
// id order. An empty store yields an empty slice, never an error.
func (m *MessageRepository) ReadRecent(limit int) ([]domain.StoredMessage, error) {
	if limit <= 0 {
		return []domain.StoredMessage{}, nil
	}
	var values [][]byte
	err := m.db.View(func(txn *badger.Txn) error {
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		it := txn.NewIterator(options)
		defer it.Close()

		prefix := []byte(messagePrefix)
		// Seek past the last possible key so the reverse iterator lands
		// on the newest message.
		seekKey := append(append([]byte{}, prefix...), 0xFF)
		for it.Seek(seekKey); it.ValidForPrefix(prefix) && len(values) < limit; it.Next() {
			value, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			values = append(values, value)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrStorage, err)
	}

	messages := make([]domain.StoredMessage, 0, len(values))
	for _, value := range values {
		var stored domain.StoredMessage
		if err = json.Unmarshal(value, &stored); err != nil {
			return nil, fmt.Errorf("%w: %v", errors.ErrStorage, err)
		}
		messages = append(messages, stored)
	}
	// The scan collected newest first; callers want chronological order.
	return lo.Reverse(messages), nil
}
