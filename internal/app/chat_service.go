package app

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"thinktank-service/internal/domain"
)

// ChatID derives the shared chat document id for a pair of users: the
// two ids sorted and concatenated, so both sides resolve the same
// document.
func ChatID(a, b string) string {
	if strings.Compare(a, b) > 0 {
		a, b = b, a
	}
	return a + b
}

// ChatService stores direct-message history as a single document per
// user pair holding an append-only messages array, and fans out
// in-process snapshots to subscribers on every send.
type ChatService struct {
	store DocumentStore
	now   func() time.Time
	newID func() string

	mu          sync.Mutex
	subscribers map[string]map[chan []domain.ChatMessage]struct{}

	chatMu    sync.Mutex
	chatLocks map[string]*sync.Mutex
}

func NewChatService(store DocumentStore) *ChatService {
	return NewChatServiceWithClock(store, time.Now, uuid.NewString)
}

// NewChatServiceWithClock pins timestamps and message ids for tests.
func NewChatServiceWithClock(store DocumentStore, now func() time.Time, newID func() string) *ChatService {
	return &ChatService{
		store:       store,
		now:         now,
		newID:       newID,
		subscribers: make(map[string]map[chan []domain.ChatMessage]struct{}),
		chatLocks:   make(map[string]*sync.Mutex),
	}
}

// lockChat serializes writers of one chat document. Updates rewrite the
// whole messages array, so concurrent read-append-write cycles on the
// same chat would lose messages without it.
func (s *ChatService) lockChat(chatID string) *sync.Mutex {
	s.chatMu.Lock()
	defer s.chatMu.Unlock()
	l, ok := s.chatLocks[chatID]
	if !ok {
		l = &sync.Mutex{}
		s.chatLocks[chatID] = l
	}
	return l
}

// Send appends a message to the pair's chat document, creating the
// document on first contact, and broadcasts the updated history.
func (s *ChatService) Send(ctx context.Context, fromID, toID, text string) (domain.ChatMessage, error) {
	text = strings.TrimSpace(text)
	if fromID == "" || toID == "" || text == "" {
		return domain.ChatMessage{}, domain.ErrInvalidInput
	}

	chatID := ChatID(fromID, toID)
	lock := s.lockChat(chatID)
	lock.Lock()
	defer lock.Unlock()

	history, err := s.history(ctx, chatID)
	if err != nil {
		return domain.ChatMessage{}, err
	}

	message := domain.ChatMessage{
		ID:        s.newID(),
		UserID:    fromID,
		Message:   text,
		Timestamp: s.now().UTC(),
	}
	history = append(history, message)

	if err := s.store.WriteMerge(ctx, ChatPath(chatID), Fields{"messages": encodeMessages(history)}); err != nil {
		return domain.ChatMessage{}, fmt.Errorf("append chat message: %w", err)
	}

	s.broadcast(chatID, history)
	return message, nil
}

// Messages returns the pair's full history. An absent chat document is
// an empty conversation, not an error.
func (s *ChatService) Messages(ctx context.Context, a, b string) ([]domain.ChatMessage, error) {
	if a == "" || b == "" {
		return nil, domain.ErrInvalidInput
	}
	return s.history(ctx, ChatID(a, b))
}

// MarkRead flips readStatus on every message addressed to the reader
// and reports how many were flipped.
func (s *ChatService) MarkRead(ctx context.Context, a, b, readerID string) (int, error) {
	if a == "" || b == "" || readerID == "" {
		return 0, domain.ErrInvalidInput
	}

	chatID := ChatID(a, b)
	lock := s.lockChat(chatID)
	lock.Lock()
	defer lock.Unlock()

	history, err := s.history(ctx, chatID)
	if err != nil {
		return 0, err
	}

	flipped := 0
	for i := range history {
		if history[i].UserID != readerID && !history[i].ReadStatus {
			history[i].ReadStatus = true
			flipped++
		}
	}
	if flipped == 0 {
		return 0, nil
	}

	if err := s.store.WriteMerge(ctx, ChatPath(chatID), Fields{"messages": encodeMessages(history)}); err != nil {
		return 0, fmt.Errorf("mark chat read: %w", err)
	}
	s.broadcast(chatID, history)
	return flipped, nil
}

// Subscribe returns a channel of history snapshots for the pair's
// chat. The caller must invoke the returned cancel function to avoid
// leaks.
func (s *ChatService) Subscribe(a, b string) (<-chan []domain.ChatMessage, func()) {
	chatID := ChatID(a, b)
	ch := make(chan []domain.ChatMessage, 8)

	s.mu.Lock()
	if s.subscribers[chatID] == nil {
		s.subscribers[chatID] = make(map[chan []domain.ChatMessage]struct{})
	}
	s.subscribers[chatID][ch] = struct{}{}
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		if subs, ok := s.subscribers[chatID]; ok {
			if _, ok := subs[ch]; ok {
				delete(subs, ch)
				close(ch)
			}
			if len(subs) == 0 {
				delete(s.subscribers, chatID)
			}
		}
		s.mu.Unlock()
	}
	return ch, cancel
}

func (s *ChatService) history(ctx context.Context, chatID string) ([]domain.ChatMessage, error) {
	record, err := s.store.Read(ctx, ChatPath(chatID))
	if err != nil {
		return nil, fmt.Errorf("read chat: %w", err)
	}
	if !record.Present {
		return nil, nil
	}
	return decodeMessages(record.Fields["messages"]), nil
}

func (s *ChatService) broadcast(chatID string, history []domain.ChatMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for ch := range s.subscribers[chatID] {
		select {
		case ch <- history:
		default:
			// Drop the stale snapshot so a slow reader never blocks the sender.
			select {
			case <-ch:
			default:
			}
			ch <- history
		}
	}
}

func encodeMessages(messages []domain.ChatMessage) []any {
	out := make([]any, 0, len(messages))
	for _, m := range messages {
		out = append(out, map[string]any{
			"id":         m.ID,
			"userId":     m.UserID,
			"message":    m.Message,
			"timestamp":  m.Timestamp,
			"readStatus": m.ReadStatus,
		})
	}
	return out
}

func decodeMessages(raw any) []domain.ChatMessage {
	items, ok := raw.([]any)
	if !ok {
		return nil
	}
	out := make([]domain.ChatMessage, 0, len(items))
	for _, item := range items {
		fields, ok := item.(map[string]any)
		if !ok {
			continue
		}
		out = append(out, domain.ChatMessage{
			ID:         stringField(fields, "id"),
			UserID:     stringField(fields, "userId"),
			Message:    stringField(fields, "message"),
			Timestamp:  timeField(fields, "timestamp"),
			ReadStatus: boolField(fields, "readStatus"),
		})
	}
	return out
}
