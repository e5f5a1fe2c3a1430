package chat

import (
	"sync"
	"time"
)

// Store is the local message index: conversation key to ordered messages.
// Server events are authoritative and applied idempotently, so applying the
// same event twice yields the same state as applying it once.
type Store struct {
	mu      sync.RWMutex
	buckets map[string][]Message
}

// NewStore creates an empty message index.
func NewStore() *Store {
	return &Store{buckets: make(map[string][]Message)}
}

// Append files a message under its conversation key. A message already
// present by id is replaced in place, which makes duplicated new_message
// deliveries harmless.
func (s *Store) Append(msg Message) {
	key := ConversationKey(msg.Sender.ID, msg.Receiver.ID)

	s.mu.Lock()
	defer s.mu.Unlock()

	bucket := s.buckets[key]
	for i := range bucket {
		if bucket[i].ID == msg.ID {
			bucket[i] = msg
			return
		}
	}
	s.buckets[key] = append(bucket, msg)
}

// ReplaceBucket replaces (not merges) the messages for one conversation,
// used when a history page is fetched.
func (s *Store) ReplaceBucket(key string, msgs []Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buckets[key] = append([]Message(nil), msgs...)
}

// Messages returns a copy of the bucket for the given conversation key.
func (s *Store) Messages(key string) []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Message(nil), s.buckets[key]...)
}

// MarkRead marks the unread messages sent by senderID to receiverID as read
// at the given time. Returns how many messages changed.
func (s *Store) MarkRead(senderID, receiverID string, at time.Time) int {
	key := ConversationKey(senderID, receiverID)

	s.mu.Lock()
	defer s.mu.Unlock()

	changed := 0
	bucket := s.buckets[key]
	for i := range bucket {
		if bucket[i].Sender.ID == senderID && !bucket[i].IsRead {
			bucket[i].IsRead = true
			readAt := at
			bucket[i].ReadAt = &readAt
			changed++
		}
	}
	return changed
}

// Tombstone marks a message deleted by id. Delete events do not carry a
// conversation key, so this is a linear scan across all buckets. Reports
// whether the message was found; tombstoning an already-deleted message is a
// no-op.
func (s *Store) Tombstone(id string, at time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, bucket := range s.buckets {
		for i := range bucket {
			if bucket[i].ID != id {
				continue
			}
			if !bucket[i].IsDeleted {
				bucket[i].IsDeleted = true
				deletedAt := at
				bucket[i].DeletedAt = &deletedAt
				s.buckets[key] = bucket
			}
			return true
		}
	}
	return false
}

// ApplyEdit replaces a message by id in place, preserving its position.
func (s *Store) ApplyEdit(updated Message) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, bucket := range s.buckets {
		for i := range bucket {
			if bucket[i].ID == updated.ID {
				bucket[i] = updated
				s.buckets[key] = bucket
				return true
			}
		}
	}
	return false
}

// Len returns the total number of messages held, tombstones included.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	total := 0
	for _, bucket := range s.buckets {
		total += len(bucket)
	}
	return total
}
