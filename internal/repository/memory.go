package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/vhvplatform/go-notification-engine/internal/domain"
	"github.com/vhvplatform/go-notification-engine/internal/shared/errors"
)

// MemoryFeedStore is an in-process FeedStore
type MemoryFeedStore struct {
	mu    sync.RWMutex
	items map[string][]*domain.FeedItem
}

// NewMemoryFeedStore creates an empty feed store
func NewMemoryFeedStore() *MemoryFeedStore {
	return &MemoryFeedStore{items: make(map[string][]*domain.FeedItem)}
}

// Add appends an item to the recipient's feed
func (s *MemoryFeedStore) Add(ctx context.Context, item *domain.FeedItem) error {
	cp := *item
	cp.Content = item.Content.Clone()

	s.mu.Lock()
	s.items[item.RecipientID] = append(s.items[item.RecipientID], &cp)
	s.mu.Unlock()
	return nil
}

// List returns the recipient's feed newest first
func (s *MemoryFeedStore) List(ctx context.Context, recipientID string, filter domain.FeedFilter) ([]*domain.FeedItem, int64, error) {
	s.mu.RLock()
	matched := make([]*domain.FeedItem, 0)
	for _, item := range s.items[recipientID] {
		if filter.UnreadOnly && item.Read {
			continue
		}
		if !filter.IncludeArchived && item.Archived {
			continue
		}
		cp := *item
		matched = append(matched, &cp)
	}
	s.mu.RUnlock()

	sort.SliceStable(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })

	total := int64(len(matched))
	if filter.Offset > 0 {
		if filter.Offset >= len(matched) {
			return []*domain.FeedItem{}, total, nil
		}
		matched = matched[filter.Offset:]
	}
	if filter.Limit > 0 && len(matched) > filter.Limit {
		matched = matched[:filter.Limit]
	}
	return matched, total, nil
}

// UnreadCount counts unread, unarchived items
func (s *MemoryFeedStore) UnreadCount(ctx context.Context, recipientID string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var n int64
	for _, item := range s.items[recipientID] {
		if !item.Read && !item.Archived {
			n++
		}
	}
	return n, nil
}

// Update applies flag changes to a feed item
func (s *MemoryFeedStore) Update(ctx context.Context, recipientID, itemID string, req domain.UpdateFeedItemRequest, now time.Time) (*domain.FeedItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, item := range s.items[recipientID] {
		if item.ID != itemID {
			continue
		}
		applyFeedUpdate(item, req, now)
		cp := *item
		return &cp, nil
	}
	return nil, errors.NewNotFoundError("feed item not found: "+itemID, nil)
}

func applyFeedUpdate(item *domain.FeedItem, req domain.UpdateFeedItemRequest, now time.Time) {
	if req.Read != nil {
		item.Read = *req.Read
		if item.Read && item.ReadAt == nil {
			at := now
			item.ReadAt = &at
		}
		if !item.Read {
			item.ReadAt = nil
		}
	}
	if req.Starred != nil {
		item.Starred = *req.Starred
	}
	if req.Archived != nil {
		item.Archived = *req.Archived
	}
}

// MemoryPreferenceStore is an in-process PreferenceStore
type MemoryPreferenceStore struct {
	mu    sync.RWMutex
	prefs map[string]domain.Preferences
}

// NewMemoryPreferenceStore creates an empty preference store
func NewMemoryPreferenceStore() *MemoryPreferenceStore {
	return &MemoryPreferenceStore{prefs: make(map[string]domain.Preferences)}
}

// Get returns the stored preferences of a recipient
func (s *MemoryPreferenceStore) Get(ctx context.Context, recipientID string) (*domain.Preferences, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.prefs[recipientID]
	if !ok {
		return nil, errors.NewNotFoundError("preferences not found: "+recipientID, nil)
	}
	cp := p.Clone()
	return &cp, nil
}

// Save upserts preferences
func (s *MemoryPreferenceStore) Save(ctx context.Context, prefs *domain.Preferences) error {
	if prefs.RecipientID == "" {
		return errors.NewValidationError("recipient id is required", nil)
	}
	s.mu.Lock()
	s.prefs[prefs.RecipientID] = prefs.Clone()
	s.mu.Unlock()
	return nil
}

type counterEntry struct {
	count     int
	expiresAt time.Time
}

// MemoryDispatchCounter is an in-process DispatchCounter
type MemoryDispatchCounter struct {
	mu      sync.Mutex
	entries map[string]counterEntry
	now     func() time.Time
}

// NewMemoryDispatchCounter creates a counter using now for expiry
func NewMemoryDispatchCounter(now func() time.Time) *MemoryDispatchCounter {
	if now == nil {
		now = time.Now
	}
	return &MemoryDispatchCounter{entries: make(map[string]counterEntry), now: now}
}

// Get returns the current count of key
func (c *MemoryDispatchCounter) Get(ctx context.Context, key string) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok || !c.now().Before(e.expiresAt) {
		return 0, nil
	}
	return e.count, nil
}

// Increment adds one to key and returns the new count
func (c *MemoryDispatchCounter) Increment(ctx context.Context, key string, expiresAt time.Time) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for k, e := range c.entries {
		if !now.Before(e.expiresAt) {
			delete(c.entries, k)
		}
	}
	e := c.entries[key]
	e.count++
	e.expiresAt = expiresAt
	c.entries[key] = e
	return e.count, nil
}

// MemoryDeadLetterStore is an in-process DeadLetterStore
type MemoryDeadLetterStore struct {
	mu      sync.RWMutex
	letters map[string]*domain.DeadLetter
}

// NewMemoryDeadLetterStore creates an empty dead-letter store
func NewMemoryDeadLetterStore() *MemoryDeadLetterStore {
	return &MemoryDeadLetterStore{letters: make(map[string]*domain.DeadLetter)}
}

// Add stores a dead letter
func (s *MemoryDeadLetterStore) Add(ctx context.Context, dl *domain.DeadLetter) error {
	cp := *dl
	s.mu.Lock()
	s.letters[dl.ID] = &cp
	s.mu.Unlock()
	return nil
}

// Get returns a dead letter by id
func (s *MemoryDeadLetterStore) Get(ctx context.Context, id string) (*domain.DeadLetter, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	dl, ok := s.letters[id]
	if !ok {
		return nil, errors.NewNotFoundError("dead letter not found: "+id, nil)
	}
	cp := *dl
	return &cp, nil
}

// List returns dead letters newest first
func (s *MemoryDeadLetterStore) List(ctx context.Context, page, pageSize int) ([]*domain.DeadLetter, int64, error) {
	s.mu.RLock()
	all := make([]*domain.DeadLetter, 0, len(s.letters))
	for _, dl := range s.letters {
		cp := *dl
		all = append(all, &cp)
	}
	s.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool {
		if all[i].FailedAt.Equal(all[j].FailedAt) {
			return all[i].ID < all[j].ID
		}
		return all[i].FailedAt.After(all[j].FailedAt)
	})

	total := int64(len(all))
	skip, limit := paginate(page, pageSize)
	if skip >= len(all) {
		return []*domain.DeadLetter{}, total, nil
	}
	all = all[skip:]
	if len(all) > limit {
		all = all[:limit]
	}
	return all, total, nil
}

// MarkRetried links a dead letter to the delivery that retried it
func (s *MemoryDeadLetterStore) MarkRetried(ctx context.Context, id, retryDeliveryID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	dl, ok := s.letters[id]
	if !ok {
		return errors.NewNotFoundError("dead letter not found: "+id, nil)
	}
	if dl.RetriedAt != nil {
		return errors.NewConflictError("dead letter already retried as "+dl.RetryDeliveryID, nil)
	}
	dl.RetriedAt = &at
	dl.RetryDeliveryID = retryDeliveryID
	return nil
}

// ReleaseRetry clears a retry claim if retryDeliveryID still holds it
func (s *MemoryDeadLetterStore) ReleaseRetry(ctx context.Context, id, retryDeliveryID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	dl, ok := s.letters[id]
	if !ok {
		return errors.NewNotFoundError("dead letter not found: "+id, nil)
	}
	if dl.RetryDeliveryID == retryDeliveryID {
		dl.RetriedAt = nil
		dl.RetryDeliveryID = ""
	}
	return nil
}

// Delete removes a dead letter
func (s *MemoryDeadLetterStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.letters[id]; !ok {
		return errors.NewNotFoundError("dead letter not found: "+id, nil)
	}
	delete(s.letters, id)
	return nil
}

// MemoryOutboxStore is an in-process OutboxStore
type MemoryOutboxStore struct {
	mu     sync.Mutex
	events []*domain.OutboxEvent
}

// NewMemoryOutboxStore creates an empty outbox
func NewMemoryOutboxStore() *MemoryOutboxStore {
	return &MemoryOutboxStore{}
}

// Create appends a pending event
func (s *MemoryOutboxStore) Create(ctx context.Context, event *domain.OutboxEvent) error {
	if event.ID.IsZero() {
		event.ID = primitive.NewObjectID()
	}
	if event.Status == "" {
		event.Status = domain.OutboxEventStatusPending
	}
	cp := *event
	s.mu.Lock()
	s.events = append(s.events, &cp)
	s.mu.Unlock()
	return nil
}

// FindPending returns up to limit pending events oldest first
func (s *MemoryOutboxStore) FindPending(ctx context.Context, limit int) ([]*domain.OutboxEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*domain.OutboxEvent, 0)
	for _, e := range s.events {
		if e.Status != domain.OutboxEventStatusPending {
			continue
		}
		cp := *e
		out = append(out, &cp)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *MemoryOutboxStore) find(id primitive.ObjectID) (*domain.OutboxEvent, error) {
	for _, e := range s.events {
		if e.ID == id {
			return e, nil
		}
	}
	return nil, errors.NewNotFoundError("outbox event not found: "+id.Hex(), nil)
}

// MarkProcessed marks an event as relayed
func (s *MemoryOutboxStore) MarkProcessed(ctx context.Context, id primitive.ObjectID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, err := s.find(id)
	if err != nil {
		return err
	}
	e.Status = domain.OutboxEventStatusProcessed
	e.ProcessedAt = &at
	return nil
}

// MarkFailed records a relay failure. The event stays pending until it
// has failed maxOutboxErrors times.
func (s *MemoryOutboxStore) MarkFailed(ctx context.Context, id primitive.ObjectID, errorMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, err := s.find(id)
	if err != nil {
		return err
	}
	e.ErrorCount++
	e.LastError = errorMsg
	if e.ErrorCount >= maxOutboxErrors {
		e.Status = domain.OutboxEventStatusFailed
	}
	return nil
}

// DeleteProcessedBefore drops relayed events processed before cutoff
func (s *MemoryOutboxStore) DeleteProcessedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.events[:0]
	var deleted int64
	for _, e := range s.events {
		if e.Status == domain.OutboxEventStatusProcessed && e.ProcessedAt != nil && e.ProcessedAt.Before(cutoff) {
			deleted++
			continue
		}
		kept = append(kept, e)
	}
	s.events = kept
	return deleted, nil
}
