package registry

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/vhvplatform/go-notification-engine/internal/domain"
	"github.com/vhvplatform/go-notification-engine/internal/shared/errors"
)

// Limits applied to registered templates
const (
	maxTemplateIDLen   = 512
	maxTemplateSize    = 1024 * 1024
	maxTemplateHistory = 20
)

// TemplateStore keeps versioned templates. Registering an existing id
// creates a new version; older versions stay retrievable.
type TemplateStore struct {
	mu       sync.RWMutex
	versions map[string][]*domain.NotificationTemplate
	now      func() time.Time
}

// NewTemplateStore creates an empty template store
func NewTemplateStore() *TemplateStore {
	return &TemplateStore{
		versions: make(map[string][]*domain.NotificationTemplate),
		now:      time.Now,
	}
}

func validateTemplateID(id string) error {
	if id == "" {
		return errors.NewValidationError("template id is required", nil)
	}
	if len(id) > maxTemplateIDLen {
		return errors.NewValidationError("template id exceeds maximum length", nil)
	}
	if strings.ContainsAny(id, "\x00\n\r") {
		return errors.NewValidationError("template id contains invalid characters", nil)
	}
	return nil
}

func templateSize(t *domain.NotificationTemplate) int {
	size := 0
	for _, c := range t.Content {
		size += len(c.Subject) + len(c.Body) + len(c.HTML)
	}
	for _, byKind := range t.Locales {
		for _, c := range byKind {
			size += len(c.Subject) + len(c.Body) + len(c.HTML)
		}
	}
	return size
}

// Register stores a new version of the template and returns it
func (s *TemplateStore) Register(t *domain.NotificationTemplate) (*domain.NotificationTemplate, error) {
	if t == nil {
		return nil, errors.NewValidationError("template is required", nil)
	}
	if err := validateTemplateID(t.ID); err != nil {
		return nil, err
	}
	if templateSize(t) > maxTemplateSize {
		return nil, errors.NewValidationError("template size exceeds maximum allowed size", nil)
	}
	for _, kind := range t.Channels {
		if _, ok := t.Content[kind]; !ok {
			return nil, errors.NewValidationError(fmt.Sprintf("template %s: no content for channel kind %s", t.ID, kind), nil)
		}
	}

	next := t.Clone()
	next.UpdatedAt = s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	history := s.versions[next.ID]
	next.Version = 1
	if n := len(history); n > 0 {
		next.Version = history[n-1].Version + 1
	}
	history = append(history, next)
	if len(history) > maxTemplateHistory {
		history = history[len(history)-maxTemplateHistory:]
	}
	s.versions[next.ID] = history
	return next, nil
}

// Get returns the latest version of a template
func (s *TemplateStore) Get(id string) (*domain.NotificationTemplate, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	history := s.versions[id]
	if len(history) == 0 {
		return nil, false
	}
	return history[len(history)-1], true
}

// GetVersion returns a specific retained version of a template
func (s *TemplateStore) GetVersion(id string, version int) (*domain.NotificationTemplate, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, t := range s.versions[id] {
		if t.Version == version {
			return t, true
		}
	}
	return nil, false
}

// List returns the latest version of every template ordered by id
func (s *TemplateStore) List() []*domain.NotificationTemplate {
	s.mu.RLock()
	out := make([]*domain.NotificationTemplate, 0, len(s.versions))
	for _, history := range s.versions {
		out = append(out, history[len(history)-1])
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
