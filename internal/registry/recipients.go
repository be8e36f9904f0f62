package registry

import (
	"sort"
	"sync"

	"github.com/vhvplatform/go-notification-engine/internal/domain"
	"github.com/vhvplatform/go-notification-engine/internal/shared/errors"
)

// RecipientDirectory holds addressable recipients
type RecipientDirectory struct {
	mu         sync.RWMutex
	recipients map[string]*domain.Recipient
}

// NewRecipientDirectory creates an empty directory
func NewRecipientDirectory() *RecipientDirectory {
	return &RecipientDirectory{recipients: make(map[string]*domain.Recipient)}
}

// Register adds or replaces a recipient
func (d *RecipientDirectory) Register(r *domain.Recipient) error {
	if r == nil || r.ID == "" {
		return errors.NewValidationError("recipient id is required", nil)
	}
	next := r.Clone()
	if next.Type == "" {
		next.Type = domain.RecipientTypeUser
	}
	next.Preferences.RecipientID = next.ID

	d.mu.Lock()
	d.recipients[next.ID] = next
	d.mu.Unlock()
	return nil
}

// Get looks up a recipient by id
func (d *RecipientDirectory) Get(id string) (*domain.Recipient, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	r, ok := d.recipients[id]
	return r, ok
}

// SetPreferences replaces the preferences of a known recipient
func (d *RecipientDirectory) SetPreferences(id string, prefs domain.Preferences) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	r, ok := d.recipients[id]
	if !ok {
		return errors.NewNotFoundError("recipient not found: "+id, nil)
	}
	next := r.Clone()
	next.Preferences = prefs.Clone()
	next.Preferences.RecipientID = id
	d.recipients[id] = next
	return nil
}

// Filter returns recipients matching fn ordered by id
func (d *RecipientDirectory) Filter(fn func(r *domain.Recipient) bool) []*domain.Recipient {
	d.mu.RLock()
	out := make([]*domain.Recipient, 0)
	for _, r := range d.recipients {
		if fn(r) {
			out = append(out, r)
		}
	}
	d.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// WithRole returns recipients holding role
func (d *RecipientDirectory) WithRole(role string) []*domain.Recipient {
	return d.Filter(func(r *domain.Recipient) bool { return r.HasRole(role) })
}

// InDepartment returns recipients belonging to department
func (d *RecipientDirectory) InDepartment(department string) []*domain.Recipient {
	return d.Filter(func(r *domain.Recipient) bool { return r.Department == department })
}

// List returns every recipient ordered by id
func (d *RecipientDirectory) List() []*domain.Recipient {
	return d.Filter(func(*domain.Recipient) bool { return true })
}
