package rules

import (
	"context"

	"github.com/vhvplatform/go-notification-engine/internal/domain"
	"github.com/vhvplatform/go-notification-engine/internal/registry"
	"github.com/vhvplatform/go-notification-engine/internal/shared/logger"
)

// CustomResolver expands a custom recipient reference using the raw event
type CustomResolver interface {
	Resolve(ctx context.Context, ref domain.RecipientRef, event domain.NotificationEvent) ([]*domain.Recipient, error)
}

// CustomResolverFunc adapts a function to CustomResolver
type CustomResolverFunc func(ctx context.Context, ref domain.RecipientRef, event domain.NotificationEvent) ([]*domain.Recipient, error)

// Resolve calls f
func (f CustomResolverFunc) Resolve(ctx context.Context, ref domain.RecipientRef, event domain.NotificationEvent) ([]*domain.Recipient, error) {
	return f(ctx, ref, event)
}

type noCustomRecipients struct{}

func (noCustomRecipients) Resolve(context.Context, domain.RecipientRef, domain.NotificationEvent) ([]*domain.Recipient, error) {
	return nil, nil
}

// Resolver turns typed recipient references into directory recipients
type Resolver struct {
	directory *registry.RecipientDirectory
	custom    CustomResolver
	log       *logger.Logger
}

// NewResolver creates a resolver. A nil custom resolver resolves custom
// references to nobody.
func NewResolver(directory *registry.RecipientDirectory, custom CustomResolver, log *logger.Logger) *Resolver {
	if custom == nil {
		custom = noCustomRecipients{}
	}
	return &Resolver{directory: directory, custom: custom, log: log}
}

// Resolve expands refs in order, dropping duplicates. Unresolvable
// references are logged and skipped.
func (r *Resolver) Resolve(ctx context.Context, refs []domain.RecipientRef, event domain.NotificationEvent) []*domain.Recipient {
	seen := make(map[string]bool)
	out := make([]*domain.Recipient, 0, len(refs))
	add := func(list ...*domain.Recipient) {
		for _, rec := range list {
			if rec == nil || seen[rec.ID] {
				continue
			}
			seen[rec.ID] = true
			out = append(out, rec)
		}
	}

	for _, ref := range refs {
		switch ref.Type {
		case domain.RecipientTypeUser:
			rec, ok := r.directory.Get(ref.ID)
			if !ok {
				r.log.Warn("Recipient not found", "recipient_id", ref.ID, "event_id", event.ID)
				continue
			}
			add(rec)
		case domain.RecipientTypeRole:
			add(r.directory.WithRole(ref.ID)...)
		case domain.RecipientTypeDepartment:
			add(r.directory.InDepartment(ref.ID)...)
		case domain.RecipientTypeCustom:
			list, err := r.custom.Resolve(ctx, ref, event)
			if err != nil {
				r.log.Warn("Custom recipient resolution failed", "ref", ref.ID, "event_id", event.ID, "error", err)
				continue
			}
			add(list...)
		default:
			r.log.Warn("Unknown recipient type", "type", ref.Type, "ref", ref.ID)
		}
	}
	return out
}
