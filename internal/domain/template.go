package domain

import "time"

// TemplateContent is the raw, unrendered content for one channel kind
type TemplateContent struct {
	Subject   string   `json:"subject,omitempty" yaml:"subject"`
	Body      string   `json:"body" yaml:"body"`
	HTML      string   `json:"html,omitempty" yaml:"html"`
	Variables []string `json:"variables,omitempty" yaml:"variables"`
}

// NotificationTemplate holds per-channel content with optional locale overrides
type NotificationTemplate struct {
	ID        string                                     `json:"id" yaml:"id"`
	Name      string                                     `json:"name" yaml:"name"`
	Type      string                                     `json:"type" yaml:"type"`
	Channels  []ChannelKind                              `json:"channels" yaml:"channels"`
	Content   map[ChannelKind]TemplateContent            `json:"content" yaml:"content"`
	Locales   map[string]map[ChannelKind]TemplateContent `json:"locales,omitempty" yaml:"locales"`
	Active    bool                                       `json:"active" yaml:"active"`
	Version   int                                        `json:"version" yaml:"-"`
	UpdatedAt time.Time                                  `json:"updated_at" yaml:"-"`
}

// Supports reports whether the template declares content for kind
func (t *NotificationTemplate) Supports(kind ChannelKind) bool {
	for _, k := range t.Channels {
		if k == kind {
			return true
		}
	}
	return false
}

// ContentFor returns the base content for kind with the locale override
// shallow-merged on top: non-empty override fields win. ok is false when
// the template has no base content for kind.
func (t *NotificationTemplate) ContentFor(kind ChannelKind, locale string) (TemplateContent, bool) {
	base, ok := t.Content[kind]
	if !ok {
		return TemplateContent{}, false
	}
	override, found := t.Locales[locale][kind]
	if !found {
		return base, true
	}
	if override.Subject != "" {
		base.Subject = override.Subject
	}
	if override.Body != "" {
		base.Body = override.Body
	}
	if override.HTML != "" {
		base.HTML = override.HTML
	}
	return base, true
}

// Clone returns a deep copy of the template
func (t *NotificationTemplate) Clone() *NotificationTemplate {
	if t == nil {
		return nil
	}
	out := *t
	out.Channels = append([]ChannelKind(nil), t.Channels...)
	if t.Content != nil {
		out.Content = make(map[ChannelKind]TemplateContent, len(t.Content))
		for k, v := range t.Content {
			out.Content[k] = v
		}
	}
	if t.Locales != nil {
		out.Locales = make(map[string]map[ChannelKind]TemplateContent, len(t.Locales))
		for loc, byKind := range t.Locales {
			m := make(map[ChannelKind]TemplateContent, len(byKind))
			for k, v := range byKind {
				m[k] = v
			}
			out.Locales[loc] = m
		}
	}
	return &out
}
