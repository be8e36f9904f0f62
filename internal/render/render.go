package render

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/vhvplatform/go-notification-engine/internal/domain"
	"github.com/vhvplatform/go-notification-engine/internal/rules"
)

// Channel specific limits and defaults
const (
	SMSMaxLength = 160
	PushBadge    = 1
	PushSound    = "default"
)

var tokenPattern = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_.\-]+)\s*\}\}`)

// Renderer produces channel specific content from templates
type Renderer struct {
	defaultLocale string
}

// New creates a renderer falling back to defaultLocale
func New(defaultLocale string) *Renderer {
	if defaultLocale == "" {
		defaultLocale = "en-US"
	}
	return &Renderer{defaultLocale: defaultLocale}
}

// DefaultLocale returns the locale used when a recipient has none
func (r *Renderer) DefaultLocale() string {
	return r.defaultLocale
}

// Render merges the locale override onto the base content for kind,
// substitutes {{path}} tokens from data and applies channel post-processing.
func (r *Renderer) Render(tmpl *domain.NotificationTemplate, kind domain.ChannelKind, locale string, data map[string]any, now time.Time) (domain.RenderedContent, error) {
	if tmpl == nil {
		return domain.RenderedContent{}, fmt.Errorf("template is required")
	}
	if locale == "" {
		locale = r.defaultLocale
	}

	base, ok := tmpl.ContentFor(kind, locale)
	if !ok {
		return domain.RenderedContent{}, fmt.Errorf("template %s has no content for channel kind %s", tmpl.ID, kind)
	}

	content := domain.RenderedContent{
		Locale:  locale,
		Subject: Substitute(base.Subject, data),
		Body:    Substitute(base.Body, data),
		HTML:    Substitute(base.HTML, data),
	}

	switch kind {
	case domain.ChannelKindSMS:
		content.Body = truncate(content.Body, SMSMaxLength)
	case domain.ChannelKindChat:
		content.Blocks = []domain.ChatBlock{
			{Type: "section", Text: content.Body},
			{Type: "context", Text: "Generated at " + now.UTC().Format(time.RFC3339)},
		}
	case domain.ChannelKindPush:
		payload := make(map[string]any, len(data))
		for k, v := range data {
			payload[k] = v
		}
		content.Push = &domain.PushEnvelope{
			Title: content.Subject,
			Body:  content.Body,
			Data:  payload,
			Badge: PushBadge,
			Sound: PushSound,
		}
	}
	return content, nil
}

// Substitute replaces every {{path.to.field}} token with the value found in
// data. Tokens that do not resolve are left as they are.
func Substitute(text string, data map[string]any) string {
	if text == "" {
		return text
	}
	return tokenPattern.ReplaceAllStringFunc(text, func(token string) string {
		m := tokenPattern.FindStringSubmatch(token)
		v, ok := rules.Lookup(data, m[1])
		if !ok || v == nil {
			return token
		}
		return format(v)
	})
}

func format(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case time.Time:
		return val.Format(time.RFC3339)
	case fmt.Stringer:
		return val.String()
	case map[string]any, []any:
		b, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(b)
	}
	return fmt.Sprint(v)
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
