package render

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vhvplatform/go-notification-engine/internal/domain"
)

var fixedNow = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

func expiryTemplate() *domain.NotificationTemplate {
	return &domain.NotificationTemplate{
		ID: "document_expiry",
		Channels: []domain.ChannelKind{
			domain.ChannelKindEmail, domain.ChannelKindSMS, domain.ChannelKindChat, domain.ChannelKindPush,
		},
		Content: map[domain.ChannelKind]domain.TemplateContent{
			domain.ChannelKindEmail: {
				Subject: "{{documentType}} expires in {{daysRemaining}} days",
				Body:    "Hello {{employee.name}}, your {{documentType}} expires in {{daysRemaining}} days.",
				HTML:    "<p>Hello {{employee.name}}</p>",
			},
			domain.ChannelKindSMS:  {Body: "{{documentType}} expires in {{daysRemaining}}d. " + strings.Repeat("x", 200)},
			domain.ChannelKindChat: {Body: "Document {{documentId}} expires soon"},
			domain.ChannelKindPush: {Subject: "Expiry", Body: "{{documentType}} expiring"},
		},
		Locales: map[string]map[domain.ChannelKind]domain.TemplateContent{
			"vi-VN": {
				domain.ChannelKindEmail: {Subject: "{{documentType}} sắp hết hạn"},
			},
		},
	}
}

func expiryData() map[string]any {
	return map[string]any{
		"documentId":    "doc-1",
		"documentType":  "passport",
		"daysRemaining": 5,
		"employee":      map[string]any{"name": "Lan"},
	}
}

func TestRender_RoundTripLeavesNoTokens(t *testing.T) {
	r := New("")
	tmpl := expiryTemplate()

	for _, kind := range tmpl.Channels {
		t.Run(string(kind), func(t *testing.T) {
			out, err := r.Render(tmpl, kind, "", expiryData(), fixedNow)
			require.NoError(t, err)
			for _, s := range []string{out.Subject, out.Body, out.HTML} {
				assert.NotContains(t, s, "{{")
			}
		})
	}
}

func TestRender_LocaleOverrideMergesOntoBase(t *testing.T) {
	out, err := New("en-US").Render(expiryTemplate(), domain.ChannelKindEmail, "vi-VN", expiryData(), fixedNow)
	require.NoError(t, err)

	assert.Equal(t, "vi-VN", out.Locale)
	assert.Equal(t, "passport sắp hết hạn", out.Subject)
	assert.Equal(t, "Hello Lan, your passport expires in 5 days.", out.Body)
	assert.Equal(t, "<p>Hello Lan</p>", out.HTML)
}

func TestRender_ChannelPostProcessing(t *testing.T) {
	r := New("en-US")
	tmpl := expiryTemplate()

	sms, err := r.Render(tmpl, domain.ChannelKindSMS, "", expiryData(), fixedNow)
	require.NoError(t, err)
	assert.Len(t, []rune(sms.Body), SMSMaxLength)
	assert.True(t, strings.HasPrefix(sms.Body, "passport expires in 5d."))

	chat, err := r.Render(tmpl, domain.ChannelKindChat, "", expiryData(), fixedNow)
	require.NoError(t, err)
	require.Len(t, chat.Blocks, 2)
	assert.Equal(t, domain.ChatBlock{Type: "section", Text: "Document doc-1 expires soon"}, chat.Blocks[0])
	assert.Equal(t, "context", chat.Blocks[1].Type)
	assert.Equal(t, "Generated at 2026-03-02T10:00:00Z", chat.Blocks[1].Text)

	push, err := r.Render(tmpl, domain.ChannelKindPush, "", expiryData(), fixedNow)
	require.NoError(t, err)
	require.NotNil(t, push.Push)
	assert.Equal(t, "Expiry", push.Push.Title)
	assert.Equal(t, "passport expiring", push.Push.Body)
	assert.Equal(t, PushBadge, push.Push.Badge)
	assert.Equal(t, PushSound, push.Push.Sound)
	assert.Equal(t, "doc-1", push.Push.Data["documentId"])
}

func TestRender_MissingChannelContent(t *testing.T) {
	_, err := New("").Render(expiryTemplate(), domain.ChannelKindWebhook, "", nil, fixedNow)
	assert.Error(t, err)
}

func TestSubstitute(t *testing.T) {
	data := map[string]any{
		"name":   "Lan",
		"amount": 1250.5,
		"whole":  3000.0,
		"nested": map[string]any{"k": "v"},
		"nil":    nil,
	}

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"simple", "Hi {{name}}", "Hi Lan"},
		{"spaces inside braces", "Hi {{ name }}", "Hi Lan"},
		{"float", "{{amount}}", "1250.5"},
		{"whole float", "{{whole}}", "3000"},
		{"map value", "{{nested}}", `{"k":"v"}`},
		{"nested path", "{{nested.k}}", "v"},
		{"unresolved kept verbatim", "Hi {{missing.path}}", "Hi {{missing.path}}"},
		{"nil kept verbatim", "{{nil}}", "{{nil}}"},
		{"no tokens", "plain text", "plain text"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Substitute(tt.in, data))
		})
	}
}
