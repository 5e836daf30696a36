package emailsvc

import (
	"bytes"
	"net/mail"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/tuutta/core"
)

func TestSendgridService_prepare(t *testing.T) {
	conf := &core.Config{AppName: "Tuutta", DefaultFromEmail: mail.Address{Name: "Tuutta", Address: "noreply@tuutta.test"}}
	svc := NewSendgridService(conf, nil).(*sendgridService)

	cats := make([]string, 12)
	for i := range cats {
		cats[i] = string(rune('a' + i))
	}
	msg := core.EmailMessage{
		To:          []mail.Address{{Address: "audit@tuutta.test"}},
		Bcc:         []mail.Address{{Name: "Ops", Address: "ops@tuutta.test"}},
		Subject:     "Course completed",
		TextContent: "done",
		Attachments: []core.Attachment{{Content: bytes.NewBufferString("PDF"), ContentType: "application/pdf", Filename: "cert.pdf"}},
		Categories:  cats,
	}

	m := svc.prepare(msg)
	require.Len(t, m.Personalizations, 1)
	p := m.Personalizations[0]
	assert.Equal(t, "[Tuutta] Course completed", p.Subject)
	require.Len(t, p.To, 1)
	assert.Equal(t, "audit@tuutta.test", p.To[0].Address)
	require.Len(t, p.BCC, 1)
	assert.Equal(t, "Ops", p.BCC[0].Name)
	assert.Empty(t, p.CC)

	assert.Equal(t, "noreply@tuutta.test", m.From.Address)
	// the empty html body is skipped
	require.Len(t, m.Content, 1)
	assert.Equal(t, "text/plain", m.Content[0].Type)
	require.Len(t, m.Attachments, 1)
	assert.Equal(t, "cert.pdf", m.Attachments[0].Filename)
	assert.Equal(t, cats[:maxCategories], m.Categories)
}
