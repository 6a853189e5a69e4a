package email_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/versecraft/api/pkg/email"
)

func TestSendEmailParams_Validate(t *testing.T) {
	t.Parallel()

	valid := email.SendEmailParams{
		SendTo:   "poet@example.com",
		Subject:  "Verify your email",
		BodyHTML: "<p>hello</p>",
	}
	assert.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(*email.SendEmailParams)
	}{
		{"missing recipient", func(p *email.SendEmailParams) { p.SendTo = "" }},
		{"invalid recipient", func(p *email.SendEmailParams) { p.SendTo = "not-an-email" }},
		{"missing subject", func(p *email.SendEmailParams) { p.Subject = "" }},
		{"missing body", func(p *email.SendEmailParams) { p.BodyHTML = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			p := valid
			tt.mutate(&p)
			assert.ErrorIs(t, p.Validate(), email.ErrInvalidParams)
		})
	}
}

func TestNewPostmarkClient_ConfigValidation(t *testing.T) {
	t.Parallel()

	valid := email.Config{
		PostmarkServerToken:  "server-token",
		PostmarkAccountToken: "account-token",
		SenderEmail:          "noreply@versecraft.app",
		SupportEmail:         "support@versecraft.app",
	}

	_, err := email.NewPostmarkClient(valid)
	require.NoError(t, err)

	tests := []struct {
		name   string
		mutate func(*email.Config)
	}{
		{"missing server token", func(c *email.Config) { c.PostmarkServerToken = "" }},
		{"missing account token", func(c *email.Config) { c.PostmarkAccountToken = "" }},
		{"missing sender", func(c *email.Config) { c.SenderEmail = "" }},
		{"invalid sender", func(c *email.Config) { c.SenderEmail = "bad" }},
		{"missing support", func(c *email.Config) { c.SupportEmail = "" }},
		{"invalid support", func(c *email.Config) { c.SupportEmail = "bad" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := valid
			tt.mutate(&cfg)
			_, err := email.NewPostmarkClient(cfg)
			assert.ErrorIs(t, err, email.ErrInvalidConfig)
		})
	}
}

func TestDevSender(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	sender := email.NewDevSender(dir)

	err := sender.SendEmail(context.Background(), email.SendEmailParams{
		SendTo:   "poet@example.com",
		Subject:  "Reset your password",
		BodyHTML: "<p>reset link</p>",
		Tag:      "password-reset",
	})
	require.NoError(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	var htmlFile, jsonFile string
	for _, e := range entries {
		switch filepath.Ext(e.Name()) {
		case ".html":
			htmlFile = e.Name()
		case ".json":
			jsonFile = e.Name()
		}
	}
	require.NotEmpty(t, htmlFile)
	require.NotEmpty(t, jsonFile)
	assert.True(t, strings.Contains(htmlFile, "password-reset"))

	body, err := os.ReadFile(filepath.Join(dir, htmlFile))
	require.NoError(t, err)
	assert.Equal(t, "<p>reset link</p>", string(body))

	meta, err := os.ReadFile(filepath.Join(dir, jsonFile))
	require.NoError(t, err)
	assert.Contains(t, string(meta), "poet@example.com")
}
