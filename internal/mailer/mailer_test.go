package mailer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/truecosmic/calbook-api/pkg/config"
)

func TestBuildMessage(t *testing.T) {
	msg := buildMessage("noreply@example.com", "sam@example.com", "Booking confirmed", "Hi Sam,\n\nSee you soon.")

	assert.True(t, strings.HasPrefix(msg, "From: noreply@example.com\r\n"))
	assert.Contains(t, msg, "To: sam@example.com\r\n")
	assert.Contains(t, msg, "Subject: Booking confirmed\r\n")
	assert.Contains(t, msg, "Content-Type: text/plain; charset=utf-8\r\n")
	assert.True(t, strings.HasSuffix(msg, "See you soon.\r\n"))
}

func TestNewSMTPSenderDefaults(t *testing.T) {
	sender := NewSMTPSender(config.SMTPConfig{Host: "localhost", Port: 1025, Username: "relay@example.com"})
	assert.Equal(t, "localhost:1025", sender.addr)
	// From falls back to the authenticated user.
	assert.Equal(t, "relay@example.com", sender.from)
	assert.NotNil(t, sender.auth)

	open := NewSMTPSender(config.SMTPConfig{Host: "localhost", Port: 1025, From: "noreply@example.com"})
	assert.Nil(t, open.auth)
}
