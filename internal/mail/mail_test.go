package mail

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSMTPMessage(t *testing.T) {
	sender := NewSMTPSender(SMTPConfig{Host: "smtp.example.com", Port: 587, Username: "shop@example.com", ShopName: "Mobile <Point>"}, 10*time.Minute)

	msg, err := sender.message("owner@example.com", "482913")
	require.NoError(t, err)
	assert.Equal(t, []string{"shop@example.com"}, msg.GetHeader("From"))
	assert.Equal(t, []string{"owner@example.com"}, msg.GetHeader("To"))

	var buf bytes.Buffer
	_, err = msg.WriteTo(&buf)
	require.NoError(t, err)
	body := buf.String()
	assert.Contains(t, body, "482913")
	assert.Contains(t, body, "10 minutes")
	assert.Contains(t, body, "Mobile &lt;Point&gt;")
}

func TestSMTPSenderHonoursCancelledContext(t *testing.T) {
	sender := NewSMTPSender(SMTPConfig{Host: "127.0.0.1", Port: 1}, time.Minute)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, sender.SendOTP(ctx, "a@example.com", "123456"), context.Canceled)
}

func TestLogSender(t *testing.T) {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	require.NoError(t, LogSender{Log: logger}.SendOTP(context.Background(), "a@example.com", "123456"))
	require.Len(t, hook.Entries, 1)
	assert.Equal(t, "123456", hook.LastEntry().Data["otp"])
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
}
