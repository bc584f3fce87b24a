package email

import (
	"context"
	"errors"
	"net/smtp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sentMail struct {
	addr string
	from string
	to   []string
	msg  string
}

func newTestService(t *testing.T, fail error) (*Service, *[]sentMail) {
	t.Helper()

	var sent []sentMail
	s := NewService(Config{
		SMTPHost:     "smtp.example.com",
		SMTPPort:     "587",
		SMTPUser:     "mailer@example.com",
		SMTPPassword: "pw",
		FrontendURL:  "https://app.example.com",
		CodeTTL:      15 * time.Minute,
		ResetTTL:     10 * time.Hour,
	})
	s.sendMail = func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
		if fail != nil {
			return fail
		}
		sent = append(sent, sentMail{addr: addr, from: from, to: to, msg: string(msg)})
		return nil
	}
	return s, &sent
}

func TestSendVerificationCode(t *testing.T) {
	s, sent := newTestService(t, nil)

	require.NoError(t, s.SendVerificationCode(context.Background(), "a@x.com", "Ada", "48213377"))

	require.Len(t, *sent, 1)
	m := (*sent)[0]
	assert.Equal(t, "smtp.example.com:587", m.addr)
	assert.Equal(t, "mailer@example.com", m.from)
	assert.Equal(t, []string{"a@x.com"}, m.to)
	assert.Contains(t, m.msg, "Subject: Verify your email address")
	assert.Contains(t, m.msg, "48213377")
	assert.Contains(t, m.msg, "Hi Ada")
	assert.Contains(t, m.msg, "15 minutes")
}

func TestSendPasswordResetLink(t *testing.T) {
	s, sent := newTestService(t, nil)

	require.NoError(t, s.SendPasswordResetLink(context.Background(), "a@x.com", "Ada", "abc123"))

	require.Len(t, *sent, 1)
	assert.Contains(t, (*sent)[0].msg, "https://app.example.com/reset-password?token=abc123")
	assert.Contains(t, (*sent)[0].msg, "10 hours")
}

func TestSendPasswordResetConfirmation(t *testing.T) {
	s, sent := newTestService(t, nil)

	require.NoError(t, s.SendPasswordResetConfirmation(context.Background(), "a@x.com", "Ada"))

	require.Len(t, *sent, 1)
	assert.Contains(t, (*sent)[0].msg, "Subject: Your password has been changed")
}

func TestTemplatesEscapeInput(t *testing.T) {
	s, sent := newTestService(t, nil)

	require.NoError(t, s.SendPasswordResetConfirmation(context.Background(), "a@x.com", "<script>x</script>"))
	assert.NotContains(t, (*sent)[0].msg, "<script>")
}

func TestSendFailureIsReturned(t *testing.T) {
	s, _ := newTestService(t, errors.New("connection refused"))

	err := s.SendVerificationCode(context.Background(), "a@x.com", "Ada", "1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}
