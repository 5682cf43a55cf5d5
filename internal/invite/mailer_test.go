package invite

import (
	"bytes"
	"context"
	"errors"
	"net/smtp"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockpilot/backend/internal/domain"
	"stockpilot/backend/internal/logger"
)

var (
	_ Mailer = (*LogMailer)(nil)
	_ Mailer = (*SMTPMailer)(nil)
)

func sampleInvitation() (domain.Invitation, domain.Organization) {
	return domain.Invitation{ID: "inv-1", OrganizationID: "org-1", Email: "new@shop.test"},
		domain.Organization{ID: "org-1", Name: "Corner Shop"}
}

func TestSignupLink(t *testing.T) {
	inv, _ := sampleInvitation()
	assert.Equal(t,
		"http://app.test/signup?email=new%40shop.test&organization_id=org-1",
		SignupLink("http://app.test/", inv))
}

func TestLogMailerWritesLink(t *testing.T) {
	var buf bytes.Buffer
	log := logger.New(logger.Options{ServiceName: "test", Level: zerolog.InfoLevel, Output: &buf})
	inv, org := sampleInvitation()

	require.NoError(t, NewLogMailer(log, "http://app.test").SendInvitation(context.Background(), inv, org))
	assert.Contains(t, buf.String(), "invitation ready")
	assert.Contains(t, buf.String(), "organization_id=org-1")
}

func TestSMTPMailerComposesMessage(t *testing.T) {
	m := NewSMTPMailer(SMTPConfig{
		Host: "smtp.test", Username: "user", Password: "pw",
		From: "Stockpilot <no-reply@stockpilot.test>", BaseURL: "http://app.test",
	})

	var gotAddr, gotFrom string
	var gotTo []string
	var gotMsg []byte
	m.send = func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotFrom, gotTo, gotMsg = addr, from, to, msg
		return nil
	}

	inv, org := sampleInvitation()
	require.NoError(t, m.SendInvitation(context.Background(), inv, org))
	assert.Equal(t, "smtp.test:587", gotAddr)
	assert.Equal(t, "no-reply@stockpilot.test", gotFrom)
	assert.Equal(t, []string{"new@shop.test"}, gotTo)
	assert.Contains(t, string(gotMsg), "Subject: You're invited to Corner Shop on Stockpilot")
	assert.Contains(t, string(gotMsg), "http://app.test/signup?")
}

func TestSMTPMailerWrapsFailure(t *testing.T) {
	m := NewSMTPMailer(SMTPConfig{Host: "smtp.test"})
	boom := errors.New("relay refused")
	m.send = func(string, smtp.Auth, string, []string, []byte) error { return boom }

	inv, org := sampleInvitation()
	err := m.SendInvitation(context.Background(), inv, org)
	assert.ErrorIs(t, err, boom)
}

func TestSMTPMailerKeepsOrganizationNameInOneHeader(t *testing.T) {
	m := NewSMTPMailer(SMTPConfig{Host: "smtp.test", From: "no-reply@stockpilot.test"})
	var gotMsg []byte
	m.send = func(_ string, _ smtp.Auth, _ string, _ []string, msg []byte) error {
		gotMsg = msg
		return nil
	}

	inv, org := sampleInvitation()
	org.Name = "Shop\r\nReply-To: attacker@evil.test\r\nX-Injected: yes"
	require.NoError(t, m.SendInvitation(context.Background(), inv, org))

	head, body, ok := strings.Cut(string(gotMsg), "\r\n\r\n")
	require.True(t, ok)
	var names []string
	for _, line := range strings.Split(head, "\r\n") {
		name, _, _ := strings.Cut(line, ":")
		names = append(names, name)
	}
	assert.Equal(t, []string{"From", "To", "Subject", "MIME-Version", "Content-Type"}, names)
	assert.NotContains(t, body, "\r\nReply-To:")
	assert.NotContains(t, body, "\r\nX-Injected:")
}

func TestSMTPMailerEncodesNonASCIISubject(t *testing.T) {
	m := NewSMTPMailer(SMTPConfig{Host: "smtp.test", From: "no-reply@stockpilot.test"})
	var gotMsg []byte
	m.send = func(_ string, _ smtp.Auth, _ string, _ []string, msg []byte) error {
		gotMsg = msg
		return nil
	}

	inv, org := sampleInvitation()
	org.Name = "Café Ñandú"
	require.NoError(t, m.SendInvitation(context.Background(), inv, org))
	assert.Contains(t, string(gotMsg), "Subject: =?utf-8?q?")
	assert.Contains(t, string(gotMsg), "join Café Ñandú on Stockpilot")
}
