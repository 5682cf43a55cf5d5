// Package invite delivers team invitations.
package invite

import (
	"context"
	"fmt"
	"mime"
	"net"
	"net/smtp"
	"net/url"
	"strconv"
	"strings"
	"unicode"

	"stockpilot/backend/internal/domain"
	"stockpilot/backend/internal/logger"
)

type Mailer interface {
	SendInvitation(ctx context.Context, inv domain.Invitation, org domain.Organization) error
}

// SignupLink is the URL an invited employee follows to create their account.
func SignupLink(baseURL string, inv domain.Invitation) string {
	q := url.Values{}
	q.Set("organization_id", inv.OrganizationID)
	q.Set("email", inv.Email)
	return strings.TrimRight(baseURL, "/") + "/signup?" + q.Encode()
}

func messageBody(baseURL string, inv domain.Invitation, org domain.Organization) string {
	return fmt.Sprintf(
		"You have been invited to join %s on Stockpilot as an employee.\r\n\r\nCreate your account here:\r\n%s\r\n",
		singleLine(org.Name), SignupLink(baseURL, inv))
}

// singleLine replaces control characters so a value cannot start a new line.
func singleLine(v string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return ' '
		}
		return r
	}, v)
}

// headerValue makes v safe for a single header line, Q-encoding non-ASCII text.
func headerValue(v string) string {
	return mime.QEncoding.Encode("utf-8", singleLine(v))
}

// LogMailer writes the invitation to the log instead of sending it.
type LogMailer struct {
	log     *logger.Logger
	baseURL string
}

func NewLogMailer(log *logger.Logger, baseURL string) *LogMailer {
	return &LogMailer{log: log, baseURL: baseURL}
}

func (m *LogMailer) SendInvitation(ctx context.Context, inv domain.Invitation, org domain.Organization) error {
	ctx = m.log.WithFields(ctx, map[string]any{
		"invitation_id": inv.ID,
		"email":         inv.Email,
		"signup_link":   SignupLink(m.baseURL, inv),
	})
	m.log.Info(ctx, "invitation ready")
	return nil
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	BaseURL  string
}

// SMTPMailer sends a plain-text invitation through an SMTP relay.
type SMTPMailer struct {
	cfg  SMTPConfig
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewSMTPMailer(cfg SMTPConfig) *SMTPMailer {
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	return &SMTPMailer{cfg: cfg, send: smtp.SendMail}
}

func (m *SMTPMailer) SendInvitation(ctx context.Context, inv domain.Invitation, org domain.Organization) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var auth smtp.Auth
	if m.cfg.Username != "" {
		auth = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	}

	fromAddr := m.cfg.From
	if start, end := strings.LastIndex(fromAddr, "<"), strings.LastIndex(fromAddr, ">"); start >= 0 && end > start {
		fromAddr = fromAddr[start+1 : end]
	}

	var msg strings.Builder
	fmt.Fprintf(&msg, "From: %s\r\n", singleLine(m.cfg.From))
	fmt.Fprintf(&msg, "To: %s\r\n", singleLine(inv.Email))
	fmt.Fprintf(&msg, "Subject: %s\r\n", headerValue("You're invited to "+org.Name+" on Stockpilot"))
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/plain; charset=UTF-8\r\n\r\n")
	msg.WriteString(messageBody(m.cfg.BaseURL, inv, org))

	addr := net.JoinHostPort(m.cfg.Host, strconv.Itoa(m.cfg.Port))
	if err := m.send(addr, auth, fromAddr, []string{inv.Email}, []byte(msg.String())); err != nil {
		return fmt.Errorf("send invitation to %s: %w", inv.Email, err)
	}
	return nil
}
