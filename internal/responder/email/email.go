// Package email sends an alert email when the policy asks for one.
package email

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/rileyhilliard/ramwatch/internal/config"
	"github.com/rileyhilliard/ramwatch/internal/errors"
	"github.com/rileyhilliard/ramwatch/internal/events"
	"github.com/rileyhilliard/ramwatch/internal/logger"
	"github.com/rileyhilliard/ramwatch/internal/responder"
)

// Name labels the email subscription.
const Name = "email"

// SendFunc delivers one message. smtp.SendMail satisfies it and upgrades
// the connection with STARTTLS when the server offers it.
type SendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// Responder emails a report on SEND_EMAIL.
type Responder struct {
	cfg  config.EmailConfig
	log  logger.Logger
	send SendFunc
	now  func() time.Time
}

// Option configures a Responder.
type Option func(*Responder)

// WithLogger sets the responder logger.
func WithLogger(l logger.Logger) Option {
	return func(r *Responder) { r.log = l }
}

// WithSender replaces smtp.SendMail, mainly for tests.
func WithSender(send SendFunc) Option {
	return func(r *Responder) { r.send = send }
}

// New creates an email responder.
func New(cfg config.EmailConfig, opts ...Option) *Responder {
	r := &Responder{
		cfg:  cfg,
		log:  logger.Noop(),
		send: smtp.SendMail,
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Attach subscribes to SEND_EMAIL.
func (r *Responder) Attach(s responder.Subscriber) {
	responder.Attach(s, Name, r.Handle, events.TypeSendEmail)
}

// Handle sends the alert. Missing credentials are logged and the email is
// skipped rather than failing the delivery; there is nothing to retry.
func (r *Responder) Handle(_ context.Context, ev events.Event) error {
	if ev.Type() != events.TypeSendEmail {
		return nil
	}
	if r.cfg.Username == "" || r.cfg.Password == "" {
		r.log.Error("email credentials not set, skipping alert (set RAMWATCH_EMAIL_USERNAME and RAMWATCH_EMAIL_PASSWORD)")
		return nil
	}

	from, to := r.addresses()
	addr := net.JoinHostPort(r.cfg.Host, strconv.Itoa(r.cfg.Port))
	auth := smtp.PlainAuth("", r.cfg.Username, r.cfg.Password, r.cfg.Host)

	r.log.Info("sending alert email to %s", strings.Join(to, ", "))
	if err := r.send(addr, auth, from, to, Message(from, to, ev, r.now())); err != nil {
		return errors.WrapWithCode(err, errors.ErrResponder,
			"Couldn't send the alert email via "+addr,
			"Check the 'email' section in your ramwatch.yaml and your SMTP credentials.")
	}
	r.log.Info("alert email sent")
	return nil
}

// addresses falls back to the login for From and to From for To.
func (r *Responder) addresses() (string, []string) {
	from := r.cfg.From
	if from == "" {
		from = r.cfg.Username
	}
	to := r.cfg.To
	if len(to) == 0 {
		to = []string{from}
	}
	return from, to
}

// Subject is the alert email subject line.
func Subject(ramPercent float64) string {
	return fmt.Sprintf("HIGH RAM ALERT: %.1f%%", ramPercent)
}

// Body is the plain-text report sent with the alert.
func Body(ev events.Event) string {
	var b strings.Builder
	b.WriteString("HIGH RAM USAGE DETECTED!\n\n")
	fmt.Fprintf(&b, "Current RAM Usage: %.1f%%\n", ev.RAMPercent())
	if esc, ok := ev.Escalation(); ok && !esc.Since.IsZero() {
		fmt.Fprintf(&b, "High since: %s (%s)\n", esc.Since.Format(time.RFC1123), humanize.RelTime(esc.Since, esc.Since.Add(esc.Elapsed), "ago", "from now"))
	}
	if procs := ev.TopProcesses(); len(procs) > 0 {
		b.WriteString("\nTop RAM-Consuming Processes:\n")
		b.WriteString(responder.ProcessLines(procs, "  "))
	}
	b.WriteString("\nPlease check the system and close unnecessary programs.\n\n")
	b.WriteString("---\nThis is an automated alert from ramwatch\n")
	return b.String()
}

// Message builds the RFC 5322 message for ev.
func Message(from string, to []string, ev events.Event, now time.Time) []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(to, ", "))
	fmt.Fprintf(&b, "Subject: %s\r\n", Subject(ev.RAMPercent()))
	fmt.Fprintf(&b, "Date: %s\r\n", now.Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(strings.ReplaceAll(Body(ev), "\n", "\r\n"))
	return b.Bytes()
}
