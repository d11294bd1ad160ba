package notification

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/sony/gobreaker"
	"github.com/wneessen/go-mail"

	"computer-booking-backend/config"
)

// MailSender delivers a plain-text e-mail.
type MailSender interface {
	SendMail(ctx context.Context, to, subject, body string) error
}

// SMTPSender submits mail to the configured relay using STARTTLS and plain auth.
type SMTPSender struct {
	cfg config.MailConfig
}

// NewSMTPSender creates an SMTPSender.
func NewSMTPSender(cfg config.MailConfig) *SMTPSender {
	return &SMTPSender{cfg: cfg}
}

// SendMail opens a connection per message; confirmations are rare enough
// that pooling connections is not worth holding them open.
func (s *SMTPSender) SendMail(ctx context.Context, to, subject, body string) error {
	msg := mail.NewMsg()
	if err := msg.From(s.cfg.From); err != nil {
		return fmt.Errorf("invalid from address %q: %w", s.cfg.From, err)
	}
	if err := msg.To(to); err != nil {
		return fmt.Errorf("invalid recipient %q: %w", to, err)
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextPlain, body)

	client, err := mail.NewClient(s.cfg.Host,
		mail.WithPort(s.cfg.Port),
		mail.WithTLSPolicy(mail.TLSMandatory),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(s.cfg.Username),
		mail.WithPassword(s.cfg.Password),
	)
	if err != nil {
		return fmt.Errorf("failed to create smtp client: %w", err)
	}
	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("failed to send mail to %s: %w", to, err)
	}
	return nil
}

// LogSender writes mail to the log instead of sending it. Used when mail is disabled.
type LogSender struct{}

// SendMail logs the message.
func (LogSender) SendMail(_ context.Context, to, subject, body string) error {
	log.Printf("mail disabled; would send %q to %s: %s", subject, to, body)
	return nil
}

// BreakerSender guards a MailSender with a circuit breaker so a dead relay
// fails fast instead of tying up workers.
type BreakerSender struct {
	next MailSender
	cb   *gobreaker.CircuitBreaker
}

// NewBreakerSender wraps next. The breaker opens after 3 consecutive failures
// and probes again after 30 seconds.
func NewBreakerSender(next MailSender) *BreakerSender {
	return &BreakerSender{
		next: next,
		cb: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "SMTP",
			MaxRequests: 1,
			Interval:    time.Minute,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 3
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				log.Printf("[CRITICAL] Circuit Breaker %s: %s -> %s", name, from, to)
			},
		}),
	}
}

// SendMail forwards to the wrapped sender unless the breaker is open.
func (b *BreakerSender) SendMail(ctx context.Context, to, subject, body string) error {
	_, err := b.cb.Execute(func() (interface{}, error) {
		return nil, b.next.SendMail(ctx, to, subject, body)
	})
	return err
}

// NewMailSender builds the sender described by cfg.
func NewMailSender(cfg config.MailConfig) MailSender {
	if !cfg.Enabled {
		return LogSender{}
	}
	return NewBreakerSender(NewSMTPSender(cfg))
}
