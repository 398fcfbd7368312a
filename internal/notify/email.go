// internal/notify/email.go
package notify

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
	"time"

	"github.com/sony/gobreaker"
)

// Sender delivers one email.
type Sender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// SMTPSender sends mail through a plain SMTP relay.
type SMTPSender struct {
	addr string
	from string
}

// NewSMTPSender returns nil when no relay is configured; callers treat a nil
// sender as "email disabled".
func NewSMTPSender(addr, from string) *SMTPSender {
	if addr == "" {
		return nil
	}
	return &SMTPSender{addr: addr, from: from}
}

func (s *SMTPSender) Send(ctx context.Context, to, subject, body string) error {
	msg := strings.Join([]string{
		"From: " + s.from,
		"To: " + to,
		"Subject: " + subject,
		"",
		body,
	}, "\r\n")
	return smtp.SendMail(s.addr, nil, s.from, []string{to}, []byte(msg))
}

// BreakerSender wraps a Sender with a circuit breaker so a dead relay stops
// costing a connection timeout per loan operation.
type BreakerSender struct {
	sender  Sender
	breaker *gobreaker.CircuitBreaker
}

func NewBreakerSender(sender Sender) *BreakerSender {
	return &BreakerSender{
		sender: sender,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "smtp",
			Timeout: time.Minute,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
		}),
	}
}

func (b *BreakerSender) Send(ctx context.Context, to, subject, body string) error {
	_, err := b.breaker.Execute(func() (interface{}, error) {
		return nil, b.sender.Send(ctx, to, subject, body)
	})
	if err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	return nil
}
