package mailer

import (
	"context"
	"time"
)

// Dummy accepts every message after a short simulated latency. Used in
// development when no SMTP server is configured.
type Dummy struct {
	Delay time.Duration
}

func NewDummy() *Dummy { return &Dummy{Delay: 10 * time.Millisecond} }

func (d *Dummy) Send(ctx context.Context, to, subject, body string) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d.Delay):
	}
	return nil
}
