// Package mailer is the outbound email transport consumed by the
// dispatch engine. Failures are plain error values; the engine decides
// what to record.
package mailer

import "context"

type Sender interface {
	Send(ctx context.Context, to, subject, body string) error
}
