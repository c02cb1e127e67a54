package core

import (
	"context"
	"errors"
	"time"

	"github.com/skypost/mailing-service/internal/mailer"
	"github.com/skypost/mailing-service/internal/metrics"
)

// Dispatch precondition failures. These reject the request before any
// state is touched; transport failures during the loop are recorded as
// a failed attempt instead.
var (
	ErrNewsletterInactive  = errors.New("newsletter_inactive")
	ErrNewsletterCompleted = errors.New("newsletter_completed")
	ErrNewsletterNoMessage = errors.New("newsletter_has_no_message")
)

// Dispatcher runs one synchronous send loop per invocation and writes
// exactly one attempt row for it.
type Dispatcher struct {
	Store  *Store
	Sender mailer.Sender
}

// Dispatch sends the newsletter's message to every recipient in id
// order. The loop aborts on the first transport failure; recipients
// after it are never attempted and the newsletter stays in `started`.
// A fully successful loop completes the newsletter. Either way the
// outcome is one attempt row, and the transport error is recorded, not
// returned.
func (d *Dispatcher) Dispatch(ctx context.Context, newsletterID string) (*Attempt, error) {
	n, msg, recips, err := d.Store.NewsletterForDispatch(ctx, newsletterID)
	if err != nil {
		return nil, err
	}
	if !n.IsActive {
		return nil, ErrNewsletterInactive
	}
	if n.Status == StatusCompleted {
		return nil, ErrNewsletterCompleted
	}
	if msg == nil {
		return nil, ErrNewsletterNoMessage
	}

	// Visible in-progress state before the first mail leaves.
	now := time.Now().UTC()
	n.Status = StatusStarted
	n.FirstDispatch = &now
	if err := d.Store.MarkStarted(ctx, n.ID, now); err != nil {
		return nil, err
	}

	att := &Attempt{
		AttemptedAt:  now,
		Success:      false,
		NewsletterID: n.ID,
		OwnerID:      n.OwnerID,
	}

	var sendErr error
	for _, r := range recips {
		start := time.Now()
		sendErr = d.Sender.Send(ctx, r.Email, msg.Title, msg.Body)
		metrics.MailSendDuration.Observe(time.Since(start).Seconds())
		if sendErr != nil {
			metrics.MailSendTotal.WithLabelValues("error").Inc()
			break
		}
		metrics.MailSendTotal.WithLabelValues("sent").Inc()
	}

	if sendErr == nil {
		end := time.Now().UTC()
		n.Status = StatusCompleted
		n.EndDispatch = &end
		att.Success = true
		att.ServerResponse = DispatchSuccessResponse
		metrics.DispatchTotal.WithLabelValues("success").Inc()
	} else {
		// Status stays `started`; only the first failure's text is kept.
		att.ServerResponse = sendErr.Error()
		metrics.DispatchTotal.WithLabelValues("failure").Inc()
	}

	if err := d.Store.FinishDispatch(ctx, att, n); err != nil {
		return nil, err
	}
	return att, nil
}
